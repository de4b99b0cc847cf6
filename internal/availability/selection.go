package availability

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/booking"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/textnorm"
)

var ordinalMap = map[string]int{
	"first": 1, "second": 2, "third": 3,
	"1st": 1, "2nd": 2, "3rd": 3,
	"primeiro": 1, "primeira": 1, "segundo": 2, "segunda": 2, "terceiro": 3, "terceira": 3,
}

var (
	optionRE  = regexp.MustCompile(`(?i)^(?:option|number|opcao|opção|#|choice)\s*(\d+)$`)
	bareNumRE = regexp.MustCompile(`^\s*(\d{1,2})\s*$`)
)

var moreTimesPatterns = []string{
	"more times", "more options", "other times", "other options",
	"different times", "later times", "earlier times", "any other",
	"outros horarios", "outro horario", "outras opcoes", "outra data",
}

// DetectSelection picks the slot the patient chose among the offered ones.
// It understands option numbers ("2", "option 2", "#2"), ordinals ("the
// first one") and literal times ("10:00", "10am", "10h"). Requests for more
// options never count as a selection.
func DetectSelection(message string, offered []Slot) (Slot, bool) {
	message = strings.TrimSpace(message)
	if message == "" || len(offered) == 0 {
		return Slot{}, false
	}
	folded := textnorm.Fold(message)
	if WantsMoreOptions(folded) {
		return Slot{}, false
	}

	if t, ok := booking.FindTime(message); ok {
		for _, s := range offered {
			if s.StartTime == t {
				return s, true
			}
		}
		return Slot{}, false
	}

	if m := optionRE.FindStringSubmatch(strings.ToLower(message)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= len(offered) {
			return offered[n-1], true
		}
	}

	for _, tok := range strings.Fields(folded) {
		if n, ok := ordinalMap[tok]; ok && n <= len(offered) {
			return offered[n-1], true
		}
	}

	if m := bareNumRE.FindStringSubmatch(message); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n >= 1 && n <= len(offered) {
			return offered[n-1], true
		}
		for _, s := range offered {
			if len(s.StartTime) < 2 {
				continue
			}
			hour, err := strconv.Atoi(s.StartTime[:2])
			if err != nil {
				continue
			}
			if hour == n || hour == n+12 {
				return s, true
			}
		}
	}
	return Slot{}, false
}

// ExtractTime returns the literal clock time mentioned in text as HH:MM.
func ExtractTime(text string) (string, bool) {
	return booking.FindTime(text)
}

// WantsMoreOptions reports whether the patient asked to see other times.
func WantsMoreOptions(message string) bool {
	return textnorm.ContainsAny(message, moreTimesPatterns)
}
