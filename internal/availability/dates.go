package availability

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/booking"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/textnorm"
	"github.com/wolfman30/clinic-scheduling-assistant/pkg/logging"
)

// InvalidDate is what the translator answers when a phrase cannot be dated.
const InvalidDate = "invalid"

// maxDayWalk bounds how many months the "day N" fallback walks forward.
const maxDayWalk = 12

// DateTranslator turns a relative date phrase into YYYY-MM-DD or InvalidDate.
type DateTranslator interface {
	TranslateRelativeDate(ctx context.Context, phrase string, today time.Time) (string, error)
}

// DateResolver resolves a patient's date preference to a calendar date.
type DateResolver struct {
	translator DateTranslator
	logger     *logging.Logger
}

// NewDateResolver creates a resolver. A nil translator uses only the
// deterministic rules.
func NewDateResolver(translator DateTranslator, logger *logging.Logger) *DateResolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &DateResolver{translator: translator, logger: logger}
}

// Resolve returns the calendar date meant by phrase relative to today.
// "Earliest available" phrases and unresolvable phrases return false, which
// means the search runs without a preferred date.
func (d *DateResolver) Resolve(ctx context.Context, phrase string, today time.Time) (time.Time, bool) {
	phrase = strings.TrimSpace(phrase)
	today = startOfDay(today)
	if phrase == "" || booking.IsEarliestPhrase(phrase) {
		return time.Time{}, false
	}

	if d.translator != nil {
		iso, err := d.translator.TranslateRelativeDate(ctx, phrase, today)
		switch {
		case err != nil:
			d.logger.Warn("availability: date translation failed", "error", err)
		case strings.EqualFold(strings.TrimSpace(iso), InvalidDate):
			d.logger.Debug("availability: translator could not date phrase")
		default:
			if t, perr := time.ParseInLocation(dateLayout, strings.TrimSpace(iso), today.Location()); perr == nil {
				if consistent(phrase, t, today) {
					return t, true
				}
				d.logger.Info("availability: discarding inconsistent translation", "translated", iso)
			}
		}
	}

	return ParseDate(phrase, today)
}

// consistent rejects translations in the past or ones that land anywhere but
// the next occurrence of an explicit day-of-month mention.
func consistent(phrase string, t, today time.Time) bool {
	if t.Before(today) {
		return false
	}
	day, ok := booking.DayOfMonthMention(phrase)
	if !ok {
		return true
	}
	want, ok := NextDayOfMonth(day, today)
	if !ok {
		return false
	}
	return t.Year() == want.Year() && t.Month() == want.Month() && t.Day() == want.Day()
}

var (
	isoPattern   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashPattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
)

// ParseDate is the deterministic date parser. It understands ISO dates,
// DD/MM[/YYYY], "day N" mentions, and today/tomorrow in English or Portuguese.
func ParseDate(phrase string, today time.Time) (time.Time, bool) {
	today = startOfDay(today)
	loc := today.Location()

	if m := isoPattern.FindStringSubmatch(phrase); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if t, ok := validDate(y, mo, day, loc); ok {
			return t, true
		}
	}

	if m := slashPattern.FindStringSubmatch(phrase); m != nil {
		day, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if m[3] != "" {
			y, _ := strconv.Atoi(m[3])
			if len(m[3]) == 2 {
				y += 2000
			}
			if t, ok := validDate(y, mo, day, loc); ok {
				return t, true
			}
		} else if t, ok := validDate(today.Year(), mo, day, loc); ok {
			if t.Before(today) {
				if next, ok := validDate(today.Year()+1, mo, day, loc); ok {
					return next, true
				}
			}
			return t, true
		}
	}

	if day, ok := booking.DayOfMonthMention(phrase); ok {
		return NextDayOfMonth(day, today)
	}

	folded := textnorm.Fold(phrase)
	switch {
	case textnorm.ContainsAny(folded, []string{"day after tomorrow", "depois de amanha"}):
		return today.AddDate(0, 0, 2), true
	case textnorm.ContainsAny(folded, []string{"tomorrow", "amanha"}):
		return today.AddDate(0, 0, 1), true
	case textnorm.ContainsAny(folded, []string{"today", "hoje"}):
		return today, true
	}
	return time.Time{}, false
}

// NextDayOfMonth resolves "day N": the current month when N is still ahead,
// otherwise the following month, skipping months that have no day N.
func NextDayOfMonth(day int, today time.Time) (time.Time, bool) {
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	today = startOfDay(today)
	start := 0
	if day <= today.Day() {
		start = 1
	}
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	for offset := start; offset <= maxDayWalk; offset++ {
		month := first.AddDate(0, offset, 0)
		if t, ok := validDate(month.Year(), int(month.Month()), day, today.Location()); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func validDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}
