package booking

import (
	"regexp"
	"strings"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/textnorm"
)

var earliestPhrases = []string{
	"earliest",
	"earliest available",
	"as soon as possible",
	"asap",
	"first available",
	"soonest",
	"next available",
	"any date",
	"any day",
	"whenever",
	"mais proxima",
	"mais proximo",
	"o quanto antes",
	"primeira data",
	"qualquer data",
	"qualquer dia",
}

// IsEarliestPhrase reports whether a date preference means "the first date
// with an opening" rather than a specific day.
func IsEarliestPhrase(s string) bool {
	return textnorm.ContainsAny(s, earliestPhrases)
}

var exactDatePattern = regexp.MustCompile(`^\s*(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(/\d{2,4})?)\s*$`)

// IsExactDate reports whether the preference pins a calendar date
// (DD/MM, DD/MM/YYYY or ISO) as opposed to a relative or vague phrase.
func IsExactDate(s string) bool {
	return exactDatePattern.MatchString(s)
}

// NextMissingField returns the single highest-priority field still needed
// before availability can be checked. Priority is specialty-or-professional,
// date preference, shift-or-time, then patient name.
func NextMissingField(intent Intent) (FieldID, bool) {
	if blank(intent.Specialty) && blank(intent.ProfessionalName) {
		return FieldSpecialtyOrProfessional, true
	}
	if blank(intent.DatePreference) {
		return FieldDatePreference, true
	}
	if intent.ShiftPreference == ShiftNone && blank(intent.SpecificTime) {
		if IsExactDate(strings.TrimSpace(intent.DatePreference)) {
			return FieldSpecificTime, true
		}
		return FieldShiftPreference, true
	}
	if blank(intent.PatientName) {
		return FieldPatientName, true
	}
	return "", false
}
