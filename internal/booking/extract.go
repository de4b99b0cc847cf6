package booking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/textnorm"
)

var (
	clockPattern    = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	meridiemPattern = regexp.MustCompile(`(?i)\b(1[0-2]|0?[1-9])(?::([0-5]\d))?\s*(am|pm|a\.m\.|p\.m\.)`)
	hourMarkPattern = regexp.MustCompile(`(?i)\b([01]?\d|2[0-3])\s*h\s*([0-5]\d)?\b`)

	slashDatePattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`)
	isoDatePattern   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	dayOfMonthRegexp = regexp.MustCompile(`(?i)\b(?:day|dia|the)\s+(\d{1,2})(?:st|nd|rd|th)?\b`)

	professionalPattern = regexp.MustCompile(`\b(?i:dr|dra|doctor|doutor|doutora)\.?\s+(\p{Lu}[\p{L}'-]+(?:\s+\p{Lu}[\p{L}'-]+)?)`)
	namePattern         = regexp.MustCompile(`(?i)\b(?:my name is|meu nome e|meu nome é|me chamo|i am called)\s+(\p{L}[\p{L}'-]*(?:\s+\p{L}[\p{L}'-]*){0,3})`)
)

var morningWords = []string{"morning", "manha", "de manha", "pela manha", "cedo"}
var afternoonWords = []string{"afternoon", "tarde", "a tarde", "de tarde", "pela tarde"}

var relativeDays = []string{"day after tomorrow", "depois de amanha", "today", "tomorrow", "hoje", "amanha"}

var nameStopWords = map[string]bool{
	"and": true, "e": true, "i": true, "want": true, "quero": true, "but": true,
	"mas": true, "please": true, "por": true,
}

var specialtyStems = []string{
	"cardiolog", "dermatolog", "pediatr", "ortoped", "orthoped", "ginecolog",
	"gynecolog", "neurolog", "oftalmolog", "ophthalmolog", "psiquiatr",
	"psychiatr", "endocrinolog", "urolog", "otorrino", "nutricion", "nutrition",
	"psicolog", "psycholog", "gastroenterolog", "pneumolog",
}

// ShiftForTime maps a HH:MM time to the shift containing it.
func ShiftForTime(hhmm string) Shift {
	hour, _, ok := splitClock(hhmm)
	if !ok {
		return ShiftNone
	}
	switch {
	case ShiftMorning.Contains(hour):
		return ShiftMorning
	case ShiftAfternoon.Contains(hour):
		return ShiftAfternoon
	default:
		return ShiftNone
	}
}

// NormalizeTime converts "14:30", "2:30pm", "10h" or "10h30" into HH:MM.
func NormalizeTime(s string) (string, bool) {
	return FindTime(s)
}

// FindTime returns the first clock time mentioned in text as HH:MM.
func FindTime(text string) (string, bool) {
	if m := meridiemPattern.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		pm := strings.HasPrefix(strings.ToLower(m[3]), "p")
		if pm && hour < 12 {
			hour += 12
		}
		if !pm && hour == 12 {
			hour = 0
		}
		return fmt.Sprintf("%02d:%02d", hour, minute), true
	}
	if m := clockPattern.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%02d:%02d", hour, minute), true
	}
	if m := hourMarkPattern.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		return fmt.Sprintf("%02d:%02d", hour, minute), true
	}
	return "", false
}

func splitClock(hhmm string) (int, int, bool) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) < 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// FindDatePhrase returns the date mention in text, verbatim, when one exists.
func FindDatePhrase(text string) (string, bool) {
	if m := isoDatePattern.FindString(text); m != "" {
		return m, true
	}
	if m := slashDatePattern.FindString(text); m != "" {
		return m, true
	}
	if m := dayOfMonthRegexp.FindString(text); m != "" {
		day, _ := strconv.Atoi(dayOfMonthRegexp.FindStringSubmatch(text)[1])
		if day >= 1 && day <= 31 {
			return strings.TrimSpace(m), true
		}
	}
	for _, p := range relativeDays {
		if textnorm.ContainsPhrase(text, p) {
			return p, true
		}
	}
	for _, p := range earliestPhrases {
		if textnorm.ContainsPhrase(text, p) {
			return p, true
		}
	}
	return "", false
}

// FindShift returns the shift named in text.
func FindShift(text string) Shift {
	switch {
	case textnorm.ContainsAny(text, morningWords):
		return ShiftMorning
	case textnorm.ContainsAny(text, afternoonWords):
		return ShiftAfternoon
	default:
		return ShiftNone
	}
}

// FindSpecialty returns the word in text that looks like a medical specialty.
func FindSpecialty(text string) (string, bool) {
	for _, tok := range textnorm.Tokens(text) {
		for _, stem := range specialtyStems {
			if strings.HasPrefix(tok, stem) {
				return tok, true
			}
		}
	}
	return "", false
}

// ExtractDeterministic pulls booking fields out of a single message with
// keyword rules. It is the fallback when language understanding fails.
func ExtractDeterministic(text string) Intent {
	var out Intent
	if t, ok := FindTime(text); ok {
		out.SpecificTime = t
	}
	if d, ok := FindDatePhrase(text); ok {
		out.DatePreference = d
	}
	out.ShiftPreference = FindShift(text)
	if m := professionalPattern.FindStringSubmatch(text); m != nil {
		out.ProfessionalName = strings.TrimSpace(m[0])
	}
	if s, ok := FindSpecialty(text); ok {
		out.Specialty = s
	}
	if m := namePattern.FindStringSubmatch(text); m != nil {
		out.PatientName = trimName(m[1])
	}
	return out
}

func trimName(raw string) string {
	words := strings.Fields(raw)
	for i, w := range words {
		if nameStopWords[strings.ToLower(w)] {
			words = words[:i]
			break
		}
	}
	return strings.Join(words, " ")
}

// DayOfMonthMention returns N for mentions such as "day 5", "dia 30" or "the 12th".
func DayOfMonthMention(text string) (int, bool) {
	m := dayOfMonthRegexp.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return 0, false
	}
	return day, true
}
