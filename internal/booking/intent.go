// Package booking holds the structured booking intent collected across a
// conversation and the rules for accumulating it turn by turn.
package booking

import (
	"strings"
)

// DefaultServiceType is applied when no turn named a service.
const DefaultServiceType = "consultation"

// Shift is a coarse part of the day the patient prefers.
type Shift string

const (
	ShiftNone      Shift = ""
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
)

// ParseShift normalizes free-form shift labels coming from extraction.
func ParseShift(s string) Shift {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "morning", "manha", "manhã", "am":
		return ShiftMorning
	case "afternoon", "tarde", "pm":
		return ShiftAfternoon
	default:
		return ShiftNone
	}
}

// Contains reports whether an hour of day falls inside the shift window.
// Morning covers [5,12) and afternoon [12,18). ShiftNone accepts every hour.
func (s Shift) Contains(hour int) bool {
	switch s {
	case ShiftMorning:
		return hour >= 5 && hour < 12
	case ShiftAfternoon:
		return hour >= 12 && hour < 18
	default:
		return true
	}
}

// FieldID names a single slot of the booking intent.
type FieldID string

const (
	FieldSpecialtyOrProfessional FieldID = "specialty_or_professional"
	FieldProfessional            FieldID = "professional"
	FieldSpecialty               FieldID = "specialty"
	FieldDatePreference          FieldID = "date_preference"
	FieldShiftPreference         FieldID = "shift_preference"
	FieldSpecificTime            FieldID = "specific_time"
	FieldPatientName             FieldID = "patient_name"
)

// Intent is the structured booking request accumulated over the conversation.
type Intent struct {
	ProfessionalName string `json:"professional_name,omitempty"`
	Specialty        string `json:"specialty,omitempty"`
	DatePreference   string `json:"date_preference,omitempty"`
	ShiftPreference  Shift  `json:"shift_preference,omitempty"`
	SpecificTime     string `json:"specific_time,omitempty"`
	ServiceType      string `json:"service_type,omitempty"`
	PatientName      string `json:"patient_name,omitempty"`
}

// Merge folds the freshest extraction into the accumulated intent. A field is
// only replaced by a non-blank incoming value, so information collected in an
// earlier turn is never lost to a later empty extraction.
func Merge(existing, incoming *Intent) Intent {
	if existing == nil && incoming == nil {
		return Intent{ServiceType: DefaultServiceType}
	}
	if existing == nil {
		out := *incoming
		out.normalize()
		return out
	}
	if incoming == nil {
		out := *existing
		out.normalize()
		return out
	}

	out := *existing
	out.ProfessionalName = pick(existing.ProfessionalName, incoming.ProfessionalName)
	out.Specialty = pick(existing.Specialty, incoming.Specialty)
	out.DatePreference = pick(existing.DatePreference, incoming.DatePreference)
	out.ShiftPreference = Shift(pick(string(existing.ShiftPreference), string(incoming.ShiftPreference)))
	out.SpecificTime = pick(existing.SpecificTime, incoming.SpecificTime)
	out.ServiceType = pick(existing.ServiceType, incoming.ServiceType)
	out.PatientName = pick(existing.PatientName, incoming.PatientName)
	out.normalize()
	return out
}

func pick(existing, incoming string) string {
	if strings.TrimSpace(incoming) != "" {
		return strings.TrimSpace(incoming)
	}
	return existing
}

func (i *Intent) normalize() {
	if strings.TrimSpace(i.ServiceType) == "" {
		i.ServiceType = DefaultServiceType
	}
}

// IsZero reports whether no patient-provided field is set.
func (i Intent) IsZero() bool {
	return blank(i.ProfessionalName) && blank(i.Specialty) && blank(i.DatePreference) &&
		i.ShiftPreference == ShiftNone && blank(i.SpecificTime) && blank(i.PatientName)
}

// EffectiveShift returns the explicit shift, or the shift implied by the
// specific time when only a time was given.
func (i Intent) EffectiveShift() Shift {
	if i.ShiftPreference != ShiftNone {
		return i.ShiftPreference
	}
	return ShiftForTime(i.SpecificTime)
}

// Clear drops one field so it can be collected again.
func (i Intent) Clear(field FieldID) Intent {
	switch field {
	case FieldProfessional:
		i.ProfessionalName = ""
	case FieldSpecialty:
		i.Specialty = ""
	case FieldSpecialtyOrProfessional:
		i.ProfessionalName = ""
		i.Specialty = ""
	case FieldDatePreference:
		i.DatePreference = ""
	case FieldShiftPreference:
		i.ShiftPreference = ShiftNone
	case FieldSpecificTime:
		i.SpecificTime = ""
	case FieldPatientName:
		i.PatientName = ""
	}
	return i
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
