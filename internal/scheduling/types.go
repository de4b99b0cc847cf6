// Package scheduling talks to the clinic scheduling directory: specialty and
// professional rosters, calendar openings and booking submission.
package scheduling

import (
	"context"
	"strings"
	"time"
)

// Specialty is a medical specialty offered by the clinic.
type Specialty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Professional is a health professional with the specialties they attend.
type Professional struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Prefix      string      `json:"prefix,omitempty"`
	Specialties []Specialty `json:"specialties,omitempty"`
}

// DisplayName returns the name with the registered prefix (e.g. "Dr.") when present.
func (p Professional) DisplayName() string {
	if prefix := strings.TrimSpace(p.Prefix); prefix != "" && !strings.HasPrefix(strings.ToLower(p.Name), strings.ToLower(prefix)) {
		return prefix + " " + p.Name
	}
	return p.Name
}

// TimeSlot is one opening on a professional's calendar.
type TimeSlot struct {
	Date      string `json:"date"`       // YYYY-MM-DD
	StartTime string `json:"start_time"` // HH:MM
	EndTime   string `json:"end_time"`   // HH:MM
}

// BookingRequest is the input for SubmitBooking.
type BookingRequest struct {
	Date           string
	StartTime      string
	EndTime        string
	PatientName    string
	Phone          string
	ProfessionalID string
	SpecialtyID    string
}

// BookingConfirmation is the directory's answer to a successful submission.
type BookingConfirmation struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
}

// Directory is the remote scheduling directory.
type Directory interface {
	ListSpecialties(ctx context.Context) ([]Specialty, error)
	ListProfessionals(ctx context.Context) ([]Professional, error)
	ListProfessionalsBySpecialty(ctx context.Context, specialty string) ([]Professional, error)
	ListAvailableDates(ctx context.Context, professionalID string, month time.Month, year int) ([]string, error)
	ListAvailableTimes(ctx context.Context, professionalID, date string) ([]TimeSlot, error)
	SubmitBooking(ctx context.Context, req BookingRequest) (BookingConfirmation, error)
}

// FilterBySpecialty keeps the professionals attending the named specialty.
func FilterBySpecialty(pros []Professional, specialty string) []Professional {
	out := make([]Professional, 0, len(pros))
	for _, p := range pros {
		if _, ok := MatchSpecialty(specialty, p.Specialties); ok {
			out = append(out, p)
		}
	}
	return out
}

// DefaultEndTime returns start plus one hour, used when the directory did not
// report an end time for the slot.
func DefaultEndTime(start string) string {
	t, err := time.Parse("15:04", start)
	if err != nil {
		return start
	}
	return t.Add(time.Hour).Format("15:04")
}
