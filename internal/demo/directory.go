// Package demo provides an in-memory scheduling directory for local runs and
// tests. Every professional works weekdays with hourly slots.
package demo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/scheduling"
)

var (
	cardiology  = scheduling.Specialty{ID: "1", Name: "Cardiologia"}
	dermatology = scheduling.Specialty{ID: "2", Name: "Dermatologia"}
	pediatrics  = scheduling.Specialty{ID: "3", Name: "Pediatria"}
)

var defaultProfessionals = []scheduling.Professional{
	{ID: "10", Name: "João Silva", Prefix: "Dr.", Specialties: []scheduling.Specialty{cardiology}},
	{ID: "11", Name: "Ana Souza", Prefix: "Dra.", Specialties: []scheduling.Specialty{dermatology}},
	{ID: "12", Name: "Marcos Lima", Prefix: "Dr.", Specialties: []scheduling.Specialty{pediatrics, cardiology}},
}

var defaultHours = []string{"08:00", "09:00", "10:00", "11:00", "14:00", "15:00", "16:00", "17:00"}

// Directory is an in-memory scheduling.Directory.
type Directory struct {
	mu            sync.Mutex
	specialties   []scheduling.Specialty
	professionals []scheduling.Professional
	hours         []string
	booked        map[string]bool // professionalID|date|start
	bookings      []scheduling.BookingRequest
	now           func() time.Time
}

var _ scheduling.Directory = (*Directory)(nil)

// NewDirectory returns a directory seeded with a small roster.
func NewDirectory() *Directory {
	return &Directory{
		specialties:   []scheduling.Specialty{cardiology, dermatology, pediatrics},
		professionals: append([]scheduling.Professional(nil), defaultProfessionals...),
		hours:         append([]string(nil), defaultHours...),
		booked:        make(map[string]bool),
		now:           time.Now,
	}
}

// WithClock sets the time used to hide past slots.
func (d *Directory) WithClock(now func() time.Time) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	if now != nil {
		d.now = now
	}
	return d
}

// Block marks a slot as taken without recording a booking.
func (d *Directory) Block(professionalID, date, start string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.booked[slotKey(professionalID, date, start)] = true
}

// Bookings returns the submitted bookings in order.
func (d *Directory) Bookings() []scheduling.BookingRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]scheduling.BookingRequest(nil), d.bookings...)
}

func (d *Directory) ListSpecialties(ctx context.Context) ([]scheduling.Specialty, error) {
	return append([]scheduling.Specialty(nil), d.specialties...), nil
}

func (d *Directory) ListProfessionals(ctx context.Context) ([]scheduling.Professional, error) {
	return append([]scheduling.Professional(nil), d.professionals...), nil
}

func (d *Directory) ListProfessionalsBySpecialty(ctx context.Context, specialty string) ([]scheduling.Professional, error) {
	return scheduling.FilterBySpecialty(d.professionals, specialty), nil
}

func (d *Directory) ListAvailableDates(ctx context.Context, professionalID string, month time.Month, year int) ([]string, error) {
	if _, ok := d.professional(professionalID); !ok {
		return nil, scheduling.ErrNotFound
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []string
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for day := first; day.Month() == month; day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		date := day.Format("2006-01-02")
		if len(d.openTimes(professionalID, date)) > 0 {
			out = append(out, date)
		}
	}
	return out, nil
}

func (d *Directory) ListAvailableTimes(ctx context.Context, professionalID, date string) ([]scheduling.TimeSlot, error) {
	if _, ok := d.professional(professionalID); !ok {
		return nil, scheduling.ErrNotFound
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("demo: invalid date %q: %w", date, err)
	}
	if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		return nil, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openTimes(professionalID, date), nil
}

func (d *Directory) SubmitBooking(ctx context.Context, req scheduling.BookingRequest) (scheduling.BookingConfirmation, error) {
	if _, ok := d.professional(req.ProfessionalID); !ok {
		return scheduling.BookingConfirmation{}, scheduling.ErrNotFound
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	open := false
	for _, s := range d.openTimes(req.ProfessionalID, req.Date) {
		if s.StartTime == req.StartTime {
			open = true
			break
		}
	}
	if !open {
		return scheduling.BookingConfirmation{}, scheduling.ErrSlotUnavailable
	}
	d.booked[slotKey(req.ProfessionalID, req.Date, req.StartTime)] = true
	d.bookings = append(d.bookings, req)
	return scheduling.BookingConfirmation{ID: uuid.NewString(), Status: "AGENDADO"}, nil
}

func (d *Directory) professional(id string) (scheduling.Professional, bool) {
	for _, p := range d.professionals {
		if p.ID == id {
			return p, true
		}
	}
	return scheduling.Professional{}, false
}

// openTimes must be called with d.mu held.
func (d *Directory) openTimes(professionalID, date string) []scheduling.TimeSlot {
	now := d.now()
	today := now.Format("2006-01-02")
	if date < today {
		return nil
	}
	var out []scheduling.TimeSlot
	for _, h := range d.hours {
		if d.booked[slotKey(professionalID, date, h)] {
			continue
		}
		if date == today && h <= now.Format("15:04") {
			continue
		}
		out = append(out, scheduling.TimeSlot{Date: date, StartTime: h, EndTime: scheduling.DefaultEndTime(h)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

func slotKey(professionalID, date, start string) string {
	return strings.Join([]string{professionalID, date, start}, "|")
}
