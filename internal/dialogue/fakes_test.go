package dialogue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/booking"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/lus"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/scheduling"
)

var errLUSDown = errors.New("lus: model unavailable")

// stubLUS answers intent and confirmation labels from fields and fails every
// generation call so replies come from the templates.
type stubLUS struct {
	mu          sync.Mutex
	intent      string
	intentErr   error
	intentCalls int
	extract     func(history []booking.Message) (booking.Intent, error)
	confirm     string
	confirmErr  error
}

func (s *stubLUS) ClassifyIntent(ctx context.Context, text, contextTag string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intentCalls++
	return s.intent, s.intentErr
}

func (s *stubLUS) ExtractBookingFields(ctx context.Context, history []booking.Message) (booking.Intent, error) {
	if s.extract == nil {
		return booking.Intent{}, nil
	}
	return s.extract(history)
}

func (s *stubLUS) GenerateUtterance(ctx context.Context, kind lus.UtteranceKind, params map[string]string) (string, error) {
	return "", errLUSDown
}

func (s *stubLUS) TranslateRelativeDate(ctx context.Context, phrase string, today time.Time) (string, error) {
	return "", errLUSDown
}

func (s *stubLUS) ClassifyConfirmation(ctx context.Context, text string) (string, error) {
	if s.confirm == "" && s.confirmErr == nil {
		return "", errLUSDown
	}
	return s.confirm, s.confirmErr
}

func (s *stubLUS) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intentCalls
}

func extractOnce(in booking.Intent) func([]booking.Message) (booking.Intent, error) {
	return func([]booking.Message) (booking.Intent, error) { return in, nil }
}

// fakeDirectory serves a fixed roster. Dates are keyed by "YYYY-MM" and
// times by date.
type fakeDirectory struct {
	mu            sync.Mutex
	specialties   []scheduling.Specialty
	professionals []scheduling.Professional
	dates         map[string][]string
	times         map[string][]scheduling.TimeSlot
	listErr       error
	datesErr      error
	submitErr     error
	bookings      []scheduling.BookingRequest
}

var cardiologia = scheduling.Specialty{ID: "1", Name: "Cardiologia"}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		specialties: []scheduling.Specialty{cardiologia, {ID: "2", Name: "Dermatologia"}},
		professionals: []scheduling.Professional{
			{ID: "10", Name: "João Silva", Prefix: "Dr.", Specialties: []scheduling.Specialty{cardiologia}},
			{ID: "11", Name: "Ana Souza", Prefix: "Dra.", Specialties: []scheduling.Specialty{{ID: "2", Name: "Dermatologia"}}},
		},
		dates: map[string][]string{"2025-07": {"2025-07-08"}},
		times: map[string][]scheduling.TimeSlot{
			"2025-07-08": {
				{Date: "2025-07-08", StartTime: "09:00", EndTime: "10:00"},
				{Date: "2025-07-08", StartTime: "10:00", EndTime: "11:00"},
				{Date: "2025-07-08", StartTime: "14:00", EndTime: "15:00"},
			},
		},
	}
}

func (f *fakeDirectory) ListSpecialties(ctx context.Context) ([]scheduling.Specialty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.specialties, f.listErr
}

func (f *fakeDirectory) ListProfessionals(ctx context.Context) ([]scheduling.Professional, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.professionals, f.listErr
}

func (f *fakeDirectory) ListProfessionalsBySpecialty(ctx context.Context, specialty string) ([]scheduling.Professional, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return scheduling.FilterBySpecialty(f.professionals, specialty), nil
}

func (f *fakeDirectory) ListAvailableDates(ctx context.Context, professionalID string, month time.Month, year int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.datesErr != nil {
		return nil, f.datesErr
	}
	return f.dates[fmt.Sprintf("%04d-%02d", year, int(month))], nil
}

func (f *fakeDirectory) ListAvailableTimes(ctx context.Context, professionalID, date string) ([]scheduling.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.times[date], nil
}

func (f *fakeDirectory) SubmitBooking(ctx context.Context, req scheduling.BookingRequest) (scheduling.BookingConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return scheduling.BookingConfirmation{}, f.submitErr
	}
	f.bookings = append(f.bookings, req)
	return scheduling.BookingConfirmation{ID: "bk-1", Status: "AGENDADO"}, nil
}

func (f *fakeDirectory) setTimes(date string, slots ...scheduling.TimeSlot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.times[date] = slots
}

func (f *fakeDirectory) setSubmitErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErr = err
}

type failingStore struct {
	err error
}

func (s failingStore) Load(ctx context.Context, conversationID string) ([]byte, error) {
	return nil, nil
}

func (s failingStore) Save(ctx context.Context, conversationID string, data []byte) error {
	return s.err
}

// flakyStore fails the next loadFailures loads, then defers to the wrapped
// store.
type flakyStore struct {
	Store
	mu           sync.Mutex
	loadFailures int
	err          error
	saves        int
}

func (s *flakyStore) Load(ctx context.Context, conversationID string) ([]byte, error) {
	s.mu.Lock()
	if s.loadFailures > 0 {
		s.loadFailures--
		s.mu.Unlock()
		return nil, s.err
	}
	s.mu.Unlock()
	return s.Store.Load(ctx, conversationID)
}

func (s *flakyStore) Save(ctx context.Context, conversationID string, data []byte) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.Store.Save(ctx, conversationID, data)
}

type recordingNotifier struct {
	mu      sync.Mutex
	replies []Reply
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, reply Reply) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replies = append(n.replies, reply)
	return n.err
}
