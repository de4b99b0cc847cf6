// Package availability finds open calendar slots for a professional, honoring
// the patient's preferred date and shift, and resolves natural-language dates.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/booking"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling-assistant/pkg/logging"
)

const dateLayout = "2006-01-02"

// MaxPresented caps how many slots are rendered to the patient.
const MaxPresented = 3

// ErrCheckFailed marks a retryable failure while reading the calendar.
var ErrCheckFailed = errors.New("availability: check failed")

// Slot is one opening on a professional's calendar.
type Slot = scheduling.TimeSlot

// Calendar is the part of the scheduling directory the resolver reads.
type Calendar interface {
	ListAvailableDates(ctx context.Context, professionalID string, month time.Month, year int) ([]string, error)
	ListAvailableTimes(ctx context.Context, professionalID, date string) ([]scheduling.TimeSlot, error)
}

// Result is the outcome of a slot search. An empty Date means nothing was found.
type Result struct {
	Date             string
	Slots            []Slot
	MatchedPreferred bool
}

// Found reports whether the search produced any slot.
func (r Result) Found() bool {
	return r.Date != "" && len(r.Slots) > 0
}

// Presented returns the slots that should be shown to the patient.
func (r Result) Presented() []Slot {
	return Cap(r.Slots, MaxPresented)
}

// Cap truncates slots to at most n entries.
func Cap(slots []Slot, n int) []Slot {
	if n <= 0 || len(slots) <= n {
		return slots
	}
	return slots[:n]
}

// Resolver searches a professional's calendar.
type Resolver struct {
	calendar Calendar
	logger   *logging.Logger
}

// NewResolver creates a resolver over the given calendar.
func NewResolver(calendar Calendar, logger *logging.Logger) *Resolver {
	if calendar == nil {
		panic("availability: calendar cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{calendar: calendar, logger: logger}
}

// FindSlot looks for openings in one calendar month. The month searched is
// the reference month, or the preferred date's month when that lies later.
// The preferred date wins when it has openings in the shift; otherwise the
// earliest date on or after the reference date with openings is returned.
func (r *Resolver) FindSlot(ctx context.Context, professionalID string, shift booking.Shift, reference time.Time, preferred *time.Time) (Result, error) {
	reference = startOfDay(reference)
	if preferred != nil {
		p := startOfDay(*preferred)
		if p.Before(reference) {
			preferred = nil
		} else {
			preferred = &p
		}
	}

	month, year := reference.Month(), reference.Year()
	if preferred != nil && monthIndex(*preferred) > monthIndex(reference) {
		month, year = preferred.Month(), preferred.Year()
	}

	dates, err := r.calendar.ListAvailableDates(ctx, professionalID, month, year)
	if err != nil {
		return Result{}, fmt.Errorf("%w: list dates %d/%d: %w", ErrCheckFailed, month, year, err)
	}
	sort.Strings(dates)

	if preferred != nil {
		want := preferred.Format(dateLayout)
		for _, d := range dates {
			if d != want {
				continue
			}
			slots, err := r.times(ctx, professionalID, d, shift)
			if err != nil {
				return Result{}, err
			}
			if len(slots) > 0 {
				return Result{Date: d, Slots: slots, MatchedPreferred: true}, nil
			}
			break
		}
	}

	floor := reference.Format(dateLayout)
	for _, d := range dates {
		if d < floor {
			continue
		}
		if preferred != nil && d == preferred.Format(dateLayout) {
			continue
		}
		slots, err := r.times(ctx, professionalID, d, shift)
		if err != nil {
			return Result{}, err
		}
		if len(slots) > 0 {
			return Result{Date: d, Slots: slots}, nil
		}
	}
	return Result{}, nil
}

// Search runs FindSlot and, while nothing is found, extends into up to
// extraMonths following months.
func (r *Resolver) Search(ctx context.Context, professionalID string, shift booking.Shift, reference time.Time, preferred *time.Time, extraMonths int) (Result, error) {
	res, err := r.FindSlot(ctx, professionalID, shift, reference, preferred)
	if err != nil || res.Found() {
		return res, err
	}

	base := reference
	if preferred != nil && preferred.After(reference) {
		base = *preferred
	}
	first := time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, base.Location())
	for i := 1; i <= extraMonths; i++ {
		next := first.AddDate(0, i, 0)
		r.logger.Debug("availability: extending search", "professional_id", professionalID, "month", next.Format("2006-01"))
		res, err = r.FindSlot(ctx, professionalID, shift, next, nil)
		if err != nil || res.Found() {
			return res, err
		}
	}
	return Result{}, nil
}

func (r *Resolver) times(ctx context.Context, professionalID, date string, shift booking.Shift) ([]Slot, error) {
	raw, err := r.calendar.ListAvailableTimes(ctx, professionalID, date)
	if err != nil {
		return nil, fmt.Errorf("%w: list times %s: %w", ErrCheckFailed, date, err)
	}
	return FilterByShift(raw, shift), nil
}

// FilterByShift keeps slots starting inside the shift, ordered by start time.
func FilterByShift(slots []Slot, shift booking.Shift) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		t, err := time.Parse("15:04", s.StartTime)
		if err != nil {
			continue
		}
		if shift.Contains(t.Hour()) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

// Contains reports whether the calendar still lists the slot as open.
func (r *Resolver) Contains(ctx context.Context, professionalID string, slot Slot) (bool, error) {
	raw, err := r.calendar.ListAvailableTimes(ctx, professionalID, slot.Date)
	if err != nil {
		return false, fmt.Errorf("%w: list times %s: %w", ErrCheckFailed, slot.Date, err)
	}
	for _, s := range raw {
		if s.StartTime == slot.StartTime {
			return true, nil
		}
	}
	return false, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month())
}
