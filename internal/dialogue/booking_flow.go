package dialogue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/availability"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/booking"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/confirmation"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/scheduling"
)

// resolved is the directory's view of the professional the patient wants.
type resolved struct {
	professional scheduling.Professional
	specialty    string
}

// resolveProfessional finds the professional by fuzzy name, or the first
// professional attending the requested specialty. A false ok with a nil
// error means the patient named something the directory does not know; the
// returned step asks for a correction.
func (e *Engine) resolveProfessional(ctx context.Context, conv Conversation, in *turn) (resolved, *step, error) {
	intent := conv.Intent
	if name := strings.TrimSpace(intent.ProfessionalName); name != "" {
		pros, err := e.directory.ListProfessionals(ctx)
		if err != nil {
			e.directoryFailed(in, "list_professionals", err)
			return resolved{}, nil, err
		}
		if intent.Specialty != "" {
			if scoped := scheduling.FilterBySpecialty(pros, intent.Specialty); len(scoped) > 0 {
				if p, ok := scheduling.MatchProfessional(name, scoped); ok {
					return resolved{professional: p, specialty: specialtyName(p, intent.Specialty)}, nil, nil
				}
			}
		}
		p, ok := scheduling.MatchProfessional(name, pros)
		if !ok {
			conv.Intent = conv.Intent.Clear(booking.FieldProfessional)
			conv.Context = ContextCorrection
			conv.clearOffer()
			return resolved{}, &step{trigger: TriggerRespond, conv: conv, say: renderUnknownProfessional(name)}, nil
		}
		return resolved{professional: p, specialty: specialtyName(p, intent.Specialty)}, nil, nil
	}

	pros, err := e.directory.ListProfessionalsBySpecialty(ctx, intent.Specialty)
	if err != nil {
		if errors.Is(err, scheduling.ErrNotFound) {
			pros = nil
		} else {
			e.directoryFailed(in, "list_professionals_by_specialty", err)
			return resolved{}, nil, err
		}
	}
	if len(pros) == 0 {
		name := intent.Specialty
		conv.Intent = conv.Intent.Clear(booking.FieldSpecialty)
		conv.Context = ContextCorrection
		conv.clearOffer()
		return resolved{}, &step{trigger: TriggerRespond, conv: conv, say: renderUnknownSpecialty(name)}, nil
	}
	return resolved{professional: pros[0], specialty: specialtyName(pros[0], intent.Specialty)}, nil, nil
}

func specialtyName(p scheduling.Professional, requested string) string {
	if requested != "" {
		if s, ok := scheduling.MatchSpecialty(requested, p.Specialties); ok {
			return s.Name
		}
	}
	if requested == "" && len(p.Specialties) > 0 {
		return p.Specialties[0].Name
	}
	return requested
}

func (e *Engine) checkAvailability(ctx context.Context, conv Conversation, in *turn) step {
	who, correction, err := e.resolveProfessional(ctx, conv, in)
	if err != nil {
		conv.Context = ContextAvailabilityRetry
		return step{trigger: TriggerRespond, conv: conv, say: msgDirectoryDown}
	}
	if correction != nil {
		return *correction
	}

	var preferred *time.Time
	requested := ""
	if t, ok := e.dates.Resolve(ctx, conv.Intent.DatePreference, in.now); ok {
		preferred = &t
		requested = t.Format("2006-01-02")
	}
	shift := conv.Intent.EffectiveShift()

	res, err := e.resolver.Search(ctx, who.professional.ID, shift, in.now, preferred, e.cfg.monthLookahead)
	if err != nil {
		e.directoryFailed(in, "find_slot", err)
		conv.Context = ContextAvailabilityRetry
		return step{trigger: TriggerRespond, conv: conv, say: msgDirectoryDown}
	}

	if !res.Found() {
		conv.clearOffer()
		if preferred != nil {
			conv.Context = ContextDateSelection
			return step{trigger: TriggerRespond, conv: conv, say: renderNoSlotsForDate(requested, shift)}
		}
		conv.Context = ContextTimeShift
		return step{trigger: TriggerRespond, conv: conv, say: renderNoSlots(shift)}
	}

	slots := preferTime(res.Slots, conv.Intent.SpecificTime)
	presented := availability.Cap(slots, availability.MaxPresented)
	offer := Offer{
		ProfessionalID:   who.professional.ID,
		ProfessionalName: who.professional.DisplayName(),
		Specialty:        who.specialty,
		Date:             res.Date,
		Slots:            presented,
		More:             append([]availability.Slot(nil), slots[len(presented):]...),
		MatchedPreferred: res.MatchedPreferred,
	}
	conv.Offer = &offer
	conv.Selection = nil
	conv.Confirmed = false
	conv.Context = ContextSlotSelection
	return step{trigger: TriggerRespond, conv: conv, say: renderOffer(offer, requested)}
}

// preferTime moves the slot starting at hhmm to the front so it is always
// among the presented options.
func preferTime(slots []availability.Slot, hhmm string) []availability.Slot {
	out := append([]availability.Slot(nil), slots...)
	if hhmm == "" {
		return out
	}
	for i, s := range out {
		if s.StartTime == hhmm {
			copy(out[1:i+1], out[:i])
			out[0] = s
			break
		}
	}
	return out
}

func (e *Engine) confirm(ctx context.Context, conv Conversation, in *turn) step {
	if conv.Offer == nil || len(conv.Offer.Slots) == 0 {
		return step{trigger: TriggerNewData, conv: conv}
	}

	slot, ok := availability.DetectSelection(in.text, conv.Offer.Slots)
	if !ok {
		slot, ok = e.acceptsOnlySlot(in.text, conv.Offer.Slots)
	}
	if ok {
		conv.Selection = &slot
		conv.Context = ContextFinalConfirmation
		return step{trigger: TriggerRespond, conv: conv, say: renderSummary(conv)}
	}

	if availability.WantsMoreOptions(in.text) && len(conv.Offer.More) > 0 {
		next := availability.Cap(conv.Offer.More, availability.MaxPresented)
		offer := *conv.Offer
		offer.Slots = append([]availability.Slot(nil), next...)
		offer.More = append([]availability.Slot(nil), conv.Offer.More[len(next):]...)
		conv.Offer = &offer
		return step{trigger: TriggerRespond, conv: conv, say: renderReoffer(offer)}
	}

	if availability.WantsMoreOptions(in.text) {
		conv.Context = ContextDateSelection
		return step{trigger: TriggerRespond, conv: conv, say: renderNoMoreSlots(*conv.Offer)}
	}
	if carriesBookingData(in.text) {
		conv.clearOffer()
		return step{trigger: TriggerNewData, conv: conv}
	}
	return step{trigger: TriggerRespond, conv: conv, say: renderReoffer(*conv.Offer)}
}

// acceptsOnlySlot treats a plain "yes" to a single offered slot as picking it.
func (e *Engine) acceptsOnlySlot(text string, offered []availability.Slot) (availability.Slot, bool) {
	if len(offered) != 1 || carriesBookingData(text) {
		return availability.Slot{}, false
	}
	if e.classifier.ClassifyDeterministic(text) != confirmation.Confirmed {
		return availability.Slot{}, false
	}
	return offered[0], true
}

// carriesBookingData reports whether a reply names a time, date, shift,
// professional or specialty.
func carriesBookingData(text string) bool {
	return !booking.ExtractDeterministic(text).IsZero()
}

func (e *Engine) finalizeConfirmation(ctx context.Context, conv Conversation, in *turn) step {
	if conv.Offer == nil || conv.Selection == nil {
		conv.clearOffer()
		return step{trigger: TriggerRejectedWithData, conv: conv}
	}

	switch e.classifier.Classify(ctx, in.text) {
	case confirmation.Confirmed:
		conv.Confirmed = true
		return step{trigger: TriggerConfirmed, conv: conv}
	case confirmation.RejectedGeneric:
		say := msgWhatToChange
		if field, ok := e.classifier.IdentifyRejectionTarget(in.text); ok {
			say = correctionQuestion(field)
		}
		conv.clearOffer()
		conv.Context = ContextCorrection
		return step{trigger: TriggerRespond, conv: conv, say: say}
	case confirmation.RejectedWithData:
		conv.clearOffer()
		if field, ok := e.classifier.IdentifyRejectionTarget(in.text); ok {
			conv.Intent = clearRejected(conv.Intent, field)
		}
		return step{trigger: TriggerRejectedWithData, conv: conv}
	default:
		return step{trigger: TriggerRespond, conv: conv, say: msgConfirmReprompt + " " + renderSummary(conv)}
	}
}

// clearRejected drops the field the patient rejected so that collection
// either merges the new value or asks for it again. Shift words count as time
// rejections, so both go together.
func clearRejected(intent booking.Intent, field booking.FieldID) booking.Intent {
	intent = intent.Clear(field)
	if field == booking.FieldSpecificTime {
		intent = intent.Clear(booking.FieldShiftPreference)
	}
	return intent
}

func (e *Engine) book(ctx context.Context, conv Conversation, in *turn) step {
	slot := *conv.Selection
	if t, ok := availability.ExtractTime(in.text); ok {
		for _, s := range conv.Offer.Slots {
			if s.StartTime == t {
				slot = s
				break
			}
		}
	}

	failed := func(c Conversation) step {
		c.Confirmed = false
		c.Context = ContextFinalConfirmation
		e.cfg.metrics.ObserveBooking("failed")
		return step{trigger: TriggerRespond, conv: c, say: msgBookingFailed}
	}
	gone := func(c Conversation) step {
		e.cfg.metrics.ObserveBooking("slot_gone")
		in.notice = msgSlotTaken
		c.clearOffer()
		return step{trigger: TriggerSlotGone, conv: c}
	}

	pro, specialtyID, err := e.bookingProfessional(ctx, conv, in)
	if err != nil {
		return failed(conv)
	}
	if pro.ID == "" {
		name := conv.Offer.ProfessionalName
		conv.Intent = conv.Intent.Clear(booking.FieldProfessional)
		conv.clearOffer()
		conv.Context = ContextCorrection
		e.cfg.metrics.ObserveBooking("not_found")
		return step{trigger: TriggerRespond, conv: conv, say: renderUnknownProfessional(name)}
	}

	open, err := e.resolver.Contains(ctx, pro.ID, slot)
	if err != nil {
		e.directoryFailed(in, "revalidate_slot", err)
		return failed(conv)
	}
	if !open {
		return gone(conv)
	}

	end := slot.EndTime
	if end == "" {
		end = scheduling.DefaultEndTime(slot.StartTime)
	}
	confirmed, err := e.directory.SubmitBooking(ctx, scheduling.BookingRequest{
		Date:           slot.Date,
		StartTime:      slot.StartTime,
		EndTime:        end,
		PatientName:    conv.Intent.PatientName,
		Phone:          phoneFromID(conv.ID),
		ProfessionalID: pro.ID,
		SpecialtyID:    specialtyID,
	})
	switch {
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		return gone(conv)
	case errors.Is(err, scheduling.ErrNotFound):
		e.directoryFailed(in, "submit_booking", err)
		conv.Intent = conv.Intent.Clear(booking.FieldProfessional)
		conv.clearOffer()
		conv.Context = ContextCorrection
		e.cfg.metrics.ObserveBooking("not_found")
		return step{trigger: TriggerRespond, conv: conv, say: renderUnknownProfessional(pro.DisplayName())}
	case err != nil:
		e.directoryFailed(in, "submit_booking", err)
		return failed(conv)
	}

	rec := BookingRecord{
		ID:           confirmed.ID,
		Date:         slot.Date,
		StartTime:    slot.StartTime,
		Professional: conv.Offer.ProfessionalName,
		Specialty:    conv.Offer.Specialty,
		PatientName:  conv.Intent.PatientName,
		BookedAt:     in.now,
	}
	conv.LastBooking = &rec
	conv.resetBooking()
	conv.Context = ContextBookingCompleted
	e.cfg.metrics.ObserveBooking("success")
	in.logger.Info("dialogue: booking submitted", "booking_id", rec.ID, "date", rec.Date, "start_time", rec.StartTime)
	return step{trigger: TriggerRespond, conv: conv, say: renderBooked(rec)}
}

// bookingProfessional re-reads the offered professional from the directory
// and resolves the specialty identifier. A zero professional with a nil error
// means the professional no longer exists.
func (e *Engine) bookingProfessional(ctx context.Context, conv Conversation, in *turn) (scheduling.Professional, string, error) {
	pros, err := e.directory.ListProfessionals(ctx)
	if err != nil {
		e.directoryFailed(in, "list_professionals", err)
		return scheduling.Professional{}, "", err
	}
	var pro scheduling.Professional
	for _, p := range pros {
		if p.ID == conv.Offer.ProfessionalID {
			pro = p
			break
		}
	}
	if pro.ID == "" {
		if p, ok := scheduling.MatchProfessional(conv.Offer.ProfessionalName, pros); ok {
			pro = p
		}
	}
	if pro.ID == "" {
		return scheduling.Professional{}, "", nil
	}

	specialty := conv.Offer.Specialty
	if specialty == "" {
		specialty = conv.Intent.Specialty
	}
	if specialty == "" {
		return pro, "", nil
	}
	if s, ok := scheduling.MatchSpecialty(specialty, pro.Specialties); ok && s.ID != "" {
		return pro, s.ID, nil
	}
	specs, err := e.directory.ListSpecialties(ctx)
	if err != nil {
		e.directoryFailed(in, "list_specialties", err)
		return pro, "", nil
	}
	if s, ok := scheduling.MatchSpecialty(specialty, specs); ok {
		return pro, s.ID, nil
	}
	return pro, "", nil
}
