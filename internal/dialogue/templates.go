package dialogue

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/availability"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/booking"
)

const (
	msgGreeting        = "Hello! I can help you book an appointment. Which specialty or professional are you looking for?"
	msgFarewell        = "Thank you for getting in touch. Take care!"
	msgOther           = "I can only help with booking medical appointments. Would you like to schedule one?"
	msgFallback        = "Sorry, I didn't quite understand. Could you rephrase that?"
	msgDirectoryDown   = "Sorry, I couldn't reach our scheduling system just now. Please send me a message again in a moment and I'll try again."
	msgStoreDown       = "Sorry, I'm having trouble right now. Please send your message again in a moment."
	msgBookingFailed   = "Sorry, I couldn't complete the booking right now. Reply \"yes\" in a moment and I'll try again."
	msgSlotTaken       = "Sorry, that time was just taken."
	msgWhatToChange    = "No problem. What would you like to change?"
	msgNoSpecialties   = "I couldn't find any specialties available right now."
	msgNoProfessionals = "I couldn't find professionals for that specialty right now. Which other specialty would you like?"
	msgPickFromOffer   = "Please choose one of the times below, or tell me another date or shift:"
	msgConfirmReprompt = "Just to be sure, should I book this appointment? Please answer yes or no."
)

var clarifyQuestions = map[booking.FieldID]string{
	booking.FieldSpecialtyOrProfessional: "Which specialty or professional would you like to see?",
	booking.FieldProfessional:            "Which professional would you like to see?",
	booking.FieldSpecialty:               "Which specialty would you like to book?",
	booking.FieldDatePreference:          "Which day would you prefer? You can also ask for the earliest available date.",
	booking.FieldShiftPreference:         "Do you prefer the morning or the afternoon?",
	booking.FieldSpecificTime:            "What time would you prefer on that day?",
	booking.FieldPatientName:             "What is the patient's full name?",
}

func clarifyQuestion(field booking.FieldID) string {
	if q, ok := clarifyQuestions[field]; ok {
		return q
	}
	return msgFallback
}

var correctionQuestions = map[booking.FieldID]string{
	booking.FieldSpecificTime:   "No problem. What time would you prefer instead?",
	booking.FieldDatePreference: "No problem. Which day would you prefer instead?",
	booking.FieldProfessional:   "No problem. Which professional would you prefer instead?",
	booking.FieldSpecialty:      "No problem. Which specialty would you like instead?",
}

func correctionQuestion(field booking.FieldID) string {
	if q, ok := correctionQuestions[field]; ok {
		return q
	}
	return msgWhatToChange
}

func formatDate(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("Monday, January 2")
}

func renderSlots(slots []availability.Slot) string {
	var b strings.Builder
	for i, s := range slots {
		fmt.Fprintf(&b, "\n%d. %s", i+1, s.StartTime)
	}
	return b.String()
}

func renderOffer(o Offer, requested string) string {
	var b strings.Builder
	if requested != "" && !o.MatchedPreferred {
		fmt.Fprintf(&b, "There are no openings on %s for that shift. ", formatDate(requested))
	}
	fmt.Fprintf(&b, "%s has these times on %s:", o.ProfessionalName, formatDate(o.Date))
	b.WriteString(renderSlots(o.Slots))
	b.WriteString("\nWhich one works for you?")
	return b.String()
}

func renderReoffer(o Offer) string {
	return msgPickFromOffer + renderSlots(o.Slots)
}

func renderNoMoreSlots(o Offer) string {
	return fmt.Sprintf("Those are all the openings on %s. Would you like another date or shift?", formatDate(o.Date))
}

func renderSummary(conv Conversation) string {
	o := conv.Offer
	s := conv.Selection
	var b strings.Builder
	b.WriteString("Please confirm: ")
	service := conv.Intent.ServiceType
	if service == "" {
		service = booking.DefaultServiceType
	}
	fmt.Fprintf(&b, "%s with %s", service, o.ProfessionalName)
	if o.Specialty != "" {
		fmt.Fprintf(&b, " (%s)", o.Specialty)
	}
	fmt.Fprintf(&b, " on %s at %s", formatDate(s.Date), s.StartTime)
	if name := strings.TrimSpace(conv.Intent.PatientName); name != "" {
		fmt.Fprintf(&b, " for %s", name)
	}
	b.WriteString(". Shall I book it?")
	return b.String()
}

func renderBooked(rec BookingRecord) string {
	return fmt.Sprintf("Your appointment with %s is booked for %s at %s. See you then!",
		rec.Professional, formatDate(rec.Date), rec.StartTime)
}

func renderNoSlotsForDate(requested string, shift booking.Shift) string {
	when := "that date"
	if requested != "" {
		when = formatDate(requested)
	}
	if shift != booking.ShiftNone {
		return fmt.Sprintf("There are no %s openings around %s. Would another shift or a later month work for you?", shift, when)
	}
	return fmt.Sprintf("There are no openings around %s. Would you like to try another date?", when)
}

func renderNoSlots(shift booking.Shift) string {
	if shift != booking.ShiftNone {
		return fmt.Sprintf("There are no %s openings in the coming weeks. Would another shift work for you?", shift)
	}
	return "There are no openings in the coming weeks. Would you like to try another shift or professional?"
}

func renderUnknownProfessional(name string) string {
	return fmt.Sprintf("I couldn't find a professional named %s. Could you check the name, or tell me the specialty instead?", name)
}

func renderUnknownSpecialty(name string) string {
	return fmt.Sprintf("I couldn't find the specialty %s. Which specialty would you like?", name)
}

func renderChoices(kind ChoiceKind, names []string) string {
	var b strings.Builder
	if kind == ChoiceProfessional {
		b.WriteString("These are our professionals:")
	} else {
		b.WriteString("These are our specialties:")
	}
	for i, n := range names {
		fmt.Fprintf(&b, "\n%d. %s", i+1, n)
	}
	if kind == ChoiceProfessional {
		b.WriteString("\nWhich one would you like to see?")
	} else {
		b.WriteString("\nWhich one would you like to book?")
	}
	return b.String()
}

func withNotice(notice, say string) string {
	notice = strings.TrimSpace(notice)
	if notice == "" {
		return say
	}
	if say == "" {
		return notice
	}
	return notice + " " + say
}
