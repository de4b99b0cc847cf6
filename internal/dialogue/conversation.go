package dialogue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/availability"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/booking"
)

// ContextTag records what the assistant is waiting for. It takes priority
// over intent classification when routing the next message.
type ContextTag string

const (
	ContextNone               ContextTag = ""
	ContextInProgress         ContextTag = "scheduling_in_progress"
	ContextSlotSelection      ContextTag = "awaiting_slot_selection"
	ContextDateSelection      ContextTag = "awaiting_date_selection"
	ContextTimeShift          ContextTag = "awaiting_time_shift"
	ContextCorrection         ContextTag = "awaiting_correction"
	ContextFinalConfirmation  ContextTag = "awaiting_final_confirmation"
	ContextSpecialtySelection ContextTag = "awaiting_specialty_selection"
	ContextAvailabilityRetry  ContextTag = "awaiting_availability_retry"
	ContextBookingCompleted   ContextTag = "booking_completed"
	ContextConversationEnded  ContextTag = "conversation_ended"
)

// Offer is the set of slots last shown to the patient.
type Offer struct {
	ProfessionalID   string              `json:"professional_id"`
	ProfessionalName string              `json:"professional_name"`
	Specialty        string              `json:"specialty,omitempty"`
	Date             string              `json:"date"`
	Slots            []availability.Slot `json:"slots"`
	More             []availability.Slot `json:"more,omitempty"`
	MatchedPreferred bool                `json:"matched_preferred"`
}

// ChoiceKind names what a numbered list shown to the patient contains.
type ChoiceKind string

const (
	ChoiceSpecialty    ChoiceKind = "specialty"
	ChoiceProfessional ChoiceKind = "professional"
)

// BookingRecord is the last appointment booked in the conversation.
type BookingRecord struct {
	ID           string    `json:"id,omitempty"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"`
	Professional string    `json:"professional"`
	Specialty    string    `json:"specialty,omitempty"`
	PatientName  string    `json:"patient_name,omitempty"`
	BookedAt     time.Time `json:"booked_at"`
}

// Conversation is the checkpointed state of one patient conversation.
type Conversation struct {
	ID          string             `json:"id"`
	Intent      booking.Intent     `json:"intent"`
	Context     ContextTag         `json:"context"`
	Messages    []booking.Message  `json:"messages"`
	Offer       *Offer             `json:"offer,omitempty"`
	Selection   *availability.Slot `json:"selection,omitempty"`
	Choices     []string           `json:"choices,omitempty"`
	ChoiceKind  ChoiceKind         `json:"choice_kind,omitempty"`
	Confirmed   bool               `json:"confirmed"`
	LastBooking *BookingRecord     `json:"last_booking,omitempty"`
	LastState   StateID            `json:"last_state,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func newConversation(id string) Conversation {
	return Conversation{ID: id, Intent: booking.Merge(nil, nil)}
}

func decodeConversation(id string, data []byte) (Conversation, error) {
	if len(data) == 0 {
		return newConversation(id), nil
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return Conversation{}, fmt.Errorf("dialogue: decode checkpoint: %w", err)
	}
	if conv.ID == "" {
		conv.ID = id
	}
	return conv, nil
}

func (c Conversation) encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("dialogue: encode checkpoint: %w", err)
	}
	return data, nil
}

// clone returns a deep copy so handlers never alias the loaded snapshot.
func (c Conversation) clone() Conversation {
	out := c
	out.Messages = append([]booking.Message(nil), c.Messages...)
	out.Choices = append([]string(nil), c.Choices...)
	if c.Offer != nil {
		o := *c.Offer
		o.Slots = append([]availability.Slot(nil), c.Offer.Slots...)
		o.More = append([]availability.Slot(nil), c.Offer.More...)
		out.Offer = &o
	}
	if c.Selection != nil {
		s := *c.Selection
		out.Selection = &s
	}
	if c.LastBooking != nil {
		b := *c.LastBooking
		out.LastBooking = &b
	}
	return out
}

// resetBooking drops everything collected for the current appointment.
func (c *Conversation) resetBooking() {
	c.Intent = booking.Merge(nil, nil)
	c.Offer = nil
	c.Selection = nil
	c.Choices = nil
	c.ChoiceKind = ""
	c.Confirmed = false
}

func (c *Conversation) clearOffer() {
	c.Offer = nil
	c.Selection = nil
	c.Confirmed = false
}

// phoneFromID returns the digits of a phone-shaped conversation id such as
// "+5511999990000" or "whatsapp:+5511999990000".
func phoneFromID(id string) string {
	if i := strings.LastIndex(id, ":"); i >= 0 {
		id = id[i+1:]
	}
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
		default:
			return ""
		}
	}
	digits := b.String()
	if len(digits) < 8 || len(digits) > 15 {
		return ""
	}
	return digits
}
