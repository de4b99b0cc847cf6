// Package confirmation classifies the patient's answer to a booking summary.
package confirmation

import (
	"context"
	"strings"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/booking"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/textnorm"
	"github.com/wolfman30/clinic-scheduling-assistant/pkg/logging"
)

// Label is the fixed confirmation taxonomy.
type Label string

const (
	Confirmed        Label = "confirmed"
	RejectedGeneric  Label = "rejected_generic"
	RejectedWithData Label = "rejected_with_data"
	Unclear          Label = "unclear"
)

// ParseLabel accepts only the four taxonomy labels.
func ParseLabel(s string) (Label, bool) {
	switch l := Label(strings.ToLower(strings.TrimSpace(s))); l {
	case Confirmed, RejectedGeneric, RejectedWithData, Unclear:
		return l, true
	default:
		return "", false
	}
}

// LabelSource is the language understanding call used first.
type LabelSource interface {
	ClassifyConfirmation(ctx context.Context, text string) (string, error)
}

// Classifier labels confirmation replies, falling back to the lexicon when
// the language service fails or answers outside the taxonomy.
type Classifier struct {
	source  LabelSource
	lexicon *Lexicon
	logger  *logging.Logger
}

// NewClassifier creates a classifier. A nil source classifies with the lexicon only.
func NewClassifier(source LabelSource, lexicon *Lexicon, logger *logging.Logger) *Classifier {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{source: source, lexicon: lexicon, logger: logger}
}

// Classify returns the label for reply.
func (c *Classifier) Classify(ctx context.Context, reply string) Label {
	if c.source != nil {
		raw, err := c.source.ClassifyConfirmation(ctx, reply)
		if err == nil {
			if label, ok := ParseLabel(raw); ok {
				return label
			}
			c.logger.Warn("confirmation: label outside taxonomy", "label", raw)
		} else {
			c.logger.Warn("confirmation: classification failed", "error", err)
		}
	}
	return c.ClassifyDeterministic(reply)
}

// ClassifyDeterministic applies the lexicon rules: an affirmative without
// negation confirms; a bare negation rejects generically; a digit or field
// keyword rejects with data; anything else is unclear.
func (c *Classifier) ClassifyDeterministic(reply string) Label {
	affirmative := textnorm.ContainsAny(reply, c.lexicon.Affirmative)
	negative := textnorm.ContainsAny(reply, c.lexicon.Negative)
	data := c.hasFieldData(reply)

	switch {
	case affirmative && !negative:
		return Confirmed
	case negative && !data:
		return RejectedGeneric
	case data:
		return RejectedWithData
	default:
		return Unclear
	}
}

func (c *Classifier) hasFieldData(reply string) bool {
	if textnorm.HasDigit(reply) {
		return true
	}
	for _, words := range c.lexicon.Fields {
		if textnorm.ContainsAny(reply, words) {
			return true
		}
	}
	return false
}

// IdentifyRejectionTarget names the single field a rejection is about.
// Replies touching several fields, or none, return false.
func (c *Classifier) IdentifyRejectionTarget(reply string) (booking.FieldID, bool) {
	hits := make(map[booking.FieldID]bool)
	if _, ok := booking.FindTime(reply); ok {
		hits[booking.FieldSpecificTime] = true
	}
	if _, ok := booking.FindDatePhrase(reply); ok {
		hits[booking.FieldDatePreference] = true
	}
	if _, ok := booking.FindSpecialty(reply); ok {
		hits[booking.FieldSpecialty] = true
	}
	for field, words := range c.lexicon.Fields {
		if textnorm.ContainsAny(reply, words) {
			hits[field] = true
		}
	}
	if len(hits) != 1 {
		return "", false
	}
	for field := range hits {
		return field, true
	}
	return "", false
}

// IsUncertain reports whether text expresses not knowing or not caring
// ("I don't know", "any is fine").
func (c *Classifier) IsUncertain(text string) bool {
	return textnorm.ContainsAny(text, c.lexicon.Uncertainty)
}
