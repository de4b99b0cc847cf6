package dialogue

import (
	"context"
	"strconv"
	"strings"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/booking"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/lus"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/textnorm"
)

var intentTriggers = map[string]Trigger{
	lus.IntentScheduling:     TriggerScheduling,
	lus.IntentSchedulingInfo: TriggerSchedulingInfo,
	lus.IntentSpecialtyPick:  TriggerSchedulingInfo,
	lus.IntentGreeting:       TriggerGreeting,
	lus.IntentFarewell:       TriggerFarewell,
	lus.IntentInfoQuery:      TriggerInfoQuery,
	lus.IntentOther:          TriggerOther,
	lus.IntentUnclear:        TriggerFallback,
}

func (e *Engine) orchestrate(ctx context.Context, conv Conversation, in *turn) step {
	if in.text == "" {
		return step{trigger: TriggerFallback, conv: conv}
	}
	switch conv.Context {
	case ContextSlotSelection:
		return step{trigger: TriggerAwaitSelection, conv: conv}
	case ContextFinalConfirmation:
		return step{trigger: TriggerAwaitConfirm, conv: conv}
	case ContextDateSelection, ContextTimeShift, ContextCorrection,
		ContextSpecialtySelection, ContextAvailabilityRetry:
		return step{trigger: TriggerSchedulingInfo, conv: conv}
	}

	label, err := e.lus.ClassifyIntent(ctx, in.text, string(conv.Context))
	if err != nil {
		e.cfg.metrics.ObserveFailure("lus", "classify_intent")
		in.logger.Warn("dialogue: intent classification failed", "error", err)
		return step{trigger: TriggerFallback, conv: conv}
	}
	trigger, ok := intentTriggers[label]
	if !ok {
		in.logger.Warn("dialogue: unknown intent label", "label", label)
		return step{trigger: TriggerFallback, conv: conv}
	}
	return step{trigger: trigger, conv: conv}
}

func (e *Engine) collectInitial(ctx context.Context, conv Conversation, in *turn) step {
	return e.collect(ctx, conv, in, e.cfg.initialWindow)
}

func (e *Engine) collectFollowUp(ctx context.Context, conv Conversation, in *turn) step {
	return e.collect(ctx, conv, in, e.cfg.followUpWindow)
}

func (e *Engine) collect(ctx context.Context, conv Conversation, in *turn, window int) step {
	extracted, err := e.lus.ExtractBookingFields(ctx, booking.Window(conv.Messages, window))
	if err != nil {
		e.cfg.metrics.ObserveFailure("lus", "extract_fields")
		in.logger.Warn("dialogue: field extraction failed, using keyword extraction", "error", err)
		extracted = booking.ExtractDeterministic(in.text)
	}

	if conv.Context == ContextSpecialtySelection && len(conv.Choices) > 0 {
		if picked, ok := pickChoice(in.text, conv.Choices, conv.ChoiceKind); ok {
			switch conv.ChoiceKind {
			case ChoiceProfessional:
				extracted.ProfessionalName = picked
			default:
				extracted.Specialty = picked
			}
		}
	}
	conv.Choices = nil
	conv.ChoiceKind = ""

	merged := booking.Merge(&conv.Intent, &extracted)
	conv.Intent = merged
	return step{trigger: TriggerCollected, conv: conv}
}

// pickChoice resolves a reply to a numbered list by position or by name.
func pickChoice(text string, choices []string, kind ChoiceKind) (string, bool) {
	fields := strings.Fields(textnorm.Fold(text))
	if len(fields) == 1 {
		if n, err := strconv.Atoi(fields[0]); err == nil && n >= 1 && n <= len(choices) {
			return choices[n-1], true
		}
	}
	if kind == ChoiceProfessional {
		pros := make([]scheduling.Professional, len(choices))
		for i, c := range choices {
			pros[i] = scheduling.Professional{Name: c}
		}
		if p, ok := scheduling.MatchProfessional(text, pros); ok {
			return p.Name, true
		}
		return "", false
	}
	specs := make([]scheduling.Specialty, len(choices))
	for i, c := range choices {
		specs[i] = scheduling.Specialty{Name: c}
	}
	if s, ok := scheduling.MatchSpecialty(text, specs); ok {
		return s.Name, true
	}
	return "", false
}

func (e *Engine) checkCompleteness(ctx context.Context, conv Conversation, in *turn) step {
	if field, missing := booking.NextMissingField(conv.Intent); missing {
		in.missing = field
		conv.Context = ContextInProgress
		return step{trigger: TriggerMissing, conv: conv}
	}
	return step{trigger: TriggerComplete, conv: conv}
}

func (e *Engine) clarify(ctx context.Context, conv Conversation, in *turn) step {
	field := in.missing
	blocking := field == booking.FieldSpecialtyOrProfessional || field == booking.FieldSpecialty || field == booking.FieldProfessional
	if blocking && in.tool == nil && e.classifier.IsUncertain(in.text) {
		return step{trigger: TriggerUncertain, conv: conv}
	}

	question := clarifyQuestion(field)
	params := map[string]string{
		"missing_field":  string(field),
		"reference_text": question,
		"patient_name":   conv.Intent.PatientName,
		"professional":   conv.Intent.ProfessionalName,
		"specialty":      conv.Intent.Specialty,
		"date":           conv.Intent.DatePreference,
	}
	say := e.utter(ctx, in, lus.UtteranceClarify, params, question)
	return step{trigger: TriggerRespond, conv: conv, say: say}
}

// toolResult is the output of a directory lookup made by ToolInvoke.
type toolResult struct {
	kind  ChoiceKind
	names []string
	err   error
}

var professionalWords = []string{
	"doctor", "doctors", "professional", "professionals", "who", "medico",
	"medicos", "medica", "medicas", "profissional", "profissionais", "quem",
}

func (e *Engine) toolInvoke(ctx context.Context, conv Conversation, in *turn) step {
	if in.tool == nil {
		in.tool = e.lookup(ctx, conv, in)
		return step{trigger: TriggerToolResult, conv: conv}
	}

	res := in.tool
	if res.err != nil {
		conv.Context = ContextAvailabilityRetry
		return step{trigger: TriggerRespond, conv: conv, say: msgDirectoryDown}
	}
	if len(res.names) == 0 {
		say := msgNoSpecialties
		if res.kind == ChoiceProfessional {
			say = msgNoProfessionals
			conv.Intent = conv.Intent.Clear(booking.FieldSpecialty)
		}
		if conv.Context == ContextNone {
			conv.Context = ContextInProgress
		}
		return step{trigger: TriggerRespond, conv: conv, say: say}
	}
	conv.Choices = res.names
	conv.ChoiceKind = res.kind
	conv.Context = ContextSpecialtySelection
	return step{trigger: TriggerRespond, conv: conv, say: renderChoices(res.kind, res.names)}
}

func (e *Engine) lookup(ctx context.Context, conv Conversation, in *turn) *toolResult {
	specialty := strings.TrimSpace(conv.Intent.Specialty)
	if specialty == "" {
		if s, ok := booking.FindSpecialty(in.text); ok {
			specialty = s
		}
	}
	wantsPros := textnorm.ContainsAny(in.text, professionalWords) || in.missing == booking.FieldProfessional
	if specialty != "" && wantsPros {
		pros, err := e.directory.ListProfessionalsBySpecialty(ctx, specialty)
		if err != nil {
			e.directoryFailed(in, "list_professionals", err)
			return &toolResult{kind: ChoiceProfessional, err: err}
		}
		names := make([]string, 0, len(pros))
		for _, p := range pros {
			names = append(names, p.DisplayName())
		}
		return &toolResult{kind: ChoiceProfessional, names: names}
	}

	specs, err := e.directory.ListSpecialties(ctx)
	if err != nil {
		e.directoryFailed(in, "list_specialties", err)
		return &toolResult{kind: ChoiceSpecialty, err: err}
	}
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	return &toolResult{kind: ChoiceSpecialty, names: names}
}

func (e *Engine) greet(ctx context.Context, conv Conversation, in *turn) step {
	say := e.utter(ctx, in, lus.UtteranceGreeting, map[string]string{
		"patient_name":   conv.Intent.PatientName,
		"reference_text": msgGreeting,
	}, msgGreeting)
	return step{trigger: TriggerRespond, conv: conv, say: say}
}

func (e *Engine) farewell(ctx context.Context, conv Conversation, in *turn) step {
	say := e.utter(ctx, in, lus.UtteranceFarewell, map[string]string{
		"patient_name":   conv.Intent.PatientName,
		"reference_text": msgFarewell,
	}, msgFarewell)
	conv.resetBooking()
	conv.Context = ContextConversationEnded
	return step{trigger: TriggerRespond, conv: conv, say: say}
}

func (e *Engine) other(ctx context.Context, conv Conversation, in *turn) step {
	say := e.utter(ctx, in, lus.UtteranceOther, map[string]string{"reference_text": msgOther}, msgOther)
	return step{trigger: TriggerRespond, conv: conv, say: say}
}

func (e *Engine) fallback(ctx context.Context, conv Conversation, in *turn) step {
	if in.text == "" {
		return step{trigger: TriggerRespond, conv: conv, say: msgFallback}
	}
	say := e.utter(ctx, in, lus.UtteranceFallback, map[string]string{"reference_text": msgFallback}, msgFallback)
	return step{trigger: TriggerRespond, conv: conv, say: say}
}
