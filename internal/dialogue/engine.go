// Package dialogue runs the appointment booking conversation: a graph of
// named states driven one patient message at a time, with the conversation
// checkpointed between turns.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/availability"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/booking"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/confirmation"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/lus"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling-assistant/pkg/logging"
)

const (
	defaultInitialWindow  = 5
	defaultFollowUpWindow = 3
	defaultMaxTransitions = 8
	defaultMonthLookahead = 1
)

// Store persists opaque conversation checkpoints. Load returns nil data for
// an unknown conversation.
type Store interface {
	Load(ctx context.Context, conversationID string) ([]byte, error)
	Save(ctx context.Context, conversationID string, data []byte) error
}

// Notifier receives every reply after the turn is committed.
type Notifier interface {
	Notify(ctx context.Context, reply Reply) error
}

// Reply is the outcome of one inbound message.
type Reply struct {
	ConversationID string     `json:"conversation_id"`
	Utterances     []string   `json:"utterances"`
	State          StateID    `json:"state"`
	Context        ContextTag `json:"context"`
}

type engineConfig struct {
	logger         *logging.Logger
	metrics        *metrics.DialogueMetrics
	notifier       Notifier
	lexicon        *confirmation.Lexicon
	clock          func() time.Time
	location       *time.Location
	initialWindow  int
	followUpWindow int
	maxTransitions int
	monthLookahead int
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLogger sets the engine logger.
func WithLogger(logger *logging.Logger) Option {
	return func(cfg *engineConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMetrics records turns and failures. Nil disables metrics.
func WithMetrics(m *metrics.DialogueMetrics) Option {
	return func(cfg *engineConfig) {
		cfg.metrics = m
	}
}

// WithNotifier forwards committed replies, best effort.
func WithNotifier(n Notifier) Option {
	return func(cfg *engineConfig) {
		cfg.notifier = n
	}
}

// WithLexicon replaces the embedded confirmation lexicon.
func WithLexicon(lex *confirmation.Lexicon) Option {
	return func(cfg *engineConfig) {
		if lex != nil {
			cfg.lexicon = lex
		}
	}
}

// WithClock overrides the time source used to resolve relative dates.
func WithClock(clock func() time.Time) Option {
	return func(cfg *engineConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithLocation sets the clinic timezone.
func WithLocation(loc *time.Location) Option {
	return func(cfg *engineConfig) {
		if loc != nil {
			cfg.location = loc
		}
	}
}

// WithHistoryWindows sets how many recent messages go to extraction for the
// first and the follow-up collection.
func WithHistoryWindows(initial, followUp int) Option {
	return func(cfg *engineConfig) {
		if initial > 0 {
			cfg.initialWindow = initial
		}
		if followUp > 0 {
			cfg.followUpWindow = followUp
		}
	}
}

// WithMaxTransitions bounds how many handlers run in one turn.
func WithMaxTransitions(n int) Option {
	return func(cfg *engineConfig) {
		if n > 0 {
			cfg.maxTransitions = n
		}
	}
}

// WithMonthLookahead bounds how many following months the slot search extends into.
func WithMonthLookahead(n int) Option {
	return func(cfg *engineConfig) {
		if n >= 0 {
			cfg.monthLookahead = n
		}
	}
}

// Engine runs dialogue turns.
type Engine struct {
	lus         lus.Service
	directory   scheduling.Directory
	store       Store
	resolver    *availability.Resolver
	dates       *availability.DateResolver
	classifier  *confirmation.Classifier
	transitions transitionTable
	handlers    map[StateID]handlerFunc
	locks       *keyedMutex
	tracer      trace.Tracer
	cfg         engineConfig
}

// turn carries per-turn scratch data between handlers.
type turn struct {
	text    string
	now     time.Time
	logger  *logging.Logger
	missing booking.FieldID
	notice  string
	tool    *toolResult
}

// step is what a handler returns: the trigger, the updated conversation
// and, for handlers that answer the patient, the utterance.
type step struct {
	trigger Trigger
	conv    Conversation
	say     string
}

type handlerFunc func(ctx context.Context, conv Conversation, in *turn) step

// New builds an engine and validates its transition table.
func New(svc lus.Service, directory scheduling.Directory, store Store, opts ...Option) (*Engine, error) {
	if svc == nil {
		panic("dialogue: language service cannot be nil")
	}
	if directory == nil {
		panic("dialogue: scheduling directory cannot be nil")
	}
	if store == nil {
		panic("dialogue: checkpoint store cannot be nil")
	}

	cfg := engineConfig{
		logger:         logging.Default(),
		clock:          time.Now,
		location:       time.UTC,
		initialWindow:  defaultInitialWindow,
		followUpWindow: defaultFollowUpWindow,
		maxTransitions: defaultMaxTransitions,
		monthLookahead: defaultMonthLookahead,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Engine{
		lus:         svc,
		directory:   directory,
		store:       store,
		resolver:    availability.NewResolver(directory, cfg.logger),
		dates:       availability.NewDateResolver(svc, cfg.logger),
		classifier:  confirmation.NewClassifier(svc, cfg.lexicon, cfg.logger),
		transitions: defaultTransitions(),
		locks:       newKeyedMutex(),
		tracer:      otel.Tracer("scheduling.internal.dialogue"),
		cfg:         cfg,
	}
	e.handlers = map[StateID]handlerFunc{
		StateOrchestrate:          e.orchestrate,
		StateGreet:                e.greet,
		StateFarewell:             e.farewell,
		StateCollectInitial:       e.collectInitial,
		StateCollectFollowUp:      e.collectFollowUp,
		StateCheckCompleteness:    e.checkCompleteness,
		StateClarify:              e.clarify,
		StateCheckAvailability:    e.checkAvailability,
		StateConfirm:              e.confirm,
		StateFinalizeConfirmation: e.finalizeConfirmation,
		StateBook:                 e.book,
		StateToolInvoke:           e.toolInvoke,
		StateFallback:             e.fallback,
		StateOther:                e.other,
	}
	if err := e.transitions.validate(e.handlers); err != nil {
		return nil, err
	}
	return e, nil
}

// HandleInboundMessage runs one turn for the conversation. The reply is always
// populated; the error is non-nil when the checkpoint could not be loaded or
// saved. A failed load answers with an apology and leaves the stored
// checkpoint untouched.
func (e *Engine) HandleInboundMessage(ctx context.Context, conversationID, text string) (Reply, error) {
	unlock := e.locks.Lock(conversationID)
	defer unlock()

	ctx, span := e.tracer.Start(ctx, "dialogue.turn")
	defer span.End()
	started := time.Now()
	logger := e.cfg.logger.ForConversation(conversationID)

	loaded, err := e.load(ctx, conversationID, logger)
	if err != nil {
		span.RecordError(err)
		reply := Reply{
			ConversationID: conversationID,
			Utterances:     []string{msgStoreDown},
			State:          StateFallback,
		}
		e.cfg.metrics.ObserveTurn(string(StateFallback), "", time.Since(started).Seconds())
		e.notify(ctx, reply, logger)
		return reply, fmt.Errorf("dialogue: load checkpoint: %w", err)
	}
	text = strings.TrimSpace(text)
	if text != "" {
		loaded.Messages = append(loaded.Messages, booking.Message{Role: booking.RoleUser, Text: text})
	}

	in := &turn{text: text, now: e.cfg.clock().In(e.cfg.location), logger: logger}
	conv, last, say := e.run(ctx, loaded, in)

	conv.Messages = append(conv.Messages, booking.Message{Role: booking.RoleAssistant, Text: say})
	conv.LastState = last
	conv.UpdatedAt = in.now
	reply := Reply{
		ConversationID: conversationID,
		Utterances:     []string{say},
		State:          last,
		Context:        conv.Context,
	}
	span.SetAttributes(
		attribute.String("dialogue.state", string(last)),
		attribute.String("dialogue.context", string(conv.Context)),
	)
	e.cfg.metrics.ObserveTurn(string(last), string(conv.Context), time.Since(started).Seconds())

	data, err := conv.encode()
	if err == nil {
		err = e.store.Save(ctx, conversationID, data)
	}
	if err != nil {
		span.RecordError(err)
		e.cfg.metrics.ObserveFailure("store", "save")
		logger.Error("dialogue: failed to save checkpoint", "error", err)
		return reply, fmt.Errorf("dialogue: save checkpoint: %w", err)
	}

	logger.Info("dialogue turn handled", "state", last, "context", conv.Context)
	e.notify(ctx, reply, logger)
	return reply, nil
}

// load returns the stored conversation. Store errors are returned so the turn
// can be abandoned; a checkpoint that cannot be decoded starts fresh.
func (e *Engine) load(ctx context.Context, conversationID string, logger *logging.Logger) (Conversation, error) {
	data, err := e.store.Load(ctx, conversationID)
	if err != nil {
		e.cfg.metrics.ObserveFailure("store", "load")
		logger.Error("dialogue: failed to load checkpoint", "error", err)
		return Conversation{}, err
	}
	conv, err := decodeConversation(conversationID, data)
	if err != nil {
		logger.Error("dialogue: discarding unreadable checkpoint", "error", err)
		return newConversation(conversationID), nil
	}
	return conv, nil
}

// run walks the graph from Orchestrate until a handler leads to End. It
// returns the committed conversation, the last state that ran and the single
// utterance of the turn.
func (e *Engine) run(ctx context.Context, loaded Conversation, in *turn) (Conversation, StateID, string) {
	conv := loaded.clone()
	state := StateOrchestrate
	for hops := 0; ; hops++ {
		if hops >= e.cfg.maxTransitions {
			e.cfg.metrics.ObserveLoopGuard()
			in.logger.Warn("dialogue: transition limit reached", "state", state, "limit", e.cfg.maxTransitions)
			return loaded.clone(), StateFallback, msgFallback
		}

		res := e.handlers[state](ctx, conv.clone(), in)
		conv = res.conv
		next, ok := e.transitions.next(state, res.trigger)
		if !ok {
			in.logger.Error("dialogue: no transition", "state", state, "trigger", res.trigger)
			return loaded.clone(), StateFallback, msgFallback
		}
		e.cfg.metrics.ObserveTransition(string(state), string(res.trigger))
		in.logger.Debug("dialogue: transition", "from", state, "trigger", res.trigger, "to", next)

		if next == StateEnd {
			say := withNotice(in.notice, res.say)
			if strings.TrimSpace(say) == "" {
				say = msgFallback
			}
			return conv, state, say
		}
		state = next
	}
}

func (e *Engine) notify(ctx context.Context, reply Reply, logger *logging.Logger) {
	if e.cfg.notifier == nil {
		return
	}
	if err := e.cfg.notifier.Notify(ctx, reply); err != nil {
		e.cfg.metrics.ObserveFailure("notifier", "notify")
		logger.Warn("dialogue: reply notification failed", "error", err)
	}
}

// utter asks the language service for a message and falls back to the
// template when it fails.
func (e *Engine) utter(ctx context.Context, in *turn, kind lus.UtteranceKind, params map[string]string, fallback string) string {
	text, err := e.lus.GenerateUtterance(ctx, kind, params)
	if err != nil || strings.TrimSpace(text) == "" {
		if err == nil {
			err = errors.New("empty utterance")
		}
		e.cfg.metrics.ObserveFailure("lus", "generate_utterance")
		in.logger.Warn("dialogue: utterance generation failed, using template", "kind", kind, "error", err)
		return fallback
	}
	return text
}

func (e *Engine) directoryFailed(in *turn, call string, err error) {
	e.cfg.metrics.ObserveFailure("directory", call)
	in.logger.Error("dialogue: directory call failed", "call", call, "error", err, "connectivity", scheduling.IsConnectivity(err))
}
