// Package lus is the language understanding service: intent labels, field
// extraction, short utterances, date translation and confirmation labels,
// all backed by a pluggable LLM provider.
package lus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/booking"
	"github.com/wolfman30/clinic-scheduling-assistant/pkg/logging"
)

// Intent labels returned by ClassifyIntent.
const (
	IntentScheduling     = "scheduling"
	IntentSchedulingInfo = "scheduling_info"
	IntentGreeting       = "greeting"
	IntentFarewell       = "farewell"
	IntentInfoQuery      = "info_query"
	IntentSpecialtyPick  = "specialty_pick"
	IntentOther          = "other"
	IntentUnclear        = "unclear"
)

// ErrEmptyResponse is returned when the model answered with no usable text.
var ErrEmptyResponse = errors.New("lus: empty model response")

// Service is what the dialogue engine needs from language understanding.
// Every call may fail; callers own the deterministic fallback.
type Service interface {
	ClassifyIntent(ctx context.Context, text, contextTag string) (string, error)
	ExtractBookingFields(ctx context.Context, history []booking.Message) (booking.Intent, error)
	GenerateUtterance(ctx context.Context, kind UtteranceKind, params map[string]string) (string, error)
	TranslateRelativeDate(ctx context.Context, phrase string, today time.Time) (string, error)
	ClassifyConfirmation(ctx context.Context, text string) (string, error)
}

const (
	defaultTimeout     = 15 * time.Second
	defaultTemperature = 0.2
	labelMaxTokens     = 16
	extractMaxTokens   = 400
	utteranceMaxTokens = 200
)

type serviceConfig struct {
	model       string
	temperature float32
	timeout     time.Duration
	logger      *logging.Logger
}

// ServiceOption configures an LLMService.
type ServiceOption func(*serviceConfig)

// WithModel overrides the provider's default model.
func WithModel(model string) ServiceOption {
	return func(cfg *serviceConfig) {
		cfg.model = strings.TrimSpace(model)
	}
}

// WithTemperature sets the temperature for generated utterances. Labels and
// extraction always run at temperature zero.
func WithTemperature(t float32) ServiceOption {
	return func(cfg *serviceConfig) {
		cfg.temperature = t
	}
}

// WithTimeout bounds every model call.
func WithTimeout(d time.Duration) ServiceOption {
	return func(cfg *serviceConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *logging.Logger) ServiceOption {
	return func(cfg *serviceConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// LLMService implements Service on top of an LLMClient.
type LLMService struct {
	client LLMClient
	cfg    serviceConfig
}

var _ Service = (*LLMService)(nil)

// NewLLMService creates the service.
func NewLLMService(client LLMClient, opts ...ServiceOption) *LLMService {
	if client == nil {
		panic("lus: llm client cannot be nil")
	}
	cfg := serviceConfig{
		temperature: defaultTemperature,
		timeout:     defaultTimeout,
		logger:      logging.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LLMService{client: client, cfg: cfg}
}

func (s *LLMService) complete(ctx context.Context, system, user string, maxTokens int32, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.timeout)
	defer cancel()

	resp, err := s.client.Complete(ctx, LLMRequest{
		Model:       s.cfg.model,
		System:      []string{system},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: user}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// ClassifyIntent labels the inbound message. Off-list answers are returned
// as-is so the caller can route them to its fallback.
func (s *LLMService) ClassifyIntent(ctx context.Context, text, contextTag string) (string, error) {
	user := fmt.Sprintf("Conversation context: %s\nMessage: %s", orNone(contextTag), text)
	out, err := s.complete(ctx, classifyIntentPrompt, user, labelMaxTokens, 0)
	if err != nil {
		return "", fmt.Errorf("lus: classify intent: %w", err)
	}
	return normalizeLabel(out), nil
}

// ExtractBookingFields reads the booking details out of recent history.
func (s *LLMService) ExtractBookingFields(ctx context.Context, history []booking.Message) (booking.Intent, error) {
	if len(history) == 0 {
		return booking.Intent{}, nil
	}
	out, err := s.complete(ctx, extractFieldsPrompt, formatHistory(history), extractMaxTokens, 0)
	if err != nil {
		return booking.Intent{}, fmt.Errorf("lus: extract fields: %w", err)
	}
	intent, err := parseExtraction(out)
	if err != nil {
		return booking.Intent{}, fmt.Errorf("lus: extract fields: %w", err)
	}
	return intent, nil
}

// GenerateUtterance writes a short patient-facing message.
func (s *LLMService) GenerateUtterance(ctx context.Context, kind UtteranceKind, params map[string]string) (string, error) {
	out, err := s.complete(ctx, utterancePrompt, utteranceRequest(kind, params), utteranceMaxTokens, s.cfg.temperature)
	if err != nil {
		return "", fmt.Errorf("lus: generate %s: %w", kind, err)
	}
	return strings.Trim(out, "\"“” "), nil
}

// TranslateRelativeDate returns YYYY-MM-DD, or "invalid".
func (s *LLMService) TranslateRelativeDate(ctx context.Context, phrase string, today time.Time) (string, error) {
	out, err := s.complete(ctx, datePrompt(today), phrase, labelMaxTokens, 0)
	if err != nil {
		return "", fmt.Errorf("lus: translate date: %w", err)
	}
	out = normalizeLabel(out)
	if out == "invalid" {
		return out, nil
	}
	if _, err := time.Parse("2006-01-02", out); err != nil {
		return "invalid", nil
	}
	return out, nil
}

// ClassifyConfirmation labels the reply to a booking summary.
func (s *LLMService) ClassifyConfirmation(ctx context.Context, text string) (string, error) {
	out, err := s.complete(ctx, classifyConfirmationPrompt, text, labelMaxTokens, 0)
	if err != nil {
		return "", fmt.Errorf("lus: classify confirmation: %w", err)
	}
	return normalizeLabel(out), nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}

// normalizeLabel keeps the first word of a label answer, lower-cased and
// stripped of quotes and punctuation.
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, "`\"'.")
	if fields := strings.Fields(s); len(fields) > 0 {
		s = strings.Trim(fields[0], "`\"'.,:;")
	}
	return s
}

type extraction struct {
	ProfessionalName *string `json:"professional_name"`
	Specialty        *string `json:"specialty"`
	DatePreference   *string `json:"date_preference"`
	ShiftPreference  *string `json:"shift_preference"`
	SpecificTime     *string `json:"specific_time"`
	ServiceType      *string `json:"service_type"`
	PatientName      *string `json:"patient_name"`
}

// parseExtraction decodes the JSON object in the model output, tolerating
// code fences and surrounding prose.
func parseExtraction(out string) (booking.Intent, error) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end <= start {
		return booking.Intent{}, fmt.Errorf("no json object in %q", truncate(out, 80))
	}
	var e extraction
	if err := json.Unmarshal([]byte(out[start:end+1]), &e); err != nil {
		return booking.Intent{}, fmt.Errorf("decode json: %w", err)
	}

	intent := booking.Intent{
		ProfessionalName: clean(e.ProfessionalName),
		Specialty:        clean(e.Specialty),
		DatePreference:   clean(e.DatePreference),
		ShiftPreference:  booking.ParseShift(clean(e.ShiftPreference)),
		ServiceType:      clean(e.ServiceType),
		PatientName:      clean(e.PatientName),
	}
	if t, ok := booking.NormalizeTime(clean(e.SpecificTime)); ok {
		intent.SpecificTime = t
	}
	return intent, nil
}

func clean(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	switch strings.ToLower(v) {
	case "null", "none", "n/a", "unknown":
		return ""
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
