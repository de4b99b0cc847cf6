// Package outbound delivers dialogue replies to an external webhook.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/dialogue"
)

const defaultTimeout = 5 * time.Second

// WebhookConfig describes where replies are posted.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// WebhookNotifier posts every reply as JSON, one attempt per reply.
type WebhookNotifier struct {
	url  string
	http *http.Client
}

var _ dialogue.Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier validates the configuration and returns a notifier.
func NewWebhookNotifier(cfg WebhookConfig) (*WebhookNotifier, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("outbound: webhook url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &WebhookNotifier{url: cfg.URL, http: &http.Client{Timeout: timeout}}, nil
}

type webhookPayload struct {
	ConversationID string   `json:"conversation_id"`
	Message        string   `json:"message"`
	Utterances     []string `json:"utterances"`
	State          string   `json:"state"`
	Context        string   `json:"context"`
	SentAt         string   `json:"sent_at"`
}

// Notify posts the reply. Non-2xx responses are returned as errors.
func (n *WebhookNotifier) Notify(ctx context.Context, reply dialogue.Reply) error {
	payload := webhookPayload{
		ConversationID: reply.ConversationID,
		Message:        strings.Join(reply.Utterances, "\n"),
		Utterances:     reply.Utterances,
		State:          string(reply.State),
		Context:        string(reply.Context),
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbound: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("outbound: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("outbound: post reply: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("outbound: webhook returned %d", resp.StatusCode)
	}
	return nil
}
