package outbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-scheduling-assistant/internal/dialogue"
)

func TestWebhookNotifierPostsReply(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookConfig{URL: srv.URL})
	require.NoError(t, err)

	err = n.Notify(context.Background(), dialogue.Reply{
		ConversationID: "+5511999990000",
		Utterances:     []string{"Your appointment is booked."},
		State:          dialogue.StateBook,
		Context:        dialogue.ContextBookingCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, "+5511999990000", got.ConversationID)
	assert.Equal(t, "Your appointment is booked.", got.Message)
	assert.Equal(t, "Book", got.State)
	assert.Equal(t, "booking_completed", got.Context)
	assert.NotEmpty(t, got.SentAt)
}

func TestWebhookNotifierReportsFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookConfig{URL: srv.URL})
	require.NoError(t, err)
	err = n.Notify(context.Background(), dialogue.Reply{ConversationID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNewWebhookNotifierRequiresURL(t *testing.T) {
	_, err := NewWebhookNotifier(WebhookConfig{})
	assert.Error(t, err)
}
