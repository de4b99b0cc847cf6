package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

type scriptedEngine struct {
	gotID   string
	gotText string
	reply   Reply
	err     error
}

func (s *scriptedEngine) HandleInboundMessage(ctx context.Context, conversationID, text string) (Reply, error) {
	s.gotID = conversationID
	s.gotText = text
	return s.reply, s.err
}

func newTestRouter(engine MessageHandler) http.Handler {
	r := chi.NewRouter()
	r.Mount("/conversations", NewHandler(engine, nil).Routes())
	return r
}

func TestMessageHandlerReturnsReply(t *testing.T) {
	engine := &scriptedEngine{reply: Reply{
		ConversationID: "abc",
		Utterances:     []string{"Hello!"},
		State:          StateGreet,
	}}
	router := newTestRouter(engine)

	req := httptest.NewRequest(http.MethodPost, "/conversations/abc/messages", strings.NewReader(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if engine.gotID != "abc" || engine.gotText != "hi" {
		t.Fatalf("engine called with %q/%q", engine.gotID, engine.gotText)
	}
	var got Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.State != StateGreet || len(got.Utterances) != 1 || got.Utterances[0] != "Hello!" {
		t.Fatalf("unexpected reply %+v", got)
	}
}

func TestMessageHandlerRejectsBadBody(t *testing.T) {
	router := newTestRouter(&scriptedEngine{})

	req := httptest.NewRequest(http.MethodPost, "/conversations/abc/messages", strings.NewReader("not-json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMessageHandlerAnswersWhenSaveFails(t *testing.T) {
	engine := &scriptedEngine{
		reply: Reply{ConversationID: "abc", Utterances: []string{"Hello!"}},
		err:   errors.New("save failed"),
	}
	router := newTestRouter(engine)

	req := httptest.NewRequest(http.MethodPost, "/conversations/abc/messages", strings.NewReader(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Hello!") {
		t.Fatalf("expected reply in body, got %s", rec.Body.String())
	}
}
