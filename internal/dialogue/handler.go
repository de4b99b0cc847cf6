package dialogue

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-scheduling-assistant/pkg/logging"
)

// MessageHandler is the turn entry point the HTTP handler calls.
type MessageHandler interface {
	HandleInboundMessage(ctx context.Context, conversationID, text string) (Reply, error)
}

// Handler wires HTTP requests to the dialogue engine.
type Handler struct {
	engine MessageHandler
	logger *logging.Logger
}

// MessageRequest is the body of POST /conversations/{conversationID}/messages.
type MessageRequest struct {
	Text string `json:"text"`
}

// NewHandler creates a dialogue HTTP handler.
func NewHandler(engine MessageHandler, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("dialogue: engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// Routes mounts the conversation endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{conversationID}/messages", h.Message)
	return r
}

// Message handles POST /conversations/{conversationID}/messages.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	conversationID := strings.TrimSpace(chi.URLParam(r, "conversationID"))
	if conversationID == "" {
		http.Error(w, "conversation id is required", http.StatusBadRequest)
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	reply, err := h.engine.HandleInboundMessage(r.Context(), conversationID, req.Text)
	if err != nil {
		// The reply is still valid for the patient; only the checkpoint failed.
		h.logger.Error("conversation checkpoint failed", "conversation_id", conversationID, "error", err)
	}
	h.writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
