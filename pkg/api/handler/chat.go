package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/avdeev/taskchat/pkg/api/response"
	"github.com/avdeev/taskchat/pkg/domain"
	"github.com/avdeev/taskchat/pkg/logger"
)

type Orchestrator interface {
	Converse(ctx context.Context, messages []domain.Message, model string, events chan<- domain.Event)
}

type chatRequest struct {
	Messages []domain.Message `json:"messages"`
	Model    string           `json:"model,omitempty"`
}

type chat struct {
	orchestrator Orchestrator
	writer       response.JSONResponseWriter
}

func NewChat(orchestrator Orchestrator) *chat {
	return &chat{orchestrator: orchestrator}
}

// Converse streams the conversation back as Server-Sent Events: one frame
// per orchestrator event, until done or the client disconnects.
func (h *chat) Converse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writer.WriteErrorResponse(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writer.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		h.writer.WriteErrorResponse(w, http.StatusBadRequest, "messages must not be empty")
		return
	}
	if req.Messages[len(req.Messages)-1].Role != domain.RoleUser {
		h.writer.WriteErrorResponse(w, http.StatusBadRequest, "last message must have role user")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writer.WriteErrorResponse(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := logger.ContextWithRequestID(r.Context(), uuid.NewString())

	events := make(chan domain.Event, 16)
	go h.orchestrator.Converse(ctx, req.Messages, req.Model, events)

	for event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			slog.ErrorContext(ctx, "serializing event", "type", event.Type, logger.Err(err))
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
			// Client went away; the orchestrator sees the cancelled request
			// context and stops after in-flight calls finish.
			slog.InfoContext(ctx, "client disconnected mid-stream")
			break
		}
		flusher.Flush()
	}

	// Drain so the orchestrator's sends never block after a disconnect.
	for range events {
	}
}
