package stream

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/edge-terminal/backend/internal/middleware"
	chatservice "github.com/zhouzirui/edge-terminal/backend/internal/service/chat"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/turn"
	"github.com/zhouzirui/edge-terminal/backend/pkg/markdown"
	"github.com/zhouzirui/edge-terminal/backend/pkg/utils"
)

// Handler runs chat turns over Server-Sent Events.
type Handler struct {
	runner   *turn.Runner
	sessions middleware.SessionGetter
	renderer *markdown.Renderer
}

// New creates a new stream handler
func New(runner *turn.Runner, sessions middleware.SessionGetter, renderer *markdown.Renderer) *Handler {
	if renderer == nil {
		renderer = markdown.New()
	}
	return &Handler{runner: runner, sessions: sessions, renderer: renderer}
}

// RegisterRoutes mounts POST /stream/{sessionID}. The instruction travels in the JSON body
// so it never shows up in URLs or access logs.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireUnlocked(h.sessions)).Post("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Message string `json:"message"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pending, err := h.runner.Begin(r.Context(), sessionID, payload.Message)
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}

	sse, err := utils.NewSSEWriter(w)
	if err != nil {
		pending.Cancel()
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	display := NewDisplay(sessionID, h.renderer, func(event Event) { sse.Send(event) })
	display.Start(pending.Profile().ID)

	if _, err := pending.Execute(r.Context(), display); err != nil {
		log.Printf("[stream] session=%s turn ended with error: %v", sessionID, err)
	}
	display.End()
}

// StatusFor maps errors raised before a turn starts to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, turn.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, chatservice.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatservice.ErrLocked):
		return http.StatusForbidden
	case errors.Is(err, chatservice.ErrTurnInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
