package session

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/edge-terminal/backend/internal/middleware"
	"github.com/zhouzirui/edge-terminal/backend/internal/model/chat"
	"github.com/zhouzirui/edge-terminal/backend/internal/model/profile"
	chatservice "github.com/zhouzirui/edge-terminal/backend/internal/service/chat"
	"github.com/zhouzirui/edge-terminal/backend/pkg/markdown"
	"github.com/zhouzirui/edge-terminal/backend/pkg/utils"
)

// Handler exposes session lifecycle, the access gate and transcript actions.
type Handler struct {
	chatSvc         *chatservice.Service
	profiles        profile.Store
	renderer        *markdown.Renderer
	searchAvailable bool
}

// New creates the session handler. searchAvailable false forces every search toggle off.
func New(chatSvc *chatservice.Service, profiles profile.Store, renderer *markdown.Renderer, searchAvailable bool) *Handler {
	if renderer == nil {
		renderer = markdown.New()
	}
	return &Handler{
		chatSvc:         chatSvc,
		profiles:        profiles,
		renderer:        renderer,
		searchAvailable: searchAvailable,
	}
}

// RegisterRoutes mounts the /session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.handleGetSession)
		sr.Delete("/", h.handleDeleteSession)
		sr.Post("/unlock", h.handleUnlock)

		sr.Group(func(locked chi.Router) {
			locked.Use(middleware.RequireUnlocked(h.chatSvc))
			locked.Get("/messages", h.handleListMessages)
			locked.Delete("/messages", h.handleClearMessages)
			locked.Put("/search", h.handleSetSearch)
		})
	})
}

type sessionView struct {
	ID              string    `json:"id"`
	ProfileID       string    `json:"profileId"`
	Unlocked        bool      `json:"unlocked"`
	SearchEnabled   bool      `json:"searchEnabled"`
	SearchAvailable bool      `json:"searchAvailable"`
	UserTurns       int       `json:"userTurns"`
	AssistantTurns  int       `json:"assistantTurns"`
	CreatedAt       time.Time `json:"createdAt"`
}

type messageView struct {
	Role      chat.Role `json:"role"`
	Content   string    `json:"content"`
	HTML      string    `json:"html"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) view(s chat.Session) sessionView {
	users, assistants := s.Counts()
	return sessionView{
		ID:              s.ID,
		ProfileID:       s.ProfileID,
		Unlocked:        s.Unlocked,
		SearchEnabled:   s.SearchEnabled,
		SearchAvailable: h.searchAvailable,
		UserTurns:       users,
		AssistantTurns:  assistants,
		CreatedAt:       s.CreatedAt,
	}
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProfileID string `json:"profileId"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := h.profiles.Default()
	if payload.ProfileID != "" {
		found, ok := h.profiles.FindByID(payload.ProfileID)
		if !ok {
			utils.RespondError(w, http.StatusBadRequest, "profile not found")
			return
		}
		p = found
	}

	session, err := h.chatSvc.CreateSession(r.Context(), p.ID, p.SearchDefault && h.searchAvailable)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, h.view(session))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.view(session))
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Key string `json:"key"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.chatSvc.Unlock(r.Context(), sessionID, payload.Key)
	if errors.Is(err, chatservice.ErrInvalidKey) {
		utils.RespondError(w, http.StatusUnauthorized, h.invalidKeyText(r, sessionID))
		return
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]bool{"unlocked": true})
}

func (h *Handler) invalidKeyText(r *http.Request, sessionID string) string {
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		return profile.DefaultInvalidKeyText
	}
	return profile.Resolve(h.profiles, session.ProfileID).InvalidKeyText
}

// handleListMessages renders the transcript of the session RequireUnlocked already loaded.
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "session missing from request context")
		return
	}
	turns := session.Turns

	messages := make([]messageView, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, messageView{
			Role:      turn.Role,
			Content:   turn.Text,
			HTML:      h.renderer.Render(turn.Text),
			CreatedAt: turn.CreatedAt,
		})
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.Clear(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetSearch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.SetSearch(r.Context(), chi.URLParam(r, "sessionID"), payload.Enabled && h.searchAvailable)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.view(session))
}

func respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, chatservice.ErrSessionNotFound) {
		status = http.StatusNotFound
	}
	utils.RespondError(w, status, err.Error())
}
