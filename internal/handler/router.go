package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/edge-terminal/backend/internal/handler/page"
	profileHandler "github.com/zhouzirui/edge-terminal/backend/internal/handler/profile"
	"github.com/zhouzirui/edge-terminal/backend/internal/handler/session"
	"github.com/zhouzirui/edge-terminal/backend/internal/handler/stream"
	"github.com/zhouzirui/edge-terminal/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/edge-terminal/backend/internal/middleware"
	"github.com/zhouzirui/edge-terminal/backend/internal/model/profile"
	chatService "github.com/zhouzirui/edge-terminal/backend/internal/service/chat"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/turn"
	"github.com/zhouzirui/edge-terminal/backend/pkg/markdown"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(profiles profile.Store, chatSvc *chatService.Service, runner *turn.Runner, status profileHandler.Status) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	renderer := markdown.New()
	searchAvailable := runner.SearchAvailable()

	pageHandler, err := page.New(profiles, searchAvailable, status.ModelError)
	if err != nil {
		return nil, err
	}
	pageHandler.RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		profileHandler.New(profiles, status).RegisterRoutes(api)
		session.New(chatSvc, profiles, renderer, searchAvailable).RegisterRoutes(api)
		stream.New(runner, chatSvc, renderer).RegisterRoutes(api)
		ws.NewWebSocketHandler(runner, chatSvc, renderer, searchAvailable).RegisterRoutes(api)
	})

	return r, nil
}
