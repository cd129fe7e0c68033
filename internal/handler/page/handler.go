package page

import (
	"bytes"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/edge-terminal/backend/internal/model/profile"
	"github.com/zhouzirui/edge-terminal/backend/internal/web"
	"github.com/zhouzirui/edge-terminal/backend/pkg/utils"
)

// Handler serves the terminal page and its static assets.
type Handler struct {
	tmpl            *template.Template
	profiles        profile.Store
	searchAvailable bool
	modelError      string
}

type pageData struct {
	Profile         profile.Profile
	SearchAvailable bool
	ModelError      string
}

// New parses the embedded templates.
func New(profiles profile.Store, searchAvailable bool, modelError string) (*Handler, error) {
	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}
	return &Handler{
		tmpl:            tmpl,
		profiles:        profiles,
		searchAvailable: searchAvailable,
		modelError:      modelError,
	}, nil
}

// RegisterRoutes mounts "/" and "/static/*".
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(web.Static()))))
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Profile:         profile.Resolve(h.profiles, r.URL.Query().Get("profile")),
		SearchAvailable: h.searchAvailable,
		ModelError:      h.modelError,
	}

	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "index.html", data); err != nil {
		log.Printf("[page] render failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "page unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
