package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/edge-terminal/backend/internal/model/profile"
	"github.com/zhouzirui/edge-terminal/backend/pkg/utils"
)

// Status describes the engine behind the terminal, as shown in the sidebar.
type Status struct {
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	Streaming       bool   `json:"streaming"`
	SearchAvailable bool   `json:"searchAvailable"`
	ModelError      string `json:"modelError,omitempty"`
}

// Handler profile服务的HTTP处理器
type Handler struct {
	profiles profile.Store
	status   Status
}

// New 创建profile处理器
func New(profiles profile.Store, status Status) *Handler {
	return &Handler{
		profiles: profiles,
		status:   status,
	}
}

// RegisterRoutes 注册profile相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profiles", h.handleListProfiles)
	r.Get("/status", h.handleStatus)
}

func (h *Handler) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.profiles.List())
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := profile.Resolve(h.profiles, r.URL.Query().Get("profile"))
	utils.RespondJSON(w, http.StatusOK, struct {
		Status
		Profile        string `json:"profile"`
		HardwareStatus string `json:"hardwareStatus"`
	}{
		Status:         h.status,
		Profile:        p.ID,
		HardwareStatus: p.HardwareStatus,
	})
}
