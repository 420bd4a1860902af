package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/academy-assistant/internal/identity"
)

// ClientConfig is the feature set advertised to the web client.
type ClientConfig struct {
	FallbackEnabled   bool   `json:"fallback_enabled"`
	FallbackProvider  string `json:"fallback_provider,omitempty"`
	ProactiveEnabled  bool   `json:"proactive_enabled"`
	ProactiveInterval int64  `json:"proactive_interval_seconds"`
	MaxHistory        int    `json:"max_history"`
	SessionHeader     string `json:"session_header"`
}

// AccountHandler serves the member and client configuration endpoints.
type AccountHandler struct {
	repo   Repository
	client ClientConfig
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(repo Repository, client ClientConfig) *AccountHandler {
	if client.SessionHeader == "" {
		client.SessionHeader = identity.SessionHeaderName
	}
	return &AccountHandler{repo: repo, client: client}
}

// RegisterRoutes registers account routes.
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)
	})
}

// GetMe returns the current member's profile and overall progress.
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil || profile == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	resp := map[string]interface{}{
		"user_id":    profile.UserID,
		"username":   identity.UsernameFromContext(r.Context()),
		"full_name":  profile.FullName,
		"first_name": profile.FirstName(),
		"role":       profile.Role,
		"session_id": identity.SessionIDFromContext(r.Context()),
	}
	summary, err := h.repo.GetProgressSummary(r.Context(), userID)
	if err != nil {
		slog.Warn("progress summary unavailable", "error", err, "user_id", userID)
	} else {
		completed, total := summary.LessonTotals()
		resp["completed_lessons"] = completed
		resp["total_lessons"] = total
		resp["completed_modules"] = summary.CompletedModules()
		resp["completion_rate"] = summary.OverallRate()
	}
	JSON(w, http.StatusOK, resp)
}

// GetConfig returns the server configuration for the frontend.
func (h *AccountHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.client)
}
