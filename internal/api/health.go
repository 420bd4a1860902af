package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HealthChecker is implemented by dependencies with their own health probe.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo     Repository
	provider HealthChecker
	timeout  time.Duration
}

// NewHealthHandler creates a new health handler. provider may be nil.
func NewHealthHandler(repo Repository, provider HealthChecker, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{repo: repo, provider: provider, timeout: timeout}
}

// Health returns the health status of the API and its dependencies. A failing
// completion provider degrades the report without failing it, since replies
// still work without the fallback.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "unhealthy"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.provider != nil {
		if err := h.provider.Health(ctx); err != nil {
			slog.Warn("Completion provider health check failed", "error", err)
			checks["completion"] = "unreachable"
			if statusCode == http.StatusOK {
				status["status"] = "degraded"
			}
		} else {
			checks["completion"] = "ok"
		}
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
