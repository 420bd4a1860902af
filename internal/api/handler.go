// Package api provides HTTP handlers for the academy API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ashureev/academy-assistant/internal/domain"
)

// Repository is the subset of the store the API handlers read.
type Repository interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	GetProgressSummary(ctx context.Context, userID string) (*domain.ProgressSummary, error)
	Ping(ctx context.Context) error
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
