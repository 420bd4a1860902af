// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/academy-assistant/internal/domain"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// Repository defines the interface for the academy data the assistant reads
// and the few mutations it triggers.
type Repository interface {
	// GetProfile retrieves a profile by user ID. Returns nil, nil when absent.
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)

	// UpsertProfile creates or updates a profile record.
	UpsertProfile(ctx context.Context, profile *domain.Profile) error

	// GetProgressSummary returns per-module completion and the continue-learning pointer.
	GetProgressSummary(ctx context.Context, userID string) (*domain.ProgressSummary, error)

	// CompleteLesson marks a lesson as completed for a user.
	CompleteLesson(ctx context.Context, userID, lessonID string, at time.Time) error

	// ActiveChallenges lists running challenges with the user's participation.
	ActiveChallenges(ctx context.Context, userID string) ([]domain.Challenge, error)

	// JoinChallenge enrolls a user in a challenge. Joining twice is a no-op.
	JoinChallenge(ctx context.Context, challengeID, userID string) error

	// ClaimChallengeReward marks a completed challenge reward as claimed.
	ClaimChallengeReward(ctx context.Context, challengeID, userID string) error

	// ActiveQuests lists quests with the user's progress.
	ActiveQuests(ctx context.Context, userID string) ([]domain.Quest, error)

	// SearchModules lists published modules, filtered by keyword when non-empty.
	SearchModules(ctx context.Context, keyword string) ([]domain.Module, error)

	// ListLessons lists the lessons of a module in order.
	ListLessons(ctx context.Context, moduleID string) ([]domain.Lesson, error)

	// ImportCatalog upserts modules, lessons, challenges, quests and demo members.
	ImportCatalog(ctx context.Context, catalog *Catalog) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
