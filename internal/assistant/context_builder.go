package assistant

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ashureev/academy-assistant/internal/domain"
)

// ContextBuilder gathers the per-session snapshot of a member's state.
type ContextBuilder struct {
	deps   Dependencies
	logger *slog.Logger
}

// NewContextBuilder creates a builder over deps.
func NewContextBuilder(deps Dependencies, logger *slog.Logger) *ContextBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextBuilder{deps: deps, logger: logger}
}

// Build fetches the profile, progress, challenges and quests of userID
// concurrently. A failing source is logged and leaves its field nil; Build
// itself never fails. An empty userID yields the anonymous context.
func (b *ContextBuilder) Build(ctx context.Context, userID string) *SessionContext {
	sc := &SessionContext{UserID: userID}
	if userID == "" {
		return sc
	}

	var (
		profile    *domain.Profile
		progress   *domain.ProgressSummary
		challenges []domain.Challenge
		quests     []domain.Quest
	)

	// Goroutines report failures through the log and return nil, so one
	// failing source does not cancel the others.
	var g errgroup.Group
	if b.deps.Profiles != nil {
		g.Go(func() error {
			p, err := b.deps.Profiles.GetProfile(ctx, userID)
			if err != nil {
				b.logFailure("profile", userID, err)
				return nil
			}
			profile = p
			return nil
		})
	}
	if b.deps.Progress != nil {
		g.Go(func() error {
			p, err := b.deps.Progress.GetProgressSummary(ctx, userID)
			if err != nil {
				b.logFailure("progress", userID, err)
				return nil
			}
			progress = p
			return nil
		})
	}
	if b.deps.Challenges != nil {
		g.Go(func() error {
			c, err := b.deps.Challenges.ActiveChallenges(ctx, userID)
			if err != nil {
				b.logFailure("challenges", userID, err)
				return nil
			}
			if c == nil {
				c = []domain.Challenge{}
			}
			challenges = c
			return nil
		})
	}
	if b.deps.Quests != nil {
		g.Go(func() error {
			q, err := b.deps.Quests.ActiveQuests(ctx, userID)
			if err != nil {
				b.logFailure("quests", userID, err)
				return nil
			}
			if q == nil {
				q = []domain.Quest{}
			}
			quests = q
			return nil
		})
	}
	_ = g.Wait()

	sc.Profile = profile
	sc.Progress = progress
	sc.Challenges = challenges
	sc.Quests = quests
	return sc
}

func (b *ContextBuilder) logFailure(source, userID string, err error) {
	b.logger.Warn("context source unavailable",
		"source", source,
		"user_id", userID,
		"error", err,
	)
}
