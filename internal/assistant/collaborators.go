package assistant

import (
	"context"

	"github.com/ashureev/academy-assistant/internal/domain"
)

// ProfileSource looks up member profiles. A nil profile with a nil error means absent.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// ProgressSource returns the learning-progress summary of a member.
type ProgressSource interface {
	GetProgressSummary(ctx context.Context, userID string) (*domain.ProgressSummary, error)
}

// ChallengeService lists active challenges and enrolls members.
type ChallengeService interface {
	ActiveChallenges(ctx context.Context, userID string) ([]domain.Challenge, error)
	JoinChallenge(ctx context.Context, challengeID, userID string) error
}

// QuestSource lists the quests of a member.
type QuestSource interface {
	ActiveQuests(ctx context.Context, userID string) ([]domain.Quest, error)
}

// ContentSearcher answers free-text content queries.
type ContentSearcher interface {
	SearchModules(ctx context.Context, keyword string) ([]domain.Module, error)
	ListLessons(ctx context.Context, moduleID string) ([]domain.Lesson, error)
}

// RewardClaimer records reward claims for completed challenges.
type RewardClaimer interface {
	ClaimChallengeReward(ctx context.Context, challengeID, userID string) error
}

// Completer is the external generative text provider used for fallbacks.
type Completer interface {
	Complete(ctx context.Context, input string, summary CompactContext) (string, error)
}

// Dependencies bundles the collaborators a session reads from. Any of them
// may be nil; the corresponding context field then stays undefined.
type Dependencies struct {
	Profiles   ProfileSource
	Progress   ProgressSource
	Challenges ChallengeService
	Quests     QuestSource
	Content    ContentSearcher
	Rewards    RewardClaimer
}

// Backend is satisfied by a store implementing every collaborator.
type Backend interface {
	ProfileSource
	ProgressSource
	ChallengeService
	QuestSource
	ContentSearcher
	RewardClaimer
}

// DependenciesFrom wires every collaborator to the same backend.
func DependenciesFrom(b Backend) Dependencies {
	return Dependencies{
		Profiles:   b,
		Progress:   b,
		Challenges: b,
		Quests:     b,
		Content:    b,
		Rewards:    b,
	}
}
