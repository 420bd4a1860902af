package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/academy-assistant/internal/domain"
)

var errBackend = errors.New("backend unavailable")

type joinCall struct {
	challengeID string
	userID      string
}

// fakeBackend implements every collaborator with canned data.
type fakeBackend struct {
	mu sync.Mutex

	profile    *domain.Profile
	progress   *domain.ProgressSummary
	challenges []domain.Challenge
	quests     []domain.Quest
	modules    []domain.Module
	lessons    map[string][]domain.Lesson

	profileErr   error
	progressErr  error
	challengeErr error
	questErr     error
	joinErr      error
	claimErr     error

	joins        []joinCall
	claims       []joinCall
	challengeGet int
}

func (f *fakeBackend) GetProfile(_ context.Context, _ string) (*domain.Profile, error) {
	return f.profile, f.profileErr
}

func (f *fakeBackend) GetProgressSummary(_ context.Context, _ string) (*domain.ProgressSummary, error) {
	if f.progressErr != nil {
		return nil, f.progressErr
	}
	return f.progress, nil
}

func (f *fakeBackend) ActiveChallenges(_ context.Context, _ string) ([]domain.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challengeGet++
	if f.challengeErr != nil {
		return nil, f.challengeErr
	}
	return append([]domain.Challenge(nil), f.challenges...), nil
}

func (f *fakeBackend) JoinChallenge(_ context.Context, challengeID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, joinCall{challengeID, userID})
	if f.joinErr != nil {
		return f.joinErr
	}
	for i := range f.challenges {
		if f.challenges[i].ID == challengeID {
			f.challenges[i].Participation = &domain.Participation{JoinedAt: time.Now()}
			f.challenges[i].Participants++
		}
	}
	return nil
}

func (f *fakeBackend) ClaimChallengeReward(_ context.Context, challengeID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims = append(f.claims, joinCall{challengeID, userID})
	return f.claimErr
}

func (f *fakeBackend) ActiveQuests(_ context.Context, _ string) ([]domain.Quest, error) {
	if f.questErr != nil {
		return nil, f.questErr
	}
	return f.quests, nil
}

func (f *fakeBackend) SearchModules(_ context.Context, keyword string) ([]domain.Module, error) {
	var out []domain.Module
	for _, m := range f.modules {
		if keyword == "" || strings.Contains(strings.ToLower(m.Title+" "+m.Description), keyword) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeBackend) ListLessons(_ context.Context, moduleID string) ([]domain.Lesson, error) {
	return f.lessons[moduleID], nil
}

func (f *fakeBackend) joinCalls() []joinCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]joinCall(nil), f.joins...)
}

func (f *fakeBackend) challengeFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.challengeGet
}

// fakeCompleter returns a canned answer or error and records its inputs.
type fakeCompleter struct {
	mu      sync.Mutex
	text    string
	err     error
	delay   time.Duration
	panics  bool
	calls   int
	inputs  []string
	summary CompactContext
}

func (f *fakeCompleter) Complete(ctx context.Context, input string, summary CompactContext) (string, error) {
	f.mu.Lock()
	f.calls++
	f.inputs = append(f.inputs, input)
	f.summary = summary
	f.mu.Unlock()

	if f.panics {
		panic("provider exploded")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func intPtr(n int) *int { return &n }

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func sampleBackend() *fakeBackend {
	return &fakeBackend{
		profile: &domain.Profile{UserID: "u1", FullName: "Camille Martin", Role: domain.RoleStudent},
		progress: &domain.ProgressSummary{
			Modules: []domain.ModuleProgress{
				{ModuleID: "mod-bases", ModuleTitle: "Bases du trading", TotalLessons: 3, CompletedLessons: 1, CompletionRate: 33.3},
				{ModuleID: "mod-analyse", ModuleTitle: "Analyse technique", TotalLessons: 3},
			},
			ContinueLearning: &domain.ContinueLearning{
				ModuleID:       "mod-bases",
				ModuleTitle:    "Bases du trading",
				LessonID:       "les-1",
				LessonTitle:    "Leçon 1",
				CompletionRate: 33.3,
			},
		},
		challenges: []domain.Challenge{
			{ID: "c1", Title: "Série de 7 jours", Progress: 2, Target: 7, Reward: "150 XP", Participants: 12},
		},
		quests: []domain.Quest{
			{ID: "q1", Title: "Cinq leçons", Progress: 1, Target: 5, Percentage: 20, Status: domain.QuestStatusActive, Reward: domain.QuestReward{XP: intPtr(100)}},
		},
		modules: []domain.Module{
			{ID: "mod-bases", Title: "Bases du trading", Description: "Les fondamentaux"},
			{ID: "mod-psycho", Title: "Psychologie du trader", Description: "Émotions et discipline"},
			{ID: "mod-analyse", Title: "Analyse technique", Description: "Indicateurs et tendances"},
		},
		lessons: map[string][]domain.Lesson{
			"mod-analyse": {
				{ID: "les-rsi", ModuleID: "mod-analyse", Title: "Le RSI et le MACD"},
				{ID: "les-tendances", ModuleID: "mod-analyse", Title: "Tendances"},
			},
			"mod-psycho": {
				{ID: "les-stress", ModuleID: "mod-psycho", Title: "Gérer le stress"},
			},
		},
	}
}
