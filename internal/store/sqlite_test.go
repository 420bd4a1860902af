package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/academy-assistant/internal/domain"
)

func newSeededStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "academy.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog failed: %v", err)
	}
	if err := s.ImportCatalog(context.Background(), catalog); err != nil {
		t.Fatalf("ImportCatalog failed: %v", err)
	}
	return s
}

func TestProfileRoundTrip(t *testing.T) {
	t.Parallel()
	s := newSeededStore(t)
	ctx := context.Background()

	missing, err := s.GetProfile(ctx, "nobody")
	if err != nil || missing != nil {
		t.Fatalf("expected nil profile without error, got %v, %v", missing, err)
	}

	if err := s.UpsertProfile(ctx, &domain.Profile{UserID: "u1", FullName: "Léa Durand"}); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	got, err := s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.FullName != "Léa Durand" || got.Role != domain.RoleStudent {
		t.Fatalf("unexpected profile: %+v", got)
	}
}

func TestProgressSummaryContinueLearning(t *testing.T) {
	t.Parallel()
	s := newSeededStore(t)

	summary, err := s.GetProgressSummary(context.Background(), "demo-user")
	if err != nil {
		t.Fatalf("GetProgressSummary failed: %v", err)
	}
	if len(summary.Modules) != 5 {
		t.Fatalf("expected 5 modules, got %d", len(summary.Modules))
	}
	cl := summary.ContinueLearning
	if cl == nil {
		t.Fatal("expected a continue-learning pointer")
	}
	if cl.ModuleID != "mod-bases" || cl.LessonID != "les-bases-2" {
		t.Fatalf("unexpected pointer: %+v", cl)
	}
	if done, total := summary.LessonTotals(); done != 1 || total != 12 {
		t.Fatalf("expected 1/12 lessons, got %d/%d", done, total)
	}
}

func TestProgressSummaryWithoutActivityHasNoPointer(t *testing.T) {
	t.Parallel()
	s := newSeededStore(t)

	summary, err := s.GetProgressSummary(context.Background(), "fresh-user")
	if err != nil {
		t.Fatalf("GetProgressSummary failed: %v", err)
	}
	if summary.ContinueLearning != nil {
		t.Fatalf("expected no pointer for a member without activity, got %+v", summary.ContinueLearning)
	}
}

func TestProgressSummaryMovesToNextModule(t *testing.T) {
	t.Parallel()
	s := newSeededStore(t)
	ctx := context.Background()

	for _, id := range []string{"les-bases-1", "les-bases-2", "les-bases-3"} {
		if err := s.CompleteLesson(ctx, "u2", id, time.Now()); err != nil {
			t.Fatalf("CompleteLesson failed: %v", err)
		}
	}
	summary, err := s.GetProgressSummary(ctx, "u2")
	if err != nil {
		t.Fatalf("GetProgressSummary failed: %v", err)
	}
	if summary.CompletedModules() != 1 {
		t.Fatalf("expected one completed module, got %d", summary.CompletedModules())
	}
	if summary.ContinueLearning == nil || summary.ContinueLearning.ModuleID != "mod-analyse" {
		t.Fatalf("expected pointer into mod-analyse, got %+v", summary.ContinueLearning)
	}
}

func TestJoinChallenge(t *testing.T) {
	t.Parallel()
	s := newSeededStore(t)
	ctx := context.Background()

	if err := s.JoinChallenge(ctx, "chal-journal", "u3"); err != nil {
		t.Fatalf("JoinChallenge failed: %v", err)
	}
	// Joining twice is a no-op.
	if err := s.JoinChallenge(ctx, "chal-journal", "u3"); err != nil {
		t.Fatalf("second JoinChallenge failed: %v", err)
	}

	challenges, err := s.ActiveChallenges(ctx, "u3")
	if err != nil {
		t.Fatalf("ActiveChallenges failed: %v", err)
	}
	var journal *domain.Challenge
	for i := range challenges {
		if challenges[i].ID == "chal-journal" {
			journal = &challenges[i]
		}
	}
	if journal == nil || !journal.Joined() {
		t.Fatalf("expected u3 to be enrolled in chal-journal, got %+v", journal)
	}
	if journal.Participants != 1 {
		t.Fatalf("expected 1 participant, got %d", journal.Participants)
	}
	if journal.UserRank == nil || *journal.UserRank != 1 {
		t.Fatalf("expected rank 1, got %v", journal.UserRank)
	}
}

func TestJoinUnknownChallenge(t *testing.T) {
	t.Parallel()
	s := newSeededStore(t)

	err := s.JoinChallenge(context.Background(), "nope", "u4")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimRewardRequiresCompletion(t *testing.T) {
	t.Parallel()
	s := newSeededStore(t)

	err := s.ClaimChallengeReward(context.Background(), "chal-streak", "demo-user")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unfinished challenge, got %v", err)
	}
}

func TestActiveQuests(t *testing.T) {
	t.Parallel()
	s := newSeededStore(t)

	quests, err := s.ActiveQuests(context.Background(), "demo-user")
	if err != nil {
		t.Fatalf("ActiveQuests failed: %v", err)
	}
	if len(quests) != 2 {
		t.Fatalf("expected 2 quests, got %d", len(quests))
	}
	for _, q := range quests {
		if q.ID == "quest-five-lessons" {
			if q.Progress != 1 || q.Percentage != 20 || !q.InProgress() {
				t.Fatalf("unexpected quest state: %+v", q)
			}
		}
	}
}

func TestSearchModulesAndLessons(t *testing.T) {
	t.Parallel()
	s := newSeededStore(t)
	ctx := context.Background()

	modules, err := s.SearchModules(ctx, "psychologie")
	if err != nil {
		t.Fatalf("SearchModules failed: %v", err)
	}
	if len(modules) != 1 || modules[0].ID != "mod-psycho" {
		t.Fatalf("unexpected modules: %+v", modules)
	}

	all, err := s.SearchModules(ctx, "")
	if err != nil {
		t.Fatalf("SearchModules failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected all 5 modules, got %d", len(all))
	}

	lessons, err := s.ListLessons(ctx, "mod-psycho")
	if err != nil {
		t.Fatalf("ListLessons failed: %v", err)
	}
	if len(lessons) != 2 || lessons[0].Position != 1 {
		t.Fatalf("unexpected lessons: %+v", lessons)
	}
}

func TestLoadCatalogRejectsDuplicateLessons(t *testing.T) {
	t.Parallel()

	raw := `
modules:
  - id: m1
    title: Module
    lessons:
      - id: l1
        title: A
      - id: l1
        title: B
`
	if _, err := LoadCatalog(strings.NewReader(raw)); err == nil {
		t.Fatal("expected duplicate lesson id to be rejected")
	}
}

func TestLoadCatalogFile(t *testing.T) {
	t.Parallel()

	embedded, err := LoadCatalogFile("")
	if err != nil || len(embedded.Modules) != 5 {
		t.Fatalf("expected the embedded catalog, got %v, %v", embedded, err)
	}
	if _, err := LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
