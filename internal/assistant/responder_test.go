package assistant

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/academy-assistant/internal/domain"
)

func fullContext(b *fakeBackend) *SessionContext {
	return &SessionContext{
		UserID:     "u1",
		Profile:    b.profile,
		Progress:   b.progress,
		Challenges: b.challenges,
		Quests:     b.quests,
	}
}

func TestRespondEveryIntentYieldsValidResponse(t *testing.T) {
	t.Parallel()

	b := sampleBackend()
	r := NewResponder(b, slog.Default())
	contexts := map[string]*SessionContext{
		"nil":       nil,
		"anonymous": {},
		"full":      fullContext(b),
		"empty lists": {
			UserID:     "u1",
			Progress:   &domain.ProgressSummary{},
			Challenges: []domain.Challenge{},
			Quests:     []domain.Quest{},
		},
	}

	for name, sc := range contexts {
		for _, intent := range Intents() {
			resp := r.Respond(context.Background(), intent, "", sc)
			assert.NotEmptyf(t, strings.TrimSpace(resp.Message), "%s/%s: empty message", name, intent)
			assert.GreaterOrEqual(t, resp.Confidence, 0.0)
			assert.LessOrEqual(t, resp.Confidence, 1.0)
			assert.NotNil(t, resp.Actions)
			assert.NotNil(t, resp.Suggestions)
			assert.Equal(t, intent, resp.Intent)
			if intent != IntentSearchContent {
				assert.Equalf(t, HandlerConfidence(intent), resp.Confidence, "%s/%s", name, intent)
			}
		}
	}
}

func TestHandlerConfidenceGating(t *testing.T) {
	t.Parallel()

	for _, intent := range Intents() {
		c := HandlerConfidence(intent)
		if intent == IntentDefault {
			assert.InDelta(t, 0.35, c, 1e-9)
			assert.Less(t, c, FallbackThreshold)
			continue
		}
		assert.GreaterOrEqualf(t, c, 0.8, "intent %s", intent)
	}
}

func TestGreetingReferencesContinueLearning(t *testing.T) {
	t.Parallel()

	b := sampleBackend()
	r := NewResponder(nil, nil)
	sc := fullContext(b)

	intent := AnalyzeIntent("salut")
	require.Equal(t, IntentGreeting, intent)

	resp := r.Respond(context.Background(), intent, "salut", sc)
	assert.Contains(t, resp.Message, "Bases du trading")
	assert.Contains(t, resp.Message, "Camille")
	require.Len(t, resp.Actions, 1)

	action := resp.Actions[0]
	assert.Equal(t, ActionContinueLesson, action.Type)
	cl := sc.Progress.ContinueLearning
	assert.Equal(t, cl.ModuleID, action.Data["moduleId"])
	assert.Equal(t, cl.ModuleTitle, action.Data["moduleTitle"])
	assert.Equal(t, cl.LessonID, action.Data["lessonId"])
	assert.Equal(t, cl.LessonTitle, action.Data["lessonTitle"])
	assert.Equal(t, cl.CompletionRate, action.Data["completionRate"])
}

func TestGreetingWithoutPointerHasNoAction(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil, nil)
	resp := r.Respond(context.Background(), IntentGreeting, "salut", &SessionContext{UserID: "u1"})
	assert.Empty(t, resp.Actions)
	assert.True(t, strings.HasPrefix(resp.Message, "Bonjour !"))
}

func TestChallengesHandler(t *testing.T) {
	t.Parallel()

	b := sampleBackend()
	rank := 3
	done := b.challenges[0]
	b.challenges = append(b.challenges,
		domain.Challenge{ID: "c2", Title: "Journal", Progress: 10, Target: 10, Reward: "Badge Discipline",
			Participation: &domain.Participation{CompletedAt: &done.EndsAt}, UserRank: &rank},
	)
	r := NewResponder(nil, nil)

	resp := r.Respond(context.Background(), IntentChallenges, "les défis", fullContext(b))
	assert.Contains(t, resp.Message, "Série de 7 jours")
	assert.Contains(t, resp.Message, "Journal")

	var types []ActionType
	for _, a := range resp.Actions {
		types = append(types, a.Type)
	}
	assert.ElementsMatch(t, []ActionType{ActionClaimReward, ActionJoinChallenge}, types)
}

func TestChallengesHandlerUnavailable(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil, nil)
	resp := r.Respond(context.Background(), IntentChallenges, "défis", &SessionContext{UserID: "u1"})
	assert.Contains(t, resp.Message, "Je ne parviens pas")
	assert.Empty(t, resp.Actions)
}

func TestProgressHandler(t *testing.T) {
	t.Parallel()

	r := NewResponder(nil, nil)
	resp := r.Respond(context.Background(), IntentProgress, "ma progression", fullContext(sampleBackend()))
	assert.Contains(t, resp.Message, "1 leçon(s) sur 6")
	assert.Contains(t, resp.Message, "0 module(s) sur 2")
	require.NotEmpty(t, resp.Actions)
	assert.Equal(t, ActionContinueLesson, resp.Actions[0].Type)
}

func TestQuestsHandlerCounts(t *testing.T) {
	t.Parallel()

	b := sampleBackend()
	b.quests = append(b.quests, domain.Quest{ID: "q2", Title: "Premier module", Progress: 1, Target: 1, Status: domain.QuestStatusClaimed})
	r := NewResponder(nil, nil)

	resp := r.Respond(context.Background(), IntentQuests, "mes quêtes", fullContext(b))
	assert.Contains(t, resp.Message, "1 quête(s) en cours et 1 terminée(s)")
	assert.Contains(t, resp.Message, "100 XP")
}

func TestSearchContent(t *testing.T) {
	t.Parallel()

	b := sampleBackend()
	r := NewResponder(b, nil)

	t.Run("module match", func(t *testing.T) {
		t.Parallel()
		resp := r.Respond(context.Background(), IntentSearchContent, "cherche des leçons sur la psychologie", &SessionContext{})
		assert.Contains(t, resp.Message, "Psychologie du trader")
		assert.Equal(t, confidenceSearchContent, resp.Confidence)
	})

	t.Run("lesson match", func(t *testing.T) {
		t.Parallel()
		resp := r.Respond(context.Background(), IntentSearchContent, "cherche des leçons sur le RSI", &SessionContext{})
		assert.Contains(t, resp.Message, "Le RSI et le MACD")
		require.NotEmpty(t, resp.Actions)
		assert.Equal(t, ActionContinueLesson, resp.Actions[0].Type)
		assert.Equal(t, "les-rsi", resp.Actions[0].Data["lessonId"])
		assert.Equal(t, "Analyse technique", resp.Actions[0].Data["moduleTitle"])
	})

	t.Run("accented query", func(t *testing.T) {
		t.Parallel()
		resp := r.Respond(context.Background(), IntentSearchContent, "trouve moi un cours sur le stress", &SessionContext{})
		assert.Contains(t, resp.Message, "Gérer le stress")
	})

	t.Run("multi-word title", func(t *testing.T) {
		t.Parallel()
		for _, q := range []string{
			"cherche des leçons sur la psychologie du trader",
			"cherche des leçons sur les bases du trading",
		} {
			resp := r.Respond(context.Background(), IntentSearchContent, q, &SessionContext{})
			assert.Equal(t, confidenceSearchContent, resp.Confidence, q)
			assert.NotContains(t, resp.Message, "aucun contenu", q)
		}
	})

	t.Run("words in any order", func(t *testing.T) {
		t.Parallel()
		resp := r.Respond(context.Background(), IntentSearchContent, "cherche un module sur trader psychologie", &SessionContext{})
		assert.Contains(t, resp.Message, "Psychologie du trader")
	})

	t.Run("no result", func(t *testing.T) {
		t.Parallel()
		resp := r.Respond(context.Background(), IntentSearchContent, "cherche des vidéos sur la crypto", &SessionContext{})
		assert.Contains(t, resp.Message, "crypto")
		assert.Less(t, resp.Confidence, FallbackThreshold)
	})
}

func TestSuggestionsAreNotShared(t *testing.T) {
	t.Parallel()
	r := NewResponder(nil, nil)

	first := r.Respond(context.Background(), IntentDefault, "xyzzy", &SessionContext{})
	require.NotEmpty(t, first.Suggestions)
	first.Suggestions[0] = "modifié"

	for _, intent := range []Intent{IntentDefault, IntentThanks} {
		again := r.Respond(context.Background(), intent, "merci", &SessionContext{})
		require.NotEmpty(t, again.Suggestions)
		assert.Equal(t, "Où en suis-je dans ma formation ?", again.Suggestions[0], intent)
	}
}

func TestExtractKeyword(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"cherche des leçons sur le RSI":                   "rsi",
		"Tu peux chercher un module sur l'analyse":        "analyse",
		"recherche money management":                      "money management",
		"cherche":                                         "",
		"des cours à propos de la psychologie ?":          "psychologie",
		"cherche des leçons sur la psychologie du trader": "psychologie du trader",
		"un module sur la gestion d'un trade":             "gestion d'un trade",
	}
	for input, want := range tests {
		assert.Equal(t, want, extractKeyword(input), input)
	}
}
