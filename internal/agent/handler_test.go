package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/academy-assistant/internal/assistant"
	"github.com/ashureev/academy-assistant/internal/identity"
	"github.com/ashureev/academy-assistant/internal/store"
)

const demoUser = "demo-user"

type testServer struct {
	store       *store.SQLiteStore
	registry    *SessionRegistry
	broadcaster *Broadcaster
	handler     *Handler
	router      chi.Router
}

func newSeededStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "academy.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	catalog, err := store.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog failed: %v", err)
	}
	if err := s.ImportCatalog(context.Background(), catalog); err != nil {
		t.Fatalf("ImportCatalog failed: %v", err)
	}
	return s
}

func newTestServer(t *testing.T, limiter *RateLimiter) *testServer {
	t.Helper()
	s := newSeededStore(t)
	deps := assistant.DependenciesFrom(s)
	registry := NewSessionRegistry(func() *assistant.Session {
		return assistant.NewSession(deps, assistant.WithLogger(slog.Default()))
	}, nil)
	if limiter == nil {
		limiter = NewRateLimiter(600, 100)
	}
	broadcaster := NewBroadcaster(BroadcasterConfig{QueueSize: 8, ReplaySize: 8}, nil, nil)
	h := NewHandler(registry, limiter, broadcaster, nil, nil)
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	r.Use(identity.Middleware(s, true))
	h.RegisterRoutes(r)
	return &testServer{store: s, registry: registry, broadcaster: broadcaster, handler: h, router: r}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.DevUserHeaderName, demoUser)
	req.Header.Set(identity.SessionHeaderName, "tab-1")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func TestHandleChatGreeting(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/assistant/chat", `{"message":"Bonjour !"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeJSON[ChatResponse](t, w)
	if resp.Intent != assistant.IntentGreeting {
		t.Fatalf("expected greeting intent, got %q", resp.Intent)
	}
	if !strings.Contains(resp.Message.Content, "Camille") {
		t.Fatalf("expected the member first name in %q", resp.Message.Content)
	}
	if !strings.Contains(resp.ContentHTML, "<strong>") {
		t.Fatalf("expected rendered markdown, got %q", resp.ContentHTML)
	}
	if resp.Message.Sender != assistant.SenderAssistant || resp.Message.Type != assistant.MessageTypeReply {
		t.Fatalf("unexpected message: %+v", resp.Message)
	}

	hw := ts.do(t, http.MethodGet, "/api/assistant/history", "")
	history := decodeJSON[HistoryResponse](t, hw)
	if len(history.Messages) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history.Messages))
	}
	if history.Messages[0].Sender != assistant.SenderUser || history.Messages[0].Content != "Bonjour !" {
		t.Fatalf("unexpected first entry: %+v", history.Messages[0])
	}
}

func TestHandleChatValidation(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	tests := map[string]string{
		"empty message": `{"message":"   "}`,
		"invalid json":  `{"message":`,
		"too long":      `{"message":"` + strings.Repeat("a", maxChatMessageLength+1) + `"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/assistant/chat", body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, NewRateLimiter(1, 1))

	if w := ts.do(t, http.MethodPost, "/api/assistant/chat", `{"message":"salut"}`); w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}
	if w := ts.do(t, http.MethodPost, "/api/assistant/chat", `{"message":"salut"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}
}

func TestHandleSession(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/assistant/session", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeJSON[SessionResponse](t, w)
	if resp.UserID != demoUser || resp.SessionID != "tab-1" {
		t.Fatalf("unexpected ids: %+v", resp)
	}
	if resp.Context.Profile == nil || resp.Context.Profile.FullName != "Camille Martin" {
		t.Fatalf("expected demo profile, got %+v", resp.Context.Profile)
	}
	if resp.Context.ContinueLearning() == nil {
		t.Fatal("expected a continue-learning pointer")
	}
	if ts.registry.Len() != 1 {
		t.Fatalf("expected one registered session, got %d", ts.registry.Len())
	}
}

func TestHandleActionsJoinChallenge(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	body := `{"action":{"type":"join_challenge","label":"Rejoindre","data":{"challengeId":"chal-journal","challengeTitle":"Journal de trading"}}}`
	w := ts.do(t, http.MethodPost, "/api/assistant/actions", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeJSON[ActionResponse](t, w)
	if !strings.Contains(resp.Result, "Journal de trading") {
		t.Fatalf("unexpected result %q", resp.Result)
	}
	if resp.Message.Type != assistant.MessageTypeAction {
		t.Fatalf("expected action_result message, got %q", resp.Message.Type)
	}

	challenges, err := ts.store.ActiveChallenges(context.Background(), demoUser)
	if err != nil {
		t.Fatalf("ActiveChallenges failed: %v", err)
	}
	for _, c := range challenges {
		if c.ID == "chal-journal" && !c.Joined() {
			t.Fatal("expected demo-user to be enrolled")
		}
	}

	session, ok := ts.registry.Lookup(demoUser, "tab-1")
	if !ok {
		t.Fatal("session not registered")
	}
	sc := session.Context()
	for _, c := range sc.UnjoinedChallenges() {
		if c.ID == "chal-journal" {
			t.Fatal("session context was not refreshed after joining")
		}
	}
}

func TestHandleActionsRequiresType(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	if w := ts.do(t, http.MethodPost, "/api/assistant/actions", `{"action":{}}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleSuggestions(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/assistant/suggestions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for an idle member, got %d", w.Code)
	}
	resp := decodeJSON[ChatResponse](t, w)
	if resp.Message.Type != assistant.MessageTypeProactive || len(resp.Suggestions) == 0 {
		t.Fatalf("unexpected proactive reply: %+v", resp)
	}

	// The proactive message itself resets the idle timer.
	if w := ts.do(t, http.MethodGet, "/api/assistant/suggestions", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 right after a message, got %d", w.Code)
	}
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()

	if got := renderMarkdown("Prêt à reprendre **Bases du trading** ?"); !strings.Contains(got, "<strong>Bases du trading</strong>") {
		t.Fatalf("unexpected html %q", got)
	}
	if got := renderMarkdown("<script>alert(1)</script>"); strings.Contains(got, "<script>") {
		t.Fatalf("raw html must not be rendered: %q", got)
	}
	if renderMarkdown("") != "" {
		t.Fatal("empty input must render empty")
	}
}
