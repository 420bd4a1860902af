package agent

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConversationLoggerWritesSessionAndGlobalFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global", "all.ndjson")
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:       true,
		Dir:           dir,
		GlobalEnabled: true,
		GlobalPath:    globalPath,
		QueueSize:     16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}

	logger.Log(ConversationLogEvent{
		UserID:     "demo-user",
		SessionID:  "tab-1",
		Channel:    "chat_http",
		Direction:  "outbound",
		EventType:  "chat_assistant_message",
		ContentRaw: "Prêt à reprendre **Bases du trading** ?\r\nVotre leçon : `Leçon 2`",
		Meta:       map[string]any{"intent": "greeting", "confidence": 0.95},
	})

	line := waitForLogLine(t, filepath.Join(dir, "demo-user", "tab-1.ndjson"))
	var got ConversationLogEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if !strings.Contains(got.ContentRaw, "**Bases du trading**") {
		t.Fatalf("raw content must be kept verbatim: %q", got.ContentRaw)
	}
	if got.Content != "Prêt à reprendre Bases du trading ?\nVotre leçon : Leçon 2" {
		t.Fatalf("unexpected cleaned content: %q", got.Content)
	}
	if got.Timestamp == "" || got.Meta["intent"] != "greeting" {
		t.Fatalf("missing timestamp or meta: %+v", got)
	}

	// Close flushes before the global file is read.
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, err := os.ReadFile(globalPath)
	if err != nil {
		t.Fatalf("read global log: %v", err)
	}
	if !strings.Contains(string(data), `"event_type":"chat_assistant_message"`) {
		t.Fatalf("global log missing the event: %s", data)
	}

	// Events after Close are ignored.
	logger.Log(ConversationLogEvent{UserID: "demo-user", SessionID: "tab-1", ContentRaw: "trop tard"})
}

func TestConversationLoggerHostileIdentifiers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Dir: dir, QueueSize: 4}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	logger.Log(ConversationLogEvent{
		UserID:     "../../etc",
		SessionID:  "..",
		EventType:  "chat_user_message",
		ContentRaw: "bonjour",
	})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	path := filepath.Join(dir, ".._.._etc", "_.ndjson")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected the log under the sanitized path %s: %v", path, err)
	}
}

func TestSafePathComponent(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"demo-user":      "demo-user",
		"anon_1.2":       "anon_1.2",
		"":               "_",
		"..":             "_",
		"a/b\\c":         "a_b_c",
		"élève@académie": "_l_ve_acad_mie",
	}
	for in, want := range tests {
		if got := safePathComponent(in); got != want {
			t.Errorf("safePathComponent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConversationLoggerCountsDroppedEvents(t *testing.T) {
	t.Parallel()

	// No writer goroutine drains the queue.
	l := &fileConversationLogger{
		events: make(chan ConversationLogEvent, 1),
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
	for i := 0; i < 3; i++ {
		l.Log(ConversationLogEvent{UserID: "demo-user", SessionID: "tab-1", ContentRaw: "question"})
	}
	if n := l.dropped.Load(); n != 2 {
		t.Fatalf("expected 2 dropped events, got %d", n)
	}
	if len(l.events) != 1 {
		t.Fatalf("expected one queued event, got %d", len(l.events))
	}
}

func TestDisabledConversationLoggerIsNoop(t *testing.T) {
	t.Parallel()

	logger, err := NewConversationLogger(ConversationLogConfig{}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	if _, ok := logger.(noopConversationLogger); !ok {
		t.Fatalf("expected the no-op logger, got %T", logger)
	}
	logger.Log(ConversationLogEvent{ContentRaw: "ignoré"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCleanForReadability(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"\x1b[31merreur\x1b[0m simple":      "erreur simple",
		"**Défi** rejoint  avec __succès__": "Défi rejoint avec succès",
		"  `RSI`\t et   MACD ":              "RSI et MACD",
	}
	for raw, want := range tests {
		if got := cleanForReadability(raw); got != want {
			t.Errorf("cleanForReadability(%q) = %q, want %q", raw, got, want)
		}
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
