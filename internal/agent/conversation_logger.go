package agent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// ConversationLogEvent is one line of the conversation log.
type ConversationLogEvent struct {
	Timestamp  string         `json:"ts"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ConversationLogger records conversation events without blocking callers.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error             { return nil }

type fileConversationLogger struct {
	cfg     ConversationLogConfig
	events  chan ConversationLogEvent
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	dropped atomic.Int64
	global  *os.File
	logger  *slog.Logger
}

// NewConversationLogger creates an asynchronous NDJSON logger writing one
// file per user session under cfg.Dir, plus an optional global file. It
// returns a no-op logger when both outputs are disabled.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled && !cfg.GlobalEnabled {
		return noopConversationLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}

	l := &fileConversationLogger{
		cfg:     cfg,
		events:  make(chan ConversationLogEvent, cfg.QueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger,
	}

	if cfg.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create conversation log dir: %w", err)
		}
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o750); err != nil {
			return nil, fmt.Errorf("create global conversation log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.GlobalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("open global conversation log: %w", err)
		}
		l.global = f
	}

	go l.run()
	return l, nil
}

// Log enqueues an event. Events are dropped, and counted, when the queue is full.
func (l *fileConversationLogger) Log(event ConversationLogEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Content == "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}

	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.events <- event:
	default:
		if n := l.dropped.Add(1); n%100 == 1 {
			l.logger.Warn("conversation log queue full, dropping events", "dropped_total", n)
		}
	}
}

// Close flushes queued events and closes the global file.
func (l *fileConversationLogger) Close() error {
	l.once.Do(func() { close(l.done) })
	<-l.stopped
	if l.global != nil {
		return l.global.Close()
	}
	return nil
}

func (l *fileConversationLogger) run() {
	defer close(l.stopped)
	for {
		select {
		case ev := <-l.events:
			l.write(ev)
		case <-l.done:
			for {
				select {
				case ev := <-l.events:
					l.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (l *fileConversationLogger) write(ev ConversationLogEvent) {
	line, err := json.Marshal(ev)
	if err != nil {
		l.logger.Warn("failed to marshal conversation log event", "error", err)
		return
	}
	line = append(line, '\n')

	if l.cfg.Enabled {
		if err := l.appendSessionLine(ev.UserID, ev.SessionID, line); err != nil {
			l.logger.Warn("failed to write conversation log", "error", err, "user_id", ev.UserID)
		}
	}
	if l.global != nil {
		if _, err := l.global.Write(line); err != nil {
			l.logger.Warn("failed to write global conversation log", "error", err)
		}
	}
}

func (l *fileConversationLogger) appendSessionLine(userID, sessionID string, line []byte) error {
	dir := filepath.Join(l.cfg.Dir, safePathComponent(userID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create user log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, safePathComponent(sessionID)+".ndjson"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append session log: %w", err)
	}
	return f.Close()
}

var (
	unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	ansiSequence    = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07]*\x07`)
	markdownMarks   = regexp.MustCompile("\\*\\*|__|`")
	blankRun        = regexp.MustCompile(`[ \t]+`)
)

func safePathComponent(s string) string {
	s = unsafePathChars.ReplaceAllString(s, "_")
	if s == "" || strings.Trim(s, ".") == "" {
		return "_"
	}
	return s
}

// cleanForReadability strips terminal escapes and markdown emphasis so the
// log stays greppable.
func cleanForReadability(s string) string {
	s = ansiSequence.ReplaceAllString(s, "")
	s = markdownMarks.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
