package assistant

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the assistant state of one conversation: the member context
// snapshot and the bounded history. Sessions share nothing with each other.
type Session struct {
	deps      Dependencies
	builder   *ContextBuilder
	responder *Responder
	router    *FallbackRouter
	history   *History
	clock     Clock
	logger    *slog.Logger

	mu sync.RWMutex
	sc *SessionContext
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the wall clock used by the proactive engine and message
// timestamps.
func WithClock(clock Clock) Option {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithFallback sets the router consulted for low-confidence replies.
func WithFallback(router *FallbackRouter) Option {
	return func(s *Session) {
		s.router = router
	}
}

// NewSession creates an anonymous session. Call InitializeContext to bind a
// member.
func NewSession(deps Dependencies, opts ...Option) *Session {
	s := &Session{
		deps:    deps,
		history: NewHistory(MaxHistory),
		clock:   time.Now,
		logger:  slog.Default(),
		sc:      &SessionContext{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.builder = NewContextBuilder(deps, s.logger)
	s.responder = NewResponder(deps.Content, s.logger)
	return s
}

// InitializeContext rebuilds the context for userID and swaps it in whole.
// An empty userID resets the session to the anonymous context.
func (s *Session) InitializeContext(ctx context.Context, userID string) {
	sc := s.builder.Build(ctx, userID)

	s.mu.Lock()
	s.sc = sc
	s.mu.Unlock()

	s.logger.Debug("session context initialized",
		"user_id", userID,
		"has_profile", sc.Profile != nil,
		"has_progress", sc.Progress != nil,
		"challenges", len(sc.Challenges),
		"quests", len(sc.Quests),
	)
}

// UserID returns the bound member, or "" for an anonymous session.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sc.UserID
}

// Context returns a copy of the current snapshot including the history.
func (s *Session) Context() SessionContext {
	s.mu.RLock()
	sc := *s.sc
	s.mu.RUnlock()
	sc.History = s.history.Messages()
	return sc
}

// History returns the conversation, oldest first.
func (s *Session) History() []Message {
	return s.history.Messages()
}

// Now returns the session clock time.
func (s *Session) Now() time.Time {
	return s.clock()
}

// AddToConversation appends msg to the history, evicting the oldest entry
// beyond MaxHistory.
func (s *Session) AddToConversation(msg Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.clock()
	}
	s.history.Append(msg)
}

// GenerateResponse classifies text and renders a reply, consulting the
// fallback router when the handler confidence is below FallbackThreshold.
// It always returns a usable Response.
func (s *Session) GenerateResponse(ctx context.Context, text string) Response {
	intent := AnalyzeIntent(text)
	sc := s.Context()

	resp := s.responder.Respond(ctx, intent, text, &sc)
	if resp.Confidence < FallbackThreshold && s.router.Enabled() {
		if alt := s.router.Route(ctx, text, resp, &sc); alt != nil {
			resp = *alt
		}
	}

	s.logger.Debug("response generated",
		"user_id", sc.UserID,
		"intent", intent,
		"confidence", resp.Confidence,
		"fallback", resp.Fallback,
	)
	return resp
}

// Exchange records the member message, generates the reply and records it.
// The returned message is the assistant history entry.
func (s *Session) Exchange(ctx context.Context, text string) (Response, Message) {
	s.AddToConversation(NewMessage(SenderUser, text, s.clock()))
	resp := s.GenerateResponse(ctx, text)
	reply := resp.ToMessage(s.clock())
	s.AddToConversation(reply)
	return resp, reply
}

// ShouldShowProactiveSuggestion reports whether the assistant may speak
// unprompted: a member is bound, the last message is at least IdleThreshold
// old, and there is a lesson to continue, an unjoined challenge or a quest in
// progress.
func (s *Session) ShouldShowProactiveSuggestion() bool {
	sc := s.Context()
	return proactiveEligible(&sc, s.lastMessage(), s.clock())
}

// GenerateProactiveSuggestions builds an assistant-initiated reply, or nil
// when ShouldShowProactiveSuggestion is false.
func (s *Session) GenerateProactiveSuggestions() *Response {
	sc := s.Context()
	return buildProactive(&sc, s.lastMessage(), s.clock())
}

func (s *Session) lastMessage() *Message {
	if m, ok := s.history.Last(); ok {
		return &m
	}
	return nil
}
