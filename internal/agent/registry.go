package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/academy-assistant/internal/assistant"
)

// SessionFactory creates a fresh, anonymous assistant session.
type SessionFactory func() *assistant.Session

// ExpireCallback is called when the registry drops an idle session.
type ExpireCallback func(userID, sessionID string)

type sessionEntry struct {
	session       *assistant.Session
	init          sync.Once
	createdAt     time.Time
	lastSeen      time.Time
	lastProactive time.Time
}

// SessionRef identifies a live session.
type SessionRef struct {
	UserID    string
	SessionID string
	Session   *assistant.Session
}

// SessionRegistry holds one assistant session per user and browser tab.
type SessionRegistry struct {
	mu       sync.RWMutex
	active   map[string]map[string]*sessionEntry
	factory  SessionFactory
	now      func() time.Time
	onExpire ExpireCallback
	logger   *slog.Logger
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(factory SessionFactory, logger *slog.Logger) *SessionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRegistry{
		active:  make(map[string]map[string]*sessionEntry),
		factory: factory,
		now:     time.Now,
		logger:  logger,
	}
}

// OnExpire registers a callback run for every session removed by Sweep.
func (r *SessionRegistry) OnExpire(cb ExpireCallback) {
	r.mu.Lock()
	r.onExpire = cb
	r.mu.Unlock()
}

const contextBuildTimeout = 10 * time.Second

// Get returns the session for userID and sessionID, creating it and building
// its context on first use. Concurrent first calls build the context once.
// created reports whether this call registered the session.
func (r *SessionRegistry) Get(ctx context.Context, userID, sessionID string) (session *assistant.Session, created bool) {
	r.mu.Lock()
	sessions, ok := r.active[userID]
	if !ok {
		sessions = make(map[string]*sessionEntry)
		r.active[userID] = sessions
	}
	entry, ok := sessions[sessionID]
	now := r.now()
	if !ok {
		created = true
		entry = &sessionEntry{session: r.factory(), createdAt: now}
		sessions[sessionID] = entry
		r.logger.Info("assistant session registered", "user_id", userID, "session_id", sessionID)
	}
	entry.lastSeen = now
	r.mu.Unlock()

	// The first build outlives the request that triggered it.
	entry.init.Do(func() {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), contextBuildTimeout)
		defer cancel()
		entry.session.InitializeContext(buildCtx, userID)
	})
	return entry.session, created
}

// Lookup returns an existing session without creating one.
func (r *SessionRegistry) Lookup(userID, sessionID string) (*assistant.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sessions, ok := r.active[userID]; ok {
		if entry, ok := sessions[sessionID]; ok {
			return entry.session, true
		}
	}
	return nil, false
}

// Remove drops a session.
func (r *SessionRegistry) Remove(userID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(userID, sessionID)
}

func (r *SessionRegistry) removeLocked(userID, sessionID string) {
	sessions, ok := r.active[userID]
	if !ok {
		return
	}
	if _, exists := sessions[sessionID]; !exists {
		return
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(r.active, userID)
	}
	r.logger.Info("assistant session unregistered", "user_id", userID, "session_id", sessionID)
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, sessions := range r.active {
		n += len(sessions)
	}
	return n
}

// Sweep removes sessions not seen for ttl and returns how many were dropped.
func (r *SessionRegistry) Sweep(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var expired []SessionRef
	for userID, sessions := range r.active {
		for sessionID, entry := range sessions {
			if entry.lastSeen.Before(cutoff) {
				expired = append(expired, SessionRef{UserID: userID, SessionID: sessionID})
			}
		}
	}
	for _, ref := range expired {
		r.removeLocked(ref.UserID, ref.SessionID)
	}
	cb := r.onExpire
	r.mu.Unlock()

	if cb != nil {
		for _, ref := range expired {
			cb(ref.UserID, ref.SessionID)
		}
	}
	if len(expired) > 0 {
		r.logger.Info("session sweep completed", "expired", len(expired), "ttl", ttl)
	}
	return len(expired)
}

// ProactiveCandidates lists bound sessions whose last push is at least
// cooldown old.
func (r *SessionRegistry) ProactiveCandidates(cooldown time.Duration) []SessionRef {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []SessionRef
	for userID, sessions := range r.active {
		if userID == "" {
			continue
		}
		for sessionID, entry := range sessions {
			if !entry.lastProactive.IsZero() && now.Sub(entry.lastProactive) < cooldown {
				continue
			}
			out = append(out, SessionRef{UserID: userID, SessionID: sessionID, Session: entry.session})
		}
	}
	return out
}

// MarkProactive records a push delivered to a session.
func (r *SessionRegistry) MarkProactive(userID, sessionID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sessions, ok := r.active[userID]; ok {
		if entry, ok := sessions[sessionID]; ok {
			entry.lastProactive = at
		}
	}
}
