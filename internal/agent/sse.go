package agent

import (
	"container/list"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ashureev/academy-assistant/internal/identity"
)

// SSEConnection represents a single SSE client connection.
type SSEConnection struct {
	ID          int64
	UserID      string
	SessionID   string
	EventID     int64
	ConnectedAt time.Time
	LastEventID int64
	Writer      http.ResponseWriter
	Flusher     http.Flusher
	Done        chan struct{}
	mu          sync.Mutex
}

// SSEMessageQueue buffers pushes for disconnected clients, sharded per session.
// Each session gets its own bounded list so one member's burst cannot evict
// messages belonging to another member.
type SSEMessageQueue struct {
	mu      sync.RWMutex
	queues  map[string]*list.List // sessionKey (userID:sessionID) -> messages
	maxSize int
}

// QueuedMessage represents a push in the replay queue.
type QueuedMessage struct {
	EventID   int64
	Push      *Push
	Timestamp time.Time
}

// NewSSEMessageQueue creates a new per-session message queue.
func NewSSEMessageQueue(maxSize int) *SSEMessageQueue {
	if maxSize <= 0 {
		maxSize = 50
	}
	return &SSEMessageQueue{
		queues:  make(map[string]*list.List),
		maxSize: maxSize,
	}
}

// Enqueue adds a push to its session queue.
func (q *SSEMessageQueue) Enqueue(eventID int64, p *Push) {
	key := sseSessionKey(p.UserID, p.SessionID)
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.queues[key]
	if !ok {
		l = list.New()
		q.queues[key] = l
	}
	l.PushBack(&QueuedMessage{EventID: eventID, Push: p, Timestamp: time.Now()})
	for l.Len() > q.maxSize {
		l.Remove(l.Front())
	}
}

// GetMissedMessages retrieves pushes after a specific event ID for a session.
func (q *SSEMessageQueue) GetMissedMessages(userID, sessionID string, afterEventID int64) []*QueuedMessage {
	key := sseSessionKey(userID, sessionID)
	q.mu.RLock()
	defer q.mu.RUnlock()

	l, ok := q.queues[key]
	if !ok {
		return nil
	}
	var missed []*QueuedMessage
	for e := l.Front(); e != nil; e = e.Next() {
		msg := e.Value.(*QueuedMessage)
		if msg.EventID > afterEventID {
			missed = append(missed, msg)
		}
	}
	return missed
}

// Prune drops the queue of a session once the session itself is gone.
func (q *SSEMessageQueue) Prune(userID, sessionID string) {
	key := sseSessionKey(userID, sessionID)
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.queues, key)
}

func sseSessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// BroadcasterConfig sizes the fan-out.
type BroadcasterConfig struct {
	QueueSize  int
	ReplaySize int
	KeepAlive  time.Duration
	RetryDelay time.Duration
}

// Broadcaster delivers pushes to the SSE connections of their session and
// keeps a bounded replay queue per session.
type Broadcaster struct {
	pushes        chan *Push
	connections   map[string]map[int64]*SSEConnection // sessionKey -> ConnectionID -> Connection
	messageQueue  *SSEMessageQueue
	connectionsMu sync.RWMutex
	eventCounter  int64
	connectionID  int64
	counterMu     sync.Mutex
	keepAlive     time.Duration
	retryDelay    time.Duration
	done          chan struct{}
	closeOnce     sync.Once
	log           ConversationLogger
	logger        *slog.Logger
}

// NewBroadcaster creates a broadcaster and starts its delivery loop.
func NewBroadcaster(cfg BroadcasterConfig, conversationLogger ConversationLogger, logger *slog.Logger) *Broadcaster {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 25 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if conversationLogger == nil {
		conversationLogger = noopConversationLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broadcaster{
		pushes:       make(chan *Push, cfg.QueueSize),
		connections:  make(map[string]map[int64]*SSEConnection),
		messageQueue: NewSSEMessageQueue(cfg.ReplaySize),
		keepAlive:    cfg.KeepAlive,
		retryDelay:   cfg.RetryDelay,
		done:         make(chan struct{}),
		log:          conversationLogger,
		logger:       logger,
	}
	go b.broadcastLoop()
	return b
}

// Publish implements Publisher. It never blocks: pushes are dropped when the
// delivery loop is saturated or the broadcaster is closed.
func (b *Broadcaster) Publish(p *Push) {
	if p == nil {
		return
	}
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.pushes <- p:
	default:
		b.logger.Warn("[BROADCAST] queue full, dropping push", "user_id", p.UserID, "session_id", p.SessionID)
	}
}

// Forget drops the replay queue of an expired session.
func (b *Broadcaster) Forget(userID, sessionID string) {
	b.messageQueue.Prune(userID, sessionID)
}

// Connections returns the number of open SSE connections for a session.
func (b *Broadcaster) Connections(userID, sessionID string) int {
	b.connectionsMu.RLock()
	defer b.connectionsMu.RUnlock()
	return len(b.connections[sseSessionKey(userID, sessionID)])
}

// Close stops the delivery loop.
func (b *Broadcaster) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *Broadcaster) nextEventID() int64 {
	b.counterMu.Lock()
	defer b.counterMu.Unlock()
	b.eventCounter++
	return b.eventCounter
}

// broadcastLoop distributes pushes to connected clients.
func (b *Broadcaster) broadcastLoop() {
	b.logger.Info("[BROADCAST] Broadcast loop started")
	for {
		select {
		case <-b.done:
			b.logger.Info("[BROADCAST] Broadcast loop shutting down")
			return
		case p := <-b.pushes:
			b.deliver(p)
		}
	}
}

func (b *Broadcaster) deliver(p *Push) {
	b.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     p.UserID,
		SessionID:  p.SessionID,
		Channel:    "proactive_broadcast",
		Direction:  "inbound",
		EventType:  "proactive_message",
		ContentRaw: p.Reply.Message.Content,
		Content:    cleanForReadability(p.Reply.Message.Content),
		Meta: map[string]any{
			"message_id":  p.Reply.Message.ID,
			"suggestions": len(p.Reply.Suggestions),
			"actions":     len(p.Reply.Actions),
		},
	})

	eventID := b.nextEventID()
	b.messageQueue.Enqueue(eventID, p)

	sessionKey := sseSessionKey(p.UserID, p.SessionID)
	b.connectionsMu.RLock()
	sessionConns, exists := b.connections[sessionKey]
	if !exists {
		b.connectionsMu.RUnlock()
		b.logger.Debug("[BROADCAST] No connections for session, queued for replay",
			"user_id", p.UserID, "session_id", p.SessionID, "event_id", eventID)
		return
	}
	// Snapshot connections to avoid holding RLock during writes.
	conns := make([]*SSEConnection, 0, len(sessionConns))
	for _, c := range sessionConns {
		conns = append(conns, c)
	}
	b.connectionsMu.RUnlock()

	for _, conn := range conns {
		b.sendToConnection(conn, eventID, p)
	}
}

// sendToConnection writes one push to a specific connection.
func (b *Broadcaster) sendToConnection(conn *SSEConnection, eventID int64, p *Push) {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	select {
	case <-conn.Done:
		return
	default:
	}

	data, err := json.Marshal(p.Reply)
	if err != nil {
		b.logger.Error("[SEND] Failed to marshal SSE message", "error", err, "conn_id", conn.ID)
		return
	}
	if err := writeSSEWithID(conn.Writer, eventID, "proactive", string(data)); err != nil {
		b.logger.Error("[SEND] Failed to write to SSE connection",
			"error", err,
			"conn_id", conn.ID,
			"user_id", conn.UserID,
		)
		return
	}
	conn.Flusher.Flush()
	conn.EventID = eventID
}

// HandleStream handles GET /api/assistant/stream: the SSE stream of
// proactive pushes, replaying queued events after Last-Event-ID.
//
//nolint:gocognit // SSE lifecycle handling intentionally keeps branches together.
func (b *Broadcaster) HandleStream(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}
	streamKey := sseSessionKey(userID, sessionID)

	lastEventID := int64(0)
	idHeader := r.Header.Get("Last-Event-ID")
	if idHeader == "" {
		idHeader = r.URL.Query().Get("lastEventId")
	}
	if idHeader != "" {
		if parsed, err := strconv.ParseInt(idHeader, 10, 64); err == nil {
			lastEventID = parsed
			b.logger.Info("SSE client reconnecting with Last-Event-ID",
				"user_id", userID,
				"last_event_id", lastEventID,
			)
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error": "streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if _, err := fmt.Fprintf(w, "retry: %d\n\n", b.retryDelay.Milliseconds()); err != nil {
		b.logger.Warn("failed to write SSE retry header", "error", err, "user_id", userID)
		return
	}
	flusher.Flush()

	b.counterMu.Lock()
	b.connectionID++
	connID := b.connectionID
	b.counterMu.Unlock()

	conn := &SSEConnection{
		ID:          connID,
		UserID:      userID,
		SessionID:   sessionID,
		ConnectedAt: time.Now(),
		LastEventID: lastEventID,
		Writer:      w,
		Flusher:     flusher,
		Done:        make(chan struct{}),
	}

	b.connectionsMu.Lock()
	if _, exists := b.connections[streamKey]; !exists {
		b.connections[streamKey] = make(map[int64]*SSEConnection)
	}
	b.connections[streamKey][connID] = conn
	b.connectionsMu.Unlock()

	defer func() {
		conn.mu.Lock()
		close(conn.Done)
		conn.mu.Unlock()

		b.connectionsMu.Lock()
		if sessionConns, exists := b.connections[streamKey]; exists {
			delete(sessionConns, connID)
			if len(sessionConns) == 0 {
				delete(b.connections, streamKey)
			}
		}
		b.connectionsMu.Unlock()
		b.logger.Info("SSE connection closed", "user_id", userID, "session_id", sessionID, "conn_id", connID)
	}()

	if lastEventID > 0 {
		missed := b.messageQueue.GetMissedMessages(userID, sessionID, lastEventID)
		if len(missed) > 0 {
			b.logger.Info("Sending missed messages",
				"user_id", userID,
				"session_id", sessionID,
				"count", len(missed),
			)
			for _, msg := range missed {
				b.sendToConnection(conn, msg.EventID, msg.Push)
			}
		}
	}

	eventID := b.nextEventID()
	conn.mu.Lock()
	conn.EventID = eventID
	connectedData := fmt.Sprintf(`{"status":"connected","session_id":%q,"event_id":%d}`, sessionID, eventID)
	err := writeSSEWithID(w, eventID, "connected", connectedData)
	if err == nil {
		flusher.Flush()
	}
	conn.mu.Unlock()
	if err != nil {
		b.logger.Warn("failed to write SSE connected event", "error", err, "user_id", userID)
		return
	}

	b.logger.Info("SSE connection established",
		"user_id", userID,
		"session_id", sessionID,
		"event_id", eventID,
		"reconnect", lastEventID > 0,
	)

	keepalive := time.NewTicker(b.keepAlive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			b.logger.Info("Assistant stream disconnected", "user_id", userID, "session_id", sessionID)
			return
		case <-b.done:
			return
		case <-keepalive.C:
			conn.mu.Lock()
			if err := writeSSE(w, "ping", `{"status":"alive"}`); err != nil {
				conn.mu.Unlock()
				b.logger.Warn("failed to write SSE keepalive ping", "error", err, "user_id", userID)
				return
			}
			flusher.Flush()
			conn.mu.Unlock()
		}
	}
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeSSEWithID(w io.Writer, id int64, event, data string) error {
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
	return err
}
