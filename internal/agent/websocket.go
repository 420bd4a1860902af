package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"

	"github.com/ashureev/academy-assistant/internal/assistant"
	"github.com/ashureev/academy-assistant/internal/identity"
)

// wsWriteTimeout bounds a single websocket frame write.
const wsWriteTimeout = 10 * time.Second

// ConnManager tracks the active chat socket of each user session.
type ConnManager struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewConnManager creates an empty connection manager.
func NewConnManager() *ConnManager {
	return &ConnManager{active: make(map[string]map[string]*websocket.Conn)}
}

// GetActive returns the active connection for a user and session.
func (m *ConnManager) GetActive(userID, sessionID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register adds a connection, closing any socket it replaces.
func (m *ConnManager) Register(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*websocket.Conn)
	}
	if existing, exists := m.active[userID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	m.active[userID][sessionID] = conn
}

// Unregister removes conn if it is still the active socket of the session.
func (m *ConnManager) Unregister(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, userID)
			}
		}
	}
}

// CloseSession closes the socket of an expired session.
func (m *ConnManager) CloseSession(userID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[userID]
	if !ok {
		return
	}
	if conn, ok := sessions[sessionID]; ok {
		_ = conn.Close(websocket.StatusNormalClosure, "session expired")
		delete(sessions, sessionID)
	}
	if len(sessions) == 0 {
		delete(m.active, userID)
	}
}

// wsInbound is a client frame.
type wsInbound struct {
	Type    string            `json:"type"`
	Content string            `json:"content,omitempty"`
	Action  *assistant.Action `json:"action,omitempty"`
}

// wsOutbound is a server frame.
type wsOutbound struct {
	Type    string             `json:"type"`
	Reply   *ChatResponse      `json:"reply,omitempty"`
	Result  string             `json:"result,omitempty"`
	Message *assistant.Message `json:"message,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// WebSocketHandler serves the chat protocol over a websocket.
type WebSocketHandler struct {
	registry      *SessionRegistry
	conns         *ConnManager
	rateLimiter   *RateLimiter
	log           ConversationLogger
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewWebSocketHandler creates a new websocket chat handler.
func NewWebSocketHandler(registry *SessionRegistry, conns *ConnManager, limiter *RateLimiter, conversationLogger ConversationLogger, allowedOrigin string, isDev bool, logger *slog.Logger) *WebSocketHandler {
	if conversationLogger == nil {
		conversationLogger = noopConversationLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		registry:      registry,
		conns:         conns,
		rateLimiter:   limiter,
		log:           conversationLogger,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.conns.Register(userID, sessionID, ws)
	defer h.conns.Unregister(userID, sessionID, ws)

	ctx := r.Context()
	session, _ := h.registry.Get(ctx, userID, sessionID)
	h.logger.Info("Assistant websocket connected", "user_id", userID, "session_id", sessionID)

	h.readLoop(ctx, ws, session, userID, sessionID)
	h.logger.Info("Assistant websocket closed", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, session *assistant.Session, userID, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				h.logger.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}
		// Any frame keeps the session alive for the TTL sweep.
		h.registry.Get(ctx, userID, sessionID)

		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.writeJSON(ctx, ws, wsOutbound{Type: "error", Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case "chat":
			h.handleChat(ctx, ws, session, userID, sessionID, msg.Content)
		case "action":
			if msg.Action == nil || msg.Action.Type == "" {
				h.writeJSON(ctx, ws, wsOutbound{Type: "error", Error: "action type is required"})
				continue
			}
			result := session.ExecuteAction(ctx, *msg.Action)
			out := assistant.NewMessage(assistant.SenderAssistant, result, session.Now())
			out.Type = assistant.MessageTypeAction
			session.AddToConversation(out)
			h.writeJSON(ctx, ws, wsOutbound{Type: "action_result", Result: result, Message: &out})
		case "suggestions":
			resp := session.GenerateProactiveSuggestions()
			if resp == nil {
				h.writeJSON(ctx, ws, wsOutbound{Type: "no_suggestion"})
				continue
			}
			out := proactiveMessage(session, *resp)
			reply := newChatResponse(*resp, out)
			h.writeJSON(ctx, ws, wsOutbound{Type: "proactive", Reply: &reply})
		case "ping":
			h.writeJSON(ctx, ws, wsOutbound{Type: "pong"})
		default:
			h.writeJSON(ctx, ws, wsOutbound{Type: "error", Error: "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) handleChat(ctx context.Context, ws *websocket.Conn, session *assistant.Session, userID, sessionID, content string) {
	text := strings.TrimSpace(content)
	switch {
	case text == "":
		h.writeJSON(ctx, ws, wsOutbound{Type: "error", Error: "message is required"})
		return
	case utf8.RuneCountInString(text) > maxChatMessageLength:
		h.writeJSON(ctx, ws, wsOutbound{Type: "error", Error: "message is too long"})
		return
	case h.rateLimiter != nil && !h.rateLimiter.Allow(userID):
		h.writeJSON(ctx, ws, wsOutbound{Type: "error", Error: "rate limit exceeded"})
		return
	}

	h.log.Log(ConversationLogEvent{
		UserID:     userID,
		SessionID:  sessionID,
		Channel:    "chat_ws",
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: text,
	})
	resp, msg := session.Exchange(ctx, text)
	h.log.Log(ConversationLogEvent{
		UserID:     userID,
		SessionID:  sessionID,
		Channel:    "chat_ws",
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		ContentRaw: resp.Message,
		Meta: map[string]any{
			"intent":     string(resp.Intent),
			"confidence": resp.Confidence,
			"fallback":   resp.Fallback,
		},
	})

	reply := newChatResponse(resp, msg)
	h.writeJSON(ctx, ws, wsOutbound{Type: "reply", Reply: &reply})
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v wsOutbound) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("failed to marshal websocket frame", "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.logger.Debug("WebSocket write error", "error", err)
	}
}
