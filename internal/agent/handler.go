package agent

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/academy-assistant/internal/api"
	"github.com/ashureev/academy-assistant/internal/assistant"
	"github.com/ashureev/academy-assistant/internal/identity"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (64KB).
const defaultMaxRequestBodySize = 64 << 10

// Handler serves the assistant HTTP API.
type Handler struct {
	registry    *SessionRegistry
	rateLimiter *RateLimiter
	broadcaster *Broadcaster
	log         ConversationLogger
	maxBodySize int64
	logger      *slog.Logger
}

// NewHandler creates the assistant HTTP handler.
func NewHandler(registry *SessionRegistry, limiter *RateLimiter, broadcaster *Broadcaster, conversationLogger ConversationLogger, logger *slog.Logger) *Handler {
	if conversationLogger == nil {
		conversationLogger = noopConversationLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry:    registry,
		rateLimiter: limiter,
		broadcaster: broadcaster,
		log:         conversationLogger,
		maxBodySize: defaultMaxRequestBodySize,
		logger:      logger,
	}
}

// RegisterRoutes registers assistant routes (requires identity middleware).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/assistant", func(r chi.Router) {
		r.Post("/session", h.HandleSession)
		r.Post("/chat", h.HandleChat)
		r.Get("/history", h.HandleHistory)
		r.Post("/actions", h.HandleActions)
		r.Get("/suggestions", h.HandleSuggestions)
		if h.broadcaster != nil {
			r.Get("/stream", h.broadcaster.HandleStream)
		}
	})
}

// Close releases handler resources.
func (h *Handler) Close() {
	if h.rateLimiter != nil {
		h.rateLimiter.Close()
	}
	if h.broadcaster != nil {
		h.broadcaster.Close()
	}
	if err := h.log.Close(); err != nil {
		h.logger.Warn("failed to close conversation logger", "error", err)
	}
}

func (h *Handler) session(r *http.Request) (*assistant.Session, string, string, bool) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		return nil, "", "", false
	}
	s, _ := h.registry.Get(r.Context(), userID, sessionID)
	return s, userID, sessionID, true
}

// HandleSession handles POST /api/assistant/session: it rebuilds the member
// context and returns the snapshot.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	s, created := h.registry.Get(r.Context(), userID, sessionID)
	if !created {
		s.InitializeContext(r.Context(), userID)
	}

	api.JSON(w, http.StatusOK, SessionResponse{
		UserID:    userID,
		SessionID: sessionID,
		Context:   s.Context(),
	})
}

// HandleChat handles POST /api/assistant/chat requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	s, userID, sessionID, ok := h.session(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Rate-limit by userID only so clients cannot bypass throttling by
	// rotating session IDs.
	if h.rateLimiter != nil && !h.rateLimiter.Allow(userID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req ChatRequest
	if status, msg := h.decode(w, r, &req); status != 0 {
		api.Error(w, status, msg)
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}
	if utf8.RuneCountInString(text) > maxChatMessageLength {
		api.Error(w, http.StatusBadRequest, "message is too long")
		return
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	h.logger.Info("assistant chat request",
		"user_id", userID,
		"session_id", sessionID,
		"message_length", len(text),
	)
	h.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     userID,
		SessionID:  sessionID,
		Channel:    "chat_http",
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: text,
		Meta:       map[string]any{"request_id": reqID},
	})

	resp, reply := s.Exchange(r.Context(), text)
	h.logAssistantMessage(userID, sessionID, "chat_http", resp, reqID)

	api.JSON(w, http.StatusOK, newChatResponse(resp, reply))
}

func (h *Handler) logAssistantMessage(userID, sessionID, channel string, resp assistant.Response, requestID string) {
	h.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     userID,
		SessionID:  sessionID,
		Channel:    channel,
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		ContentRaw: resp.Message,
		Meta: map[string]any{
			"intent":     string(resp.Intent),
			"confidence": resp.Confidence,
			"fallback":   resp.Fallback,
			"actions":    len(resp.Actions),
			"request_id": requestID,
		},
	})
}

// HandleHistory handles GET /api/assistant/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	s, _, _, ok := h.session(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	api.JSON(w, http.StatusOK, HistoryResponse{Messages: s.History()})
}

// HandleActions handles POST /api/assistant/actions. The outcome is recorded
// in the history as an action_result message.
func (h *Handler) HandleActions(w http.ResponseWriter, r *http.Request) {
	s, userID, sessionID, ok := h.session(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ActionRequest
	if status, msg := h.decode(w, r, &req); status != 0 {
		api.Error(w, status, msg)
		return
	}
	if req.Action.Type == "" {
		api.Error(w, http.StatusBadRequest, "action type is required")
		return
	}

	result := s.ExecuteAction(r.Context(), req.Action)
	msg := assistant.NewMessage(assistant.SenderAssistant, result, s.Now())
	msg.Type = assistant.MessageTypeAction
	s.AddToConversation(msg)

	h.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     userID,
		SessionID:  sessionID,
		Channel:    "chat_http",
		Direction:  "inbound",
		EventType:  "action_result",
		ContentRaw: result,
		Meta: map[string]any{
			"action":     string(req.Action.Type),
			"request_id": chiMiddleware.GetReqID(r.Context()),
		},
	})

	api.JSON(w, http.StatusOK, ActionResponse{Result: result, Message: msg})
}

// HandleSuggestions handles GET /api/assistant/suggestions. It answers 204
// when the session does not qualify for a proactive message.
func (h *Handler) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	s, _, _, ok := h.session(r)
	if !ok {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp := s.GenerateProactiveSuggestions()
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	msg := proactiveMessage(s, *resp)
	api.JSON(w, http.StatusOK, newChatResponse(*resp, msg))
}

// proactiveMessage records a proactive reply in the session history.
func proactiveMessage(s *assistant.Session, resp assistant.Response) assistant.Message {
	msg := resp.ToMessage(s.Now())
	msg.Type = assistant.MessageTypeProactive
	s.AddToConversation(msg)
	return msg
}

// decode reads a JSON body bounded by maxBodySize. A zero status means success.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) (int, string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, "request body too large"
		}
		return http.StatusBadRequest, "invalid request body"
	}
	return 0, ""
}
