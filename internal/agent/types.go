// Package agent exposes assistant sessions over HTTP, SSE and websocket.
package agent

import (
	"github.com/ashureev/academy-assistant/internal/assistant"
)

// maxChatMessageLength caps a single member message in runes.
const maxChatMessageLength = 2000

// ChatRequest represents a chat request to the assistant.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the assistant reply returned to the client.
type ChatResponse struct {
	Message     assistant.Message  `json:"message"`
	ContentHTML string             `json:"content_html"`
	Actions     []assistant.Action `json:"actions"`
	Suggestions []string           `json:"suggestions"`
	Confidence  float64            `json:"confidence"`
	Intent      assistant.Intent   `json:"intent,omitempty"`
	Fallback    bool               `json:"fallback"`
}

// ActionRequest asks the session to execute one quick action.
type ActionRequest struct {
	Action assistant.Action `json:"action"`
}

// ActionResponse carries the human-readable outcome of an action.
type ActionResponse struct {
	Result  string            `json:"result"`
	Message assistant.Message `json:"message"`
}

// SessionResponse is the snapshot returned after (re)initializing a session.
type SessionResponse struct {
	UserID    string                   `json:"user_id"`
	SessionID string                   `json:"session_id"`
	Context   assistant.SessionContext `json:"context"`
}

// HistoryResponse lists the conversation window of a session.
type HistoryResponse struct {
	Messages []assistant.Message `json:"messages"`
}

// Push is an assistant-initiated message delivered to one session.
type Push struct {
	UserID    string       `json:"-"`
	SessionID string       `json:"-"`
	Reply     ChatResponse `json:"reply"`
}

// Publisher fans pushes out to connected clients.
type Publisher interface {
	Publish(p *Push)
}

// newChatResponse converts an engine response and its stored message into
// the wire shape, rendering the markdown body.
func newChatResponse(resp assistant.Response, msg assistant.Message) ChatResponse {
	return ChatResponse{
		Message:     msg,
		ContentHTML: renderMarkdown(msg.Content),
		Actions:     resp.Actions,
		Suggestions: resp.Suggestions,
		Confidence:  resp.Confidence,
		Intent:      resp.Intent,
		Fallback:    resp.Fallback,
	}
}
