// Package assistant implements the academy support assistant: intent
// classification, templated replies, a confidence-gated fallback to a
// generative provider, proactive suggestions and reply actions.
package assistant

import (
	"time"

	"github.com/ashureev/academy-assistant/internal/domain"
	"github.com/google/uuid"
)

// Sender identifies who authored a message.
type Sender string

const (
	// SenderUser marks messages typed by the member.
	SenderUser Sender = "user"
	// SenderAssistant marks messages produced by the assistant.
	SenderAssistant Sender = "assistant"
)

// Message types attached to assistant messages.
const (
	MessageTypeReply     = "reply"
	MessageTypeFallback  = "fallback"
	MessageTypeProactive = "proactive"
	MessageTypeAction    = "action_result"
)

// ActionType is the tag of an Action.
type ActionType string

const (
	// ActionContinueLesson opens the lesson named by the payload.
	ActionContinueLesson ActionType = "continue_lesson"
	// ActionJoinChallenge enrolls the member in the challenge named by the payload.
	ActionJoinChallenge ActionType = "join_challenge"
	// ActionViewProgress opens the progress dashboard.
	ActionViewProgress ActionType = "view_progress"
	// ActionSearchContent opens the catalog search.
	ActionSearchContent ActionType = "search_content"
	// ActionClaimReward claims a completed reward.
	ActionClaimReward ActionType = "claim_reward"
)

// Action is a structured follow-up the host can execute on the member's behalf.
type Action struct {
	Type  ActionType     `json:"type"`
	Label string         `json:"label"`
	Data  map[string]any `json:"data,omitempty"`
}

// StringData returns the string payload value for key, or "".
func (a Action) StringData(key string) string {
	if a.Data == nil {
		return ""
	}
	v, _ := a.Data[key].(string)
	return v
}

// Message is one entry of the conversation. Messages are never edited.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type,omitempty"`
	Actions   []Action  `json:"actions,omitempty"`
}

// NewMessage creates a message with a fresh ID.
func NewMessage(sender Sender, content string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    sender,
		Timestamp: at,
	}
}

// Response is the structured reply to one member turn.
type Response struct {
	Message     string   `json:"message"`
	Actions     []Action `json:"actions"`
	Suggestions []string `json:"suggestions"`
	Confidence  float64  `json:"confidence"`
	Intent      Intent   `json:"intent,omitempty"`
	Fallback    bool     `json:"fallback,omitempty"`
}

// ToMessage converts a response into an assistant history entry.
func (r Response) ToMessage(at time.Time) Message {
	msg := NewMessage(SenderAssistant, r.Message, at)
	msg.Type = MessageTypeReply
	if r.Fallback {
		msg.Type = MessageTypeFallback
	}
	if len(r.Actions) > 0 {
		msg.Actions = append([]Action(nil), r.Actions...)
	}
	return msg
}

// SessionContext is the per-session snapshot of the member's state. Nil fields
// mean the source was unavailable or the session is anonymous.
type SessionContext struct {
	UserID     string                  `json:"user_id,omitempty"`
	Profile    *domain.Profile         `json:"profile,omitempty"`
	Progress   *domain.ProgressSummary `json:"progress,omitempty"`
	Challenges []domain.Challenge      `json:"challenges,omitempty"`
	Quests     []domain.Quest          `json:"quests,omitempty"`
	History    []Message               `json:"history"`
}

// ContinueLearning returns the continue-learning pointer, or nil.
func (c *SessionContext) ContinueLearning() *domain.ContinueLearning {
	if c == nil || c.Progress == nil {
		return nil
	}
	return c.Progress.ContinueLearning
}

// UnjoinedChallenges returns the active challenges the member has not joined.
func (c *SessionContext) UnjoinedChallenges() []domain.Challenge {
	if c == nil {
		return nil
	}
	var out []domain.Challenge
	for _, ch := range c.Challenges {
		if !ch.Joined() {
			out = append(out, ch)
		}
	}
	return out
}

// QuestsInProgress returns the quests still being worked on.
func (c *SessionContext) QuestsInProgress() []domain.Quest {
	if c == nil {
		return nil
	}
	var out []domain.Quest
	for _, q := range c.Quests {
		if q.InProgress() {
			out = append(out, q)
		}
	}
	return out
}

// ChallengeSummary is the compact form of a challenge sent to the provider.
type ChallengeSummary struct {
	Title    string `json:"title"`
	Progress int    `json:"progress"`
	Target   int    `json:"target"`
	Joined   bool   `json:"joined"`
}

// CompactContext is the bounded summary forwarded with fallback requests.
// It never carries history or full records.
type CompactContext struct {
	UserName         string             `json:"user_name,omitempty"`
	CompletedModules int                `json:"completed_modules"`
	TotalModules     int                `json:"total_modules"`
	CompletedLessons int                `json:"completed_lessons"`
	TotalLessons     int                `json:"total_lessons"`
	ContinueModule   string             `json:"continue_module,omitempty"`
	ContinueLesson   string             `json:"continue_lesson,omitempty"`
	Challenges       []ChallengeSummary `json:"challenges,omitempty"`
}

const maxCompactChallenges = 3

// Compact builds the provider-facing summary of the context.
func (c *SessionContext) Compact() CompactContext {
	var cc CompactContext
	if c == nil {
		return cc
	}
	cc.UserName = c.Profile.FirstName()
	if c.Progress != nil {
		cc.CompletedModules = c.Progress.CompletedModules()
		cc.TotalModules = len(c.Progress.Modules)
		cc.CompletedLessons, cc.TotalLessons = c.Progress.LessonTotals()
	}
	if cl := c.ContinueLearning(); cl != nil {
		cc.ContinueModule = cl.ModuleTitle
		cc.ContinueLesson = cl.LessonTitle
	}
	for i, ch := range c.Challenges {
		if i == maxCompactChallenges {
			break
		}
		cc.Challenges = append(cc.Challenges, ChallengeSummary{
			Title:    ch.Title,
			Progress: ch.Progress,
			Target:   ch.Target,
			Joined:   ch.Joined(),
		})
	}
	return cc
}
