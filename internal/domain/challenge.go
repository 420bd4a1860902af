package domain

import (
	"time"
)

// Participation records a member's enrollment in a challenge.
type Participation struct {
	JoinedAt      time.Time  `json:"joined_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	RewardClaimed bool       `json:"reward_claimed"`
}

// Challenge represents a time-boxed community challenge.
type Challenge struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Progress      int            `json:"progress"`
	Target        int            `json:"target"`
	Reward        string         `json:"reward"`
	Participants  int            `json:"participants"`
	UserRank      *int           `json:"user_rank,omitempty"`
	Participation *Participation `json:"participation,omitempty"`
	EndsAt        time.Time      `json:"ends_at"`
}

// Joined returns true if the member is enrolled in the challenge.
func (c *Challenge) Joined() bool {
	return c.Participation != nil
}

// Completed returns true if the member finished the challenge.
func (c *Challenge) Completed() bool {
	return c.Participation != nil && c.Participation.CompletedAt != nil
}

// Claimable returns true if the challenge is completed and its reward not yet claimed.
func (c *Challenge) Claimable() bool {
	return c.Completed() && !c.Participation.RewardClaimed
}

// Remaining returns how many steps are left before the target is reached.
func (c *Challenge) Remaining() int {
	if c.Progress >= c.Target {
		return 0
	}
	return c.Target - c.Progress
}
