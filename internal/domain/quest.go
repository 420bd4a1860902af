package domain

// Quest status values.
const (
	QuestStatusActive  = "active"
	QuestStatusClaimed = "claimed"
)

// QuestReward describes what a quest grants on completion.
type QuestReward struct {
	XP *int `json:"xp,omitempty"`
}

// Quest is a personal objective tracked for a member.
type Quest struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Progress    int         `json:"progress"`
	Target      int         `json:"target"`
	Percentage  int         `json:"percentage"`
	Reward      QuestReward `json:"reward"`
	Status      string      `json:"status"`
}

// InProgress returns true while the quest is active and its target not met.
func (q *Quest) InProgress() bool {
	return q.Status == QuestStatusActive && q.Progress < q.Target
}

// Done returns true when the target has been reached.
func (q *Quest) Done() bool {
	return q.Progress >= q.Target
}
