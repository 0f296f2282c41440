package model

import "time"

const (
	RewardPoints = "points"
	RewardGift   = "gift"
	RewardBoth   = "both"
)

type Reward struct {
	Type   string `json:"type"`
	Points int    `json:"points,omitempty"`
	Gift   string `json:"gift,omitempty"`
}

// BonusPoints returns the points a reward grants, if any.
func (r *Reward) BonusPoints() int {
	if r == nil {
		return 0
	}
	if r.Type == RewardPoints || r.Type == RewardBoth {
		return r.Points
	}
	return 0
}

type CircleBadge struct {
	ID          int64      `json:"id"`
	CircleID    int64      `json:"circle_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Progress    int        `json:"progress"`
	Required    int        `json:"required"`
	Earned      bool       `json:"earned"`
	EarnedAt    *time.Time `json:"earned_at,omitempty"`
	Reward      *Reward    `json:"reward,omitempty"`
	TaskID      *int64     `json:"task_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Point grant sources.
const (
	GrantSourceBadge = "badge"
	GrantSourceAward = "award"
)

type PointGrant struct {
	ID         int64     `json:"id"`
	CircleID   int64     `json:"circle_id"`
	UserID     int64     `json:"user_id"`
	SourceKind string    `json:"source_kind"`
	SourceID   int64     `json:"source_id"`
	Period     string    `json:"period"`
	Points     int       `json:"points"`
	Date       string    `json:"date"`
	GrantedAt  time.Time `json:"granted_at"`
}
