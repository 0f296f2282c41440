package model

import "time"

const (
	AwardFirstTo        = "first_to"
	AwardMostInCategory = "most_in_category"
	AwardWeeklyChampion = "weekly_champion"
)

// PeriodOnce is the AwardWin period of awards that can only be won once.
const PeriodOnce = "once"

type AwardWinner struct {
	UserID     int64     `json:"user_id"`
	UserName   string    `json:"user_name"`
	AchievedAt time.Time `json:"achieved_at"`
}

type CircleAward struct {
	ID           int64        `json:"id"`
	CircleID     int64        `json:"circle_id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Type         string       `json:"type"`
	TargetPoints int          `json:"target_points,omitempty"`
	Category     string       `json:"category,omitempty"`
	Winner       *AwardWinner `json:"winner,omitempty"`
	Reward       *Reward      `json:"reward,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

type AwardWin struct {
	ID         int64     `json:"id"`
	AwardID    int64     `json:"award_id"`
	Period     string    `json:"period"`
	UserID     int64     `json:"user_id"`
	UserName   string    `json:"user_name"`
	Points     int       `json:"points"`
	AchievedAt time.Time `json:"achieved_at"`
}
