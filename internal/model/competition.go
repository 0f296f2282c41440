package model

import "time"

const (
	CompetitionTargetPoints = "targetPoints"
	CompetitionTimed        = "timed"
	CompetitionOngoing      = "ongoing"
)

const (
	CompetitionActive    = "active"
	CompetitionCompleted = "completed"
)

const (
	InvitePending  = "pending"
	InviteAccepted = "accepted"
	InviteDeclined = "declined"
)

// Competition is stored with the inviting circle as CircleA and the invitee
// as CircleB.
type Competition struct {
	ID           int64      `json:"id"`
	InviteID     *int64     `json:"invite_id,omitempty"`
	Name         string     `json:"name"`
	Type         string     `json:"competition_type"`
	TargetPoints int        `json:"target_points"`
	CircleA      int64      `json:"circle_a"`
	CircleB      int64      `json:"circle_b"`
	StartDate    string     `json:"start_date"`
	EndDate      *string    `json:"end_date,omitempty"`
	Status       string     `json:"status"`
	WinnerID     *int64     `json:"winner_id,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	FinalPointsA *int       `json:"-"`
	FinalPointsB *int       `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Opponent returns the other circle of the competition.
func (c Competition) Opponent(circleID int64) int64 {
	if c.CircleA == circleID {
		return c.CircleB
	}
	return c.CircleA
}

// Involves reports whether circleID takes part in the competition.
func (c Competition) Involves(circleID int64) bool {
	return c.CircleA == circleID || c.CircleB == circleID
}

type CircleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CompetitionView projects a competition relative to one of its circles.
type CompetitionView struct {
	Competition
	MyCircle       CircleRef `json:"my_circle"`
	OpponentCircle CircleRef `json:"opponent_circle"`
	MyPoints       int       `json:"my_points"`
	OpponentPoints int       `json:"opponent_points"`
}

type CompetitionInvite struct {
	ID              int64      `json:"id"`
	InviterCircle   int64      `json:"inviter_circle"`
	InviteeCircle   int64      `json:"invitee_circle"`
	InviterName     string     `json:"inviter_name,omitempty"`
	InviteeName     string     `json:"invitee_name,omitempty"`
	Name            string     `json:"name"`
	CompetitionType string     `json:"competition_type"`
	TargetPoints    int        `json:"target_points"`
	EndDate         *string    `json:"end_date,omitempty"`
	Notes           string     `json:"notes"`
	Status          string     `json:"status"`
	CreatedBy       int64      `json:"created_by"`
	ResolvedBy      *int64     `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
