package model

import "time"

// Member roles. Each circle has exactly one owner.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Circle struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	IconColor       string    `json:"icon_color"`
	CreatedBy       int64     `json:"created_by"`
	MemberCount     int       `json:"member_count"`
	DailyPointGoal  *int      `json:"daily_point_goal,omitempty"`
	WeeklyPointGoal *int      `json:"weekly_point_goal,omitempty"`
	InviteCode      string    `json:"invite_code,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CircleMember struct {
	ID        int64     `json:"id"`
	CircleID  int64     `json:"circle_id"`
	UserID    int64     `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Name returns the member's display name.
func (m CircleMember) Name() string {
	if m.LastName == "" {
		return m.FirstName
	}
	if m.FirstName == "" {
		return m.LastName
	}
	return m.FirstName + " " + m.LastName
}

// CanManage reports whether the member may apply mutations directly.
func (m CircleMember) CanManage() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}
