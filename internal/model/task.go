package model

import "time"

const (
	TaskTypePerPerson  = "per_person"
	TaskTypeCircleTask = "circle_task"
)

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

type CircleTask struct {
	ID               int64     `json:"id"`
	CircleID         int64     `json:"circle_id"`
	Name             string    `json:"name"`
	Value            int       `json:"value"`
	TaskType         string    `json:"task_type"`
	Category         string    `json:"category,omitempty"`
	CreatedByID      int64     `json:"created_by_id"`
	RequiresApproval bool      `json:"requires_approval"`
	ApprovalStatus   string    `json:"approval_status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Exclusive reports whether one completion per day claims the task for the
// whole circle.
func (t CircleTask) Exclusive() bool {
	return t.TaskType == TaskTypeCircleTask
}

type TaskCompletion struct {
	ID          int64     `json:"id"`
	CircleID    int64     `json:"circle_id"`
	TaskID      int64     `json:"task_id"`
	UserID      int64     `json:"user_id"`
	UserName    string    `json:"user_name"`
	Date        string    `json:"date"`
	CompletedAt time.Time `json:"completed_at"`
}
