package model

import (
	"encoding/json"
	"time"
)

// Approval request target kinds.
const (
	RequestKindTask  = "task"
	RequestKindBadge = "badge"
	RequestKindAward = "award"
)

// Approval request actions.
const (
	RequestAdd    = "add"
	RequestEdit   = "edit"
	RequestDelete = "delete"
)

// ApprovalRequest is a queued mutation submitted by a member who may not
// apply it directly. Status follows pending -> approved | rejected.
type ApprovalRequest struct {
	ID           int64           `json:"id"`
	CircleID     int64           `json:"circle_id"`
	RequesterID  int64           `json:"requester_id"`
	Kind         string          `json:"kind"`
	Action       string          `json:"action"`
	TargetID     *int64          `json:"target_id,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	ReviewedByID *int64          `json:"reviewed_by_id,omitempty"`
	ReviewedAt   *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
