package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/frisfocus/internal/model"
)

type RequestStore struct {
	db DBTX
}

func NewRequestStore(db DBTX) *RequestStore {
	return &RequestStore{db: db}
}

const requestCols = `id, circle_id, requester_id, kind, action, target_id, payload, status, reviewed_by_id, reviewed_at, created_at`

func scanRequest(scanner interface{ Scan(...any) error }) (*model.ApprovalRequest, error) {
	var r model.ApprovalRequest
	var targetID, reviewedBy sql.NullInt64
	var reviewedAt sql.NullTime
	var payload string
	err := scanner.Scan(
		&r.ID, &r.CircleID, &r.RequesterID, &r.Kind, &r.Action, &targetID, &payload,
		&r.Status, &reviewedBy, &reviewedAt, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.TargetID = int64Ptr(targetID)
	r.Payload = json.RawMessage(payload)
	r.ReviewedByID = int64Ptr(reviewedBy)
	r.ReviewedAt = timePtr(reviewedAt)
	return &r, nil
}

// Create queues a pending request. payload is marshaled to JSON.
func (s *RequestStore) Create(ctx context.Context, circleID, requesterID int64, kind, action string, targetID *int64, payload any) (*model.ApprovalRequest, error) {
	data := []byte("{}")
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request payload: %w", err)
		}
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO approval_requests (circle_id, requester_id, kind, action, target_id, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		circleID, requesterID, kind, action, nullInt64(targetID), string(data),
	)
	if err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RequestStore) GetByID(ctx context.Context, id int64) (*model.ApprovalRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestCols+` FROM approval_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

// ListByCircle returns a circle's requests, optionally filtered by kind and
// status, oldest first.
func (s *RequestStore) ListByCircle(ctx context.Context, circleID int64, kind, status string) ([]model.ApprovalRequest, error) {
	query := `SELECT ` + requestCols + ` FROM approval_requests WHERE circle_id = ?`
	args := []any{circleID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []model.ApprovalRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Resolve moves a pending request to status. It reports false if the
// request was no longer pending.
func (s *RequestStore) Resolve(ctx context.Context, id int64, status string, reviewerID int64, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE approval_requests SET status = ?, reviewed_by_id = ?, reviewed_at = ?
		 WHERE id = ? AND status = 'pending'`,
		status, reviewerID, at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("resolve request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
