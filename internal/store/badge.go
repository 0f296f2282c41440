package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/frisfocus/internal/model"
)

type BadgeStore struct {
	db DBTX
}

func NewBadgeStore(db DBTX) *BadgeStore {
	return &BadgeStore{db: db}
}

const badgeCols = `id, circle_id, name, description, progress, required, earned, earned_at,
	reward_type, reward_points, reward_gift, task_id, created_at`

func scanBadge(scanner interface{ Scan(...any) error }) (*model.CircleBadge, error) {
	var b model.CircleBadge
	var earned int
	var earnedAt sql.NullTime
	var reward model.Reward
	var taskID sql.NullInt64
	err := scanner.Scan(
		&b.ID, &b.CircleID, &b.Name, &b.Description, &b.Progress, &b.Required, &earned, &earnedAt,
		&reward.Type, &reward.Points, &reward.Gift, &taskID, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Earned = earned != 0
	b.EarnedAt = timePtr(earnedAt)
	if reward.Type != "" {
		b.Reward = &reward
	}
	b.TaskID = int64Ptr(taskID)
	return &b, nil
}

// BadgeInput holds the editable fields of a badge.
type BadgeInput struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Required    int           `json:"required"`
	Reward      *model.Reward `json:"reward,omitempty"`
	TaskID      *int64        `json:"task_id,omitempty"`
}

func rewardCols(r *model.Reward) (string, int, string) {
	if r == nil {
		return "", 0, ""
	}
	return r.Type, r.Points, r.Gift
}

func (s *BadgeStore) Create(ctx context.Context, circleID int64, in BadgeInput) (*model.CircleBadge, error) {
	rt, rp, rg := rewardCols(in.Reward)
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO circle_badges (circle_id, name, description, required, reward_type, reward_points, reward_gift, task_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		circleID, in.Name, in.Description, in.Required, rt, rp, rg, nullInt64(in.TaskID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert badge: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *BadgeStore) GetByID(ctx context.Context, id int64) (*model.CircleBadge, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+badgeCols+` FROM circle_badges WHERE id = ?`, id)
	b, err := scanBadge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get badge: %w", err)
	}
	return b, nil
}

func (s *BadgeStore) ListByCircle(ctx context.Context, circleID int64) ([]model.CircleBadge, error) {
	return s.list(ctx, `circle_id = ?`, circleID)
}

// ListByTask returns the badges whose progress is driven by a task.
func (s *BadgeStore) ListByTask(ctx context.Context, taskID int64) ([]model.CircleBadge, error) {
	return s.list(ctx, `task_id = ?`, taskID)
}

func (s *BadgeStore) list(ctx context.Context, where string, args ...any) ([]model.CircleBadge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+badgeCols+` FROM circle_badges WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var badges []model.CircleBadge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, *b)
	}
	return badges, rows.Err()
}

// Update replaces the editable fields. Progress and earned state are kept.
func (s *BadgeStore) Update(ctx context.Context, id int64, in BadgeInput) (*model.CircleBadge, error) {
	rt, rp, rg := rewardCols(in.Reward)
	_, err := s.db.ExecContext(ctx,
		`UPDATE circle_badges SET name = ?, description = ?, required = ?, reward_type = ?, reward_points = ?,
		 reward_gift = ?, task_id = ? WHERE id = ?`,
		in.Name, in.Description, in.Required, rt, rp, rg, nullInt64(in.TaskID), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update badge: %w", err)
	}
	return s.GetByID(ctx, id)
}

// SaveProgress persists progress and earned state.
func (s *BadgeStore) SaveProgress(ctx context.Context, b model.CircleBadge) error {
	var earnedAt sql.NullTime
	if b.EarnedAt != nil {
		earnedAt = sql.NullTime{Time: b.EarnedAt.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE circle_badges SET progress = ?, earned = ?, earned_at = ? WHERE id = ?`,
		b.Progress, boolInt(b.Earned), earnedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("save badge progress: %w", err)
	}
	return nil
}

func (s *BadgeStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM circle_badges WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete badge: %w", err)
	}
	return nil
}
