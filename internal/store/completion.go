package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/frisfocus/internal/model"
)

type CompletionStore struct {
	db DBTX
}

func NewCompletionStore(db DBTX) *CompletionStore {
	return &CompletionStore{db: db}
}

const completionCols = `tc.id, tc.circle_id, tc.task_id, tc.user_id, u.first_name, u.last_name, tc.date, tc.completed_at`

const completionFrom = ` FROM task_completions tc JOIN users u ON u.id = tc.user_id`

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.TaskCompletion, error) {
	var c model.TaskCompletion
	var first, last string
	if err := scanner.Scan(&c.ID, &c.CircleID, &c.TaskID, &c.UserID, &first, &last, &c.Date, &c.CompletedAt); err != nil {
		return nil, err
	}
	c.UserName = strings.TrimSpace(first + " " + last)
	return &c, nil
}

// Insert records a completion. Returns ErrDuplicate when the user already
// completed the task on that date or, for exclusive tasks, when another
// member claimed it first.
func (s *CompletionStore) Insert(ctx context.Context, circleID, taskID, userID int64, date string, exclusive bool, at time.Time) (*model.TaskCompletion, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO task_completions (circle_id, task_id, user_id, date, exclusive, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		circleID, taskID, userID, date, boolInt(exclusive), at.UTC(),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert completion: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *CompletionStore) GetByID(ctx context.Context, id int64) (*model.TaskCompletion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+completionCols+completionFrom+` WHERE tc.id = ?`, id)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

// Find returns the user's completion of a task on a date, or nil.
func (s *CompletionStore) Find(ctx context.Context, taskID, userID int64, date string) (*model.TaskCompletion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+completionCols+completionFrom+` WHERE tc.task_id = ? AND tc.user_id = ? AND tc.date = ?`,
		taskID, userID, date,
	)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find completion: %w", err)
	}
	return c, nil
}

// FindClaim returns any completion of a task on a date, earliest first.
func (s *CompletionStore) FindClaim(ctx context.Context, taskID int64, date string) (*model.TaskCompletion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+completionCols+completionFrom+` WHERE tc.task_id = ? AND tc.date = ?
		 ORDER BY tc.completed_at ASC, tc.id ASC LIMIT 1`,
		taskID, date,
	)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find claim: %w", err)
	}
	return c, nil
}

// SharedDays counts the dates on which more than one member completed the
// task.
func (s *CompletionStore) SharedDays(ctx context.Context, taskID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM (
			SELECT date FROM task_completions WHERE task_id = ? GROUP BY date HAVING COUNT(*) > 1
		 )`, taskID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count shared days: %w", err)
	}
	return n, nil
}

// SetExclusive marks every completion of the task as claiming (or not
// claiming) its date. Returns ErrDuplicate if a date would gain two claims.
func (s *CompletionStore) SetExclusive(ctx context.Context, taskID int64, exclusive bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE task_completions SET exclusive = ? WHERE task_id = ?`, boolInt(exclusive), taskID)
	if isUniqueViolation(err) {
		return fmt.Errorf("set exclusive: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("set exclusive: %w", err)
	}
	return nil
}

func (s *CompletionStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM task_completions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return nil
}

// ListByDate returns a circle's completions on one date.
func (s *CompletionStore) ListByDate(ctx context.Context, circleID int64, date string) ([]model.TaskCompletion, error) {
	return s.list(ctx, `tc.circle_id = ? AND tc.date = ?`, circleID, date)
}

// ListRange returns a circle's completions with from <= date < to. Empty
// bounds are open.
func (s *CompletionStore) ListRange(ctx context.Context, circleID int64, from, to string) ([]model.TaskCompletion, error) {
	where := `tc.circle_id = ?`
	args := []any{circleID}
	if from != "" {
		where += ` AND tc.date >= ?`
		args = append(args, from)
	}
	if to != "" {
		where += ` AND tc.date < ?`
		args = append(args, to)
	}
	return s.list(ctx, where, args...)
}

// ListByTask returns every completion of one task.
func (s *CompletionStore) ListByTask(ctx context.Context, taskID int64) ([]model.TaskCompletion, error) {
	return s.list(ctx, `tc.task_id = ?`, taskID)
}

func (s *CompletionStore) list(ctx context.Context, where string, args ...any) ([]model.TaskCompletion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+completionCols+completionFrom+` WHERE `+where+` ORDER BY tc.completed_at ASC, tc.id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var out []model.TaskCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
