package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/frisfocus/internal/model"
)

type TaskStore struct {
	db DBTX
}

func NewTaskStore(db DBTX) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, circle_id, name, value, task_type, category, created_by, requires_approval, approval_status, created_at, updated_at`

func scanTask(scanner interface{ Scan(...any) error }) (*model.CircleTask, error) {
	var t model.CircleTask
	var requires int
	err := scanner.Scan(
		&t.ID, &t.CircleID, &t.Name, &t.Value, &t.TaskType, &t.Category,
		&t.CreatedByID, &requires, &t.ApprovalStatus, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.RequiresApproval = requires != 0
	return &t, nil
}

// TaskInput holds the editable fields of a task.
type TaskInput struct {
	Name     string `json:"name"`
	Value    int    `json:"value"`
	TaskType string `json:"task_type"`
	Category string `json:"category,omitempty"`
}

// Create inserts an approved task. requiresApproval records that the task
// went through the approval queue.
func (s *TaskStore) Create(ctx context.Context, circleID, createdBy int64, in TaskInput, requiresApproval bool) (*model.CircleTask, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO circle_tasks (circle_id, name, value, task_type, category, created_by, requires_approval, approval_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 'approved')`,
		circleID, in.Name, in.Value, in.TaskType, in.Category, createdBy, boolInt(requiresApproval),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) GetByID(ctx context.Context, id int64) (*model.CircleTask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM circle_tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListByCircle returns a circle's approved tasks in creation order.
func (s *TaskStore) ListByCircle(ctx context.Context, circleID int64) ([]model.CircleTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM circle_tasks WHERE circle_id = ? AND approval_status = 'approved' ORDER BY id`, circleID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.CircleTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) Update(ctx context.Context, id int64, in TaskInput) (*model.CircleTask, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE circle_tasks SET name = ?, value = ?, task_type = ?, category = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.Name, in.Value, in.TaskType, in.Category, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM circle_tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
