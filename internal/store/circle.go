package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/frisfocus/internal/model"
)

type CircleStore struct {
	db DBTX
}

func NewCircleStore(db DBTX) *CircleStore {
	return &CircleStore{db: db}
}

func scanCircle(scanner interface{ Scan(...any) error }) (*model.Circle, error) {
	var c model.Circle
	var daily, weekly sql.NullInt64
	var code sql.NullString
	err := scanner.Scan(
		&c.ID, &c.Name, &c.Description, &c.IconColor, &c.CreatedBy,
		&daily, &weekly, &code, &c.CreatedAt, &c.UpdatedAt, &c.MemberCount,
	)
	if err != nil {
		return nil, err
	}
	c.DailyPointGoal = intPtr(daily)
	c.WeeklyPointGoal = intPtr(weekly)
	c.InviteCode = code.String
	return &c, nil
}

const circleCols = `c.id, c.name, c.description, c.icon_color, c.created_by,
	c.daily_point_goal, c.weekly_point_goal, c.invite_code, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM circle_members m WHERE m.circle_id = c.id)`

// CircleInput holds the mutable circle settings.
type CircleInput struct {
	Name            string
	Description     string
	IconColor       string
	DailyPointGoal  *int
	WeeklyPointGoal *int
}

// Create inserts a circle and its owner membership.
func (s *CircleStore) Create(ctx context.Context, ownerID int64, in CircleInput) (*model.Circle, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO circles (name, description, icon_color, created_by, daily_point_goal, weekly_point_goal)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.Name, in.Description, in.IconColor, ownerID, nullInt(in.DailyPointGoal), nullInt(in.WeeklyPointGoal),
	)
	if err != nil {
		return nil, fmt.Errorf("insert circle: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if _, err := s.AddMember(ctx, id, ownerID, model.RoleOwner); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *CircleStore) GetByID(ctx context.Context, id int64) (*model.Circle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+circleCols+` FROM circles c WHERE c.id = ?`, id)
	c, err := scanCircle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get circle: %w", err)
	}
	return c, nil
}

func (s *CircleStore) GetByInviteCode(ctx context.Context, code string) (*model.Circle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+circleCols+` FROM circles c WHERE c.invite_code = ?`, code)
	c, err := scanCircle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get circle by invite code: %w", err)
	}
	return c, nil
}

// ListByUser returns the circles a user belongs to, oldest membership first.
func (s *CircleStore) ListByUser(ctx context.Context, userID int64) ([]model.Circle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+circleCols+` FROM circles c
		 JOIN circle_members cm ON cm.circle_id = c.id
		 WHERE cm.user_id = ?
		 ORDER BY cm.joined_at ASC, c.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list circles: %w", err)
	}
	defer rows.Close()

	var circles []model.Circle
	for rows.Next() {
		c, err := scanCircle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan circle: %w", err)
		}
		circles = append(circles, *c)
	}
	return circles, rows.Err()
}

// ListIDs returns every circle id.
func (s *CircleStore) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM circles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list circle ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan circle id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *CircleStore) Update(ctx context.Context, id int64, in CircleInput) (*model.Circle, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE circles SET name = ?, description = ?, icon_color = ?, daily_point_goal = ?, weekly_point_goal = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		in.Name, in.Description, in.IconColor, nullInt(in.DailyPointGoal), nullInt(in.WeeklyPointGoal), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update circle: %w", err)
	}
	return s.GetByID(ctx, id)
}

// SetInviteCode replaces the circle's invite code. Returns ErrDuplicate if
// another circle already uses the code.
func (s *CircleStore) SetInviteCode(ctx context.Context, id int64, code string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE circles SET invite_code = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, code, id)
	if isUniqueViolation(err) {
		return fmt.Errorf("set invite code: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("set invite code: %w", err)
	}
	return nil
}

// --- Member methods ---

func scanMember(scanner interface{ Scan(...any) error }) (*model.CircleMember, error) {
	var m model.CircleMember
	err := scanner.Scan(&m.ID, &m.CircleID, &m.UserID, &m.FirstName, &m.LastName, &m.Role, &m.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const memberCols = `cm.id, cm.circle_id, cm.user_id, u.first_name, u.last_name, cm.role, cm.joined_at`

func (s *CircleStore) AddMember(ctx context.Context, circleID, userID int64, role string) (*model.CircleMember, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO circle_members (circle_id, user_id, role) VALUES (?, ?, ?)`,
		circleID, userID, role,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("add member: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return s.GetMember(ctx, circleID, userID)
}

func (s *CircleStore) GetMember(ctx context.Context, circleID, userID int64) (*model.CircleMember, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberCols+` FROM circle_members cm JOIN users u ON u.id = cm.user_id
		 WHERE cm.circle_id = ? AND cm.user_id = ?`,
		circleID, userID,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListMembers returns members in join order.
func (s *CircleStore) ListMembers(ctx context.Context, circleID int64) ([]model.CircleMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberCols+` FROM circle_members cm JOIN users u ON u.id = cm.user_id
		 WHERE cm.circle_id = ? ORDER BY cm.joined_at ASC, cm.id ASC`,
		circleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.CircleMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// ListManagers returns the owner and admins of a circle.
func (s *CircleStore) ListManagers(ctx context.Context, circleID int64) ([]model.CircleMember, error) {
	members, err := s.ListMembers(ctx, circleID)
	if err != nil {
		return nil, err
	}
	var out []model.CircleMember
	for _, m := range members {
		if m.CanManage() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *CircleStore) UpdateMemberRole(ctx context.Context, circleID, userID int64, role string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE circle_members SET role = ? WHERE circle_id = ? AND user_id = ?`,
		role, circleID, userID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("update member role: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	return nil
}

func (s *CircleStore) RemoveMember(ctx context.Context, circleID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM circle_members WHERE circle_id = ? AND user_id = ?`,
		circleID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// CountOwners returns the number of owner memberships of a circle.
func (s *CircleStore) CountOwners(ctx context.Context, circleID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM circle_members WHERE circle_id = ? AND role = ?`,
		circleID, model.RoleOwner,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count owners: %w", err)
	}
	return n, nil
}
