package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/frisfocus/internal/model"
)

type CompetitionStore struct {
	db DBTX
}

func NewCompetitionStore(db DBTX) *CompetitionStore {
	return &CompetitionStore{db: db}
}

// --- Invite methods ---

const inviteCols = `i.id, i.inviter_circle, i.invitee_circle, ca.name, cb.name, i.name, i.competition_type,
	i.target_points, i.end_date, i.notes, i.status, i.created_by, i.resolved_by, i.resolved_at, i.created_at`

const inviteFrom = ` FROM competition_invites i
	JOIN circles ca ON ca.id = i.inviter_circle
	JOIN circles cb ON cb.id = i.invitee_circle`

func scanInvite(scanner interface{ Scan(...any) error }) (*model.CompetitionInvite, error) {
	var inv model.CompetitionInvite
	var endDate sql.NullString
	var resolvedBy sql.NullInt64
	var resolvedAt sql.NullTime
	err := scanner.Scan(
		&inv.ID, &inv.InviterCircle, &inv.InviteeCircle, &inv.InviterName, &inv.InviteeName, &inv.Name,
		&inv.CompetitionType, &inv.TargetPoints, &endDate, &inv.Notes, &inv.Status, &inv.CreatedBy,
		&resolvedBy, &resolvedAt, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.EndDate = stringPtr(endDate)
	inv.ResolvedBy = int64Ptr(resolvedBy)
	inv.ResolvedAt = timePtr(resolvedAt)
	return &inv, nil
}

// InviteInput describes a proposed competition.
type InviteInput struct {
	InviterCircle int64
	InviteeCircle int64
	Name          string
	Type          string
	TargetPoints  int
	EndDate       *string
	Notes         string
	CreatedBy     int64
}

func (s *CompetitionStore) CreateInvite(ctx context.Context, in InviteInput) (*model.CompetitionInvite, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO competition_invites (inviter_circle, invitee_circle, name, competition_type, target_points, end_date, notes, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.InviterCircle, in.InviteeCircle, in.Name, in.Type, in.TargetPoints, nullString(in.EndDate), in.Notes, in.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetInvite(ctx, id)
}

func (s *CompetitionStore) GetInvite(ctx context.Context, id int64) (*model.CompetitionInvite, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inviteCols+inviteFrom+` WHERE i.id = ?`, id)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return inv, nil
}

// ListInvites returns pending invites sent or received by a circle, newest
// first.
func (s *CompetitionStore) ListInvites(ctx context.Context, circleID int64) ([]model.CompetitionInvite, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+inviteCols+inviteFrom+`
		 WHERE (i.inviter_circle = ? OR i.invitee_circle = ?) AND i.status = 'pending'
		 ORDER BY i.created_at DESC, i.id DESC`,
		circleID, circleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	var out []model.CompetitionInvite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// ResolveInvite moves a pending invite to status. It reports false if the
// invite was no longer pending.
func (s *CompetitionStore) ResolveInvite(ctx context.Context, id int64, status string, userID int64, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE competition_invites SET status = ?, resolved_by = ?, resolved_at = ?
		 WHERE id = ? AND status = 'pending'`,
		status, userID, at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("resolve invite: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// --- Competition methods ---

const competitionCols = `id, invite_id, name, competition_type, target_points, circle_a, circle_b,
	start_date, end_date, status, winner_id, completed_at, final_points_a, final_points_b, created_at`

func scanCompetition(scanner interface{ Scan(...any) error }) (*model.Competition, error) {
	var c model.Competition
	var inviteID, winnerID, finalA, finalB sql.NullInt64
	var endDate sql.NullString
	var completedAt sql.NullTime
	err := scanner.Scan(
		&c.ID, &inviteID, &c.Name, &c.Type, &c.TargetPoints, &c.CircleA, &c.CircleB,
		&c.StartDate, &endDate, &c.Status, &winnerID, &completedAt, &finalA, &finalB, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.InviteID = int64Ptr(inviteID)
	c.EndDate = stringPtr(endDate)
	c.WinnerID = int64Ptr(winnerID)
	c.CompletedAt = timePtr(completedAt)
	if finalA.Valid && finalB.Valid {
		a, b := int(finalA.Int64), int(finalB.Int64)
		c.FinalPointsA, c.FinalPointsB = &a, &b
	}
	return &c, nil
}

func (s *CompetitionStore) Create(ctx context.Context, c model.Competition) (*model.Competition, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO competitions (invite_id, name, competition_type, target_points, circle_a, circle_b, start_date, end_date, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt64(c.InviteID), c.Name, c.Type, c.TargetPoints, c.CircleA, c.CircleB, c.StartDate,
		nullString(c.EndDate), model.CompetitionActive,
	)
	if err != nil {
		return nil, fmt.Errorf("insert competition: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *CompetitionStore) GetByID(ctx context.Context, id int64) (*model.Competition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+competitionCols+` FROM competitions WHERE id = ?`, id)
	c, err := scanCompetition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get competition: %w", err)
	}
	return c, nil
}

// ListByCircle returns competitions a circle takes part in. An empty status
// matches every status. Newest first.
func (s *CompetitionStore) ListByCircle(ctx context.Context, circleID int64, status string) ([]model.Competition, error) {
	query := `SELECT ` + competitionCols + ` FROM competitions WHERE (circle_a = ? OR circle_b = ?)`
	args := []any{circleID, circleID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	return s.list(ctx, query+` ORDER BY created_at DESC, id DESC`, args...)
}

// ListActive returns every active competition.
func (s *CompetitionStore) ListActive(ctx context.Context) ([]model.Competition, error) {
	return s.list(ctx, `SELECT `+competitionCols+` FROM competitions WHERE status = 'active' ORDER BY id`)
}

// ActiveBetween reports whether two circles already have an active
// competition.
func (s *CompetitionStore) ActiveBetween(ctx context.Context, a, b int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM competitions
		 WHERE status = 'active' AND ((circle_a = ? AND circle_b = ?) OR (circle_a = ? AND circle_b = ?))`,
		a, b, b, a,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count active competitions: %w", err)
	}
	return n > 0, nil
}

func (s *CompetitionStore) list(ctx context.Context, query string, args ...any) ([]model.Competition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	defer rows.Close()

	var out []model.Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan competition: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Complete marks an active competition completed. It reports false if the
// competition had already completed.
// Complete records the outcome and final totals of an active competition.
// It reports false when the competition was already completed.
func (s *CompetitionStore) Complete(ctx context.Context, id int64, winnerID *int64, pointsA, pointsB int, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE competitions SET status = 'completed', winner_id = ?, completed_at = ?,
		 final_points_a = ?, final_points_b = ?
		 WHERE id = ? AND status = 'active'`,
		nullInt64(winnerID), at.UTC(), pointsA, pointsB, id,
	)
	if err != nil {
		return false, fmt.Errorf("complete competition: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
