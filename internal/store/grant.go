package store

import (
	"context"
	"fmt"

	"github.com/dukerupert/frisfocus/internal/model"
)

// GrantStore records bonus points from badge and award rewards. Each
// (source, period) pays out at most once.
type GrantStore struct {
	db DBTX
}

func NewGrantStore(db DBTX) *GrantStore {
	return &GrantStore{db: db}
}

const grantCols = `id, circle_id, user_id, source_kind, source_id, period, points, date, granted_at`

func scanGrant(scanner interface{ Scan(...any) error }) (*model.PointGrant, error) {
	var g model.PointGrant
	err := scanner.Scan(&g.ID, &g.CircleID, &g.UserID, &g.SourceKind, &g.SourceID, &g.Period, &g.Points, &g.Date, &g.GrantedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Insert stores a grant. Returns ErrDuplicate if the source already paid out
// for the period.
func (s *GrantStore) Insert(ctx context.Context, g model.PointGrant) (*model.PointGrant, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO point_grants (circle_id, user_id, source_kind, source_id, period, points, date, granted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.CircleID, g.UserID, g.SourceKind, g.SourceID, g.Period, g.Points, g.Date, g.GrantedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert grant: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert grant: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+grantCols+` FROM point_grants WHERE id = ?`, id)
	return scanGrant(row)
}

// ListRange returns a circle's grants with from <= date < to. Empty bounds
// are open.
func (s *GrantStore) ListRange(ctx context.Context, circleID int64, from, to string) ([]model.PointGrant, error) {
	query := `SELECT ` + grantCols + ` FROM point_grants WHERE circle_id = ?`
	args := []any{circleID}
	if from != "" {
		query += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date < ?`
		args = append(args, to)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY granted_at ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []model.PointGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

// SumRange totals a circle's bonus points with from <= date < to.
func (s *GrantStore) SumRange(ctx context.Context, circleID int64, from, to string) (int, error) {
	grants, err := s.ListRange(ctx, circleID, from, to)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, g := range grants {
		total += g.Points
	}
	return total, nil
}

// SumBySource totals every grant a circle received from one kind of source.
func (s *GrantStore) SumBySource(ctx context.Context, circleID int64, sourceKind string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM point_grants WHERE circle_id = ? AND source_kind = ?`,
		circleID, sourceKind,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum grants by source: %w", err)
	}
	return total, nil
}
