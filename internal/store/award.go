package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/frisfocus/internal/model"
)

type AwardStore struct {
	db DBTX
}

func NewAwardStore(db DBTX) *AwardStore {
	return &AwardStore{db: db}
}

// The winner columns come from the most recent win of the award.
const awardCols = `a.id, a.circle_id, a.name, a.description, a.award_type, a.target_points, a.category,
	a.reward_type, a.reward_points, a.reward_gift, a.created_at,
	w.user_id, w.user_name, w.achieved_at`

const awardFrom = ` FROM circle_awards a
	LEFT JOIN award_wins w ON w.id = (
		SELECT id FROM award_wins WHERE award_id = a.id ORDER BY achieved_at DESC, id DESC LIMIT 1
	)`

func scanAward(scanner interface{ Scan(...any) error }) (*model.CircleAward, error) {
	var a model.CircleAward
	var reward model.Reward
	var winnerID sql.NullInt64
	var winnerName sql.NullString
	var achievedAt sql.NullTime
	err := scanner.Scan(
		&a.ID, &a.CircleID, &a.Name, &a.Description, &a.Type, &a.TargetPoints, &a.Category,
		&reward.Type, &reward.Points, &reward.Gift, &a.CreatedAt,
		&winnerID, &winnerName, &achievedAt,
	)
	if err != nil {
		return nil, err
	}
	if reward.Type != "" {
		a.Reward = &reward
	}
	if winnerID.Valid {
		a.Winner = &model.AwardWinner{UserID: winnerID.Int64, UserName: winnerName.String, AchievedAt: achievedAt.Time}
	}
	return &a, nil
}

// AwardInput holds the editable fields of an award.
type AwardInput struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Type         string        `json:"type"`
	TargetPoints int           `json:"target_points,omitempty"`
	Category     string        `json:"category,omitempty"`
	Reward       *model.Reward `json:"reward,omitempty"`
}

// Create inserts an award. createdAt marks the first week a boundary award
// can be won.
func (s *AwardStore) Create(ctx context.Context, circleID int64, in AwardInput, createdAt time.Time) (*model.CircleAward, error) {
	rt, rp, rg := rewardCols(in.Reward)
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO circle_awards (circle_id, name, description, award_type, target_points, category, reward_type, reward_points, reward_gift, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		circleID, in.Name, in.Description, in.Type, in.TargetPoints, in.Category, rt, rp, rg, createdAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert award: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *AwardStore) GetByID(ctx context.Context, id int64) (*model.CircleAward, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+awardCols+awardFrom+` WHERE a.id = ?`, id)
	a, err := scanAward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get award: %w", err)
	}
	return a, nil
}

func (s *AwardStore) ListByCircle(ctx context.Context, circleID int64) ([]model.CircleAward, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+awardCols+awardFrom+` WHERE a.circle_id = ? ORDER BY a.id`, circleID)
	if err != nil {
		return nil, fmt.Errorf("list awards: %w", err)
	}
	defer rows.Close()

	var awards []model.CircleAward
	for rows.Next() {
		a, err := scanAward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan award: %w", err)
		}
		awards = append(awards, *a)
	}
	return awards, rows.Err()
}

func (s *AwardStore) Update(ctx context.Context, id int64, in AwardInput) (*model.CircleAward, error) {
	rt, rp, rg := rewardCols(in.Reward)
	_, err := s.db.ExecContext(ctx,
		`UPDATE circle_awards SET name = ?, description = ?, award_type = ?, target_points = ?, category = ?,
		 reward_type = ?, reward_points = ?, reward_gift = ? WHERE id = ?`,
		in.Name, in.Description, in.Type, in.TargetPoints, in.Category, rt, rp, rg, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update award: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *AwardStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM circle_awards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete award: %w", err)
	}
	return nil
}

// --- Win methods ---

const winCols = `id, award_id, period, user_id, user_name, points, achieved_at`

func scanWin(scanner interface{ Scan(...any) error }) (*model.AwardWin, error) {
	var w model.AwardWin
	if err := scanner.Scan(&w.ID, &w.AwardID, &w.Period, &w.UserID, &w.UserName, &w.Points, &w.AchievedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

// RecordWin stores the winner of one award period. Returns ErrDuplicate if
// the period already has a winner.
func (s *AwardStore) RecordWin(ctx context.Context, w model.AwardWin) (*model.AwardWin, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO award_wins (award_id, period, user_id, user_name, points, achieved_at) VALUES (?, ?, ?, ?, ?, ?)`,
		w.AwardID, w.Period, w.UserID, w.UserName, w.Points, w.AchievedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("record award win: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("record award win: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+winCols+` FROM award_wins WHERE id = ?`, id)
	return scanWin(row)
}

func (s *AwardStore) GetWin(ctx context.Context, awardID int64, period string) (*model.AwardWin, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+winCols+` FROM award_wins WHERE award_id = ? AND period = ?`, awardID, period)
	w, err := scanWin(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get award win: %w", err)
	}
	return w, nil
}

// ListWins returns an award's wins, most recent first.
func (s *AwardStore) ListWins(ctx context.Context, awardID int64) ([]model.AwardWin, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+winCols+` FROM award_wins WHERE award_id = ? ORDER BY achieved_at DESC, id DESC`, awardID)
	if err != nil {
		return nil, fmt.Errorf("list award wins: %w", err)
	}
	defer rows.Close()

	var wins []model.AwardWin
	for rows.Next() {
		w, err := scanWin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan award win: %w", err)
		}
		wins = append(wins, *w)
	}
	return wins, rows.Err()
}
