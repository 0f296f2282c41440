package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate row")

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every store can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Stores bundles every store over one connection or transaction.
type Stores struct {
	Users        *UserStore
	Sessions     *SessionStore
	Circles      *CircleStore
	Tasks        *TaskStore
	Completions  *CompletionStore
	Badges       *BadgeStore
	Awards       *AwardStore
	Grants       *GrantStore
	Requests     *RequestStore
	Competitions *CompetitionStore
	Push         *PushStore
}

func New(db DBTX) *Stores {
	return &Stores{
		Users:        NewUserStore(db),
		Sessions:     NewSessionStore(db),
		Circles:      NewCircleStore(db),
		Tasks:        NewTaskStore(db),
		Completions:  NewCompletionStore(db),
		Badges:       NewBadgeStore(db),
		Awards:       NewAwardStore(db),
		Grants:       NewGrantStore(db),
		Requests:     NewRequestStore(db),
		Competitions: NewCompetitionStore(db),
		Push:         NewPushStore(db),
	}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
