// Package service applies the FrisFocus rules on top of the store: who may
// change what, how completions move points, and when badges, awards and
// competitions resolve. Every mutation runs in one immediate transaction.
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/dukerupert/frisfocus/internal/cache"
	"github.com/dukerupert/frisfocus/internal/clock"
	"github.com/dukerupert/frisfocus/internal/database"
	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/objectacl"
	"github.com/dukerupert/frisfocus/internal/store"
)

// Broadcaster fans realtime events out to the clients watching a circle.
type Broadcaster interface {
	BroadcastCircle(circleID int64, entity, action string, id int64, extra map[string]any)
}

// Notifier delivers out-of-band notifications to a circle's owner and admins.
type Notifier interface {
	NotifyManagers(ctx context.Context, circleID int64, title, body, tag string)
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastCircle(int64, string, string, int64, map[string]any) {}

type nopNotifier struct{}

func (nopNotifier) NotifyManagers(context.Context, int64, string, string, string) {}

type Options struct {
	Clock       clock.Clock
	Cache       cache.Cache
	Broadcaster Broadcaster
	Notifier    Notifier
	Objects     objectacl.Store
	Logger      *slog.Logger
	SessionTTL  time.Duration
}

type Service struct {
	db         *sql.DB
	clock      clock.Clock
	cache      cache.Cache
	events     Broadcaster
	notify     Notifier
	objects    objectacl.Store
	logger     *slog.Logger
	metrics    *metrics
	sessionTTL time.Duration
}

func New(db *sql.DB, opts Options) *Service {
	s := &Service{
		db:         db,
		clock:      opts.Clock,
		cache:      opts.Cache,
		events:     opts.Broadcaster,
		notify:     opts.Notifier,
		objects:    opts.Objects,
		logger:     opts.Logger,
		metrics:    newMetrics(),
		sessionTTL: opts.SessionTTL,
	}
	if s.clock == nil {
		s.clock = clock.System(nil)
	}
	if s.cache == nil {
		s.cache = cache.NewMemory()
	}
	if s.events == nil {
		s.events = nopBroadcaster{}
	}
	if s.notify == nil {
		s.notify = nopNotifier{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 30 * 24 * time.Hour
	}
	s.logger = s.logger.With("component", "service")
	return s
}

func (s *Service) today() time.Time {
	return clock.Today(s.clock)
}

func (s *Service) stores() *store.Stores {
	return store.New(s.db)
}

// tx runs fn inside an immediate transaction. Inside fn, every query must go
// through st.
func (s *Service) tx(ctx context.Context, fn func(st *store.Stores) error) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(store.New(tx))
	})
}

// member returns the caller's membership, failing with ErrNotFound when the
// circle does not exist and ErrPermissionDenied when the user is not in it.
func member(ctx context.Context, st *store.Stores, circleID, userID int64) (*model.CircleMember, error) {
	m, err := st.Circles.GetMember(ctx, circleID, userID)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return m, nil
	}
	c, err := st.Circles.GetByID(ctx, circleID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, notFound("circle")
	}
	return nil, ErrPermissionDenied
}

// manager is member restricted to owners and admins.
func manager(ctx context.Context, st *store.Stores, circleID, userID int64) (*model.CircleMember, error) {
	m, err := member(ctx, st, circleID, userID)
	if err != nil {
		return nil, err
	}
	if !m.CanManage() {
		return nil, ErrPermissionDenied
	}
	return m, nil
}

// invalidate drops every cached total of the given circles.
func (s *Service) invalidate(ctx context.Context, circleIDs ...int64) {
	for _, id := range circleIDs {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.Warn("invalidate cache", "circle_id", id, "error", err)
		}
	}
}
