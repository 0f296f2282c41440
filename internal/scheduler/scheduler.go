// Package scheduler runs the periodic boundary pass: award evaluation for
// every circle, competition resolution and session cleanup.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukerupert/frisfocus/internal/model"
	"golang.org/x/sync/errgroup"
)

// Engine is the part of the service the scheduler drives. Every call must be
// idempotent.
type Engine interface {
	CircleIDs(ctx context.Context) ([]int64, error)
	EvaluateBoundaries(ctx context.Context, circleID int64) (int, error)
	ResolveCompetitions(ctx context.Context) ([]model.Competition, error)
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// Report summarizes one pass.
type Report struct {
	Circles              int
	AwardsWon            int
	CompetitionsResolved int
	SessionsPurged       int64
	Failed               int
}

// Scheduler periodically runs a boundary pass.
type Scheduler struct {
	mu          sync.RWMutex
	engine      Engine
	interval    time.Duration
	concurrency int
	logger      *slog.Logger
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates a scheduler. Interval defaults to one minute and concurrency
// to four circles at a time.
func New(engine Engine, interval time.Duration, concurrency int, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Scheduler{
		engine:      engine,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger.With("component", "scheduler"),
	}
}

// Start begins the scheduler loop. A pass runs immediately, then every interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	r, err := s.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("boundary pass", "error", err)
		}
		return
	}
	if r.AwardsWon > 0 || r.CompetitionsResolved > 0 || r.Failed > 0 {
		s.logger.Info("boundary pass",
			"circles", r.Circles,
			"awards_won", r.AwardsWon,
			"competitions_resolved", r.CompetitionsResolved,
			"sessions_purged", r.SessionsPurged,
			"failed", r.Failed,
		)
	}
}

// RunOnce evaluates every circle's award boundaries, resolves due
// competitions and purges expired sessions. A failing circle is logged and
// counted; it does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	var r Report

	ids, err := s.engine.CircleIDs(ctx)
	if err != nil {
		return r, fmt.Errorf("list circles: %w", err)
	}
	r.Circles = len(ids)

	var won, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			n, err := s.engine.EvaluateBoundaries(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				s.logger.Warn("evaluate boundaries", "circle_id", id, "error", err)
				return nil
			}
			won.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return r, err
	}
	r.AwardsWon = int(won.Load())
	r.Failed = int(failed.Load())

	resolved, err := s.engine.ResolveCompetitions(ctx)
	if err != nil {
		return r, fmt.Errorf("resolve competitions: %w", err)
	}
	r.CompetitionsResolved = len(resolved)

	purged, err := s.engine.PurgeExpiredSessions(ctx)
	if err != nil {
		return r, fmt.Errorf("purge sessions: %w", err)
	}
	r.SessionsPurged = purged

	return r, nil
}
