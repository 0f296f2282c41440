package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dukerupert/frisfocus/internal/clock"
	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/points"
	"github.com/dukerupert/frisfocus/internal/store"
)

// ToggleResult reports the state of a completion after a toggle.
type ToggleResult struct {
	Completed    bool                  `json:"completed"`
	Points       int                   `json:"points"`
	WeeklyPoints int                   `json:"weekly_points"`
	Completion   *model.TaskCompletion `json:"completion,omitempty"`
	BadgesEarned []model.CircleBadge   `json:"badges_earned,omitempty"`
	AwardsWon    []model.CircleAward   `json:"awards_won,omitempty"`
}

// ToggleCompletion completes the task for the user today, or undoes their
// completion if one exists. date defaults to today; any other date is
// rejected with ErrDateNotToday. A circle task already claimed today by
// another member fails with ErrAlreadyCompleted.
func (s *Service) ToggleCompletion(ctx context.Context, circleID, taskID, userID int64, date *time.Time) (*ToggleResult, error) {
	today := s.today()
	if date != nil && !clock.Date(*date).Equal(today) {
		return nil, ErrDateNotToday
	}
	day := clock.FormatDate(today)
	now := s.clock.Now()

	res := &ToggleResult{}
	err := s.tx(ctx, func(st *store.Stores) error {
		if _, err := member(ctx, st, circleID, userID); err != nil {
			return err
		}
		task, err := st.Tasks.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		if task == nil || task.CircleID != circleID || task.ApprovalStatus != model.ApprovalApproved {
			return notFound("task")
		}
		res.Points = task.Value

		existing, err := st.Completions.Find(ctx, taskID, userID, day)
		if err != nil {
			return err
		}

		delta := 1
		if existing != nil {
			delta = -1
			if err := st.Completions.Delete(ctx, existing.ID); err != nil {
				return err
			}
		} else {
			if task.Exclusive() {
				claim, err := st.Completions.FindClaim(ctx, taskID, day)
				if err != nil {
					return err
				}
				if claim != nil {
					return ErrAlreadyCompleted
				}
			}
			c, err := st.Completions.Insert(ctx, circleID, taskID, userID, day, task.Exclusive(), now)
			if errors.Is(err, store.ErrDuplicate) {
				return ErrAlreadyCompleted
			}
			if err != nil {
				return err
			}
			res.Completed = true
			res.Completion = c
		}

		res.BadgesEarned, err = s.progressBadges(ctx, st, circleID, taskID, delta, userID, now)
		if err != nil {
			return err
		}
		if res.Completed {
			res.AwardsWon, err = s.evaluateFirstTo(ctx, st, circleID, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.toggled(ctx, res.Completed)
	s.afterLedgerChange(ctx, circleID)

	totals, err := s.totals(ctx, circleID, points.NewWindow(points.Week, today))
	if err != nil {
		return nil, err
	}
	res.WeeklyPoints = totals[userID]

	s.events.BroadcastCircle(circleID, "completion", "toggled", taskID, map[string]any{
		"user_id":   userID,
		"completed": res.Completed,
		"date":      day,
	})
	return res, nil
}

// afterLedgerChange drops cached totals and re-resolves the circle's active
// competitions. Runs after commit.
func (s *Service) afterLedgerChange(ctx context.Context, circleID int64) {
	s.invalidate(ctx, circleID)
	if _, err := s.ResolveCircleCompetitions(ctx, circleID); err != nil {
		s.logger.Error("resolve competitions", "circle_id", circleID, "error", err)
	}
}

// GetCompletions lists who completed a task on date, earliest first.
func (s *Service) GetCompletions(ctx context.Context, circleID, taskID, viewerID int64, date *time.Time) ([]model.TaskCompletion, error) {
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, err
	}
	found, err := taskKind{}.exists(ctx, st, circleID, taskID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("task")
	}
	day := s.dateOrToday(date)

	all, err := st.Completions.ListByDate(ctx, circleID, day)
	if err != nil {
		return nil, err
	}
	out := []model.TaskCompletion{}
	for _, c := range all {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListCompletions returns a circle's completions, limited to one date when
// date is set.
func (s *Service) ListCompletions(ctx context.Context, circleID, viewerID int64, date *time.Time) ([]model.TaskCompletion, error) {
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, err
	}
	var (
		out []model.TaskCompletion
		err error
	)
	if date != nil {
		out, err = st.Completions.ListByDate(ctx, circleID, clock.FormatDate(clock.Date(*date)))
	} else {
		out, err = st.Completions.ListRange(ctx, circleID, "", "")
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.TaskCompletion{}
	}
	return out, nil
}

func (s *Service) dateOrToday(date *time.Time) string {
	if date == nil {
		return clock.FormatDate(s.today())
	}
	return clock.FormatDate(clock.Date(*date))
}

// loadLedger reads a circle's completions inside w together with its
// current task definitions.
func loadLedger(ctx context.Context, st *store.Stores, circleID int64, w points.Window) (*points.Ledger, error) {
	return loadLedgerUntil(ctx, st, circleID, w, nil)
}

// loadLedgerUntil is loadLedger without the completions recorded after
// until, when set.
func loadLedgerUntil(ctx context.Context, st *store.Stores, circleID int64, w points.Window, until *time.Time) (*points.Ledger, error) {
	completions, err := st.Completions.ListRange(ctx, circleID, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	if until != nil {
		kept := completions[:0]
		for _, c := range completions {
			if !c.CompletedAt.After(*until) {
				kept = append(kept, c)
			}
		}
		completions = kept
	}
	tasks, err := st.Tasks.ListByCircle(ctx, circleID)
	if err != nil {
		return nil, err
	}
	return points.NewLedger(completions, tasks), nil
}

// totals returns per-member points of a circle inside w, memoized until the
// circle's next ledger write.
func (s *Service) totals(ctx context.Context, circleID int64, w points.Window) (map[int64]int, error) {
	key := "totals:" + w.Key()
	if data, ok, err := s.cache.Get(ctx, circleID, key); err != nil {
		s.logger.Warn("read cached totals", "circle_id", circleID, "error", err)
	} else if ok {
		var totals map[int64]int
		if err := json.Unmarshal(data, &totals); err == nil {
			return totals, nil
		}
	}

	// Taken before reading the ledger: a write committed after this point
	// advances the generation and the Set below is discarded.
	gen, genErr := s.cache.Generation(ctx, circleID)
	if genErr != nil {
		s.logger.Warn("read cache generation", "circle_id", circleID, "error", genErr)
	}

	ledger, err := loadLedger(ctx, s.stores(), circleID, w)
	if err != nil {
		return nil, err
	}
	totals := ledger.Totals(w)
	if genErr != nil {
		return totals, nil
	}

	if data, err := json.Marshal(totals); err == nil {
		if err := s.cache.Set(ctx, circleID, gen, key, data); err != nil {
			s.logger.Warn("cache totals", "circle_id", circleID, "error", err)
		}
	}
	return totals, nil
}

// MemberBreakdown returns one member's per-task contributions in a window.
// The contributions always sum to the member's window total.
func (s *Service) MemberBreakdown(ctx context.Context, circleID, viewerID, userID int64, kind points.Kind) ([]points.TaskContribution, int, error) {
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, 0, err
	}
	w := points.NewWindow(kind, s.today())
	ledger, err := loadLedger(ctx, st, circleID, w)
	if err != nil {
		return nil, 0, err
	}
	totals, err := s.totals(ctx, circleID, w)
	if err != nil {
		return nil, 0, err
	}
	return ledger.ByTask(userID, w), totals[userID], nil
}
