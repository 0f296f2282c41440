package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dukerupert/frisfocus/internal/award"
	"github.com/dukerupert/frisfocus/internal/clock"
	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/points"
	"github.com/dukerupert/frisfocus/internal/store"
)

// boundaryLookbackWeeks bounds how many ended weeks a boundary pass revisits
// for weeks that have not produced a winner yet.
const boundaryLookbackWeeks = 8

func normalizeAward(in store.AwardInput) (store.AwardInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, invalid("name", "is required")
	}
	if !award.Valid(in.Type) {
		return in, invalid("type", "must be first_to, most_in_category or weekly_champion")
	}
	in.Category = strings.TrimSpace(in.Category)
	switch in.Type {
	case model.AwardFirstTo:
		if in.TargetPoints <= 0 {
			return in, invalid("target_points", "must be a positive number")
		}
		in.Category = ""
	case model.AwardMostInCategory:
		if in.Category == "" {
			return in, invalid("category", "is required")
		}
		in.TargetPoints = 0
	default:
		in.TargetPoints = 0
		in.Category = ""
	}
	var err error
	in.Reward, err = normalizeReward(in.Reward)
	return in, err
}

type awardKind struct{}

func (awardKind) exists(ctx context.Context, st *store.Stores, circleID, id int64) (bool, error) {
	a, err := st.Awards.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return a != nil && a.CircleID == circleID, nil
}

func (awardKind) add(ctx context.Context, st *store.Stores, add addition, payload json.RawMessage) (int64, error) {
	var in store.AwardInput
	if err := decodePayload(payload, &in); err != nil {
		return 0, err
	}
	in, err := normalizeAward(in)
	if err != nil {
		return 0, err
	}
	a, err := st.Awards.Create(ctx, add.circleID, in, add.now)
	if err != nil {
		return 0, err
	}
	return a.ID, nil
}

func (awardKind) edit(ctx context.Context, st *store.Stores, id int64, payload json.RawMessage) error {
	var in store.AwardInput
	if err := decodePayload(payload, &in); err != nil {
		return err
	}
	in, err := normalizeAward(in)
	if err != nil {
		return err
	}
	_, err = st.Awards.Update(ctx, id, in)
	return err
}

func (awardKind) remove(ctx context.Context, st *store.Stores, id int64) error {
	return st.Awards.Delete(ctx, id)
}

func (s *Service) ListAwards(ctx context.Context, circleID, viewerID int64) ([]model.CircleAward, error) {
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, err
	}
	return st.Awards.ListByCircle(ctx, circleID)
}

// ListAwardWins returns every won instance of an award, most recent first.
func (s *Service) ListAwardWins(ctx context.Context, circleID, viewerID, awardID int64) ([]model.AwardWin, error) {
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, err
	}
	found, err := awardKind{}.exists(ctx, st, circleID, awardID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("award")
	}
	return st.Awards.ListWins(ctx, awardID)
}

func (s *Service) AddAward(ctx context.Context, circleID, actorID int64, in store.AwardInput) (Outcome[model.CircleAward], error) {
	in, err := normalizeAward(in)
	if err != nil {
		return Outcome[model.CircleAward]{}, err
	}
	return s.mutateAward(ctx, mutation{circleID: circleID, actorID: actorID, kind: model.RequestKindAward, action: model.RequestAdd, payload: in})
}

func (s *Service) EditAward(ctx context.Context, circleID, actorID, awardID int64, in store.AwardInput) (Outcome[model.CircleAward], error) {
	in, err := normalizeAward(in)
	if err != nil {
		return Outcome[model.CircleAward]{}, err
	}
	return s.mutateAward(ctx, mutation{circleID: circleID, actorID: actorID, kind: model.RequestKindAward, action: model.RequestEdit, targetID: awardID, payload: in})
}

func (s *Service) DeleteAward(ctx context.Context, circleID, actorID, awardID int64) (Outcome[model.CircleAward], error) {
	return s.mutateAward(ctx, mutation{circleID: circleID, actorID: actorID, kind: model.RequestKindAward, action: model.RequestDelete, targetID: awardID})
}

func (s *Service) mutateAward(ctx context.Context, m mutation) (Outcome[model.CircleAward], error) {
	var out Outcome[model.CircleAward]
	err := s.tx(ctx, func(st *store.Stores) error {
		id, req, err := s.submit(ctx, st, m)
		if err != nil {
			return err
		}
		out.Request = req
		if req == nil && m.action != model.RequestDelete {
			out.Item, err = st.Awards.GetByID(ctx, id)
		}
		return err
	})
	if err != nil {
		return Outcome[model.CircleAward]{}, err
	}
	if out.Pending() {
		s.events.BroadcastCircle(m.circleID, "request", "created", out.Request.ID, map[string]any{"kind": m.kind})
		return out, nil
	}
	s.afterEntityChange(ctx, m.circleID, m.kind)
	return out, nil
}

// grant records bonus points. A grant that already exists for the same
// source and period is left alone.
func grant(ctx context.Context, st *store.Stores, g model.PointGrant) error {
	_, err := st.Grants.Insert(ctx, g)
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	return err
}

// recordWin stores the winner of one award period and pays out its reward.
// It reports false if the period already had a winner.
func (s *Service) recordWin(ctx context.Context, st *store.Stores, a model.CircleAward, period string, r award.Result, now time.Time) (bool, error) {
	m, err := st.Circles.GetMember(ctx, a.CircleID, r.UserID)
	if err != nil {
		return false, err
	}
	name := ""
	if m != nil {
		name = m.Name()
	}
	_, err = st.Awards.RecordWin(ctx, model.AwardWin{
		AwardID:    a.ID,
		Period:     period,
		UserID:     r.UserID,
		UserName:   name,
		Points:     r.Points,
		AchievedAt: r.AchievedAt,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if pts := a.Reward.BonusPoints(); pts > 0 {
		err := grant(ctx, st, model.PointGrant{
			CircleID:   a.CircleID,
			UserID:     r.UserID,
			SourceKind: model.GrantSourceAward,
			SourceID:   a.ID,
			Period:     period,
			Points:     pts,
			Date:       clock.FormatDate(clock.Date(now)),
			GrantedAt:  now,
		})
		if err != nil {
			return false, err
		}
	}
	s.metrics.awardWon(ctx, a.Type)
	s.logger.Info("award won", "circle_id", a.CircleID, "award_id", a.ID, "period", period, "user_id", r.UserID)
	return true, nil
}

// evaluateFirstTo checks every open first_to award of the circle against
// this week's completions.
func (s *Service) evaluateFirstTo(ctx context.Context, st *store.Stores, circleID int64, now time.Time) ([]model.CircleAward, error) {
	awards, err := st.Awards.ListByCircle(ctx, circleID)
	if err != nil {
		return nil, err
	}
	var open []model.CircleAward
	for _, a := range awards {
		if a.Type == model.AwardFirstTo && a.Winner == nil {
			open = append(open, a)
		}
	}
	if len(open) == 0 {
		return nil, nil
	}

	w := points.WeekOf(clock.Date(now))
	ledger, err := loadLedger(ctx, st, circleID, w)
	if err != nil {
		return nil, err
	}
	events := ledger.Events(w, points.ByUser)

	var won []model.CircleAward
	for _, a := range open {
		r, ok := award.FirstTo(a.TargetPoints, events)
		if !ok {
			continue
		}
		recorded, err := s.recordWin(ctx, st, a, model.PeriodOnce, r, now)
		if err != nil {
			return nil, err
		}
		if recorded {
			won = append(won, a)
		}
	}
	return won, nil
}

// EvaluateBoundaries decides most_in_category and weekly_champion awards for
// weeks that have ended. It is idempotent: decided periods are skipped.
func (s *Service) EvaluateBoundaries(ctx context.Context, circleID int64) (int, error) {
	now := s.clock.Now()
	thisWeek := clock.WeekStart(clock.Date(now))
	won := 0
	err := s.tx(ctx, func(st *store.Stores) error {
		awards, err := st.Awards.ListByCircle(ctx, circleID)
		if err != nil {
			return err
		}
		for _, a := range awards {
			if !award.ResolvedAtBoundary(a.Type) {
				continue
			}
			n, err := s.evaluateAwardWeeks(ctx, st, a, thisWeek, now)
			if err != nil {
				return err
			}
			won += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if won > 0 {
		s.invalidate(ctx, circleID)
		s.events.BroadcastCircle(circleID, "award", "won", 0, map[string]any{"count": won})
	}
	return won, nil
}

func (s *Service) evaluateAwardWeeks(ctx context.Context, st *store.Stores, a model.CircleAward, thisWeek, now time.Time) (int, error) {
	if a.Type == model.AwardMostInCategory && a.Winner != nil {
		return 0, nil
	}
	first := clock.WeekStart(clock.Date(a.CreatedAt))
	if oldest := thisWeek.AddDate(0, 0, -7*boundaryLookbackWeeks); first.Before(oldest) {
		first = oldest
	}

	won := 0
	for ws := first; ws.Before(thisWeek); ws = ws.AddDate(0, 0, 7) {
		period := award.Period(a.Type, ws)
		existing, err := st.Awards.GetWin(ctx, a.ID, period)
		if err != nil {
			return won, err
		}
		if existing != nil {
			if a.Type == model.AwardMostInCategory {
				return won, nil
			}
			continue
		}

		w := points.WeekOf(ws)
		ledger, err := loadLedger(ctx, st, a.CircleID, w)
		if err != nil {
			return won, err
		}
		var events []points.Event
		if a.Type == model.AwardMostInCategory {
			events = ledger.CategoryTotals(a.Category, w)
		} else {
			events = ledger.Events(w, points.ByUser)
		}
		r, ok := award.Leader(events)
		if !ok {
			continue
		}
		recorded, err := s.recordWin(ctx, st, a, period, r, now)
		if err != nil {
			return won, err
		}
		if recorded {
			won++
			if a.Type == model.AwardMostInCategory {
				return won, nil
			}
		}
	}
	return won, nil
}
