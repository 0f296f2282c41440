package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dukerupert/frisfocus/internal/award"
	"github.com/dukerupert/frisfocus/internal/clock"
	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/store"
)

func normalizeReward(r *model.Reward) (*model.Reward, error) {
	if r == nil || r.Type == "" {
		return nil, nil
	}
	switch r.Type {
	case model.RewardPoints, model.RewardGift, model.RewardBoth:
	default:
		return nil, invalid("reward.type", "must be points, gift or both")
	}
	if r.Points < 0 {
		return nil, invalid("reward.points", "must not be negative")
	}
	return r, nil
}

func normalizeBadge(in store.BadgeInput) (store.BadgeInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, invalid("name", "is required")
	}
	if in.Required <= 0 {
		return in, invalid("required", "must be a positive number")
	}
	var err error
	in.Reward, err = normalizeReward(in.Reward)
	return in, err
}

// checkTaskLink verifies a badge's linked task belongs to the circle.
func checkTaskLink(ctx context.Context, st *store.Stores, circleID int64, taskID *int64) error {
	if taskID == nil {
		return nil
	}
	found, err := taskKind{}.exists(ctx, st, circleID, *taskID)
	if err != nil {
		return err
	}
	if !found {
		return invalid("task_id", "must name a task of this circle")
	}
	return nil
}

type badgeKind struct{}

func (badgeKind) exists(ctx context.Context, st *store.Stores, circleID, id int64) (bool, error) {
	b, err := st.Badges.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return b != nil && b.CircleID == circleID, nil
}

func (badgeKind) add(ctx context.Context, st *store.Stores, a addition, payload json.RawMessage) (int64, error) {
	var in store.BadgeInput
	if err := decodePayload(payload, &in); err != nil {
		return 0, err
	}
	in, err := normalizeBadge(in)
	if err != nil {
		return 0, err
	}
	if err := checkTaskLink(ctx, st, a.circleID, in.TaskID); err != nil {
		return 0, err
	}
	b, err := st.Badges.Create(ctx, a.circleID, in)
	if err != nil {
		return 0, err
	}
	return b.ID, nil
}

func (badgeKind) edit(ctx context.Context, st *store.Stores, id int64, payload json.RawMessage) error {
	var in store.BadgeInput
	if err := decodePayload(payload, &in); err != nil {
		return err
	}
	in, err := normalizeBadge(in)
	if err != nil {
		return err
	}
	current, err := st.Badges.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return notFound("badge")
	}
	if err := checkTaskLink(ctx, st, current.CircleID, in.TaskID); err != nil {
		return err
	}
	_, err = st.Badges.Update(ctx, id, in)
	return err
}

func (badgeKind) remove(ctx context.Context, st *store.Stores, id int64) error {
	return st.Badges.Delete(ctx, id)
}

func (s *Service) ListBadges(ctx context.Context, circleID, viewerID int64) ([]model.CircleBadge, error) {
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, err
	}
	return st.Badges.ListByCircle(ctx, circleID)
}

func (s *Service) AddBadge(ctx context.Context, circleID, actorID int64, in store.BadgeInput) (Outcome[model.CircleBadge], error) {
	in, err := normalizeBadge(in)
	if err != nil {
		return Outcome[model.CircleBadge]{}, err
	}
	return s.mutateBadge(ctx, mutation{circleID: circleID, actorID: actorID, kind: model.RequestKindBadge, action: model.RequestAdd, payload: in})
}

func (s *Service) EditBadge(ctx context.Context, circleID, actorID, badgeID int64, in store.BadgeInput) (Outcome[model.CircleBadge], error) {
	in, err := normalizeBadge(in)
	if err != nil {
		return Outcome[model.CircleBadge]{}, err
	}
	return s.mutateBadge(ctx, mutation{circleID: circleID, actorID: actorID, kind: model.RequestKindBadge, action: model.RequestEdit, targetID: badgeID, payload: in})
}

func (s *Service) DeleteBadge(ctx context.Context, circleID, actorID, badgeID int64) (Outcome[model.CircleBadge], error) {
	return s.mutateBadge(ctx, mutation{circleID: circleID, actorID: actorID, kind: model.RequestKindBadge, action: model.RequestDelete, targetID: badgeID})
}

func (s *Service) mutateBadge(ctx context.Context, m mutation) (Outcome[model.CircleBadge], error) {
	var out Outcome[model.CircleBadge]
	err := s.tx(ctx, func(st *store.Stores) error {
		id, req, err := s.submit(ctx, st, m)
		if err != nil {
			return err
		}
		out.Request = req
		if req == nil && m.action != model.RequestDelete {
			out.Item, err = st.Badges.GetByID(ctx, id)
		}
		return err
	})
	if err != nil {
		return Outcome[model.CircleBadge]{}, err
	}
	if out.Pending() {
		s.events.BroadcastCircle(m.circleID, "request", "created", out.Request.ID, map[string]any{"kind": m.kind})
		return out, nil
	}
	s.afterEntityChange(ctx, m.circleID, m.kind)
	return out, nil
}

// AdjustBadgeProgress moves an unlinked badge's progress by delta. Owners
// and admins only; bonus points of a badge earned this way go to the actor.
func (s *Service) AdjustBadgeProgress(ctx context.Context, circleID, actorID, badgeID int64, delta int) (*model.CircleBadge, error) {
	if delta == 0 {
		return nil, invalid("delta", "must not be zero")
	}
	now := s.clock.Now()
	var badge *model.CircleBadge
	err := s.tx(ctx, func(st *store.Stores) error {
		if _, err := manager(ctx, st, circleID, actorID); err != nil {
			return err
		}
		b, err := st.Badges.GetByID(ctx, badgeID)
		if err != nil {
			return err
		}
		if b == nil || b.CircleID != circleID {
			return notFound("badge")
		}
		updated, err := s.progressBadge(ctx, st, *b, delta, actorID, now)
		if err != nil {
			return err
		}
		badge = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.BroadcastCircle(circleID, "badge", "progress", badgeID, map[string]any{"progress": badge.Progress, "earned": badge.Earned})
	return badge, nil
}

// progressBadges applies delta to every badge linked to taskID and returns
// the badges that became earned.
func (s *Service) progressBadges(ctx context.Context, st *store.Stores, circleID, taskID int64, delta int, userID int64, now time.Time) ([]model.CircleBadge, error) {
	badges, err := st.Badges.ListByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	var earned []model.CircleBadge
	for _, b := range badges {
		if b.CircleID != circleID {
			continue
		}
		wasEarned := b.Earned
		updated, err := s.progressBadge(ctx, st, b, delta, userID, now)
		if err != nil {
			return nil, err
		}
		if !wasEarned && updated.Earned {
			earned = append(earned, updated)
		}
	}
	return earned, nil
}

func (s *Service) progressBadge(ctx context.Context, st *store.Stores, b model.CircleBadge, delta int, userID int64, now time.Time) (model.CircleBadge, error) {
	updated, justEarned := award.ApplyProgress(b, delta, now)
	if err := st.Badges.SaveProgress(ctx, updated); err != nil {
		return updated, err
	}
	if !justEarned {
		return updated, nil
	}
	s.metrics.badgeEarned(ctx)
	s.logger.Info("badge earned", "circle_id", b.CircleID, "badge_id", b.ID, "user_id", userID)
	if pts := updated.Reward.BonusPoints(); pts > 0 {
		if err := grant(ctx, st, model.PointGrant{
			CircleID:   b.CircleID,
			UserID:     userID,
			SourceKind: model.GrantSourceBadge,
			SourceID:   b.ID,
			Period:     model.PeriodOnce,
			Points:     pts,
			Date:       clock.FormatDate(clock.Date(now)),
			GrantedAt:  now,
		}); err != nil {
			return updated, err
		}
	}
	return updated, nil
}
