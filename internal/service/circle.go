package service

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"

	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/store"
)

const (
	defaultIconColor = "#3B82F6"
	inviteCodeLength = 8
	inviteCodeTries  = 5
)

// Unambiguous uppercase alphabet: no 0/O or 1/I.
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(buf), nil
}

func normalizeCircle(in store.CircleInput) (store.CircleInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, invalid("name", "is required")
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.IconColor == "" {
		in.IconColor = defaultIconColor
	}
	if in.DailyPointGoal != nil && *in.DailyPointGoal < 0 {
		return in, invalid("daily_point_goal", "must not be negative")
	}
	if in.WeeklyPointGoal != nil && *in.WeeklyPointGoal < 0 {
		return in, invalid("weekly_point_goal", "must not be negative")
	}
	return in, nil
}

// CreateCircle creates a circle owned by the actor, with a fresh invite code.
func (s *Service) CreateCircle(ctx context.Context, actorID int64, in store.CircleInput) (*model.Circle, error) {
	in, err := normalizeCircle(in)
	if err != nil {
		return nil, err
	}
	var circle *model.Circle
	err = s.tx(ctx, func(st *store.Stores) error {
		var err error
		circle, err = st.Circles.Create(ctx, actorID, in)
		if err != nil {
			return err
		}
		code, err := assignInviteCode(ctx, st, circle.ID)
		if err != nil {
			return err
		}
		circle.InviteCode = code
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("circle created", "circle_id", circle.ID, "owner_id", actorID)
	return circle, nil
}

func assignInviteCode(ctx context.Context, st *store.Stores, circleID int64) (string, error) {
	for i := 0; i < inviteCodeTries; i++ {
		code, err := newInviteCode()
		if err != nil {
			return "", err
		}
		err = st.Circles.SetInviteCode(ctx, circleID, code)
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return "", err
		}
		return code, nil
	}
	return "", errors.New("generate invite code: too many collisions")
}

func (s *Service) GetCircle(ctx context.Context, circleID, viewerID int64) (*model.Circle, error) {
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, err
	}
	c, err := st.Circles.GetByID(ctx, circleID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, notFound("circle")
	}
	return c, nil
}

func (s *Service) ListCircles(ctx context.Context, userID int64) ([]model.Circle, error) {
	return s.stores().Circles.ListByUser(ctx, userID)
}

func (s *Service) UpdateCircle(ctx context.Context, circleID, actorID int64, in store.CircleInput) (*model.Circle, error) {
	in, err := normalizeCircle(in)
	if err != nil {
		return nil, err
	}
	var circle *model.Circle
	err = s.tx(ctx, func(st *store.Stores) error {
		if _, err := manager(ctx, st, circleID, actorID); err != nil {
			return err
		}
		var err error
		circle, err = st.Circles.Update(ctx, circleID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.events.BroadcastCircle(circleID, "circle", "updated", circleID, nil)
	return circle, nil
}

// RotateInviteCode replaces the circle's invite code.
func (s *Service) RotateInviteCode(ctx context.Context, circleID, actorID int64) (string, error) {
	var code string
	err := s.tx(ctx, func(st *store.Stores) error {
		if _, err := manager(ctx, st, circleID, actorID); err != nil {
			return err
		}
		var err error
		code, err = assignInviteCode(ctx, st, circleID)
		return err
	})
	return code, err
}

func (s *Service) ListMembers(ctx context.Context, circleID, viewerID int64) ([]model.CircleMember, error) {
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, err
	}
	return st.Circles.ListMembers(ctx, circleID)
}

// AddMember adds the user registered under email as a plain member.
func (s *Service) AddMember(ctx context.Context, circleID, actorID int64, email string) (*model.CircleMember, error) {
	var m *model.CircleMember
	err := s.tx(ctx, func(st *store.Stores) error {
		if _, err := manager(ctx, st, circleID, actorID); err != nil {
			return err
		}
		u, err := st.Users.GetByEmail(ctx, strings.TrimSpace(email))
		if err != nil {
			return err
		}
		if u == nil {
			return notFound("user")
		}
		m, err = st.Circles.AddMember(ctx, circleID, u.ID, model.RoleMember)
		if errors.Is(err, store.ErrDuplicate) {
			return ErrStateConflict
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, circleID)
	s.events.BroadcastCircle(circleID, "member", "added", m.UserID, nil)
	return m, nil
}

// RemoveMember removes userID from the circle. Members may remove
// themselves; owners and admins may remove anyone but the owner.
func (s *Service) RemoveMember(ctx context.Context, circleID, actorID, userID int64) error {
	err := s.tx(ctx, func(st *store.Stores) error {
		actor, err := member(ctx, st, circleID, actorID)
		if err != nil {
			return err
		}
		target, err := st.Circles.GetMember(ctx, circleID, userID)
		if err != nil {
			return err
		}
		if target == nil {
			return notFound("member")
		}
		if target.Role == model.RoleOwner {
			return ErrPermissionDenied
		}
		if actorID != userID && !actor.CanManage() {
			return ErrPermissionDenied
		}
		return st.Circles.RemoveMember(ctx, circleID, userID)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, circleID)
	s.events.BroadcastCircle(circleID, "member", "removed", userID, nil)
	return nil
}

// SetMemberRole promotes or demotes a non-owner. Only the owner may do this,
// never on themselves, and the owner role cannot be assigned.
func (s *Service) SetMemberRole(ctx context.Context, circleID, actorID, userID int64, role string) error {
	if role != model.RoleAdmin && role != model.RoleMember {
		return invalid("role", "must be admin or member")
	}
	err := s.tx(ctx, func(st *store.Stores) error {
		actor, err := member(ctx, st, circleID, actorID)
		if err != nil {
			return err
		}
		if actor.Role != model.RoleOwner || actorID == userID {
			return ErrPermissionDenied
		}
		target, err := st.Circles.GetMember(ctx, circleID, userID)
		if err != nil {
			return err
		}
		if target == nil {
			return notFound("member")
		}
		if target.Role == model.RoleOwner {
			return ErrPermissionDenied
		}
		return st.Circles.UpdateMemberRole(ctx, circleID, userID, role)
	})
	if err != nil {
		return err
	}
	s.events.BroadcastCircle(circleID, "member", "updated", userID, map[string]any{"role": role})
	return nil
}

// CircleIDs lists every circle.
func (s *Service) CircleIDs(ctx context.Context) ([]int64, error) {
	return s.stores().Circles.ListIDs(ctx)
}
