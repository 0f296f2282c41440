package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/frisfocus/internal/clock"
	"github.com/dukerupert/frisfocus/internal/competition"
	"github.com/dukerupert/frisfocus/internal/leaderboard"
	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/points"
	"github.com/dukerupert/frisfocus/internal/store"
)

// InviteRequest proposes a competition to the circle owning InviteCode.
type InviteRequest struct {
	InviteCode   string
	Name         string
	Type         string
	TargetPoints int
	EndDate      *time.Time
	Notes        string
}

func (s *Service) normalizeInvite(r InviteRequest) (store.InviteInput, error) {
	in := store.InviteInput{
		Name:  strings.TrimSpace(r.Name),
		Type:  r.Type,
		Notes: strings.TrimSpace(r.Notes),
	}
	if strings.TrimSpace(r.InviteCode) == "" {
		return in, invalid("invite_code", "is required")
	}
	if in.Name == "" {
		return in, invalid("name", "is required")
	}
	switch r.Type {
	case model.CompetitionTargetPoints:
		if r.TargetPoints <= 0 {
			return in, invalid("target_points", "must be a positive number")
		}
		in.TargetPoints = r.TargetPoints
	case model.CompetitionTimed:
		if r.EndDate == nil {
			return in, invalid("end_date", "is required for timed competitions")
		}
		end := clock.Date(*r.EndDate)
		if end.Before(s.today()) {
			return in, invalid("end_date", "must not be in the past")
		}
		d := clock.FormatDate(end)
		in.EndDate = &d
	case model.CompetitionOngoing:
	default:
		return in, invalid("competition_type", "must be targetPoints, timed or ongoing")
	}
	return in, nil
}

// CreateInvite sends a competition invite from circleID to the circle whose
// invite code is given. The actor must manage the inviting circle.
func (s *Service) CreateInvite(ctx context.Context, circleID, actorID int64, r InviteRequest) (*model.CompetitionInvite, error) {
	in, err := s.normalizeInvite(r)
	if err != nil {
		return nil, err
	}
	var inv *model.CompetitionInvite
	err = s.tx(ctx, func(st *store.Stores) error {
		if _, err := manager(ctx, st, circleID, actorID); err != nil {
			return err
		}
		invitee, err := st.Circles.GetByInviteCode(ctx, strings.ToUpper(strings.TrimSpace(r.InviteCode)))
		if err != nil {
			return err
		}
		if invitee == nil {
			return notFound("circle")
		}
		if invitee.ID == circleID {
			return invalid("invite_code", "a circle cannot compete against itself")
		}
		active, err := st.Competitions.ActiveBetween(ctx, circleID, invitee.ID)
		if err != nil {
			return err
		}
		if active {
			return fmt.Errorf("%w: circles already have an active competition", ErrStateConflict)
		}
		in.InviterCircle = circleID
		in.InviteeCircle = invitee.ID
		in.CreatedBy = actorID
		inv, err = st.Competitions.CreateInvite(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.BroadcastCircle(inv.InviteeCircle, "competition_invite", "created", inv.ID, nil)
	s.notify.NotifyManagers(ctx, inv.InviteeCircle, "Competition invite",
		fmt.Sprintf("%s challenged you to %q", inv.InviterName, inv.Name), "invite")
	return inv, nil
}

// ListInvites returns pending invites sent or received by the circle.
func (s *Service) ListInvites(ctx context.Context, circleID, viewerID int64) ([]model.CompetitionInvite, error) {
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, err
	}
	out, err := st.Competitions.ListInvites(ctx, circleID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.CompetitionInvite{}
	}
	return out, nil
}

// RespondInvite accepts or declines a pending invite addressed to circleID.
// Accepting starts the competition today.
func (s *Service) RespondInvite(ctx context.Context, circleID, inviteID, actorID int64, accept bool) (*model.CompetitionInvite, *model.Competition, error) {
	var inv *model.CompetitionInvite
	var comp *model.Competition
	err := s.tx(ctx, func(st *store.Stores) error {
		if _, err := manager(ctx, st, circleID, actorID); err != nil {
			return err
		}
		var err error
		inv, err = st.Competitions.GetInvite(ctx, inviteID)
		if err != nil {
			return err
		}
		if inv == nil || (inv.InviteeCircle != circleID && inv.InviterCircle != circleID) {
			return notFound("invite")
		}
		if inv.InviteeCircle != circleID {
			return ErrPermissionDenied
		}
		if inv.Status != model.InvitePending {
			return ErrStateConflict
		}

		status := model.InviteDeclined
		if accept {
			status = model.InviteAccepted
		}
		ok, err := st.Competitions.ResolveInvite(ctx, inviteID, status, actorID, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrStateConflict
		}
		if accept {
			active, err := st.Competitions.ActiveBetween(ctx, inv.InviterCircle, inv.InviteeCircle)
			if err != nil {
				return err
			}
			if active {
				return fmt.Errorf("%w: circles already have an active competition", ErrStateConflict)
			}
			id := inv.ID
			comp, err = st.Competitions.Create(ctx, model.Competition{
				InviteID:     &id,
				Name:         inv.Name,
				Type:         inv.CompetitionType,
				TargetPoints: inv.TargetPoints,
				CircleA:      inv.InviterCircle,
				CircleB:      inv.InviteeCircle,
				StartDate:    clock.FormatDate(s.today()),
				EndDate:      inv.EndDate,
			})
			if err != nil {
				return err
			}
		}
		inv, err = st.Competitions.GetInvite(ctx, inviteID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	for _, id := range []int64{inv.InviterCircle, inv.InviteeCircle} {
		s.events.BroadcastCircle(id, "competition_invite", inv.Status, inv.ID, nil)
	}
	if comp != nil {
		body := fmt.Sprintf("%s vs %s has started", inv.InviterName, inv.InviteeName)
		s.notify.NotifyManagers(ctx, inv.InviterCircle, "Competition accepted", body, "competition")
		s.notify.NotifyManagers(ctx, inv.InviteeCircle, "Competition accepted", body, "competition")
		s.logger.Info("competition started", "competition_id", comp.ID, "circle_a", comp.CircleA, "circle_b", comp.CircleB)
	} else {
		s.notify.NotifyManagers(ctx, inv.InviterCircle, "Competition declined",
			fmt.Sprintf("%s declined %q", inv.InviteeName, inv.Name), "invite")
	}
	return inv, comp, nil
}

// competitionEvents returns the point events of both circles inside the
// competition window: completions keyed by circle, plus bonus grants.
func competitionEvents(ctx context.Context, st *store.Stores, c model.Competition) ([]points.Event, error) {
	w := competition.Window(c)
	var events []points.Event
	for _, circleID := range []int64{c.CircleA, c.CircleB} {
		ledger, err := loadLedger(ctx, st, circleID, w)
		if err != nil {
			return nil, err
		}
		events = append(events, ledger.Events(w, points.ByCircle)...)

		grants, err := st.Grants.ListRange(ctx, circleID, w.Start, w.End)
		if err != nil {
			return nil, err
		}
		for _, g := range grants {
			events = append(events, points.Event{Key: circleID, Points: g.Points, At: g.GrantedAt, Seq: g.ID})
		}
	}
	points.SortEvents(events)
	return events, nil
}

// ResolveCircleCompetitions re-resolves every active competition involving
// the circle and returns those that completed.
func (s *Service) ResolveCircleCompetitions(ctx context.Context, circleID int64) ([]model.Competition, error) {
	active, err := s.stores().Competitions.ListByCircle(ctx, circleID, model.CompetitionActive)
	if err != nil {
		return nil, err
	}
	return s.resolveEach(ctx, active)
}

// ResolveCompetitions re-resolves every active competition. Used by the
// boundary scheduler to complete timed competitions whose end date passed.
func (s *Service) ResolveCompetitions(ctx context.Context) ([]model.Competition, error) {
	active, err := s.stores().Competitions.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return s.resolveEach(ctx, active)
}

func (s *Service) resolveEach(ctx context.Context, comps []model.Competition) ([]model.Competition, error) {
	var completed []model.Competition
	for _, c := range comps {
		if c.Type == model.CompetitionOngoing {
			continue
		}
		done, ok, err := s.resolveOne(ctx, c.ID, competition.Resolve)
		if err != nil {
			return completed, err
		}
		if ok {
			completed = append(completed, *done)
		}
	}
	return completed, nil
}

type resolveFunc func(model.Competition, []points.Event, time.Time) (model.Competition, bool)

// resolveOne re-reads the competition inside a transaction, applies fn and
// persists a transition to completed.
func (s *Service) resolveOne(ctx context.Context, id int64, fn resolveFunc) (*model.Competition, bool, error) {
	now := s.clock.Now()
	var result *model.Competition
	err := s.tx(ctx, func(st *store.Stores) error {
		c, err := st.Competitions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return notFound("competition")
		}
		if c.Status == model.CompetitionCompleted {
			return nil
		}
		events, err := competitionEvents(ctx, st, *c)
		if err != nil {
			return err
		}
		next, done := fn(*c, events, now)
		if !done {
			return nil
		}
		ok, err := st.Competitions.Complete(ctx, id, next.WinnerID, *next.FinalPointsA, *next.FinalPointsB, *next.CompletedAt)
		if err != nil || !ok {
			return err
		}
		result, err = st.Competitions.GetByID(ctx, id)
		return err
	})
	if err != nil || result == nil {
		return nil, false, err
	}
	s.competitionCompleted(ctx, *result)
	return result, true, nil
}

func (s *Service) competitionCompleted(ctx context.Context, c model.Competition) {
	s.metrics.competitionCompleted(ctx, c.Type)
	if c.WinnerID != nil {
		s.logger.Info("competition completed", "competition_id", c.ID, "winner_id", *c.WinnerID)
	} else {
		s.logger.Info("competition completed", "competition_id", c.ID, "tie", true)
	}

	st := s.stores()
	names := make(map[int64]string, 2)
	for _, id := range []int64{c.CircleA, c.CircleB} {
		s.events.BroadcastCircle(id, "competition", "completed", c.ID, map[string]any{"winner_id": c.WinnerID})
		if circle, err := st.Circles.GetByID(ctx, id); err == nil && circle != nil {
			names[id] = circle.Name
		}
	}
	body := fmt.Sprintf("%q ended in a tie", c.Name)
	if c.WinnerID != nil {
		body = fmt.Sprintf("%s won %q", names[*c.WinnerID], c.Name)
	}
	for _, id := range []int64{c.CircleA, c.CircleB} {
		s.notify.NotifyManagers(ctx, id, "Competition finished", body, "competition")
	}
}

// EndCompetition stops an ongoing competition on request of an owner or
// admin of either circle. The higher total wins.
func (s *Service) EndCompetition(ctx context.Context, circleID, competitionID, actorID int64) (*model.Competition, error) {
	st := s.stores()
	if _, err := manager(ctx, st, circleID, actorID); err != nil {
		return nil, err
	}
	c, err := st.Competitions.GetByID(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if c == nil || !c.Involves(circleID) {
		return nil, notFound("competition")
	}
	if c.Status == model.CompetitionCompleted {
		return nil, ErrStateConflict
	}
	if c.Type != model.CompetitionOngoing {
		return nil, fmt.Errorf("%w: only ongoing competitions can be ended", ErrStateConflict)
	}
	done, ok, err := s.resolveOne(ctx, competitionID, competition.End)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStateConflict
	}
	return done, nil
}

// ListCompetitions projects the circle's competitions from its own side.
// An empty status lists every competition.
func (s *Service) ListCompetitions(ctx context.Context, circleID, viewerID int64, status string) ([]model.CompetitionView, error) {
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, err
	}
	comps, err := st.Competitions.ListByCircle(ctx, circleID, status)
	if err != nil {
		return nil, err
	}
	views := make([]model.CompetitionView, 0, len(comps))
	for _, c := range comps {
		v, err := s.view(ctx, st, c, circleID)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func (s *Service) GetCompetition(ctx context.Context, circleID, competitionID, viewerID int64) (*model.CompetitionView, error) {
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, err
	}
	c, err := st.Competitions.GetByID(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if c == nil || !c.Involves(circleID) {
		return nil, notFound("competition")
	}
	return s.view(ctx, st, *c, circleID)
}

func (s *Service) view(ctx context.Context, st *store.Stores, c model.Competition, circleID int64) (*model.CompetitionView, error) {
	events, err := competitionEvents(ctx, st, c)
	if err != nil {
		return nil, err
	}
	a, b := competition.Standings(c, events)
	mine, theirs := a, b
	if circleID == c.CircleB {
		mine, theirs = b, a
	}
	v := &model.CompetitionView{
		Competition:    c,
		MyPoints:       mine,
		OpponentPoints: theirs,
	}
	for _, ref := range []struct {
		id  int64
		dst *model.CircleRef
	}{{circleID, &v.MyCircle}, {c.Opponent(circleID), &v.OpponentCircle}} {
		circle, err := st.Circles.GetByID(ctx, ref.id)
		if err != nil {
			return nil, err
		}
		ref.dst.ID = ref.id
		if circle != nil {
			ref.dst.Name = circle.Name
		}
	}
	return v, nil
}

// OpponentLeaderboard ranks the opposing circle's members by their points
// inside the competition window.
func (s *Service) OpponentLeaderboard(ctx context.Context, circleID, competitionID, viewerID int64) ([]leaderboard.Entry, error) {
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, err
	}
	c, err := st.Competitions.GetByID(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if c == nil || !c.Involves(circleID) {
		return nil, notFound("competition")
	}
	opponent := c.Opponent(circleID)

	members, err := st.Circles.ListMembers(ctx, opponent)
	if err != nil {
		return nil, err
	}
	w := competition.Window(*c)
	var until *time.Time
	if c.Status == model.CompetitionCompleted {
		until = c.CompletedAt
	}
	ledger, err := loadLedgerUntil(ctx, st, opponent, w, until)
	if err != nil {
		return nil, err
	}
	return leaderboard.Rank(members, ledger, w, leaderboard.Options{Today: s.today()}), nil
}
