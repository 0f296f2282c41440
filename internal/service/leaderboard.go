package service

import (
	"context"

	"github.com/dukerupert/frisfocus/internal/leaderboard"
	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/points"
)

// Leaderboard ranks a circle's members by their points in the window of the
// given kind containing today.
func (s *Service) Leaderboard(ctx context.Context, circleID, viewerID int64, kind points.Kind) ([]leaderboard.Entry, error) {
	st := s.stores()
	if _, err := member(ctx, st, circleID, viewerID); err != nil {
		return nil, err
	}
	circle, err := st.Circles.GetByID(ctx, circleID)
	if err != nil {
		return nil, err
	}
	members, err := st.Circles.ListMembers(ctx, circleID)
	if err != nil {
		return nil, err
	}
	// Streaks and all-time history need the whole ledger.
	ledger, err := loadLedger(ctx, st, circleID, points.Window{})
	if err != nil {
		return nil, err
	}
	today := s.today()
	return leaderboard.Rank(members, ledger, points.NewWindow(kind, today), leaderboard.Options{
		Today:      today,
		DailyGoal:  circle.DailyPointGoal,
		WeeklyGoal: circle.WeeklyPointGoal,
	}), nil
}

// CircleLeaderboard ranks the user's circles by this week's member points
// plus every award bonus the circle has been granted. Badge bonuses stay
// with the member and do not count here.
func (s *Service) CircleLeaderboard(ctx context.Context, userID int64) ([]leaderboard.CircleStanding, error) {
	st := s.stores()
	circles, err := st.Circles.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	w := points.NewWindow(points.Week, s.today())

	standings := make([]leaderboard.CircleStanding, 0, len(circles))
	for _, c := range circles {
		totals, err := s.totals(ctx, c.ID, w)
		if err != nil {
			return nil, err
		}
		members, err := st.Circles.ListMembers(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		weekly := 0
		for _, m := range members {
			weekly += totals[m.UserID]
		}
		bonus, err := st.Grants.SumBySource(ctx, c.ID, model.GrantSourceAward)
		if err != nil {
			return nil, err
		}
		standings = append(standings, leaderboard.CircleStanding{
			CircleID:     c.ID,
			Name:         c.Name,
			IconColor:    c.IconColor,
			MemberCount:  c.MemberCount,
			WeeklyPoints: weekly,
			BonusPoints:  bonus,
		})
	}
	return leaderboard.RankCircles(standings), nil
}
