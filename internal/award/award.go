package award

import (
	"time"

	"github.com/dukerupert/frisfocus/internal/clock"
	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/points"
)

// Result names the winner of an award instance.
type Result struct {
	UserID     int64
	Points     int
	AchievedAt time.Time
}

// FirstTo returns the first user whose running total of the given events
// reaches target. Events are replayed in timestamp order, so the earliest
// crossing wins a tie.
func FirstTo(target int, events []points.Event) (Result, bool) {
	e, ok := points.FirstToReach(events, target)
	if !ok {
		return Result{}, false
	}
	return Result{UserID: e.Key, Points: target, AchievedAt: e.At}, true
}

// Leader returns the user with the highest positive total. Equal totals go
// to the user who reached that total first. Used by most_in_category (events
// limited to one category) and weekly_champion (all events of the week).
func Leader(events []points.Event) (Result, bool) {
	standings := points.Replay(events)
	if len(standings) == 0 || standings[0].Points <= 0 {
		return Result{}, false
	}
	top := standings[0]
	return Result{UserID: top.Key, Points: top.Points, AchievedAt: top.ReachedAt}, true
}

// Period returns the AwardWin period key of an award type for the week
// starting at weekStart.
func Period(awardType string, weekStart time.Time) string {
	if awardType == model.AwardWeeklyChampion {
		return clock.FormatDate(weekStart)
	}
	return model.PeriodOnce
}

// ResolvedAtBoundary reports whether an award type is decided when a week
// ends rather than as completions happen.
func ResolvedAtBoundary(awardType string) bool {
	return awardType == model.AwardMostInCategory || awardType == model.AwardWeeklyChampion
}

// Valid reports whether t names a known award type.
func Valid(t string) bool {
	switch t {
	case model.AwardFirstTo, model.AwardMostInCategory, model.AwardWeeklyChampion:
		return true
	}
	return false
}
