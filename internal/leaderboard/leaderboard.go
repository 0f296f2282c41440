// Package leaderboard projects ledger totals into ranked member and circle
// views.
package leaderboard

import (
	"sort"
	"time"

	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/points"
)

type DayItem struct {
	TaskName    string    `json:"task_name"`
	CompletedAt time.Time `json:"completed_at"`
}

type TaskCount struct {
	TaskName string `json:"task_name"`
	Count    int    `json:"count"`
}

type AllTimeBreakdown struct {
	WeeklyHistory []points.WeekPoints       `json:"weekly_history"`
	TaskTotals    []points.TaskContribution `json:"task_totals"`
}

type Entry struct {
	Rank    int               `json:"rank"`
	UserID  int64             `json:"user_id"`
	Name    string            `json:"name"`
	Role    string            `json:"role"`
	Points  int               `json:"points"`
	Goal    *int              `json:"goal,omitempty"`
	GoalMet bool              `json:"goal_met"`
	Streak  int               `json:"streak"`
	Day     []DayItem         `json:"day,omitempty"`
	Week    []TaskCount       `json:"week,omitempty"`
	AllTime *AllTimeBreakdown `json:"alltime,omitempty"`
}

// Options carries the circle settings that decorate entries.
type Options struct {
	Today      time.Time
	DailyGoal  *int
	WeeklyGoal *int
}

// Rank sorts members by their points in the window, highest first. Equal
// points keep the order members were given in (join order).
func Rank(members []model.CircleMember, l *points.Ledger, w points.Window, opts Options) []Entry {
	totals := l.Totals(w)

	dailyGoal := 0
	if opts.DailyGoal != nil {
		dailyGoal = *opts.DailyGoal
	}

	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		e := Entry{
			UserID: m.UserID,
			Name:   m.Name(),
			Role:   m.Role,
			Points: totals[m.UserID],
			Streak: l.Streak(m.UserID, opts.Today, dailyGoal),
		}

		switch w.Kind {
		case points.Day:
			e.Goal = opts.DailyGoal
			e.Day = []DayItem{}
			for _, c := range l.Completions(m.UserID, w) {
				t, _ := l.Task(c.TaskID)
				e.Day = append(e.Day, DayItem{TaskName: t.Name, CompletedAt: c.CompletedAt})
			}
		case points.Week:
			e.Goal = opts.WeeklyGoal
			e.Week = []TaskCount{}
			for _, tc := range l.ByTask(m.UserID, w) {
				e.Week = append(e.Week, TaskCount{TaskName: tc.TaskName, Count: tc.Count})
			}
		case points.AllTime:
			e.AllTime = &AllTimeBreakdown{
				WeeklyHistory: l.WeeklyHistory(m.UserID),
				TaskTotals:    l.ByTask(m.UserID, w),
			}
		}
		if e.Goal != nil {
			e.GoalMet = e.Points >= *e.Goal
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Points > entries[j].Points })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

type CircleStanding struct {
	Rank         int     `json:"rank"`
	CircleID     int64   `json:"circle_id"`
	Name         string  `json:"name"`
	IconColor    string  `json:"icon_color"`
	MemberCount  int     `json:"member_count"`
	WeeklyPoints int     `json:"weekly_points"`
	BonusPoints  int     `json:"bonus_points"`
	Total        int     `json:"total"`
	Average      float64 `json:"average"`
}

// RankCircles fills in totals and averages and sorts circles by total,
// highest first, keeping the given order on ties.
func RankCircles(standings []CircleStanding) []CircleStanding {
	out := append([]CircleStanding(nil), standings...)
	for i := range out {
		out[i].Total = out[i].WeeklyPoints + out[i].BonusPoints
		out[i].Average = 0
		if out[i].MemberCount > 0 {
			out[i].Average = float64(out[i].Total) / float64(out[i].MemberCount)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
