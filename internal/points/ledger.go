package points

import (
	"sort"
	"time"

	"github.com/dukerupert/frisfocus/internal/clock"
	"github.com/dukerupert/frisfocus/internal/model"
)

// Ledger joins completions against the current task definitions. Historical
// point values are not preserved: a completion is always worth its task's
// current value, and completions of deleted tasks are worth nothing.
type Ledger struct {
	completions []model.TaskCompletion
	tasks       map[int64]model.CircleTask
}

func NewLedger(completions []model.TaskCompletion, tasks []model.CircleTask) *Ledger {
	byID := make(map[int64]model.CircleTask, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	return &Ledger{completions: completions, tasks: byID}
}

// Value returns the current point value of a completion.
func (l *Ledger) Value(c model.TaskCompletion) int {
	return l.tasks[c.TaskID].Value
}

// Task returns the task definition for id.
func (l *Ledger) Task(id int64) (model.CircleTask, bool) {
	t, ok := l.tasks[id]
	return t, ok
}

// Totals sums points per user inside the window.
func (l *Ledger) Totals(w Window) map[int64]int {
	totals := make(map[int64]int)
	for _, c := range l.completions {
		if !w.Contains(c.Date) {
			continue
		}
		totals[c.UserID] += l.Value(c)
	}
	return totals
}

// UserTotal sums one user's points inside the window.
func (l *Ledger) UserTotal(userID int64, w Window) int {
	total := 0
	for _, c := range l.completions {
		if c.UserID == userID && w.Contains(c.Date) {
			total += l.Value(c)
		}
	}
	return total
}

// Total sums every user's points inside the window.
func (l *Ledger) Total(w Window) int {
	total := 0
	for _, c := range l.completions {
		if w.Contains(c.Date) {
			total += l.Value(c)
		}
	}
	return total
}

// Completions returns one user's completions inside the window, oldest first.
func (l *Ledger) Completions(userID int64, w Window) []model.TaskCompletion {
	var out []model.TaskCompletion
	for _, c := range l.completions {
		if c.UserID == userID && w.Contains(c.Date) {
			out = append(out, c)
		}
	}
	sortCompletions(out)
	return out
}

type TaskContribution struct {
	TaskID   int64  `json:"task_id"`
	TaskName string `json:"task_name"`
	Count    int    `json:"count"`
	Points   int    `json:"points"`
}

// ByTask breaks one user's window total down per task, ordered by task name.
// The contributions always sum to UserTotal for the same window.
func (l *Ledger) ByTask(userID int64, w Window) []TaskContribution {
	idx := make(map[int64]int)
	var out []TaskContribution
	for _, c := range l.completions {
		if c.UserID != userID || !w.Contains(c.Date) {
			continue
		}
		i, ok := idx[c.TaskID]
		if !ok {
			i = len(out)
			idx[c.TaskID] = i
			out = append(out, TaskContribution{TaskID: c.TaskID, TaskName: l.tasks[c.TaskID].Name})
		}
		out[i].Count++
		out[i].Points += l.Value(c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TaskName < out[j].TaskName })
	return out
}

// CategoryTotals sums per user the points of completions whose task is in
// category, together with the time each user reached their total.
func (l *Ledger) CategoryTotals(category string, w Window) []Event {
	var events []Event
	for _, c := range l.completions {
		t, ok := l.tasks[c.TaskID]
		if !ok || t.Category != category || !w.Contains(c.Date) {
			continue
		}
		events = append(events, Event{Key: c.UserID, Points: t.Value, At: c.CompletedAt, Seq: c.ID})
	}
	return events
}

type WeekPoints struct {
	WeekStart string `json:"week_start"`
	Points    int    `json:"points"`
}

// WeeklyHistory returns one user's totals per week, oldest week first.
func (l *Ledger) WeeklyHistory(userID int64) []WeekPoints {
	byWeek := make(map[string]int)
	for _, c := range l.completions {
		if c.UserID != userID {
			continue
		}
		d, err := clock.ParseDate(c.Date)
		if err != nil {
			continue
		}
		byWeek[clock.FormatDate(clock.WeekStart(d))] += l.Value(c)
	}
	out := make([]WeekPoints, 0, len(byWeek))
	for ws, p := range byWeek {
		out = append(out, WeekPoints{WeekStart: ws, Points: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart < out[j].WeekStart })
	return out
}

// Streak counts consecutive days, ending today, on which the user earned at
// least goal points (at least one point when goal <= 0). A day that is not
// yet met today does not break a streak that held through yesterday.
func (l *Ledger) Streak(userID int64, today time.Time, goal int) int {
	if goal <= 0 {
		goal = 1
	}
	daily := make(map[string]int)
	for _, c := range l.completions {
		if c.UserID == userID {
			daily[c.Date] += l.Value(c)
		}
	}

	day := clock.Date(today)
	if daily[clock.FormatDate(day)] < goal {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for daily[clock.FormatDate(day)] >= goal {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// Events returns the timestamped point deltas of completions inside the
// window, keyed by keyFn, in replay order.
func (l *Ledger) Events(w Window, keyFn func(model.TaskCompletion) int64) []Event {
	var events []Event
	for _, c := range l.completions {
		if !w.Contains(c.Date) {
			continue
		}
		events = append(events, Event{Key: keyFn(c), Points: l.Value(c), At: c.CompletedAt, Seq: c.ID})
	}
	SortEvents(events)
	return events
}

func sortCompletions(cs []model.TaskCompletion) {
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].CompletedAt.Equal(cs[j].CompletedAt) {
			return cs[i].CompletedAt.Before(cs[j].CompletedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}

// ByUser keys completion events by the completing user.
func ByUser(c model.TaskCompletion) int64 { return c.UserID }

// ByCircle keys completion events by the circle the completion belongs to.
func ByCircle(c model.TaskCompletion) int64 { return c.CircleID }
