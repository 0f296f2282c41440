// Package points derives point totals from the completion ledger. Nothing in
// here is stored: every total is a pure function of completions and the
// current task values.
package points

import (
	"fmt"
	"time"

	"github.com/dukerupert/frisfocus/internal/clock"
)

type Kind string

const (
	Day     Kind = "day"
	Week    Kind = "week"
	AllTime Kind = "alltime"
)

// ParseKind validates a window name. An empty string selects the week.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Day, Week, AllTime:
		return Kind(s), nil
	case "":
		return Week, nil
	}
	return "", fmt.Errorf("unknown window %q", s)
}

// Window is a half-open range of calendar dates [Start, End) in YYYY-MM-DD
// form. An empty Start is unbounded.
type Window struct {
	Kind  Kind
	Start string
	End   string
}

// NewWindow returns the window of the given kind that contains today.
func NewWindow(kind Kind, today time.Time) Window {
	today = clock.Date(today)
	end := clock.FormatDate(today.AddDate(0, 0, 1))
	switch kind {
	case Day:
		return Window{Kind: Day, Start: clock.FormatDate(today), End: end}
	case AllTime:
		return Window{Kind: AllTime, End: end}
	default:
		ws := clock.WeekStart(today)
		return Window{Kind: Week, Start: clock.FormatDate(ws), End: clock.FormatDate(ws.AddDate(0, 0, 7))}
	}
}

// WeekOf returns the full Monday-to-Sunday window containing d.
func WeekOf(d time.Time) Window {
	ws := clock.WeekStart(d)
	return Window{Kind: Week, Start: clock.FormatDate(ws), End: clock.FormatDate(ws.AddDate(0, 0, 7))}
}

// Since returns an open-ended window starting at start.
func Since(start string) Window {
	return Window{Kind: AllTime, Start: start}
}

// Between returns the window [start, end).
func Between(start, end string) Window {
	return Window{Kind: AllTime, Start: start, End: end}
}

// Contains reports whether the YYYY-MM-DD date falls inside the window.
func (w Window) Contains(date string) bool {
	if w.Start != "" && date < w.Start {
		return false
	}
	if w.End != "" && date >= w.End {
		return false
	}
	return true
}

// Key identifies the window for caching.
func (w Window) Key() string {
	return string(w.Kind) + ":" + w.Start + ":" + w.End
}
