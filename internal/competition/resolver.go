// Package competition decides standings and outcomes of circle-vs-circle
// competitions from timestamped point events.
package competition

import (
	"time"

	"github.com/dukerupert/frisfocus/internal/clock"
	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/points"
)

// Window returns the calendar dates whose points count toward c: everything
// since the start date, capped after the end date for timed competitions.
func Window(c model.Competition) points.Window {
	if c.Type == model.CompetitionTimed && c.EndDate != nil {
		end, err := clock.ParseDate(*c.EndDate)
		if err == nil {
			return points.Between(c.StartDate, clock.FormatDate(end.AddDate(0, 0, 1)))
		}
	}
	return points.Since(c.StartDate)
}

// Totals sums the events of each circle. Events keyed by any other circle
// are ignored.
func Totals(c model.Competition, events []points.Event) (a, b int) {
	for _, e := range events {
		switch e.Key {
		case c.CircleA:
			a += e.Points
		case c.CircleB:
			b += e.Points
		}
	}
	return a, b
}

// Resolve evaluates an active competition against its point events and
// reports whether it transitioned to completed. Completed competitions are
// terminal and returned unchanged.
//
// targetPoints completes at the first instant either circle's running total
// reaches the target. If both cross at the same instant the higher total
// wins and equal totals are a tie. timed completes once the end date has
// passed, with the higher total winning. ongoing never completes here.
func Resolve(c model.Competition, events []points.Event, now time.Time) (model.Competition, bool) {
	if c.Status == model.CompetitionCompleted {
		return c, false
	}

	switch c.Type {
	case model.CompetitionTargetPoints:
		winner, at, done := raceToTarget(c, events)
		if !done {
			return c, false
		}
		return complete(c, winner, at, events), true

	case model.CompetitionTimed:
		if c.EndDate == nil || clock.FormatDate(clock.Date(now)) <= *c.EndDate {
			return c, false
		}
		a, b := Totals(c, events)
		return complete(c, leader(c, a, b), now, events), true
	}

	return c, false
}

// End completes an active competition on demand, typically an ongoing one
// both circles agreed to stop. The higher total wins.
func End(c model.Competition, events []points.Event, now time.Time) (model.Competition, bool) {
	if c.Status == model.CompetitionCompleted {
		return c, false
	}
	a, b := Totals(c, events)
	return complete(c, leader(c, a, b), now, events), true
}

// Standings returns the totals shown for c. A completed competition reports
// the totals recorded when it completed; events after that instant never
// count.
func Standings(c model.Competition, events []points.Event) (a, b int) {
	if c.Status == model.CompetitionCompleted {
		if c.FinalPointsA != nil && c.FinalPointsB != nil {
			return *c.FinalPointsA, *c.FinalPointsB
		}
		if c.CompletedAt != nil {
			events = Before(events, *c.CompletedAt)
		}
	}
	return Totals(c, events)
}

// Before returns the events at or before at.
func Before(events []points.Event, at time.Time) []points.Event {
	out := make([]points.Event, 0, len(events))
	for _, e := range events {
		if !e.At.After(at) {
			out = append(out, e)
		}
	}
	return out
}

func raceToTarget(c model.Competition, events []points.Event) (*int64, time.Time, bool) {
	if c.TargetPoints <= 0 {
		return nil, time.Time{}, false
	}
	sorted := append([]points.Event(nil), events...)
	points.SortEvents(sorted)

	var a, b int
	for i := 0; i < len(sorted); {
		at := sorted[i].At
		// Apply every event of this instant before checking the target.
		for ; i < len(sorted) && sorted[i].At.Equal(at); i++ {
			switch sorted[i].Key {
			case c.CircleA:
				a += sorted[i].Points
			case c.CircleB:
				b += sorted[i].Points
			}
		}
		if a >= c.TargetPoints || b >= c.TargetPoints {
			return leader(c, a, b), at, true
		}
	}
	return nil, time.Time{}, false
}

func leader(c model.Competition, a, b int) *int64 {
	switch {
	case a > b:
		id := c.CircleA
		return &id
	case b > a:
		id := c.CircleB
		return &id
	}
	return nil
}

func complete(c model.Competition, winner *int64, at time.Time, events []points.Event) model.Competition {
	a, b := Totals(c, Before(events, at))
	c.Status = model.CompetitionCompleted
	c.WinnerID = winner
	c.CompletedAt = &at
	c.FinalPointsA = &a
	c.FinalPointsB = &b
	return c
}
