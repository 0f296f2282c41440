package competition

import (
	"testing"
	"time"

	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/points"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const (
	circleA int64 = 1
	circleB int64 = 2
)

var t0 = time.Date(2024, 12, 2, 8, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func newComp(kind string) model.Competition {
	return model.Competition{
		ID:           10,
		Name:         "December Dash",
		Type:         kind,
		TargetPoints: 500,
		CircleA:      circleA,
		CircleB:      circleB,
		StartDate:    "2024-12-01",
		Status:       model.CompetitionActive,
	}
}

func TestTargetPointsCompletesInSamePass(t *testing.T) {
	c := newComp(model.CompetitionTargetPoints)
	events := []points.Event{
		{Key: circleA, Points: 320, At: t0, Seq: 1},
		{Key: circleB, Points: 300, At: t0.Add(time.Minute), Seq: 2},
	}

	got, changed := Resolve(c, events, t0.Add(time.Hour))
	if changed {
		t.Fatal("competition should still be active at 320 points")
	}

	events = append(events, points.Event{Key: circleA, Points: 200, At: t0.Add(2 * time.Hour), Seq: 3})
	got, changed = Resolve(got, events, t0.Add(3*time.Hour))
	if !changed {
		t.Fatal("expected competition to complete at 520 points")
	}
	if got.Status != model.CompetitionCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.WinnerID == nil || *got.WinnerID != circleA {
		t.Errorf("winner = %v, want %d", got.WinnerID, circleA)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("completed at = %v, want the crossing event time", got.CompletedAt)
	}
}

func TestTargetPointsEarliestToReachWins(t *testing.T) {
	c := newComp(model.CompetitionTargetPoints)
	c.TargetPoints = 100
	// B ends with more points but A crossed the target first.
	events := []points.Event{
		{Key: circleA, Points: 100, At: t0, Seq: 1},
		{Key: circleB, Points: 150, At: t0.Add(time.Minute), Seq: 2},
	}
	got, _ := Resolve(c, events, t0.Add(time.Hour))
	if got.WinnerID == nil || *got.WinnerID != circleA {
		t.Errorf("winner = %v, want %d", got.WinnerID, circleA)
	}
}

func TestTargetPointsSimultaneousCrossing(t *testing.T) {
	c := newComp(model.CompetitionTargetPoints)
	c.TargetPoints = 100

	t.Run("higher total wins", func(t *testing.T) {
		events := []points.Event{
			{Key: circleA, Points: 100, At: t0, Seq: 1},
			{Key: circleB, Points: 120, At: t0, Seq: 2},
		}
		got, _ := Resolve(c, events, t0)
		if got.WinnerID == nil || *got.WinnerID != circleB {
			t.Errorf("winner = %v, want %d", got.WinnerID, circleB)
		}
	})

	t.Run("equal totals tie", func(t *testing.T) {
		events := []points.Event{
			{Key: circleA, Points: 100, At: t0, Seq: 1},
			{Key: circleB, Points: 100, At: t0, Seq: 2},
		}
		got, changed := Resolve(c, events, t0)
		if !changed || got.Status != model.CompetitionCompleted {
			t.Fatal("expected completion")
		}
		if got.WinnerID != nil {
			t.Errorf("winner = %d, want tie", *got.WinnerID)
		}
	})
}

func TestTimed(t *testing.T) {
	c := newComp(model.CompetitionTimed)
	c.EndDate = strPtr("2024-12-07")
	events := []points.Event{
		{Key: circleA, Points: 40, At: t0, Seq: 1},
		{Key: circleB, Points: 60, At: t0, Seq: 2},
	}

	lastDay := time.Date(2024, 12, 7, 23, 0, 0, 0, time.UTC)
	if _, changed := Resolve(c, events, lastDay); changed {
		t.Fatal("timed competition should be active through its end date")
	}

	after := time.Date(2024, 12, 8, 0, 0, 1, 0, time.UTC)
	got, changed := Resolve(c, events, after)
	if !changed {
		t.Fatal("expected completion after end date")
	}
	if got.WinnerID == nil || *got.WinnerID != circleB {
		t.Errorf("winner = %v, want %d", got.WinnerID, circleB)
	}
}

func TestTimedTie(t *testing.T) {
	c := newComp(model.CompetitionTimed)
	c.EndDate = strPtr("2024-12-07")
	events := []points.Event{
		{Key: circleA, Points: 50, At: t0, Seq: 1},
		{Key: circleB, Points: 50, At: t0, Seq: 2},
	}
	got, changed := Resolve(c, events, time.Date(2024, 12, 9, 0, 0, 0, 0, time.UTC))
	if !changed {
		t.Fatal("expected completion")
	}
	if got.WinnerID != nil {
		t.Errorf("winner = %d, want unset on tie", *got.WinnerID)
	}
}

func TestOngoingNeverCompletes(t *testing.T) {
	c := newComp(model.CompetitionOngoing)
	events := []points.Event{{Key: circleA, Points: 100000, At: t0, Seq: 1}}
	if _, changed := Resolve(c, events, t0.AddDate(1, 0, 0)); changed {
		t.Error("ongoing competition must not auto-complete")
	}

	got, changed := End(c, events, t0)
	if !changed || got.WinnerID == nil || *got.WinnerID != circleA {
		t.Errorf("End: changed = %v, winner = %v; want true, %d", changed, got.WinnerID, circleA)
	}
}

func TestWindow(t *testing.T) {
	c := newComp(model.CompetitionTimed)
	c.EndDate = strPtr("2024-12-07")
	w := Window(c)
	if !w.Contains("2024-12-07") || w.Contains("2024-12-08") || w.Contains("2024-11-30") {
		t.Errorf("timed window = %+v, want [2024-12-01, 2024-12-08)", w)
	}

	w = Window(newComp(model.CompetitionOngoing))
	if !w.Contains("2030-01-01") || w.Contains("2024-11-30") {
		t.Errorf("ongoing window = %+v, want [2024-12-01, inf)", w)
	}
}

func TestStandingsFrozenAfterCompletion(t *testing.T) {
	c := newComp(model.CompetitionTargetPoints)
	events := []points.Event{
		{Key: circleA, Points: 500, At: t0, Seq: 1},
	}
	done, changed := Resolve(c, events, t0)
	if !changed {
		t.Fatal("expected competition to complete at 500 points")
	}
	if a, b := Standings(done, events); a != 500 || b != 0 {
		t.Fatalf("standings = %d/%d, want 500/0", a, b)
	}

	events = append(events,
		points.Event{Key: circleB, Points: 450, At: t0.Add(time.Hour), Seq: 2},
		points.Event{Key: circleB, Points: 450, At: t0.Add(2 * time.Hour), Seq: 3},
	)
	if a, b := Standings(done, events); a != 500 || b != 0 {
		t.Errorf("standings after later events = %d/%d, want 500/0", a, b)
	}

	// Without recorded totals the completion time still caps the events.
	done.FinalPointsA, done.FinalPointsB = nil, nil
	if a, b := Standings(done, events); a != 500 || b != 0 {
		t.Errorf("standings from events = %d/%d, want 500/0", a, b)
	}

	if a, b := Standings(c, events); a != 500 || b != 900 {
		t.Errorf("active standings = %d/%d, want 500/900", a, b)
	}
}

func TestCompetitionTerminality(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("completed competitions never change", prop.ForAll(
		func(first, more []int) bool {
			c := newComp(model.CompetitionTargetPoints)
			c.TargetPoints = 50

			var events []points.Event
			add := func(vals []int) {
				for _, v := range vals {
					key := circleA
					if v < 0 {
						key, v = circleB, -v
					}
					events = append(events, points.Event{
						Key: key, Points: v,
						At:  t0.Add(time.Duration(len(events)) * time.Minute),
						Seq: int64(len(events) + 1),
					})
				}
			}

			add(first)
			resolved, _ := Resolve(c, events, t0)
			if resolved.Status != model.CompetitionCompleted {
				return true
			}
			winner := resolved.WinnerID
			finalA, finalB := Standings(resolved, events)

			add(more)
			again, changed := Resolve(resolved, events, t0.Add(24*time.Hour))
			if changed || again.Status != model.CompetitionCompleted {
				return false
			}
			if (winner == nil) != (again.WinnerID == nil) {
				return false
			}
			if a, b := Standings(again, events); a != finalA || b != finalB {
				return false
			}
			return winner == nil || *winner == *again.WinnerID
		},
		gen.SliceOf(gen.IntRange(-30, 30)),
		gen.SliceOf(gen.IntRange(-30, 30)),
	))

	properties.TestingRun(t)
}
