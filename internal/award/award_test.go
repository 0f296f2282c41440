package award

import (
	"testing"
	"time"

	"github.com/dukerupert/frisfocus/internal/model"
	"github.com/dukerupert/frisfocus/internal/points"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var t0 = time.Date(2024, 12, 2, 8, 0, 0, 0, time.UTC)

func TestApplyProgressEarnsOnce(t *testing.T) {
	b := model.CircleBadge{Required: 3}

	var earnedCount int
	for i := 0; i < 5; i++ {
		var just bool
		b, just = ApplyProgress(b, 1, t0)
		if just {
			earnedCount++
		}
	}
	if !b.Earned {
		t.Fatal("badge should be earned")
	}
	if earnedCount != 1 {
		t.Errorf("justEarned reported %d times, want 1", earnedCount)
	}
	if b.Progress != 5 {
		t.Errorf("progress = %d, want 5", b.Progress)
	}
}

func TestApplyProgressNeverReverts(t *testing.T) {
	b := model.CircleBadge{Required: 1}
	b, _ = ApplyProgress(b, 1, t0)
	b, _ = ApplyProgress(b, -1, t0)
	b, _ = ApplyProgress(b, -1, t0)

	if !b.Earned {
		t.Error("earned badge reverted")
	}
	if b.Progress != 0 {
		t.Errorf("progress = %d, want 0 (floored)", b.Progress)
	}
}

func TestBadgeMonotonicity(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("earned never returns to false", prop.ForAll(
		func(required int, deltas []int) bool {
			b := model.CircleBadge{Required: required}
			seen := false
			for _, d := range deltas {
				b, _ = ApplyProgress(b, d, t0)
				if seen && !b.Earned {
					return false
				}
				if b.Progress < 0 {
					return false
				}
				seen = seen || b.Earned
			}
			return true
		},
		gen.IntRange(1, 10),
		gen.SliceOf(gen.IntRange(-3, 3)),
	))

	properties.TestingRun(t)
}

func TestFirstTo(t *testing.T) {
	events := []points.Event{
		{Key: 1, Points: 30, At: t0, Seq: 1},
		{Key: 2, Points: 50, At: t0.Add(time.Hour), Seq: 2},
		{Key: 1, Points: 30, At: t0.Add(2 * time.Hour), Seq: 3},
	}

	r, ok := FirstTo(50, events)
	if !ok {
		t.Fatal("expected a winner")
	}
	if r.UserID != 2 {
		t.Errorf("winner = %d, want 2", r.UserID)
	}
	if !r.AchievedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("achieved at = %v, want %v", r.AchievedAt, t0.Add(time.Hour))
	}

	if _, ok := FirstTo(500, events); ok {
		t.Error("no one should reach 500")
	}
}

func TestLeader(t *testing.T) {
	tests := []struct {
		name   string
		events []points.Event
		want   int64
		ok     bool
	}{
		{"no events", nil, 0, false},
		{
			"highest total wins",
			[]points.Event{
				{Key: 1, Points: 10, At: t0, Seq: 1},
				{Key: 2, Points: 25, At: t0.Add(time.Hour), Seq: 2},
			},
			2, true,
		},
		{
			"tie goes to earliest",
			[]points.Event{
				{Key: 1, Points: 10, At: t0.Add(2 * time.Hour), Seq: 1},
				{Key: 2, Points: 10, At: t0.Add(time.Hour), Seq: 2},
			},
			2, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := Leader(tt.events)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && r.UserID != tt.want {
				t.Errorf("winner = %d, want %d", r.UserID, tt.want)
			}
		})
	}
}

func TestPeriod(t *testing.T) {
	ws := time.Date(2024, 12, 2, 0, 0, 0, 0, time.UTC)
	if got := Period(model.AwardWeeklyChampion, ws); got != "2024-12-02" {
		t.Errorf("weekly period = %q, want 2024-12-02", got)
	}
	if got := Period(model.AwardFirstTo, ws); got != model.PeriodOnce {
		t.Errorf("first_to period = %q, want %q", got, model.PeriodOnce)
	}
}
