package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/frisfocus/internal/model"
	"go.uber.org/goleak"
)

type fakeEngine struct {
	mu        sync.Mutex
	ids       []int64
	wins      map[int64]int
	fail      map[int64]bool
	evaluated []int64
	inflight  atomic.Int32
	peak      atomic.Int32
	resolved  int
	passes    atomic.Int32
}

func (f *fakeEngine) CircleIDs(context.Context) ([]int64, error) {
	return f.ids, nil
}

func (f *fakeEngine) EvaluateBoundaries(_ context.Context, id int64) (int, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.evaluated = append(f.evaluated, id)
	f.mu.Unlock()
	if f.fail[id] {
		return 0, errors.New("boom")
	}
	return f.wins[id], nil
}

func (f *fakeEngine) ResolveCompetitions(context.Context) ([]model.Competition, error) {
	f.passes.Add(1)
	return make([]model.Competition, f.resolved), nil
}

func (f *fakeEngine) PurgeExpiredSessions(context.Context) (int64, error) {
	return 2, nil
}

func TestRunOnce(t *testing.T) {
	e := &fakeEngine{
		ids:      []int64{1, 2, 3, 4, 5, 6},
		wins:     map[int64]int{2: 1, 5: 2},
		fail:     map[int64]bool{4: true},
		resolved: 1,
	}
	s := New(e, time.Hour, 2, slog.Default())

	r, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}

	want := Report{Circles: 6, AwardsWon: 3, CompetitionsResolved: 1, SessionsPurged: 2, Failed: 1}
	if r != want {
		t.Errorf("report = %+v, want %+v", r, want)
	}
	if len(e.evaluated) != 6 {
		t.Errorf("evaluated %d circles, want 6", len(e.evaluated))
	}
	if p := e.peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", p)
	}
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := &fakeEngine{ids: []int64{1}}
	s := New(e, 10*time.Millisecond, 1, slog.Default())
	s.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for e.passes.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if got := e.passes.Load(); got < 2 {
		t.Errorf("passes = %d, want at least 2", got)
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := New(&fakeEngine{}, 0, 0, slog.Default())
	// Should not block or panic
	s.Stop()
}
