package points

import (
	"sort"
	"time"
)

// Event is a timestamped point delta attributed to Key (a user or a circle).
// Seq breaks ties between events with the same timestamp.
type Event struct {
	Key    int64
	Points int
	At     time.Time
	Seq    int64
}

// SortEvents orders events by time, then by sequence.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].At.Equal(events[j].At) {
			return events[i].At.Before(events[j].At)
		}
		return events[i].Seq < events[j].Seq
	})
}

// Standing is one key's replayed total and the time that total was reached.
type Standing struct {
	Key       int64
	Points    int
	ReachedAt time.Time
}

// Replay sums events per key and records when each key reached its final
// total. Results are ordered by points descending, then earliest ReachedAt,
// then first appearance.
func Replay(events []Event) []Standing {
	sorted := append([]Event(nil), events...)
	SortEvents(sorted)

	idx := make(map[int64]int)
	var out []Standing
	for _, e := range sorted {
		i, ok := idx[e.Key]
		if !ok {
			i = len(out)
			idx[e.Key] = i
			out = append(out, Standing{Key: e.Key})
		}
		out[i].Points += e.Points
		out[i].ReachedAt = e.At
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].ReachedAt.Before(out[j].ReachedAt)
	})
	return out
}

// FirstToReach replays events in order and returns the first key whose
// running total reaches target, with the event that crossed it.
func FirstToReach(events []Event, target int) (Event, bool) {
	if target <= 0 {
		return Event{}, false
	}
	sorted := append([]Event(nil), events...)
	SortEvents(sorted)

	running := make(map[int64]int)
	for _, e := range sorted {
		running[e.Key] += e.Points
		if running[e.Key] >= target {
			return e, true
		}
	}
	return Event{}, false
}
