// Package cache memoizes derived point totals per circle. Entries are grouped
// by circle so that one ledger write invalidates every window of that circle.
//
// Every circle carries a generation that Invalidate advances. A reader takes
// the generation before computing a value and passes it to Set; the write is
// dropped when an invalidation happened in between, so a value computed from
// an older ledger can never outlive the write that replaced it.
package cache

import (
	"context"
	"sync"
)

// Cache stores opaque values under (circle, key).
type Cache interface {
	Get(ctx context.Context, circleID int64, key string) ([]byte, bool, error)
	Generation(ctx context.Context, circleID int64) (uint64, error)
	// Set stores value unless the circle's generation is no longer gen.
	Set(ctx context.Context, circleID int64, gen uint64, key string, value []byte) error
	Invalidate(ctx context.Context, circleID int64) error
}

// Memory is an in-process Cache.
type Memory struct {
	mu      sync.RWMutex
	circles map[int64]map[string][]byte
	gens    map[int64]uint64
}

func NewMemory() *Memory {
	return &Memory{
		circles: make(map[int64]map[string][]byte),
		gens:    make(map[int64]uint64),
	}
}

func (m *Memory) Get(_ context.Context, circleID int64, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.circles[circleID][key]
	return v, ok, nil
}

func (m *Memory) Generation(_ context.Context, circleID int64) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gens[circleID], nil
}

func (m *Memory) Set(_ context.Context, circleID int64, gen uint64, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[circleID] != gen {
		return nil
	}
	entries, ok := m.circles[circleID]
	if !ok {
		entries = make(map[string][]byte)
		m.circles[circleID] = entries
	}
	entries[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Invalidate(_ context.Context, circleID int64) error {
	m.mu.Lock()
	delete(m.circles, circleID)
	m.gens[circleID]++
	m.mu.Unlock()
	return nil
}

// Len returns the number of cached entries for a circle.
func (m *Memory) Len(circleID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.circles[circleID])
}
