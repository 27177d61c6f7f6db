package eager

import (
	"context"
	"sync"
)

// Stats accumulates batch counters for one request.
type Stats struct {
	mu           sync.Mutex
	batches      int
	keys         int
	parents      int
	queriesSaved int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Batches      int
	Keys         int
	Parents      int
	QueriesSaved int64
}

func (s *Stats) addBatch(keys int, saved int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	s.keys += keys
	s.queriesSaved += saved
}

func (s *Stats) addParents(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents += n
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		Batches:      s.batches,
		Keys:         s.keys,
		Parents:      s.parents,
		QueriesSaved: s.queriesSaved,
	}
}

type statsKey struct{}

// WithStats attaches a fresh Stats to ctx.
func WithStats(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, statsKey{}, &Stats{})
}

// StatsFromContext returns the request's Stats, if any.
func StatsFromContext(ctx context.Context) (*Stats, bool) {
	if ctx == nil {
		return nil, false
	}
	stats, ok := ctx.Value(statsKey{}).(*Stats)
	return stats, ok
}
