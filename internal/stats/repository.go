package stats

import (
	"sort"
	"sync"

	"github.com/wesleyorama2/perfkit/internal/clock"
)

// Repository is a named registry of latency counters shared by every
// component of one process or test run. Callers own the repository and pass
// it down explicitly.
type Repository struct {
	mu       sync.RWMutex
	counters map[string]*LatencyCounter
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{counters: make(map[string]*LatencyCounter)}
}

// AddSample records latency on the counter called name, creating the
// counter on first use.
func (r *Repository) AddSample(name string, latency int) {
	r.GetOrCreate(name, "", DefaultExpectedMaxLatency).AddSample(latency, nil)
}

// Counter returns the counter called name.
func (r *Repository) Counter(name string) (*LatencyCounter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.counters[name]
	return c, ok
}

// GetOrCreate returns the counter called name, creating it with the given
// clock label and initial capacity when absent. Concurrent callers always
// receive the same instance.
func (r *Repository) GetOrCreate(name, clockName string, expectedMaxLatency int) *LatencyCounter {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// re-check after acquiring the write lock
	if c, ok := r.counters[name]; ok {
		return c
	}
	if clockName == "" {
		clockName = clock.SystemName
	}
	c = NewLatencyCounterWithClock(name, clockName, expectedMaxLatency)
	r.counters[name] = c
	return c
}

// Replace registers a fresh counter called name, discarding any earlier
// counter of that name. Each measured run starts from an empty counter.
func (r *Repository) Replace(name, clockName string, expectedMaxLatency int) *LatencyCounter {
	if clockName == "" {
		clockName = clock.SystemName
	}
	c := NewLatencyCounterWithClock(name, clockName, expectedMaxLatency)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] = c
	return c
}

// Names returns the registered counter names in sorted order.
func (r *Repository) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.counters))
	for name := range r.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all counters. Counters already handed out stay usable but
// later lookups by the same name create fresh ones.
func (r *Repository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = make(map[string]*LatencyCounter)
}
