package stats

import (
	"errors"
	"sync"
	"time"
)

// ErrAlreadyStopped is returned when a StopWatch is stopped twice.
var ErrAlreadyStopped = errors.New("stop watch has already been stopped")

// StopWatch measures one code section and records its duration in
// milliseconds on a repository counter.
//
//	sw := stats.NewStopWatch(repo, "db.query")
//	rows, err := db.Query(...)
//	sw.Stop()
type StopWatch struct {
	repo    *Repository
	name    string
	started time.Time

	mu      sync.Mutex
	stopped bool
}

// NewStopWatch starts a stop watch for the counter called name.
func NewStopWatch(repo *Repository, name string) *StopWatch {
	return &StopWatch{repo: repo, name: name, started: time.Now()}
}

// Stop records the elapsed time and returns it in milliseconds.
func (s *StopWatch) Stop() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, ErrAlreadyStopped
	}
	s.stopped = true

	elapsed := int(time.Since(s.started).Milliseconds())
	s.repo.AddSample(s.name, elapsed)
	return elapsed, nil
}
