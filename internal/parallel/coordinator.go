// Package parallel runs distinct named tasks concurrently and records when
// each of them was active, so callers can verify that they overlapped.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is a named unit of work run Concurrency times in parallel.
type Task struct {
	Name        string
	Concurrency int
	Run         func(ctx context.Context) error
}

// Interval is the first and last time a task was seen active.
type Interval struct {
	First time.Time
	Last  time.Time
}

// Contains reports whether t lies within the interval, bounds included.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.First) && !t.After(i.Last)
}

type workerKey struct{}

// WorkerID returns the identifier of the task copy running with ctx, in
// the form "<task>#<n>".
func WorkerID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(workerKey{}).(string)
	return id, ok
}

// Coordinator runs tasks on a shared worker pool and records their spans.
type Coordinator struct {
	mu     sync.Mutex
	spans  map[string]Interval
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		spans:  make(map[string]Interval),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mark records that the named task is active now, extending its span.
func (c *Coordinator) Mark(name string) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	span, ok := c.spans[name]
	if !ok {
		c.spans[name] = Interval{First: now, Last: now}
		return
	}
	if now.Before(span.First) {
		span.First = now
	}
	if now.After(span.Last) {
		span.Last = now
	}
	c.spans[name] = span
}

// Span returns the recorded interval of a task.
func (c *Coordinator) Span(name string) (Interval, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	span, ok := c.spans[name]
	return span, ok
}

// Names returns the names of all tasks with a recorded span.
func (c *Coordinator) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.spans))
	for name := range c.spans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Overlaps reports whether the spans of a and b intersect: one of them
// started while the other was active. Unknown tasks never overlap.
func (c *Coordinator) Overlaps(a, b string) bool {
	spanA, okA := c.Span(a)
	spanB, okB := c.Span(b)
	if !okA || !okB {
		return false
	}
	return spanA.Contains(spanB.First) || spanB.Contains(spanA.First)
}

// Run starts every task Concurrency times on a pool large enough for all
// copies to execute simultaneously and waits for them to finish. Each copy
// marks its task when it starts and when it returns. A failing copy does
// not cancel the others; all failures are returned joined.
func (c *Coordinator) Run(ctx context.Context, tasks ...Task) error {
	limit := 0
	for _, task := range tasks {
		if task.Run == nil {
			return fmt.Errorf("task %q has no run function", task.Name)
		}
		limit += concurrency(task)
	}
	if limit == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(limit)

	var mu sync.Mutex
	var errs []error

	c.logger.Debug("starting parallel tasks", "tasks", len(tasks), "workers", limit)

	for _, task := range tasks {
		task := task
		for i := 0; i < concurrency(task); i++ {
			workerCtx := context.WithValue(ctx, workerKey{}, fmt.Sprintf("%s#%d", task.Name, i))
			g.Go(func() error {
				c.Mark(task.Name)
				defer c.Mark(task.Name)

				if err := task.Run(workerCtx); err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("task %s: %w", task.Name, err))
					mu.Unlock()
				}
				return nil
			})
		}
	}

	_ = g.Wait()
	return errors.Join(errs...)
}

func concurrency(t Task) int {
	if t.Concurrency < 1 {
		return 1
	}
	return t.Concurrency
}

// Await polls cond every interval until it holds or timeout elapses. It
// returns whether cond held; a timeout or cancelled ctx yields false.
func Await(ctx context.Context, cond func() bool, interval, timeout time.Duration) bool {
	if cond() {
		return true
	}
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return cond()
		case <-ticker.C:
			if cond() {
				return true
			}
		}
	}
}

// WorkerSet collects distinct worker identifiers. It is safe for
// concurrent use.
type WorkerSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewWorkerSet creates an empty set.
func NewWorkerSet() *WorkerSet {
	return &WorkerSet{ids: make(map[string]struct{})}
}

// Add records id.
func (s *WorkerSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

// Len returns the number of distinct identifiers.
func (s *WorkerSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// AtLeast returns a condition for Await that holds once n distinct
// identifiers were added.
func (s *WorkerSet) AtLeast(n int) func() bool {
	return func() bool { return s.Len() >= n }
}
