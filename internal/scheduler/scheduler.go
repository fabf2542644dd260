// Package scheduler invokes a workload repeatedly on a pool of workers and
// records every invocation in latency counters.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/perfkit/internal/clock"
	"github.com/wesleyorama2/perfkit/internal/config"
	"github.com/wesleyorama2/perfkit/internal/stats"
	"github.com/wesleyorama2/perfkit/internal/timer"
)

// State is the lifecycle state of a Scheduler.
type State int32

const (
	// StateIdle means Run has not been called.
	StateIdle State = iota
	// StateRunning means workers are invoking the workload.
	StateRunning
	// StateCompleted means the termination bound was reached.
	StateCompleted
	// StateAborted means the run was cut short by a timeout, cancellation
	// or a start failure.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyStarted is returned when Run is called more than once.
	ErrAlreadyStarted = errors.New("scheduler has already been started")

	// ErrTimeout is returned when the global timeout expired before the
	// workers finished.
	ErrTimeout = errors.New("execution timed out")

	// ErrNoWorkload is returned when Run is called with a nil workload.
	ErrNoWorkload = errors.New("no workload to invoke")
)

// Workload is one unit of measured work. A non-nil error marks the
// invocation as failed.
type Workload func(ctx context.Context) error

// Observer is notified of every successful invocation.
type Observer interface {
	Invoked(id string, latency int, startMillis int64)
}

// Result summarizes a run.
type Result struct {
	State       State
	Invocations int64
	Failures    int64
	Elapsed     time.Duration
	// Stopped is set when the stop condition ended the run early.
	Stopped     bool
}

// measure pairs a counter with the clock its latencies are taken from.
type measure struct {
	clock   clock.Clock
	counter *stats.LatencyCounter
}

// Scheduler runs a workload according to an ExecutionConfig. A Scheduler
// is single use.
type Scheduler struct {
	cfg      config.ExecutionConfig
	id       string
	measures []measure
	observer Observer
	stop     func() bool
	logger   *slog.Logger

	state    atomic.Int32
	claimed  atomic.Int64
	executed atomic.Int64
	failed   atomic.Int64
	stopped  atomic.Bool

	wg sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithID sets the identifier passed to the observer. Defaults to the
// counter name.
func WithID(id string) Option {
	return func(s *Scheduler) {
		s.id = id
	}
}

// WithClock sets the clock latencies of the primary counter are taken
// from. Defaults to the system clock.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.measures[0].clock = c
		}
	}
}

// WithCounter records every invocation in an additional counter, measured
// with its own clock.
func WithCounter(c clock.Clock, counter *stats.LatencyCounter) Option {
	return func(s *Scheduler) {
		if c != nil && counter != nil {
			s.measures = append(s.measures, measure{clock: c, counter: counter})
		}
	}
}

// WithObserver sets the receiver of invocation events.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// WithStopCondition ends the run early once cond reports true. It is
// checked after every invocation; workers finish their current invocation
// and stop claiming new ones.
func WithStopCondition(cond func() bool) Option {
	return func(s *Scheduler) {
		s.stop = cond
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a scheduler that records into counter.
func New(cfg config.ExecutionConfig, counter *stats.LatencyCounter, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		id:       counter.Name(),
		measures: []measure{{clock: clock.System{}, counter: counter}},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Run invokes the workload until the termination bound is reached and
// blocks until all workers have finished or the run is aborted.
func (s *Scheduler) Run(ctx context.Context, workload Workload) (*Result, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrAlreadyStarted
	}
	if workload == nil {
		s.state.Store(int32(StateAborted))
		return s.result(0), ErrNoWorkload
	}
	if err := s.cfg.Validate(); err != nil {
		s.state.Store(int32(StateAborted))
		return s.result(0), fmt.Errorf("invalid execution config: %w", err)
	}

	waitTimer, err := s.cfg.NewTimer()
	if err != nil {
		s.state.Store(int32(StateAborted))
		return s.result(0), err
	}

	if err := s.startCounters(); err != nil {
		s.state.Store(int32(StateAborted))
		return s.result(0), err
	}

	threads := s.cfg.Threads()
	limit := int64(s.cfg.Invocations())
	mode := s.cfg.Mode()
	if s.cfg.SkipUnrepeatable() {
		threads, limit, mode = 1, 1, config.ModeCount
	}

	start := time.Now()
	var deadline time.Time
	if mode == config.ModeDuration {
		deadline = start.Add(s.cfg.Duration())
	}

	s.logger.Debug("starting execution",
		"id", s.id,
		"mode", mode.String(),
		"invocations", limit,
		"duration", s.cfg.Duration(),
		"threads", threads,
		"timer", string(s.cfg.TimerKind()))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.spawn(runCtx, threads, func(ctx context.Context) {
			s.work(ctx, workload, waitTimer, mode, limit, deadline)
		})
		s.wg.Wait()
	}()

	var timeoutC <-chan time.Time
	if timeout := s.cfg.Timeout(); timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timeoutC = t.C
	}

	select {
	case <-done:
	case <-timeoutC:
		cancel()
		s.abort()
		s.logger.Warn("execution timed out", "id", s.id, "timeout", s.cfg.Timeout())
		return s.result(time.Since(start)), fmt.Errorf("%s: %w after %s", s.id, ErrTimeout, s.cfg.Timeout())
	case <-ctx.Done():
		cancel()
		s.abort()
		s.logger.Warn("execution cancelled", "id", s.id, "error", ctx.Err())
		return s.result(time.Since(start)), fmt.Errorf("%s: execution cancelled: %w", s.id, ctx.Err())
	}

	if err := s.stopCounters(); err != nil {
		s.state.Store(int32(StateAborted))
		return s.result(time.Since(start)), err
	}
	s.state.Store(int32(StateCompleted))

	result := s.result(time.Since(start))
	s.logger.Info("execution completed",
		"id", s.id,
		"invocations", result.Invocations,
		"failures", result.Failures,
		"elapsed", result.Elapsed)
	return result, nil
}

// spawn starts n workers, delaying consecutive starts by the rampup.
func (s *Scheduler) spawn(ctx context.Context, n int, fn func(context.Context)) {
	rampup := s.cfg.Rampup()
	for i := 0; i < n; i++ {
		if i > 0 && rampup > 0 {
			t := time.NewTimer(rampup)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			fn(ctx)
		}()
	}
}

// work is the loop of one worker.
func (s *Scheduler) work(ctx context.Context, workload Workload, waitTimer timer.WaitTimer, mode config.Mode, limit int64, deadline time.Time) {
	for {
		if ctx.Err() != nil || s.stopped.Load() {
			return
		}

		var n int64
		if mode == config.ModeCount {
			n = s.claimed.Add(1)
			if n > limit {
				return
			}
		} else {
			if !time.Now().Before(deadline) {
				return
			}
			n = s.claimed.Add(1)
		}

		if !timer.Sleep(waitTimer, ctx.Done()) {
			return
		}

		s.invoke(ctx, workload, n)

		if s.stop != nil && s.stop() {
			if s.stopped.CompareAndSwap(false, true) {
				s.logger.Info("stop condition met", "id", s.id, "invocation", n)
			}
			return
		}
	}
}

// invoke runs the workload once and records the outcome in every counter.
func (s *Scheduler) invoke(ctx context.Context, workload Workload, n int64) {
	starts := make([]int64, len(s.measures))
	startMillis := time.Now().UnixMilli()
	for i, m := range s.measures {
		starts[i] = m.clock.Now()
	}

	err := call(ctx, workload)

	latencies := make([]int, len(s.measures))
	for i, m := range s.measures {
		latencies[i] = int(m.clock.Now() - starts[i])
	}

	s.executed.Add(1)
	if err != nil {
		s.failed.Add(1)
		failure := stats.NewExecutionError(err, n)
		for _, m := range s.measures {
			m.counter.AddSample(0, failure)
		}
		s.logger.Debug("invocation failed", "id", s.id, "invocation", n, "error", err)
		return
	}

	for i, m := range s.measures {
		m.counter.AddSample(latencies[i], nil)
	}
	if s.observer != nil {
		s.observer.Invoked(s.id, latencies[0], startMillis)
	}
}

// call invokes the workload, converting a panic into an error.
func call(ctx context.Context, workload Workload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workload panicked: %v", r)
		}
	}()
	return workload(ctx)
}

func (s *Scheduler) startCounters() error {
	for i, m := range s.measures {
		if err := m.counter.Start(); err != nil {
			for _, started := range s.measures[:i] {
				_ = started.counter.Stop()
			}
			return fmt.Errorf("starting counters: %w", err)
		}
	}
	return nil
}

func (s *Scheduler) stopCounters() error {
	var errs []error
	for _, m := range s.measures {
		if err := m.counter.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// abort marks the run as aborted and closes the measured time frame.
// Workers still in an invocation finish in the background.
func (s *Scheduler) abort() {
	s.state.Store(int32(StateAborted))
	_ = s.stopCounters()
}

func (s *Scheduler) result(elapsed time.Duration) *Result {
	return &Result{
		State:       s.State(),
		Invocations: s.executed.Load(),
		Failures:    s.failed.Load(),
		Elapsed:     elapsed,
		Stopped:     s.stopped.Load(),
	}
}
