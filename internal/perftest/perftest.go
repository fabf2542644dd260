// Package perftest binds a workload to its execution configuration and
// requirement. It is the single entry point used by the CLI and by Go tests
// that want performance assertions.
package perftest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/wesleyorama2/perfkit/internal/clock"
	"github.com/wesleyorama2/perfkit/internal/config"
	"github.com/wesleyorama2/perfkit/internal/report"
	"github.com/wesleyorama2/perfkit/internal/requirement"
	"github.com/wesleyorama2/perfkit/internal/scheduler"
	"github.com/wesleyorama2/perfkit/internal/stats"
)

// ErrRequirementFailed is returned when a run completed but violated its
// performance requirement.
var ErrRequirementFailed = errors.New("performance requirement failed")

// Activator reports whether measurement is switched on. Override sources
// may implement it to disable measuring globally.
type Activator interface {
	Active() bool
}

// Statement describes one measured test.
type Statement struct {
	ID          string
	Config      config.ExecutionConfig
	Requirement *config.PerformanceRequirement

	// Repository receives the counters of the run. A private repository is
	// used when nil.
	Repository *stats.Repository
	// Reports receives lifecycle events. May be nil.
	Reports   report.Module
	Overrides config.OverrideSource
	Logger    *slog.Logger
}

// Outcome is the result of executing a statement.
type Outcome struct {
	RunID    string
	ID       string
	Config   config.ExecutionConfig
	Result   *scheduler.Result
	Counters []*stats.LatencyCounter
	Verdict  requirement.Verdict
	// Skipped is set when measurement was inactive and the workload ran
	// once unmeasured.
	Skipped  bool
}

// Primary returns the counter of the first clock.
func (o *Outcome) Primary() *stats.LatencyCounter {
	if o == nil || len(o.Counters) == 0 {
		return nil
	}
	return o.Counters[0]
}

// Passed reports whether the run completed and met its requirement.
func (o *Outcome) Passed() bool {
	return o != nil && o.Result != nil && o.Result.State == scheduler.StateCompleted && o.Verdict.Passed()
}

// CounterName returns the repository name of the counter measuring id with
// the given clock. The first clock of a configuration uses the bare id.
func CounterName(id string, clockIndex int, clockName string) string {
	if clockIndex == 0 {
		return id
	}
	return id + "@" + clockName
}

// Execute runs the workload, evaluates the requirement and notifies the
// report modules. A failed requirement is reported as an error wrapping
// ErrRequirementFailed; the outcome is returned in every case where the run
// was attempted.
func (s Statement) Execute(ctx context.Context, workload scheduler.Workload) (*Outcome, error) {
	if s.ID == "" {
		return nil, errors.New("test id is required")
	}
	if workload == nil {
		return nil, fmt.Errorf("%s: %w", s.ID, scheduler.ErrNoWorkload)
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if a, ok := s.Overrides.(Activator); ok && !a.Active() {
		logger.Info("measurement inactive, running once", "test", s.ID)
		outcome := &Outcome{ID: s.ID, Config: s.Config, Skipped: true}
		if err := workload(ctx); err != nil {
			return outcome, fmt.Errorf("%s: %w", s.ID, err)
		}
		return outcome, nil
	}

	cfg := config.Apply(s.Config, s.ID, s.Overrides)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid execution config: %w", s.ID, err)
	}
	if s.Requirement != nil {
		if err := s.Requirement.Validate(); err != nil {
			return nil, fmt.Errorf("%s: invalid requirement: %w", s.ID, err)
		}
	}

	repo := s.Repository
	if repo == nil {
		repo = stats.NewRepository()
	}

	expectedMax := stats.DefaultExpectedMaxLatency
	if s.Requirement != nil && s.Requirement.Max != nil && *s.Requirement.Max > 0 {
		expectedMax = *s.Requirement.Max
	}

	var (
		counters []*stats.LatencyCounter
		opts     []scheduler.Option
	)
	for i, name := range cfg.Clocks() {
		clk, err := clock.ByName(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.ID, err)
		}
		counter := repo.Replace(CounterName(s.ID, i, name), name, expectedMax)
		counters = append(counters, counter)
		if i == 0 {
			opts = append(opts, scheduler.WithClock(clk))
		} else {
			opts = append(opts, scheduler.WithCounter(clk, counter))
		}
	}

	runID := uuid.NewString()
	logger = logger.With("test", s.ID, "run_id", runID)

	reports := s.Reports
	if reports == nil {
		reports = report.NewContext()
	}
	opts = append(opts,
		scheduler.WithID(s.ID),
		scheduler.WithObserver(reports),
		scheduler.WithLogger(logger),
	)
	if cfg.CancelOnViolation() {
		primary, req := counters[0], s.Requirement
		opts = append(opts, scheduler.WithStopCondition(func() bool {
			return requirement.Exceeded(primary, req)
		}))
	}

	outcome := &Outcome{RunID: runID, ID: s.ID, Config: cfg, Counters: counters}

	reports.Starting(s.ID)
	logger.Debug("executing", "config", cfg.String())

	result, err := scheduler.New(cfg, counters[0], opts...).Run(ctx, workload)
	outcome.Result = result
	if err != nil {
		reports.Error(s.ID, err)
		return outcome, err
	}

	outcome.Verdict = requirement.Evaluate(counters[0], s.Requirement)
	reports.Completed(s.ID, report.Completion{
		Counters:    counters,
		Config:      cfg,
		Requirement: s.Requirement,
		Verdict:     outcome.Verdict,
	})

	if !outcome.Verdict.Passed() {
		return outcome, fmt.Errorf("%s: %w: %w", s.ID, ErrRequirementFailed, outcome.Verdict.Error())
	}
	return outcome, nil
}

// Run executes the statement inside a Go test and fails the test when the
// run aborts or violates its requirement.
func Run(t testing.TB, s Statement, workload scheduler.Workload) *Outcome {
	t.Helper()

	if s.ID == "" {
		s.ID = t.Name()
	}
	outcome, err := s.Execute(context.Background(), workload)
	if err != nil {
		t.Errorf("performance test %s: %v", s.ID, err)
	}
	return outcome
}
