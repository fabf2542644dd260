package perftest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/perfkit/internal/config"
	"github.com/wesleyorama2/perfkit/internal/report"
	"github.com/wesleyorama2/perfkit/internal/scheduler"
	"github.com/wesleyorama2/perfkit/internal/stats"
)

type recorder struct {
	mu          sync.Mutex
	started     []string
	invoked     int
	completions []report.Completion
	errs        []error
}

func (r *recorder) Starting(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, id)
}

func (r *recorder) Invoked(id string, latency int, startMillis int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoked++
}

func (r *recorder) Completed(id string, c report.Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completions = append(r.completions, c)
}

func (r *recorder) Error(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func noop(context.Context) error { return nil }

func TestExecute_Passes(t *testing.T) {
	repo := stats.NewRepository()
	rec := &recorder{}

	outcome, err := Statement{
		ID:          "checkout",
		Config:      config.NewExecutionConfig(config.WithInvocations(50), config.WithThreads(2)),
		Requirement: config.NewRequirement(config.RequireMax(1000), config.RequireErrorsRate(0)),
		Repository:  repo,
		Reports:     rec,
	}.Execute(context.Background(), noop)

	require.NoError(t, err)
	assert.True(t, outcome.Passed())
	assert.NotEmpty(t, outcome.RunID)
	assert.Equal(t, int64(50), outcome.Primary().SampleCount())

	counter, ok := repo.Counter("checkout")
	require.True(t, ok)
	assert.Same(t, outcome.Primary(), counter)

	assert.Equal(t, []string{"checkout"}, rec.started)
	assert.Equal(t, 50, rec.invoked)
	require.Len(t, rec.completions, 1)
	assert.True(t, rec.completions[0].Verdict.Passed())
	assert.Empty(t, rec.errs)
}

func TestExecute_RequirementFailed(t *testing.T) {
	var n atomic.Int64
	outcome, err := Statement{
		ID:          "flaky",
		Config:      config.NewExecutionConfig(config.WithInvocations(10)),
		Requirement: config.NewRequirement(config.RequireErrorsRate(0.1)),
	}.Execute(context.Background(), func(context.Context) error {
		if n.Add(1)%2 == 0 {
			return errors.New("boom")
		}
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequirementFailed)
	assert.Contains(t, err.Error(), "errorsRate")
	assert.False(t, outcome.Passed())
	assert.Equal(t, scheduler.StateCompleted, outcome.Result.State)
	assert.Equal(t, int64(5), outcome.Result.Failures)
}

func TestExecute_Abort(t *testing.T) {
	rec := &recorder{}
	outcome, err := Statement{
		ID: "slow",
		Config: config.NewExecutionConfig(
			config.WithInvocations(1000),
			config.WithTimeout(30*time.Millisecond),
		),
		Reports: rec,
	}.Execute(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
		case <-time.After(10 * time.Millisecond):
		}
		return nil
	})

	require.ErrorIs(t, err, scheduler.ErrTimeout)
	assert.Equal(t, scheduler.StateAborted, outcome.Result.State)
	assert.Len(t, rec.errs, 1)
	assert.Empty(t, rec.completions)
}

func TestExecute_SecondaryClocks(t *testing.T) {
	repo := stats.NewRepository()
	outcome, err := Statement{
		ID:         "multi",
		Config:     config.NewExecutionConfig(config.WithInvocations(3), config.WithClocks("system", "user")),
		Repository: repo,
	}.Execute(context.Background(), noop)

	require.NoError(t, err)
	require.Len(t, outcome.Counters, 2)
	assert.Equal(t, []string{"multi", "multi@user"}, repo.Names())
	assert.Equal(t, "user", outcome.Counters[1].ClockName())
	assert.Equal(t, int64(3), outcome.Counters[1].SampleCount())
}

func TestExecute_FreshCountersPerRun(t *testing.T) {
	repo := stats.NewRepository()
	s := Statement{
		ID:         "again",
		Config:     config.NewExecutionConfig(config.WithInvocations(4)),
		Repository: repo,
	}

	for i := 0; i < 2; i++ {
		outcome, err := s.Execute(context.Background(), noop)
		require.NoError(t, err)
		assert.Equal(t, int64(4), outcome.Primary().SampleCount())
	}
}

func TestExecute_Overrides(t *testing.T) {
	src, err := config.NewJSONSource([]byte(`{"tests": {"over": {"invocations": 7}}}`))
	require.NoError(t, err)

	outcome, err := Statement{
		ID:        "over",
		Config:    config.NewExecutionConfig(config.WithInvocations(100)),
		Overrides: src,
	}.Execute(context.Background(), noop)

	require.NoError(t, err)
	assert.Equal(t, 7, outcome.Config.Invocations())
	assert.Equal(t, int64(7), outcome.Result.Invocations)
}

func TestExecute_Inactive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perfkit.properties")
	require.NoError(t, os.WriteFile(path, []byte("perfkit.active=false\n"), 0o644))
	src, err := config.NewPropertiesSource(path)
	require.NoError(t, err)

	var calls atomic.Int64
	rec := &recorder{}
	outcome, err := Statement{
		ID:        "off",
		Config:    config.NewExecutionConfig(config.WithInvocations(100)),
		Overrides: src,
		Reports:   rec,
	}.Execute(context.Background(), func(context.Context) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
	assert.Equal(t, int64(1), calls.Load())
	assert.Empty(t, rec.started)
}

func TestExecute_InvalidInput(t *testing.T) {
	_, err := Statement{Config: config.NewExecutionConfig()}.Execute(context.Background(), noop)
	assert.Error(t, err)

	_, err = Statement{ID: "x", Config: config.NewExecutionConfig()}.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, scheduler.ErrNoWorkload)

	_, err = Statement{ID: "x", Config: config.NewExecutionConfig(config.WithThreads(-1))}.Execute(context.Background(), noop)
	assert.Error(t, err)

	_, err = Statement{
		ID:          "x",
		Config:      config.NewExecutionConfig(),
		Requirement: config.NewRequirement(config.RequirePercentile(120, 5)),
	}.Execute(context.Background(), noop)
	assert.Error(t, err)
}

func TestExecute_CancelOnViolation(t *testing.T) {
	var calls atomic.Int64
	outcome, err := Statement{
		ID: "cancel",
		Config: config.NewExecutionConfig(
			config.WithInvocations(1000),
			config.WithCancelOnViolation(true),
		),
		Requirement: config.NewRequirement(config.RequireMax(0)),
	}.Execute(context.Background(), func(context.Context) error {
		calls.Add(1)
		time.Sleep(2 * time.Millisecond)
		return nil
	})

	require.ErrorIs(t, err, ErrRequirementFailed)
	assert.True(t, outcome.Result.Stopped)
	assert.Equal(t, scheduler.StateCompleted, outcome.Result.State)
	assert.Equal(t, int64(1), calls.Load())
}

func TestCounterName(t *testing.T) {
	assert.Equal(t, "a", CounterName("a", 0, "system"))
	assert.Equal(t, "a@cpu", CounterName("a", 1, "cpu"))
}

func TestRun(t *testing.T) {
	outcome := Run(t, Statement{
		Config:      config.NewExecutionConfig(config.WithInvocations(5)),
		Requirement: config.NewRequirement(config.RequireMax(1000)),
	}, noop)

	require.NotNil(t, outcome)
	assert.Equal(t, t.Name(), outcome.ID)
	assert.True(t, outcome.Passed())
}
