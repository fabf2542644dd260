// Package config provides execution settings, performance requirements and
// their file representation.
package config

import (
	"fmt"
	"time"

	"github.com/wesleyorama2/perfkit/internal/clock"
	"github.com/wesleyorama2/perfkit/internal/timer"
)

// Mode selects how a run terminates.
type Mode int

const (
	// ModeCount stops after a fixed number of invocations.
	ModeCount Mode = iota
	// ModeDuration stops once the configured duration has elapsed.
	ModeDuration
)

func (m Mode) String() string {
	switch m {
	case ModeCount:
		return "count"
	case ModeDuration:
		return "duration"
	default:
		return "unknown"
	}
}

// ExecutionConfig describes how a workload is invoked. It is immutable once
// built; use the With* methods to derive modified copies.
type ExecutionConfig struct {
	invocations       int
	duration          time.Duration
	durationBound     bool
	threads           int
	timerKind         timer.Kind
	timerParams       []float64
	rampup            time.Duration
	timeout           time.Duration
	skipUnrepeatable  bool
	cancelOnViolation bool
	clocks            []string
}

// Option configures an ExecutionConfig.
type Option func(*ExecutionConfig)

// NewExecutionConfig builds a configuration. Without options the workload
// runs once on a single worker without waiting.
func NewExecutionConfig(options ...Option) ExecutionConfig {
	cfg := ExecutionConfig{
		invocations: 1,
		threads:     1,
		timerKind:   timer.KindNone,
		clocks:      []string{clock.SystemName},
	}
	for _, option := range options {
		option(&cfg)
	}
	return cfg
}

// WithInvocations sets the number of invocations. 0 selects duration mode
// when a duration is configured.
func WithInvocations(n int) Option {
	return func(c *ExecutionConfig) {
		c.invocations = n
	}
}

// WithDuration sets the run duration.
func WithDuration(d time.Duration) Option {
	return func(c *ExecutionConfig) {
		c.duration = d
	}
}

// WithDurationBound forces duration mode even when invocations are set.
func WithDurationBound() Option {
	return func(c *ExecutionConfig) {
		c.durationBound = true
	}
}

// WithThreads sets the number of concurrent workers.
func WithThreads(n int) Option {
	return func(c *ExecutionConfig) {
		c.threads = n
	}
}

// WithTimer selects the wait timer applied before each invocation.
func WithTimer(kind timer.Kind, params ...float64) Option {
	return func(c *ExecutionConfig) {
		c.timerKind = kind
		c.timerParams = append([]float64(nil), params...)
	}
}

// WithRampup sets the delay between starting consecutive workers.
func WithRampup(d time.Duration) Option {
	return func(c *ExecutionConfig) {
		c.rampup = d
	}
}

// WithTimeout bounds the whole run. 0 means unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *ExecutionConfig) {
		c.timeout = d
	}
}

// WithSkipUnrepeatable marks the workload as run-once when it cannot be repeated.
func WithSkipUnrepeatable(skip bool) Option {
	return func(c *ExecutionConfig) {
		c.skipUnrepeatable = skip
	}
}

// WithCancelOnViolation stops the run early once a requirement bound is
// already broken.
func WithCancelOnViolation(cancel bool) Option {
	return func(c *ExecutionConfig) {
		c.cancelOnViolation = cancel
	}
}

// WithClocks sets the clocks latencies are measured with.
func WithClocks(names ...string) Option {
	return func(c *ExecutionConfig) {
		if len(names) > 0 {
			c.clocks = append([]string(nil), names...)
		}
	}
}

// Invocations returns the configured invocation count.
func (c ExecutionConfig) Invocations() int { return c.invocations }

// Duration returns the configured run duration.
func (c ExecutionConfig) Duration() time.Duration { return c.duration }

// Threads returns the worker count, at least 1.
func (c ExecutionConfig) Threads() int {
	if c.threads < 1 {
		return 1
	}
	return c.threads
}

// TimerKind returns the wait timer kind.
func (c ExecutionConfig) TimerKind() timer.Kind { return c.timerKind }

// TimerParams returns a copy of the wait timer parameters.
func (c ExecutionConfig) TimerParams() []float64 {
	return append([]float64(nil), c.timerParams...)
}

// Rampup returns the delay between worker starts.
func (c ExecutionConfig) Rampup() time.Duration { return c.rampup }

// Timeout returns the global run timeout.
func (c ExecutionConfig) Timeout() time.Duration { return c.timeout }

// SkipUnrepeatable reports whether unrepeatable workloads run only once.
func (c ExecutionConfig) SkipUnrepeatable() bool { return c.skipUnrepeatable }

// CancelOnViolation reports whether the run stops at the first broken bound.
func (c ExecutionConfig) CancelOnViolation() bool { return c.cancelOnViolation }

// Clocks returns a copy of the clock names.
func (c ExecutionConfig) Clocks() []string {
	return append([]string(nil), c.clocks...)
}

// Mode returns the termination mode. The invocation count is authoritative
// unless duration mode was requested explicitly or no count is configured.
func (c ExecutionConfig) Mode() Mode {
	if c.durationBound {
		return ModeDuration
	}
	if c.invocations <= 0 && c.duration > 0 {
		return ModeDuration
	}
	return ModeCount
}

// NewTimer creates the configured wait timer.
func (c ExecutionConfig) NewTimer() (timer.WaitTimer, error) {
	return timer.New(c.timerKind, c.timerParams...)
}

// WithInvocationCount returns a copy with a different invocation count.
func (c ExecutionConfig) WithInvocationCount(n int) ExecutionConfig {
	out := c
	out.invocations = n
	out.timerParams = c.TimerParams()
	out.clocks = c.Clocks()
	return out
}

// Validate checks the configuration for values the scheduler cannot run.
func (c ExecutionConfig) Validate() error {
	errs := &ValidationErrors{}

	if c.invocations < 0 {
		errs.Add("invocations", "cannot be negative")
	}
	if c.duration < 0 {
		errs.Add("duration", "cannot be negative")
	}
	if c.Mode() == ModeDuration && c.duration <= 0 {
		errs.Add("duration", "must be > 0 in duration mode")
	}
	if c.Mode() == ModeCount && c.invocations == 0 {
		errs.Add("invocations", "must be > 0 without a duration")
	}
	if c.threads < 0 {
		errs.Add("threads", "cannot be negative")
	}
	if c.rampup < 0 {
		errs.Add("rampup", "cannot be negative")
	}
	if c.timeout < 0 {
		errs.Add("timeout", "cannot be negative")
	}
	if _, err := c.NewTimer(); err != nil {
		errs.Add("timer", err.Error())
	}
	for i, name := range c.clocks {
		if _, err := clock.ByName(name); err != nil {
			errs.Add(fmt.Sprintf("clocks[%d]", i), err.Error())
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func (c ExecutionConfig) String() string {
	if c.Mode() == ModeDuration {
		return fmt.Sprintf("duration=%s threads=%d timer=%s", c.duration, c.Threads(), c.timerKind)
	}
	return fmt.Sprintf("invocations=%d threads=%d timer=%s", c.invocations, c.Threads(), c.timerKind)
}
