// Package stats records invocation latencies and derives distribution
// statistics from them.
package stats

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/wesleyorama2/perfkit/internal/clock"
)

// DefaultExpectedMaxLatency sizes the initial bucket array.
const DefaultExpectedMaxLatency = 1000

var (
	// ErrAlreadyRunning is returned by Start on a running counter.
	ErrAlreadyRunning = errors.New("counter has already been started")

	// ErrNotRunning is returned by Stop on a counter that is not running.
	ErrNotRunning = errors.New("counter is not running")

	// ErrNoTimeFrame is returned by Throughput when Start and Stop were not both called.
	ErrNoTimeFrame = errors.New("invalid setup: use Start() and Stop() to mark the measured time frame")
)

// ExecutionError wraps the failure of a single invocation. The counter never
// inspects the wrapped error.
type ExecutionError struct {
	Err        error
	Invocation int64
	Time       time.Time
}

// NewExecutionError creates a failure record stamped with the current time.
func NewExecutionError(err error, invocation int64) *ExecutionError {
	return &ExecutionError{Err: err, Invocation: invocation, Time: time.Now()}
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("invocation %d failed: %v", e.Invocation, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// LatencyCounter is a histogram of integer latencies with one bucket per
// latency value.
//
// Invariants:
//   - SampleCount() + len(Failures()) == TotalInvocations()
//   - min and max hold -1 until the first successful sample
//   - the bucket array covers max+1 values; it grows and never shrinks
//
// # Thread Safety
//
// All methods are safe for concurrent use. AddSample updates the bucket,
// the aggregates and min/max as one unit under a mutex.
type LatencyCounter struct {
	name      string
	clockName string

	mu           sync.Mutex
	counts       []int64
	minLatency   int
	maxLatency   int
	sampleCount  int64
	totalLatency int64
	failures     []*ExecutionError

	running   bool
	startTime int64
	endTime   int64

	now func() int64
}

// NewLatencyCounter creates a counter measured with the system clock.
func NewLatencyCounter(name string) *LatencyCounter {
	return NewLatencyCounterWithClock(name, clock.SystemName, DefaultExpectedMaxLatency)
}

// NewLatencyCounterWithClock creates a counter labeled with clockName whose
// bucket array initially covers latencies up to expectedMaxLatency.
func NewLatencyCounterWithClock(name, clockName string, expectedMaxLatency int) *LatencyCounter {
	if expectedMaxLatency < 0 {
		expectedMaxLatency = 0
	}
	return &LatencyCounter{
		name:       name,
		clockName:  clockName,
		counts:     make([]int64, expectedMaxLatency+1),
		minLatency: -1,
		maxLatency: -1,
		startTime:  -1,
		endTime:    -1,
		now:        func() int64 { return time.Now().UnixMilli() },
	}
}

// Name returns the counter name.
func (c *LatencyCounter) Name() string { return c.name }

// ClockName returns the name of the clock the latencies were measured with.
func (c *LatencyCounter) ClockName() string { return c.clockName }

// Start marks the beginning of the measured time frame.
func (c *LatencyCounter) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("%s: %w", c.name, ErrAlreadyRunning)
	}
	c.startTime = c.now()
	c.running = true
	return nil
}

// Stop marks the end of the measured time frame.
func (c *LatencyCounter) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return fmt.Errorf("stopping %s: %w", c.name, ErrNotRunning)
	}
	c.running = false
	c.endTime = c.now()
	return nil
}

// IsRunning reports whether Start was called without a matching Stop.
func (c *LatencyCounter) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// StartTime returns the start timestamp in epoch milliseconds, -1 if never started.
func (c *LatencyCounter) StartTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startTime
}

// AddSample records one invocation. A non-nil failure is appended to the
// failure list and the latency is ignored; otherwise latency is added to
// the histogram. Negative latencies are recorded as 0.
func (c *LatencyCounter) AddSample(latency int, failure *ExecutionError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if failure != nil {
		c.failures = append(c.failures, failure)
		return
	}

	if latency < 0 {
		latency = 0
	}
	if latency >= len(c.counts) {
		c.resize(latency)
	}
	c.counts[latency]++
	c.sampleCount++
	c.totalLatency += int64(latency)
	if c.minLatency == -1 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}
}

// resize grows the bucket array to the smallest multiple of its current
// length that covers requested. Caller holds mu.
func (c *LatencyCounter) resize(requested int) {
	oldLen := len(c.counts)
	if oldLen == 0 {
		oldLen = 1
	}
	factor := (requested + oldLen) / oldLen
	grown := make([]int64, factor*oldLen)
	copy(grown, c.counts)
	c.counts = grown
}

// LatencyCount returns the number of samples with exactly the given latency.
func (c *LatencyCounter) LatencyCount(latency int) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latencyCount(latency)
}

func (c *LatencyCounter) latencyCount(latency int) int64 {
	if latency < 0 || latency >= len(c.counts) {
		return 0
	}
	return c.counts[latency]
}

// Failures returns a copy of the recorded failures in insertion order.
func (c *LatencyCounter) Failures() []*ExecutionError {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*ExecutionError, len(c.failures))
	copy(out, c.failures)
	return out
}

// FailureCount returns the number of failed invocations.
func (c *LatencyCounter) FailureCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.failures))
}

// TotalLatency returns the sum of all sample latencies.
func (c *LatencyCounter) TotalLatency() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalLatency
}

// AverageLatency returns the mean sample latency, 0 without samples.
func (c *LatencyCounter) AverageLatency() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.averageLatency()
}

func (c *LatencyCounter) averageLatency() float64 {
	if c.sampleCount == 0 {
		return 0
	}
	return float64(c.totalLatency) / float64(c.sampleCount)
}

// MinLatency returns the smallest sample latency, 0 without samples.
func (c *LatencyCounter) MinLatency() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return max(c.minLatency, 0)
}

// MaxLatency returns the largest sample latency, 0 without samples.
func (c *LatencyCounter) MaxLatency() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return max(c.maxLatency, 0)
}

// SampleCount returns the number of successful invocations.
func (c *LatencyCounter) SampleCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sampleCount
}

// TotalInvocations returns successful plus failed invocations.
func (c *LatencyCounter) TotalInvocations() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sampleCount + int64(len(c.failures))
}

// PercentileLatency returns the smallest latency v for which the number of
// samples with latency <= v reaches percentile% of all samples. When the
// scan never reaches the target the maximum latency is returned.
func (c *LatencyCounter) PercentileLatency(percentile int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.percentileLatency(percentile)
}

func (c *LatencyCounter) percentileLatency(percentile int) int {
	target := int64(percentile) * c.sampleCount / 100
	var count int64
	for value := max(c.minLatency, 0); value <= c.maxLatency; value++ {
		count += c.latencyCount(value)
		if count >= target {
			return value
		}
	}
	return max(c.maxLatency, 0)
}

// PercentileAboveLatency returns the percentage of samples whose latency is
// strictly greater than latency. The result is NaN when there are no
// samples; check SampleCount first.
func (c *LatencyCounter) PercentileAboveLatency(latency int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sampleCount == 0 {
		return math.NaN()
	}
	if latency >= c.maxLatency {
		return 0
	}
	var count int64
	for value := max(latency+1, c.minLatency); value <= c.maxLatency; value++ {
		count += c.latencyCount(value)
	}
	return float64(count) * 100 / float64(c.sampleCount)
}

// Duration returns the measured time frame in milliseconds.
func (c *LatencyCounter) Duration() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endTime - c.startTime
}

// Throughput returns successful invocations per second over the measured
// time frame.
func (c *LatencyCounter) Throughput() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.throughput()
}

func (c *LatencyCounter) throughput() (float64, error) {
	if c.startTime == -1 || c.endTime == -1 {
		return 0, ErrNoTimeFrame
	}
	return 1000 * float64(c.sampleCount) / float64(c.endTime-c.startTime), nil
}

// ErrorsRate returns the fraction of invocations that failed.
func (c *LatencyCounter) ErrorsRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorsRate()
}

func (c *LatencyCounter) errorsRate() float64 {
	total := c.sampleCount + int64(len(c.failures))
	if total == 0 {
		return 0
	}
	return float64(len(c.failures)) / float64(total)
}

// Summary is a point-in-time view of a counter.
type Summary struct {
	Name             string  `json:"name"`
	Clock            string  `json:"clock"`
	Samples          int64   `json:"samples"`
	Failures         int64   `json:"failures"`
	Min              int     `json:"min"`
	Max              int     `json:"max"`
	Average          float64 `json:"average"`
	StdDev           float64 `json:"stdDev"`
	Median           int     `json:"median"`
	P90              int     `json:"p90"`
	P95              int     `json:"p95"`
	P99              int     `json:"p99"`
	ErrorsRate       float64 `json:"errorsRate"`
	DurationMillis   int64   `json:"durationMillis,omitempty"`
	Throughput       float64 `json:"throughput,omitempty"`
	ThroughputSet    bool    `json:"-"`
	TotalInvocations int64   `json:"totalInvocations"`
}

// Snapshot returns a consistent summary of the counter.
func (c *LatencyCounter) Snapshot() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		Name:             c.name,
		Clock:            c.clockName,
		Samples:          c.sampleCount,
		Failures:         int64(len(c.failures)),
		Min:              max(c.minLatency, 0),
		Max:              max(c.maxLatency, 0),
		Average:          c.averageLatency(),
		StdDev:           c.stdDev(),
		Median:           c.percentileLatency(50),
		P90:              c.percentileLatency(90),
		P95:              c.percentileLatency(95),
		P99:              c.percentileLatency(99),
		ErrorsRate:       c.errorsRate(),
		TotalInvocations: c.sampleCount + int64(len(c.failures)),
	}
	if tp, err := c.throughput(); err == nil {
		s.Throughput = tp
		s.ThroughputSet = true
		s.DurationMillis = c.endTime - c.startTime
	}
	return s
}

// stdDev computes the population standard deviation from the buckets.
func (c *LatencyCounter) stdDev() float64 {
	if c.sampleCount == 0 {
		return 0
	}
	mean := c.averageLatency()
	var sum float64
	for value := max(c.minLatency, 0); value <= c.maxLatency; value++ {
		n := c.counts[value]
		if n == 0 {
			continue
		}
		d := float64(value) - mean
		sum += d * d * float64(n)
	}
	return math.Sqrt(sum / float64(c.sampleCount))
}

// PrintSummary writes a short text summary including the requested percentiles.
func (c *LatencyCounter) PrintSummary(w io.Writer, percentiles ...int) {
	s := c.Snapshot()
	fmt.Fprintf(w, "samples: %d\n", s.Samples)
	fmt.Fprintf(w, "max:     %d\n", s.Max)
	fmt.Fprintf(w, "average: %g\n", s.Average)
	fmt.Fprintf(w, "median:  %d\n", s.Median)
	for _, p := range percentiles {
		fmt.Fprintf(w, "%d%%:     %d\n", p, c.PercentileLatency(p))
	}
	if s.Failures > 0 {
		fmt.Fprintf(w, "errors:  %d (%g%%)\n", s.Failures, s.ErrorsRate*100)
	}
}

func (c *LatencyCounter) String() string {
	return "LatencyCounter(" + c.name + ")"
}
