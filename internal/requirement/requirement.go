// Package requirement checks the statistics of a finished run against a
// PerformanceRequirement.
package requirement

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/wesleyorama2/perfkit/internal/config"
)

// Statistics is the read side of a finished latency counter.
type Statistics interface {
	MaxLatency() int
	AverageLatency() float64
	PercentileLatency(percentile int) int
	Throughput() (float64, error)
	Duration() int64
	ErrorsRate() float64
}

// Op is the comparison a bound requires.
type Op string

const (
	// AtMost requires observed <= required.
	AtMost Op = "<="
	// AtLeast requires observed >= required.
	AtLeast Op = ">="
)

// Violation describes one bound that was not met.
type Violation struct {
	Dimension string
	Observed  string
	Required  string
	Op        Op
	// Message replaces the observed/required rendering when the observed
	// value could not be computed.
	Message string
}

func (v Violation) String() string {
	if v.Message != "" {
		return fmt.Sprintf("%s: %s", v.Dimension, v.Message)
	}
	return fmt.Sprintf("%s: observed=%s, required%s%s", v.Dimension, v.Observed, v.Op, v.Required)
}

// Verdict is the outcome of an evaluation.
type Verdict struct {
	Violations []Violation
}

// Passed reports whether every configured bound holds.
func (v Verdict) Passed() bool {
	return len(v.Violations) == 0
}

// Error joins all violations into one error, nil when the verdict passed.
func (v Verdict) Error() error {
	if v.Passed() {
		return nil
	}
	errs := make([]error, 0, len(v.Violations))
	for _, violation := range v.Violations {
		errs = append(errs, errors.New(violation.String()))
	}
	return errors.Join(errs...)
}

// Strings returns the rendered violations.
func (v Verdict) Strings() []string {
	out := make([]string, 0, len(v.Violations))
	for _, violation := range v.Violations {
		out = append(out, violation.String())
	}
	return out
}

// Evaluate compares s against every bound configured in req. All bounds
// are checked; a nil or empty requirement passes.
func Evaluate(s Statistics, req *config.PerformanceRequirement) Verdict {
	var verdict Verdict
	if req.IsEmpty() {
		return verdict
	}

	check := func(dimension string, observed, required float64, op Op, format func(float64) string) {
		if !compare(observed, op, required) {
			verdict.Violations = append(verdict.Violations, Violation{
				Dimension: dimension,
				Observed:  format(observed),
				Required:  format(required),
				Op:        op,
			})
		}
	}

	if req.Max != nil {
		check("max", float64(s.MaxLatency()), float64(*req.Max), AtMost, formatInt)
	}
	if req.Average != nil {
		check("average", s.AverageLatency(), *req.Average, AtMost, formatFloat)
	}
	if req.Median != nil {
		check("median", float64(s.PercentileLatency(50)), float64(*req.Median), AtMost, formatInt)
	}
	for _, p := range req.Percentiles {
		check(fmt.Sprintf("percentile%d", p.Percentile), float64(s.PercentileLatency(p.Percentile)), float64(p.Bound), AtMost, formatInt)
	}
	if req.Percentile90 != nil {
		check("percentile90", float64(s.PercentileLatency(90)), float64(*req.Percentile90), AtMost, formatInt)
	}
	if req.Percentile95 != nil {
		check("percentile95", float64(s.PercentileLatency(95)), float64(*req.Percentile95), AtMost, formatInt)
	}
	if req.Percentile99 != nil {
		check("percentile99", float64(s.PercentileLatency(99)), float64(*req.Percentile99), AtMost, formatInt)
	}
	if req.Throughput != nil {
		observed, err := s.Throughput()
		if err != nil {
			verdict.Violations = append(verdict.Violations, Violation{
				Dimension: "throughput",
				Required:  formatFloat(*req.Throughput),
				Op:        AtLeast,
				Message:   fmt.Sprintf("unavailable: %v", err),
			})
		} else {
			check("throughput", observed, *req.Throughput, AtLeast, formatFloat)
		}
	}
	if req.TotalTime != nil {
		check("totalTime", float64(s.Duration()), float64(*req.TotalTime), AtMost, formatInt)
	}
	if req.ErrorsRate != nil {
		check("errorsRate", s.ErrorsRate(), *req.ErrorsRate, AtMost, formatFloat)
	}

	return verdict
}

func compare(observed float64, op Op, required float64) bool {
	switch op {
	case AtMost:
		return observed <= required
	case AtLeast:
		return observed >= required
	default:
		return false
	}
}

func formatInt(v float64) string {
	return strconv.FormatInt(int64(v), 10)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Exceeded reports whether a bound that more samples cannot repair is
// already broken. Only the max latency qualifies; it is checked while a run
// is in progress.
func Exceeded(s Statistics, req *config.PerformanceRequirement) bool {
	if req == nil || req.Max == nil {
		return false
	}
	return s.MaxLatency() > *req.Max
}
