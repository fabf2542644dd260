package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PercentileBound requires that Percentile% of the samples are at most Bound.
type PercentileBound struct {
	Percentile int `json:"percentile" yaml:"percentile"`
	Bound      int `json:"bound" yaml:"bound"`
}

// PerformanceRequirement is a set of optional bounds a run must satisfy.
// A nil bound is not checked.
type PerformanceRequirement struct {
	Max          *int
	Average      *float64
	Median       *int
	Percentiles  []PercentileBound
	Percentile90 *int
	Percentile95 *int
	Percentile99 *int
	// Throughput is the minimum number of invocations per second.
	Throughput *float64
	// TotalTime is the maximum elapsed time of the run in milliseconds.
	TotalTime *int64
	// ErrorsRate is the maximum fraction of failed invocations.
	ErrorsRate *float64
}

// RequirementOption sets one bound of a requirement.
type RequirementOption func(*PerformanceRequirement)

// NewRequirement builds a requirement from the given bounds.
func NewRequirement(options ...RequirementOption) *PerformanceRequirement {
	req := &PerformanceRequirement{}
	for _, option := range options {
		option(req)
	}
	return req
}

// RequireMax bounds the maximum latency.
func RequireMax(v int) RequirementOption {
	return func(r *PerformanceRequirement) { r.Max = &v }
}

// RequireAverage bounds the average latency.
func RequireAverage(v float64) RequirementOption {
	return func(r *PerformanceRequirement) { r.Average = &v }
}

// RequireMedian bounds the median latency.
func RequireMedian(v int) RequirementOption {
	return func(r *PerformanceRequirement) { r.Median = &v }
}

// RequirePercentile bounds an arbitrary percentile.
func RequirePercentile(percentile, bound int) RequirementOption {
	return func(r *PerformanceRequirement) {
		r.Percentiles = append(r.Percentiles, PercentileBound{Percentile: percentile, Bound: bound})
	}
}

// RequirePercentile90 bounds the 90th percentile.
func RequirePercentile90(v int) RequirementOption {
	return func(r *PerformanceRequirement) { r.Percentile90 = &v }
}

// RequirePercentile95 bounds the 95th percentile.
func RequirePercentile95(v int) RequirementOption {
	return func(r *PerformanceRequirement) { r.Percentile95 = &v }
}

// RequirePercentile99 bounds the 99th percentile.
func RequirePercentile99(v int) RequirementOption {
	return func(r *PerformanceRequirement) { r.Percentile99 = &v }
}

// RequireThroughput sets the minimum throughput.
func RequireThroughput(v float64) RequirementOption {
	return func(r *PerformanceRequirement) { r.Throughput = &v }
}

// RequireTotalTime bounds the elapsed time of the run in milliseconds.
func RequireTotalTime(v int64) RequirementOption {
	return func(r *PerformanceRequirement) { r.TotalTime = &v }
}

// RequireErrorsRate bounds the fraction of failed invocations.
func RequireErrorsRate(v float64) RequirementOption {
	return func(r *PerformanceRequirement) { r.ErrorsRate = &v }
}

// IsEmpty reports whether no bound is configured.
func (r *PerformanceRequirement) IsEmpty() bool {
	if r == nil {
		return true
	}
	return r.Max == nil && r.Average == nil && r.Median == nil &&
		len(r.Percentiles) == 0 && r.Percentile90 == nil && r.Percentile95 == nil &&
		r.Percentile99 == nil && r.Throughput == nil && r.TotalTime == nil && r.ErrorsRate == nil
}

// Validate checks that percentiles are in range and bounds are not negative.
func (r *PerformanceRequirement) Validate() error {
	if r == nil {
		return nil
	}
	errs := &ValidationErrors{}

	checkInt := func(field string, v *int) {
		if v != nil && *v < 0 {
			errs.Add(field, "cannot be negative")
		}
	}
	checkInt("max", r.Max)
	checkInt("median", r.Median)
	checkInt("percentile90", r.Percentile90)
	checkInt("percentile95", r.Percentile95)
	checkInt("percentile99", r.Percentile99)

	if r.Average != nil && *r.Average < 0 {
		errs.Add("average", "cannot be negative")
	}
	if r.Throughput != nil && *r.Throughput < 0 {
		errs.Add("throughput", "cannot be negative")
	}
	if r.TotalTime != nil && *r.TotalTime < 0 {
		errs.Add("totalTime", "cannot be negative")
	}
	if r.ErrorsRate != nil && (*r.ErrorsRate < 0 || *r.ErrorsRate > 1) {
		errs.Add("errorsRate", "must be between 0 and 1")
	}
	for i, p := range r.Percentiles {
		if p.Percentile < 0 || p.Percentile > 100 {
			errs.Add(fmt.Sprintf("percentiles[%d]", i), fmt.Sprintf("percentile %d out of range 0..100", p.Percentile))
		}
		if p.Bound < 0 {
			errs.Add(fmt.Sprintf("percentiles[%d]", i), "bound cannot be negative")
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ParsePercentiles parses a list like "55:302,77:303" into percentile
// bounds. Whitespace around entries is ignored.
func ParsePercentiles(s string) ([]PercentileBound, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var bounds []PercentileBound
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid percentile bound %q: expected <percentile>:<bound>", entry)
		}
		p, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid percentile in %q: %w", entry, err)
		}
		b, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid bound in %q: %w", entry, err)
		}
		bounds = append(bounds, PercentileBound{Percentile: p, Bound: b})
	}
	return bounds, nil
}

// FormatPercentiles renders bounds in the form accepted by ParsePercentiles,
// ordered by percentile.
func FormatPercentiles(bounds []PercentileBound) string {
	sorted := append([]PercentileBound(nil), bounds...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Percentile < sorted[j].Percentile })

	parts := make([]string, len(sorted))
	for i, b := range sorted {
		parts[i] = fmt.Sprintf("%d:%d", b.Percentile, b.Bound)
	}
	return strings.Join(parts, ",")
}
