package report

import (
	"log/slog"
	"math"
	"strconv"
)

// SlogModule writes every event to a structured logger. Invocations are
// logged at debug level.
type SlogModule struct {
	logger *slog.Logger
}

// NewSlogModule creates a module logging to l, slog.Default() when nil.
func NewSlogModule(l *slog.Logger) *SlogModule {
	if l == nil {
		l = slog.Default()
	}
	return &SlogModule{logger: l}
}

// Starting implements Module.
func (s *SlogModule) Starting(id string) {
	s.logger.Info("run starting", "test", id)
}

// Invoked implements Module.
func (s *SlogModule) Invoked(id string, latency int, startMillis int64) {
	s.logger.Debug("invocation", "test", id, "latency_ms", latency, "start_ms", startMillis)
}

// Completed implements Module.
func (s *SlogModule) Completed(id string, c Completion) {
	attrs := []any{
		"test", id,
		"passed", c.Verdict.Passed(),
	}
	if counter := c.Primary(); counter != nil {
		summary := counter.Snapshot()
		attrs = append(attrs,
			"samples", summary.Samples,
			"failures", summary.Failures,
			"max_ms", summary.Max,
			"avg_ms", summary.Average,
			"median_ms", summary.Median,
			"p90_ms", summary.P90,
		)
		if summary.ThroughputSet {
			attrs = append(attrs, throughputAttr(summary.Throughput))
		}
	}
	if !c.Verdict.Passed() {
		attrs = append(attrs, "violations", c.Verdict.Strings())
		s.logger.Warn("run completed", attrs...)
		return
	}
	s.logger.Info("run completed", attrs...)
}

// Error implements Module.
func (s *SlogModule) Error(id string, err error) {
	s.logger.Error("run aborted", "test", id, "error", err)
}

var _ Module = (*SlogModule)(nil)

// throughputAttr logs infinite throughput, from runs shorter than a
// millisecond, as a string since JSON has no infinity.
func throughputAttr(v float64) slog.Attr {
	if math.IsInf(v, 0) {
		return slog.String("throughput", strconv.FormatFloat(v, 'f', -1, 64))
	}
	return slog.Float64("throughput", v)
}
