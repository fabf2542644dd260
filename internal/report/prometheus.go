package report

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusModule exports run events as Prometheus metrics.
type PrometheusModule struct {
	invocations *prometheus.CounterVec
	failures    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	passed      *prometheus.GaugeVec
	throughput  *prometheus.GaugeVec
}

// NewPrometheusModule creates the metrics and registers them with reg.
func NewPrometheusModule(reg prometheus.Registerer) (*PrometheusModule, error) {
	m := &PrometheusModule{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perfkit",
			Name:      "invocations_total",
			Help:      "Number of successful workload invocations.",
		}, []string{"test"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perfkit",
			Name:      "failures_total",
			Help:      "Number of failed workload invocations.",
		}, []string{"test"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "perfkit",
			Name:      "invocation_latency_milliseconds",
			Help:      "Latency of successful workload invocations.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		}, []string{"test"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perfkit",
			Name:      "runs_total",
			Help:      "Number of finished runs by outcome.",
		}, []string{"test", "outcome"}),
		passed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "perfkit",
			Name:      "requirement_passed",
			Help:      "1 when the last run of the test met its requirement, 0 otherwise.",
		}, []string{"test"}),
		throughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "perfkit",
			Name:      "throughput_per_second",
			Help:      "Throughput of the last run of the test.",
		}, []string{"test"}),
	}

	for _, c := range []prometheus.Collector{m.invocations, m.failures, m.latency, m.runs, m.passed, m.throughput} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Starting implements Module.
func (m *PrometheusModule) Starting(id string) {}

// Invoked implements Module.
func (m *PrometheusModule) Invoked(id string, latency int, startMillis int64) {
	m.invocations.WithLabelValues(id).Inc()
	m.latency.WithLabelValues(id).Observe(float64(latency))
}

// Completed implements Module.
func (m *PrometheusModule) Completed(id string, c Completion) {
	outcome := "passed"
	passed := 1.0
	if !c.Verdict.Passed() {
		outcome = "failed"
		passed = 0
	}
	m.runs.WithLabelValues(id, outcome).Inc()
	m.passed.WithLabelValues(id).Set(passed)

	if counter := c.Primary(); counter != nil {
		m.failures.WithLabelValues(id).Add(float64(counter.FailureCount()))
		if tp, err := counter.Throughput(); err == nil {
			m.throughput.WithLabelValues(id).Set(tp)
		}
	}
}

// Error implements Module.
func (m *PrometheusModule) Error(id string, err error) {
	m.runs.WithLabelValues(id, "aborted").Inc()
}

var _ Module = (*PrometheusModule)(nil)
