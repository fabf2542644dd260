package report

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// HistogramConfig holds the range and precision of HDR histograms.
type HistogramConfig struct {
	// Lowest and highest trackable latency in milliseconds
	Min int64
	Max int64
	// Number of significant value digits (1-5)
	SigFigs int
}

// DefaultHistogramConfig tracks 1ms to 1h with 3 significant digits.
func DefaultHistogramConfig() HistogramConfig {
	return HistogramConfig{
		Min:     1,
		Max:     3_600_000,
		SigFigs: 3,
	}
}

// HistogramSummary is a view of one HDR histogram in milliseconds.
type HistogramSummary struct {
	Count  int64
	Min    int64
	Max    int64
	Mean   float64
	StdDev float64
	P50    int64
	P90    int64
	P95    int64
	P99    int64
	P999   int64
}

// HistogramModule keeps an HDR histogram of the successful latencies of
// every id. Unlike LatencyCounter its memory use does not grow with the
// largest latency.
type HistogramModule struct {
	config HistogramConfig

	// hdrhistogram.Histogram is not safe for concurrent use
	mu    sync.Mutex
	hists map[string]*hdrhistogram.Histogram
}

// NewHistogramModule creates a histogram module.
func NewHistogramModule(config HistogramConfig) *HistogramModule {
	if config.Min < 1 {
		config.Min = 1
	}
	if config.Max <= config.Min {
		config.Max = DefaultHistogramConfig().Max
	}
	if config.SigFigs < 1 || config.SigFigs > 5 {
		config.SigFigs = 3
	}
	return &HistogramModule{
		config: config,
		hists:  make(map[string]*hdrhistogram.Histogram),
	}
}

// Starting implements Module. A repeated id starts from an empty histogram.
func (h *HistogramModule) Starting(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hists[id] = hdrhistogram.New(h.config.Min, h.config.Max, h.config.SigFigs)
}

// Invoked implements Module. Values beyond the tracked range are clamped.
func (h *HistogramModule) Invoked(id string, latency int, startMillis int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hist, ok := h.hists[id]
	if !ok {
		hist = hdrhistogram.New(h.config.Min, h.config.Max, h.config.SigFigs)
		h.hists[id] = hist
	}

	value := int64(latency)
	if value < h.config.Min {
		value = h.config.Min
	}
	if value > h.config.Max {
		value = h.config.Max
	}
	_ = hist.RecordValue(value)
}

// Completed implements Module.
func (h *HistogramModule) Completed(id string, c Completion) {}

// Error implements Module.
func (h *HistogramModule) Error(id string, err error) {}

// Summary returns the histogram view of id.
func (h *HistogramModule) Summary(id string) (HistogramSummary, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hist, ok := h.hists[id]
	if !ok {
		return HistogramSummary{}, false
	}
	return HistogramSummary{
		Count:  hist.TotalCount(),
		Min:    hist.Min(),
		Max:    hist.Max(),
		Mean:   hist.Mean(),
		StdDev: hist.StdDev(),
		P50:    hist.ValueAtQuantile(50),
		P90:    hist.ValueAtQuantile(90),
		P95:    hist.ValueAtQuantile(95),
		P99:    hist.ValueAtQuantile(99),
		P999:   hist.ValueAtQuantile(99.9),
	}, true
}

// IDs returns the ids with a histogram in sorted order.
func (h *HistogramModule) IDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.hists))
	for id := range h.hists {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WriteSummaries prints one line per id.
func (h *HistogramModule) WriteSummaries(w io.Writer) {
	for _, id := range h.IDs() {
		s, _ := h.Summary(id)
		fmt.Fprintf(w, "%s: count=%d min=%d mean=%.2f stddev=%.2f p50=%d p90=%d p95=%d p99=%d p99.9=%d max=%d\n",
			id, s.Count, s.Min, s.Mean, s.StdDev, s.P50, s.P90, s.P95, s.P99, s.P999, s.Max)
	}
}

var _ Module = (*HistogramModule)(nil)
