package report

import (
	"github.com/wesleyorama2/perfkit/internal/stats"
)

// Point is the number of samples observed with one latency.
type Point struct {
	Latency int   `json:"latency"`
	Count   int64 `json:"count"`
}

// Label marks a named latency such as the median in a distribution.
type Label struct {
	Name    string `json:"name"`
	Latency int    `json:"latency"`
}

// LatencyDataSet is the latency distribution of a counter prepared for
// charting.
type LatencyDataSet struct {
	Points   []Point `json:"points"`
	Labels   []Label `json:"labels"`
	MaxCount int64   `json:"maxCount"`
}

// NewLatencyDataSet builds the distribution of counter from its minimum to
// its maximum latency, labelled with median, average and 90th percentile.
func NewLatencyDataSet(counter *stats.LatencyCounter) LatencyDataSet {
	var ds LatencyDataSet
	if counter == nil || counter.SampleCount() == 0 {
		return ds
	}

	minLatency, maxLatency := counter.MinLatency(), counter.MaxLatency()
	ds.Points = make([]Point, 0, maxLatency-minLatency+1)
	for latency := minLatency; latency <= maxLatency; latency++ {
		ds.AddPoint(latency, counter.LatencyCount(latency))
	}

	ds.AddLabel("med", counter.PercentileLatency(50))
	ds.AddLabel("avg", int(counter.AverageLatency()+0.5))
	ds.AddLabel("90%", counter.PercentileLatency(90))
	return ds
}

// AddPoint appends a point.
func (d *LatencyDataSet) AddPoint(latency int, count int64) {
	d.Points = append(d.Points, Point{Latency: latency, Count: count})
	if count > d.MaxCount {
		d.MaxCount = count
	}
}

// AddLabel appends a label.
func (d *LatencyDataSet) AddLabel(name string, latency int) {
	d.Labels = append(d.Labels, Label{Name: name, Latency: latency})
}
