package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/wesleyorama2/perfkit/internal/stats"
)

const (
	chartWidth  = 600
	chartHeight = 160
)

// HTMLModule collects finished runs and renders them into one HTML page
// with a latency distribution chart per test.
type HTMLModule struct {
	title string

	mu      sync.Mutex
	entries map[string]*htmlEntry
}

type htmlEntry struct {
	ID         string
	Config     string
	Passed     bool
	Aborted    string
	Violations []string
	Summaries  []stats.Summary
	Chart      *chart
}

type chart struct {
	Width      int
	Height     int
	ViewHeight int
	Bars       []bar
	Marks      []mark
	MinX       int
	MaxX       int
}

type bar struct {
	X, Y, Width, Height float64
	Latency             int
	Count               int64
}

type mark struct {
	X    float64
	Name string
}

// NewHTMLModule creates an HTML report module.
func NewHTMLModule(title string) *HTMLModule {
	if title == "" {
		title = "perfkit report"
	}
	return &HTMLModule{
		title:   title,
		entries: make(map[string]*htmlEntry),
	}
}

// Starting implements Module.
func (h *HTMLModule) Starting(id string) {}

// Invoked implements Module.
func (h *HTMLModule) Invoked(id string, latency int, startMillis int64) {}

// Completed implements Module.
func (h *HTMLModule) Completed(id string, c Completion) {
	entry := &htmlEntry{
		ID:         id,
		Config:     c.Config.String(),
		Passed:     c.Verdict.Passed(),
		Violations: c.Verdict.Strings(),
	}
	for _, counter := range c.Counters {
		entry.Summaries = append(entry.Summaries, counter.Snapshot())
	}
	if primary := c.Primary(); primary != nil {
		entry.Chart = buildChart(NewLatencyDataSet(primary))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[id] = entry
}

// Error implements Module.
func (h *HTMLModule) Error(id string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[id] = &htmlEntry{ID: id, Aborted: err.Error()}
}

func buildChart(ds LatencyDataSet) *chart {
	if len(ds.Points) == 0 || ds.MaxCount == 0 {
		return nil
	}

	c := &chart{
		Width:      chartWidth,
		Height:     chartHeight,
		ViewHeight: chartHeight + 14,
		MinX:       ds.Points[0].Latency,
		MaxX:       ds.Points[len(ds.Points)-1].Latency,
	}
	barWidth := float64(chartWidth) / float64(len(ds.Points))
	for i, p := range ds.Points {
		height := float64(p.Count) / float64(ds.MaxCount) * chartHeight
		c.Bars = append(c.Bars, bar{
			X:       float64(i) * barWidth,
			Y:       chartHeight - height,
			Width:   barWidth,
			Height:  height,
			Latency: p.Latency,
			Count:   p.Count,
		})
	}
	for _, l := range ds.Labels {
		offset := l.Latency - c.MinX
		c.Marks = append(c.Marks, mark{
			X:    (float64(offset) + 0.5) * barWidth,
			Name: fmt.Sprintf("%s %dms", l.Name, l.Latency),
		})
	}
	return c
}

type htmlData struct {
	Title     string
	Generated string
	Entries   []*htmlEntry
}

// Render writes the report to w.
func (h *HTMLModule) Render(w io.Writer) error {
	tmpl, err := template.New("report").Funcs(templateFuncs()).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	h.mu.Lock()
	data := htmlData{
		Title:     h.title,
		Generated: time.Now().Format(time.RFC3339),
	}
	for _, entry := range h.entries {
		data.Entries = append(data.Entries, entry)
	}
	h.mu.Unlock()

	sort.Slice(data.Entries, func(i, j int) bool { return data.Entries[i].ID < data.Entries[j].ID })

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// WriteFile renders the report into the file at path.
func (h *HTMLModule) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := h.Render(&buf); err != nil {
		return fmt.Errorf("failed to generate HTML: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}
	return nil
}

// templateFuncs returns the template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatNumber": formatNumber,
		"percent":      func(f float64) string { return fmt.Sprintf("%.2f%%", f*100) },
		"fixed":        func(f float64) string { return fmt.Sprintf("%.2f", f) },
	}
}

// formatNumber formats a large number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var sb bytes.Buffer
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

var _ Module = (*HTMLModule)(nil)
