package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/wesleyorama2/perfkit/internal/stats"
)

// ColorScheme defines the colors used by the console module.
type ColorScheme struct {
	Title     *color.Color
	Label     *color.Color
	Value     *color.Color
	Success   *color.Color
	Error     *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:     color.New(color.FgCyan, color.Bold),
		Label:     color.New(color.FgYellow),
		Value:     color.New(color.FgWhite),
		Success:   color.New(color.FgGreen, color.Bold),
		Error:     color.New(color.FgRed, color.Bold),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range []*color.Color{scheme.Title, scheme.Label, scheme.Value, scheme.Success, scheme.Error, scheme.Highlight} {
		c.DisableColor()
	}
	return scheme
}

// ConsoleModule prints a summary of every finished run.
type ConsoleModule struct {
	mu          sync.Mutex
	w           io.Writer
	colors      *ColorScheme
	noColor     bool
	percentiles []int
}

// ConsoleOption configures a ConsoleModule.
type ConsoleOption func(*ConsoleModule)

// WithNoColor disables colored output.
func WithNoColor(noColor bool) ConsoleOption {
	return func(c *ConsoleModule) {
		c.noColor = noColor
	}
}

// WithPercentiles adds percentiles to the printed summary.
func WithPercentiles(percentiles ...int) ConsoleOption {
	return func(c *ConsoleModule) {
		c.percentiles = append([]int(nil), percentiles...)
	}
}

// NewConsoleModule creates a console module writing to w, os.Stdout when
// nil. Colors are used only when w is a terminal and NO_COLOR is unset.
func NewConsoleModule(w io.Writer, opts ...ConsoleOption) *ConsoleModule {
	if w == nil {
		w = os.Stdout
	}
	c := &ConsoleModule{
		w:       w,
		noColor: !isTerminal(w) || os.Getenv("NO_COLOR") != "",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.noColor {
		c.colors = NoColorScheme()
	} else {
		c.colors = DefaultColorScheme()
		for _, col := range []*color.Color{c.colors.Title, c.colors.Label, c.colors.Value, c.colors.Success, c.colors.Error, c.colors.Highlight} {
			col.EnableColor()
		}
	}
	return c
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SuccessIcon returns a checkmark symbol with appropriate color.
func (c *ConsoleModule) SuccessIcon() string {
	return c.colors.Success.Sprint("✓")
}

// ErrorIcon returns an X symbol with appropriate color.
func (c *ConsoleModule) ErrorIcon() string {
	return c.colors.Error.Sprint("✗")
}

// Starting implements Module.
func (c *ConsoleModule) Starting(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s %s\n", c.colors.Highlight.Sprint("▶"), c.colors.Title.Sprint(id))
}

// Invoked implements Module.
func (c *ConsoleModule) Invoked(id string, latency int, startMillis int64) {}

// Completed implements Module.
func (c *ConsoleModule) Completed(id string, completion Completion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	icon := c.SuccessIcon()
	if !completion.Verdict.Passed() {
		icon = c.ErrorIcon()
	}
	fmt.Fprintf(c.w, "%s %s  (%s)\n", icon, c.colors.Title.Sprint(id), completion.Config)

	for i, counter := range completion.Counters {
		c.writeCounter(counter, i > 0)
	}

	for _, violation := range completion.Verdict.Violations {
		fmt.Fprintf(c.w, "  %s %s\n", c.ErrorIcon(), c.colors.Error.Sprint(violation.String()))
	}
}

func (c *ConsoleModule) writeCounter(counter *stats.LatencyCounter, secondary bool) {
	s := counter.Snapshot()
	indent := "  "
	if secondary {
		fmt.Fprintf(c.w, "  %s\n", c.colors.Label.Sprintf("[%s clock]", s.Clock))
		indent = "    "
	}

	fmt.Fprintf(c.w, "%s%s %s  %s %s  %s %s\n", indent,
		c.colors.Label.Sprint("samples:"), c.colors.Value.Sprint(s.Samples),
		c.colors.Label.Sprint("failures:"), c.colors.Value.Sprint(s.Failures),
		c.colors.Label.Sprint("errors:"), c.colors.Value.Sprintf("%.2f%%", s.ErrorsRate*100))

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %d  %s %.1f  %s %d  %s %d  %s %d  %s %d",
		c.colors.Label.Sprint("min:"), s.Min,
		c.colors.Label.Sprint("avg:"), s.Average,
		c.colors.Label.Sprint("med:"), s.Median,
		c.colors.Label.Sprint("p90:"), s.P90,
		c.colors.Label.Sprint("p99:"), s.P99,
		c.colors.Label.Sprint("max:"), s.Max)
	for _, p := range c.percentiles {
		fmt.Fprintf(&sb, "  %s %d", c.colors.Label.Sprintf("p%d:", p), counter.PercentileLatency(p))
	}
	fmt.Fprintf(c.w, "%s%s\n", indent, sb.String())

	if s.ThroughputSet {
		fmt.Fprintf(c.w, "%s%s %s  %s %s\n", indent,
			c.colors.Label.Sprint("throughput:"), c.colors.Value.Sprintf("%.2f/s", s.Throughput),
			c.colors.Label.Sprint("duration:"), c.colors.Value.Sprintf("%dms", s.DurationMillis))
	}
}

// Error implements Module.
func (c *ConsoleModule) Error(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s %s  %s\n", c.ErrorIcon(), c.colors.Title.Sprint(id), c.colors.Error.Sprintf("aborted: %v", err))
}

var _ Module = (*ConsoleModule)(nil)
