// Package report delivers the events of a measured run to pluggable
// report modules.
package report

import (
	"sync"

	"github.com/wesleyorama2/perfkit/internal/config"
	"github.com/wesleyorama2/perfkit/internal/requirement"
	"github.com/wesleyorama2/perfkit/internal/stats"
)

// Completion carries everything known about a finished run.
type Completion struct {
	// Counters holds one counter per configured clock, primary clock first.
	Counters    []*stats.LatencyCounter
	Config      config.ExecutionConfig
	Requirement *config.PerformanceRequirement
	Verdict     requirement.Verdict
}

// Primary returns the counter of the first clock, or nil.
func (c Completion) Primary() *stats.LatencyCounter {
	if len(c.Counters) == 0 {
		return nil
	}
	return c.Counters[0]
}

// Module receives the events of every run. Implementations must be safe
// for concurrent use; Invoked is called from all workers.
type Module interface {
	// Starting is called before the first invocation.
	Starting(id string)
	// Invoked is called after every successful invocation.
	Invoked(id string, latency int, startMillis int64)
	// Completed is called once the run finished and was evaluated.
	Completed(id string, c Completion)
	// Error is called when the run was aborted.
	Error(id string, err error)
}

// Context fans events out to all registered modules.
type Context struct {
	mu      sync.RWMutex
	modules []Module
}

// NewContext creates a context with the given modules.
func NewContext(modules ...Module) *Context {
	c := &Context{}
	for _, m := range modules {
		c.Add(m)
	}
	return c
}

// Add registers a module. nil modules are ignored.
func (c *Context) Add(m Module) {
	if m == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules = append(c.modules, m)
}

// Modules returns a copy of the registered modules.
func (c *Context) Modules() []Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Module(nil), c.modules...)
}

// Starting implements Module.
func (c *Context) Starting(id string) {
	for _, m := range c.Modules() {
		m.Starting(id)
	}
}

// Invoked implements Module.
func (c *Context) Invoked(id string, latency int, startMillis int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.modules {
		m.Invoked(id, latency, startMillis)
	}
}

// Completed implements Module.
func (c *Context) Completed(id string, completion Completion) {
	for _, m := range c.Modules() {
		m.Completed(id, completion)
	}
}

// Error implements Module.
func (c *Context) Error(id string, err error) {
	for _, m := range c.Modules() {
		m.Error(id, err)
	}
}

// ExecutionLogger is the minimal logging sink: one call per invocation and
// one per finished run. Wrap it with NewLoggerAdapter to register it.
type ExecutionLogger interface {
	LogInvocation(id string, latency int, startMillis int64)
	LogSummary(id string, elapsedMillis, invocations, startMillis int64)
}

// LoggerAdapter exposes an ExecutionLogger as a Module.
type LoggerAdapter struct {
	logger ExecutionLogger
}

// NewLoggerAdapter wraps logger.
func NewLoggerAdapter(logger ExecutionLogger) *LoggerAdapter {
	return &LoggerAdapter{logger: logger}
}

// Starting implements Module.
func (a *LoggerAdapter) Starting(id string) {}

// Invoked implements Module.
func (a *LoggerAdapter) Invoked(id string, latency int, startMillis int64) {
	a.logger.LogInvocation(id, latency, startMillis)
}

// Completed implements Module. The summary is taken from the primary counter.
func (a *LoggerAdapter) Completed(id string, c Completion) {
	counter := c.Primary()
	if counter == nil {
		return
	}
	a.logger.LogSummary(id, counter.Duration(), counter.TotalInvocations(), counter.StartTime())
}

// Error implements Module.
func (a *LoggerAdapter) Error(id string, err error) {}

var (
	_ Module = (*Context)(nil)
	_ Module = (*LoggerAdapter)(nil)
)
