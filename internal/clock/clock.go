// Package clock provides the time sources used to measure invocation latency.
package clock

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Clock supplies a monotonically increasing millisecond reading.
type Clock interface {
	Name() string
	Now() int64
}

// Names accepted by ByName.
const (
	SystemName = "system"
	UserName   = "user"
	CPUName    = "cpu"
)

// System is the wall clock.
type System struct{}

// Name returns "system".
func (System) Name() string { return SystemName }

// Now returns the current wall time in milliseconds since the epoch.
func (System) Now() int64 { return time.Now().UnixMilli() }

// cpuClock reads process CPU time through gopsutil. Go does not expose
// per-goroutine CPU time, so these clocks measure the whole process.
type cpuClock struct {
	name       string
	withSystem bool

	once    sync.Once
	proc    *process.Process
	initErr error
	warn    sync.Once
}

// NewUser returns a clock reading process user CPU time.
func NewUser() Clock {
	return &cpuClock{name: UserName}
}

// NewCPU returns a clock reading process user plus system CPU time.
func NewCPU() Clock {
	return &cpuClock{name: CPUName, withSystem: true}
}

func (c *cpuClock) Name() string { return c.name }

func (c *cpuClock) Now() int64 {
	c.once.Do(func() {
		c.proc, c.initErr = process.NewProcess(int32(os.Getpid()))
	})
	if c.initErr != nil {
		c.logOnce(c.initErr)
		return 0
	}

	times, err := c.proc.Times()
	if err != nil {
		c.logOnce(err)
		return 0
	}

	secs := times.User
	if c.withSystem {
		secs += times.System
	}
	return int64(secs * 1000)
}

func (c *cpuClock) logOnce(err error) {
	c.warn.Do(func() {
		slog.Warn("cpu clock unavailable, reporting zero", "clock", c.name, "error", err)
	})
}

// ByName resolves a clock by its name.
func ByName(name string) (Clock, error) {
	switch name {
	case SystemName, "":
		return System{}, nil
	case UserName:
		return NewUser(), nil
	case CPUName:
		return NewCPU(), nil
	default:
		return nil, fmt.Errorf("unknown clock: %s", name)
	}
}

// Names returns the supported clock names.
func Names() []string {
	return []string{SystemName, UserName, CPUName}
}
