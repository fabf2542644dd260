// Package timer provides wait-time strategies applied between invocations.
package timer

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Kind identifies a wait timer variant.
type Kind string

const (
	// KindNone never waits.
	KindNone Kind = "none"

	// KindConstant waits the same amount before every invocation.
	KindConstant Kind = "constant"

	// KindRandom waits a uniformly distributed time between min and max.
	KindRandom Kind = "random"

	// KindCumulated performs a bounded random walk between min and max.
	KindCumulated Kind = "cumulated"
)

const (
	defaultConstantWait = 1000
	defaultMinWait      = 500
	defaultRange        = 1000
)

// WaitTimer computes the delay in milliseconds applied before an invocation.
//
// Init consumes the numeric parameters once. Missing parameters are filled
// with defaults and extra parameters are ignored.
type WaitTimer interface {
	Init(params []float64)
	WaitTime() int
}

// Kinds returns the supported timer kinds.
func Kinds() []Kind {
	return []Kind{KindNone, KindConstant, KindRandom, KindCumulated}
}

// New creates and initializes a timer of the given kind.
func New(kind Kind, params ...float64) (WaitTimer, error) {
	var t WaitTimer
	switch kind {
	case KindNone, "":
		t = &None{}
	case KindConstant:
		t = &Constant{}
	case KindRandom:
		t = newRandom()
	case KindCumulated:
		t = newCumulated()
	default:
		return nil, fmt.Errorf("unknown timer kind: %s", kind)
	}
	t.Init(params)
	return t, nil
}

// Sleep blocks for the timer's next wait time. It returns false when done
// is closed before the delay elapsed.
func Sleep(t WaitTimer, done <-chan struct{}) bool {
	if t == nil {
		return true
	}
	wait := t.WaitTime()
	if wait <= 0 {
		return true
	}

	tm := time.NewTimer(time.Duration(wait) * time.Millisecond)
	defer tm.Stop()

	select {
	case <-done:
		return false
	case <-tm.C:
		return true
	}
}

// None is the timer used when no wait is configured.
type None struct{}

// Init ignores all parameters.
func (n *None) Init(params []float64) {}

// WaitTime always returns 0.
func (n *None) WaitTime() int { return 0 }

// Constant waits a fixed number of milliseconds, 1000 by default.
type Constant struct {
	wait int
}

// Init reads the wait time from the first parameter.
func (c *Constant) Init(params []float64) {
	c.wait = defaultConstantWait
	if len(params) > 0 {
		c.wait = clamp(params[0])
	}
}

// WaitTime returns the configured wait time.
func (c *Constant) WaitTime() int { return c.wait }

// bounds holds the [min, max] range shared by the random variants.
type bounds struct {
	min int
	max int
}

func parseBounds(params []float64) bounds {
	b := bounds{min: defaultMinWait}
	if len(params) > 0 {
		b.min = clamp(params[0])
	}
	b.max = b.min + defaultRange
	if len(params) > 1 {
		b.max = clamp(params[1])
	}
	if b.max < b.min {
		b.max = b.min
	}
	return b
}

// Random waits a uniformly distributed time in [min, max].
// Defaults are 500 and min+1000.
type Random struct {
	bounds
	mu  sync.Mutex
	rnd *rand.Rand
}

func newRandom() *Random {
	return &Random{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Init reads min and max from the first two parameters.
func (r *Random) Init(params []float64) {
	r.bounds = parseBounds(params)
}

// WaitTime returns the next random wait time.
func (r *Random) WaitTime() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.min + r.rnd.Intn(r.max-r.min+1)
}

// Cumulated keeps a running wait time that moves by a random step on every
// call and is clamped to [min, max]. Consecutive waits are therefore
// correlated, which resembles a user slowly changing pace.
type Cumulated struct {
	bounds
	mu      sync.Mutex
	rnd     *rand.Rand
	current int
}

func newCumulated() *Cumulated {
	return &Cumulated{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Init reads min and max from the first two parameters and starts the walk
// in the middle of the range.
func (c *Cumulated) Init(params []float64) {
	c.bounds = parseBounds(params)
	c.current = c.min + (c.max-c.min)/2
}

// WaitTime advances the walk and returns the new value.
func (c *Cumulated) WaitTime() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	span := c.max - c.min
	if span == 0 {
		return c.min
	}
	// step is at most a quarter of the range in either direction
	step := span/4 + 1
	c.current += c.rnd.Intn(2*step+1) - step
	if c.current < c.min {
		c.current = c.min
	}
	if c.current > c.max {
		c.current = c.max
	}
	return c.current
}

func clamp(v float64) int {
	if v < 0 {
		return 0
	}
	return int(v)
}
