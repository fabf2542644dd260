// Package workload provides the ready-made workloads perfkit can measure
// from a suite file.
package workload

import (
	"context"
	"fmt"
	"time"

	"github.com/wesleyorama2/perfkit/internal/config"
	"github.com/wesleyorama2/perfkit/internal/scheduler"
)

// Sleep waits for a fixed time per invocation. It is useful for checking
// the measurement overhead and for trying out requirements.
type Sleep struct {
	d time.Duration
}

// NewSleep creates a sleep workload.
func NewSleep(d time.Duration) *Sleep {
	return &Sleep{d: d}
}

// Invoke sleeps, returning early with the context error on cancellation.
func (s *Sleep) Invoke(ctx context.Context) error {
	t := time.NewTimer(s.d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Invoker is implemented by every workload.
type Invoker interface {
	Invoke(ctx context.Context) error
}

// Func adapts an Invoker to the scheduler.
func Func(i Invoker) scheduler.Workload {
	return i.Invoke
}

// FromFile builds the workload described in a suite file.
func FromFile(f *config.WorkloadFile) (Invoker, error) {
	if f == nil {
		return nil, fmt.Errorf("no workload configured")
	}

	switch f.Type {
	case "http":
		if f.URL == "" {
			return nil, fmt.Errorf("http workload requires a url")
		}
		opts := []HTTPOption{WithMethod(f.Method), WithBody(f.Body)}
		if f.Timeout != "" {
			timeout, err := config.ParseDurationString(f.Timeout)
			if err != nil {
				return nil, fmt.Errorf("invalid http timeout: %w", err)
			}
			opts = append(opts, WithTimeout(timeout))
		}
		for key, value := range f.Headers {
			opts = append(opts, WithHeader(key, value))
		}
		return NewHTTP(f.URL, opts...), nil

	case "command":
		return NewCommand(f.Command...)

	case "sleep":
		d, err := config.ParseDurationString(f.Sleep)
		if err != nil {
			return nil, fmt.Errorf("invalid sleep duration: %w", err)
		}
		return NewSleep(d), nil

	default:
		return nil, fmt.Errorf("unknown workload type: %s", f.Type)
	}
}
