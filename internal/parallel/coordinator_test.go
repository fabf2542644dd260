package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_TasksOverlap(t *testing.T) {
	c := NewCoordinator()
	workers := NewWorkerSet()

	// every copy waits for all 4 copies to be present before it returns,
	// which only succeeds when both tasks really run at the same time
	barrier := func(ctx context.Context) error {
		id, ok := WorkerID(ctx)
		if !ok {
			return errors.New("missing worker id")
		}
		workers.Add(id)
		if !Await(ctx, workers.AtLeast(4), 10*time.Millisecond, 2*time.Second) {
			return errors.New("not all workers observed")
		}
		return nil
	}

	err := c.Run(context.Background(),
		Task{Name: "first", Concurrency: 2, Run: barrier},
		Task{Name: "second", Concurrency: 2, Run: barrier},
	)
	require.NoError(t, err)

	assert.Equal(t, 4, workers.Len())
	assert.True(t, c.Overlaps("first", "second"))
	assert.True(t, c.Overlaps("second", "first"))
	assert.Equal(t, []string{"first", "second"}, c.Names())

	first, ok := c.Span("first")
	require.True(t, ok)
	assert.False(t, first.Last.Before(first.First))
}

func TestCoordinator_SequentialSpansDoNotOverlap(t *testing.T) {
	c := NewCoordinator()
	noop := func(ctx context.Context) error { return nil }

	require.NoError(t, c.Run(context.Background(), Task{Name: "a", Run: noop}))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.Run(context.Background(), Task{Name: "b", Run: noop}))

	assert.False(t, c.Overlaps("a", "b"))
	assert.False(t, c.Overlaps("a", "missing"))
}

func TestCoordinator_ErrorsAreJoined(t *testing.T) {
	c := NewCoordinator()
	errA := errors.New("a failed")
	errB := errors.New("b failed")

	var ran atomic.Int32
	err := c.Run(context.Background(),
		Task{Name: "a", Run: func(ctx context.Context) error { ran.Add(1); return errA }},
		Task{Name: "b", Concurrency: 3, Run: func(ctx context.Context) error { ran.Add(1); return errB }},
		Task{Name: "c", Run: func(ctx context.Context) error { ran.Add(1); return nil }},
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, int32(5), ran.Load())
}

func TestCoordinator_MissingRun(t *testing.T) {
	err := NewCoordinator().Run(context.Background(), Task{Name: "empty"})
	assert.Error(t, err)
	assert.NoError(t, NewCoordinator().Run(context.Background()))
}

func TestCoordinator_MarkExtendsSpan(t *testing.T) {
	c := NewCoordinator()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := []time.Time{base.Add(time.Second), base, base.Add(3 * time.Second)}
	i := 0
	c.now = func() time.Time {
		tick := ticks[i]
		i++
		return tick
	}

	c.Mark("x")
	c.Mark("x")
	c.Mark("x")

	span, ok := c.Span("x")
	require.True(t, ok)
	assert.Equal(t, base, span.First)
	assert.Equal(t, base.Add(3*time.Second), span.Last)
}

func TestAwait(t *testing.T) {
	t.Run("condition met", func(t *testing.T) {
		var n atomic.Int32
		time.AfterFunc(30*time.Millisecond, func() { n.Store(1) })

		ok := Await(context.Background(), func() bool { return n.Load() == 1 }, 10*time.Millisecond, time.Second)
		assert.True(t, ok)
	})

	t.Run("timeout returns false", func(t *testing.T) {
		start := time.Now()
		ok := Await(context.Background(), func() bool { return false }, 10*time.Millisecond, 100*time.Millisecond)
		assert.False(t, ok)
		assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.False(t, Await(ctx, func() bool { return false }, 10*time.Millisecond, time.Second))
	})

	t.Run("immediate", func(t *testing.T) {
		assert.True(t, Await(context.Background(), func() bool { return true }, time.Hour, time.Hour))
	})
}

func TestWorkerSet(t *testing.T) {
	s := NewWorkerSet()
	s.Add("a")
	s.Add("a")
	s.Add("b")

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.AtLeast(2)())
	assert.False(t, s.AtLeast(3)())
}
