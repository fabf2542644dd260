package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repoCounterName = "RepositoryTest"

func TestRepository_LifeCycle(t *testing.T) {
	repo := NewRepository()

	_, ok := repo.Counter(repoCounterName)
	assert.False(t, ok, "counter should not be defined yet")

	repo.AddSample(repoCounterName, 100)
	counter, ok := repo.Counter(repoCounterName)
	require.True(t, ok, "counter should have been defined after AddSample()")

	again, _ := repo.Counter(repoCounterName)
	assert.Same(t, counter, again)

	repo.Clear()
	_, ok = repo.Counter(repoCounterName)
	assert.False(t, ok, "after Clear() the repository should have no counters")

	// held references stay usable
	counter.AddSample(5, nil)
	assert.Equal(t, int64(2), counter.SampleCount())

	repo.AddSample(repoCounterName, 1)
	fresh, _ := repo.Counter(repoCounterName)
	assert.NotSame(t, counter, fresh)
	assert.Equal(t, int64(1), fresh.SampleCount())
}

func TestRepository_ConcurrentCreate(t *testing.T) {
	repo := NewRepository()

	const goroutines = 50
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			repo.AddSample("shared", 3)
		}()
	}
	close(start)
	wg.Wait()

	counter, ok := repo.Counter("shared")
	require.True(t, ok)
	assert.Equal(t, int64(goroutines), counter.SampleCount())
	assert.Equal(t, []string{"shared"}, repo.Names())
}

func TestRepository_GetOrCreateClock(t *testing.T) {
	repo := NewRepository()
	c := repo.GetOrCreate("cpu-bound", "cpu", 10)
	assert.Equal(t, "cpu", c.ClockName())
	assert.Same(t, c, repo.GetOrCreate("cpu-bound", "system", 10))
}

func TestRepository_Replace(t *testing.T) {
	repo := NewRepository()
	old := repo.GetOrCreate("run", "", 10)
	old.AddSample(3, nil)

	fresh := repo.Replace("run", "", 10)
	assert.NotSame(t, old, fresh)
	assert.Equal(t, int64(0), fresh.SampleCount())
	assert.Equal(t, "system", fresh.ClockName())

	got, ok := repo.Counter("run")
	assert.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestStopWatch(t *testing.T) {
	const name = "StopWatchTest"
	const delay = 50 * time.Millisecond

	sleepTimed := func(repo *Repository) {
		sw := NewStopWatch(repo, name)
		time.Sleep(delay)
		_, err := sw.Stop()
		require.NoError(t, err)
	}

	t.Run("single call", func(t *testing.T) {
		repo := NewRepository()
		sleepTimed(repo)
		c, ok := repo.Counter(name)
		require.True(t, ok)
		assert.Equal(t, int64(1), c.SampleCount())
	})

	t.Run("subsequent calls", func(t *testing.T) {
		repo := NewRepository()
		for i := 0; i < 3; i++ {
			sleepTimed(repo)
		}
		c, _ := repo.Counter(name)
		assert.Equal(t, int64(3), c.SampleCount())
		assert.GreaterOrEqual(t, c.MinLatency(), 39)
		assert.Less(t, c.MinLatency(), 200)
	})

	t.Run("parallel calls", func(t *testing.T) {
		repo := NewRepository()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 5; j++ {
					sw := NewStopWatch(repo, name)
					time.Sleep(delay)
					_, _ = sw.Stop()
				}
			}()
		}
		wg.Wait()

		c, _ := repo.Counter(name)
		assert.Equal(t, int64(100), c.SampleCount())
		assert.GreaterOrEqual(t, c.AverageLatency(), 39.0)
	})

	t.Run("multi stop", func(t *testing.T) {
		sw := NewStopWatch(NewRepository(), name)
		_, err := sw.Stop()
		require.NoError(t, err)
		_, err = sw.Stop()
		assert.ErrorIs(t, err, ErrAlreadyStopped)
	})
}
