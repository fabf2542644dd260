package timer

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertRange(t *testing.T, tm WaitTimer, min, max int) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		wait := tm.WaitTime()
		if wait < min || wait > max {
			t.Fatalf("WaitTime() = %d, want in [%d, %d]", wait, min, max)
		}
	}
}

func TestNone(t *testing.T) {
	tm, err := New(KindNone)
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		assert.Equal(t, 0, tm.WaitTime())
	}
}

func TestConstant(t *testing.T) {
	tests := []struct {
		name   string
		params []float64
		want   int
	}{
		{name: "empty initialization", params: nil, want: 1000},
		{name: "normal initialization", params: []float64{123}, want: 123},
		{name: "too many params", params: []float64{234, 456}, want: 234},
		{name: "negative clamps to zero", params: []float64{-5}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm, err := New(KindConstant, tt.params...)
			require.NoError(t, err)
			for i := 0; i < 1000; i++ {
				if got := tm.WaitTime(); got != tt.want {
					t.Fatalf("WaitTime() = %d, want %d", got, tt.want)
				}
			}
		})
	}
}

func TestRandomVariants(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for _, kind := range []Kind{KindRandom, KindCumulated} {
		t.Run(string(kind), func(t *testing.T) {
			t.Run("empty initialization", func(t *testing.T) {
				tm, err := New(kind)
				require.NoError(t, err)
				assertRange(t, tm, 500, 1500)
			})

			t.Run("under initialization", func(t *testing.T) {
				min := rnd.Intn(2000)
				tm, err := New(kind, float64(min))
				require.NoError(t, err)
				assertRange(t, tm, min, min+1000)
			})

			t.Run("normal initialization", func(t *testing.T) {
				min := rnd.Intn(2000)
				max := min + rnd.Intn(2500)
				tm, err := New(kind, float64(min), float64(max))
				require.NoError(t, err)
				assertRange(t, tm, min, max)
			})

			t.Run("over initialization", func(t *testing.T) {
				min := rnd.Intn(2000)
				max := min + rnd.Intn(2500)
				tm, err := New(kind, float64(min), float64(max), 3000)
				require.NoError(t, err)
				assertRange(t, tm, min, max)
			})

			t.Run("max below min", func(t *testing.T) {
				tm, err := New(kind, 300, 100)
				require.NoError(t, err)
				assertRange(t, tm, 300, 300)
			})
		})
	}
}

func TestCumulated_StepsAreBounded(t *testing.T) {
	tm, err := New(KindCumulated, 0, 400)
	require.NoError(t, err)

	prev := tm.WaitTime()
	for i := 0; i < 1000; i++ {
		next := tm.WaitTime()
		diff := next - prev
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(t, diff, 101, "step from %d to %d too large", prev, next)
		prev = next
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New("gaussian")
	assert.Error(t, err)
}

func TestSleep(t *testing.T) {
	t.Run("returns immediately for none", func(t *testing.T) {
		tm, _ := New(KindNone)
		start := time.Now()
		assert.True(t, Sleep(tm, nil))
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("waits for constant", func(t *testing.T) {
		tm, _ := New(KindConstant, 30)
		start := time.Now()
		assert.True(t, Sleep(tm, nil))
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("interrupted by done", func(t *testing.T) {
		tm, _ := New(KindConstant, 5000)
		done := make(chan struct{})
		close(done)
		assert.False(t, Sleep(tm, done))
	})
}
