package resilience

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterRefill(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(RateLimitConfig{Capacity: 2, RefillPerSecond: 1})
	l.now = clock.Now

	require.NoError(t, l.Allow("user-1:match"))
	require.NoError(t, l.Allow("user-1:match"))

	err := l.Allow("user-1:match")
	require.ErrorIs(t, err, ErrRateLimited)

	clock.At(2000)
	require.NoError(t, l.Allow("user-1:match"))
	assert.InDelta(t, 1.0, l.Remaining("user-1:match"), 1e-9)
}

func TestLimiterNeverExceedsCapacity(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(RateLimitConfig{Capacity: 3, RefillPerSecond: 10})
	l.now = clock.Now

	require.NoError(t, l.Allow("k"))
	clock.At(60_000)
	assert.Equal(t, 3.0, l.Remaining("k"))
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(RateLimitConfig{Capacity: 1, RefillPerSecond: 0})
	l.now = clock.Now

	require.NoError(t, l.Allow("a"))
	require.ErrorIs(t, l.Allow("a"), ErrRateLimited)
	require.NoError(t, l.Allow("b"))

	l.Reset()
	require.NoError(t, l.Allow("a"))
}

func TestLimiterConcurrentAdmissions(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(RateLimitConfig{Capacity: 25, RefillPerSecond: 0})
	l.now = clock.Now

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(25), admitted.Load())
}
