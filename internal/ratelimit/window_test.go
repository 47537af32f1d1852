package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestAllow_ExactlyNThenDeny(t *testing.T) {
	clk := newFakeClock()
	sw := New(WithClock(clk.Now))

	for i := 0; i < 3; i++ {
		require.Truef(t, sw.Allow("u", 3, time.Minute), "call %d should pass", i+1)
		clk.Advance(time.Second)
	}
	assert.False(t, sw.Allow("u", 3, time.Minute))

	// denied calls are not recorded
	reset, ok := sw.ResetTime("u", time.Minute)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 1, 0, 0, time.UTC), reset)
}

func TestAllow_RecoversAfterWindow(t *testing.T) {
	clk := newFakeClock()
	sw := New(WithClock(clk.Now))

	require.True(t, sw.Allow("u", 2, time.Minute))
	clk.Advance(10 * time.Second)
	require.True(t, sw.Allow("u", 2, time.Minute))
	require.False(t, sw.Allow("u", 2, time.Minute))

	// first stamp leaves the window exactly at +60s
	clk.Advance(50 * time.Second)
	assert.True(t, sw.Allow("u", 2, time.Minute))
	assert.False(t, sw.Allow("u", 2, time.Minute))
}

func TestAllow_IdentitiesAreIndependent(t *testing.T) {
	sw := New(WithClock(newFakeClock().Now))
	require.True(t, sw.Allow("a", 1, time.Minute))
	assert.False(t, sw.Allow("a", 1, time.Minute))
	assert.True(t, sw.Allow("b", 1, time.Minute))
}

func TestAllow_NonPositiveMaxDenies(t *testing.T) {
	sw := New()
	assert.False(t, sw.Allow("u", 0, time.Minute))
	_, ok := sw.ResetTime("u", time.Minute)
	assert.False(t, ok)
}

func TestCheck_ReportsRemainingAndReset(t *testing.T) {
	clk := newFakeClock()
	sw := New(WithClock(clk.Now))

	d := sw.Check("u", 2, time.Minute)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Limit)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, clk.Now().Add(time.Minute), d.ResetTime)

	clk.Advance(15 * time.Second)
	sw.Check("u", 2, time.Minute)
	d = sw.Check("u", 2, time.Minute)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 45*time.Second, d.RetryAfter(clk.Now()))
}

func TestRetryAfter_RoundsUp(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d := Decision{ResetTime: now.Add(1500 * time.Millisecond)}
	assert.Equal(t, 2*time.Second, d.RetryAfter(now))
	assert.Equal(t, time.Second, Decision{}.RetryAfter(now))
	assert.Equal(t, time.Second, Decision{ResetTime: now.Add(-time.Second)}.RetryAfter(now))
}

func TestResetTime_UnknownAndExpired(t *testing.T) {
	clk := newFakeClock()
	sw := New(WithClock(clk.Now))

	_, ok := sw.ResetTime("nobody", time.Minute)
	assert.False(t, ok)

	sw.Allow("u", 5, time.Minute)
	clk.Advance(2 * time.Minute)
	_, ok = sw.ResetTime("u", time.Minute)
	assert.False(t, ok)
}

func TestIdleEviction(t *testing.T) {
	clk := newFakeClock()
	sw := New(WithClock(clk.Now), WithIdleEviction(time.Minute, 3))

	sw.Allow("old", 5, time.Minute)
	sw.Allow("old2", 5, time.Minute)
	require.Equal(t, 2, sw.Len())

	clk.Advance(2 * time.Minute)
	sw.Allow("fresh", 5, time.Minute) // third check triggers the sweep
	assert.Equal(t, 1, sw.Len())
}

func TestAllow_ConcurrentCallersNeverExceedLimit(t *testing.T) {
	sw := New(WithClock(newFakeClock().Now))

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sw.Allow("shared", 10, time.Minute) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}
