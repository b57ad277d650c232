package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestGetFreshEntry(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock[string](clock.Now))

	c.Put("k", "v", 5*time.Minute)

	entry, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", entry.Value)
}

func TestGetTreatsExpiredAsAbsent(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock[string](clock.Now))

	c.Put("k", "v", 5*time.Minute)
	clock.Advance(5*time.Minute + time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestGetStale(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock[string](clock.Now))

	c.Put("k", "v", 5*time.Minute)

	entry, ok, stale := c.GetStale("k")
	assert.True(t, ok)
	assert.False(t, stale)
	assert.Equal(t, "v", entry.Value)

	clock.Advance(time.Hour)

	entry, ok, stale = c.GetStale("k")
	assert.True(t, ok, "expired entry must remain readable as stale")
	assert.True(t, stale)
	assert.Equal(t, "v", entry.Value)

	_, ok, _ = c.GetStale("missing")
	assert.False(t, ok)
}

func TestPutReplacesEntry(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock[string](clock.Now))

	c.Put("k", "old", 5*time.Minute)
	clock.Advance(time.Minute)
	c.Put("k", "new", 5*time.Minute)

	entry, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "new", entry.Value)
	assert.Equal(t, clock.Now(), entry.StoredAt)
}

func TestInvalidateAndClear(t *testing.T) {
	c := New[string]()

	c.Put("a", "1", time.Minute)
	c.Put("b", "2", time.Minute)

	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCompactionSweepsExpired(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock[int](clock.Now), WithCompactionThreshold[int](10))

	for i := 0; i < 10; i++ {
		c.Put(fmt.Sprintf("old-%d", i), i, time.Minute)
	}
	clock.Advance(2 * time.Minute)

	// Crossing the threshold triggers the sweep; only the fresh entry stays.
	c.Put("fresh", 99, time.Minute)

	assert.Equal(t, 1, c.Len())
	entry, ok := c.Get("fresh")
	assert.True(t, ok)
	assert.Equal(t, 99, entry.Value)
}

func TestCompactionKeepsFreshUnderThreshold(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock[int](clock.Now), WithCompactionThreshold[int](100))

	for i := 0; i < 50; i++ {
		c.Put(fmt.Sprintf("k-%d", i), i, time.Hour)
	}

	assert.Equal(t, 50, c.Len())
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c := New[int]()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k-%d", j%10)
				c.Put(key, n, time.Minute)
				c.Get(key)
				c.GetStale(key)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, c.Len())
}
