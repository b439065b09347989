package stats

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

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRollingAverage_WindowsAndPurge(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	avg := NewRollingAverage("Item Processing Time", WithClock(clock.Now))

	durations := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
	for _, d := range durations {
		avg.RecordSuccess(d)
		clock.Advance(time.Second)
	}

	assert.Equal(t, int64(3), avg.LastMinute().Count)
	assert.Equal(t, 20*time.Millisecond, avg.LastMinute().Mean())
	assert.Equal(t, int64(3), avg.AllTime().Count)

	clock.Advance(61 * time.Second)
	avg.Purge()

	assert.Equal(t, int64(0), avg.LastMinute().Count)
	assert.Equal(t, time.Duration(0), avg.LastMinute().Mean())
	assert.Equal(t, int64(3), avg.AllTime().Count)
	assert.Equal(t, 20*time.Millisecond, avg.AllTime().Mean())
}

func TestRollingAverage_PurgeKeepsRecentSamples(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	avg := NewRollingAverage("latency", WithClock(clock.Now))

	avg.RecordSuccess(time.Second)
	clock.Advance(45 * time.Second)
	avg.RecordSuccess(3 * time.Second)
	clock.Advance(30 * time.Second)
	avg.Purge()

	w := avg.LastMinute()
	assert.Equal(t, int64(1), w.Count)
	assert.Equal(t, 3*time.Second, w.Mean())
	assert.Equal(t, 2*time.Second, avg.AllTime().Mean())
}

func TestRollingAverage_ErrorsDoNotContributeDuration(t *testing.T) {
	avg := NewRollingAverage("latency")

	avg.RecordSuccess(4 * time.Millisecond)
	avg.RecordError()
	avg.RecordError()

	assert.Equal(t, int64(2), avg.Errors())
	assert.Equal(t, int64(1), avg.AllTime().Count)
	assert.Equal(t, int64(1), avg.LastMinute().Count)
	assert.Equal(t, 4*time.Millisecond, avg.AllTime().Mean())
}

func TestCategoryTally_UniquePerKey(t *testing.T) {
	tally := NewCategoryTally()

	for i := 0; i < 5; i++ {
		tally.Increment("A", true)
	}
	tally.Increment("A", false)
	tally.Increment("A", false)

	snapshot := tally.Snapshot()
	require.Len(t, snapshot, 2)
	assert.ElementsMatch(t, []Category{
		{Name: "A", IsSuccessful: true, Count: 5},
		{Name: "A", IsSuccessful: false, Count: 2},
	}, snapshot)
	assert.Equal(t, int64(0), tally.Count("B", true))
}

func TestCategoryTally_ConcurrentIncrements(t *testing.T) {
	tally := NewCategoryTally()
	const goroutines = 16
	const perGoroutine = 250

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				tally.Increment("shared", i%2 == 0)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines/2*perGoroutine), tally.Count("shared", true))
	assert.Equal(t, int64(goroutines/2*perGoroutine), tally.Count("shared", false))
	assert.Len(t, tally.Snapshot(), 2)
}
