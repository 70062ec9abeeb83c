package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto_quote_bot/internal/feature/quotes/domain/entity"
)

// fakeClock is a manually advanced time source for cache tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func testSet(symbol string) entity.QuoteSet {
	open := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return entity.QuoteSet{
		AssetID:  "1",
		Name:     "Bitcoin",
		Symbol:   symbol,
		Currency: "USD",
		Points: []entity.Point{
			{TimeOpen: open, TimeClose: open.Add(24*time.Hour - time.Millisecond), Open: 100, High: 110, Low: 90, Close: 105, Volume: 1000},
		},
	}
}

func TestNewQuoteCache_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		ttl              time.Duration
		capacity         int
		opts             []Option
		expectedTTL      time.Duration
		expectedShards   int
		expectedCapacity int
	}{
		{"zero values use defaults", 0, 0, nil, DefaultQuoteTTL, defaultShards, DefaultQuoteCapacity},
		{"shards capped by capacity", time.Minute, 3, nil, time.Minute, 3, 3},
		{"custom shard count", time.Minute, 10, []Option{WithShards(4)}, time.Minute, 4, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewQuoteCache(tt.ttl, tt.capacity, tt.opts...)

			assert.Equal(t, tt.expectedTTL, c.ttl)
			assert.Len(t, c.shards, tt.expectedShards)
			total := 0
			for _, s := range c.shards {
				total += s.capacity
			}
			assert.Equal(t, tt.expectedCapacity, total)
		})
	}
}

// TestQuoteCache_RoundTrip はPut直後のGetで同じQuoteSetが返り、TTL経過後は返らないことを検証します。
func TestQuoteCache_RoundTrip(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewQuoteCache(time.Minute, 10, WithClock(clock.Now))
	want := testSet("BTC")

	c.Put("fp", want)
	got, ok := c.Get("fp")
	require.True(t, ok)
	assert.Equal(t, want, got)

	clock.Advance(59 * time.Second)
	_, ok = c.Get("fp")
	assert.True(t, ok, "entry younger than TTL is served")

	clock.Advance(time.Second)
	_, ok = c.Get("fp")
	assert.False(t, ok, "entry at TTL is not served")
	assert.Equal(t, 0, c.Len(), "expired entry removed lazily on lookup")
}

// TestQuoteCache_AgesFromFetchedAt はFetchedAtを持つセットが取得時刻から数えて失効することを検証します。
func TestQuoteCache_AgesFromFetchedAt(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		fetchedAt time.Time
		advance   time.Duration
		expected  bool
	}{
		{"zero fetch time ages from put", time.Time{}, 59 * time.Second, true},
		{"fetched 40s ago still fresh", start.Add(-40 * time.Second), 19 * time.Second, true},
		{"fetched 40s ago expires 20s after put", start.Add(-40 * time.Second), 20 * time.Second, false},
		{"already past ttl", start.Add(-time.Minute), 0, false},
		{"future fetch time clamped to now", start.Add(time.Hour), time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := &fakeClock{now: start}
			c := NewQuoteCache(time.Minute, 10, WithClock(clock.Now))
			set := testSet("BTC")
			set.FetchedAt = tt.fetchedAt

			c.Put("fp", set)
			clock.Advance(tt.advance)
			_, ok := c.Get("fp")

			assert.Equal(t, tt.expected, ok)
		})
	}
}

// TestQuoteCache_PutExpiredReplacesEntry は失効済みのセットのPutが古いエントリを残さないことを検証します。
func TestQuoteCache_PutExpiredReplacesEntry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewQuoteCache(time.Minute, 10, WithClock(clock.Now))
	c.Put("fp", testSet("FRESH"))

	stale := testSet("STALE")
	stale.FetchedAt = clock.Now().Add(-2 * time.Minute)
	c.Put("fp", stale)

	_, ok := c.Get("fp")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

// TestQuoteCache_ReturnsCopies は呼び出し側の変更がキャッシュ内容に影響しないことを検証します。
func TestQuoteCache_ReturnsCopies(t *testing.T) {
	t.Parallel()

	c := NewQuoteCache(time.Minute, 10)
	in := testSet("BTC")
	c.Put("fp", in)

	in.Points[0].Close = -1
	got, ok := c.Get("fp")
	require.True(t, ok)
	assert.Equal(t, 105.0, got.Points[0].Close)

	got.Points[0].Close = -2
	again, _ := c.Get("fp")
	assert.Equal(t, 105.0, again.Points[0].Close)
}

// TestQuoteCache_LRUEviction は容量超過時に最も長く使われていないエントリが削除されることを検証します。
func TestQuoteCache_LRUEviction(t *testing.T) {
	t.Parallel()

	c := NewQuoteCache(time.Hour, 2, WithShards(1))

	c.Put("a", testSet("A"))
	c.Put("b", testSet("B"))
	_, ok := c.Get("a") // a becomes most recently used
	require.True(t, ok)

	c.Put("c", testSet("C"))

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okC := c.Get("c")
	assert.True(t, okA)
	assert.False(t, okB, "least recently used entry evicted")
	assert.True(t, okC)
	assert.Equal(t, 2, c.Len())
}

// TestQuoteCache_CapacityBound は多数の異なるキーを投入しても容量を超えないことを検証します。
func TestQuoteCache_CapacityBound(t *testing.T) {
	t.Parallel()

	c := NewQuoteCache(time.Hour, 32)
	for i := 0; i < 500; i++ {
		c.Put(fmt.Sprintf("fp-%d", i), testSet("X"))
	}
	assert.LessOrEqual(t, c.Len(), 32)
}

// TestQuoteCache_PutOverwrites は同じキーへのPutが内容と取得時刻を更新することを検証します。
func TestQuoteCache_PutOverwrites(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewQuoteCache(time.Minute, 10, WithClock(clock.Now))

	c.Put("fp", testSet("OLD"))
	clock.Advance(50 * time.Second)
	c.Put("fp", testSet("NEW"))
	clock.Advance(50 * time.Second)

	got, ok := c.Get("fp")
	require.True(t, ok)
	assert.Equal(t, "NEW", got.Symbol)
	assert.Equal(t, 1, c.Len())
}

func TestQuoteCache_Sweep(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewQuoteCache(time.Minute, 10, WithClock(clock.Now))

	c.Put("old-1", testSet("A"))
	c.Put("old-2", testSet("B"))
	clock.Advance(30 * time.Second)
	c.Put("fresh", testSet("C"))
	clock.Advance(31 * time.Second)

	removed := c.Sweep()

	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestQuoteCache_RunSweeper_StopsOnCancel(t *testing.T) {
	t.Parallel()

	c := NewQuoteCache(time.Millisecond, 10)
	c.Put("fp", testSet("A"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.RunSweeper(ctx, 5*time.Millisecond) }()

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestQuoteCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := NewQuoteCache(time.Minute, 64)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("fp-%d", (g*31+i)%100)
				if i%3 == 0 {
					c.Put(key, testSet("X"))
				} else {
					c.Get(key)
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
