// Package cache provides the quote caches used in front of the market-data client.
package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"crypto_quote_bot/internal/feature/quotes/domain/entity"
	"crypto_quote_bot/internal/platform/metrics"
)

const (
	// DefaultQuoteTTL is used when the configured TTL is not positive.
	DefaultQuoteTTL = 5 * time.Minute
	// DefaultQuoteCapacity is used when the configured capacity is not positive.
	DefaultQuoteCapacity = 1024

	defaultShards = 16
)

// QuoteCache is an in-process TTL cache with a least-recently-used capacity bound.
// Keys are spread over shards; each shard has its own lock and LRU, so
// lookups on different fingerprints do not contend.
type QuoteCache struct {
	ttl     time.Duration
	nshards int
	shards  []*quoteShard
	now     func() time.Time
}

type quoteShard struct {
	mu       sync.Mutex
	capacity int
	items    *simplelru.LRU[string, *cacheEntry]
}

type cacheEntry struct {
	set       entity.QuoteSet
	fetchedAt time.Time
}

// Option configures a QuoteCache.
type Option func(*QuoteCache)

// WithShards overrides the shard count. One shard gives an exact global LRU order.
func WithShards(n int) Option {
	return func(c *QuoteCache) {
		if n > 0 {
			c.nshards = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *QuoteCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewQuoteCache creates a cache holding at most capacity entries, each for at most ttl.
func NewQuoteCache(ttl time.Duration, capacity int, opts ...Option) *QuoteCache {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	if capacity <= 0 {
		capacity = DefaultQuoteCapacity
	}
	c := &QuoteCache{ttl: ttl, nshards: defaultShards, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	n := c.nshards
	if n > capacity {
		n = capacity
	}

	// Split capacity so the shard capacities sum to exactly capacity.
	c.shards = make([]*quoteShard, n)
	for i := range c.shards {
		per := capacity / n
		if i < capacity%n {
			per++
		}
		// per > 0 なので NewLRU は失敗しない
		items, _ := simplelru.NewLRU[string, *cacheEntry](per, nil)
		c.shards[i] = &quoteShard{capacity: per, items: items}
	}
	return c
}

func (c *QuoteCache) shard(key string) *quoteShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

func (c *QuoteCache) expired(e *cacheEntry, now time.Time) bool {
	return !now.Before(e.fetchedAt.Add(c.ttl))
}

// Get returns a copy of the cached QuoteSet for fingerprint.
// An entry that has reached its TTL is removed and reported as absent.
func (c *QuoteCache) Get(fingerprint string) (entity.QuoteSet, bool) {
	s := c.shard(fingerprint)
	now := c.now()

	s.mu.Lock()
	e, ok := s.items.Get(fingerprint)
	if !ok {
		s.mu.Unlock()
		metrics.CacheLookups.WithLabelValues("memory", "miss").Inc()
		return entity.QuoteSet{}, false
	}
	if c.expired(e, now) {
		s.items.Remove(fingerprint)
		s.mu.Unlock()
		metrics.CacheEvictions.WithLabelValues("expired").Inc()
		metrics.CacheLookups.WithLabelValues("memory", "miss").Inc()
		return entity.QuoteSet{}, false
	}
	out := e.set.Clone()
	s.mu.Unlock()

	metrics.CacheLookups.WithLabelValues("memory", "hit").Inc()
	return out, true
}

// Put stores a copy of set under fingerprint, evicting the least recently used
// entry of the shard when it is full.
// The entry ages from set.FetchedAt when it is set, so a copy taken from the
// shared tier expires with the original fetch. A set already past the TTL is not stored.
func (c *QuoteCache) Put(fingerprint string, set entity.QuoteSet) {
	now := c.now()
	fetchedAt := now
	if !set.FetchedAt.IsZero() && set.FetchedAt.Before(now) {
		fetchedAt = set.FetchedAt
	}
	e := &cacheEntry{set: set.Clone(), fetchedAt: fetchedAt}
	s := c.shard(fingerprint)

	s.mu.Lock()
	defer s.mu.Unlock()

	if c.expired(e, now) {
		s.items.Remove(fingerprint)
		return
	}
	if evicted := s.items.Add(fingerprint, e); evicted {
		metrics.CacheEvictions.WithLabelValues("capacity").Inc()
	}
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *QuoteCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += s.items.Len()
		s.mu.Unlock()
	}
	return n
}

// Sweep removes every expired entry and returns how many were removed.
func (c *QuoteCache) Sweep() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for _, key := range s.items.Keys() {
			if e, ok := s.items.Peek(key); ok && c.expired(e, now) {
				s.items.Remove(key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	if removed > 0 {
		metrics.CacheEvictions.WithLabelValues("swept").Add(float64(removed))
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (c *QuoteCache) RunSweeper(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = c.ttl
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Sweep()
		}
	}
}
