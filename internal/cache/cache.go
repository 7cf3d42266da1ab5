// Package cache memoizes query results for a fixed time-to-live.
//
// Entries expire lazily: an expired entry is removed when it is next looked up
// and otherwise stays in memory until Clear. There is no size-based eviction
// and no background sweep.
//
// Example usage:
//
//	c := cache.New(5*time.Minute)
//	c.Set(cache.Key(q, 10, 0), result, session.Version())
//	entry, ok := c.Get(cache.Key(q, 10, 0), session.Version())
package cache

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultTTL is the lifetime of an entry.
const DefaultTTL = 5 * time.Minute

// Entry is a cached value with the data version it was computed under.
type Entry struct {
	Key        string
	Value      any
	Version    uint64
	InsertedAt time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	HitRate string `json:"hit_rate"`
}

// Cache is safe for concurrent use.
type Cache struct {
	mu     sync.Mutex
	store  *gocache.Cache
	ttl    time.Duration
	hits   uint64
	misses uint64
	now    func() time.Time
}

// New creates a cache. A non-positive ttl selects DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		// expiry is checked on lookup against our own clock, so go-cache
		// runs without expirations or a janitor
		store: gocache.New(gocache.NoExpiration, 0),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Key builds the lookup key for a query page.
func Key(query string, limit, offset int) string {
	return query + "|" + strconv.Itoa(limit) + "|" + strconv.Itoa(offset)
}

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the entry for key if it has not expired and was computed under
// version. Expired and stale entries are removed. Every call counts as
// exactly one hit or one miss.
func (c *Cache) Get(key string, version uint64) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, found := c.store.Get(key)
	if !found {
		c.miss()
		return Entry{}, false
	}

	e := raw.(Entry)
	if !c.now().Before(e.InsertedAt.Add(c.ttl)) || e.Version != version {
		c.store.Delete(key)
		c.miss()
		return Entry{}, false
	}

	c.hits++
	metrics().hits.Inc()
	return e, true
}

func (c *Cache) miss() {
	c.misses++
	m := metrics()
	m.misses.Inc()
	m.size.Set(float64(c.store.ItemCount()))
}

// Set stores value under key, replacing any previous entry.
func (c *Cache) Set(key string, value any, version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Set(key, Entry{Key: key, Value: value, Version: version, InsertedAt: c.now()}, gocache.NoExpiration)
	metrics().size.Set(float64(c.store.ItemCount()))
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Delete(key)
	metrics().size.Set(float64(c.store.ItemCount()))
}

// Clear drops every entry and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Flush()
	c.hits, c.misses = 0, 0
	metrics().size.Set(0)
}

// Stats returns the current counters. HitRate is formatted like "66.67%".
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate := 0.0
	if total := c.hits + c.misses; total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}
	return Stats{
		Entries: c.store.ItemCount(),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: fmt.Sprintf("%.2f%%", rate),
	}
}
