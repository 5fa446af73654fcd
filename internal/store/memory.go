package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrNotFound is returned when a key is absent or its entry has expired.
	ErrNotFound = errors.New("no cached payload for key")
)

type entry struct {
	value    any
	storedAt time.Time
}

// MemoryCache is a concurrency-safe in-memory cache of fetched source payloads.
type MemoryCache struct {
	mu sync.RWMutex

	// key: source|lat|lon|start|end
	data map[string]entry
	// insertion order, oldest first
	order []string

	// retention configuration
	maxEntries int           // max number of cached payloads
	maxAge     time.Duration // optional max age for entries

	clock clockwork.Clock
}

// NewMemoryCache creates a MemoryCache with optional limits.
// If maxEntries or maxAge is <= 0, that limit is treated as unlimited.
func NewMemoryCache(maxEntries int, maxAge time.Duration, clock clockwork.Clock) *MemoryCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryCache{
		data:       make(map[string]entry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		clock:      clock,
	}
}

// Set stores value under key and enforces retention.
func (c *MemoryCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.data[key]; ok {
		c.removeFromOrder(key)
	}
	c.data[key] = entry{value: value, storedAt: c.clock.Now()}
	c.order = append(c.order, key)

	c.evictExpired()

	// Enforce retention by count.
	if c.maxEntries > 0 && len(c.order) > c.maxEntries {
		over := len(c.order) - c.maxEntries
		for _, k := range c.order[:over] {
			delete(c.data, k)
		}
		c.order = c.order[over:]
	}
}

// Get returns the cached value for key. Expired entries are misses.
func (c *MemoryCache) Get(key string) (any, bool) {
	v, err := c.Lookup(key)
	return v, err == nil
}

// Lookup is Get with ErrNotFound for misses.
func (c *MemoryCache) Lookup(key string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key]
	if !ok || c.expired(e) {
		return nil, ErrNotFound
	}
	return e.value, nil
}

// Len reports the number of live entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, e := range c.data {
		if !c.expired(e) {
			n++
		}
	}
	return n
}

func (c *MemoryCache) expired(e entry) bool {
	return c.maxAge > 0 && c.clock.Since(e.storedAt) > c.maxAge
}

// evictExpired drops expired entries from the front of the order. Entries are
// appended in time order, so the first live one ends the scan.
func (c *MemoryCache) evictExpired() {
	if c.maxAge <= 0 {
		return
	}
	i := 0
	for ; i < len(c.order); i++ {
		if !c.expired(c.data[c.order[i]]) {
			break
		}
		delete(c.data, c.order[i])
	}
	c.order = c.order[i:]
}

func (c *MemoryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
