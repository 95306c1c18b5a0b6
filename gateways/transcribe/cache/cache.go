// Package cache stores transcription results keyed by source URL so repeat
// submissions within the TTL window skip the download and the upstream call.
package cache

import (
	"encoding/json"
	"sync"
	"time"
)

// Cache is the response-cache contract used by the pipeline. Get must treat
// an entry older than the TTL as absent even if a sweep has not run yet.
type Cache interface {
	Get(url string) (json.RawMessage, bool)
	Put(url string, result json.RawMessage)
	Sweep()
}

type entry struct {
	result   json.RawMessage
	storedAt time.Time
}

// TTLCache is an in-memory Cache with lazy expiry on Get and an optional
// background sweep that bounds memory.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]entry

	ttl time.Duration
	now func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a TTLCache and starts a background sweeper. The sweep interval
// must not exceed the TTL, otherwise entries would be dropped late and memory
// would grow past one TTL window.
func New(ttl, sweepInterval time.Duration) *TTLCache {
	c := &TTLCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}

	if sweepInterval > 0 {
		go c.sweepLoop(sweepInterval)
	}
	return c
}

// NewWithClock creates a TTLCache without a background sweeper, reading time
// from the given clock. Intended for tests.
func NewWithClock(ttl time.Duration, now func() time.Time) *TTLCache {
	return &TTLCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     now,
		done:    make(chan struct{}),
	}
}

func (c *TTLCache) Get(url string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, url)
		return nil, false
	}
	return e.result, true
}

func (c *TTLCache) Put(url string, result json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[url] = entry{
		result:   result,
		storedAt: c.now(),
	}
}

// Sweep removes every expired entry.
func (c *TTLCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for url, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, url)
		}
	}
}

// Len reports the number of physically present entries, expired or not.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Stop terminates the background sweeper.
func (c *TTLCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

func (c *TTLCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.done:
			return
		}
	}
}
