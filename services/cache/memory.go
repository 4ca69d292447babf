package cachesvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
)

type entry struct {
	data    []byte
	expires time.Time
}

// MemoryCache is the in-process Cache used when no Redis is configured. Values go through JSON
// like they do with Redis, so callers never share memory with the cache.
type MemoryCache struct {
	mu      sync.RWMutex
	gen     int64
	entries map[string]entry
	ttl     time.Duration
	now     core.NowFunc
}

var _ core.Cache = (*MemoryCache)(nil)

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry), ttl: ttl, now: core.UTCNow}
}

// SetNowFunc replaces the clock used for expiry.
func (c *MemoryCache) SetNowFunc(now core.NowFunc) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *MemoryCache) Get(_ context.Context, key string, dest interface{}) (int64, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	gen := c.gen
	now := c.now()
	c.mu.RUnlock()

	if !ok || (!e.expires.IsZero() && !now.Before(e.expires)) {
		return gen, false, nil
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return gen, false, errors.Wrap(err, "decoding value")
	}
	return gen, true, nil
}

// Set drops the value when the cache was flushed after gen was read.
func (c *MemoryCache) Set(_ context.Context, gen int64, key string, val interface{}) error {
	data, err := json.Marshal(val)
	if err != nil {
		return errors.Wrap(err, "encoding value")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	e := entry{data: data}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Flush(context.Context) error {
	c.mu.Lock()
	c.gen++
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
