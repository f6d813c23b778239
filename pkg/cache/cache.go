// Package cache is a small in-process read-through memo with singleflight
// load collapsing. It exists to keep hot catalog reads off the database; it
// is never used for correctness-bearing state, which lives in the shared
// stores.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Options struct {
	TTL        time.Duration
	MaxEntries int
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

type Cache struct {
	mu    sync.RWMutex
	items map[string]*entry
	order []string
	opts  Options
	sf    singleflight.Group
}

func New(opts Options) *Cache {
	return &Cache{
		items: make(map[string]*entry),
		order: make([]string, 0, 16),
		opts:  opts,
	}
}

// Loader computes a value on miss. ok=false means "nothing to cache"; the
// error is returned to the caller uncached.
type Loader func(ctx context.Context, key string) (interface{}, bool, error)

type loadResult struct {
	val interface{}
	ok  bool
	err error
}

// Get returns the cached value for key, loading it (once, even under
// concurrent misses) when absent or expired.
func (c *Cache) Get(ctx context.Context, key string, loader Loader) (interface{}, bool, error) {
	now := time.Now()
	c.mu.RLock()
	if e, ok := c.items[key]; ok && now.Before(e.expiresAt) {
		val := e.value
		c.mu.RUnlock()
		return val, true, nil
	}
	c.mu.RUnlock()

	result, _, _ := c.sf.Do(key, func() (interface{}, error) {
		val, ok, err := loader(ctx, key)
		if ok {
			c.Set(key, val)
		}
		return loadResult{val: val, ok: ok, err: err}, nil
	})
	res := result.(loadResult)
	if !res.ok {
		return nil, false, res.err
	}
	return res.val, true, nil
}

// Set stores a value with the configured TTL.
func (c *Cache) Set(key string, val interface{}) {
	e := &entry{value: val, expiresAt: time.Now().Add(c.opts.TTL)}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = e
	c.evictIfNeeded()
}

// Invalidate drops a key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of cached entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictIfNeeded drops oldest-inserted entries over the cap. FIFO, not true
// LRU; the stakes of a miss here are one extra catalog query.
func (c *Cache) evictIfNeeded() {
	if c.opts.MaxEntries <= 0 || len(c.items) <= c.opts.MaxEntries {
		return
	}
	excess := len(c.items) - c.opts.MaxEntries
	for excess > 0 && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		delete(c.items, victim)
		excess--
	}
}
