package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quotewatch/internal/quote"
)

// entry stores a cached snapshot for a single symbol with expiry.
type entry struct {
	expiresAt time.Time
	snap      quote.Snapshot
}

// Fetcher caches successful snapshots per symbol for a TTL.
// Failures are never cached so a later fetch always reaches the upstream.
// Concurrent misses for the same symbol share one upstream call.
type Fetcher struct {
	F        quote.Fetcher
	TTL      time.Duration
	MaxItems int

	// now is swapped in tests.
	now func() time.Time

	mu    sync.RWMutex
	items map[string]entry // key: normalized symbol
	sf    singleflight.Group
}

func (c *Fetcher) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// Fetch returns the cached snapshot when valid, otherwise asks the wrapped fetcher.
func (c *Fetcher) Fetch(ctx context.Context, symbol string) (quote.Snapshot, error) {
	if c.TTL <= 0 {
		return c.F.Fetch(ctx, symbol)
	}
	key := quote.NormalizeSymbol(symbol)

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if ok && c.clock().Before(e.expiresAt) {
		return e.snap.Clone(), nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		s, err := c.F.Fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		c.store(key, s)
		return s, nil
	})
	if err != nil {
		return quote.Snapshot{}, err
	}
	return v.(quote.Snapshot).Clone(), nil
}

func (c *Fetcher) store(key string, s quote.Snapshot) {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[key] = entry{expiresAt: now.Add(c.TTL), snap: s.Clone()}

	// best-effort cap cache size: expired first, then arbitrary
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		for k, v := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if !now.Before(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k != key {
				delete(c.items, k)
			}
		}
	}
}

// Len reports the number of cached symbols, expired or not.
func (c *Fetcher) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
