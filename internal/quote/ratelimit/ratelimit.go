package ratelimit

import (
	"context"
	"sync"
	"time"

	"quotewatch/internal/quote"
)

// MinInterval wraps a fetcher and enforces a minimum time between calls.
// Concurrent calls will wait until the interval has elapsed since the last call,
// or fail with Transport if the context ends first.
type MinInterval struct {
	F        quote.Fetcher
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) Fetch(ctx context.Context, symbol string) (quote.Snapshot, error) {
	if m.Interval > 0 {
		// reserve a slot so concurrent callers queue up one interval apart
		m.mu.Lock()
		now := time.Now()
		slot := m.next
		if slot.Before(now) {
			slot = now
		}
		m.next = slot.Add(m.Interval)
		m.mu.Unlock()

		if wait := time.Until(slot); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return quote.Snapshot{}, quote.AsFetchError(symbol, ctx.Err())
			case <-t.C:
			}
		}
	}
	return m.F.Fetch(ctx, symbol)
}
