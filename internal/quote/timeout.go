package quote

import (
	"context"
	"fmt"
	"time"
)

// timeoutFetcher bounds each call to d. The inner call keeps running in the
// background when the deadline passes; its result is discarded.
type timeoutFetcher struct {
	f Fetcher
	d time.Duration
}

// WithTimeout wraps f so that every Fetch completes or fails within d.
// A hang is reported as Transport. d <= 0 returns f unchanged.
func WithTimeout(f Fetcher, d time.Duration) Fetcher {
	if d <= 0 {
		return f
	}
	return &timeoutFetcher{f: f, d: d}
}

type fetchResult struct {
	snap Snapshot
	err  error
}

func (t *timeoutFetcher) Fetch(ctx context.Context, symbol string) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	ch := make(chan fetchResult, 1)
	go func() {
		s, err := t.f.Fetch(ctx, symbol)
		ch <- fetchResult{s, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return Snapshot{}, AsFetchError(symbol, r.err)
		}
		return r.snap, nil
	case <-ctx.Done():
		return Snapshot{}, Fail(symbol, Transport, fmt.Errorf("no response within %s: %w", t.d, ctx.Err()))
	}
}
