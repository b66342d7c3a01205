package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"quotewatch/internal/quote"
)

// Limiter gates calls with a token bucket.
// When no token can be had before the call's deadline the fetch fails fast
// with RateLimited; it never queues past the deadline and never retries.
type Limiter struct {
	F  quote.Fetcher
	RL *rate.Limiter
}

// NewLimiter allows perMinute calls per minute with the given burst.
func NewLimiter(f quote.Fetcher, perMinute float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{F: f, RL: rate.NewLimiter(rate.Limit(perMinute/60.0), burst)}
}

func (l *Limiter) Fetch(ctx context.Context, symbol string) (quote.Snapshot, error) {
	if l.RL != nil {
		if _, ok := ctx.Deadline(); !ok {
			if !l.RL.Allow() {
				return quote.Snapshot{}, quote.Fail(symbol, quote.RateLimited, fmt.Errorf("local limit of %.2f/s reached", float64(l.RL.Limit())))
			}
		} else if err := l.RL.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return quote.Snapshot{}, quote.AsFetchError(symbol, ctx.Err())
			}
			return quote.Snapshot{}, quote.Fail(symbol, quote.RateLimited, err)
		}
	}
	return l.F.Fetch(ctx, symbol)
}
