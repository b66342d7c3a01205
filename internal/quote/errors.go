package quote

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failed fetch.
type Kind int

const (
	// Transport covers network and proxy failures, and hangs past the deadline.
	Transport Kind = iota
	// NotFound means the upstream answered but had no data for the symbol.
	NotFound
	// RateLimited means the upstream (or the local limiter) refused the call.
	RateLimited
	// Malformed means the payload did not have the expected shape.
	Malformed
)

var (
	ErrTransport   = errors.New("transport failure")
	ErrNotFound    = errors.New("symbol not found")
	ErrRateLimited = errors.New("rate limited")
	ErrMalformed   = errors.New("malformed payload")
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case RateLimited:
		return "rate_limited"
	case Malformed:
		return "malformed"
	default:
		return "transport"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case NotFound:
		return ErrNotFound
	case RateLimited:
		return ErrRateLimited
	case Malformed:
		return ErrMalformed
	default:
		return ErrTransport
	}
}

// FetchError is the failure returned by every Fetcher in this module.
type FetchError struct {
	Symbol string
	Kind   Kind
	Err    error
}

// Fail builds a *FetchError. err may be nil.
func Fail(symbol string, kind Kind, err error) *FetchError {
	return &FetchError{Symbol: symbol, Kind: kind, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.Symbol, e.Kind.sentinel())
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Symbol, e.Kind.sentinel(), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *FetchError) Is(target error) bool { return target == e.Kind.sentinel() }

// KindOf classifies any error. Errors that are not a *FetchError, including
// context deadline and cancellation, count as Transport.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Transport
}

// AsFetchError wraps err into a *FetchError for symbol unless it already is one.
func AsFetchError(symbol string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Fail(symbol, Transport, fmt.Errorf("timed out: %w", err))
	}
	return Fail(symbol, Transport, err)
}
