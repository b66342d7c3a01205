// Package reconcile fetches a batch of symbols concurrently and classifies
// the aggregate outcome.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quotewatch/internal/metrics"
	"quotewatch/internal/quote"
)

// Status is the outcome class of one batch.
type Status int

const (
	AllSucceeded Status = iota
	Partial
	AllFailed
)

func (s Status) String() string {
	switch s {
	case Partial:
		return "partial"
	case AllFailed:
		return "all_failed"
	default:
		return "all_succeeded"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ErrAllFailed is matched by the error returned when no symbol could be fetched.
var ErrAllFailed = errors.New("all fetches failed")

// AllFailedError reports a batch with zero successes on a non-empty input.
type AllFailedError struct {
	Failures int
}

func (e *AllFailedError) Error() string {
	return fmt.Sprintf("could not fetch any of the %d watched symbols", e.Failures)
}

func (e *AllFailedError) Is(target error) bool { return target == ErrAllFailed }

// Failure records one symbol that could not be fetched.
type Failure struct {
	Symbol string     `json:"symbol"`
	Kind   quote.Kind `json:"-"`
	Err    error      `json:"-"`
}

func (f Failure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Symbol string `json:"symbol"`
		Kind   string `json:"kind"`
		Error  string `json:"error,omitempty"`
	}{f.Symbol, f.Kind.String(), msg})
}

// Result is the outcome of one batch. Snapshots and Failures follow input order.
type Result struct {
	Snapshots []quote.Snapshot `json:"snapshots"`
	Failures  []Failure        `json:"failures"`
	Status    Status           `json:"status"`
}

// FailedSymbols lists the symbols that could not be fetched, in input order.
func (r Result) FailedSymbols() []string {
	out := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.Symbol)
	}
	return out
}

// Warning is the user-facing note for a partial batch, empty otherwise.
func (r Result) Warning() string {
	if r.Status != Partial {
		return ""
	}
	parts := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		parts = append(parts, fmt.Sprintf("%s (%s)", f.Symbol, f.Kind))
	}
	return fmt.Sprintf("fetched %d of %d symbols; failed: %s",
		len(r.Snapshots), len(r.Snapshots)+len(r.Failures), strings.Join(parts, ", "))
}

// Reconciler drives a quote.Fetcher over a set of symbols.
type Reconciler struct {
	f              quote.Fetcher
	fetchTimeout   time.Duration
	maxConcurrency int
	log            *zap.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithFetchTimeout bounds each individual fetch. There is no batch timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.fetchTimeout = d }
}

// WithMaxConcurrency caps in-flight fetches; n <= 0 means one goroutine per symbol.
func WithMaxConcurrency(n int) Option {
	return func(r *Reconciler) { r.maxConcurrency = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a Reconciler around f.
func New(f quote.Fetcher, opts ...Option) *Reconciler {
	r := &Reconciler{f: f, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.f = quote.WithTimeout(r.f, r.fetchTimeout)
	return r
}

type slot struct {
	snap quote.Snapshot
	err  error
}

// Reconcile fetches every symbol and waits for all of them to settle.
//
// Symbols are normalized and de-duplicated, keeping first occurrences.
// Per-symbol failures are reported in the Result; the returned error is
// non-nil only when the input was non-empty and nothing succeeded, in which
// case it matches ErrAllFailed and the Result still carries the failures.
//
// Cancelling ctx does not interrupt in-flight fetches; a caller that gives up
// on a batch simply ignores its result.
func (r *Reconciler) Reconcile(ctx context.Context, symbols []string) (Result, error) {
	symbols = orderedSet(symbols)
	if len(symbols) == 0 {
		return Result{Snapshots: []quote.Snapshot{}, Failures: []Failure{}, Status: AllSucceeded}, nil
	}

	runID := uuid.NewString()
	log := r.log.With(zap.String("run", runID), zap.Int("symbols", len(symbols)))
	start := time.Now()

	fetchCtx := context.WithoutCancel(ctx)
	slots := make([]slot, len(symbols))
	var g errgroup.Group
	if r.maxConcurrency > 0 {
		g.SetLimit(r.maxConcurrency)
	}
	for i, sym := range symbols {
		g.Go(func() error {
			s, err := r.f.Fetch(fetchCtx, sym)
			slots[i] = slot{snap: s, err: err}
			// never return the error: a failed fetch must not stop the group
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Snapshots: make([]quote.Snapshot, 0, len(symbols)),
		Failures:  make([]Failure, 0),
	}
	for i, sl := range slots {
		if sl.err != nil {
			fe := quote.AsFetchError(symbols[i], sl.err)
			res.Failures = append(res.Failures, Failure{Symbol: symbols[i], Kind: fe.Kind, Err: fe})
			log.Debug("fetch failed", zap.String("symbol", symbols[i]), zap.Stringer("kind", fe.Kind), zap.Error(fe))
			continue
		}
		res.Snapshots = append(res.Snapshots, sl.snap)
	}

	switch {
	case len(res.Snapshots) == 0:
		res.Status = AllFailed
	case len(res.Failures) > 0:
		res.Status = Partial
	default:
		res.Status = AllSucceeded
	}

	metrics.ReconcileRuns.WithLabelValues(res.Status.String()).Inc()
	metrics.ReconcileLatency.Observe(time.Since(start).Seconds())

	switch res.Status {
	case AllFailed:
		err := &AllFailedError{Failures: len(res.Failures)}
		log.Error("reconcile failed", zap.Error(err))
		return res, err
	case Partial:
		log.Warn("reconcile partial", zap.Strings("failed", res.FailedSymbols()), zap.Duration("took", time.Since(start)))
	default:
		log.Info("reconcile ok", zap.Duration("took", time.Since(start)))
	}
	return res, nil
}

// orderedSet normalizes symbols and drops blanks and repeats, keeping order.
func orderedSet(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = quote.NormalizeSymbol(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
