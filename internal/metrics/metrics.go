package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"quotewatch/internal/quote"
)

var (
	// Fetch metrics
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotewatch_fetch_total",
			Help: "Quote fetches by outcome (ok or failure kind)",
		},
		[]string{"outcome"},
	)
	FetchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quotewatch_fetch_latency_seconds",
			Help:    "Time to fetch one quote",
			Buckets: prometheus.DefBuckets,
		})

	// Reconcile metrics
	ReconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotewatch_reconcile_runs_total",
			Help: "Batch reconciliations by status",
		},
		[]string{"status"},
	)
	ReconcileLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quotewatch_reconcile_latency_seconds",
			Help:    "Wall-clock time of one batch reconciliation",
			Buckets: prometheus.DefBuckets,
		})

	// Overlay metrics
	OverlayWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotewatch_overlay_writes_total",
			Help: "Overlay field writes by backend and status",
		},
		[]string{"backend", "status"},
	)

	// Export metrics
	ExportRows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quotewatch_export_rows_total",
			Help: "Rows written to exported snapshots",
		})
)

func init() {
	// MustRegister panics if registration fails (e.g. duplicate)
	prometheus.MustRegister(
		FetchTotal,
		FetchLatency,
		ReconcileRuns,
		ReconcileLatency,
		OverlayWrites,
		ExportRows,
	)
}

// Status returns "success" or "error" for metrics.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

type instrumented struct{ f quote.Fetcher }

// InstrumentFetcher counts outcomes and observes latency of every fetch.
func InstrumentFetcher(f quote.Fetcher) quote.Fetcher { return instrumented{f} }

func (i instrumented) Fetch(ctx context.Context, symbol string) (quote.Snapshot, error) {
	start := time.Now()
	s, err := i.f.Fetch(ctx, symbol)
	FetchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		FetchTotal.WithLabelValues(quote.KindOf(err).String()).Inc()
		return s, err
	}
	FetchTotal.WithLabelValues("ok").Inc()
	return s, nil
}
