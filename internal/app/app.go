// Package app wires configuration into a ready-to-use engine shared by the
// command-line tool and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"quotewatch/internal/config"
	"quotewatch/internal/export"
	"quotewatch/internal/httpx"
	"quotewatch/internal/metrics"
	"quotewatch/internal/overlay"
	"quotewatch/internal/quote"
	"quotewatch/internal/quote/cache"
	"quotewatch/internal/quote/ratelimit"
	"quotewatch/internal/quote/twse"
	"quotewatch/internal/reconcile"
)

// misReferer is sent with every upstream call; the MIS endpoint answers
// requests without it with an empty payload.
const misReferer = "https://mis.twse.com.tw/stock/index.jsp"

// App bundles the configured components.
type App struct {
	Config     config.Config
	Log        *zap.Logger
	Reconciler *reconcile.Reconciler
	Overlay    *overlay.Store
	Exporter   *export.Exporter

	closers []func() error
}

// New builds an App from cfg. Call Close when done.
func New(cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := httpx.New(cfg.Server.RequestTimeout())
	f := NewFetcher(cfg.TWSE, httpClient)

	backend, closeBackend, err := OpenOverlayBackend(cfg.Overlay)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:     cfg,
		Log:        log,
		Reconciler: NewReconciler(cfg.TWSE, f, log),
		Overlay:    overlay.NewStore(backend, overlay.WithLogger(log.Named("overlay"))),
		Exporter:   NewExporter(cfg.Export),
	}
	if closeBackend != nil {
		a.closers = append(a.closers, closeBackend)
	}
	return a, nil
}

// NewFetcher stacks the upstream client with its rate limit, cache and
// instrumentation: twse -> limiter -> cache -> metrics.
func NewFetcher(cfg config.TWSE, httpClient twse.HTTPClient) quote.Fetcher {
	opts := []twse.Option{
		twse.WithEndpoint(cfg.Endpoint),
		twse.WithMarket(cfg.Market),
		twse.WithHTTPClient(httpClient),
		twse.WithHeader(http.Header{"Referer": []string{misReferer}}),
	}
	if cfg.Proxy != "" {
		opts = append(opts, twse.WithProxy(cfg.Proxy))
	}
	var f quote.Fetcher = twse.New(opts...)
	if cfg.MaxRequestsPerMinute > 0 {
		f = ratelimit.NewLimiter(f, float64(cfg.MaxRequestsPerMinute), cfg.Burst)
	} else if cfg.MinRequestIntervalMs > 0 {
		f = &ratelimit.MinInterval{F: f, Interval: cfg.MinInterval()}
	}
	if cfg.CacheTTLSeconds > 0 {
		f = &cache.Fetcher{F: f, TTL: cfg.CacheTTL(), MaxItems: cfg.CacheMaxItems}
	}
	return metrics.InstrumentFetcher(f)
}

// NewReconciler applies the per-fetch timeout and concurrency cap from cfg.
func NewReconciler(cfg config.TWSE, f quote.Fetcher, log *zap.Logger) *reconcile.Reconciler {
	return reconcile.New(f,
		reconcile.WithFetchTimeout(cfg.FetchTimeout()),
		reconcile.WithMaxConcurrency(cfg.MaxConcurrency),
		reconcile.WithLogger(log.Named("reconcile")),
	)
}

// NewExporter builds an exporter from cfg.
func NewExporter(cfg config.Export) *export.Exporter {
	return export.New(
		export.WithTitle(cfg.Title),
		export.WithLocale(cfg.Locale),
		export.WithExtraFields(cfg.ExtraFields...),
	)
}

// OpenOverlayBackend opens the configured overlay backend. The returned close
// function may be nil.
func OpenOverlayBackend(cfg config.Overlay) (overlay.Backend, func() error, error) {
	switch cfg.Backend {
	case "redis":
		rdb, err := overlay.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return overlay.NewRedisBackend(rdb, cfg.RedisPrefix), rdb.Close, nil
	case "file", "":
		b, err := overlay.OpenFile(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown overlay backend %q", cfg.Backend)
	}
}

// Refresh reconciles symbols and lays the stored overlays over the fetched
// snapshots. A batch where every fetch failed returns its result together
// with an error matching reconcile.ErrAllFailed.
func (a *App) Refresh(ctx context.Context, symbols []string) (reconcile.Result, error) {
	res, err := a.Reconciler.Reconcile(ctx, symbols)
	if err != nil && !errors.Is(err, reconcile.ErrAllFailed) {
		return res, err
	}
	snaps, oerr := a.Overlay.Apply(ctx, res.Snapshots)
	if oerr != nil {
		return res, oerr
	}
	res.Snapshots = snaps
	return res, err
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
