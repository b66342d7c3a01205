package main

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quotewatch/internal/app"
	"quotewatch/internal/config"
	"quotewatch/internal/overlay"
	"quotewatch/internal/quote"
	"quotewatch/internal/watchlist"
)

var quotes = map[string]quote.Snapshot{
	"2330": {Symbol: "2330", Name: "TSMC", Last: "580.00", PrevClose: "575.00", Volume: "23456", TradeDate: "20240102"},
	"2317": {Symbol: "2317", Name: "Hon Hai", Last: "105.00", PrevClose: "104.00", Volume: "1000", TradeDate: "20240102"},
}

func newTestServer(t *testing.T) (*server, *app.App) {
	t.Helper()
	f := quote.FetcherFunc(func(_ context.Context, sym string) (quote.Snapshot, error) {
		if s, ok := quotes[sym]; ok {
			return s, nil
		}
		return quote.Snapshot{}, quote.Fail(sym, quote.NotFound, errors.New("no data"))
	})
	b, err := overlay.OpenFile(filepath.Join(t.TempDir(), "overlay.json"))
	require.NoError(t, err)
	cfg := config.Default()
	a := &app.App{
		Config:     cfg,
		Log:        zap.NewNop(),
		Reconciler: app.NewReconciler(cfg.TWSE, f, zap.NewNop()),
		Overlay:    overlay.NewStore(b),
		Exporter:   app.NewExporter(cfg.Export),
	}
	s := newServer(a)
	s.now = func() time.Time { return time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC) }
	return s, a
}

func serve(s *server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.routes().ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rr := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestQuotes_Partial(t *testing.T) {
	// Arrange
	s, a := newTestServer(t)
	require.NoError(t, a.Overlay.SetField(context.Background(), "2330", "2024-01-02", "chips", 3))

	// Act
	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/quotes?symbols=2330,9999,2317", nil))

	// Assert
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "9999", rr.Header().Get("X-Failed-Symbols"))
	require.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var resp struct {
		Status    string           `json:"status"`
		Snapshots []quote.Snapshot `json:"snapshots"`
		Failures  []struct {
			Symbol string `json:"symbol"`
			Kind   string `json:"kind"`
		} `json:"failures"`
		Warning string `json:"warning"`
		Summary struct {
			Priced int `json:"priced"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "partial", resp.Status)
	require.Len(t, resp.Snapshots, 2)
	require.Equal(t, "2330", resp.Snapshots[0].Symbol)
	require.Equal(t, 3.0, resp.Snapshots[0].Extras["chips"])
	require.Equal(t, "2317", resp.Snapshots[1].Symbol)
	require.Len(t, resp.Failures, 1)
	require.Equal(t, "not_found", resp.Failures[0].Kind)
	require.Contains(t, resp.Warning, "failed: 9999 (not_found)")
	require.Equal(t, 2, resp.Summary.Priced)
}

func TestQuotes_Post(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/quotes", strings.NewReader(`{"symbols":["2317"]}`))

	rr := serve(s, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, rr.Header().Get("X-Failed-Symbols"))
	require.Contains(t, rr.Body.String(), `"status":"all_succeeded"`)
}

func TestQuotes_AllFailed(t *testing.T) {
	s, _ := newTestServer(t)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/quotes?symbols=8888,9999", nil))

	require.Equal(t, http.StatusBadGateway, rr.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Contains(t, resp.Error, "could not fetch any of the 2 watched symbols")
}

func TestQuotes_BadRequests(t *testing.T) {
	s, _ := newTestServer(t)
	cases := map[string]*http.Request{
		"missing":  httptest.NewRequest(http.MethodGet, "/api/quotes", nil),
		"too many": httptest.NewRequest(http.MethodGet, "/api/quotes?symbols=1,2,3,4,5,6,7,8,9,10,11", nil),
		"bad body": httptest.NewRequest(http.MethodPost, "/api/quotes", strings.NewReader(`{"tickers":["2330"]}`)),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			rr := serve(s, req)
			require.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}

	rr := serve(s, httptest.NewRequest(http.MethodDelete, "/api/quotes", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestQuotes_TooManyReportsCapacity(t *testing.T) {
	s, _ := newTestServer(t)
	symbols := make([]string, watchlist.Capacity+1)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("%d", 1000+i)
	}

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/quotes?symbols="+strings.Join(symbols, ","), nil))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Equal(t, fmt.Sprintf("too many symbols (max %d)", watchlist.Capacity), resp.Error)
}

func TestExport(t *testing.T) {
	s, _ := newTestServer(t)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/export?symbols=2330,9999", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="watchlist_realtime_2024-01-02.csv"`, rr.Header().Get("Content-Disposition"))
	require.Equal(t, "9999", rr.Header().Get("X-Failed-Symbols"))

	body := strings.TrimPrefix(rr.Body.String(), "\ufeff")
	r := csv.NewReader(strings.NewReader(body))
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	require.NoError(t, err)
	last := recs[len(recs)-1]
	require.Equal(t, []string{"1", "2330", "TSMC", "580.00", "+5.00", "+0.87%"}, last[:6])
}

func TestGzip(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/quotes?symbols=2330", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	rr := serve(s, req)

	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"symbol":"2330"`)
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	serve(s, httptest.NewRequest(http.MethodGet, "/api/quotes?symbols=2330", nil))

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "quotewatch_reconcile_runs_total")
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)
	rr := serve(s, httptest.NewRequest(http.MethodOptions, "/api/quotes", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
