package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"quotewatch/internal/app"
	"quotewatch/internal/export"
	"quotewatch/internal/reconcile"
	"quotewatch/internal/watchlist"
)

type server struct {
	app *app.App
	log *zap.Logger
	now func() time.Time
}

func newServer(a *app.App) *server {
	return &server{app: a, log: a.Log.Named("http"), now: time.Now}
}

type quotesResponse struct {
	reconcile.Result
	Warning string         `json:"warning,omitempty"`
	Summary export.Summary `json:"summary"`
}

type errorResponse struct {
	Error    string              `json:"error"`
	Failures []reconcile.Failure `json:"failures,omitempty"`
}

func (s *server) routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	api.HandleFunc("/api/quotes", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodPost:
			s.handleQuotes(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	api.HandleFunc("/api/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleExport(w, r)
	})

	// promhttp negotiates its own compression
	root := http.NewServeMux()
	root.Handle("/metrics", promhttp.Handler())
	root.Handle("/", withGzip(api))

	return s.logRequests(s.recoverPanic(withCORS(limitBody(root))))
}

func (s *server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	symbols, ok := readSymbols(w, r)
	if !ok {
		return
	}
	res, err := s.app.Refresh(r.Context(), symbols)
	if err != nil {
		s.writeFailure(w, res, err)
		return
	}
	setFailedHeader(w, res)
	writeJSON(w, http.StatusOK, quotesResponse{
		Result:  res,
		Warning: res.Warning(),
		Summary: export.Summarize(res.Snapshots),
	})
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	symbols, ok := readSymbols(w, r)
	if !ok {
		return
	}
	res, err := s.app.Refresh(r.Context(), symbols)
	if err != nil {
		s.writeFailure(w, res, err)
		return
	}
	var buf bytes.Buffer
	if err := s.app.Exporter.Export(&buf, res.Snapshots); err != nil {
		s.log.Error("export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "export failed"})
		return
	}
	setFailedHeader(w, res)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(s.now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *server) writeFailure(w http.ResponseWriter, res reconcile.Result, err error) {
	if errors.Is(err, reconcile.ErrAllFailed) {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Failures: res.Failures})
		return
	}
	s.log.Error("refresh", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

type postBody struct {
	Symbols []string `json:"symbols"`
}

// readSymbols takes symbols from ?symbols=a,b or a JSON body on POST. It
// writes a 400 and returns false when the list is empty or longer than a
// watchlist.
func readSymbols(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var symbols []string
	if r.Method == http.MethodPost {
		var b postBody
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&b); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return nil, false
		}
		symbols = b.Symbols
	} else {
		symbols = splitCSV(r.URL.Query().Get("symbols"))
	}
	if len(symbols) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing symbols"})
		return nil, false
	}
	if len(symbols) > watchlist.Capacity {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("too many symbols (max %d)", watchlist.Capacity)})
		return nil, false
	}
	return symbols, true
}

func setFailedHeader(w http.ResponseWriter, res reconcile.Result) {
	if res.Status == reconcile.Partial {
		w.Header().Set("X-Failed-Symbols", strings.Join(res.FailedSymbols(), ","))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
