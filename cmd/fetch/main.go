// Command fetch reconciles a set of symbols once and prints the result as
// JSON, without touching the saved watchlist. It is meant for checking the
// upstream and proxy settings.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"quotewatch/internal/app"
	"quotewatch/internal/config"
	"quotewatch/internal/logger"
	"quotewatch/internal/reconcile"
)

func main() {
	var symbolsCSV string
	var configPath string
	var market string

	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "2330,2317"), "comma-separated symbols")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json or config.yaml (optional)")
	flag.StringVar(&market, "market", "", "override the market prefix (tse or otc)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if market != "" {
		cfg.TWSE.Market = strings.ToLower(market)
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Log

	symbols := splitCSV(symbolsCSV)
	if len(symbols) == 0 {
		log.Fatal("no symbols provided")
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("build app", zap.Error(err))
	}
	defer a.Close()

	res, err := a.Refresh(context.Background(), symbols)
	if err != nil && !errors.Is(err, reconcile.ErrAllFailed) {
		log.Fatal("refresh", zap.Error(err))
	}
	log.Info("reconciled",
		zap.Stringer("status", res.Status),
		zap.Int("snapshots", len(res.Snapshots)),
		zap.Strings("failed", res.FailedSymbols()))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	_ = enc.Encode(res)

	if err != nil {
		logger.Sync()
		os.Exit(1)
	}
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

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
