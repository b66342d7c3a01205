package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"quotewatch/internal/app"
	"quotewatch/internal/config"
	"quotewatch/internal/logger"
	"quotewatch/internal/watchlist"
)

// session is the state one command works on: the engine and the persisted
// watchlist.
type session struct {
	app       *app.App
	list      *watchlist.Store
	statePath string
}

// stdout and openSession are replaced in tests.
var (
	stdout      io.Writer = os.Stdout
	stderr      io.Writer = os.Stderr
	openSession           = openFromConfig
)

func openFromConfig() (*session, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(cfg, logger.Log)
	if err != nil {
		return nil, err
	}
	list, err := watchlist.LoadFile(cfg.Watchlist.StatePath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	return &session{app: a, list: list, statePath: cfg.Watchlist.StatePath}, nil
}

func (s *session) save() error {
	if err := s.list.SaveFile(s.statePath); err != nil {
		return fmt.Errorf("save watchlist: %w", err)
	}
	return nil
}

func (s *session) close() {
	if err := s.app.Close(); err != nil {
		s.app.Log.Warn("close", zap.Error(err))
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(stderr, "Error: "+format+"\n", args...)
}
