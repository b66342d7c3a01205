package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Server struct {
	Port              string `json:"port" yaml:"port" validate:"required,numeric"`
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec" validate:"gte=1"`
}

type TWSE struct {
	Endpoint string `json:"endpoint" yaml:"endpoint" validate:"required,url"`
	Market   string `json:"market" yaml:"market" validate:"oneof=tse otc"`
	// Proxy is an optional URL template; {url} is replaced with the escaped
	// upstream URL.
	Proxy                string `json:"proxy" yaml:"proxy" validate:"omitempty,contains={url}"`
	FetchTimeoutSec      int    `json:"fetch_timeout_sec" yaml:"fetch_timeout_sec" validate:"gte=1"`
	// MaxConcurrency caps in-flight fetches per batch; 0 fetches every symbol at once.
	MaxConcurrency       int    `json:"max_concurrency" yaml:"max_concurrency" validate:"gte=0"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute" validate:"gte=0"`
	MinRequestIntervalMs int    `json:"min_request_interval_ms" yaml:"min_request_interval_ms" validate:"gte=0"`
	Burst                int    `json:"burst" yaml:"burst" validate:"gte=0"`
	CacheTTLSeconds      int    `json:"cache_ttl_sec" yaml:"cache_ttl_sec" validate:"gte=0"`
	CacheMaxItems        int    `json:"cache_max_items" yaml:"cache_max_items" validate:"gte=0"`
}

type Overlay struct {
	Backend     string `json:"backend" yaml:"backend" validate:"oneof=file redis"`
	Path        string `json:"path" yaml:"path" validate:"required_if=Backend file"`
	RedisURL    string `json:"redis_url" yaml:"redis_url" validate:"required_if=Backend redis"`
	RedisPrefix string `json:"redis_prefix" yaml:"redis_prefix"`
}

type Watchlist struct {
	StatePath string `json:"state_path" yaml:"state_path" validate:"required"`
}

type Export struct {
	Dir         string   `json:"dir" yaml:"dir"`
	Title       string   `json:"title" yaml:"title"`
	Locale      string   `json:"locale" yaml:"locale" validate:"required,bcp47_language_tag"`
	ExtraFields []string `json:"extra_fields" yaml:"extra_fields" validate:"dive,required"`
}

type Log struct {
	Level string `json:"level" yaml:"level" validate:"oneof=debug info warn warning error"`
}

type Config struct {
	Server    Server    `json:"server" yaml:"server"`
	TWSE      TWSE      `json:"twse" yaml:"twse"`
	Overlay   Overlay   `json:"overlay" yaml:"overlay"`
	Watchlist Watchlist `json:"watchlist" yaml:"watchlist"`
	Export    Export    `json:"export" yaml:"export"`
	Log       Log       `json:"log" yaml:"log"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		TWSE: TWSE{
			Endpoint:             "https://mis.twse.com.tw/stock/api/getStockInfo.jsp",
			Market:               "tse",
			FetchTimeoutSec:      8,
			MaxConcurrency:       0,
			MaxRequestsPerMinute: 60,
			Burst:                10,
			CacheTTLSeconds:      5,
			CacheMaxItems:        1000,
		},
		Overlay: Overlay{
			Backend: "file",
			Path:    "data/overlay.json",
		},
		Watchlist: Watchlist{StatePath: "data/watchlist.json"},
		Export: Export{
			Dir:    ".",
			Locale: "zh-TW",
			ExtraFields: []string{
				"innerVolume", "outerVolume",
				"foreignInvestor", "investmentTrust", "dealer",
				"chips", "mainBuy", "mainSell",
			},
		},
		Log: Log{Level: "info"},
	}
}

// FetchTimeout bounds a single upstream fetch.
func (t TWSE) FetchTimeout() time.Duration {
	return time.Duration(t.FetchTimeoutSec) * time.Second
}

func (t TWSE) MinInterval() time.Duration {
	return time.Duration(t.MinRequestIntervalMs) * time.Millisecond
}

func (t TWSE) CacheTTL() time.Duration {
	return time.Duration(t.CacheTTLSeconds) * time.Second
}

func (s Server) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSec) * time.Second
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads config from path, JSON or YAML by extension. If path is empty it
// falls back to config.json or config.yaml in the working directory, then to
// defaults. A .env file in the working directory is loaded first without
// overriding variables already set; environment variables then override
// select fields, and the result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return cfg, fmt.Errorf("load .env: %w", err)
		}
	}
	if path == "" {
		for _, p := range []string{"config.json", "config.yaml", "config.yml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func applyEnv(cfg *Config) {
	envString("PORT", &cfg.Server.Port)
	envInt("REQUEST_TIMEOUT_SEC", 1, &cfg.Server.RequestTimeoutSec)

	envString("TWSE_ENDPOINT", &cfg.TWSE.Endpoint)
	envString("TWSE_MARKET", &cfg.TWSE.Market)
	envString("TWSE_PROXY", &cfg.TWSE.Proxy)
	envInt("TWSE_FETCH_TIMEOUT_SEC", 1, &cfg.TWSE.FetchTimeoutSec)
	envInt("TWSE_MAX_CONCURRENCY", 0, &cfg.TWSE.MaxConcurrency)
	envInt("TWSE_MAX_RPM", 0, &cfg.TWSE.MaxRequestsPerMinute)
	envInt("TWSE_MIN_INTERVAL_MS", 0, &cfg.TWSE.MinRequestIntervalMs)
	envInt("TWSE_BURST", 1, &cfg.TWSE.Burst)
	envInt("TWSE_CACHE_TTL_SEC", 0, &cfg.TWSE.CacheTTLSeconds)
	envInt("TWSE_CACHE_MAX_ITEMS", 1, &cfg.TWSE.CacheMaxItems)
	cfg.TWSE.Market = strings.ToLower(cfg.TWSE.Market)

	envString("OVERLAY_BACKEND", &cfg.Overlay.Backend)
	envString("OVERLAY_PATH", &cfg.Overlay.Path)
	envString("REDIS_URL", &cfg.Overlay.RedisURL)
	envString("OVERLAY_REDIS_PREFIX", &cfg.Overlay.RedisPrefix)
	cfg.Overlay.Backend = strings.ToLower(cfg.Overlay.Backend)

	envString("WATCHLIST_STATE", &cfg.Watchlist.StatePath)

	envString("EXPORT_DIR", &cfg.Export.Dir)
	envString("EXPORT_LOCALE", &cfg.Export.Locale)
	if v := os.Getenv("EXPORT_EXTRA_FIELDS"); v != "" {
		cfg.Export.ExtraFields = splitCSV(v)
	}

	envString("LOG_LEVEL", &cfg.Log.Level)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envInt overwrites *dst with the integer in key when it parses and is >= min.
func envInt(key string, min int, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var x int
	if _, err := fmt.Sscanf(v, "%d", &x); err == nil && x >= min {
		*dst = x
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
