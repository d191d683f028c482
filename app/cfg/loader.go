package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./data/rss-digest.db" description:"SQLite database file"`
	FeedsDir string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed source files"`

	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`

	// Sync
	UserAgent       string `long:"user-agent" env:"USER_AGENT" default:"RSS Digest/1.0" description:"User agent string for HTTP requests"`
	FetchTimeout    int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"10" description:"Per-source fetch timeout in seconds"`
	FreshnessWindow int    `long:"cache-duration" env:"RSS_CACHE_DURATION" default:"3600" description:"Per-source cache freshness window in seconds"`
	WorkerCount     int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of sources fetched in parallel"`
	FetchRetries    int    `long:"fetch-retries" env:"FETCH_RETRIES" default:"2" description:"Retries for unavailable sources"`
	SyncInterval    int    `long:"sync-interval" env:"SYNC_INTERVAL" default:"0" description:"Background sync interval in seconds (0 disables)"`
	SyncOnly        bool   `long:"sync-only" env:"SYNC_ONLY" description:"Run one sync and exit"`

	// Application metadata
	LogFile  string `long:"log-file" env:"LOG_FILE" description:"Also write logs to this file, rotated by size"`
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load reads an optional .env file, then flags and environment variables.
// It returns nil, nil when help was requested.
func Load() (*Cfg, error) {
	_ = godotenv.Load()

	return load(os.Args[1:])
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validate(&raw); err != nil {
		return nil, err
	}

	cfg := &Cfg{
		DBPath:          raw.DBPath,
		FeedsDir:        raw.FeedsDir,
		Port:            raw.Port,
		APIAccessKey:    raw.APIAccessKey,
		UserAgent:       raw.UserAgent,
		FetchTimeout:    time.Duration(raw.FetchTimeout) * time.Second,
		FreshnessWindow: time.Duration(raw.FreshnessWindow) * time.Second,
		WorkerCount:     raw.WorkerCount,
		FetchRetries:    raw.FetchRetries,
		SyncInterval:    time.Duration(raw.SyncInterval) * time.Second,
		SyncOnly:        raw.SyncOnly,
		LogFile:         raw.LogFile,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	return cfg, nil
}

func validate(raw *rawCfg) error {
	positiveFields := map[string]int{
		"fetch timeout":  raw.FetchTimeout,
		"cache duration": raw.FreshnessWindow,
		"worker count":   raw.WorkerCount,
	}
	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	nonNegativeFields := map[string]int{
		"fetch retries": raw.FetchRetries,
		"sync interval": raw.SyncInterval,
	}
	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if raw.DBPath == "" {
		return fmt.Errorf("database path is required")
	}

	return nil
}

// ApplyTimezone sets time.Local for timestamps rendered by the service.
func ApplyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	slog.Debug("Timezone configured", "timezone", timezone)
	return nil
}
