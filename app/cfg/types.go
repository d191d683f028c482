package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath   string
	FeedsDir string

	// HTTP server
	Port         string
	APIAccessKey string

	// Sync
	UserAgent       string
	FetchTimeout    time.Duration
	FreshnessWindow time.Duration
	WorkerCount     int
	FetchRetries    int
	SyncInterval    time.Duration
	SyncOnly        bool

	// Application metadata
	LogFile  string
	Timezone string
	Debug    bool
	Version  string
}
