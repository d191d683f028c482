package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-digest/app/api"
	"github.com/lysyi3m/rss-digest/app/cfg"
	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/feed"
	"github.com/lysyi3m/rss-digest/app/logging"
	"github.com/lysyi3m/rss-digest/app/tasks"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := cfg.Load()
	if err != nil {
		return err
	}
	if config == nil {
		// Help was shown
		return nil
	}

	_, closeLog := logging.Setup(config.Debug, config.LogFile)
	defer closeLog()

	if err := cfg.ApplyTimezone(config.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", config.Timezone, "error", err)
	}

	slog.Info("Starting RSS Digest", "version", config.Version, "sync_only", config.SyncOnly)

	db, err := database.NewConnection(config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", db.Path(), "schema_version", version, "dirty", dirty)

	sourceRepo := database.NewSourceRepository(db)
	articleRepo := database.NewArticleRepository(db)
	cacheRepo := database.NewCacheRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configCache := feed.NewConfigCache(config.FeedsDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load feed sources: %w", err)
	}
	slog.Info("Feed sources loaded", "dir", config.FeedsDir, "count", configCache.GetConfigCount())

	registryTask := tasks.NewSyncSourcesTask(configCache.GetConfigs(), sourceRepo)
	registryTask.Start()
	if err := registryTask.Execute(ctx); err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: config.FetchTimeout + 5*time.Second}
	syncer := tasks.NewSyncer(sourceRepo, articleRepo, cacheRepo,
		feed.NewFetcher(httpClient, config.UserAgent, config.FetchTimeout),
		feed.NewParser(),
		tasks.SyncerConfig{
			WorkerCount:     config.WorkerCount,
			FetchRetries:    config.FetchRetries,
			FreshnessWindow: config.FreshnessWindow,
		})

	if config.SyncOnly {
		report, err := syncer.Run(ctx)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		slog.Info("Sync finished",
			"run_id", report.RunID,
			"stored", report.Stored,
			"failed_sources", report.FailedSources(),
			"replaced", report.Replaced)
		return nil
	}

	if config.SyncInterval > 0 {
		go runPeriodicSync(ctx, syncer, config.SyncInterval)
	}

	handler := api.NewHandler(articleRepo, sourceRepo, syncer, config.Version)
	httpServer := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      api.NewServer(handler, config.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", config.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("RSS Digest shutdown complete")
	return nil
}

// runPeriodicSync triggers a sync every interval until ctx is done.
func runPeriodicSync(ctx context.Context, syncer tasks.SyncerInterface, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Periodic sync enabled", "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := syncer.Run(ctx); err != nil {
				if errors.Is(err, tasks.ErrSyncInProgress) {
					slog.Debug("Periodic sync skipped, another sync is running")
					continue
				}
				slog.Error("Periodic sync failed", "error", err)
			}
		}
	}
}
