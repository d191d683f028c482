package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/feed"
)

var _ SyncerInterface = (*Syncer)(nil)

var ErrSyncInProgress = errors.New("sync already in progress")

const (
	DefaultWorkerCount     = 5
	DefaultRetryBaseDelay  = time.Second
	DefaultFreshnessWindow = time.Hour
)

type SyncerConfig struct {
	WorkerCount     int
	FetchRetries    int
	RetryBaseDelay  time.Duration
	FreshnessWindow time.Duration
}

// SourceResult is the outcome of one source in a sync. Exactly one of
// Articles or Err is meaningful.
type SourceResult struct {
	Source   database.Source
	Articles []database.Article
	Err      error
	Retries  int
}

type SyncReport struct {
	RunID      string
	Generation int64
	Stored     int
	Results    []SourceResult
	Replaced   bool
	Duration   time.Duration
}

func (r *SyncReport) FailedSources() int {
	failed := 0
	for _, result := range r.Results {
		if result.Err != nil {
			failed++
		}
	}
	return failed
}

type Syncer struct {
	sourceRepo      database.SourceRepository
	articleRepo     database.ArticleRepository
	cacheRepo       database.CacheRepository
	fetcher         FetcherInterface
	parser          *feed.Parser
	workerCount     int
	fetchRetries    int
	retryBaseDelay  time.Duration
	freshnessWindow time.Duration
	now             func() time.Time
	mu              sync.Mutex
}

func NewSyncer(sourceRepo database.SourceRepository, articleRepo database.ArticleRepository,
	cacheRepo database.CacheRepository, fetcher FetcherInterface, parser *feed.Parser, config SyncerConfig) *Syncer {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultWorkerCount
	}
	if config.FetchRetries < 0 {
		config.FetchRetries = 0
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if config.FreshnessWindow <= 0 {
		config.FreshnessWindow = DefaultFreshnessWindow
	}

	return &Syncer{
		sourceRepo:      sourceRepo,
		articleRepo:     articleRepo,
		cacheRepo:       cacheRepo,
		fetcher:         fetcher,
		parser:          parser,
		workerCount:     config.WorkerCount,
		fetchRetries:    config.FetchRetries,
		retryBaseDelay:  config.RetryBaseDelay,
		freshnessWindow: config.FreshnessWindow,
		now:             time.Now,
	}
}

// Run performs one full sync: every enabled source is fetched in parallel and
// the merged result replaces the stored articles in one generation swap.
// Failed sources are skipped. When no source succeeds the current generation
// is kept.
func (s *Syncer) Run(ctx context.Context) (*SyncReport, error) {
	if !s.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.mu.Unlock()

	start := time.Now()
	report := &SyncReport{RunID: uuid.NewString()}

	slog.Info("Sync started", "run_id", report.RunID)

	if purged, err := s.articleRepo.PurgeExpired(ctx); err != nil {
		slog.Warn("Failed to purge expired articles", "run_id", report.RunID, "error", err)
	} else if purged > 0 {
		slog.Info("Expired articles purged", "run_id", report.RunID, "count", purged)
	}

	sources, err := s.sourceRepo.ListEnabledSources(ctx)
	if err != nil {
		slog.Error("Sync failed", "run_id", report.RunID, "error", err)
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	report.Results = s.fetchAll(ctx, sources)

	succeeded := len(report.Results) - report.FailedSources()
	if succeeded == 0 {
		generation, err := s.articleRepo.GetCurrentGeneration(ctx)
		if err != nil {
			slog.Warn("Failed to read current generation", "run_id", report.RunID, "error", err)
		}
		report.Generation = generation
		report.Duration = time.Since(start)

		slog.Warn("No source succeeded, keeping current articles",
			"run_id", report.RunID,
			"sources", len(sources),
			"generation", generation)
		return report, nil
	}

	articles := mergeResults(report.Results)

	generation, err := s.articleRepo.ReplaceAll(ctx, articles)
	if err != nil {
		slog.Error("Sync failed", "run_id", report.RunID, "articles", len(articles), "error", err)
		report.Duration = time.Since(start)
		return report, fmt.Errorf("failed to replace articles: %w", err)
	}

	report.Generation = generation
	report.Stored = len(articles)
	report.Replaced = true
	report.Duration = time.Since(start)

	slog.Info("Sync completed",
		"run_id", report.RunID,
		"generation", generation,
		"stored", report.Stored,
		"sources", len(sources),
		"failed", report.FailedSources(),
		"duration", report.Duration)

	return report, nil
}

// FetchAndStore returns the items of a single source, served from the feed
// cache while the entry is fresh and fetched live otherwise.
func (s *Syncer) FetchAndStore(ctx context.Context, url string) ([]database.Article, error) {
	items, fresh, err := s.cacheRepo.GetIfFresh(ctx, url, s.freshnessWindow)
	if err != nil {
		slog.Warn("Failed to read feed cache", "url", url, "error", err)
	} else if fresh {
		slog.Debug("Feed cache hit", "url", url, "items", len(items))
		return items, nil
	}

	task := NewFetchSourceTask(database.Source{Name: url, URL: url, Enabled: true}, s.fetcher, s.parser, s.now)
	task.MaxRetries = s.fetchRetries
	if err := s.executeWithRetry(ctx, task); err != nil {
		return nil, err
	}

	if err := s.cacheRepo.Put(ctx, url, task.Articles); err != nil {
		return nil, fmt.Errorf("failed to store feed cache: %w", err)
	}

	slog.Info("Task completed",
		"type", string(task.Type),
		"source", url,
		"articles", len(task.Articles),
		"duration", task.GetDuration())

	return task.Articles, nil
}

// fetchAll runs one FetchSourceTask per source on a bounded worker pool.
// Results keep the order of sources.
func (s *Syncer) fetchAll(ctx context.Context, sources []database.Source) []SourceResult {
	results := make([]SourceResult, len(sources))
	if len(sources) == 0 {
		return results
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	for id := 0; id < min(s.workerCount, len(sources)); id++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.executeTask(ctx, workerID, sources[i])
			}
		}(id)
	}

	for i := range sources {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func (s *Syncer) executeTask(ctx context.Context, workerID int, source database.Source) SourceResult {
	task := NewFetchSourceTask(source, s.fetcher, s.parser, s.now)
	task.MaxRetries = s.fetchRetries

	if err := s.executeWithRetry(ctx, task); err != nil {
		slog.Warn("Source skipped",
			"worker_id", workerID,
			"source", source.Name,
			"url", source.URL,
			"retry_count", task.GetRetryCount(),
			"error", err)
		return SourceResult{Source: source, Err: err, Retries: task.GetRetryCount()}
	}

	slog.Info("Task completed",
		"worker_id", workerID,
		"type", string(task.GetType()),
		"source", source.Name,
		"articles", len(task.Articles),
		"retry_count", task.GetRetryCount(),
		"duration", task.GetDuration())
	return SourceResult{Source: source, Articles: task.Articles, Retries: task.GetRetryCount()}
}

// executeWithRetry runs task until it succeeds or fails for good. Only
// ErrSourceUnavailable is retried, with exponential backoff.
func (s *Syncer) executeWithRetry(ctx context.Context, task TaskInterface) error {
	task.Start()

	for {
		err := task.Execute(ctx)
		if err == nil {
			return nil
		}

		if !errors.Is(err, feed.ErrSourceUnavailable) || !task.CanRetry() || ctx.Err() != nil {
			return err
		}

		task.IncrementRetryCount()
		delay := retryDelay(s.retryBaseDelay, task.GetRetryCount())

		slog.Warn("Task retry scheduled",
			"type", string(task.GetType()),
			"id", task.GetID(),
			"source", task.GetSourceName(),
			"retry_count", task.GetRetryCount(),
			"max_retries", task.GetMaxRetries(),
			"delay", delay.String(),
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", feed.ErrSourceUnavailable, ctx.Err())
		case <-timer.C:
		}
	}
}

// mergeResults concatenates successful results in registry order and sorts
// newest first. Equal pub dates keep registry order, then feed order.
func mergeResults(results []SourceResult) []database.Article {
	var merged []database.Article
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		merged = append(merged, result.Articles...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PubDate.After(merged[j].PubDate)
	})

	for i := range merged {
		merged[i].Position = i
	}

	return merged
}
