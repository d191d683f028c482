package tasks

import (
	"context"

	"github.com/lysyi3m/rss-digest/app/database"
)

// SyncerInterface is what the HTTP layer and the entrypoint need from a Syncer.
//
//	syncer := NewSyncer(sourceRepo, articleRepo, cacheRepo, fetcher, parser, SyncerConfig{...})
//	report, err := syncer.Run(ctx)
type SyncerInterface interface {
	Run(ctx context.Context) (*SyncReport, error)
	FetchAndStore(ctx context.Context, url string) ([]database.Article, error)
}

type FetcherInterface interface {
	Run(ctx context.Context, url string) ([]byte, error)
}
