package database

import (
	"context"
	"time"
)

type SourceRepository interface {
	ListEnabledSources(ctx context.Context) ([]Source, error)
	GetSourceCount(ctx context.Context) (int, error)

	UpsertSource(ctx context.Context, name, url string, enabled bool, position int) error
	DisableSourcesExcept(ctx context.Context, keepNames []string) (int64, error)
}

type ArticleRepository interface {
	GetPage(ctx context.Context, page, limit int) ([]Article, error)
	GetArticleCount(ctx context.Context) (int, error)
	GetCurrentGeneration(ctx context.Context) (int64, error)

	ReplaceAll(ctx context.Context, articles []Article) (int64, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

type CacheRepository interface {
	GetIfFresh(ctx context.Context, url string, window time.Duration) ([]Article, bool, error)
	Put(ctx context.Context, url string, items []Article) error
}
