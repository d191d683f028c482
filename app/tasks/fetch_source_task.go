package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/feed"
)

var _ TaskInterface = (*FetchSourceTask)(nil)

// FetchSourceTask runs fetch, parse and normalize for one source. On success
// Articles holds one article per feed item, in feed order.
type FetchSourceTask struct {
	Task
	Source   database.Source
	Articles []database.Article
	fetcher  FetcherInterface
	parser   *feed.Parser
	now      func() time.Time
}

func NewFetchSourceTask(source database.Source, fetcher FetcherInterface, parser *feed.Parser, now func() time.Time) *FetchSourceTask {
	if now == nil {
		now = time.Now
	}
	return &FetchSourceTask{
		Task:    NewTask(TaskTypeFetchSource, source.Name),
		Source:  source,
		fetcher: fetcher,
		parser:  parser,
		now:     now,
	}
}

func (t *FetchSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", feed.ErrSourceUnavailable, ctx.Err())
	default:
	}

	data, err := t.fetcher.Run(ctx, t.Source.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	channel, err := t.parser.Run(data)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	normalized := feed.NormalizeChannel(channel, t.Source.URL, t.now())

	t.Articles = make([]database.Article, 0, len(normalized))
	for _, article := range normalized {
		t.Articles = append(t.Articles, toStoreArticle(article))
	}

	slog.Debug("Source parsed",
		"source", t.SourceName,
		"url", t.Source.URL,
		"items", len(channel.Items))

	return nil
}

func toStoreArticle(a feed.Article) database.Article {
	return database.Article{
		Title:       a.Title,
		URL:         a.URL,
		PubDate:     a.PubDate,
		Description: a.Description,
		ImageURL:    a.ImageURL,
		Source:      a.Source,
	}
}
