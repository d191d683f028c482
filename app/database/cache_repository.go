package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

var _ CacheRepository = (*SQLCacheRepository)(nil)

// SQLCacheRepository keeps one entry of items per source URL. It backs the
// older per-source lookup path and is not touched by the full sync.
type SQLCacheRepository struct {
	db  *DB
	now func() time.Time
}

type cachedItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	PubDate     string `json:"pub_date"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

func NewCacheRepository(db *DB) *SQLCacheRepository {
	return &SQLCacheRepository{db: db, now: time.Now}
}

// GetIfFresh returns the cached items for url when the entry is younger than
// window. A stale or missing entry reports false.
func (r *SQLCacheRepository) GetIfFresh(ctx context.Context, url string, window time.Duration) ([]Article, bool, error) {
	var itemsJSON sql.NullString
	var fetchedAt int64
	err := r.db.QueryRowContext(ctx, "SELECT items, fetched_at FROM feed_cache WHERE url = ?", url).
		Scan(&itemsJSON, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	now := r.now()
	if now.Sub(time.UnixMilli(fetchedAt)) >= window {
		return nil, false, nil
	}

	var docs []cachedItem
	if itemsJSON.Valid && itemsJSON.String != "" {
		if err := json.Unmarshal([]byte(itemsJSON.String), &docs); err != nil {
			return nil, false, fmt.Errorf("failed to decode cache entry: %w", err)
		}
	}

	items := make([]Article, 0, len(docs))
	for i, doc := range docs {
		items = append(items, Article{
			Title:       doc.Title,
			URL:         doc.URL,
			PubDate:     parsePubDate(sql.NullString{String: doc.PubDate, Valid: true}, now),
			Description: doc.Description,
			ImageURL:    doc.ImageURL,
			Source:      url,
			Position:    i,
		})
	}

	return items, true, nil
}

// Put overwrites the cache entry for url and stamps it with the current time.
func (r *SQLCacheRepository) Put(ctx context.Context, url string, items []Article) error {
	docs := make([]cachedItem, 0, len(items))
	for _, item := range items {
		docs = append(docs, cachedItem{
			Title:       item.Title,
			URL:         item.URL,
			PubDate:     formatPubDate(item.PubDate),
			Description: item.Description,
			ImageURL:    item.ImageURL,
		})
	}

	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO feed_cache (url, items, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			items = excluded.items,
			fetched_at = excluded.fetched_at
	`, url, string(data), r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: failed to store cache entry: %w", ErrStoreWrite, err)
	}

	return nil
}
