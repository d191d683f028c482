package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"
)

var _ ArticleRepository = (*SQLArticleRepository)(nil)

// SQLArticleRepository stores articles in generations. A sync writes a whole
// new generation and flips sync_state to it in one transaction, so readers
// always see either the complete previous set or the complete new one.
type SQLArticleRepository struct {
	db  *DB
	now func() time.Time
}

func NewArticleRepository(db *DB) *SQLArticleRepository {
	return &SQLArticleRepository{db: db, now: time.Now}
}

// ReplaceAll stores articles as the next generation, in the given order, and
// returns the generation number. Older generations are pruned after commit.
func (r *SQLArticleRepository) ReplaceAll(ctx context.Context, articles []Article) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin transaction: %w", ErrStoreWrite, err)
	}
	defer tx.Rollback()

	var current int64
	if err := tx.QueryRowContext(ctx, "SELECT generation FROM sync_state WHERE id = 1").Scan(&current); err != nil {
		return 0, fmt.Errorf("%w: failed to read current generation: %w", ErrStoreWrite, err)
	}
	next := current + 1

	now := r.now().UTC()
	expiresAt := now.Add(ArticleTTL).Unix()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (
			generation, position, source, title, url,
			pub_date, description, image_url, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to prepare insert: %w", ErrStoreWrite, err)
	}
	defer stmt.Close()

	for i, article := range articles {
		_, err := stmt.ExecContext(ctx, next, i, article.Source, article.Title, article.URL,
			formatPubDate(article.PubDate), article.Description, article.ImageURL, expiresAt)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to insert article %d of generation %d: %w", ErrStoreWrite, i, next, err)
		}
	}

	_, err = tx.ExecContext(ctx, "UPDATE sync_state SET generation = ?, synced_at = ? WHERE id = 1", next, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to switch to generation %d: %w", ErrStoreWrite, next, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit generation %d: %w", ErrStoreWrite, next, err)
	}

	// Readers only see the current generation; a failed prune is not fatal.
	if res, err := r.db.ExecContext(ctx, "DELETE FROM articles WHERE generation < ?", next); err != nil {
		slog.Warn("Failed to prune previous article generations", "generation", next, "error", err)
	} else if pruned, _ := res.RowsAffected(); pruned > 0 {
		slog.Debug("Pruned previous article generations", "generation", next, "pruned", pruned)
	}

	return next, nil
}

// GetPage returns up to limit articles of the current generation starting at
// (page-1)*limit, newest first. Past the end it returns an empty slice.
// Rows without a readable pub_date sort and decode as now.
func (r *SQLArticleRepository) GetPage(ctx context.Context, page, limit int) ([]Article, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		return []Article{}, nil
	}
	if page-1 > math.MaxInt/limit {
		return []Article{}, nil
	}
	skip := (page - 1) * limit

	now := r.now()
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(title, ''), COALESCE(url, ''),
		       strftime('%Y-%m-%dT%H:%M:%SZ', pub_date),
		       COALESCE(description, ''), COALESCE(image_url, ''),
		       COALESCE(source, ''), position, generation, expires_at
		FROM articles
		WHERE generation = (SELECT generation FROM sync_state WHERE id = 1)
		  AND expires_at > ?
		ORDER BY COALESCE(strftime('%Y-%m-%dT%H:%M:%SZ', pub_date), ?) DESC, position ASC
		LIMIT ? OFFSET ?
	`, now.UTC().Unix(), formatPubDate(now), limit, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles: %w", err)
	}
	defer rows.Close()

	articles := []Article{}
	for rows.Next() {
		var article Article
		var pubDate sql.NullString
		var expiresAt int64
		err := rows.Scan(
			&article.Title, &article.URL, &pubDate,
			&article.Description, &article.ImageURL,
			&article.Source, &article.Position, &article.Generation, &expiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		article.PubDate = parsePubDate(pubDate, now)
		article.ExpiresAt = time.Unix(expiresAt, 0).UTC()
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

func (r *SQLArticleRepository) GetArticleCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM articles
		WHERE generation = (SELECT generation FROM sync_state WHERE id = 1)
		  AND expires_at > ?
	`, r.now().UTC().Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get article count: %w", err)
	}
	return count, nil
}

func (r *SQLArticleRepository) GetCurrentGeneration(ctx context.Context) (int64, error) {
	var generation int64
	err := r.db.QueryRowContext(ctx, "SELECT generation FROM sync_state WHERE id = 1").Scan(&generation)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get current generation: %w", err)
	}
	return generation, nil
}

// PurgeExpired deletes articles past their TTL regardless of generation.
func (r *SQLArticleRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM articles WHERE expires_at <= ?", r.now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired articles: %w", err)
	}
	purged, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged articles: %w", err)
	}
	return purged, nil
}

// pub_date is stored as fixed-width RFC3339 UTC text so it sorts lexically.
func formatPubDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parsePubDate falls back to now for rows with a missing or unreadable date.
func parsePubDate(value sql.NullString, now time.Time) time.Time {
	if !value.Valid || value.String == "" {
		return now.UTC()
	}
	t, err := time.Parse(time.RFC3339, value.String)
	if err != nil {
		return now.UTC()
	}
	return t.UTC()
}
