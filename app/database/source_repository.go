package database

import (
	"context"
	"fmt"
	"strings"
	"time"
)

var _ SourceRepository = (*SQLSourceRepository)(nil)

// SQLSourceRepository is the feed source registry. The sync only reads it;
// UpsertSource is the registry's own seeding path.
type SQLSourceRepository struct {
	db  *DB
	now func() time.Time
}

func NewSourceRepository(db *DB) *SQLSourceRepository {
	return &SQLSourceRepository{db: db, now: time.Now}
}

func (r *SQLSourceRepository) UpsertSource(ctx context.Context, name, url string, enabled bool, position int) error {
	now := r.now().UTC().Unix()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feed_sources (name, url, enabled, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			url = excluded.url,
			enabled = excluded.enabled,
			position = excluded.position,
			updated_at = excluded.updated_at
	`, name, url, enabled, position, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert feed source: %w", err)
	}

	return nil
}

func (r *SQLSourceRepository) ListEnabledSources(ctx context.Context) ([]Source, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, url, enabled, position, created_at, updated_at
		FROM feed_sources
		WHERE enabled = 1
		ORDER BY position, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var source Source
		var createdAt, updatedAt int64
		err := rows.Scan(&source.ID, &source.Name, &source.URL, &source.Enabled,
			&source.Position, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed source row: %w", err)
		}
		source.CreatedAt = time.Unix(createdAt, 0).UTC()
		source.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed source rows: %w", err)
	}

	return sources, nil
}

func (r *SQLSourceRepository) GetSourceCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feed_sources WHERE enabled = 1").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed source count: %w", err)
	}
	return count, nil
}

// DisableSourcesExcept disables every enabled source whose name is not in
// keepNames and returns how many were disabled.
func (r *SQLSourceRepository) DisableSourcesExcept(ctx context.Context, keepNames []string) (int64, error) {
	query := "UPDATE feed_sources SET enabled = 0, updated_at = ? WHERE enabled = 1"
	args := []interface{}{r.now().UTC().Unix()}

	if len(keepNames) > 0 {
		query += " AND name NOT IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(keepNames)), ", ") + ")"
		for _, name := range keepNames {
			args = append(args, name)
		}
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to disable removed feed sources: %w", err)
	}

	disabled, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count disabled feed sources: %w", err)
	}
	return disabled, nil
}
