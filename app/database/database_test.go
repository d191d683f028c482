package database

import (
	"context"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return db
}

func TestRunMigrations(t *testing.T) {
	db := testDB(t)

	// Second run must be a no-op
	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Expected no error on repeated migration, got: %v", err)
	}
	if dirty {
		t.Error("Expected clean migration state")
	}
	if version != 2 {
		t.Errorf("Expected schema version 2, got %d", version)
	}

	for _, table := range []string{"feed_sources", "articles", "sync_state", "feed_cache"} {
		var name string
		err := db.QueryRowContext(context.Background(),
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("Expected table %s to exist: %v", table, err)
		}
	}
}
