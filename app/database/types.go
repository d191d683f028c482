package database

import (
	"errors"
	"time"
)

// ArticleTTL bounds how long a stored article survives if syncing stops.
const ArticleTTL = 90 * 24 * time.Hour

var ErrStoreWrite = errors.New("store write failed")

type Source struct {
	ID        int64
	Name      string // Derived from the registry file name
	URL       string
	Enabled   bool
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Article is the canonical, persisted representation of one feed item.
type Article struct {
	Title       string
	URL         string
	PubDate     time.Time
	Description string
	ImageURL    string

	Source     string // Feed source URL the article came from
	Position   int    // Rank in the merged sync order
	Generation int64
	ExpiresAt  time.Time
}
