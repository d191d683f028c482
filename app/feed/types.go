package feed

import (
	"errors"
	"time"
)

var (
	// ErrSourceUnavailable covers network errors, timeouts and non-2xx responses.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrParse is returned for input that is not a readable feed.
	ErrParse = errors.New("feed parse error")
)

// Feed processing types

type Channel struct {
	Title       string
	Link        string
	Description string
	Items       []Item
}

type Item struct {
	Title       string
	Link        string
	Description string     // Raw HTML fragment
	Published   string     // Publish date as written in the feed
	PublishedAt *time.Time // Nil when absent or unparseable

	Enclosure          *Enclosure
	MediaContentURLs   []string // media:content url attributes, document order
	MediaThumbnailURLs []string // media:thumbnail url attributes, document order
}

type Enclosure struct {
	URL    string
	Type   string // MIME type
	Length int64
}

// Article is a normalized item ready to be stored.
type Article struct {
	Title       string
	URL         string
	PubDate     time.Time
	Description string
	ImageURL    string
	Source      string
}

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without extension)
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	Enabled *bool `yaml:"enabled"` // Defaults to true when omitted
}

func (c *Config) IsEnabled() bool {
	return c.Settings.Enabled == nil || *c.Settings.Enabled
}
