package feed

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Normalize turns a parsed item into an article. Items without a usable
// publish date are stamped with now.
func Normalize(item Item, source string, now time.Time) Article {
	pubDate := now.UTC().Truncate(time.Second)
	if item.PublishedAt != nil {
		pubDate = item.PublishedAt.UTC().Truncate(time.Second)
	}

	// The placeholder image carries the stored title
	item.Title = normalizeText(item.Title)

	return Article{
		Title:       item.Title,
		URL:         strings.TrimSpace(item.Link),
		PubDate:     pubDate,
		Description: norm.NFC.String(strings.TrimSpace(item.Description)),
		ImageURL:    ResolveImage(item),
		Source:      source,
	}
}

// NormalizeChannel keeps item order; the result has exactly one article per item.
func NormalizeChannel(channel *Channel, source string, now time.Time) []Article {
	articles := make([]Article, 0, len(channel.Items))
	for _, item := range channel.Items {
		articles = append(articles, Normalize(item, source, now))
	}
	return articles
}

func normalizeText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
