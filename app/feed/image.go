package feed

import (
	"net/url"
	"regexp"
	"strings"
)

const placeholderImageURL = "https://via.placeholder.com/300x200?text="

var imgSrcPattern = regexp.MustCompile(`(?i)<img\s(?:[^>]*?\s)?src\s*=\s*["'](https?://[^"']+)["']`)

// ResolveImage picks the illustration for an item. The first match wins:
// image enclosure, media:content, media:thumbnail, first <img> in the
// description, then a placeholder carrying the title.
func ResolveImage(item Item) string {
	if item.Enclosure != nil && item.Enclosure.URL != "" &&
		strings.HasPrefix(strings.ToLower(item.Enclosure.Type), "image/") {
		return item.Enclosure.URL
	}

	if len(item.MediaContentURLs) > 0 {
		return item.MediaContentURLs[0]
	}

	if len(item.MediaThumbnailURLs) > 0 {
		return item.MediaThumbnailURLs[0]
	}

	if match := imgSrcPattern.FindStringSubmatch(item.Description); match != nil {
		return match[1]
	}

	return PlaceholderImage(item.Title)
}

// PlaceholderImage percent-encodes title into the placeholder service URL.
func PlaceholderImage(title string) string {
	return placeholderImageURL + strings.ReplaceAll(url.QueryEscape(title), "+", "%20")
}
