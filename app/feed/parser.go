package feed

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// RFC 2822 layouts tried when gofeed could not parse a publish date itself.
var rfc2822Layouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
}

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run decodes raw feed bytes. Malformed or undetectable input returns an error
// wrapping ErrParse and no channel.
func (p *Parser) Run(data []byte) (channel *Channel, err error) {
	defer func() {
		if r := recover(); r != nil {
			channel = nil
			err = fmt.Errorf("%w: parser panic: %v", ErrParse, r)
		}
	}()

	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	channel = &Channel{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
		Items:       make([]Item, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		channel.Items = append(channel.Items, p.normalizeItem(item))
	}

	return channel, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Published:   item.Published,
		PublishedAt: p.parsePublished(item),
	}

	// RSS 2.0 allows only one enclosure per item
	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		enclosure := item.Enclosures[0]
		normalized.Enclosure = &Enclosure{
			URL:  strings.TrimSpace(enclosure.URL),
			Type: strings.TrimSpace(enclosure.Type),
		}

		if enclosure.Length != "" {
			if length, err := strconv.ParseInt(enclosure.Length, 10, 64); err == nil {
				normalized.Enclosure.Length = length
			}
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		normalized.MediaContentURLs = mediaURLs(media, "content")
		normalized.MediaThumbnailURLs = mediaURLs(media, "thumbnail")
	}

	return normalized
}

func (p *Parser) parsePublished(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		return &t
	}

	value := strings.TrimSpace(item.Published)
	if value == "" {
		return nil
	}
	for _, layout := range rfc2822Layouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// mediaURLs collects url attributes of media:<name> elements, direct children
// of the item first, then those nested in media:group.
func mediaURLs(media map[string][]ext.Extension, name string) []string {
	var urls []string
	for _, e := range media[name] {
		if u := strings.TrimSpace(e.Attrs["url"]); u != "" {
			urls = append(urls, u)
		}
	}
	for _, group := range media["group"] {
		for _, e := range group.Children[name] {
			if u := strings.TrimSpace(e.Attrs["url"]); u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}
