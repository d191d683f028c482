package api

import (
	"time"

	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/tasks"
)

const (
	DefaultPage  = 1
	DefaultLimit = 9
	MaxLimit     = 100
)

type Handler struct {
	articleRepo database.ArticleRepository
	sourceRepo  database.SourceRepository
	syncer      tasks.SyncerInterface
	version     string
}

// ArticleResponse is the public JSON shape of an article.
type ArticleResponse struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	PubDate     string `json:"pub_date"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

func newArticleResponse(article database.Article) ArticleResponse {
	return ArticleResponse{
		Title:       article.Title,
		URL:         article.URL,
		PubDate:     article.PubDate.UTC().Format(time.RFC3339),
		Description: article.Description,
		ImageURL:    article.ImageURL,
	}
}
