package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/tasks"
)

func NewHandler(articleRepo database.ArticleRepository, sourceRepo database.SourceRepository,
	syncer tasks.SyncerInterface, version string) *Handler {
	return &Handler{
		articleRepo: articleRepo,
		sourceRepo:  sourceRepo,
		syncer:      syncer,
		version:     version,
	}
}

// GetArticles serves one page of the current articles. Read failures are
// logged and answered with an empty list.
func (h *Handler) GetArticles(c *gin.Context) {
	page := queryInt(c, "page", DefaultPage)
	limit := queryInt(c, "limit", DefaultLimit)
	if limit > MaxLimit {
		limit = MaxLimit
	}

	articles, err := h.articleRepo.GetPage(c.Request.Context(), page, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_page", "page", page, "limit", limit, "error", err)
		articles = nil
	}

	response := make([]ArticleResponse, 0, len(articles))
	for _, article := range articles {
		response = append(response, newArticleResponse(article))
	}

	c.Header("X-Page", strconv.Itoa(page))
	c.Header("X-Limit", strconv.Itoa(limit))
	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.articleRepo.GetArticleCount(ctx); err == nil {
		health["articles"] = count
	} else {
		health["status"] = "degraded"
		slog.Error("Database error", "operation", "get_article_count", "error", err)
	}

	if generation, err := h.articleRepo.GetCurrentGeneration(ctx); err == nil {
		health["generation"] = generation
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(ctx); err == nil {
		health["sources"] = sourceCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APISync(c *gin.Context) {
	report, err := h.syncer.Run(c.Request.Context())
	if errors.Is(err, tasks.ErrSyncInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "Sync already in progress"})
		return
	}
	if err != nil {
		slog.Error("Sync request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Sync failed",
			"details": err.Error(),
		})
		return
	}

	sources := make([]gin.H, 0, len(report.Results))
	for _, result := range report.Results {
		source := gin.H{
			"name":     result.Source.Name,
			"url":      result.Source.URL,
			"articles": len(result.Articles),
			"retries":  result.Retries,
		}
		if result.Err != nil {
			source["error"] = result.Err.Error()
		}
		sources = append(sources, source)
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":     report.RunID,
		"generation": report.Generation,
		"stored":     report.Stored,
		"replaced":   report.Replaced,
		"failed":     report.FailedSources(),
		"duration":   report.Duration.String(),
		"sources":    sources,
	})
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources, err := h.sourceRepo.ListEnabledSources(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]gin.H, 0, len(sources))
	for _, source := range sources {
		response = append(response, gin.H{
			"name":       source.Name,
			"url":        source.URL,
			"enabled":    source.Enabled,
			"position":   source.Position,
			"updated_at": source.UpdatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": response,
		"total":   len(response),
	})
}

func (h *Handler) APIGetCache(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url parameter"})
		return
	}

	items, err := h.syncer.FetchAndStore(c.Request.Context(), url)
	if err != nil {
		slog.Error("Feed cache request failed", "url", url, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to load feed",
			"details": err.Error(),
		})
		return
	}

	response := make([]ArticleResponse, 0, len(items))
	for _, item := range items {
		response = append(response, newArticleResponse(item))
	}

	c.JSON(http.StatusOK, gin.H{
		"url":   url,
		"items": response,
		"total": len(response),
	})
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(c *gin.Context, key string, def int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil || value < 1 {
		return def
	}
	return value
}
