package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/tasks"
)

type mockArticleRepo struct {
	articles []database.Article
	err      error
	gotPage  int
	gotLimit int
}

func (m *mockArticleRepo) GetPage(ctx context.Context, page, limit int) ([]database.Article, error) {
	m.gotPage, m.gotLimit = page, limit
	if m.err != nil {
		return nil, m.err
	}
	skip := (page - 1) * limit
	if skip >= len(m.articles) {
		return []database.Article{}, nil
	}
	end := min(skip+limit, len(m.articles))
	return m.articles[skip:end], nil
}

func (m *mockArticleRepo) GetArticleCount(ctx context.Context) (int, error) {
	return len(m.articles), m.err
}

func (m *mockArticleRepo) GetCurrentGeneration(ctx context.Context) (int64, error) {
	return 3, nil
}

func (m *mockArticleRepo) ReplaceAll(ctx context.Context, articles []database.Article) (int64, error) {
	return 0, nil
}

func (m *mockArticleRepo) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

type mockSourceRepo struct {
	sources []database.Source
}

func (m *mockSourceRepo) ListEnabledSources(ctx context.Context) ([]database.Source, error) {
	return m.sources, nil
}

func (m *mockSourceRepo) GetSourceCount(ctx context.Context) (int, error) {
	return len(m.sources), nil
}

func (m *mockSourceRepo) UpsertSource(ctx context.Context, name, url string, enabled bool, position int) error {
	return nil
}

func (m *mockSourceRepo) DisableSourcesExcept(ctx context.Context, keepNames []string) (int64, error) {
	return 0, nil
}

type mockSyncer struct {
	report *tasks.SyncReport
	err    error
	items  []database.Article
}

func (m *mockSyncer) Run(ctx context.Context) (*tasks.SyncReport, error) {
	return m.report, m.err
}

func (m *mockSyncer) FetchAndStore(ctx context.Context, url string) ([]database.Article, error) {
	return m.items, m.err
}

func sampleArticles(n int) []database.Article {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	articles := make([]database.Article, n)
	for i := range articles {
		articles[i] = database.Article{
			Title:    "Article",
			URL:      "https://example.com/a",
			PubDate:  base.Add(-time.Duration(i) * time.Hour),
			ImageURL: "https://example.com/a.jpg",
		}
	}
	return articles
}

func newTestServer(articleRepo *mockArticleRepo, syncer *mockSyncer, apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	sourceRepo := &mockSourceRepo{sources: []database.Source{{Name: "one", URL: "https://example.com/feed.xml", Enabled: true}}}
	handler := NewHandler(articleRepo, sourceRepo, syncer, "test")
	return NewServer(handler, apiKey)
}

func doRequest(r http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetArticlesPagination(t *testing.T) {
	repo := &mockArticleRepo{articles: sampleArticles(25)}
	r := newTestServer(repo, &mockSyncer{}, "")

	w := doRequest(r, http.MethodGet, "/rss?page=3&limit=9", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var articles []ArticleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &articles); err != nil {
		t.Fatal(err)
	}
	if len(articles) != 7 {
		t.Errorf("Expected 7 articles, got %d", len(articles))
	}
	if articles[0].PubDate != "2023-12-31T18:00:00Z" {
		t.Errorf("Expected RFC3339 pub_date, got %s", articles[0].PubDate)
	}
}

func TestGetArticlesDefaultsAndCap(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", DefaultPage, DefaultLimit},
		{"?page=abc&limit=-4", DefaultPage, DefaultLimit},
		{"?page=0&limit=0", DefaultPage, DefaultLimit},
		{"?page=2&limit=500", 2, MaxLimit},
	}

	for _, tt := range tests {
		repo := &mockArticleRepo{}
		r := newTestServer(repo, &mockSyncer{}, "")

		w := doRequest(r, http.MethodGet, "/rss"+tt.query, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%q: expected status 200, got %d", tt.query, w.Code)
		}
		if repo.gotPage != tt.wantPage || repo.gotLimit != tt.wantLimit {
			t.Errorf("%q: expected page %d limit %d, got page %d limit %d",
				tt.query, tt.wantPage, tt.wantLimit, repo.gotPage, repo.gotLimit)
		}
	}
}

func TestGetArticlesReadErrorReturnsEmptyList(t *testing.T) {
	repo := &mockArticleRepo{err: errors.New("database is locked")}
	r := newTestServer(repo, &mockSyncer{}, "")

	w := doRequest(r, http.MethodGet, "/rss", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "[]" {
		t.Errorf("Expected empty JSON array, got %s", w.Body.String())
	}
}

func TestGetArticlesPastEnd(t *testing.T) {
	repo := &mockArticleRepo{articles: sampleArticles(5)}
	r := newTestServer(repo, &mockSyncer{}, "")

	w := doRequest(r, http.MethodGet, "/rss?page=10", nil)
	if w.Body.String() != "[]" {
		t.Errorf("Expected empty JSON array, got %s", w.Body.String())
	}
}

func TestGetHealth(t *testing.T) {
	repo := &mockArticleRepo{articles: sampleArticles(4)}
	r := newTestServer(repo, &mockSyncer{}, "")

	w := doRequest(r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health["articles"] != float64(4) {
		t.Errorf("Expected 4 articles, got %v", health["articles"])
	}
	if health["generation"] != float64(3) {
		t.Errorf("Expected generation 3, got %v", health["generation"])
	}
	if health["sources"] != float64(1) {
		t.Errorf("Expected 1 source, got %v", health["sources"])
	}
}

func TestAdminRoutesDisabledWithoutKey(t *testing.T) {
	r := newTestServer(&mockArticleRepo{}, &mockSyncer{}, "")

	w := doRequest(r, http.MethodPost, "/api/sync", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	r := newTestServer(&mockArticleRepo{}, &mockSyncer{}, "secret")

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header key", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"bearer key", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodGet, "/api/sources", tt.headers)
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestAPISync(t *testing.T) {
	syncer := &mockSyncer{report: &tasks.SyncReport{
		RunID:      "run-1",
		Generation: 4,
		Stored:     2,
		Replaced:   true,
		Results: []tasks.SourceResult{
			{Source: database.Source{Name: "a"}, Articles: sampleArticles(2)},
			{Source: database.Source{Name: "b"}, Err: errors.New("boom")},
		},
	}}
	r := newTestServer(&mockArticleRepo{}, syncer, "secret")

	w := doRequest(r, http.MethodPost, "/api/sync", map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["stored"] != float64(2) {
		t.Errorf("Expected stored 2, got %v", body["stored"])
	}
	if body["failed"] != float64(1) {
		t.Errorf("Expected failed 1, got %v", body["failed"])
	}
}

func TestAPISyncInProgress(t *testing.T) {
	r := newTestServer(&mockArticleRepo{}, &mockSyncer{err: tasks.ErrSyncInProgress}, "secret")

	w := doRequest(r, http.MethodPost, "/api/sync", map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
}

func TestAPIGetCache(t *testing.T) {
	r := newTestServer(&mockArticleRepo{}, &mockSyncer{items: sampleArticles(3)}, "secret")
	headers := map[string]string{"X-API-Key": "secret"}

	w := doRequest(r, http.MethodGet, "/api/cache", headers)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without url, got %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/api/cache?url=https://example.com/feed.xml", headers)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body struct {
		Items []ArticleResponse `json:"items"`
		Total int               `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 3 || len(body.Items) != 3 {
		t.Errorf("Expected 3 items, got %d", len(body.Items))
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newTestServer(&mockArticleRepo{}, &mockSyncer{}, "")

	w := doRequest(r, http.MethodOptions, "/rss", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}
