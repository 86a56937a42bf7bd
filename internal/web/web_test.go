package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/DMXMax/mjfeed/internal/model"
	"github.com/DMXMax/mjfeed/internal/review"
	"github.com/DMXMax/mjfeed/internal/storage"
)

type staticGenerator struct{}

func (staticGenerator) Teaser(ctx context.Context, description string, maxLength int) string {
	return "suggested teaser"
}

func (staticGenerator) NewTeaser(ctx context.Context, description, feedback string, maxLength int) string {
	return "rewritten teaser"
}

func newTestServer(t *testing.T) (*httptest.Server, *storage.Store) {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mux := http.NewServeMux()
	New(review.New(store, staticGenerator{}, 200), store).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store
}

func seedPending(t *testing.T, store *storage.Store, guid string) model.Article {
	t.Helper()
	ctx := context.Background()

	article := model.Article{
		GUID:        guid,
		Title:       "Title " + guid,
		Link:        "https://example.com/" + guid,
		PublishedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Description: "Description " + guid,
		Hashtags:    []string{"#MotherJones"},
		Status:      model.StatusPending,
		Visibility:  model.VisibilityPrivate,
	}
	if err := store.ReconcileBatch(ctx, nil, []model.Article{article}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	pending, _ := store.PendingArticles(ctx)
	for _, a := range pending {
		if a.GUID == guid {
			return a
		}
	}
	t.Fatalf("seeded article %q not found", guid)
	return model.Article{}
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func TestListPending(t *testing.T) {
	t.Parallel()
	server, store := newTestServer(t)
	seedPending(t, store, "a")

	resp, err := http.Get(server.URL + "/api/articles/pending")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var articles []apiArticle
	if err := json.NewDecoder(resp.Body).Decode(&articles); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(articles) != 1 || articles[0].GUID != "a" || articles[0].Status != "pending" {
		t.Errorf("articles = %+v", articles)
	}
}

func TestApproveEndpoint(t *testing.T) {
	t.Parallel()
	server, store := newTestServer(t)
	article := seedPending(t, store, "a")

	resp := postJSON(t, server.URL+"/api/articles/"+itoa(article.ID)+"/approve",
		map[string]string{"teaser": "Final teaser", "visibility": "public"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	got, _ := store.ArticleByID(context.Background(), article.ID)
	if got.Status != model.StatusApproved || got.Teaser != "Final teaser" {
		t.Errorf("article = %+v", got)
	}
}

func TestApproveEndpointBadVisibility(t *testing.T) {
	t.Parallel()
	server, store := newTestServer(t)
	article := seedPending(t, store, "a")

	resp := postJSON(t, server.URL+"/api/articles/"+itoa(article.ID)+"/approve",
		map[string]string{"teaser": "t", "visibility": "sideways"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestApproveEndpointNotFound(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/articles/9999/approve",
		map[string]string{"teaser": "t", "visibility": "public"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestApproveEndpointBadID(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/articles/abc/approve",
		map[string]string{"teaser": "t", "visibility": "public"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDiscardEndpoint(t *testing.T) {
	t.Parallel()
	server, store := newTestServer(t)
	article := seedPending(t, store, "a")

	resp := postJSON(t, server.URL+"/api/articles/"+itoa(article.ID)+"/discard", struct{}{})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	got, _ := store.ArticleByID(context.Background(), article.ID)
	if got.Status != model.StatusDiscarded {
		t.Errorf("status = %s", got.Status)
	}
}

func TestSuggestEndpoint(t *testing.T) {
	t.Parallel()
	server, store := newTestServer(t)
	article := seedPending(t, store, "a")

	resp := postJSON(t, server.URL+"/api/articles/"+itoa(article.ID)+"/suggest", struct{}{})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["teaser"] != "suggested teaser" {
		t.Errorf("teaser = %q", body["teaser"])
	}

	got, _ := store.ArticleByID(context.Background(), article.ID)
	if got.Teaser != "suggested teaser" || got.Status != model.StatusPending {
		t.Errorf("article = %+v", got)
	}
}

func TestResummarizeEndpoint(t *testing.T) {
	t.Parallel()
	server, store := newTestServer(t)
	article := seedPending(t, store, "a")

	if err := store.ApproveArticle(context.Background(), article.ID, "old", model.VisibilityPublic, model.TeaserExample{}); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	resp := postJSON(t, server.URL+"/api/articles/"+itoa(article.ID)+"/resummarize", struct{}{})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["teaser"] != "rewritten teaser" {
		t.Errorf("teaser = %q", body["teaser"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["status"]; !ok {
		t.Errorf("health body = %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var stats map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := stats["articles_inserted"]; !ok {
		t.Errorf("metrics body = %v", stats)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
