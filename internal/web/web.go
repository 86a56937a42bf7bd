// Package web exposes the reviewer HTTP API plus the health and metrics
// endpoints.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/DMXMax/mjfeed/internal/logger"
	"github.com/DMXMax/mjfeed/internal/metrics"
	"github.com/DMXMax/mjfeed/internal/model"
	"github.com/DMXMax/mjfeed/internal/review"
	"github.com/DMXMax/mjfeed/internal/storage"
)

type ArticleLister interface {
	AllArticles(ctx context.Context) ([]model.Article, error)
}

type Handler struct {
	review   *review.Service
	articles ArticleLister
	log      *slog.Logger
}

func New(reviewSvc *review.Service, articles ArticleLister) *Handler {
	return &Handler{
		review:   reviewSvc,
		articles: articles,
		log:      logger.With("web"),
	}
}

// Register mounts all routes on the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/articles", h.handleListArticles)
	mux.HandleFunc("GET /api/articles/pending", h.handleListPending)
	mux.HandleFunc("POST /api/articles/{id}/suggest", h.handleSuggest)
	mux.HandleFunc("POST /api/articles/{id}/approve", h.handleApprove)
	mux.HandleFunc("POST /api/articles/{id}/discard", h.handleDiscard)
	mux.HandleFunc("POST /api/articles/{id}/resummarize", h.handleResummarize)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /metrics", h.handleMetrics)
}

// apiArticle is the wire representation of an article.
type apiArticle struct {
	ID          int64     `json:"id"`
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
	Description string    `json:"description"`
	Author      string    `json:"author,omitempty"`
	Teaser      string    `json:"teaser,omitempty"`
	Length      int       `json:"length"`
	Hashtags    []string  `json:"hashtags"`
	Status      string    `json:"status"`
	Visibility  string    `json:"visibility"`
}

func toAPI(a model.Article) apiArticle {
	return apiArticle{
		ID:          a.ID,
		GUID:        a.GUID,
		Title:       a.Title,
		Link:        a.Link,
		PublishedAt: a.PublishedAt,
		Description: a.Description,
		Author:      a.Author,
		Teaser:      a.Teaser,
		Length:      a.Length,
		Hashtags:    a.Hashtags,
		Status:      string(a.Status),
		Visibility:  string(a.Visibility),
	}
}

func (h *Handler) handleListArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := h.articles.AllArticles(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeArticles(w, articles)
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	articles, err := h.review.Pending(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeArticles(w, articles)
}

func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		h.writeStatus(w, http.StatusBadRequest, "invalid article id")
		return
	}

	teaser, err := h.review.Suggest(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"teaser": teaser})
}

type approveRequest struct {
	Teaser     string `json:"teaser"`
	Visibility string `json:"visibility"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		h.writeStatus(w, http.StatusBadRequest, "invalid article id")
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.review.Approve(r.Context(), id, req.Teaser, req.Visibility); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		h.writeStatus(w, http.StatusBadRequest, "invalid article id")
		return
	}

	if err := h.review.Discard(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}

func (h *Handler) handleResummarize(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		h.writeStatus(w, http.StatusBadRequest, "invalid article id")
		return
	}

	teaser, err := h.review.Resummarize(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"teaser": teaser})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	status := http.StatusOK
	state := "healthy"
	if healthy, ok := stats["is_healthy"].(bool); ok && !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	h.writeJSON(w, status, map[string]interface{}{
		"status":     state,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, metrics.Global.GetStats())
}

func articleID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (h *Handler) writeArticles(w http.ResponseWriter, articles []model.Article) {
	out := make([]apiArticle, 0, len(articles))
	for _, a := range articles {
		out = append(out, toAPI(a))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.writeStatus(w, http.StatusNotFound, "article not found")
	case errors.Is(err, review.ErrInvalidVisibility),
		errors.Is(err, review.ErrEmptyTeaser),
		errors.Is(err, review.ErrInvalidTransition):
		h.writeStatus(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error("request failed", "error", err)
		h.writeStatus(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeStatus(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", "error", err)
	}
}
