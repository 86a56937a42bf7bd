// Package publish posts approved articles to the social service. Delivery is
// at-least-once: an article stays approved until a post succeeds, and every
// attempt carries an idempotency key derived from the article GUID so server
// side deduplication can absorb retried posts.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DMXMax/mjfeed/internal/logger"
	"github.com/DMXMax/mjfeed/internal/metrics"
	"github.com/DMXMax/mjfeed/internal/model"
)

type Store interface {
	ApprovedArticles(ctx context.Context) ([]model.Article, error)
	MarkPosted(ctx context.Context, id int64) error
}

type Poster interface {
	PostStatus(ctx context.Context, text string, visibility model.Visibility, idempotencyKey string) (string, error)
}

type Publisher struct {
	store         Store
	poster        Poster
	directMention string
	interval      time.Duration
	log           *slog.Logger

	mu sync.Mutex
}

// New builds a Publisher. directMention, when set, is appended to posts with
// direct visibility so they actually reach an inbox.
func New(store Store, poster Poster, directMention string, interval time.Duration) *Publisher {
	return &Publisher{
		store:         store,
		poster:        poster,
		directMention: directMention,
		interval:      interval,
		log:           logger.With("publish"),
	}
}

// Start drains the approved queue on every tick until the context is
// cancelled.
func (p *Publisher) Start(ctx context.Context) {
	p.log.Info("publisher started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("publisher stopped")
			return
		case <-ticker.C:
			if err := p.PublishApproved(ctx); err != nil {
				p.log.Error("publish run failed", "error", err)
			}
		}
	}
}

// PublishApproved posts every approved article. A failed post is logged and
// skipped; the article stays approved and is retried on the next run.
// Concurrent runs are skipped.
func (p *Publisher) PublishApproved(ctx context.Context) error {
	if !p.mu.TryLock() {
		p.log.Debug("publish already running, skipping")
		return nil
	}
	defer p.mu.Unlock()

	articles, err := p.store.ApprovedArticles(ctx)
	if err != nil {
		return fmt.Errorf("load approved articles: %w", err)
	}

	for _, article := range articles {
		statusID, err := p.poster.PostStatus(ctx, p.composeStatus(article), article.Visibility, idempotencyKey(article.GUID))
		if err != nil {
			p.log.Error("post failed", "id", article.ID, "guid", article.GUID, "error", err)
			metrics.Global.IncrementPublishFailures()
			continue
		}

		if err := p.store.MarkPosted(ctx, article.ID); err != nil {
			p.log.Error("could not mark article posted", "id", article.ID, "error", err)
			continue
		}

		metrics.Global.IncrementPostsPublished()
		p.log.Info("article posted", "id", article.ID, "status_id", statusID, "visibility", article.Visibility)
	}

	return nil
}

func (p *Publisher) composeStatus(article model.Article) string {
	var b strings.Builder
	b.WriteString(article.Title)
	b.WriteString("\n\n")
	b.WriteString(article.Teaser)
	b.WriteString("\n\n")
	b.WriteString("Read more → ")
	b.WriteString(article.Link)

	if len(article.Hashtags) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(article.Hashtags, " "))
	}

	if article.Visibility == model.VisibilityDirect && p.directMention != "" {
		b.WriteString("\n\n")
		b.WriteString(p.directMention)
	}

	return b.String()
}

func idempotencyKey(guid string) string {
	sum := sha256.Sum256([]byte(guid))
	return hex.EncodeToString(sum[:16])
}
