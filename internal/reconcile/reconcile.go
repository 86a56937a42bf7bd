// Package reconcile mirrors the RSS feed into the article store. The feed is
// the source of truth: entries that left the feed are deleted regardless of
// review state, new entries are inserted as pending.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
	"github.com/tomakado/containers/set"

	"github.com/DMXMax/mjfeed/internal/logger"
	"github.com/DMXMax/mjfeed/internal/metrics"
	"github.com/DMXMax/mjfeed/internal/model"
	"github.com/DMXMax/mjfeed/internal/normalize"
)

type Store interface {
	GUIDs(ctx context.Context) ([]string, error)
	ReconcileBatch(ctx context.Context, deleteGUIDs []string, inserts []model.Article) error
}

type HashtagGenerator interface {
	Hashtags(ctx context.Context, section, title, description string) []string
}

type Reconciler struct {
	store    Store
	tags     HashtagGenerator
	feedURL  string
	parser   *gofeed.Parser
	interval time.Duration
	log      *slog.Logger

	mu sync.Mutex
}

func New(store Store, tags HashtagGenerator, feedURL string, interval time.Duration) *Reconciler {
	return &Reconciler{
		store:    store,
		tags:     tags,
		feedURL:  feedURL,
		parser:   gofeed.NewParser(),
		interval: interval,
		log:      logger.With("reconcile"),
	}
}

// Start runs a reconcile immediately and then on every tick until the
// context is cancelled. Run failures are logged, not returned; the next tick
// tries again.
func (r *Reconciler) Start(ctx context.Context) {
	r.log.Info("reconciler started", "feed", r.feedURL, "interval", r.interval)

	if err := r.Reconcile(ctx); err != nil {
		r.log.Error("reconcile failed", "error", err)
		metrics.Global.SetError(err.Error())
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopped")
			return
		case <-ticker.C:
			if err := r.Reconcile(ctx); err != nil {
				r.log.Error("reconcile failed", "error", err)
				metrics.Global.SetError(err.Error())
			}
		}
	}
}

// Reconcile fetches the feed once and applies the set difference against the
// store in a single transaction. A feed fetch failure aborts the run without
// touching stored articles. Concurrent runs are skipped.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	if !r.mu.TryLock() {
		r.log.Debug("reconcile already running, skipping")
		return nil
	}
	defer r.mu.Unlock()

	started := time.Now()

	feed, err := r.parser.ParseURLWithContext(r.feedURL, ctx)
	if err != nil {
		return fmt.Errorf("parse feed: %w", err)
	}
	metrics.Global.AddFeedEntriesSeen(len(feed.Items))

	persisted, err := r.store.GUIDs(ctx)
	if err != nil {
		return fmt.Errorf("load stored guids: %w", err)
	}
	known := set.New(persisted...)

	fetched := set.New[string]()
	var inserts []model.Article
	for _, item := range feed.Items {
		guid := itemGUID(item)
		if guid == "" {
			continue
		}
		fetched.Add(guid)

		if known.Contains(guid) {
			continue
		}
		inserts = append(inserts, r.buildArticle(ctx, guid, item))
	}

	toDelete := lo.Filter(persisted, func(guid string, _ int) bool {
		return !fetched.Contains(guid)
	})

	if len(inserts) == 0 && len(toDelete) == 0 {
		r.log.Debug("feed unchanged", "entries", len(feed.Items))
		metrics.Global.SetLastRun()
		return nil
	}

	if err := r.store.ReconcileBatch(ctx, toDelete, inserts); err != nil {
		return fmt.Errorf("apply reconcile batch: %w", err)
	}

	metrics.Global.AddArticlesInserted(len(inserts))
	metrics.Global.AddArticlesDeleted(len(toDelete))
	metrics.Global.RecordReconcileTime(time.Since(started))
	metrics.Global.SetLastRun()

	r.log.Info("reconciled feed",
		"entries", len(feed.Items),
		"inserted", len(inserts),
		"deleted", len(toDelete),
		"duration", time.Since(started))
	return nil
}

func (r *Reconciler) buildArticle(ctx context.Context, guid string, item *gofeed.Item) model.Article {
	title := normalize.Normalize(item.Title)
	description := normalize.Normalize(item.Description)
	fullText := normalize.ExtractFullText(item.Content)

	var section string
	if len(item.Categories) > 0 {
		section = item.Categories[0]
	}

	var author string
	if item.Author != nil {
		author = item.Author.Name
	}

	publishedAt := time.Now()
	if item.PublishedParsed != nil {
		publishedAt = *item.PublishedParsed
	}

	return model.Article{
		GUID:        guid,
		Title:       title,
		Link:        item.Link,
		PublishedAt: publishedAt,
		Description: description,
		Author:      author,
		Length:      len(fullText),
		Hashtags:    r.tags.Hashtags(ctx, section, title, description),
		Status:      model.StatusPending,
		Visibility:  model.VisibilityPrivate,
	}
}

// itemGUID prefers the feed-assigned GUID and falls back to the entry link.
func itemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}
