// Package trends caches trending hashtags fetched from the social service.
//
// The cache owns no timer: Refresh is driven by an external scheduler, Read
// is consulted by the hashtag generator. An expired cache reads as empty,
// not as an error.
package trends

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DMXMax/mjfeed/internal/model"
)

// Fetcher is the trending-tag side of the social service client.
type Fetcher interface {
	TrendingTags(ctx context.Context, limit int) ([]model.Tag, error)
}

type Cache struct {
	fetcher Fetcher
	limit   int
	ttl     time.Duration
	now     func() time.Time

	mu        sync.RWMutex
	tags      []model.Tag
	fetchedAt time.Time
}

func New(fetcher Fetcher, limit int, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		fetcher: fetcher,
		limit:   limit,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Refresh fetches the current trending tags and replaces the cache
// unconditionally on success; an empty result is a valid refresh. A fetch
// failure leaves the previous cache untouched.
func (c *Cache) Refresh(ctx context.Context) ([]model.Tag, error) {
	tags, err := c.fetcher.TrendingTags(ctx, c.limit)
	if err != nil {
		return nil, fmt.Errorf("fetch trending tags: %w", err)
	}

	c.mu.Lock()
	c.tags = tags
	c.fetchedAt = c.now()
	c.mu.Unlock()

	return tags, nil
}

// Read returns the cached tags, or nil when the cache has expired or was
// never filled. Callers treat nil as "no trending context available".
func (c *Cache) Read() []model.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.fetchedAt.IsZero() || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil
	}

	out := make([]model.Tag, len(c.tags))
	copy(out, c.tags)
	return out
}
