package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	FeedEntriesSeen    int64
	ArticlesInserted   int64
	ArticlesDeleted    int64
	TeasersGenerated   int64
	GenerationFallback int64
	ArticlesApproved   int64
	ArticlesDiscarded  int64
	PostsPublished     int64
	PublishFailures    int64

	// Timings
	LastReconcileTime    time.Duration
	AverageReconcileTime time.Duration
	TotalReconcileTime   time.Duration
	ReconcileCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddFeedEntriesSeen(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedEntriesSeen += int64(n)
}

func (m *Metrics) AddArticlesInserted(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesInserted += int64(n)
}

func (m *Metrics) AddArticlesDeleted(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesDeleted += int64(n)
}

func (m *Metrics) IncrementTeasersGenerated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TeasersGenerated++
}

func (m *Metrics) IncrementGenerationFallback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerationFallback++
}

func (m *Metrics) IncrementArticlesApproved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesApproved++
}

func (m *Metrics) IncrementArticlesDiscarded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesDiscarded++
}

func (m *Metrics) IncrementPostsPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostsPublished++
}

func (m *Metrics) IncrementPublishFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishFailures++
}

func (m *Metrics) RecordReconcileTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastReconcileTime = duration
	m.TotalReconcileTime += duration
	m.ReconcileCount++

	if m.ReconcileCount > 0 {
		m.AverageReconcileTime = m.TotalReconcileTime / time.Duration(m.ReconcileCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"feed_entries_seen":         m.FeedEntriesSeen,
		"articles_inserted":         m.ArticlesInserted,
		"articles_deleted":          m.ArticlesDeleted,
		"teasers_generated":         m.TeasersGenerated,
		"generation_fallbacks":      m.GenerationFallback,
		"articles_approved":         m.ArticlesApproved,
		"articles_discarded":        m.ArticlesDiscarded,
		"posts_published":           m.PostsPublished,
		"publish_failures":          m.PublishFailures,
		"last_reconcile_time_ms":    m.LastReconcileTime.Milliseconds(),
		"average_reconcile_time_ms": m.AverageReconcileTime.Milliseconds(),
		"last_run_time":             m.LastRunTime.Format(time.RFC3339),
		"last_error_time":           m.LastErrorTime.Format(time.RFC3339),
		"last_error":                m.LastError,
		"is_healthy":                m.IsHealthy,
	}
}
