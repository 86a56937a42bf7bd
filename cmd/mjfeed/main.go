package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DMXMax/mjfeed/internal/config"
	"github.com/DMXMax/mjfeed/internal/gemini"
	"github.com/DMXMax/mjfeed/internal/logger"
	"github.com/DMXMax/mjfeed/internal/mastodon"
	"github.com/DMXMax/mjfeed/internal/publish"
	"github.com/DMXMax/mjfeed/internal/reconcile"
	"github.com/DMXMax/mjfeed/internal/review"
	"github.com/DMXMax/mjfeed/internal/storage"
	"github.com/DMXMax/mjfeed/internal/teaser"
	"github.com/DMXMax/mjfeed/internal/trends"
	"github.com/DMXMax/mjfeed/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// A nil generator keeps the pipeline running on deterministic fallbacks.
	var textGen teaser.TextGenerator
	if cfg.GoogleAPIKey != "" {
		client, err := gemini.NewClient(ctx, cfg.GoogleAPIKey)
		if err != nil {
			logger.Error("create Gemini client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		textGen = client
	} else {
		logger.Warn("GOOGLE_API_KEY not set, running with fallback generation")
	}

	masto := mastodon.NewClient(cfg.MastodonInstanceURL, cfg.MastodonAccessToken)
	trendCache := trends.New(masto, cfg.TrendsLimit, cfg.TrendsTTL)

	gen := teaser.NewGenerator(textGen, trendCache, store, cfg.DefaultHashtags, teaser.Limits{
		LongThreshold:         cfg.LongThreshold,
		SummaryTargetLength:   cfg.SummaryTargetLength,
		SummaryPromptMaxChars: cfg.SummaryPromptMaxChars,
	})

	reconciler := reconcile.New(store, gen, cfg.FeedURL, cfg.PollInterval)
	publisher := publish.New(store, masto, cfg.DirectMention, cfg.PublishInterval)
	reviewSvc := review.New(store, gen, cfg.TeaserMaxLength)

	go refreshTrends(ctx, trendCache, cfg.TrendsRefreshInterval)
	go reconciler.Start(ctx)
	go publisher.Start(ctx)

	mux := http.NewServeMux()
	web.New(reviewSvc, store).Register(mux)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
}

func refreshTrends(ctx context.Context, cache *trends.Cache, interval time.Duration) {
	log := logger.With("trends")

	if _, err := cache.Refresh(ctx); err != nil {
		log.Warn("initial trends refresh failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := cache.Refresh(ctx); err != nil {
				log.Warn("trends refresh failed", "error", err)
			}
		}
	}
}
