// Package review implements the human review state machine: pending articles
// are approved with an edited teaser and visibility, discarded, or sent back
// for another generation pass.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DMXMax/mjfeed/internal/logger"
	"github.com/DMXMax/mjfeed/internal/metrics"
	"github.com/DMXMax/mjfeed/internal/model"
)

var (
	ErrInvalidVisibility = errors.New("invalid visibility")
	ErrEmptyTeaser       = errors.New("teaser must not be empty")
	ErrInvalidTransition = errors.New("operation not allowed in current status")
)

type Store interface {
	ArticleByID(ctx context.Context, id int64) (model.Article, error)
	PendingArticles(ctx context.Context) ([]model.Article, error)
	ApproveArticle(ctx context.Context, id int64, teaserText string, visibility model.Visibility, example model.TeaserExample) error
	UpdateStatus(ctx context.Context, id int64, status model.Status) error
	UpdateTeaser(ctx context.Context, id int64, teaserText string) error
}

// TeaserGenerator produces teaser text for the review flow. Neither method
// fails; a generation problem yields a deterministic fallback teaser.
type TeaserGenerator interface {
	Teaser(ctx context.Context, description string, maxLength int) string
	NewTeaser(ctx context.Context, description, feedback string, maxLength int) string
}

type Service struct {
	store     Store
	generator TeaserGenerator
	maxLen    int
	log       *slog.Logger
}

func New(store Store, generator TeaserGenerator, teaserMaxLength int) *Service {
	return &Service{
		store:     store,
		generator: generator,
		maxLen:    teaserMaxLength,
		log:       logger.With("review"),
	}
}

// Pending lists articles awaiting review, newest first.
func (s *Service) Pending(ctx context.Context) ([]model.Article, error) {
	return s.store.PendingArticles(ctx)
}

// Suggest generates a teaser proposal for a pending article and stores it on
// the article so the review form can prefill it. The article stays pending;
// the reviewer still edits and approves the final text.
func (s *Service) Suggest(ctx context.Context, id int64) (string, error) {
	article, err := s.store.ArticleByID(ctx, id)
	if err != nil {
		return "", err
	}
	if article.Status != model.StatusPending {
		return "", fmt.Errorf("%w: cannot suggest a teaser for %s article", ErrInvalidTransition, article.Status)
	}

	suggestion := s.generator.Teaser(ctx, article.Description, s.maxLen)
	if err := s.store.UpdateTeaser(ctx, id, suggestion); err != nil {
		return "", err
	}

	s.log.Info("teaser suggested", "id", id)
	return suggestion, nil
}

// Approve moves a pending article to approved with the reviewer's final
// teaser and visibility, and records the teaser as a future few-shot
// example.
func (s *Service) Approve(ctx context.Context, id int64, teaserText, visibility string) error {
	article, err := s.store.ArticleByID(ctx, id)
	if err != nil {
		return err
	}
	if article.Status != model.StatusPending {
		return fmt.Errorf("%w: cannot approve %s article", ErrInvalidTransition, article.Status)
	}

	vis, err := model.ParseVisibility(visibility)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidVisibility, visibility)
	}

	teaserText = strings.TrimSpace(teaserText)
	if teaserText == "" {
		return ErrEmptyTeaser
	}

	example := model.TeaserExample{
		Description: article.Description,
		Teaser:      teaserText,
	}
	if err := s.store.ApproveArticle(ctx, id, teaserText, vis, example); err != nil {
		return err
	}

	metrics.Global.IncrementArticlesApproved()
	s.log.Info("article approved", "id", id, "visibility", vis)
	return nil
}

// Discard moves a pending article to discarded.
func (s *Service) Discard(ctx context.Context, id int64) error {
	article, err := s.store.ArticleByID(ctx, id)
	if err != nil {
		return err
	}
	if article.Status != model.StatusPending {
		return fmt.Errorf("%w: cannot discard %s article", ErrInvalidTransition, article.Status)
	}

	if err := s.store.UpdateStatus(ctx, id, model.StatusDiscarded); err != nil {
		return err
	}

	metrics.Global.IncrementArticlesDiscarded()
	s.log.Info("article discarded", "id", id)
	return nil
}

// Resummarize regenerates the teaser of an approved article, treating the
// current teaser as the rejected attempt. The article stays approved.
func (s *Service) Resummarize(ctx context.Context, id int64) (string, error) {
	article, err := s.store.ArticleByID(ctx, id)
	if err != nil {
		return "", err
	}
	if article.Status != model.StatusApproved {
		return "", fmt.Errorf("%w: cannot resummarize %s article", ErrInvalidTransition, article.Status)
	}

	newTeaser := s.generator.NewTeaser(ctx, article.Description, article.Teaser, s.maxLen)
	if err := s.store.UpdateTeaser(ctx, id, newTeaser); err != nil {
		return "", err
	}

	s.log.Info("article resummarized", "id", id)
	return newTeaser, nil
}
