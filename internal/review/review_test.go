package review

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DMXMax/mjfeed/internal/model"
	"github.com/DMXMax/mjfeed/internal/storage"
)

type fakeGenerator struct {
	suggestion  string
	reply       string
	gotDesc     string
	gotFeedback string
	gotMaxLen   int
}

func (f *fakeGenerator) Teaser(ctx context.Context, description string, maxLength int) string {
	f.gotDesc = description
	f.gotMaxLen = maxLength
	return f.suggestion
}

func (f *fakeGenerator) NewTeaser(ctx context.Context, description, feedback string, maxLength int) string {
	f.gotDesc = description
	f.gotFeedback = feedback
	f.gotMaxLen = maxLength
	return f.reply
}

func newTestService(t *testing.T) (*Service, *storage.Store, *fakeGenerator) {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	generator := &fakeGenerator{suggestion: "suggested teaser", reply: "rewritten teaser"}
	return New(store, generator, 200), store, generator
}

func seedPending(t *testing.T, store *storage.Store, guid string) model.Article {
	t.Helper()

	article := model.Article{
		GUID:        guid,
		Title:       "Title " + guid,
		Link:        "https://example.com/" + guid,
		PublishedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Description: "Description " + guid,
		Status:      model.StatusPending,
		Visibility:  model.VisibilityPrivate,
	}
	if err := store.ReconcileBatch(context.Background(), nil, []model.Article{article}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	pending, err := store.PendingArticles(context.Background())
	if err != nil {
		t.Fatalf("PendingArticles failed: %v", err)
	}
	for _, a := range pending {
		if a.GUID == guid {
			return a
		}
	}
	t.Fatalf("seeded article %q not found", guid)
	return model.Article{}
}

func TestApprove(t *testing.T) {
	t.Parallel()
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	article := seedPending(t, store, "a")

	if err := svc.Approve(ctx, article.ID, "  Final teaser  ", "public"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	got, err := store.ArticleByID(ctx, article.ID)
	if err != nil {
		t.Fatalf("ArticleByID failed: %v", err)
	}
	if got.Status != model.StatusApproved || got.Teaser != "Final teaser" || got.Visibility != model.VisibilityPublic {
		t.Errorf("approved article = %+v", got)
	}

	examples, err := store.RecentExamples(ctx, 1)
	if err != nil {
		t.Fatalf("RecentExamples failed: %v", err)
	}
	if len(examples) != 1 || examples[0].Teaser != "Final teaser" || examples[0].Description != article.Description {
		t.Errorf("example not recorded: %+v", examples)
	}
}

func TestApproveRejectsBadVisibility(t *testing.T) {
	t.Parallel()
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	article := seedPending(t, store, "a")

	err := svc.Approve(ctx, article.ID, "teaser", "sideways")
	if !errors.Is(err, ErrInvalidVisibility) {
		t.Fatalf("expected ErrInvalidVisibility, got %v", err)
	}

	got, _ := store.ArticleByID(ctx, article.ID)
	if got.Status != model.StatusPending {
		t.Errorf("status changed on rejected approve: %s", got.Status)
	}
}

func TestApproveRejectsEmptyTeaser(t *testing.T) {
	t.Parallel()
	svc, store, _ := newTestService(t)
	article := seedPending(t, store, "a")

	err := svc.Approve(context.Background(), article.ID, "   ", "public")
	if !errors.Is(err, ErrEmptyTeaser) {
		t.Fatalf("expected ErrEmptyTeaser, got %v", err)
	}
}

func TestApproveOnlyFromPending(t *testing.T) {
	t.Parallel()
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	article := seedPending(t, store, "a")

	if err := svc.Approve(ctx, article.ID, "teaser", "public"); err != nil {
		t.Fatalf("first approve failed: %v", err)
	}

	err := svc.Approve(ctx, article.ID, "another", "public")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestApproveNotFound(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)

	err := svc.Approve(context.Background(), 9999, "teaser", "public")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	article := seedPending(t, store, "a")

	if err := svc.Discard(ctx, article.ID); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}

	got, _ := store.ArticleByID(ctx, article.ID)
	if got.Status != model.StatusDiscarded {
		t.Errorf("status = %s, want discarded", got.Status)
	}

	if err := svc.Discard(ctx, article.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on double discard, got %v", err)
	}
}

func TestSuggest(t *testing.T) {
	t.Parallel()
	svc, store, generator := newTestService(t)
	ctx := context.Background()
	article := seedPending(t, store, "a")

	teaser, err := svc.Suggest(ctx, article.ID)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if teaser != "suggested teaser" {
		t.Errorf("Suggest = %q", teaser)
	}
	if generator.gotDesc != article.Description || generator.gotMaxLen != 200 {
		t.Errorf("generator inputs = %q / %d", generator.gotDesc, generator.gotMaxLen)
	}

	got, _ := store.ArticleByID(ctx, article.ID)
	if got.Teaser != "suggested teaser" {
		t.Errorf("suggestion not stored: %q", got.Teaser)
	}
	if got.Status != model.StatusPending {
		t.Errorf("status changed: %s", got.Status)
	}
}

func TestSuggestOnlyFromPending(t *testing.T) {
	t.Parallel()
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	article := seedPending(t, store, "a")

	if err := svc.Discard(ctx, article.ID); err != nil {
		t.Fatalf("discard failed: %v", err)
	}

	if _, err := svc.Suggest(ctx, article.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestResummarize(t *testing.T) {
	t.Parallel()
	svc, store, generator := newTestService(t)
	ctx := context.Background()
	article := seedPending(t, store, "a")

	if err := svc.Approve(ctx, article.ID, "first teaser", "public"); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	newTeaser, err := svc.Resummarize(ctx, article.ID)
	if err != nil {
		t.Fatalf("Resummarize failed: %v", err)
	}
	if newTeaser != "rewritten teaser" {
		t.Errorf("Resummarize = %q", newTeaser)
	}
	if generator.gotFeedback != "first teaser" || generator.gotDesc != article.Description {
		t.Errorf("generator inputs = %q / %q", generator.gotDesc, generator.gotFeedback)
	}
	if generator.gotMaxLen != 200 {
		t.Errorf("maxLength = %d, want 200", generator.gotMaxLen)
	}

	got, _ := store.ArticleByID(ctx, article.ID)
	if got.Teaser != "rewritten teaser" {
		t.Errorf("teaser not updated: %q", got.Teaser)
	}
	if got.Status != model.StatusApproved {
		t.Errorf("status changed: %s", got.Status)
	}
}

func TestResummarizeOnlyFromApproved(t *testing.T) {
	t.Parallel()
	svc, store, _ := newTestService(t)
	article := seedPending(t, store, "a")

	_, err := svc.Resummarize(context.Background(), article.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
