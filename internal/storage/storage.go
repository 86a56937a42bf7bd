// Package storage persists articles and approved-teaser examples in SQLite.
//
// The store is the source of truth for the review pipeline. Reconciliation
// writes happen in a single transaction per run (ReconcileBatch), approval
// writes the status flip and the teaser example atomically, and everything
// else is a single statement.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	"github.com/DMXMax/mjfeed/internal/model"
)

// ErrNotFound is returned for lookups of article IDs that do not exist.
var ErrNotFound = errors.New("article not found")

type Store struct {
	db *sqlx.DB
}

// Open connects to the SQLite database at path, creating the schema when
// missing. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer keeps "database is locked" errors away from the
	// short transactions the workers use.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guid TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		link TEXT NOT NULL,
		pub_date TIMESTAMP NOT NULL,
		description TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		teaser TEXT NOT NULL DEFAULT '',
		article_length INTEGER NOT NULL DEFAULT 0,
		hashtags TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		visibility TEXT NOT NULL DEFAULT 'private',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_articles_guid ON articles(guid);
	CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status);

	CREATE TABLE IF NOT EXISTS teaser_examples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		description TEXT NOT NULL,
		teaser TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// dbArticle maps the articles table; hashtags stay comma-joined only here.
type dbArticle struct {
	ID          int64     `db:"id"`
	GUID        string    `db:"guid"`
	Title       string    `db:"title"`
	Link        string    `db:"link"`
	PubDate     time.Time `db:"pub_date"`
	Description string    `db:"description"`
	Author      string    `db:"author"`
	Teaser      string    `db:"teaser"`
	Length      int       `db:"article_length"`
	Hashtags    string    `db:"hashtags"`
	Status      string    `db:"status"`
	Visibility  string    `db:"visibility"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (a dbArticle) toModel() model.Article {
	return model.Article{
		ID:          a.ID,
		GUID:        a.GUID,
		Title:       a.Title,
		Link:        a.Link,
		PublishedAt: a.PubDate,
		Description: a.Description,
		Author:      a.Author,
		Teaser:      a.Teaser,
		Length:      a.Length,
		Hashtags:    splitTags(a.Hashtags),
		Status:      model.Status(a.Status),
		Visibility:  model.Visibility(a.Visibility),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func splitTags(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

type dbExample struct {
	ID          int64     `db:"id"`
	Description string    `db:"description"`
	Teaser      string    `db:"teaser"`
	CreatedAt   time.Time `db:"created_at"`
}

const articleColumns = `id, guid, title, link, pub_date, description, author,
	teaser, article_length, hashtags, status, visibility, created_at, updated_at`

// GUIDs returns the identifiers of all live articles.
func (s *Store) GUIDs(ctx context.Context) ([]string, error) {
	var guids []string
	if err := s.db.SelectContext(ctx, &guids, `SELECT guid FROM articles`); err != nil {
		return nil, fmt.Errorf("select guids: %w", err)
	}
	return guids, nil
}

// ReconcileBatch applies one reconciliation run atomically: deletions first,
// then all inserts. Any failure rolls back the whole run, so the next
// scheduled tick sees the pre-run state and retries from scratch.
func (s *Store) ReconcileBatch(ctx context.Context, deleteGUIDs []string, inserts []model.Article) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reconcile tx: %w", err)
	}
	defer tx.Rollback()

	if len(deleteGUIDs) > 0 {
		query, args, err := sqlx.In(`DELETE FROM articles WHERE guid IN (?)`, deleteGUIDs)
		if err != nil {
			return fmt.Errorf("build delete query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("delete articles: %w", err)
		}
	}

	now := time.Now().UTC()
	for _, a := range inserts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO articles
				(guid, title, link, pub_date, description, author,
				 teaser, article_length, hashtags, status, visibility,
				 created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.GUID, a.Title, a.Link, a.PublishedAt.UTC(), a.Description, a.Author,
			a.Teaser, a.Length, joinTags(a.Hashtags), string(a.Status), string(a.Visibility),
			now, now,
		)
		if err != nil {
			return fmt.Errorf("insert article %s: %w", a.GUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reconcile tx: %w", err)
	}
	return nil
}

// ArticleByID returns a single article or ErrNotFound.
func (s *Store) ArticleByID(ctx context.Context, id int64) (model.Article, error) {
	var row dbArticle
	err := s.db.GetContext(ctx, &row,
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Article{}, ErrNotFound
	}
	if err != nil {
		return model.Article{}, fmt.Errorf("select article %d: %w", id, err)
	}
	return row.toModel(), nil
}

// AllArticles returns every article, newest publication first.
func (s *Store) AllArticles(ctx context.Context) ([]model.Article, error) {
	return s.articlesWhere(ctx, ``)
}

// PendingArticles returns articles awaiting review.
func (s *Store) PendingArticles(ctx context.Context) ([]model.Article, error) {
	return s.articlesWhere(ctx, string(model.StatusPending))
}

// ApprovedArticles returns articles cleared for publication.
func (s *Store) ApprovedArticles(ctx context.Context) ([]model.Article, error) {
	return s.articlesWhere(ctx, string(model.StatusApproved))
}

func (s *Store) articlesWhere(ctx context.Context, status string) ([]model.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY pub_date DESC, id DESC`

	var rows []dbArticle
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select articles: %w", err)
	}

	return lo.Map(rows, func(row dbArticle, _ int) model.Article {
		return row.toModel()
	}), nil
}

// ApproveArticle flips a pending article to approved with the reviewer's
// teaser and visibility, and appends the teaser example in the same
// transaction. The status predicate makes the flip single-shot: a second
// approve of the same article matches no row and returns ErrNotFound, so
// racing requests cannot append a second example.
func (s *Store) ApproveArticle(ctx context.Context, id int64, teaser string, visibility model.Visibility, example model.TeaserExample) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approve tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE articles
		SET teaser = ?, visibility = ?, status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		teaser, string(visibility), string(model.StatusApproved), now, id,
		string(model.StatusPending))
	if err != nil {
		return fmt.Errorf("approve article %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO teaser_examples (description, teaser, created_at)
		VALUES (?, ?, ?)`,
		example.Description, example.Teaser, now)
	if err != nil {
		return fmt.Errorf("insert teaser example: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approve tx: %w", err)
	}
	return nil
}

// UpdateStatus sets the article status.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status model.Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE articles SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update status of article %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTeaser replaces the article's teaser text, leaving status untouched.
func (s *Store) UpdateTeaser(ctx context.Context, id int64, teaser string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE articles SET teaser = ?, updated_at = ? WHERE id = ?`,
		teaser, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update teaser of article %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPosted advances an article to posted after a confirmed publish.
func (s *Store) MarkPosted(ctx context.Context, id int64) error {
	return s.UpdateStatus(ctx, id, model.StatusPosted)
}

// RecentExamples returns up to limit approved-teaser examples, newest first.
func (s *Store) RecentExamples(ctx context.Context, limit int) ([]model.TeaserExample, error) {
	if limit <= 0 {
		limit = 3
	}

	var rows []dbExample
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, description, teaser, created_at
		FROM teaser_examples
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select teaser examples: %w", err)
	}

	return lo.Map(rows, func(row dbExample, _ int) model.TeaserExample {
		return model.TeaserExample(row)
	}), nil
}

// ExampleCount reports how many approved-teaser examples exist.
func (s *Store) ExampleCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM teaser_examples`); err != nil {
		return 0, fmt.Errorf("count teaser examples: %w", err)
	}
	return count, nil
}
