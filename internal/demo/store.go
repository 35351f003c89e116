package demo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an article does not exist.
var ErrNotFound = errors.New("demo: not found")

// Article is a published post.
type Article struct {
	ID        int64     `json:"id" msgpack:"id"`
	Title     string    `json:"title" msgpack:"title"`
	Author    string    `json:"author" msgpack:"author"`
	Body      string    `json:"body" msgpack:"body"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

// Comment is a reader comment on an article.
type Comment struct {
	ID        int64  `json:"id" msgpack:"id"`
	ArticleID int64  `json:"article_id" msgpack:"article_id"`
	Author    string `json:"author" msgpack:"author"`
	Body      string `json:"body" msgpack:"body"`
}

// Store is a SQLite-backed article store the demo widgets fetch from.
type Store struct {
	db *sql.DB
}

// OpenStore opens the database at path (":memory:" for a throwaway store),
// creates the schema and seeds sample data into an empty database.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.initializeSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.seed(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initializeSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			author TEXT NOT NULL,
			body TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_comments_article ON comments(article_id);
		CREATE INDEX IF NOT EXISTS idx_articles_author ON articles(author);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

func (s *Store) seed(ctx context.Context) error {
	n, err := s.CountArticles(ctx)
	if err != nil || n > 0 {
		return err
	}

	now := time.Now()
	articles := []Article{
		{Title: "Composing pages from widgets", Author: "ada", Body: "Every slot resolves on its own."},
		{Title: "Level barriers in practice", Author: "ada", Body: "Siblings fetch together, children wait."},
		{Title: "Caching rendered fragments", Author: "grace", Body: "Same inputs, same markup."},
		{Title: "HTMX partial updates", Author: "grace", Body: "Target a slot, get a slot."},
	}
	for i, a := range articles {
		id, err := s.AddArticle(ctx, a.Title, a.Author, a.Body, now.Add(time.Duration(i)*time.Hour))
		if err != nil {
			return err
		}
		if _, err := s.AddComment(ctx, id, "linus", "Nice write-up."); err != nil {
			return err
		}
	}
	return nil
}

// AddArticle inserts an article and returns its id.
func (s *Store) AddArticle(ctx context.Context, title, author, body string, createdAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (title, author, body, created_at) VALUES (?, ?, ?, ?)`,
		title, author, body, createdAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("add article: %w", err)
	}
	return res.LastInsertId()
}

// AddComment inserts a comment and returns its id.
func (s *Store) AddComment(ctx context.Context, articleID int64, author, body string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (article_id, author, body) VALUES (?, ?, ?)`,
		articleID, author, body)
	if err != nil {
		return 0, fmt.Errorf("add comment: %w", err)
	}
	return res.LastInsertId()
}

// CountArticles returns the number of articles.
func (s *Store) CountArticles(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

// Article returns the article with id.
func (s *Store) Article(ctx context.Context, id int64) (Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, author, body, created_at FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Article{}, fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	return a, err
}

// ListArticles returns the newest articles first.
func (s *Store) ListArticles(ctx context.Context, limit int) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, author, body, created_at FROM articles ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return collectArticles(rows)
}

// Related returns other articles by the same author.
func (s *Store) Related(ctx context.Context, id int64, limit int) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.title, a.author, a.body, a.created_at
		FROM articles a
		JOIN articles src ON src.author = a.author
		WHERE src.id = ? AND a.id != src.id
		ORDER BY a.created_at DESC
		LIMIT ?`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("related articles: %w", err)
	}
	return collectArticles(rows)
}

// Comments returns the comments on an article in posting order.
func (s *Store) Comments(ctx context.Context, articleID int64) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, article_id, author, body FROM comments WHERE article_id = ? ORDER BY id`, articleID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.Author, &c.Body); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (Article, error) {
	var a Article
	var created int64
	if err := row.Scan(&a.ID, &a.Title, &a.Author, &a.Body, &created); err != nil {
		return Article{}, err
	}
	a.CreatedAt = time.Unix(created, 0).UTC()
	return a, nil
}

func collectArticles(rows *sql.Rows) ([]Article, error) {
	defer rows.Close()
	var out []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
