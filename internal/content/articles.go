package content

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Article is a news item pulled from the ingested RSS table.
type Article struct {
	ID          int64
	URL         string
	Title       string
	Summary     string
	PublishedAt time.Time
}

// NaturalKey derives a stable reservation key from the article URL. URLs are
// long and case-mixed, so a truncated digest of the normalized URL keeps the
// key short and collision-safe in practice.
func (a Article) NaturalKey() string {
	return ArticleKey(a.URL)
}

// ArticleKey normalizes a URL and returns its reservation key.
func ArticleKey(url string) string {
	normalized := strings.ToLower(strings.TrimSpace(url))
	normalized = strings.TrimSuffix(normalized, "/")
	sum := sha256.Sum256([]byte(normalized))
	return "article:" + hex.EncodeToString(sum[:])[:16]
}

// ArticleSource reads recent articles for the posting loop.
type ArticleSource struct {
	db     *sql.DB
	maxAge time.Duration
}

func NewArticleSource(db *sql.DB, maxAge time.Duration) *ArticleSource {
	if maxAge <= 0 {
		maxAge = 48 * time.Hour
	}
	return &ArticleSource{db: db, maxAge: maxAge}
}

// Recent returns articles published within the freshness window, newest
// first, capped at limit.
func (s *ArticleSource) Recent(ctx context.Context, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, title, summary, published_at
		FROM rss_articles
		WHERE published_at > NOW() - make_interval(secs => $1)
		ORDER BY published_at DESC
		LIMIT $2`, s.maxAge.Seconds(), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent articles: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.URL, &a.Title, &a.Summary, &a.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Ingest upserts an article by URL, refreshing title and summary on repeat
// fetches of the same item.
func (s *ArticleSource) Ingest(ctx context.Context, a Article) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rss_articles (url, title, summary, published_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (url) DO UPDATE
		SET title = EXCLUDED.title, summary = EXCLUDED.summary`,
		a.URL, a.Title, a.Summary, a.PublishedAt)
	if err != nil {
		return fmt.Errorf("ingest article: %w", err)
	}
	return nil
}
