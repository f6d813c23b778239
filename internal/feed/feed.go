// Package feed persists the social surface the personas write to: posts,
// stories, likes, and comments.
package feed

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Post is a feed entry as stored.
type Post struct {
	ID          string
	AuthorID    string
	Content     string
	ContentType string
	MediaURLs   []string
	Visibility  string
	CreatedAt   time.Time
}

// Feed is the write and read surface used by the posting engine.
type Feed interface {
	CreatePost(ctx context.Context, authorID, content, contentType string, mediaURLs []string) (string, error)
	CreateStory(ctx context.Context, authorID, mediaURL, mediaType string, ttl time.Duration) (string, error)
	RecentPosts(ctx context.Context, limit int) ([]Post, error)
	Like(ctx context.Context, postID, authorID string) error
	Comment(ctx context.Context, postID, authorID, content string) (string, error)
}

// Store is the Postgres implementation of Feed. IDs are generated
// application-side so callers can link related rows without a read back.
type Store struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

func NewStore(db *sql.DB, logger logrus.FieldLogger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) CreatePost(ctx context.Context, authorID, content, contentType string, mediaURLs []string) (string, error) {
	id := uuid.New().String()
	if mediaURLs == nil {
		mediaURLs = []string{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO social_posts (id, author_id, content, content_type, media_urls, visibility)
		VALUES ($1, $2, $3, $4, $5, 'public')`,
		id, authorID, content, contentType, pq.Array(mediaURLs))
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"post_id":   id,
		"author_id": authorID,
		"type":      contentType,
	}).Info("Post created")
	return id, nil
}

func (s *Store) CreateStory(ctx context.Context, authorID, mediaURL, mediaType string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stories (id, author_id, media_url, media_type, expires_at)
		VALUES ($1, $2, $3, $4, NOW() + make_interval(secs => $5))`,
		id, authorID, mediaURL, mediaType, ttl.Seconds())
	if err != nil {
		return "", fmt.Errorf("create story: %w", err)
	}
	return id, nil
}

func (s *Store) RecentPosts(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author_id, content, content_type, media_urls, visibility, created_at
		FROM social_posts
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent posts: %w", err)
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Content, &p.ContentType,
			pq.Array(&p.MediaURLs), &p.Visibility, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Like records a like. Repeat likes by the same author are absorbed by the
// primary key so the operation is safe to retry.
func (s *Store) Like(ctx context.Context, postID, authorID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_likes (post_id, author_id)
		VALUES ($1, $2)
		ON CONFLICT (post_id, author_id) DO NOTHING`,
		postID, authorID)
	if err != nil {
		return fmt.Errorf("like post: %w", err)
	}
	return nil
}

func (s *Store) Comment(ctx context.Context, postID, authorID, content string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_comments (id, post_id, author_id, content)
		VALUES ($1, $2, $3, $4)`,
		id, postID, authorID, content)
	if err != nil {
		return "", fmt.Errorf("comment on post: %w", err)
	}
	return id, nil
}
