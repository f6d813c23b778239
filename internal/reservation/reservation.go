// Package reservation implements the cross-invocation posting dedup. Many
// stateless cron invocations race to post the same clip; the only thing they
// share is Postgres, so the claim is a single atomic insert against a unique
// index. There is deliberately no in-process locking here: a local lock
// protects nothing when the competing caller is on another machine.
package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/smarter-poker/world-hub/pkg/logging"
)

// ContentType selects the cooldown applied to a natural key.
type ContentType string

const (
	ContentClip    ContentType = "clip"
	ContentArticle ContentType = "article"
)

var (
	// ErrAlreadyReserved means the key is claimed and still inside its
	// cooldown window. Expected, not exceptional: callers move on to the
	// next candidate.
	ErrAlreadyReserved = errors.New("content already reserved")

	// ErrStoreUnavailable means the claim could not be attempted at all.
	// Callers treat it exactly like a conflict; a missed post is acceptable,
	// a duplicate is not.
	ErrStoreUnavailable = errors.New("reservation store unavailable")
)

// Request describes a claim attempt.
type Request struct {
	NaturalKey  string
	ClaimantID  string
	SourceRef   string
	ContentType ContentType
}

// Deduplicator is the capability the selection loop depends on. The real
// implementation is Store; AllowAll stands in when no store can be
// constructed, trading dedup for availability explicitly rather than through
// scattered nil checks.
type Deduplicator interface {
	// TryReserve atomically claims the key. Exactly one concurrent caller
	// per key per cooldown window sees (true, nil).
	TryReserve(ctx context.Context, req Request) (bool, error)

	// RecentlyReserved reports which of the given keys currently hold a live
	// reservation. Advisory only: it exists so the selection loop can skip
	// obviously-taken candidates (including alternate keys for the same
	// media) before paying for a claim attempt. It is never the basis of the
	// uniqueness guarantee.
	RecentlyReserved(ctx context.Context, keys []string) (map[string]bool, error)

	// AttachPost back-links the created post onto the reservation.
	// Best-effort; failures are logged and ignored.
	AttachPost(ctx context.Context, naturalKey, postID string) error
}

// Store is the Postgres-backed Deduplicator.
type Store struct {
	db        *sql.DB
	logger    logging.Logger
	cooldowns map[ContentType]time.Duration
}

// Config holds reservation store settings.
type Config struct {
	DB              *sql.DB
	Logger          logging.Logger
	ClipCooldown    time.Duration
	ArticleCooldown time.Duration
}

// NewStore builds the Postgres store. Zero cooldowns get the standard
// defaults.
func NewStore(cfg Config) *Store {
	clip := cfg.ClipCooldown
	if clip == 0 {
		clip = 24 * time.Hour
	}
	article := cfg.ArticleCooldown
	if article == 0 {
		article = 4 * time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Store{
		db:     cfg.DB,
		logger: logger,
		cooldowns: map[ContentType]time.Duration{
			ContentClip:    clip,
			ContentArticle: article,
		},
	}
}

// Cooldown returns the window for a content type.
func (s *Store) Cooldown(ct ContentType) time.Duration {
	if d, ok := s.cooldowns[ct]; ok {
		return d
	}
	return s.cooldowns[ContentClip]
}

// TryReserve claims the natural key with one atomic statement. The unique
// index on natural_key makes the insert the race arbiter; the conditional
// upsert re-claims keys whose previous reservation has aged past the
// cooldown. A read-then-write pair here would reintroduce the exact race
// this package exists to close.
func (s *Store) TryReserve(ctx context.Context, req Request) (bool, error) {
	if req.NaturalKey == "" {
		return false, fmt.Errorf("%w: empty natural key", ErrStoreUnavailable)
	}

	cooldown := s.Cooldown(req.ContentType)

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO content_reservations (natural_key, claimed_by, source_ref, content_type, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (natural_key) DO UPDATE SET
			claimed_by = EXCLUDED.claimed_by,
			source_ref = EXCLUDED.source_ref,
			content_type = EXCLUDED.content_type,
			post_id = NULL,
			created_at = NOW()
		WHERE content_reservations.created_at < NOW() - make_interval(secs => $5)
		RETURNING id
	`, req.NaturalKey, req.ClaimantID, req.SourceRef, string(req.ContentType),
		cooldown.Seconds()).Scan(&id)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		// Conflict path: the key exists and is still cooling down.
		return false, ErrAlreadyReserved
	case isUniqueViolation(err):
		// Two upserts can still collide under serialization pressure; the
		// loser is simply not the claimant.
		return false, ErrAlreadyReserved
	default:
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// RecentlyReserved checks which keys hold a live reservation. A query error
// returns an empty result so callers fall through to TryReserve, which
// remains the authority.
func (s *Store) RecentlyReserved(ctx context.Context, keys []string) (map[string]bool, error) {
	taken := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return taken, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT natural_key, content_type, created_at
		FROM content_reservations
		WHERE natural_key = ANY($1)
	`, pq.Array(keys))
	if err != nil {
		return taken, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	now := time.Now()
	for rows.Next() {
		var key, ct string
		var createdAt time.Time
		if err := rows.Scan(&key, &ct, &createdAt); err != nil {
			return taken, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if now.Sub(createdAt) < s.Cooldown(ContentType(ct)) {
			taken[key] = true
		}
	}
	return taken, rows.Err()
}

// AttachPost links the created post to its reservation.
func (s *Store) AttachPost(ctx context.Context, naturalKey, postID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE content_reservations SET post_id = $2 WHERE natural_key = $1
	`, naturalKey, postID)
	if err != nil {
		s.logger.WithError(err).WithField("natural_key", naturalKey).
			Warn("Failed to attach post to reservation")
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// AllowAll is the no-dedup stand-in used when the store cannot be built. It
// reserves everything and remembers nothing.
type AllowAll struct{}

func (AllowAll) TryReserve(context.Context, Request) (bool, error) { return true, nil }

func (AllowAll) RecentlyReserved(_ context.Context, keys []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (AllowAll) AttachPost(context.Context, string, string) error { return nil }
