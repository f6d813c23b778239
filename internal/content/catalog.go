// Package content supplies the candidate pools the posting engine draws
// from: a clip catalog (curated seeds plus rows ingested into the database)
// and recent news articles. Both expose stable natural keys so reservations
// dedupe across the fleet.
package content

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smarter-poker/world-hub/pkg/cache"
)

// Candidate is a clip eligible for posting. VideoID identifies the
// underlying media; LibraryID identifies the catalog row. The same video can
// appear under more than one library row, which is why both keys exist and
// both get checked before posting.
type Candidate struct {
	LibraryID   string
	VideoID     string
	SourceURL   string
	Category    string
	Description string
	StartSec    int
	Duration    int
}

// NaturalKey identifies the underlying media, shared across library rows.
func (c Candidate) NaturalKey() string { return "yt:" + c.VideoID }

// AltKey identifies the specific catalog row.
func (c Candidate) AltKey() string { return "clip:" + c.LibraryID }

// EmbedURL renders the clip's playback URL with its start offset.
func (c Candidate) EmbedURL() string {
	if c.StartSec > 0 {
		return fmt.Sprintf("%s?start=%d", c.SourceURL, c.StartSec)
	}
	return c.SourceURL
}

const catalogCacheKey = "clip-catalog"

// Catalog serves the merged clip pool. Database reads go through a short
// in-process memo because every cron trigger walks the full pool.
type Catalog struct {
	db     *sql.DB
	logger logrus.FieldLogger
	memo   *cache.Cache
}

type CatalogConfig struct {
	DB     *sql.DB
	Logger logrus.FieldLogger
	// MemoTTL bounds staleness of the in-process catalog copy.
	MemoTTL time.Duration
}

func NewCatalog(cfg CatalogConfig) *Catalog {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.MemoTTL <= 0 {
		cfg.MemoTTL = 5 * time.Minute
	}
	return &Catalog{
		db:     cfg.DB,
		logger: cfg.Logger,
		memo:   cache.New(cache.Options{TTL: cfg.MemoTTL, MaxEntries: 4}),
	}
}

// Candidates returns the full clip pool: curated seeds first, then active
// library rows. A database failure degrades to seeds only.
func (c *Catalog) Candidates(ctx context.Context) []Candidate {
	pool := make([]Candidate, 0, len(seedClips)+32)
	pool = append(pool, seedClips...)

	if c.db == nil {
		return pool
	}
	val, ok, err := c.memo.Get(ctx, catalogCacheKey, func(ctx context.Context, _ string) (interface{}, bool, error) {
		rows, err := c.loadLibrary(ctx)
		if err != nil {
			return nil, false, err
		}
		return rows, true, nil
	})
	if err != nil {
		c.logger.WithError(err).Warn("Clip library unavailable, using seed pool only")
		return pool
	}
	if ok {
		pool = append(pool, val.([]Candidate)...)
	}
	return pool
}

func (c *Catalog) loadLibrary(ctx context.Context) ([]Candidate, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, source_url, video_id, category, description, start_sec, duration
		FROM clip_library
		WHERE is_active = TRUE
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query clip library: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var cand Candidate
		if err := rows.Scan(&cand.LibraryID, &cand.SourceURL, &cand.VideoID,
			&cand.Category, &cand.Description, &cand.StartSec, &cand.Duration); err != nil {
			return nil, fmt.Errorf("scan clip row: %w", err)
		}
		out = append(out, cand)
	}
	return out, rows.Err()
}

// Invalidate drops the memoized library copy, for use after ingest.
func (c *Catalog) Invalidate() {
	c.memo.Invalidate(catalogCacheKey)
}
