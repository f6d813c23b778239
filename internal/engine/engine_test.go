package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarter-poker/world-hub/internal/captions"
	"github.com/smarter-poker/world-hub/internal/content"
	"github.com/smarter-poker/world-hub/internal/feed"
	"github.com/smarter-poker/world-hub/internal/reservation"
	"github.com/smarter-poker/world-hub/internal/schedule"
)

// lowSource emits varied values whose Float64 stays under 0.125, so every
// activity-rate roll passes. The values must vary: a constant source traps
// rand.Shuffle in its rejection-sampling loop for some pool sizes.
type lowSource struct{ state uint64 }

func (s *lowSource) Int63() int64 {
	s.state += 0x9E3779B97F4A7C15
	return int64(s.state >> 4)
}

func (s *lowSource) Seed(int64) {}

// halfSource yields Float64() == 0.5, above every posting rate.
type halfSource struct{}

func (halfSource) Int63() int64 { return 1 << 62 }
func (halfSource) Seed(int64)   {}

// fakeDedup is an in-memory Deduplicator with the same exactly-once
// semantics as the real store, safe for concurrent use.
type fakeDedup struct {
	mu       sync.Mutex
	claimed  map[string]string
	attempts int
	failWith error
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{claimed: make(map[string]string)}
}

func (f *fakeDedup) TryReserve(_ context.Context, req reservation.Request) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failWith != nil {
		return false, f.failWith
	}
	if _, taken := f.claimed[req.NaturalKey]; taken {
		return false, nil
	}
	f.claimed[req.NaturalKey] = req.ClaimantID
	return true, nil
}

func (f *fakeDedup) RecentlyReserved(_ context.Context, keys []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool)
	for _, k := range keys {
		if _, taken := f.claimed[k]; taken {
			out[k] = true
		}
	}
	return out, nil
}

func (f *fakeDedup) AttachPost(_ context.Context, naturalKey, postID string) error {
	return nil
}

// fakeFeed records writes in memory.
type fakeFeed struct {
	mu         sync.Mutex
	posts      []feed.Post
	likes      map[string]int
	comments   []string
	stories    int
	failCreate bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{likes: make(map[string]int)}
}

func (f *fakeFeed) CreatePost(_ context.Context, authorID, content, contentType string, mediaURLs []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return "", errors.New("feed write failed")
	}
	id := fmt.Sprintf("post-%d", len(f.posts)+1)
	f.posts = append(f.posts, feed.Post{ID: id, AuthorID: authorID, Content: content, ContentType: contentType, MediaURLs: mediaURLs})
	return id, nil
}

func (f *fakeFeed) CreateStory(_ context.Context, authorID, mediaURL, mediaType string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stories++
	return fmt.Sprintf("story-%d", f.stories), nil
}

func (f *fakeFeed) RecentPosts(context.Context, int) ([]feed.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]feed.Post(nil), f.posts...), nil
}

func (f *fakeFeed) Like(_ context.Context, postID, authorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.likes[postID]++
	return nil
}

func (f *fakeFeed) Comment(_ context.Context, postID, authorID, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, content)
	return fmt.Sprintf("comment-%d", len(f.comments)), nil
}

type staticClips []content.Candidate

func (s staticClips) Candidates(context.Context) []content.Candidate { return s }

type staticCaptions struct{}

func (staticCaptions) Generate(_ context.Context, item captions.Item) (string, error) {
	return "caption for " + item.Category, nil
}

// onDutyClock returns a Now func placing the persona inside its slot window
// and awake hours, so schedule filtering passes deterministically.
func onDutyClock(t *testing.T, assigner *schedule.Assigner, personaID string) func() time.Time {
	t.Helper()
	minute := assigner.SlotMinute(personaID)
	hour := assigner.ActiveWindow(personaID).Start
	at := time.Date(2025, 6, 15, hour, minute, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func testEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.Rand == nil {
		cfg.Rand = rand.New(&lowSource{})
	}
	if cfg.Captions == nil {
		cfg.Captions = staticCaptions{}
	}
	return New(cfg)
}

func TestRunClipsPostsForOnDutyPersona(t *testing.T) {
	assigner := schedule.NewAssigner(nil, nil)
	dedup := newFakeDedup()
	fd := newFakeFeed()
	persona := Persona{ID: "persona-alpha"}

	eng := testEngine(t, Config{
		Personas: StaticPersonas{persona},
		Clips:    staticClips{{LibraryID: "lib-1", VideoID: "vid-1", SourceURL: "https://www.youtube.com/embed/vid-1", Category: "bluff"}},
		Dedup:    dedup,
		Feed:     fd,
		Assigner: assigner,
		Now:      onDutyClock(t, assigner, persona.ID),
	})

	res, err := eng.RunClips(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Posted)
	assert.Equal(t, 0, res.Conflicts)
	require.Len(t, fd.posts, 1)
	assert.Equal(t, persona.ID, fd.posts[0].AuthorID)
	assert.Equal(t, "clip", fd.posts[0].ContentType)
	assert.Equal(t, "persona-alpha", dedup.claimed["yt:vid-1"])
}

func TestRunClipsSkipsOffSchedulePersona(t *testing.T) {
	assigner := schedule.NewAssigner(nil, nil)
	persona := Persona{ID: "persona-alpha"}

	// pick a minute maximally far from the persona's slot
	offMinute := (assigner.SlotMinute(persona.ID) + 30) % 60
	hour := assigner.ActiveWindow(persona.ID).Start
	at := time.Date(2025, 6, 15, hour, offMinute, 0, 0, time.UTC)

	eng := testEngine(t, Config{
		Personas: StaticPersonas{persona},
		Clips:    staticClips{{LibraryID: "lib-1", VideoID: "vid-1"}},
		Dedup:    newFakeDedup(),
		Feed:     newFakeFeed(),
		Assigner: assigner,
		Now:      func() time.Time { return at },
	})

	res, err := eng.RunClips(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Posted)
	assert.Equal(t, 1, res.SkippedSchedule)
}

func TestRunClipsSkipsOnFailedRateRoll(t *testing.T) {
	assigner := schedule.NewAssigner(nil, nil)
	persona := Persona{ID: "persona-alpha"}

	eng := testEngine(t, Config{
		Personas: StaticPersonas{persona},
		Clips:    staticClips{{LibraryID: "lib-1", VideoID: "vid-1"}},
		Dedup:    newFakeDedup(),
		Feed:     newFakeFeed(),
		Assigner: assigner,
		Now:      onDutyClock(t, assigner, persona.ID),
		Rand:     rand.New(halfSource{}),
	})

	res, err := eng.RunClips(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Posted)
	assert.Equal(t, 1, res.SkippedRate)
}

func TestRunClipsMutualExclusion(t *testing.T) {
	// Two engines model two concurrent invocations on different machines.
	// They share only the dedup store; exactly one may post the clip.
	assigner := schedule.NewAssigner(nil, nil)
	dedup := newFakeDedup()
	pool := staticClips{{LibraryID: "lib-1", VideoID: "vid-1", SourceURL: "https://www.youtube.com/embed/vid-1"}}

	personaA := Persona{ID: "persona-alpha"}
	personaB := Persona{ID: "persona-bravo"}
	feedA, feedB := newFakeFeed(), newFakeFeed()

	mkEngine := func(p Persona, fd *fakeFeed) *Engine {
		return testEngine(t, Config{
			Personas: StaticPersonas{p},
			Clips:    pool,
			Dedup:    dedup,
			Feed:     fd,
			Assigner: assigner,
			Now:      onDutyClock(t, assigner, p.ID),
		})
	}
	engA := mkEngine(personaA, feedA)
	engB := mkEngine(personaB, feedB)

	var wg sync.WaitGroup
	results := make([]Results, 2)
	wg.Add(2)
	go func() { defer wg.Done(); results[0], _ = engA.RunClips(context.Background()) }()
	go func() { defer wg.Done(); results[1], _ = engB.RunClips(context.Background()) }()
	wg.Wait()

	assert.Equal(t, 1, results[0].Posted+results[1].Posted, "exactly one invocation wins the key")
	assert.Len(t, append(feedA.posts, feedB.posts...), 1)
}

func TestRunClipsAttemptBudget(t *testing.T) {
	assigner := schedule.NewAssigner(nil, nil)
	persona := Persona{ID: "persona-alpha"}

	pool := make(staticClips, 30)
	dedup := newFakeDedup()
	for i := range pool {
		pool[i] = content.Candidate{LibraryID: fmt.Sprintf("lib-%d", i), VideoID: fmt.Sprintf("vid-%d", i)}
		// every candidate is already claimed by someone else
		dedup.claimed[pool[i].NaturalKey()] = "other"
	}
	// hide the claims from the advisory prefill so the loop actually runs
	advisoryBlind := &blindDedup{inner: dedup}

	eng := testEngine(t, Config{
		Personas:      StaticPersonas{persona},
		Clips:         pool,
		Dedup:         advisoryBlind,
		Feed:          newFakeFeed(),
		Assigner:      assigner,
		Now:           onDutyClock(t, assigner, persona.ID),
		AttemptBudget: 20,
	})

	res, err := eng.RunClips(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Posted)
	assert.Equal(t, 20, res.Conflicts, "loop stops at the attempt budget")
	assert.Equal(t, 20, dedup.attempts)
}

// blindDedup hides RecentlyReserved results, forcing the loop down the
// authoritative TryReserve path.
type blindDedup struct {
	inner *fakeDedup
}

func (b *blindDedup) TryReserve(ctx context.Context, req reservation.Request) (bool, error) {
	return b.inner.TryReserve(ctx, req)
}

func (b *blindDedup) RecentlyReserved(context.Context, []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (b *blindDedup) AttachPost(ctx context.Context, naturalKey, postID string) error {
	return b.inner.AttachPost(ctx, naturalKey, postID)
}

func TestRunClipsAdvisoryPrefillSkipsClaimed(t *testing.T) {
	assigner := schedule.NewAssigner(nil, nil)
	persona := Persona{ID: "persona-alpha"}

	dedup := newFakeDedup()
	dedup.claimed["yt:vid-1"] = "other"

	eng := testEngine(t, Config{
		Personas: StaticPersonas{persona},
		Clips:    staticClips{{LibraryID: "lib-1", VideoID: "vid-1"}},
		Dedup:    dedup,
		Feed:     newFakeFeed(),
		Assigner: assigner,
		Now:      onDutyClock(t, assigner, persona.ID),
	})

	res, err := eng.RunClips(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Posted)
	assert.Equal(t, 0, res.Conflicts, "advisory prefill avoids the claim attempt entirely")
	assert.Equal(t, 0, dedup.attempts)
}

func TestRunClipsPostFailureLeavesReservation(t *testing.T) {
	assigner := schedule.NewAssigner(nil, nil)
	persona := Persona{ID: "persona-alpha"}
	dedup := newFakeDedup()
	fd := newFakeFeed()
	fd.failCreate = true

	eng := testEngine(t, Config{
		Personas: StaticPersonas{persona},
		Clips:    staticClips{{LibraryID: "lib-1", VideoID: "vid-1"}},
		Dedup:    dedup,
		Feed:     fd,
		Assigner: assigner,
		Now:      onDutyClock(t, assigner, persona.ID),
	})

	res, err := eng.RunClips(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Posted)
	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, "persona-alpha", dedup.claimed["yt:vid-1"], "the orphaned reservation stands")
}

func TestRunClipsStoreErrorMovesOn(t *testing.T) {
	assigner := schedule.NewAssigner(nil, nil)
	persona := Persona{ID: "persona-alpha"}
	dedup := newFakeDedup()
	dedup.failWith = reservation.ErrStoreUnavailable

	eng := testEngine(t, Config{
		Personas: StaticPersonas{persona},
		Clips:    staticClips{{LibraryID: "lib-1", VideoID: "vid-1"}},
		Dedup:    &blindDedup{inner: dedup},
		Feed:     newFakeFeed(),
		Assigner: assigner,
		Now:      onDutyClock(t, assigner, persona.ID),
	})

	res, err := eng.RunClips(context.Background())
	require.NoError(t, err, "store trouble never fails the whole trigger")
	assert.Equal(t, 0, res.Posted)
}

type staticArticles []content.Article

func (s staticArticles) Recent(context.Context, int) ([]content.Article, error) { return s, nil }

func TestRunArticlesPostsWithLink(t *testing.T) {
	assigner := schedule.NewAssigner(nil, nil)
	persona := Persona{ID: "persona-alpha"}
	dedup := newFakeDedup()
	fd := newFakeFeed()

	eng := testEngine(t, Config{
		Personas: StaticPersonas{persona},
		Articles: staticArticles{{URL: "https://news.example.com/story", Title: "Big final table"}},
		Dedup:    dedup,
		Feed:     fd,
		Assigner: assigner,
		Now:      onDutyClock(t, assigner, persona.ID),
	})

	res, err := eng.RunArticles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Posted)
	require.Len(t, fd.posts, 1)
	assert.Equal(t, "article", fd.posts[0].ContentType)
	assert.Contains(t, fd.posts[0].Content, "https://news.example.com/story")
	_, claimed := dedup.claimed[content.ArticleKey("https://news.example.com/story")]
	assert.True(t, claimed)
}

func TestRunEngagementGuardedPerDay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	assigner := schedule.NewAssigner(nil, nil)
	persona := Persona{ID: "persona-alpha"}
	fd := newFakeFeed()
	fd.posts = []feed.Post{{ID: "post-1", AuthorID: "someone-else", Content: "nice hand"}}

	hour := assigner.ActiveWindow(persona.ID).Start
	at := time.Date(2025, 6, 15, hour, 0, 0, 0, time.UTC)

	eng := testEngine(t, Config{
		Personas: StaticPersonas{persona},
		Dedup:    newFakeDedup(),
		Feed:     fd,
		Assigner: assigner,
		Redis:    client,
		Now:      func() time.Time { return at },
	})

	first, err := eng.RunEngagement(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Likes)
	assert.Equal(t, 1, first.Comments)

	second, err := eng.RunEngagement(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Likes, "pair already considered today")
	assert.Equal(t, 0, second.Comments)
}

func TestRunEngagementSkipsOwnPosts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	assigner := schedule.NewAssigner(nil, nil)
	persona := Persona{ID: "persona-alpha"}
	fd := newFakeFeed()
	fd.posts = []feed.Post{{ID: "post-1", AuthorID: persona.ID, Content: "my own post"}}

	hour := assigner.ActiveWindow(persona.ID).Start
	at := time.Date(2025, 6, 15, hour, 0, 0, 0, time.UTC)

	eng := testEngine(t, Config{
		Personas: StaticPersonas{persona},
		Dedup:    newFakeDedup(),
		Feed:     fd,
		Assigner: assigner,
		Redis:    client,
		Now:      func() time.Time { return at },
	})

	res, err := eng.RunEngagement(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Likes)
	assert.Equal(t, 0, res.Comments)
}

func TestRunEngagementSkipsAsleepPersona(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	assigner := schedule.NewAssigner(nil, nil)
	persona := Persona{ID: "persona-alpha"}
	fd := newFakeFeed()
	fd.posts = []feed.Post{{ID: "post-1", AuthorID: "someone-else"}}

	// an hour outside the persona's awake window
	asleep := (assigner.ActiveWindow(persona.ID).Start + 13) % 24
	at := time.Date(2025, 6, 15, asleep, 0, 0, 0, time.UTC)

	eng := testEngine(t, Config{
		Personas: StaticPersonas{persona},
		Dedup:    newFakeDedup(),
		Feed:     fd,
		Assigner: assigner,
		Redis:    client,
		Now:      func() time.Time { return at },
	})

	res, err := eng.RunEngagement(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Likes)
}
