// Package engine runs the persona behavior loops. Each cron trigger fans
// out over the active personas, filters them down to the ones whose derived
// schedule says "act now", and runs the candidate selection loop for the
// survivors. All cross-process coordination goes through the reservation
// store; the engine itself holds no state between triggers.
package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/smarter-poker/world-hub/internal/captions"
	"github.com/smarter-poker/world-hub/internal/content"
	"github.com/smarter-poker/world-hub/internal/feed"
	"github.com/smarter-poker/world-hub/internal/reservation"
	"github.com/smarter-poker/world-hub/internal/schedule"
	"github.com/smarter-poker/world-hub/internal/voice"
)

// Captioner produces post text for a content item.
type Captioner interface {
	Generate(ctx context.Context, item captions.Item) (string, error)
}

// CandidateSource lists the clip pool for a trigger.
type CandidateSource interface {
	Candidates(ctx context.Context) []content.Candidate
}

// ArticleLister lists recent articles for a trigger.
type ArticleLister interface {
	Recent(ctx context.Context, limit int) ([]content.Article, error)
}

// Config wires an Engine. Personas, Dedup, and Feed are required; the rest
// default sensibly.
type Config struct {
	Personas PersonaSource
	Clips    CandidateSource
	Articles ArticleLister
	Dedup    reservation.Deduplicator
	Feed     feed.Feed
	Captions Captioner
	Assigner *schedule.Assigner
	Rates    *schedule.RateModel
	Redis    redis.UniversalClient
	Logger   logrus.FieldLogger

	// AttemptBudget bounds the candidate loop per persona so a run of
	// conflicts cannot eat the invocation's wall-clock budget.
	AttemptBudget int
	// SlotTolerance is the +/- minutes around a persona's slot minute in
	// which a trigger counts as "theirs".
	SlotTolerance int
	// PersonasPerTrigger caps how many personas post in one invocation.
	PersonasPerTrigger int

	// Rand and Now are injectable for tests. Defaults: time-seeded rand,
	// time.Now.
	Rand *rand.Rand
	Now  func() time.Time
}

type Engine struct {
	cfg    Config
	logger logrus.FieldLogger
	rand   *rand.Rand
	now    func() time.Time
}

func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.AttemptBudget <= 0 {
		cfg.AttemptBudget = 20
	}
	if cfg.SlotTolerance <= 0 {
		cfg.SlotTolerance = 2
	}
	if cfg.PersonasPerTrigger <= 0 {
		cfg.PersonasPerTrigger = 3
	}
	if cfg.Assigner == nil {
		cfg.Assigner = schedule.NewAssigner(nil, nil)
	}
	if cfg.Rates == nil {
		cfg.Rates = schedule.NewRateModel()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{cfg: cfg, logger: cfg.Logger, rand: rng, now: now}
}

// Results summarizes one posting trigger.
type Results struct {
	Personas        int      `json:"personas"`
	Posted          int      `json:"posted"`
	SkippedSchedule int      `json:"skippedSchedule"`
	SkippedRate     int      `json:"skippedRate"`
	Conflicts       int      `json:"conflicts"`
	Failures        int      `json:"failures"`
	PostIDs         []string `json:"postIds,omitempty"`
}

// RunClips executes one clip-posting trigger across the fleet of personas.
func (e *Engine) RunClips(ctx context.Context) (Results, error) {
	personas, err := e.cfg.Personas.Active(ctx)
	if err != nil {
		return Results{}, err
	}
	res := Results{Personas: len(personas)}
	now := e.now()

	pool := e.cfg.Clips.Candidates(ctx)
	session := e.advisorySkipSet(ctx, clipKeys(pool))

	posters := 0
	for _, p := range personas {
		if posters >= e.cfg.PersonasPerTrigger {
			break
		}
		if !e.onDuty(p.ID, now) {
			res.SkippedSchedule++
			continue
		}
		if e.rand.Float64() >= e.cfg.Rates.Rate(p.ID, schedule.ActionPost) {
			res.SkippedRate++
			continue
		}
		if e.postClip(ctx, p, pool, session, &res) {
			posters++
		}
	}
	return res, nil
}

func (e *Engine) onDuty(id string, now time.Time) bool {
	return e.cfg.Assigner.InSlotWindow(id, now.Minute(), e.cfg.SlotTolerance) &&
		e.cfg.Assigner.IsActiveHour(id, now.Hour())
}

func clipKeys(pool []content.Candidate) []string {
	keys := make([]string, 0, len(pool)*2)
	for _, c := range pool {
		keys = append(keys, c.NaturalKey(), c.AltKey())
	}
	return keys
}

// advisorySkipSet prefills the session skip set with keys the store already
// knows are claimed. Purely an optimization; a stale or empty set only costs
// extra TryReserve conflicts.
func (e *Engine) advisorySkipSet(ctx context.Context, keys []string) map[string]bool {
	taken, err := e.cfg.Dedup.RecentlyReserved(ctx, keys)
	if err != nil {
		e.logger.WithError(err).Warn("Advisory reservation check failed, proceeding without it")
		return make(map[string]bool)
	}
	session := make(map[string]bool, len(taken))
	for k, v := range taken {
		if v {
			session[k] = true
		}
	}
	return session
}

// postClip walks a freshly shuffled candidate order for one persona and
// posts the first clip it can claim. The session set is shared across
// personas within the invocation so two personas in the same batch never
// race on a key the batch already settled.
func (e *Engine) postClip(ctx context.Context, p Persona, pool []content.Candidate, session map[string]bool, res *Results) bool {
	shuffled := make([]content.Candidate, len(pool))
	copy(shuffled, pool)
	e.rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	log := e.logger.WithField("persona_id", p.ID)
	attempts := 0
	for _, c := range shuffled {
		if attempts >= e.cfg.AttemptBudget {
			log.WithField("attempts", attempts).Info("Attempt budget exhausted, abandoning this run")
			break
		}
		attempts++
		if session[c.NaturalKey()] || session[c.AltKey()] {
			continue
		}

		reserved, err := e.cfg.Dedup.TryReserve(ctx, reservation.Request{
			NaturalKey:  c.NaturalKey(),
			ClaimantID:  p.ID,
			SourceRef:   c.SourceURL,
			ContentType: reservation.ContentClip,
		})
		if err != nil {
			log.WithError(err).WithField("natural_key", c.NaturalKey()).Warn("Reservation store error, skipping candidate")
			continue
		}
		session[c.NaturalKey()] = true
		session[c.AltKey()] = true
		if !reserved {
			res.Conflicts++
			continue
		}

		text := e.captionFor(ctx, p, captions.Item{Category: c.Category, Description: c.Description})
		postID, err := e.cfg.Feed.CreatePost(ctx, p.ID, text, "clip", []string{c.EmbedURL()})
		if err != nil {
			// The reservation stands. Releasing it would reopen the race;
			// the clip simply goes unposted this cooldown.
			log.WithError(err).Error("Post creation failed after reservation")
			res.Failures++
			return false
		}
		res.Posted++
		res.PostIDs = append(res.PostIDs, postID)
		if err := e.cfg.Dedup.AttachPost(ctx, c.NaturalKey(), postID); err != nil {
			log.WithError(err).Warn("Could not back-link post onto reservation")
		}
		if e.rand.Float64() < 0.3 {
			if _, err := e.cfg.Feed.CreateStory(ctx, p.ID, c.EmbedURL(), "video", 24*time.Hour); err != nil {
				log.WithError(err).Warn("Story creation failed")
			}
		}
		log.WithFields(logrus.Fields{
			"post_id":     postID,
			"natural_key": c.NaturalKey(),
			"attempts":    attempts,
		}).Info("Clip posted")
		return true
	}
	return false
}

// RunArticles executes one article-posting trigger. Same shape as RunClips
// with a shorter cooldown and text-plus-link posts.
func (e *Engine) RunArticles(ctx context.Context) (Results, error) {
	personas, err := e.cfg.Personas.Active(ctx)
	if err != nil {
		return Results{}, err
	}
	res := Results{Personas: len(personas)}
	now := e.now()

	articles, err := e.cfg.Articles.Recent(ctx, 25)
	if err != nil {
		return res, err
	}
	keys := make([]string, len(articles))
	for i, a := range articles {
		keys[i] = a.NaturalKey()
	}
	session := e.advisorySkipSet(ctx, keys)

	posters := 0
	for _, p := range personas {
		if posters >= e.cfg.PersonasPerTrigger {
			break
		}
		if !e.onDuty(p.ID, now) {
			res.SkippedSchedule++
			continue
		}
		if e.rand.Float64() >= e.cfg.Rates.Rate(p.ID, schedule.ActionPost) {
			res.SkippedRate++
			continue
		}
		if e.postArticle(ctx, p, articles, session, &res) {
			posters++
		}
	}
	return res, nil
}

func (e *Engine) postArticle(ctx context.Context, p Persona, articles []content.Article, session map[string]bool, res *Results) bool {
	shuffled := make([]content.Article, len(articles))
	copy(shuffled, articles)
	e.rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	log := e.logger.WithField("persona_id", p.ID)
	attempts := 0
	for _, a := range shuffled {
		if attempts >= e.cfg.AttemptBudget {
			break
		}
		attempts++
		key := a.NaturalKey()
		if session[key] {
			continue
		}

		reserved, err := e.cfg.Dedup.TryReserve(ctx, reservation.Request{
			NaturalKey:  key,
			ClaimantID:  p.ID,
			SourceRef:   a.URL,
			ContentType: reservation.ContentArticle,
		})
		if err != nil {
			log.WithError(err).Warn("Reservation store error, skipping article")
			continue
		}
		session[key] = true
		if !reserved {
			res.Conflicts++
			continue
		}

		text := e.captionFor(ctx, p, captions.Item{Category: "news", Title: a.Title, Description: a.Summary})
		postID, err := e.cfg.Feed.CreatePost(ctx, p.ID, text+"\n"+a.URL, "article", nil)
		if err != nil {
			log.WithError(err).Error("Post creation failed after reservation")
			res.Failures++
			return false
		}
		res.Posted++
		res.PostIDs = append(res.PostIDs, postID)
		if err := e.cfg.Dedup.AttachPost(ctx, key, postID); err != nil {
			log.WithError(err).Warn("Could not back-link post onto reservation")
		}
		log.WithFields(logrus.Fields{"post_id": postID, "natural_key": key}).Info("Article posted")
		return true
	}
	return false
}

func (e *Engine) captionFor(ctx context.Context, p Persona, item captions.Item) string {
	text, err := e.cfg.Captions.Generate(ctx, item)
	if err != nil {
		e.logger.WithError(err).Warn("Caption chain exhausted, using raw description")
		text = item.Description
		if text == "" {
			text = item.Title
		}
	}
	return voice.Apply(text, voice.Derive(p.ID))
}
