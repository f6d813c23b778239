package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/smarter-poker/world-hub/internal/schedule"
	"github.com/smarter-poker/world-hub/internal/voice"
)

// EngagementResults summarizes one engagement trigger.
type EngagementResults struct {
	Personas int `json:"personas"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Skipped  int `json:"skipped"`
}

var commentBank = []string{
	"no way this is real",
	"this is exactly why I love this game",
	"the read was spot on",
	"brutal",
	"I would have folded so fast",
	"absolute cinema",
	"seen this live, still hurts",
	"how do you even find this call",
}

const engagementGuardTTL = 24 * time.Hour

// RunEngagement has awake personas react to recent posts. A Redis guard key
// marks a persona/post pair as considered so repeated triggers within a day
// do not re-roll the same pair; if Redis is unreachable the pair is skipped
// outright, since duplicate reactions are worse than missing ones.
func (e *Engine) RunEngagement(ctx context.Context) (EngagementResults, error) {
	personas, err := e.cfg.Personas.Active(ctx)
	if err != nil {
		return EngagementResults{}, err
	}
	res := EngagementResults{Personas: len(personas)}
	now := e.now()

	posts, err := e.cfg.Feed.RecentPosts(ctx, 20)
	if err != nil {
		return res, err
	}

	for _, p := range personas {
		if !e.cfg.Assigner.IsActiveHour(p.ID, now.Hour()) {
			res.Skipped++
			continue
		}
		log := e.logger.WithField("persona_id", p.ID)
		for _, post := range posts {
			if post.AuthorID == p.ID {
				continue
			}
			guard := fmt.Sprintf("engaged:%s:%s", p.ID, post.ID)
			fresh, err := e.cfg.Redis.SetNX(ctx, guard, "1", engagementGuardTTL).Result()
			if err != nil {
				log.WithError(err).Warn("Engagement guard unavailable, skipping pair")
				continue
			}
			if !fresh {
				continue
			}

			if e.rand.Float64() < e.cfg.Rates.Rate(p.ID, schedule.ActionLike) {
				if err := e.cfg.Feed.Like(ctx, post.ID, p.ID); err != nil {
					log.WithError(err).Warn("Like failed")
				} else {
					res.Likes++
				}
			}
			if e.rand.Float64() < e.cfg.Rates.Rate(p.ID, schedule.ActionComment) {
				text := voice.Apply(commentBank[e.rand.Intn(len(commentBank))], voice.Derive(p.ID))
				if _, err := e.cfg.Feed.Comment(ctx, post.ID, p.ID, text); err != nil {
					log.WithError(err).Warn("Comment failed")
				} else {
					res.Comments++
				}
			}
		}
	}
	return res, nil
}
