package schedule

import (
	"github.com/smarter-poker/world-hub/internal/identity"
)

// Action is a persona behavior with its own probability of happening.
type Action string

const (
	ActionPost    Action = "post"
	ActionLike    Action = "like"
	ActionComment Action = "comment"
	ActionReply   Action = "reply"
	ActionConnect Action = "connect"
)

type rateSpec struct {
	base   float64
	spread int // percentage points of per-persona variation
}

// Per-action bases and spreads differ so that, e.g., likes are common and
// connection requests rare, without per-persona configuration anywhere.
var defaultRateSpecs = map[Action]rateSpec{
	ActionPost:    {base: 0.25, spread: 15},
	ActionLike:    {base: 0.40, spread: 30},
	ActionComment: {base: 0.20, spread: 20},
	ActionReply:   {base: 0.15, spread: 15},
	ActionConnect: {base: 0.10, spread: 10},
}

// RateModel derives per-persona, per-action probabilities. The rate itself
// is deterministic; callers roll against it (`rng() < rate`) so that the
// decision at any single invocation is not.
type RateModel struct {
	specs map[Action]rateSpec
}

func NewRateModel() *RateModel {
	return &RateModel{specs: defaultRateSpecs}
}

// Rate returns the persona's probability for the action in [0, 1]. Unknown
// actions get a conservative floor.
func (m *RateModel) Rate(id string, action Action) float64 {
	spec, ok := m.specs[action]
	if !ok {
		return 0.05
	}
	rate := spec.base + float64(identity.Bucket(id, spec.spread))/100
	if rate > 1 {
		rate = 1
	}
	return rate
}
