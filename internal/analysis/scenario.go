// Package analysis serves poker scenario advice behind a shared response
// cache. Keys canonicalize the request so that semantically equivalent
// scenarios hit the same entry, and the advice itself comes from an ordered
// list of strategies tried until one produces a result.
package analysis

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Scenario is the structured request for advice. Field names mirror the
// client payload.
type Scenario struct {
	HoleCards []string `json:"holeCards" binding:"required"`
	Position  string   `json:"position"`
	StackBB   float64  `json:"stackBB"`
	GameType  string   `json:"gameType"`
	Opponents []string `json:"opponents"`
	Board     []string `json:"board"`
}

// stackBucket coarsens the stack size to the nearest 10 big blinds. Advice
// is insensitive below that granularity, and bucketing turns a continuum of
// cache keys into a handful.
func stackBucket(stack float64) int {
	if stack < 0 {
		stack = 0
	}
	return int(math.Round(stack/10) * 10)
}

func normalizeCard(card string) string {
	return strings.ToUpper(strings.TrimSpace(card))
}

// CacheKey builds the canonical fingerprint of the scenario. Hole cards and
// opponents are unordered, so both are sorted; board order is street order
// and stays as given. Caller identity is deliberately absent: advice depends
// only on the spot.
func (s Scenario) CacheKey() string {
	cards := make([]string, 0, len(s.HoleCards))
	for _, c := range s.HoleCards {
		cards = append(cards, normalizeCard(c))
	}
	sort.Strings(cards)

	opponents := make([]string, 0, len(s.Opponents))
	for _, o := range s.Opponents {
		opponents = append(opponents, strings.ToLower(strings.TrimSpace(o)))
	}
	sort.Strings(opponents)

	board := make([]string, 0, len(s.Board))
	for _, c := range s.Board {
		board = append(board, normalizeCard(c))
	}

	parts := []string{
		strings.Join(cards, ""),
		strings.ToUpper(strings.TrimSpace(s.Position)),
		strings.ToLower(strings.TrimSpace(s.GameType)),
		strings.Join(opponents, ","),
		strings.Join(board, ""),
	}
	return strings.Join(parts, "|") + "|" + strconv.Itoa(stackBucket(s.StackBB))
}
