// Package schedule assigns each persona a permanent trigger slot, a 12-hour
// awake window and per-action activity rates, all derived from the persona id
// hash. Nothing here is stored or can fail: a bad id degrades to slot 0 and
// pattern 0 so scheduling never blocks on input quality.
package schedule

import (
	"github.com/smarter-poker/world-hub/internal/identity"
)

// Divisors for hash-derived properties that must not correlate with the slot
// assignment (which uses the raw hash modulo).
const (
	patternDivisor = 23
)

// Window is a daily active window in whole hours. Start == End is a full-day
// window; Start > End wraps across midnight. Windows are half-open: a persona
// with {6, 18} is awake for hours 6..17.
type Window struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Contains reports whether hour falls inside the window, handling the
// midnight wrap.
func (w Window) Contains(hour int) bool {
	if w.Start == w.End {
		return true
	}
	if w.Start < w.End {
		return hour >= w.Start && hour < w.End
	}
	return hour >= w.Start || hour < w.End
}

// DefaultSlotMinutes are the cron trigger minutes. One external invocation
// per slot per hour; a persona acts only on its home slot.
var DefaultSlotMinutes = []int{3, 18, 33, 48}

// DefaultPatterns are twelve 12-hour awake windows offset by two hours each,
// so the population collectively covers the whole day while each persona
// keeps a fixed 12-hour rhythm.
var DefaultPatterns = []Window{
	{Start: 6, End: 18},
	{Start: 8, End: 20},
	{Start: 10, End: 22},
	{Start: 12, End: 0},
	{Start: 14, End: 2},
	{Start: 16, End: 4},
	{Start: 18, End: 6},
	{Start: 20, End: 8},
	{Start: 22, End: 10},
	{Start: 0, End: 12},
	{Start: 2, End: 14},
	{Start: 4, End: 16},
}

// Assigner computes slot and awake-hour assignments.
type Assigner struct {
	slotMinutes []int
	patterns    []Window
}

// NewAssigner builds an assigner. Empty inputs fall back to the defaults.
func NewAssigner(slotMinutes []int, patterns []Window) *Assigner {
	if len(slotMinutes) == 0 {
		slotMinutes = DefaultSlotMinutes
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return &Assigner{slotMinutes: slotMinutes, patterns: patterns}
}

// SlotIndex returns the persona's permanent home slot in [0, K).
func (a *Assigner) SlotIndex(id string) int {
	return identity.Bucket(id, len(a.slotMinutes))
}

// SlotMinute returns the trigger minute of the persona's home slot.
func (a *Assigner) SlotMinute(id string) int {
	return a.slotMinutes[a.SlotIndex(id)]
}

// InSlotWindow reports whether currentMinute is within tolerance minutes of
// the persona's slot minute, measured circularly around the hour.
func (a *Assigner) InSlotWindow(id string, currentMinute, tolerance int) bool {
	d := currentMinute - a.SlotMinute(id)
	if d < 0 {
		d = -d
	}
	if d > 30 {
		d = 60 - d
	}
	return d <= tolerance
}

// ActiveWindow returns the persona's fixed 12-hour awake window.
func (a *Assigner) ActiveWindow(id string) Window {
	return a.patterns[identity.Slice(id, patternDivisor, len(a.patterns))]
}

// IsActiveHour reports whether the persona is awake at the given hour.
func (a *Assigner) IsActiveHour(id string, hour int) bool {
	return a.ActiveWindow(id).Contains(hour)
}
