// Package voice gives each persona a stable writing style and applies it to
// candidate captions. The profile is derived from the persona id hash using
// divisors disjoint from the scheduling ones, so a persona's voice carries no
// information about its posting slot.
package voice

import (
	"strings"

	"github.com/smarter-poker/world-hub/internal/identity"
)

// CapsMode controls how a caption is capitalized.
type CapsMode int

const (
	CapsNormal CapsMode = iota // leave as written
	CapsLower                  // all lowercase, never shift-key energy
	CapsLoud                   // short captions get shouted
)

// PunctMode controls terminal punctuation habits.
type PunctMode int

const (
	PunctNormal PunctMode = iota
	PunctNone             // drops the trailing period
	PunctHype             // exclaims
)

// Profile is a persona's derived writing style. Recomputed from the id on
// every invocation; never stored.
type Profile struct {
	Caps        CapsMode
	Punct       PunctMode
	EmojiFreq   int // 0..3, how many emoji get appended
	UseFillers  bool
	Personality string
}

var personalityTags = []string{
	"aggressive", "chill", "analytical", "funny", "supportive", "skeptical",
}

// Divisors per property. Each must differ from the others and from the
// schedule package's divisors so derived properties vary independently.
const (
	capsDivisor        = 7
	punctDivisor       = 11
	emojiDivisor       = 13
	fillerDivisor      = 17
	personalityDivisor = 19
	pickDivisor        = 29
)

// Derive computes the persona's voice profile. Pure; an empty id yields the
// zero-ish profile rather than an error.
func Derive(id string) Profile {
	return Profile{
		Caps:        CapsMode(identity.Slice(id, capsDivisor, 3)),
		Punct:       PunctMode(identity.Slice(id, punctDivisor, 3)),
		EmojiFreq:   identity.Slice(id, emojiDivisor, 4),
		UseFillers:  identity.Slice(id, fillerDivisor, 2) == 1,
		Personality: personalityTags[identity.Slice(id, personalityDivisor, len(personalityTags))],
	}
}

var emojiByPersonality = map[string][]string{
	"aggressive": {"🔥", "💯", "😤"},
	"chill":      {"✌️", "😎", "🤙"},
	"analytical": {"🧠", "📈", "🤔"},
	"funny":      {"😂", "💀", "🤣"},
	"supportive": {"👑", "🙌", "❤️"},
	"skeptical":  {"👀", "🤨", "😬"},
}

var fillerWords = []string{"ngl", "tbh", "lowkey", "fr", "honestly"}

// Apply runs the style pipeline: capitalization, punctuation, emoji suffix,
// filler prefix, in that order. Every stage checks for its own prior output,
// so applying the pipeline to already-styled text changes nothing.
func Apply(text string, p Profile) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}

	text = applyCaps(text, p.Caps)
	text = applyPunct(text, p.Punct)
	text = applyEmoji(text, p)
	text = applyFiller(text, p)
	return text
}

func applyCaps(text string, mode CapsMode) string {
	switch mode {
	case CapsLower:
		return strings.ToLower(text)
	case CapsLoud:
		// Shouting a paragraph reads like a bot; only short captions qualify.
		if len(text) <= 40 {
			return strings.ToUpper(text)
		}
		return text
	default:
		return text
	}
}

func applyPunct(text string, mode PunctMode) string {
	switch mode {
	case PunctNone:
		return strings.TrimRight(text, ".")
	case PunctHype:
		if strings.Contains(text, "!") {
			return text
		}
		return strings.TrimRight(text, ".") + "!!"
	default:
		return text
	}
}

func applyEmoji(text string, p Profile) string {
	if p.EmojiFreq == 0 || ContainsEmoji(text) {
		return text
	}
	pool := emojiByPersonality[p.Personality]
	if len(pool) == 0 {
		return text
	}
	emoji := pool[identity.Slice(text+p.Personality, pickDivisor, len(pool))]
	return text + " " + strings.Repeat(emoji, clampFreq(p.EmojiFreq))
}

func applyFiller(text string, p Profile) string {
	if !p.UseFillers || startsWithFiller(text) {
		return text
	}
	filler := fillerWords[identity.Slice(text, pickDivisor, len(fillerWords))]
	// Keep the filler's case consistent with the caption so a second pass
	// through the caps stage cannot alter it.
	if p.Caps == CapsLoud && strings.ToUpper(text) == text {
		filler = strings.ToUpper(filler)
	}
	return filler + " " + text
}

func clampFreq(n int) int {
	if n < 1 {
		return 1
	}
	if n > 3 {
		return 3
	}
	return n
}

func startsWithFiller(text string) bool {
	lower := strings.ToLower(text)
	for _, f := range fillerWords {
		if strings.HasPrefix(lower, f+" ") || lower == f {
			return true
		}
	}
	return false
}

// ContainsEmoji reports whether the text already carries an emoji, checking
// the main pictograph blocks plus the misc symbol ranges the comment banks
// actually use.
func ContainsEmoji(text string) bool {
	for _, r := range text {
		switch {
		case r >= 0x1F300 && r <= 0x1FAFF: // pictographs, emoticons, symbols
			return true
		case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
			return true
		}
	}
	return false
}
