package voice

import (
	"fmt"
	"strings"
	"testing"
)

func TestDeriveDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("persona_%d", i)
		first := Derive(id)
		if again := Derive(id); again != first {
			t.Fatalf("Derive(%q) unstable: %+v vs %+v", id, first, again)
		}
	}
}

func TestDerivePropertiesVaryIndependently(t *testing.T) {
	// Across a population, personas sharing a caps mode should still differ
	// in emoji frequency; fully correlated properties would make the fleet
	// feel like one bot with many names.
	freqsSeen := map[int]bool{}
	for i := 0; i < 500; i++ {
		p := Derive(fmt.Sprintf("persona_%d", i))
		if p.Caps == CapsLower {
			freqsSeen[p.EmojiFreq] = true
		}
	}
	if len(freqsSeen) < 2 {
		t.Fatalf("emoji frequency correlated with caps mode: %v", freqsSeen)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	captions := []string{
		"what a hand.",
		"this is why i love poker",
		"HUGE pot",
		"sick read by the big blind, had to share this one with everyone watching.",
	}
	for i := 0; i < 200; i++ {
		p := Derive(fmt.Sprintf("persona_%d", i))
		for _, caption := range captions {
			once := Apply(caption, p)
			twice := Apply(once, p)
			if once != twice {
				t.Fatalf("Apply not idempotent for profile %+v on %q: %q vs %q",
					p, caption, once, twice)
			}
		}
	}
}

func TestApplyDoesNotDoubleEmoji(t *testing.T) {
	p := Profile{EmojiFreq: 2, Personality: "funny"}
	styled := Apply("already has one 😂", p)
	if strings.Count(styled, "😂") != 1 {
		t.Fatalf("expected existing emoji to suppress append, got %q", styled)
	}
}

func TestApplyDoesNotDoubleFiller(t *testing.T) {
	p := Profile{UseFillers: true}
	styled := Apply("ngl this was brutal", p)
	if strings.Count(strings.ToLower(styled), "ngl") != 1 {
		t.Fatalf("expected existing filler to suppress prefix, got %q", styled)
	}
}

func TestApplyFixedProfileFixedOutput(t *testing.T) {
	p := Profile{Caps: CapsLower, Punct: PunctHype, EmojiFreq: 1, UseFillers: true, Personality: "chill"}
	first := Apply("What A Cooler.", p)
	for i := 0; i < 10; i++ {
		if got := Apply("What A Cooler.", p); got != first {
			t.Fatalf("Apply unstable: %q vs %q", first, got)
		}
	}
	if strings.ContainsRune(first, '.') && strings.HasSuffix(first, ".") {
		t.Fatalf("hype punctuation should have replaced the period: %q", first)
	}
	if first != strings.ToLower(first) {
		t.Fatalf("expected lowercase caption, got %q", first)
	}
}

func TestApplyEmptyText(t *testing.T) {
	p := Derive("persona_42")
	if got := Apply("   ", p); got != "" {
		t.Fatalf("expected empty output for blank caption, got %q", got)
	}
}

func TestContainsEmoji(t *testing.T) {
	if !ContainsEmoji("on fire 🔥") {
		t.Fatal("expected detection of pictograph")
	}
	if !ContainsEmoji("cards ♠") {
		t.Fatal("expected detection of misc symbol")
	}
	if ContainsEmoji("plain text only") {
		t.Fatal("false positive on plain text")
	}
}
