package commentary

import (
	"strings"
	"testing"
)

func TestScore_Keywords(t *testing.T) {
	cases := []string{
		"UNBELIEVABLE comeback!",
		"that was unbelievable",
		"What a shot by number 23",
		"oh my, did you see that",
		"are you kidding me?!",
		"simply amazing",
		"SPECTACULAR finish",
		"wow.",
	}
	for _, text := range cases {
		if got := Score(text); got != 0.95 {
			t.Fatalf("Score(%q)=%v, want 0.95", text, got)
		}
	}
	if !IsHighlight(0.95) {
		t.Fatal("keyword score must exceed the highlight threshold")
	}
}

func TestScore_Empty(t *testing.T) {
	if got := Score(""); got != 0.0 {
		t.Fatalf("Score(\"\")=%v, want 0", got)
	}
}

func TestScore_Floor(t *testing.T) {
	// No keywords, no exclamation marks, negligible length.
	if got := Score("ok"); got-0.2 > 0.02 || got < 0.2 {
		t.Fatalf("Score(\"ok\")=%v, want near the 0.2 floor", got)
	}
}

func TestScore_MonotonicInBangs(t *testing.T) {
	prev := Score("a pass")
	for bangs := 1; bangs <= 5; bangs++ {
		got := Score("a pass" + strings.Repeat("!", bangs))
		if got < prev {
			t.Fatalf("score decreased at %d bangs: %v -> %v", bangs, prev, got)
		}
		prev = got
	}
	// Exclamation contribution caps at 3.
	if Score("a pass!!!") != Score("a pass!!!!!") {
		t.Fatal("bang bonus must cap at 3")
	}
}

func TestScore_MonotonicInLength(t *testing.T) {
	short := Score("he dribbles")
	long := Score("he dribbles past one defender then another and pulls up")
	if long < short {
		t.Fatalf("longer text scored lower: %v < %v", long, short)
	}
	// Length contribution caps at 0.3.
	a := Score(strings.Repeat("x", 200))
	b := Score(strings.Repeat("x", 400))
	if a != b {
		t.Fatalf("length bonus must cap: %v != %v", a, b)
	}
}

func TestScore_Bounded(t *testing.T) {
	inputs := []string{
		"",
		"!",
		strings.Repeat("!", 50),
		strings.Repeat("go go go! ", 100),
		"UNBELIEVABLE " + strings.Repeat("!", 50),
		"\x00\xff weird bytes",
	}
	for _, text := range inputs {
		got := Score(text)
		if got < 0.0 || got > 1.0 {
			t.Fatalf("Score(%q)=%v out of [0,1]", text, got)
		}
	}
}

func TestScore_Deterministic(t *testing.T) {
	text := "he beats the buzzer!!"
	first := Score(text)
	for range 10 {
		if got := Score(text); got != first {
			t.Fatalf("Score not deterministic: %v != %v", got, first)
		}
	}
}
