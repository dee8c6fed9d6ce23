package textutil_test

import (
	"reflect"
	"testing"

	"apogee/internal/textutil"
)

func TestTokenizeFiltersShortTokens(t *testing.T) {
	got := textutil.Tokenize("Why do octopuses have THREE hearts?")
	want := []string{"why", "octopuses", "have", "three", "hearts"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
}

func TestTokenizeHandlesAccents(t *testing.T) {
	got := textutil.Tokenize("o coração humano")
	want := []string{"coração", "humano"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
}

func TestDisplayTitle(t *testing.T) {
	got := textutil.DisplayTitle("  why_the-ocean   glows ", "en")
	if got != "Why The-Ocean Glows" {
		t.Fatalf("DisplayTitle = %q", got)
	}
	if textutil.DisplayTitle("   ", "en") != "" {
		t.Fatal("expected empty result for blank input")
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := textutil.SanitizeToken("Hook Style #3!"); got != "hook_style__3" {
		t.Fatalf("SanitizeToken = %q", got)
	}
	if got := textutil.SanitizeToken("  "); got != "unknown" {
		t.Fatalf("SanitizeToken blank = %q", got)
	}
}
