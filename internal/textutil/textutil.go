package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// tokenSplitPattern matches non-alphanumeric character sequences for tokenization.
var tokenSplitPattern = regexp.MustCompile(`[^\pL\pN]+`)

// Tokenize splits text into lowercase tokens, filtering very short tokens.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	raw := tokenSplitPattern.Split(lowered, -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		token = strings.TrimSpace(token)
		if len([]rune(token)) < 3 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// DisplayTitle collapses filler characters and applies title casing for the
// channel's language tag (falls back to und when the tag is unknown).
func DisplayTitle(raw, langTag string) string {
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r) || r == '_':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsPunct(r):
			cleaned.WriteRune(r)
			prevSpace = false
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return ""
	}
	tag, err := language.Parse(strings.TrimSpace(langTag))
	if err != nil {
		tag = language.Und
	}
	return cases.Title(tag, cases.NoLower).String(title)
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
