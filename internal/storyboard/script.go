// Package storyboard models scripts and derives scene timelines from
// measured narration durations.
package storyboard

import (
	"fmt"
	"strings"

	"apogee/internal/services"
)

// Beat is one fact-plus-analogy segment of the script body.
type Beat struct {
	Fact    string `json:"fact"`
	Analogy string `json:"analogy"`
}

// Script is the structured narration for one item. Every script carries a
// hook, exactly three beats, and a payoff; the call to action is optional.
type Script struct {
	Hook   string `json:"hook"`
	Beats  []Beat `json:"beats"`
	Payoff string `json:"payoff"`
	CTA    string `json:"cta,omitempty"`
}

// BeatCount is the fixed number of body beats in every script.
const BeatCount = 3

// Validate checks structural completeness before the script is persisted.
func (s Script) Validate() error {
	if strings.TrimSpace(s.Hook) == "" {
		return fmt.Errorf("%w: script missing hook", services.ErrValidation)
	}
	if len(s.Beats) != BeatCount {
		return fmt.Errorf("%w: script has %d beats, want %d", services.ErrValidation, len(s.Beats), BeatCount)
	}
	for i, beat := range s.Beats {
		if strings.TrimSpace(beat.Fact) == "" {
			return fmt.Errorf("%w: beat %d missing fact", services.ErrValidation, i+1)
		}
	}
	if strings.TrimSpace(s.Payoff) == "" {
		return fmt.Errorf("%w: script missing payoff", services.ErrValidation)
	}
	return nil
}

// HasCTA reports whether the optional call to action is present.
func (s Script) HasCTA() bool {
	return strings.TrimSpace(s.CTA) != ""
}

// SegmentTexts maps segment ids to their narration text in timeline order.
// Beats concatenate fact and analogy the way the narrator reads them.
func (s Script) SegmentTexts() map[string]string {
	texts := map[string]string{
		SegmentHook:   s.Hook,
		SegmentPayoff: s.Payoff,
	}
	for i, beat := range s.Beats {
		text := beat.Fact
		if strings.TrimSpace(beat.Analogy) != "" {
			text = beat.Fact + " " + beat.Analogy
		}
		texts[beatSegmentID(i+1)] = text
	}
	if s.HasCTA() {
		texts[SegmentCTA] = s.CTA
	}
	return texts
}

// FullText assembles the complete narration in reading order, used for
// script embeddings and fact checking.
func (s Script) FullText() string {
	parts := make([]string, 0, 2+len(s.Beats)*2+1)
	parts = append(parts, s.Hook)
	for _, beat := range s.Beats {
		parts = append(parts, beat.Fact)
		if strings.TrimSpace(beat.Analogy) != "" {
			parts = append(parts, beat.Analogy)
		}
	}
	parts = append(parts, s.Payoff)
	if s.HasCTA() {
		parts = append(parts, s.CTA)
	}
	return strings.Join(parts, "\n\n")
}
