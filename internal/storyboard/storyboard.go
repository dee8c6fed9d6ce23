package storyboard

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"apogee/internal/services"
)

// Segment ids in fixed narrative order.
const (
	SegmentHook   = "hook"
	SegmentPayoff = "payoff"
	SegmentCTA    = "cta"
)

// Scene type tags. The hook's tag comes from the variation assignment;
// the rest are fixed.
const (
	TypeTextAnimation = "text_animation"
	TypePayoffText    = "payoff_text"
	TypeCTAText       = "cta_text"
)

func beatSegmentID(n int) string {
	return fmt.Sprintf("beat_%d", n)
}

// SegmentOrder returns the segment ids in timeline order.
func SegmentOrder() []string {
	order := make([]string, 0, 2+BeatCount+1)
	order = append(order, SegmentHook)
	for i := 1; i <= BeatCount; i++ {
		order = append(order, beatSegmentID(i))
	}
	order = append(order, SegmentPayoff, SegmentCTA)
	return order
}

// Scene is one timed slice of the final video. Timestamps are seconds
// from the start of the video, rounded to milliseconds.
type Scene struct {
	ID   string  `json:"id"`
	T0   float64 `json:"t0"`
	T1   float64 `json:"t1"`
	Type string  `json:"type"`
	Text string  `json:"text"`
}

// Storyboard is the derived timeline for an item.
type Storyboard struct {
	ItemID        string  `json:"item_id"`
	TotalDuration float64 `json:"total_duration"`
	Scenes        []Scene `json:"scenes"`
}

// Build derives the storyboard from the script and the measured narration
// durations, keyed by segment id in seconds. Scenes are contiguous: each
// starts exactly where the previous one ended. A required segment with a
// missing or non-positive duration aborts the build; durations are never
// guessed. hookType tags the hook scene and comes from the item's
// variation assignment.
func Build(itemID string, script Script, durations map[string]float64, hookType string) (Storyboard, error) {
	if err := script.Validate(); err != nil {
		return Storyboard{}, err
	}
	if hookType == "" {
		return Storyboard{}, fmt.Errorf("%w: empty hook scene type", services.ErrValidation)
	}

	texts := script.SegmentTexts()
	types := map[string]string{
		SegmentHook:   hookType,
		SegmentPayoff: TypePayoffText,
		SegmentCTA:    TypeCTAText,
	}
	for i := 1; i <= BeatCount; i++ {
		types[beatSegmentID(i)] = TypeTextAnimation
	}

	scenes := make([]Scene, 0, len(texts))
	cursor := 0.0
	for _, segID := range SegmentOrder() {
		text, ok := texts[segID]
		if !ok {
			// Only the cta may be absent; Validate guarantees the rest.
			continue
		}
		duration, ok := durations[segID]
		if !ok {
			return Storyboard{}, fmt.Errorf("%w: no measured duration for segment %s", services.ErrValidation, segID)
		}
		if duration <= 0 {
			return Storyboard{}, fmt.Errorf("%w: non-positive duration %.3f for segment %s", services.ErrValidation, duration, segID)
		}
		t1 := roundMillis(cursor + duration)
		scenes = append(scenes, Scene{
			ID:   segID,
			T0:   roundMillis(cursor),
			T1:   t1,
			Type: types[segID],
			Text: text,
		})
		cursor = t1
	}

	return Storyboard{
		ItemID:        itemID,
		TotalDuration: roundMillis(cursor),
		Scenes:        scenes,
	}, nil
}

// SceneTypes returns the ordered sequence of scene type tags, the input to
// the repetition scorer's scene-reuse component.
func (sb Storyboard) SceneTypes() []string {
	types := make([]string, len(sb.Scenes))
	for i, scene := range sb.Scenes {
		types[i] = scene.Type
	}
	return types
}

// WriteFile persists the storyboard as JSON under dir and returns the path.
func (sb Storyboard) WriteFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create storyboard dir: %w", err)
	}
	data, err := json.MarshalIndent(sb, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal storyboard: %w", err)
	}
	path := filepath.Join(dir, sb.ItemID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write storyboard: %w", err)
	}
	return path, nil
}

func roundMillis(v float64) float64 {
	return math.Round(v*1000) / 1000
}
