package stage

import (
	"encoding/json"

	"apogee/internal/agents"
	"apogee/internal/services"
	"apogee/internal/storyboard"
	"apogee/internal/variation"
)

// RenderPayload is what the rendering stage persists on the item for the
// publisher and for repetition scoring of later items.
type RenderPayload struct {
	Assignment    variation.Assignment `json:"assignment"`
	Assets        []agents.Asset       `json:"assets"`
	VideoPath     string               `json:"video_path"`
	RepetitionLog json.RawMessage      `json:"repetition,omitempty"`
}

// DecodeScript parses the item's persisted script. Corrupt or missing
// payloads are data integrity failures: the pipeline wrote them, so they
// must parse.
func DecodeScript(stageName, raw string) (storyboard.Script, error) {
	var script storyboard.Script
	if raw == "" {
		return script, services.Wrap(services.ErrDataIntegrity, stageName, "decode script",
			"item has no persisted script", nil)
	}
	if err := json.Unmarshal([]byte(raw), &script); err != nil {
		return script, services.Wrap(services.ErrDataIntegrity, stageName, "decode script",
			"persisted script does not parse", err)
	}
	if err := script.Validate(); err != nil {
		return script, services.Wrap(services.ErrDataIntegrity, stageName, "decode script",
			"persisted script is structurally invalid", err)
	}
	return script, nil
}

// DecodeClaims parses the item's persisted research claims.
func DecodeClaims(stageName, raw string) ([]agents.Claim, error) {
	if raw == "" {
		return nil, services.Wrap(services.ErrDataIntegrity, stageName, "decode claims",
			"item has no persisted claims", nil)
	}
	var claims []agents.Claim
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, stageName, "decode claims",
			"persisted claims do not parse", err)
	}
	if len(claims) == 0 {
		return nil, services.Wrap(services.ErrDataIntegrity, stageName, "decode claims",
			"item has an empty claim set", nil)
	}
	return claims, nil
}

// DecodeStoryboard parses the item's persisted storyboard.
func DecodeStoryboard(stageName, raw string) (storyboard.Storyboard, error) {
	var sb storyboard.Storyboard
	if raw == "" {
		return sb, services.Wrap(services.ErrDataIntegrity, stageName, "decode storyboard",
			"item has no persisted storyboard", nil)
	}
	if err := json.Unmarshal([]byte(raw), &sb); err != nil {
		return sb, services.Wrap(services.ErrDataIntegrity, stageName, "decode storyboard",
			"persisted storyboard does not parse", err)
	}
	if len(sb.Scenes) == 0 {
		return sb, services.Wrap(services.ErrDataIntegrity, stageName, "decode storyboard",
			"persisted storyboard has no scenes", nil)
	}
	return sb, nil
}

// DecodeRenderPayload parses the item's persisted render artifacts.
func DecodeRenderPayload(stageName, raw string) (RenderPayload, error) {
	var payload RenderPayload
	if raw == "" {
		return payload, services.Wrap(services.ErrDataIntegrity, stageName, "decode render payload",
			"item has no persisted render payload", nil)
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, services.Wrap(services.ErrDataIntegrity, stageName, "decode render payload",
			"persisted render payload does not parse", err)
	}
	return payload, nil
}
