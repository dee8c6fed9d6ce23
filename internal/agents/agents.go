// Package agents defines the narrow contracts for the external
// collaborators the pipeline drives: topic mining, research, script
// writing, fact checking, speech synthesis, asset generation, rendering,
// publishing, and embedding. The orchestrator only ever sees these
// interfaces; provider-specific clients implement them elsewhere.
package agents

import (
	"context"

	"apogee/internal/config"
	"apogee/internal/storyboard"
	"apogee/internal/variation"
)

// Usage carries token and cost accounting from an agent invocation into
// the stage run audit. Rule-based agents report zero usage.
type Usage struct {
	TokensIn  int64
	TokensOut int64
	CostUSD   float64
}

// Add accumulates another invocation's usage.
func (u *Usage) Add(other Usage) {
	u.TokensIn += other.TokensIn
	u.TokensOut += other.TokensOut
	u.CostUSD += other.CostUSD
}

// TopicCandidate is one mined topic suggestion.
type TopicCandidate struct {
	Title     string `json:"title"`
	Rationale string `json:"rationale"`
}

// Claim is a single factual assertion backing a script. Confidence is the
// researcher's own estimate in [0,1]; unsourced claims raise risk during
// fact checking.
type Claim struct {
	Text       string  `json:"claim_text"`
	SourceURL  string  `json:"source_url,omitempty"`
	Confidence float64 `json:"confidence"`
	Verified   bool    `json:"verified"`
}

// FactCheckResult is the fact checker's verdict on a drafted script.
type FactCheckResult struct {
	RiskScore float64  `json:"risk_score"`
	Issues    []string `json:"issues"`
	Approved  bool     `json:"approved"`
}

// ScriptRequest is the scriptwriter's input. Attempt counts from zero and
// rises on dedup blocks and fact-check rejections so the writer can vary
// its angle instead of reproducing the rejected draft.
type ScriptRequest struct {
	Title   string
	Claims  []Claim
	Channel config.Channel
	Attempt int
}

// Asset is one generated visual resource. Checksums feed the repetition
// scorer's asset reuse signal.
type Asset struct {
	Kind     string `json:"kind"`
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

// RenderResult locates the produced video file.
type RenderResult struct {
	VideoPath string `json:"video_path"`
}

// PublishResult identifies the published video on the target platform.
type PublishResult struct {
	ExternalID string `json:"external_id"`
	URL        string `json:"url"`
}

// TopicMiner proposes new topics for a channel. recentTitles lets the
// miner steer away from what the channel already covered.
type TopicMiner interface {
	MineTopics(ctx context.Context, channel config.Channel, recentTitles []string) ([]TopicCandidate, Usage, error)
}

// Researcher gathers sourced claims for a topic.
type Researcher interface {
	Research(ctx context.Context, title string, channel config.Channel) ([]Claim, Usage, error)
}

// Scriptwriter drafts a structured script from researched claims.
type Scriptwriter interface {
	WriteScript(ctx context.Context, req ScriptRequest) (storyboard.Script, Usage, error)
}

// FactChecker audits a drafted script against its claims.
type FactChecker interface {
	CheckScript(ctx context.Context, script storyboard.Script, claims []Claim) (FactCheckResult, Usage, error)
}

// SpeechSynthesizer narrates the script segments and returns the measured
// duration of each produced audio file in seconds, keyed by segment id.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, itemID string, segments map[string]string) (map[string]float64, error)
}

// AssetGenerator produces the visual assets a storyboard calls for.
type AssetGenerator interface {
	GenerateAssets(ctx context.Context, itemID string, sb storyboard.Storyboard, assignment variation.Assignment) ([]Asset, error)
}

// Renderer turns a storyboard and its assets into a video file.
type Renderer interface {
	Render(ctx context.Context, itemID, storyboardPath string, assets []Asset, assignment variation.Assignment) (RenderResult, error)
}

// Publisher uploads a rendered video to the target platform.
type Publisher interface {
	Publish(ctx context.Context, itemID, title, videoPath string, channel config.Channel) (PublishResult, error)
}

// EmbeddingProvider maps text into the similarity index's vector space.
// Implementations must be deterministic for identical input.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
