// Package repetition scores how templated a candidate video looks against
// the channel's recent output. High scores pause the item for operator
// review instead of failing it: repetitive content is a judgment call.
package repetition

// Component weights of the composite score.
const (
	WeightSceneReuse       = 0.4
	WeightScriptSimilarity = 0.4
	WeightAssetReuse       = 0.2
)

// Sample is the candidate item's reusable surface: the ordered scene type
// sequence of its storyboard and the checksums of its generated assets.
type Sample struct {
	SceneTypes     []string
	AssetChecksums []string
}

// Breakdown reports the composite score and its components, each in [0,1].
type Breakdown struct {
	SceneReuse       float64 `json:"scene_reuse"`
	ScriptSimilarity float64 `json:"script_similarity"`
	AssetReuse       float64 `json:"asset_reuse"`
	Total            float64 `json:"total"`
}

// ExceedsThreshold reports whether the composite score is strictly above
// the pause threshold.
func (b Breakdown) ExceedsThreshold(threshold float64) bool {
	return b.Total > threshold
}

// Scorer combines the three repetition signals.
type Scorer struct{}

// NewScorer returns a scorer with the standard weights.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes the composite. scriptSimilarityMax is the candidate
// script's best cosine match over the recent script window; recentScenes
// holds the scene type sequences of recent items; recentAssets the set of
// asset checksums those items used. Empty histories contribute zero, so a
// channel's first items always score low.
func (s *Scorer) Score(candidate Sample, scriptSimilarityMax float64, recentScenes [][]string, recentAssets map[string]bool) Breakdown {
	b := Breakdown{
		SceneReuse:       sceneReuseRate(candidate.SceneTypes, recentScenes),
		ScriptSimilarity: clamp01(scriptSimilarityMax),
		AssetReuse:       assetReuseRate(candidate.AssetChecksums, recentAssets),
	}
	b.Total = WeightSceneReuse*b.SceneReuse + WeightScriptSimilarity*b.ScriptSimilarity + WeightAssetReuse*b.AssetReuse
	return b
}

// sceneReuseRate averages the candidate's aligned-position match rate
// against each recent sequence. Order matters: a reshuffled template only
// counts reuse at the positions that still line up.
func sceneReuseRate(candidate []string, recent [][]string) float64 {
	if len(candidate) == 0 || len(recent) == 0 {
		return 0
	}
	var total float64
	for _, sequence := range recent {
		total += alignedMatchRate(candidate, sequence)
	}
	return total / float64(len(recent))
}

// assetReuseRate is the fraction of the candidate's asset checksums that
// already appeared in recent items.
func assetReuseRate(candidate []string, recent map[string]bool) float64 {
	if len(candidate) == 0 || len(recent) == 0 {
		return 0
	}
	reused := 0
	for _, checksum := range candidate {
		if recent[checksum] {
			reused++
		}
	}
	return float64(reused) / float64(len(candidate))
}

// alignedMatchRate compares scene types position by position. Sequences of
// different lengths compare only the overlapping positions, so a template
// that merely gained or dropped a trailing CTA still reads as reused.
func alignedMatchRate(a, b []string) float64 {
	overlap := len(a)
	if len(b) < overlap {
		overlap = len(b)
	}
	if overlap == 0 {
		return 0
	}
	matched := 0
	for i := 0; i < overlap; i++ {
		if a[i] == b[i] {
			matched++
		}
	}
	return float64(matched) / float64(overlap)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
