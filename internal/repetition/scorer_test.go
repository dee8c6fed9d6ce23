package repetition_test

import (
	"math"
	"testing"

	"apogee/internal/repetition"
)

func TestScoreWeights(t *testing.T) {
	scorer := repetition.NewScorer()

	candidate := repetition.Sample{
		SceneTypes:     []string{"hook_text", "text_animation", "payoff_text"},
		AssetChecksums: []string{"aaa", "bbb"},
	}
	recentScenes := [][]string{
		{"hook_text", "text_animation", "payoff_text"},
		{"hook_question", "text_animation", "payoff_text"},
	}
	recentAssets := map[string]bool{"aaa": true}

	breakdown := scorer.Score(candidate, 0.6, recentScenes, recentAssets)

	// First recent sequence matches at all three positions, second at two.
	wantSceneReuse := (1.0 + 2.0/3.0) / 2
	if math.Abs(breakdown.SceneReuse-wantSceneReuse) > 1e-9 {
		t.Fatalf("scene reuse %f, want %f", breakdown.SceneReuse, wantSceneReuse)
	}
	if breakdown.ScriptSimilarity != 0.6 {
		t.Fatalf("script similarity %f, want 0.6", breakdown.ScriptSimilarity)
	}
	if breakdown.AssetReuse != 0.5 {
		t.Fatalf("asset reuse %f, want 0.5", breakdown.AssetReuse)
	}
	want := 0.4*wantSceneReuse + 0.4*0.6 + 0.2*0.5
	if math.Abs(breakdown.Total-want) > 1e-9 {
		t.Fatalf("total %f, want %f", breakdown.Total, want)
	}
}

func TestScoreEmptyHistory(t *testing.T) {
	scorer := repetition.NewScorer()
	candidate := repetition.Sample{
		SceneTypes:     []string{"hook_text", "payoff_text"},
		AssetChecksums: []string{"aaa"},
	}

	breakdown := scorer.Score(candidate, 0, nil, nil)
	if breakdown.Total != 0 {
		t.Fatalf("expected 0 for empty history, got %f", breakdown.Total)
	}
}

func TestSceneReuseIsOrderSensitive(t *testing.T) {
	scorer := repetition.NewScorer()
	candidate := repetition.Sample{SceneTypes: []string{"a", "b", "c"}}

	// Only the middle position survives the reshuffle.
	reordered := [][]string{{"c", "b", "a"}}
	breakdown := scorer.Score(candidate, 0, reordered, nil)
	if math.Abs(breakdown.SceneReuse-1.0/3.0) > 1e-9 {
		t.Fatalf("reordered sequence should only match aligned positions, got %f", breakdown.SceneReuse)
	}

	exact := [][]string{{"a", "b", "c"}}
	breakdown = scorer.Score(candidate, 0, exact, nil)
	if breakdown.SceneReuse != 1 {
		t.Fatalf("exact sequence should count as reuse, got %f", breakdown.SceneReuse)
	}
}

func TestSceneReuseComparesOverlappingPositions(t *testing.T) {
	scorer := repetition.NewScorer()

	// Same template minus the trailing CTA: every overlapping position matches.
	candidate := repetition.Sample{SceneTypes: []string{
		"hook_text", "text_animation", "text_animation", "text_animation", "payoff_text",
	}}
	recent := [][]string{{
		"hook_text", "text_animation", "text_animation", "text_animation", "payoff_text", "cta_text",
	}}

	breakdown := scorer.Score(candidate, 0, recent, nil)
	if breakdown.SceneReuse != 1 {
		t.Fatalf("shorter candidate matching all overlapping positions should score 1, got %f", breakdown.SceneReuse)
	}

	// The longer candidate against the shorter history scores the same.
	breakdown = scorer.Score(repetition.Sample{SceneTypes: recent[0]}, 0, [][]string{candidate.SceneTypes}, nil)
	if breakdown.SceneReuse != 1 {
		t.Fatalf("longer candidate over shorter history should score 1, got %f", breakdown.SceneReuse)
	}
}

func TestExceedsThresholdIsStrict(t *testing.T) {
	at := repetition.Breakdown{Total: 0.70}
	if at.ExceedsThreshold(0.70) {
		t.Fatal("score exactly at threshold must pass")
	}
	above := repetition.Breakdown{Total: 0.701}
	if !above.ExceedsThreshold(0.70) {
		t.Fatal("score above threshold must pause")
	}
}

func TestFullTemplateRepeatPauses(t *testing.T) {
	scorer := repetition.NewScorer()
	candidate := repetition.Sample{
		SceneTypes:     []string{"hook_text", "text_animation", "text_animation", "text_animation", "payoff_text"},
		AssetChecksums: []string{"x", "y", "z"},
	}
	recentScenes := make([][]string, 10)
	for i := range recentScenes {
		recentScenes[i] = candidate.SceneTypes
	}
	recentAssets := map[string]bool{"x": true, "y": true, "z": true}

	breakdown := scorer.Score(candidate, 0.85, recentScenes, recentAssets)
	// 0.4*1 + 0.4*0.85 + 0.2*1 = 0.94
	if !breakdown.ExceedsThreshold(0.70) {
		t.Fatalf("full template repeat should pause, total=%f", breakdown.Total)
	}
}

func TestScriptSimilarityClamped(t *testing.T) {
	scorer := repetition.NewScorer()
	breakdown := scorer.Score(repetition.Sample{}, 1.7, nil, nil)
	if breakdown.ScriptSimilarity != 1 {
		t.Fatalf("expected clamp to 1, got %f", breakdown.ScriptSimilarity)
	}
}
