package rendering_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"apogee/internal/agents"
	"apogee/internal/config"
	"apogee/internal/logging"
	"apogee/internal/queue"
	"apogee/internal/rendering"
	"apogee/internal/services"
	"apogee/internal/stage"
	"apogee/internal/storyboard"
	"apogee/internal/testsupport"
	"apogee/internal/variation"
)

type stubSpeech struct {
	missing string
}

func (s *stubSpeech) Synthesize(_ context.Context, _ string, segments map[string]string) (map[string]float64, error) {
	durations := make(map[string]float64, len(segments))
	base := 3.0
	for segID := range segments {
		if segID == s.missing {
			continue
		}
		durations[segID] = base
		base += 1.5
	}
	return durations, nil
}

type stubAssets struct {
	checksums []string
}

func (s *stubAssets) GenerateAssets(_ context.Context, itemID string, sb storyboard.Storyboard, _ variation.Assignment) ([]agents.Asset, error) {
	assets := make([]agents.Asset, len(s.checksums))
	for i, checksum := range s.checksums {
		assets[i] = agents.Asset{
			Kind:     "background",
			Path:     fmt.Sprintf("assets/%s/%d.png", itemID, i),
			Checksum: checksum,
		}
	}
	return assets, nil
}

type stubVideoRenderer struct {
	fail bool
}

func (s *stubVideoRenderer) Render(_ context.Context, itemID, _ string, _ []agents.Asset, _ variation.Assignment) (agents.RenderResult, error) {
	if s.fail {
		return agents.RenderResult{}, errors.New("remotion exited 1")
	}
	return agents.RenderResult{VideoPath: filepath.Join("videos", itemID+".mp4")}, nil
}

func scriptJSON(t *testing.T) string {
	t.Helper()
	script := storyboard.Script{
		Hook: "This lake is pink.",
		Beats: []storyboard.Beat{
			{Fact: "Lake Hillier stays pink year round.", Analogy: "Strawberry milk that never settles."},
			{Fact: "Algae and bacteria make the pigment.", Analogy: "A living dye factory."},
			{Fact: "The water is safe to touch.", Analogy: "Color without a catch."},
		},
		Payoff: "Nature mixes stranger paints than we do.",
	}
	encoded, err := json.Marshal(script)
	if err != nil {
		t.Fatalf("marshal script: %v", err)
	}
	return string(encoded)
}

type harness struct {
	cfg   *config.Config
	store *queue.Store
}

func newHarness(t *testing.T) *harness {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return &harness{cfg: cfg, store: store}
}

func (h *harness) newScriptedItem(t *testing.T, similarityScore float64) *queue.Item {
	t.Helper()
	item, err := h.store.CreateItem(context.Background(), h.cfg.Channel.ID, "Pink Lake", nil)
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	item.Status = queue.StatusScripted
	item.ScriptJSON = scriptJSON(t)
	item.SimilarityScore = &similarityScore
	if err := h.store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	return item
}

func (h *harness) newRenderer(t *testing.T, deps rendering.Dependencies) *rendering.Renderer {
	t.Helper()
	if deps.Speech == nil {
		deps.Speech = &stubSpeech{}
	}
	if deps.Assets == nil {
		deps.Assets = &stubAssets{checksums: []string{"c1", "c2"}}
	}
	if deps.Renderer == nil {
		deps.Renderer = &stubVideoRenderer{}
	}
	return rendering.NewRenderer(h.cfg, h.store, logging.NewNop(), deps)
}

func TestExecuteRendersItem(t *testing.T) {
	h := newHarness(t)
	renderer := h.newRenderer(t, rendering.Dependencies{})
	item := h.newScriptedItem(t, 0.2)
	ctx := context.Background()

	if err := renderer.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := renderer.Execute(ctx, item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if item.Status != queue.StatusRendered {
		t.Fatalf("expected rendered, got %s", item.Status)
	}
	if item.StoryboardJSON == "" {
		t.Fatal("expected storyboard persisted")
	}
	if item.RepetitionScore == nil {
		t.Fatal("expected repetition score recorded")
	}

	payload, err := stage.DecodeRenderPayload("test", item.AssetsJSON)
	if err != nil {
		t.Fatalf("decode render payload: %v", err)
	}
	if payload.VideoPath == "" || len(payload.Assets) != 2 {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if payload.Assignment != variation.NewAssigner().Assign(item.ID) {
		t.Fatalf("assignment not derived from item id: %#v", payload.Assignment)
	}

	// Storyboard artifact lands on disk.
	artifact := filepath.Join(h.cfg.StoryboardDir(), item.ID+".json")
	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("expected storyboard artifact at %s: %v", artifact, err)
	}
}

func TestExecuteFailsFastOnMissingDuration(t *testing.T) {
	h := newHarness(t)
	renderer := h.newRenderer(t, rendering.Dependencies{Speech: &stubSpeech{missing: "beat_2"}})
	item := h.newScriptedItem(t, 0.1)

	err := renderer.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrDataIntegrity) {
		t.Fatalf("expected data integrity error, got %v", err)
	}
	if item.Status != queue.StatusScripted {
		t.Fatalf("status should not advance on failure, got %s", item.Status)
	}
}

func TestExecutePausesOnRepetition(t *testing.T) {
	h := newHarness(t)
	// A single-style vocabulary keeps every item on the same scene
	// template, the way an over-templated channel would look.
	renderer := h.newRenderer(t, rendering.Dependencies{
		Assets:   &stubAssets{checksums: []string{"shared-1", "shared-2"}},
		Assigner: variation.NewAssignerWithVocabulary([]string{"hook_text"}, []string{"midnight"}),
	})
	ctx := context.Background()

	// Render enough identical items to fill the scene window with the
	// same template and asset set.
	for i := 0; i < 3; i++ {
		prior := h.newScriptedItem(t, 0.2)
		if err := renderer.Execute(ctx, prior); err != nil {
			t.Fatalf("prior Execute failed: %v", err)
		}
		if err := h.store.Update(ctx, prior); err != nil {
			t.Fatalf("persist prior: %v", err)
		}
	}

	// High persisted script similarity pushes the composite over the
	// pause threshold: 0.4*1.0 + 0.4*0.79 + 0.2*1.0 = 0.916.
	candidate := h.newScriptedItem(t, 0.79)
	if err := renderer.Execute(ctx, candidate); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !candidate.Paused {
		t.Fatalf("expected paused item, got %#v", candidate)
	}
	if candidate.Status != queue.StatusScripted {
		t.Fatalf("paused item must keep its status, got %s", candidate.Status)
	}
	if candidate.RepetitionScore == nil || *candidate.RepetitionScore <= h.cfg.Pipeline.RepetitionPauseThreshold {
		t.Fatalf("expected score above threshold, got %v", candidate.RepetitionScore)
	}
	if candidate.AssetsJSON != "" {
		t.Fatal("paused item must not carry a render payload")
	}
}

func TestExecuteSurfacesRenderFailure(t *testing.T) {
	h := newHarness(t)
	renderer := h.newRenderer(t, rendering.Dependencies{Renderer: &stubVideoRenderer{fail: true}})
	item := h.newScriptedItem(t, 0.1)

	err := renderer.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected render failure to surface")
	}
	if !services.Retryable(err) {
		t.Fatalf("render failures should be retryable, got %v", err)
	}
}

func TestFirstItemNeverPauses(t *testing.T) {
	h := newHarness(t)
	renderer := h.newRenderer(t, rendering.Dependencies{})
	item := h.newScriptedItem(t, 0.9)

	if err := renderer.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	// 0.4*0 + 0.4*0.9 + 0.2*0 = 0.36, under the threshold despite the
	// high script similarity, because there is no history yet.
	if item.Paused {
		t.Fatalf("first item should not pause, score=%v", *item.RepetitionScore)
	}
	if item.Status != queue.StatusRendered {
		t.Fatalf("expected rendered, got %s", item.Status)
	}
}
