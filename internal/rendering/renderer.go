// Package rendering turns a scripted item into a rendered video: it
// narrates the script, derives the storyboard timeline from the measured
// audio durations, assigns the visual variation, generates assets, scores
// repetition, and invokes the renderer.
package rendering

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"log/slog"

	"apogee/internal/agents"
	"apogee/internal/config"
	"apogee/internal/logging"
	"apogee/internal/notifications"
	"apogee/internal/queue"
	"apogee/internal/repetition"
	"apogee/internal/services"
	"apogee/internal/stage"
	"apogee/internal/storyboard"
	"apogee/internal/variation"
)

// Agent run names recorded in the stage run audit.
const (
	runTTS        = "tts"
	runStoryboard = "storyboard_director"
	runAssets     = "asset_generator"
	runRender     = "render"
)

// Dependencies holds the collaborators the renderer drives.
type Dependencies struct {
	Speech   agents.SpeechSynthesizer
	Assets   agents.AssetGenerator
	Renderer agents.Renderer
	Assigner *variation.Assigner
	Scorer   *repetition.Scorer
	Notifier notifications.Service
}

// Renderer is the stage handler for the scripted-to-rendered transition.
type Renderer struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	deps   Dependencies
}

// NewRenderer constructs the rendering stage handler.
func NewRenderer(cfg *config.Config, store *queue.Store, logger *slog.Logger, deps Dependencies) *Renderer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "rendering"))
	}
	if deps.Assigner == nil {
		deps.Assigner = variation.NewAssigner()
	}
	if deps.Scorer == nil {
		deps.Scorer = repetition.NewScorer()
	}
	return &Renderer{store: store, cfg: cfg, logger: stageLogger, deps: deps}
}

func (r *Renderer) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)
	item.ErrorMessage = ""
	if item.ScriptJSON == "" {
		return services.Wrap(services.ErrDataIntegrity, "rendering", "validate inputs",
			"scripted item has no persisted script", nil)
	}
	logger.Info("starting rendering", logging.String("title", item.Title))
	return nil
}

func (r *Renderer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)

	script, err := stage.DecodeScript("rendering", item.ScriptJSON)
	if err != nil {
		return err
	}

	durations, err := r.synthesize(ctx, item, script, logger)
	if err != nil {
		return err
	}

	assignment := r.deps.Assigner.Assign(item.ID)
	sb, sbPath, err := r.deriveStoryboard(ctx, item, script, durations, assignment, logger)
	if err != nil {
		return err
	}

	assets, err := r.generateAssets(ctx, item, sb, assignment, logger)
	if err != nil {
		return err
	}

	breakdown, err := r.scoreRepetition(ctx, item, sb, assets)
	if err != nil {
		return err
	}
	total := breakdown.Total
	item.RepetitionScore = &total
	if breakdown.ExceedsThreshold(r.cfg.Pipeline.RepetitionPauseThreshold) {
		return r.pauseForReview(ctx, item, breakdown, logger)
	}

	result, err := r.render(ctx, item, sbPath, assets, assignment, logger)
	if err != nil {
		return err
	}

	payload := stage.RenderPayload{
		Assignment: assignment,
		Assets:     assets,
		VideoPath:  result.VideoPath,
	}
	if log, marshalErr := json.Marshal(breakdown); marshalErr == nil {
		payload.RepetitionLog = log
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrDataIntegrity, "rendering", "persist render payload", "", err)
	}
	item.AssetsJSON = string(encoded)
	item.Status = queue.StatusRendered
	logger.Info("render complete",
		logging.String("video", result.VideoPath),
		logging.Float64("repetition_score", total),
		logging.String("hook_style", assignment.HookStyle),
		logging.String("palette", assignment.Palette),
	)
	return nil
}

func (r *Renderer) HealthCheck(ctx context.Context) stage.Health {
	const name = "rendering"
	if r.deps.Speech == nil || r.deps.Assets == nil || r.deps.Renderer == nil {
		return stage.Unhealthy(name, "agent collaborators not configured")
	}
	if err := r.cfg.EnsureDirectories(); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("staging directories unavailable: %v", err))
	}
	return stage.Healthy(name)
}

func (r *Renderer) synthesize(ctx context.Context, item *queue.Item, script storyboard.Script, logger *slog.Logger) (map[string]float64, error) {
	started := time.Now()
	durations, err := r.deps.Speech.Synthesize(ctx, item.ID, script.SegmentTexts())
	r.recordRun(ctx, item.ID, runTTS, started, agents.Usage{}, err, logger)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "rendering", "synthesize narration", "", err)
	}
	return durations, nil
}

func (r *Renderer) deriveStoryboard(ctx context.Context, item *queue.Item, script storyboard.Script, durations map[string]float64, assignment variation.Assignment, logger *slog.Logger) (storyboard.Storyboard, string, error) {
	started := time.Now()
	sb, err := storyboard.Build(item.ID, script, durations, assignment.HookStyle)
	r.recordRun(ctx, item.ID, runStoryboard, started, agents.Usage{}, err, logger)
	if err != nil {
		// Build only fails on missing or non-positive measured durations;
		// that is broken narration output, not a transient hiccup.
		return storyboard.Storyboard{}, "", services.Wrap(services.ErrDataIntegrity, "rendering", "derive storyboard", "", err)
	}

	encoded, err := json.Marshal(sb)
	if err != nil {
		return storyboard.Storyboard{}, "", services.Wrap(services.ErrDataIntegrity, "rendering", "persist storyboard", "", err)
	}
	item.StoryboardJSON = string(encoded)

	path, err := sb.WriteFile(r.cfg.StoryboardDir())
	if err != nil {
		return storyboard.Storyboard{}, "", services.Wrap(services.ErrTransient, "rendering", "write storyboard artifact", "", err)
	}
	return sb, path, nil
}

func (r *Renderer) generateAssets(ctx context.Context, item *queue.Item, sb storyboard.Storyboard, assignment variation.Assignment, logger *slog.Logger) ([]agents.Asset, error) {
	started := time.Now()
	assets, err := r.deps.Assets.GenerateAssets(ctx, item.ID, sb, assignment)
	r.recordRun(ctx, item.ID, runAssets, started, agents.Usage{}, err, logger)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "rendering", "generate assets", "", err)
	}
	return assets, nil
}

// scoreRepetition combines the current item's surfaces with the channel's
// recent rendered and published items. The script similarity component is
// the dedup gate's persisted score from the scripting stage.
func (r *Renderer) scoreRepetition(ctx context.Context, item *queue.Item, sb storyboard.Storyboard, assets []agents.Asset) (repetition.Breakdown, error) {
	window := r.cfg.Pipeline.SceneWindow
	assetWindow := r.cfg.Pipeline.ScriptWindow
	if assetWindow < window {
		assetWindow = window
	}
	recent, err := r.store.RecentByStatus(ctx, item.ChannelID, assetWindow, queue.StatusRendered, queue.StatusPublished)
	if err != nil {
		return repetition.Breakdown{}, services.Wrap(services.ErrTransient, "rendering", "load repetition history", "", err)
	}

	recentScenes := make([][]string, 0, window)
	recentAssets := make(map[string]bool)
	for i, previous := range recent {
		if i < window && previous.StoryboardJSON != "" {
			if prevBoard, decodeErr := stage.DecodeStoryboard("rendering", previous.StoryboardJSON); decodeErr == nil {
				recentScenes = append(recentScenes, prevBoard.SceneTypes())
			}
		}
		if previous.AssetsJSON == "" {
			continue
		}
		if payload, decodeErr := stage.DecodeRenderPayload("rendering", previous.AssetsJSON); decodeErr == nil {
			for _, asset := range payload.Assets {
				recentAssets[asset.Checksum] = true
			}
		}
	}

	checksums := make([]string, len(assets))
	for i, asset := range assets {
		checksums[i] = asset.Checksum
	}
	scriptSimilarity := 0.0
	if item.SimilarityScore != nil {
		scriptSimilarity = *item.SimilarityScore
	}

	sample := repetition.Sample{SceneTypes: sb.SceneTypes(), AssetChecksums: checksums}
	return r.deps.Scorer.Score(sample, scriptSimilarity, recentScenes, recentAssets), nil
}

func (r *Renderer) pauseForReview(ctx context.Context, item *queue.Item, breakdown repetition.Breakdown, logger *slog.Logger) error {
	reason := fmt.Sprintf("repetition score %.3f exceeds %.2f (scene=%.2f script=%.2f asset=%.2f)",
		breakdown.Total, r.cfg.Pipeline.RepetitionPauseThreshold,
		breakdown.SceneReuse, breakdown.ScriptSimilarity, breakdown.AssetReuse)
	item.MarkPaused(reason)
	logger.Warn("pausing item for repetition review", logging.String("reason", reason))
	if r.deps.Notifier != nil {
		if err := r.deps.Notifier.NotifyRepetitionPause(ctx, item.Title, breakdown.Total); err != nil {
			logger.Warn("pause notification failed", logging.Error(err))
		}
	}
	return nil
}

func (r *Renderer) render(ctx context.Context, item *queue.Item, sbPath string, assets []agents.Asset, assignment variation.Assignment, logger *slog.Logger) (agents.RenderResult, error) {
	started := time.Now()
	result, err := r.deps.Renderer.Render(ctx, item.ID, sbPath, assets, assignment)
	r.recordRun(ctx, item.ID, runRender, started, agents.Usage{}, err, logger)
	if err != nil {
		return agents.RenderResult{}, services.Wrap(services.ErrTransient, "rendering", "render video", "", err)
	}
	if result.VideoPath == "" {
		return agents.RenderResult{}, services.Wrap(services.ErrTransient, "rendering", "render video",
			"renderer returned no video path", nil)
	}
	return result, nil
}

func (r *Renderer) recordRun(ctx context.Context, itemID, name string, started time.Time, usage agents.Usage, runErr error, logger *slog.Logger) {
	run := &queue.StageRun{
		ItemID:    itemID,
		Stage:     name,
		Status:    queue.RunSuccess,
		Duration:  time.Since(started),
		TokensIn:  usage.TokensIn,
		TokensOut: usage.TokensOut,
		CostUSD:   usage.CostUSD,
	}
	if runErr != nil {
		run.Status = queue.RunFailed
		run.ErrorMessage = runErr.Error()
	}
	if err := r.store.RecordStageRun(ctx, run); err != nil {
		logger.Warn("stage run audit write failed", logging.Error(err))
	}
}
