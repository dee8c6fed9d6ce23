// Package scripting drives a draft item through research, script writing,
// the script dedup gate, and the fact-check loop.
package scripting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"apogee/internal/agents"
	"apogee/internal/config"
	"apogee/internal/dedup"
	"apogee/internal/logging"
	"apogee/internal/notifications"
	"apogee/internal/queue"
	"apogee/internal/services"
	"apogee/internal/similarity"
	"apogee/internal/stage"
	"apogee/internal/storyboard"
)

// Agent run names recorded in the stage run audit.
const (
	runResearcher   = "researcher"
	runScriptwriter = "scriptwriter"
	runFactChecker  = "fact_checker"
)

// Dependencies holds the collaborators the scripter drives.
type Dependencies struct {
	Researcher   agents.Researcher
	Scriptwriter agents.Scriptwriter
	FactChecker  agents.FactChecker
	Embedder     agents.EmbeddingProvider
	Gate         *dedup.Gate
	Index        *similarity.Index
	Notifier     notifications.Service
}

// Scripter is the stage handler for the draft-to-scripted transition.
type Scripter struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	deps   Dependencies
}

// NewScripter constructs the scripting stage handler.
func NewScripter(cfg *config.Config, store *queue.Store, logger *slog.Logger, deps Dependencies) *Scripter {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "scripting"))
	}
	return &Scripter{store: store, cfg: cfg, logger: stageLogger, deps: deps}
}

func (s *Scripter) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	item.ErrorMessage = ""
	if strings.TrimSpace(item.Title) == "" {
		return services.Wrap(services.ErrDataIntegrity, "scripting", "validate inputs",
			"item has no topic title", nil)
	}
	logger.Info("starting scripting",
		logging.String("title", item.Title),
		logging.Int("script_retries", item.ScriptRetries),
		logging.Int("fact_check_attempts", item.FactCheckAttempts),
	)
	return nil
}

// Execute researches the topic, then loops: draft a script, pass it
// through the dedup gate, and fact-check it. Dedup blocks consume the
// script retry budget; fact-check rejections consume the fact-check
// budget, which is checked before each checker invocation so the final
// rejected rewrite still produces a script run but no further check.
// Budget exhaustion terminally fails the item rather than erroring.
func (s *Scripter) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)

	claims, err := s.research(ctx, item, logger)
	if err != nil {
		return err
	}

	for {
		script, err := s.draftScript(ctx, item, claims, logger)
		if err != nil {
			return err
		}

		vector, err := s.deps.Embedder.Embed(ctx, script.FullText())
		if err != nil {
			return services.Wrap(services.ErrTransient, "scripting", "embed script", "", err)
		}
		gateResult, err := s.deps.Gate.CheckScript(ctx, item.ChannelID, vector)
		if err != nil {
			return services.Wrap(services.ErrTransient, "scripting", "script dedup gate", "", err)
		}
		score := gateResult.Score
		item.SimilarityScore = &score

		if !gateResult.Allowed() {
			item.ScriptRetries++
			logger.Info("script blocked as near-duplicate",
				logging.Float64("similarity", gateResult.Score),
				logging.Int("script_retries", item.ScriptRetries),
			)
			if item.ScriptRetries > s.cfg.Pipeline.MaxScriptRetries {
				s.failItem(ctx, item, queue.ReasonScriptDedupExhausted,
					services.Wrap(services.ErrGateRejected, "scripting", "script dedup gate",
						fmt.Sprintf("script rewrites exhausted at similarity %.3f", gateResult.Score), nil),
					logger)
				return nil
			}
			continue
		}

		if item.FactCheckAttempts >= s.cfg.Pipeline.MaxFactCheckAttempts {
			s.failItem(ctx, item, queue.ReasonFactCheckExhausted,
				services.Wrap(services.ErrRetryExhausted, "scripting", "fact check",
					fmt.Sprintf("fact check rejected %d times", item.FactCheckAttempts), nil),
				logger)
			return nil
		}

		verdict, err := s.factCheck(ctx, item, script, claims, logger)
		if err != nil {
			return err
		}
		if !verdict.Approved {
			item.FactCheckAttempts++
			logger.Info("fact check rejected script",
				logging.Float64("risk_score", verdict.RiskScore),
				logging.Int("fact_check_attempts", item.FactCheckAttempts),
			)
			continue
		}

		return s.accept(ctx, item, script, claims, vector, logger)
	}
}

func (s *Scripter) HealthCheck(ctx context.Context) stage.Health {
	const name = "scripting"
	if s.deps.Researcher == nil || s.deps.Scriptwriter == nil || s.deps.FactChecker == nil {
		return stage.Unhealthy(name, "agent collaborators not configured")
	}
	if s.deps.Embedder == nil || s.deps.Gate == nil || s.deps.Index == nil {
		return stage.Unhealthy(name, "similarity components not configured")
	}
	return stage.Healthy(name)
}

func (s *Scripter) research(ctx context.Context, item *queue.Item, logger *slog.Logger) ([]agents.Claim, error) {
	// Re-runs of the stage reuse the persisted claim set so retries do not
	// re-bill research.
	if item.ClaimsJSON != "" {
		claims, err := stage.DecodeClaims("scripting", item.ClaimsJSON)
		if err == nil {
			return claims, nil
		}
		logger.Warn("discarding unreadable persisted claims", logging.Error(err))
	}

	started := time.Now()
	claims, usage, err := s.deps.Researcher.Research(ctx, item.Title, s.cfg.Channel)
	s.recordRun(ctx, item.ID, runResearcher, started, usage, err, logger)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scripting", "research topic", "", err)
	}
	if len(claims) == 0 {
		return nil, services.Wrap(services.ErrTransient, "scripting", "research topic",
			"researcher produced no claims", nil)
	}

	encoded, err := json.Marshal(claims)
	if err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "scripting", "persist claims", "", err)
	}
	item.ClaimsJSON = string(encoded)
	return claims, nil
}

func (s *Scripter) draftScript(ctx context.Context, item *queue.Item, claims []agents.Claim, logger *slog.Logger) (storyboard.Script, error) {
	started := time.Now()
	script, usage, err := s.deps.Scriptwriter.WriteScript(ctx, agents.ScriptRequest{
		Title:   item.Title,
		Claims:  claims,
		Channel: s.cfg.Channel,
		Attempt: item.ScriptRetries + item.FactCheckAttempts,
	})
	s.recordRun(ctx, item.ID, runScriptwriter, started, usage, err, logger)
	if err != nil {
		return storyboard.Script{}, services.Wrap(services.ErrTransient, "scripting", "write script", "", err)
	}
	if err := script.Validate(); err != nil {
		return storyboard.Script{}, services.Wrap(services.ErrTransient, "scripting", "write script",
			"scriptwriter returned a structurally invalid script", err)
	}
	return script, nil
}

func (s *Scripter) factCheck(ctx context.Context, item *queue.Item, script storyboard.Script, claims []agents.Claim, logger *slog.Logger) (agents.FactCheckResult, error) {
	started := time.Now()
	verdict, usage, err := s.deps.FactChecker.CheckScript(ctx, script, claims)
	if err != nil {
		s.recordRun(ctx, item.ID, runFactChecker, started, usage, err, logger)
		return agents.FactCheckResult{}, services.Wrap(services.ErrTransient, "scripting", "fact check", "", err)
	}
	run := &queue.StageRun{
		ItemID:    item.ID,
		Stage:     runFactChecker,
		Status:    queue.RunSuccess,
		Duration:  time.Since(started),
		TokensIn:  usage.TokensIn,
		TokensOut: usage.TokensOut,
		CostUSD:   usage.CostUSD,
	}
	if !verdict.Approved {
		run.Status = queue.RunFailed
		run.ErrorMessage = fmt.Sprintf("risk %.3f: %s", verdict.RiskScore, strings.Join(verdict.Issues, "; "))
	}
	if err := s.store.RecordStageRun(ctx, run); err != nil {
		logger.Warn("stage run audit write failed", logging.Error(err))
	}
	return verdict, nil
}

func (s *Scripter) accept(ctx context.Context, item *queue.Item, script storyboard.Script, claims []agents.Claim, vector []float32, logger *slog.Logger) error {
	encoded, err := json.Marshal(script)
	if err != nil {
		return services.Wrap(services.ErrDataIntegrity, "scripting", "persist script", "", err)
	}
	item.ScriptJSON = string(encoded)

	if err := s.deps.Index.Append(ctx, item.ID, item.ChannelID, similarity.SpaceScript, vector); err != nil {
		return services.Wrap(services.ErrTransient, "scripting", "index script embedding", "", err)
	}
	if _, err := s.deps.Index.Prune(ctx, item.ChannelID, similarity.SpaceScript, s.cfg.Pipeline.ScriptWindow); err != nil {
		logger.Warn("script embedding prune failed", logging.Error(err))
	}

	item.Status = queue.StatusScripted
	logger.Info("script accepted",
		logging.Int("claims", len(claims)),
		logging.Int("fact_check_attempts", item.FactCheckAttempts),
	)
	return nil
}

// failItem marks the item terminally failed. failErr carries a classified
// sentinel so callers inspecting the error message can see which budget or
// gate shut the item down.
func (s *Scripter) failItem(ctx context.Context, item *queue.Item, reasonCode string, failErr error, logger *slog.Logger) {
	message := failErr.Error()
	item.MarkFailed(reasonCode, message)
	logger.Warn("item terminally failed",
		logging.String("reason_code", reasonCode),
		logging.String("detail", message),
	)
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.NotifyItemFailed(ctx, item.Title, reasonCode, message); err != nil {
			logger.Warn("failure notification failed", logging.Error(err))
		}
	}
}

func (s *Scripter) recordRun(ctx context.Context, itemID, name string, started time.Time, usage agents.Usage, runErr error, logger *slog.Logger) {
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
	if err := s.store.RecordStageRun(ctx, run); err != nil {
		logger.Warn("stage run audit write failed", logging.Error(err))
	}
}
