// Package mining produces new draft items for a channel: it asks the
// topic miner for candidates, screens them through the topic dedup gate,
// and enqueues the survivors with their admission score.
package mining

import (
	"context"
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
	"apogee/internal/textutil"
)

const runTopicMiner = "topic_miner"

// recentTitleLimit bounds how much channel history the miner prompt sees.
const recentTitleLimit = 50

// Dependencies holds the collaborators the miner drives.
type Dependencies struct {
	Miner    agents.TopicMiner
	Embedder agents.EmbeddingProvider
	Gate     *dedup.Gate
	Index    *similarity.Index
	Notifier notifications.Service
}

// Miner turns mined topic candidates into draft queue items.
type Miner struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	deps   Dependencies
}

// Result summarizes one mining pass.
type Result struct {
	Accepted []*queue.Item
	Rejected int
}

// NewMiner constructs the mining workflow.
func NewMiner(cfg *config.Config, store *queue.Store, logger *slog.Logger, deps Dependencies) *Miner {
	miningLogger := logger
	if miningLogger != nil {
		miningLogger = miningLogger.With(logging.String("component", "mining"))
	}
	return &Miner{store: store, cfg: cfg, logger: miningLogger, deps: deps}
}

// Run performs one mining pass for the configured channel. Candidates
// whose topic embedding is strictly too close to the recent window are
// dropped; accepted candidates become draft items and their embeddings
// join the topic index immediately so one pass cannot admit twins.
func (m *Miner) Run(ctx context.Context) (Result, error) {
	logger := logging.WithContext(ctx, m.logger)
	channel := m.cfg.Channel

	recentTitles, err := m.store.RecentTitles(ctx, channel.ID, recentTitleLimit)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "mining", "load recent titles", "", err)
	}

	started := time.Now()
	candidates, usage, err := m.deps.Miner.MineTopics(ctx, channel, recentTitles)
	m.recordRun(ctx, started, usage, err, logger)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "mining", "mine topics", "", err)
	}

	var result Result
	for _, candidate := range candidates {
		title := textutil.DisplayTitle(strings.TrimSpace(candidate.Title), channel.Language)
		if title == "" {
			continue
		}

		vector, embedErr := m.deps.Embedder.Embed(ctx, title)
		if embedErr != nil {
			return result, services.Wrap(services.ErrTransient, "mining", "embed topic", "", embedErr)
		}
		gateResult, gateErr := m.deps.Gate.CheckTopic(ctx, channel.ID, vector)
		if gateErr != nil {
			return result, services.Wrap(services.ErrTransient, "mining", "topic dedup gate", "", gateErr)
		}
		if !gateResult.Allowed() {
			result.Rejected++
			logger.Info("topic rejected as near-duplicate",
				logging.String("title", title),
				logging.Float64("similarity", gateResult.Score),
			)
			continue
		}

		score := gateResult.Score
		item, createErr := m.store.CreateItem(ctx, channel.ID, title, &score)
		if createErr != nil {
			return result, services.Wrap(services.ErrTransient, "mining", "enqueue topic", "", createErr)
		}
		if appendErr := m.deps.Index.Append(ctx, item.ID, channel.ID, similarity.SpaceTopic, vector); appendErr != nil {
			return result, services.Wrap(services.ErrTransient, "mining", "index topic embedding", "", appendErr)
		}
		result.Accepted = append(result.Accepted, item)
		logger.Info("topic accepted",
			logging.String("item_id", item.ID),
			logging.String("title", title),
			logging.Float64("similarity", gateResult.Score),
		)
	}

	if _, pruneErr := m.deps.Index.Prune(ctx, channel.ID, similarity.SpaceTopic, m.cfg.Pipeline.TopicWindow); pruneErr != nil {
		logger.Warn("topic embedding prune failed", logging.Error(pruneErr))
	}

	if m.deps.Notifier != nil {
		if notifyErr := m.deps.Notifier.NotifyTopicsMined(ctx, channel.Name, len(result.Accepted), result.Rejected); notifyErr != nil {
			logger.Warn("mining notification failed", logging.Error(notifyErr))
		}
	}
	return result, nil
}

func (m *Miner) recordRun(ctx context.Context, started time.Time, usage agents.Usage, runErr error, logger *slog.Logger) {
	run := &queue.StageRun{
		Stage:     runTopicMiner,
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
	if err := m.store.RecordStageRun(ctx, run); err != nil {
		logger.Warn("stage run audit write failed", logging.Error(err))
	}
}
