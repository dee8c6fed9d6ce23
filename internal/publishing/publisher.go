// Package publishing uploads rendered videos to the target platform. A
// failed upload surfaces as a stage failure; there is no rollback of the
// rendered artifacts.
package publishing

import (
	"context"
	"time"

	"log/slog"

	"apogee/internal/agents"
	"apogee/internal/config"
	"apogee/internal/logging"
	"apogee/internal/notifications"
	"apogee/internal/queue"
	"apogee/internal/services"
	"apogee/internal/stage"
)

const runPublish = "publish"

// Dependencies holds the collaborators the publisher drives.
type Dependencies struct {
	Publisher agents.Publisher
	Notifier  notifications.Service
}

// Publisher is the stage handler for the rendered-to-published transition.
type Publisher struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	deps   Dependencies
}

// NewPublisher constructs the publishing stage handler.
func NewPublisher(cfg *config.Config, store *queue.Store, logger *slog.Logger, deps Dependencies) *Publisher {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "publishing"))
	}
	return &Publisher{store: store, cfg: cfg, logger: stageLogger, deps: deps}
}

func (p *Publisher) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, p.logger)
	item.ErrorMessage = ""
	if item.AssetsJSON == "" {
		return services.Wrap(services.ErrDataIntegrity, "publishing", "validate inputs",
			"rendered item has no persisted render payload", nil)
	}
	logger.Info("starting publishing", logging.String("title", item.Title))
	return nil
}

func (p *Publisher) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, p.logger)

	payload, err := stage.DecodeRenderPayload("publishing", item.AssetsJSON)
	if err != nil {
		return err
	}
	if payload.VideoPath == "" {
		return services.Wrap(services.ErrDataIntegrity, "publishing", "validate inputs",
			"render payload has no video path", nil)
	}

	started := time.Now()
	result, err := p.deps.Publisher.Publish(ctx, item.ID, item.Title, payload.VideoPath, p.cfg.Channel)
	run := &queue.StageRun{
		ItemID:   item.ID,
		Stage:    runPublish,
		Status:   queue.RunSuccess,
		Duration: time.Since(started),
	}
	if err != nil {
		run.Status = queue.RunFailed
		run.ErrorMessage = err.Error()
	}
	if auditErr := p.store.RecordStageRun(ctx, run); auditErr != nil {
		logger.Warn("stage run audit write failed", logging.Error(auditErr))
	}
	if err != nil {
		return services.Wrap(services.ErrTransient, "publishing", "upload video", "", err)
	}

	item.Status = queue.StatusPublished
	logger.Info("published",
		logging.String("external_id", result.ExternalID),
		logging.String("url", result.URL),
	)
	if p.deps.Notifier != nil {
		if notifyErr := p.deps.Notifier.NotifyItemPublished(ctx, item.Title, result.URL); notifyErr != nil {
			logger.Warn("publish notification failed", logging.Error(notifyErr))
		}
	}
	return nil
}

func (p *Publisher) HealthCheck(ctx context.Context) stage.Health {
	const name = "publishing"
	if p.deps.Publisher == nil {
		return stage.Unhealthy(name, "publisher collaborator not configured")
	}
	return stage.Healthy(name)
}
