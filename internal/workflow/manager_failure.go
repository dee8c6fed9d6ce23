package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"apogee/internal/logging"
	"apogee/internal/queue"
	"apogee/internal/services"
)

// handleStageFailure decides whether a failed stage is retried or terminal
// and persists the outcome through the claim so an operator intervention
// mid-flight still wins. Every failed execution leaves one stage-level
// audit run, including failures raised before any agent was called.
func (m *Manager) handleStageFailure(ctx context.Context, logger *slog.Logger, stg pipelineStage, item *queue.Item, claimID string, stageStart time.Time, stageErr error) {
	message := failureMessage(stg.name, stageErr)

	if services.Retryable(stageErr) {
		item.StageAttempts++
		if item.StageAttempts <= m.cfg.Pipeline.MaxStageRetries {
			item.ErrorMessage = message
			logger.Warn("stage failed, returning item for retry",
				logging.Error(stageErr),
				logging.String(logging.FieldEventType, "stage_retry"),
				logging.Int("stage_attempts", item.StageAttempts),
				logging.Int("max_stage_retries", m.cfg.Pipeline.MaxStageRetries),
			)
			m.recordFailureRun(ctx, logger, stg, item, stageStart, queue.RunRetry, message)
			m.persistFailureState(ctx, logger, stg, item, claimID)
			return
		}
		stageErr = services.Wrap(services.ErrRetryExhausted, stg.name, "execute", "stage retry budget spent", stageErr)
		message = failureMessage(stg.name, stageErr)
		m.setLastError(stageErr)
		item.MarkFailed(queue.ReasonRetryExhausted(stg.name), message)
	} else {
		item.MarkFailed(queue.ReasonDataIntegrity, message)
	}

	m.recordFailureRun(ctx, logger, stg, item, stageStart, queue.RunFailed, message)

	logger.Error("stage failed terminally",
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("reason_code", item.ReasonCode),
		logging.String("error_message", message),
	)

	if !m.persistFailureState(ctx, logger, stg, item, claimID) {
		return
	}
	m.setLastItem(item)
	m.notifyItemFailed(ctx, item)
	m.notifyStageError(ctx, stg.name, item, stageErr)
	m.checkQueueCompletion(ctx)
}

// recordFailureRun appends the stage-level audit row for a failed
// execution. Agent-level runs carry their own names, so this never
// collides with the rows handlers write around their agent calls.
func (m *Manager) recordFailureRun(ctx context.Context, logger *slog.Logger, stg pipelineStage, item *queue.Item, stageStart time.Time, status queue.RunStatus, message string) {
	run := &queue.StageRun{
		ItemID:       item.ID,
		Stage:        stg.name,
		Status:       status,
		ErrorMessage: message,
		Duration:     time.Since(stageStart),
	}
	if err := m.store.RecordStageRun(ctx, run); err != nil {
		logger.Warn("stage run audit write failed", logging.Error(err))
	}
}

// persistFailureState writes the failure bookkeeping and drops the claim.
// Returns false when the claim was lost and the write discarded.
func (m *Manager) persistFailureState(ctx context.Context, logger *slog.Logger, stg pipelineStage, item *queue.Item, claimID string) bool {
	landed, err := m.store.CompleteClaimed(ctx, item, claimID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
		return false
	}
	if !landed {
		m.setLastError(services.Wrap(services.ErrConflict, stg.name, "persist failure", "claim no longer held", nil))
		logger.Warn("stage failure discarded, claim no longer held",
			logging.String(logging.FieldEventType, "stage_result_discarded"),
		)
		return false
	}
	return true
}

func failureMessage(stageName string, stageErr error) string {
	if stageErr == nil {
		return stageName + " failed without error detail"
	}
	if message := strings.TrimSpace(stageErr.Error()); message != "" {
		return message
	}
	return stageName + " failed"
}
