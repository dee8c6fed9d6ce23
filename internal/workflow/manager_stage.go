package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"apogee/internal/logging"
	"apogee/internal/queue"
	"apogee/internal/services"
)

func (m *Manager) processItem(ctx context.Context, lane *laneState, laneLogger *slog.Logger, item *queue.Item) error {
	stg := lane.stage
	claimID := uuid.NewString()

	claimed, err := m.store.Claim(ctx, item.ID, claimID, m.heartbeat.StaleCutoff())
	if err != nil {
		m.setLastError(err)
		laneLogger.Error("failed to claim queue item", logging.Error(err))
		return err
	}
	if !claimed {
		// Another worker or an operator got there first; skip this cycle.
		return nil
	}

	stageCtx := services.WithItemID(ctx, item.ID)
	stageCtx = services.WithStage(stageCtx, stg.name)
	stageCtx = services.WithRequestID(stageCtx, claimID)
	stageLogger := logging.WithContext(stageCtx, laneLogger)

	// Re-read under the claim so the handler sees the item's current state,
	// not the snapshot from the poll.
	current, err := m.store.GetByID(stageCtx, item.ID)
	if err != nil || current == nil {
		if relErr := m.store.ReleaseClaim(stageCtx, item.ID, claimID); relErr != nil {
			stageLogger.Warn("failed to release claim after read failure", logging.Error(relErr))
		}
		if err != nil {
			m.setLastError(err)
			stageLogger.Error("failed to reload claimed item", logging.Error(err))
		}
		return err
	}
	item = current

	m.onItemStarted(stageCtx)

	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("title", item.Title),
		logging.Int("stage_attempts", item.StageAttempts),
	)

	execErr := m.runHandler(stageCtx, stg, item, claimID)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) && ctx.Err() != nil {
			stageLogger.Debug("stage interrupted by shutdown")
			if relErr := m.store.ReleaseClaim(context.WithoutCancel(stageCtx), item.ID, claimID); relErr != nil {
				stageLogger.Warn("failed to release claim on shutdown", logging.Error(relErr))
			}
			return context.Canceled
		}
		// handleStageFailure may replace this with a tagged terminal error.
		m.setLastError(execErr)
		m.handleStageFailure(stageCtx, stageLogger, stg, item, claimID, stageStart, execErr)
		return execErr
	}

	if nextStatusAdvanced(item, stg) {
		item.StageAttempts = 0
		item.ErrorMessage = ""
	}
	landed, err := m.store.CompleteClaimed(stageCtx, item, claimID)
	if err != nil {
		m.setLastError(err)
		stageLogger.Error("failed to persist stage result", logging.Error(err))
		return err
	}
	if !landed {
		m.setLastError(services.Wrap(services.ErrConflict, stg.name, "persist result", "claim no longer held", nil))
		stageLogger.Warn("stage result discarded, claim no longer held",
			logging.String(logging.FieldEventType, "stage_result_discarded"),
		)
		return nil
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(item.Status)),
		logging.Bool("paused", item.Paused),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastItem(item)
	m.checkQueueCompletion(stageCtx)
	return nil
}

// runHandler drives Prepare and Execute under a heartbeat and the configured
// stage deadline. A deadline hit is reported as a retryable timeout unless
// the daemon itself is shutting down.
func (m *Manager) runHandler(ctx context.Context, stg pipelineStage, item *queue.Item, claimID string) error {
	if err := stg.handler.Prepare(ctx, item); err != nil {
		return err
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, item.ID, claimID)

	execCtx := ctx
	var cancel context.CancelFunc
	if m.cfg.Pipeline.StageTimeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Pipeline.StageTimeout)*time.Second)
	}
	execErr := stg.handler.Execute(execCtx, item)
	if cancel != nil {
		cancel()
	}
	hbCancel()
	hbWG.Wait()

	if execErr != nil && errors.Is(execErr, context.DeadlineExceeded) && ctx.Err() == nil {
		return services.Wrap(services.ErrTimeout, stg.name, "execute", "stage deadline exceeded", execErr)
	}
	return execErr
}
