package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"apogee/internal/logging"
	"apogee/internal/queue"
)

// HeartbeatMonitor keeps claimed items fresh and reclaims the ones whose
// owner stopped beating.
type HeartbeatMonitor struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:    store,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
	}
}

// StaleCutoff returns the heartbeat timestamp before which a claim is
// considered abandoned.
func (h *HeartbeatMonitor) StaleCutoff() time.Time {
	return time.Now().UTC().Add(-h.timeout)
}

// ReclaimStaleItems releases claims whose heartbeat fell behind the timeout.
func (h *HeartbeatMonitor) ReclaimStaleItems(ctx context.Context, logger *slog.Logger) error {
	if h.timeout <= 0 {
		return nil
	}
	reclaimed, err := h.store.ReclaimStale(ctx, h.StaleCutoff())
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		logger.Info("reclaimed stale claims", logging.Int64("count", reclaimed))
	}
	return nil
}

// StartLoop beats the claim for one item until context cancellation. A beat
// that no longer matches the claim means an operator took the item away; the
// loop stops beating and leaves discard handling to CompleteClaimed.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, itemID, claimID string) {
	defer wg.Done()
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat")))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := h.store.Heartbeat(ctx, itemID, claimID)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("shutting down, heartbeat update cancelled")
					return
				}
				logger.Warn("heartbeat update failed", logging.Error(err))
				continue
			}
			if !ok {
				logger.Warn("claim no longer held, stopping heartbeat",
					logging.String(logging.FieldEventType, "claim_lost"),
				)
				return
			}
		}
	}
}
