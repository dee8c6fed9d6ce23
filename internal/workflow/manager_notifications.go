package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apogee/internal/logging"
	"apogee/internal/queue"
)

func (m *Manager) notifyItemFailed(ctx context.Context, item *queue.Item) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyItemFailed(ctx, item.Title, item.ReasonCode, item.ErrorMessage); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("item failure notification failed", logging.Error(err))
	}
}

func (m *Manager) notifyStageError(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	if m.notifier == nil || stageErr == nil {
		return
	}
	contextLabel := fmt.Sprintf("%s (item %s)", stageName, item.ID)
	if err := m.notifier.NotifyError(ctx, stageErr, contextLabel); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("stage error notification failed", logging.Error(err))
	}
}

// onItemStarted sends the queue-started notification once per active batch.
func (m *Manager) onItemStarted(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.QueueStats(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Warn("queue stats unavailable for start notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		return
	}
	m.mu.Lock()
	if m.queueActive {
		m.mu.Unlock()
		return
	}
	m.queueActive = true
	m.queueStart = time.Now()
	m.mu.Unlock()

	if err := m.notifier.NotifyQueueStarted(ctx, countWorkItems(stats)); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("queue start notification failed", logging.Error(err))
	}
}

// checkQueueCompletion sends the queue-completed notification when no
// processable items remain.
func (m *Manager) checkQueueCompletion(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.QueueStats(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Warn("queue stats unavailable for completion notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		return
	}
	if countActiveItems(stats) > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	duration := time.Duration(0)
	if !start.IsZero() {
		duration = time.Since(start)
	}
	processed := stats.ByStatus[queue.StatusPublished]
	failed := stats.ByStatus[queue.StatusFailed]
	if err := m.notifier.NotifyQueueCompleted(ctx, processed, failed, duration); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("queue completion notification failed", logging.Error(err))
	}
}

func countWorkItems(stats queue.Stats) int {
	total := 0
	for status, count := range stats.ByStatus {
		if status.IsTerminal() {
			continue
		}
		total += count
	}
	return total
}

// countActiveItems treats paused items as inactive; they wait on an operator,
// not on the workflow.
func countActiveItems(stats queue.Stats) int {
	active := 0
	for status, count := range stats.ByStatus {
		if status.IsTerminal() {
			continue
		}
		active += count
	}
	active -= stats.Paused
	if active < 0 {
		active = 0
	}
	return active
}
