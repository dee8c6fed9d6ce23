package workflow

import (
	"context"

	"apogee/internal/logging"
	"apogee/internal/queue"
	"apogee/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastItem    *queue.Item
	QueueStats  queue.Stats
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastItem := m.lastItem
	stages := make([]pipelineStage, 0, len(m.lanes))
	for _, lane := range m.lanes {
		stages = append(stages, lane.stage)
	}
	m.mu.RUnlock()

	stats, err := m.store.QueueStats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		if stg.handler == nil {
			continue
		}
		health[stg.name] = stg.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, QueueStats: stats, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastItem != nil {
		copy := *lastItem
		summary.LastItem = &copy
	}
	return summary
}
