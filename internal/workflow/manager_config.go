package workflow

import (
	"log/slog"

	"apogee/internal/queue"
	"apogee/internal/stage"
)

// StageSet bundles the concrete pipeline handlers the manager orchestrates.
type StageSet struct {
	Scripter  stage.Handler
	Renderer  stage.Handler
	Publisher stage.Handler
}

type pipelineStage struct {
	name        string
	handler     stage.Handler
	startStatus queue.Status
	doneStatus  queue.Status
}

type laneState struct {
	stage  pipelineStage
	logger *slog.Logger

	// Only one lane sweeps for stale claims per cycle.
	runReclaimer bool
}

// ConfigureStages registers the concrete stage handlers the workflow will run.
// Each handler gets its own lane polling for the status it consumes.
func (m *Manager) ConfigureStages(set StageSet) {
	lanes := make([]*laneState, 0, 3)
	if set.Scripter != nil {
		lanes = append(lanes, &laneState{stage: pipelineStage{
			name:        "scripting",
			handler:     set.Scripter,
			startStatus: queue.StatusDraft,
			doneStatus:  queue.StatusScripted,
		}})
	}
	if set.Renderer != nil {
		lanes = append(lanes, &laneState{stage: pipelineStage{
			name:        "rendering",
			handler:     set.Renderer,
			startStatus: queue.StatusScripted,
			doneStatus:  queue.StatusRendered,
		}})
	}
	if set.Publisher != nil {
		lanes = append(lanes, &laneState{stage: pipelineStage{
			name:        "publishing",
			handler:     set.Publisher,
			startStatus: queue.StatusRendered,
			doneStatus:  queue.StatusPublished,
		}})
	}
	if len(lanes) > 0 {
		lanes[0].runReclaimer = true
	}

	m.mu.Lock()
	m.lanes = lanes
	m.mu.Unlock()
}
