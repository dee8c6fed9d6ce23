package main

import (
	"log/slog"

	"apogee/internal/agents"
	"apogee/internal/config"
	"apogee/internal/dedup"
	"apogee/internal/mining"
	"apogee/internal/notifications"
	"apogee/internal/publishing"
	"apogee/internal/queue"
	"apogee/internal/rendering"
	"apogee/internal/scripting"
	"apogee/internal/similarity"
	"apogee/internal/workflow"
)

// pipeline bundles everything the run and mine commands wire up.
type pipeline struct {
	stages workflow.StageSet
	miner  *mining.Miner
}

// buildPipeline wires the agent suite, dedup gate, and similarity index into
// the stage handlers and the mining workflow. The offline suite stands in for
// provider-backed agents.
func buildPipeline(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *pipeline {
	suite := agents.NewOfflineSuite(cfg)
	index := similarity.NewIndex(store.DB(), cfg.Pipeline.EmbeddingDimension)
	gate := dedup.NewGate(
		index,
		cfg.Pipeline.TopicSimilarityThreshold,
		cfg.Pipeline.ScriptSimilarityThreshold,
		cfg.Pipeline.TopicWindow,
		cfg.Pipeline.ScriptWindow,
	)

	scripter := scripting.NewScripter(cfg, store, logger, scripting.Dependencies{
		Researcher:   suite.Researcher,
		Scriptwriter: suite.Scriptwriter,
		FactChecker:  suite.FactChecker,
		Embedder:     suite.Embedder,
		Gate:         gate,
		Index:        index,
		Notifier:     notifier,
	})
	renderer := rendering.NewRenderer(cfg, store, logger, rendering.Dependencies{
		Speech:   suite.Speech,
		Assets:   suite.Assets,
		Renderer: suite.Renderer,
		Notifier: notifier,
	})
	publisher := publishing.NewPublisher(cfg, store, logger, publishing.Dependencies{
		Publisher: suite.Publisher,
		Notifier:  notifier,
	})
	miner := mining.NewMiner(cfg, store, logger, mining.Dependencies{
		Miner:    suite.Miner,
		Embedder: suite.Embedder,
		Gate:     gate,
		Index:    index,
		Notifier: notifier,
	})

	return &pipeline{
		stages: workflow.StageSet{
			Scripter:  scripter,
			Renderer:  renderer,
			Publisher: publisher,
		},
		miner: miner,
	}
}
