// Package dedup decides whether candidate topics and scripts are too
// close to recently produced content to publish again.
package dedup

import (
	"context"
	"fmt"

	"apogee/internal/similarity"
)

// Decision is the gate's verdict for a candidate.
type Decision string

const (
	// DecisionAccept admits the candidate.
	DecisionAccept Decision = "accept"
	// DecisionReject drops a candidate topic before an item is created.
	DecisionReject Decision = "reject"
	// DecisionBlock sends a drafted script back for another variation.
	DecisionBlock Decision = "block"
)

// Result carries the verdict together with the similarity evidence.
type Result struct {
	Decision Decision
	Score    float64
}

// Allowed reports whether the candidate may proceed.
func (r Result) Allowed() bool {
	return r.Decision == DecisionAccept
}

// Windows queries maximum similarity against recent embeddings. Satisfied
// by *similarity.Index.
type Windows interface {
	MaxSimilarity(ctx context.Context, channelID string, space similarity.Space, vector []float32, window int) (float64, error)
}

// Gate compares candidates against the channel's recent history. A
// candidate is turned away only when its best match is strictly above the
// threshold; scores exactly at the threshold pass.
type Gate struct {
	index           Windows
	topicThreshold  float64
	scriptThreshold float64
	topicWindow     int
	scriptWindow    int
}

// NewGate builds a gate with the given thresholds and window sizes.
func NewGate(index Windows, topicThreshold, scriptThreshold float64, topicWindow, scriptWindow int) *Gate {
	return &Gate{
		index:           index,
		topicThreshold:  topicThreshold,
		scriptThreshold: scriptThreshold,
		topicWindow:     topicWindow,
		scriptWindow:    scriptWindow,
	}
}

// CheckTopic evaluates a mined topic embedding before an item is created.
func (g *Gate) CheckTopic(ctx context.Context, channelID string, vector []float32) (Result, error) {
	score, err := g.index.MaxSimilarity(ctx, channelID, similarity.SpaceTopic, vector, g.topicWindow)
	if err != nil {
		return Result{}, fmt.Errorf("topic similarity: %w", err)
	}
	if score > g.topicThreshold {
		return Result{Decision: DecisionReject, Score: score}, nil
	}
	return Result{Decision: DecisionAccept, Score: score}, nil
}

// CheckScript evaluates a drafted script embedding before fact checking.
func (g *Gate) CheckScript(ctx context.Context, channelID string, vector []float32) (Result, error) {
	score, err := g.index.MaxSimilarity(ctx, channelID, similarity.SpaceScript, vector, g.scriptWindow)
	if err != nil {
		return Result{}, fmt.Errorf("script similarity: %w", err)
	}
	if score > g.scriptThreshold {
		return Result{Decision: DecisionBlock, Score: score}, nil
	}
	return Result{Decision: DecisionAccept, Score: score}, nil
}
