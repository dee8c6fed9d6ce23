package dedup_test

import (
	"context"
	"testing"

	"apogee/internal/dedup"
	"apogee/internal/similarity"
)

type fixedWindows struct {
	score float64
}

func (f fixedWindows) MaxSimilarity(ctx context.Context, channelID string, space similarity.Space, vector []float32, window int) (float64, error) {
	return f.score, nil
}

func TestTopicGateBoundary(t *testing.T) {
	cases := []struct {
		name  string
		score float64
		want  dedup.Decision
	}{
		{"well below threshold", 0.40, dedup.DecisionAccept},
		{"exactly at threshold", 0.75, dedup.DecisionAccept},
		{"just above threshold", 0.751, dedup.DecisionReject},
		{"identical topic", 1.0, dedup.DecisionReject},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := dedup.NewGate(fixedWindows{score: tc.score}, 0.75, 0.80, 50, 50)
			result, err := gate.CheckTopic(context.Background(), "ch", []float32{1})
			if err != nil {
				t.Fatalf("CheckTopic failed: %v", err)
			}
			if result.Decision != tc.want {
				t.Fatalf("score %f: expected %s, got %s", tc.score, tc.want, result.Decision)
			}
			if result.Score != tc.score {
				t.Fatalf("expected score %f retained, got %f", tc.score, result.Score)
			}
		})
	}
}

func TestScriptGateBoundary(t *testing.T) {
	cases := []struct {
		name  string
		score float64
		want  dedup.Decision
	}{
		{"exactly at threshold", 0.80, dedup.DecisionAccept},
		{"just above threshold", 0.801, dedup.DecisionBlock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := dedup.NewGate(fixedWindows{score: tc.score}, 0.75, 0.80, 50, 50)
			result, err := gate.CheckScript(context.Background(), "ch", []float32{1})
			if err != nil {
				t.Fatalf("CheckScript failed: %v", err)
			}
			if result.Decision != tc.want {
				t.Fatalf("score %f: expected %s, got %s", tc.score, tc.want, result.Decision)
			}
		})
	}
}

func TestResultAllowed(t *testing.T) {
	if !(dedup.Result{Decision: dedup.DecisionAccept}).Allowed() {
		t.Fatal("accept should be allowed")
	}
	if (dedup.Result{Decision: dedup.DecisionBlock}).Allowed() {
		t.Fatal("block should not be allowed")
	}
}
