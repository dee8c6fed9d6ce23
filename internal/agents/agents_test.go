package agents_test

import (
	"context"
	"testing"

	"apogee/internal/agents"
	"apogee/internal/storyboard"
)

func TestHashingEmbedderDeterministic(t *testing.T) {
	embedder := agents.NewHashingEmbedder(64)
	ctx := context.Background()

	first, err := embedder.Embed(ctx, "the heart pumps five liters per minute")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	second, err := embedder.Embed(ctx, "the heart pumps five liters per minute")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(first) != 64 {
		t.Fatalf("expected width 64, got %d", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("embedding not deterministic at component %d", i)
		}
	}
}

func TestHashingEmbedderNeverZero(t *testing.T) {
	embedder := agents.NewHashingEmbedder(16)
	vector, err := embedder.Embed(context.Background(), "a an of")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	var sum float32
	for _, v := range vector {
		if v < 0 {
			sum -= v
		} else {
			sum += v
		}
	}
	if sum == 0 {
		t.Fatal("expected non-zero vector for degenerate input")
	}
}

func TestHashingEmbedderSeparatesTopics(t *testing.T) {
	embedder := agents.NewHashingEmbedder(128)
	ctx := context.Background()
	a, _ := embedder.Embed(ctx, "deep sea bioluminescence glowing plankton")
	b, _ := embedder.Embed(ctx, "roman aqueduct engineering gravity flow")

	different := false
	for i := range a {
		if a[i] != b[i] {
			different = true
			break
		}
	}
	if !different {
		t.Fatal("distinct topics produced identical embeddings")
	}
}

func approvedScript() storyboard.Script {
	return storyboard.Script{
		Hook: "Most people misread this map.",
		Beats: []storyboard.Beat{
			{Fact: "Greenland looks bigger than Africa on many maps.", Analogy: "Like a funhouse mirror for continents."},
			{Fact: "Africa is about fourteen times larger.", Analogy: "Greenland fits in the Sahara."},
			{Fact: "The distortion grows toward the poles.", Analogy: "Stretching dough at the edges."},
		},
		Payoff: "Projections trade shape for usefulness.",
	}
}

func sourcedClaims(n int) []agents.Claim {
	claims := make([]agents.Claim, n)
	for i := range claims {
		claims[i] = agents.Claim{Text: "sourced claim", SourceURL: "https://example.org", Confidence: 0.9}
	}
	return claims
}

func TestRuleFactCheckerApprovesCleanScript(t *testing.T) {
	checker := agents.NewRuleFactChecker()
	result, usage, err := checker.CheckScript(context.Background(), approvedScript(), sourcedClaims(3))
	if err != nil {
		t.Fatalf("CheckScript failed: %v", err)
	}
	if !result.Approved {
		t.Fatalf("expected approval, got %#v", result)
	}
	if result.RiskScore != 0 {
		t.Fatalf("expected zero risk, got %f", result.RiskScore)
	}
	if usage.TokensIn != 0 || usage.CostUSD != 0 {
		t.Fatalf("rule-based checker should report zero usage, got %#v", usage)
	}
}

func TestRuleFactCheckerAccumulatesRisk(t *testing.T) {
	checker := agents.NewRuleFactChecker()

	claims := sourcedClaims(1)
	claims = append(claims,
		agents.Claim{Text: "unsourced claim one", Confidence: 0.5},
		agents.Claim{Text: "unsourced claim two", Confidence: 0.5},
	)
	script := approvedScript()
	script.Hook = "This is always true and never wrong."

	result, _, err := checker.CheckScript(context.Background(), script, claims)
	if err != nil {
		t.Fatalf("CheckScript failed: %v", err)
	}
	// 2 unsourced claims (0.40) + "always" and "never" (0.30) = 0.70.
	if result.RiskScore != 0.7 {
		t.Fatalf("expected risk 0.7, got %f", result.RiskScore)
	}
	if result.Approved {
		t.Fatal("expected rejection above the approval threshold")
	}
	if len(result.Issues) != 4 {
		t.Fatalf("expected 4 issues, got %d: %v", len(result.Issues), result.Issues)
	}
}

func TestRuleFactCheckerThresholdIsInclusive(t *testing.T) {
	checker := agents.NewRuleFactChecker()

	claims := append(sourcedClaims(1),
		agents.Claim{Text: "unsourced one", Confidence: 0.5},
		agents.Claim{Text: "unsourced two", Confidence: 0.5},
		agents.Claim{Text: "unsourced three", Confidence: 0.5},
	)

	// 3 unsourced claims put risk exactly at 0.60, which still passes.
	result, _, err := checker.CheckScript(context.Background(), approvedScript(), claims)
	if err != nil {
		t.Fatalf("CheckScript failed: %v", err)
	}
	if result.RiskScore != 0.6 {
		t.Fatalf("expected risk 0.6, got %f", result.RiskScore)
	}
	if !result.Approved {
		t.Fatal("risk exactly at threshold must be approved")
	}
}

func TestUsageAdd(t *testing.T) {
	total := agents.Usage{TokensIn: 100, TokensOut: 50, CostUSD: 0.01}
	total.Add(agents.Usage{TokensIn: 30, TokensOut: 20, CostUSD: 0.002})
	if total.TokensIn != 130 || total.TokensOut != 70 {
		t.Fatalf("unexpected totals: %#v", total)
	}
	if total.CostUSD < 0.0119 || total.CostUSD > 0.0121 {
		t.Fatalf("unexpected cost: %f", total.CostUSD)
	}
}
