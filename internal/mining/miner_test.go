package mining_test

import (
	"context"
	"testing"

	"apogee/internal/agents"
	"apogee/internal/config"
	"apogee/internal/dedup"
	"apogee/internal/logging"
	"apogee/internal/mining"
	"apogee/internal/queue"
	"apogee/internal/similarity"
	"apogee/internal/testsupport"
)

type stubMiner struct {
	candidates   []agents.TopicCandidate
	recentTitles []string
}

func (s *stubMiner) MineTopics(_ context.Context, _ config.Channel, recentTitles []string) ([]agents.TopicCandidate, agents.Usage, error) {
	s.recentTitles = recentTitles
	return s.candidates, agents.Usage{TokensIn: 1200, TokensOut: 300, CostUSD: 0.02}, nil
}

func newMiner(t *testing.T, cfg *config.Config, store *queue.Store, stub *stubMiner) *mining.Miner {
	t.Helper()
	index := similarity.NewIndex(store.DB(), cfg.Pipeline.EmbeddingDimension)
	gate := dedup.NewGate(index,
		cfg.Pipeline.TopicSimilarityThreshold,
		cfg.Pipeline.ScriptSimilarityThreshold,
		cfg.Pipeline.TopicWindow,
		cfg.Pipeline.ScriptWindow)
	return mining.NewMiner(cfg, store, logging.NewNop(), mining.Dependencies{
		Miner:    stub,
		Embedder: agents.NewHashingEmbedder(cfg.Pipeline.EmbeddingDimension),
		Gate:     gate,
		Index:    index,
	})
}

func TestRunEnqueuesAcceptedTopics(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEmbeddingDimension(64))
	store := testsupport.MustOpenStore(t, cfg)
	stub := &stubMiner{candidates: []agents.TopicCandidate{
		{Title: "Why Octopuses Have Three Hearts", Rationale: "high curiosity"},
		{Title: "The Roman Concrete That Heals Itself", Rationale: "evergreen"},
	}}
	miner := newMiner(t, cfg, store, stub)
	ctx := context.Background()

	result, err := miner.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Accepted) != 2 || result.Rejected != 0 {
		t.Fatalf("unexpected result: %#v", result)
	}

	items, err := store.ItemsByStatus(ctx, queue.StatusDraft)
	if err != nil {
		t.Fatalf("ItemsByStatus failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(items))
	}
	for _, item := range items {
		if item.SimilarityScore == nil {
			t.Fatalf("expected admission score on %s", item.Title)
		}
	}

	index := similarity.NewIndex(store.DB(), cfg.Pipeline.EmbeddingDimension)
	count, err := index.Count(ctx, cfg.Channel.ID, similarity.SpaceTopic)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 topic embeddings, got %d", count)
	}
}

func TestRunRejectsNearDuplicateWithinPass(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEmbeddingDimension(64))
	store := testsupport.MustOpenStore(t, cfg)
	// The duplicate candidate embeds identically to the first, so the
	// in-pass index append must catch it.
	stub := &stubMiner{candidates: []agents.TopicCandidate{
		{Title: "Why Octopuses Have Three Hearts"},
		{Title: "Why Octopuses Have Three Hearts"},
	}}
	miner := newMiner(t, cfg, store, stub)

	result, err := miner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Accepted) != 1 || result.Rejected != 1 {
		t.Fatalf("expected 1 accepted and 1 rejected, got %#v", result)
	}
}

func TestRunFeedsRecentTitlesToMiner(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEmbeddingDimension(64))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	if _, err := store.CreateItem(ctx, cfg.Channel.ID, "Existing Topic", nil); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}

	stub := &stubMiner{}
	miner := newMiner(t, cfg, store, stub)
	if _, err := miner.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(stub.recentTitles) != 1 || stub.recentTitles[0] != "Existing Topic" {
		t.Fatalf("expected existing title passed to miner, got %v", stub.recentTitles)
	}
}

func TestRunRecordsAuditRun(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEmbeddingDimension(64))
	store := testsupport.MustOpenStore(t, cfg)
	miner := newMiner(t, cfg, store, &stubMiner{})
	ctx := context.Background()

	if _, err := miner.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	tokensIn, tokensOut, cost, err := store.UsageTotals(ctx, "")
	if err != nil {
		t.Fatalf("UsageTotals failed: %v", err)
	}
	if tokensIn != 1200 || tokensOut != 300 {
		t.Fatalf("unexpected usage: in=%d out=%d", tokensIn, tokensOut)
	}
	if cost < 0.019 || cost > 0.021 {
		t.Fatalf("unexpected cost: %f", cost)
	}
}
