package publishing_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"apogee/internal/agents"
	"apogee/internal/config"
	"apogee/internal/logging"
	"apogee/internal/publishing"
	"apogee/internal/queue"
	"apogee/internal/services"
	"apogee/internal/stage"
	"apogee/internal/testsupport"
	"apogee/internal/variation"
)

type stubPlatform struct {
	fail  bool
	calls int
}

func (s *stubPlatform) Publish(_ context.Context, itemID, _, _ string, _ config.Channel) (agents.PublishResult, error) {
	s.calls++
	if s.fail {
		return agents.PublishResult{}, errors.New("upload quota exceeded")
	}
	return agents.PublishResult{ExternalID: "yt-" + itemID, URL: "https://example.org/v/" + itemID}, nil
}

func renderedItem(t *testing.T, store *queue.Store, channelID string) *queue.Item {
	t.Helper()
	ctx := context.Background()
	item, err := store.CreateItem(ctx, channelID, "Pink Lake", nil)
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	payload := stage.RenderPayload{
		Assignment: variation.NewAssigner().Assign(item.ID),
		Assets:     []agents.Asset{{Kind: "background", Path: "a.png", Checksum: "c1"}},
		VideoPath:  "videos/" + item.ID + ".mp4",
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	item.Status = queue.StatusRendered
	item.AssetsJSON = string(encoded)
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	return item
}

func TestExecutePublishes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	platform := &stubPlatform{}
	publisher := publishing.NewPublisher(cfg, store, logging.NewNop(), publishing.Dependencies{Publisher: platform})
	item := renderedItem(t, store, cfg.Channel.ID)
	ctx := context.Background()

	if err := publisher.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := publisher.Execute(ctx, item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if item.Status != queue.StatusPublished {
		t.Fatalf("expected published, got %s", item.Status)
	}
	if platform.calls != 1 {
		t.Fatalf("expected 1 upload, got %d", platform.calls)
	}

	runs, err := store.StageRunsForItem(ctx, item.ID, "publish")
	if err != nil {
		t.Fatalf("StageRunsForItem failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != queue.RunSuccess {
		t.Fatalf("unexpected audit runs: %#v", runs)
	}
}

func TestExecuteSurfacesUploadFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	publisher := publishing.NewPublisher(cfg, store, logging.NewNop(), publishing.Dependencies{Publisher: &stubPlatform{fail: true}})
	item := renderedItem(t, store, cfg.Channel.ID)
	ctx := context.Background()

	err := publisher.Execute(ctx, item)
	if err == nil {
		t.Fatal("expected upload failure to surface")
	}
	if !services.Retryable(err) {
		t.Fatalf("upload failures should be retryable, got %v", err)
	}
	if item.Status != queue.StatusRendered {
		t.Fatalf("status must not advance on failure, got %s", item.Status)
	}

	runs, auditErr := store.StageRunsForItem(ctx, item.ID, "publish")
	if auditErr != nil {
		t.Fatalf("StageRunsForItem failed: %v", auditErr)
	}
	if len(runs) != 1 || runs[0].Status != queue.RunFailed {
		t.Fatalf("expected one failed audit run, got %#v", runs)
	}
}

func TestPrepareRejectsMissingPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	publisher := publishing.NewPublisher(cfg, store, logging.NewNop(), publishing.Dependencies{Publisher: &stubPlatform{}})

	item, err := store.CreateItem(context.Background(), cfg.Channel.ID, "No Payload", nil)
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	if err := publisher.Prepare(context.Background(), item); !errors.Is(err, services.ErrDataIntegrity) {
		t.Fatalf("expected data integrity error, got %v", err)
	}
}
