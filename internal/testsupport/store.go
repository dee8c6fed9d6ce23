package testsupport

import (
	"testing"

	"apogee/internal/config"
	"apogee/internal/queue"
)

// MustOpenStore opens a queue store for the given config and registers
// cleanup with the test.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := store.Close(); closeErr != nil {
			t.Errorf("close store: %v", closeErr)
		}
	})
	return store
}
