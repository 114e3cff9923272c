package testsupport

import (
	"context"
	"encoding/json"
	"testing"

	"reelforge/internal/config"
	"reelforge/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob enqueues a job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, owner, project string, payload json.RawMessage) *queue.Job {
	t.Helper()

	job, err := store.Enqueue(context.Background(), owner, project, queue.TierStandard, payload)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}

// MustClaim claims the next pending job and fails the test when the queue is
// empty.
func MustClaim(t testing.TB, store *queue.Store) *queue.Job {
	t.Helper()

	job, err := store.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("store.ClaimNext: %v", err)
	}
	if job == nil {
		t.Fatalf("store.ClaimNext: no pending job to claim")
	}
	return job
}
