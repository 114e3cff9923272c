package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reelforge/internal/queue"
	"reelforge/internal/testsupport"
)

func TestEnqueueDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Enqueue(ctx, "user-1", "project-1", "", nil)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}
	if job.QualityTier != queue.TierStandard {
		t.Fatalf("expected standard tier default, got %s", job.QualityTier)
	}
	if job.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
	if job.StartedAt != nil || job.CompletedAt != nil {
		t.Fatalf("expected unset lifecycle timestamps, got %#v", job)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.OwnerID != "user-1" || fetched.ProjectID != "project-1" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
}

func TestEnqueueRequiresOwner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.Enqueue(context.Background(), "", "project", queue.TierStandard, nil); err == nil {
		t.Fatal("expected error when owner missing")
	}
}

func TestClaimNextOrdersOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewJob(t, store, "user-1", "project-a", nil)
	second := testsupport.NewJob(t, store, "user-1", "project-b", nil)

	claimed := testsupport.MustClaim(t, store)
	if claimed.ID != first.ID {
		t.Fatalf("expected job %d claimed first, got %d", first.ID, claimed.ID)
	}
	if claimed.Status != queue.StatusProcessing {
		t.Fatalf("expected processing status, got %s", claimed.Status)
	}
	if claimed.StartedAt == nil {
		t.Fatal("expected started_at stamped on claim")
	}
	if claimed.LastHeartbeat == nil {
		t.Fatal("expected heartbeat stamped on claim")
	}

	claimed = testsupport.MustClaim(t, store)
	if claimed.ID != second.ID {
		t.Fatalf("expected job %d claimed second, got %d", second.ID, claimed.ID)
	}

	empty, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext on empty queue failed: %v", err)
	}
	if empty != nil {
		t.Fatalf("expected no job from empty queue, got %#v", empty)
	}
}

func TestConcurrentClaimsPartitionPendingSet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	const pending = 5
	const claimers = 8

	for i := 0; i < pending; i++ {
		testsupport.NewJob(t, store, "user-1", "project", nil)
	}

	var wg sync.WaitGroup
	results := make(chan *queue.Job, claimers)
	errs := make(chan error, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := store.ClaimNext(context.Background())
			if err != nil {
				errs <- err
				return
			}
			results <- job
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent claim failed: %v", err)
	}

	seen := make(map[int64]bool)
	claimed := 0
	for job := range results {
		if job == nil {
			continue
		}
		if seen[job.ID] {
			t.Fatalf("job %d delivered to more than one claimer", job.ID)
		}
		seen[job.ID] = true
		claimed++
	}
	if claimed != pending {
		t.Fatalf("expected %d claims to succeed, got %d", pending, claimed)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewJob(t, store, "user-1", "project", nil)
	job := testsupport.MustClaim(t, store)

	if err := store.UpdateProgress(ctx, job.ID, 2, 3, "Assembling"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	if err := store.Complete(ctx, job.ID, "/renders/out.mp4"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	done, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if done.Status != queue.StatusCompleted {
		t.Fatalf("expected completed status, got %s", done.Status)
	}
	if done.ResultRef != "/renders/out.mp4" {
		t.Fatalf("unexpected result ref %q", done.ResultRef)
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completed_at stamped")
	}
	if done.ProgressCurrent != done.ProgressTotal {
		t.Fatalf("expected progress forced to total, got %d/%d", done.ProgressCurrent, done.ProgressTotal)
	}
	firstCompletion := *done.CompletedAt

	if err := store.Complete(ctx, job.ID, "/renders/other.mp4"); err != nil {
		t.Fatalf("second Complete should be a no-op, got: %v", err)
	}
	again, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !again.CompletedAt.Equal(firstCompletion) {
		t.Fatalf("completed_at changed on repeat completion: %v vs %v", again.CompletedAt, firstCompletion)
	}
	if again.ResultRef != "/renders/out.mp4" {
		t.Fatalf("result ref overwritten on repeat completion: %q", again.ResultRef)
	}
}

func TestCompleteRequiresProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "user-1", "project", nil)

	err := store.Complete(ctx, job.ID, "/renders/out.mp4")
	if !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if err := store.Complete(ctx, job.ID+100, "x"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing job, got %v", err)
	}
}

func TestFailRecordsUserMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewJob(t, store, "user-1", "project", nil)
	job := testsupport.MustClaim(t, store)

	if err := store.Fail(ctx, job.ID, "no instructions provided"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	failed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if failed.Status != queue.StatusFailed {
		t.Fatalf("expected failed status, got %s", failed.Status)
	}
	if failed.ErrorMessage != "no instructions provided" {
		t.Fatalf("unexpected error message %q", failed.ErrorMessage)
	}
	if failed.CompletedAt == nil {
		t.Fatal("expected completed_at stamped on failure")
	}
}

func TestCancelOnlyPendingAndOwned(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "user-1", "project", nil)

	ok, err := store.Cancel(ctx, job.ID, "someone-else")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if ok {
		t.Fatal("expected cancel by non-owner to be refused")
	}

	ok, err = store.Cancel(ctx, job.ID, "user-1")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !ok {
		t.Fatal("expected pending cancel to succeed")
	}

	cancelled, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if cancelled.Status != queue.StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}
	if cancelled.CompletedAt == nil {
		t.Fatal("expected completed_at stamped on cancellation")
	}

	testsupport.NewJob(t, store, "user-1", "project", nil)
	claimed := testsupport.MustClaim(t, store)
	ok, err = store.Cancel(ctx, claimed.ID, "user-1")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if ok {
		t.Fatal("expected cancel of processing job to be refused")
	}
	unchanged, err := store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if unchanged.Status != queue.StatusProcessing {
		t.Fatalf("expected processing status preserved, got %s", unchanged.Status)
	}
}

func TestQueuePosition(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewJob(t, store, "user-1", "project", nil)
	second := testsupport.NewJob(t, store, "user-2", "project", nil)
	third := testsupport.NewJob(t, store, "user-3", "project", nil)

	for i, job := range []*queue.Job{first, second, third} {
		pos, err := store.QueuePosition(ctx, job.ID)
		if err != nil {
			t.Fatalf("QueuePosition failed: %v", err)
		}
		if pos != i+1 {
			t.Fatalf("expected position %d for job %d, got %d", i+1, job.ID, pos)
		}
	}

	claimed := testsupport.MustClaim(t, store)
	if claimed.ID != first.ID {
		t.Fatalf("expected oldest job claimed, got %d", claimed.ID)
	}

	pos, err := store.QueuePosition(ctx, second.ID)
	if err != nil {
		t.Fatalf("QueuePosition failed: %v", err)
	}
	if pos != 1 {
		t.Fatalf("expected job %d promoted to position 1, got %d", second.ID, pos)
	}

	if _, err := store.QueuePosition(ctx, claimed.ID); !errors.Is(err, queue.ErrNotPending) {
		t.Fatalf("expected ErrNotPending for claimed job, got %v", err)
	}
	if _, err := store.QueuePosition(ctx, third.ID+100); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing job, got %v", err)
	}
}

func TestHeartbeatOnlyTouchesProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	pending := testsupport.NewJob(t, store, "user-1", "project", nil)
	if err := store.UpdateHeartbeat(ctx, pending.ID); err != nil {
		t.Fatalf("UpdateHeartbeat failed: %v", err)
	}
	refreshed, err := store.GetByID(ctx, pending.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if refreshed.LastHeartbeat != nil {
		t.Fatal("expected pending job heartbeat untouched")
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewJob(t, store, "user-1", "project", nil)
	claimed := testsupport.MustClaim(t, store)

	// Cutoff in the future makes the fresh heartbeat look expired.
	reclaimed, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 job reclaimed, got %d", reclaimed)
	}

	job, err := store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected reclaimed job pending, got %s", job.Status)
	}
	if job.StartedAt != nil || job.LastHeartbeat != nil {
		t.Fatalf("expected claim state cleared, got %#v", job)
	}

	again := testsupport.MustClaim(t, store)
	if again.ID != claimed.ID {
		t.Fatalf("expected reclaimed job to be claimable, got %d", again.ID)
	}
	if again.StartedAt == nil {
		t.Fatal("expected started_at restamped on reclaim")
	}

	// A healthy heartbeat survives a past cutoff.
	reclaimed, err = store.ReclaimStaleProcessing(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("expected no reclaim with healthy heartbeat, got %d", reclaimed)
	}
}

func TestListAndStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewJob(t, store, "user-1", "project", nil)
	testsupport.NewJob(t, store, "user-1", "project", nil)
	claimed := testsupport.MustClaim(t, store)
	if err := store.Complete(ctx, claimed.ID, "/renders/a.mp4"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	pendingJobs, err := store.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pendingJobs) != 1 {
		t.Fatalf("expected 1 pending job, got %d", len(pendingJobs))
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs total, got %d", len(all))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusPending] != 1 || stats[queue.StatusCompleted] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 completed job cleared, got %d", removed)
	}
}
