package api_test

import (
	"context"
	"errors"
	"testing"

	"reelforge/internal/api"
	"reelforge/internal/queue"
	"reelforge/internal/services"
	"reelforge/internal/testsupport"
)

func newService(t *testing.T) (*api.Service, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return api.NewService(store, nil), store
}

func preRenderedPayload() *queue.JobData {
	return &queue.JobData{PreRendered: &queue.PreRenderedPlan{
		ProjectID: "proj-1",
		Scenes: []queue.RenderedScene{
			{SceneIndex: 0, RenderedPath: "/tmp/a.mp4", TransitionOut: queue.TransitionFade},
		},
	}}
}

func TestEnqueueValidatesRequest(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, api.EnqueueRequest{QualityTier: "standard"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing owner, got %v", err)
	}

	if _, err := svc.Enqueue(ctx, api.EnqueueRequest{
		OwnerID:     "user-1",
		QualityTier: "ultra",
	}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown tier, got %v", err)
	}

	if _, err := svc.Enqueue(ctx, api.EnqueueRequest{
		OwnerID:     "user-1",
		QualityTier: "standard",
		Payload:     &queue.JobData{},
	}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty payload union, got %v", err)
	}

	job, err := svc.Enqueue(ctx, api.EnqueueRequest{
		OwnerID:     "user-1",
		ProjectID:   "proj-1",
		QualityTier: "premium",
		Payload:     preRenderedPayload(),
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending job, got %s", job.Status)
	}
	if job.QualityTier != queue.TierPremium {
		t.Fatalf("expected premium tier, got %s", job.QualityTier)
	}
}

func TestStatusHidesForeignJobs(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	job, err := svc.Enqueue(ctx, api.EnqueueRequest{
		OwnerID:     "user-1",
		QualityTier: "standard",
		Payload:     preRenderedPayload(),
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if _, err := svc.Status(ctx, "user-2", job.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found for foreign owner, got %v", err)
	}
	if _, err := svc.Status(ctx, "user-1", job.ID+100); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found for missing job, got %v", err)
	}

	view, err := svc.Status(ctx, "user-1", job.ID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if view.ID != job.ID || view.Status != queue.StatusPending {
		t.Fatalf("unexpected status view %#v", view)
	}
}

func TestCancelScopedToOwnerAndPending(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	job, err := svc.Enqueue(ctx, api.EnqueueRequest{
		OwnerID:     "user-1",
		QualityTier: "standard",
		Payload:     preRenderedPayload(),
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	ok, err := svc.Cancel(ctx, "user-2", job.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if ok {
		t.Fatal("expected foreign cancel to be refused")
	}

	ok, err = svc.Cancel(ctx, "user-1", job.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !ok {
		t.Fatal("expected owner cancel to succeed")
	}

	second, err := svc.Enqueue(ctx, api.EnqueueRequest{
		OwnerID:     "user-1",
		QualityTier: "standard",
		Payload:     preRenderedPayload(),
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	testsupport.MustClaim(t, store)
	ok, err = svc.Cancel(ctx, "user-1", second.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if ok {
		t.Fatal("expected cancel of claimed job to be refused")
	}
}

func TestPositionRequiresOwnership(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, api.EnqueueRequest{
		OwnerID: "user-1", QualityTier: "standard", Payload: preRenderedPayload(),
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	second, err := svc.Enqueue(ctx, api.EnqueueRequest{
		OwnerID: "user-2", QualityTier: "draft", Payload: preRenderedPayload(),
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	pos, err := svc.Position(ctx, "user-1", first.ID)
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos != 1 {
		t.Fatalf("expected position 1, got %d", pos)
	}

	pos, err = svc.Position(ctx, "user-2", second.ID)
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos != 2 {
		t.Fatalf("expected position 2, got %d", pos)
	}

	if _, err := svc.Position(ctx, "user-2", first.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found for foreign owner, got %v", err)
	}
}

func TestStatsAndList(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, api.EnqueueRequest{
		OwnerID: "user-1", QualityTier: "standard", Payload: preRenderedPayload(),
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	claimed := testsupport.MustClaim(t, store)

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusProcessing] != 1 {
		t.Fatalf("unexpected stats %#v", stats)
	}

	views, err := svc.List(ctx, queue.StatusProcessing)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(views) != 1 || views[0].ID != claimed.ID {
		t.Fatalf("unexpected list result %#v", views)
	}
}
