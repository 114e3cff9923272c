// Package api is the caller-facing gateway to the job queue. It enforces
// ownership on reads and cancellation; the store itself trusts its callers.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
)

// EnqueueRequest carries everything needed to create a render job.
type EnqueueRequest struct {
	OwnerID     string
	ProjectID   string
	QualityTier string
	Payload     *queue.JobData
}

// Progress is the client-visible progress snapshot.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// JobStatus is the client-visible view of a job.
type JobStatus struct {
	ID            int64             `json:"id"`
	ProjectID     string            `json:"project_id"`
	Status        queue.Status      `json:"status"`
	QualityTier   queue.QualityTier `json:"quality_tier"`
	Progress      Progress          `json:"progress"`
	ResultRef     string            `json:"result_ref,omitempty"`
	ResultPending bool              `json:"result_pending,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// Service wraps the queue store with ownership checks and payload
// validation.
type Service struct {
	store  *queue.Store
	logger *slog.Logger
}

// NewService constructs the queue gateway.
func NewService(store *queue.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Enqueue validates the request and creates a pending job.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*JobStatus, error) {
	owner := strings.TrimSpace(req.OwnerID)
	if owner == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "enqueue", "owner is required", nil)
	}
	tier, ok := queue.ParseQualityTier(req.QualityTier)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "api", "enqueue",
			"unknown quality tier "+req.QualityTier, nil)
	}

	var payload json.RawMessage
	if req.Payload != nil {
		raw, err := req.Payload.Marshal()
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "api", "enqueue", err.Error(), err)
		}
		payload = raw
	}

	job, err := s.store.Enqueue(ctx, owner, strings.TrimSpace(req.ProjectID), tier, payload)
	if err != nil {
		return nil, err
	}
	s.logger.Info("job enqueued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("owner", owner),
		logging.String("quality_tier", string(tier)))
	return statusView(job), nil
}

// Status returns the job's state when the caller owns it. A missing job and
// a job owned by someone else are indistinguishable to the caller.
func (s *Service) Status(ctx context.Context, owner string, id int64) (*JobStatus, error) {
	job, err := s.ownedJob(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return statusView(job), nil
}

// Cancel withdraws a job that is still pending and owned by the caller.
// Returns false once the job has left pending.
func (s *Service) Cancel(ctx context.Context, owner string, id int64) (bool, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return false, services.Wrap(services.ErrValidation, "api", "cancel", "owner is required", nil)
	}
	return s.store.Cancel(ctx, id, owner)
}

// Position reports the job's place in the pending queue.
func (s *Service) Position(ctx context.Context, owner string, id int64) (int, error) {
	if _, err := s.ownedJob(ctx, owner, id); err != nil {
		return 0, err
	}
	return s.store.QueuePosition(ctx, id)
}

// List returns owner-agnostic job listings for operator tooling.
func (s *Service) List(ctx context.Context, statuses ...queue.Status) ([]*JobStatus, error) {
	jobs, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	views := make([]*JobStatus, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, statusView(job))
	}
	return views, nil
}

// Stats returns job counts grouped by status.
func (s *Service) Stats(ctx context.Context) (map[queue.Status]int, error) {
	return s.store.Stats(ctx)
}

func (s *Service) ownedJob(ctx context.Context, owner string, id int64) (*queue.Job, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "lookup", "owner is required", nil)
	}
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil || job.OwnerID != owner {
		return nil, services.Wrap(services.ErrNotFound, "api", "lookup", "job not found", nil)
	}
	return job, nil
}

func statusView(job *queue.Job) *JobStatus {
	return &JobStatus{
		ID:          job.ID,
		ProjectID:   job.ProjectID,
		Status:      job.Status,
		QualityTier: job.QualityTier,
		Progress: Progress{
			Current: job.ProgressCurrent,
			Total:   job.ProgressTotal,
			Message: job.ProgressMessage,
		},
		ResultRef:     job.ResultRef,
		ResultPending: job.ResultPending(),
		ErrorMessage:  job.ErrorMessage,
		CreatedAt:     job.CreatedAt,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
	}
}
