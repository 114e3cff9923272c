// Package worker runs the polling loop that claims and processes render jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
)

// Processor turns a claimed job into a result reference. The render
// orchestrator satisfies it.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) (string, error)
}

// Manager owns one worker loop. Each instance processes at most one job at a
// time; horizontal scale comes from more instances sharing the queue store.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	processor Processor
	logger    *slog.Logger

	pollInterval       time.Duration
	errorRetryInterval time.Duration
	heartbeat          *HeartbeatMonitor

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a worker manager.
func NewManager(cfg *config.Config, store *queue.Store, processor Processor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:                cfg,
		store:              store,
		processor:          processor,
		logger:             logger,
		pollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("worker already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop requests shutdown and waits for the in-flight job to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStale(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("reclaim stale processing failed, stuck jobs may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"))
		}

		job, err := m.store.ClaimNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_claim_failed"))
			m.sleep(ctx, m.errorRetryInterval)
			continue
		}
		if job == nil {
			m.sleep(ctx, m.pollInterval)
			continue
		}

		m.processJob(ctx, job)
	}
}

// processJob drives one claimed job to a terminal state. A shutdown request
// arriving mid-job does not interrupt it: all work below runs on a context
// detached from the loop's cancellation.
func (m *Manager) processJob(ctx context.Context, job *queue.Job) {
	jobCtx := context.WithoutCancel(ctx)
	logger := m.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldRequestID, uuid.NewString()))

	start := time.Now()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("quality_tier", string(job.QualityTier)))

	result, err := m.executeWithHeartbeat(jobCtx, job)
	if err != nil {
		m.failJob(jobCtx, logger, job, err)
		return
	}

	if err := m.store.Complete(jobCtx, job.ID, result); err != nil {
		logger.Error("failed to persist job completion", logging.Error(err))
		return
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("result_ref", result),
		logging.Duration("job_duration", time.Since(start)))
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, job *queue.Job) (string, error) {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	result, err := m.safeProcess(ctx, job)
	hbCancel()
	hbWG.Wait()
	return result, err
}

// safeProcess converts a processor panic into an error so one bad job cannot
// take the worker down.
func (m *Manager) safeProcess(ctx context.Context, job *queue.Job) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("job processing panicked",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())))
			err = fmt.Errorf("job processing panicked: %v", r)
		}
	}()
	return m.processor.Process(ctx, job)
}

func (m *Manager) failJob(ctx context.Context, logger *slog.Logger, job *queue.Job, cause error) {
	logger.Error("job failed",
		logging.String(logging.FieldEventType, "job_failed"),
		logging.Error(cause))

	message := services.UserMessage(cause)
	if err := m.store.Fail(ctx, job.ID, message); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
