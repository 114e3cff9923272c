// Package daemon enforces single-instance execution and owns the lifecycle
// of the background worker.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/worker"
)

// Daemon coordinates the worker loop and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *queue.Store
	worker *worker.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wm *worker.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wm == nil {
		return nil, errors.New("daemon requires config, store, logger, and worker manager")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, lockName(cfg.WorkerName))
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		worker:   wm,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// lockName scopes the instance lock to the worker name so several workers
// can share one data dir while double-starting the same worker fails.
func lockName(worker string) string {
	worker = strings.TrimSpace(worker)
	if worker == "" {
		return "reelforged.lock"
	}
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, worker)
	return "reelforged-" + sanitized + ".lock"
}

// Start acquires the instance lock and launches the worker.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelforge daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.worker.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start worker: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("reelforge daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldWorker, d.cfg.WorkerName))
	return nil
}

// Stop stops the worker, letting the in-flight job finish, and releases the
// instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.worker.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reelforge daemon stopped")
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LockPath returns the instance lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Close stops the daemon and releases the queue store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
