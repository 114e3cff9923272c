package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Enqueue inserts a new pending job. The payload is stored opaquely; the
// queue performs no validation of its contents.
func (s *Store) Enqueue(ctx context.Context, owner, project string, tier QualityTier, payload json.RawMessage) (*Job, error) {
	if owner == "" {
		return nil, errors.New("owner is required")
	}
	if tier == "" {
		tier = TierStandard
	}
	timestamp := formatTime(time.Now())

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO render_jobs (
            owner_id, project_id, status, quality_tier, job_data,
            progress_current, progress_total, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		owner,
		project,
		StatusPending,
		tier,
		string(payload),
		0,
		0,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Returns nil when the job does not
// exist.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM render_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ClaimNext atomically claims the oldest pending job: it transitions the job
// to processing, stamps started_at, and returns it. Concurrent callers never
// receive the same job; the single UPDATE with a nested oldest-pending
// selection serializes on SQLite's write lock, so N workers partition the
// pending set. Returns nil without blocking when nothing is pending.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	now := formatTime(time.Now())
	query := `UPDATE render_jobs
        SET status = ?, started_at = ?, updated_at = ?, last_heartbeat = ?
        WHERE id = (
            SELECT id FROM render_jobs WHERE status = ? ORDER BY created_at, id LIMIT 1
        )
        RETURNING ` + jobColumns
	args := []any{StatusProcessing, now, now, now, StatusPending}

	var job *Job
	err := s.queryRowScanWithRetry(ctx, query, args, func(row *sql.Row) error {
		claimed, scanErr := scanJob(row)
		if scanErr != nil {
			return scanErr
		}
		job = claimed
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return job, nil
}

// UpdateProgress records progress for a job. Last write wins; the queue does
// not enforce monotonicity.
func (s *Store) UpdateProgress(ctx context.Context, id int64, current, total int, message string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE render_jobs
         SET progress_current = ?, progress_total = ?, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		current,
		total,
		nullableString(message),
		formatTime(time.Now()),
		id,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// Complete transitions a processing job to completed, stamping completed_at
// and forcing progress to its total. Completing an already-completed job is a
// no-op; any other state returns ErrInvalidTransition.
func (s *Store) Complete(ctx context.Context, id int64, resultRef string) error {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE render_jobs
         SET status = ?, result_ref = ?, completed_at = ?, updated_at = ?,
             progress_current = progress_total, last_heartbeat = NULL
         WHERE id = ? AND status = ?`,
		StatusCompleted,
		nullableString(resultRef),
		now,
		now,
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	return s.guardTerminalTransition(ctx, id, StatusCompleted)
}

// Fail transitions a processing job to failed with a user-safe message.
// Failing an already-failed job is a no-op; any other state returns
// ErrInvalidTransition.
func (s *Store) Fail(ctx context.Context, id int64, message string) error {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE render_jobs
         SET status = ?, error_message = ?, completed_at = ?, updated_at = ?,
             progress_message = ?, last_heartbeat = NULL
         WHERE id = ? AND status = ?`,
		StatusFailed,
		nullableString(message),
		now,
		now,
		nullableString(message),
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	return s.guardTerminalTransition(ctx, id, StatusFailed)
}

// guardTerminalTransition resolves a zero-row terminal update: idempotent when
// the job already reached the requested state, ErrNotFound when missing,
// ErrInvalidTransition otherwise.
func (s *Store) guardTerminalTransition(ctx context.Context, id int64, want Status) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrNotFound
	}
	if job.Status == want {
		return nil
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, job.Status, want)
}

// Cancel transitions a pending job owned by owner to cancelled. It reports
// false, without error, when the job has already left pending or belongs to
// someone else.
func (s *Store) Cancel(ctx context.Context, id int64, owner string) (bool, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE render_jobs
         SET status = ?, completed_at = ?, updated_at = ?
         WHERE id = ? AND owner_id = ? AND status = ?`,
		StatusCancelled,
		now,
		now,
		id,
		owner,
		StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// QueuePosition returns the 1-based position of a pending job: one plus the
// number of pending jobs created earlier. The value is advisory and may be
// stale by the time it is read. Returns ErrNotPending once the job has left
// pending.
func (s *Store) QueuePosition(ctx context.Context, id int64) (int, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if job == nil {
		return 0, ErrNotFound
	}
	if job.Status != StatusPending {
		return 0, ErrNotPending
	}

	created := formatTime(job.CreatedAt)
	var ahead int
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM render_jobs
         WHERE status = ? AND (created_at < ? OR (created_at = ? AND id < ?))`,
		StatusPending,
		created,
		created,
		id,
	)
	if err := row.Scan(&ahead); err != nil {
		return 0, fmt.Errorf("queue position: %w", err)
	}
	return ahead + 1, nil
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)
	ctx = ensureContext(ctx)

	baseQuery := `SELECT ` + jobColumns + ` FROM render_jobs`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM render_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		case StatusCancelled:
			health.Cancelled += count
		}
	}
	return health, nil
}
