package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const jobColumns = "id, owner_id, project_id, status, quality_tier, progress_current, progress_total, progress_message, result_ref, error_message, job_data, created_at, started_at, completed_at, updated_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               int64
		ownerID          string
		projectID        string
		statusStr        string
		tierStr          string
		progressCurrent  sql.NullInt64
		progressTotal    sql.NullInt64
		progressMessage  sql.NullString
		resultRef        sql.NullString
		errorMessage     sql.NullString
		jobData          sql.NullString
		createdRaw       sql.NullString
		startedRaw       sql.NullString
		completedRaw     sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&ownerID,
		&projectID,
		&statusStr,
		&tierStr,
		&progressCurrent,
		&progressTotal,
		&progressMessage,
		&resultRef,
		&errorMessage,
		&jobData,
		&createdRaw,
		&startedRaw,
		&completedRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		OwnerID:         ownerID,
		ProjectID:       projectID,
		Status:          Status(statusStr),
		QualityTier:     QualityTier(tierStr),
		ProgressCurrent: int(progressCurrent.Int64),
		ProgressTotal:   int(progressTotal.Int64),
		ProgressMessage: progressMessage.String,
		ResultRef:       resultRef.String,
		ErrorMessage:    errorMessage.String,
	}
	if jobData.Valid {
		job.JobData = json.RawMessage(jobData.String)
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	job.StartedAt = parseNullableTime(startedRaw)
	job.CompletedAt = parseNullableTime(completedRaw)
	job.LastHeartbeat = parseNullableTime(lastHeartbeatRaw)
	return job, nil
}

func parseNullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// timeLayout is fixed-width so stored timestamps compare correctly as
// strings in SQL (ORDER BY, range predicates).
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
