package queue

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a render job.
//
// Transitions are monotonic: pending → processing → completed|failed, or
// pending → cancelled. No transition revisits pending and processing is never
// re-entered once left.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the status ends a job's lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// QualityTier is the coarse cost/quality knob attached to a job. The queue
// stores it verbatim; only the render pipeline interprets it.
type QualityTier string

const (
	TierDraft    QualityTier = "draft"
	TierStandard QualityTier = "standard"
	TierPremium  QualityTier = "premium"
)

// ParseQualityTier converts a string into a known QualityTier.
func ParseQualityTier(value string) (QualityTier, bool) {
	switch QualityTier(strings.ToLower(strings.TrimSpace(value))) {
	case TierDraft:
		return TierDraft, true
	case TierStandard:
		return TierStandard, true
	case TierPremium:
		return TierPremium, true
	default:
		return "", false
	}
}

// PendingResultPrefix marks a result reference that points at an asynchronous
// provider render rather than a finished artifact. Callers must treat such a
// reference as non-terminal and re-poll the provider.
const PendingResultPrefix = "pending:"

// Job represents a render job persisted in SQLite.
type Job struct {
	ID              int64
	OwnerID         string
	ProjectID       string
	Status          Status
	QualityTier     QualityTier
	ProgressCurrent int
	ProgressTotal   int
	ProgressMessage string
	ResultRef       string
	ErrorMessage    string
	JobData         json.RawMessage
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// ResultPending reports whether the job completed with a provider-pending
// token instead of a finished artifact.
func (j *Job) ResultPending() bool {
	return strings.HasPrefix(j.ResultRef, PendingResultPrefix)
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}
