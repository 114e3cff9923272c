package queue

import "errors"

var (
	// ErrNotFound indicates the referenced job does not exist.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition indicates a terminal transition was attempted on a
	// job that is not in processing.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotPending indicates an operation that is only defined while a job
	// waits in the pending state.
	ErrNotPending = errors.New("job is not pending")
)
