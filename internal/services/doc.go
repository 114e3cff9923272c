// Package services defines the error taxonomy shared by the worker and the
// render pipeline.
//
// Errors raised while processing a job are wrapped with one of the exported
// sentinel markers so the worker can decide what reaches the job record: the
// wrapped message for validation and external-tool failures, a generic
// non-leaking message for everything else.
package services
