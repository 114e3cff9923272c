// Package logging builds the slog loggers used across reelforge.
//
// It provides a console handler for interactive use, a JSON handler for
// structured collection, file tee-ing into the configured log directory, and
// small attribute helpers with standardized field names so job and worker
// identifiers stay greppable across components.
package logging
