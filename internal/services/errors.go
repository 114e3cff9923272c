package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool = errors.New("external tool error")
	ErrValidation   = errors.New("validation error")
	ErrProvider     = errors.New("provider error")
	ErrNotFound     = errors.New("not found")
	ErrTransient    = errors.New("transient failure")
)

// GenericFailureMessage is persisted to the job record when a failure carries
// no classified, user-safe message. Internal error detail never reaches it.
const GenericFailureMessage = "Something went wrong. Please try again."

type serviceError struct {
	marker  error
	detail  string
	message string
	cause   error
}

func (e *serviceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.marker, e.detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.marker, e.detail)
}

func (e *serviceError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.marker, e.cause}
	}
	return []error{e.marker}
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinel errors above. The message is what a job owner may see;
// err carries the internal detail for logs only.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &serviceError{
		marker:  marker,
		detail:  buildDetail(stage, operation, message),
		message: strings.TrimSpace(message),
		cause:   err,
	}
}

// UserMessage resolves the text persisted to a failed job's error_message.
// Validation, provider, and external-tool failures surface their wrapped
// message; unclassified errors collapse to GenericFailureMessage.
func UserMessage(err error) string {
	if err == nil {
		return GenericFailureMessage
	}
	var svcErr *serviceError
	if !errors.As(err, &svcErr) {
		return GenericFailureMessage
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrProvider), errors.Is(err, ErrExternalTool):
		if svcErr.message != "" {
			return svcErr.message
		}
	}
	return GenericFailureMessage
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
