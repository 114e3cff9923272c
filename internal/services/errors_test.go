package services_test

import (
	"errors"
	"testing"

	"reelforge/internal/services"
)

func TestWrapTagsWithMarker(t *testing.T) {
	cause := errors.New("exit status 1")
	err := services.Wrap(services.ErrExternalTool, "stitch", "concat", "joining scene clips failed", cause)

	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatal("expected marker to survive wrapping")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to survive wrapping")
	}
	if errors.Is(err, services.ErrValidation) {
		t.Fatal("unexpected marker match")
	}
}

func TestUserMessageSurfacesClassifiedMessages(t *testing.T) {
	cases := []struct {
		name   string
		marker error
	}{
		{"validation", services.ErrValidation},
		{"provider", services.ErrProvider},
		{"external tool", services.ErrExternalTool},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "stage", "op", "something actionable", nil)
		if got := services.UserMessage(err); got != "something actionable" {
			t.Fatalf("%s: expected classified message, got %q", tc.name, got)
		}
	}
}

func TestUserMessageCollapsesUnclassifiedErrors(t *testing.T) {
	if got := services.UserMessage(nil); got != services.GenericFailureMessage {
		t.Fatalf("nil error: got %q", got)
	}
	if got := services.UserMessage(errors.New("stack trace: goroutine 7")); got != services.GenericFailureMessage {
		t.Fatalf("plain error: got %q", got)
	}
	transient := services.Wrap(services.ErrTransient, "queue", "claim", "database busy", nil)
	if got := services.UserMessage(transient); got != services.GenericFailureMessage {
		t.Fatalf("transient error leaked its message: %q", got)
	}
	empty := services.Wrap(services.ErrValidation, "stage", "op", "", nil)
	if got := services.UserMessage(empty); got != services.GenericFailureMessage {
		t.Fatalf("empty classified message: got %q", got)
	}
}
