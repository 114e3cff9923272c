package ffprobe

import (
	"context"
	"os/exec"
	"testing"
)

func TestInspectParsesOutput(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		payload := `{"streams":[{"index":0,"codec_type":"video","width":1920,"height":1080},{"index":1,"codec_type":"audio","channels":2}],"format":{"filename":"clip.mp4","nb_streams":2,"duration":"12.480000"}}`
		return exec.CommandContext(ctx, "sh", "-c", "printf '%s' '"+payload+"'")
	}
	t.Cleanup(func() { commandContext = original })

	result, err := Inspect(context.Background(), "", "clip.mp4")
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if got := result.DurationSeconds(); got != 12.48 {
		t.Fatalf("expected duration 12.48, got %v", got)
	}
	if !result.HasVideo() || !result.HasAudio() {
		t.Fatalf("expected both stream kinds detected: %#v", result.Streams)
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestInspectSurfacesCommandFailure(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "echo 'no such file' >&2; exit 1")
	}
	t.Cleanup(func() { commandContext = original })

	if _, err := Inspect(context.Background(), "", "missing.mp4"); err == nil {
		t.Fatal("expected error from failing probe")
	}
}

func TestDurationSecondsHandlesMissingValue(t *testing.T) {
	var result Result
	if got := result.DurationSeconds(); got != 0 {
		t.Fatalf("expected 0 for missing duration, got %v", got)
	}
	result.Format.Duration = "garbage"
	if got := result.DurationSeconds(); got != 0 {
		t.Fatalf("expected 0 for unparseable duration, got %v", got)
	}
}
