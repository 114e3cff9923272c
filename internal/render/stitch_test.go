package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reelforge/internal/media/ffprobe"
	"reelforge/internal/queue"
	"reelforge/internal/render/ffmpeg"
	"reelforge/internal/services"
	"reelforge/internal/testsupport"
)

type fakeFFmpeg struct {
	reencodes int
	concats   int
	blends    int
	blendErr  error
	concatErr error
}

func (f *fakeFFmpeg) writeOutput(path string) error {
	return os.WriteFile(path, []byte("clip"), 0o644)
}

func (f *fakeFFmpeg) Reencode(_ context.Context, _, outputPath string) error {
	f.reencodes++
	return f.writeOutput(outputPath)
}

func (f *fakeFFmpeg) Concat(_ context.Context, _, _, outputPath string, _ bool) error {
	f.concats++
	if f.concatErr != nil {
		return f.concatErr
	}
	return f.writeOutput(outputPath)
}

func (f *fakeFFmpeg) Blend(_ context.Context, _, _, outputPath string, _ ffmpeg.BlendSpec) error {
	f.blends++
	if f.blendErr != nil {
		return f.blendErr
	}
	return f.writeOutput(outputPath)
}

var _ ffmpeg.Client = (*fakeFFmpeg)(nil)

func stubProbe(durationSeconds string) func(context.Context, string, string) (ffprobe.Result, error) {
	return func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{
				{CodecType: "video"},
				{CodecType: "audio"},
			},
			Format: ffprobe.Format{Duration: durationSeconds},
		}, nil
	}
}

func newTestStitcher(t *testing.T, client ffmpeg.Client) *Stitcher {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	stitcher := NewStitcher(cfg, client, nil)
	stitcher.probeDuration = stubProbe("4.0")
	return stitcher
}

func sceneClips(t *testing.T, stitcher *Stitcher, transitions ...queue.Transition) []Clip {
	t.Helper()
	clips := make([]Clip, 0, len(transitions))
	for i, transition := range transitions {
		path := filepath.Join(stitcher.stagingDir, "src", "scene-"+string(rune('a'+i))+".mp4")
		testsupport.WriteClip(t, path, 64)
		clips = append(clips, Clip{Path: path, TransitionOut: transition})
	}
	return clips
}

func assertStagingClean(t *testing.T, stitcher *Stitcher) {
	t.Helper()
	entries, err := os.ReadDir(stitcher.stagingDir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		t.Fatalf("stitch intermediate left behind: %s", entry.Name())
	}
}

func TestStitchSingleClipShortCircuits(t *testing.T) {
	client := &fakeFFmpeg{}
	stitcher := newTestStitcher(t, client)
	clips := sceneClips(t, stitcher, queue.TransitionCut)

	output, err := stitcher.Stitch(context.Background(), 1, clips, nil)
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if client.reencodes != 1 || client.concats != 0 || client.blends != 0 {
		t.Fatalf("expected single re-encode only, got %+v", client)
	}
	assertStagingClean(t, stitcher)
}

func TestStitchMixedTransitions(t *testing.T) {
	client := &fakeFFmpeg{}
	stitcher := newTestStitcher(t, client)
	clips := sceneClips(t, stitcher, queue.TransitionFade, queue.TransitionCut, queue.TransitionDissolve, queue.TransitionCut)

	var progress []int
	output, err := stitcher.Stitch(context.Background(), 2, clips, func(done int) {
		progress = append(progress, done)
	})
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if client.blends != 2 || client.concats != 1 {
		t.Fatalf("expected 2 blends and 1 concat, got %+v", client)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] <= progress[i-1] {
			t.Fatalf("progress not increasing: %v", progress)
		}
	}
	if len(progress) == 0 || progress[len(progress)-1] != len(clips) {
		t.Fatalf("expected final progress %d, got %v", len(clips), progress)
	}
	assertStagingClean(t, stitcher)
}

func TestStitchBlendFailureFallsBackToConcat(t *testing.T) {
	client := &fakeFFmpeg{blendErr: errors.New("xfade exploded")}
	stitcher := newTestStitcher(t, client)
	clips := sceneClips(t, stitcher, queue.TransitionCrossfade, queue.TransitionCut)

	output, err := stitcher.Stitch(context.Background(), 3, clips, nil)
	if err != nil {
		t.Fatalf("expected fallback to succeed, got: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if client.blends != 1 || client.concats != 1 {
		t.Fatalf("expected one failed blend and one fallback concat, got %+v", client)
	}
	assertStagingClean(t, stitcher)
}

func TestStitchConcatFailurePropagatesAndCleansUp(t *testing.T) {
	client := &fakeFFmpeg{concatErr: errors.New("muxer refused")}
	stitcher := newTestStitcher(t, client)
	clips := sceneClips(t, stitcher, queue.TransitionCut, queue.TransitionCut)

	_, err := stitcher.Stitch(context.Background(), 4, clips, nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	assertStagingClean(t, stitcher)
}

func TestStitchRejectsEmptyInput(t *testing.T) {
	stitcher := newTestStitcher(t, &fakeFFmpeg{})
	if _, err := stitcher.Stitch(context.Background(), 5, nil, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOverlapWindow(t *testing.T) {
	if got := overlapWindow(4, 8); got != 1 {
		t.Fatalf("expected quarter of shorter clip, got %v", got)
	}
	if got := overlapWindow(40, 40); got != maxOverlapSeconds {
		t.Fatalf("expected cap %v, got %v", maxOverlapSeconds, got)
	}
	if got := overlapWindow(0, 5); got != 0 {
		t.Fatalf("expected zero overlap for zero-length clip, got %v", got)
	}
}
