package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"reelforge/internal/config"
	"reelforge/internal/fileutil"
	"reelforge/internal/logging"
	"reelforge/internal/media/ffprobe"
	"reelforge/internal/queue"
	"reelforge/internal/render/ffmpeg"
	"reelforge/internal/services"
)

const (
	// overlapFraction sizes a blended transition's overlap window relative
	// to the shorter of the two clips being joined.
	overlapFraction = 0.25
	// maxOverlapSeconds caps the overlap window for long clips.
	maxOverlapSeconds = 1.5
)

// Clip is one stitching input: a rendered file plus the transition joining
// it to the next clip. TransitionOut on the final clip is ignored.
type Clip struct {
	Path          string
	TransitionOut queue.Transition
}

// Stitcher folds an ordered list of scene clips into one output file.
type Stitcher struct {
	client        ffmpeg.Client
	probeBinary   string
	stagingDir    string
	outputDir     string
	logger        *slog.Logger
	probeDuration func(ctx context.Context, binary, path string) (ffprobe.Result, error)
}

// NewStitcher constructs a stitcher over the configured directories and
// ffmpeg client.
func NewStitcher(cfg *config.Config, client ffmpeg.Client, logger *slog.Logger) *Stitcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stitcher{
		client:        client,
		probeBinary:   cfg.Render.FFprobeBinary,
		stagingDir:    cfg.Paths.StagingDir,
		outputDir:     cfg.Paths.OutputDir,
		logger:        logger,
		probeDuration: ffprobe.Inspect,
	}
}

// Stitch assembles clips into a single file under the output directory and
// returns its path. Intermediate files are written to staging and removed on
// every exit path. The progress callback, when non-nil, receives the count of
// scenes consumed after each fold step.
func (s *Stitcher) Stitch(ctx context.Context, jobID int64, clips []Clip, progress func(scenesDone int)) (string, error) {
	if len(clips) == 0 {
		return "", services.Wrap(services.ErrValidation, "stitch", "input", "no scene clips to assemble", nil)
	}

	temps := make([]string, 0, len(clips))
	defer func() {
		for _, path := range temps {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to remove stitch intermediate",
					logging.String("path", path), logging.Error(err))
			}
		}
	}()

	current, err := s.fold(ctx, jobID, clips, &temps, progress)
	if err != nil {
		return "", err
	}

	outputPath := filepath.Join(s.outputDir, fmt.Sprintf("render-%d-%s.mp4", jobID, shortID()))
	if err := fileutil.CopyFileVerified(current, outputPath); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "stitch", "finalize",
			"assembled video could not be written to the output location", err)
	}
	return outputPath, nil
}

// fold runs the left-to-right assembly and returns the path holding the
// fully assembled result, which is always one of the temp files.
func (s *Stitcher) fold(ctx context.Context, jobID int64, clips []Clip, temps *[]string, progress func(int)) (string, error) {
	if len(clips) == 1 {
		out := s.tempPath(jobID)
		*temps = append(*temps, out)
		if err := s.client.Reencode(ctx, clips[0].Path, out); err != nil {
			return "", services.Wrap(services.ErrExternalTool, "stitch", "reencode",
				"re-encoding the scene clip failed", err)
		}
		report(progress, 1)
		return out, nil
	}

	current := clips[0].Path
	report(progress, 1)

	for i := 1; i < len(clips); i++ {
		next := clips[i].Path
		out := s.tempPath(jobID)
		*temps = append(*temps, out)

		if err := s.join(ctx, current, next, out, clips[i-1].TransitionOut); err != nil {
			return "", err
		}

		// The previous intermediate is consumed; drop it early to bound
		// staging usage on long jobs.
		if i > 1 {
			_ = os.Remove(current)
		}
		current = out
		report(progress, i+1)
	}
	return current, nil
}

// join writes the combination of first and second to out, honoring the
// transition tag. A failed blend degrades to a hard concat; only a failed
// concat propagates.
func (s *Stitcher) join(ctx context.Context, first, second, out string, transition queue.Transition) error {
	firstProbe, err := s.probeDuration(ctx, s.probeBinary, first)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "stitch", "probe",
			"inspecting a scene clip failed", err)
	}
	secondProbe, err := s.probeDuration(ctx, s.probeBinary, second)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "stitch", "probe",
			"inspecting a scene clip failed", err)
	}
	withAudio := firstProbe.HasAudio() && secondProbe.HasAudio()

	if transition.Blended() {
		overlap := overlapWindow(firstProbe.DurationSeconds(), secondProbe.DurationSeconds())
		if overlap > 0 {
			spec := ffmpeg.BlendSpec{
				Transition:     string(transition),
				OffsetSeconds:  firstProbe.DurationSeconds() - overlap,
				OverlapSeconds: overlap,
				FirstHasAudio:  firstProbe.HasAudio(),
				SecondHasAudio: secondProbe.HasAudio(),
			}
			blendErr := s.client.Blend(ctx, first, second, out, spec)
			if blendErr == nil {
				return nil
			}
			s.logger.Warn("blended transition failed, falling back to hard cut",
				logging.String("transition", string(transition)), logging.Error(blendErr))
		}
	}

	if err := s.client.Concat(ctx, first, second, out, withAudio); err != nil {
		return services.Wrap(services.ErrExternalTool, "stitch", "concat",
			"joining scene clips failed", err)
	}
	return nil
}

func (s *Stitcher) tempPath(jobID int64) string {
	return filepath.Join(s.stagingDir, fmt.Sprintf("stitch-%d-%s.mp4", jobID, shortID()))
}

// overlapWindow returns the blend duration for two clips, zero when either
// clip is too short to overlap.
func overlapWindow(firstSeconds, secondSeconds float64) float64 {
	shorter := firstSeconds
	if secondSeconds < shorter {
		shorter = secondSeconds
	}
	overlap := shorter * overlapFraction
	if overlap > maxOverlapSeconds {
		overlap = maxOverlapSeconds
	}
	if overlap <= 0 {
		return 0
	}
	return overlap
}

func report(progress func(int), done int) {
	if progress != nil {
		progress(done)
	}
}

func shortID() string {
	return uuid.NewString()[:8]
}
