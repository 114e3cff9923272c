package render

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"reelforge/internal/fileutil"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
)

// ProgressReporter receives scene-level progress during processing. The
// queue store satisfies it.
type ProgressReporter interface {
	UpdateProgress(ctx context.Context, id int64, current, total int, message string) error
}

// Orchestrator turns a claimed job's payload into a finished artifact. It
// never mutates job lifecycle state itself; the caller completes or fails the
// job with the returned result reference or error.
type Orchestrator struct {
	provider Provider
	stitcher *Stitcher
	progress ProgressReporter
	logger   *slog.Logger
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(provider Provider, stitcher *Stitcher, progress ProgressReporter, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		provider: provider,
		stitcher: stitcher,
		progress: progress,
		logger:   logger,
	}
}

// Process dispatches a job to the pre-rendered-assembly or full-generation
// path and returns the result reference to complete the job with.
func (o *Orchestrator) Process(ctx context.Context, job *queue.Job) (string, error) {
	data, err := queue.ParseJobData(job.JobData)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "orchestrator", "payload",
			"job instructions could not be read", err)
	}

	switch data.Kind() {
	case queue.PayloadPreRendered:
		return o.assemblePreRendered(ctx, job, data.PreRendered)
	case queue.PayloadGeneration:
		return o.generateAndAssemble(ctx, job, data.Generation)
	default:
		return "", services.Wrap(services.ErrValidation, "orchestrator", "payload",
			"job instructions could not be read", queue.ErrPayloadShape)
	}
}

// assemblePreRendered validates every referenced clip up front and stitches
// them. A missing clip fails the job before any transcoder invocation.
func (o *Orchestrator) assemblePreRendered(ctx context.Context, job *queue.Job, plan *queue.PreRenderedPlan) (string, error) {
	if len(plan.Scenes) == 0 {
		return "", services.Wrap(services.ErrValidation, "orchestrator", "pre-rendered",
			"no instructions provided", nil)
	}

	scenes := append([]queue.RenderedScene(nil), plan.Scenes...)
	sort.SliceStable(scenes, func(i, j int) bool { return scenes[i].SceneIndex < scenes[j].SceneIndex })

	for _, scene := range scenes {
		if !fileutil.Exists(scene.RenderedPath) {
			return "", services.Wrap(services.ErrValidation, "orchestrator", "pre-rendered",
				fmt.Sprintf("rendered clip for scene %d is missing; re-render the scenes and enqueue again", scene.SceneIndex), nil)
		}
	}

	clips := make([]Clip, 0, len(scenes))
	for _, scene := range scenes {
		transition, _ := queue.ParseTransition(string(scene.TransitionOut))
		clips = append(clips, Clip{Path: scene.RenderedPath, TransitionOut: transition})
	}

	return o.stitch(ctx, job, clips, 0, len(clips))
}

// generateAndAssemble renders every scene through the provider, then
// stitches the results. A deferred provider render short-circuits into a
// pending result token the caller must re-poll.
func (o *Orchestrator) generateAndAssemble(ctx context.Context, job *queue.Job, plan *queue.GenerationPlan) (string, error) {
	if len(plan.Instructions) == 0 {
		return "", services.Wrap(services.ErrValidation, "orchestrator", "generation",
			"no instructions provided", nil)
	}

	instructions := append([]queue.SceneInstruction(nil), plan.Instructions...)
	sort.SliceStable(instructions, func(i, j int) bool { return instructions[i].SceneIndex < instructions[j].SceneIndex })

	total := len(instructions)
	clips := make([]Clip, 0, total)
	for i, instr := range instructions {
		style := instr.Style
		if style == "" {
			style = plan.Style
		}
		result, err := o.provider.GenerateScene(ctx, SceneRequest{
			ProjectID:       job.ProjectID,
			SceneIndex:      instr.SceneIndex,
			Prompt:          instr.Prompt,
			DurationSeconds: instr.DurationSeconds,
			Style:           style,
			QualityTier:     string(job.QualityTier),
			StockQueryHints: plan.StockQueryHints,
		})
		if err != nil {
			return "", err
		}
		if result.PendingID != "" {
			o.logger.Info("provider deferred scene render",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.Int("scene_index", instr.SceneIndex),
				logging.String("pending_id", result.PendingID))
			return queue.PendingResultPrefix + result.PendingID, nil
		}

		transition, _ := queue.ParseTransition(string(instr.TransitionOut))
		clips = append(clips, Clip{Path: result.ClipPath, TransitionOut: transition})
		o.reportProgress(ctx, job.ID, i+1, total*2, fmt.Sprintf("Generated scene %d of %d", i+1, total))
	}

	// Assembly continues the same counter so polling clients see progress
	// move forward through both phases.
	return o.stitch(ctx, job, clips, total, total*2)
}

func (o *Orchestrator) stitch(ctx context.Context, job *queue.Job, clips []Clip, offset, total int) (string, error) {
	scenes := len(clips)
	outputPath, err := o.stitcher.Stitch(ctx, job.ID, clips, func(done int) {
		o.reportProgress(ctx, job.ID, offset+done, total, fmt.Sprintf("Assembled scene %d of %d", done, scenes))
	})
	if err != nil {
		return "", err
	}
	return outputPath, nil
}

func (o *Orchestrator) reportProgress(ctx context.Context, jobID int64, current, total int, message string) {
	if o.progress == nil {
		return
	}
	if err := o.progress.UpdateProgress(ctx, jobID, current, total, message); err != nil {
		o.logger.Warn("progress update failed",
			logging.Int64(logging.FieldJobID, jobID), logging.Error(err))
	}
}
