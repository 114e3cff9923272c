package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Transition describes how a scene joins its successor.
type Transition string

const (
	TransitionCut       Transition = "cut"
	TransitionFade      Transition = "fade"
	TransitionDissolve  Transition = "dissolve"
	TransitionCrossfade Transition = "crossfade"
)

// ParseTransition converts a string into a known Transition. An empty value
// parses as a hard cut.
func ParseTransition(value string) (Transition, bool) {
	switch Transition(strings.ToLower(strings.TrimSpace(value))) {
	case "", TransitionCut:
		return TransitionCut, true
	case TransitionFade:
		return TransitionFade, true
	case TransitionDissolve:
		return TransitionDissolve, true
	case TransitionCrossfade:
		return TransitionCrossfade, true
	default:
		return "", false
	}
}

// Blended reports whether the transition overlaps adjacent scenes rather than
// cutting between them.
func (t Transition) Blended() bool {
	switch t {
	case TransitionFade, TransitionDissolve, TransitionCrossfade:
		return true
	default:
		return false
	}
}

// RenderedScene references a clip produced by an earlier rendering phase.
type RenderedScene struct {
	SceneIndex    int        `json:"scene_index"`
	RenderedPath  string     `json:"rendered_path"`
	TransitionOut Transition `json:"transition_out,omitempty"`
}

// PreRenderedPlan lists already-rendered scene clips awaiting assembly.
type PreRenderedPlan struct {
	ProjectID string          `json:"project_id,omitempty"`
	Scenes    []RenderedScene `json:"scenes"`
}

// SceneInstruction describes one scene the generation provider must render.
type SceneInstruction struct {
	SceneIndex      int        `json:"scene_index"`
	Prompt          string     `json:"prompt"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	Style           string     `json:"style,omitempty"`
	TransitionOut   Transition `json:"transition_out,omitempty"`
}

// GenerationPlan describes a full-generation job.
type GenerationPlan struct {
	Instructions    []SceneInstruction `json:"instructions"`
	Style           string             `json:"style,omitempty"`
	StockQueryHints []string           `json:"stock_query_hints,omitempty"`
	CostEstimate    float64            `json:"cost_estimate,omitempty"`
}

// PayloadKind identifies which arm of the JobData union a payload carries.
type PayloadKind string

const (
	PayloadPreRendered PayloadKind = "pre_rendered"
	PayloadGeneration  PayloadKind = "generation"
)

// JobData is the job payload: exactly one of the two plan shapes. The queue
// stores it opaquely; the worker parses it with ParseJobData before
// dispatching.
type JobData struct {
	PreRendered *PreRenderedPlan `json:"pre_rendered,omitempty"`
	Generation  *GenerationPlan  `json:"generation,omitempty"`
}

// ErrPayloadShape indicates a payload that is not exactly one of the two
// supported plan shapes.
var ErrPayloadShape = errors.New("job payload must contain exactly one of pre_rendered or generation")

// Kind returns the payload's plan shape. Valid only after Validate.
func (d *JobData) Kind() PayloadKind {
	if d.PreRendered != nil {
		return PayloadPreRendered
	}
	return PayloadGeneration
}

// Validate checks the union invariant and per-scene fields.
func (d *JobData) Validate() error {
	if d == nil {
		return ErrPayloadShape
	}
	if (d.PreRendered == nil) == (d.Generation == nil) {
		return ErrPayloadShape
	}
	if d.PreRendered != nil {
		for i, scene := range d.PreRendered.Scenes {
			if _, ok := ParseTransition(string(scene.TransitionOut)); !ok {
				return fmt.Errorf("pre_rendered scene %d: unknown transition %q", i, scene.TransitionOut)
			}
		}
		return nil
	}
	for i, instr := range d.Generation.Instructions {
		if _, ok := ParseTransition(string(instr.TransitionOut)); !ok {
			return fmt.Errorf("generation instruction %d: unknown transition %q", i, instr.TransitionOut)
		}
	}
	return nil
}

// Marshal serializes the payload for storage.
func (d *JobData) Marshal() (json.RawMessage, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}
	return raw, nil
}

// ParseJobData decodes and validates a stored payload.
func ParseJobData(raw json.RawMessage) (*JobData, error) {
	if len(raw) == 0 {
		return nil, ErrPayloadShape
	}
	var data JobData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse job payload: %w", err)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &data, nil
}
