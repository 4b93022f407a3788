package agentcore

import (
	"context"
	"maps"
	"time"
)

// StepFunc is one unit of agent work. It receives the immutable StepContext built for
// this invocation. Work that needs to communicate forward returns output; it must not
// rely on mutating the context.
type StepFunc func(ctx context.Context, step StepContext) (any, error)

// StepContext is the immutable view passed to a step's work function and to the
// step-start hook. It is constructed fresh for every step invocation.
//
// Inputs and Metadata return copies, so neither the work function nor a hook can
// change what the next reader observes.
type StepContext struct {
	name     string
	inputs   map[string]any
	metadata map[string]any
}

// NewStepContext builds a StepContext. The maps are copied.
func NewStepContext(name string, inputs, metadata map[string]any) StepContext {
	return StepContext{
		name:     name,
		inputs:   cloneMap(inputs),
		metadata: cloneMap(metadata),
	}
}

// Name returns the step name.
func (c StepContext) Name() string { return c.name }

// Input returns a single input value.
func (c StepContext) Input(key string) (any, bool) {
	v, ok := c.inputs[key]
	return v, ok
}

// Inputs returns a copy of the caller-supplied inputs.
func (c StepContext) Inputs() map[string]any { return cloneMap(c.inputs) }

// Meta returns a single metadata value.
func (c StepContext) Meta(key string) (any, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

// Metadata returns a copy of the step annotations.
func (c StepContext) Metadata() map[string]any { return cloneMap(c.metadata) }

// StepFailure describes why a step failed.
type StepFailure struct {
	Kind    ErrorKind
	Message string

	// Err is the original error. It is not persisted by hooks that serialize results.
	Err error `json:"-" yaml:"-"`
}

// StepResult is the immutable record of a completed step. Exactly one of Output and
// Failure is meaningful: Output when Success is true, Failure otherwise. Build results
// with NewSuccessResult and NewFailureResult to keep that invariant.
type StepResult struct {
	StepName    string
	Success     bool
	Duration    time.Duration
	Output      any
	Failure     *StepFailure
	CompletedAt time.Time
}

// NewSuccessResult records a step that returned normally.
func NewSuccessResult(name string, duration time.Duration, output any, completedAt time.Time) StepResult {
	return StepResult{
		StepName:    name,
		Success:     true,
		Duration:    nonNegative(duration),
		Output:      output,
		CompletedAt: completedAt,
	}
}

// NewFailureResult records a step that failed. The failure is classified with
// ClassifyError unless kind is non-empty.
func NewFailureResult(
	name string,
	duration time.Duration,
	kind ErrorKind,
	err error,
	completedAt time.Time,
) StepResult {
	if kind == "" {
		kind = ClassifyError(err)
	}
	if kind == "" {
		kind = KindStepFailure
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return StepResult{
		StepName:    name,
		Success:     false,
		Duration:    nonNegative(duration),
		Failure:     &StepFailure{Kind: kind, Message: msg, Err: err},
		CompletedAt: completedAt,
	}
}

// Err returns the original failure, or nil for a successful result.
func (r StepResult) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure.Err
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return maps.Clone(m)
}
