package agentcore

import (
	"context"
)

// -----------------------------------------------------------------------------
// Hook Interfaces
// -----------------------------------------------------------------------------
//
// Hooks let external code observe, log, gate, persist, or abort execution without the
// step logic knowing about any of it. Each extension point is a one-method interface.
// An agent holds at most one implementation per extension point (see [Hooks]); to
// attach several, compose them with hooks.Registry.
//
// Example:
//
//	type AuditHook struct {
//	    logger *slog.Logger
//	}
//
//	func (h *AuditHook) OnStepStart(ctx context.Context, state *AgentState, step StepContext) error {
//	    h.logger.Info("step started", "agent_id", state.AgentID(), "step", step.Name())
//	    return nil
//	}
//
//	func (h *AuditHook) OnStepEnd(ctx context.Context, state *AgentState, result StepResult) error {
//	    h.logger.Info("step ended", "step", result.StepName, "success", result.Success)
//	    return nil
//	}
//
//	a, _ := agent.New(agent.Config{AgentID: "a1", Hooks: HooksFrom(&AuditHook{logger: slog.Default()})})
//
// # Invocation Order
//
// For one step the order is always start → work → error (if failed) → end. The end
// hook runs exactly once for every step whose start hook ran, even when the work fails,
// panics, or the start hook itself fails, so start/end pairs are balanced. A panic in
// work is re-raised after the end hook returns. Across steps, hooks run
// in step-invocation order and never concurrently with each other. The interrupt hook
// is the exception: it runs on the goroutine that calls SendInterrupt.
//
// # Error Handling
//
// Returning an error from the step-start, step-end or error hook is fatal: it surfaces
// as a *HookError and is never swallowed. A checkpoint hook rejects by returning an
// error that matches ErrCheckpointRejected or ErrCheckpointTimeout (see
// [NewCheckpointRejected], [NewCheckpointTimeout]); any other error is a hook failure.
// Execute-start and execute-end hooks are observational and cannot fail.
//
// Hook panics are not recovered.

// Hook names used in HookError.Hook and in log records.
const (
	HookNameStepStart    = "step_start"
	HookNameStepEnd      = "step_end"
	HookNameCheckpoint   = "checkpoint"
	HookNameInterrupt    = "interrupt"
	HookNameError        = "error"
	HookNameExecuteStart = "execute_start"
	HookNameExecuteEnd   = "execute_end"
)

// StepStartHook is invoked before a step's work runs.
type StepStartHook interface {
	// OnStepStart is called after the abort/pause boundary check and before the work.
	// A returned error short-circuits the work.
	OnStepStart(ctx context.Context, state *AgentState, step StepContext) error
}

// StepEndHook is invoked after a step completes, successfully or not.
type StepEndHook interface {
	// OnStepEnd is called once per step, after the result is recorded in history.
	OnStepEnd(ctx context.Context, state *AgentState, result StepResult) error
}

// CheckpointHook is invoked when the agent offers a checkpoint. The gate blocks until
// the hook returns.
type CheckpointHook interface {
	// OnCheckpoint approves by returning nil. Return an error matching
	// ErrCheckpointRejected or ErrCheckpointTimeout to stop the run.
	OnCheckpoint(ctx context.Context, state *AgentState, name string, data map[string]any) error
}

// InterruptHook resolves an externally delivered interrupt signal into a decision.
type InterruptHook interface {
	// OnInterrupt must return one of InterruptContinue, InterruptPause, InterruptAbort.
	OnInterrupt(
		ctx context.Context,
		state *AgentState,
		reason string,
		data map[string]any,
	) (InterruptDecision, error)
}

// ErrorHook is invoked when a step fails, before the step-end hook.
type ErrorHook interface {
	// OnError receives the step failure and the step name as label.
	OnError(ctx context.Context, state *AgentState, err error, label string) error
}

// ExecuteStartHook is notified once when Execute begins, after the session is open.
type ExecuteStartHook interface {
	OnExecuteStart(ctx context.Context, state *AgentState, event ExecuteStartEvent)
}

// ExecuteEndHook is notified once when Execute returns. It is always called if the
// execute-start hook was called, whatever the outcome.
type ExecuteEndHook interface {
	OnExecuteEnd(ctx context.Context, state *AgentState, event ExecuteEndEvent)
}

// -----------------------------------------------------------------------------
// Hooks
// -----------------------------------------------------------------------------

// Hooks is the set of extension points injected into an agent at construction. Every
// field is optional; a nil field means the default behavior for that point:
//   - StepStart, StepEnd, Error, ExecuteStart, ExecuteEnd: nothing is called
//   - Checkpoint: checkpoints are advisory and approve immediately
//   - Interrupt: every interrupt resolves to InterruptContinue
type Hooks struct {
	StepStart    StepStartHook
	StepEnd      StepEndHook
	Checkpoint   CheckpointHook
	Interrupt    InterruptHook
	Error        ErrorHook
	ExecuteStart ExecuteStartHook
	ExecuteEnd   ExecuteEndHook
}

// HooksFrom fills a Hooks value from any object, assigning it to every extension point
// whose interface it implements.
func HooksFrom(h any) Hooks {
	var out Hooks
	if v, ok := h.(StepStartHook); ok {
		out.StepStart = v
	}
	if v, ok := h.(StepEndHook); ok {
		out.StepEnd = v
	}
	if v, ok := h.(CheckpointHook); ok {
		out.Checkpoint = v
	}
	if v, ok := h.(InterruptHook); ok {
		out.Interrupt = v
	}
	if v, ok := h.(ErrorHook); ok {
		out.Error = v
	}
	if v, ok := h.(ExecuteStartHook); ok {
		out.ExecuteStart = v
	}
	if v, ok := h.(ExecuteEndHook); ok {
		out.ExecuteEnd = v
	}
	return out
}

// Merge returns a copy of h with every nil field taken from other.
func (h Hooks) Merge(other Hooks) Hooks {
	if h.StepStart == nil {
		h.StepStart = other.StepStart
	}
	if h.StepEnd == nil {
		h.StepEnd = other.StepEnd
	}
	if h.Checkpoint == nil {
		h.Checkpoint = other.Checkpoint
	}
	if h.Interrupt == nil {
		h.Interrupt = other.Interrupt
	}
	if h.Error == nil {
		h.Error = other.Error
	}
	if h.ExecuteStart == nil {
		h.ExecuteStart = other.ExecuteStart
	}
	if h.ExecuteEnd == nil {
		h.ExecuteEnd = other.ExecuteEnd
	}
	return h
}

// -----------------------------------------------------------------------------
// Function adapters
// -----------------------------------------------------------------------------

// StepStartFunc adapts a function to StepStartHook.
type StepStartFunc func(ctx context.Context, state *AgentState, step StepContext) error

func (f StepStartFunc) OnStepStart(ctx context.Context, state *AgentState, step StepContext) error {
	return f(ctx, state, step)
}

// StepEndFunc adapts a function to StepEndHook.
type StepEndFunc func(ctx context.Context, state *AgentState, result StepResult) error

func (f StepEndFunc) OnStepEnd(ctx context.Context, state *AgentState, result StepResult) error {
	return f(ctx, state, result)
}

// CheckpointFunc adapts a function to CheckpointHook.
type CheckpointFunc func(ctx context.Context, state *AgentState, name string, data map[string]any) error

func (f CheckpointFunc) OnCheckpoint(
	ctx context.Context,
	state *AgentState,
	name string,
	data map[string]any,
) error {
	return f(ctx, state, name, data)
}

// InterruptFunc adapts a function to InterruptHook.
type InterruptFunc func(
	ctx context.Context,
	state *AgentState,
	reason string,
	data map[string]any,
) (InterruptDecision, error)

func (f InterruptFunc) OnInterrupt(
	ctx context.Context,
	state *AgentState,
	reason string,
	data map[string]any,
) (InterruptDecision, error) {
	return f(ctx, state, reason, data)
}

// ErrorFunc adapts a function to ErrorHook.
type ErrorFunc func(ctx context.Context, state *AgentState, err error, label string) error

func (f ErrorFunc) OnError(ctx context.Context, state *AgentState, err error, label string) error {
	return f(ctx, state, err, label)
}

// ExecuteStartFunc adapts a function to ExecuteStartHook.
type ExecuteStartFunc func(ctx context.Context, state *AgentState, event ExecuteStartEvent)

func (f ExecuteStartFunc) OnExecuteStart(ctx context.Context, state *AgentState, event ExecuteStartEvent) {
	f(ctx, state, event)
}

// ExecuteEndFunc adapts a function to ExecuteEndHook.
type ExecuteEndFunc func(ctx context.Context, state *AgentState, event ExecuteEndEvent)

func (f ExecuteEndFunc) OnExecuteEnd(ctx context.Context, state *AgentState, event ExecuteEndEvent) {
	f(ctx, state, event)
}
