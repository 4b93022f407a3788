package hooks

import (
	"context"
	"errors"

	"github.com/rickchristie/agentcore"
)

// Registry manages an ordered collection of hooks and fans each call out to them.
//
// # Thread Safety
//
// Registry is NOT thread-safe. Register all hooks before starting execution. The
// dispatch methods are safe to call concurrently once registration is done.
type Registry struct {
	hooks []any
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		hooks: make([]any, 0),
	}
}

// Register adds a hook to the registry. The hook can implement any combination of the
// agentcore hook interfaces. Hooks are called in the order they are registered.
func (r *Registry) Register(hook any) *Registry {
	r.hooks = append(r.hooks, hook)
	return r
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	return len(r.hooks)
}

// Hooks returns the composite to install in an agent config. Only extension points
// that at least one registered hook implements are set, so an empty registry yields
// the zero Hooks and the agent's no-hook behavior applies (checkpoints pass,
// interrupts continue).
func (r *Registry) Hooks() agentcore.Hooks {
	var out agentcore.Hooks
	for _, h := range r.hooks {
		if _, ok := h.(agentcore.StepStartHook); ok {
			out.StepStart = r
		}
		if _, ok := h.(agentcore.StepEndHook); ok {
			out.StepEnd = r
		}
		if _, ok := h.(agentcore.CheckpointHook); ok {
			out.Checkpoint = r
		}
		if _, ok := h.(agentcore.InterruptHook); ok {
			out.Interrupt = r
		}
		if _, ok := h.(agentcore.ErrorHook); ok {
			out.Error = r
		}
		if _, ok := h.(agentcore.ExecuteStartHook); ok {
			out.ExecuteStart = r
		}
		if _, ok := h.(agentcore.ExecuteEndHook); ok {
			out.ExecuteEnd = r
		}
	}
	return out
}

// startError marks a step-start failure with the position of the hook that failed, so
// the matching step-end dispatch can leave out the start hooks that never ran.
type startError struct {
	reg   *Registry
	step  string
	index int
	err   error
}

func (e *startError) Error() string { return e.err.Error() }
func (e *startError) Unwrap() error { return e.err }

// OnStepStart calls every StepStartHook in order and stops at the first error.
func (r *Registry) OnStepStart(
	ctx context.Context,
	state *agentcore.AgentState,
	step agentcore.StepContext,
) error {
	for i, h := range r.hooks {
		if hook, ok := h.(agentcore.StepStartHook); ok {
			if err := hook.OnStepStart(ctx, state, step); err != nil {
				return &startError{reg: r, step: step.Name(), index: i, err: err}
			}
		}
	}
	return nil
}

// OnStepEnd calls every StepEndHook. Errors are joined; a failing hook does not keep
// the ones after it from running.
//
// When the step failed because one of this registry's start hooks failed, start hooks
// registered after the failing one are not given an end either, so each hook still sees
// balanced start/end pairs.
func (r *Registry) OnStepEnd(
	ctx context.Context,
	state *agentcore.AgentState,
	result agentcore.StepResult,
) error {
	stopped := len(r.hooks)
	var se *startError
	if errors.As(result.Err(), &se) && se.reg == r && se.step == result.StepName {
		stopped = se.index
	}

	var errs []error
	for i, h := range r.hooks {
		if _, started := h.(agentcore.StepStartHook); started && i > stopped {
			continue
		}
		if hook, ok := h.(agentcore.StepEndHook); ok {
			if err := hook.OnStepEnd(ctx, state, result); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// OnError calls every ErrorHook. Errors are joined.
func (r *Registry) OnError(
	ctx context.Context,
	state *agentcore.AgentState,
	err error,
	label string,
) error {
	var errs []error
	for _, h := range r.hooks {
		if hook, ok := h.(agentcore.ErrorHook); ok {
			if hookErr := hook.OnError(ctx, state, err, label); hookErr != nil {
				errs = append(errs, hookErr)
			}
		}
	}
	return errors.Join(errs...)
}

// OnCheckpoint calls every CheckpointHook in order. The checkpoint is approved only if
// all of them approve; the first rejection is returned unchanged.
func (r *Registry) OnCheckpoint(
	ctx context.Context,
	state *agentcore.AgentState,
	name string,
	data map[string]any,
) error {
	for _, h := range r.hooks {
		if hook, ok := h.(agentcore.CheckpointHook); ok {
			if err := hook.OnCheckpoint(ctx, state, name, data); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnInterrupt consults every InterruptHook and returns the strongest decision. The
// first hook error is returned immediately.
func (r *Registry) OnInterrupt(
	ctx context.Context,
	state *agentcore.AgentState,
	reason string,
	data map[string]any,
) (agentcore.InterruptDecision, error) {
	decision := agentcore.InterruptContinue
	for _, h := range r.hooks {
		if hook, ok := h.(agentcore.InterruptHook); ok {
			d, err := hook.OnInterrupt(ctx, state, reason, data)
			if err != nil {
				return "", err
			}
			if !d.Valid() {
				return d, nil
			}
			if strength(d) > strength(decision) {
				decision = d
			}
		}
	}
	return decision, nil
}

// OnExecuteStart calls every ExecuteStartHook.
func (r *Registry) OnExecuteStart(
	ctx context.Context,
	state *agentcore.AgentState,
	event agentcore.ExecuteStartEvent,
) {
	for _, h := range r.hooks {
		if hook, ok := h.(agentcore.ExecuteStartHook); ok {
			hook.OnExecuteStart(ctx, state, event)
		}
	}
}

// OnExecuteEnd calls every ExecuteEndHook.
func (r *Registry) OnExecuteEnd(
	ctx context.Context,
	state *agentcore.AgentState,
	event agentcore.ExecuteEndEvent,
) {
	for _, h := range r.hooks {
		if hook, ok := h.(agentcore.ExecuteEndHook); ok {
			hook.OnExecuteEnd(ctx, state, event)
		}
	}
}

func strength(d agentcore.InterruptDecision) int {
	switch d {
	case agentcore.InterruptAbort:
		return 2
	case agentcore.InterruptPause:
		return 1
	default:
		return 0
	}
}

// Compile-time checks that Registry implements every hook interface.
var (
	_ agentcore.StepStartHook    = (*Registry)(nil)
	_ agentcore.StepEndHook      = (*Registry)(nil)
	_ agentcore.ErrorHook        = (*Registry)(nil)
	_ agentcore.CheckpointHook   = (*Registry)(nil)
	_ agentcore.InterruptHook    = (*Registry)(nil)
	_ agentcore.ExecuteStartHook = (*Registry)(nil)
	_ agentcore.ExecuteEndHook   = (*Registry)(nil)
)
