package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rickchristie/agentcore"
)

// ExecuteStep runs one named unit of work wrapped with hooks, timing, and failure
// classification, and returns the work's output.
//
// The execution flow:
//  1. Build the StepContext
//  2. Enforce a pending ABORT or PAUSE; nothing else runs for this step
//  3. Call the step-start hook (if set)
//  4. Run work, timed
//  5. Record the StepResult in the session history
//  6. On failure, call the error hook (if set)
//  7. Call the step-end hook (if set)
//  8. Enforce a PAUSE or ABORT that arrived while the step ran; the result stays
//     recorded
//
// A failure from work comes back as a *agentcore.StepError wrapping the original. A
// failing hook comes back as a *agentcore.HookError; when a hook fails while a step
// failure is already propagating, both are joined.
//
// A step listed in the resume skip-list is not run: once the pending decision has been
// checked, its recorded output is returned without calling hooks or appending to history.
//
// Nested calls are allowed. The name must not match a step still running further up
// the same nesting.
func (a *Agent) ExecuteStep(
	ctx context.Context,
	name string,
	work agentcore.StepFunc,
	inputs map[string]any,
	metadata map[string]any,
) (any, error) {
	if name == "" {
		return nil, agentcore.ErrEmptyStepName
	}
	if work == nil {
		return nil, fmt.Errorf("step %q: work function must not be nil", name)
	}

	step := agentcore.NewStepContext(name, inputs, metadata)
	sess := a.ensureSession()

	if err := a.haltError(name); err != nil {
		return nil, err
	}
	if err := a.checkBoundary(name, name, nil); err != nil {
		return nil, err
	}
	if out, ok := a.takeSkip(name); ok {
		a.logger.Debug("step skipped", "session_id", sess.ID(), "step", name)
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("step %q: %w", name, err)
	}

	if err := a.enter(name); err != nil {
		return nil, err
	}
	defer a.leave(name)

	if h := a.hooks.StepStart; h != nil {
		if err := h.OnStepStart(ctx, a.state, step); err != nil {
			hookErr := &agentcore.HookError{Hook: agentcore.HookNameStepStart, Label: name, Err: err}
			return nil, a.failStep(ctx, sess, name, 0, hookErr)
		}
	}

	a.logger.Debug("step started", "session_id", sess.ID(), "step", name)
	out, elapsed, workErr := a.runWork(ctx, sess, step, work)

	if workErr != nil {
		return nil, a.failStep(ctx, sess, name, elapsed, &agentcore.StepError{StepName: name, Err: workErr})
	}

	result := agentcore.NewSuccessResult(name, elapsed, out, a.clock.Now())
	sess.Append(result)
	a.logger.Debug("step completed", "session_id", sess.ID(), "step", name, "duration", elapsed)

	if h := a.hooks.StepEnd; h != nil {
		if err := h.OnStepEnd(ctx, a.state, result); err != nil {
			return nil, &agentcore.HookError{Hook: agentcore.HookNameStepEnd, Label: name, Err: err}
		}
	}

	if err := a.checkBoundary(name, name, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// runWork calls work and times it. When work panics, the step is recorded as failed and
// the error and step-end hooks run before the panic is re-raised, so every started step
// still gets its end hook.
func (a *Agent) runWork(
	ctx context.Context,
	sess *agentcore.Session,
	step agentcore.StepContext,
	work agentcore.StepFunc,
) (out any, elapsed time.Duration, err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			failure := &agentcore.StepError{StepName: step.Name(), Err: fmt.Errorf("work panicked: %v", r)}
			_ = a.recordFailure(ctx, sess, step.Name(), time.Since(started), failure)
			panic(r)
		}
	}()
	out, err = work(ctx, step)
	return out, time.Since(started), err
}

// failStep records a failed step, runs the error and step-end hooks, and returns the
// error to propagate.
func (a *Agent) failStep(
	ctx context.Context,
	sess *agentcore.Session,
	name string,
	elapsed time.Duration,
	failure error,
) error {
	errs := a.recordFailure(ctx, sess, name, elapsed, failure)
	if err := a.checkBoundary(name, name, errs); err != nil {
		return err
	}
	return errs
}

func (a *Agent) recordFailure(
	ctx context.Context,
	sess *agentcore.Session,
	name string,
	elapsed time.Duration,
	failure error,
) error {
	result := agentcore.NewFailureResult(name, elapsed, "", failure, a.clock.Now())
	sess.Append(result)
	a.logger.Warn("step failed",
		"session_id", sess.ID(),
		"step", name,
		"kind", string(result.Failure.Kind),
		"duration", elapsed,
		"err", failure,
	)

	errs := failure
	if h := a.hooks.Error; h != nil {
		if err := h.OnError(ctx, a.state, failure, name); err != nil {
			errs = errors.Join(errs, &agentcore.HookError{Hook: agentcore.HookNameError, Label: name, Err: err})
		}
	}
	if h := a.hooks.StepEnd; h != nil {
		if err := h.OnStepEnd(ctx, a.state, result); err != nil {
			errs = errors.Join(errs, &agentcore.HookError{Hook: agentcore.HookNameStepEnd, Label: name, Err: err})
		}
	}
	return errs
}

// Delegate runs the named subagent as a step called "delegate:<name>", so delegation
// gets the same hooks, timing and history as any other step.
func (a *Agent) Delegate(ctx context.Context, name string, task any) (any, error) {
	def, err := a.subagents.Get(name)
	if err != nil {
		return nil, err
	}
	return a.ExecuteStep(ctx, "delegate:"+name,
		func(ctx context.Context, step agentcore.StepContext) (any, error) {
			sub := def.New()
			t, _ := step.Input("task")
			return sub.Run(ctx, t)
		},
		map[string]any{"task": task, "subagent": name},
		map[string]any{"capabilities": def.Capabilities},
	)
}
