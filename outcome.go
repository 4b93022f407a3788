package agentcore

import (
	"context"
	"errors"
)

// ErrorKind classifies a failure. It is recorded in failed StepResults and used by
// callers that want to retry or escalate on specific kinds.
type ErrorKind string

const (
	// KindStepFailure means the step's work function returned an error.
	KindStepFailure ErrorKind = "step_failure"

	// KindHookFailure means a hook failed where it was expected to return cleanly.
	KindHookFailure ErrorKind = "hook_failure"

	// KindCheckpointRejected means a checkpoint hook rejected the checkpoint.
	KindCheckpointRejected ErrorKind = "checkpoint_rejected"

	// KindCheckpointTimeout means checkpoint approval did not arrive in time.
	KindCheckpointTimeout ErrorKind = "checkpoint_timeout"

	// KindAborted means an interrupt decided ABORT.
	KindAborted ErrorKind = "aborted"

	// KindPaused means an interrupt decided PAUSE.
	KindPaused ErrorKind = "paused"

	// KindCanceled means the context was canceled or its deadline passed.
	KindCanceled ErrorKind = "canceled"
)

// ClassifyError maps an error to its ErrorKind. Control signals take precedence over
// the failures they may wrap, so a pause enforced after a failed step classifies as
// KindPaused. Returns "" for a nil error; unrecognized errors are KindStepFailure.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPaused):
		return KindPaused
	case errors.Is(err, ErrAborted), errors.Is(err, ErrSessionAborted):
		return KindAborted
	case errors.Is(err, ErrCheckpointRejected):
		return KindCheckpointRejected
	case errors.Is(err, ErrCheckpointTimeout):
		return KindCheckpointTimeout
	case errors.Is(err, ErrHookFailed):
		return KindHookFailure
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindStepFailure
	}
}

// RunStatus is the three-way outcome of one Execute call.
type RunStatus string

const (
	// RunCompleted means the flow returned normally.
	RunCompleted RunStatus = "completed"

	// RunPaused means a PAUSE decision was enforced. The run can be resumed.
	RunPaused RunStatus = "paused"

	// RunFailed means the run terminated with a cause: step or hook failure, checkpoint
	// rejection or timeout, abort, or cancellation.
	RunFailed RunStatus = "failed"
)

// OutcomeOf maps the error returned by Execute to its RunStatus.
func OutcomeOf(err error) RunStatus {
	switch {
	case err == nil:
		return RunCompleted
	case errors.Is(err, ErrPaused):
		return RunPaused
	default:
		return RunFailed
	}
}

// RunState is the conceptual state of an agent's current run.
//
//	Idle ──Execute──▶ Running ──PAUSE──▶ Paused ──Resume/Execute──▶ Running
//	                     │
//	                     ├──ABORT──▶ Aborted (terminal for the session)
//	                     ├──return──▶ Completed
//	                     └──error──▶ Failed
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStatePaused    RunState = "paused"
	RunStateAborted   RunState = "aborted"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// Terminal reports whether no further steps may run in this state without a new
// session or a resume.
func (s RunState) Terminal() bool {
	return s == RunStateAborted || s == RunStateCompleted || s == RunStateFailed
}
