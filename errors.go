package agentcore

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to test for them; the typed errors below match the
// corresponding sentinel through their Is methods.
var (
	// ErrStepFailed is matched by every *StepError.
	ErrStepFailed = errors.New("agentcore: step failed")

	// ErrHookFailed is matched by every *HookError.
	ErrHookFailed = errors.New("agentcore: hook failed")

	// ErrCheckpointRejected is returned (or wrapped) by a checkpoint hook that rejects.
	ErrCheckpointRejected = errors.New("agentcore: checkpoint rejected")

	// ErrCheckpointTimeout is returned (or wrapped) by a checkpoint hook whose approval
	// did not arrive in time.
	ErrCheckpointTimeout = errors.New("agentcore: checkpoint approval timed out")

	// ErrAborted is matched by every *AbortError.
	ErrAborted = errors.New("agentcore: execution aborted")

	// ErrPaused is matched by every *PauseError. It is a control signal, not a failure.
	ErrPaused = errors.New("agentcore: execution paused")

	// ErrSessionAborted is returned when execution is attempted on a session that has
	// already been aborted.
	ErrSessionAborted = errors.New("agentcore: session was aborted")

	// ErrEmptyStepName is returned when a step is executed without a name.
	ErrEmptyStepName = errors.New("agentcore: step name must not be empty")

	// ErrEmptyCheckpointName is returned when a checkpoint is offered without a name.
	ErrEmptyCheckpointName = errors.New("agentcore: checkpoint name must not be empty")

	// ErrNestedStepName is returned when a step reuses the name of a step that is still
	// running further up the nesting.
	ErrNestedStepName = errors.New("agentcore: step name already running in this nesting")

	// ErrInvalidDecision is returned when an interrupt hook produces an unknown decision.
	ErrInvalidDecision = errors.New("agentcore: invalid interrupt decision")

	// ErrSubagentNotFound is returned when a subagent lookup misses.
	ErrSubagentNotFound = errors.New("agentcore: subagent not found")

	// ErrDuplicateSubagent is returned when registering a subagent name twice.
	ErrDuplicateSubagent = errors.New("agentcore: subagent already registered")
)

// StepError reports that a step's work function failed. The original failure is
// available through Unwrap.
type StepError struct {
	StepName string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q: %v", e.StepName, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStepFailed.
func (e *StepError) Is(target error) bool { return target == ErrStepFailed }

// HookError reports that a hook failed where it was expected to return cleanly.
// Hook failures are always fatal to the current step and propagate past it.
type HookError struct {
	// Hook is the hook name, one of the HookNameXxx constants.
	Hook string

	// Label identifies what the hook was invoked for: a step name, checkpoint name,
	// or interrupt reason.
	Label string

	Err error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook (%s): %v", e.Hook, e.Label, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// Is reports whether target is ErrHookFailed.
func (e *HookError) Is(target error) bool { return target == ErrHookFailed }

// CheckpointError is the error checkpoint hooks return to reject a checkpoint or report
// that approval timed out. It matches ErrCheckpointRejected or ErrCheckpointTimeout
// depending on Kind.
type CheckpointError struct {
	Name   string
	Kind   ErrorKind // KindCheckpointRejected or KindCheckpointTimeout
	Reason string
}

// NewCheckpointRejected builds a rejection for the named checkpoint.
func NewCheckpointRejected(name, reason string) *CheckpointError {
	return &CheckpointError{Name: name, Kind: KindCheckpointRejected, Reason: reason}
}

// NewCheckpointTimeout builds a timeout for the named checkpoint.
func NewCheckpointTimeout(name, reason string) *CheckpointError {
	return &CheckpointError{Name: name, Kind: KindCheckpointTimeout, Reason: reason}
}

func (e *CheckpointError) Error() string {
	verb := "rejected"
	if e.Kind == KindCheckpointTimeout {
		verb = "timed out"
	}
	if e.Reason == "" {
		return fmt.Sprintf("checkpoint %q %s", e.Name, verb)
	}
	return fmt.Sprintf("checkpoint %q %s: %s", e.Name, verb, e.Reason)
}

// Is matches the sentinel for the checkpoint error kind.
func (e *CheckpointError) Is(target error) bool {
	switch e.Kind {
	case KindCheckpointTimeout:
		return target == ErrCheckpointTimeout
	default:
		return target == ErrCheckpointRejected
	}
}

// PauseError is the control signal raised when a PAUSE decision is enforced. Work that
// completed before the pause is already recorded in the session history.
type PauseError struct {
	// StepName is the step at whose boundary the pause was enforced. Empty when the
	// pause was enforced at a checkpoint.
	StepName string

	// Reason is the interrupt reason that produced the decision.
	Reason string

	// Cause is set when the step that completed before the pause failed.
	Cause error
}

func (e *PauseError) Error() string {
	msg := "execution paused"
	if e.StepName != "" {
		msg += fmt.Sprintf(" at step %q", e.StepName)
	}
	if e.Reason != "" {
		msg += fmt.Sprintf(" (%s)", e.Reason)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *PauseError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrPaused.
func (e *PauseError) Is(target error) bool { return target == ErrPaused }

// AbortError is raised when an ABORT decision is enforced. It is terminal for the
// session.
type AbortError struct {
	StepName string
	Reason   string
	Cause    error
}

func (e *AbortError) Error() string {
	msg := "execution aborted"
	if e.StepName != "" {
		msg += fmt.Sprintf(" at step %q", e.StepName)
	}
	if e.Reason != "" {
		msg += fmt.Sprintf(" (%s)", e.Reason)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *AbortError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrAborted.
func (e *AbortError) Is(target error) bool { return target == ErrAborted }
