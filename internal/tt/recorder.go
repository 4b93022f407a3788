package tt

import (
	"context"
	"fmt"
	"sync"

	"github.com/rickchristie/agentcore"
)

// -----------------------------------------------------------------------------
// Recorder - implements every hook interface and records each invocation
// -----------------------------------------------------------------------------

// Call is one recorded hook invocation.
type Call struct {
	// Hook is one of the agentcore.HookNameXxx constants.
	Hook string

	// Label is the step name, checkpoint name, or interrupt reason.
	Label string

	// Result is set for step-end calls.
	Result *agentcore.StepResult

	// Err is the error passed to the error hook, or the execute-end error.
	Err error

	// Status is set for execute-end calls.
	Status agentcore.RunStatus

	// SessionID is the session attached to the state when the hook ran.
	SessionID string
}

// String renders the call as "hook:label", the form used by AssertCalls.
func (c Call) String() string {
	if c.Label == "" {
		return c.Hook
	}
	return fmt.Sprintf("%s:%s", c.Hook, c.Label)
}

// Recorder is a configurable hook that implements every agentcore hook interface.
// Use agentcore.HooksFrom(rec) to install it.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	// FailStart, FailEnd and FailError make the corresponding hook return the error for
	// the given step name.
	FailStart map[string]error
	FailEnd   map[string]error
	FailError map[string]error

	// OnStart runs inside the step-start hook, after recording.
	OnStart func(ctx context.Context, step agentcore.StepContext)

	// Checkpoint decides checkpoint outcomes. Nil approves everything.
	Checkpoint func(name string, data map[string]any) error

	// Interrupt decides interrupt outcomes. Nil returns InterruptContinue.
	Interrupt func(reason string, data map[string]any) (agentcore.InterruptDecision, error)
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		FailStart: make(map[string]error),
		FailEnd:   make(map[string]error),
		FailError: make(map[string]error),
	}
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Calls returns a copy of every recorded call in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Names returns every recorded call rendered with Call.String.
func (r *Recorder) Names() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Count returns how many times the named hook ran.
func (r *Recorder) Count(hook string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Hook == hook {
			n++
		}
	}
	return n
}

func (r *Recorder) OnStepStart(ctx context.Context, state *agentcore.AgentState, step agentcore.StepContext) error {
	r.record(Call{Hook: agentcore.HookNameStepStart, Label: step.Name(), SessionID: state.SessionID()})
	if r.OnStart != nil {
		r.OnStart(ctx, step)
	}
	return r.FailStart[step.Name()]
}

func (r *Recorder) OnStepEnd(_ context.Context, state *agentcore.AgentState, result agentcore.StepResult) error {
	res := result
	r.record(Call{
		Hook:      agentcore.HookNameStepEnd,
		Label:     result.StepName,
		Result:    &res,
		SessionID: state.SessionID(),
	})
	return r.FailEnd[result.StepName]
}

func (r *Recorder) OnError(_ context.Context, state *agentcore.AgentState, err error, label string) error {
	r.record(Call{Hook: agentcore.HookNameError, Label: label, Err: err, SessionID: state.SessionID()})
	return r.FailError[label]
}

func (r *Recorder) OnCheckpoint(
	_ context.Context,
	state *agentcore.AgentState,
	name string,
	data map[string]any,
) error {
	r.record(Call{Hook: agentcore.HookNameCheckpoint, Label: name, SessionID: state.SessionID()})
	if r.Checkpoint != nil {
		return r.Checkpoint(name, data)
	}
	return nil
}

func (r *Recorder) OnInterrupt(
	_ context.Context,
	state *agentcore.AgentState,
	reason string,
	data map[string]any,
) (agentcore.InterruptDecision, error) {
	r.record(Call{Hook: agentcore.HookNameInterrupt, Label: reason, SessionID: state.SessionID()})
	if r.Interrupt != nil {
		return r.Interrupt(reason, data)
	}
	return agentcore.InterruptContinue, nil
}

func (r *Recorder) OnExecuteStart(
	_ context.Context,
	state *agentcore.AgentState,
	_ agentcore.ExecuteStartEvent,
) {
	r.record(Call{Hook: agentcore.HookNameExecuteStart, SessionID: state.SessionID()})
}

func (r *Recorder) OnExecuteEnd(
	_ context.Context,
	state *agentcore.AgentState,
	event agentcore.ExecuteEndEvent,
) {
	r.record(Call{
		Hook:      agentcore.HookNameExecuteEnd,
		Err:       event.Err,
		Status:    event.Status,
		SessionID: state.SessionID(),
	})
}

// Compile-time checks that Recorder implements every hook interface.
var (
	_ agentcore.StepStartHook    = (*Recorder)(nil)
	_ agentcore.StepEndHook      = (*Recorder)(nil)
	_ agentcore.ErrorHook        = (*Recorder)(nil)
	_ agentcore.CheckpointHook   = (*Recorder)(nil)
	_ agentcore.InterruptHook    = (*Recorder)(nil)
	_ agentcore.ExecuteStartHook = (*Recorder)(nil)
	_ agentcore.ExecuteEndHook   = (*Recorder)(nil)
)
