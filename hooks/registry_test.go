package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/rickchristie/agentcore"
	"github.com/rickchristie/agentcore/agent"
	"github.com/rickchristie/agentcore/internal/tt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_EmptyYieldsZeroHooks(t *testing.T) {
	assert.Equal(t, agentcore.Hooks{}, NewRegistry().Hooks())
}

func TestRegistry_HooksSetsOnlyImplementedPoints(t *testing.T) {
	reg := NewRegistry().Register(agentcore.StepEndFunc(
		func(context.Context, *agentcore.AgentState, agentcore.StepResult) error { return nil },
	))

	h := reg.Hooks()

	assert.NotNil(t, h.StepEnd)
	assert.Nil(t, h.StepStart)
	assert.Nil(t, h.Checkpoint)
	assert.Nil(t, h.Interrupt)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_DispatchInRegistrationOrder(t *testing.T) {
	first, second := tt.NewRecorder(), tt.NewRecorder()
	reg := NewRegistry().Register(first).Register(second)
	ctx := context.Background()
	state := agentcore.NewAgentState("a")

	var order []string
	first.OnStart = func(context.Context, agentcore.StepContext) { order = append(order, "first") }
	second.OnStart = func(context.Context, agentcore.StepContext) { order = append(order, "second") }

	require.NoError(t, reg.OnStepStart(ctx, state, agentcore.NewStepContext("s", nil, nil)))
	assert.Equal(t, []string{"first", "second"}, order)

	reg.OnExecuteStart(ctx, state, agentcore.ExecuteStartEvent{})
	reg.OnExecuteEnd(ctx, state, agentcore.ExecuteEndEvent{})
	for _, rec := range []*tt.Recorder{first, second} {
		tt.AssertCalls(t, rec, "step_start:s", "execute_start", "execute_end")
	}
}

func TestRegistry_StepStartStopsAtFirstError(t *testing.T) {
	first, second := tt.NewRecorder(), tt.NewRecorder()
	boom := errors.New("boom")
	first.FailStart["s"] = boom
	reg := NewRegistry().Register(first).Register(second)

	err := reg.OnStepStart(context.Background(), agentcore.NewAgentState("a"), agentcore.NewStepContext("s", nil, nil))

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, second.Calls())
}

func TestRegistry_EndSkipsHooksWhoseStartNeverRan(t *testing.T) {
	first, second, third := tt.NewRecorder(), tt.NewRecorder(), tt.NewRecorder()
	second.FailStart["s"] = errors.New("quota store down")
	observer := 0
	reg := NewRegistry().
		Register(first).
		Register(second).
		Register(third).
		Register(agentcore.StepEndFunc(func(context.Context, *agentcore.AgentState, agentcore.StepResult) error {
			observer++
			return nil
		}))

	cfg := agent.DefaultConfig("a")
	cfg.Hooks = reg.Hooks()
	a, err := agent.New(cfg)
	require.NoError(t, err)

	_, err = a.ExecuteStep(context.Background(), "s", tt.Returns(1), nil, nil)
	require.ErrorIs(t, err, agentcore.ErrHookFailed)

	tt.AssertCalls(t, first, "step_start:s", "error:s", "step_end:s")
	tt.AssertCalls(t, second, "step_start:s", "error:s", "step_end:s")
	tt.AssertCalls(t, third, "error:s")
	for _, rec := range []*tt.Recorder{first, second, third} {
		tt.AssertBalanced(t, rec)
	}
	assert.Equal(t, 1, observer, "end-only hooks still observe the step")

	// The next step starts everyone again.
	_, err = a.ExecuteStep(context.Background(), "t", tt.Returns(2), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Count(agentcore.HookNameStepEnd))
}

func TestRegistry_ObservationHooksReachEveryone(t *testing.T) {
	first, second := tt.NewRecorder(), tt.NewRecorder()
	endErr1, endErr2 := errors.New("end one"), errors.New("end two")
	first.FailEnd["s"] = endErr1
	second.FailEnd["s"] = endErr2
	first.FailError["s"] = errors.New("error one")
	reg := NewRegistry().Register(first).Register(second)
	ctx := context.Background()
	state := agentcore.NewAgentState("a")

	err := reg.OnStepEnd(ctx, state, agentcore.StepResult{StepName: "s"})
	assert.ErrorIs(t, err, endErr1)
	assert.ErrorIs(t, err, endErr2)

	err = reg.OnError(ctx, state, errors.New("step failed"), "s")
	assert.Error(t, err)

	assert.Equal(t, 1, second.Count(agentcore.HookNameStepEnd))
	assert.Equal(t, 1, second.Count(agentcore.HookNameError))
}

func TestRegistry_CheckpointRequiresEveryApproval(t *testing.T) {
	approve, reject, never := tt.NewRecorder(), tt.NewRecorder(), tt.NewRecorder()
	reject.Checkpoint = func(name string, _ map[string]any) error {
		return agentcore.NewCheckpointRejected(name, "policy")
	}
	reg := NewRegistry().Register(approve).Register(reject).Register(never)

	err := reg.OnCheckpoint(context.Background(), agentcore.NewAgentState("a"), "deploy", nil)

	assert.ErrorIs(t, err, agentcore.ErrCheckpointRejected)
	assert.Equal(t, 1, approve.Count(agentcore.HookNameCheckpoint))
	assert.Zero(t, never.Count(agentcore.HookNameCheckpoint))
}

func TestRegistry_InterruptStrongestDecisionWins(t *testing.T) {
	decide := func(d agentcore.InterruptDecision) *tt.Recorder {
		rec := tt.NewRecorder()
		rec.Interrupt = func(string, map[string]any) (agentcore.InterruptDecision, error) { return d, nil }
		return rec
	}

	tests := []struct {
		name      string
		decisions []agentcore.InterruptDecision
		expected  agentcore.InterruptDecision
	}{
		{
			name:      "no interrupt hooks",
			decisions: nil,
			expected:  agentcore.InterruptContinue,
		},
		{
			name:      "all continue",
			decisions: []agentcore.InterruptDecision{agentcore.InterruptContinue, agentcore.InterruptContinue},
			expected:  agentcore.InterruptContinue,
		},
		{
			name:      "pause beats continue",
			decisions: []agentcore.InterruptDecision{agentcore.InterruptContinue, agentcore.InterruptPause},
			expected:  agentcore.InterruptPause,
		},
		{
			name: "abort beats pause regardless of order",
			decisions: []agentcore.InterruptDecision{
				agentcore.InterruptAbort, agentcore.InterruptPause, agentcore.InterruptContinue,
			},
			expected: agentcore.InterruptAbort,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewRegistry()
			for _, d := range tc.decisions {
				reg.Register(decide(d))
			}

			d, err := reg.OnInterrupt(context.Background(), agentcore.NewAgentState("a"), "r", nil)

			require.NoError(t, err)
			assert.Equal(t, tc.expected, d)
		})
	}
}

func TestRegistry_InterruptErrorStops(t *testing.T) {
	failing, after := tt.NewRecorder(), tt.NewRecorder()
	boom := errors.New("operator console down")
	failing.Interrupt = func(string, map[string]any) (agentcore.InterruptDecision, error) { return "", boom }
	reg := NewRegistry().Register(failing).Register(after)

	_, err := reg.OnInterrupt(context.Background(), agentcore.NewAgentState("a"), "r", nil)

	assert.ErrorIs(t, err, boom)
	assert.Zero(t, after.Count(agentcore.HookNameInterrupt))
}
