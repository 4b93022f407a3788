package agentcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type startOnly struct{ calls int }

func (s *startOnly) OnStepStart(context.Context, *AgentState, StepContext) error {
	s.calls++
	return nil
}

type endAndError struct{}

func (endAndError) OnStepEnd(context.Context, *AgentState, StepResult) error { return nil }

func (endAndError) OnError(context.Context, *AgentState, error, string) error { return nil }

func TestHooksFrom_DetectsImplementedInterfaces(t *testing.T) {
	s := &startOnly{}
	h := HooksFrom(s)

	assert.NotNil(t, h.StepStart)
	assert.Nil(t, h.StepEnd)
	assert.Nil(t, h.Checkpoint)
	assert.Nil(t, h.Interrupt)
	assert.Nil(t, h.Error)
	assert.Nil(t, h.ExecuteStart)
	assert.Nil(t, h.ExecuteEnd)

	require.NoError(t, h.StepStart.OnStepStart(context.Background(), nil, StepContext{}))
	assert.Equal(t, 1, s.calls)
}

func TestHooksFrom_NonHook(t *testing.T) {
	assert.Equal(t, Hooks{}, HooksFrom("not a hook"))
	assert.Equal(t, Hooks{}, HooksFrom(nil))
}

func TestHooks_MergeKeepsExistingFields(t *testing.T) {
	first := &startOnly{}
	second := &startOnly{}

	merged := HooksFrom(first).Merge(HooksFrom(second)).Merge(HooksFrom(endAndError{}))

	assert.Same(t, first, merged.StepStart)
	assert.NotNil(t, merged.StepEnd)
	assert.NotNil(t, merged.Error)
	assert.Nil(t, merged.Checkpoint)
}

func TestFuncAdapters(t *testing.T) {
	ctx := context.Background()
	var seen []string

	h := Hooks{
		StepStart: StepStartFunc(func(_ context.Context, _ *AgentState, step StepContext) error {
			seen = append(seen, "start:"+step.Name())
			return nil
		}),
		StepEnd: StepEndFunc(func(_ context.Context, _ *AgentState, r StepResult) error {
			seen = append(seen, "end:"+r.StepName)
			return nil
		}),
		Checkpoint: CheckpointFunc(func(_ context.Context, _ *AgentState, name string, _ map[string]any) error {
			seen = append(seen, "checkpoint:"+name)
			return nil
		}),
		Interrupt: InterruptFunc(func(_ context.Context, _ *AgentState, reason string, _ map[string]any) (InterruptDecision, error) {
			seen = append(seen, "interrupt:"+reason)
			return InterruptPause, nil
		}),
		Error: ErrorFunc(func(_ context.Context, _ *AgentState, _ error, label string) error {
			seen = append(seen, "error:"+label)
			return nil
		}),
		ExecuteStart: ExecuteStartFunc(func(context.Context, *AgentState, ExecuteStartEvent) {
			seen = append(seen, "execute_start")
		}),
		ExecuteEnd: ExecuteEndFunc(func(context.Context, *AgentState, ExecuteEndEvent) {
			seen = append(seen, "execute_end")
		}),
	}

	state := NewAgentState("a")
	_ = h.StepStart.OnStepStart(ctx, state, NewStepContext("s", nil, nil))
	_ = h.StepEnd.OnStepEnd(ctx, state, StepResult{StepName: "s"})
	_ = h.Checkpoint.OnCheckpoint(ctx, state, "c", nil)
	d, _ := h.Interrupt.OnInterrupt(ctx, state, "r", nil)
	_ = h.Error.OnError(ctx, state, nil, "s")
	h.ExecuteStart.OnExecuteStart(ctx, state, ExecuteStartEvent{})
	h.ExecuteEnd.OnExecuteEnd(ctx, state, ExecuteEndEvent{})

	assert.Equal(t, InterruptPause, d)
	assert.Equal(t, []string{
		"start:s", "end:s", "checkpoint:c", "interrupt:r", "error:s", "execute_start", "execute_end",
	}, seen)
}
