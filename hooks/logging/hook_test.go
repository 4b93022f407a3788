package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rickchristie/agentcore"
	"github.com/rickchristie/agentcore/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFlow(t *testing.T, h *Hook, flow agent.FlowFunc) error {
	t.Helper()
	cfg := agent.DefaultConfig("logger-test")
	cfg.Hooks = agentcore.HooksFrom(h)
	a, err := agent.New(cfg)
	require.NoError(t, err)
	_, err = a.Execute(context.Background(), flow, "task")
	return err
}

func TestHook_RecordsMetrics(t *testing.T) {
	h := New(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	err := runFlow(t, h, func(ctx context.Context, a *agent.Agent, _ any) (any, error) {
		step := func(context.Context, agentcore.StepContext) (any, error) { return "ok", nil }
		fail := func(context.Context, agentcore.StepContext) (any, error) { return nil, errors.New("x") }

		_, _ = a.ExecuteStep(ctx, "plan", step, nil, nil)
		_, _ = a.ExecuteStep(ctx, "act", fail, nil, nil)
		_, _ = a.ExecuteStep(ctx, "act", fail, nil, nil)
		if err := a.OfferCheckpoint(ctx, "review", nil); err != nil {
			return nil, err
		}
		return a.ExecuteStep(ctx, "finish", step, nil, nil)
	})
	require.NoError(t, err)

	m := h.Metrics()
	assert.Equal(t, int64(4), m.GetCounter(KeySteps))
	assert.Equal(t, int64(2), m.GetCounter(KeyStepsFor+"act"))
	assert.Equal(t, int64(2), m.GetCounter(KeyStepFailures))
	assert.Equal(t, int64(2), m.GetCounter(KeyStepFailuresByKind+string(agentcore.KindStepFailure)))
	assert.Equal(t, int64(1), m.GetCounter(KeyCheckpoints))
	assert.Equal(t, int64(1), m.GetCounter(KeyExecutions))
	assert.Equal(t, int64(1), m.GetCounter(KeyExecutionsByStatus+string(agentcore.RunCompleted)))
	assert.Equal(t, float64(0), m.GetGauge(KeyConsecutiveFailures), "reset by the final success")
}

func TestHook_ConsecutiveFailuresGauge(t *testing.T) {
	m := NewMetrics()
	h := New(nil, WithMetrics(m))
	state := agentcore.NewAgentState("a")
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	failed := agentcore.NewFailureResult("s", 0, "", errors.New("x"), at)
	require.NoError(t, h.OnStepEnd(ctx, state, failed))
	require.NoError(t, h.OnStepEnd(ctx, state, failed))
	assert.Equal(t, float64(2), m.GetGauge(KeyConsecutiveFailures))

	require.NoError(t, h.OnStepEnd(ctx, state, agentcore.NewSuccessResult("s", 0, 1, at)))
	assert.Equal(t, float64(0), m.GetGauge(KeyConsecutiveFailures))
	assert.Same(t, m, h.Metrics())
}

func TestHook_IsNeutralForGating(t *testing.T) {
	h := New(nil)
	state := agentcore.NewAgentState("a")

	assert.NoError(t, h.OnCheckpoint(context.Background(), state, "c", map[string]any{"k": 1}))
	d, err := h.OnInterrupt(context.Background(), state, "user_interrupt", nil)
	require.NoError(t, err)
	assert.Equal(t, agentcore.InterruptContinue, d)
	assert.Equal(t, int64(1), h.Metrics().GetCounter(KeyInterrupts))
}

func TestHook_LogsThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := New(logger)

	err := runFlow(t, h, func(ctx context.Context, a *agent.Agent, _ any) (any, error) {
		return a.ExecuteStep(ctx, "boom",
			func(context.Context, agentcore.StepContext) (any, error) { return nil, errors.New("kaput") },
			nil, nil)
	})
	require.Error(t, err)

	logs := buf.String()
	assert.Contains(t, logs, `"msg":"step started"`)
	assert.Contains(t, logs, `"msg":"step failed"`)
	assert.Contains(t, logs, `"msg":"execution failed"`)
	assert.Contains(t, logs, `"kind":"step_failure"`)
	assert.Contains(t, logs, `"agent_id":"logger-test"`)
}

func TestHook_YAMLDump(t *testing.T) {
	var dump bytes.Buffer
	clock := agentcore.NewMockTimeProvider(time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC))
	h := New(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), WithYAMLDump(&dump), WithTimeProvider(clock))

	err := runFlow(t, h, func(ctx context.Context, a *agent.Agent, _ any) (any, error) {
		return a.ExecuteStep(ctx, "greet",
			func(context.Context, agentcore.StepContext) (any, error) { return "hello", nil },
			map[string]any{"name": "world"}, nil)
	})
	require.NoError(t, err)

	out := dump.String()
	assert.Contains(t, out, ">>> [ExecuteStart]: 2026-05-04 03:02:01.000")
	assert.Contains(t, out, ">>> [StepStart]")
	assert.Contains(t, out, "name: world")
	assert.Contains(t, out, ">>> [StepEnd]")
	assert.Contains(t, out, "output: hello")
	assert.Contains(t, out, ">>> [ExecuteEnd]")
	assert.Contains(t, out, "status: completed")
	assert.Less(t, strings.Index(out, "[StepStart]"), strings.Index(out, "[StepEnd]"))
}

func TestMetrics_NegativeCounterPanics(t *testing.T) {
	assert.Panics(t, func() { NewMetrics().IncrCounter(KeySteps, -1) })
}
