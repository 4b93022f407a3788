package statestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickchristie/agentcore"
	"github.com/rickchristie/agentcore/agent"
)

var epoch = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

// pausableFlow runs three steps. When pauseDuring matches a step, the step's work
// sends a user interrupt while it runs.
func pausableFlow(pauseDuring string) agent.Flow {
	step := func(a *agent.Agent, name, prefix string) agentcore.StepFunc {
		return func(ctx context.Context, sc agentcore.StepContext) (any, error) {
			if name == pauseDuring {
				if _, err := a.SendInterrupt(ctx, DefaultPauseReason, nil); err != nil {
					return nil, err
				}
			}
			in, _ := sc.Input("in")
			return fmt.Sprintf("%s(%v)", prefix, in), nil
		}
	}
	return agent.FlowFunc(func(ctx context.Context, a *agent.Agent, task any) (any, error) {
		out := task
		for _, name := range []string{"research", "draft", "review"} {
			var err error
			out, err = a.ExecuteStep(ctx, name, step(a, name, name), map[string]any{"in": out}, nil)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	})
}

func newAgent(t *testing.T, m *Manager) *agent.Agent {
	t.Helper()
	cfg := agent.DefaultConfig("writer")
	cfg.Hooks = agentcore.HooksFrom(m)
	cfg.TimeProvider = agentcore.NewMockTimeProvider(epoch)
	a, err := agent.New(cfg)
	require.NoError(t, err)
	return a
}

func TestManager_PauseAndResumeAcrossProcesses(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := New(dir, WithTimeProvider(agentcore.NewMockTimeProvider(epoch)))
	require.NoError(t, err)
	a := newAgent(t, first)

	_, err = a.Execute(ctx, pausableFlow("draft"), "topic")
	require.ErrorIs(t, err, agentcore.ErrPaused)
	sessionID := a.Session().ID()

	doc, err := first.Load(sessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, doc.Status)
	assert.Equal(t, "writer", doc.AgentID)
	assert.Equal(t, []string{"research", "draft"}, doc.StepNames())
	assert.Nil(t, doc.CurrentStep)
	require.NotNil(t, doc.PausedAt)
	assert.True(t, doc.StartedAt.Equal(epoch))

	// A second manager over the same directory, as a restarted process would create.
	second, err := New(dir)
	require.NoError(t, err)
	rs, err := second.Resume(sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, rs.SessionID)
	assert.Len(t, rs.History, 2)
	assert.Equal(t, "draft(research(topic))", rs.Completed["draft"])

	resumed := newAgent(t, second)
	require.NoError(t, resumed.Resume(rs))
	out, err := resumed.Execute(ctx, pausableFlow(""), "topic")
	require.NoError(t, err)
	assert.Equal(t, "review(draft(research(topic)))", out)

	doc, err = second.Load(sessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, doc.Status)
	require.NotNil(t, doc.ResumedAt)
	assert.Equal(t, []string{"research", "draft", "review"}, doc.StepNames())

	steps, err := second.CompletedSteps(sessionID)
	require.NoError(t, err)
	assert.Equal(t, doc.StepNames(), steps)
	out, ok, err := second.StepOutput(sessionID, "review")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "review(draft(research(topic)))", out)
}

func TestManager_ResumeRequiresPaused(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	a := newAgent(t, m)

	_, err = a.Execute(context.Background(), pausableFlow(""), "x")
	require.NoError(t, err)

	_, err = m.Resume(a.Session().ID())
	assert.ErrorIs(t, err, ErrNotPaused)

	_, err = m.Resume("no-such-session")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_RejectsSessionIDsOutsideDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "state")
	m, err := New(dir)
	require.NoError(t, err)
	outside := filepath.Join(root, "outside.json")
	require.NoError(t, os.WriteFile(outside, []byte(`{"status":"paused"}`), 0o600))

	for _, id := range []string{"../outside", "..", ".", "", "a/b", `a\b`, "/etc/passwd"} {
		t.Run(id, func(t *testing.T) {
			_, err := m.Path(id)
			assert.ErrorIs(t, err, ErrInvalidSessionID)
			_, err = m.Load(id)
			assert.ErrorIs(t, err, ErrInvalidSessionID)
			_, err = m.Resume(id)
			assert.ErrorIs(t, err, ErrInvalidSessionID)
		})
	}

	path, err := m.Path("sess-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sess-1.json"), path)
}

func TestManager_OtherInterruptReasonsContinue(t *testing.T) {
	m, err := New(t.TempDir(), WithPauseReasons("operator_pause"))
	require.NoError(t, err)
	state := agentcore.NewAgentState("a")
	state.AttachSession(agentcore.NewSession("a", epoch))

	d, err := m.OnInterrupt(context.Background(), state, DefaultPauseReason, nil)
	require.NoError(t, err)
	assert.Equal(t, agentcore.InterruptContinue, d)
	path, err := m.Path(state.SessionID())
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "nothing persisted for a continue")

	d, err = m.OnInterrupt(context.Background(), state, "operator_pause", nil)
	require.NoError(t, err)
	assert.Equal(t, agentcore.InterruptPause, d)
	doc, err := m.Load(state.SessionID())
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, doc.Status)
}

func TestManager_FailedStepsAreNotRecorded(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	a := newAgent(t, m)

	_, err = a.Execute(context.Background(), agent.FlowFunc(
		func(ctx context.Context, a *agent.Agent, _ any) (any, error) {
			if _, err := a.ExecuteStep(ctx, "ok",
				func(context.Context, agentcore.StepContext) (any, error) { return 1, nil }, nil, nil); err != nil {
				return nil, err
			}
			return a.ExecuteStep(ctx, "bad",
				func(context.Context, agentcore.StepContext) (any, error) { return nil, errors.New("x") }, nil, nil)
		}), nil)
	require.Error(t, err)

	doc, err := m.Load(a.Session().ID())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, doc.Status)
	assert.Equal(t, []string{"ok"}, doc.StepNames())
	require.NotNil(t, doc.CurrentStep, "the failed step was still current")
	assert.Equal(t, "bad", *doc.CurrentStep)

	out, ok, err := doc.Output("ok")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, float64(1), out, "outputs come back in their JSON shape")
}

func TestManager_LogsDiffAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m, err := New(t.TempDir(), WithLogger(logger))
	require.NoError(t, err)
	a := newAgent(t, m)

	_, err = a.Execute(context.Background(), pausableFlow(""), "x")
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "state saved")
	assert.Contains(t, buf.String(), "+++ current")
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
