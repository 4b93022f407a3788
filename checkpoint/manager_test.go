package checkpoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickchristie/agentcore"
	"github.com/rickchristie/agentcore/agent"
)

var testNow = time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)

func testState() *agentcore.AgentState {
	state := agentcore.NewAgentState("agent-1")
	state.AttachSession(agentcore.RestoreSession("sess-1", "agent-1", testNow, nil))
	return state
}

// decideWith returns a notifier that resolves every checkpoint from another goroutine.
func decideWith(decide func(m *Manager, rec Record)) (NotifierFunc, **Manager) {
	var m *Manager
	return func(_ context.Context, rec Record) {
		go decide(m, rec)
	}, &m
}

func TestManager_AutoApprove(t *testing.T) {
	m := NewManager(Config{
		AutoApprove:  []string{"plan_ready"},
		TimeProvider: agentcore.NewMockTimeProvider(testNow),
	})
	ctx := context.Background()

	require.NoError(t, m.OnCheckpoint(ctx, testState(), "plan_ready", map[string]any{"plan": "p"}))

	approved, err := m.Store().List(ctx, StatusApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "plan_ready", approved[0].Name)
	assert.Equal(t, "sess-1", approved[0].SessionID)
	assert.Equal(t, "agent-1", approved[0].AgentID)
	assert.Equal(t, testNow, approved[0].ResolvedAt)
	assert.Equal(t, map[string]any{"plan": "p"}, approved[0].Data)
}

func TestManager_Decisions(t *testing.T) {
	tests := []struct {
		name         string
		decide       func(m *Manager, rec Record)
		expectStatus Status
		expectIs     error
	}{
		{
			name: "approved",
			decide: func(m *Manager, rec Record) {
				_ = m.Approve(context.Background(), rec.ID, "lgtm")
			},
			expectStatus: StatusApproved,
		},
		{
			name: "rejected",
			decide: func(m *Manager, rec Record) {
				_ = m.Reject(context.Background(), rec.ID, "too expensive")
			},
			expectStatus: StatusRejected,
			expectIs:     agentcore.ErrCheckpointRejected,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			notifier, mp := decideWith(tc.decide)
			m := NewManager(Config{Notifier: notifier, Timeout: 5 * time.Second})
			*mp = m
			ctx := context.Background()

			err := m.OnCheckpoint(ctx, testState(), "deploy", nil)

			if tc.expectIs == nil {
				require.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.expectIs)
			}
			recs, listErr := m.Store().List(ctx, tc.expectStatus)
			require.NoError(t, listErr)
			require.Len(t, recs, 1)
			assert.False(t, recs[0].ResolvedAt.IsZero())

			pending, listErr := m.Pending(ctx)
			require.NoError(t, listErr)
			assert.Empty(t, pending)
		})
	}
}

func TestManager_RejectionCarriesReason(t *testing.T) {
	notifier, mp := decideWith(func(m *Manager, rec Record) {
		_ = m.Reject(context.Background(), rec.ID, "budget exceeded")
	})
	m := NewManager(Config{Notifier: notifier})
	*mp = m

	err := m.OnCheckpoint(context.Background(), testState(), "spend", nil)

	var cpErr *agentcore.CheckpointError
	require.ErrorAs(t, err, &cpErr)
	assert.Equal(t, "spend", cpErr.Name)
	assert.Equal(t, "budget exceeded", cpErr.Reason)
}

func TestManager_Timeout(t *testing.T) {
	m := NewManager(Config{Timeout: 20 * time.Millisecond})
	ctx := context.Background()

	err := m.OnCheckpoint(ctx, testState(), "slow_review", nil)

	assert.ErrorIs(t, err, agentcore.ErrCheckpointTimeout)
	assert.Equal(t, agentcore.KindCheckpointTimeout, agentcore.ClassifyError(err))
	recs, listErr := m.Store().List(ctx, StatusTimedOut)
	require.NoError(t, listErr)
	require.Len(t, recs, 1)

	// A late decision is refused.
	assert.ErrorIs(t, m.Approve(ctx, recs[0].ID, "too late"), ErrNotPending)
}

func TestManager_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(Config{Notifier: NotifierFunc(func(context.Context, Record) { cancel() })})

	err := m.OnCheckpoint(ctx, testState(), "c", nil)

	assert.ErrorIs(t, err, context.Canceled)
	recs, listErr := m.Store().List(context.Background(), StatusCanceled)
	require.NoError(t, listErr)
	assert.Len(t, recs, 1)
}

func TestManager_PendingVisibleWhileWaiting(t *testing.T) {
	seen := make(chan []Record, 1)
	notifier, mp := decideWith(func(m *Manager, rec Record) {
		pending, _ := m.Pending(context.Background())
		seen <- pending
		_ = m.Approve(context.Background(), rec.ID, "")
	})
	m := NewManager(Config{Notifier: notifier})
	*mp = m

	require.NoError(t, m.OnCheckpoint(context.Background(), testState(), "c", map[string]any{"n": 1}))

	pending := <-seen
	require.Len(t, pending, 1)
	assert.Equal(t, "c", pending[0].Name)
	assert.True(t, pending[0].Pending())
}

func TestManager_ResolveErrors(t *testing.T) {
	m := NewManager(Config{})
	ctx := context.Background()

	assert.ErrorIs(t, m.Approve(ctx, "missing", ""), ErrNotFound)
	assert.ErrorIs(t, m.Reject(ctx, "missing", ""), ErrNotFound)
	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_PollsSharedSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	waiterStore, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = waiterStore.Close() })
	reviewerStore, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reviewerStore.Close() })

	// The reviewer is a separate manager, as it would be in another process.
	reviewer := NewManager(Config{Store: reviewerStore})
	waiter := NewManager(Config{
		Store:        waiterStore,
		PollInterval: 10 * time.Millisecond,
		Timeout:      5 * time.Second,
		Notifier: NotifierFunc(func(_ context.Context, rec Record) {
			go func() { _ = reviewer.Approve(context.Background(), rec.ID, "remote ok") }()
		}),
	})

	require.NoError(t, waiter.OnCheckpoint(context.Background(), testState(), "remote", nil))

	recs, err := waiterStore.List(context.Background(), StatusApproved)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "remote ok", recs[0].Feedback)
}

func TestManager_AsAgentCheckpointHook(t *testing.T) {
	notifier, mp := decideWith(func(m *Manager, rec Record) {
		if rec.Name == "plan_ready" {
			_ = m.Reject(context.Background(), rec.ID, "rethink")
			return
		}
		_ = m.Approve(context.Background(), rec.ID, "")
	})
	m := NewManager(Config{Notifier: notifier})
	*mp = m

	cfg := agent.DefaultConfig("agent-1")
	cfg.Hooks.Checkpoint = m
	a, err := agent.New(cfg)
	require.NoError(t, err)

	_, err = a.Execute(context.Background(), agent.FlowFunc(
		func(ctx context.Context, a *agent.Agent, _ any) (any, error) {
			if err := a.OfferCheckpoint(ctx, "inputs_ok", nil); err != nil {
				return nil, err
			}
			return nil, a.OfferCheckpoint(ctx, "plan_ready", nil)
		}), nil)

	assert.ErrorIs(t, err, agentcore.ErrCheckpointRejected)
	assert.Equal(t, agentcore.RunStateFailed, a.RunState())
}
