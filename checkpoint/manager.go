// Package checkpoint provides a checkpoint hook that turns every offered checkpoint into
// a persisted approval request and blocks the flow until someone approves or rejects it.
//
// # Overview
//
// Install a Manager as the agent's checkpoint hook. When the flow offers a checkpoint
// the Manager:
//  1. Creates a pending Record in its Store
//  2. Approves it immediately if the name is in Config.AutoApprove
//  3. Otherwise notifies Config.Notifier and waits for Approve or Reject
//  4. Gives up after Config.Timeout with an agentcore.ErrCheckpointTimeout error
//
// Approve and Reject may be called from any goroutine, for example an HTTP handler or a
// terminal prompt. When approvals are written to a shared Store by another process, set
// Config.PollInterval so waiters notice them.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickchristie/agentcore"
)

// Notifier is told about every checkpoint that needs a human decision.
type Notifier interface {
	Notify(ctx context.Context, rec Record)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, rec Record)

func (f NotifierFunc) Notify(ctx context.Context, rec Record) { f(ctx, rec) }

// Config holds configuration options for a Manager.
type Config struct {
	// Store persists records. Nil uses a MemoryStore.
	Store Store

	// Timeout bounds how long a checkpoint waits for a decision. Zero waits until the
	// context ends.
	Timeout time.Duration

	// PollInterval re-reads pending records from the Store while waiting. Zero
	// disables polling; decisions made through this Manager are seen immediately
	// either way.
	PollInterval time.Duration

	// AutoApprove lists checkpoint names approved without waiting.
	AutoApprove []string

	// Notifier is called for each checkpoint that needs a decision. Optional.
	Notifier Notifier

	// TimeProvider stamps CreatedAt and ResolvedAt. Nil uses the system clock.
	TimeProvider agentcore.TimeProvider

	// Logger receives manager logs. Nil discards them.
	Logger *slog.Logger
}

// Manager is an agentcore.CheckpointHook backed by a Store.
type Manager struct {
	cfg    Config
	store  Store
	clock  agentcore.TimeProvider
	logger *slog.Logger

	// mu serializes status transitions so a record is resolved exactly once.
	mu      sync.Mutex
	waiters map[string]chan struct{}
}

// NewManager creates a Manager from cfg.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		cfg:     cfg,
		store:   cfg.Store,
		clock:   cfg.TimeProvider,
		logger:  cfg.Logger,
		waiters: make(map[string]chan struct{}),
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.clock == nil {
		m.clock = agentcore.NewDefaultTimeProvider()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return m
}

// Store returns the store the manager persists records in.
func (m *Manager) Store() Store { return m.store }

// OnCheckpoint records the checkpoint and blocks until it is resolved.
func (m *Manager) OnCheckpoint(
	ctx context.Context,
	state *agentcore.AgentState,
	name string,
	data map[string]any,
) error {
	rec := Record{
		ID:        uuid.NewString(),
		Name:      name,
		AgentID:   state.AgentID(),
		SessionID: state.SessionID(),
		Data:      maps.Clone(data),
		Status:    StatusPending,
		CreatedAt: m.clock.Now(),
	}

	if slices.Contains(m.cfg.AutoApprove, name) {
		rec.Status = StatusApproved
		rec.ResolvedAt = rec.CreatedAt
		rec.Feedback = "auto-approved"
		if err := m.store.Save(ctx, rec); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
		m.logger.Info("checkpoint auto-approved", "checkpoint", name, "id", rec.ID)
		return nil
	}

	signal := make(chan struct{}, 1)
	m.mu.Lock()
	m.waiters[rec.ID] = signal
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.waiters, rec.ID)
		m.mu.Unlock()
	}()

	if err := m.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	m.logger.Info("checkpoint awaiting approval",
		"checkpoint", name,
		"id", rec.ID,
		"session_id", rec.SessionID,
	)
	if m.cfg.Notifier != nil {
		m.cfg.Notifier.Notify(ctx, rec)
	}

	return m.wait(ctx, rec, signal)
}

func (m *Manager) wait(ctx context.Context, rec Record, signal <-chan struct{}) error {
	var timeout <-chan time.Time
	if m.cfg.Timeout > 0 {
		timer := time.NewTimer(m.cfg.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	var poll <-chan time.Time
	if m.cfg.PollInterval > 0 {
		ticker := time.NewTicker(m.cfg.PollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-signal:
		case <-poll:
		case <-timeout:
			resolved, err := m.resolve(context.WithoutCancel(ctx), rec.ID, StatusTimedOut,
				fmt.Sprintf("no decision within %s", m.cfg.Timeout))
			if err != nil && !errors.Is(err, ErrNotPending) {
				return err
			}
			return m.outcome(resolved)
		case <-ctx.Done():
			_, _ = m.resolve(context.WithoutCancel(ctx), rec.ID, StatusCanceled, ctx.Err().Error())
			return fmt.Errorf("waiting for checkpoint %q: %w", rec.Name, ctx.Err())
		}

		current, err := m.store.Get(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("reload checkpoint %s: %w", rec.ID, err)
		}
		if !current.Pending() {
			return m.outcome(current)
		}
	}
}

// outcome maps a resolved record to the hook's return value.
func (m *Manager) outcome(rec Record) error {
	switch rec.Status {
	case StatusApproved:
		return nil
	case StatusTimedOut:
		return agentcore.NewCheckpointTimeout(rec.Name, rec.Feedback)
	default:
		return agentcore.NewCheckpointRejected(rec.Name, rec.Feedback)
	}
}

// Approve resolves a pending checkpoint as approved. Returns ErrNotFound or
// ErrNotPending.
func (m *Manager) Approve(ctx context.Context, id, feedback string) error {
	_, err := m.resolve(ctx, id, StatusApproved, feedback)
	return err
}

// Reject resolves a pending checkpoint as rejected with reason. Returns ErrNotFound or
// ErrNotPending.
func (m *Manager) Reject(ctx context.Context, id, reason string) error {
	_, err := m.resolve(ctx, id, StatusRejected, reason)
	return err
}

// resolve moves a pending record to status and wakes its waiter. When the record was
// already resolved it returns the stored record and ErrNotPending.
func (m *Manager) resolve(ctx context.Context, id string, status Status, feedback string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !rec.Pending() {
		return rec, fmt.Errorf("%w: %s is %s", ErrNotPending, id, rec.Status)
	}

	rec.Status = status
	rec.Feedback = feedback
	rec.ResolvedAt = m.clock.Now()
	if err := m.store.Save(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("save checkpoint: %w", err)
	}
	m.logger.Info("checkpoint resolved", "checkpoint", rec.Name, "id", id, "status", string(status))

	if ch, ok := m.waiters[id]; ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return rec, nil
}

// Get returns the record with id.
func (m *Manager) Get(ctx context.Context, id string) (Record, error) {
	return m.store.Get(ctx, id)
}

// Pending returns every record awaiting a decision, oldest first.
func (m *Manager) Pending(ctx context.Context) ([]Record, error) {
	return m.store.List(ctx, StatusPending)
}

var _ agentcore.CheckpointHook = (*Manager)(nil)
