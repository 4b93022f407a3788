// Package statestore persists execution state so a paused run can be resumed later,
// possibly by another process.
//
// A Manager is a set of hooks. Installed on an agent it writes one JSON document per
// session to its directory: the step currently running, every successful step with its
// output, and the run status. An interrupt whose reason is one of the pause reasons is
// answered with PAUSE and marks the document paused.
//
// To continue a paused session, call Resume and hand the result to agent.Agent.Resume:
//
//	rs, err := store.Resume(sessionID)
//	if err != nil { ... }
//	if err := a.Resume(rs); err != nil { ... }
//	out, err := a.Execute(ctx, flow, task)
//
// Steps recorded as completed are skipped on the resumed run and return their
// persisted outputs. Outputs are stored as JSON, so they come back in their JSON shape
// (numbers as float64, structs as maps).
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/rickchristie/agentcore"
	"github.com/rickchristie/agentcore/agent"
)

var (
	// ErrNotFound is returned when no document exists for a session.
	ErrNotFound = errors.New("statestore: no saved state for session")

	// ErrNotPaused is returned by Resume for a session that is not paused.
	ErrNotPaused = errors.New("statestore: cannot resume, execution not paused")

	// ErrInvalidSessionID is returned for a session id that cannot name a file in the
	// state directory, such as one containing a path separator.
	ErrInvalidSessionID = errors.New("statestore: invalid session id")
)

// DefaultPauseReason is the interrupt reason that pauses a run when no reasons are
// configured.
const DefaultPauseReason = "user_interrupt"

// Option configures a Manager.
type Option func(*Manager)

// WithPauseReasons sets the interrupt reasons answered with PAUSE.
func WithPauseReasons(reasons ...string) Option {
	return func(m *Manager) { m.pauseReasons = reasons }
}

// WithLogger sets the logger. Persisted changes are logged as unified diffs at debug
// level. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTimeProvider sets the clock used for document timestamps.
func WithTimeProvider(tp agentcore.TimeProvider) Option {
	return func(m *Manager) { m.clock = tp }
}

// Manager persists execution state documents in a directory.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Manager struct {
	dir          string
	pauseReasons []string
	logger       *slog.Logger
	clock        agentcore.TimeProvider

	mu   sync.Mutex
	docs map[string]*Document
	last map[string][]byte
}

// New creates a Manager that stores documents in dir, creating it if needed.
func New(dir string, opts ...Option) (*Manager, error) {
	if dir == "" {
		return nil, errors.New("statestore: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("statestore: creating state directory: %w", err)
	}
	m := &Manager{
		dir:          dir,
		pauseReasons: []string{DefaultPauseReason},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:        agentcore.NewDefaultTimeProvider(),
		docs:         make(map[string]*Document),
		last:         make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Dir returns the state directory.
func (m *Manager) Dir() string { return m.dir }

// Path returns the document path for a session.
func (m *Manager) Path(sessionID string) (string, error) { return documentPath(m.dir, sessionID) }

// load reads the document for sessionID from disk.
func (m *Manager) load(sessionID string) (*Document, error) {
	path, err := m.Path(sessionID)
	if err != nil {
		return nil, err
	}
	return readDocument(path)
}

// document returns the cached document for the session in state, loading it from disk
// or creating it. Caller holds m.mu.
func (m *Manager) document(state *agentcore.AgentState) (*Document, error) {
	sessionID := state.SessionID()
	if doc, ok := m.docs[sessionID]; ok {
		return doc, nil
	}
	doc, err := m.load(sessionID)
	switch {
	case errors.Is(err, ErrNotFound):
		startedAt := m.clock.Now()
		if sess := state.Session(); sess != nil {
			startedAt = sess.OpenedAt()
		}
		doc = newDocument(sessionID, state.AgentID(), startedAt)
	case err != nil:
		return nil, err
	}
	m.docs[sessionID] = doc
	return doc, nil
}

// save writes doc atomically. Caller holds m.mu.
func (m *Manager) save(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("statestore: encoding state: %w", err)
	}
	path, err := m.Path(doc.SessionID)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("statestore: %w", err)
	}

	if prev, ok := m.last[doc.SessionID]; ok && m.logger.Enabled(context.Background(), slog.LevelDebug) {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(prev)),
			B:        difflib.SplitLines(string(data)),
			FromFile: "previous",
			ToFile:   "current",
			Context:  1,
		})
		m.logger.Debug("state saved", "session_id", doc.SessionID, "diff", diff)
	}
	m.last[doc.SessionID] = data
	return nil
}

func (m *Manager) update(state *agentcore.AgentState, mutate func(doc *Document) bool) error {
	if state.SessionID() == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, err := m.document(state)
	if err != nil {
		return err
	}
	if !mutate(doc) {
		return nil
	}
	return m.save(doc)
}

// -----------------------------------------------------------------------------
// Hooks
// -----------------------------------------------------------------------------

// OnExecuteStart marks the session in progress.
func (m *Manager) OnExecuteStart(_ context.Context, state *agentcore.AgentState, _ agentcore.ExecuteStartEvent) {
	err := m.update(state, func(doc *Document) bool {
		doc.Status = StatusInProgress
		return true
	})
	if err != nil {
		m.logger.Error("saving state failed", "session_id", state.SessionID(), "err", err)
	}
}

// OnStepStart records the step currently running.
func (m *Manager) OnStepStart(_ context.Context, state *agentcore.AgentState, step agentcore.StepContext) error {
	return m.update(state, func(doc *Document) bool {
		name := step.Name()
		doc.CurrentStep = &name
		return true
	})
}

// OnStepEnd records a successful step and its output. Failed steps are not recorded,
// so they run again on resume.
func (m *Manager) OnStepEnd(_ context.Context, state *agentcore.AgentState, result agentcore.StepResult) error {
	if !result.Success {
		return nil
	}
	output, err := json.Marshal(result.Output)
	if err != nil {
		return fmt.Errorf("statestore: encoding output of %q: %w", result.StepName, err)
	}
	return m.update(state, func(doc *Document) bool {
		doc.CompletedSteps = append(doc.CompletedSteps, CompletedStep{
			StepName:    result.StepName,
			CompletedAt: result.CompletedAt,
			Duration:    result.Duration.Seconds(),
		})
		doc.StepOutputs[result.StepName] = output
		doc.CurrentStep = nil
		return true
	})
}

// OnInterrupt pauses on the configured reasons and continues otherwise.
func (m *Manager) OnInterrupt(
	_ context.Context,
	state *agentcore.AgentState,
	reason string,
	_ map[string]any,
) (agentcore.InterruptDecision, error) {
	if !slices.Contains(m.pauseReasons, reason) {
		return agentcore.InterruptContinue, nil
	}
	err := m.update(state, func(doc *Document) bool {
		now := m.clock.Now()
		doc.Status = StatusPaused
		doc.PausedAt = &now
		return true
	})
	if err != nil {
		return "", err
	}
	m.logger.Info("pausing execution, state saved", "session_id", state.SessionID())
	return agentcore.InterruptPause, nil
}

// OnExecuteEnd records the final status of the run.
func (m *Manager) OnExecuteEnd(_ context.Context, state *agentcore.AgentState, event agentcore.ExecuteEndEvent) {
	err := m.update(state, func(doc *Document) bool {
		switch {
		case event.Status == agentcore.RunCompleted:
			doc.Status = StatusCompleted
		case event.Status == agentcore.RunPaused:
			if doc.PausedAt == nil {
				now := m.clock.Now()
				doc.PausedAt = &now
			}
			doc.Status = StatusPaused
		case agentcore.ClassifyError(event.Err) == agentcore.KindAborted:
			doc.Status = StatusAborted
		default:
			doc.Status = StatusFailed
		}
		return true
	})
	if err != nil {
		m.logger.Error("saving state failed", "session_id", state.SessionID(), "err", err)
	}
}

// -----------------------------------------------------------------------------
// Queries and resume
// -----------------------------------------------------------------------------

// Load reads the document for a session from disk.
func (m *Manager) Load(sessionID string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(sessionID)
}

// CompletedSteps returns the completed step names for a session.
func (m *Manager) CompletedSteps(sessionID string) ([]string, error) {
	doc, err := m.Load(sessionID)
	if err != nil {
		return nil, err
	}
	return doc.StepNames(), nil
}

// StepOutput returns the recorded output of a completed step.
func (m *Manager) StepOutput(sessionID, stepName string) (any, bool, error) {
	doc, err := m.Load(sessionID)
	if err != nil {
		return nil, false, err
	}
	return doc.Output(stepName)
}

// Resume moves a paused session back to in progress and returns the state to seed
// agent.Agent.Resume with: the session identity, a history rebuilt from the completed
// steps, and a skip-list of their outputs.
func (m *Manager) Resume(sessionID string) (agent.ResumeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load(sessionID)
	if err != nil {
		return agent.ResumeState{}, err
	}
	if doc.Status != StatusPaused {
		return agent.ResumeState{}, fmt.Errorf("%w: session %s is %s", ErrNotPaused, sessionID, doc.Status)
	}

	history := make([]agentcore.StepResult, 0, len(doc.CompletedSteps))
	completed := make(map[string]any, len(doc.StepOutputs))
	for _, s := range doc.CompletedSteps {
		out, _, err := doc.Output(s.StepName)
		if err != nil {
			return agent.ResumeState{}, err
		}
		duration := time.Duration(s.Duration * float64(time.Second))
		history = append(history, agentcore.NewSuccessResult(s.StepName, duration, out, s.CompletedAt))
		completed[s.StepName] = out
	}

	now := m.clock.Now()
	doc.Status = StatusInProgress
	doc.ResumedAt = &now
	m.docs[sessionID] = doc
	if err := m.save(doc); err != nil {
		return agent.ResumeState{}, err
	}

	m.logger.Info("resuming session", "session_id", sessionID, "completed_steps", len(history))
	return agent.ResumeState{
		SessionID: doc.SessionID,
		OpenedAt:  doc.StartedAt,
		History:   history,
		Completed: completed,
	}, nil
}

// Compile-time checks.
var (
	_ agentcore.StepStartHook    = (*Manager)(nil)
	_ agentcore.StepEndHook      = (*Manager)(nil)
	_ agentcore.InterruptHook    = (*Manager)(nil)
	_ agentcore.ExecuteStartHook = (*Manager)(nil)
	_ agentcore.ExecuteEndHook   = (*Manager)(nil)
)
