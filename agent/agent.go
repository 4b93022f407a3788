// Package agent implements the agent execution engine: the step executor, the
// checkpoint gate, the interrupt controller, and the Execute lifecycle that ties them to
// a session.
//
// # Overview
//
// An Agent runs an application-supplied Flow. The flow drives a sequence of
// ExecuteStep and OfferCheckpoint calls; around every step the agent invokes the
// lifecycle hooks from agentcore.Hooks. Meanwhile any goroutine may call SendInterrupt;
// the resulting PAUSE or ABORT is enforced at the flow's next step boundary or
// checkpoint, never in the middle of a step's work.
//
// # Outcomes
//
// Execute distinguishes three outcomes through its error:
//   - nil: the flow completed
//   - errors.Is(err, agentcore.ErrPaused): paused, resumable through Resume + Execute
//   - anything else: failed, with the cause in the error chain
//
// agentcore.OutcomeOf performs this classification.
//
// # Thread Safety
//
// One Execute may run at a time per Agent. SendInterrupt, PendingDecision, RunState and
// the read accessors are safe to call concurrently with it.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rickchristie/agentcore"
)

// ErrAlreadyRunning is returned when Execute or Resume is called while a run is in
// progress on the same Agent.
var ErrAlreadyRunning = errors.New("agent: execute already in progress")

// Flow is the application's top-level logic for one run. It drives the agent through
// ExecuteStep and OfferCheckpoint and returns the run's output.
type Flow interface {
	Run(ctx context.Context, a *Agent, task any) (any, error)
}

// FlowFunc adapts a function to Flow.
type FlowFunc func(ctx context.Context, a *Agent, task any) (any, error)

// Run calls f.
func (f FlowFunc) Run(ctx context.Context, a *Agent, task any) (any, error) {
	return f(ctx, a, task)
}

// Agent orchestrates steps, checkpoints and interrupts for one agent identity.
type Agent struct {
	state *agentcore.AgentState
	hooks agentcore.Hooks

	memory     agentcore.MemoryProvider
	governance agentcore.GovernanceProvider
	tasks      agentcore.TaskProvider
	subagents  *agentcore.SubagentRegistry

	logger *slog.Logger
	clock  agentcore.TimeProvider

	pending     pendingInterrupt
	interruptMu sync.Mutex

	mu              sync.Mutex
	runState        agentcore.RunState
	running         bool
	resumed         bool
	abortedSessions map[string]struct{}
	skip            map[string]any
	active          []string
}

// New creates an Agent from cfg.
func New(cfg Config) (*Agent, error) {
	if cfg.AgentID == "" {
		return nil, errors.New("agent: AgentID must not be empty")
	}
	cfg = cfg.withDefaults()

	return &Agent{
		state:           agentcore.NewAgentState(cfg.AgentID),
		hooks:           cfg.Hooks,
		memory:          cfg.Memory,
		governance:      cfg.Governance,
		tasks:           cfg.Tasks,
		subagents:       cfg.Subagents,
		logger:          cfg.Logger.With("agent_id", cfg.AgentID),
		clock:           cfg.TimeProvider,
		runState:        agentcore.RunStateIdle,
		abortedSessions: make(map[string]struct{}),
		skip:            make(map[string]any),
	}, nil
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// ID returns the agent id.
func (a *Agent) ID() string { return a.state.AgentID() }

// State returns the agent state visible to hooks.
func (a *Agent) State() *agentcore.AgentState { return a.state }

// Session returns the current session, or nil before the first one opens.
func (a *Agent) Session() *agentcore.Session { return a.state.Session() }

// Memory returns the retrieval capability, or nil.
func (a *Agent) Memory() agentcore.MemoryProvider { return a.memory }

// Governance returns the policy capability, or nil.
func (a *Agent) Governance() agentcore.GovernanceProvider { return a.governance }

// Tasks returns the task-source capability, or nil.
func (a *Agent) Tasks() agentcore.TaskProvider { return a.tasks }

// Subagents returns the subagent registry, or nil.
func (a *Agent) Subagents() *agentcore.SubagentRegistry { return a.subagents }

// RunState returns the state of the current or most recent run.
func (a *Agent) RunState() agentcore.RunState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runState
}

// -----------------------------------------------------------------------------
// Execute
// -----------------------------------------------------------------------------

// Execute runs flow until it returns.
//
// The execution flow:
//  1. Open a session if none is attached (or reuse the one attached by Resume)
//  2. Call the execute-start hook (if set)
//  3. Run the flow
//  4. Call the execute-end hook (if set) with the outcome
//
// A decision published before Execute is called is enforced at the flow's first
// boundary. When the run ends, a PAUSE it never reached is dropped; an unenforced
// ABORT stays pending for the next run on this session.
// Execute refuses to run on a session that has been aborted; call NewSession first.
func (a *Agent) Execute(ctx context.Context, flow Flow, task any) (out any, err error) {
	if flow == nil {
		return nil, errors.New("agent: flow must not be nil")
	}

	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	if sess := a.state.Session(); sess != nil {
		if _, aborted := a.abortedSessions[sess.ID()]; aborted {
			a.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", agentcore.ErrSessionAborted, sess.ID())
		}
	}
	a.running = true
	a.runState = agentcore.RunStateRunning
	resumed := a.resumed
	a.resumed = false
	a.active = a.active[:0]
	a.mu.Unlock()

	sess := a.ensureSession()
	started := time.Now()

	a.logger.Info("execute started", "session_id", sess.ID(), "resumed", resumed)
	if h := a.hooks.ExecuteStart; h != nil {
		h.OnExecuteStart(ctx, a.state, agentcore.ExecuteStartEvent{
			Task:      task,
			SessionID: sess.ID(),
			Resumed:   resumed,
		})
	}

	// The execute-end hook always runs once the start hook has, including when the
	// flow panics; the panic is re-raised afterwards.
	defer func() {
		r := recover()
		endErr := err
		if r != nil {
			endErr = fmt.Errorf("agent: flow panicked: %v", r)
		}
		status := agentcore.OutcomeOf(endErr)
		a.pending.dropPause()
		a.finishRun(status, endErr)

		if h := a.hooks.ExecuteEnd; h != nil {
			h.OnExecuteEnd(ctx, a.state, agentcore.ExecuteEndEvent{
				Output:        out,
				Err:           endErr,
				Status:        status,
				StepsRecorded: sess.Len(),
				Duration:      time.Since(started),
			})
		}

		a.mu.Lock()
		a.running = false
		a.mu.Unlock()

		a.logger.Info("execute finished",
			"session_id", sess.ID(),
			"status", string(status),
			"steps", sess.Len(),
			"duration", time.Since(started),
			"err", endErr,
		)
		if r != nil {
			panic(r)
		}
	}()

	out, err = flow.Run(ctx, a, task)
	if err != nil {
		out = nil
	}
	return out, err
}

func (a *Agent) finishRun(status agentcore.RunStatus, err error) {
	if errors.Is(err, agentcore.ErrAborted) || errors.Is(err, agentcore.ErrSessionAborted) {
		a.markAborted()
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runState == agentcore.RunStateAborted {
		return
	}
	switch status {
	case agentcore.RunCompleted:
		a.runState = agentcore.RunStateCompleted
	case agentcore.RunPaused:
		a.runState = agentcore.RunStatePaused
	default:
		a.runState = agentcore.RunStateFailed
	}
}

// -----------------------------------------------------------------------------
// Sessions and resume
// -----------------------------------------------------------------------------

// ResumeState is the externally restored state a paused run continues from.
type ResumeState struct {
	// SessionID is reused as the session identity. Required.
	SessionID string

	// OpenedAt is the original open time. Zero means now.
	OpenedAt time.Time

	// History is the step history recorded before the pause.
	History []agentcore.StepResult

	// Completed is the skip-list: steps named here are not run again; ExecuteStep
	// returns the recorded output instead, once per entry.
	Completed map[string]any
}

// NewResumeState builds a ResumeState from an in-memory session: its history is kept
// and every successful step goes on the skip-list with its latest output.
func NewResumeState(sess *agentcore.Session) ResumeState {
	history := sess.History()
	completed := make(map[string]any)
	for _, r := range history {
		if r.Success {
			completed[r.StepName] = r.Output
		}
	}
	return ResumeState{
		SessionID: sess.ID(),
		OpenedAt:  sess.OpenedAt(),
		History:   history,
		Completed: completed,
	}
}

// Resume attaches a restored session and skip-list. The next Execute continues in that
// session; its execute-start event reports Resumed.
func (a *Agent) Resume(rs ResumeState) error {
	if rs.SessionID == "" {
		return errors.New("agent: resume requires a session id")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return ErrAlreadyRunning
	}
	if _, aborted := a.abortedSessions[rs.SessionID]; aborted {
		return fmt.Errorf("%w: %s", agentcore.ErrSessionAborted, rs.SessionID)
	}

	openedAt := rs.OpenedAt
	if openedAt.IsZero() {
		openedAt = a.clock.Now()
	}
	a.state.AttachSession(agentcore.RestoreSession(rs.SessionID, a.state.AgentID(), openedAt, rs.History))
	a.skip = maps.Clone(rs.Completed)
	if a.skip == nil {
		a.skip = make(map[string]any)
	}
	a.resumed = true
	a.runState = agentcore.RunStateIdle

	a.logger.Info("session restored",
		"session_id", rs.SessionID,
		"history", len(rs.History),
		"skip", len(a.skip),
	)
	return nil
}

// NewSession detaches the current session. The next Execute or ExecuteStep opens a
// fresh one. This is the only way to run again after an abort.
func (a *Agent) NewSession() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return ErrAlreadyRunning
	}
	a.state.AttachSession(nil)
	a.skip = make(map[string]any)
	a.resumed = false
	a.runState = agentcore.RunStateIdle
	a.pending.reset()
	return nil
}

func (a *Agent) ensureSession() *agentcore.Session {
	if sess := a.state.Session(); sess != nil {
		return sess
	}
	sess := agentcore.NewSession(a.state.AgentID(), a.clock.Now())
	a.state.AttachSession(sess)
	a.logger.Info("session opened", "session_id", sess.ID())
	return sess
}

// -----------------------------------------------------------------------------
// Run bookkeeping
// -----------------------------------------------------------------------------

func (a *Agent) setRunState(s agentcore.RunState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runState != agentcore.RunStateAborted {
		a.runState = s
	}
}

func (a *Agent) markAborted() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runState = agentcore.RunStateAborted
	if id := a.state.SessionID(); id != "" {
		a.abortedSessions[id] = struct{}{}
	}
}

// haltError reports why no further step may start: the session was aborted, or the
// running flow was already paused.
func (a *Agent) haltError(stepName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, aborted := a.abortedSessions[a.state.SessionID()]; aborted {
		return &agentcore.AbortError{StepName: stepName, Cause: agentcore.ErrSessionAborted}
	}
	if a.running && a.runState == agentcore.RunStatePaused {
		return &agentcore.PauseError{StepName: stepName}
	}
	return nil
}

func (a *Agent) takeSkip(name string) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out, ok := a.skip[name]
	if ok {
		delete(a.skip, name)
	}
	return out, ok
}

func (a *Agent) enter(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if slices.Contains(a.active, name) {
		return fmt.Errorf("%w: %q", agentcore.ErrNestedStepName, name)
	}
	a.active = append(a.active, name)
	return nil
}

func (a *Agent) leave(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i := slices.Index(a.active, name); i >= 0 {
		a.active = slices.Delete(a.active, i, i+1)
	}
}
