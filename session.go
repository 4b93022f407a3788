package agentcore

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the identity and step history of one continuous agent run.
//
// History is append-only and ordered by completion: a step appends its result when it
// finishes, so a nested step appears before the step that contains it. Only the
// executor appends; everyone else reads copies.
type Session struct {
	id       string
	agentID  string
	openedAt time.Time

	mu      sync.RWMutex
	history []StepResult
}

// NewSession opens a session with a freshly generated id.
func NewSession(agentID string, openedAt time.Time) *Session {
	return &Session{
		id:       uuid.NewString(),
		agentID:  agentID,
		openedAt: openedAt,
		history:  make([]StepResult, 0),
	}
}

// RestoreSession rebuilds a session from externally persisted state. The supplied id
// is reused rather than generated.
func RestoreSession(id, agentID string, openedAt time.Time, history []StepResult) *Session {
	h := make([]StepResult, len(history))
	copy(h, history)
	return &Session{
		id:       id,
		agentID:  agentID,
		openedAt: openedAt,
		history:  h,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// AgentID returns the id of the agent that owns the session.
func (s *Session) AgentID() string { return s.agentID }

// OpenedAt returns when the session was opened.
func (s *Session) OpenedAt() time.Time { return s.openedAt }

// Append records a completed step. Called by the executor only.
func (s *Session) Append(r StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, r)
}

// History returns a copy of the step history in completion order.
func (s *Session) History() []StepResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StepResult, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of recorded steps.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Last returns the most recently completed step.
func (s *Session) Last() (StepResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.history) == 0 {
		return StepResult{}, false
	}
	return s.history[len(s.history)-1], true
}

// Result returns the most recent result recorded for the named step.
func (s *Session) Result(stepName string) (StepResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].StepName == stepName {
			return s.history[i], true
		}
	}
	return StepResult{}, false
}
