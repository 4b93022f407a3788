package agentcore

import (
	"maps"
	"sync"
)

// AgentState is the identity and mutable context visible to every hook.
//
// The agent id never changes. The session is attached when the first session opens and
// replaced when a new one starts; inside Execute it is never nil while a hook runs.
// The custom bag belongs to the agent's own flow: hooks should treat it as read-only.
//
// AgentState is safe for concurrent reads, since interrupt hooks run on the caller's
// goroutine while a flow is in progress.
type AgentState struct {
	agentID string

	mu      sync.RWMutex
	session *Session
	custom  map[string]any
}

// NewAgentState creates the state for one agent instance.
func NewAgentState(agentID string) *AgentState {
	return &AgentState{
		agentID: agentID,
		custom:  make(map[string]any),
	}
}

// AgentID returns the agent's immutable id.
func (s *AgentState) AgentID() string { return s.agentID }

// Session returns the current session, or nil before the first one opens.
func (s *AgentState) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// SessionID returns the current session id, or "" before the first one opens.
func (s *AgentState) SessionID() string {
	if sess := s.Session(); sess != nil {
		return sess.ID()
	}
	return ""
}

// AttachSession replaces the current session. Passing nil detaches it.
func (s *AgentState) AttachSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
}

// Get returns one value from the custom bag.
func (s *AgentState) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.custom[key]
	return v, ok
}

// Set stores a value in the custom bag.
func (s *AgentState) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.custom[key] = value
}

// Delete removes a value from the custom bag.
func (s *AgentState) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.custom, key)
}

// Custom returns a copy of the custom bag.
func (s *AgentState) Custom() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.custom)
}
