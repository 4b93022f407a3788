package agent

import (
	"io"
	"log/slog"

	"github.com/rickchristie/agentcore"
)

// Config holds configuration options for an Agent.
type Config struct {
	// AgentID identifies the agent. Required.
	AgentID string

	// Hooks are the extension points. Every field is optional.
	Hooks agentcore.Hooks

	// Memory, Governance and Tasks are capabilities handed to flows through the
	// agent's accessors. The engine never calls them itself.
	Memory     agentcore.MemoryProvider
	Governance agentcore.GovernanceProvider
	Tasks      agentcore.TaskProvider

	// Subagents lists the delegates available to Delegate. Optional.
	Subagents *agentcore.SubagentRegistry

	// Logger receives engine logs. Nil discards them.
	Logger *slog.Logger

	// TimeProvider stamps session open times and step completion times.
	// Nil uses the system clock.
	TimeProvider agentcore.TimeProvider
}

// DefaultConfig returns a config with sensible defaults for the given agent id.
func DefaultConfig(agentID string) Config {
	return Config{
		AgentID:      agentID,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		TimeProvider: agentcore.NewDefaultTimeProvider(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.AgentID)
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	if c.TimeProvider == nil {
		c.TimeProvider = d.TimeProvider
	}
	return c
}
