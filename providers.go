package agentcore

import (
	"context"
	"errors"
)

// Provider capabilities are the pluggable backends an agent's flow can consult:
// retrieval, policy enforcement, and task sourcing. The engine only carries them; it
// never calls them itself. Reference in-memory implementations live in providers/inmem.

// ErrNoTask is returned by TaskProvider.Next when no task is available.
var ErrNoTask = errors.New("agentcore: no task available")

// MemoryItem is one retrievable piece of context.
type MemoryItem struct {
	ID       string
	Content  string
	Metadata map[string]any

	// Score is the relevance assigned by the provider for a query (0 when stored).
	Score float64
}

// QueryOptions narrows a memory query.
type QueryOptions struct {
	// Limit caps the number of results. Zero means the provider's default.
	Limit int

	// Filters restricts results to items whose metadata has these exact values.
	Filters map[string]any
}

// MemoryProvider is the retrieval capability.
type MemoryProvider interface {
	// Query returns items relevant to query, most relevant first.
	Query(ctx context.Context, query string, opts QueryOptions) ([]MemoryItem, error)

	// Store adds an item and returns its id.
	Store(ctx context.Context, item MemoryItem) (string, error)
}

// PolicyDecision is a governance verdict for a proposed action.
type PolicyDecision struct {
	Allowed bool
	Reason  string

	// RequiresApproval asks the flow to offer a checkpoint before acting.
	RequiresApproval bool
}

// GovernanceProvider is the policy-enforcement capability.
type GovernanceProvider interface {
	Check(ctx context.Context, action string, payload map[string]any) (PolicyDecision, error)
}

// Task is one unit of work handed to the agent by a TaskProvider.
type Task struct {
	ID          string
	Description string
	Payload     map[string]any
}

// TaskProvider is the task-sourcing capability.
type TaskProvider interface {
	// Next returns the next pending task, or ErrNoTask.
	Next(ctx context.Context) (Task, error)

	// Complete reports the result of a task previously returned by Next.
	Complete(ctx context.Context, taskID string, result any) error
}
