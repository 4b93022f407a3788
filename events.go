package agentcore

import "time"

// ExecuteStartEvent is passed to the execute-start hook.
type ExecuteStartEvent struct {
	// Task is the value passed to Execute.
	Task any

	// SessionID is the session the run executes in.
	SessionID string

	// Resumed is true when the session was restored from persisted state.
	Resumed bool
}

// ExecuteEndEvent is passed to the execute-end hook.
type ExecuteEndEvent struct {
	// Output is the flow's result (nil unless Status is RunCompleted).
	Output any

	// Err is the error Execute returns (nil on completion).
	Err error

	// Status is the three-way outcome derived from Err.
	Status RunStatus

	// StepsRecorded is the session history length when the run ended.
	StepsRecorded int

	// Duration is how long Execute ran.
	Duration time.Duration
}
