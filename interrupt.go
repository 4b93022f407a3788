package agentcore

import "fmt"

// InterruptDecision is the outcome of an interrupt hook. It is a closed set: the only
// valid values are InterruptContinue, InterruptPause and InterruptAbort.
type InterruptDecision string

const (
	// InterruptContinue resumes normal flow. It never changes execution.
	InterruptContinue InterruptDecision = "continue"

	// InterruptPause suspends execution at the next step boundary. Work already
	// completed is kept; the run can be resumed.
	InterruptPause InterruptDecision = "pause"

	// InterruptAbort terminates the run at the next step boundary. The session cannot
	// be resumed.
	InterruptAbort InterruptDecision = "abort"
)

// Valid reports whether d is one of the three known decisions.
func (d InterruptDecision) Valid() bool {
	switch d {
	case InterruptContinue, InterruptPause, InterruptAbort:
		return true
	}
	return false
}

// String returns the decision name.
func (d InterruptDecision) String() string {
	return string(d)
}

// ParseInterruptDecision converts a name (as written in config files or persisted
// state) into a decision.
func ParseInterruptDecision(s string) (InterruptDecision, error) {
	d := InterruptDecision(s)
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDecision, s)
	}
	return d, nil
}
