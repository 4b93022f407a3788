package agent

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/rickchristie/agentcore"
)

// pendingInterrupt is the single slot shared between SendInterrupt (writer) and the
// flow's boundary checks (reader).
//
// CONTINUE is never stored. A pending ABORT is never replaced: it is one-way.
type pendingInterrupt struct {
	mu       sync.Mutex
	decision agentcore.InterruptDecision
	reason   string
}

func (p *pendingInterrupt) publish(d agentcore.InterruptDecision, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch d {
	case agentcore.InterruptAbort:
		p.decision, p.reason = d, reason
	case agentcore.InterruptPause:
		if p.decision != agentcore.InterruptAbort {
			p.decision, p.reason = d, reason
		}
	}
}

// take reads and clears the slot. It returns InterruptContinue when nothing is pending.
func (p *pendingInterrupt) take() (agentcore.InterruptDecision, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, r := p.decision, p.reason
	p.decision, p.reason = "", ""
	if d == "" {
		return agentcore.InterruptContinue, ""
	}
	return d, r
}

func (p *pendingInterrupt) peek() agentcore.InterruptDecision {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.decision == "" {
		return agentcore.InterruptContinue
	}
	return p.decision
}

// dropPause clears a pending PAUSE and leaves a pending ABORT in place.
func (p *pendingInterrupt) dropPause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.decision == agentcore.InterruptPause {
		p.decision, p.reason = "", ""
	}
}

func (p *pendingInterrupt) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decision, p.reason = "", ""
}

// SendInterrupt delivers an out-of-band interrupt signal. It is safe to call from any
// goroutine while Execute is running on another.
//
// The interrupt hook resolves the signal into a decision; with no hook registered the
// decision is InterruptContinue. PAUSE and ABORT are published for the running flow,
// which enforces them at its next step boundary or checkpoint. A step's work that is
// already running is never preempted. The decision is returned to the caller.
func (a *Agent) SendInterrupt(
	ctx context.Context,
	reason string,
	data map[string]any,
) (agentcore.InterruptDecision, error) {
	h := a.hooks.Interrupt
	if h == nil {
		return agentcore.InterruptContinue, nil
	}

	// Interrupt hooks are serialized against each other; they may still run
	// concurrently with the flow's own hooks.
	a.interruptMu.Lock()
	defer a.interruptMu.Unlock()

	payload := maps.Clone(data)
	if payload == nil {
		payload = map[string]any{}
	}
	d, err := h.OnInterrupt(ctx, a.state, reason, payload)
	if err != nil {
		return "", &agentcore.HookError{Hook: agentcore.HookNameInterrupt, Label: reason, Err: err}
	}
	if !d.Valid() {
		return "", &agentcore.HookError{
			Hook:  agentcore.HookNameInterrupt,
			Label: reason,
			Err:   fmt.Errorf("%w: %q", agentcore.ErrInvalidDecision, d),
		}
	}

	a.pending.publish(d, reason)
	a.logger.Info("interrupt resolved",
		"session_id", a.state.SessionID(),
		"reason", reason,
		"decision", d.String(),
	)
	return d, nil
}

// PendingDecision returns the decision waiting to be enforced at the next boundary,
// or InterruptContinue when nothing is pending.
func (a *Agent) PendingDecision() agentcore.InterruptDecision {
	return a.pending.peek()
}

// checkBoundary consumes a pending decision at a suspension point. label is the step or
// checkpoint the boundary belongs to; cause is a step failure that is being propagated
// through this boundary, if any.
//
// A consumed PAUSE moves the run to Paused; a consumed ABORT moves it to Aborted and
// marks the session as terminal.
func (a *Agent) checkBoundary(stepName, label string, cause error) error {
	d, reason := a.pending.take()
	switch d {
	case agentcore.InterruptPause:
		a.setRunState(agentcore.RunStatePaused)
		a.logger.Info("pause enforced",
			"session_id", a.state.SessionID(),
			"at", label,
			"reason", reason,
		)
		return &agentcore.PauseError{StepName: stepName, Reason: reason, Cause: cause}
	case agentcore.InterruptAbort:
		a.markAborted()
		a.logger.Warn("abort enforced",
			"session_id", a.state.SessionID(),
			"at", label,
			"reason", reason,
		)
		return &agentcore.AbortError{StepName: stepName, Reason: reason, Cause: cause}
	}
	return nil
}
