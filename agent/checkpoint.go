package agent

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/rickchristie/agentcore"
)

// OfferCheckpoint offers data for external review and blocks until the checkpoint hook
// resolves.
//
// Without a checkpoint hook this is a no-op: checkpoints are advisory. With one, a nil
// return approves and execution continues. A rejection or timeout (an error matching
// agentcore.ErrCheckpointRejected or agentcore.ErrCheckpointTimeout) is returned as-is
// and the flow should end the run with it. Any other hook error is a
// *agentcore.HookError, except context cancellation, which is returned wrapped.
//
// A checkpoint is also a suspension point: a pending PAUSE or ABORT is enforced before
// the hook is consulted. Approval never changes the agent state or session history.
// The gate has no timeout of its own; timeouts are the hook's policy.
func (a *Agent) OfferCheckpoint(ctx context.Context, name string, data map[string]any) error {
	if name == "" {
		return agentcore.ErrEmptyCheckpointName
	}
	sess := a.ensureSession()

	if err := a.haltError(""); err != nil {
		return err
	}
	if err := a.checkBoundary("", "checkpoint:"+name, nil); err != nil {
		return err
	}

	h := a.hooks.Checkpoint
	if h == nil {
		a.logger.Debug("checkpoint passed", "session_id", sess.ID(), "checkpoint", name)
		return nil
	}

	payload := maps.Clone(data)
	if payload == nil {
		payload = map[string]any{}
	}
	err := h.OnCheckpoint(ctx, a.state, name, payload)
	switch {
	case err == nil:
		a.logger.Info("checkpoint approved", "session_id", sess.ID(), "checkpoint", name)
		return nil
	case errors.Is(err, agentcore.ErrCheckpointRejected), errors.Is(err, agentcore.ErrCheckpointTimeout):
		a.logger.Warn("checkpoint not approved",
			"session_id", sess.ID(),
			"checkpoint", name,
			"kind", string(agentcore.ClassifyError(err)),
			"err", err,
		)
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("checkpoint %q: %w", name, err)
	default:
		return &agentcore.HookError{Hook: agentcore.HookNameCheckpoint, Label: name, Err: err}
	}
}
