// Package logging provides a hook that logs every lifecycle event through slog and
// keeps counters about steps, checkpoints and interrupts.
//
// The hook is purely observational: it approves every checkpoint and answers every
// interrupt with CONTINUE, so it can be combined with gating hooks through
// hooks.Registry without changing their outcome.
//
// Optionally every event can also be dumped as YAML to a writer, which is handy for
// reading a full run transcript in tests or from a CLI.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rickchristie/agentcore"
	"gopkg.in/yaml.v3"
)

// Hook logs lifecycle events and records Metrics.
type Hook struct {
	logger  *slog.Logger
	metrics *Metrics
	clock   agentcore.TimeProvider

	dumpMu sync.Mutex
	dump   io.Writer
}

// Option configures a Hook.
type Option func(*Hook)

// WithMetrics records into m instead of a private Metrics.
func WithMetrics(m *Metrics) Option {
	return func(h *Hook) { h.metrics = m }
}

// WithYAMLDump writes every event as a YAML document to w.
func WithYAMLDump(w io.Writer) Option {
	return func(h *Hook) { h.dump = w }
}

// WithTimeProvider sets the clock used for dump timestamps.
func WithTimeProvider(tp agentcore.TimeProvider) Option {
	return func(h *Hook) { h.clock = tp }
}

// New creates a Hook that logs to logger. A nil logger uses slog.Default().
func New(logger *slog.Logger, opts ...Option) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hook{
		logger:  logger,
		metrics: NewMetrics(),
		clock:   agentcore.NewDefaultTimeProvider(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Metrics returns the metrics the hook records into.
func (h *Hook) Metrics() *Metrics {
	return h.metrics
}

func (h *Hook) attrs(state *agentcore.AgentState) []any {
	return []any{"agent_id", state.AgentID(), "session_id", state.SessionID()}
}

// OnExecuteStart logs the start of a run.
func (h *Hook) OnExecuteStart(
	ctx context.Context,
	state *agentcore.AgentState,
	event agentcore.ExecuteStartEvent,
) {
	h.logger.InfoContext(ctx, "execution started", append(h.attrs(state), "resumed", event.Resumed)...)
	h.dumpEvent("ExecuteStart", map[string]any{
		"session_id": event.SessionID,
		"resumed":    event.Resumed,
		"task":       fmt.Sprint(event.Task),
	})
}

// OnExecuteEnd logs the outcome of a run and updates the execution counters.
func (h *Hook) OnExecuteEnd(
	ctx context.Context,
	state *agentcore.AgentState,
	event agentcore.ExecuteEndEvent,
) {
	h.metrics.IncrCounter(KeyExecutions, 1)
	h.metrics.IncrCounter(KeyExecutionsByStatus+string(event.Status), 1)

	args := append(h.attrs(state),
		"status", string(event.Status),
		"steps", event.StepsRecorded,
		"duration", event.Duration,
	)
	data := map[string]any{
		"status":         string(event.Status),
		"steps_recorded": event.StepsRecorded,
		"duration":       event.Duration.String(),
	}
	switch event.Status {
	case agentcore.RunFailed:
		kind := agentcore.ClassifyError(event.Err)
		data["error"] = event.Err.Error()
		data["kind"] = string(kind)
		h.logger.ErrorContext(ctx, "execution failed", append(args, "kind", string(kind), "err", event.Err)...)
	case agentcore.RunPaused:
		h.logger.InfoContext(ctx, "execution paused", args...)
	default:
		h.logger.InfoContext(ctx, "execution completed", args...)
	}
	data["counters"] = h.metrics.Counters()
	data["gauges"] = h.metrics.Gauges()
	h.dumpEvent("ExecuteEnd", data)
}

// OnStepStart logs the step at debug level.
func (h *Hook) OnStepStart(ctx context.Context, state *agentcore.AgentState, step agentcore.StepContext) error {
	h.logger.DebugContext(ctx, "step started", append(h.attrs(state), "step", step.Name())...)
	h.dumpEvent("StepStart", map[string]any{
		"step":     step.Name(),
		"inputs":   stringify(step.Inputs()),
		"metadata": stringify(step.Metadata()),
	})
	return nil
}

// OnStepEnd logs the result and updates the step counters.
func (h *Hook) OnStepEnd(ctx context.Context, state *agentcore.AgentState, result agentcore.StepResult) error {
	h.metrics.IncrCounter(KeySteps, 1)
	h.metrics.IncrCounter(KeyStepsFor+result.StepName, 1)
	h.metrics.IncrCounter(KeyStepDurationMillis, result.Duration.Milliseconds())

	args := append(h.attrs(state), "step", result.StepName, "duration", result.Duration)
	data := map[string]any{
		"step":         result.StepName,
		"success":      result.Success,
		"duration":     result.Duration.String(),
		"completed_at": result.CompletedAt,
	}
	if result.Success {
		h.metrics.ResetGauge(KeyConsecutiveFailures)
		h.logger.InfoContext(ctx, "step completed", args...)
		data["output"] = fmt.Sprint(result.Output)
	} else {
		h.metrics.IncrCounter(KeyStepFailures, 1)
		h.metrics.IncrCounter(KeyStepFailuresByKind+string(result.Failure.Kind), 1)
		h.metrics.IncrGauge(KeyConsecutiveFailures, 1)
		h.logger.WarnContext(ctx, "step failed",
			append(args, "kind", string(result.Failure.Kind), "err", result.Failure.Message)...)
		data["failure"] = map[string]any{
			"kind":    string(result.Failure.Kind),
			"message": result.Failure.Message,
		}
	}
	h.dumpEvent("StepEnd", data)
	return nil
}

// OnError logs a step failure.
func (h *Hook) OnError(ctx context.Context, state *agentcore.AgentState, err error, label string) error {
	h.logger.ErrorContext(ctx, "step error",
		append(h.attrs(state), "step", label, "kind", string(agentcore.ClassifyError(err)), "err", err)...)
	h.dumpEvent("Error", map[string]any{"step": label, "error": err.Error()})
	return nil
}

// OnCheckpoint logs the offered checkpoint and approves it.
func (h *Hook) OnCheckpoint(
	ctx context.Context,
	state *agentcore.AgentState,
	name string,
	data map[string]any,
) error {
	h.metrics.IncrCounter(KeyCheckpoints, 1)
	h.logger.InfoContext(ctx, "checkpoint offered", append(h.attrs(state), "checkpoint", name)...)
	h.dumpEvent("Checkpoint", map[string]any{"checkpoint": name, "data": stringify(data)})
	return nil
}

// OnInterrupt logs the interrupt signal and answers CONTINUE.
func (h *Hook) OnInterrupt(
	ctx context.Context,
	state *agentcore.AgentState,
	reason string,
	data map[string]any,
) (agentcore.InterruptDecision, error) {
	h.metrics.IncrCounter(KeyInterrupts, 1)
	h.logger.InfoContext(ctx, "interrupt received", append(h.attrs(state), "reason", reason)...)
	h.dumpEvent("Interrupt", map[string]any{"reason": reason, "data": stringify(data)})
	return agentcore.InterruptContinue, nil
}

// dumpEvent writes an event header followed by data as YAML.
func (h *Hook) dumpEvent(name string, data map[string]any) {
	if h.dump == nil {
		return
	}
	out, err := yaml.Marshal(data)
	h.dumpMu.Lock()
	defer h.dumpMu.Unlock()
	fmt.Fprintf(h.dump, "\n>>> [%s]: %s\n", name, h.clock.Now().Format("2006-01-02 15:04:05.000"))
	if err != nil {
		fmt.Fprintf(h.dump, "(failed to marshal: %v)\n", err)
		return
	}
	_, _ = h.dump.Write(out)
}

// stringify renders arbitrary values so the YAML encoder never sees types it cannot
// marshal.
func stringify(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// Compile-time checks that Hook implements every hook interface.
var (
	_ agentcore.StepStartHook    = (*Hook)(nil)
	_ agentcore.StepEndHook      = (*Hook)(nil)
	_ agentcore.ErrorHook        = (*Hook)(nil)
	_ agentcore.CheckpointHook   = (*Hook)(nil)
	_ agentcore.InterruptHook    = (*Hook)(nil)
	_ agentcore.ExecuteStartHook = (*Hook)(nil)
	_ agentcore.ExecuteEndHook   = (*Hook)(nil)
)
