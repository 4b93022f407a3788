// Package tracing provides a hook that turns agent runs into OpenTelemetry spans.
//
// Each Execute call becomes an "agent.execute" span; each step becomes a child span
// named after the step, nested the same way the steps are nested. Checkpoints and
// interrupts are recorded as span events on the innermost open span.
package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rickchristie/agentcore"
)

// Span and attribute names.
const (
	SpanExecute = "agent.execute"

	AttrAgentID   = "agentcore.agent_id"
	AttrSessionID = "agentcore.session_id"
	AttrStepName  = "agentcore.step"
	AttrResumed   = "agentcore.resumed"
	AttrStatus    = "agentcore.status"
	AttrErrorKind = "agentcore.error_kind"
	AttrSteps     = "agentcore.steps_recorded"

	EventCheckpoint = "checkpoint"
	EventInterrupt  = "interrupt"
	EventError      = "step_error"
)

type openSpan struct {
	name string
	ctx  context.Context
	span trace.Span
}

// Hook records spans with a trace.Tracer.
//
// Hooks cannot hand a new context back to the flow, so the hook keeps its own stack
// of open spans per session and parents each new span on the innermost one.
type Hook struct {
	tracer trace.Tracer

	mu    sync.Mutex
	stack map[string][]openSpan
}

// New creates a Hook that starts spans with tracer.
func New(tracer trace.Tracer) *Hook {
	return &Hook{
		tracer: tracer,
		stack:  make(map[string][]openSpan),
	}
}

func (h *Hook) push(sessionID string, s openSpan) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack[sessionID] = append(h.stack[sessionID], s)
}

// parent returns the context of the innermost open span, or ctx.
func (h *Hook) parent(ctx context.Context, sessionID string) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.stack[sessionID]
	if len(st) == 0 {
		return ctx
	}
	return st[len(st)-1].ctx
}

// pop removes the innermost open span with the given name.
func (h *Hook) pop(sessionID, name string) (openSpan, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.stack[sessionID]
	for i := len(st) - 1; i >= 0; i-- {
		if st[i].name == name {
			s := st[i]
			h.stack[sessionID] = append(st[:i], st[i+1:]...)
			if len(h.stack[sessionID]) == 0 {
				delete(h.stack, sessionID)
			}
			return s, true
		}
	}
	return openSpan{}, false
}

func (h *Hook) current(sessionID string) (trace.Span, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.stack[sessionID]
	if len(st) == 0 {
		return nil, false
	}
	return st[len(st)-1].span, true
}

// OnExecuteStart opens the run span.
func (h *Hook) OnExecuteStart(ctx context.Context, state *agentcore.AgentState, event agentcore.ExecuteStartEvent) {
	spanCtx, span := h.tracer.Start(ctx, SpanExecute,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(AttrAgentID, state.AgentID()),
			attribute.String(AttrSessionID, event.SessionID),
			attribute.Bool(AttrResumed, event.Resumed),
		),
	)
	h.push(event.SessionID, openSpan{name: SpanExecute, ctx: spanCtx, span: span})
}

// OnExecuteEnd closes the run span, plus any step span a panicking flow left open.
func (h *Hook) OnExecuteEnd(_ context.Context, state *agentcore.AgentState, event agentcore.ExecuteEndEvent) {
	sessionID := state.SessionID()

	h.mu.Lock()
	st := h.stack[sessionID]
	delete(h.stack, sessionID)
	h.mu.Unlock()

	for i := len(st) - 1; i >= 0; i-- {
		s := st[i]
		if s.name != SpanExecute {
			s.span.SetStatus(codes.Error, "span left open at end of run")
			s.span.End()
			continue
		}
		s.span.SetAttributes(
			attribute.String(AttrStatus, string(event.Status)),
			attribute.Int(AttrSteps, event.StepsRecorded),
		)
		if event.Status == agentcore.RunFailed && event.Err != nil {
			s.span.RecordError(event.Err)
			s.span.SetAttributes(attribute.String(AttrErrorKind, string(agentcore.ClassifyError(event.Err))))
			s.span.SetStatus(codes.Error, event.Err.Error())
		} else {
			s.span.SetStatus(codes.Ok, "")
		}
		s.span.End()
	}
}

// OnStepStart opens a span for the step under the innermost open span.
func (h *Hook) OnStepStart(ctx context.Context, state *agentcore.AgentState, step agentcore.StepContext) error {
	sessionID := state.SessionID()
	spanCtx, span := h.tracer.Start(h.parent(ctx, sessionID), step.Name(),
		trace.WithAttributes(
			attribute.String(AttrAgentID, state.AgentID()),
			attribute.String(AttrSessionID, sessionID),
			attribute.String(AttrStepName, step.Name()),
		),
	)
	h.push(sessionID, openSpan{name: step.Name(), ctx: spanCtx, span: span})
	return nil
}

// OnStepEnd closes the step's span, marking failures.
func (h *Hook) OnStepEnd(_ context.Context, state *agentcore.AgentState, result agentcore.StepResult) error {
	s, ok := h.pop(state.SessionID(), result.StepName)
	if !ok {
		return nil
	}
	if result.Success {
		s.span.SetStatus(codes.Ok, "")
	} else {
		s.span.SetAttributes(attribute.String(AttrErrorKind, string(result.Failure.Kind)))
		s.span.SetStatus(codes.Error, result.Failure.Message)
	}
	s.span.End()
	return nil
}

// OnError records the failure on the step's span.
func (h *Hook) OnError(_ context.Context, state *agentcore.AgentState, err error, label string) error {
	if span, ok := h.current(state.SessionID()); ok {
		span.RecordError(err, trace.WithAttributes(attribute.String(AttrStepName, label)))
		span.AddEvent(EventError, trace.WithAttributes(
			attribute.String(AttrStepName, label),
			attribute.String(AttrErrorKind, string(agentcore.ClassifyError(err))),
		))
	}
	return nil
}

// OnCheckpoint adds a checkpoint event and approves.
func (h *Hook) OnCheckpoint(_ context.Context, state *agentcore.AgentState, name string, data map[string]any) error {
	if span, ok := h.current(state.SessionID()); ok {
		span.AddEvent(EventCheckpoint, trace.WithAttributes(
			attribute.String("name", name),
			attribute.Int("fields", len(data)),
		))
	}
	return nil
}

// OnInterrupt adds an interrupt event and answers CONTINUE.
func (h *Hook) OnInterrupt(
	_ context.Context,
	state *agentcore.AgentState,
	reason string,
	data map[string]any,
) (agentcore.InterruptDecision, error) {
	if span, ok := h.current(state.SessionID()); ok {
		attrs := []attribute.KeyValue{attribute.String("reason", reason)}
		for k, v := range data {
			attrs = append(attrs, attribute.String("data."+k, fmt.Sprint(v)))
		}
		span.AddEvent(EventInterrupt, trace.WithAttributes(attrs...))
	}
	return agentcore.InterruptContinue, nil
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
