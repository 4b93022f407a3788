// Package hooks composes several hook implementations into the single hook per
// extension point that an agent accepts.
//
// An agent calls exactly one callable per extension point. When more than one party
// wants to observe or gate execution (a logger, a tracer, a state store, an approval
// gate), register them all with a Registry and install the composite:
//
//	registry := hooks.NewRegistry().
//	    Register(logging.New(logger)).
//	    Register(tracing.New(tracer)).
//	    Register(store)
//
//	cfg := agent.DefaultConfig("support-bot")
//	cfg.Hooks = registry.Hooks()
//
// Each registered object receives only the calls for the interfaces it implements:
//   - [agentcore.StepStartHook] - before a step's work runs
//   - [agentcore.StepEndHook] - after every step, successful or not
//   - [agentcore.ErrorHook] - when a step fails
//   - [agentcore.CheckpointHook] - when the flow offers a checkpoint
//   - [agentcore.InterruptHook] - when an interrupt signal arrives
//   - [agentcore.ExecuteStartHook] / [agentcore.ExecuteEndHook] - around each run
//
// # Composition Rules
//
// Hooks are called in registration order.
//
// Gating hooks stop at the first error: a failing step-start hook or a rejecting
// checkpoint hook prevents the hooks registered after it from running.
//
// Observation hooks (step-end, error) always reach every registered hook; their
// errors are joined.
//
// Interrupt hooks are all consulted and the strongest decision wins:
// ABORT over PAUSE over CONTINUE.
package hooks
