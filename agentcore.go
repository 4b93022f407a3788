// Package agentcore defines the vocabulary shared by the agent execution engine and the
// code that observes or gates it: agent state, sessions, step contexts and results,
// interrupt decisions, lifecycle hooks, error kinds, provider capabilities, and the
// subagent registry.
//
// The engine itself lives in the agent package. This package holds no orchestration
// logic beyond small invariant-preserving constructors, so hook implementations can
// depend on it without pulling in the executor.
//
// # Quick Start
//
//	a, err := agent.New(agent.Config{
//	    AgentID: "researcher-001",
//	    Hooks:   agentcore.HooksFrom(&MyHooks{}),
//	})
//	if err != nil {
//	    return err
//	}
//
//	out, err := a.Execute(ctx, agent.FlowFunc(func(ctx context.Context, a *agent.Agent, task any) (any, error) {
//	    plan, err := a.ExecuteStep(ctx, "plan", planStep, map[string]any{"task": task}, nil)
//	    if err != nil {
//	        return nil, err
//	    }
//	    if err := a.OfferCheckpoint(ctx, "plan_ready", map[string]any{"plan": plan}); err != nil {
//	        return nil, err
//	    }
//	    return a.ExecuteStep(ctx, "finalize", finalizeStep, map[string]any{"plan": plan}, nil)
//	}), "summarize the quarterly report")
//
//	switch agentcore.OutcomeOf(err) {
//	case agentcore.RunCompleted:
//	    // use out
//	case agentcore.RunPaused:
//	    // persist and resume later with a.Resume(...)
//	case agentcore.RunFailed:
//	    // inspect agentcore.ClassifyError(err)
//	}
package agentcore
