package steps

import (
	"context"
	"fmt"

	"github.com/rickchristie/agentcore"
	"github.com/rickchristie/agentcore/schema"
)

// Validated returns work that checks the step inputs against in before running work.
// Invalid inputs fail the step without calling work.
func Validated(in *schema.Schema, work agentcore.StepFunc) agentcore.StepFunc {
	return func(ctx context.Context, step agentcore.StepContext) (any, error) {
		inputs := step.Inputs()
		if inputs == nil {
			inputs = map[string]any{}
		}
		if err := in.Validate(inputs); err != nil {
			return nil, fmt.Errorf("step %q inputs: %w", step.Name(), err)
		}
		return work(ctx, step)
	}
}

// ValidatedOutput returns work whose output must satisfy out. An output that does not
// fails the step, so it is never recorded as a success.
func ValidatedOutput(out *schema.Schema, work agentcore.StepFunc) agentcore.StepFunc {
	return func(ctx context.Context, step agentcore.StepContext) (any, error) {
		v, err := work(ctx, step)
		if err != nil {
			return nil, err
		}
		if err := out.Validate(v); err != nil {
			return nil, fmt.Errorf("step %q output: %w", step.Name(), err)
		}
		return v, nil
	}
}
