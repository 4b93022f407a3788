package tt

import (
	"context"
	"testing"

	"github.com/rickchristie/agentcore"
	"github.com/stretchr/testify/assert"
)

// -----------------------------------------------------------------------------
// Assertion Helpers
// -----------------------------------------------------------------------------

// AssertCalls asserts that the recorder saw exactly the expected calls, in order.
// Calls are compared in their "hook:label" form.
func AssertCalls(t *testing.T, rec *Recorder, expected ...string) {
	t.Helper()
	assert.Equal(t, expected, rec.Names())
}

// AssertBalanced asserts that every step-start call has a matching step-end call for the
// same step, so start/end counts are equal per step name.
func AssertBalanced(t *testing.T, rec *Recorder) {
	t.Helper()
	starts := map[string]int{}
	ends := map[string]int{}
	for _, c := range rec.Calls() {
		switch c.Hook {
		case agentcore.HookNameStepStart:
			starts[c.Label]++
		case agentcore.HookNameStepEnd:
			ends[c.Label]++
		}
	}
	assert.Equal(t, starts, ends, "step start/end hook invocations are not balanced")
}

// AssertResultExclusive asserts the success/output/failure exclusivity invariant for
// every result.
func AssertResultExclusive(t *testing.T, results []agentcore.StepResult) {
	t.Helper()
	for i, r := range results {
		if r.Success {
			assert.Nil(t, r.Failure, "result[%d] %q: success with failure set", i, r.StepName)
		} else {
			if assert.NotNil(t, r.Failure, "result[%d] %q: failure without failure info", i, r.StepName) {
				assert.NotEmpty(t, r.Failure.Kind, "result[%d] %q: failure kind", i, r.StepName)
			}
			assert.Nil(t, r.Output, "result[%d] %q: failure with output set", i, r.StepName)
		}
		assert.GreaterOrEqual(t, int64(r.Duration), int64(0), "result[%d] %q: negative duration", i, r.StepName)
	}
}

// AssertStepNames asserts the history's step names, in completion order.
func AssertStepNames(t *testing.T, results []agentcore.StepResult, expected ...string) {
	t.Helper()
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.StepName
	}
	assert.Equal(t, expected, names)
}

// -----------------------------------------------------------------------------
// Step helpers
// -----------------------------------------------------------------------------

// Returns builds a StepFunc that returns out.
func Returns(out any) agentcore.StepFunc {
	return func(context.Context, agentcore.StepContext) (any, error) {
		return out, nil
	}
}

// Fails builds a StepFunc that returns err.
func Fails(err error) agentcore.StepFunc {
	return func(context.Context, agentcore.StepContext) (any, error) {
		return nil, err
	}
}
