package agentcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoSubagent() Subagent {
	return SubagentFunc(func(_ context.Context, task any) (any, error) { return task, nil })
}

func TestSubagentRegistry(t *testing.T) {
	reg, err := NewSubagentRegistry(
		SubagentDefinition{Name: "writer", Capabilities: []string{"draft"}, New: echoSubagent},
		SubagentDefinition{Name: "researcher", Capabilities: []string{"search", "draft"}, New: echoSubagent},
	)
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"researcher", "writer"}, reg.Names())
	assert.Equal(t, []string{"researcher", "writer"}, reg.WithCapability("draft"))
	assert.Equal(t, []string{"researcher"}, reg.WithCapability("search"))
	assert.Empty(t, reg.WithCapability("fly"))
	assert.True(t, reg.Has("writer"))

	def, err := reg.Get("writer")
	require.NoError(t, err)
	out, err := def.New().Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	_, err = reg.Get("nobody")
	assert.ErrorIs(t, err, ErrSubagentNotFound)
}

func TestSubagentRegistry_RegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		def      SubagentDefinition
		expectIs error
	}{
		{
			name: "empty name",
			def:  SubagentDefinition{New: echoSubagent},
		},
		{
			name: "missing constructor",
			def:  SubagentDefinition{Name: "x"},
		},
		{
			name:     "duplicate",
			def:      SubagentDefinition{Name: "writer", New: echoSubagent},
			expectIs: ErrDuplicateSubagent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewSubagentRegistry(SubagentDefinition{Name: "writer", New: echoSubagent})
			require.NoError(t, err)

			err = reg.Register(tt.def)

			require.Error(t, err)
			if tt.expectIs != nil {
				assert.ErrorIs(t, err, tt.expectIs)
			}
			assert.Equal(t, 1, reg.Len())
		})
	}
}

func TestSubagentRegistry_NilReceiver(t *testing.T) {
	var reg *SubagentRegistry

	assert.Equal(t, 0, reg.Len())
	assert.False(t, reg.Has("x"))
	assert.Nil(t, reg.Names())
	_, err := reg.Get("x")
	assert.ErrorIs(t, err, ErrSubagentNotFound)
}
