package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/rickchristie/agentcore"
	"github.com/rickchristie/agentcore/agent"
	"github.com/rickchristie/agentcore/internal/tt"
	"github.com/rickchristie/agentcore/schema"
)

func stepWith(name string, inputs map[string]any) agentcore.StepContext {
	return agentcore.NewStepContext(name, inputs, nil)
}

func TestPrompts(t *testing.T) {
	tests := []struct {
		name     string
		prompt   Prompt
		inputs   map[string]any
		expected string
		wantErr  bool
	}{
		{
			name:     "fixed text",
			prompt:   Text("hello"),
			expected: "hello",
		},
		{
			name:     "from input",
			prompt:   FromInput("q"),
			inputs:   map[string]any{"q": "what is due?"},
			expected: "what is due?",
		},
		{
			name:    "missing input",
			prompt:  FromInput("q"),
			wantErr: true,
		},
		{
			name:    "non-string input",
			prompt:  FromInput("q"),
			inputs:  map[string]any{"q": 3},
			wantErr: true,
		},
		{
			name:     "template",
			prompt:   Template("Summarize {{.doc}} for {{.who}}"),
			inputs:   map[string]any{"doc": "the report", "who": "ops"},
			expected: "Summarize the report for ops",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.prompt(stepWith("s", tc.inputs))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestGenerate(t *testing.T) {
	model := tt.NewMockModel().AddResponse("a short summary", 12, 4)
	work := Generate(model, FromInput("text"),
		WithSystem("You are terse."),
		WithCallOptions(llms.WithTemperature(0.2)),
	)

	out, err := work(context.Background(), stepWith("summarize", map[string]any{"text": "long text"}))
	require.NoError(t, err)
	assert.Equal(t, "a short summary", out)

	require.Len(t, model.CapturedMessages, 1)
	msgs := model.CapturedMessages[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	assert.Equal(t, "long text", model.LastPrompt())
	assert.InDelta(t, 0.2, model.CapturedOptions[0].Temperature, 1e-9)
}

func TestComplete_NormalizesUsage(t *testing.T) {
	tests := []struct {
		name     string
		info     map[string]any
		expected Usage
	}{
		{
			name:     "openai style",
			info:     map[string]any{"PromptTokens": 10, "CompletionTokens": 5, "PromptCachedTokens": 2},
			expected: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, CachedInputTokens: 2},
		},
		{
			name:     "anthropic style",
			info:     map[string]any{"InputTokens": 7, "OutputTokens": 3, "CacheReadInputTokens": 1},
			expected: Usage{InputTokens: 7, OutputTokens: 3, TotalTokens: 10, CachedInputTokens: 1},
		},
		{
			name:     "snake case with explicit total",
			info:     map[string]any{"input_tokens": float64(4), "output_tokens": int64(6), "total_tokens": int32(11)},
			expected: Usage{InputTokens: 4, OutputTokens: 6, TotalTokens: 11},
		},
		{
			name:     "reasoning tokens",
			info:     map[string]any{"PromptTokens": 1, "CompletionTokens": 1, "ReasoningTokens": 9},
			expected: Usage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2, ReasoningTokens: 9},
		},
		{
			name: "no info",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			model := tt.NewMockModel().AddRawResponse(&llms.ContentResponse{
				Choices: []*llms.ContentChoice{{Content: "ok", StopReason: "stop", GenerationInfo: tc.info}},
			})
			out, err := Complete(model, Text("hi"))(context.Background(), stepWith("c", nil))
			require.NoError(t, err)
			c := out.(Completion)
			assert.Equal(t, "ok", c.Text)
			assert.Equal(t, "stop", c.StopReason)
			assert.Equal(t, tc.expected, c.Usage)
		})
	}
}

func TestGenerate_Failures(t *testing.T) {
	boom := errors.New("rate limited")
	model := tt.NewMockModel().
		AddError(boom).
		AddRawResponse(&llms.ContentResponse{})

	work := Generate(model, Text("hi"))
	_, err := work(context.Background(), stepWith("g", nil))
	assert.ErrorIs(t, err, boom)

	_, err = work(context.Background(), stepWith("g", nil))
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = Generate(model, FromInput("missing"))(context.Background(), stepWith("g", nil))
	assert.Error(t, err)
	assert.Equal(t, 2, model.CallCount(), "prompt errors do not reach the model")
}

var verdictSchema = schema.MustCompile(schema.Object(map[string]*schema.Property{
	"approved": schema.Boolean("Whether the draft is approved"),
	"notes":    schema.String("Reviewer notes"),
}, "approved"))

func TestGenerateJSON(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		expected any
		wantErr  bool
	}{
		{
			name:     "plain document",
			reply:    `{"approved": true}`,
			expected: map[string]any{"approved": true},
		},
		{
			name:     "fenced document",
			reply:    "```json\n{\"approved\": false, \"notes\": \"tone\"}\n```",
			expected: map[string]any{"approved": false, "notes": "tone"},
		},
		{
			name:    "not json",
			reply:   "looks good to me",
			wantErr: true,
		},
		{
			name:    "fails schema",
			reply:   `{"notes": "missing verdict"}`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			model := tt.NewMockModel().AddResponse(tc.reply, 1, 1)
			out, err := GenerateJSON(model, Text("review"), verdictSchema)(context.Background(), stepWith("review", nil))
			assert.True(t, model.CapturedOptions[0].JSONMode)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestValidated(t *testing.T) {
	in := schema.MustCompile(schema.Object(map[string]*schema.Property{
		"ticket_id": schema.String("Ticket").Pattern(`^T-[0-9]+$`),
	}, "ticket_id"))

	calls := 0
	work := Validated(in, func(_ context.Context, step agentcore.StepContext) (any, error) {
		calls++
		id, _ := step.Input("ticket_id")
		return "loaded " + id.(string), nil
	})

	out, err := work(context.Background(), stepWith("load", map[string]any{"ticket_id": "T-9"}))
	require.NoError(t, err)
	assert.Equal(t, "loaded T-9", out)

	_, err = work(context.Background(), stepWith("load", map[string]any{"ticket_id": "nine"}))
	var verr *schema.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = work(context.Background(), stepWith("load", nil))
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, calls)
}

func TestValidatedOutput_FailsTheStep(t *testing.T) {
	a, err := agent.New(agent.DefaultConfig("reviewer"))
	require.NoError(t, err)

	work := ValidatedOutput(verdictSchema, func(context.Context, agentcore.StepContext) (any, error) {
		return map[string]any{"notes": "forgot the verdict"}, nil
	})

	_, err = a.Execute(context.Background(), agent.FlowFunc(
		func(ctx context.Context, a *agent.Agent, _ any) (any, error) {
			return a.ExecuteStep(ctx, "review", work, nil, nil)
		}), nil)

	require.Error(t, err)
	assert.Equal(t, agentcore.KindStepFailure, agentcore.ClassifyError(err))
	last, ok := a.Session().Last()
	require.True(t, ok)
	assert.False(t, last.Success)
	assert.Nil(t, last.Output)
}

func TestGenerate_InsideAgent(t *testing.T) {
	model := tt.NewMockModel().
		AddResponse("outline", 5, 2).
		AddResponse("draft from outline", 8, 3)

	a, err := agent.New(agent.DefaultConfig("writer"))
	require.NoError(t, err)

	out, err := a.Execute(context.Background(), agent.FlowFunc(
		func(ctx context.Context, a *agent.Agent, task any) (any, error) {
			outline, err := a.ExecuteStep(ctx, "outline",
				Generate(model, Template("Outline {{.topic}}")), map[string]any{"topic": task}, nil)
			if err != nil {
				return nil, err
			}
			return a.ExecuteStep(ctx, "draft",
				Generate(model, Template("Draft from {{.outline}}")), map[string]any{"outline": outline}, nil)
		}), "billing")

	require.NoError(t, err)
	assert.Equal(t, "draft from outline", out)
	assert.Equal(t, "Draft from outline", model.LastPrompt())
	assert.Equal(t, 2, a.Session().Len())
}
