// Package steps provides reusable work functions for agent steps.
//
// The builders return agentcore.StepFunc values, so the engine still wraps every call
// with hooks, timing and history:
//
//	summarize := steps.Generate(model, steps.Template("Summarize:\n{{.text}}"))
//	out, err := a.ExecuteStep(ctx, "summarize", summarize, map[string]any{"text": doc}, nil)
package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"github.com/rickchristie/agentcore"
	"github.com/rickchristie/agentcore/schema"
)

// ErrEmptyResponse is returned when the model answers without any choice.
var ErrEmptyResponse = errors.New("steps: empty response from model")

// Prompt renders the prompt text for a generation step.
type Prompt func(step agentcore.StepContext) (string, error)

// Text is a fixed prompt.
func Text(s string) Prompt {
	return func(agentcore.StepContext) (string, error) { return s, nil }
}

// FromInput uses the step input named key as the prompt. The input must be a string.
func FromInput(key string) Prompt {
	return func(step agentcore.StepContext) (string, error) {
		v, ok := step.Input(key)
		if !ok {
			return "", fmt.Errorf("step %q: missing input %q", step.Name(), key)
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("step %q: input %q is %T, not a string", step.Name(), key, v)
		}
		return s, nil
	}
}

// Template renders a Go template against the step inputs, e.g. "Summarize: {{.text}}".
func Template(tmpl string) Prompt {
	return func(step agentcore.StepContext) (string, error) {
		inputs := step.Inputs()
		vars := make([]string, 0, len(inputs))
		for k := range inputs {
			vars = append(vars, k)
		}
		out, err := prompts.NewPromptTemplate(tmpl, vars).Format(inputs)
		if err != nil {
			return "", fmt.Errorf("step %q: render prompt: %w", step.Name(), err)
		}
		return out, nil
	}
}

// Usage is the token usage of one model call, normalized across providers.
type Usage struct {
	InputTokens       int `json:"input_tokens"`
	OutputTokens      int `json:"output_tokens"`
	TotalTokens       int `json:"total_tokens"`
	CachedInputTokens int `json:"cached_input_tokens,omitempty"`
	ReasoningTokens   int `json:"reasoning_tokens,omitempty"`
}

// Completion is the output of a Complete step.
type Completion struct {
	Text       string `json:"text"`
	StopReason string `json:"stop_reason,omitempty"`
	Usage      Usage  `json:"usage"`
}

type generateConfig struct {
	system      string
	callOptions []llms.CallOption
}

// Option configures a generation step.
type Option func(*generateConfig)

// WithSystem prepends a system message to every call.
func WithSystem(prompt string) Option {
	return func(c *generateConfig) { c.system = prompt }
}

// WithCallOptions passes options such as llms.WithTemperature to the model.
func WithCallOptions(opts ...llms.CallOption) Option {
	return func(c *generateConfig) { c.callOptions = append(c.callOptions, opts...) }
}

// Generate returns work that sends the rendered prompt to model and outputs the text
// of the first choice.
func Generate(model llms.Model, prompt Prompt, opts ...Option) agentcore.StepFunc {
	complete := Complete(model, prompt, opts...)
	return func(ctx context.Context, step agentcore.StepContext) (any, error) {
		out, err := complete(ctx, step)
		if err != nil {
			return nil, err
		}
		return out.(Completion).Text, nil
	}
}

// Complete is like Generate but outputs a Completion carrying the stop reason and
// token usage.
func Complete(model llms.Model, prompt Prompt, opts ...Option) agentcore.StepFunc {
	cfg := generateConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	return func(ctx context.Context, step agentcore.StepContext) (any, error) {
		text, err := prompt(step)
		if err != nil {
			return nil, err
		}

		var messages []llms.MessageContent
		if cfg.system != "" {
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, cfg.system))
		}
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, text))

		resp, err := model.GenerateContent(ctx, messages, cfg.callOptions...)
		if err != nil {
			return nil, err
		}
		if resp == nil || len(resp.Choices) == 0 {
			return nil, ErrEmptyResponse
		}

		choice := resp.Choices[0]
		return Completion{
			Text:       choice.Content,
			StopReason: choice.StopReason,
			Usage:      usageOf(choice.GenerationInfo),
		}, nil
	}
}

// GenerateJSON returns work that asks model for a JSON document, decodes it and
// validates it against out. Markdown code fences around the document are ignored.
func GenerateJSON(model llms.Model, prompt Prompt, out *schema.Schema, opts ...Option) agentcore.StepFunc {
	opts = append([]Option{WithCallOptions(llms.WithJSONMode())}, opts...)
	generate := Generate(model, prompt, opts...)

	return func(ctx context.Context, step agentcore.StepContext) (any, error) {
		raw, err := generate(ctx, step)
		if err != nil {
			return nil, err
		}
		var doc any
		if err := json.Unmarshal([]byte(stripFence(raw.(string))), &doc); err != nil {
			return nil, fmt.Errorf("step %q: model output is not JSON: %w", step.Name(), err)
		}
		if err := out.Validate(doc); err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name(), err)
		}
		return doc, nil
	}
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// usageOf reads token counts from GenerationInfo. Providers disagree on key names.
func usageOf(info map[string]any) Usage {
	if info == nil {
		return Usage{}
	}
	u := Usage{
		InputTokens:       firstInt(info, "PromptTokens", "InputTokens", "input_tokens"),
		OutputTokens:      firstInt(info, "CompletionTokens", "OutputTokens", "output_tokens"),
		CachedInputTokens: firstInt(info, "PromptCachedTokens", "CacheReadInputTokens", "CachedTokens"),
		ReasoningTokens:   firstInt(info, "ReasoningTokens", "CompletionReasoningTokens", "ThinkingTokens"),
	}
	u.TotalTokens = firstInt(info, "TotalTokens", "total_tokens")
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u
}

func firstInt(m map[string]any, keys ...string) int {
	for _, k := range keys {
		var n int
		switch v := m[k].(type) {
		case int:
			n = v
		case int32:
			n = int(v)
		case int64:
			n = int(v)
		case float64:
			n = int(v)
		case float32:
			n = int(v)
		}
		if n > 0 {
			return n
		}
	}
	return 0
}
