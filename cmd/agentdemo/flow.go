package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rickchristie/agentcore"
	"github.com/rickchristie/agentcore/agent"
	"github.com/rickchristie/agentcore/config"
	"github.com/rickchristie/agentcore/schema"
	"github.com/rickchristie/agentcore/steps"
)

// CheckpointPublish gates the final step on a human decision.
const CheckpointPublish = "publish"

var intakeSchema = schema.MustCompile(schema.Object(map[string]*schema.Property{
	"topic": schema.String("What to write about").MinLength(3).MaxLength(200),
}, "topic"))

// houseStyle seeds the agent's memory with the notes every draft is written against.
var houseStyle = []string{
	"Style: open the paragraph with the most surprising fact.",
	"Style: keep the paragraph under 120 words.",
}

func seedMemory(ctx context.Context, mem agentcore.MemoryProvider) error {
	for _, note := range houseStyle {
		if _, err := mem.Store(ctx, agentcore.MemoryItem{
			Content:  note,
			Metadata: map[string]any{"kind": "style"},
		}); err != nil {
			return err
		}
	}
	return nil
}

// writerFlow researches a topic, drafts a short piece and publishes it once the draft
// is approved.
//
// With no task given, the topic comes from the agent's task queue. The intake step
// records the topic, so a resumed run can recover it from the skipped step's output
// even when neither a task nor a queued topic is available.
func writerFlow(model llms.Model) agent.Flow {
	return agent.FlowFunc(func(ctx context.Context, a *agent.Agent, task any) (any, error) {
		var taskID string
		if task == nil {
			next, err := nextTopic(ctx, a)
			if err != nil {
				return nil, err
			}
			taskID = next.ID
			if next.ID != "" {
				task = next.Payload["topic"]
			}
		}

		topic, err := a.ExecuteStep(ctx, "intake",
			steps.Validated(intakeSchema, func(_ context.Context, step agentcore.StepContext) (any, error) {
				t, _ := step.Input("topic")
				return strings.TrimSpace(t.(string)), nil
			}),
			map[string]any{"topic": task}, nil)
		if err != nil {
			return nil, err
		}

		notes, err := a.ExecuteStep(ctx, "research",
			steps.Generate(model, steps.Template("List three key facts about {{.topic}}."),
				steps.WithSystem("You are a careful researcher. Be brief.")),
			map[string]any{"topic": topic}, nil)
		if err != nil {
			return nil, err
		}

		style, err := recallStyle(ctx, a)
		if err != nil {
			return nil, err
		}
		draft, err := a.ExecuteStep(ctx, "draft",
			steps.Generate(model, steps.Template("Write one paragraph about {{.topic}} using these notes:\n{{.notes}}{{.style}}")),
			map[string]any{"topic": topic, "notes": notes, "style": style}, nil)
		if err != nil {
			return nil, err
		}

		if err := gatePublish(ctx, a, topic, draft); err != nil {
			return nil, err
		}

		out, err := a.ExecuteStep(ctx, "publish",
			func(_ context.Context, step agentcore.StepContext) (any, error) {
				d, _ := step.Input("draft")
				return fmt.Sprintf("# %v\n\n%v", topic, d), nil
			},
			map[string]any{"draft": draft}, map[string]any{"channel": "stdout"})
		if err != nil {
			return nil, err
		}
		return out, remember(ctx, a, taskID, topic, out)
	})
}

// nextTopic takes the next queued task. It returns a zero task when the agent has no
// task provider or the queue is empty.
func nextTopic(ctx context.Context, a *agent.Agent) (agentcore.Task, error) {
	tasks := a.Tasks()
	if tasks == nil {
		return agentcore.Task{}, nil
	}
	next, err := tasks.Next(ctx)
	if errors.Is(err, agentcore.ErrNoTask) {
		return agentcore.Task{}, nil
	}
	return next, err
}

// recallStyle looks up the house style notes for the draft prompt.
func recallStyle(ctx context.Context, a *agent.Agent) (string, error) {
	mem := a.Memory()
	if mem == nil {
		return "", nil
	}
	items, err := mem.Query(ctx, "paragraph style", agentcore.QueryOptions{
		Limit:   5,
		Filters: map[string]any{"kind": "style"},
	})
	if err != nil || len(items) == 0 {
		return "", err
	}
	var b strings.Builder
	b.WriteString("\nFollow the house style:")
	for _, item := range items {
		b.WriteString("\n- ")
		b.WriteString(item.Content)
	}
	return b.String(), nil
}

// remember keeps the published piece in memory and completes the queued task it came
// from, if any.
func remember(ctx context.Context, a *agent.Agent, taskID string, topic, out any) error {
	if mem := a.Memory(); mem != nil {
		if _, err := mem.Store(ctx, agentcore.MemoryItem{
			Content:  fmt.Sprint(out),
			Metadata: map[string]any{"kind": "published", "topic": topic},
		}); err != nil {
			return err
		}
	}
	if tasks := a.Tasks(); tasks != nil && taskID != "" {
		return tasks.Complete(ctx, taskID, out)
	}
	return nil
}

// gatePublish asks the governance provider about publishing and offers the publish
// checkpoint when approval is required. Without a provider every draft is offered.
func gatePublish(ctx context.Context, a *agent.Agent, topic, draft any) error {
	verdict := agentcore.PolicyDecision{Allowed: true, RequiresApproval: true}
	if gov := a.Governance(); gov != nil {
		var err error
		verdict, err = gov.Check(ctx, CheckpointPublish, map[string]any{"topic": topic})
		if err != nil {
			return err
		}
	}
	if !verdict.Allowed {
		return fmt.Errorf("publishing %q is not allowed: %s", topic, verdict.Reason)
	}
	if !verdict.RequiresApproval {
		return nil
	}
	return a.OfferCheckpoint(ctx, CheckpointPublish, map[string]any{"topic": topic, "draft": draft})
}

// openModel builds the model named by the config.
func openModel(cfg config.ModelConfig, delay time.Duration) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		token := os.Getenv(cfg.TokenEnv)
		if token == "" {
			return nil, fmt.Errorf("%s is not set", cfg.TokenEnv)
		}
		opts := []openai.Option{openai.WithToken(token)}
		if cfg.Name != "" {
			opts = append(opts, openai.WithModel(cfg.Name))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	default:
		return &echoModel{delay: delay}, nil
	}
}

// echoModel answers every prompt by restating it. It needs no credentials, and its
// delay leaves time to press Ctrl-C mid-run.
type echoModel struct {
	delay time.Duration
}

func (m *echoModel) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var prompt string
	if len(messages) > 0 {
		for _, part := range messages[len(messages)-1].Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt = text.Text
			}
		}
	}
	if prompt == "" {
		return nil, errors.New("echo: empty prompt")
	}

	words := len(strings.Fields(prompt))
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:    "(echo) " + prompt,
			StopReason: "stop",
			GenerationInfo: map[string]any{
				"PromptTokens":     words,
				"CompletionTokens": words + 1,
			},
		}},
	}, nil
}

func (m *echoModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}
