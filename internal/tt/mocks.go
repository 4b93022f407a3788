package tt

import (
	"context"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// -----------------------------------------------------------------------------
// MockModel - implements llms.Model with queued responses
// -----------------------------------------------------------------------------

// MockModel is a configurable llms.Model. Responses and errors are consumed in call
// order; once the queue runs out it answers with DefaultReply.
type MockModel struct {
	mu        sync.Mutex
	responses []*llms.ContentResponse
	errors    []error
	callCount int

	// DefaultReply is returned when no queued response is left.
	DefaultReply string

	// CapturedMessages stores the messages passed to each GenerateContent call.
	CapturedMessages [][]llms.MessageContent

	// CapturedOptions stores the resolved call options of each call.
	CapturedOptions []llms.CallOptions
}

// NewMockModel creates a MockModel whose default reply is "done".
func NewMockModel() *MockModel {
	return &MockModel{DefaultReply: "done"}
}

// AddResponse queues a response with the given content and token counts, reported
// the way OpenAI-compatible providers report them.
func (m *MockModel) AddResponse(content string, inputTokens, outputTokens int) *MockModel {
	return m.AddRawResponse(&llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:    content,
			StopReason: "stop",
			GenerationInfo: map[string]any{
				"PromptTokens":     inputTokens,
				"CompletionTokens": outputTokens,
			},
		}},
	})
}

// AddRawResponse queues a raw ContentResponse. Use it for unusual shapes such as an
// empty Choices slice.
func (m *MockModel) AddRawResponse(resp *llms.ContentResponse) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	m.errors = append(m.errors, nil)
	return m
}

// AddError queues an error for the next call.
func (m *MockModel) AddError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, nil)
	m.errors = append(m.errors, err)
	return m
}

// CallCount returns the number of GenerateContent calls made so far.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPrompt returns the text of the final message of the most recent call.
func (m *MockModel) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.CapturedMessages) == 0 {
		return ""
	}
	msgs := m.CapturedMessages[len(m.CapturedMessages)-1]
	if len(msgs) == 0 {
		return ""
	}
	for _, part := range msgs[len(msgs)-1].Parts {
		if text, ok := part.(llms.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

// GenerateContent implements llms.Model.
func (m *MockModel) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.callCount
	m.callCount++
	m.CapturedMessages = append(m.CapturedMessages, messages)
	m.CapturedOptions = append(m.CapturedOptions, opts)

	if idx < len(m.responses) {
		if err := m.errors[idx]; err != nil {
			return nil, err
		}
		return m.responses[idx], nil
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.DefaultReply, StopReason: "stop"}},
	}, nil
}

// Call implements llms.Model.
func (m *MockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, options...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("mock model: empty response")
	}
	return resp.Choices[0].Content, nil
}

var _ llms.Model = (*MockModel)(nil)
