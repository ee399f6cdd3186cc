package openai

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
)

// recordingModel is an llms.Model that captures the messages and options
// of every call and replays canned responses.
type recordingModel struct {
	responses []string
	err       error
	messages  [][]llms.MessageContent
	options   []llms.CallOptions
}

func (m *recordingModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	m.messages = append(m.messages, messages)
	m.options = append(m.options, opts)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &llms.ContentResponse{}, nil
	}
	idx := (len(m.messages) - 1) % len(m.responses)
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.responses[idx]}},
	}, nil
}

func (m *recordingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func textOf(msg llms.MessageContent) string {
	for _, part := range msg.Parts {
		if tc, ok := part.(llms.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

var errModelDown = errors.New("model down")
