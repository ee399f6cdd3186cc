// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/tagger/ai"
	"github.com/poiesic/tagger/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Judge implements ai.Judge using an OpenAI-compatible chat API.
type Judge struct {
	client      llms.Model
	temperature float64
	logger      *slog.Logger
}

// newJudge is an internal constructor that returns the concrete type.
func newJudge(config *ai.Config) (*Judge, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	token := config.JudgeToken
	if token == "" {
		token = "none"
	}
	client, err := openai.New(
		openai.WithBaseURL(config.JudgeHost),
		openai.WithToken(token),
		openai.WithModel(config.JudgeModel),
	)
	if err != nil {
		return nil, err
	}
	return newJudgeWithModel(client, config), nil
}

// newJudgeWithModel wraps an existing model client.
func newJudgeWithModel(client llms.Model, config *ai.Config) *Judge {
	return &Judge{
		client:      client,
		temperature: config.JudgeTemperature,
		logger:      slog.Default().With("component", "openai-judge"),
	}
}

// NewJudge creates a new judge using the provided configuration.
//
// Returns ai.Judge interface to enforce abstraction.
func NewJudge(config *ai.Config) (ai.Judge, error) {
	return newJudge(config)
}

// Judge asks the judge model to score the batch and revise the template.
// The raw response is returned unparsed.
func (j *Judge) Judge(ctx context.Context, template string, cases []core.Invocation) (string, error) {
	userPrompt, err := buildJudgeRequest(template, cases)
	if err != nil {
		return "", err
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(judgeSystemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(userPrompt),
			},
		},
	}

	response, err := j.client.GenerateContent(ctx, content, llms.WithTemperature(j.temperature))
	if err != nil {
		j.logger.Error("judge call failed", "cases", len(cases), "err", err)
		return "", err
	}
	if len(response.Choices) < 1 {
		return "", errors.New("judge returned no choices")
	}

	j.logger.Debug("judge responded", "cases", len(cases))
	return response.Choices[0].Content, nil
}

// buildJudgeRequest renders the judge user prompt for a template and its test cases.
func buildJudgeRequest(template string, cases []core.Invocation) (string, error) {
	if cases == nil {
		cases = []core.Invocation{}
	}
	casesJSON, err := json.MarshalIndent(cases, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode test cases: %w", err)
	}
	return judgeUserPrompt.Format(map[string]any{
		"existing_template": template,
		"test_cases":        string(casesJSON),
	})
}
