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
	"log/slog"

	"github.com/poiesic/tagger/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using an OpenAI-compatible completion API.
type Generator struct {
	client llms.Model
	opts   []llms.CallOption
	logger *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken("none"),
		openai.WithModel(config.GeneratorModel),
	)
	if err != nil {
		return nil, err
	}
	return newGeneratorWithModel(client, config), nil
}

// newGeneratorWithModel wraps an existing model client.
func newGeneratorWithModel(client llms.Model, config *ai.Config) *Generator {
	opts := []llms.CallOption{llms.WithTemperature(config.Temperature)}
	if config.TopK > 0 {
		opts = append(opts, llms.WithTopK(config.TopK))
	}
	if config.TopP > 0 {
		opts = append(opts, llms.WithTopP(config.TopP))
	}
	if config.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(config.MaxTokens))
	}
	if config.RepeatPenalty > 0 {
		opts = append(opts, llms.WithRepetitionPenalty(config.RepeatPenalty))
	}
	return &Generator{
		client: client,
		opts:   opts,
		logger: slog.Default().With("component", "openai-generator"),
	}
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate renders the template for name and returns the raw completion.
func (g *Generator) Generate(ctx context.Context, template, name string) (string, error) {
	prompt, err := ai.RenderTemplate(template, name)
	if err != nil {
		return "", err
	}

	response, err := llms.GenerateFromSinglePrompt(ctx, g.client, prompt, g.opts...)
	if err != nil {
		g.logger.Debug("generation failed", "name", name, "err", err)
		return "", err
	}

	g.logger.Debug("generated", "name", name, "response", response)
	return response, nil
}
