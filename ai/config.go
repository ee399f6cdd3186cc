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


package ai

import (
	"errors"
	"net/url"
	"strings"
)

// Config holds configuration for the generation and judge services.
// Both speak the OpenAI-compatible chat API.
type Config struct {
	// GeneratorHost is the base URL for the label generation service.
	// Example: "http://localhost:11434/v1" for a local Ollama server
	GeneratorHost string

	// GeneratorModel is the model that produces labels for each record.
	// Example: "gemma3:27b"
	GeneratorModel string

	// Sampling parameters for the generator. Zero values are left to the server.
	Temperature   float64
	TopK          int
	TopP          float64
	MaxTokens     int
	RepeatPenalty float64

	// JudgeHost is the base URL for the judge service.
	JudgeHost string

	// JudgeModel scores label batches and proposes revised templates.
	JudgeModel string

	// JudgeToken is the API key sent to the judge service.
	// Local servers ignore it; "none" is sent when empty.
	JudgeToken string

	// JudgeTemperature is the sampling temperature for the judge.
	JudgeTemperature float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithGeneratorHost sets the generation service host URL.
func WithGeneratorHost(host string) ConfigOption {
	return func(c *Config) {
		c.GeneratorHost = host
	}
}

// WithJudgeHost sets the judge service host URL.
func WithJudgeHost(host string) ConfigOption {
	return func(c *Config) {
		c.JudgeHost = host
	}
}

// WithHost sets both generator and judge hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.GeneratorHost = host
		c.JudgeHost = host
	}
}

// WithGeneratorModel sets the generator model identifier.
func WithGeneratorModel(model string) ConfigOption {
	return func(c *Config) {
		c.GeneratorModel = model
	}
}

// WithJudgeModel sets the judge model identifier.
func WithJudgeModel(model string) ConfigOption {
	return func(c *Config) {
		c.JudgeModel = model
	}
}

// WithJudgeToken sets the judge API key.
func WithJudgeToken(token string) ConfigOption {
	return func(c *Config) {
		c.JudgeToken = token
	}
}

// WithSampling sets the generator sampling parameters.
func WithSampling(temperature float64, topK int, topP float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = temperature
		c.TopK = topK
		c.TopP = topP
	}
}

// WithMaxTokens caps the generator response length.
func WithMaxTokens(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithRepeatPenalty sets the generator repetition penalty.
func WithRepeatPenalty(p float64) ConfigOption {
	return func(c *Config) {
		c.RepeatPenalty = p
	}
}

// WithJudgeTemperature sets the judge sampling temperature.
func WithJudgeTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.JudgeTemperature = t
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, both generator and judge use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		GeneratorHost:    defaultHost,
		GeneratorModel:   "gemma3:27b",
		Temperature:      0.0,
		TopK:             40,
		TopP:             0.9,
		MaxTokens:        512,
		RepeatPenalty:    1.1,
		JudgeHost:        defaultHost,
		JudgeModel:       "gemma3:27b",
		JudgeTemperature: 0.7,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithGeneratorHost("http://localhost:11434"),
//	    WithJudgeHost("https://generativelanguage.googleapis.com/v1beta/openai"),
//	    WithJudgeModel("gemini-2.0-flash"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// A host given without any path gets the /v1 suffix expected by most
// OpenAI-compatible servers (Ollama, LocalAI, vLLM). Hosts that already
// carry a path are left alone.
func (c *Config) Normalize() {
	c.GeneratorHost = normalizeHost(c.GeneratorHost)
	c.JudgeHost = normalizeHost(c.JudgeHost)
}

func normalizeHost(host string) string {
	if host == "" {
		return host
	}
	host = strings.TrimSuffix(host, "/")
	u, err := url.Parse(host)
	if err != nil || u.Path != "" {
		return host
	}
	return host + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.GeneratorHost == "" {
		return errors.New("ai config: GeneratorHost is required")
	}
	if c.GeneratorModel == "" {
		return errors.New("ai config: GeneratorModel is required")
	}
	if c.JudgeHost == "" {
		return errors.New("ai config: JudgeHost is required")
	}
	if c.JudgeModel == "" {
		return errors.New("ai config: JudgeModel is required")
	}
	if c.Temperature < 0 || c.JudgeTemperature < 0 {
		return errors.New("ai config: temperatures must not be negative")
	}
	if c.TopP < 0 || c.TopP > 1 {
		return errors.New("ai config: TopP must be between 0 and 1")
	}
	if c.TopK < 0 || c.MaxTokens < 0 {
		return errors.New("ai config: TopK and MaxTokens must not be negative")
	}
	return nil
}
