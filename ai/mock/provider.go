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


package mock

import "github.com/poiesic/tagger/ai"

// MockProvider is a test double for ai.AIProvider.
// It aggregates mock generator and judge instances.
type MockProvider struct {
	generator *MockGenerator
	judge     *MockJudge
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use GetMockGenerator()/GetMockJudge() to access concrete types for test assertions.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		generator: NewMockGenerator(),
		judge:     NewMockJudge(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
func NewMockProviderWithServices(generator *MockGenerator, judge *MockJudge) ai.AIProvider {
	return &MockProvider{
		generator: generator,
		judge:     judge,
	}
}

// Generator returns the mock generator.
func (p *MockProvider) Generator() ai.Generator {
	return p.generator
}

// Judge returns the mock judge.
func (p *MockProvider) Judge() ai.Judge {
	return p.judge
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockGenerator returns the underlying mock generator for test assertions.
func (p *MockProvider) GetMockGenerator() *MockGenerator {
	return p.generator
}

// GetMockJudge returns the underlying mock judge for test assertions.
func (p *MockProvider) GetMockJudge() *MockJudge {
	return p.judge
}
