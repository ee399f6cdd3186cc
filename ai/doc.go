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


// Package ai provides abstractions for the model services used by tagger.
//
// This package defines interfaces for the two model roles in a tagging run.
// The labelling loop depends on these abstractions rather than on a concrete
// client, so runs can be tested without a model server.
//
// # Design Principles
//
// The package is designed around three interfaces:
//
//   - Generator: renders the instruction template for one record and returns raw model text
//   - Judge: scores a batch of generations and proposes a revised template
//   - AIProvider: aggregates both for convenient initialization
//
// Templates use f-string syntax with a single {food_name} slot. RenderTemplate
// and CheckTemplate are shared by every implementation.
//
// # Implementation Packages
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewGenerator, etc.) return
// INTERFACE types to prevent accidental coupling to concrete implementations.
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
// Test utility constructors (mock.NewMockGenerator, mock.NewMockJudge)
// return CONCRETE types to enable test assertions and behavior injection.
//
//	gen := mock.NewMockGenerator()
//	gen.GenerateFunc = func(ctx context.Context, template, name string) (string, error) { ... }
//	count := gen.CallCount()
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	raw, err := provider.Generator().Generate(ctx, template, "김치찌개")
package ai
