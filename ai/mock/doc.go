// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Generator, ai.Judge,
// and ai.AIProvider for use in unit tests. The mocks let tagging runs execute
// without a model server and with fully scripted responses.
//
// # Usage in Tests
//
//	provider := mock.NewMockProvider()
//	gen := provider.(*mock.MockProvider).GetMockGenerator()
//	gen.GenerateFunc = func(ctx context.Context, template, name string) (string, error) {
//	    return "태그: #한식, #국물요리", nil
//	}
//
//	count := gen.CallCount()
//
// # Default Behavior
//
//   - MockGenerator: returns "태그: #<name>" for every call
//   - MockJudge: returns a verdict that keeps the template with score 100
//   - MockProvider: aggregates mock generator and judge
package mock
