package mock

import (
	"context"
	"strings"
	"sync"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, returns a single label built from the name.
	GenerateFunc func(ctx context.Context, template, name string) (string, error)

	mu        sync.Mutex
	callCount int
	names     []string
	templates []string
}

// NewMockGenerator creates a mock generator with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockGenerator().
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate records the call and returns a canned response.
// Default behavior: "태그: #<name>" with whitespace removed from the name.
func (m *MockGenerator) Generate(ctx context.Context, template, name string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.names = append(m.names, name)
	m.templates = append(m.templates, template)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, template, name)
	}

	return "태그: #" + strings.Join(strings.Fields(name), ""), nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Names returns the names passed to Generate, in call order.
func (m *MockGenerator) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...)
}

// Templates returns the templates passed to Generate, in call order.
func (m *MockGenerator) Templates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.templates...)
}

// Reset clears the call history and custom functions.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.names = nil
	m.templates = nil
	m.GenerateFunc = nil
}
