package mock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/poiesic/tagger/core"
)

// MockJudge is a test double for ai.Judge.
type MockJudge struct {
	// JudgeFunc is called by Judge if set.
	// If nil, approves the current template with a perfect score.
	JudgeFunc func(ctx context.Context, template string, cases []core.Invocation) (string, error)

	mu        sync.Mutex
	callCount int
	cases     [][]core.Invocation
}

// NewMockJudge creates a mock judge with default behavior.
func NewMockJudge() *MockJudge {
	return &MockJudge{}
}

// Judge records the call and returns a canned verdict.
func (m *MockJudge) Judge(ctx context.Context, template string, cases []core.Invocation) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.cases = append(m.cases, append([]core.Invocation(nil), cases...))
	fn := m.JudgeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, template, cases)
	}
	return VerdictJSON(template, 100), nil
}

// CallCount returns the number of times Judge was called.
func (m *MockJudge) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Cases returns the test cases passed to each Judge call.
func (m *MockJudge) Cases() [][]core.Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]core.Invocation(nil), m.cases...)
}

// Reset clears the call history and custom functions.
func (m *MockJudge) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.cases = nil
	m.JudgeFunc = nil
}

// VerdictJSON builds a well-formed judge response proposing template with score.
func VerdictJSON(template string, score float64) string {
	data, _ := json.Marshal(map[string]any{
		"analysis_results": map[string]any{
			"strengths":  []string{},
			"weaknesses": []string{},
		},
		"improvement_direction": []string{},
		"optimized_new_prompt":  template,
		"optimization_score":    score,
	})
	return string(data)
}
