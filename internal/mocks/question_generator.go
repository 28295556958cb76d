package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/scry-notes/internal/generation"
)

// MockQuestionGenerator implements generation.QuestionGenerator for testing
type MockQuestionGenerator struct {
	// GenerateQuestionFn allows test cases to mock the GenerateQuestion behavior
	GenerateQuestionFn func(ctx context.Context, title, content string) string

	// Question is returned when GenerateQuestionFn is nil. Empty means the fallback question.
	Question string

	mu     sync.Mutex
	calls  int
	titles []string
}

// Ensure MockQuestionGenerator implements generation.QuestionGenerator
var _ generation.QuestionGenerator = (*MockQuestionGenerator)(nil)

// GenerateQuestion implements generation.QuestionGenerator
func (m *MockQuestionGenerator) GenerateQuestion(ctx context.Context, title, content string) string {
	m.mu.Lock()
	m.calls++
	m.titles = append(m.titles, title)
	m.mu.Unlock()

	if m.GenerateQuestionFn != nil {
		return m.GenerateQuestionFn(ctx, title, content)
	}
	if m.Question == "" {
		return generation.FallbackQuestion(title)
	}
	return m.Question
}

// Calls returns how many times GenerateQuestion was called.
func (m *MockQuestionGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Titles returns the titles passed to GenerateQuestion, in call order.
func (m *MockQuestionGenerator) Titles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.titles...)
}
