package mock

import (
	"context"
	"sync"
)

// GenerateCall records the arguments of one Generate call.
type GenerateCall struct {
	System string
	User   string
}

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, the user message is echoed back.
	GenerateFunc func(ctx context.Context, system, user string) (string, error)

	mu    sync.Mutex
	calls []GenerateCall
}

// NewMockGenerator creates a mock generator with default echo behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate records the call and returns GenerateFunc's result or user.
func (m *MockGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, GenerateCall{System: system, User: user})
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, system, user)
	}
	return user, nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall returns the most recent call and false if Generate was never called.
func (m *MockGenerator) LastCall() (GenerateCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return GenerateCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}
