package mock

import (
	"context"
	"sync"
)

// SynthesisCall records the prompts passed to one Synthesize call.
type SynthesisCall struct {
	SystemPrompt string
	UserPrompt   string
}

// MockSynthesizer is a test double for ai.Synthesizer.
type MockSynthesizer struct {
	// SynthesizeFunc is called by Synthesize if set.
	// If nil, returns a fixed document derived from the user prompt.
	SynthesizeFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	mu    sync.Mutex
	calls []SynthesisCall
}

// NewMockSynthesizer creates a mock synthesizer with default behavior.
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

// WithSynthesizeFunc sets custom behavior.
func (m *MockSynthesizer) WithSynthesizeFunc(fn func(ctx context.Context, systemPrompt, userPrompt string) (string, error)) *MockSynthesizer {
	m.SynthesizeFunc = fn
	return m
}

// Synthesize records the call and returns the configured result.
func (m *MockSynthesizer) Synthesize(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, SynthesisCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt})
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, systemPrompt, userPrompt)
	}
	return "# Synthesized\n\n" + userPrompt, nil
}

// CallCount returns the number of Synthesize calls.
func (m *MockSynthesizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns the recorded prompts.
func (m *MockSynthesizer) Calls() []SynthesisCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SynthesisCall(nil), m.calls...)
}

// Reset clears recorded calls and custom behavior.
func (m *MockSynthesizer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.SynthesizeFunc = nil
}
