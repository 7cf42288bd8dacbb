package llm

import (
	"context"
	"sync"
)

// MockClient is a scripted LLMClient for tests. Responses are returned in
// order; once the script is exhausted the last response repeats. Set Err to
// make every call fail.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	index     int

	Err error

	// Requests records every request received, in order.
	Requests []CompletionRequest
}

// NewMockClient creates a mock client returning the given responses.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{responses: responses}
}

// Complete implements the LLMClient interface.
func (m *MockClient) Complete(_ context.Context, in CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, in)

	if m.Err != nil {
		return CompletionResponse{}, m.Err
	}
	if len(m.responses) == 0 {
		return CompletionResponse{}, NewError(ErrorTypeEmptyResponse, "mock has no responses")
	}

	resp := m.responses[m.index]
	if m.index < len(m.responses)-1 {
		m.index++
	}
	return CompletionResponse{Content: resp, StopReason: "end_turn"}, nil
}

// GetModelName returns a fixed mock model name.
func (m *MockClient) GetModelName() string {
	return "mock-model"
}

// CallCount returns how many completions have been requested.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
