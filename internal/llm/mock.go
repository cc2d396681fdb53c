package llm

import (
	"context"
	"sync"
)

// MockClient is a configurable Client for tests. Responses are served from
// the queue first, then Response repeats; Err short-circuits everything.
type MockClient struct {
	mu            sync.Mutex
	Response      string
	ResponseQueue []string
	Err           error

	// Prompts records every prompt passed to Generate, for assertions.
	Prompts []string
}

func (m *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.ResponseQueue) > 0 {
		resp := m.ResponseQueue[0]
		m.ResponseQueue = m.ResponseQueue[1:]
		return resp, nil
	}
	return m.Response, nil
}
