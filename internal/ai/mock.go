package ai

import (
	"context"
	"sync"
)

// MockGenerator records requests and replays canned replies in tests.
type MockGenerator struct {
	mu      sync.Mutex
	Reply   string
	Replies []string
	Err     error
	Delay   func(ctx context.Context) error
	calls   []Request
}

func (m *MockGenerator) Generate(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	n := len(m.calls)
	m.mu.Unlock()

	if m.Delay != nil {
		if err := m.Delay(ctx); err != nil {
			return "", err
		}
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Replies) > 0 {
		if n <= len(m.Replies) {
			return m.Replies[n-1], nil
		}
		return m.Replies[len(m.Replies)-1], nil
	}
	return m.Reply, nil
}

func (m *MockGenerator) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}
