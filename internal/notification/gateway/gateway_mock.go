package gateway

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a scripted in-memory provider for unit tests. FailOn marks
// send calls (1-based) that should error; StatusPages are returned in order
// per Statuses call.
type MockClient struct {
	mu          sync.Mutex
	sends       []SendRequest
	sendCount   int
	FailOn      map[int]bool
	StatusPages []StatusPage
	statusCalls int
}

func NewMock() *MockClient {
	return &MockClient{FailOn: make(map[int]bool)}
}

func (m *MockClient) Send(_ context.Context, req SendRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendCount++
	if m.FailOn[m.sendCount] {
		return "", fmt.Errorf("provider rejected send %d", m.sendCount)
	}
	m.sends = append(m.sends, req)
	return fmt.Sprintf("provider-%d", m.sendCount), nil
}

func (m *MockClient) Statuses(_ context.Context, _, _ string) (StatusPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls++
	if len(m.StatusPages) == 0 {
		return StatusPage{}, nil
	}
	page := m.StatusPages[0]
	m.StatusPages = m.StatusPages[1:]
	return page, nil
}

// Sent returns the successfully delivered requests in order.
func (m *MockClient) Sent() []SendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SendRequest(nil), m.sends...)
}

// StatusCalls reports how many pages were requested.
func (m *MockClient) StatusCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls
}
