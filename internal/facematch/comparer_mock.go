package facematch

import (
	"context"
	"sync"
)

// MockComparer returns scripted results keyed by snapshot key; Default is
// used for unscripted keys. Err, when set, fails every comparison.
type MockComparer struct {
	mu      sync.Mutex
	results map[string]Result
	calls   int

	Default Result
	Err     error
}

func NewMockComparer() *MockComparer {
	return &MockComparer{results: make(map[string]Result), Default: ResultNoMatch}
}

// Script sets the result returned for one snapshot key.
func (m *MockComparer) Script(snapshotKey string, result Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[snapshotKey] = result
}

func (m *MockComparer) Compare(_ context.Context, _, snapshotKey string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return "", m.Err
	}
	if result, ok := m.results[snapshotKey]; ok {
		return result, nil
	}
	return m.Default, nil
}

// Calls reports how many comparisons ran.
func (m *MockComparer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
