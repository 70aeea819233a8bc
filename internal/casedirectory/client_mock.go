package casedirectory

import (
	"context"
	"sync"

	id "esupervision/pkg/domain"
	"esupervision/pkg/platform/sentinel"
)

// MockClient serves deterministic directory data for tests and redis-less
// development mode. Unknown references behave exactly as the real API:
// not-found on Get, silently absent from GetBatch.
type MockClient struct {
	mu      sync.RWMutex
	cases   map[id.CaseReference]ContactDetails
	invalid map[id.CaseReference]bool // references whose Validate always fails

	// Err, when set, is returned by every call; used to simulate outages.
	Err error
}

func NewMock() *MockClient {
	return &MockClient{
		cases:   make(map[id.CaseReference]ContactDetails),
		invalid: make(map[id.CaseReference]bool),
	}
}

// Add registers a case the mock will resolve.
func (c *MockClient) Add(details ContactDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cases[details.CaseReference] = details
}

// RejectDetails makes Validate return false for the reference.
func (c *MockClient) RejectDetails(ref id.CaseReference) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalid[ref] = true
}

func (c *MockClient) Get(_ context.Context, ref id.CaseReference) (ContactDetails, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Err != nil {
		return ContactDetails{}, c.Err
	}
	details, ok := c.cases[ref]
	if !ok {
		return ContactDetails{}, sentinel.ErrNotFound
	}
	return details, nil
}

func (c *MockClient) Validate(_ context.Context, ref id.CaseReference, _ PersonalDetails) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Err != nil {
		return false, c.Err
	}
	if _, ok := c.cases[ref]; !ok {
		return false, sentinel.ErrNotFound
	}
	return !c.invalid[ref], nil
}

func (c *MockClient) GetBatch(_ context.Context, refs []id.CaseReference) (map[id.CaseReference]ContactDetails, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Err != nil {
		return nil, c.Err
	}
	out := make(map[id.CaseReference]ContactDetails)
	for _, ref := range refs {
		if details, ok := c.cases[ref]; ok {
			out[ref] = details
		}
	}
	return out, nil
}
