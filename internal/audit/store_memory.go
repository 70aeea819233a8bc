package audit

import (
	"context"
	"sync"

	id "esupervision/pkg/domain"
)

// MemoryStore is the in-memory audit sink used by unit tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) ListByOffender(_ context.Context, offenderID id.OffenderID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.OffenderID == offenderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListByCheckin(_ context.Context, checkinID id.CheckinID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.CheckinID == checkinID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every recorded event in append order; test helper.
func (s *MemoryStore) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events...)
}
