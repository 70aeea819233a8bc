package store

import (
	"context"
	"sync"
	"time"

	"esupervision/internal/offender/models"
	id "esupervision/pkg/domain"
	"esupervision/pkg/platform/sentinel"
)

// MemoryStore is the in-memory Store used by unit tests and redis-less
// development mode.
type MemoryStore struct {
	mu        sync.RWMutex
	offenders map[id.OffenderID]models.Offender
}

func NewMemory() *MemoryStore {
	return &MemoryStore{offenders: make(map[id.OffenderID]models.Offender)}
}

func (s *MemoryStore) Save(_ context.Context, offender models.Offender) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.offenders[offender.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.offenders {
		if existing.CaseReference == offender.CaseReference {
			return sentinel.ErrConflict
		}
	}
	s.offenders[offender.ID] = offender
	return nil
}

func (s *MemoryStore) Update(_ context.Context, offender models.Offender) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.offenders[offender.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.offenders[offender.ID] = offender
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, offenderID id.OffenderID) (models.Offender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	offender, ok := s.offenders[offenderID]
	if !ok {
		return models.Offender{}, sentinel.ErrNotFound
	}
	return offender, nil
}

func (s *MemoryStore) FindByCaseReference(_ context.Context, ref id.CaseReference) (models.Offender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, offender := range s.offenders {
		if offender.CaseReference == ref {
			return offender, nil
		}
	}
	return models.Offender{}, sentinel.ErrNotFound
}

func (s *MemoryStore) ListDueOn(_ context.Context, day time.Time) ([]models.Offender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []models.Offender
	for _, offender := range s.offenders {
		if offender.Status == models.StatusVerified && offender.DueOn(day) {
			due = append(due, offender)
		}
	}
	return due, nil
}
