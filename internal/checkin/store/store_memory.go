package store

import (
	"context"
	"sync"
	"time"

	"esupervision/internal/checkin/models"
	offendermodels "esupervision/internal/offender/models"
	id "esupervision/pkg/domain"
	"esupervision/pkg/platform/sentinel"
)

// MemoryStore is the in-memory Store used by unit tests.
type MemoryStore struct {
	mu       sync.RWMutex
	checkins map[id.CheckinID]models.Checkin
}

func NewMemory() *MemoryStore {
	return &MemoryStore{checkins: make(map[id.CheckinID]models.Checkin)}
}

type dateKey struct {
	offender id.OffenderID
	day      time.Time
}

func (s *MemoryStore) keyOf(c models.Checkin) dateKey {
	return dateKey{offender: c.OffenderID, day: offendermodels.DateOf(c.DueDate)}
}

func (s *MemoryStore) Save(_ context.Context, checkin models.Checkin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duplicateLocked(checkin) {
		return sentinel.ErrConflict
	}
	s.checkins[checkin.ID] = checkin
	return nil
}

func (s *MemoryStore) SaveBatch(_ context.Context, checkins []models.Checkin) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, checkin := range checkins {
		if s.duplicateLocked(checkin) {
			continue
		}
		s.checkins[checkin.ID] = checkin
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) duplicateLocked(checkin models.Checkin) bool {
	if _, exists := s.checkins[checkin.ID]; exists {
		return true
	}
	key := s.keyOf(checkin)
	for _, existing := range s.checkins {
		if s.keyOf(existing) == key {
			return true
		}
	}
	return false
}

func (s *MemoryStore) Update(_ context.Context, checkin models.Checkin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.checkins[checkin.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.checkins[checkin.ID] = checkin
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, checkinID id.CheckinID) (models.Checkin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	checkin, ok := s.checkins[checkinID]
	if !ok {
		return models.Checkin{}, sentinel.ErrNotFound
	}
	return checkin, nil
}

func (s *MemoryStore) HasForDate(_ context.Context, offenderID id.OffenderID, dueDate time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := offendermodels.DateOf(dueDate)
	for _, checkin := range s.checkins {
		if checkin.OffenderID != offenderID || !offendermodels.DateOf(checkin.DueDate).Equal(day) {
			continue
		}
		switch checkin.Status {
		case models.StatusCreated, models.StatusSubmitted, models.StatusReviewed:
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListCreatedDueBefore(_ context.Context, cutoff time.Time) ([]models.Checkin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Checkin
	for _, checkin := range s.checkins {
		if checkin.Status == models.StatusCreated && checkin.DueDate.Before(cutoff) {
			out = append(out, checkin)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListCreatedByDueDate(_ context.Context, dueDate time.Time) ([]models.Checkin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := offendermodels.DateOf(dueDate)
	var out []models.Checkin
	for _, checkin := range s.checkins {
		if checkin.Status == models.StatusCreated && offendermodels.DateOf(checkin.DueDate).Equal(day) {
			out = append(out, checkin)
		}
	}
	return out, nil
}

func (s *MemoryStore) ExpireBatch(_ context.Context, ids []id.CheckinID, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expired := 0
	for _, checkinID := range ids {
		checkin, ok := s.checkins[checkinID]
		if !ok || checkin.Status != models.StatusCreated {
			continue
		}
		checkin.Status = models.StatusExpired
		checkin.UpdatedAt = at
		s.checkins[checkinID] = checkin
		expired++
	}
	return expired, nil
}
