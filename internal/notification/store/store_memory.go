package store

import (
	"context"
	"sync"
	"time"

	"esupervision/internal/notification/models"
	id "esupervision/pkg/domain"
	"esupervision/pkg/platform/sentinel"
)

// MemoryStore is the in-memory notification store used by unit tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[id.NotificationID]models.Notification
	order   []id.NotificationID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[id.NotificationID]models.Notification)}
}

func (s *MemoryStore) Save(_ context.Context, notification models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(notification)
	return nil
}

func (s *MemoryStore) SaveBatch(_ context.Context, notifications []models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notifications {
		s.save(n)
	}
	return nil
}

func (s *MemoryStore) save(notification models.Notification) {
	if _, exists := s.records[notification.ID]; !exists {
		s.order = append(s.order, notification.ID)
	}
	s.records[notification.ID] = notification
}

func (s *MemoryStore) UpdateOutcome(_ context.Context, notificationID id.NotificationID, status, providerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[notificationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	record.Status = status
	record.ProviderID = providerID
	record.UpdatedAt = at
	s.records[notificationID] = record
	return nil
}

func (s *MemoryStore) ListUnresolvedSince(_ context.Context, eventTypes []string, since time.Time) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for _, nid := range s.order {
		record := s.records[nid]
		if models.IsTerminal(record.Status) || record.ProviderID == "" {
			continue
		}
		if record.CreatedAt.Before(since) {
			continue
		}
		if len(eventTypes) > 0 && !contains(eventTypes, record.EventType) {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatusBatch(_ context.Context, ids []id.NotificationID, status string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, nid := range ids {
		record, ok := s.records[nid]
		if !ok || models.IsTerminal(record.Status) {
			continue
		}
		record.Status = status
		record.UpdatedAt = at
		s.records[nid] = record
		changed++
	}
	return changed, nil
}

func (s *MemoryStore) ExistsForCheckinSince(_ context.Context, checkinID id.CheckinID, eventType string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records {
		if record.CheckinID == checkinID && record.EventType == eventType && !record.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// All returns every record in insertion order; test helper.
func (s *MemoryStore) All() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, 0, len(s.order))
	for _, nid := range s.order {
		out = append(out, s.records[nid])
	}
	return out
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
