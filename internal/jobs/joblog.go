package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobLog is one row per worker execution: operational visibility only,
// never consulted for correctness.
type JobLog struct {
	ID        uuid.UUID
	Name      string
	StartedAt time.Time
	EndedAt   *time.Time
}

// JobLogStore records worker executions.
type JobLogStore interface {
	Start(ctx context.Context, entry JobLog) error
	Finish(ctx context.Context, logID uuid.UUID, endedAt time.Time) error
}

// MemoryJobLogStore is the in-memory sink used by unit tests.
type MemoryJobLogStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]JobLog
	order   []uuid.UUID
}

func NewMemoryJobLog() *MemoryJobLogStore {
	return &MemoryJobLogStore{entries: make(map[uuid.UUID]JobLog)}
}

func (s *MemoryJobLogStore) Start(_ context.Context, entry JobLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry
	s.order = append(s.order, entry.ID)
	return nil
}

func (s *MemoryJobLogStore) Finish(_ context.Context, logID uuid.UUID, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[logID]
	if !ok {
		return fmt.Errorf("job log %s not found", logID)
	}
	entry.EndedAt = &endedAt
	s.entries[logID] = entry
	return nil
}

// All returns the entries in start order; test helper.
func (s *MemoryJobLogStore) All() []JobLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobLog, 0, len(s.order))
	for _, logID := range s.order {
		out = append(out, s.entries[logID])
	}
	return out
}

// PostgresJobLogStore persists job executions in PostgreSQL.
type PostgresJobLogStore struct {
	db *sql.DB
}

func NewPostgresJobLog(db *sql.DB) *PostgresJobLogStore {
	return &PostgresJobLogStore{db: db}
}

func (s *PostgresJobLogStore) Start(ctx context.Context, entry JobLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_logs (id, name, started_at) VALUES ($1, $2, $3)
	`, entry.ID, entry.Name, entry.StartedAt)
	if err != nil {
		return fmt.Errorf("insert job log: %w", err)
	}
	return nil
}

func (s *PostgresJobLogStore) Finish(ctx context.Context, logID uuid.UUID, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_logs SET ended_at = $2 WHERE id = $1
	`, logID, endedAt)
	if err != nil {
		return fmt.Errorf("finish job log: %w", err)
	}
	return nil
}
