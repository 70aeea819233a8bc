package objectstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryGateway is the in-memory Gateway used by unit tests: objects are
// "uploaded" by calling Put.
type MemoryGateway struct {
	mu      sync.RWMutex
	objects map[string]struct{}
}

func NewMemory() *MemoryGateway {
	return &MemoryGateway{objects: make(map[string]struct{})}
}

// Put marks a key as present.
func (g *MemoryGateway) Put(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[key] = struct{}{}
}

func (g *MemoryGateway) Exists(_ context.Context, key string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.objects[key]
	return ok, nil
}

func (g *MemoryGateway) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("memory://get/%s?ttl=%s", key, ttl), nil
}

func (g *MemoryGateway) PresignPut(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("memory://put/%s?ttl=%s", key, ttl), nil
}
