package events

import "sync"

// MemoryPublisher records events in-process; used by unit tests and when
// Kafka is not configured.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Published returns the events seen so far in publish order.
func (p *MemoryPublisher) Published() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}
