package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher writes domain events to a Kafka topic, keyed by the person
// reference value so all events for one person land on the same partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	log    *log.Logger
}

func NewKafka(client *kgo.Client, topic string, logger *log.Logger) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic, log: logger}
}

func (p *KafkaPublisher) Publish(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Printf("events: marshal %s: %v", event.Type, err)
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.PersonReference.Value),
		Value: payload,
	}
	// Fire and forget: the produce callback logs failures but nothing
	// upstream waits on delivery.
	p.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.log.Printf("events: publish %s failed: %v", event.Type, err)
		}
	})
}

// Close flushes outstanding produces and releases the client.
func (p *KafkaPublisher) Close(ctx context.Context) {
	if err := p.client.Flush(ctx); err != nil {
		p.log.Printf("events: flush on close: %v", err)
	}
	p.client.Close()
}
