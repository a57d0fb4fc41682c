// Package events delivers state-change notices to interested parties.
// Publishing is best-effort: a failed delivery is logged and never rolls
// back the state transition that triggered it.
package events

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/kamenolom/transport-service/internal/models"
)

// Dispatcher is the publish side of the notification contract.
type Dispatcher interface {
	Publish(ctx context.Context, event models.EventType, payload interface{})
}

// Subscriber receives the event type and the JSON-encoded payload.
// Targeting (is this event addressed to the current viewer) is the
// subscriber's job, not the dispatcher's.
type Subscriber func(event models.EventType, payload []byte)

// Bus is an in-process fan-out dispatcher used in tests and single-node
// deployments without Kafka.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	logger      *log.Logger
}

// NewBus creates a new in-process event bus.
func NewBus(logger *log.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers a subscriber for all subsequent events.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish encodes the payload and fans it out to every subscriber.
func (b *Bus) Publish(ctx context.Context, event models.EventType, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Printf("events: failed to encode %s payload: %v", event, err)
		return
	}

	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub(event, data)
	}
}
