package bus

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryBus is an in-process Bus. It backs unit tests and single-binary
// runs where no broker is configured. Delivery is synchronous per publisher
// goroutine, which preserves per-(publisher, topic) ordering.
type MemoryBus struct {
	mu      sync.RWMutex
	subs    []subscription
	schemas *SchemaRegistry
}

// NewMemoryBus creates an in-process bus. schemas may be nil to skip
// validation.
func NewMemoryBus(schemas *SchemaRegistry) *MemoryBus {
	return &MemoryBus{schemas: schemas}
}

func (b *MemoryBus) Publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}
	if b.schemas != nil {
		if err := b.schemas.Validate(topic, data); err != nil {
			return err
		}
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if MatchTopic(s.filter, topic) {
			s.handler(topic, data)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(filter string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{filter: filter, handler: handler})
	return nil
}

func (b *MemoryBus) Close() {}
