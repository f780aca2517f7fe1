package broadcast

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/soham10i/stf-hw/internal/metrics"
)

// Subscriber is one attached observer. Events arrives pre-serialised; Drops
// counts events shed under backpressure.
type Subscriber struct {
	ID     string
	Events chan []byte
	drops  atomic.Uint64
}

// Drops returns how many events this subscriber has lost.
func (s *Subscriber) Drops() uint64 { return s.drops.Load() }

// Hub serialises each incoming event once and pushes it into every
// subscriber queue. A full queue drops that subscriber's oldest event
// (most-recent-wins); the subscriber stays attached.
type Hub struct {
	depth  int
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[string]*Subscriber

	seq atomic.Uint64
}

func NewHub(queueDepth int, logger *zap.Logger) *Hub {
	if queueDepth <= 0 {
		queueDepth = 256
	}
	return &Hub{
		depth:  queueDepth,
		subs:   make(map[string]*Subscriber),
		logger: logger,
	}
}

// Subscribe attaches an observer. The returned subscriber's Events channel
// is closed on Unsubscribe.
func (h *Hub) Subscribe(id string) *Subscriber {
	sub := &Subscriber{
		ID:     id,
		Events: make(chan []byte, h.depth),
	}
	h.mu.Lock()
	if old, ok := h.subs[id]; ok {
		close(old.Events)
	}
	h.subs[id] = sub
	h.mu.Unlock()

	h.logger.Info("observer subscribed", zap.String("id", id))
	return sub
}

// Unsubscribe detaches an observer and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.Events)
		h.logger.Info("observer unsubscribed",
			zap.String("id", id),
			zap.Uint64("dropped", sub.Drops()))
	}
}

// Publish serialises once and fans out. Errors are contained per
// subscriber; a marshal failure drops the event entirely.
func (h *Hub) Publish(typ EventType, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast payload",
			zap.String("type", string(typ)), zap.Error(err))
		return
	}
	ev := Event{
		Type:    typ,
		Seq:     h.seq.Add(1),
		TS:      time.Now().UTC(),
		Payload: raw,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal broadcast event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		h.push(sub, data)
	}
}

func (h *Hub) push(sub *Subscriber, data []byte) {
	for {
		select {
		case sub.Events <- data:
			return
		default:
			// Shed the oldest queued event and retry. Another goroutine may
			// race us for the slot, hence the loop.
			select {
			case <-sub.Events:
				sub.drops.Add(1)
				metrics.HubDrops.WithLabelValues(sub.ID).Inc()
			default:
			}
		}
	}
}

// SubscriberCount returns the number of attached observers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
