package executor

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/soham10i/stf-hw/internal/bus"
	"github.com/soham10i/stf-hw/internal/types"
)

// StatusWatcher tracks the latest snapshot per device from the status
// topics and lets FSM operations block until a predicate holds.
type StatusWatcher struct {
	logger *zap.Logger

	mu      sync.Mutex
	latest  map[types.DeviceID]types.DeviceSnapshot
	waiters map[int]chan struct{}
	nextID  int
}

func NewStatusWatcher(b bus.Bus, logger *zap.Logger) (*StatusWatcher, error) {
	w := &StatusWatcher{
		logger:  logger,
		latest:  make(map[types.DeviceID]types.DeviceSnapshot),
		waiters: make(map[int]chan struct{}),
	}
	if err := b.Subscribe(bus.StatusFilter(), w.onStatus); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *StatusWatcher) onStatus(topic string, payload []byte) {
	var snap types.DeviceSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		w.logger.Warn("undecodable status snapshot",
			zap.String("topic", topic), zap.Error(err))
		return
	}

	w.mu.Lock()
	// Stale or replayed snapshots never roll the view backwards.
	if prev, ok := w.latest[snap.Device]; ok && prev.Seq >= snap.Seq {
		w.mu.Unlock()
		return
	}
	w.latest[snap.Device] = snap
	for _, ch := range w.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	w.mu.Unlock()
}

// Latest returns the most recent snapshot for a device.
func (w *StatusWatcher) Latest(dev types.DeviceID) (types.DeviceSnapshot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap, ok := w.latest[dev]
	return snap, ok
}

// WaitFor blocks until pred holds for the device's snapshot or ctx ends.
func (w *StatusWatcher) WaitFor(ctx context.Context, dev types.DeviceID,
	pred func(types.DeviceSnapshot) bool) error {

	w.mu.Lock()
	if snap, ok := w.latest[dev]; ok && pred(snap) {
		w.mu.Unlock()
		return nil
	}
	id := w.nextID
	w.nextID++
	ch := make(chan struct{}, 1)
	w.waiters[id] = ch
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.waiters, id)
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			w.mu.Lock()
			snap, ok := w.latest[dev]
			w.mu.Unlock()
			if ok && pred(snap) {
				return nil
			}
		}
	}
}
