// Package recorder persists every device status snapshot and fans it out
// to observers. It is the single bridge from the bus status stream into the
// durable store and the broadcast hub.
package recorder

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/soham10i/stf-hw/internal/broadcast"
	"github.com/soham10i/stf-hw/internal/bus"
	"github.com/soham10i/stf-hw/internal/types"
)

// sampleEvery throttles the append-only history tables; the latest-state
// tables are written on every snapshot.
const sampleEvery = 5 * time.Second

// Store is the persistence surface the recorder writes to.
type Store interface {
	UpsertDeviceSnapshot(ctx context.Context, snap types.DeviceSnapshot) error
	InsertTelemetry(ctx context.Context, s types.TelemetrySample) error
	InsertEnergy(ctx context.Context, s types.EnergySample) error
}

type Recorder struct {
	store  Store
	hub    *broadcast.Hub
	logger *zap.Logger

	mu         sync.Mutex
	lastSample map[types.DeviceID]time.Time
}

func New(store Store, hub *broadcast.Hub, logger *zap.Logger) *Recorder {
	return &Recorder{
		store:      store,
		hub:        hub,
		logger:     logger,
		lastSample: make(map[types.DeviceID]time.Time),
	}
}

// Wire subscribes the recorder to every device's status stream.
func (r *Recorder) Wire(b bus.Bus) error {
	return b.Subscribe(bus.StatusFilter(), r.onStatus)
}

func (r *Recorder) onStatus(topic string, payload []byte) {
	var snap types.DeviceSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		r.logger.Warn("undecodable status snapshot",
			zap.String("topic", topic), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.store.UpsertDeviceSnapshot(ctx, snap); err != nil {
		r.logger.Error("failed to persist snapshot",
			zap.String("device", string(snap.Device)), zap.Error(err))
	}

	r.hub.Publish(broadcast.EventDeviceStatus, snap)

	if r.due(snap.Device, snap.Timestamp) {
		r.sample(ctx, snap)
	}
}

func (r *Recorder) due(dev types.DeviceID, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.lastSample[dev]; ok && now.Sub(last) < sampleEvery {
		return false
	}
	r.lastSample[dev] = now
	return true
}

// sample appends history rows: total power as telemetry, the energy drawn
// during the sampled snapshot's tick, and per-motor health.
func (r *Recorder) sample(ctx context.Context, snap types.DeviceSnapshot) {
	if err := r.store.InsertTelemetry(ctx, types.TelemetrySample{
		Device:    snap.Device,
		Metric:    "power",
		Value:     snap.PowerWatts,
		Unit:      "W",
		Timestamp: snap.Timestamp,
	}); err != nil {
		r.logger.Warn("failed to insert telemetry", zap.Error(err))
	}

	for id, m := range snap.Motors {
		if err := r.store.InsertTelemetry(ctx, types.TelemetrySample{
			Device:    snap.Device,
			Metric:    "health." + id,
			Value:     m.HealthScore,
			Timestamp: snap.Timestamp,
		}); err != nil {
			r.logger.Warn("failed to insert telemetry", zap.Error(err))
		}
	}

	if snap.EnergyJoules > 0 {
		if err := r.store.InsertEnergy(ctx, types.EnergySample{
			Device:     snap.Device,
			Joules:     snap.EnergyJoules,
			Voltage:    24.0,
			PowerWatts: snap.PowerWatts,
			Timestamp:  snap.Timestamp,
		}); err != nil {
			r.logger.Warn("failed to insert energy sample", zap.Error(err))
		}
	}
}
