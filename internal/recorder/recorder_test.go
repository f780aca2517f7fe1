package recorder

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/soham10i/stf-hw/internal/broadcast"
	"github.com/soham10i/stf-hw/internal/bus"
	"github.com/soham10i/stf-hw/internal/types"
)

type stubStore struct {
	mu        sync.Mutex
	snaps     []types.DeviceSnapshot
	telemetry []types.TelemetrySample
	energy    []types.EnergySample
}

func (s *stubStore) UpsertDeviceSnapshot(_ context.Context, snap types.DeviceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *stubStore) InsertTelemetry(_ context.Context, t types.TelemetrySample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = append(s.telemetry, t)
	return nil
}

func (s *stubStore) InsertEnergy(_ context.Context, e types.EnergySample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.energy = append(s.energy, e)
	return nil
}

func TestRecorderPersistsAndForwardsSnapshots(t *testing.T) {
	b := bus.NewMemoryBus(nil)
	store := &stubStore{}
	hub := broadcast.NewHub(16, zap.NewNop())
	sub := hub.Subscribe("test")

	rec := New(store, hub, zap.NewNop())
	require.NoError(t, rec.Wire(b))

	snap := types.DeviceSnapshot{
		Device:       types.DeviceHBW,
		Seq:          1,
		Timestamp:    time.Unix(100, 0),
		Status:       types.DeviceIdle,
		PowerWatts:   12.5,
		EnergyJoules: 1.25,
		Motors: map[string]types.MotorSnapshot{
			"HBW_X": {ComponentID: "HBW_X", HealthScore: 0.9},
		},
	}
	require.NoError(t, b.Publish(bus.StatusTopic(types.DeviceHBW), snap))

	require.Len(t, store.snaps, 1)
	assert.Equal(t, types.DeviceHBW, store.snaps[0].Device)

	// First snapshot for a device always samples history rows.
	assert.NotEmpty(t, store.telemetry)
	require.Len(t, store.energy, 1)
	assert.Equal(t, 1.25, store.energy[0].Joules)

	// Observers see the same snapshot through the hub.
	select {
	case data := <-sub.Events:
		var ev broadcast.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, broadcast.EventDeviceStatus, ev.Type)
	default:
		t.Fatal("hub received no event")
	}
}

func TestRecorderThrottlesHistorySampling(t *testing.T) {
	b := bus.NewMemoryBus(nil)
	store := &stubStore{}
	rec := New(store, broadcast.NewHub(16, zap.NewNop()), zap.NewNop())
	require.NoError(t, rec.Wire(b))

	base := time.Unix(100, 0)
	for i := 0; i < 10; i++ {
		snap := types.DeviceSnapshot{
			Device:       types.DeviceConveyor,
			Seq:          uint64(i + 1),
			Timestamp:    base.Add(time.Duration(i) * 100 * time.Millisecond),
			EnergyJoules: 1,
		}
		require.NoError(t, b.Publish(bus.StatusTopic(types.DeviceConveyor), snap))
	}

	// Ten snapshots over 900 ms collapse into one history sample.
	assert.Len(t, store.energy, 1)
	// The latest-state table is written every tick regardless.
	assert.Len(t, store.snaps, 10)
}

func TestRecorderDropsUndecodablePayloads(t *testing.T) {
	b := bus.NewMemoryBus(nil)
	store := &stubStore{}
	rec := New(store, broadcast.NewHub(16, zap.NewNop()), zap.NewNop())
	require.NoError(t, rec.Wire(b))

	require.NoError(t, b.Publish(bus.StatusTopic(types.DeviceHBW), "not a snapshot"))
	assert.Empty(t, store.snaps)
}
