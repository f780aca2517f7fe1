package sim

import (
	"time"

	"go.uber.org/zap"

	"github.com/soham10i/stf-hw/internal/bus"
	"github.com/soham10i/stf-hw/internal/clock"
	"github.com/soham10i/stf-hw/internal/types"
)

// Device is one simulated machine. Implementations own their state
// exclusively; the factory guarantees a single driving goroutine per
// device.
type Device interface {
	ID() types.DeviceID
	Apply(action string, payload []byte) error
	EmergencyStop()
	Tick(now time.Time, dt time.Duration) types.DeviceSnapshot
}

type cmdMsg struct {
	action  string
	payload []byte
}

// Factory wires the three simulators to the bus and the clock. Commands
// received between ticks queue in a per-device mailbox and are applied at
// the start of the next tick, in arrival order.
type Factory struct {
	devices   []Device
	mailboxes map[types.DeviceID]chan cmdMsg
	bus       bus.Bus
	logger    *zap.Logger
}

func NewFactory(b bus.Bus, logger *zap.Logger, devices ...Device) *Factory {
	f := &Factory{
		devices:   devices,
		mailboxes: make(map[types.DeviceID]chan cmdMsg, len(devices)),
		bus:       b,
		logger:    logger,
	}
	for _, d := range devices {
		f.mailboxes[d.ID()] = make(chan cmdMsg, 64)
	}
	return f
}

// Wire subscribes every device to its command topics and the global
// emergency channel, and registers the per-tick update with the clock.
func (f *Factory) Wire(ticker *clock.Ticker) error {
	for _, d := range f.devices {
		dev := d
		box := f.mailboxes[dev.ID()]

		err := f.bus.Subscribe(bus.CmdFilter(dev.ID()), func(topic string, payload []byte) {
			action, ok := bus.ActionFromTopic(topic)
			if !ok {
				return
			}
			select {
			case box <- cmdMsg{action: action, payload: payload}:
			default:
				f.logger.Warn("device mailbox full, command dropped",
					zap.String("device", string(dev.ID())),
					zap.String("action", action))
			}
		})
		if err != nil {
			return err
		}

		ticker.Subscribe(string(dev.ID()), func(now time.Time, dt time.Duration) {
			f.tickDevice(dev, box, now, dt)
		})
	}

	return f.bus.Subscribe(bus.GlobalEmergencyStop, func(string, []byte) {
		// The latch is applied through the mailboxes so device state stays
		// single-writer.
		for _, d := range f.devices {
			select {
			case f.mailboxes[d.ID()] <- cmdMsg{action: "emergency_stop"}:
			default:
			}
		}
	})
}

func (f *Factory) tickDevice(dev Device, box chan cmdMsg, now time.Time, dt time.Duration) {
	for {
		select {
		case msg := <-box:
			if msg.action == "emergency_stop" {
				dev.EmergencyStop()
				continue
			}
			if err := dev.Apply(msg.action, msg.payload); err != nil {
				// Unrecognised or malformed commands are dropped and
				// logged; state is untouched.
				f.logger.Warn("command rejected",
					zap.String("device", string(dev.ID())),
					zap.String("action", msg.action),
					zap.Error(err))
			}
		default:
			snap := dev.Tick(now, dt)
			if err := f.bus.Publish(bus.StatusTopic(snap.Device), snap); err != nil {
				f.logger.Error("status publish failed",
					zap.String("device", string(dev.ID())),
					zap.Error(err))
			}
			return
		}
	}
}
