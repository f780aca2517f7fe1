package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/soham10i/stf-hw/internal/bus"
	"github.com/soham10i/stf-hw/internal/metrics"
	"github.com/soham10i/stf-hw/internal/types"
)

// errEmergencyStop marks an FSM cancelled by the global emergency; the
// executor has already failed the row in bulk.
var errEmergencyStop = errors.New("EMERGENCY_STOP")

// stopGrace is how long an aborted operation waits for the device to report
// IDLE after the stop command before the failure is final.
const stopGrace = 2 * time.Second

// machine drives one claimed command through its plan. It is the only
// goroutine touching that command row until it reaches a terminal status.
type machine struct {
	ex   *Executor
	cmd  *types.Command
	plan []Op
}

// run executes the plan in order. Each operation is: publish the device
// command, wait for its terminal condition, bounded by the per-operation
// timeout. Idempotent operations retry with a shorter deadline.
func (m *machine) run(ctx context.Context) error {
	for i, op := range m.plan {
		m.ex.progress(ctx, m.cmd.ID, fmt.Sprintf("op %d/%d", i+1, len(m.plan)), op.String())

		if err := m.performWithRetry(ctx, op); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (m *machine) performWithRetry(ctx context.Context, op Op) error {
	attempts := 1
	timeout := m.ex.cfg.OpTimeout
	if op.Kind == OpWait {
		timeout = op.Duration + stopGrace
	}
	if op.Idempotent() {
		attempts += m.ex.cfg.MoveRetries
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			metrics.OpRetries.Inc()
			m.ex.logger.Warn("retrying operation",
				zap.Int64("command", m.cmd.ID),
				zap.String("op", op.String()),
				zap.Int("attempt", attempt+1))
			// Retries run against a shorter deadline.
			timeout = m.ex.cfg.OpTimeout / 2
		}

		err = m.perform(ctx, op, timeout)
		if err == nil {
			return nil
		}
		// Cancellation (deadline, emergency) propagates immediately.
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
	}
	return err
}

// perform issues one operation and waits for its terminal condition.
func (m *machine) perform(ctx context.Context, op Op, timeout time.Duration) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := m.publish(op); err != nil {
		return err
	}

	err := m.await(opCtx, op)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}

	// Timeout: stop the affected device, give it a bounded grace period to
	// settle, then report the failure regardless.
	if op.Device != "" {
		m.stopDevice(op.Device)
	}
	return fmt.Errorf("operation timed out after %s", timeout)
}

func (m *machine) publish(op Op) error {
	switch op.Kind {
	case OpMoveTo:
		return m.ex.bus.Publish(bus.CmdTopic(op.Device, bus.ActionMove),
			map[string]any{"x": op.Target.X, "y": op.Target.Y, "z": op.Target.Z})
	case OpGripClose:
		return m.ex.bus.Publish(bus.CmdTopic(op.Device, bus.ActionGripper),
			map[string]any{"action": "close"})
	case OpRelease:
		return m.ex.bus.Publish(bus.CmdTopic(op.Device, bus.ActionGripper),
			map[string]any{"action": "open"})
	case OpVacuumOn:
		return m.ex.bus.Publish(bus.CmdTopic(op.Device, bus.ActionVacuum),
			map[string]any{"activate": true})
	case OpVacuumOff:
		return m.ex.bus.Publish(bus.CmdTopic(op.Device, bus.ActionVacuum),
			map[string]any{"activate": false})
	case OpPlace:
		return m.ex.bus.Publish(bus.CmdTopic(op.Device, bus.ActionBelt),
			map[string]any{"action": "load"})
	case OpPick:
		return m.ex.bus.Publish(bus.CmdTopic(op.Device, bus.ActionBelt),
			map[string]any{"action": "unload"})
	case OpRunBelt:
		return m.ex.bus.Publish(bus.CmdTopic(op.Device, bus.ActionBelt),
			map[string]any{"action": "start", "direction": op.Direction})
	case OpStopBelt:
		return m.ex.bus.Publish(bus.CmdTopic(op.Device, bus.ActionBelt),
			map[string]any{"action": "stop"})
	case OpReset:
		return m.ex.bus.Publish(bus.CmdTopic(op.Device, bus.ActionReset),
			map[string]any{})
	case OpWait, OpWaitSensor:
		return nil
	default:
		return fmt.Errorf("unsupported op kind %s", op.Kind)
	}
}

func (m *machine) await(ctx context.Context, op Op) error {
	w := m.ex.watcher
	switch op.Kind {
	case OpMoveTo:
		return w.WaitFor(ctx, op.Device, func(s types.DeviceSnapshot) bool {
			return s.Arrived(op.Target, 1.0)
		})
	case OpGripClose:
		return w.WaitFor(ctx, op.Device, func(s types.DeviceSnapshot) bool {
			return s.GripperClose
		})
	case OpRelease:
		return w.WaitFor(ctx, op.Device, func(s types.DeviceSnapshot) bool {
			return !s.GripperClose
		})
	case OpVacuumOn:
		return w.WaitFor(ctx, op.Device, func(s types.DeviceSnapshot) bool {
			return s.VacuumActive
		})
	case OpVacuumOff:
		return w.WaitFor(ctx, op.Device, func(s types.DeviceSnapshot) bool {
			return !s.VacuumActive
		})
	case OpPlace:
		return w.WaitFor(ctx, op.Device, func(s types.DeviceSnapshot) bool {
			return s.ObjectMM != nil
		})
	case OpPick:
		return w.WaitFor(ctx, op.Device, func(s types.DeviceSnapshot) bool {
			return s.ObjectMM == nil
		})
	case OpRunBelt:
		return w.WaitFor(ctx, op.Device, func(s types.DeviceSnapshot) bool {
			return s.Status == types.DeviceMoving && s.Direction == op.Direction
		})
	case OpStopBelt, OpReset:
		return w.WaitFor(ctx, op.Device, func(s types.DeviceSnapshot) bool {
			return s.Status == types.DeviceIdle
		})
	case OpWaitSensor:
		return w.WaitFor(ctx, op.Device, func(s types.DeviceSnapshot) bool {
			sensor, ok := s.Sensors[op.Sensor]
			return ok && sensor.Triggered
		})
	case OpWait:
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-time.After(op.Duration):
			return nil
		}
	default:
		return fmt.Errorf("unsupported op kind %s", op.Kind)
	}
}

// stopDevice aborts motion after a timed-out operation and waits the grace
// period for an IDLE report. Failure of the stop itself is only logged; the
// operation error stands.
func (m *machine) stopDevice(dev types.DeviceID) {
	if err := m.ex.bus.Publish(bus.CmdTopic(dev, bus.ActionStop), map[string]any{}); err != nil {
		m.ex.logger.Error("failed to send stop", zap.String("device", string(dev)), zap.Error(err))
		return
	}
	graceCtx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	_ = m.ex.watcher.WaitFor(graceCtx, dev, func(s types.DeviceSnapshot) bool {
		return s.Status == types.DeviceIdle
	})
}
