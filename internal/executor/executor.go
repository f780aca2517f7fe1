// Package executor claims queued commands and drives each through its
// device-operation plan. It is the only writer of command rows after the
// edge creates them.
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/soham10i/stf-hw/internal/broadcast"
	"github.com/soham10i/stf-hw/internal/bus"
	"github.com/soham10i/stf-hw/internal/config"
	"github.com/soham10i/stf-hw/internal/metrics"
	"github.com/soham10i/stf-hw/internal/types"
)

// Store is the durable queue and inventory surface the executor needs.
// *storage.PostgresClient implements it.
type Store interface {
	ClaimNextCommand(ctx context.Context, executorID string) (*types.Command, error)
	GetCommand(ctx context.Context, id int64) (*types.Command, error)
	RecordProgress(ctx context.Context, commandID int64, phase, detail string) error

	CompleteStore(ctx context.Context, cmdID int64, slot types.SlotName, batchID string, flavor types.CookieFlavor) error
	CompleteRetrieve(ctx context.Context, cmdID int64, slot types.SlotName, carrierID int64) error
	CompleteProcess(ctx context.Context, cmdID int64, slot types.SlotName, batchID string, carrierID int64) error
	CompleteSimple(ctx context.Context, cmdID int64, result string) error
	FailCommand(ctx context.Context, cmdID int64, result string) error
	FailAllInProgress(ctx context.Context, reason string) ([]int64, error)
	SetClaimsBlocked(ctx context.Context, blocked bool) error

	GetSlot(ctx context.Context, name types.SlotName) (*types.Slot, error)
	CookieAtSlot(ctx context.Context, name types.SlotName) (*types.Cookie, error)
	LockCarrier(ctx context.Context, id int64) error
	ReleaseCarrier(ctx context.Context, id int64) error

	InsertAlert(ctx context.Context, a *types.Alert) error
	InsertLog(ctx context.Context, e types.LogEntry) error
}

// Executor polls the queue, claims eligible rows and runs one FSM task per
// active command. Multiple instances may run; the claim is linearisable in
// the store.
type Executor struct {
	id      string
	cfg     config.ExecutorConfig
	store   Store
	bus     bus.Bus
	watcher *StatusWatcher
	hub     *broadcast.Hub
	logger  *zap.Logger

	mu     sync.Mutex
	active map[int64]context.CancelCauseFunc
	wg     sync.WaitGroup
}

func New(cfg config.ExecutorConfig, store Store, b bus.Bus, watcher *StatusWatcher,
	hub *broadcast.Hub, logger *zap.Logger) *Executor {

	return &Executor{
		id:      "executor-" + uuid.NewString()[:8],
		cfg:     cfg,
		store:   store,
		bus:     b,
		watcher: watcher,
		hub:     hub,
		logger:  logger,
		active:  make(map[int64]context.CancelCauseFunc),
	}
}

// ID returns the executor's claim identity.
func (e *Executor) ID() string { return e.id }

// Run polls until ctx is cancelled, then waits for active FSMs to settle.
func (e *Executor) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	e.logger.Info("executor started",
		zap.String("id", e.id),
		zap.Duration("poll_interval", e.cfg.PollInterval))

	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

func (e *Executor) poll(ctx context.Context) {
	cmd, err := e.store.ClaimNextCommand(ctx, e.id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			e.logger.Error("claim failed", zap.Error(err))
		}
		return
	}

	metrics.CommandsClaimed.Inc()
	e.logger.Info("command claimed",
		zap.Int64("id", cmd.ID),
		zap.String("kind", string(cmd.Kind)))
	e.publishUpdate(cmd)

	runCtx, cancel := context.WithCancelCause(ctx)
	e.mu.Lock()
	e.active[cmd.ID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.active, cmd.ID)
			e.mu.Unlock()
			cancel(nil)
		}()
		e.runCommand(runCtx, cmd)
	}()
}

// runCommand resolves the command's context rows, runs the plan, and
// writes the terminal transition. FSM errors never escape: they terminate
// this one command.
func (e *Executor) runCommand(ctx context.Context, cmd *types.Command) {
	deadline, cancel := context.WithTimeout(ctx, e.cfg.CommandDeadline)
	defer cancel()

	prep, err := e.prepare(deadline, cmd)
	if err != nil {
		e.fail(cmd, "preparation failed: "+err.Error(), nil)
		return
	}
	if prep.carrierID != 0 {
		defer e.releaseCarrier(prep.carrierID)
	}

	if cmd.Kind == types.KindEmergencyStop {
		e.EmergencyStop(context.Background())
		_ = e.store.CompleteSimple(context.Background(), cmd.ID, "emergency stop broadcast")
		e.finishUpdate(cmd.ID)
		return
	}

	plan, err := BuildPlan(cmd, prep.slotPos, e.cfg.BakeTime)
	if err != nil {
		e.fail(cmd, "invalid plan: "+err.Error(), nil)
		return
	}

	m := &machine{ex: e, cmd: cmd, plan: plan}
	if err := m.run(deadline); err != nil {
		if errors.Is(err, errEmergencyStop) {
			// The row was already failed in bulk by EmergencyStop.
			e.finishUpdate(cmd.ID)
			return
		}
		e.fail(cmd, err.Error(), plan)
		return
	}

	e.complete(cmd, prep)
}

// prepared carries the rows resolved before a plan runs.
type prepared struct {
	slot      types.SlotName
	slotPos   types.Vec3
	batchID   string
	flavor    types.CookieFlavor
	carrierID int64
}

func (e *Executor) prepare(ctx context.Context, cmd *types.Command) (*prepared, error) {
	p := &prepared{}
	if cmd.TargetSlot != nil {
		p.slot = *cmd.TargetSlot
		p.slotPos = types.SlotCoordinates[p.slot]
	}

	switch cmd.Kind {
	case types.KindStore:
		var sp types.StoreParams
		if len(cmd.Params) > 0 {
			if err := decodeParams(cmd.Params, &sp); err != nil {
				return nil, err
			}
		}
		if sp.Flavor == "" {
			sp.Flavor = types.FlavorChoco
		}
		p.flavor = sp.Flavor
		p.batchID = uuid.NewString()

	case types.KindRetrieve:
		slot, err := e.store.GetSlot(ctx, p.slot)
		if err != nil {
			return nil, err
		}
		if slot.CarrierID == nil {
			return nil, types.ErrSlotEmpty
		}
		if err := e.store.LockCarrier(ctx, *slot.CarrierID); err != nil {
			return nil, err
		}
		p.carrierID = *slot.CarrierID

	case types.KindProcess:
		cookie, err := e.store.CookieAtSlot(ctx, p.slot)
		if err != nil {
			return nil, err
		}
		if cookie.Status != types.CookieRawDough {
			return nil, types.ErrWrongLifecycle
		}
		if cookie.CarrierID != nil {
			if err := e.store.LockCarrier(ctx, *cookie.CarrierID); err != nil {
				return nil, err
			}
			p.carrierID = *cookie.CarrierID
		}
		p.batchID = cookie.BatchID
	}
	return p, nil
}

func (e *Executor) complete(cmd *types.Command, prep *prepared) {
	// Terminal writes run against a fresh context: the command context may
	// already be done, the durable transition must still land.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	switch cmd.Kind {
	case types.KindStore:
		err = e.store.CompleteStore(ctx, cmd.ID, prep.slot, prep.batchID, prep.flavor)
	case types.KindRetrieve:
		err = e.store.CompleteRetrieve(ctx, cmd.ID, prep.slot, prep.carrierID)
	case types.KindProcess:
		e.progress(ctx, cmd.ID, "UPDATE_COOKIE", string(types.CookieBaked))
		err = e.store.CompleteProcess(ctx, cmd.ID, prep.slot, prep.batchID, prep.carrierID)
	default:
		err = e.store.CompleteSimple(ctx, cmd.ID, string(cmd.Kind)+" completed")
	}
	if err != nil {
		// The motion finished but the commit did not; the row must still
		// reach a terminal status.
		e.logger.Error("terminal commit failed", zap.Int64("id", cmd.ID), zap.Error(err))
		e.fail(cmd, "terminal commit failed: "+err.Error(), nil)
		return
	}

	metrics.CommandsFinished.WithLabelValues(string(types.StatusCompleted)).Inc()
	e.logger.Info("command completed", zap.Int64("id", cmd.ID))
	e.finishUpdate(cmd.ID)
}

// fail writes the FAILED row, safe-parks the devices the command touched,
// and raises a critical alert.
func (e *Executor) fail(cmd *types.Command, reason string, plan []Op) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.store.FailCommand(ctx, cmd.ID, reason); err != nil {
		e.logger.Error("failed to mark command FAILED",
			zap.Int64("id", cmd.ID), zap.Error(err))
	}
	metrics.CommandsFinished.WithLabelValues(string(types.StatusFailed)).Inc()

	e.safePark(ctx, cmd)

	alert := &types.Alert{
		Type:     "COMMAND_FAILED",
		Severity: types.SeverityCritical,
		Title:    "Command " + string(cmd.Kind) + " failed",
		Message:  reason,
	}
	if len(cmd.Devices) == 1 {
		alert.Device = cmd.Devices[0]
	}
	if err := e.store.InsertAlert(ctx, alert); err != nil {
		e.logger.Error("failed to insert alert", zap.Error(err))
	}
	e.hub.Publish(broadcast.EventAlert, alert)

	e.logger.Error("command failed",
		zap.Int64("id", cmd.ID),
		zap.String("kind", string(cmd.Kind)),
		zap.String("reason", reason))
	e.finishUpdate(cmd.ID)
}

// safePark brings every device of the failed command into a passive state:
// stop motion, open the HBW gripper when it holds no carrier, release the
// VGR suction.
func (e *Executor) safePark(_ context.Context, cmd *types.Command) {
	for _, dev := range cmd.Devices {
		_ = e.bus.Publish(bus.CmdTopic(dev, bus.ActionStop), map[string]any{})
		switch dev {
		case types.DeviceHBW:
			snap, ok := e.watcher.Latest(dev)
			if !ok || !snap.HasCarrier {
				_ = e.bus.Publish(bus.CmdTopic(dev, bus.ActionGripper),
					map[string]any{"action": "open"})
			}
		case types.DeviceVGR:
			_ = e.bus.Publish(bus.CmdTopic(dev, bus.ActionVacuum),
				map[string]any{"activate": false})
		}
	}
}

// EmergencyStop cancels every active FSM, fails their rows with reason
// EMERGENCY_STOP, blocks new claims and latches the devices.
func (e *Executor) EmergencyStop(ctx context.Context) {
	e.logger.Warn("EMERGENCY STOP")

	if err := e.bus.Publish(bus.GlobalEmergencyStop, map[string]any{"reason": "operator"}); err != nil {
		e.logger.Error("failed to broadcast emergency stop", zap.Error(err))
	}

	e.mu.Lock()
	for id, cancel := range e.active {
		cancel(errEmergencyStop)
		e.logger.Warn("cancelled active command", zap.Int64("id", id))
	}
	e.mu.Unlock()

	if err := e.store.SetClaimsBlocked(ctx, true); err != nil {
		e.logger.Error("failed to block claims", zap.Error(err))
	}

	ids, err := e.store.FailAllInProgress(ctx, "EMERGENCY_STOP")
	if err != nil {
		e.logger.Error("failed to fail in-progress commands", zap.Error(err))
	}
	for _, id := range ids {
		metrics.CommandsFinished.WithLabelValues(string(types.StatusFailed)).Inc()
		e.finishUpdate(id)
	}

	alert := &types.Alert{
		Type:     "EMERGENCY_STOP",
		Severity: types.SeverityCritical,
		Title:    "Emergency stop",
		Message:  "all in-flight commands failed, claims blocked until resume",
	}
	if err := e.store.InsertAlert(ctx, alert); err != nil {
		e.logger.Error("failed to insert alert", zap.Error(err))
	}
	e.hub.Publish(broadcast.EventAlert, alert)
}

// Resume lifts the claim gate after an operator confirms the cell is safe.
// The resume event is durably recorded before claims restart.
func (e *Executor) Resume(ctx context.Context) error {
	if err := e.store.InsertLog(ctx, types.LogEntry{
		Level:     types.LogWarning,
		Source:    e.id,
		Message:   "resume after emergency stop",
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return err
	}
	if err := e.store.SetClaimsBlocked(ctx, false); err != nil {
		return err
	}
	if err := e.bus.Publish(bus.GlobalResume, map[string]any{}); err != nil {
		e.logger.Error("failed to broadcast resume", zap.Error(err))
	}
	e.logger.Info("claims resumed")
	return nil
}

// progress records one FSM transition durably and logs it.
func (e *Executor) progress(ctx context.Context, cmdID int64, phase, detail string) {
	if err := e.store.RecordProgress(ctx, cmdID, phase, detail); err != nil {
		e.logger.Warn("failed to record progress",
			zap.Int64("command", cmdID), zap.Error(err))
	}
	e.logger.Debug("fsm transition",
		zap.Int64("command", cmdID),
		zap.String("phase", phase),
		zap.String("detail", detail))
}

// publishUpdate pushes the current row state to observers.
func (e *Executor) publishUpdate(cmd *types.Command) {
	e.hub.Publish(broadcast.EventCommandUpdate, cmd)
}

// finishUpdate re-reads the terminal row so observers see the final state.
func (e *Executor) finishUpdate(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd, err := e.store.GetCommand(ctx, id)
	if err != nil {
		e.logger.Warn("failed to load finished command", zap.Int64("id", id), zap.Error(err))
		return
	}
	e.hub.Publish(broadcast.EventCommandUpdate, cmd)
}

func (e *Executor) releaseCarrier(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.ReleaseCarrier(ctx, id); err != nil {
		e.logger.Error("failed to release carrier", zap.Int64("carrier", id), zap.Error(err))
	}
}
