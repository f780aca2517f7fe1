// Package system builds the component graph and owns start/stop ordering.
// Every dependency is explicit: no global bus client, no shared session.
package system

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/soham10i/stf-hw/internal/api/rest"
	"github.com/soham10i/stf-hw/internal/broadcast"
	"github.com/soham10i/stf-hw/internal/bus"
	"github.com/soham10i/stf-hw/internal/clock"
	"github.com/soham10i/stf-hw/internal/config"
	"github.com/soham10i/stf-hw/internal/executor"
	"github.com/soham10i/stf-hw/internal/recorder"
	"github.com/soham10i/stf-hw/internal/sim"
	"github.com/soham10i/stf-hw/internal/storage"
)

type LifecycleManager struct {
	config   *config.Config
	storage  *storage.PostgresClient
	busConn  *bus.Client
	hub      *broadcast.Hub
	ticker   *clock.Ticker
	factory  *sim.Factory
	recorder *recorder.Recorder
	executor *executor.Executor
	rest     *rest.Server
	logger   *zap.Logger

	cancel       context.CancelFunc
	loops        sync.WaitGroup
	shutdownOnce sync.Once
}

func NewLifecycleManager(store *storage.PostgresClient, cfg *config.Config, logger *zap.Logger) (*LifecycleManager, error) {
	schemas, err := bus.NewSchemaRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to build schema registry: %w", err)
	}

	busConn, err := bus.NewClient(cfg.Bus, schemas, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create bus client: %w", err)
	}

	hub := broadcast.NewHub(cfg.Broadcast.QueueDepth, logger)
	ticker := clock.NewTicker(cfg.Sim.TickPeriod, logger)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	factory := sim.NewFactory(busConn, logger,
		sim.NewHBW(rng), sim.NewVGR(rng), sim.NewConveyor(rng))

	rec := recorder.New(store, hub, logger)

	watcher, err := executor.NewStatusWatcher(busConn, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create status watcher: %w", err)
	}
	exec := executor.New(cfg.Executor, store, busConn, watcher, hub, logger)

	lm := &LifecycleManager{
		config:   cfg,
		storage:  store,
		busConn:  busConn,
		hub:      hub,
		ticker:   ticker,
		factory:  factory,
		recorder: rec,
		executor: exec,
		logger:   logger,
	}
	lm.rest = rest.NewServer(cfg.Server, store, exec, busConn, hub, logger)
	return lm, nil
}

// Start brings the system up: schema, wiring, simulation loop, executor,
// edge. Order matters; the edge comes last.
func (lm *LifecycleManager) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	lm.cancel = cancel

	if err := lm.storage.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare database: %w", err)
	}

	if err := lm.recorder.Wire(lm.busConn); err != nil {
		return fmt.Errorf("failed to wire recorder: %w", err)
	}
	if err := lm.factory.Wire(lm.ticker); err != nil {
		return fmt.Errorf("failed to wire simulators: %w", err)
	}

	lm.loops.Add(2)
	go func() {
		defer lm.loops.Done()
		lm.ticker.Run(ctx)
	}()
	go func() {
		defer lm.loops.Done()
		lm.executor.Run(ctx)
	}()

	if err := lm.rest.Start(); err != nil {
		return fmt.Errorf("failed to start REST API: %w", err)
	}

	lm.logger.Info("system started",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.Duration("tick_period", lm.config.Sim.TickPeriod),
		zap.String("executor_id", lm.executor.ID()))
	return nil
}

// Shutdown stops the loops and releases connections, reverse of Start.
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := lm.rest.Shutdown(shutdownCtx); err != nil {
			shutdownErr = fmt.Errorf("rest api shutdown failed: %w", err)
		}

		if lm.cancel != nil {
			lm.cancel()
		}

		done := make(chan struct{})
		go func() {
			lm.loops.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			shutdownErr = fmt.Errorf("shutdown timeout exceeded")
		}

		lm.busConn.Close()
		lm.storage.Close()

		lm.logger.Info("Graceful shutdown completed")
	})

	return shutdownErr
}
