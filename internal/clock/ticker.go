// Package clock is the single source of simulated time. One Ticker drives
// every simulator at a fixed period.
package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/soham10i/stf-hw/internal/metrics"
)

// TickFunc is invoked once per tick. t is monotonic wall time of the tick,
// dt the nominal period. A subscriber's handler for tick n always returns
// before its handler for tick n+1 starts.
type TickFunc func(t time.Time, dt time.Duration)

type subscriber struct {
	name     string
	handler  TickFunc
	ticks    chan time.Time
	overruns atomic.Uint64
}

// Ticker fans a fixed-period tick out to registered subscribers. Each
// subscriber runs on its own goroutine; ordering between subscribers within
// a tick is unspecified.
type Ticker struct {
	period time.Duration
	logger *zap.Logger

	mu   sync.Mutex
	subs []*subscriber

	ticks   atomic.Uint64
	running atomic.Bool
	wg      sync.WaitGroup
}

func NewTicker(period time.Duration, logger *zap.Logger) *Ticker {
	return &Ticker{period: period, logger: logger}
}

// Period returns the nominal tick period.
func (tk *Ticker) Period() time.Duration { return tk.period }

// Ticks returns the total number of ticks emitted so far.
func (tk *Ticker) Ticks() uint64 { return tk.ticks.Load() }

// Subscribe registers a handler. Must be called before Run.
func (tk *Ticker) Subscribe(name string, handler TickFunc) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	tk.subs = append(tk.subs, &subscriber{
		name:    name,
		handler: handler,
		// Capacity one: a tick that arrives while the handler is busy is
		// queued and runs immediately after, with nominal dt. A second
		// queued tick is an overrun and is dropped.
		ticks: make(chan time.Time, 1),
	})
}

// Overruns returns the overrun count for a named subscriber.
func (tk *Ticker) Overruns(name string) uint64 {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	for _, s := range tk.subs {
		if s.name == name {
			return s.overruns.Load()
		}
	}
	return 0
}

// Run emits ticks until ctx is cancelled and waits for all subscriber
// goroutines to drain.
func (tk *Ticker) Run(ctx context.Context) {
	if !tk.running.CompareAndSwap(false, true) {
		return
	}

	tk.mu.Lock()
	subs := make([]*subscriber, len(tk.subs))
	copy(subs, tk.subs)
	tk.mu.Unlock()

	for _, s := range subs {
		tk.wg.Add(1)
		go tk.runSubscriber(ctx, s)
	}

	ticker := time.NewTicker(tk.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			tk.wg.Wait()
			tk.running.Store(false)
			return
		case now := <-ticker.C:
			tk.ticks.Add(1)
			for _, s := range subs {
				select {
				case s.ticks <- now:
				default:
					n := s.overruns.Add(1)
					metrics.TickOverruns.WithLabelValues(s.name).Inc()
					if n%100 == 1 {
						tk.logger.Warn("tick overrun",
							zap.String("subscriber", s.name),
							zap.Uint64("overruns", n))
					}
				}
			}
		}
	}
}

func (tk *Ticker) runSubscriber(ctx context.Context, s *subscriber) {
	defer tk.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-s.ticks:
			s.handler(now, tk.period)
		}
	}
}
