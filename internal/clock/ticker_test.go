package clock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestTickerDeliversNonOverlappingTicks(t *testing.T) {
	tk := NewTicker(5*time.Millisecond, zap.NewNop())

	var running atomic.Bool
	var overlapped atomic.Bool
	var count atomic.Int64

	tk.Subscribe("probe", func(now time.Time, dt time.Duration) {
		if !running.CompareAndSwap(false, true) {
			overlapped.Store(true)
		}
		if dt != 5*time.Millisecond {
			t.Errorf("dt stretched to %s", dt)
		}
		count.Add(1)
		time.Sleep(time.Millisecond)
		running.Store(false)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	tk.Run(ctx)

	if overlapped.Load() {
		t.Error("handler invocations overlapped")
	}
	if count.Load() == 0 {
		t.Error("no ticks delivered")
	}
}

func TestTickerCountsOverruns(t *testing.T) {
	tk := NewTicker(5*time.Millisecond, zap.NewNop())

	tk.Subscribe("slow", func(time.Time, time.Duration) {
		time.Sleep(30 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	tk.Run(ctx)

	if tk.Overruns("slow") == 0 {
		t.Error("slow subscriber recorded no overruns")
	}
	if tk.Overruns("unknown") != 0 {
		t.Error("unknown subscriber reported overruns")
	}
}
