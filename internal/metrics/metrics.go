// Package metrics exposes prometheus collectors for the core loops.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TickOverruns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stf",
		Subsystem: "clock",
		Name:      "tick_overruns_total",
		Help:      "Ticks a subscriber could not keep up with.",
	}, []string{"subscriber"})

	BusPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stf",
		Subsystem: "bus",
		Name:      "published_total",
		Help:      "Messages published to the bus.",
	})

	BusBufferDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stf",
		Subsystem: "bus",
		Name:      "buffer_dropped_total",
		Help:      "Offline-buffered messages shed on overflow.",
	})

	HubDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stf",
		Subsystem: "broadcast",
		Name:      "dropped_total",
		Help:      "Events shed per observer under backpressure.",
	}, []string{"subscriber"})

	CommandsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stf",
		Subsystem: "executor",
		Name:      "commands_claimed_total",
		Help:      "Queue rows claimed by this executor.",
	})

	CommandsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stf",
		Subsystem: "executor",
		Name:      "commands_finished_total",
		Help:      "Commands finished, by terminal status.",
	}, []string{"status"})

	OpRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stf",
		Subsystem: "executor",
		Name:      "op_retries_total",
		Help:      "Idempotent device operations retried after timeout.",
	})
)
