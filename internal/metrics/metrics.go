// Copyright 2026 The tdengine-backup-engine Authors
// This file is part of tdengine-backup-engine.
//
// tdengine-backup-engine is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// tdengine-backup-engine is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with tdengine-backup-engine. If not, see <http://www.gnu.org/licenses/>.

// Package metrics holds the Prometheus collectors for the engine,
// interceptor and backup coordinator, registered against a caller-supplied
// prometheus.Registerer so cmd/backupd can expose them on its own mux.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the full set of collectors this module exposes.
type Metrics struct {
	EngineBlocksByState   *prometheus.GaugeVec
	EngineTransitionTotal *prometheus.CounterVec

	InterceptorEventsProcessed prometheus.Counter
	InterceptorEventsRejected  prometheus.Counter
	InterceptorEventsDropped   prometheus.Counter

	CoordinatorBatchBlocks   prometheus.Counter
	CoordinatorBatchBytes    prometheus.Counter
	CoordinatorBatchDuration prometheus.Histogram
	CoordinatorErrorsTotal   prometheus.Counter
	CoordinatorRetriesTotal  prometheus.Counter
}

// New constructs and registers every collector against reg. reg must not
// be nil; callers that don't want metrics exposed should pass
// prometheus.NewRegistry() and simply not serve it.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EngineBlocksByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tdbackup",
			Subsystem: "engine",
			Name:      "blocks",
			Help:      "Current number of blocks tracked by the Bitmap Engine, by state.",
		}, []string{"state"}),
		EngineTransitionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tdbackup",
			Subsystem: "engine",
			Name:      "transitions_total",
			Help:      "Total state transitions applied, by target state.",
		}, []string{"state"}),
		InterceptorEventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tdbackup",
			Subsystem: "interceptor",
			Name:      "events_processed_total",
			Help:      "Total write-path events drained from the ring buffer and applied.",
		}),
		InterceptorEventsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tdbackup",
			Subsystem: "interceptor",
			Name:      "events_rejected_total",
			Help:      "Total write-path events drained from the ring buffer that failed their engine transition.",
		}),
		InterceptorEventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tdbackup",
			Subsystem: "interceptor",
			Name:      "events_dropped_total",
			Help:      "Total write-path events dropped because the ring buffer was full.",
		}),
		CoordinatorBatchBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tdbackup",
			Subsystem: "coordinator",
			Name:      "batch_blocks_total",
			Help:      "Total blocks written into backup archives.",
		}),
		CoordinatorBatchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tdbackup",
			Subsystem: "coordinator",
			Name:      "batch_bytes_total",
			Help:      "Total bytes written into backup archives.",
		}),
		CoordinatorBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tdbackup",
			Subsystem: "coordinator",
			Name:      "batch_duration_seconds",
			Help:      "Time spent producing one backup batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		CoordinatorErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tdbackup",
			Subsystem: "coordinator",
			Name:      "errors_total",
			Help:      "Total errors recorded by the backup coordinator.",
		}),
		CoordinatorRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tdbackup",
			Subsystem: "coordinator",
			Name:      "retries_total",
			Help:      "Total retry attempts made by the backup coordinator.",
		}),
	}

	reg.MustRegister(
		m.EngineBlocksByState,
		m.EngineTransitionTotal,
		m.InterceptorEventsProcessed,
		m.InterceptorEventsRejected,
		m.InterceptorEventsDropped,
		m.CoordinatorBatchBlocks,
		m.CoordinatorBatchBytes,
		m.CoordinatorBatchDuration,
		m.CoordinatorErrorsTotal,
		m.CoordinatorRetriesTotal,
	)
	return m
}

// ObserveEngineStats copies an engine.Stats snapshot into the state gauges.
func (m *Metrics) ObserveEngineStats(dirty, newCount, deleted uint64) {
	m.EngineBlocksByState.WithLabelValues("dirty").Set(float64(dirty))
	m.EngineBlocksByState.WithLabelValues("new").Set(float64(newCount))
	m.EngineBlocksByState.WithLabelValues("deleted").Set(float64(deleted))
}

// ObserveInterceptorStats adds the given increments of the interceptor's
// processed/rejected/dropped counts to this package's cumulative counters;
// callers pass deltas since their previous call, not absolute values.
func (m *Metrics) ObserveInterceptorStats(processedDelta, rejectedDelta, droppedDelta uint64) {
	m.InterceptorEventsProcessed.Add(float64(processedDelta))
	m.InterceptorEventsRejected.Add(float64(rejectedDelta))
	m.InterceptorEventsDropped.Add(float64(droppedDelta))
}

// ObserveBatch records one coordinator batch.
func (m *Metrics) ObserveBatch(blocks, bytes uint64, durationSeconds float64) {
	m.CoordinatorBatchBlocks.Add(float64(blocks))
	m.CoordinatorBatchBytes.Add(float64(bytes))
	m.CoordinatorBatchDuration.Observe(durationSeconds)
}
