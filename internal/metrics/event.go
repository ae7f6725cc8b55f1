// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package metrics

import (
	"context"
	"time"
)

// MetricType represents the type of profiler metric flowing through the pipeline
type MetricType string

const (
	// MetricTypeSnapshot carries a profiler.Snapshot
	MetricTypeSnapshot MetricType = "memory_snapshot"
	// MetricTypeGC carries a profiler.GCEvent
	MetricTypeGC MetricType = "gc_event"
)

// MetricEvent represents a profiler event flowing through the pipeline.
// Data holds the actual payload: a profiler.Snapshot for MetricTypeSnapshot
// or a profiler.GCEvent for MetricTypeGC.
type MetricEvent struct {
	Timestamp  time.Time
	Source     string
	MetricType MetricType
	Data       any
}

// Consumer represents a metrics consumer that processes metric events.
// Each consumer receives events via direct method calls and decides how to
// handle them.
type Consumer interface {
	// Name returns the unique name of this consumer
	Name() string

	// HandleEvent processes a single metric event (non-blocking)
	HandleEvent(event MetricEvent) error

	// Start initializes the consumer (e.g., start background workers)
	Start(ctx context.Context) error

	// Health returns the current health status
	Health() ConsumerHealth
}

type ConsumerHealth struct {
	Healthy     bool
	LastError   error
	EventsCount uint64
	ErrorsCount uint64
}

// Router defines the interface for routing metrics events to consumers
type Router interface {
	// Publish emits a metrics event to all registered consumers
	Publish(event MetricEvent) error

	// PublishBatch emits multiple metrics events efficiently
	PublishBatch(events []MetricEvent) error
}
