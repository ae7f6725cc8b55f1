// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/argodev0/KIRO-BOT-sub013/pkg/profiler"
)

// Compile-time checks
var _ Router = (*MetricsRouter)(nil)
var _ profiler.Receiver = (*MetricsRouter)(nil)

var (
	// ErrRouterClosed is returned when attempting to publish to a closed router
	ErrRouterClosed = errors.New("metrics router is closed")
)

// MetricsRouter is a simple registry that routes metric events to multiple
// consumers. It also implements profiler.Receiver so it can be attached to a
// sampler directly.
type MetricsRouter struct {
	logger    logr.Logger
	mu        sync.RWMutex
	consumers map[string]Consumer
	closed    bool // Set when shutting down
}

// NewMetricsRouter creates a new metrics router
func NewMetricsRouter(logger logr.Logger) *MetricsRouter {
	return &MetricsRouter{
		logger:    logger.WithName("metrics-router"),
		consumers: make(map[string]Consumer),
	}
}

// Start initializes the router and blocks until the context is cancelled
func (r *MetricsRouter) Start(ctx context.Context) error {
	r.logger.Info("Starting metrics router")

	<-ctx.Done()

	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.logger.Info("Metrics router shutdown")
	return nil
}

// RegisterConsumer adds a consumer to receive events.
// The consumer must already be started by the caller before registration.
func (r *MetricsRouter) RegisterConsumer(consumer Consumer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := consumer.Name()
	if _, exists := r.consumers[name]; exists {
		return fmt.Errorf("consumer %s already registered", name)
	}

	r.consumers[name] = consumer
	r.logger.Info("Consumer registered", "consumer", name)
	return nil
}

// UnregisterConsumer removes a consumer
func (r *MetricsRouter) UnregisterConsumer(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.consumers[name]; !exists {
		return fmt.Errorf("consumer %s not found", name)
	}

	delete(r.consumers, name)
	r.logger.Info("Consumer unregistered", "consumer", name)
	return nil
}

// Publish emits a single metrics event to all registered consumers
func (r *MetricsRouter) Publish(event MetricEvent) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrRouterClosed
	}

	// Directly call HandleEvent on each consumer; consumers handle their
	// own buffering internally. One failing consumer must not starve the
	// others.
	var lastErr error
	for name, consumer := range r.consumers {
		if err := consumer.HandleEvent(event); err != nil {
			r.logger.V(1).Info("Failed to handle event in consumer",
				"consumer", name, "error", err)
			lastErr = err
		}
	}

	return lastErr
}

// PublishBatch emits multiple metrics events efficiently
func (r *MetricsRouter) PublishBatch(events []MetricEvent) error {
	for _, event := range events {
		if err := r.Publish(event); err != nil {
			return err
		}
	}
	return nil
}

// Accept implements profiler.Receiver: it wraps sampler output in a
// MetricEvent and publishes it.
func (r *MetricsRouter) Accept(data any) error {
	event := MetricEvent{
		Timestamp: time.Now(),
		Source:    "memory-sampler",
		Data:      data,
	}

	switch data.(type) {
	case profiler.Snapshot, *profiler.Snapshot:
		event.MetricType = MetricTypeSnapshot
	case profiler.GCEvent, *profiler.GCEvent:
		event.MetricType = MetricTypeGC
	default:
		return fmt.Errorf("unsupported data type %T", data)
	}

	return r.Publish(event)
}

// Name implements profiler.Receiver
func (r *MetricsRouter) Name() string {
	return "metrics-router"
}

// GetStats returns router statistics
func (r *MetricsRouter) GetStats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	consumerStats := make(map[string]ConsumerHealth)
	for name, consumer := range r.consumers {
		consumerStats[name] = consumer.Health()
	}

	return RouterStats{
		ConsumerCount: len(r.consumers),
		Consumers:     consumerStats,
	}
}

// RouterStats contains metrics about the event router
type RouterStats struct {
	ConsumerCount int
	Consumers     map[string]ConsumerHealth
}
