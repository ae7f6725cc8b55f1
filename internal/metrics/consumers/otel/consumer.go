// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package otel

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/argodev0/KIRO-BOT-sub013/internal/metrics"
	"github.com/argodev0/KIRO-BOT-sub013/pkg/profiler"
)

const (
	consumerName = "otel"
	meterName    = "github.com/argodev0/KIRO-BOT-sub013"
)

// Consumer exports profiler samples as OpenTelemetry gauges and
// histograms. Instruments are created against the globally registered
// meter provider, so wiring an SDK exporter is the caller's concern.
type Consumer struct {
	logger   logr.Logger
	provider metric.MeterProvider

	heapUsed   metric.Int64Gauge
	heapTotal  metric.Int64Gauge
	rss        metric.Int64Gauge
	external   metric.Int64Gauge
	growthRate metric.Float64Gauge
	gcPause    metric.Float64Histogram

	healthy   atomic.Bool
	lastError atomic.Pointer[error]

	eventsProcessed atomic.Uint64
	errorsCount     atomic.Uint64
}

// Option customizes consumer construction.
type Option func(*Consumer)

// WithMeterProvider overrides the global meter provider. Used in tests.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *Consumer) {
		c.provider = provider
	}
}

func NewConsumer(logger logr.Logger, opts ...Option) *Consumer {
	consumer := &Consumer{
		logger: logger.WithName("otel-consumer"),
	}
	for _, opt := range opts {
		opt(consumer)
	}
	consumer.healthy.Store(true)
	return consumer
}

func (c *Consumer) Name() string {
	return consumerName
}

// Start creates the instruments. It must run before any HandleEvent call.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting OpenTelemetry consumer")

	provider := c.provider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))

	var err error
	if c.heapUsed, err = meter.Int64Gauge("process.memory.heap.used",
		metric.WithDescription("Live heap bytes"),
		metric.WithUnit("By")); err != nil {
		return fmt.Errorf("failed to create heap used gauge: %w", err)
	}
	if c.heapTotal, err = meter.Int64Gauge("process.memory.heap.total",
		metric.WithDescription("Heap bytes obtained from the OS"),
		metric.WithUnit("By")); err != nil {
		return fmt.Errorf("failed to create heap total gauge: %w", err)
	}
	if c.rss, err = meter.Int64Gauge("process.memory.rss",
		metric.WithDescription("Resident set size"),
		metric.WithUnit("By")); err != nil {
		return fmt.Errorf("failed to create rss gauge: %w", err)
	}
	if c.external, err = meter.Int64Gauge("process.memory.external",
		metric.WithDescription("Runtime bytes held outside the heap"),
		metric.WithUnit("By")); err != nil {
		return fmt.Errorf("failed to create external gauge: %w", err)
	}
	if c.growthRate, err = meter.Float64Gauge("process.memory.heap.growth_rate",
		metric.WithDescription("Heap growth rate between samples"),
		metric.WithUnit("By/s")); err != nil {
		return fmt.Errorf("failed to create growth rate gauge: %w", err)
	}
	if c.gcPause, err = meter.Float64Histogram("process.runtime.gc.pause",
		metric.WithDescription("Observed garbage collection pause"),
		metric.WithUnit("ms")); err != nil {
		return fmt.Errorf("failed to create gc pause histogram: %w", err)
	}

	return nil
}

// HandleEvent records the event's measurements. It is non-blocking.
func (c *Consumer) HandleEvent(event metrics.MetricEvent) error {
	if err := c.record(event); err != nil {
		c.logger.Error(err, "Failed to record metrics event",
			"metric_type", event.MetricType,
			"source", event.Source)
		c.errorsCount.Add(1)
		c.lastError.Store(&err)
		return err
	}
	c.eventsProcessed.Add(1)
	return nil
}

func (c *Consumer) Health() metrics.ConsumerHealth {
	var lastErr error
	if errPtr := c.lastError.Load(); errPtr != nil {
		lastErr = *errPtr
	}

	return metrics.ConsumerHealth{
		Healthy:     c.healthy.Load(),
		LastError:   lastErr,
		EventsCount: c.eventsProcessed.Load(),
		ErrorsCount: c.errorsCount.Load(),
	}
}

func (c *Consumer) record(event metrics.MetricEvent) error {
	if c.heapUsed == nil {
		return fmt.Errorf("consumer not started")
	}

	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("source", event.Source))

	switch data := event.Data.(type) {
	case profiler.Snapshot:
		c.heapUsed.Record(ctx, int64(data.HeapUsed), attrs)
		c.heapTotal.Record(ctx, int64(data.HeapTotal), attrs)
		c.rss.Record(ctx, int64(data.RSS), attrs)
		c.external.Record(ctx, int64(data.External), attrs)
		c.growthRate.Record(ctx, data.HeapGrowthRate, attrs)
	case profiler.GCEvent:
		c.gcPause.Record(ctx, data.DurationMs, attrs)
	default:
		return fmt.Errorf("unsupported event payload %T for metric type %q", event.Data, event.MetricType)
	}
	return nil
}
