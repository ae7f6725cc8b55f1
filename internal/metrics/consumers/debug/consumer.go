// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package debug

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/argodev0/KIRO-BOT-sub013/internal/metrics"
	"github.com/argodev0/KIRO-BOT-sub013/pkg/profiler"
)

const (
	consumerName = "debug"
)

// Consumer logs every metric event it receives. It is meant for
// verbose runs where the operator wants to watch samples as they land.
type Consumer struct {
	logger logr.Logger

	healthy   atomic.Bool
	lastError atomic.Pointer[error]

	eventsProcessed atomic.Uint64
	errorsCount     atomic.Uint64
}

func NewConsumer(logger logr.Logger) *Consumer {
	consumer := &Consumer{
		logger: logger.WithName("debug-consumer"),
	}
	consumer.healthy.Store(true)
	return consumer
}

func (c *Consumer) Name() string {
	return consumerName
}

// HandleEvent logs the event immediately and returns. It never blocks.
func (c *Consumer) HandleEvent(event metrics.MetricEvent) error {
	if err := c.logEvent(event); err != nil {
		c.logger.Error(err, "Failed to process metrics event",
			"metric_type", event.MetricType,
			"source", event.Source)
		c.errorsCount.Add(1)
		c.lastError.Store(&err)
		return err
	}
	c.eventsProcessed.Add(1)
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting debug consumer")
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

func (c *Consumer) logEvent(event metrics.MetricEvent) error {
	switch data := event.Data.(type) {
	case profiler.Snapshot:
		c.logger.Info("memory snapshot",
			"source", event.Source,
			"elapsed_ms", data.ElapsedMs,
			"heap_used", data.HeapUsed,
			"heap_total", data.HeapTotal,
			"rss", data.RSS,
			"external", data.External,
			"heap_growth", data.HeapGrowth,
			"growth_rate_bps", data.HeapGrowthRate)
	case profiler.GCEvent:
		c.logger.Info("gc event",
			"source", event.Source,
			"duration_ms", data.DurationMs,
			"heap_freed", data.HeapFreed,
			"rss_freed", data.RSSFreed)
	default:
		return fmt.Errorf("unsupported event payload %T for metric type %q", event.Data, event.MetricType)
	}
	return nil
}
