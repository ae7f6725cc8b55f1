// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package debug

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argodev0/KIRO-BOT-sub013/internal/metrics"
	"github.com/argodev0/KIRO-BOT-sub013/pkg/profiler"
)

func snapshotEvent() metrics.MetricEvent {
	return metrics.MetricEvent{
		Timestamp:  time.Now(),
		Source:     "memory-sampler",
		MetricType: metrics.MetricTypeSnapshot,
		Data: profiler.Snapshot{
			ElapsedMs: 1000,
			MemoryUsage: profiler.MemoryUsage{
				HeapUsed: 64 << 20,
				RSS:      128 << 20,
			},
		},
	}
}

func TestConsumer_HandleSnapshotEvent(t *testing.T) {
	consumer := NewConsumer(logr.Discard())
	require.NoError(t, consumer.Start(context.Background()))

	require.NoError(t, consumer.HandleEvent(snapshotEvent()))

	health := consumer.Health()
	assert.True(t, health.Healthy)
	assert.Equal(t, uint64(1), health.EventsCount)
	assert.Equal(t, uint64(0), health.ErrorsCount)
	assert.NoError(t, health.LastError)
}

func TestConsumer_HandleGCEvent(t *testing.T) {
	consumer := NewConsumer(logr.Discard())

	event := metrics.MetricEvent{
		Timestamp:  time.Now(),
		Source:     "memory-sampler",
		MetricType: metrics.MetricTypeGC,
		Data: profiler.GCEvent{
			DurationMs: 4.5,
			HeapFreed:  32 << 20,
		},
	}
	require.NoError(t, consumer.HandleEvent(event))
	assert.Equal(t, uint64(1), consumer.Health().EventsCount)
}

func TestConsumer_RejectsUnknownPayload(t *testing.T) {
	consumer := NewConsumer(logr.Discard())

	event := metrics.MetricEvent{
		MetricType: metrics.MetricTypeSnapshot,
		Data:       "not a snapshot",
	}
	assert.Error(t, consumer.HandleEvent(event))

	health := consumer.Health()
	assert.Equal(t, uint64(0), health.EventsCount)
	assert.Equal(t, uint64(1), health.ErrorsCount)
	assert.Error(t, health.LastError)
}

func TestConsumer_Name(t *testing.T) {
	assert.Equal(t, "debug", NewConsumer(logr.Discard()).Name())
}
