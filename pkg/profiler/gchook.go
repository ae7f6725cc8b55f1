// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package profiler

import (
	"time"

	"github.com/go-logr/logr"
)

// GCHook instruments caller-initiated garbage collections. Wrap turns a
// manual collection entry point (typically runtime.GC) into a trigger that
// records a memory snapshot immediately before and after each collection,
// along with its duration.
//
// The hook is optional: a sampler without one reports GC activity as
// unavailable rather than fabricating data.
type GCHook struct {
	logger logr.Logger
	source MemorySource
	record func(GCEvent)
}

func NewGCHook(logger logr.Logger, source MemorySource, record func(GCEvent)) *GCHook {
	return &GCHook{
		logger: logger.WithName("gc-hook"),
		source: source,
		record: record,
	}
}

// Wrap returns trigger instrumented with before/after memory capture.
// The returned function blocks for the duration of the collection, exactly
// like the original trigger.
func (h *GCHook) Wrap(trigger func()) func() {
	return func() {
		before, err := h.source.Usage()
		if err != nil {
			h.logger.V(1).Info("partial memory reading before GC", "error", err)
		}

		start := time.Now()
		trigger()
		duration := time.Since(start)

		after, err := h.source.Usage()
		if err != nil {
			h.logger.V(1).Info("partial memory reading after GC", "error", err)
		}

		event := GCEvent{
			Timestamp:  start,
			DurationMs: float64(duration.Microseconds()) / 1000.0,
			Before:     before,
			After:      after,
			HeapFreed:  int64(before.HeapUsed) - int64(after.HeapUsed),
			RSSFreed:   int64(before.RSS) - int64(after.RSS),
		}
		h.record(event)

		h.logger.V(1).Info("instrumented GC completed",
			"durationMs", event.DurationMs,
			"heapFreed", event.HeapFreed,
			"rssFreed", event.RSSFreed)
	}
}
