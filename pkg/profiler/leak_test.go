// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticSnapshots builds count snapshots spaced step apart with heap sizes
// produced by heapAt.
func syntheticSnapshots(count int, step time.Duration, heapAt func(i int) uint64) []Snapshot {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	snapshots := make([]Snapshot, count)
	for i := range snapshots {
		snapshots[i] = Snapshot{
			Timestamp: base.Add(time.Duration(i) * step),
			ElapsedMs: uint64(time.Duration(i) * step / time.Millisecond),
			MemoryUsage: MemoryUsage{
				HeapUsed: heapAt(i),
				RSS:      heapAt(i) * 2,
			},
		}
	}
	return snapshots
}

func TestDetectLeak_InsufficientData(t *testing.T) {
	tests := []struct {
		name  string
		count int
	}{
		{"empty series", 0},
		{"single snapshot", 1},
		{"nine snapshots", 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Steep growth that would otherwise trip the heuristic.
			snapshots := syntheticSnapshots(tt.count, time.Second, func(i int) uint64 {
				return 100<<20 + uint64(i)*(10<<20)
			})

			verdict := DetectLeak(snapshots)
			assert.False(t, verdict.Detected)
			assert.Equal(t, "insufficient data", verdict.Reason)
			assert.Equal(t, "Low", verdict.Confidence)
		})
	}
}

func TestDetectLeak_SteadyGrowth(t *testing.T) {
	// 2 MiB of heap growth every 1000ms is well above the 1 MiB/s detection
	// threshold with every pairwise rate positive.
	snapshots := syntheticSnapshots(20, time.Second, func(i int) uint64 {
		return 100<<20 + uint64(i)*(2<<20)
	})

	verdict := DetectLeak(snapshots)
	require.True(t, verdict.Detected)
	assert.Equal(t, "High", verdict.Confidence)
	assert.InDelta(t, float64(2<<20), verdict.AvgGrowthRate, 1.0)
	assert.Equal(t, 1.0, verdict.PositiveRatio)
	assert.NotEmpty(t, verdict.Reason)
	assert.Contains(t, verdict.Note, "heuristic")
}

func TestDetectLeak_OscillatingHeap(t *testing.T) {
	// Heap oscillating 1 KiB around a constant baseline never accumulates.
	snapshots := syntheticSnapshots(20, time.Second, func(i int) uint64 {
		base := uint64(200 << 20)
		if i%2 == 0 {
			return base + 1024
		}
		return base - 1024
	})

	verdict := DetectLeak(snapshots)
	assert.False(t, verdict.Detected)
	assert.Equal(t, "Low", verdict.Confidence)
}

func TestDetectLeak_WindowIgnoresOldGrowth(t *testing.T) {
	// Heavy growth in the first 10 snapshots followed by 20 flat ones: only
	// the last 20 snapshots are inspected, so no leak is flagged.
	snapshots := syntheticSnapshots(30, time.Second, func(i int) uint64 {
		if i < 10 {
			return 100<<20 + uint64(i)*(50<<20)
		}
		return 100<<20 + 9*(50<<20)
	})

	verdict := DetectLeak(snapshots)
	assert.False(t, verdict.Detected)
}

func TestDetectLeak_SlowGrowthBelowRateThreshold(t *testing.T) {
	// Monotonic growth at 100 KiB/s: all rates positive, but the average
	// stays below 1 MiB/s.
	snapshots := syntheticSnapshots(20, time.Second, func(i int) uint64 {
		return 100<<20 + uint64(i)*(100<<10)
	})

	verdict := DetectLeak(snapshots)
	assert.False(t, verdict.Detected)
	assert.Equal(t, 1.0, verdict.PositiveRatio)
}

func TestDetectLeak_FastButIntermittentGrowth(t *testing.T) {
	// Large sawtooth: the average rate clears the threshold only when growth
	// is also sustained, and here half the pairwise rates are negative.
	snapshots := syntheticSnapshots(20, time.Second, func(i int) uint64 {
		base := uint64(500 << 20)
		if i%2 == 0 {
			return base + 100<<20
		}
		return base
	})

	verdict := DetectLeak(snapshots)
	assert.False(t, verdict.Detected)
	assert.Less(t, verdict.PositiveRatio, 0.70)
}

func TestDetectLeak_ZeroTimeDeltasSkipped(t *testing.T) {
	snapshots := syntheticSnapshots(12, time.Second, func(i int) uint64 {
		return 100 << 20
	})
	// Collapse every timestamp onto the first: no usable pairwise rates.
	for i := range snapshots {
		snapshots[i].Timestamp = snapshots[0].Timestamp
	}

	verdict := DetectLeak(snapshots)
	assert.False(t, verdict.Detected)
	assert.Equal(t, "insufficient data", verdict.Reason)
}

func TestDetectLeak_Deterministic(t *testing.T) {
	snapshots := syntheticSnapshots(20, time.Second, func(i int) uint64 {
		return 100<<20 + uint64(i)*(2<<20)
	})

	first := DetectLeak(snapshots)
	second := DetectLeak(snapshots)
	assert.Equal(t, first, second)
}
