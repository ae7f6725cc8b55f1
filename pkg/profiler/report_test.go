// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package profiler

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGenerator() ReportGenerator {
	return ReportGenerator{
		Thresholds:     DefaultThresholds(),
		GCInstrumented: true,
		Environment:    Environment{Hostname: "test-host", PID: 1234},
	}
}

func runWindow(snapshots []Snapshot) (time.Time, time.Time) {
	if len(snapshots) == 0 {
		now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		return now, now
	}
	return snapshots[0].Timestamp, snapshots[len(snapshots)-1].Timestamp
}

func TestReportGenerator_Summary(t *testing.T) {
	snapshots := syntheticSnapshots(10, time.Second, func(i int) uint64 {
		return 100<<20 + uint64(i)*(1<<20)
	})
	start, end := runWindow(snapshots)

	report := testGenerator().Generate(start, end, snapshots, nil, nil)

	assert.Equal(t, 10, report.Summary.TotalMeasurements)
	assert.Equal(t, int64(9<<20), report.Summary.HeapGrowth)
	assert.Equal(t, int64(18<<20), report.Summary.RSSGrowth)
	// 9 MiB over the 9 seconds between first and last snapshot.
	assert.InDelta(t, float64(1<<20), report.Summary.HeapGrowthRatePerSec, 1.0)
	assert.Equal(t, uint64(109<<20), report.Summary.PeakHeapUsed)
	assert.Equal(t, uint64(218<<20), report.Summary.PeakRSS)
	assert.Equal(t, "test-host", report.Environment.Hostname)
}

func TestReportGenerator_EmptyRun(t *testing.T) {
	start, end := runWindow(nil)

	report := testGenerator().Generate(start, end, nil, nil, nil)

	assert.Equal(t, 0, report.Summary.TotalMeasurements)
	assert.Equal(t, Stats{}, report.HeapStats)
	assert.Equal(t, Stats{}, report.RSSStats)
	assert.Equal(t, Stats{}, report.ExternalStats)
	assert.False(t, report.Leak.Detected)
	assert.Equal(t, "insufficient data", report.Leak.Reason)
	assert.Empty(t, report.Snapshots)
}

func TestReportGenerator_StatsOrdering(t *testing.T) {
	snapshots := syntheticSnapshots(15, time.Second, func(i int) uint64 {
		return uint64(50<<20 + (i%4)*(3<<20))
	})
	start, end := runWindow(snapshots)

	report := testGenerator().Generate(start, end, snapshots, nil, nil)

	for _, stats := range []Stats{report.HeapStats, report.RSSStats, report.ExternalStats} {
		assert.LessOrEqual(t, stats.Min, stats.Mean)
		assert.LessOrEqual(t, stats.Mean, stats.Max)
		assert.LessOrEqual(t, stats.Min, stats.Median)
		assert.LessOrEqual(t, stats.Median, stats.Max)
	}
}

func TestReportGenerator_Deterministic(t *testing.T) {
	snapshots := syntheticSnapshots(25, time.Second, func(i int) uint64 {
		return 100<<20 + uint64(i*i)*(1<<18)
	})
	events := []GCEvent{
		{Timestamp: snapshots[5].Timestamp, DurationMs: 12.5, HeapFreed: 4 << 20},
		{Timestamp: snapshots[15].Timestamp, DurationMs: 8.25, HeapFreed: 2 << 20},
	}
	violations := []ThresholdViolation{
		{Kind: ViolationHeapUsage, Timestamp: snapshots[3].Timestamp, ObservedValue: 1, ThresholdValue: 2},
	}
	start, end := runWindow(snapshots)

	generator := testGenerator()
	first := generator.Generate(start, end, snapshots, events, violations)
	second := generator.Generate(start, end, snapshots, events, violations)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestReportGenerator_BoundedTails(t *testing.T) {
	snapshots := syntheticSnapshots(250, time.Second, func(i int) uint64 {
		return uint64(i) << 10
	})
	violations := make([]ThresholdViolation, 45)
	for i := range violations {
		violations[i] = ThresholdViolation{Kind: ViolationHeapUsage, ObservedValue: float64(i)}
	}
	start, end := runWindow(snapshots)

	report := testGenerator().Generate(start, end, snapshots, nil, violations)

	require.Len(t, report.Snapshots, 100)
	// The tail keeps the most recent entries.
	assert.Equal(t, snapshots[150], report.Snapshots[0])
	assert.Equal(t, snapshots[249], report.Snapshots[99])

	require.Len(t, report.Violations, 20)
	assert.Equal(t, float64(25), report.Violations[0].ObservedValue)
	assert.Equal(t, float64(44), report.Violations[19].ObservedValue)

	// totalMeasurements reflects the full run, not the retained tail.
	assert.Equal(t, 250, report.Summary.TotalMeasurements)
}

func TestReportGenerator_GCSummary(t *testing.T) {
	tests := []struct {
		name         string
		instrumented bool
		events       []GCEvent
		expected     GCSummary
	}{
		{
			name:         "not instrumented",
			instrumented: false,
			expected:     GCSummary{Available: false, Message: gcUnavailableMessage},
		},
		{
			name:         "instrumented but never invoked",
			instrumented: true,
			expected:     GCSummary{Available: true},
		},
		{
			name:         "aggregates pause and freed totals",
			instrumented: true,
			events: []GCEvent{
				{DurationMs: 10, HeapFreed: 4 << 20, RSSFreed: 1 << 20},
				{DurationMs: 30, HeapFreed: 2 << 20, RSSFreed: -(1 << 19)},
			},
			expected: GCSummary{
				Available:      true,
				Count:          2,
				AvgPauseMs:     20,
				TotalHeapFreed: 6 << 20,
				TotalRSSFreed:  1<<20 - 1<<19,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator := testGenerator()
			generator.GCInstrumented = tt.instrumented
			start, end := runWindow(nil)

			report := generator.Generate(start, end, nil, tt.events, nil)
			assert.Equal(t, tt.expected, report.GC)
		})
	}
}

func TestReportGenerator_Recommendations(t *testing.T) {
	tests := []struct {
		name       string
		thresholds ThresholdConfig
		heapAt     func(i int) uint64
		events     []GCEvent
		categories []string
		priorities map[string]string
	}{
		{
			name:       "quiet run produces no recommendations",
			thresholds: DefaultThresholds(),
			heapAt:     func(i int) uint64 { return 10 << 20 },
			categories: []string{},
		},
		{
			name:       "peak heap over threshold",
			thresholds: ThresholdConfig{HeapUsedBytes: 1},
			heapAt:     func(i int) uint64 { return 10 << 20 },
			categories: []string{"Memory Usage"},
			priorities: map[string]string{"Memory Usage": "High"},
		},
		{
			name:       "leak detection produces critical recommendation",
			thresholds: ThresholdConfig{},
			heapAt:     func(i int) uint64 { return 100<<20 + uint64(i)*(2<<20) },
			categories: []string{"Memory Leak"},
			priorities: map[string]string{"Memory Leak": "Critical"},
		},
		{
			name:       "slow gc produces tuning recommendation",
			thresholds: ThresholdConfig{},
			heapAt:     func(i int) uint64 { return 10 << 20 },
			events: []GCEvent{
				{DurationMs: 150},
				{DurationMs: 250},
			},
			categories: []string{"GC Tuning"},
			priorities: map[string]string{"GC Tuning": "Medium"},
		},
		{
			name:       "growth and leak rules fire independently",
			thresholds: ThresholdConfig{GrowthRateBytesPerSec: 1000},
			heapAt:     func(i int) uint64 { return 100<<20 + uint64(i)*(2<<20) },
			categories: []string{"Memory Growth", "Memory Leak"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshots := syntheticSnapshots(20, time.Second, tt.heapAt)
			start, end := runWindow(snapshots)

			generator := testGenerator()
			generator.Thresholds = tt.thresholds
			report := generator.Generate(start, end, snapshots, tt.events, nil)

			var got []string
			for _, rec := range report.Recommendations {
				got = append(got, rec.Category)
				assert.NotEmpty(t, rec.Issue)
				assert.NotEmpty(t, rec.Suggestions)
				if want, ok := tt.priorities[rec.Category]; ok {
					assert.Equal(t, want, rec.Priority)
				}
			}
			assert.ElementsMatch(t, tt.categories, got)
		})
	}
}

func TestReportGenerator_ExternalMemoryRecommendation(t *testing.T) {
	snapshots := syntheticSnapshots(12, time.Second, func(i int) uint64 { return 10 << 20 })
	for i := range snapshots {
		snapshots[i].External = 200 << 20
	}
	start, end := runWindow(snapshots)

	generator := testGenerator()
	generator.Thresholds = ThresholdConfig{ExternalBytes: 100 << 20}
	report := generator.Generate(start, end, snapshots, nil, nil)

	require.Len(t, report.Recommendations, 1)
	assert.Equal(t, "External Memory", report.Recommendations[0].Category)
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	generator := testGenerator()
	generator.GCInstrumented = false
	start, end := runWindow(nil)
	report := generator.Generate(start, end, nil, nil, nil)

	require.NoError(t, WriteReport(path, report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.Environment.Hostname, decoded.Environment.Hostname)
	assert.Equal(t, gcUnavailableMessage, decoded.GC.Message)
}

func TestWriteReport_Failure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "report.json")
	err := WriteReport(path, &Report{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write report")
}

func TestWriteSummary(t *testing.T) {
	snapshots := syntheticSnapshots(20, time.Second, func(i int) uint64 {
		return 100<<20 + uint64(i)*(2<<20)
	})
	start, end := runWindow(snapshots)
	report := testGenerator().Generate(start, end, snapshots, nil, nil)

	var buf bytes.Buffer
	WriteSummary(&buf, report)

	out := buf.String()
	assert.Contains(t, out, "Memory Profile Summary")
	assert.Contains(t, out, "Measurements: 20")
	assert.Contains(t, out, "Leak Detected: true")
	assert.Contains(t, out, "Memory Leak")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in       int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.00 KiB"},
		{3 << 20, "3.00 MiB"},
		{5 << 30, "5.00 GiB"},
		{-(3 << 20), "-3.00 MiB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatBytes(tt.in))
	}
}
