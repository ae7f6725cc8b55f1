// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package profiler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	// maxReportViolations bounds the violation tail retained in the report.
	maxReportViolations = 20

	// maxReportSnapshots bounds the raw snapshot tail retained in the report.
	maxReportSnapshots = 100

	// gcPauseRecommendationMs is the average GC pause above which a tuning
	// recommendation is emitted.
	gcPauseRecommendationMs = 100

	// gcUnavailableMessage appears in the report when no GC instrumentation
	// was installed for the run.
	gcUnavailableMessage = "GC monitoring not available"
)

// ReportGenerator synthesizes a Report from the buffers accumulated during a
// run. Generation is deterministic: identical inputs yield identical reports.
type ReportGenerator struct {
	Thresholds     ThresholdConfig
	GCInstrumented bool
	Environment    Environment
}

// Generate assembles the complete report for a run that started at startTime
// and ended at endTime. It only reads its inputs; the snapshot and violation
// tails are copied, never aliased.
func (g ReportGenerator) Generate(startTime, endTime time.Time, snapshots []Snapshot, gcEvents []GCEvent, violations []ThresholdViolation) *Report {
	report := &Report{
		GeneratedAt: endTime,
		Environment: g.Environment,
		Summary:     g.summarize(startTime, endTime, snapshots),
		Leak:        DetectLeak(snapshots),
		GC:          g.summarizeGC(gcEvents),
		Violations:  tail(violations, maxReportViolations),
		Snapshots:   tail(snapshots, maxReportSnapshots),
		GCEvents:    tail(gcEvents, len(gcEvents)),
	}

	heap := make([]float64, len(snapshots))
	rss := make([]float64, len(snapshots))
	external := make([]float64, len(snapshots))
	for i, snap := range snapshots {
		heap[i] = float64(snap.HeapUsed)
		rss[i] = float64(snap.RSS)
		external[i] = float64(snap.External)
	}
	report.HeapStats = ComputeStats(heap)
	report.RSSStats = ComputeStats(rss)
	report.ExternalStats = ComputeStats(external)

	report.Recommendations = g.recommend(report.Summary, report.Leak, report.GC)
	return report
}

func (g ReportGenerator) summarize(startTime, endTime time.Time, snapshots []Snapshot) Summary {
	summary := Summary{
		StartTime:         startTime,
		DurationMs:        uint64(endTime.Sub(startTime).Milliseconds()),
		TotalMeasurements: len(snapshots),
	}
	if len(snapshots) == 0 {
		return summary
	}

	first := snapshots[0]
	last := snapshots[len(snapshots)-1]
	summary.HeapGrowth = int64(last.HeapUsed) - int64(first.HeapUsed)
	summary.RSSGrowth = int64(last.RSS) - int64(first.RSS)
	if seconds := last.Timestamp.Sub(first.Timestamp).Seconds(); seconds > 0 {
		summary.HeapGrowthRatePerSec = float64(summary.HeapGrowth) / seconds
	}

	for _, snap := range snapshots {
		if snap.HeapUsed > summary.PeakHeapUsed {
			summary.PeakHeapUsed = snap.HeapUsed
		}
		if snap.RSS > summary.PeakRSS {
			summary.PeakRSS = snap.RSS
		}
		if snap.External > summary.PeakExternal {
			summary.PeakExternal = snap.External
		}
	}
	return summary
}

func (g ReportGenerator) summarizeGC(events []GCEvent) GCSummary {
	if !g.GCInstrumented {
		return GCSummary{
			Available: false,
			Message:   gcUnavailableMessage,
		}
	}

	summary := GCSummary{
		Available: true,
		Count:     len(events),
	}
	if len(events) == 0 {
		return summary
	}

	var totalPause float64
	for _, event := range events {
		totalPause += event.DurationMs
		summary.TotalHeapFreed += event.HeapFreed
		summary.TotalRSSFreed += event.RSSFreed
	}
	summary.AvgPauseMs = totalPause / float64(len(events))
	return summary
}

// recommend applies independent rule checks; several recommendations may fire
// for the same run.
func (g ReportGenerator) recommend(summary Summary, leak LeakVerdict, gc GCSummary) []Recommendation {
	recs := make([]Recommendation, 0, 5)

	if g.Thresholds.HeapUsedBytes > 0 && summary.PeakHeapUsed > g.Thresholds.HeapUsedBytes {
		recs = append(recs, Recommendation{
			Category: "Memory Usage",
			Priority: "High",
			Issue: fmt.Sprintf("peak heap usage %s exceeded the %s threshold",
				formatBytes(int64(summary.PeakHeapUsed)), formatBytes(int64(g.Thresholds.HeapUsedBytes))),
			Suggestions: []string{
				"profile allocation hot spots with pprof heap profiles",
				"bound in-memory caches and add eviction",
				"reuse large buffers instead of reallocating per operation",
			},
		})
	}

	if g.Thresholds.GrowthRateBytesPerSec > 0 && summary.HeapGrowthRatePerSec > g.Thresholds.GrowthRateBytesPerSec {
		recs = append(recs, Recommendation{
			Category: "Memory Growth",
			Priority: "Medium",
			Issue: fmt.Sprintf("heap grew at %.0f bytes/sec over the run, above the configured %.0f bytes/sec",
				summary.HeapGrowthRatePerSec, g.Thresholds.GrowthRateBytesPerSec),
			Suggestions: []string{
				"compare heap profiles taken at the start and end of the run",
				"check for accumulating slices, maps, or channels that are never drained",
				"verify caches and registries have an upper bound",
			},
		})
	}

	if leak.Detected {
		recs = append(recs, Recommendation{
			Category: "Memory Leak",
			Priority: "Critical",
			Issue:    fmt.Sprintf("sustained heap growth flagged by the leak heuristic: %s", leak.Reason),
			Suggestions: []string{
				"capture and diff heap profiles over several intervals",
				"audit goroutine lifetimes for handlers that never exit",
				"ensure tickers, timers, and subscriptions are stopped when owners shut down",
				"review long-lived maps keyed by unbounded identifiers",
			},
		})
	}

	if gc.Available && gc.Count > 0 && gc.AvgPauseMs > gcPauseRecommendationMs {
		recs = append(recs, Recommendation{
			Category: "GC Tuning",
			Priority: "Medium",
			Issue: fmt.Sprintf("average instrumented GC pause was %.1fms across %d collections",
				gc.AvgPauseMs, gc.Count),
			Suggestions: []string{
				"reduce allocation rate in hot paths",
				"tune GOGC or set GOMEMLIMIT to trade memory for pause time",
				"avoid forcing collections on latency-sensitive paths",
			},
		})
	}

	if g.Thresholds.ExternalBytes > 0 && summary.PeakExternal > g.Thresholds.ExternalBytes {
		recs = append(recs, Recommendation{
			Category: "External Memory",
			Priority: "Medium",
			Issue: fmt.Sprintf("peak runtime-tracked external memory %s exceeded the %s threshold",
				formatBytes(int64(summary.PeakExternal)), formatBytes(int64(g.Thresholds.ExternalBytes))),
			Suggestions: []string{
				"audit cgo and mmap-backed allocations",
				"check stack growth from deeply recursive or highly concurrent code",
			},
		})
	}

	return recs
}

// tail returns a copy of the last n elements of s
func tail[T any](s []T, n int) []T {
	if len(s) > n {
		s = s[len(s)-n:]
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// WriteReport persists report as indented JSON at path
func WriteReport(path string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// WriteSummary prints a short human-readable digest of report to w
func WriteSummary(w io.Writer, report *Report) {
	fmt.Fprintf(w, "=== Memory Profile Summary ===\n")
	fmt.Fprintf(w, "Duration: %v\n", time.Duration(report.Summary.DurationMs)*time.Millisecond)
	fmt.Fprintf(w, "Measurements: %d\n", report.Summary.TotalMeasurements)
	fmt.Fprintf(w, "Heap Growth: %s\n", formatBytes(report.Summary.HeapGrowth))
	fmt.Fprintf(w, "RSS Growth: %s\n", formatBytes(report.Summary.RSSGrowth))
	fmt.Fprintf(w, "Leak Detected: %v (confidence %s)\n", report.Leak.Detected, report.Leak.Confidence)

	if len(report.Recommendations) > 0 {
		categories := make([]string, len(report.Recommendations))
		for i, rec := range report.Recommendations {
			categories[i] = rec.Category
		}
		fmt.Fprintf(w, "Recommendations: %s\n", strings.Join(categories, ", "))
	}
}

// formatBytes renders a signed byte count with a binary unit suffix
func formatBytes(n int64) string {
	abs := n
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1<<30:
		return fmt.Sprintf("%.2f GiB", float64(n)/(1<<30))
	case abs >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(n)/(1<<20))
	case abs >= 1<<10:
		return fmt.Sprintf("%.2f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
