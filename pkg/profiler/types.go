// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package profiler

import "time"

// SamplerState represents the lifecycle state of a Sampler
type SamplerState string

const (
	SamplerStateIdle    SamplerState = "idle"
	SamplerStateRunning SamplerState = "running"
	SamplerStateStopped SamplerState = "stopped"
)

// MemoryUsage is a raw set of process memory counters as reported by a
// MemorySource at a single point in time.
//
// HeapUsed and HeapTotal come from the managed heap; External covers memory
// the runtime tracks outside the heap (stack spans, allocator metadata, GC
// bookkeeping); RSS is the resident set size reported by the operating system
// and includes everything the process occupies.
type MemoryUsage struct {
	HeapUsed   uint64 `json:"heapUsed"`
	HeapTotal  uint64 `json:"heapTotal"`
	External   uint64 `json:"external"`
	StackInUse uint64 `json:"stackInUse"`
	RSS        uint64 `json:"rss"`
}

// Snapshot is a single memory measurement captured by the Sampler.
// Snapshots are immutable once created and strictly time-ordered within a run.
//
// The growth fields are derived relative to the previous snapshot and are all
// zero for the first snapshot of a run, which has no predecessor.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	ElapsedMs uint64    `json:"elapsedMs"`

	MemoryUsage

	HeapGrowth     int64   `json:"heapGrowth"`
	RSSGrowth      int64   `json:"rssGrowth"`
	HeapGrowthRate float64 `json:"heapGrowthRateBytesPerSec"`
}

// GCEvent records a single instrumented garbage collection: the memory state
// immediately before and after the collection, and how long it took.
type GCEvent struct {
	Timestamp  time.Time   `json:"timestamp"`
	DurationMs float64     `json:"durationMs"`
	Before     MemoryUsage `json:"before"`
	After      MemoryUsage `json:"after"`
	HeapFreed  int64       `json:"heapFreed"`
	RSSFreed   int64       `json:"rssFreed"`
}

// ThresholdConfig holds the memory ceilings a run is checked against.
// It is immutable for the lifetime of a run.
type ThresholdConfig struct {
	HeapUsedBytes         uint64  `json:"heapUsedBytes"`
	RSSBytes              uint64  `json:"rssBytes"`
	ExternalBytes         uint64  `json:"externalBytes"`
	GrowthRateBytesPerSec float64 `json:"growthRateBytesPerSec"`
}

// DefaultThresholds returns the standard ceilings: 500 MiB heap, 1 GiB RSS,
// 100 MiB external, and a growth rate of 100 KiB/s.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		HeapUsedBytes:         524288000,
		RSSBytes:              1073741824,
		ExternalBytes:         104857600,
		GrowthRateBytesPerSec: 104857.6,
	}
}

// ViolationKind identifies which ceiling a threshold violation breached
type ViolationKind string

const (
	ViolationHeapUsage     ViolationKind = "heap_usage"
	ViolationRSSUsage      ViolationKind = "rss_usage"
	ViolationExternalUsage ViolationKind = "external_usage"
	ViolationGrowthRate    ViolationKind = "growth_rate"
)

// ThresholdViolation records an observed metric exceeding a configured ceiling.
// Violations are purely advisory; they never alter sampling.
type ThresholdViolation struct {
	Kind           ViolationKind `json:"kind"`
	Timestamp      time.Time     `json:"timestamp"`
	ObservedValue  float64       `json:"observedValue"`
	ThresholdValue float64       `json:"thresholdValue"`
}

// Stats holds summary statistics over a numeric series
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stdDev"`
}

// LeakVerdict is the outcome of the sustained-growth heuristic.
// Confidence is a qualitative label, not a statistical confidence interval.
type LeakVerdict struct {
	Detected      bool    `json:"detected"`
	Confidence    string  `json:"confidence"`
	Reason        string  `json:"reason"`
	AvgGrowthRate float64 `json:"avgGrowthRateBytesPerSec"`
	PositiveRatio float64 `json:"positiveRatio"`
	Note          string  `json:"note"`
}

// GCSummary aggregates instrumented garbage collection activity for a run.
// When no GC instrumentation was installed, Available is false and Message
// explains why instead of fabricating data.
type GCSummary struct {
	Available      bool    `json:"available"`
	Message        string  `json:"message,omitempty"`
	Count          int     `json:"count"`
	AvgPauseMs     float64 `json:"avgPauseMs"`
	TotalHeapFreed int64   `json:"totalHeapFreed"`
	TotalRSSFreed  int64   `json:"totalRssFreed"`
}

// Recommendation is a rule-derived remediation suggestion attached to a report
type Recommendation struct {
	Category    string   `json:"category"`
	Priority    string   `json:"priority"`
	Issue       string   `json:"issue"`
	Suggestions []string `json:"suggestions"`
}

// Environment describes the process and host a report was captured on
type Environment struct {
	Hostname        string `json:"hostname"`
	PID             int    `json:"pid"`
	GoVersion       string `json:"goVersion"`
	NumCPU          int    `json:"numCpu"`
	TotalHostMemory uint64 `json:"totalHostMemory"`
}

// Summary holds whole-run aggregates derived from the first and last snapshots
type Summary struct {
	StartTime            time.Time `json:"startTime"`
	DurationMs           uint64    `json:"durationMs"`
	TotalMeasurements    int       `json:"totalMeasurements"`
	HeapGrowth           int64     `json:"heapGrowth"`
	RSSGrowth            int64     `json:"rssGrowth"`
	HeapGrowthRatePerSec float64   `json:"heapGrowthRateBytesPerSec"`
	PeakHeapUsed         uint64    `json:"peakHeapUsed"`
	PeakRSS              uint64    `json:"peakRss"`
	PeakExternal         uint64    `json:"peakExternal"`
}

// Report is the complete output of a profiling run. It is produced exactly
// once when the sampler stops and is owned solely by the caller afterwards;
// the sampler never mutates it after returning it.
//
// Snapshots holds the most recent 100 raw snapshots and Violations the most
// recent 20 threshold violations; GCEvents is unbounded.
type Report struct {
	GeneratedAt     time.Time            `json:"generatedAt"`
	Environment     Environment          `json:"environment"`
	Summary         Summary              `json:"summary"`
	HeapStats       Stats                `json:"heapStats"`
	RSSStats        Stats                `json:"rssStats"`
	ExternalStats   Stats                `json:"externalStats"`
	Leak            LeakVerdict          `json:"leakDetection"`
	GC              GCSummary            `json:"gcActivity"`
	Violations      []ThresholdViolation `json:"thresholdViolations"`
	Recommendations []Recommendation     `json:"recommendations"`
	Snapshots       []Snapshot           `json:"snapshots"`
	GCEvents        []GCEvent            `json:"gcEvents"`
}
