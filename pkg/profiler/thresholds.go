// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package profiler

import (
	"math"

	"github.com/go-logr/logr"
)

// ThresholdMonitor evaluates snapshots against a fixed set of ceilings.
// Breaches are recorded and logged as warnings; they never stop or alter
// sampling.
//
// The monitor is not safe for concurrent use on its own; the sampler calls
// Check and Violations under its buffer mutex.
type ThresholdMonitor struct {
	logger     logr.Logger
	thresholds ThresholdConfig
	violations []ThresholdViolation
}

func NewThresholdMonitor(logger logr.Logger, thresholds ThresholdConfig) *ThresholdMonitor {
	return &ThresholdMonitor{
		logger:     logger.WithName("thresholds"),
		thresholds: thresholds,
	}
}

// Check compares snap's heap usage, RSS, external memory, and absolute heap
// growth rate against the configured ceilings. A ceiling of zero disables
// that check.
func (m *ThresholdMonitor) Check(snap Snapshot) {
	if m.thresholds.HeapUsedBytes > 0 && snap.HeapUsed > m.thresholds.HeapUsedBytes {
		m.record(ViolationHeapUsage, snap, float64(snap.HeapUsed), float64(m.thresholds.HeapUsedBytes))
	}
	if m.thresholds.RSSBytes > 0 && snap.RSS > m.thresholds.RSSBytes {
		m.record(ViolationRSSUsage, snap, float64(snap.RSS), float64(m.thresholds.RSSBytes))
	}
	if m.thresholds.ExternalBytes > 0 && snap.External > m.thresholds.ExternalBytes {
		m.record(ViolationExternalUsage, snap, float64(snap.External), float64(m.thresholds.ExternalBytes))
	}
	if m.thresholds.GrowthRateBytesPerSec > 0 && math.Abs(snap.HeapGrowthRate) > m.thresholds.GrowthRateBytesPerSec {
		m.record(ViolationGrowthRate, snap, snap.HeapGrowthRate, m.thresholds.GrowthRateBytesPerSec)
	}
}

func (m *ThresholdMonitor) record(kind ViolationKind, snap Snapshot, observed, limit float64) {
	m.violations = append(m.violations, ThresholdViolation{
		Kind:           kind,
		Timestamp:      snap.Timestamp,
		ObservedValue:  observed,
		ThresholdValue: limit,
	})
	m.logger.Info("memory threshold exceeded",
		"kind", kind,
		"observed", observed,
		"threshold", limit,
		"elapsedMs", snap.ElapsedMs)
}

// Violations returns a copy of all violations recorded so far
func (m *ThresholdMonitor) Violations() []ThresholdViolation {
	out := make([]ThresholdViolation, len(m.violations))
	copy(out, m.violations)
	return out
}
