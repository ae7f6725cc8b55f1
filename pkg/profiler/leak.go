// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package profiler

import "fmt"

const (
	// leakWindowSize is the number of most recent snapshots the heuristic
	// inspects.
	leakWindowSize = 20

	// leakMinSamples is the minimum series length required before the
	// heuristic produces a verdict at all.
	leakMinSamples = 10

	// leakRateThreshold is the average heap growth rate, in bytes/second,
	// above which sustained growth is flagged (1 MiB/s).
	leakRateThreshold = 1 << 20

	// leakPositiveRatio is the fraction of pairwise growth rates that must
	// be positive for a detection to fire.
	leakPositiveRatio = 0.70
)

// leakHeuristicNote is attached to every verdict so report consumers do not
// mistake the heuristic for a proof.
const leakHeuristicNote = "sustained-growth heuristic over recent samples, not a proof of a leak"

// DetectLeak applies a sliding-window heuristic over the most recent
// snapshots. For each consecutive pair it computes the heap growth rate over
// the observed wall-clock delta; a leak is flagged when the average rate
// exceeds 1 MiB/s and more than 70% of the pairwise rates are positive.
//
// Fewer than 10 snapshots yield {Detected: false, Reason: "insufficient
// data"} regardless of content.
func DetectLeak(snapshots []Snapshot) LeakVerdict {
	verdict := LeakVerdict{
		Confidence: "Low",
		Note:       leakHeuristicNote,
	}

	if len(snapshots) < leakMinSamples {
		verdict.Reason = "insufficient data"
		return verdict
	}

	window := snapshots
	if len(window) > leakWindowSize {
		window = window[len(window)-leakWindowSize:]
	}

	rates := make([]float64, 0, len(window)-1)
	positive := 0
	for i := 1; i < len(window); i++ {
		seconds := window[i].Timestamp.Sub(window[i-1].Timestamp).Seconds()
		if seconds <= 0 {
			continue
		}
		rate := (float64(window[i].HeapUsed) - float64(window[i-1].HeapUsed)) / seconds
		rates = append(rates, rate)
		if rate > 0 {
			positive++
		}
	}

	if len(rates) == 0 {
		verdict.Reason = "insufficient data"
		return verdict
	}

	var sum float64
	for _, r := range rates {
		sum += r
	}
	avgRate := sum / float64(len(rates))
	ratio := float64(positive) / float64(len(rates))

	verdict.AvgGrowthRate = avgRate
	verdict.PositiveRatio = ratio

	if avgRate > leakRateThreshold && ratio > leakPositiveRatio {
		verdict.Detected = true
		verdict.Confidence = "High"
		verdict.Reason = fmt.Sprintf("heap grew at an average of %.0f bytes/sec across %.0f%% of recent samples",
			avgRate, ratio*100)
		return verdict
	}

	verdict.Reason = "no sustained heap growth observed"
	return verdict
}
