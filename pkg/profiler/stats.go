// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package profiler

import (
	"math"
	"sort"
)

// ComputeStats derives min, max, mean, median, and population standard
// deviation over series. An empty series yields all-zero statistics rather
// than an error.
//
// Median is the middle element of the value-sorted series, using the floor
// index for even-length input. Report consumers depend on this numeric
// convention, so it is intentionally not an interpolated median.
func ComputeStats(series []float64) Stats {
	if len(series) == 0 {
		return Stats{}
	}

	sorted := make([]float64, len(series))
	copy(sorted, series)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range series {
		sum += v
	}
	mean := sum / float64(len(series))

	var variance float64
	for _, v := range series {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(series))

	return Stats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   mean,
		Median: sorted[len(sorted)/2],
		StdDev: math.Sqrt(variance),
	}
}
