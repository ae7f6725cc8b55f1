// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/argodev0/KIRO-BOT-sub013/pkg/profiler"
)

const (
	DefaultIntervalMs = 1000
	DefaultDurationMs = 300000
	DefaultOutputFile = "memory-profile-report.json"
)

// FromArgs builds a sampler config from positional CLI arguments:
//
//	[durationMs [intervalMs [outputFile]]]
//
// Missing arguments keep their defaults. Passing more than three
// arguments is an error.
func FromArgs(args []string) (profiler.Config, error) {
	cfg := profiler.Config{
		Interval:   DefaultIntervalMs * time.Millisecond,
		Duration:   DefaultDurationMs * time.Millisecond,
		OutputFile: DefaultOutputFile,
		Thresholds: profiler.DefaultThresholds(),
	}

	if len(args) > 3 {
		return cfg, fmt.Errorf("expected at most 3 arguments, got %d", len(args))
	}

	if len(args) >= 1 {
		durationMs, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid duration %q: %w", args[0], err)
		}
		cfg.Duration = time.Duration(durationMs) * time.Millisecond
	}
	if len(args) >= 2 {
		intervalMs, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid interval %q: %w", args[1], err)
		}
		cfg.Interval = time.Duration(intervalMs) * time.Millisecond
	}
	if len(args) == 3 {
		cfg.OutputFile = args[2]
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// thresholdsFile mirrors the YAML layout of a thresholds override file.
// Zero values keep the built-in defaults.
type thresholdsFile struct {
	HeapUsedBytes      uint64  `yaml:"heapUsedBytes"`
	RSSBytes           uint64  `yaml:"rssBytes"`
	ExternalBytes      uint64  `yaml:"externalBytes"`
	GrowthRateBytesSec float64 `yaml:"growthRateBytesPerSec"`
}

// LoadThresholds reads a YAML threshold override file and merges it
// over the defaults.
func LoadThresholds(path string) (profiler.ThresholdConfig, error) {
	thresholds := profiler.DefaultThresholds()

	data, err := os.ReadFile(path)
	if err != nil {
		return thresholds, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	var overrides thresholdsFile
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return thresholds, fmt.Errorf("failed to parse thresholds file %s: %w", path, err)
	}

	if overrides.HeapUsedBytes != 0 {
		thresholds.HeapUsedBytes = overrides.HeapUsedBytes
	}
	if overrides.RSSBytes != 0 {
		thresholds.RSSBytes = overrides.RSSBytes
	}
	if overrides.ExternalBytes != 0 {
		thresholds.ExternalBytes = overrides.ExternalBytes
	}
	if overrides.GrowthRateBytesSec != 0 {
		thresholds.GrowthRateBytesPerSec = overrides.GrowthRateBytesSec
	}

	return thresholds, nil
}
