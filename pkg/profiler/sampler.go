// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package profiler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

var (
	// ErrAlreadyRunning is returned by Start when the sampler is running.
	ErrAlreadyRunning = errors.New("sampler already running")

	// ErrSamplerStopped is returned by Start on a stopped sampler; a
	// stopped sampler cannot be restarted, construct a new one instead.
	ErrSamplerStopped = errors.New("sampler already stopped")

	// ErrNotStarted is returned by Stop when Start was never called.
	ErrNotStarted = errors.New("sampler was never started")
)

// Config configures a profiling run
type Config struct {
	// Interval between snapshots
	Interval time.Duration
	// Duration after which the sampler self-stops
	Duration time.Duration
	// OutputFile is where the JSON report is persisted at stop time
	OutputFile string
	// Thresholds are the ceilings every snapshot is checked against
	Thresholds ThresholdConfig
}

// DefaultConfig returns the standard run configuration: 1s interval, 5m
// duration, report at memory-profile-report.json, default thresholds.
func DefaultConfig() Config {
	return Config{
		Interval:   time.Second,
		Duration:   5 * time.Minute,
		OutputFile: "memory-profile-report.json",
		Thresholds: DefaultThresholds(),
	}
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", c.Duration)
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file must not be empty")
	}
	return nil
}

// Sampler captures periodic memory snapshots for a single profiling run and
// synthesizes a Report when the run ends.
//
// Lifecycle: Idle -> Running -> Stopped. Start moves the sampler to Running
// and fails in any other state. The run ends when Stop is called, the
// configured duration elapses, or the Start context is cancelled; all three
// paths perform the same stop-time synthesis exactly once. Stopped is
// terminal.
//
// The snapshot and GC event buffers are exclusively owned by the sampler
// while Running: only the tick handler and instrumented GC triggers append to
// them, serialized by a single mutex. The report generator reads them only
// after the transition to Stopped.
type Sampler struct {
	logger   logr.Logger
	config   Config
	source   MemorySource
	receiver Receiver
	env      Environment

	mu             sync.Mutex
	state          SamplerState
	startTime      time.Time
	snapshots      []Snapshot
	gcEvents       []GCEvent
	monitor        *ThresholdMonitor
	gcInstrumented bool
	report         *Report

	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// SamplerOption customizes a Sampler at construction time
type SamplerOption func(*Sampler)

// WithMemorySource overrides the default RuntimeSource, primarily so tests
// can feed synthetic snapshots.
func WithMemorySource(source MemorySource) SamplerOption {
	return func(s *Sampler) { s.source = source }
}

// WithReceiver registers a receiver that gets a copy of every snapshot and
// GC event as it is captured.
func WithReceiver(receiver Receiver) SamplerOption {
	return func(s *Sampler) { s.receiver = receiver }
}

func NewSampler(logger logr.Logger, config Config, opts ...SamplerOption) (*Sampler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sampler config: %w", err)
	}

	s := &Sampler{
		logger: logger.WithName("sampler"),
		config: config,
		env:    CollectEnvironment(),
		state:  SamplerStateIdle,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.source == nil {
		source, err := NewRuntimeSource()
		if err != nil {
			return nil, err
		}
		s.source = source
	}
	s.monitor = NewThresholdMonitor(s.logger, config.Thresholds)

	return s, nil
}

// State returns the sampler's current lifecycle state
func (s *Sampler) State() SamplerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the sampler has stopped and the report is available
func (s *Sampler) Done() <-chan struct{} {
	return s.done
}

// Start begins periodic capture. It fails unless the sampler is idle.
// Sampling ends when ctx is cancelled, the configured duration elapses, or
// Stop is called, whichever comes first.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case SamplerStateRunning:
		s.mu.Unlock()
		return ErrAlreadyRunning
	case SamplerStateStopped:
		s.mu.Unlock()
		return ErrSamplerStopped
	}
	s.state = SamplerStateRunning
	s.startTime = time.Now()

	runCtx, cancel := context.WithTimeout(ctx, s.config.Duration)
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("starting memory sampling",
		"interval", s.config.Interval,
		"duration", s.config.Duration,
		"output", s.config.OutputFile)

	s.wg.Add(1)
	go s.run(runCtx)
	return nil
}

func (s *Sampler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.finalize()
			return
		case now := <-ticker.C:
			s.capture(now)
		}
	}
}

// capture takes one snapshot, derives growth fields relative to the previous
// snapshot, and runs the threshold checks inline. The first snapshot of a
// run has all growth fields at zero.
func (s *Sampler) capture(now time.Time) {
	usage, err := s.source.Usage()
	if err != nil {
		s.logger.V(1).Info("partial memory reading", "error", err)
	}

	s.mu.Lock()
	if s.state != SamplerStateRunning {
		s.mu.Unlock()
		return
	}

	snap := Snapshot{
		Timestamp:   now,
		ElapsedMs:   uint64(now.Sub(s.startTime).Milliseconds()),
		MemoryUsage: usage,
	}
	if n := len(s.snapshots); n > 0 {
		prev := s.snapshots[n-1]
		snap.HeapGrowth = int64(usage.HeapUsed) - int64(prev.HeapUsed)
		snap.RSSGrowth = int64(usage.RSS) - int64(prev.RSS)
		snap.HeapGrowthRate = float64(snap.HeapGrowth) / s.config.Interval.Seconds()
	}
	s.snapshots = append(s.snapshots, snap)
	s.monitor.Check(snap)
	s.mu.Unlock()

	s.logger.V(2).Info("captured snapshot",
		"heapUsed", usage.HeapUsed,
		"rss", usage.RSS,
		"heapGrowthRate", snap.HeapGrowthRate)

	if s.receiver != nil {
		if err := s.receiver.Accept(snap); err != nil {
			s.logger.V(1).Info("receiver rejected snapshot",
				"receiver", s.receiver.Name(), "error", err)
		}
	}
}

// WrapGC returns a garbage collection trigger instrumented with before/after
// memory capture; pass runtime.GC or any other manual collection entry point.
// Events recorded by the trigger are appended under the same exclusion
// discipline as snapshots and appear in the report's GC section.
func (s *Sampler) WrapGC(trigger func()) func() {
	s.mu.Lock()
	s.gcInstrumented = true
	s.mu.Unlock()

	hook := NewGCHook(s.logger, s.source, s.appendGCEvent)
	return hook.Wrap(trigger)
}

func (s *Sampler) appendGCEvent(event GCEvent) {
	s.mu.Lock()
	if s.state != SamplerStateRunning {
		s.mu.Unlock()
		return
	}
	s.gcEvents = append(s.gcEvents, event)
	s.mu.Unlock()

	if s.receiver != nil {
		if err := s.receiver.Accept(event); err != nil {
			s.logger.V(1).Info("receiver rejected GC event",
				"receiver", s.receiver.Name(), "error", err)
		}
	}
}

// Stop halts sampling, synthesizes the report, persists it, and returns it.
// Stop is idempotent: subsequent calls return the same report without
// re-running synthesis. A report-file write failure is logged but does not
// fail Stop; the in-memory report is still returned.
func (s *Sampler) Stop() (*Report, error) {
	s.mu.Lock()
	switch s.state {
	case SamplerStateIdle:
		s.mu.Unlock()
		return nil, ErrNotStarted
	case SamplerStateStopped:
		report := s.report
		s.mu.Unlock()
		return report, nil
	}
	cancel := s.cancel
	s.mu.Unlock()

	// Let the run loop finish its in-flight tick and perform synthesis.
	cancel()
	s.wg.Wait()

	s.mu.Lock()
	report := s.report
	s.mu.Unlock()
	return report, nil
}

// finalize performs the one-time Running -> Stopped transition: it builds
// the report from the accumulated buffers, persists it, and releases Done.
func (s *Sampler) finalize() {
	s.mu.Lock()
	if s.state != SamplerStateRunning {
		s.mu.Unlock()
		return
	}
	s.state = SamplerStateStopped
	s.cancel()

	generator := ReportGenerator{
		Thresholds:     s.config.Thresholds,
		GCInstrumented: s.gcInstrumented,
		Environment:    s.env,
	}
	s.report = generator.Generate(s.startTime, time.Now(), s.snapshots, s.gcEvents, s.monitor.Violations())
	report := s.report
	s.mu.Unlock()

	if err := WriteReport(s.config.OutputFile, report); err != nil {
		s.logger.Error(err, "failed to persist report", "path", s.config.OutputFile)
	} else {
		s.logger.Info("report written",
			"path", s.config.OutputFile,
			"measurements", report.Summary.TotalMeasurements)
	}

	close(s.done)
}
