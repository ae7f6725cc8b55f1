// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package profiler

import (
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// MemorySource provides process memory counters for the sampler.
// Implementations must be safe for use from the sampler's run loop and from
// instrumented GC triggers, which may fire on other goroutines.
type MemorySource interface {
	// Usage returns the current memory counters. A partially filled
	// MemoryUsage may be returned together with a non-nil error when only
	// some counters could be read.
	Usage() (MemoryUsage, error)
}

// RuntimeSource reads memory counters for the current process. Heap and
// runtime-tracked memory come from runtime.ReadMemStats; RSS comes from the
// operating system via gopsutil.
type RuntimeSource struct {
	proc *process.Process
}

// Compile-time interface check
var _ MemorySource = (*RuntimeSource)(nil)

func NewRuntimeSource() (*RuntimeSource, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open own process: %w", err)
	}
	return &RuntimeSource{proc: proc}, nil
}

func (s *RuntimeSource) Usage() (MemoryUsage, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	usage := MemoryUsage{
		HeapUsed:   ms.HeapAlloc,
		HeapTotal:  ms.HeapSys,
		External:   ms.Sys - ms.HeapSys,
		StackInUse: ms.StackInuse,
	}

	info, err := s.proc.MemoryInfo()
	if err != nil {
		// Heap counters are still valid; the caller decides how to degrade.
		return usage, fmt.Errorf("failed to read process RSS: %w", err)
	}
	usage.RSS = info.RSS

	return usage, nil
}

// CollectEnvironment captures process and host metadata for report headers.
// Fields that cannot be determined are left at their zero value.
func CollectEnvironment() Environment {
	hostname, _ := os.Hostname()

	env := Environment{
		Hostname:  hostname,
		PID:       os.Getpid(),
		GoVersion: runtime.Version(),
		NumCPU:    runtime.NumCPU(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		env.TotalHostMemory = vm.Total
	}

	return env
}
