// Copyright ArgoDev, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package profiler

// Receiver accepts live output from the sampler and processes it accordingly.
// The sampler hands receivers value copies of each Snapshot and GCEvent, so
// receivers never share the buffers the report is later built from.
type Receiver interface {
	// Accept processes data from the sampler (a Snapshot or a GCEvent).
	Accept(data any) error

	// Name returns the receiver's name for logging and identification.
	Name() string
}
