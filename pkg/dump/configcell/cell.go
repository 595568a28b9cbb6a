/*
 * Copyright 2024 The Dumpstore Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package configcell provides a read-mostly holder for a Dumper's policy
// configuration, following the same atomic.Pointer swap-and-publish shape
// the teacher uses for its load balancer pool's healthy-targets snapshot
// (pkg/backends/alb/pool.pool).
package configcell

import (
	"sync/atomic"

	"github.com/trickstercache/dumpstore/pkg/dump/options"
)

// Cell holds the current Options for a single Dumper instance. Read is
// wait-free with respect to Assign: a reader that loaded the pointer
// before a concurrent Assign keeps observing the old value for as long as
// it holds the reference, and the Go garbage collector reclaims the prior
// generation once the last such reference is dropped. This is the
// "pointer to an immutable record" strategy the design notes call out as
// an acceptable ConfigCell implementation, relying on the runtime's GC
// instead of a hand-rolled epoch scheme for "lazy reclamation."
type Cell struct {
	current atomic.Pointer[options.Options]
}

// New returns a Cell initialized with the given Options. initial must not
// be nil.
func New(initial *options.Options) *Cell {
	c := &Cell{}
	c.current.Store(initial)
	return c
}

// Assign atomically publishes a new configuration. Safe to call
// concurrently with Read from any number of goroutines.
func (c *Cell) Assign(o *options.Options) {
	c.current.Store(o)
}

// Read returns the configuration current as of the call. The returned
// pointer is immutable; callers must not mutate it. Unlike C++'s
// refcounted handle, no explicit release step is required here -- the Go
// memory model means the value stays alive exactly as long as the caller
// holds the returned pointer.
func (c *Cell) Read() *options.Options {
	return c.current.Load()
}

// Cleanup exists to keep the call shape spec'd by the dump subsystem:
// releasing retired-but-parked prior generations. With the atomic.Pointer
// + GC strategy there is nothing to do explicitly -- the garbage
// collector already reclaims any generation no longer referenced -- so
// this is deliberately a no-op, kept as a method so Dumper.Cleanup can
// call it unconditionally without special-casing the reclamation
// strategy in use.
func (c *Cell) Cleanup() {}
