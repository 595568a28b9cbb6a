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

// Package fsexec defines the FS executor collaborator a Dumper dispatches
// every blocking filesystem call onto, and ships one concrete
// implementation so the module is runnable standalone without a host
// server runtime supplying its own task processor.
package fsexec

import "context"

// Executor runs a unit of blocking filesystem work off the caller's
// goroutine and reports its outcome. Implementations must not run fn on
// the calling goroutine synchronously if doing so could block a
// latency-sensitive caller -- the entire point of this collaborator is to
// move blocking syscalls to a dedicated pool.
type Executor interface {
	// Do runs fn on the executor and blocks the caller until it
	// completes or ctx is done. If ctx is cancelled while fn is still
	// running, Do returns ctx.Err() but fn continues to run to
	// completion in the background: the underlying syscall cannot be
	// interrupted mid-flight, so the durable side effect may or may not
	// have landed by the time the caller observes the cancellation.
	Do(ctx context.Context, fn func() error) error
}

// Inline runs fn synchronously on the caller's goroutine. It satisfies
// Executor for tests and for hosts that have no dedicated blocking-I/O
// pool of their own; per the design notes, the dispatch-and-await wrapper
// becomes a no-op in a purely synchronous implementation.
type Inline struct{}

// Do implements Executor.
func (Inline) Do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}
