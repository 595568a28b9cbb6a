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

// Package dumperr holds the sentinel errors the Dumper's orchestration
// layer uses internally to pick a log severity and a return value. None
// of these cross the public Dumper API: every exported operation
// converts them into a bool or a (DumpContents, bool) pair, mirroring the
// teacher's habit of a small set of package-level sentinels such as
// cache.ErrKNF.
package dumperr

import "errors"

var (
	// ErrCollision means a file already exists at the path a
	// WriteNewDump attempt computed; the write is refused, never retried
	// automatically.
	ErrCollision = errors.New("dumperr: a dump already exists at that path")

	// ErrSourceMissing means BumpDumpTime's old path did not exist,
	// typically because Cleanup already reaped it. The caller is
	// expected to fall back to writing a fresh dump.
	ErrSourceMissing = errors.New("dumperr: source dump does not exist")
)
