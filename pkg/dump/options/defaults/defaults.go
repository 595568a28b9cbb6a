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

// Package defaults holds the zero-config fallback values for dump store
// options, mirroring the flat Default* constant file the teacher keeps
// for its own cache index options.
package defaults

const (
	// DumpFormatVersion is used when a cache does not configure one.
	DumpFormatVersion = 0
	// MaxDumpCount is used when a cache does not configure a retention count.
	MaxDumpCount = 10
)
