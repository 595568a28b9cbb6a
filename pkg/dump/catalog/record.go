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

package catalog

//go:generate go tool msgp

// Record is one advisory catalog entry: everything BoltCatalog needs to
// answer "have we already seen this filename" without touching the
// filesystem. It mirrors the fields of filename.ParsedDumpName; the cache
// name is not stored in it but is the name of the bucket holding it, the
// same way the teacher's cache/index Object mirrors its cache entry's
// metadata for its own index persistence.
type Record struct {
	Filename            string
	UpdateTimeUnixMicro int64
	FormatVersion       uint64
}
