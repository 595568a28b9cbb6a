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

// Package scanner enumerates a dump directory and classifies each entry
// via the filename codec into valid snapshots, stray temporaries, or
// entries to be silently ignored.
package scanner

import (
	"fmt"
	"os"

	"github.com/trickstercache/dumpstore/pkg/dump/filename"
	"github.com/trickstercache/dumpstore/pkg/observability/logging"
)

// Classification is the result of walking a dump directory once. Valid
// holds every finished dump filename that decoded successfully;
// StrayTemp holds every leftover *.tmp file. Everything else -- unrelated
// files, unparseable names, subdirectories -- is silently dropped, per the
// dump subsystem's "the dumper neither reads nor writes any file whose
// name does not match either filename regex" rule.
type Classification struct {
	Valid     []filename.ParsedDumpName
	StrayTemp []string
}

// ListClassified enumerates all regular-file entries of directory and
// classifies each one. A failure to open the directory itself is
// returned as an error; the partial Classification accumulated up to that
// point is still returned alongside it, since callers are expected to
// treat a scan as best-effort and retry on the next cycle rather than
// discard partial progress. log receives one debug-level event per
// individual entry race (e.g. removed between ReadDir and Info) that is
// skipped rather than classified; a nil log is not supported -- pass
// logging.NoopLogger() when no sink is wanted.
func ListClassified(directory string, log logging.Logger) (Classification, error) {
	var c Classification

	entries, err := os.ReadDir(directory)
	if err != nil {
		return c, fmt.Errorf("scanner: read directory %q: %w", directory, err)
	}

	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			log.Debug("directory entry skipped", logging.Pairs{
				"directory": directory, "entry": entry.Name(), "error": err.Error(),
			})
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		name := entry.Name()
		if filename.IsTemporary(name) {
			c.StrayTemp = append(c.StrayTemp, name)
			continue
		}

		parsed, ok := filename.Decode(name)
		if !ok {
			continue
		}
		c.Valid = append(c.Valid, parsed)
	}

	return c, nil
}
