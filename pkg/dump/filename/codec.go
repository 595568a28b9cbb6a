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

// Package filename implements the canonical encoding of cache dump
// filenames and is the sole authority for mapping between a dump's
// (update time, format version) and its name on disk.
package filename

import (
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

const dateFormat = "2006-01-02T15:04:05.000000"

// compiled once for the package lifetime, mirroring the single
// filename_regex_/tmp_filename_regex_ pair the dump format was
// originally specified against.
var (
	finishedRE = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{6})-v(\d+)$`)
	temporaryRE = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{6})-v(\d+)\.tmp$`)
)

// tmpSuffix is appended to a finished filename to name its in-progress
// counterpart while AtomicFileWriter is still populating it.
const tmpSuffix = ".tmp"

// ParsedDumpName is everything recoverable from a dump's filename alone;
// the file itself is never opened to derive it.
type ParsedDumpName struct {
	Filename      string
	UpdateTime    time.Time
	FormatVersion uint64
}

// Round rounds t to the nearest microsecond (the on-disk resolution), in
// UTC, so that
// comparisons between a freshly-sourced time.Time and one recovered via
// Decode agree exactly. Every externally sourced time must pass through
// Round before it is stored or compared.
func Round(t time.Time) time.Time {
	return t.UTC().Round(time.Microsecond)
}

// Encode formats a finished dump filename for the given update time and
// format version. update_time is rounded to microsecond resolution and
// rendered in UTC.
func Encode(updateTime time.Time, formatVersion uint64) string {
	return Round(updateTime).Format(dateFormat) + "-v" + strconv.FormatUint(formatVersion, 10)
}

// EncodeTemporary formats the in-progress counterpart of Encode's output,
// the name AtomicFileWriter stages its content under before it is renamed
// into place.
func EncodeTemporary(updateTime time.Time, formatVersion uint64) string {
	return Encode(updateTime, formatVersion) + tmpSuffix
}

// Decode parses a finished dump filename, returning false if the string
// does not match the finished-filename pattern, if the embedded timestamp
// fails to parse, or if the embedded version overflows uint64. A filename
// that merely looks like a dump but fails to parse is a DecodeSkip, not an
// error: callers should log at most a warning and move on.
func Decode(name string) (ParsedDumpName, bool) {
	m := finishedRE.FindStringSubmatch(name)
	if m == nil {
		return ParsedDumpName{}, false
	}
	t, err := time.Parse(dateFormat, m[1])
	if err != nil {
		return ParsedDumpName{}, false
	}
	v, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return ParsedDumpName{}, false
	}
	return ParsedDumpName{
		Filename:      name,
		UpdateTime:    Round(t),
		FormatVersion: v,
	}, true
}

// IsTemporary reports whether name is a stray-temporary-form dump filename
// left behind by an interrupted AtomicFileWriter write.
func IsTemporary(name string) bool {
	return temporaryRE.MatchString(name)
}

// JoinPath concatenates a directory and a filename produced by Encode or
// EncodeTemporary into a single path.
func JoinPath(directory, name string) string {
	return filepath.Join(directory, name)
}
