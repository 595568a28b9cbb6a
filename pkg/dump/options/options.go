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

// Package options defines the policy configuration a Dumper reads on
// every operation: where dumps live, which format version is current,
// and the age/count bounds retention enforces.
package options

import (
	"errors"
	"time"

	"github.com/trickstercache/dumpstore/pkg/dump/options/defaults"
)

// Options is the policy snapshot a ConfigCell holds and a Dumper consults
// on every public operation. It corresponds to the CacheConfigStatic of
// the dump subsystem's data model.
type Options struct {
	// DumpDirectory is the absolute directory path containing this
	// cache's dumps. No subdirectories, sidecars, or lockfiles live here.
	DumpDirectory string `toml:"dump_directory"`
	// DumpFormatVersion is the schema version this cache currently
	// understands; dumps at a lower version are stale, dumps at a higher
	// version are from a newer binary and are left untouched.
	DumpFormatVersion uint64 `toml:"dump_format_version"`
	// MaxDumpAgeSecs bounds how old a dump may be, in seconds, and still
	// be considered usable. Zero means no age limit. TOML has no native
	// duration type, so this is parsed as an integer like the teacher's
	// own *Secs cache-index options and converted to MaxDumpAge below.
	MaxDumpAgeSecs int64 `toml:"max_dump_age_secs"`
	// MaxDumpCount is the maximum number of usable dumps retained after
	// Cleanup.
	MaxDumpCount int `toml:"max_dump_count"`

	// MaxDumpAge is the derived form of MaxDumpAgeSecs; callers that
	// build Options programmatically may set this directly instead.
	MaxDumpAge time.Duration `toml:"-"`
}

// New returns Options populated with the package defaults; DumpDirectory
// is left blank and must be set by the caller.
func New() *Options {
	return &Options{
		DumpFormatVersion: defaults.DumpFormatVersion,
		MaxDumpCount:      defaults.MaxDumpCount,
	}
}

// ResolveDurations derives MaxDumpAge from MaxDumpAgeSecs when the latter
// is set and the former is not, the way the teacher's config loader
// converts its own *Secs fields after a TOML parse.
func (o *Options) ResolveDurations() {
	if o.MaxDumpAge == 0 && o.MaxDumpAgeSecs > 0 {
		o.MaxDumpAge = time.Duration(o.MaxDumpAgeSecs) * time.Second
	}
}

// HasMaxAge reports whether an age limit is configured.
func (o *Options) HasMaxAge() bool {
	return o.MaxDumpAge > 0
}

// Equal returns true if DumpDirectory, DumpFormatVersion, MaxDumpAge and
// MaxDumpCount of the subject and provided Options are identical,
// mirroring the teacher's cache index Options.Equal. MaxDumpAgeSecs is not
// compared; only its resolved MaxDumpAge is.
func (o *Options) Equal(o2 *Options) bool {
	if o2 == nil {
		return false
	}
	return o.DumpDirectory == o2.DumpDirectory &&
		o.DumpFormatVersion == o2.DumpFormatVersion &&
		o.MaxDumpAge == o2.MaxDumpAge &&
		o.MaxDumpCount == o2.MaxDumpCount
}

// Validate reports a configuration error the host runtime should refuse to
// publish, rather than allowing a Dumper to run against a nonsensical
// policy.
func (o *Options) Validate() error {
	if o.DumpDirectory == "" {
		return errors.New("dump_directory must not be empty")
	}
	if o.MaxDumpCount < 0 {
		return errors.New("max_dump_count must not be negative")
	}
	if o.MaxDumpAge < 0 {
		return errors.New("max_dump_age must not be negative")
	}
	return nil
}
