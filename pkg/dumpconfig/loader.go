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

// Package dumpconfig loads a TOML document describing the dump policy for
// every cache a host server runtime owns, the way the teacher's pkg/config
// parses its own top-level TOML document with github.com/BurntSushi/toml
// into a map of named sub-configurations (see pkg/cache/options.Lookup).
package dumpconfig

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/trickstercache/dumpstore/pkg/dump/options"
	"github.com/trickstercache/dumpstore/pkg/dump/options/defaults"
)

// document is the on-disk shape: a table of named caches, each carrying a
// nested [caches.<name>.dump] table of dump policy fields.
type document struct {
	Caches map[string]struct {
		Dump options.Options `toml:"dump"`
	} `toml:"caches"`
}

// Lookup maps a cache name to the Options its Dumper should be configured
// with, mirroring the teacher's own cache/options.Lookup shape.
type Lookup map[string]*options.Options

// LoadFile parses the TOML document at path into a Lookup, resolving each
// entry's MaxDumpAgeSecs into MaxDumpAge and validating it before it is
// returned. A cache entry that fails validation aborts the whole load --
// a host runtime should refuse to start on a malformed dump policy rather
// than run a Dumper against a config it would otherwise reject piecemeal.
func LoadFile(path string) (Lookup, error) {
	var doc document
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("dumpconfig: parse %q: %w", path, err)
	}
	return fromDocument(doc)
}

// LoadString parses a TOML document already in memory, the same shape
// LoadFile expects. Useful for tests and for hosts that assemble their
// configuration from something other than a file on disk.
func LoadString(tml string) (Lookup, error) {
	var doc document
	if _, err := toml.Decode(tml, &doc); err != nil {
		return nil, fmt.Errorf("dumpconfig: parse: %w", err)
	}
	return fromDocument(doc)
}

func fromDocument(doc document) (Lookup, error) {
	out := make(Lookup, len(doc.Caches))
	for name, entry := range doc.Caches {
		o := entry.Dump
		if o.MaxDumpCount == 0 {
			o.MaxDumpCount = defaults.MaxDumpCount
		}
		o.ResolveDurations()
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("dumpconfig: cache %q: %w", name, err)
		}
		oCopy := o
		out[name] = &oCopy
	}
	return out, nil
}
