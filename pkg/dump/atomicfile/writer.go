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

// Package atomicfile implements the crash-safe write-then-rename protocol
// a Dumper uses to publish a new snapshot without ever exposing a partial
// file at its final path.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteAtomically writes bytes to destination such that any observer
// either sees no file at destination or a file whose full contents equal
// bytes -- never a partial write. destination's parent directory must
// already exist; this function does not create it.
//
// Protocol:
//  1. Create destination+".tmp" with perm, truncating if it already
//     existed from a previous crashed attempt.
//  2. Write the full byte sequence; a short write is treated as an error.
//  3. Fsync the temp file's contents.
//  4. Rename the temp file onto destination -- the linearization point.
//  5. Fsync the parent directory so the rename entry is itself durable.
//
// On any failure before the rename, the temp file is removed and
// destination is left untouched. After the rename succeeds, destination
// is live; no rollback is attempted for a failure in the trailing
// directory fsync, since the rename has already linearized and a missing
// directory fsync only risks the directory entry on a subsequent crash,
// not the file's presence once fsck/recovery replays the journal -- but
// the fsync is still performed so the common case leaves nothing to
// chance (see the dump subsystem's Open Question on this point).
func WriteAtomically(destination string, data []byte, perm os.FileMode) error {
	tmpPath := destination + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("atomicfile: create temp file %q: %w", tmpPath, err)
	}

	if err := writeAndSync(f, data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: close temp file %q: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, destination); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: rename %q to %q: %w", tmpPath, destination, err)
	}

	if err := syncDir(filepath.Dir(destination)); err != nil {
		// The rename already linearized; the destination is live
		// regardless of whether we can durably record the directory
		// entry. No rollback is performed past this point, per the
		// write protocol's own contract.
		return fmt.Errorf("atomicfile: sync directory for %q: %w", destination, err)
	}

	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	n, err := f.Write(data)
	if err != nil {
		return fmt.Errorf("atomicfile: write %q: %w", f.Name(), err)
	}
	if n != len(data) {
		return fmt.Errorf("atomicfile: short write to %q: wrote %d of %d bytes", f.Name(), n, len(data))
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("atomicfile: sync %q: %w", f.Name(), err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
