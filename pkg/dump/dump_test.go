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

package dump

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/trickstercache/dumpstore/pkg/dump/catalog"
	"github.com/trickstercache/dumpstore/pkg/dump/clock"
	"github.com/trickstercache/dumpstore/pkg/dump/filename"
	"github.com/trickstercache/dumpstore/pkg/dump/fsexec"
	"github.com/trickstercache/dumpstore/pkg/dump/options"
	"github.com/trickstercache/dumpstore/pkg/observability/logging"
)

func newTestDumper(t *testing.T, dir string, version uint64, maxAge time.Duration, maxCount int, now time.Time) *Dumper {
	t.Helper()
	o := options.New()
	o.DumpDirectory = dir
	o.DumpFormatVersion = version
	o.MaxDumpAge = maxAge
	o.MaxDumpCount = maxCount
	return NewDumper("testcache", fsexec.Inline{}, clock.Fixed(now), logging.NoopLogger(), nil, o)
}

// newTestDumperWithCatalog is like newTestDumper but wires a real,
// file-backed BoltCatalog instead of nil, for tests exercising the
// catalog-integration branches of WriteNewDump/BumpDumpTime/Cleanup.
func newTestDumperWithCatalog(t *testing.T, dir string, version uint64, maxAge time.Duration, maxCount int, now time.Time) (*Dumper, *catalog.BoltCatalog) {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	o := options.New()
	o.DumpDirectory = dir
	o.DumpFormatVersion = version
	o.MaxDumpAge = maxAge
	o.MaxDumpCount = maxCount
	d := NewDumper("testcache", fsexec.Inline{}, clock.Fixed(now), logging.NoopLogger(), cat, o)
	return d, cat
}

func seed(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("seed %q: %v", name, err)
	}
}

// S1 - write then read.
func TestWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	ut := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := newTestDumper(t, dir, 3, time.Hour, 5, ut)

	ok := d.WriteNewDump(context.Background(), DumpContents{Bytes: []byte("hello"), UpdateTime: ut})
	if !ok {
		t.Fatal("WriteNewDump returned false")
	}

	path := filepath.Join(dir, "2024-01-01T00:00:00.000000-v3")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file at %q: %v", path, err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	data, _ := os.ReadFile(path)
	if string(data) != "hello" {
		t.Errorf("contents = %q, want %q", data, "hello")
	}

	got, ok := d.ReadLatestDump(context.Background())
	if !ok {
		t.Fatal("ReadLatestDump returned false")
	}
	if string(got.Bytes) != "hello" || !got.UpdateTime.Equal(ut) {
		t.Errorf("got %+v", got)
	}
}

// S2 - version mismatch hides dump.
func TestVersionMismatchHidesDump(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "2024-01-01T00:00:00.000000-v2", "old")
	d := newTestDumper(t, dir, 3, 0, 5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	if _, ok := d.ReadLatestDump(context.Background()); ok {
		t.Error("expected empty result for version mismatch")
	}
}

// S3 - age cutoff.
func TestAgeCutoff(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "2024-05-31T00:00:00.000000-v1", "stale")
	seed(t, dir, "2024-05-31T23:30:00.000000-v1", "fresh")

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	d := newTestDumper(t, dir, 1, time.Hour, 5, now)

	got, ok := d.ReadLatestDump(context.Background())
	if !ok {
		t.Fatal("expected a dump")
	}
	if string(got.Bytes) != "fresh" {
		t.Errorf("got %q, want %q", got.Bytes, "fresh")
	}
}

// S4 - cleanup retention.
func TestCleanupRetention(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	names := make([]string, 7)
	for i := 0; i < 7; i++ {
		ut := base.Add(time.Duration(i) * time.Minute)
		name := ut.Format("2006-01-02T15:04:05.000000") + "-v3"
		names[i] = name
		seed(t, dir, name, "x")
	}
	seed(t, dir, names[6]+".tmp", "partial")

	now := base.Add(10 * time.Minute)
	d := newTestDumper(t, dir, 3, time.Hour, 5, now)
	d.Cleanup(context.Background())

	for i := 0; i < 2; i++ {
		if _, err := os.Stat(filepath.Join(dir, names[i])); !os.IsNotExist(err) {
			t.Errorf("expected %s removed", names[i])
		}
	}
	for i := 2; i < 7; i++ {
		if _, err := os.Stat(filepath.Join(dir, names[i])); err != nil {
			t.Errorf("expected %s to survive: %v", names[i], err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, names[6]+".tmp")); !os.IsNotExist(err) {
		t.Error("expected stray tmp removed")
	}
}

// S5 - bump rename.
func TestBumpDumpTime(t *testing.T) {
	dir := t.TempDir()
	oldT := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	newT := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	seed(t, dir, "2024-01-01T10:00:00.000000-v1", "X")

	d := newTestDumper(t, dir, 1, 0, 5, oldT)
	if ok := d.BumpDumpTime(context.Background(), oldT, newT); !ok {
		t.Fatal("BumpDumpTime returned false")
	}

	if _, err := os.Stat(filepath.Join(dir, "2024-01-01T10:00:00.000000-v1")); !os.IsNotExist(err) {
		t.Error("expected old path gone")
	}
	data, err := os.ReadFile(filepath.Join(dir, "2024-01-01T11:00:00.000000-v1"))
	if err != nil {
		t.Fatalf("expected new path present: %v", err)
	}
	if string(data) != "X" {
		t.Errorf("contents = %q, want %q", data, "X")
	}
}

func TestBumpDumpTimeMissingSource(t *testing.T) {
	dir := t.TempDir()
	oldT := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	newT := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	d := newTestDumper(t, dir, 1, 0, 5, oldT)

	if ok := d.BumpDumpTime(context.Background(), oldT, newT); ok {
		t.Error("expected false for missing source")
	}
}

func TestBumpDumpTimeNoOpAgainstMissingSource(t *testing.T) {
	dir := t.TempDir()
	sameT := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	d := newTestDumper(t, dir, 1, 0, 5, sameT)

	if ok := d.BumpDumpTime(context.Background(), sameT, sameT); ok {
		t.Error("expected false: no dump exists at sameT, a no-op rename must not report success")
	}
}

func TestBumpDumpTimePreconditionViolation(t *testing.T) {
	dir := t.TempDir()
	d := newTestDumper(t, dir, 1, 0, 5, time.Now())
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for old_t after new_t")
		}
	}()
	later := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.BumpDumpTime(context.Background(), later, earlier)
}

// S6 - collision refusal.
func TestCollisionRefusal(t *testing.T) {
	dir := t.TempDir()
	ut := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	seed(t, dir, "2024-01-01T12:00:00.000000-v1", "A")

	d := newTestDumper(t, dir, 1, 0, 5, ut)
	ok := d.WriteNewDump(context.Background(), DumpContents{Bytes: []byte("B"), UpdateTime: ut})
	if ok {
		t.Fatal("expected WriteNewDump to refuse a collision")
	}

	data, err := os.ReadFile(filepath.Join(dir, "2024-01-01T12:00:00.000000-v1"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "A" {
		t.Errorf("contents = %q, want unchanged %q", data, "A")
	}
}

func TestSetConfigIsolation(t *testing.T) {
	dir := t.TempDir()
	ut := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := newTestDumper(t, dir, 1, 0, 5, ut)

	o2 := options.New()
	o2.DumpDirectory = dir
	o2.DumpFormatVersion = 99
	o2.MaxDumpCount = 5

	ok := d.WriteNewDump(context.Background(), DumpContents{Bytes: []byte("v1"), UpdateTime: ut})
	if !ok {
		t.Fatal("WriteNewDump returned false")
	}
	d.SetConfig(o2)

	if _, err := os.Stat(filepath.Join(dir, "2024-01-01T00:00:00.000000-v1")); err != nil {
		t.Fatalf("expected dump written under prior config: %v", err)
	}
}

func TestReadLatestDumpEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	d := newTestDumper(t, dir, 1, 0, 5, time.Now())
	if _, ok := d.ReadLatestDump(context.Background()); ok {
		t.Error("expected no dump in an empty directory")
	}
}

func TestCleanupIgnoresFutureVersion(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, dir, "2024-01-01T00:00:00.000000-v5", "future")

	d := newTestDumper(t, dir, 3, 0, 5, now)
	d.Cleanup(context.Background())

	if _, err := os.Stat(filepath.Join(dir, "2024-01-01T00:00:00.000000-v5")); err != nil {
		t.Errorf("expected future-version file preserved: %v", err)
	}
}

// TestWriteNewDumpWithCatalogRemembersOnSuccess drives WriteNewDump
// through a live BoltCatalog and confirms a successful write is recorded
// in it, so a subsequent WriteNewDump to the same path gets a fast-path
// catalog hit.
func TestWriteNewDumpWithCatalogRemembersOnSuccess(t *testing.T) {
	dir := t.TempDir()
	ut := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d, cat := newTestDumperWithCatalog(t, dir, 1, 0, 5, ut)

	ok := d.WriteNewDump(context.Background(), DumpContents{Bytes: []byte("hello"), UpdateTime: ut})
	if !ok {
		t.Fatal("WriteNewDump returned false")
	}

	name := "2024-01-01T00:00:00.000000-v1"
	known, err := cat.Known("testcache", name)
	if err != nil {
		t.Fatalf("Known: %v", err)
	}
	if !known {
		t.Error("expected catalog to remember the newly written dump")
	}
}

// TestWriteNewDumpCatalogCollisionConfirmedByStat exercises the
// catalog-hit-plus-filesystem-collision path: the catalog says a name is
// known, os.Stat agrees a file is actually there, and the write is
// refused -- the ordinary collision case, now routed through both
// layers.
func TestWriteNewDumpCatalogCollisionConfirmedByStat(t *testing.T) {
	dir := t.TempDir()
	ut := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	name := "2024-01-01T12:00:00.000000-v1"
	seed(t, dir, name, "A")

	d, cat := newTestDumperWithCatalog(t, dir, 1, 0, 5, ut)
	p, ok := filename.Decode(name)
	if !ok {
		t.Fatalf("Decode(%q) failed", name)
	}
	if err := cat.Remember("testcache", p); err != nil {
		t.Fatalf("Remember: %v", err)
	}

	if ok := d.WriteNewDump(context.Background(), DumpContents{Bytes: []byte("B"), UpdateTime: ut}); ok {
		t.Fatal("expected WriteNewDump to refuse a real collision")
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "A" {
		t.Errorf("contents = %q, want unchanged %q", data, "A")
	}
}

// TestWriteNewDumpStaleCatalogDoesNotBlockWrite is the regression case: a
// catalog entry claims a filename is known, but no file actually exists
// at that path on disk (e.g. the prior Cleanup's Reconcile call failed
// and was only logged, per sweep's own contract). WriteNewDump must fall
// through to the filesystem, which is authoritative, succeed, and
// self-heal the catalog rather than permanently refusing a legitimate
// write.
func TestWriteNewDumpStaleCatalogDoesNotBlockWrite(t *testing.T) {
	dir := t.TempDir()
	ut := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d, cat := newTestDumperWithCatalog(t, dir, 1, 0, 5, ut)

	name := "2024-01-01T00:00:00.000000-v1"
	p, ok := filename.Decode(name)
	if !ok {
		t.Fatalf("Decode(%q) failed", name)
	}
	// Seed a catalog entry with no backing file on disk: a stale catalog
	// relative to the filesystem.
	if err := cat.Remember("testcache", p); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if known, err := cat.Known("testcache", name); err != nil || !known {
		t.Fatalf("Known = %v, %v; want true, nil", known, err)
	}

	ok2 := d.WriteNewDump(context.Background(), DumpContents{Bytes: []byte("fresh"), UpdateTime: ut})
	if !ok2 {
		t.Fatal("expected WriteNewDump to succeed against a stale catalog entry backed by no file")
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("expected file written: %v", err)
	}
	if string(data) != "fresh" {
		t.Errorf("contents = %q, want %q", data, "fresh")
	}

	// The stale entry is forgotten before the write and the name is
	// remembered again once the write succeeds, so the catalog now agrees
	// with the file on disk.
	if known, err := cat.Known("testcache", name); err != nil {
		t.Fatalf("Known: %v", err)
	} else if !known {
		t.Error("expected catalog re-Remembered after the successful write")
	}
}

// TestCleanupReconcilesCatalogToSurvivors drives Cleanup through a live
// catalog and confirms the catalog converges to exactly the surviving
// entries, including forgetting a pruned one.
func TestCleanupReconcilesCatalogToSurvivors(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	oldName := base.Format("2006-01-02T15:04:05.000000") + "-v1"
	newName := base.Add(time.Minute).Format("2006-01-02T15:04:05.000000") + "-v1"
	seed(t, dir, oldName, "old")
	seed(t, dir, newName, "new")

	now := base.Add(time.Minute)
	d, cat := newTestDumperWithCatalog(t, dir, 1, 0, 1, now)
	d.Cleanup(context.Background())

	if _, err := os.Stat(filepath.Join(dir, oldName)); !os.IsNotExist(err) {
		t.Errorf("expected %s pruned by max_dump_count", oldName)
	}
	if known, err := cat.Known("testcache", oldName); err != nil {
		t.Fatalf("Known: %v", err)
	} else if known {
		t.Error("expected pruned entry forgotten by Cleanup's Reconcile")
	}
	if known, err := cat.Known("testcache", newName); err != nil {
		t.Fatalf("Known: %v", err)
	} else if !known {
		t.Error("expected surviving entry remembered by Cleanup's Reconcile")
	}
}
