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

// Package dump implements the Dumper: the externally visible component
// that composes FilenameCodec, ConfigCell, AtomicFileWriter, and
// DirectoryScanner into the four cache-snapshot operations a host server
// runtime drives on behalf of one in-memory cache -- WriteNewDump,
// ReadLatestDump, BumpDumpTime, and Cleanup -- plus the SetConfig
// live-policy-update hook. A Dumper is single-writer per cache name:
// callers must not invoke its mutating operations concurrently on the
// same instance, though ReadLatestDump and SetConfig are always safe to
// call from any goroutine.
package dump

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/trickstercache/dumpstore/pkg/dump/atomicfile"
	"github.com/trickstercache/dumpstore/pkg/dump/catalog"
	"github.com/trickstercache/dumpstore/pkg/dump/clock"
	"github.com/trickstercache/dumpstore/pkg/dump/configcell"
	"github.com/trickstercache/dumpstore/pkg/dump/dumperr"
	"github.com/trickstercache/dumpstore/pkg/dump/filename"
	"github.com/trickstercache/dumpstore/pkg/dump/fsexec"
	"github.com/trickstercache/dumpstore/pkg/dump/options"
	"github.com/trickstercache/dumpstore/pkg/dump/scanner"
	"github.com/trickstercache/dumpstore/pkg/observability/logging"
	"github.com/trickstercache/dumpstore/pkg/observability/metrics"
)

// dumpFileMode is the permission bits finished dumps are created with:
// owner read+write only, per the dump subsystem's file permissions
// contract. Other bits are never set by the writer.
const dumpFileMode = 0o600

// DumpContents is the pair a cache hands the Dumper to persist, and the
// pair the Dumper hands back on a successful read. The Dumper never
// interprets Bytes; it is an opaque blob produced and consumed entirely
// by the cache.
type DumpContents struct {
	Bytes      []byte
	UpdateTime time.Time
}

// Dumper is single-writer per CacheName: WriteNewDump, BumpDumpTime, and
// Cleanup must not be invoked concurrently with one another for the same
// instance. ReadLatestDump and SetConfig may be called from any goroutine
// at any time.
type Dumper struct {
	CacheName string

	exec    fsexec.Executor
	clock   clock.Clock
	log     logging.Logger
	cfg     *configcell.Cell
	catalog *catalog.BoltCatalog
}

// NewDumper wires a Dumper's collaborators: the cache name (used only for
// logging and metric labels), the FS executor every blocking call is
// dispatched through, the clock "now" is sourced from, the logger, an
// optional advisory BoltCatalog (nil is a valid, supported value -- the
// Dumper falls back to a plain stat-based existence check), and the
// initial policy configuration.
func NewDumper(cacheName string, exec fsexec.Executor, clk clock.Clock, log logging.Logger,
	cat *catalog.BoltCatalog, initial *options.Options) *Dumper {
	if initial == nil {
		initial = options.New()
	}
	return &Dumper{
		CacheName: cacheName,
		exec:      exec,
		clock:     clk,
		log:       log,
		cfg:       configcell.New(initial),
		catalog:   cat,
	}
}

// SetConfig publishes a new policy configuration, non-blocking with
// respect to any in-flight reader holding the prior configuration.
func (d *Dumper) SetConfig(o *options.Options) {
	d.cfg.Assign(o)
}

// WriteNewDump persists contents as a new dump file. It refuses --
// returning false without touching disk -- if a dump already exists at
// the filename the current configuration's format version and the
// contents' update time compute to; a write is never allowed to silently
// overwrite an existing dump. Any failure of the underlying atomic write
// is logged and also reported as false: the boolean distinguishes "the
// durable snapshot is present" from "try again later," never exposing a
// partial file to any observer.
func (d *Dumper) WriteNewDump(ctx context.Context, contents DumpContents) bool {
	cfg := d.cfg.Read()
	name := filename.Encode(contents.UpdateTime, cfg.DumpFormatVersion)
	path := filename.JoinPath(cfg.DumpDirectory, name)

	// Every syscall this operation touches -- the catalog existence
	// check, the stat-based collision check, the atomic write, and the
	// catalog update on success -- is dispatched through a single
	// exec.Do so none of it ever runs on the caller's own goroutine.
	var collision bool
	err := d.exec.Do(ctx, func() error {
		catalogHit := false
		if d.catalog != nil {
			if known, kerr := d.catalog.Known(d.CacheName, name); kerr == nil && known {
				catalogHit = true
			}
		}

		// The catalog is an advisory fast path only; per its own
		// contract, a hit is never trusted blindly -- os.Stat against
		// the actual directory is always the deciding vote.
		_, serr := os.Stat(path)
		switch {
		case serr == nil:
			collision = true
			if d.catalog != nil {
				if p, ok := filename.Decode(name); ok {
					_ = d.catalog.Remember(d.CacheName, p)
				}
			}
			return nil
		case !os.IsNotExist(serr):
			return serr
		}

		if catalogHit {
			// The catalog was stale relative to disk: forget the entry
			// so it stops shadowing legitimate writes to this path.
			if ferr := d.catalog.Forget(d.CacheName, name); ferr != nil {
				d.log.Debug("catalog forget failed", logging.Pairs{
					"cache": d.CacheName, "path": path, "error": ferr.Error(),
				})
			}
		}

		if werr := atomicfile.WriteAtomically(path, contents.Bytes, dumpFileMode); werr != nil {
			return werr
		}

		if d.catalog != nil {
			if p, ok := filename.Decode(name); ok {
				if rerr := d.catalog.Remember(d.CacheName, p); rerr != nil {
					d.log.Debug("catalog remember failed", logging.Pairs{
						"cache": d.CacheName, "path": path, "error": rerr.Error(),
					})
				}
			}
		}
		return nil
	})

	if collision {
		d.log.Warn("dump write refused", logging.Pairs{
			"cache": d.CacheName, "path": path, "reason": dumperr.ErrCollision.Error(),
		})
		metrics.DumpsCollisionsTotal.WithLabelValues(d.CacheName).Inc()
		return false
	}
	if err != nil {
		d.log.Error("dump write failed", logging.Pairs{
			"cache": d.CacheName, "path": path, "error": err.Error(),
		})
		return false
	}

	d.log.Info("dump written", logging.Pairs{
		"cache": d.CacheName, "path": path, "dump_size": len(contents.Bytes),
	})
	metrics.DumpsWrittenTotal.WithLabelValues(d.CacheName).Inc()

	return true
}

// ReadLatestDump selects and reads the single most-recent usable dump:
// the entry whose format_version matches the current configuration and
// whose update_time is no older than the configured max age, breaking
// ties (not expected at microsecond resolution) deterministically by
// filename. It returns false if no entry qualifies, or if any I/O error
// occurs during selection or read -- both are logged, never propagated.
func (d *Dumper) ReadLatestDump(ctx context.Context) (DumpContents, bool) {
	cfg := d.cfg.Read()

	var selected *filename.ParsedDumpName
	err := d.exec.Do(ctx, func() error {
		p, ok, serr := d.selectLatest(cfg)
		if serr != nil {
			return serr
		}
		if ok {
			selected = &p
		}
		return nil
	})
	if err != nil {
		d.log.Error("dump selection failed", logging.Pairs{
			"cache": d.CacheName, "error": err.Error(),
		})
		metrics.DumpsReadMissesTotal.WithLabelValues(d.CacheName).Inc()
		return DumpContents{}, false
	}
	if selected == nil {
		d.log.Info("no usable cache dumps found", logging.Pairs{"cache": d.CacheName})
		metrics.DumpsReadMissesTotal.WithLabelValues(d.CacheName).Inc()
		return DumpContents{}, false
	}

	path := filename.JoinPath(cfg.DumpDirectory, selected.Filename)
	d.log.Debug("selected dump", logging.Pairs{"cache": d.CacheName, "path": path})

	var data []byte
	err = d.exec.Do(ctx, func() error {
		var rerr error
		data, rerr = os.ReadFile(path)
		return rerr
	})
	if err != nil {
		d.log.Error("dump read failed", logging.Pairs{
			"cache": d.CacheName, "path": path, "error": err.Error(),
		})
		metrics.DumpsReadMissesTotal.WithLabelValues(d.CacheName).Inc()
		return DumpContents{}, false
	}

	metrics.DumpsReadHitsTotal.WithLabelValues(d.CacheName).Inc()
	return DumpContents{Bytes: data, UpdateTime: selected.UpdateTime}, true
}

// selectLatest classifies the dump directory and picks the qualifying
// entry with the greatest update_time. cfg is the snapshot a single call
// holds stable across its (possibly two) suspension points, so two
// concurrent ReadLatestDump calls see the same age cutoff.
func (d *Dumper) selectLatest(cfg *options.Options) (filename.ParsedDumpName, bool, error) {
	class, err := scanner.ListClassified(cfg.DumpDirectory, d.log)
	if err != nil {
		return filename.ParsedDumpName{}, false, err
	}

	minT := d.minUsableTime(cfg)

	var best *filename.ParsedDumpName
	for i := range class.Valid {
		p := class.Valid[i]
		if p.FormatVersion != cfg.DumpFormatVersion {
			continue
		}
		if p.UpdateTime.Before(minT) {
			continue
		}
		if best == nil || p.UpdateTime.After(best.UpdateTime) ||
			(p.UpdateTime.Equal(best.UpdateTime) && p.Filename > best.Filename) {
			pp := p
			best = &pp
		}
	}
	if best == nil {
		return filename.ParsedDumpName{}, false, nil
	}
	return *best, true, nil
}

// minUsableTime computes the age-limit cutoff: filename.Round(now) minus
// the configured max age, or the zero time (no floor) when no age limit
// is configured. Computed once per call so the cutoff is stable across
// the call's lifetime, per the dump subsystem's config-snapshot-isolation
// contract.
func (d *Dumper) minUsableTime(cfg *options.Options) time.Time {
	if !cfg.HasMaxAge() {
		return time.Time{}
	}
	return filename.Round(d.clock.Now()).Add(-cfg.MaxDumpAge)
}

// BumpDumpTime renames the dump at oldT to appear as though its
// update_time were newT, without rewriting its contents: far cheaper than
// a full rewrite when the cache's logical content has not changed but a
// later known-fresh time should be recorded. oldT must be no later than
// newT -- the caller violating that is a programming error, not a
// recoverable condition. Returns false, warning rather than erroring, if
// the source no longer exists (the expected shape of a race against
// Cleanup); the caller is expected to fall back to a fresh WriteNewDump.
func (d *Dumper) BumpDumpTime(ctx context.Context, oldT, newT time.Time) bool {
	if oldT.After(newT) {
		panic(fmt.Sprintf("dump: BumpDumpTime called with old_t %v after new_t %v", oldT, newT))
	}

	cfg := d.cfg.Read()
	oldName := filename.Encode(oldT, cfg.DumpFormatVersion)
	newName := filename.Encode(newT, cfg.DumpFormatVersion)
	oldPath := filename.JoinPath(cfg.DumpDirectory, oldName)
	newPath := filename.JoinPath(cfg.DumpDirectory, newName)

	// The source-existence check, the rename itself, and the catalog
	// update all go through a single exec.Do so the stat call is never
	// run on the caller's own goroutine, matching every other syscall in
	// this file.
	var sourceMissing, noop bool
	err := d.exec.Do(ctx, func() error {
		if _, serr := os.Stat(oldPath); serr != nil {
			sourceMissing = true
			return nil
		}
		if oldName == newName {
			noop = true
			return nil
		}
		if rerr := os.Rename(oldPath, newPath); rerr != nil {
			return rerr
		}
		if d.catalog != nil {
			_ = d.catalog.Forget(d.CacheName, oldName)
			if p, ok := filename.Decode(newName); ok {
				_ = d.catalog.Remember(d.CacheName, p)
			}
		}
		return nil
	})

	if sourceMissing {
		d.log.Warn(dumperr.ErrSourceMissing.Error()+", caller should write a fresh dump", logging.Pairs{
			"cache": d.CacheName, "path": oldPath,
		})
		return false
	}
	if err != nil {
		d.log.Error("bump failed", logging.Pairs{
			"cache": d.CacheName, "old_path": oldPath, "new_path": newPath, "error": err.Error(),
		})
		return false
	}
	if noop {
		return true
	}

	metrics.DumpsBumpedTotal.WithLabelValues(d.CacheName).Inc()
	return true
}

// Cleanup reconciles the dump directory against the current policy:
// every stray *.tmp file is unlinked unconditionally; every valid entry
// whose format_version is lower than current or whose update_time is
// older than the age cutoff is unlinked; future-version entries are left
// untouched for rolling-downgrade safety; and of the survivors, all but
// the max_dump_count most recent are unlinked. Individual unlink errors
// are logged and do not abort the sweep. After the sweep, ConfigCell's
// own Cleanup is invoked to release any retired configuration
// generations, and -- if an advisory catalog is wired -- the catalog
// bucket is reconciled to exactly the survivors.
func (d *Dumper) Cleanup(ctx context.Context) {
	cfg := d.cfg.Read()

	err := d.exec.Do(ctx, func() error {
		return d.sweep(cfg)
	})
	if err != nil {
		d.log.Error("cleanup failed", logging.Pairs{
			"cache": d.CacheName, "error": err.Error(),
		})
	}

	d.cfg.Cleanup()
}

func (d *Dumper) sweep(cfg *options.Options) error {
	class, err := scanner.ListClassified(cfg.DumpDirectory, d.log)
	if err != nil {
		return err
	}

	for _, name := range class.StrayTemp {
		path := filename.JoinPath(cfg.DumpDirectory, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			d.log.WarnOnce("cleanup-unlink:"+path, "cleanup unlink failed", logging.Pairs{
				"cache": d.CacheName, "path": path, "error": err.Error(),
			})
			continue
		}
		metrics.DumpsPrunedTotal.WithLabelValues(d.CacheName, "stray_tmp").Inc()
	}

	minT := d.minUsableTime(cfg)
	var survivors []filename.ParsedDumpName
	for _, p := range class.Valid {
		switch {
		case p.FormatVersion > cfg.DumpFormatVersion:
			// future-version entry: neither kept nor deleted, per
			// the dump subsystem's rolling-downgrade safety rule.
			continue
		case p.FormatVersion < cfg.DumpFormatVersion:
			d.removeEntry(cfg.DumpDirectory, p.Filename, "stale_version")
		case p.UpdateTime.Before(minT):
			d.removeEntry(cfg.DumpDirectory, p.Filename, "expired")
		default:
			survivors = append(survivors, p)
		}
	}

	sort.Slice(survivors, func(i, j int) bool {
		return survivors[i].UpdateTime.After(survivors[j].UpdateTime)
	})

	keep := cfg.MaxDumpCount
	if keep < 0 {
		keep = 0
	}
	var kept []filename.ParsedDumpName
	for i, p := range survivors {
		if i < keep {
			kept = append(kept, p)
			continue
		}
		d.removeEntry(cfg.DumpDirectory, p.Filename, "over_count")
	}

	if d.catalog != nil {
		if err := d.catalog.Reconcile(d.CacheName, kept); err != nil {
			d.log.Debug("catalog reconcile failed", logging.Pairs{
				"cache": d.CacheName, "error": err.Error(),
			})
		}
	}

	d.reportDirectoryStats(cfg.DumpDirectory, kept)

	return nil
}

func (d *Dumper) removeEntry(directory, name, reason string) {
	path := filename.JoinPath(directory, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		d.log.WarnOnce("cleanup-unlink:"+path, "cleanup unlink failed", logging.Pairs{
			"cache": d.CacheName, "path": path, "reason": reason, "error": err.Error(),
		})
		return
	}
	metrics.DumpsPrunedTotal.WithLabelValues(d.CacheName, reason).Inc()
}

// reportDirectoryStats sets DumpDirectoryFileCount/DumpDirectoryBytes to
// the count and summed size of kept, the set of entries Cleanup's sweep
// just decided to retain. Stat failures on an individual survivor (e.g. a
// concurrent out-of-band removal) are logged at debug and simply excluded
// from the byte total rather than aborting the whole report.
func (d *Dumper) reportDirectoryStats(directory string, kept []filename.ParsedDumpName) {
	var totalBytes int64
	for _, p := range kept {
		info, err := os.Stat(filename.JoinPath(directory, p.Filename))
		if err != nil {
			d.log.Debug("directory stats stat failed", logging.Pairs{
				"cache": d.CacheName, "path": p.Filename, "error": err.Error(),
			})
			continue
		}
		totalBytes += info.Size()
	}
	metrics.DumpDirectoryFileCount.WithLabelValues(d.CacheName).Set(float64(len(kept)))
	metrics.DumpDirectoryBytes.WithLabelValues(d.CacheName).Set(float64(totalBytes))
}
