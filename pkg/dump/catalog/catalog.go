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

// Package catalog provides an optional, advisory bbolt-backed side index
// of known dump filenames per cache. WriteNewDump and BumpDumpTime keep it
// up to date and Cleanup reconciles it, but WriteNewDump's collision check
// still stats the filesystem on every call. The filesystem remains the
// authoritative index per the dump subsystem's "filename as authoritative
// index" design note: BoltCatalog is consulted opportunistically and
// reconciled from a DirectoryScanner pass, never trusted blindly, the same
// posture the teacher's own pkg/cache/index takes toward its in-memory
// index of an underlying cache backend.
package catalog

import (
	"time"

	"go.etcd.io/bbolt"

	"github.com/trickstercache/dumpstore/pkg/dump/filename"
)

// BoltCatalog wraps a bbolt database holding one bucket per cache name,
// keyed by dump filename, valued by a msgp-encoded Record.
type BoltCatalog struct {
	dbh *bbolt.DB
}

// Open opens (creating if absent) the bbolt database at path for use as a
// dump catalog. The caller owns the returned BoltCatalog's lifetime and
// must call Close when done.
func Open(path string) (*BoltCatalog, error) {
	dbh, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	return &BoltCatalog{dbh: dbh}, nil
}

// Close releases the underlying bbolt database handle.
func (c *BoltCatalog) Close() error {
	if c == nil || c.dbh == nil {
		return nil
	}
	return c.dbh.Close()
}

// Remember opportunistically records that filename is known to exist for
// cacheName, creating the cache's bucket on first use.
func (c *BoltCatalog) Remember(cacheName string, p filename.ParsedDumpName) error {
	rec := Record{
		Filename:            p.Filename,
		UpdateTimeUnixMicro: p.UpdateTime.UnixMicro(),
		FormatVersion:       p.FormatVersion,
	}
	val, err := rec.MarshalMsg(nil)
	if err != nil {
		return err
	}
	return c.dbh.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(cacheName))
		if err != nil {
			return err
		}
		return b.Put([]byte(p.Filename), val)
	})
}

// Forget removes filename from cacheName's catalog bucket, if present.
func (c *BoltCatalog) Forget(cacheName, name string) error {
	return c.dbh.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(cacheName))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(name))
	})
}

// Known reports whether filename is recorded in cacheName's catalog
// bucket. Neither result is proof about the disk -- callers must still
// treat the filesystem as authoritative.
func (c *BoltCatalog) Known(cacheName, name string) (bool, error) {
	var found bool
	err := c.dbh.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(cacheName))
		if b == nil {
			return nil
		}
		found = b.Get([]byte(name)) != nil
		return nil
	})
	return found, err
}

// Reconcile replaces cacheName's entire catalog bucket with exactly the
// entries in valid, the way Cleanup's DirectoryScanner pass is the ground
// truth the catalog must converge to. Call this after every Cleanup so a
// catalog that drifted (entries removed by a prior crash before Remember
// ran, or a bucket that predates files later deleted out of band) is
// self-healed rather than accumulating permanent skew.
func (c *BoltCatalog) Reconcile(cacheName string, valid []filename.ParsedDumpName) error {
	return c.dbh.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(cacheName)); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket([]byte(cacheName))
		if err != nil {
			return err
		}
		for _, p := range valid {
			rec := Record{
				Filename:            p.Filename,
				UpdateTimeUnixMicro: p.UpdateTime.UnixMicro(),
				FormatVersion:       p.FormatVersion,
			}
			val, err := rec.MarshalMsg(nil)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(p.Filename), val); err != nil {
				return err
			}
		}
		return nil
	})
}
