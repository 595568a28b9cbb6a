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

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/trickstercache/dumpstore/pkg/dump/filename"
)

func openTest(t *testing.T) *BoltCatalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRememberKnownForget(t *testing.T) {
	c := openTest(t)
	p := filename.ParsedDumpName{
		Filename:      "2024-01-01T00:00:00.000000-v1",
		UpdateTime:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		FormatVersion: 1,
	}

	if known, err := c.Known("mycache", p.Filename); err != nil || known {
		t.Fatalf("Known before Remember = %v, %v; want false, nil", known, err)
	}

	if err := c.Remember("mycache", p); err != nil {
		t.Fatalf("Remember: %v", err)
	}

	known, err := c.Known("mycache", p.Filename)
	if err != nil || !known {
		t.Fatalf("Known after Remember = %v, %v; want true, nil", known, err)
	}

	if err := c.Forget("mycache", p.Filename); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if known, err := c.Known("mycache", p.Filename); err != nil || known {
		t.Fatalf("Known after Forget = %v, %v; want false, nil", known, err)
	}
}

func TestReconcileReplacesBucket(t *testing.T) {
	c := openTest(t)
	stale := filename.ParsedDumpName{Filename: "stale-v1", UpdateTime: time.Now(), FormatVersion: 1}
	if err := c.Remember("mycache", stale); err != nil {
		t.Fatalf("Remember: %v", err)
	}

	fresh := filename.ParsedDumpName{Filename: "fresh-v1", UpdateTime: time.Now(), FormatVersion: 1}
	if err := c.Reconcile("mycache", []filename.ParsedDumpName{fresh}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if known, _ := c.Known("mycache", stale.Filename); known {
		t.Error("stale entry survived Reconcile")
	}
	if known, err := c.Known("mycache", fresh.Filename); err != nil || !known {
		t.Fatalf("Known(fresh) = %v, %v; want true, nil", known, err)
	}
}

func TestKnownUnknownCache(t *testing.T) {
	c := openTest(t)
	known, err := c.Known("never-seen", "whatever")
	if err != nil {
		t.Fatalf("Known: %v", err)
	}
	if known {
		t.Error("expected false for a cache name with no bucket")
	}
}
