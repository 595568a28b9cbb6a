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

// Package main implements dumpctl, a small operator CLI for inspecting
// and pruning a cache dump directory out-of-process, built over the same
// pkg/dump library code the in-process Dumper uses. Grounded on the
// teacher's cmd/trickster/main.go entry point and cmd/trickster/usage.go
// usage-text style.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/trickstercache/dumpstore/pkg/dump"
	"github.com/trickstercache/dumpstore/pkg/dump/clock"
	"github.com/trickstercache/dumpstore/pkg/dump/fsexec"
	"github.com/trickstercache/dumpstore/pkg/dump/options"
	"github.com/trickstercache/dumpstore/pkg/observability/logging"
	"github.com/trickstercache/dumpstore/pkg/observability/logging/level"
)

const usageText = `
dumpctl - inspect and prune a dumpstore cache dump directory

Usage:

  dumpctl latest <dir> <version>
      Print the update time and byte size of the most recent usable dump
      in <dir> at format version <version>, or report that none was found.

  dumpctl prune <dir> <version> <max-age-secs> <max-count>
      Remove stray temporary files, files below <version>, files older
      than <max-age-secs> (0 disables the age limit), and all but the
      <max-count> most recent survivors.
`

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log := logging.ConsoleLogger(level.Info)

	var err error
	switch os.Args[1] {
	case "latest":
		err = runLatest(os.Args[2:], log)
	case "prune":
		err = runPrune(os.Args[2:], log)
	case "-help", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "dumpctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, usageText)
}

func runLatest(args []string, log logging.Logger) error {
	if len(args) != 2 {
		return fmt.Errorf("latest requires <dir> <version>")
	}
	version, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[1], err)
	}

	o := options.New()
	o.DumpDirectory = args[0]
	o.DumpFormatVersion = version

	d := dump.NewDumper("dumpctl", fsexec.Inline{}, clock.Real{}, log, nil, o)
	contents, ok := d.ReadLatestDump(context.Background())
	if !ok {
		fmt.Println("no usable dump found")
		return nil
	}
	fmt.Printf("update_time=%s bytes=%d\n", contents.UpdateTime.Format(time.RFC3339Nano), len(contents.Bytes))
	return nil
}

func runPrune(args []string, log logging.Logger) error {
	if len(args) != 4 {
		return fmt.Errorf("prune requires <dir> <version> <max-age-secs> <max-count>")
	}
	version, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[1], err)
	}
	maxAgeSecs, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid max-age-secs %q: %w", args[2], err)
	}
	maxCount, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("invalid max-count %q: %w", args[3], err)
	}

	o := options.New()
	o.DumpDirectory = args[0]
	o.DumpFormatVersion = version
	o.MaxDumpCount = maxCount
	if maxAgeSecs > 0 {
		o.MaxDumpAge = time.Duration(maxAgeSecs) * time.Second
	}

	d := dump.NewDumper("dumpctl", fsexec.Inline{}, clock.Real{}, log, nil, o)
	d.Cleanup(context.Background())
	return nil
}
