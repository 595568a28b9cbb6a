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

// Package metrics implements the prometheus instrumentation the Dumper
// exposes, adapted from the teacher's pkg/observability/metrics: package
// level *Vec variables registered once in init() against the default
// registerer, labeled by cache name the way the teacher labels its own
// cache metrics by cache name.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	metricNamespace = "dumpstore"
	dumpSubsystem   = "dump"
)

// DumpsWrittenTotal counts successful WriteNewDump calls, by cache name.
var DumpsWrittenTotal *prometheus.CounterVec

// DumpsCollisionsTotal counts WriteNewDump calls refused because a dump
// already existed at the computed path, by cache name.
var DumpsCollisionsTotal *prometheus.CounterVec

// DumpsReadHitsTotal counts ReadLatestDump calls that returned a usable
// dump, by cache name.
var DumpsReadHitsTotal *prometheus.CounterVec

// DumpsReadMissesTotal counts ReadLatestDump calls that found no usable
// dump, by cache name.
var DumpsReadMissesTotal *prometheus.CounterVec

// DumpsBumpedTotal counts BumpDumpTime calls that renamed a dump, by cache
// name. A call whose old and new times encode to the same filename returns
// true without being counted.
var DumpsBumpedTotal *prometheus.CounterVec

// DumpsPrunedTotal counts files removed by Cleanup, by cache name and
// reason: expired, stale_version, over_count, stray_tmp.
var DumpsPrunedTotal *prometheus.CounterVec

// DumpDirectoryFileCount is a gauge of the number of current-version dump
// files the most recent Cleanup retained in a cache's dump directory.
// Future-version files, which Cleanup leaves on disk, are not counted.
var DumpDirectoryFileCount *prometheus.GaugeVec

// DumpDirectoryBytes is a gauge of the total size in bytes of the
// current-version dump files the most recent Cleanup retained in a cache's
// dump directory. Future-version files are not counted.
var DumpDirectoryBytes *prometheus.GaugeVec

func init() {
	DumpsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: dumpSubsystem,
			Name:      "writes_total",
			Help:      "Count of dumps successfully written to disk, by cache name.",
		},
		[]string{"cache_name"},
	)

	DumpsCollisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: dumpSubsystem,
			Name:      "write_collisions_total",
			Help:      "Count of WriteNewDump calls refused due to an existing file at the target path.",
		},
		[]string{"cache_name"},
	)

	DumpsReadHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: dumpSubsystem,
			Name:      "read_hits_total",
			Help:      "Count of ReadLatestDump calls that returned a usable dump.",
		},
		[]string{"cache_name"},
	)

	DumpsReadMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: dumpSubsystem,
			Name:      "read_misses_total",
			Help:      "Count of ReadLatestDump calls that found no usable dump.",
		},
		[]string{"cache_name"},
	)

	DumpsBumpedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: dumpSubsystem,
			Name:      "bumps_total",
			Help:      "Count of BumpDumpTime calls that renamed a dump.",
		},
		[]string{"cache_name"},
	)

	DumpsPrunedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: dumpSubsystem,
			Name:      "pruned_total",
			Help:      "Count of dump files removed by Cleanup, by cache name and reason.",
		},
		[]string{"cache_name", "reason"},
	)

	DumpDirectoryFileCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: dumpSubsystem,
			Name:      "directory_files",
			Help:      "Number of current-version dump files retained by the most recent Cleanup.",
		},
		[]string{"cache_name"},
	)

	DumpDirectoryBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: dumpSubsystem,
			Name:      "directory_bytes",
			Help:      "Total size in bytes of current-version dump files retained by the most recent Cleanup.",
		},
		[]string{"cache_name"},
	)

	prometheus.MustRegister(DumpsWrittenTotal)
	prometheus.MustRegister(DumpsCollisionsTotal)
	prometheus.MustRegister(DumpsReadHitsTotal)
	prometheus.MustRegister(DumpsReadMissesTotal)
	prometheus.MustRegister(DumpsBumpedTotal)
	prometheus.MustRegister(DumpsPrunedTotal)
	prometheus.MustRegister(DumpDirectoryFileCount)
	prometheus.MustRegister(DumpDirectoryBytes)
}
