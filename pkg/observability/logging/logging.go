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

// Package logging provides the structured logger the dump subsystem logs
// every warning and error through. It is adapted from the teacher's own
// go-kit/log-backed logger (its pre-v2 pkg/util/log package -- the one
// that actually wires go-kit/log, go-stack/stack, and lumberjack; the
// teacher's newer pkg/observability/logging hand-rolls its own formatter
// instead and does not exercise go-kit/log at all).
package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	gostack "github.com/go-stack/stack"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	dlevel "github.com/trickstercache/dumpstore/pkg/observability/logging/level"
)

// Pairs is a key=value map describing a log event's structured detail.
type Pairs map[string]interface{}

// Logger is the four-severity logging collaborator the dump subsystem
// consumes, per its external-interfaces contract.
type Logger interface {
	Debug(event string, detail Pairs)
	Info(event string, detail Pairs)
	Warn(event string, detail Pairs)
	Error(event string, detail Pairs)
	Fatal(code int, event string, detail Pairs)

	// WarnOnce and ErrorOnce log only the first time a given key is
	// seen, so a condition that recurs every sweep (a stray tmp file
	// that keeps reappearing, say) does not reflood the sink.
	WarnOnce(key, event string, detail Pairs) bool
	ErrorOnce(key, event string, detail Pairs) bool
	HasWarnedOnce(key string) bool

	Level() dlevel.Level
	Close()
}

// FileConfig configures New's file output, mirroring the teacher's
// LogFile/InstanceID config fields.
type FileConfig struct {
	LogFile    string
	LogLevel   dlevel.Level
	InstanceID int
}

func mapToArray(event string, detail Pairs) []interface{} {
	a := make([]interface{}, 0, (len(detail)*2)+2)
	a = append(a, "event", event)
	for k, v := range detail {
		a = append(a, k, v)
	}
	return a
}

// DefaultLogger returns a console logger at level info.
func DefaultLogger() Logger {
	return ConsoleLogger(dlevel.Info)
}

// NoopLogger discards everything; useful for tests and for callers that
// genuinely do not want the dump subsystem to log.
func NoopLogger() Logger {
	return &logger{
		kit:            kitlog.NewNopLogger(),
		lvl:            dlevel.Info,
		onceRanEntries: make(map[string]bool),
	}
}

// ConsoleLogger returns a Logger writing logfmt lines to stdout.
func ConsoleLogger(logLevel dlevel.Level) Logger {
	return build(os.Stdout, nil, logLevel)
}

// New returns a Logger for the given FileConfig. When LogFile is empty it
// behaves like ConsoleLogger; otherwise it rolls logs through lumberjack
// the same way the teacher's own file logger does, distinguishing
// multiple instances sharing a log path by InstanceID.
func New(cfg FileConfig) Logger {
	if cfg.LogFile == "" {
		return build(os.Stdout, nil, cfg.LogLevel)
	}

	logFile := cfg.LogFile
	if cfg.InstanceID > 0 {
		logFile = strings.Replace(logFile, ".log", "."+strconv.Itoa(cfg.InstanceID)+".log", 1)
	}
	lj := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    256,  // megabytes
		MaxBackups: 80,   // 256 megs @ 80 backups is 20GB of logs
		MaxAge:     7,    // days
		Compress:   true, // compress rolled backups
	}
	return build(lj, lj, cfg.LogLevel)
}

func build(w io.Writer, closer io.Closer, logLevel dlevel.Level) Logger {
	kl := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	kl = kitlog.With(kl,
		"time", kitlog.DefaultTimestampUTC,
		"app", "dumpstore",
		"caller", kitlog.Valuer(func() interface{} {
			return pkgCaller{gostack.Caller(6)}
		}),
	)

	l := &logger{
		closer:         closer,
		lvl:            logLevel,
		onceRanEntries: make(map[string]bool),
	}

	switch logLevel {
	case dlevel.Debug:
		kl = level.NewFilter(kl, level.AllowDebug())
	case dlevel.Warn:
		kl = level.NewFilter(kl, level.AllowWarn())
	case dlevel.Error:
		kl = level.NewFilter(kl, level.AllowError())
	default:
		kl = level.NewFilter(kl, level.AllowInfo())
	}
	l.kit = kl
	return l
}

type logger struct {
	kit    kitlog.Logger
	closer io.Closer
	lvl    dlevel.Level

	onceMutex      sync.Mutex
	onceRanEntries map[string]bool
}

func (l *logger) Debug(event string, detail Pairs) {
	level.Debug(l.kit).Log(mapToArray(event, detail)...)
}

func (l *logger) Info(event string, detail Pairs) {
	level.Info(l.kit).Log(mapToArray(event, detail)...)
}

func (l *logger) Warn(event string, detail Pairs) {
	level.Warn(l.kit).Log(mapToArray(event, detail)...)
}

func (l *logger) Error(event string, detail Pairs) {
	level.Error(l.kit).Log(mapToArray(event, detail)...)
}

func (l *logger) Fatal(code int, event string, detail Pairs) {
	level.Error(l.kit).Log(mapToArray(event, detail)...)
	if code < 0 {
		// tests send a negative code to avoid actually exiting
		return
	}
	if code == 0 {
		code = 1
	}
	os.Exit(code)
}

func (l *logger) WarnOnce(key, event string, detail Pairs) bool {
	l.onceMutex.Lock()
	defer l.onceMutex.Unlock()
	k := "warn." + key
	if l.onceRanEntries[k] {
		return false
	}
	l.onceRanEntries[k] = true
	l.Warn(event, detail)
	return true
}

func (l *logger) ErrorOnce(key, event string, detail Pairs) bool {
	l.onceMutex.Lock()
	defer l.onceMutex.Unlock()
	k := "error." + key
	if l.onceRanEntries[k] {
		return false
	}
	l.onceRanEntries[k] = true
	l.Error(event, detail)
	return true
}

func (l *logger) HasWarnedOnce(key string) bool {
	l.onceMutex.Lock()
	defer l.onceMutex.Unlock()
	_, ok := l.onceRanEntries["warn."+key]
	return ok
}

func (l *logger) Level() dlevel.Level { return l.lvl }

func (l *logger) Close() {
	if l.closer != nil {
		l.closer.Close()
	}
}

// pkgCaller wraps a stack.Call so its default %v formatting includes a
// module-relative file path, matching the teacher's own pkgCaller.
type pkgCaller struct {
	c gostack.Call
}

func (pc pkgCaller) String() string {
	return strings.TrimPrefix(
		fmt.Sprintf("%+v", pc.c),
		"github.com/trickstercache/dumpstore/",
	)
}
