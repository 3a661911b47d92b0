// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command probestat fills a linprobe.Map with a synthetic workload and
// prints how the keys were laid out: load factor, probe distances, and how
// many allocations each allocator served.
//
// Usage:
//
//	probestat [--config file.jsonc] [--count N] [--capacity N]
//	          [--keys int|float|string] [--hash default|xxhash]
//	          [--band-alloc go|arena|pool] [--entry-alloc go|arena|pool]
//	          [--delete N] [--out report.txt] [-v]
//
// Flags override the values read from --config, which in turn override the
// built-in defaults.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/linprobe/internal/workload"
	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	out     string
	verbose bool
	cfg     workload.Config
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, code, done := parseFlags(args, stdout, stderr)
	if done {
		return code
	}

	logger := newLogger(stderr, opts.verbose)
	defer func() { _ = logger.Sync() }()

	if s, err := opts.cfg.Format(); err == nil {
		logger.Debug("workload config", zap.String("config", s))
	}

	rep, err := workload.Run(opts.cfg, logger)
	if err != nil {
		fprintln(stderr, "error:", err)
		return 1
	}

	var buf bytes.Buffer
	if err := rep.Format(&buf); err != nil {
		fprintln(stderr, "error:", err)
		return 1
	}

	if opts.out == "" {
		if _, err := stdout.Write(buf.Bytes()); err != nil {
			return 1
		}
		return 0
	}
	if err := atomic.WriteFile(opts.out, &buf); err != nil {
		fprintln(stderr, "error:", fmt.Errorf("writing report: %w", err))
		return 1
	}
	logger.Info("report written", zap.String("path", opts.out))
	return 0
}

// parseFlags returns done=true when run should exit immediately with code.
func parseFlags(args []string, stdout, stderr io.Writer) (options, int, bool) {
	flagSet := flag.NewFlagSet("probestat", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	def := workload.Default()
	configPath := flagSet.String("config", "", "JSONC workload file")
	count := flagSet.Int("count", def.Count, "Number of keys to insert")
	capacity := flagSet.Int("capacity", def.Capacity, "Initial capacity (0 for the map default)")
	keys := flagSet.String("keys", def.Keys, "Key kind: int, float or string")
	hash := flagSet.String("hash", def.Hash, "Hash function: default or xxhash")
	bandAlloc := flagSet.String("band-alloc", def.BandAlloc, "Band allocator: go, arena or pool")
	entryAlloc := flagSet.String("entry-alloc", def.EntryAlloc, "Entry allocator: go, arena or pool")
	del := flagSet.Int("delete", def.Delete, "Number of keys to delete after inserting")
	out := flagSet.String("out", "", "Write the report to this file instead of stdout")
	verbose := flagSet.BoolP("verbose", "v", false, "Log map events to stderr")
	help := flagSet.BoolP("help", "h", false, "Show help")

	if err := flagSet.Parse(args); err != nil {
		fprintln(stderr, "error:", err)
		return options{}, 1, true
	}
	if *help {
		fprintln(stdout, "Usage: probestat [flags]")
		fprintln(stdout)
		fprintln(stdout, flagSet.FlagUsages())
		return options{}, 0, true
	}
	if flagSet.NArg() > 0 {
		fprintln(stderr, "error: unexpected arguments:", flagSet.Args())
		return options{}, 1, true
	}

	cfg := def
	if *configPath != "" {
		var err error
		if cfg, err = workload.Load(*configPath); err != nil {
			fprintln(stderr, "error:", err)
			return options{}, 1, true
		}
	}

	if flagSet.Changed("count") {
		cfg.Count = *count
	}
	if flagSet.Changed("capacity") {
		cfg.Capacity = *capacity
	}
	if flagSet.Changed("keys") {
		cfg.Keys = *keys
	}
	if flagSet.Changed("hash") {
		cfg.Hash = *hash
	}
	if flagSet.Changed("band-alloc") {
		cfg.BandAlloc = *bandAlloc
	}
	if flagSet.Changed("entry-alloc") {
		cfg.EntryAlloc = *entryAlloc
	}
	if flagSet.Changed("delete") {
		cfg.Delete = *del
	}

	if err := cfg.Validate(); err != nil {
		fprintln(stderr, "error:", err)
		return options{}, 1, true
	}

	return options{out: *out, verbose: *verbose, cfg: cfg}, 0, false
}

// newLogger logs warnings and above to w, or everything with verbose.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zap.WarnLevel
	if verbose {
		level = zap.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core)
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
