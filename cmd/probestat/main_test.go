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

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut strings.Builder
	code = run(args, &out, &errOut)
	return out.String(), errOut.String(), code
}

func TestRunDefaults(t *testing.T) {
	stdout, stderr, code := runCLI(t, "--count", "9", "--capacity", "12")
	require.Equal(t, 0, code, stderr)
	require.Empty(t, stderr)
	require.Contains(t, stdout, "len:          9\n")
	require.Contains(t, stdout, "buckets:      24\n")
	require.Contains(t, stdout, "band allocs:  2 (go, 2 freed)\n")
}

func TestRunConfigAndOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "w.jsonc")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{
		// Overridden below.
		"count": 1000,
		"keys": "string",
		"hash": "xxhash",
		"entry_alloc": "pool",
	}`), 0o644))

	outPath := filepath.Join(dir, "report.txt")
	stdout, stderr, code := runCLI(t, "--config", cfgPath, "--count", "20", "--out", outPath)
	require.Equal(t, 0, code, stderr)
	require.Empty(t, stdout)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	report := string(data)
	require.Contains(t, report, "keys:         string\n")
	require.Contains(t, report, "hash:         xxhash\n")
	require.Contains(t, report, "count:        20\n")
	require.Contains(t, report, "entry allocs: 20 (pool, 20 freed)\n")
}

func TestRunVerbose(t *testing.T) {
	_, stderr, code := runCLI(t, "-v", "--count", "9", "--capacity", "12")
	require.Equal(t, 0, code)
	require.Contains(t, stderr, "resize")
	require.Contains(t, stderr, "workload complete")
}

func TestRunErrors(t *testing.T) {
	testCases := []struct {
		args     []string
		contains string
	}{
		{[]string{"--keys", "bytes"}, "unknown key kind"},
		{[]string{"--band-alloc", "malloc"}, "unknown allocator"},
		{[]string{"--count", "3", "--delete", "4"}, "delete exceeds count"},
		{[]string{"--bogus"}, "unknown flag"},
		{[]string{"extra"}, "unexpected arguments"},
		{[]string{"--config", "/nonexistent/w.jsonc"}, "cannot read config file"},
	}
	for _, c := range testCases {
		t.Run(strings.Join(c.args, " "), func(t *testing.T) {
			stdout, stderr, code := runCLI(t, c.args...)
			require.Equal(t, 1, code)
			require.Empty(t, stdout)
			require.Contains(t, stderr, "error:")
			require.Contains(t, stderr, c.contains)
		})
	}
}

func TestRunHelp(t *testing.T) {
	stdout, _, code := runCLI(t, "--help")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "Usage: probestat")
	require.Contains(t, stdout, "--band-alloc")
	require.Contains(t, stdout, "--entry-alloc")
}
