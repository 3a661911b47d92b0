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

package workload

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/linprobe"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestParse(t *testing.T) {
	data := []byte(`{
		// Strings hash poorly by default.
		"keys": "string",
		"count": 50,
		"hash": "xxhash",
		"band_alloc": "arena", // trailing commas are fine
	}`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	want := Default()
	want.Keys = KeysString
	want.Count = 50
	want.Hash = HashXX
	want.BandAlloc = AllocArena
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		data     string
		expected error
		contains string
	}{
		{`{"keys": "bytes"}`, errUnknownKeys, `"bytes"`},
		{`{"band_alloc": "malloc"}`, errUnknownAlloc, `"malloc"`},
		{`{"entry_alloc": ""}`, errUnknownAlloc, `""`},
		{`{"hash": "fnv"}`, errUnknownHash, `"fnv"`},
		{`{"count": -1}`, errNegativeCount, "-1"},
		{`{"count": 5, "delete": 6}`, errDeleteTooLarge, "delete 6"},
		{`{"capacity": 12, "colour": "red"}`, nil, "unknown field"},
		{`{"count": "many"}`, nil, "invalid JSON"},
		{`{"count": 1`, nil, "invalid JSONC"},
	}
	for _, c := range testCases {
		t.Run(c.data, func(t *testing.T) {
			_, err := Parse([]byte(c.data))
			require.Error(t, err)
			if c.expected != nil {
				require.True(t, errors.Is(err, c.expected), "%v", err)
			}
			require.Contains(t, err.Error(), c.contains)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workload.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"count": 7} // seven`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Count)
	require.Equal(t, KeysInt, cfg.Keys)

	_, err = Load(filepath.Join(dir, "missing.jsonc"))
	require.True(t, errors.Is(err, errConfigRead), "%v", err)
	require.True(t, errors.Is(err, os.ErrNotExist), "%v", err)

	bad := filepath.Join(dir, "bad.jsonc")
	require.NoError(t, os.WriteFile(bad, []byte(`{"keys": "runes"}`), 0o644))
	_, err = Load(bad)
	require.True(t, errors.Is(err, errConfigInvalid), "%v", err)
	require.True(t, errors.Is(err, errUnknownKeys), "%v", err)
	require.Contains(t, err.Error(), bad)
}

func TestConfigFormat(t *testing.T) {
	s, err := Default().Format()
	require.NoError(t, err)
	cfg, err := Parse([]byte(s))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestRun(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      func(c *Config)
		expected Report
	}{
		{
			// Identity hash on 0..8: every key sits in its home slot. The
			// 9th insertion grows 12 -> 24.
			name: "int",
			cfg: func(c *Config) {
				c.Count = 9
				c.Capacity = 12
			},
			expected: Report{
				Stats:       linprobe.Stats{Len: 9, BucketCount: 24},
				BandAllocs:  2,
				BandFrees:   2,
				EntryAllocs: 9,
				EntryFrees:  9,
			},
		},
		{
			name: "int-delete",
			cfg: func(c *Config) {
				c.Count = 9
				c.Capacity = 12
				c.Delete = 3
			},
			expected: Report{
				Stats:       linprobe.Stats{Len: 6, BucketCount: 24},
				BandAllocs:  2,
				BandFrees:   2,
				EntryAllocs: 9,
				EntryFrees:  9,
			},
		},
		{
			// 12 -> 24 -> 48 -> 96 -> 192.
			name: "int-pool-arena",
			cfg: func(c *Config) {
				c.Count = 100
				c.BandAlloc = AllocArena
				c.EntryAlloc = AllocPool
			},
			expected: Report{
				Stats:       linprobe.Stats{Len: 100, BucketCount: 192},
				BandAllocs:  5,
				BandFrees:   5,
				EntryAllocs: 100,
				EntryFrees:  100,
			},
		},
	}
	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Default()
			c.cfg(&cfg)
			c.expected.Config = cfg

			rep, err := Run(cfg, zaptest.NewLogger(t))
			require.NoError(t, err)
			if diff := cmp.Diff(c.expected, rep); diff != "" {
				t.Fatalf("report mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunKeyKinds(t *testing.T) {
	for _, keys := range []string{KeysInt, KeysFloat, KeysString} {
		for _, hash := range []string{HashDefault, HashXX} {
			t.Run(keys+"/"+hash, func(t *testing.T) {
				cfg := Default()
				cfg.Keys = keys
				cfg.Hash = hash
				cfg.Count = 500
				cfg.Delete = 100

				rep, err := Run(cfg, nil)
				require.NoError(t, err)
				require.Equal(t, 400, rep.Stats.Len)
				require.Less(t, rep.LoadFactor(), 2.0/3.0)
				require.Equal(t, rep.BandAllocs, rep.BandFrees)
				require.Equal(t, 500, rep.EntryAllocs)
				require.Equal(t, 500, rep.EntryFrees)
			})
		}
	}
}

func TestRunInvalid(t *testing.T) {
	cfg := Default()
	cfg.Keys = "complex"
	_, err := Run(cfg, nil)
	require.True(t, errors.Is(err, errUnknownKeys), "%v", err)
}

func TestReportFormat(t *testing.T) {
	rep := Report{
		Config:      Default(),
		Stats:       linprobe.Stats{Len: 3, BucketCount: 12, MaxProbe: 2, TotalProbe: 3},
		BandAllocs:  1,
		BandFrees:   1,
		EntryAllocs: 3,
		EntryFrees:  3,
	}
	require.Equal(t, 0.25, rep.LoadFactor())
	require.Equal(t, 1.0, rep.MeanProbe())
	require.Zero(t, Report{}.LoadFactor())
	require.Zero(t, Report{}.MeanProbe())

	var buf strings.Builder
	require.NoError(t, rep.Format(&buf))
	out := buf.String()
	require.Contains(t, out, "keys:         int\n")
	require.Contains(t, out, "load factor:  0.250\n")
	require.Contains(t, out, "max probe:    2\n")
	require.Contains(t, out, "band allocs:  1 (go, 1 freed)\n")
	require.Contains(t, out, "entry allocs: 3 (go, 3 freed)\n")
}
