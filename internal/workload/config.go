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

// Package workload fills a linprobe.Map with a synthetic key set described
// by a Config and reports how the table laid itself out.
package workload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// Key kinds.
const (
	KeysInt    = "int"
	KeysFloat  = "float"
	KeysString = "string"
)

// Allocator kinds, for both the band and the entries.
const (
	AllocGo    = "go"
	AllocArena = "arena"
	AllocPool  = "pool"
)

// Hash kinds.
const (
	HashDefault = "default"
	HashXX      = "xxhash"
)

var (
	errConfigInvalid  = errors.New("invalid config")
	errConfigRead     = errors.New("cannot read config file")
	errUnknownKeys    = errors.New("unknown key kind")
	errUnknownAlloc   = errors.New("unknown allocator")
	errUnknownHash    = errors.New("unknown hash")
	errNegativeCount  = errors.New("count must not be negative")
	errDeleteTooLarge = errors.New("delete exceeds count")
)

// Config describes a workload. The zero Capacity selects the map's default.
type Config struct {
	// Count is the number of distinct keys inserted.
	Count int `json:"count"`
	// Capacity is the initial slot count passed to linprobe.New.
	Capacity int `json:"capacity"`
	// Keys is one of "int", "float" or "string". Key i is i, i+0.5 or the
	// decimal string of i respectively.
	Keys string `json:"keys"`
	// BandAlloc and EntryAlloc are each one of "go", "arena" or "pool".
	BandAlloc  string `json:"band_alloc"`
	EntryAlloc string `json:"entry_alloc"`
	// Hash is "default" or "xxhash".
	Hash string `json:"hash"`
	// Delete is the number of keys deleted, lowest first, once every key
	// has been inserted and verified.
	Delete int `json:"delete"`
}

// Default returns the configuration used when no file or flag overrides it.
func Default() Config {
	return Config{
		Count:      1000,
		Keys:       KeysInt,
		BandAlloc:  AllocGo,
		EntryAlloc: AllocGo,
		Hash:       HashDefault,
	}
}

// Load reads a JSONC (JSON with comments and trailing commas) config file.
// Fields the file omits keep their Default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", errConfigRead, path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}
	return cfg, nil
}

// Parse decodes a JSONC config over Default and validates the result.
func Parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first field that does not name a known kind or is
// out of range.
func (c Config) Validate() error {
	if c.Count < 0 {
		return fmt.Errorf("%w: %d", errNegativeCount, c.Count)
	}
	if c.Delete < 0 || c.Delete > c.Count {
		return fmt.Errorf("%w: delete %d, count %d", errDeleteTooLarge, c.Delete, c.Count)
	}
	switch c.Keys {
	case KeysInt, KeysFloat, KeysString:
	default:
		return fmt.Errorf("%w %q", errUnknownKeys, c.Keys)
	}
	for _, a := range []string{c.BandAlloc, c.EntryAlloc} {
		switch a {
		case AllocGo, AllocArena, AllocPool:
		default:
			return fmt.Errorf("%w %q", errUnknownAlloc, a)
		}
	}
	switch c.Hash {
	case HashDefault, HashXX:
	default:
		return fmt.Errorf("%w %q", errUnknownHash, c.Hash)
	}
	return nil
}

// Format returns the config as indented JSON.
func (c Config) Format() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}
	return string(data), nil
}
