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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/linprobe"
	"github.com/cockroachdb/linprobe/alloc"
	"go.uber.org/zap"
)

var (
	errVerify = errors.New("verification failed")
	errDelete = errors.New("delete failed")
)

// Report is the outcome of a workload.
type Report struct {
	Config Config
	// Stats is taken after every insertion and deletion, before Close.
	Stats linprobe.Stats
	// Allocation counts, taken after Close so that every allocation has a
	// matching free.
	BandAllocs  int
	BandFrees   int
	EntryAllocs int
	EntryFrees  int
}

// LoadFactor is Len divided by BucketCount.
func (r Report) LoadFactor() float64 {
	if r.Stats.BucketCount == 0 {
		return 0
	}
	return float64(r.Stats.Len) / float64(r.Stats.BucketCount)
}

// MeanProbe is the average distance of an entry from its home slot.
func (r Report) MeanProbe() float64 {
	if r.Stats.Len == 0 {
		return 0
	}
	return float64(r.Stats.TotalProbe) / float64(r.Stats.Len)
}

// Format writes the report as aligned "name: value" lines.
func (r Report) Format(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"keys:         %s\n"+
			"hash:         %s\n"+
			"count:        %d\n"+
			"deleted:      %d\n"+
			"len:          %d\n"+
			"buckets:      %d\n"+
			"load factor:  %.3f\n"+
			"max probe:    %d\n"+
			"total probe:  %d\n"+
			"mean probe:   %.3f\n"+
			"band allocs:  %d (%s, %d freed)\n"+
			"entry allocs: %d (%s, %d freed)\n",
		r.Config.Keys, r.Config.Hash, r.Config.Count, r.Config.Delete,
		r.Stats.Len, r.Stats.BucketCount, r.LoadFactor(),
		r.Stats.MaxProbe, r.Stats.TotalProbe, r.MeanProbe(),
		r.BandAllocs, r.Config.BandAlloc, r.BandFrees,
		r.EntryAllocs, r.Config.EntryAlloc, r.EntryFrees)
	return err
}

// Run executes the workload described by cfg. Every inserted key is looked
// up again before any deletion; a key that is missing or maps to the wrong
// value fails the run.
func Run(cfg Config, logger *zap.Logger) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var rep Report
	var err error
	switch cfg.Keys {
	case KeysInt:
		rep, err = run(cfg, logger, intKey, xxhashInt)
	case KeysFloat:
		rep, err = run(cfg, logger, floatKey, xxhashFloat)
	case KeysString:
		rep, err = run(cfg, logger, strconv.Itoa, linprobe.XXHashString[string])
	}
	if err != nil {
		return Report{}, err
	}

	logger.Info("workload complete",
		zap.String("keys", cfg.Keys),
		zap.Int("len", rep.Stats.Len),
		zap.Int("buckets", rep.Stats.BucketCount),
		zap.Int("max_probe", rep.Stats.MaxProbe))
	return rep, nil
}

func run[K comparable](
	cfg Config, logger *zap.Logger, key func(i int) K, xxhashKey func(K) uint64,
) (Report, error) {
	band := alloc.NewCounting[linprobe.Slot[K, int]](newAllocator[linprobe.Slot[K, int]](cfg.BandAlloc))
	entries := alloc.NewCounting[linprobe.Entry[K, int]](newAllocator[linprobe.Entry[K, int]](cfg.EntryAlloc))

	options := []linprobe.Option[K, int]{
		linprobe.WithAllocators[K, int](band, entries),
		linprobe.WithLogger[K, int](logger),
	}
	if cfg.Hash == HashXX {
		options = append(options, linprobe.WithHash[K, int](xxhashKey))
	}

	m := linprobe.New[K, int](cfg.Capacity, options...)
	defer m.Close()

	for i := 0; i < cfg.Count; i++ {
		m.Put(key(i), i)
	}
	for i := 0; i < cfg.Count; i++ {
		v, err := m.Lookup(key(i))
		if err != nil {
			return Report{}, fmt.Errorf("%w: %w", errVerify, err)
		}
		if *v != i {
			return Report{}, fmt.Errorf("%w: key %v maps to %d, expected %d", errVerify, key(i), *v, i)
		}
	}
	for i := 0; i < cfg.Delete; i++ {
		if !m.Delete(key(i)) {
			return Report{}, fmt.Errorf("%w: key %v not present", errDelete, key(i))
		}
	}

	rep := Report{Config: cfg, Stats: m.Stats()}
	m.Close()

	rep.BandAllocs, rep.BandFrees = band.Allocs(), band.Frees()
	rep.EntryAllocs, rep.EntryFrees = entries.Allocs(), entries.Frees()
	return rep, nil
}

func newAllocator[T any](kind string) linprobe.Allocator[T] {
	switch kind {
	case AllocArena:
		return alloc.NewArena[T](alloc.DefaultArenaChunk)
	case AllocPool:
		return alloc.NewPool[T](0)
	default:
		return alloc.Go[T]{}
	}
}

func intKey(i int) int { return i }

// floatKey avoids zero, which FloatHash does not accept.
func floatKey(i int) float64 { return float64(i) + 0.5 }

func xxhashInt(k int) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(k))
	return xxhash.Sum64(b[:])
}

func xxhashFloat(k float64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(k))
	return xxhash.Sum64(b[:])
}
