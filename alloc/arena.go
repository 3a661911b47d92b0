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

package alloc

import "fmt"

// DefaultArenaChunk is the number of elements in an arena chunk when
// NewArena is passed a non-positive chunk size.
const DefaultArenaChunk = 4096

// Arena is a bump allocator. Allocations are carved sequentially out of the
// current chunk; when a request does not fit, a fresh chunk is started and
// the old one is left to the garbage collector once nothing references it.
// Requests larger than a chunk get a dedicated block.
//
// Free only reclaims memory when it is handed the most recent allocation,
// which is rolled back. Everything else is reclaimed in bulk by Reset or by
// dropping the Arena.
type Arena[T any] struct {
	chunkSize int
	chunk     []T
	off       int
	chunks    int
	allocs    int
}

// NewArena returns an arena whose chunks hold chunkSize elements.
func NewArena[T any](chunkSize int) *Arena[T] {
	if chunkSize <= 0 {
		chunkSize = DefaultArenaChunk
	}
	return &Arena[T]{chunkSize: chunkSize}
}

// Alloc returns n zeroed elements.
func (a *Arena[T]) Alloc(n int) []T {
	if n < 0 {
		panic(fmt.Sprintf("alloc: negative arena allocation %d", n))
	}
	if a.chunkSize == 0 {
		a.chunkSize = DefaultArenaChunk
	}
	a.allocs++
	if n > a.chunkSize {
		return make([]T, n)
	}
	if a.off+n > len(a.chunk) {
		a.chunk = make([]T, a.chunkSize)
		a.off = 0
		a.chunks++
	}
	start := a.off
	a.off += n
	return a.chunk[start:a.off:a.off]
}

// Free rolls back v if it is the most recent allocation from the current
// chunk. Any other block is ignored.
func (a *Arena[T]) Free(v []T) {
	n := len(v)
	if n == 0 || n > a.off {
		return
	}
	if &v[0] != &a.chunk[a.off-n] {
		return
	}
	clear(v)
	a.off -= n
}

// Reset makes the whole current chunk available again. Every block handed
// out before Reset must no longer be in use.
func (a *Arena[T]) Reset() {
	clear(a.chunk[:a.off])
	a.off = 0
}

// Chunks returns the number of chunks the arena has allocated.
func (a *Arena[T]) Chunks() int {
	return a.chunks
}

// Used returns the number of elements in use in the current chunk.
func (a *Arena[T]) Used() int {
	return a.off
}

// Allocs returns the number of Alloc calls.
func (a *Arena[T]) Allocs() int {
	return a.allocs
}
