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

// Package alloc provides typed allocators that satisfy linprobe.Allocator,
// the two-method allocation contract consumed by linprobe.Map: Alloc(n)
// returns zeroed storage for n elements and Free(v) takes back a slice
// previously returned by Alloc.
//
// Go delegates to make and the garbage collector. Arena carves allocations
// out of large chunks and suits infrequent, large requests such as a slot
// array. Pool recycles blocks of equal length and suits frequent fixed-size
// requests such as individual entries. Counting wraps any of them and
// records traffic.
//
// None of the allocators are goroutine-safe.
package alloc

// Go allocates using make and relies on the garbage collector to reclaim
// memory. Free is a no-op.
type Go[T any] struct{}

// Alloc returns make([]T, n).
func (Go[T]) Alloc(n int) []T {
	return make([]T, n)
}

// Free does nothing.
func (Go[T]) Free([]T) {}
