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

// Pool is a free-list allocator. Freed blocks are zeroed and kept on a stack
// per block length; Alloc pops a cached block of the requested length before
// falling back to make. The zero value is ready to use.
type Pool[T any] struct {
	free   map[int][][]T
	cached int
	fresh  int
	reused int
	// limit bounds the number of cached blocks per length. Zero means
	// unbounded.
	limit int
}

// NewPool returns a pool that caches at most limit blocks of each length.
// A limit of zero caches without bound.
func NewPool[T any](limit int) *Pool[T] {
	return &Pool[T]{limit: limit}
}

// Alloc returns n zeroed elements, reusing a freed block if one of length n
// is cached.
func (p *Pool[T]) Alloc(n int) []T {
	if l := p.free[n]; len(l) > 0 {
		v := l[len(l)-1]
		l[len(l)-1] = nil
		p.free[n] = l[:len(l)-1]
		p.cached--
		p.reused++
		return v
	}
	p.fresh++
	return make([]T, n)
}

// Free zeroes v and caches it for reuse.
func (p *Pool[T]) Free(v []T) {
	n := len(v)
	if n == 0 {
		return
	}
	if p.free == nil {
		p.free = make(map[int][][]T)
	}
	if p.limit > 0 && len(p.free[n]) >= p.limit {
		return
	}
	clear(v)
	p.free[n] = append(p.free[n], v[:n:n])
	p.cached++
}

// Cached returns the number of blocks waiting for reuse.
func (p *Pool[T]) Cached() int {
	return p.cached
}

// Fresh returns the number of allocations that were served by make.
func (p *Pool[T]) Fresh() int {
	return p.fresh
}

// Reused returns the number of allocations that were served from the cache.
func (p *Pool[T]) Reused() int {
	return p.reused
}
