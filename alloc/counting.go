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

// Counting wraps another allocator and records the calls made through it.
type Counting[T any] struct {
	a interface {
		Alloc(n int) []T
		Free(v []T)
	}
	allocs int
	frees  int
	live   int
}

// NewCounting returns a Counting wrapping a. A nil a wraps Go[T].
func NewCounting[T any](a interface {
	Alloc(n int) []T
	Free(v []T)
}) *Counting[T] {
	c := &Counting[T]{a: a}
	if a == nil {
		c.a = Go[T]{}
	}
	return c
}

// Alloc forwards to the wrapped allocator.
func (c *Counting[T]) Alloc(n int) []T {
	c.allocs++
	c.live += n
	return c.a.Alloc(n)
}

// Free forwards to the wrapped allocator.
func (c *Counting[T]) Free(v []T) {
	c.frees++
	c.live -= len(v)
	c.a.Free(v)
}

// Allocs returns the number of Alloc calls.
func (c *Counting[T]) Allocs() int { return c.allocs }

// Frees returns the number of Free calls.
func (c *Counting[T]) Frees() int { return c.frees }

// Live returns the number of elements allocated and not yet freed.
func (c *Counting[T]) Live() int { return c.live }
