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

// Package buffer provides views over contiguous runs of elements.
//
// A View is a non-owning half-open range [begin, end) over elements of a
// fixed type. It never allocates and never frees. An Owned wraps a View
// together with the callback that releases its backing memory, and carries
// the exclusive right to destroy the elements and release the memory exactly
// once.
//
// Views are built on raw pointer arithmetic rather than Go slices, so
// indexing does not pay for bounds checks. Index is unchecked; At is the
// checked variant.
package buffer

import (
	"fmt"
	"unsafe"
)

// View is a non-owning, contiguous, half-open range of elements of type T.
// The zero value is an empty view.
type View[T any] struct {
	ptr unsafe.Pointer
	len int
}

// MakeView returns a view over the elements of s. The view aliases s.
func MakeView[T any](s []T) View[T] {
	if len(s) == 0 {
		return View[T]{}
	}
	return View[T]{ptr: unsafe.Pointer(unsafe.SliceData(s)), len: len(s)}
}

// ViewOf returns a view over n elements starting at p.
func ViewOf[T any](p *T, n int) View[T] {
	if n < 0 {
		panic(fmt.Sprintf("buffer: negative length %d", n))
	}
	if p == nil || n == 0 {
		return View[T]{}
	}
	return View[T]{ptr: unsafe.Pointer(p), len: n}
}

// ViewRange returns the view [begin, end). Both positions must come from
// the same view and begin must not be after end.
func ViewRange[T any](begin, end Pos[T]) View[T] {
	if begin.base != end.base {
		panic("buffer: positions belong to different views")
	}
	n := end.i - begin.i
	if n < 0 {
		panic(fmt.Sprintf("buffer: inverted range [%d, %d)", begin.i, end.i))
	}
	if n == 0 {
		return View[T]{}
	}
	return View[T]{ptr: unsafe.Pointer(begin.Value()), len: n}
}

// Len returns the number of elements in the view (end - begin).
func (v View[T]) Len() int {
	return v.len
}

// Begin returns the position of the first element.
func (v View[T]) Begin() Pos[T] {
	return Pos[T]{base: v.ptr}
}

// End returns the position one past the last element.
func (v View[T]) End() Pos[T] {
	return Pos[T]{base: v.ptr, i: v.len}
}

// Index returns a pointer to the element at offset i. No bounds checking is
// performed.
func (v View[T]) Index(i int) *T {
	var t T
	return (*T)(unsafe.Add(v.ptr, unsafe.Sizeof(t)*uintptr(i)))
}

// At returns the position at offset i, or ok=false if i is outside the view.
func (v View[T]) At(i int) (p Pos[T], ok bool) {
	p = v.Begin().Add(i)
	if !v.Contains(p) {
		return Pos[T]{}, false
	}
	return p, true
}

// Contains reports whether p lies within [begin, end). Containment is
// decided by address, so a position obtained from an overlapping view is
// recognized as well.
func (v View[T]) Contains(p Pos[T]) bool {
	if v.len == 0 || p.base == nil {
		return false
	}
	var t T
	if unsafe.Sizeof(t) == 0 {
		return p.base == v.ptr && p.i >= 0 && p.i < v.len
	}
	a := p.addr()
	return a >= uintptr(v.ptr) && a < v.End().addr()
}

// Slice returns a Go slice aliasing the view.
func (v View[T]) Slice() []T {
	if v.len == 0 {
		return nil
	}
	return unsafe.Slice((*T)(v.ptr), v.len)
}

// Sub returns the view [start, end) relative to v.
func (v View[T]) Sub(start, end int) View[T] {
	if start < 0 || end < start || end > v.len {
		panic(fmt.Sprintf("buffer: sub-view [%d, %d) out of range [0, %d)", start, end, v.len))
	}
	return ViewRange(v.Begin().Add(start), v.Begin().Add(end))
}

// All calls yield for each element in order from begin to end. If yield
// returns false, iteration stops.
func (v View[T]) All(yield func(i int, p *T) bool) {
	for i := 0; i < v.len; i++ {
		if !yield(i, v.Index(i)) {
			return
		}
	}
}

// Backward calls yield for each element in order from end to begin.
func (v View[T]) Backward(yield func(i int, p *T) bool) {
	for i := v.len - 1; i >= 0; i-- {
		if !yield(i, v.Index(i)) {
			return
		}
	}
}

func (v View[T]) String() string {
	return fmt.Sprintf("[%p, +%d)", v.ptr, v.len)
}

// Pos is a position within a View. Positions support O(1) offset arithmetic.
// A position is stored as the view's base pointer plus an element index so
// that the one-past-the-end position never materializes a pointer outside
// of the underlying allocation.
type Pos[T any] struct {
	base unsafe.Pointer
	i    int
}

// Value returns a pointer to the element at p. Dereferencing the end
// position is invalid.
func (p Pos[T]) Value() *T {
	var t T
	return (*T)(unsafe.Add(p.base, unsafe.Sizeof(t)*uintptr(p.i)))
}

// Index returns the offset of p from the beginning of its view.
func (p Pos[T]) Index() int {
	return p.i
}

// Next returns the position after p.
func (p Pos[T]) Next() Pos[T] {
	p.i++
	return p
}

// Prev returns the position before p.
func (p Pos[T]) Prev() Pos[T] {
	p.i--
	return p
}

// Add returns the position n elements after p (before p if n is negative).
func (p Pos[T]) Add(n int) Pos[T] {
	p.i += n
	return p
}

// Sub returns the number of elements between o and p (p - o).
func (p Pos[T]) Sub(o Pos[T]) int {
	var t T
	size := unsafe.Sizeof(t)
	if size == 0 {
		return p.i - o.i
	}
	return int((int64(p.addr()) - int64(o.addr())) / int64(size))
}

// Equal reports whether p and o denote the same address.
func (p Pos[T]) Equal(o Pos[T]) bool {
	return p.addr() == o.addr()
}

// Less reports whether p is strictly before o.
func (p Pos[T]) Less(o Pos[T]) bool {
	return p.addr() < o.addr()
}

// LessEq reports whether p is before or equal to o.
func (p Pos[T]) LessEq(o Pos[T]) bool {
	return p.addr() <= o.addr()
}

func (p Pos[T]) addr() uintptr {
	var t T
	return uintptr(p.base) + unsafe.Sizeof(t)*uintptr(p.i)
}
