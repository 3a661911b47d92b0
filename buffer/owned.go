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

package buffer

// Owned is a View together with the exclusive responsibility for destroying
// its elements and releasing its backing memory.
//
// An Owned is either live or the sentinel. The sentinel owns nothing: its
// Release is a no-op. The zero value is the sentinel, and Move leaves the
// source as the sentinel. Liveness is tracked explicitly rather than inferred
// from the view, so a live zero-length buffer still has its memory released.
//
// An Owned must not be copied; use Move to transfer ownership.
type Owned[T any] struct {
	_       noCopy
	view    View[T]
	free    func(View[T])
	destroy func(*T)
	live    bool
}

// NewOwned returns a live Owned for v. free is invoked exactly once with the
// full view when the buffer is released. destroy, if non-nil, is invoked on
// each element before it is zeroed.
func NewOwned[T any](v View[T], free func(View[T]), destroy func(*T)) Owned[T] {
	return Owned[T]{
		view:    v,
		free:    free,
		destroy: destroy,
		live:    true,
	}
}

// Move transfers ownership out of o. The returned buffer holds o's view and
// callbacks and o becomes the sentinel.
func (o *Owned[T]) Move() Owned[T] {
	view, free, destroy, live := o.view, o.free, o.destroy, o.live
	o.reset()
	return Owned[T]{
		view:    view,
		free:    free,
		destroy: destroy,
		live:    live,
	}
}

// Release destroys every element in iteration order and then frees the
// backing memory. The buffer becomes the sentinel, so calling Release again
// is a no-op.
func (o *Owned[T]) Release() {
	if !o.live {
		return
	}
	view, free, destroy := o.view, o.free, o.destroy
	// Reset before running callbacks so that a destroy callback which reaches
	// back into o observes the sentinel.
	o.reset()

	var zero T
	for i := 0; i < view.Len(); i++ {
		p := view.Index(i)
		if destroy != nil {
			destroy(p)
		}
		*p = zero
	}
	if free != nil {
		free(view)
	}
}

func (o *Owned[T]) reset() {
	o.view = View[T]{}
	o.free = nil
	o.destroy = nil
	o.live = false
}

// Live reports whether o owns memory, i.e. it is not the sentinel.
func (o *Owned[T]) Live() bool {
	return o.live
}

// View returns the non-owning view of o's elements. The view must not be
// used after o is released.
func (o *Owned[T]) View() View[T] {
	return o.view
}

// Len returns the number of elements.
func (o *Owned[T]) Len() int {
	return o.view.Len()
}

// Begin returns the position of the first element.
func (o *Owned[T]) Begin() Pos[T] {
	return o.view.Begin()
}

// End returns the position one past the last element.
func (o *Owned[T]) End() Pos[T] {
	return o.view.End()
}

// Index returns a pointer to the element at offset i without bounds checks.
func (o *Owned[T]) Index(i int) *T {
	return o.view.Index(i)
}

// At returns the position at offset i, or ok=false if out of range.
func (o *Owned[T]) At(i int) (Pos[T], bool) {
	return o.view.At(i)
}

// Contains reports whether p lies within the buffer.
func (o *Owned[T]) Contains(p Pos[T]) bool {
	return o.view.Contains(p)
}

// All calls yield for each element in order.
func (o *Owned[T]) All(yield func(i int, p *T) bool) {
	o.view.All(yield)
}

// Backward calls yield for each element in reverse order.
func (o *Owned[T]) Backward(yield func(i int, p *T) bool) {
	o.view.Backward(yield)
}

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
