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

package linprobe

import "go.uber.org/zap"

// Option provides an interface to do work on Map while it is being created.
type Option[K comparable, V any] interface {
	apply(m *Map[K, V])
}

type hashOption[K comparable, V any] struct {
	hash func(key K) uint64
}

func (op hashOption[K, V]) apply(m *Map[K, V]) {
	m.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Map[K,V].
// It is required for key types that have no default hash function (see
// New).
func WithHash[K comparable, V any](hash func(key K) uint64) Option[K, V] {
	return hashOption[K, V]{hash}
}

// Allocator specifies an interface for allocating and releasing memory used
// by a Map. A Map uses two independent allocators: one for the band of slots
// (large, infrequent allocations) and one for individual entries (frequent,
// single-element allocations). This allows, for example, an arena for the
// band and a pool for entries. The allocators in the alloc package satisfy
// this interface, and so does any type with these two methods.
//
// The default allocators utilize Go's builtin make() and allow the GC to
// reclaim memory. If an allocator is manually managing memory then Map.Close
// must be called in order to ensure every allocation is freed.
type Allocator[T any] interface {
	// Alloc should return a slice equivalent to make([]T, n). Allocation
	// failure must be signaled by panicking.
	Alloc(n int) []T

	// Free releases a slice that is guaranteed to have been returned by
	// Alloc on the same allocator and to no longer be referenced by the Map.
	Free(v []T)
}

type bandAllocatorOption[K comparable, V any] struct {
	allocator Allocator[Slot[K, V]]
}

func (op bandAllocatorOption[K, V]) apply(m *Map[K, V]) {
	m.bandAlloc = op.allocator
}

// WithBandAllocator is an option to specify the Allocator used for the slot
// array of a Map[K,V].
func WithBandAllocator[K comparable, V any](allocator Allocator[Slot[K, V]]) Option[K, V] {
	return bandAllocatorOption[K, V]{allocator}
}

type entryAllocatorOption[K comparable, V any] struct {
	allocator Allocator[Entry[K, V]]
}

func (op entryAllocatorOption[K, V]) apply(m *Map[K, V]) {
	m.entryAlloc = op.allocator
}

// WithEntryAllocator is an option to specify the Allocator used for the
// individual entries of a Map[K,V]. Entries are always allocated one at a
// time.
func WithEntryAllocator[K comparable, V any](allocator Allocator[Entry[K, V]]) Option[K, V] {
	return entryAllocatorOption[K, V]{allocator}
}

// WithAllocators is shorthand for WithBandAllocator and WithEntryAllocator.
func WithAllocators[K comparable, V any](
	band Allocator[Slot[K, V]], entries Allocator[Entry[K, V]],
) Option[K, V] {
	return allocatorsOption[K, V]{band: band, entries: entries}
}

type allocatorsOption[K comparable, V any] struct {
	band    Allocator[Slot[K, V]]
	entries Allocator[Entry[K, V]]
}

func (op allocatorsOption[K, V]) apply(m *Map[K, V]) {
	m.bandAlloc = op.band
	m.entryAlloc = op.entries
}

type loggerOption[K comparable, V any] struct {
	logger *zap.Logger
}

func (op loggerOption[K, V]) apply(m *Map[K, V]) {
	if op.logger != nil {
		m.logger = op.logger
	}
}

// WithLogger is an option to specify the logger a Map reports structural
// events (resize, close) to at debug level. The default discards everything.
func WithLogger[K comparable, V any](logger *zap.Logger) Option[K, V] {
	return loggerOption[K, V]{logger}
}
