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

// package linprobe is a Go implementation of an open-addressing hash table
// using linear probing, with allocation policy supplied by the caller.
//
// # Layout
//
// A Map stores its entries out of line. The table itself is a contiguous
// array of slots (the "band"). Each slot is either empty or holds a pointer
// to a heap entry (key and value) together with a tag: the full 64-bit hash
// of the entry's key, cached at insertion time. A slot is empty iff its entry
// pointer is nil; the tag of an empty slot is meaningless.
//
// Memory comes from two caller-supplied allocators: one for the band and one
// for entries. The Map never allocates on its own. With the default
// allocators this is just make() and the GC, but an arena for the band and a
// pool for entries work just as well (see the alloc package). If an allocator
// manages memory manually, Close must be called to return everything.
//
// # Probing
//
// To find a key we compute h = hash(key) and start at slot h%capacity,
// scanning forward and wrapping at capacity until we reach either an empty
// slot or a slot whose tag equals h and whose key equals the query key. The
// tag comparison is a cheap pre-filter: a slot with a different tag cannot
// hold the key, so the (potentially expensive) key comparison only runs on
// tag matches. See https://en.wikipedia.org/wiki/Linear_probing.
//
// A probe visits at most capacity slots. A band with no empty slot (which
// only happens at capacities 1 and 2, see below) therefore reports a miss
// rather than spinning.
//
// # Growth
//
// Before every Put the map checks whether used*3 >= capacity*2 and, if so,
// doubles the capacity. The check uses the size before the insertion, so the
// load factor stays under ~2/3 and growth happens one insertion later than a
// post-insertion check would. For example, a map with capacity 12 holds 8
// entries and grows to 24 on the 9th Put.
//
// Resizing moves entry pointers into a freshly allocated band; entries are
// never copied, so pointers returned by Get remain valid across growth.
//
// # Deletion
//
// Delete uses backward-shift deletion rather than tombstones: after emptying
// a slot, later members of the same cluster whose home slot does not lie
// between the hole and their current position are shifted back into the
// hole. This preserves the invariant that every entry is reachable from its
// home slot without crossing an empty slot.
package linprobe

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/cockroachdb/linprobe/alloc"
	"github.com/cockroachdb/linprobe/buffer"
	"go.uber.org/zap"
)

const (
	debug = false

	// defaultCapacity is the capacity used when New is passed a
	// non-positive initial capacity.
	defaultCapacity = 12
)

// Entry holds a key and value. Entries are allocated one at a time from the
// entry allocator and are owned by exactly one slot.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Slot is one cell of the band. It is exported only so that band
// allocators can be written for it.
type Slot[K comparable, V any] struct {
	tag   uint64
	entry *Entry[K, V]
}

// Map is an unordered map from keys to values with Put, Get, Delete, and All
// operations, implemented as an open-addressing table with linear probing.
//
// A Map is NOT goroutine-safe. The zero value for a Map is not usable; use
// New or Init.
type Map[K comparable, V any] struct {
	// The hash function for keys of type K.
	hash func(key K) uint64
	// The allocators for the band and for entries.
	bandAlloc  Allocator[Slot[K, V]]
	entryAlloc Allocator[Entry[K, V]]
	logger     *zap.Logger
	// band owns the slot array. Releasing it destroys (and frees) every
	// entry still referenced by a slot and then frees the array.
	band buffer.Owned[Slot[K, V]]
	// The total number of slots. Zero only after Close.
	capacity int
	// The number of occupied slots (i.e. the number of elements in the map).
	used int
}

// New constructs a new Map with the specified initial capacity. If
// initialCapacity is <= 0 the default capacity of 12 is used; capacity is
// never zero.
//
// Key types whose underlying type is an integer, float, or string have a
// default hash function; defined types such as `type userID int64` included.
// Any other key type must be given one with WithHash, otherwise New panics.
// Float keys must be non-zero (see FloatHash).
func New[K comparable, V any](initialCapacity int, options ...Option[K, V]) *Map[K, V] {
	m := &Map[K, V]{}
	m.Init(initialCapacity, options...)
	return m
}

// Init initializes a Map with the specified initial capacity and options,
// closing any previous contents first. It is equivalent to New but allows
// reusing a Map value.
func (m *Map[K, V]) Init(initialCapacity int, options ...Option[K, V]) {
	m.Close()

	*m = Map[K, V]{
		bandAlloc:  alloc.Go[Slot[K, V]]{},
		entryAlloc: alloc.Go[Entry[K, V]]{},
		logger:     zap.NewNop(),
	}

	for _, op := range options {
		op.apply(m)
	}

	if m.hash == nil {
		m.hash = defaultHasher[K]()
		if m.hash == nil {
			var k K
			panic(fmt.Sprintf("linprobe: no default hash function for key type %T; use WithHash", k))
		}
	}

	if initialCapacity <= 0 {
		initialCapacity = defaultCapacity
	}
	m.band = m.makeBand(initialCapacity)
	m.capacity = initialCapacity

	m.checkInvariants()
}

// Close closes the map, destroying every entry and releasing all memory back
// to the configured allocators: entries to the entry allocator, then the
// band to the band allocator. It is unnecessary to close a map using the
// default allocators. It is invalid to use a Map after it has been closed,
// though Close itself is idempotent.
func (m *Map[K, V]) Close() {
	if !m.band.Live() {
		return
	}
	used, capacity := m.used, m.capacity
	m.band.Release()
	m.capacity = 0
	m.used = 0
	m.logger.Debug("close", zap.Int("capacity", capacity), zap.Int("used", used))
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists.
//
// The new entry is always allocated first. When the key is already present
// the old entry is destroyed and freed only after the new one exists, and it
// is replaced in place; the size is unchanged.
func (m *Map[K, V]) Put(key K, value V) {
	m.checkLive()

	e := m.newEntry(key, value)
	h := m.hash(e.Key)

	// Before locating a slot we may decide the table is getting overcrowded
	// (i.e. the load factor would reach 2/3).
	if m.used*3 >= m.capacity*2 {
		m.grow(e)
	}

	i, ok := m.find(e.Key, h)
	if !ok {
		// Unreachable: the growth check above guarantees an empty slot.
		panic(fmt.Sprintf("linprobe: no free slot for %v\n%s", key, m.debugString()))
	}

	s := m.slot(i)
	if s.entry == nil {
		if debug {
			fmt.Printf("put(inserting): index=%d used=%d\n", i, m.used+1)
		}
		s.tag = h
		s.entry = e
		m.used++
	} else {
		if debug {
			fmt.Printf("put(updating): index=%d key=%v\n", i, key)
		}
		m.freeEntry(s.entry)
		s.entry = e
	}
	m.checkInvariants()
}

// Get returns a pointer to the value for the specified key, or ok=false if
// the key is not present. The pointer remains valid, and can be written
// through, until the entry is overwritten or deleted or the map is closed;
// growth does not move entries.
func (m *Map[K, V]) Get(key K) (value *V, ok bool) {
	i, ok := m.find(key, m.hash(key))
	if !ok {
		return nil, false
	}
	s := m.slot(i)
	if s.entry == nil {
		return nil, false
	}
	return &s.entry.Value, true
}

// Lookup is like Get but reports a missing key as a *MissingKeyError.
func (m *Map[K, V]) Lookup(key K) (*V, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}
	return nil, &MissingKeyError{Key: key}
}

// MustGet is like Get but panics with a *MissingKeyError if the key is not
// present.
func (m *Map[K, V]) MustGet(key K) *V {
	v, err := m.Lookup(key)
	if err != nil {
		panic(err)
	}
	return v
}

// GetOrDefault returns the value for the specified key, or def if the key is
// not present. The map is not modified.
func (m *Map[K, V]) GetOrDefault(key K, def V) V {
	if v, ok := m.Get(key); ok {
		return *v
	}
	return def
}

// Upsert sets the value for key to fn(old, true) if key is present, and
// inserts fn(zero, false) otherwise. Updating a present key modifies the
// existing entry in place and never grows the map.
func (m *Map[K, V]) Upsert(key K, fn func(value V, ok bool) V) {
	if v, ok := m.Get(key); ok {
		*v = fn(*v, true)
		return
	}
	var zero V
	m.Put(key, fn(zero, false))
}

// Delete deletes the entry corresponding to the specified key from the map,
// reporting whether it was present. The entry is destroyed and returned to
// the entry allocator.
func (m *Map[K, V]) Delete(key K) bool {
	m.checkLive()

	i, ok := m.find(key, m.hash(key))
	if !ok || m.slot(i).entry == nil {
		return false
	}
	m.freeEntry(m.slot(i).entry)
	*m.slot(i) = Slot[K, V]{}
	m.used--

	// Walk the rest of the cluster. An entry at j may fill the hole at i
	// unless its home slot lies cyclically in (i, j], in which case moving it
	// to i would put it before its home.
	seq := makeProbeSeq(uint64(i), m.capacity).next()
	for ; !seq.done(); seq = seq.next() {
		j := seq.offset
		s := m.slot(j)
		if s.entry == nil {
			break
		}
		home := int(s.tag % uint64(m.capacity))
		if cyclicBetween(i, home, j) {
			continue
		}
		if debug {
			fmt.Printf("delete(shifting): %d -> %d\n", j, i)
		}
		*m.slot(i) = *s
		*s = Slot[K, V]{}
		i = j
	}

	m.checkInvariants()
	return true
}

// Clear deletes all entries from the map, returning each to the entry
// allocator. The capacity is unchanged.
func (m *Map[K, V]) Clear() {
	m.checkLive()
	for i := 0; i < m.capacity; i++ {
		s := m.slot(i)
		m.destroySlot(s)
		*s = Slot[K, V]{}
	}
	m.used = 0
	m.checkInvariants()
}

// All calls yield sequentially for each key and value present in the map, in
// slot order. If yield returns false, iteration stops. Mutating the map
// during iteration may cause entries to be skipped or visited twice.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	for i := 0; i < m.capacity; i++ {
		s := m.slot(i)
		if s.entry == nil {
			continue
		}
		if !yield(s.entry.Key, s.entry.Value) {
			return
		}
	}
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// BucketCount returns the number of slots in the band.
func (m *Map[K, V]) BucketCount() int {
	return m.capacity
}

// Resize changes the capacity of the table by allocating a new band and
// moving each entry into it (we know that no two entries share a key, so no
// key comparisons are needed), and then releasing the old band. The new band
// is allocated before anything is moved, so if the band allocator panics the
// map is unchanged.
//
// Resize is called automatically by Put. It may also be called directly to
// pre-size or shrink a map; newCapacity must exceed Len.
func (m *Map[K, V]) Resize(newCapacity int) {
	m.checkLive()
	if newCapacity <= m.used || newCapacity <= 0 {
		panic(fmt.Sprintf("linprobe: cannot resize to %d slots with %d entries", newCapacity, m.used))
	}

	band := m.makeBand(newCapacity)
	oldCapacity := m.capacity

	for i := 0; i < oldCapacity; i++ {
		s := m.slot(i)
		if s.entry == nil {
			continue
		}
		// The tag is hash(key), so it yields the same probe sequence a
		// fresh hash would.
		seq := makeProbeSeq(s.tag, newCapacity)
		for band.Index(seq.offset).entry != nil {
			seq = seq.next()
		}
		*band.Index(seq.offset) = *s
		// Ownership of the entry has moved to the new band.
		s.entry = nil
	}

	old := m.band.Move()
	m.band = band.Move()
	m.capacity = newCapacity
	old.Release()

	if debug {
		fmt.Printf("resize: capacity=%d->%d used=%d\n", oldCapacity, newCapacity, m.used)
	}
	m.logger.Debug("resize",
		zap.Int("from", oldCapacity),
		zap.Int("to", newCapacity),
		zap.Int("used", m.used))

	m.checkInvariants()
}

// Stats describes the occupancy of a Map.
type Stats struct {
	Len         int
	BucketCount int
	// MaxProbe is the largest distance of an entry from its home slot.
	MaxProbe int
	// TotalProbe is the sum of the distances of all entries from their home
	// slots, i.e. the number of extra slots examined when looking up every
	// key once.
	TotalProbe int
}

// Stats returns the occupancy statistics of the map.
func (m *Map[K, V]) Stats() Stats {
	st := Stats{Len: m.used, BucketCount: m.capacity}
	for i := 0; i < m.capacity; i++ {
		s := m.slot(i)
		if s.entry == nil {
			continue
		}
		d := m.distance(s.tag, i)
		st.TotalProbe += d
		st.MaxProbe = max(st.MaxProbe, d)
	}
	return st
}

// find returns the index of the slot holding key, or of the empty slot that
// ends key's probe sequence. ok is false if the probe visited every slot
// without finding either.
func (m *Map[K, V]) find(key K, h uint64) (int, bool) {
	m.checkLive()

	seq := makeProbeSeq(h, m.capacity)
	if debug {
		fmt.Printf("find(%v): %s\n", key, seq)
	}
	for ; !seq.done(); seq = seq.next() {
		s := m.slot(seq.offset)
		if s.entry == nil {
			return seq.offset, true
		}
		if s.tag == h && s.entry.Key == key {
			return seq.offset, true
		}
		if debug {
			fmt.Printf("find(skipping): index=%d tag=%016x\n", seq.offset, s.tag)
		}
	}
	return -1, false
}

func (m *Map[K, V]) slot(i int) *Slot[K, V] {
	return m.band.Index(i)
}

// distance returns how far slot i is from the home slot of hash h.
func (m *Map[K, V]) distance(h uint64, i int) int {
	d := i - int(h%uint64(m.capacity))
	if d < 0 {
		d += m.capacity
	}
	return d
}

func (m *Map[K, V]) checkLive() {
	if m.capacity == 0 {
		panic("linprobe: use of closed or uninitialized Map")
	}
}

// makeBand allocates a band of n empty slots. Releasing the band destroys
// any entries its slots still own.
func (m *Map[K, V]) makeBand(n int) buffer.Owned[Slot[K, V]] {
	slots := m.bandAlloc.Alloc(n)
	if len(slots) != n {
		panic(fmt.Sprintf("linprobe: band allocator returned %d slots, expected %d", len(slots), n))
	}
	clear(slots)

	bandAlloc := m.bandAlloc
	return buffer.NewOwned(buffer.MakeView(slots),
		func(v buffer.View[Slot[K, V]]) {
			bandAlloc.Free(v.Slice())
		},
		m.destroySlot)
}

// grow doubles the band ahead of inserting pending. If growth panics the
// pending entry is returned to the entry allocator first.
func (m *Map[K, V]) grow(pending *Entry[K, V]) {
	grown := false
	defer func() {
		if !grown {
			m.freeEntry(pending)
		}
	}()
	m.Resize(m.capacity * 2)
	grown = true
}

func (m *Map[K, V]) newEntry(key K, value V) *Entry[K, V] {
	v := m.entryAlloc.Alloc(1)
	if len(v) != 1 {
		panic(fmt.Sprintf("linprobe: entry allocator returned %d entries, expected 1", len(v)))
	}
	e := &v[0]
	*e = Entry[K, V]{Key: key, Value: value}
	return e
}

// freeEntry destroys e and returns its memory to the entry allocator.
func (m *Map[K, V]) freeEntry(e *Entry[K, V]) {
	*e = Entry[K, V]{}
	m.entryAlloc.Free(unsafe.Slice(e, 1))
}

func (m *Map[K, V]) destroySlot(s *Slot[K, V]) {
	if s.entry != nil {
		m.freeEntry(s.entry)
		s.entry = nil
	}
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if m.capacity <= 0 {
			panic(fmt.Sprintf("invariant failed: capacity is %d", m.capacity))
		}
		if m.band.Len() != m.capacity {
			panic(fmt.Sprintf("invariant failed: band has %d slots, but capacity is %d", m.band.Len(), m.capacity))
		}

		// For every occupied slot, verify the tag is the hash of the key and
		// that the key's probe ends at this slot.
		var used int
		for i := 0; i < m.capacity; i++ {
			s := m.slot(i)
			if s.entry == nil {
				continue
			}
			used++
			if h := m.hash(s.entry.Key); h != s.tag {
				panic(fmt.Sprintf("invariant failed: slot(%d): tag %016x != hash %016x\n%s",
					i, s.tag, h, m.debugString()))
			}
			if j, ok := m.find(s.entry.Key, s.tag); !ok || j != i {
				panic(fmt.Sprintf("invariant failed: slot(%d): %v found at %d\n%s",
					i, s.entry.Key, j, m.debugString()))
			}
		}

		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
	}
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d\n", m.capacity, m.used)
	for i := 0; i < m.capacity; i++ {
		s := m.slot(i)
		if s.entry == nil {
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
			continue
		}
		fmt.Fprintf(&buf, "  %4d: %v [tag=%016x home=%d]\n",
			i, s.entry.Key, s.tag, s.tag%uint64(m.capacity))
	}
	return buf.String()
}

// cyclicBetween reports whether x lies in the cyclic range (lo, hi].
func cyclicBetween(lo, x, hi int) bool {
	if lo <= hi {
		return lo < x && x <= hi
	}
	return lo < x || x <= hi
}

// probeSeq maintains the state for a linear probe sequence: the home slot
// hash%capacity followed by each subsequent slot, wrapping at capacity. The
// sequence visits every slot exactly once.
type probeSeq struct {
	capacity int
	offset   int
	index    int
}

func makeProbeSeq(hash uint64, capacity int) probeSeq {
	return probeSeq{
		capacity: capacity,
		offset:   int(hash % uint64(capacity)),
		index:    0,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	s.offset++
	if s.offset == s.capacity {
		s.offset = 0
	}
	return s
}

// done reports whether every slot has been visited.
func (s probeSeq) done() bool {
	return s.index >= s.capacity
}

func (s probeSeq) String() string {
	return fmt.Sprintf("capacity=%d offset=%d index=%d", s.capacity, s.offset, s.index)
}
