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

import (
	"reflect"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// floatHashPrime is the prime closest to 32768.
const floatHashPrime = 32771

// Integer is the set of key types hashed by IntegerHash.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Float is the set of key types hashed by FloatHash.
type Float interface {
	~float32 | ~float64
}

// Sequence is implemented by key types whose hash is the sum of the hashes
// of their elements. All has the range-over-func shape.
type Sequence[E any] interface {
	All(yield func(E) bool)
}

// IntegerHash is the identity: the hash of v is v itself, sign-extended for
// negative values.
func IntegerHash[K Integer](v K) uint64 {
	return uint64(v)
}

// FloatHash returns (v + 1/v) * 32771 truncated to an integer. v must be
// non-zero: 1/v is not guarded, so a zero key (or NaN) hashes to whatever the
// float-to-integer conversion of an infinity or NaN yields on the platform.
// Negative results wrap around as two's complement.
func FloatHash[K Float](v K) uint64 {
	f := float64(v+1/v) * floatHashPrime
	if f < 0 {
		return uint64(int64(f))
	}
	return uint64(f)
}

// StringHash returns the sum of the byte values of s. Bytes are summed as
// unsigned values in [0, 255], so a non-ASCII byte never contributes a
// negative (sign-extended) amount. The sum is independent of byte order, so
// anagrams collide; see XXHashString for a hash that does not.
func StringHash[K ~string](s K) uint64 {
	var h uint64
	for i := 0; i < len(s); i++ {
		h += uint64(s[i])
	}
	return h
}

// SliceHash returns a hash function for slices that sums elem over the
// elements in order.
func SliceHash[E any](elem func(E) uint64) func([]E) uint64 {
	return func(s []E) uint64 {
		var h uint64
		for _, e := range s {
			h += elem(e)
		}
		return h
	}
}

// SequenceHash returns a hash function for Sequence keys that sums elem
// over the elements produced by All.
func SequenceHash[K Sequence[E], E any](elem func(E) uint64) func(K) uint64 {
	return func(k K) uint64 {
		var h uint64
		for e := range k.All {
			h += elem(e)
		}
		return h
	}
}

// XXHashString hashes s with xxhash. It is not used by default; pass it with
// WithHash for string keys that would otherwise collide under StringHash.
func XXHashString[K ~string](s K) uint64 {
	return xxhash.Sum64String(string(s))
}

// defaultHasher returns the hash function used when no WithHash option is
// supplied, or nil if K has none. The choice is made on the underlying kind
// of K, so defined types such as `type userID int64` hash like their
// underlying type: integers by identity, floats by FloatHash and strings by
// the sum of their bytes.
func defaultHasher[K comparable]() func(K) uint64 {
	switch reflect.TypeFor[K]().Kind() {
	case reflect.Int:
		return underlying[K](IntegerHash[int])
	case reflect.Int8:
		return underlying[K](IntegerHash[int8])
	case reflect.Int16:
		return underlying[K](IntegerHash[int16])
	case reflect.Int32:
		return underlying[K](IntegerHash[int32])
	case reflect.Int64:
		return underlying[K](IntegerHash[int64])
	case reflect.Uint:
		return underlying[K](IntegerHash[uint])
	case reflect.Uint8:
		return underlying[K](IntegerHash[uint8])
	case reflect.Uint16:
		return underlying[K](IntegerHash[uint16])
	case reflect.Uint32:
		return underlying[K](IntegerHash[uint32])
	case reflect.Uint64:
		return underlying[K](IntegerHash[uint64])
	case reflect.Uintptr:
		return underlying[K](IntegerHash[uintptr])
	case reflect.Float32:
		return underlying[K](FloatHash[float32])
	case reflect.Float64:
		return underlying[K](FloatHash[float64])
	case reflect.String:
		return underlying[K](StringHash[string])
	default:
		return nil
	}
}

// underlying adapts h, a hash function over the underlying type U of K, to
// K. K and U must have the same memory layout.
func underlying[K, U any](h func(U) uint64) func(K) uint64 {
	if f, ok := any(h).(func(K) uint64); ok {
		return f
	}
	return func(k K) uint64 {
		return h(*(*U)(unsafe.Pointer(&k)))
	}
}
