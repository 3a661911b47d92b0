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
	"fmt"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func TestIntegerHash(t *testing.T) {
	require.EqualValues(t, 0, IntegerHash(0))
	require.EqualValues(t, 42, IntegerHash(42))
	require.EqualValues(t, 255, IntegerHash(uint8(255)))
	require.Equal(t, ^uint64(0), IntegerHash(-1))
	require.Equal(t, ^uint64(0), IntegerHash(int8(-1)))
}

func TestFloatHash(t *testing.T) {
	testCases := []struct {
		v        float64
		expected uint64
	}{
		// (2 + 0.5) * 32771 = 81927.5
		{2, 81927},
		{0.5, 81927},
		// (1 + 1) * 32771
		{1, 65542},
		// (-2 - 0.5) * 32771 = -81927.5, truncated toward zero.
		{-2, ^uint64(81927 - 1)},
	}
	for _, c := range testCases {
		t.Run(fmt.Sprint(c.v), func(t *testing.T) {
			require.Equal(t, c.expected, FloatHash(c.v))
		})
	}

	require.EqualValues(t, 65542, FloatHash(float32(1)))
}

func TestStringHash(t *testing.T) {
	require.EqualValues(t, 0, StringHash(""))
	require.EqualValues(t, 97, StringHash("a"))
	require.EqualValues(t, 195, StringHash("ab"))
	require.Equal(t, StringHash("ab"), StringHash("ba"))
	// Bytes are summed unsigned.
	require.EqualValues(t, 0xc3+0xa9, StringHash("é"))

	type name string
	require.EqualValues(t, 195, StringHash(name("ab")))
}

type intList []int

func (l intList) All(yield func(int) bool) {
	for _, v := range l {
		if !yield(v) {
			return
		}
	}
}

func TestSliceHash(t *testing.T) {
	h := SliceHash(IntegerHash[int])
	require.EqualValues(t, 0, h(nil))
	require.EqualValues(t, 6, h([]int{1, 2, 3}))
	require.Equal(t, h([]int{1, 2, 3}), h([]int{3, 2, 1}))

	s := SliceHash(StringHash[string])
	require.EqualValues(t, 97+98, s([]string{"a", "b"}))
}

func TestSequenceHash(t *testing.T) {
	h := SequenceHash[intList](IntegerHash[int])
	require.EqualValues(t, 0, h(intList{}))
	require.EqualValues(t, 10, h(intList{1, 2, 3, 4}))

	// Sequence keys work in a Map once the hash is supplied.
	type key struct{ a, b int }
	m := New[key, string](0, WithHash[key, string](func(k key) uint64 {
		return h(intList{k.a, k.b})
	}))
	m.Put(key{1, 2}, "x")
	m.Put(key{2, 1}, "y")
	require.EqualValues(t, 2, m.Len())
	require.Equal(t, "x", *m.MustGet(key{1, 2}))
	require.Equal(t, "y", *m.MustGet(key{2, 1}))
}

func TestXXHashString(t *testing.T) {
	for _, s := range []string{"", "a", "ab", "ba", "hello world"} {
		require.Equal(t, xxhash.Sum64String(s), XXHashString(s))
	}
	require.NotEqual(t, XXHashString("ab"), XXHashString("ba"))
}

func TestDefaultHasher(t *testing.T) {
	require.EqualValues(t, 7, defaultHasher[int]()(7))
	require.EqualValues(t, 7, defaultHasher[uint16]()(7))
	require.EqualValues(t, 7, defaultHasher[uintptr]()(7))
	require.EqualValues(t, 81927, defaultHasher[float64]()(2))
	require.EqualValues(t, 81927, defaultHasher[float32]()(0.5))
	require.EqualValues(t, 195, defaultHasher[string]()("ab"))

	require.Nil(t, defaultHasher[bool]())
	require.Nil(t, defaultHasher[[2]int]())
	require.Nil(t, defaultHasher[*int]())
	require.Nil(t, defaultHasher[any]())
}

type (
	userID int64
	label  string
	score  float64
	flags  uint8
)

func TestDefaultHasherDefinedTypes(t *testing.T) {
	require.EqualValues(t, 42, defaultHasher[userID]()(42))
	require.Equal(t, ^uint64(0), defaultHasher[userID]()(-1))
	require.EqualValues(t, 255, defaultHasher[flags]()(255))
	require.EqualValues(t, 195, defaultHasher[label]()("ab"))
	require.EqualValues(t, 81927, defaultHasher[score]()(2))

	ids := New[userID, string](0)
	for i := userID(-5); i < 20; i++ {
		ids.Put(i, fmt.Sprint(i))
	}
	require.EqualValues(t, 25, ids.Len())
	require.Equal(t, "-5", *ids.MustGet(-5))
	require.Equal(t, "19", *ids.MustGet(19))

	labels := New[label, int](0)
	labels.Put("ab", 1)
	labels.Put("ba", 2)
	require.EqualValues(t, 1, *labels.MustGet("ab"))
	require.EqualValues(t, 2, *labels.MustGet("ba"))
}
