/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hashmap

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/memkit/malloc"
)

// collide sends every key to the same probe chain.
func collide([]byte) uint64 { return 3 }

func TestInsertGet(t *testing.T) {
	m, err := New[int](16, nil)
	require.NoError(t, err)

	require.NoError(t, m.InsertString("one", 1))
	require.NoError(t, m.InsertString("two", 2))
	require.NoError(t, m.Insert([]byte{}, 0))
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 16, m.Cap())

	v, ok := m.GetString("two")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	v, ok = m.Get([]byte{})
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	_, ok = m.GetString("three")
	assert.False(t, ok)

	assert.ErrorIs(t, m.InsertString("one", 10), ErrExists)
	v, _ = m.GetString("one")
	assert.Equal(t, 1, v)
}

func TestTombstones(t *testing.T) {
	m, err := NewWithFuncs[string](4, nil, collide, bytes.Equal)
	require.NoError(t, err)

	require.NoError(t, m.InsertString("a", "A"))
	require.NoError(t, m.InsertString("b", "B"))
	require.NoError(t, m.InsertString("c", "C"))

	v, ok := m.DeleteString("a")
	assert.True(t, ok)
	assert.Equal(t, "A", v)
	assert.Equal(t, 2, m.Len())
	_, ok = m.DeleteString("a")
	assert.False(t, ok)

	// probing continues past the tombstone
	v, ok = m.GetString("c")
	assert.True(t, ok)
	assert.Equal(t, "C", v)

	// a key behind the tombstone is still a duplicate
	assert.ErrorIs(t, m.InsertString("c", "again"), ErrExists)

	// a new key reuses the tombstone
	require.NoError(t, m.InsertString("d", "D"))
	assert.Equal(t, 3, m.Len())
	require.NoError(t, m.InsertString("e", "E"))
	assert.ErrorIs(t, m.InsertString("f", "F"), ErrFull)
	assert.ErrorIs(t, m.InsertString("d", "F"), ErrExists)

	for _, k := range []string{"b", "c", "d", "e"} {
		_, ok := m.GetString(k)
		assert.True(t, ok, k)
	}
}

func TestFull(t *testing.T) {
	m, err := New[int](8, nil)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		require.NoError(t, m.InsertString(fmt.Sprint("key", i), i))
	}
	assert.ErrorIs(t, m.InsertString("overflow", 8), ErrFull)
	_, ok := m.GetString("overflow")
	assert.False(t, ok)

	m.DeleteString("key3")
	require.NoError(t, m.InsertString("overflow", 8))
	v, ok := m.GetString("overflow")
	assert.True(t, ok)
	assert.Equal(t, 8, v)
}

func TestKeyStoreRelocation(t *testing.T) {
	buddy := malloc.NewHeapBuddy(1<<16, 16)
	defer buddy.Release()
	m, err := New[int](64, buddy)
	require.NoError(t, err)

	long := func(i int) string { return fmt.Sprintf("%064d", i) }
	for i := 0; i < 64; i++ {
		require.NoError(t, m.InsertString(long(i), i))
	}
	for i := 0; i < 64; i++ {
		v, ok := m.GetString(long(i))
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	m.Release()
}

func TestClearRange(t *testing.T) {
	m, err := New[int](32, malloc.NewHeapArena(1<<12))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, m.InsertString(fmt.Sprint(i), i))
	}

	seen := map[string]int{}
	m.Range(func(k []byte, v int) bool {
		seen[string(k)] = v
		return true
	})
	assert.Len(t, seen, 10)
	assert.Equal(t, 7, seen["7"])

	calls := 0
	m.Range(func([]byte, int) bool { calls++; return false })
	assert.Equal(t, 1, calls)

	m.Clear()
	assert.Equal(t, 0, m.Len())
	_, ok := m.GetString("7")
	assert.False(t, ok)
	require.NoError(t, m.InsertString("7", 70))
}

func TestFNV1a(t *testing.T) {
	assert.Equal(t, uint64(0xcbf29ce484222325), FNV1a(nil))
	assert.Equal(t, uint64(0xaf63dc4c8601ec8c), FNV1a([]byte("a")))
	assert.Equal(t, uint64(0x85944171f73967e8), FNV1a([]byte("foobar")))

	m, err := NewWithFuncs[int](16, nil, FNV1a, bytes.Equal)
	require.NoError(t, err)
	require.NoError(t, m.InsertString("fnv", 1))
	v, ok := m.GetString("fnv")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestInvalid(t *testing.T) {
	assert.Panics(t, func() { New[int](0, nil) })
	_, err := New[int](8, malloc.NewArena(make([]byte, 32)))
	assert.ErrorIs(t, err, malloc.ErrOutOfMemory)
}
