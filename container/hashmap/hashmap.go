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

// Package hashmap implements a fixed capacity hash table with byte string keys.
//
// Slots are probed linearly. Deleted slots become tombstones so probing
// continues past them. Key bytes are copied into an array backed by the
// table's allocator and referenced by offset, so the key store may move as it
// grows.
package hashmap

import (
	"bytes"
	"errors"
	"unsafe"

	"github.com/bytedance/gopkg/util/xxhash3"

	"github.com/cloudwego/memkit/container/array"
	"github.com/cloudwego/memkit/malloc"
)

var (
	// ErrExists is returned by Insert when the key is already present.
	ErrExists = errors.New("hashmap: key exists")

	// ErrFull is returned by Insert when every slot is occupied.
	ErrFull = errors.New("hashmap: table full")
)

// HashFunc hashes a key.
type HashFunc func(key []byte) uint64

// EqualFunc reports whether two keys are equal.
type EqualFunc func(a, b []byte) bool

const (
	slotEmpty uint8 = iota
	slotUsed
	slotDeleted
)

type record[V any] struct {
	state uint8
	sz    uint32
	off   int
	hash  uint64
	v     V
}

// Map maps byte string keys to values of type V.
type Map[V any] struct {
	records []record[V]
	keys    *array.Array
	hash    HashFunc
	equal   EqualFunc
	n       int
}

// New creates a table with capacity slots hashing keys with xxhash3.
func New[V any](capacity int, alloc malloc.Allocator) (*Map[V], error) {
	return NewWithFuncs[V](capacity, alloc, xxhash3.Hash, bytes.Equal)
}

// NewWithFuncs creates a table with capacity slots using the given hash and
// equality functions. Keys are stored in memory from alloc.
func NewWithFuncs[V any](capacity int, alloc malloc.Allocator, hash HashFunc, equal EqualFunc) (*Map[V], error) {
	if capacity <= 0 {
		panic("hashmap: capacity must be positive")
	}
	keys, err := array.New(1, 16*capacity, alloc)
	if err != nil {
		return nil, err
	}
	return &Map[V]{
		records: make([]record[V], capacity),
		keys:    keys,
		hash:    hash,
		equal:   equal,
	}, nil
}

func (m *Map[V]) key(r *record[V]) []byte {
	b := m.keys.Bytes()
	return b[r.off : r.off+int(r.sz)]
}

// find returns the slot holding key, or -1.
func (m *Map[V]) find(key []byte, h uint64) int {
	c := len(m.records)
	i := int(h % uint64(c))
	for n := 0; n < c; n++ {
		r := &m.records[i]
		switch r.state {
		case slotEmpty:
			return -1
		case slotUsed:
			if r.hash == h && m.equal(m.key(r), key) {
				return i
			}
		}
		if i++; i == c {
			i = 0
		}
	}
	return -1
}

// Insert adds key with value v. It fails with ErrExists if key is present and
// with ErrFull if no slot is left.
func (m *Map[V]) Insert(key []byte, v V) error {
	h := m.hash(key)
	c := len(m.records)
	i := int(h % uint64(c))
	slot := -1
	for n := 0; n < c; n++ {
		r := &m.records[i]
		if r.state == slotEmpty {
			if slot < 0 {
				slot = i
			}
			break
		}
		if r.state == slotDeleted {
			if slot < 0 {
				slot = i
			}
		} else if r.hash == h && m.equal(m.key(r), key) {
			return ErrExists
		}
		if i++; i == c {
			i = 0
		}
	}
	if slot < 0 {
		return ErrFull
	}
	off := m.keys.Len()
	b, err := m.keys.Extend(len(key))
	if err != nil {
		return err
	}
	copy(b, key)
	m.records[slot] = record[V]{state: slotUsed, sz: uint32(len(key)), off: off, hash: h, v: v}
	m.n++
	return nil
}

// Get returns the value stored for key.
func (m *Map[V]) Get(key []byte) (V, bool) {
	if i := m.find(key, m.hash(key)); i >= 0 {
		return m.records[i].v, true
	}
	var zero V
	return zero, false
}

// Delete removes key and returns its value.
func (m *Map[V]) Delete(key []byte) (V, bool) {
	var zero V
	i := m.find(key, m.hash(key))
	if i < 0 {
		return zero, false
	}
	r := &m.records[i]
	v := r.v
	*r = record[V]{state: slotDeleted}
	m.n--
	return v, true
}

// Clear removes every key.
func (m *Map[V]) Clear() {
	clear(m.records)
	m.keys.Truncate(0)
	m.n = 0
}

// Len returns the number of keys.
func (m *Map[V]) Len() int { return m.n }

// Cap returns the number of slots.
func (m *Map[V]) Cap() int { return len(m.records) }

// Range calls f for every key in slot order until f returns false.
// The key slice is only valid during the call.
func (m *Map[V]) Range(f func(key []byte, v V) bool) {
	for i := range m.records {
		r := &m.records[i]
		if r.state == slotUsed && !f(m.key(r), r.v) {
			return
		}
	}
}

func stringBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// InsertString is Insert with a string key.
func (m *Map[V]) InsertString(key string, v V) error {
	return m.Insert(stringBytes(key), v)
}

// GetString is Get with a string key.
func (m *Map[V]) GetString(key string) (V, bool) {
	return m.Get(stringBytes(key))
}

// DeleteString is Delete with a string key.
func (m *Map[V]) DeleteString(key string) (V, bool) {
	return m.Delete(stringBytes(key))
}

// Release returns the key store to the allocator.
func (m *Map[V]) Release() {
	m.keys.Release()
	m.records = nil
	m.n = 0
}
