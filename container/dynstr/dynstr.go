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

// Package dynstr implements a growable, zero terminated byte string on top of
// container/array.
//
// The backing array always ends with a single 0 byte, so Raw can be handed to
// code expecting a C style string and Len is the backing length minus one.
package dynstr

import (
	"unsafe"

	"github.com/cloudwego/memkit/container/array"
	"github.com/cloudwego/memkit/malloc"
)

// String is a growable byte string.
type String struct {
	arr *array.Array
}

// New allocates an empty string with room for capacity bytes plus the terminator.
func New(capacity int, alloc malloc.Allocator) (*String, error) {
	arr, err := array.New(1, capacity+1, alloc)
	if err != nil {
		return nil, err
	}
	t, _ := arr.Extend(1)
	t[0] = 0
	return &String{arr: arr}, nil
}

// FromString allocates a string holding s with room for at least capacity bytes.
func FromString(s string, capacity int, alloc malloc.Allocator) (*String, error) {
	str, err := New(max(capacity, len(s)), alloc)
	if err != nil {
		return nil, err
	}
	if err := str.Append(s); err != nil {
		str.Release()
		return nil, err
	}
	return str, nil
}

// Len returns the length without the terminator.
func (s *String) Len() int { return s.arr.Len() - 1 }

// Cap returns the number of bytes the string can hold without growing.
func (s *String) Cap() int { return s.arr.Cap() - 1 }

// Append appends src. On error s is unchanged.
func (s *String) Append(src string) error {
	if err := s.arr.EnsureCapacity(len(src)); err != nil {
		return err
	}
	n := s.Len()
	s.arr.Truncate(n)
	b, _ := s.arr.Extend(len(src) + 1)
	copy(b, src)
	b[len(src)] = 0
	return nil
}

// AppendByte appends c.
func (s *String) AppendByte(c byte) error {
	if err := s.arr.EnsureCapacity(1); err != nil {
		return err
	}
	last := s.arr.Len() - 1
	s.arr.At(last)[0] = c
	t, _ := s.arr.Extend(1)
	t[0] = 0
	return nil
}

// Set replaces the contents with src. On error s is unchanged.
func (s *String) Set(src string) error {
	if need := len(src) + 1 - s.arr.Len(); need > 0 {
		if err := s.arr.EnsureCapacity(need); err != nil {
			return err
		}
	}
	s.arr.Truncate(0)
	b, _ := s.arr.Extend(len(src) + 1)
	copy(b, src)
	b[len(src)] = 0
	return nil
}

// Assign replaces the contents with a copy of src.
func (s *String) Assign(src *String) error {
	return s.arr.Assign(src.arr)
}

// Shrink drops the last n bytes, or all of them if n exceeds Len.
func (s *String) Shrink(n int) {
	n = min(max(n, 0), s.Len())
	l := s.Len() - n
	s.arr.Truncate(l + 1)
	s.arr.At(l)[0] = 0
}

// Clear empties the string.
func (s *String) Clear() {
	s.arr.Truncate(1)
	s.arr.At(0)[0] = 0
}

// Bytes returns the contents without the terminator, aliasing s until it grows.
func (s *String) Bytes() []byte {
	b := s.arr.Bytes()
	return b[: len(b)-1 : len(b)-1]
}

// Raw returns the contents followed by the terminator, aliasing s until it grows.
func (s *String) Raw() []byte {
	return s.arr.Bytes()
}

// String returns a copy of the contents.
func (s *String) String() string {
	return string(s.Bytes())
}

// UnsafeString returns the contents without copying. The result must not be
// used after s is modified or released.
func (s *String) UnsafeString() string {
	b := s.Bytes()
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// CString copies the contents and terminator into a plain block from alloc.
func (s *String) CString(alloc malloc.Allocator) ([]byte, error) {
	if alloc == nil {
		alloc = malloc.Default
	}
	raw := s.Raw()
	b, err := alloc.Alloc(len(raw))
	if err != nil {
		return nil, err
	}
	copy(b, raw)
	return b, nil
}

// Copy returns an independent string allocated from alloc. A nil alloc uses
// s's allocator.
func (s *String) Copy(alloc malloc.Allocator) (*String, error) {
	arr, err := s.arr.Copy(alloc)
	if err != nil {
		return nil, err
	}
	return &String{arr: arr}, nil
}

// Allocator returns the allocator owning the string.
func (s *String) Allocator() malloc.Allocator { return s.arr.Allocator() }

// Release returns the memory to the allocator.
func (s *String) Release() {
	s.arr.Release()
}
