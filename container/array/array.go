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

// Package array implements a growable array whose header and items live in one
// block obtained from a malloc.Allocator.
//
// The first HeaderSize bytes of the block record the item size, capacity and
// length, little endian. Items follow the header back to back. Growth goes
// through the allocator's Realloc, so over an Arena or VArena an array that is
// the most recent allocation grows without copying.
package array

import (
	"encoding/binary"

	"github.com/cloudwego/memkit/internal/logging"
	"github.com/cloudwego/memkit/malloc"
)

// HeaderSize is the size of the in-block header.
const HeaderSize = 24

const (
	itemSizeOff = 0
	capOff      = 8
	lenOff      = 16
)

// Array is a growable array of fixed size items.
type Array struct {
	block []byte
	alloc malloc.Allocator
}

// New allocates an array for capacity items of itemSize bytes. A nil alloc
// uses malloc.Default.
func New(itemSize, capacity int, alloc malloc.Allocator) (*Array, error) {
	if itemSize <= 0 {
		panic("array: item size must be positive")
	}
	if capacity < 0 {
		panic("array: negative capacity")
	}
	if alloc == nil {
		alloc = malloc.Default
	}
	block, err := alloc.Alloc(HeaderSize + itemSize*capacity)
	if err != nil {
		return nil, err
	}
	a := &Array{block: block, alloc: alloc}
	a.setField(itemSizeOff, itemSize)
	a.setField(capOff, capacity)
	a.setField(lenOff, 0)
	return a, nil
}

func (a *Array) field(off int) int {
	return int(binary.LittleEndian.Uint64(a.block[off:]))
}

func (a *Array) setField(off, v int) {
	binary.LittleEndian.PutUint64(a.block[off:], uint64(v))
}

// Len returns the number of items.
func (a *Array) Len() int { return a.field(lenOff) }

// Cap returns the number of items the block can hold.
func (a *Array) Cap() int { return a.field(capOff) }

// ItemSize returns the size of one item in bytes.
func (a *Array) ItemSize() int { return a.field(itemSizeOff) }

// Allocator returns the allocator owning the block.
func (a *Array) Allocator() malloc.Allocator { return a.alloc }

func (a *Array) slot(i int) []byte {
	is := a.ItemSize()
	off := HeaderSize + i*is
	return a.block[off : off+is : off+is]
}

// At returns item i. The slice aliases the array until the next growth.
func (a *Array) At(i int) []byte {
	if i < 0 || i >= a.Len() {
		panic("array: index out of range")
	}
	return a.slot(i)
}

// Bytes returns all items as one slice. It aliases the array until the next growth.
func (a *Array) Bytes() []byte {
	end := HeaderSize + a.Len()*a.ItemSize()
	return a.block[HeaderSize:end:end]
}

// EnsureCapacity makes room for added more items, doubling the capacity as
// needed. On error the array is unchanged.
func (a *Array) EnsureCapacity(added int) error {
	n, c := a.Len(), a.Cap()
	if n+added <= c {
		return nil
	}
	if c == 0 {
		c = 1
	}
	for c < n+added {
		c *= 2
	}
	block, err := a.alloc.Realloc(a.block, HeaderSize+c*a.ItemSize())
	if err != nil {
		return err
	}
	logging.Logger().Debug("array: grown", "from", a.Cap(), "to", c)
	a.block = block
	a.setField(capOff, c)
	return nil
}

// Append copies item to the end and returns the written slot. item must be
// exactly one item long.
func (a *Array) Append(item []byte) ([]byte, error) {
	if len(item) != a.ItemSize() {
		panic("array: item size mismatch")
	}
	s, err := a.Extend(1)
	if err != nil {
		return nil, err
	}
	copy(s, item)
	return s, nil
}

// Extend appends n items with unspecified contents and returns them.
func (a *Array) Extend(n int) ([]byte, error) {
	if n < 0 {
		panic("array: negative count")
	}
	if err := a.EnsureCapacity(n); err != nil {
		return nil, err
	}
	l, is := a.Len(), a.ItemSize()
	a.setField(lenOff, l+n)
	start, end := HeaderSize+l*is, HeaderSize+(l+n)*is
	return a.block[start:end:end], nil
}

// Pop removes the last item and returns it. The slot stays valid until the
// next Append or Extend.
func (a *Array) Pop() []byte {
	n := a.Len()
	if n == 0 {
		panic("array: pop from empty array")
	}
	a.setField(lenOff, n-1)
	return a.slot(n - 1)
}

// Truncate shortens the array to n items.
func (a *Array) Truncate(n int) {
	if n < 0 || n > a.Len() {
		panic("array: truncate out of range")
	}
	a.setField(lenOff, n)
}

// Remove deletes item i by moving the last item into its place. Order is not kept.
func (a *Array) Remove(i int) {
	n := a.Len()
	if i < 0 || i >= n {
		panic("array: index out of range")
	}
	if i != n-1 {
		copy(a.slot(i), a.slot(n-1))
	}
	a.setField(lenOff, n-1)
}

// Copy returns an independent array holding the same items, allocated from
// alloc. Its capacity equals its length. A nil alloc uses the array's own allocator.
func (a *Array) Copy(alloc malloc.Allocator) (*Array, error) {
	if alloc == nil {
		alloc = a.alloc
	}
	size := HeaderSize + a.Len()*a.ItemSize()
	block, err := alloc.Alloc(size)
	if err != nil {
		return nil, err
	}
	copy(block, a.block[:size])
	c := &Array{block: block, alloc: alloc}
	c.setField(capOff, a.Len())
	return c, nil
}

// Assign makes a hold the same items as src, item size included. The capacity
// in bytes is never reduced.
func (a *Array) Assign(src *Array) error {
	need := src.Len() * src.ItemSize()
	if have := len(a.block) - HeaderSize; need > have {
		block, err := a.alloc.Realloc(a.block, HeaderSize+need)
		if err != nil {
			return err
		}
		a.block = block
	}
	copy(a.block[HeaderSize:], src.Bytes())
	a.setField(itemSizeOff, src.ItemSize())
	a.setField(lenOff, src.Len())
	a.setField(capOff, (len(a.block)-HeaderSize)/src.ItemSize())
	return nil
}

// Release returns the block to the allocator. The array must not be used afterwards.
func (a *Array) Release() {
	a.alloc.Free(a.block)
	a.block = nil
}
