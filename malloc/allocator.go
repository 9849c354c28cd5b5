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

// Package malloc provides allocators that carve blocks out of a byte range.
//
// Every backend implements Allocator, so containers and user code can be
// written once and run over any of them:
//
//	Arena   bump allocator over a fixed buffer, freed all at once
//	VArena  bump allocator over reserved address space, committed on demand
//	Pool    fixed size chunks with O(1) alloc and free
//	Buddy   power-of-two blocks with lazy coalescing
//	Bitmap  runs of fixed size blocks tracked by a bitmap
//
// GoAllocator and ClassAllocator serve blocks from the Go heap.
//
// Running out of space is reported as ErrOutOfMemory. Misuse, such as freeing a
// block twice or freeing memory the allocator does not own, panics.
//
// None of the allocators are safe for concurrent use.
package malloc

import (
	"math"
	"unsafe"

	"github.com/bytedance/gopkg/lang/dirtmake"
)

// DefaultAlignment is the default alignment of returned blocks, two machine words.
const DefaultAlignment = 2 * int(unsafe.Sizeof(uintptr(0)))

// Allocator hands out byte blocks.
//
// Alloc returns a block of exactly size bytes. Realloc resizes buf, which must
// have been returned by the same allocator, and keeps its first
// min(len(buf), size) bytes; the result may or may not share memory with buf,
// so callers must drop buf and keep the result. If Realloc fails buf is left
// untouched and still owned by the caller. Free releases buf; freeing a nil
// slice is a no-op.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	Realloc(buf []byte, size int) ([]byte, error)
	Free(buf []byte)
}

// Funcs adapts three functions into an Allocator.
// A nil FreeFunc makes Free a no-op.
type Funcs struct {
	AllocFunc   func(size int) ([]byte, error)
	ReallocFunc func(buf []byte, size int) ([]byte, error)
	FreeFunc    func(buf []byte)
}

var _ Allocator = Funcs{}

func (f Funcs) Alloc(size int) ([]byte, error) { return f.AllocFunc(size) }

func (f Funcs) Realloc(buf []byte, size int) ([]byte, error) { return f.ReallocFunc(buf, size) }

func (f Funcs) Free(buf []byte) {
	if f.FreeFunc != nil {
		f.FreeFunc(buf)
	}
}

// GoAllocator allocates from the Go heap. Free is a no-op; the garbage
// collector reclaims blocks once they are unreachable.
type GoAllocator struct{}

// Default is the allocator containers fall back to when given nil.
var Default Allocator = GoAllocator{}

func (GoAllocator) Alloc(size int) ([]byte, error) {
	if size < 0 {
		panic("malloc: negative size")
	}
	return dirtmake.Bytes(size, size), nil
}

func (GoAllocator) Realloc(buf []byte, size int) ([]byte, error) {
	if size < 0 {
		panic("malloc: negative size")
	}
	if size <= cap(buf) {
		return buf[:size], nil
	}
	nb := dirtmake.Bytes(size, roundupsize(size))
	copy(nb, buf)
	return nb, nil
}

func (GoAllocator) Free([]byte) {}

// MakeSlice allocates a []T of length n from a. T must not contain pointers:
// the garbage collector does not scan allocator memory.
func MakeSlice[T any](a Allocator, n int) ([]T, error) {
	var zero T
	sz := int(unsafe.Sizeof(zero))
	if n < 0 {
		panic("malloc: negative length")
	}
	if n == 0 || sz == 0 {
		return make([]T, n), nil
	}
	if n > math.MaxInt/sz {
		return nil, ErrOutOfMemory
	}
	b, err := a.Alloc(n * sz)
	if err != nil {
		return nil, err
	}
	if uintptr(unsafe.Pointer(unsafe.SliceData(b)))%unsafe.Alignof(zero) != 0 {
		a.Free(b)
		panic("malloc: block not aligned for element type")
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n), nil
}

// AsBytes returns the memory of s as a byte slice, for handing a slice made by
// MakeSlice back to Realloc or Free.
func AsBytes[T any](s []T) []byte {
	var zero T
	if cap(s) == 0 {
		return nil
	}
	sz := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), cap(s)*sz)[:len(s)*sz]
}
