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

package malloc

import (
	"github.com/bytedance/gopkg/lang/dirtmake"

	"github.com/cloudwego/memkit/internal/logging"
)

// Arena is a bump allocator over a fixed buffer.
//
// Blocks are carved from the front of the buffer in allocation order. Free is a
// no-op; the whole arena is reclaimed by Reset. Realloc of the most recently
// allocated block grows or shrinks it in place, which makes repeated growth of
// one block amortized O(1).
type Arena struct {
	buf       []byte
	used      int
	alignment int
}

var _ Allocator = (*Arena)(nil)

// NewArena creates an arena over buf with DefaultAlignment.
func NewArena(buf []byte) *Arena {
	return NewArenaWithAlignment(buf, DefaultAlignment)
}

// NewArenaWithAlignment creates an arena over buf. alignment must be a power of two.
func NewArenaWithAlignment(buf []byte, alignment int) *Arena {
	if !isPowerOfTwo(alignment) {
		panic("arena: alignment must be a power of two")
	}
	return &Arena{buf: buf[:cap(buf)], alignment: alignment}
}

// NewHeapArena creates an arena over a fresh, uninitialized heap buffer.
func NewHeapArena(size int) *Arena {
	return NewArena(dirtmake.Bytes(size, size))
}

// Alloc returns size bytes aligned to the arena's alignment.
func (a *Arena) Alloc(size int) ([]byte, error) {
	if size < 0 {
		panic("arena: negative size")
	}
	start := int(alignUpPtr(dataPtr(a.buf)+uintptr(a.used), a.alignment) - dataPtr(a.buf))
	if size > len(a.buf)-start {
		logging.Logger().Warn("arena: out of memory",
			"size", size, "used", a.used, "capacity", len(a.buf))
		return nil, ErrOutOfMemory
	}
	end := start + size
	a.used = end
	return a.buf[start:end:end], nil
}

// Realloc resizes buf. The most recently allocated block is resized in place;
// any other block is shrunk in place or copied into a fresh block when growing.
func (a *Arena) Realloc(buf []byte, size int) ([]byte, error) {
	if size < 0 {
		panic("arena: negative size")
	}
	if len(buf) == 0 {
		return a.Alloc(size)
	}
	start := offsetOf(a.buf, buf)
	if start < 0 {
		panic("arena: block not in arena")
	}
	old := len(buf)
	if start+old == a.used {
		if size > len(a.buf)-start {
			logging.Logger().Warn("arena: out of memory",
				"size", size, "used", a.used, "capacity", len(a.buf))
			return nil, ErrOutOfMemory
		}
		end := start + size
		a.used = end
		return a.buf[start:end:end], nil
	}
	if size <= old {
		return buf[:size:size], nil
	}
	nb, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	copy(nb, buf)
	return nb, nil
}

// Free is a no-op. Use Reset to reclaim the arena.
func (a *Arena) Free([]byte) {}

// PushCopy allocates a block holding a copy of data.
func (a *Arena) PushCopy(data []byte) ([]byte, error) {
	b, err := a.Alloc(len(data))
	if err != nil {
		return nil, err
	}
	copy(b, data)
	return b, nil
}

// Reset makes the whole buffer available again. Blocks handed out before must
// no longer be used.
func (a *Arena) Reset() {
	a.used = 0
}

// Used returns the number of bytes consumed, including alignment padding.
func (a *Arena) Used() int { return a.used }

// Size returns the capacity of the arena.
func (a *Arena) Size() int { return len(a.buf) }

// Alignment returns the alignment of returned blocks.
func (a *Arena) Alignment() int { return a.alignment }
