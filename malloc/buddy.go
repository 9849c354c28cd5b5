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
	"encoding/binary"

	"github.com/bytedance/gopkg/lang/mcache"

	"github.com/cloudwego/memkit/internal/logging"
)

const (
	// buddyHeaderSize is the encoded size of a block header.
	// Layout: [0:8] block size, [8:12] magic, [12] free flag.
	buddyHeaderSize = 16

	// buddyMagic marks the start of a block.
	buddyMagic uint32 = 0xB0DDB10C
)

// Buddy manages a power-of-two sized buffer as power-of-two sized blocks.
//
// Every block starts with a header of alignment bytes followed by the payload
// handed to the caller, so each block is at least 2*alignment bytes. Blocks tile
// the buffer and a block of size s always starts at a multiple of s.
//
// Free only marks a block free. Adjacent free buddies are merged while Alloc
// scans for a block, and by Coalesce.
type Buddy struct {
	mem       []byte
	raw       []byte // set when the buffer came from mcache
	alignment int
}

var _ Allocator = (*Buddy)(nil)

// NewBuddy creates a buddy allocator over buf. len(buf) and alignment must be
// powers of two and buf must start on an alignment boundary. Alignments below
// the header size are raised to it.
func NewBuddy(buf []byte, alignment int) *Buddy {
	if !isPowerOfTwo(alignment) {
		panic("buddy: alignment must be a power of two")
	}
	if alignment < buddyHeaderSize {
		alignment = buddyHeaderSize
	}
	if !isPowerOfTwo(len(buf)) {
		panic("buddy: size must be a power of two")
	}
	if len(buf) < 2*alignment {
		panic("buddy: size too small for alignment")
	}
	if dataPtr(buf)%uintptr(alignment) != 0 {
		panic("buddy: buffer not aligned")
	}
	b := &Buddy{mem: buf[:len(buf):len(buf)], alignment: alignment}
	b.Reset()
	return b
}

// NewHeapBuddy creates a buddy allocator over a cached buffer of size bytes.
// Call Release to hand the buffer back.
func NewHeapBuddy(size, alignment int) *Buddy {
	if alignment < buddyHeaderSize {
		alignment = buddyHeaderSize
	}
	raw := mcache.Malloc(size + alignment - 1)
	skip := int(alignUpPtr(dataPtr(raw), alignment) - dataPtr(raw))
	b := NewBuddy(raw[skip:skip+size], alignment)
	b.raw = raw
	return b
}

func (b *Buddy) blockSize(off int) int {
	return int(binary.LittleEndian.Uint64(b.mem[off:]))
}

func (b *Buddy) isFree(off int) bool {
	return b.mem[off+12] != 0
}

func (b *Buddy) validHeader(off int) bool {
	return binary.LittleEndian.Uint32(b.mem[off+8:]) == buddyMagic
}

func (b *Buddy) setHeader(off, size int, free bool) {
	binary.LittleEndian.PutUint64(b.mem[off:], uint64(size))
	binary.LittleEndian.PutUint32(b.mem[off+8:], buddyMagic)
	if free {
		b.mem[off+12] = 1
	} else {
		b.mem[off+12] = 0
	}
}

// clearHeader invalidates the header of a block absorbed by a merge.
func (b *Buddy) clearHeader(off int) {
	binary.LittleEndian.PutUint32(b.mem[off+8:], 0)
}

// actualSize returns the block size serving a request of n bytes.
func (b *Buddy) actualSize(n int) int {
	if n == 0 {
		n = 1
	}
	return nextPowerOfTwo(alignUp(n+b.alignment, b.alignment))
}

// mergeRight merges the free block at off with its free right buddies as long
// as off stays the left half. It returns the resulting block size.
func (b *Buddy) mergeRight(off, size int) int {
	for off&(2*size-1) == 0 && off+size < len(b.mem) {
		r := off + size
		if !b.isFree(r) || b.blockSize(r) != size {
			break
		}
		b.clearHeader(r)
		size *= 2
		b.setHeader(off, size, true)
	}
	return size
}

// findBest returns the offset of the smallest free block of at least size
// bytes, leftmost on ties, or -1. Free buddies met along the way are merged.
func (b *Buddy) findBest(size int) int {
	best, bestSize := -1, 0
	for off := 0; off < len(b.mem); {
		sz := b.blockSize(off)
		if b.isFree(off) {
			sz = b.mergeRight(off, sz)
			if sz >= size && (best < 0 || sz < bestSize) {
				best, bestSize = off, sz
			}
		}
		off += sz
	}
	return best
}

// split halves the free block at off until it is size bytes, keeping the left
// half and marking every right half free.
func (b *Buddy) split(off, size int) {
	sz := b.blockSize(off)
	for sz > size {
		sz /= 2
		b.setHeader(off+sz, sz, true)
	}
	b.setHeader(off, sz, false)
}

// Coalesce merges free buddies until no pair is left. It returns the number of merges.
func (b *Buddy) Coalesce() int {
	total := 0
	for {
		merged := 0
		for off := 0; off < len(b.mem); {
			sz := b.blockSize(off)
			if b.isFree(off) {
				n := b.mergeRight(off, sz)
				for s := sz; s < n; s *= 2 {
					merged++
				}
				sz = n
			}
			off += sz
		}
		if merged == 0 {
			break
		}
		total += merged
	}
	if total > 0 {
		logging.Logger().Debug("buddy: coalesced", "merges", total)
	}
	return total
}

// Alloc returns size bytes. The block behind it is the smallest power of two
// holding size plus the header.
func (b *Buddy) Alloc(size int) ([]byte, error) {
	if size < 0 {
		panic("buddy: negative size")
	}
	bs, off := 0, -1
	if size <= len(b.mem)-b.alignment {
		bs = b.actualSize(size)
		off = b.findBest(bs)
		if off < 0 {
			b.Coalesce()
			off = b.findBest(bs)
		}
	}
	if off < 0 {
		logging.Logger().Warn("buddy: out of memory",
			"size", size, "block", bs, "capacity", len(b.mem))
		return nil, ErrOutOfMemory
	}
	b.split(off, bs)
	p := off + b.alignment
	return b.mem[p : p+size : off+bs], nil
}

// block validates buf and returns the offset of its block.
func (b *Buddy) block(buf []byte) int {
	p := offsetOf(b.mem, buf)
	if p < 0 {
		panic("buddy: block not in arena")
	}
	off := p - b.alignment
	if off < 0 || off%b.alignment != 0 {
		panic("buddy: misaligned block")
	}
	if !b.validHeader(off) || b.isFree(off) {
		panic("buddy: double free or invalid block")
	}
	return off
}

// Free marks buf's block free. Neighbours are merged lazily.
func (b *Buddy) Free(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	off := b.block(buf)
	b.mem[off+12] = 1
}

// Realloc keeps buf's block when size still fits its payload. Otherwise the
// contents move to a new block. When no block can be found buf stays valid and
// ErrOutOfMemory is returned.
func (b *Buddy) Realloc(buf []byte, size int) ([]byte, error) {
	if size < 0 {
		panic("buddy: negative size")
	}
	if cap(buf) == 0 {
		return b.Alloc(size)
	}
	off := b.block(buf)
	bs := b.blockSize(off)
	p := off + b.alignment
	if size <= bs-b.alignment {
		return b.mem[p : p+size : off+bs], nil
	}

	// Freeing first lets the block merge with its buddies and grow in place.
	// Searching and splitting only write block headers, never payload bytes,
	// so the old contents survive until they are copied.
	old := len(buf)
	b.mem[off+12] = 1
	nb, err := b.Alloc(size)
	if err != nil {
		b.reclaim(off, bs)
		return nil, err
	}
	copy(nb, b.mem[p:p+old])
	logging.Logger().Debug("buddy: relocated block", "from", bs, "to", cap(nb)+b.alignment)
	return nb, nil
}

// reclaim carves the block [off, off+size) out of the free block that absorbed
// it and marks it allocated again.
func (b *Buddy) reclaim(off, size int) {
	cur := 0
	sz := b.blockSize(cur)
	for cur+sz <= off {
		cur += sz
		sz = b.blockSize(cur)
	}
	for sz > size {
		sz /= 2
		if off >= cur+sz {
			b.setHeader(cur, sz, true)
			cur += sz
		} else {
			b.setHeader(cur+sz, sz, true)
		}
	}
	b.setHeader(off, size, false)
}

// Available returns the total size of free blocks, headers included.
func (b *Buddy) Available() int {
	free := 0
	for off := 0; off < len(b.mem); {
		sz := b.blockSize(off)
		if b.isFree(off) {
			free += sz
		}
		off += sz
	}
	return free
}

// Reset turns the whole buffer back into a single free block.
func (b *Buddy) Reset() {
	if len(b.mem) > 0 {
		b.setHeader(0, len(b.mem), true)
	}
}

// Release hands a cached buffer back. The allocator must not be used afterwards.
func (b *Buddy) Release() {
	if b.raw != nil {
		mcache.Free(b.raw)
	}
	b.raw, b.mem = nil, nil
}

// Size returns the size of the managed buffer.
func (b *Buddy) Size() int { return len(b.mem) }

// Alignment returns the alignment of returned blocks, which is also the header size.
func (b *Buddy) Alignment() int { return b.alignment }

type buddyBlock struct {
	off, size int
	free      bool
}

func (b *Buddy) blocks() []buddyBlock {
	var bl []buddyBlock
	for off := 0; off < len(b.mem); {
		sz := b.blockSize(off)
		bl = append(bl, buddyBlock{off: off, size: sz, free: b.isFree(off)})
		off += sz
	}
	return bl
}
