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
	"math"
	"math/bits"

	"github.com/bytedance/gopkg/lang/mcache"

	"github.com/cloudwego/memkit/internal/logging"
)

const (
	// bitmapHeaderSize is the header in front of each allocation.
	// Layout: [0:4] magic, [4:8] requested size.
	bitmapHeaderSize = 8

	bitmapMagic uint32 = 0xB17BA900

	// MinBitmapBlockSize is the smallest block size accepted by NewBitmap.
	MinBitmapBlockSize = 16
)

// Bitmap allocates runs of fixed size blocks, one bit per block.
//
// The bitmap lives at the front of the buffer. Runs are searched next-fit from
// the end of the previous allocation, wrapping once. Blocks returned by Alloc
// are aligned to 8 bytes.
type Bitmap struct {
	mem        []byte
	raw        []byte
	bitmap     []byte
	blocksOff  int
	numBlocks  int
	nextIdx    int
	blockSize  int
	blockShift int
}

var _ Allocator = (*Bitmap)(nil)

// NewBitmap creates a bitmap allocator over buf. blockSize must be a power of
// two of at least MinBitmapBlockSize and buf must hold at least one block after
// the bitmap.
func NewBitmap(buf []byte, blockSize int) *Bitmap {
	if !isPowerOfTwo(blockSize) || blockSize < MinBitmapBlockSize {
		panic("bitmap: block size must be a power of two >= 16")
	}
	buf = buf[:cap(buf)]

	// Each bitmap byte covers 8 blocks. Round the bitmap up to whole words
	// for the scanner and to a whole block so blocks stay aligned.
	bitmapBytes := alignUp((len(buf)/blockSize+7)/8, 8)
	blocksOff := alignUp(bitmapBytes, blockSize)
	if blocksOff+blockSize > len(buf) {
		panic("bitmap: buffer too small")
	}
	a := &Bitmap{
		mem:        buf,
		bitmap:     buf[:bitmapBytes:bitmapBytes],
		blocksOff:  blocksOff,
		numBlocks:  (len(buf) - blocksOff) / blockSize,
		blockSize:  blockSize,
		blockShift: bits.TrailingZeros(uint(blockSize)),
	}
	a.Reset()
	return a
}

// NewHeapBitmap creates a bitmap allocator over a cached buffer of size bytes.
// Call Release to hand the buffer back.
func NewHeapBitmap(size, blockSize int) *Bitmap {
	raw := mcache.Malloc(size)
	a := NewBitmap(raw, blockSize)
	a.raw = raw
	return a
}

// fits reports whether a block of size bytes could ever be served, which also
// keeps blocksFor from overflowing.
func (a *Bitmap) fits(size int) bool {
	return size <= a.numBlocks<<a.blockShift-bitmapHeaderSize && uint64(size) <= math.MaxUint32
}

func (a *Bitmap) blocksFor(size int) int {
	return (size + bitmapHeaderSize + a.blockSize - 1) >> a.blockShift
}

func (a *Bitmap) blockOff(idx int) int {
	return a.blocksOff + idx<<a.blockShift
}

// Alloc returns size bytes from the first free run found after the previous allocation.
func (a *Bitmap) Alloc(size int) ([]byte, error) {
	if size < 0 {
		panic("bitmap: negative size")
	}
	n, idx := 0, -1
	if a.fits(size) {
		n = a.blocksFor(size)
		idx = a.findFreeRun(a.nextIdx, n)
		if idx < 0 && a.nextIdx > 0 {
			idx = a.findFreeRun(0, n)
		}
	}
	if idx < 0 {
		logging.Logger().Warn("bitmap: out of memory",
			"size", size, "blocks", n, "free_blocks", a.freeBlocks())
		return nil, ErrOutOfMemory
	}
	a.setBlocks(idx, n, true)
	a.nextIdx = idx + n
	if a.nextIdx >= a.numBlocks {
		a.nextIdx = 0
	}
	off := a.blockOff(idx)
	a.writeHeader(off, size)
	p := off + bitmapHeaderSize
	return a.mem[p : p+size : off+n<<a.blockShift], nil
}

func (a *Bitmap) writeHeader(off, size int) {
	binary.LittleEndian.PutUint32(a.mem[off:], bitmapMagic)
	binary.LittleEndian.PutUint32(a.mem[off+4:], uint32(size))
}

// block validates buf and returns its first block index and stored size.
func (a *Bitmap) block(buf []byte) (int, int) {
	p := offsetOf(a.mem, buf)
	off := p - bitmapHeaderSize - a.blocksOff
	if p < 0 || off < 0 || off >= a.numBlocks<<a.blockShift {
		panic("bitmap: block not in arena")
	}
	if off&(a.blockSize-1) != 0 {
		panic("bitmap: misaligned block")
	}
	off += a.blocksOff
	if binary.LittleEndian.Uint32(a.mem[off:]) != bitmapMagic {
		panic("bitmap: double free or invalid block")
	}
	return (off - a.blocksOff) >> a.blockShift, int(binary.LittleEndian.Uint32(a.mem[off+4:]))
}

// Free releases buf's blocks.
func (a *Bitmap) Free(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	idx, stored := a.block(buf)
	binary.LittleEndian.PutUint32(a.mem[a.blockOff(idx):], 0)
	a.setBlocks(idx, a.blocksFor(stored), false)
}

// Realloc resizes buf in place when the run can shrink or the blocks after it
// are free, and moves it otherwise.
func (a *Bitmap) Realloc(buf []byte, size int) ([]byte, error) {
	if size < 0 {
		panic("bitmap: negative size")
	}
	if cap(buf) == 0 {
		return a.Alloc(size)
	}
	idx, stored := a.block(buf)
	if !a.fits(size) {
		logging.Logger().Warn("bitmap: out of memory",
			"size", size, "free_blocks", a.freeBlocks())
		return nil, ErrOutOfMemory
	}
	have, need := a.blocksFor(stored), a.blocksFor(size)
	off := a.blockOff(idx)
	p := off + bitmapHeaderSize
	switch {
	case need <= have:
		a.setBlocks(idx+need, have-need, false)
	case idx+need <= a.numBlocks && a.runFree(idx+have, need-have):
		a.setBlocks(idx+have, need-have, true)
	default:
		nb, err := a.Alloc(size)
		if err != nil {
			return nil, err
		}
		copy(nb, a.mem[p:p+min(stored, size)])
		a.Free(buf)
		return nb, nil
	}
	a.writeHeader(off, size)
	return a.mem[p : p+size : off+need<<a.blockShift], nil
}

// Available returns the number of bytes in free blocks.
func (a *Bitmap) Available() int {
	return a.freeBlocks() << a.blockShift
}

func (a *Bitmap) freeBlocks() int {
	used := 0
	for _, b := range a.bitmap {
		used += bits.OnesCount8(b)
	}
	return a.numBlocks - used
}

// Reset frees every block.
func (a *Bitmap) Reset() {
	clear(a.bitmap)
	a.nextIdx = 0
}

// Release hands a cached buffer back. The allocator must not be used afterwards.
func (a *Bitmap) Release() {
	if a.raw != nil {
		mcache.Free(a.raw)
	}
	a.raw, a.mem, a.bitmap, a.numBlocks = nil, nil, nil, 0
}

// BlockSize returns the block size.
func (a *Bitmap) BlockSize() int { return a.blockSize }

// Blocks returns the number of blocks.
func (a *Bitmap) Blocks() int { return a.numBlocks }

func (a *Bitmap) isSet(idx int) bool {
	return a.bitmap[idx>>3]&(1<<(idx&7)) != 0
}

func (a *Bitmap) runFree(idx, count int) bool {
	for i := idx; i < idx+count; i++ {
		if a.isSet(i) {
			return false
		}
	}
	return true
}

// findFreeRun returns the first index >= startIdx starting count free blocks, or -1.
// Whole 64-block words are checked at once.
func (a *Bitmap) findFreeRun(startIdx, count int) int {
	runStart, runLen := -1, 0
	step := func(i int, used bool) bool {
		if used {
			runStart, runLen = -1, 0
			return false
		}
		if runStart < 0 {
			runStart = i
		}
		runLen++
		return runLen >= count
	}

	i, n := startIdx, a.numBlocks
	for ; i < n && i&63 != 0; i++ {
		if step(i, a.isSet(i)) {
			return runStart
		}
	}
	for ; i+64 <= n; i += 64 {
		switch w := binary.LittleEndian.Uint64(a.bitmap[i>>3:]); w {
		case ^uint64(0):
			runStart, runLen = -1, 0
		case 0:
			if runStart < 0 {
				runStart = i
			}
			runLen += 64
			if runLen >= count {
				return runStart
			}
		default:
			for k := 0; k < 64; k++ {
				if step(i+k, w>>k&1 != 0) {
					return runStart
				}
			}
		}
	}
	for ; i < n; i++ {
		if step(i, a.isSet(i)) {
			return runStart
		}
	}
	return -1
}

// setBlocks marks count blocks from idx as used or free.
func (a *Bitmap) setBlocks(idx, count int, used bool) {
	for i := idx; i < idx+count; {
		if i&7 == 0 && i+8 <= idx+count {
			if used {
				a.bitmap[i>>3] = 0xFF
			} else {
				a.bitmap[i>>3] = 0
			}
			i += 8
			continue
		}
		if used {
			a.bitmap[i>>3] |= 1 << (i & 7)
		} else {
			a.bitmap[i>>3] &^= 1 << (i & 7)
		}
		i++
	}
}
