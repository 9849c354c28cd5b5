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
	"unsafe"

	"github.com/bytedance/gopkg/lang/mcache"

	"github.com/cloudwego/memkit/internal/logging"
)

const wordSize = int(unsafe.Sizeof(uintptr(0)))

// Pool hands out fixed size chunks of one buffer.
//
// Free chunks are kept as a stack of chunk indices, so Alloc and Free are O(1).
// A bitset of live chunks catches double frees.
type Pool struct {
	buf       []byte
	raw       []byte // set when the buffer came from mcache
	chunkSize int
	free      []int32
	live      []uint64
}

var _ Allocator = (*Pool)(nil)

// NewPool partitions buf into chunks of chunkSize bytes.
//
// The start of buf is aligned up to chunkAlignment and chunkSize is rounded up
// to a multiple of it. Bytes skipped for alignment and any tail shorter than a
// chunk are not used. NewPool panics if chunkAlignment is not a power of two,
// if a chunk is smaller than a machine word, or if buf cannot hold one chunk.
func NewPool(buf []byte, chunkSize, chunkAlignment int) *Pool {
	if !isPowerOfTwo(chunkAlignment) {
		panic("pool: chunk alignment must be a power of two")
	}
	chunkSize = alignUp(chunkSize, chunkAlignment)
	if chunkSize < wordSize {
		panic("pool: chunk size smaller than a machine word")
	}
	buf = buf[:cap(buf)]
	skip := int(alignUpPtr(dataPtr(buf), chunkAlignment) - dataPtr(buf))
	if len(buf)-skip < chunkSize {
		panic("pool: buffer smaller than one chunk")
	}
	n := (len(buf) - skip) / chunkSize
	end := skip + n*chunkSize
	p := &Pool{
		buf:       buf[skip:end:end],
		chunkSize: chunkSize,
		free:      make([]int32, 0, n),
		live:      make([]uint64, (n+63)/64),
	}
	p.Reset()
	return p
}

// NewHeapPool creates a pool of capacity bytes backed by a cached buffer.
// Call Release to hand the buffer back.
func NewHeapPool(capacity, chunkSize, chunkAlignment int) *Pool {
	if !isPowerOfTwo(chunkAlignment) {
		panic("pool: chunk alignment must be a power of two")
	}
	raw := mcache.Malloc(capacity + chunkAlignment - 1)
	skip := int(alignUpPtr(dataPtr(raw), chunkAlignment) - dataPtr(raw))
	p := NewPool(raw[skip:skip+capacity:skip+capacity], chunkSize, chunkAlignment)
	p.raw = raw
	return p
}

// Reset marks every chunk free.
func (p *Pool) Reset() {
	n := len(p.buf) / p.chunkSize
	p.free = p.free[:0]
	for i := n - 1; i >= 0; i-- {
		p.free = append(p.free, int32(i))
	}
	clear(p.live)
}

// AllocChunk returns a zeroed chunk.
func (p *Pool) AllocChunk() ([]byte, error) {
	n := len(p.free)
	if n == 0 {
		logging.Logger().Warn("pool: exhausted",
			"chunk_size", p.chunkSize, "chunks", p.Chunks())
		return nil, ErrOutOfMemory
	}
	i := int(p.free[n-1])
	p.free = p.free[:n-1]
	p.live[i>>6] |= 1 << (i & 63)
	off := i * p.chunkSize
	c := p.buf[off : off+p.chunkSize : off+p.chunkSize]
	clear(c)
	return c, nil
}

// Alloc returns a zeroed chunk resliced to size. It panics if size exceeds the
// chunk size.
func (p *Pool) Alloc(size int) ([]byte, error) {
	if size < 0 || size > p.chunkSize {
		panic("pool: size does not fit a chunk")
	}
	c, err := p.AllocChunk()
	if err != nil {
		return nil, err
	}
	return c[:size], nil
}

// Realloc reslices buf within its chunk. Growing past the chunk size returns
// ErrChunkOverflow and leaves buf untouched.
func (p *Pool) Realloc(buf []byte, size int) ([]byte, error) {
	if size < 0 {
		panic("pool: negative size")
	}
	if cap(buf) == 0 {
		return p.Alloc(size)
	}
	if size > p.chunkSize {
		return nil, ErrChunkOverflow
	}
	i := p.index(buf)
	if !p.isLive(i) {
		panic("pool: realloc of free chunk")
	}
	off := i * p.chunkSize
	return p.buf[off : off+size : off+p.chunkSize], nil
}

// Free returns buf's chunk to the pool. It panics if buf does not start a live
// chunk of this pool.
func (p *Pool) Free(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	i := p.index(buf)
	if !p.isLive(i) {
		panic("pool: double free or invalid chunk")
	}
	p.live[i>>6] &^= 1 << (i & 63)
	p.free = append(p.free, int32(i))
}

func (p *Pool) index(buf []byte) int {
	off := offsetOf(p.buf, buf)
	if off < 0 {
		panic("pool: chunk not in pool")
	}
	if off%p.chunkSize != 0 {
		panic("pool: misaligned chunk")
	}
	return off / p.chunkSize
}

func (p *Pool) isLive(i int) bool {
	return p.live[i>>6]&(1<<(i&63)) != 0
}

// Release hands a cached buffer back. The pool must not be used afterwards.
func (p *Pool) Release() {
	if p.raw != nil {
		mcache.Free(p.raw)
	}
	p.raw, p.buf, p.free, p.live = nil, nil, nil, nil
}

// Chunks returns the total number of chunks.
func (p *Pool) Chunks() int { return len(p.buf) / p.chunkSize }

// Available returns the number of free chunks.
func (p *Pool) Available() int { return len(p.free) }

// ChunkSize returns the chunk size after alignment rounding.
func (p *Pool) ChunkSize() int { return p.chunkSize }
