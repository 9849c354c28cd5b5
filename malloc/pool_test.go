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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		chunk     int
		align     int
		wantChunk int
		wantPanic bool
	}{
		{"exact", 1024, 64, 16, 64, false},
		{"round_chunk", 1024, 50, 16, 64, false},
		{"word_chunk", 1024, 8, 8, 8, false},
		{"align_not_pow2", 1024, 64, 12, 0, true},
		{"chunk_too_small", 1024, 2, 1, 0, true},
		{"buffer_too_small", 32, 64, 16, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.size)
			if tt.wantPanic {
				assert.Panics(t, func() { NewPool(buf, tt.chunk, tt.align) })
				return
			}
			p := NewPool(buf, tt.chunk, tt.align)
			assert.Equal(t, tt.wantChunk, p.ChunkSize())
			assert.Equal(t, tt.size/tt.wantChunk, p.Chunks())
			assert.Equal(t, p.Chunks(), p.Available())
		})
	}
}

func TestPoolUnalignedBase(t *testing.T) {
	buf := make([]byte, 1024)
	p := NewPool(buf[3:], 64, 64)
	// 3 bytes are skipped to reach alignment, so the tail chunk is lost
	assert.Equal(t, 15, p.Chunks())

	c, err := p.AllocChunk()
	require.NoError(t, err)
	assert.Zero(t, dataPtr(c)%64)
	assert.Equal(t, 64, offsetOf(buf, c))
}

func TestPoolReuse(t *testing.T) {
	p := NewPool(make([]byte, 1024), 64, 16)

	b1, err := p.Alloc(40)
	require.NoError(t, err)
	assert.Len(t, b1, 40)
	assert.Equal(t, 64, cap(b1))
	b1[0] = 0xFF

	p.Free(b1)
	b2, err := p.Alloc(64)
	require.NoError(t, err)
	assert.Equal(t, dataPtr(b1), dataPtr(b2))
	assert.Equal(t, byte(0), b2[0], "chunks are zeroed")
}

func TestPoolFirstChunk(t *testing.T) {
	buf := make([]byte, 256)
	p := NewPool(buf, 64, 16)
	b, err := p.AllocChunk()
	require.NoError(t, err)
	assert.Equal(t, 0, offsetOf(buf, b))
	b, err = p.AllocChunk()
	require.NoError(t, err)
	assert.Equal(t, 64, offsetOf(buf, b))
}

func TestPoolExhaustion(t *testing.T) {
	p := NewPool(make([]byte, 1000), 48, 16)
	var chunks [][]byte
	for {
		c, err := p.AllocChunk()
		if err != nil {
			assert.ErrorIs(t, err, ErrOutOfMemory)
			break
		}
		chunks = append(chunks, c)
	}
	assert.Equal(t, 1000/48, len(chunks))
	assert.Equal(t, 0, p.Available())
	for i := 1; i < len(chunks); i++ {
		assert.False(t, overlap(chunks[i-1], chunks[i]))
	}

	p.Reset()
	assert.Equal(t, len(chunks), p.Available())
	_, err := p.AllocChunk()
	assert.NoError(t, err)
}

func TestPoolRealloc(t *testing.T) {
	p := NewPool(make([]byte, 512), 64, 16)
	b, err := p.Alloc(8)
	require.NoError(t, err)
	copy(b, "abcdefgh")

	nb, err := p.Realloc(b, 60)
	require.NoError(t, err)
	assert.Equal(t, dataPtr(b), dataPtr(nb))
	assert.Equal(t, "abcdefgh", string(nb[:8]))

	nb, err = p.Realloc(nb, 4)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(nb))

	_, err = p.Realloc(nb, 65)
	assert.ErrorIs(t, err, ErrChunkOverflow)
	assert.Equal(t, "abcd", string(nb))

	nb, err = p.Realloc(nil, 16)
	require.NoError(t, err)
	assert.Len(t, nb, 16)
}

func TestPoolMisuse(t *testing.T) {
	buf := make([]byte, 512)
	p := NewPool(buf, 64, 16)
	b, err := p.Alloc(64)
	require.NoError(t, err)

	assert.Panics(t, func() { p.Alloc(65) }, "larger than a chunk")
	assert.Panics(t, func() { p.Realloc(b, -1) }, "negative size")
	assert.Panics(t, func() { p.Free(make([]byte, 64)) }, "foreign block")
	assert.Panics(t, func() { p.Free(b[8:]) }, "misaligned")

	p.Free(b)
	assert.Panics(t, func() { p.Free(b) }, "double free")
	assert.Panics(t, func() { p.Realloc(b, 8) }, "realloc of free chunk")

	p.Free(nil)
}

func TestHeapPool(t *testing.T) {
	p := NewHeapPool(4096, 100, 32)
	defer p.Release()
	assert.Equal(t, 128, p.ChunkSize())
	assert.Equal(t, 32, p.Chunks())

	c, err := p.AllocChunk()
	require.NoError(t, err)
	assert.Zero(t, dataPtr(c)%32)
}

func BenchmarkPoolAllocFree(b *testing.B) {
	p := NewHeapPool(1<<16, 64, 16)
	defer p.Release()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c, _ := p.AllocChunk()
		p.Free(c)
	}
}
