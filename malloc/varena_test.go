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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/memkit/internal/vmem"
)

func newTestVArena(t *testing.T, size int, opt *VArenaOption) *VArena {
	t.Helper()
	a, err := NewVArenaWithOption(size, opt)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Release()) })
	return a
}

func TestVArenaCommitOnDemand(t *testing.T) {
	ps := vmem.PageSize()
	a := newTestVArena(t, 8*ps, nil)
	assert.Equal(t, 8*ps, a.Size())
	assert.Equal(t, 0, a.Committed())

	b, err := a.Alloc(10)
	require.NoError(t, err)
	assert.Equal(t, ps, a.Committed())
	for i := range b {
		b[i] = byte(i)
	}

	b2, err := a.Alloc(2 * ps)
	require.NoError(t, err)
	assert.Equal(t, 3*ps, a.Committed())
	assert.GreaterOrEqual(t, a.Committed(), a.Used())
	b2[len(b2)-1] = 1

	// the whole reservation can be committed
	_, err = a.Alloc(a.Size() - a.Used() - DefaultAlignment)
	require.NoError(t, err)
	assert.Equal(t, a.Size(), a.Committed())

	_, err = a.Alloc(2 * DefaultAlignment)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.LessOrEqual(t, a.Committed(), a.Size())
}

func TestVArenaSizeRounding(t *testing.T) {
	ps := vmem.PageSize()
	a := newTestVArena(t, ps+1, nil)
	assert.Equal(t, 2*ps, a.Size())

	opt := &VArenaOption{PageSize: 4 * ps}
	a = newTestVArena(t, ps, opt)
	assert.Equal(t, 4*ps, a.Size())
	assert.Equal(t, 4*ps, a.PageSize())

	_, err := a.Alloc(1)
	require.NoError(t, err)
	assert.Equal(t, 4*ps, a.Committed())
}

func TestVArenaRealloc(t *testing.T) {
	ps := vmem.PageSize()
	a := newTestVArena(t, 16*ps, nil)

	b, err := a.PushCopy([]byte("virtual"))
	require.NoError(t, err)

	nb, err := a.Realloc(b, 3*ps)
	require.NoError(t, err)
	assert.Equal(t, dataPtr(b), dataPtr(nb))
	assert.Equal(t, "virtual", string(nb[:7]))
	assert.GreaterOrEqual(t, a.Committed(), 3*ps)

	nb, err = a.Realloc(nb, 3)
	require.NoError(t, err)
	assert.Equal(t, "vir", string(nb))
	assert.Equal(t, 3, a.Used())

	other, err := a.Alloc(8)
	require.NoError(t, err)
	moved, err := a.Realloc(nb, 32)
	require.NoError(t, err)
	assert.NotEqual(t, dataPtr(nb), dataPtr(moved))
	assert.Equal(t, "vir", string(moved[:3]))
	assert.False(t, overlap(other, moved))

	_, err = a.Realloc(moved, 32*ps)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestVArenaOversized(t *testing.T) {
	ps := vmem.PageSize()
	a := newTestVArena(t, 4*ps, nil)
	b, err := a.PushCopy([]byte("kept"))
	require.NoError(t, err)
	used, committed := a.Used(), a.Committed()

	for _, size := range []int{math.MaxInt, math.MaxInt - 4, 4*ps + 1} {
		_, err := a.Alloc(size)
		assert.ErrorIs(t, err, ErrOutOfMemory, "alloc %d", size)
		_, err = a.Realloc(b, size)
		assert.ErrorIs(t, err, ErrOutOfMemory, "realloc %d", size)
		assert.Equal(t, used, a.Used())
		assert.Equal(t, committed, a.Committed())
	}
	assert.Equal(t, "kept", string(b))

	nb, err := a.Alloc(ps)
	require.NoError(t, err)
	assert.Len(t, nb, ps)
}

func TestVArenaTrim(t *testing.T) {
	ps := vmem.PageSize()
	a := newTestVArena(t, 16*ps, nil)

	_, err := a.Alloc(10 * ps)
	require.NoError(t, err)
	assert.Equal(t, 10*ps, a.Committed())

	a.Reset()
	b, err := a.Alloc(ps / 2)
	require.NoError(t, err)
	require.NoError(t, a.Trim())
	assert.Equal(t, ps, a.Committed())
	b[0] = 1

	// trimmed pages are committed again on demand
	b, err = a.Alloc(4 * ps)
	require.NoError(t, err)
	b[len(b)-1] = 2
	assert.GreaterOrEqual(t, a.Committed(), a.Used())
}

func TestVArenaOptions(t *testing.T) {
	ps := vmem.PageSize()
	assert.Panics(t, func() { NewVArenaWithOption(ps, &VArenaOption{PageSize: ps + 1}) })
	assert.Panics(t, func() { NewVArenaWithOption(ps, &VArenaOption{Alignment: 24}) })
	assert.Panics(t, func() { NewVArenaWithOption(0, nil) })

	a, err := NewVArena(ps)
	require.NoError(t, err)
	require.NoError(t, a.Release())
	assert.Equal(t, 0, a.Size())
	_, err = a.Alloc(1)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}
