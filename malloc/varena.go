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
	"github.com/pkg/errors"

	"github.com/cloudwego/memkit/internal/logging"
	"github.com/cloudwego/memkit/internal/vmem"
)

// VArenaOption configures a VArena.
type VArenaOption struct {
	// PageSize is the commit granularity. It must be a multiple of the OS page size.
	PageSize int

	// Alignment of returned blocks. It must be a power of two.
	Alignment int
}

// DefaultVArenaOption commits one OS page at a time and aligns blocks to DefaultAlignment.
func DefaultVArenaOption() *VArenaOption {
	return &VArenaOption{
		PageSize:  vmem.PageSize(),
		Alignment: DefaultAlignment,
	}
}

// VArena is a bump allocator over reserved address space.
//
// The whole capacity is reserved up front but only backed by memory as
// allocations reach it, a page at a time. It follows the same in-place realloc
// rules as Arena.
type VArena struct {
	mem       []byte
	pageSize  int
	alignment int
	committed int
	used      int
}

var _ Allocator = (*VArena)(nil)

// NewVArena reserves size bytes with DefaultVArenaOption.
func NewVArena(size int) (*VArena, error) {
	return NewVArenaWithOption(size, DefaultVArenaOption())
}

// NewVArenaWithOption reserves size bytes, rounded up to a whole page.
// An invalid option panics; a refused reservation returns an error.
func NewVArenaWithOption(size int, opt *VArenaOption) (*VArena, error) {
	if opt == nil {
		opt = DefaultVArenaOption()
	}
	ps, align := opt.PageSize, opt.Alignment
	if ps == 0 {
		ps = vmem.PageSize()
	}
	if align == 0 {
		align = DefaultAlignment
	}
	if ps < 0 || ps%vmem.PageSize() != 0 {
		panic("varena: page size must be a multiple of the OS page size")
	}
	if !isPowerOfTwo(align) {
		panic("varena: alignment must be a power of two")
	}
	if size <= 0 {
		panic("varena: size must be positive")
	}
	size = (size + ps - 1) / ps * ps
	mem, err := vmem.Reserve(size)
	if err != nil {
		return nil, errors.WithMessage(err, "varena")
	}
	return &VArena{mem: mem, pageSize: ps, alignment: align}, nil
}

// grow commits whole pages until end bytes are backed.
func (a *VArena) grow(end int) error {
	if end <= a.committed {
		return nil
	}
	if end > len(a.mem) {
		return a.exhausted(end - a.used)
	}
	pages := (end - a.committed + a.pageSize - 1) / a.pageSize
	next := a.committed + pages*a.pageSize
	if err := vmem.Commit(a.mem[a.committed:next]); err != nil {
		logging.Logger().Warn("varena: commit failed", "bytes", next-a.committed, "error", err)
		return err
	}
	logging.Logger().Debug("varena: committed pages", "pages", pages, "committed", next)
	a.committed = next
	return nil
}

func (a *VArena) exhausted(size int) error {
	logging.Logger().Warn("varena: reservation exhausted",
		"size", size, "used", a.used, "reserved", len(a.mem))
	return ErrOutOfMemory
}

// Alloc returns size bytes aligned to the arena's alignment, committing pages as needed.
func (a *VArena) Alloc(size int) ([]byte, error) {
	if size < 0 {
		panic("varena: negative size")
	}
	base := dataPtr(a.mem)
	start := int(alignUpPtr(base+uintptr(a.used), a.alignment) - base)
	if size > len(a.mem)-start {
		return nil, a.exhausted(size)
	}
	end := start + size
	if err := a.grow(end); err != nil {
		return nil, err
	}
	a.used = end
	return a.mem[start:end:end], nil
}

// Realloc follows Arena.Realloc.
func (a *VArena) Realloc(buf []byte, size int) ([]byte, error) {
	if size < 0 {
		panic("varena: negative size")
	}
	if len(buf) == 0 {
		return a.Alloc(size)
	}
	start := offsetOf(a.mem, buf)
	if start < 0 {
		panic("varena: block not in arena")
	}
	old := len(buf)
	if start+old == a.used {
		if size > len(a.mem)-start {
			return nil, a.exhausted(size)
		}
		end := start + size
		if err := a.grow(end); err != nil {
			return nil, err
		}
		a.used = end
		return a.mem[start:end:end], nil
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

// Free is a no-op.
func (a *VArena) Free([]byte) {}

// PushCopy allocates a block holding a copy of data.
func (a *VArena) PushCopy(data []byte) ([]byte, error) {
	b, err := a.Alloc(len(data))
	if err != nil {
		return nil, err
	}
	copy(b, data)
	return b, nil
}

// Reset forgets every allocation. Committed pages stay committed; call Trim to
// return them.
func (a *VArena) Reset() {
	a.used = 0
}

// Trim decommits the pages above the last allocated byte.
func (a *VArena) Trim() error {
	keep := (a.used + a.pageSize - 1) / a.pageSize * a.pageSize
	if keep >= a.committed {
		return nil
	}
	if err := vmem.Decommit(a.mem[keep:a.committed]); err != nil {
		return err
	}
	logging.Logger().Debug("varena: decommitted pages",
		"pages", (a.committed-keep)/a.pageSize, "committed", keep)
	a.committed = keep
	return nil
}

// Release returns the reservation to the OS. The arena is empty afterwards.
func (a *VArena) Release() error {
	mem := a.mem
	a.mem, a.committed, a.used = nil, 0, 0
	return vmem.Release(mem)
}

// Used returns the number of bytes consumed, including alignment padding.
func (a *VArena) Used() int { return a.used }

// Committed returns the number of bytes backed by memory.
func (a *VArena) Committed() int { return a.committed }

// Size returns the size of the reservation.
func (a *VArena) Size() int { return len(a.mem) }

// PageSize returns the commit granularity.
func (a *VArena) PageSize() int { return a.pageSize }
