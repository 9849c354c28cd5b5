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
	"math/bits"
	"sync"
)

const (
	minClassSize = 64      // smallest block handed out by ClassAllocator
	maxClassSize = 1 << 30 // larger requests are not pooled

	// classFooterLen is the footer kept behind every pooled block. It holds a
	// magic in the high 58 bits and the class index in the low 6 bits, so Free
	// can tell pooled blocks from anything else.
	classFooterLen = 8

	classMagicMask = uint64(0xFFFFFFFFFFFFFFC0)
	classIndexMask = uint64(0x3F)
	classMagic     = uint64(0xC1A55B10C5C1A5C0)
)

var (
	classPools []*sync.Pool
	classSizes []int
)

func init() {
	for sz := minClassSize; sz <= maxClassSize; sz <<= 1 {
		size := sz
		classSizes = append(classSizes, size)
		classPools = append(classPools, &sync.Pool{New: func() interface{} {
			b := make([]byte, size)
			return &b[0]
		}})
	}
}

// classIndex returns the smallest class holding n bytes.
func classIndex(n int) int {
	if n <= minClassSize {
		return 0
	}
	return bits.Len(uint(n-1)) - bits.Len(uint(minClassSize-1))
}

// ClassAllocator serves blocks from power-of-two size classes recycled through
// sync.Pool. Unlike GoAllocator, Free hands a block back for reuse. Blocks may
// hold stale data. Requests above 1GB fall back to plain heap memory.
//
// ClassAllocator is safe for concurrent use.
type ClassAllocator struct{}

var _ Allocator = ClassAllocator{}

func (ClassAllocator) Alloc(size int) ([]byte, error) {
	if size < 0 {
		panic("malloc: negative size")
	}
	if size > maxClassSize-classFooterLen {
		return make([]byte, size), nil
	}
	i := classIndex(size + classFooterLen)
	p := classPools[i].Get().(*byte)
	b := unsafeBytes(p, classSizes[i])
	binary.LittleEndian.PutUint64(b[len(b)-classFooterLen:], classMagic|uint64(i))
	return b[:size:len(b)], nil
}

// classOf returns the class index of a pooled block, or -1.
func classOf(b []byte) int {
	c := cap(b)
	if c < minClassSize || c&(c-1) != 0 || c-len(b) < classFooterLen {
		return -1
	}
	full := b[:c]
	f := binary.LittleEndian.Uint64(full[c-classFooterLen:])
	if f&classMagicMask != classMagic {
		return -1
	}
	i := int(f & classIndexMask)
	if i >= len(classSizes) || classSizes[i] != c {
		return -1
	}
	return i
}

func (a ClassAllocator) Realloc(buf []byte, size int) ([]byte, error) {
	if size < 0 {
		panic("malloc: negative size")
	}
	if i := classOf(buf); i >= 0 && size+classFooterLen <= classSizes[i] {
		return buf[:size], nil
	}
	nb, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	copy(nb, buf)
	a.Free(buf)
	return nb, nil
}

// Free recycles buf if it came from a ClassAllocator and ignores it otherwise.
func (ClassAllocator) Free(buf []byte) {
	if i := classOf(buf); i >= 0 {
		classPools[i].Put(&buf[:1][0])
	}
}
