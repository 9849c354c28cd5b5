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
	"math/bits"
	"unsafe"

	"github.com/cloudwego/memkit/internal/logging"
)

func isPowerOfTwo(x int) bool {
	return x > 0 && x&(x-1) == 0
}

// alignUp rounds x up to a multiple of align, which must be a power of two.
func alignUp(x, align int) int {
	return (x + align - 1) &^ (align - 1)
}

func alignUpPtr(p uintptr, align int) uintptr {
	return (p + uintptr(align) - 1) &^ (uintptr(align) - 1)
}

// nextPowerOfTwo returns the smallest power of two >= x.
func nextPowerOfTwo(x int) int {
	if x <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(x-1))
}

// roundupsize picks a capacity for a growing heap block.
func roundupsize(size int) int {
	if size <= 4096 {
		return nextPowerOfTwo(size)
	}
	return alignUp(size, 4096)
}

func unsafeBytes(p *byte, n int) []byte {
	return unsafe.Slice(p, n)
}

func dataPtr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// offsetOf returns the offset of b's first byte inside base, or -1 when b does
// not start inside base.
func offsetOf(base, b []byte) int {
	start := dataPtr(base)
	p := dataPtr(b)
	if p < start || p >= start+uintptr(cap(base)) {
		return -1
	}
	return int(p - start)
}

// SetLogger is logging.SetLogger, re-exported for users of this package.
var SetLogger = logging.SetLogger
