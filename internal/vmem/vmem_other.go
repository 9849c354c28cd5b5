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

//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

package vmem

import "unsafe"

func addr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// Without a virtual memory API the reservation is ordinary heap memory. The
// extra page lets the range start on a page boundary.
func reserve(size int) ([]byte, error) {
	ps := PageSize()
	raw := make([]byte, size+ps)
	off := 0
	if r := int(addr(raw) % uintptr(ps)); r != 0 {
		off = ps - r
	}
	return raw[off : off+size : off+size], nil
}

func commit([]byte) error { return nil }

func decommit(b []byte) error {
	clear(b)
	return nil
}

func release([]byte) error { return nil }
