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

package array

import (
	"unsafe"

	"github.com/cloudwego/memkit/malloc"
)

// NewOf allocates an array of T. T must not contain pointers.
func NewOf[T any](capacity int, alloc malloc.Allocator) (*Array, error) {
	var zero T
	return New(int(unsafe.Sizeof(zero)), capacity, alloc)
}

func checkType[T any](a *Array) int {
	var zero T
	sz := int(unsafe.Sizeof(zero))
	if sz != a.ItemSize() {
		panic("array: item size mismatch")
	}
	return sz
}

// AppendValue appends v.
func AppendValue[T any](a *Array, v T) error {
	sz := checkType[T](a)
	_, err := a.Append(unsafe.Slice((*byte)(unsafe.Pointer(&v)), sz))
	return err
}

// ValueAt returns item i as a T.
func ValueAt[T any](a *Array, i int) T {
	checkType[T](a)
	return *(*T)(unsafe.Pointer(unsafe.SliceData(a.At(i))))
}

// Values returns the items as a []T aliasing the array until the next growth.
func Values[T any](a *Array) []T {
	checkType[T](a)
	b := a.Bytes()
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), a.Len())
}
