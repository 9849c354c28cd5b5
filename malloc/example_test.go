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

import "fmt"

func Example() {
	arena := NewArenaWithAlignment(make([]byte, 64), 8)
	b1, _ := arena.Alloc(10)
	b2, _ := arena.Alloc(10)
	fmt.Println(len(b1), len(b2), arena.Used())

	buddy := NewBuddy(make([]byte, 8192), 16)
	x, _ := buddy.Alloc(2049)
	y, _ := buddy.Alloc(2049)
	_, err := buddy.Alloc(1)
	fmt.Printf("x: len=%d cap=%d\n", len(x), cap(x))
	fmt.Printf("y: len=%d cap=%d\n", len(y), cap(y))
	fmt.Println(err)

	// Output:
	// 10 10 26
	// x: len=2049 cap=4080
	// y: len=2049 cap=4080
	// malloc: out of memory
}

func ExamplePool() {
	pool := NewPool(make([]byte, 1024), 64, 16)
	a, _ := pool.Alloc(32)
	pool.Free(a)
	b, _ := pool.Alloc(32)
	fmt.Println(&a[0] == &b[0], pool.Chunks(), pool.Available())

	// Output:
	// true 16 15
}
