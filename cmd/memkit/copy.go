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

package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/cloudwego/memkit/container/array"
	"github.com/cloudwego/memkit/malloc"
)

var copySeed int64

func init() {
	c := newCopyCmd()
	c.Flags().Int64Var(&copySeed, "seed", 1, "Random seed")
	rootCmd.AddCommand(c)

	a := newAssignCmd()
	a.Flags().Int64Var(&copySeed, "seed", 1, "Random seed")
	rootCmd.AddCommand(a)
}

func newCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy",
		Short: "Copy a byte array and compare it with the original",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCopy()
		},
	}
}

func newAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign",
		Short: "Assign one byte array to another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssign()
		},
	}
}

func randomBytes(r *rand.Rand, alloc malloc.Allocator) (*array.Array, error) {
	a, err := array.New(1, 32, alloc)
	if err != nil {
		return nil, err
	}
	for i := 0; i < 25; i++ {
		if _, err := a.Append([]byte{byte(r.Intn(256))}); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func compare(a, b *array.Array) error {
	if a.Len() != b.Len() {
		return fmt.Errorf("length mismatch: %d != %d", a.Len(), b.Len())
	}
	for i := 0; i < a.Len(); i++ {
		x, y := a.At(i)[0], b.At(i)[0]
		if x != y {
			return fmt.Errorf("[%d]: %d != %d", i, x, y)
		}
		printInfo("[%d]: %d == %d\n", i, x, y)
	}
	return nil
}

func runCopy() error {
	va, err := malloc.NewVArena(1 << 16)
	if err != nil {
		return err
	}
	defer va.Release()

	r := rand.New(rand.NewSource(copySeed))
	orig, err := randomBytes(r, va)
	if err != nil {
		return err
	}
	cp, err := orig.Copy(va)
	if err != nil {
		return err
	}
	return compare(orig, cp)
}

func runAssign() error {
	va, err := malloc.NewVArena(1 << 16)
	if err != nil {
		return err
	}
	defer va.Release()

	r := rand.New(rand.NewSource(copySeed))
	a, err := randomBytes(r, va)
	if err != nil {
		return err
	}
	b, err := randomBytes(r, va)
	if err != nil {
		return err
	}
	printInfo("B before assignment:\n")
	for i := 0; i < b.Len(); i++ {
		printInfo("[%d]: %d\n", i, b.At(i)[0])
	}
	if err := b.Assign(a); err != nil {
		return err
	}
	return compare(a, b)
}
