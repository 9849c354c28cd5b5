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
	"github.com/spf13/cobra"

	"github.com/cloudwego/memkit/container/array"
	"github.com/cloudwego/memkit/malloc"
)

var (
	arenaItems  int
	arenaSize   int
	varenaItems int
	varenaSize  int
)

func init() {
	cmd := newArenaCmd()
	cmd.Flags().IntVar(&arenaItems, "items", 1024, "Number of items to append")
	cmd.Flags().IntVar(&arenaSize, "size", 1<<20, "Arena size in bytes")
	rootCmd.AddCommand(cmd)

	vcmd := newVArenaCmd()
	vcmd.Flags().IntVar(&varenaItems, "items", 1024, "Number of items to append")
	vcmd.Flags().IntVar(&varenaSize, "size", 1<<30, "Reservation size in bytes")
	rootCmd.AddCommand(vcmd)
}

func newArenaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "arena",
		Short: "Grow an array inside a fixed arena",
		Long: `The arena command appends integers to an array backed by a bump
allocator and reports every change of the arena's usage. Because the array is
the last allocation, it grows in place.

Example:
  memkit arena --items 4096`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArena()
		},
	}
}

func newVArenaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "varena",
		Short: "Grow an array inside a virtual memory arena",
		Long: `The varena command reserves address space, appends integers to an
array backed by it and reports how many bytes are used and committed.

Example:
  memkit varena --size 1073741824`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVArena()
		},
	}
}

type usageFunc func() (used, committed, size int)

// appendInts fills a new int32 array and prints usage whenever it changes.
func appendInts(alloc malloc.Allocator, items int, usage usageFunc) error {
	arr, err := array.NewOf[int32](16, alloc)
	if err != nil {
		return err
	}
	last := -1
	for i := 0; i < items; i++ {
		if err := array.AppendValue(arr, int32(i)); err != nil {
			return err
		}
		if used, committed, size := usage(); used != last {
			printInfo("used: %d/%d committed: %d\n", used, size, committed)
			last = used
		}
	}
	printInfo("len: %d cap: %d\n", arr.Len(), arr.Cap())
	return nil
}

func runArena() error {
	a := malloc.NewHeapArena(arenaSize)
	return appendInts(a, arenaItems, func() (int, int, int) {
		return a.Used(), a.Size(), a.Size()
	})
}

func runVArena() error {
	a, err := malloc.NewVArena(varenaSize)
	if err != nil {
		return err
	}
	defer a.Release()
	return appendInts(a, varenaItems, func() (int, int, int) {
		return a.Used(), a.Committed(), a.Size()
	})
}
