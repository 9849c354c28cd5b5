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

const buddySize = 8 * 1024

func init() {
	rootCmd.AddCommand(newBuddyCmd())
}

func newBuddyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buddy",
		Short: "Resize blocks in a buddy allocator",
		Long: `The buddy command grows an array from 6 to 200 integers inside an
8KB buddy allocator, then shrinks a 1000 integer block to 200.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runBuddyLarger(); err != nil {
				return err
			}
			return runBuddySmaller()
		},
	}
}

func runBuddyLarger() error {
	printInfo("----BUDDY REALLOC LARGER----\n")
	b := malloc.NewHeapBuddy(buddySize, malloc.DefaultAlignment)
	defer b.Release()

	arr, err := array.NewOf[int32](6, b)
	if err != nil {
		return err
	}
	for i := int32(0); i < 200; i++ {
		if err := array.AppendValue(arr, i); err != nil {
			return err
		}
	}
	vals := array.Values[int32](arr)
	printInfo("len: %d cap: %d first: %d last: %d free: %d\n",
		arr.Len(), arr.Cap(), vals[0], vals[len(vals)-1], b.Available())
	return nil
}

func runBuddySmaller() error {
	printInfo("----BUDDY REALLOC SMALLER----\n")
	b := malloc.NewHeapBuddy(buddySize, malloc.DefaultAlignment)
	defer b.Release()

	ints, err := malloc.MakeSlice[int32](b, 1000)
	if err != nil {
		return err
	}
	ints[199] = 199
	raw, err := b.Realloc(malloc.AsBytes(ints), 4*200)
	if err != nil {
		return err
	}
	printInfo("shrunk to %d bytes, block kept: %t, free: %d\n",
		len(raw), &raw[0] == &malloc.AsBytes(ints)[0], b.Available())
	return nil
}
