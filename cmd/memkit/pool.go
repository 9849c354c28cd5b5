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
	"errors"

	"github.com/spf13/cobra"

	"github.com/cloudwego/memkit/malloc"
)

var (
	poolChunk int
	poolAlign int
)

func init() {
	cmd := newPoolCmd()
	cmd.Flags().IntVar(&poolChunk, "chunk", 64, "Chunk size in bytes")
	cmd.Flags().IntVar(&poolAlign, "align", 16, "Chunk alignment")
	rootCmd.AddCommand(cmd)
}

func newPoolCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pool",
		Short: "Allocate, free and exhaust a chunk pool",
		Long: `The pool command shows chunk reuse after free, the effect of
alignment on chunk size and the number of chunks handed out before the pool is
exhausted.

Example:
  memkit pool --chunk 50 --align 32`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPool()
		},
	}
}

func runPool() error {
	p := malloc.NewHeapPool(4096, poolChunk, poolAlign)
	defer p.Release()
	printInfo("chunk size: %d chunks: %d\n", p.ChunkSize(), p.Chunks())

	a, err := p.AllocChunk()
	if err != nil {
		return err
	}
	p.Free(a)
	b, err := p.AllocChunk()
	if err != nil {
		return err
	}
	printInfo("reused after free: %t\n", &a[0] == &b[0])

	n := 1
	for {
		if _, err := p.AllocChunk(); err != nil {
			if !errors.Is(err, malloc.ErrOutOfMemory) {
				return err
			}
			break
		}
		n++
	}
	printInfo("allocated before exhaustion: %d\n", n)
	return nil
}
