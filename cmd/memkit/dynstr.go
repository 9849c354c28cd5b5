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

	"github.com/cloudwego/memkit/container/dynstr"
	"github.com/cloudwego/memkit/malloc"
)

func init() {
	rootCmd.AddCommand(newDynstrCmd())
}

func newDynstrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dynstr",
		Short: "Build a dynamic string one byte at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDynstr()
		},
	}
}

func runDynstr() error {
	va, err := malloc.NewVArena(1 << 16)
	if err != nil {
		return err
	}
	defer va.Release()

	s, err := dynstr.New(8, va)
	if err != nil {
		return err
	}
	for j := 0; j < 43; j++ {
		if err := s.AppendByte(byte('0' + j)); err != nil {
			return err
		}
	}
	printInfo("%s\n", s.UnsafeString())
	printInfo("len: %d cap: %d\n", s.Len(), s.Cap())
	return nil
}
