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

	"github.com/spf13/cobra"

	"github.com/cloudwego/memkit/container/hashmap"
	"github.com/cloudwego/memkit/malloc"
)

var hashmapKey string

func init() {
	cmd := newHashmapCmd()
	cmd.Flags().StringVar(&hashmapKey, "key", "This is testing string!", "Key to insert and look up")
	rootCmd.AddCommand(cmd)
}

func newHashmapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hashmap",
		Short: "Insert and look up a key in a hash map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHashmap()
		},
	}
}

func runHashmap() error {
	va, err := malloc.NewVArena(1 << 16)
	if err != nil {
		return err
	}
	defer va.Release()

	m, err := hashmap.New[int](16, va)
	if err != nil {
		return err
	}
	printInfo("hash map initialized, %d slots\n", m.Cap())

	const val = 1345
	if err := m.InsertString(hashmapKey, val); err != nil {
		return err
	}
	printInfo("inserted %q: %d\n", hashmapKey, val)

	v, ok := m.GetString(hashmapKey)
	if !ok {
		return fmt.Errorf("lookup of %q failed", hashmapKey)
	}
	printInfo("lookup value was: %d\n", v)
	return nil
}
