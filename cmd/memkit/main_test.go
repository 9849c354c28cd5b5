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
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/memkit/internal/logging"
)

// runCommand executes the root command with args and returns its output.
func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return buf.String()
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantContain []string
	}{
		{"arena", []string{"arena", "--items", "100"}, []string{"len: 100 cap: 128"}},
		{"varena", []string{"varena", "--items", "100", "--size", "65536"}, []string{"len: 100 cap: 128", "committed: "}},
		{"pool", []string{"pool", "--chunk", "50", "--align", "32"}, []string{
			"chunk size: 64 chunks: 64", "reused after free: true", "allocated before exhaustion: 64",
		}},
		{"buddy", []string{"buddy"}, []string{"len: 200 cap: 384 first: 0 last: 199", "block kept: true"}},
		{"dynstr", []string{"dynstr"}, []string{"0123456789:;<=>?@ABCDEFGHIJKLMNOPQRSTUVWXYZ", "len: 43"}},
		{"hashmap", []string{"hashmap", "--key", "memkit"}, []string{`inserted "memkit": 1345`, "lookup value was: 1345"}},
		{"copy", []string{"copy"}, []string{"[24]: "}},
		{"assign", []string{"assign"}, []string{"B before assignment:", "[24]: "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := runCommand(t, tt.args...)
			for _, want := range tt.wantContain {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestVerbose(t *testing.T) {
	t.Cleanup(func() {
		verbose = false
		logging.SetLogger(nil)
	})
	runCommand(t, "--verbose", "dynstr")
	assert.True(t, logging.Logger().Enabled(context.Background(), slog.LevelDebug))
}
