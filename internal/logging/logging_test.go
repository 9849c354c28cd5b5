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

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefault(t *testing.T) {
	ctx := context.Background()
	assert.False(t, newDefault("").Enabled(ctx, slog.LevelDebug))
	assert.True(t, newDefault("").Enabled(ctx, slog.LevelWarn))
	assert.True(t, newDefault("true").Enabled(ctx, slog.LevelDebug))
	assert.True(t, newDefault("1").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newDefault("nope").Enabled(ctx, slog.LevelDebug))
}

func TestSetLogger(t *testing.T) {
	old := Logger()
	defer SetLogger(old)

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	Logger().Info("hello", "size", 8)
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "size=8")

	SetLogger(nil)
	assert.NotNil(t, Logger())
}

func TestSetLevel(t *testing.T) {
	defer SetLogger(nil)

	ctx := context.Background()
	SetLevel(slog.LevelDebug)
	assert.True(t, Logger().Enabled(ctx, slog.LevelDebug))
	SetLevel(slog.LevelError)
	assert.False(t, Logger().Enabled(ctx, slog.LevelWarn))
	assert.True(t, Logger().Enabled(ctx, slog.LevelError))
}
