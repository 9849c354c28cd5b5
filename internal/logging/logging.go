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

// Package logging holds the process-wide logger used by memkit packages.
package logging

import (
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
)

// EnvDebug enables debug level logging when set to a true value.
const EnvDebug = "MEMKIT_DEBUG"

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(newDefault(os.Getenv(EnvDebug)))
}

func newDefault(env string) *slog.Logger {
	level := slog.LevelWarn
	if on, _ := strconv.ParseBool(env); on {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return logger.Load()
}

// SetLogger replaces the current logger. A nil l restores the default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newDefault(os.Getenv(EnvDebug))
	}
	logger.Store(l)
}

// SetLevel installs a default-format logger at the given level.
func SetLevel(level slog.Level) {
	logger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
