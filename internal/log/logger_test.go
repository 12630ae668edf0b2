// Copyright 2026 The Inkhost Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	logger := New(nil)
	require.NotNil(t, logger)
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	logger.Info("test message", slog.String(ServerKey, "filesystem"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "test message", entry["msg"])
	require.Equal(t, "filesystem", entry["server"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatText, Output: &buf})

	logger.Info("hello")
	require.Contains(t, buf.String(), "msg=hello")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "warn", Format: FormatText, Output: &buf})

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	require.NotContains(t, out, "dropped")
	require.Contains(t, out, "kept")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestFromEnv_Debug(t *testing.T) {
	os.Setenv("INKHOST_DEBUG", "1")
	defer os.Unsetenv("INKHOST_DEBUG")

	cfg := FromEnv()
	require.Equal(t, "debug", cfg.Level)
	require.True(t, cfg.AddSource)
}

func TestFromEnv_LevelPrecedence(t *testing.T) {
	os.Setenv("INKHOST_LOG_LEVEL", "error")
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Unsetenv("INKHOST_LOG_LEVEL")
	defer os.Unsetenv("LOG_LEVEL")

	cfg := FromEnv()
	require.Equal(t, "error", cfg.Level)
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Format: FormatJSON, Output: &buf})

	WithComponent(logger, "executor").Info("ready")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "executor", entry["component"])
}

func TestSanitizeSecret(t *testing.T) {
	require.Equal(t, "[REDACTED]", SanitizeSecret("super-secret-token"))
	require.Equal(t, "[REDACTED]", SanitizeSecret(""))
}
