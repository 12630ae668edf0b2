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

package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkhost/inkhost/internal/cache"
	"github.com/inkhost/inkhost/internal/config"
	"github.com/inkhost/inkhost/internal/history"
	"github.com/inkhost/inkhost/internal/mcp"
)

func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.Save(cfg, path))
	return path
}

func TestNew_AssemblesWithDefaults(t *testing.T) {
	path := writeConfig(t, config.Default())

	a, err := New(Options{ConfigPath: path})
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Manager)
	require.NotNil(t, a.Discovery)
	require.NotNil(t, a.Results)
	require.NotNil(t, a.Executor)
	require.NotNil(t, a.Runner)

	// No servers configured, so the memory history store is used and
	// readiness settles immediately.
	_, ok := a.History.(*history.MemoryStore)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.WaitReady(ctx))
}

func TestNew_SQLiteHistoryWhenPathSet(t *testing.T) {
	cfg := config.Default()
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")
	path := writeConfig(t, cfg)

	a, err := New(Options{ConfigPath: path})
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.History.(*history.SQLiteStore)
	require.True(t, ok)
}

func TestNew_MissingConfigFails(t *testing.T) {
	_, err := New(Options{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	require.Error(t, err)
}

func TestApplyConfig_InvalidatesResultCache(t *testing.T) {
	path := writeConfig(t, config.Default())

	a, err := New(Options{ConfigPath: path})
	require.NoError(t, err)
	defer a.Close()

	key, err := cache.ResultKey("search", "web_search", map[string]any{"query": "go"})
	require.NoError(t, err)
	a.Results.Put(key, &mcp.ToolCallResponse{})
	require.Equal(t, 1, a.Results.Len())

	a.applyConfig(config.Default())
	require.Equal(t, 0, a.Results.Len())
}
