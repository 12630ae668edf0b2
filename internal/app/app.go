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

// Package app wires the configuration, server manager, caches, history
// store, executor, and block runner into one runnable unit shared by
// the CLI commands.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkhost/inkhost/internal/cache"
	"github.com/inkhost/inkhost/internal/config"
	"github.com/inkhost/inkhost/internal/executor"
	"github.com/inkhost/inkhost/internal/history"
	"github.com/inkhost/inkhost/internal/host"
	"github.com/inkhost/inkhost/internal/invoke"
	"github.com/inkhost/inkhost/internal/mcp"
	"github.com/inkhost/inkhost/internal/secrets"
)

// Options configures the application assembly.
type Options struct {
	// ConfigPath is the configuration file (defaults to config.DefaultPath).
	ConfigPath string

	// Logger is used throughout (defaults to slog.Default).
	Logger *slog.Logger

	// Notifier answers session-limit prompts and surfaces auto-disable
	// events (optional).
	Notifier host.NotificationHandler

	// Reporter receives lifecycle and execution counters (optional).
	Reporter host.StatusReporter

	// Locker serializes document edits (optional).
	Locker host.DocumentLocker

	// Writer writes block results back into documents (optional).
	Writer invoke.DocumentWriter

	// WatchConfig enables hot reload of the configuration file.
	WatchConfig bool
}

// App is the assembled tool-execution host.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Manager   *mcp.Manager
	Discovery *cache.Discovery
	Results   *cache.Result
	Documents *cache.Documents
	History   history.Store
	Executor  *executor.Executor
	Runner    *invoke.Runner

	watcher *config.Watcher
}

// New loads configuration and assembles the application. Servers begin
// connecting immediately; use WaitReady to block until they settle.
func New(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	path := opts.ConfigPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	discovery := cache.NewDiscovery()
	results := cache.NewResult(
		time.Duration(cfg.Caches.ResultTTL)*time.Second,
		cfg.Caches.ResultMaxEntries,
	)
	documents := cache.NewDocuments(
		time.Duration(cfg.Caches.ResultTTL)*time.Second,
		cfg.Caches.DocumentMaxEntries,
	)

	var store history.Store
	if cfg.History.Path != "" {
		store, err = history.NewSQLiteStore(history.SQLiteConfig{
			Path:       cfg.History.Path,
			MaxEntries: cfg.History.MaxEntries,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
	} else {
		store = history.NewMemoryStore(cfg.History.MaxEntries)
	}

	manager := mcp.NewManager(mcp.ManagerConfig{
		Policy:           mcp.RetryPolicyFromConfig(cfg.Retry),
		FailureThreshold: cfg.Limits.FailureThreshold,
		DefaultTimeout:   time.Duration(cfg.Limits.CallTimeout) * time.Second,
		Secrets:          secrets.NewResolver(),
		Reporter:         opts.Reporter,
		Notifier:         opts.Notifier,
		Logger:           logger,
		OnToolsChanged: func(serverID string, tools []mcp.ToolDefinition) {
			discovery.Update(serverID, tools)
		},
		OnServerDown: func(serverID string) {
			discovery.MarkStale(serverID)
		},
	})

	for id, entry := range cfg.Servers {
		if err := manager.Add(id, entry); err != nil {
			logger.Error("failed to register server", "server", id, "error", err)
		}
	}

	exec := executor.New(
		executor.Config{
			ConcurrentLimit: cfg.Limits.ConcurrentLimit,
			SessionLimit:    cfg.Limits.SessionLimit,
		},
		executor.Options{
			Manager:   manager,
			Discovery: discovery,
			Results:   results,
			Documents: documents,
			History:   store,
			Notifier:  opts.Notifier,
			Reporter:  opts.Reporter,
			Logger:    logger,
		},
	)

	runner := invoke.NewRunner(invoke.RunnerOptions{
		Dispatcher: exec,
		Locker:     opts.Locker,
		Writer:     opts.Writer,
		Logger:     logger,
	})

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Manager:   manager,
		Discovery: discovery,
		Results:   results,
		Documents: documents,
		History:   store,
		Executor:  exec,
		Runner:    runner,
	}

	if opts.WatchConfig {
		watcher, err := config.NewWatcher(config.WatcherConfig{
			Path:     path,
			OnReload: a.applyConfig,
			Logger:   logger,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.watcher = watcher
	}

	return a, nil
}

// applyConfig reconciles a reloaded configuration. Reconfiguration
// invalidates the result cache since server semantics may have changed.
func (a *App) applyConfig(cfg *config.Config) {
	a.Config = cfg
	a.Manager.Apply(cfg)
	a.Results.InvalidateAll()
}

// WaitReady blocks until every enabled server has left the connecting
// and retrying states, or the context expires.
func (a *App) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		settled := true
		for _, status := range a.Manager.HealthAll() {
			// Disconnected counts as unsettled: a freshly added server
			// sits there until its monitor picks it up.
			if status.State == mcp.StateDisconnected || status.State == mcp.StateConnecting || status.State == mcp.StateRetrying {
				settled = false
				break
			}
		}
		if settled {
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close shuts down the application.
func (a *App) Close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.Manager != nil {
		_ = a.Manager.Close()
	}
	if a.History != nil {
		_ = a.History.Close()
	}
}
