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

// Package commands implements the inkhost CLI.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/inkhost/inkhost/internal/app"
	"github.com/inkhost/inkhost/internal/commands/shared"
	"github.com/inkhost/inkhost/internal/log"
)

// globalOptions carries the persistent flags shared by all commands.
type globalOptions struct {
	// configPath overrides the default configuration file location
	configPath string

	// debug enables debug logging
	debug bool

	// jsonOut switches command output to JSON
	jsonOut bool
}

// NewRootCommand creates the inkhost root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:     "inkhost",
		Short:   "Execute MCP tools from document tool blocks",
		Version: version,
		Long: `inkhost manages a set of MCP (Model Context Protocol) tool servers
and executes tool invocations against them with admission control,
reconnection backoff, and result caching.

Commands:
  serve    Run the execution host with config hot reload and metrics
  status   Show the lifecycle state of every configured server
  tools    List the tools discovered across connected servers
  call     Execute a single tool invocation
  run      Execute a tool block from a file or stdin
  history  Inspect the execution history
  server   Enable or disable a configured server
  sessions Reset per-document session counters`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file path")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "output as JSON")

	root.AddCommand(
		newServeCommand(opts),
		newStatusCommand(opts),
		newToolsCommand(opts),
		newCallCommand(opts),
		newRunCommand(opts),
		newHistoryCommand(opts),
		newServerCommand(opts),
		newSessionsCommand(opts),
	)

	return root
}

// logger builds the CLI logger, honoring the --debug flag over the
// environment.
func (o *globalOptions) logger() *slog.Logger {
	cfg := log.FromEnv()
	cfg.Output = os.Stderr
	if o.debug {
		cfg.Level = "debug"
	}
	return log.New(cfg)
}

// newApp assembles the application for interactive commands: console
// prompts, no config watching.
func (o *globalOptions) newApp() (*app.App, error) {
	return app.New(app.Options{
		ConfigPath: o.configPath,
		Logger:     o.logger(),
		Notifier:   &shared.ConsoleNotifier{In: os.Stdin, Out: os.Stderr},
	})
}
