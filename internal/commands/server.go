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

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkhost/inkhost/internal/commands/shared"
	"github.com/inkhost/inkhost/internal/config"
)

// newServerCommand creates the 'server' command group.
func newServerCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Enable or disable a configured server",
		Long: `Manage the enabled flag of configured servers. Disabling is
persisted in the configuration file; a running host picks the change
up through config reload. Re-enabling is the manual step that clears
an auto-disabled server.

Commands:
  enable   Enable a server
  disable  Disable a server`,
	}

	cmd.AddCommand(
		newServerToggleCommand(opts, "enable", true),
		newServerToggleCommand(opts, "disable", false),
	)

	return cmd
}

// newServerToggleCommand creates 'server enable' or 'server disable'.
func newServerToggleCommand(opts *globalOptions, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <server>",
		Short: verbTitle(verb) + " a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerToggle(opts, args[0], enabled)
		},
	}
}

func verbTitle(verb string) string {
	return string(verb[0]-'a'+'A') + verb[1:]
}

func runServerToggle(opts *globalOptions, serverID string, enabled bool) error {
	path := opts.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	entry, ok := cfg.Servers[serverID]
	if !ok {
		return fmt.Errorf("server not found: %s", serverID)
	}

	entry.Enabled = &enabled
	if err := config.Save(cfg, path); err != nil {
		return err
	}

	if enabled {
		fmt.Println(shared.RenderOK("enabled " + serverID))
	} else {
		fmt.Println(shared.RenderWarn("disabled " + serverID))
	}
	return nil
}
