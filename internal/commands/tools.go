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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkhost/inkhost/internal/commands/shared"
)

// newToolsCommand creates the 'tools' command.
func newToolsCommand(opts *globalOptions) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools discovered across connected servers",
		Long: `Connect the configured servers and list every discovered tool with
its owning server. Stale entries come from servers that have dropped
since their tool list was last refreshed.

Examples:
  inkhost tools
  inkhost tools --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTools(opts, wait)
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 15*time.Second, "how long to wait for connections to settle")

	return cmd
}

func runTools(opts *globalOptions, wait time.Duration) error {
	a, err := opts.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	_ = a.WaitReady(ctx)

	routes := a.Discovery.Routes()

	if opts.jsonOut {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(routes)
	}

	if len(routes) == 0 {
		fmt.Println(shared.RenderLabel("no tools discovered"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, shared.Header.Render("TOOL")+"\t"+shared.Header.Render("SERVER")+"\t"+shared.Header.Render("DESCRIPTION"))
	for _, route := range routes {
		name := route.Tool.Name
		if route.Stale {
			name += " " + shared.StatusWarn.Render("(stale)")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, route.ServerID, shared.Muted.Render(truncate(route.Tool.Description, 60)))
	}
	return w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
