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
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkhost/inkhost/internal/commands/shared"
	"github.com/inkhost/inkhost/internal/mcp"
)

// newStatusCommand creates the 'status' command.
func newStatusCommand(opts *globalOptions) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the lifecycle state of every configured server",
		Long: `Connect the configured servers and print each one's lifecycle state,
tool count, and failure details.

Examples:
  inkhost status
  inkhost status --json
  inkhost status --wait 10s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, wait)
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 15*time.Second, "how long to wait for connections to settle")

	return cmd
}

func runStatus(opts *globalOptions, wait time.Duration) error {
	a, err := opts.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	_ = a.WaitReady(ctx)

	statuses := a.Manager.HealthAll()
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ServerID < statuses[j].ServerID })

	if opts.jsonOut {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(statuses)
	}

	if len(statuses) == 0 {
		fmt.Println(shared.RenderLabel("no servers configured"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, shared.Header.Render("SERVER")+"\t"+shared.Header.Render("STATE")+"\t"+shared.Header.Render("TOOLS")+"\t"+shared.Header.Render("DETAIL"))
	for _, s := range statuses {
		detail := s.LastError
		if s.State == mcp.StateConnected {
			detail = fmt.Sprintf("up %s", s.Uptime.Round(time.Second))
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			s.ServerID,
			shared.RenderServerState(string(s.State)),
			s.ToolCount,
			shared.Muted.Render(detail),
		)
	}
	return w.Flush()
}
