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
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inkhost/inkhost/internal/commands/shared"
	"github.com/inkhost/inkhost/internal/executor"
)

// newCallCommand creates the 'call' command.
func newCallCommand(opts *globalOptions) *cobra.Command {
	var (
		serverID string
		document string
		wait     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "call <tool> [key=value ...]",
		Short: "Execute a single tool invocation",
		Long: `Execute one tool call and print its result. Argument values are
parsed as YAML scalars, so numbers and booleans keep their types.

Examples:
  inkhost call web_search query="go generics"
  inkhost call read_file --server files path=notes/a.md
  inkhost call web_search query=go limit=5 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, serverID, document, wait, args[0], args[1:])
		},
	}

	cmd.Flags().StringVarP(&serverID, "server", "s", "", "dispatch to a specific server")
	cmd.Flags().StringVarP(&document, "document", "d", "", "attribute the execution to a document")
	cmd.Flags().DurationVar(&wait, "wait", 15*time.Second, "how long to wait for connections to settle")

	return cmd
}

func runCall(opts *globalOptions, serverID, document string, wait time.Duration, tool string, pairs []string) error {
	arguments, err := parseArguments(pairs)
	if err != nil {
		return err
	}

	a, err := opts.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	_ = a.WaitReady(ctx)

	res, err := a.Executor.Execute(context.Background(), executor.Request{
		ServerID:     serverID,
		Tool:         tool,
		Arguments:    arguments,
		DocumentPath: document,
	})
	if err != nil {
		return err
	}

	if opts.jsonOut {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(res)
	}

	label := shared.RenderOK(fmt.Sprintf("%s on %s (%s)", res.Tool, res.ServerID, res.Duration.Round(time.Millisecond)))
	if res.Cached {
		label += " " + shared.Muted.Render("(cached)")
	}
	fmt.Fprintln(os.Stderr, label)

	if res.Response.IsError {
		fmt.Fprintln(os.Stderr, shared.RenderWarn("tool reported an error payload"))
	}
	fmt.Println(res.Response.Text())
	return nil
}

// parseArguments turns key=value pairs into a typed argument map.
func parseArguments(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	arguments := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		arguments[key] = value
	}
	return arguments, nil
}
