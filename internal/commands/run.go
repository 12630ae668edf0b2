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
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkhost/inkhost/internal/commands/shared"
)

// newRunCommand creates the 'run' command.
func newRunCommand(opts *globalOptions) *cobra.Command {
	var (
		document string
		wait     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Execute a tool block from a file or stdin",
		Long: `Execute a YAML tool block, the same format documents embed:

  tool: web_search
  server: search
  args:
    query: how do goroutines work
  filter: .results[0].title

Reads from stdin when no file is given.

Examples:
  inkhost run block.yaml
  cat block.yaml | inkhost run --document notes/a.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readBlock(args)
			if err != nil {
				return err
			}
			return runBlock(opts, document, wait, source)
		},
	}

	cmd.Flags().StringVarP(&document, "document", "d", "", "attribute the execution to a document")
	cmd.Flags().DurationVar(&wait, "wait", 15*time.Second, "how long to wait for connections to settle")

	return cmd
}

func readBlock(args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read block: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read block from stdin: %w", err)
	}
	return string(data), nil
}

func runBlock(opts *globalOptions, document string, wait time.Duration, source string) error {
	a, err := opts.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	_ = a.WaitReady(ctx)

	res, err := a.Runner.Run(context.Background(), document, source)
	if err != nil {
		return err
	}

	if opts.jsonOut {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(res)
	}

	label := shared.RenderOK(fmt.Sprintf("%s on %s", res.Tool, res.ServerID))
	if res.Cached {
		label += " " + shared.Muted.Render("(cached)")
	}
	fmt.Fprintln(os.Stderr, label)
	fmt.Println(res.Output)
	return nil
}
