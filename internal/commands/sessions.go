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
)

// newSessionsCommand creates the 'sessions' command group.
func newSessionsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage per-document execution sessions",
		Long: `Manage the per-document session counters that bound how many tool
executions a single document may trigger.

Commands:
  reset  Reset the session counter for a document, or all documents`,
	}

	cmd.AddCommand(newSessionsResetCommand(opts))

	return cmd
}

// newSessionsResetCommand creates 'sessions reset'.
func newSessionsResetCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [document]",
		Short: "Reset session counters",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			document := ""
			if len(args) == 1 {
				document = args[0]
			}
			return runSessionsReset(opts, document)
		},
	}
}

func runSessionsReset(opts *globalOptions, document string) error {
	a, err := opts.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if document == "" {
		a.Executor.ResetAllSessions()
		a.Documents.InvalidateAll()
		fmt.Println(shared.RenderOK("reset all document sessions"))
		return nil
	}

	a.Executor.ResetSession(document)
	a.Documents.Invalidate(document)
	fmt.Println(shared.RenderOK("reset sessions for " + document))
	return nil
}
