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
	"github.com/inkhost/inkhost/internal/history"
)

// newHistoryCommand creates the 'history' command.
func newHistoryCommand(opts *globalOptions) *cobra.Command {
	var (
		document string
		limit    int
		clear    bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the execution history",
		Long: `List recorded tool executions, newest first. Requires a persistent
history path in the configuration; in-memory history does not survive
between invocations.

Examples:
  inkhost history
  inkhost history --document notes/a.md --limit 10
  inkhost history --clear`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, document, limit, clear)
		},
	}

	cmd.Flags().StringVarP(&document, "document", "d", "", "only executions for this document")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum records to show")
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the history instead of listing it")

	return cmd
}

func runHistory(opts *globalOptions, document string, limit int, clear bool) error {
	a, err := opts.newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	if clear {
		if err := a.History.Clear(ctx); err != nil {
			return err
		}
		fmt.Println(shared.RenderOK("history cleared"))
		return nil
	}

	var records []history.Record
	if document != "" {
		records, err = a.History.ListByDocument(ctx, document, limit)
	} else {
		records, err = a.History.List(ctx, limit)
	}
	if err != nil {
		return err
	}

	if opts.jsonOut {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println(shared.RenderLabel("no executions recorded"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, shared.Header.Render("WHEN")+"\t"+shared.Header.Render("TOOL")+"\t"+shared.Header.Render("SERVER")+"\t"+shared.Header.Render("STATUS")+"\t"+shared.Header.Render("DURATION")+"\t"+shared.Header.Render("DOCUMENT"))
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Tool,
			rec.ServerID,
			renderStatus(rec),
			rec.Duration.Round(time.Millisecond),
			shared.Muted.Render(rec.DocumentPath),
		)
	}
	return w.Flush()
}

func renderStatus(rec history.Record) string {
	switch rec.Status {
	case history.StatusSuccess:
		if rec.Cached {
			return shared.StatusOK.Render("cached")
		}
		return shared.StatusOK.Render(rec.Status)
	case history.StatusRejected, history.StatusCanceled:
		return shared.StatusWarn.Render(rec.Status)
	default:
		return shared.StatusError.Render(rec.Status)
	}
}
