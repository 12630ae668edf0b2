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

package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/inkhost/inkhost/internal/executor"
	"github.com/inkhost/inkhost/internal/host"
	"github.com/inkhost/inkhost/internal/mcp"
)

// Dispatcher is the executor surface the runner dispatches through.
// *executor.Executor implements it.
type Dispatcher interface {
	Execute(ctx context.Context, req executor.Request) (*executor.Result, error)
}

// DocumentWriter writes a rendered result back into a document. The
// runner serializes writes through the host's document lock.
type DocumentWriter interface {
	WriteResult(ctx context.Context, documentPath, executionID, output string) error
}

// BlockResult is the rendered outcome of one tool block.
type BlockResult struct {
	// ExecutionID identifies the underlying execution
	ExecutionID string

	// ServerID is the server that served the call
	ServerID string

	// Tool is the executed tool
	Tool string

	// Output is the rendered result text
	Output string

	// Cached indicates the result came from the result cache
	Cached bool

	// IsError indicates the tool itself reported an error payload
	IsError bool
}

// Runner executes parsed tool blocks end to end.
type Runner struct {
	// dispatcher runs the tool call
	dispatcher Dispatcher

	// filter evaluates jq expressions on results
	filter *Filter

	// locker serializes document edits (optional)
	locker host.DocumentLocker

	// writer writes results back into documents (optional)
	writer DocumentWriter

	// logger is used for structured logging
	logger *slog.Logger
}

// RunnerOptions carries the runner's collaborators.
type RunnerOptions struct {
	// Dispatcher runs tool calls (required).
	Dispatcher Dispatcher

	// Filter evaluates jq expressions (defaults to a fresh Filter).
	Filter *Filter

	// Locker serializes document edits (optional).
	Locker host.DocumentLocker

	// Writer writes results back into documents (optional).
	Writer DocumentWriter

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// NewRunner creates a tool block runner.
func NewRunner(opts RunnerOptions) *Runner {
	filter := opts.Filter
	if filter == nil {
		filter = NewFilter(0, 0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		dispatcher: opts.Dispatcher,
		filter:     filter,
		locker:     opts.Locker,
		writer:     opts.Writer,
		logger:     logger,
	}
}

// Run parses and executes a tool block, applying its filter and, when a
// writer is configured, writing the rendered output back into the
// document under the document lock.
func (r *Runner) Run(ctx context.Context, documentPath, source string) (*BlockResult, error) {
	inv, err := Parse(source)
	if err != nil {
		return nil, err
	}

	// Catch filter syntax errors before spending an execution.
	if err := r.filter.Validate(inv.Filter); err != nil {
		return nil, &YAMLParseError{Detail: err.Error(), Cause: err}
	}

	res, err := r.dispatcher.Execute(ctx, executor.Request{
		ServerID:     inv.ServerID,
		Tool:         inv.Tool,
		Arguments:    inv.Arguments,
		DocumentPath: documentPath,
	})
	if err != nil {
		return nil, err
	}

	output, err := r.render(ctx, inv, res.Response)
	if err != nil {
		return nil, err
	}

	result := &BlockResult{
		ExecutionID: res.ExecutionID,
		ServerID:    res.ServerID,
		Tool:        res.Tool,
		Output:      output,
		Cached:      res.Cached,
		IsError:     res.Response.IsError,
	}

	if r.writer != nil {
		if err := r.write(ctx, documentPath, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// render applies the block's filter and flattens the response to text.
func (r *Runner) render(ctx context.Context, inv *Invocation, resp *mcp.ToolCallResponse) (string, error) {
	text := resp.Text()
	if inv.Filter == "" {
		return text, nil
	}

	// Filters operate on the response's JSON payload; non-JSON text is
	// filtered as a plain string.
	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		data = text
	}

	filtered, err := r.filter.Apply(ctx, inv.Filter, data)
	if err != nil {
		return "", fmt.Errorf("filter %q: %w", inv.Filter, err)
	}

	switch v := filtered.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		encoded, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode filtered result: %w", err)
		}
		return string(encoded), nil
	}
}

// write stores the rendered output in the document, holding the
// document lock so concurrent executions serialize their edits.
func (r *Runner) write(ctx context.Context, documentPath string, result *BlockResult) error {
	if r.locker != nil {
		release, err := r.locker.Lock(ctx, documentPath)
		if err != nil {
			return fmt.Errorf("failed to lock document %s: %w", documentPath, err)
		}
		defer release()
	}

	if err := r.writer.WriteResult(ctx, documentPath, result.ExecutionID, result.Output); err != nil {
		return fmt.Errorf("failed to write result to %s: %w", documentPath, err)
	}
	return nil
}
