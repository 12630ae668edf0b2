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
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkhost/inkhost/internal/executor"
	"github.com/inkhost/inkhost/internal/mcp"
)

// fakeDispatcher returns a canned response and captures the request.
type fakeDispatcher struct {
	mu       sync.Mutex
	requests []executor.Request
	response *mcp.ToolCallResponse
	err      error
}

func (d *fakeDispatcher) Execute(ctx context.Context, req executor.Request) (*executor.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	if d.err != nil {
		return nil, d.err
	}
	return &executor.Result{
		ExecutionID: "exec-1",
		ServerID:    "search",
		Tool:        req.Tool,
		Response:    d.response,
	}, nil
}

// recordingWriter captures written results and lock ordering.
type recordingWriter struct {
	mu      sync.Mutex
	written []string
	locked  bool
}

func (w *recordingWriter) WriteResult(ctx context.Context, documentPath, executionID, output string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = append(w.written, output)
	return nil
}

// trackingLocker asserts the lock is held while the writer runs.
type trackingLocker struct {
	mu    sync.Mutex
	held  bool
	locks int
}

func (l *trackingLocker) Lock(ctx context.Context, documentPath string) (func(), error) {
	l.mu.Lock()
	l.held = true
	l.locks++
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		l.held = false
		l.mu.Unlock()
	}, nil
}

func textResponse(text string) *mcp.ToolCallResponse {
	return &mcp.ToolCallResponse{Content: []mcp.ContentItem{{Type: "text", Text: text}}}
}

func TestRunner_PlainTextResult(t *testing.T) {
	d := &fakeDispatcher{response: textResponse("plain output")}
	r := NewRunner(RunnerOptions{Dispatcher: d})

	res, err := r.Run(context.Background(), "notes/a.md", "tool: web_search\n")
	require.NoError(t, err)
	require.Equal(t, "plain output", res.Output)
	require.Equal(t, "exec-1", res.ExecutionID)

	require.Len(t, d.requests, 1)
	require.Equal(t, "notes/a.md", d.requests[0].DocumentPath)
	require.Equal(t, "web_search", d.requests[0].Tool)
}

func TestRunner_FilterAppliedToJSONResult(t *testing.T) {
	d := &fakeDispatcher{response: textResponse(`{"results":[{"title":"first"},{"title":"second"}]}`)}
	r := NewRunner(RunnerOptions{Dispatcher: d})

	res, err := r.Run(context.Background(), "a.md", "tool: web_search\nfilter: .results[0].title\n")
	require.NoError(t, err)
	require.Equal(t, "first", res.Output)
}

func TestRunner_FilterOnNonJSONTreatsTextAsString(t *testing.T) {
	d := &fakeDispatcher{response: textResponse("not json")}
	r := NewRunner(RunnerOptions{Dispatcher: d})

	res, err := r.Run(context.Background(), "a.md", "tool: web_search\nfilter: .\n")
	require.NoError(t, err)
	require.Equal(t, "not json", res.Output)
}

func TestRunner_StructuredFilterResultEncodedAsJSON(t *testing.T) {
	d := &fakeDispatcher{response: textResponse(`{"results":["a","b"]}`)}
	r := NewRunner(RunnerOptions{Dispatcher: d})

	res, err := r.Run(context.Background(), "a.md", "tool: web_search\nfilter: .results\n")
	require.NoError(t, err)
	require.JSONEq(t, `["a","b"]`, res.Output)
}

func TestRunner_InvalidFilterRejectedBeforeDispatch(t *testing.T) {
	d := &fakeDispatcher{response: textResponse("x")}
	r := NewRunner(RunnerOptions{Dispatcher: d})

	_, err := r.Run(context.Background(), "a.md", "tool: web_search\nfilter: .results[unclosed\n")
	var parseErr *YAMLParseError
	require.ErrorAs(t, err, &parseErr)
	require.Empty(t, d.requests, "no execution is spent on an invalid filter")
}

func TestRunner_ParseErrorPropagates(t *testing.T) {
	r := NewRunner(RunnerOptions{Dispatcher: &fakeDispatcher{}})

	_, err := r.Run(context.Background(), "a.md", "server: search\n")
	var parseErr *YAMLParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestRunner_WritesResultUnderLock(t *testing.T) {
	d := &fakeDispatcher{response: textResponse("written output")}
	writer := &recordingWriter{}
	locker := &trackingLocker{}
	r := NewRunner(RunnerOptions{Dispatcher: d, Writer: writer, Locker: locker})

	_, err := r.Run(context.Background(), "a.md", "tool: web_search\n")
	require.NoError(t, err)
	require.Equal(t, []string{"written output"}, writer.written)
	require.Equal(t, 1, locker.locks)
	require.False(t, locker.held, "lock released after write")
}
