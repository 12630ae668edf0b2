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

// Package executor admits, dispatches, and records MCP tool executions.
// Admission enforces a global concurrency cap and a per-document session
// cap; the session cap can be bypassed once per breach when the host's
// notification handler answers "continue".
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/inkhost/inkhost/internal/cache"
	"github.com/inkhost/inkhost/internal/config"
	"github.com/inkhost/inkhost/internal/history"
	"github.com/inkhost/inkhost/internal/host"
	"github.com/inkhost/inkhost/internal/log"
	"github.com/inkhost/inkhost/internal/mcp"
)

// ServerManager is the manager surface the executor dispatches through.
// *mcp.Manager implements it.
type ServerManager interface {
	Conn(id string) (mcp.Conn, error)
	Entry(id string) (*config.ServerEntry, bool)
	RecordFailure(id string, err error)
	RecordSuccess(id string)
}

// Request describes one tool execution.
type Request struct {
	// ServerID addresses a specific server. When empty the tool is
	// routed through the discovery snapshot.
	ServerID string

	// Tool is the tool name (required).
	Tool string

	// Arguments is the tool's input payload.
	Arguments map[string]any

	// DocumentPath attributes the execution to a document for session
	// accounting and usage summaries (optional).
	DocumentPath string
}

// Result is the outcome of a successful execution.
type Result struct {
	// ExecutionID uniquely identifies this execution.
	ExecutionID string

	// ServerID is the server that served the call.
	ServerID string

	// Tool is the executed tool.
	Tool string

	// Response is the tool's response payload.
	Response *mcp.ToolCallResponse

	// Cached indicates the response came from the result cache.
	Cached bool

	// Duration is how long the execution took.
	Duration time.Duration
}

// Config configures the executor's admission limits.
type Config struct {
	// ConcurrentLimit caps global in-flight executions (default: 3).
	ConcurrentLimit int

	// SessionLimit caps executions per document session (default: 25).
	SessionLimit int
}

// Executor coordinates tool execution.
type Executor struct {
	// concurrentLimit caps global in-flight executions
	concurrentLimit int

	// sessionLimit caps executions per document session
	sessionLimit int

	// manager provides server connections
	manager ServerManager

	// discovery routes tool names to servers
	discovery *cache.Discovery

	// results memoizes side-effect-free tool calls (optional)
	results *cache.Result

	// documents tracks per-document tool usage (optional)
	documents *cache.Documents

	// store records executions (optional)
	store history.Store

	// notifier answers session-limit prompts
	notifier host.NotificationHandler

	// reporter receives execution counters
	reporter host.StatusReporter

	// logger is used for structured logging
	logger *slog.Logger

	// inflight is the global in-flight execution count
	inflight int

	// sessions counts executions per document path
	sessions map[string]int

	// limiters holds per-server rate limiters, built lazily
	limiters map[string]*rate.Limiter

	// mu protects inflight, sessions, and limiters
	mu sync.Mutex
}

// Options carries the executor's collaborators.
type Options struct {
	// Manager provides server connections (required).
	Manager ServerManager

	// Discovery routes tool names to servers (required).
	Discovery *cache.Discovery

	// Results memoizes side-effect-free tool calls (optional).
	Results *cache.Result

	// Documents tracks per-document tool usage (optional).
	Documents *cache.Documents

	// History records executions (optional).
	History history.Store

	// Notifier answers session-limit prompts (optional).
	Notifier host.NotificationHandler

	// Reporter receives execution counters (optional).
	Reporter host.StatusReporter

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// New creates a tool executor.
func New(cfg Config, opts Options) *Executor {
	if cfg.ConcurrentLimit <= 0 {
		cfg.ConcurrentLimit = 3
	}
	if cfg.SessionLimit <= 0 {
		cfg.SessionLimit = 25
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = host.NopNotificationHandler{}
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = host.NopStatusReporter{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		concurrentLimit: cfg.ConcurrentLimit,
		sessionLimit:    cfg.SessionLimit,
		manager:         opts.Manager,
		discovery:       opts.Discovery,
		results:         opts.Results,
		documents:       opts.Documents,
		store:           opts.History,
		notifier:        notifier,
		reporter:        reporter,
		logger:          logger,
		sessions:        make(map[string]int),
		limiters:        make(map[string]*rate.Limiter),
	}
}

// Execute runs one tool call end to end: route, consult the result
// cache, admit, dispatch, and record. It fails with ToolNotFoundError,
// ServerNotAvailableError, ExecutionLimitError, TimeoutError, or
// ValidationError.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	executionID := uuid.NewString()
	logger := log.WithExecution(e.logger, executionID, req.Tool)

	route, err := e.route(req)
	if err != nil {
		e.record(ctx, req, executionID, "", history.StatusRejected, time.Now(), 0, false, err)
		return nil, err
	}
	serverID := route.ServerID
	logger = log.WithServer(logger, serverID)

	if err := validateArguments(req.Tool, route.Tool.InputSchema, req.Arguments); err != nil {
		e.record(ctx, req, executionID, serverID, history.StatusRejected, time.Now(), 0, false, err)
		return nil, err
	}

	entry, _ := e.manager.Entry(serverID)
	cacheable := entry != nil && entry.IsCacheable(req.Tool)

	var cacheKey string
	if cacheable && e.results != nil {
		key, err := cache.ResultKey(serverID, req.Tool, req.Arguments)
		if err == nil {
			cacheKey = key
			if resp, ok := e.results.Get(key); ok {
				logger.Debug("tool result served from cache")
				e.noteDocumentUse(req.DocumentPath, serverID, req.Tool)
				e.record(ctx, req, executionID, serverID, history.StatusSuccess, time.Now(), 0, true, nil)
				return &Result{
					ExecutionID: executionID,
					ServerID:    serverID,
					Tool:        req.Tool,
					Response:    resp,
					Cached:      true,
				}, nil
			}
		}
	}

	release, err := e.admit(ctx, req.DocumentPath)
	if err != nil {
		e.record(ctx, req, executionID, serverID, history.StatusRejected, time.Now(), 0, false, err)
		return nil, err
	}
	defer release()

	if err := e.waitRateLimit(ctx, serverID, entry); err != nil {
		e.record(ctx, req, executionID, serverID, history.StatusCanceled, time.Now(), 0, false, err)
		return nil, err
	}

	conn, err := e.manager.Conn(serverID)
	if err != nil {
		e.record(ctx, req, executionID, serverID, history.StatusRejected, time.Now(), 0, false, err)
		return nil, err
	}

	started := time.Now()
	logger.Debug("dispatching tool call")

	resp, err := conn.CallTool(ctx, mcp.ToolCallRequest{Name: req.Tool, Arguments: req.Arguments})
	duration := time.Since(started)

	if err != nil {
		status := history.StatusError
		var timeoutErr *mcp.TimeoutError
		if errors.As(err, &timeoutErr) {
			status = history.StatusTimeout
		}
		if mcp.Transient(err) {
			e.manager.RecordFailure(serverID, err)
		}
		logger.Warn("tool call failed", log.Error(err), slog.Int64(log.DurationKey, duration.Milliseconds()))
		e.record(ctx, req, executionID, serverID, status, started, duration, false, err)
		return nil, err
	}

	e.manager.RecordSuccess(serverID)
	e.noteDocumentUse(req.DocumentPath, serverID, req.Tool)

	if cacheable && cacheKey != "" && e.results != nil && !resp.IsError {
		e.results.Put(cacheKey, resp)
	}

	logger.Debug("tool call completed", slog.Int64(log.DurationKey, duration.Milliseconds()), "is_error", resp.IsError)
	e.record(ctx, req, executionID, serverID, history.StatusSuccess, started, duration, false, nil)

	return &Result{
		ExecutionID: executionID,
		ServerID:    serverID,
		Tool:        req.Tool,
		Response:    resp,
		Duration:    duration,
	}, nil
}

// route resolves the request to a server, either as addressed or via
// the discovery snapshot.
func (e *Executor) route(req Request) (cache.ToolRoute, error) {
	if req.ServerID != "" {
		route, ok := e.discovery.LookupOn(req.ServerID, req.Tool)
		if !ok {
			// Distinguish an unknown server from an unknown tool.
			if _, _, serverKnown := e.discovery.ServerTools(req.ServerID); !serverKnown {
				if _, err := e.manager.Conn(req.ServerID); err != nil {
					return cache.ToolRoute{}, err
				}
			}
			return cache.ToolRoute{}, &mcp.ToolNotFoundError{ServerID: req.ServerID, Tool: req.Tool}
		}
		return route, nil
	}

	route, ok := e.discovery.Lookup(req.Tool)
	if !ok {
		return cache.ToolRoute{}, &mcp.ToolNotFoundError{Tool: req.Tool}
	}
	return route, nil
}

// admit performs the admission check. The session-limit prompt is
// awaited without holding the admission lock; a "continue" answer
// bypasses the session cap once but never the concurrency cap.
func (e *Executor) admit(ctx context.Context, documentPath string) (func(), error) {
	e.mu.Lock()

	if e.inflight >= e.concurrentLimit {
		current := e.inflight
		e.mu.Unlock()
		return nil, &ExecutionLimitError{Scope: LimitConcurrent, Limit: e.concurrentLimit, Current: current}
	}

	if documentPath != "" && e.sessions[documentPath] >= e.sessionLimit {
		current := e.sessions[documentPath]
		e.mu.Unlock()

		decision, err := e.notifier.SessionLimitReached(ctx, documentPath, e.sessionLimit, current)
		if err != nil {
			return nil, err
		}
		if decision != host.DecisionContinue {
			return nil, &ExecutionLimitError{
				Scope:        LimitSession,
				Limit:        e.sessionLimit,
				Current:      current,
				DocumentPath: documentPath,
			}
		}

		e.mu.Lock()
		// Concurrency may have filled up while the prompt was open.
		if e.inflight >= e.concurrentLimit {
			current := e.inflight
			e.mu.Unlock()
			return nil, &ExecutionLimitError{Scope: LimitConcurrent, Limit: e.concurrentLimit, Current: current}
		}
	}

	e.inflight++
	if documentPath != "" {
		e.sessions[documentPath]++
		e.reporter.ReportSessionCount(documentPath, e.sessions[documentPath])
	}
	inflight := e.inflight
	e.mu.Unlock()

	e.reporter.ReportActiveExecutions(inflight)

	var once sync.Once
	release := func() {
		once.Do(func() {
			e.mu.Lock()
			e.inflight--
			inflight := e.inflight
			e.mu.Unlock()
			e.reporter.ReportActiveExecutions(inflight)
		})
	}
	return release, nil
}

// waitRateLimit blocks on the server's rate limiter, if configured.
func (e *Executor) waitRateLimit(ctx context.Context, serverID string, entry *config.ServerEntry) error {
	if entry == nil || entry.RateLimit <= 0 {
		return nil
	}

	e.mu.Lock()
	limiter, ok := e.limiters[serverID]
	if !ok {
		burst := entry.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(entry.RateLimit), burst)
		e.limiters[serverID] = limiter
	}
	e.mu.Unlock()

	return limiter.Wait(ctx)
}

// noteDocumentUse records a document's tool use for UI summaries.
func (e *Executor) noteDocumentUse(documentPath, serverID, tool string) {
	if documentPath == "" || e.documents == nil {
		return
	}
	e.documents.RecordUse(documentPath, serverID, tool)
}

// record appends an execution to the history store.
func (e *Executor) record(ctx context.Context, req Request, executionID, serverID, status string, started time.Time, duration time.Duration, cached bool, execErr error) {
	if e.store == nil {
		return
	}

	rec := history.Record{
		ID:           executionID,
		DocumentPath: req.DocumentPath,
		ServerID:     serverID,
		Tool:         req.Tool,
		Status:       status,
		Cached:       cached,
		StartedAt:    started,
		Duration:     duration,
	}
	if execErr != nil {
		rec.Error = execErr.Error()
	}
	if len(req.Arguments) > 0 {
		if encoded, err := json.Marshal(req.Arguments); err == nil {
			rec.Arguments = string(encoded)
		}
	}

	if err := e.store.Append(ctx, rec); err != nil {
		e.logger.Warn("failed to record execution", slog.String(log.ExecutionIDKey, executionID), log.Error(err))
	}
}
