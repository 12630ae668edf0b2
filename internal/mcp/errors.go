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

package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"
)

// ToolNotFoundError indicates the addressed tool is unknown on the server.
type ToolNotFoundError struct {
	// ServerID is the addressed server, empty when routing by tool name.
	ServerID string
	// Tool is the unknown tool name.
	Tool string
}

func (e *ToolNotFoundError) Error() string {
	if e.ServerID == "" {
		return fmt.Sprintf("tool %q not found on any connected server", e.Tool)
	}
	return fmt.Sprintf("tool %q not found on server %q", e.Tool, e.ServerID)
}

// ServerNotAvailableError indicates the addressed server cannot accept
// dispatch: it is unknown, disabled, or not connected.
type ServerNotAvailableError struct {
	// ServerID is the addressed server.
	ServerID string
	// State is the server's lifecycle state at rejection time.
	State State
	// Reason describes why dispatch was refused.
	Reason string
}

func (e *ServerNotAvailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("server %q not available (%s): %s", e.ServerID, e.State, e.Reason)
	}
	return fmt.Sprintf("server %q not available (%s)", e.ServerID, e.State)
}

// TimeoutError indicates a tool call exceeded its per-call timeout.
type TimeoutError struct {
	// ServerID is the server the call was dispatched to.
	ServerID string
	// Tool is the tool that timed out.
	Tool string
	// Timeout is the configured per-call timeout.
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tool %q on server %q timed out after %s", e.Tool, e.ServerID, e.Timeout)
}

// ValidationError indicates malformed tool parameters.
type ValidationError struct {
	// Tool is the tool whose parameters failed validation, if known.
	Tool string
	// Detail describes the validation failure.
	Detail string
	// Cause is the underlying validator error, if any.
	Cause error
}

func (e *ValidationError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("invalid parameters for tool %q: %s", e.Tool, e.Detail)
	}
	return fmt.Sprintf("invalid parameters: %s", e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// ConnectionError indicates a failure establishing or keeping a server
// connection. Transient connection errors are the only failures the
// manager retries.
type ConnectionError struct {
	// ServerID is the affected server.
	ServerID string
	// Transient reports whether a retry is likely to succeed.
	Transient bool
	// Cause is the underlying error.
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to server %q failed: %v", e.ServerID, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// DockerError indicates a failure specific to docker-managed deployments,
// such as a missing docker binary or an unresolvable image.
type DockerError struct {
	// ServerID is the affected server.
	ServerID string
	// Image is the configured container image.
	Image string
	// Detail describes the failure.
	Detail string
	// Cause is the underlying error, if any.
	Cause error
}

func (e *DockerError) Error() string {
	return fmt.Sprintf("docker deployment for server %q (image %s): %s", e.ServerID, e.Image, e.Detail)
}

func (e *DockerError) Unwrap() error { return e.Cause }

// Transient classifies an error as retryable. Network-level failures
// (refused, reset, timed out, closed pipes) are transient; configuration
// and validation errors are not. Context cancellation is never retried.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Transient
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return false
	}
	var dockerErr *DockerError
	if errors.As(err, &dockerErr) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
