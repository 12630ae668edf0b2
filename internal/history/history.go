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

// Package history records tool executions for later inspection. Both
// successful and failed executions are recorded; the store is bounded
// and evicts the oldest records once it reaches its cap.
package history

import (
	"context"
	"time"
)

// Execution statuses.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusRejected = "rejected"
	StatusTimeout  = "timeout"
	StatusCanceled = "canceled"
)

// Record is one recorded tool execution.
type Record struct {
	// ID is the unique execution identifier
	ID string `json:"id"`

	// DocumentPath is the document the execution was attributed to
	DocumentPath string `json:"document_path"`

	// ServerID is the server the call was dispatched to
	ServerID string `json:"server_id"`

	// Tool is the tool name
	Tool string `json:"tool"`

	// Arguments is the JSON-encoded argument payload
	Arguments string `json:"arguments,omitempty"`

	// Status is one of the execution statuses above
	Status string `json:"status"`

	// Error holds the failure message for non-success statuses
	Error string `json:"error,omitempty"`

	// Cached indicates the result was served from the result cache
	Cached bool `json:"cached,omitempty"`

	// StartedAt is when the execution was admitted
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the execution took
	Duration time.Duration `json:"duration"`
}

// Store persists execution records.
type Store interface {
	// Append records an execution, evicting the oldest records when the
	// store is at capacity.
	Append(ctx context.Context, rec Record) error

	// List returns the most recent records, newest first.
	List(ctx context.Context, limit int) ([]Record, error)

	// ListByDocument returns the most recent records for one document,
	// newest first.
	ListByDocument(ctx context.Context, path string, limit int) ([]Record, error)

	// Clear drops all records.
	Clear(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
