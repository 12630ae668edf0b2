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

package executor

import "fmt"

// Limit scopes for ExecutionLimitError.
const (
	// LimitConcurrent is the global in-flight execution cap.
	LimitConcurrent = "concurrent"
	// LimitSession is the per-document session cap.
	LimitSession = "session"
)

// ExecutionLimitError indicates a request was rejected at admission
// because a concurrency or session cap was exceeded. Requests are never
// queued; callers retry at a higher layer.
type ExecutionLimitError struct {
	// Scope is LimitConcurrent or LimitSession.
	Scope string
	// Limit is the configured cap.
	Limit int
	// Current is the count observed at admission time.
	Current int
	// DocumentPath is set for session-scoped rejections.
	DocumentPath string
}

func (e *ExecutionLimitError) Error() string {
	if e.Scope == LimitSession {
		return fmt.Sprintf("session limit reached for %s (%d/%d executions)", e.DocumentPath, e.Current, e.Limit)
	}
	return fmt.Sprintf("concurrent execution limit reached (%d/%d in flight)", e.Current, e.Limit)
}
