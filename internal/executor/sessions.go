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

// SessionCount returns the number of executions attributed to a
// document in its current session.
func (e *Executor) SessionCount(documentPath string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[documentPath]
}

// ResetSession zeroes a document's session count, restoring the full
// session budget.
func (e *Executor) ResetSession(documentPath string) {
	e.mu.Lock()
	delete(e.sessions, documentPath)
	e.mu.Unlock()

	e.notifier.SessionReset(documentPath)
	e.reporter.ReportSessionCount(documentPath, 0)
}

// ResetAllSessions zeroes every document's session count.
func (e *Executor) ResetAllSessions() {
	e.mu.Lock()
	paths := make([]string, 0, len(e.sessions))
	for path := range e.sessions {
		paths = append(paths, path)
	}
	e.sessions = make(map[string]int)
	e.mu.Unlock()

	for _, path := range paths {
		e.notifier.SessionReset(path)
		e.reporter.ReportSessionCount(path, 0)
	}
}

// ActiveExecutions returns the global in-flight execution count.
func (e *Executor) ActiveExecutions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight
}
