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

// Package host defines the capabilities the embedding application injects
// into the tool-execution core: user notifications, status reporting, and
// document write locking. The core never talks to an editor surface
// directly; it calls these interfaces and the host decides how to render
// prompts and status.
package host

import "context"

// Decision is the host's answer to a session-limit prompt.
type Decision string

const (
	// DecisionContinue admits the pending request despite the limit.
	// The bypass applies to that single request only.
	DecisionContinue Decision = "continue"
	// DecisionCancel rejects the pending request.
	DecisionCancel Decision = "cancel"
)

// NotificationHandler surfaces user-visible events raised by the core.
type NotificationHandler interface {
	// SessionLimitReached is invoked when a document has hit its session
	// limit. The executor awaits the returned decision before making a
	// final admission call. Implementations may block on user input.
	SessionLimitReached(ctx context.Context, documentPath string, limit, current int) (Decision, error)

	// SessionReset is invoked after a document's session count is reset.
	SessionReset(documentPath string)

	// ServerAutoDisabled is invoked when a server crosses its failure
	// threshold and is taken out of dispatch.
	ServerAutoDisabled(serverID, name string, failureCount int)
}

// StatusReporter receives aggregate state changes for status surfaces
// (status bars, dashboards, metrics).
type StatusReporter interface {
	// ReportServerStatus reports a server's current lifecycle state.
	ReportServerStatus(serverID, state string)

	// ReportActiveExecutions reports the global in-flight execution count.
	ReportActiveExecutions(count int)

	// ReportSessionCount reports a document's open session count.
	ReportSessionCount(documentPath string, count int)

	// ReportError reports an error surfaced by the named component.
	ReportError(component string, err error)
}

// DocumentLocker serializes edits to a document. Tool executions run
// concurrently, but any action that writes the active document must hold
// the lock for the duration of the edit.
type DocumentLocker interface {
	// Lock acquires the write lock for the document and returns a release
	// function. Lock blocks until the lock is available or ctx is done.
	Lock(ctx context.Context, documentPath string) (release func(), err error)
}

// NopNotificationHandler answers every session-limit prompt with cancel
// and drops all other notifications. Useful as a safe default and in tests.
type NopNotificationHandler struct{}

func (NopNotificationHandler) SessionLimitReached(ctx context.Context, documentPath string, limit, current int) (Decision, error) {
	return DecisionCancel, nil
}

func (NopNotificationHandler) SessionReset(documentPath string) {}

func (NopNotificationHandler) ServerAutoDisabled(serverID, name string, failureCount int) {}

// NopStatusReporter discards all reports.
type NopStatusReporter struct{}

func (NopStatusReporter) ReportServerStatus(serverID, state string)         {}
func (NopStatusReporter) ReportActiveExecutions(count int)                  {}
func (NopStatusReporter) ReportSessionCount(documentPath string, count int) {}
func (NopStatusReporter) ReportError(component string, err error)           {}
