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

import "time"

// HealthStatus is a point-in-time view of one managed server.
type HealthStatus struct {
	// ServerID is the server's unique identifier
	ServerID string `json:"server_id"`

	// Name is the server's display name
	Name string `json:"name,omitempty"`

	// State is the current lifecycle state
	State State `json:"state"`

	// Connected indicates the server is dispatchable
	Connected bool `json:"connected"`

	// ToolCount is the size of the last reported tool list
	ToolCount int `json:"tool_count"`

	// ConsecutiveFailures counts failures toward the auto-disable threshold
	ConsecutiveFailures int `json:"consecutive_failures,omitempty"`

	// RetryAttempts counts reconnection attempts toward the retry cap
	RetryAttempts int `json:"retry_attempts,omitempty"`

	// NextRetryAt is when the next reconnection attempt is due
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`

	// ConnectedAt is when the current connection was established
	ConnectedAt *time.Time `json:"connected_at,omitempty"`

	// Uptime is how long the current connection has been up
	Uptime time.Duration `json:"uptime,omitempty"`

	// LastError is the most recent error message
	LastError string `json:"last_error,omitempty"`
}

// Health returns the status of one server, or false if it is unknown.
func (m *Manager) Health(id string) (HealthStatus, bool) {
	m.mu.RLock()
	state, exists := m.servers[id]
	m.mu.RUnlock()
	if !exists {
		return HealthStatus{}, false
	}
	return snapshotHealth(state), true
}

// HealthAll returns the status of every registered server.
func (m *Manager) HealthAll() []HealthStatus {
	m.mu.RLock()
	states := make([]*serverState, 0, len(m.servers))
	for _, state := range m.servers {
		states = append(states, state)
	}
	m.mu.RUnlock()

	statuses := make([]HealthStatus, 0, len(states))
	for _, state := range states {
		statuses = append(statuses, snapshotHealth(state))
	}
	return statuses
}

func snapshotHealth(state *serverState) HealthStatus {
	state.mu.RLock()
	defer state.mu.RUnlock()

	status := HealthStatus{
		ServerID:            state.id,
		Name:                state.entry.Name,
		State:               state.state,
		Connected:           state.state == StateConnected,
		ToolCount:           state.toolCount,
		ConsecutiveFailures: state.failures,
		RetryAttempts:       state.attempts,
		LastError:           state.lastError,
	}

	if !state.nextRetryAt.IsZero() && state.state == StateRetrying {
		at := state.nextRetryAt
		status.NextRetryAt = &at
	}
	if status.Connected && !state.connectedAt.IsZero() {
		at := state.connectedAt
		status.ConnectedAt = &at
		status.Uptime = time.Since(at)
	}

	return status
}
