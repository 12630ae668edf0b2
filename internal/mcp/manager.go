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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inkhost/inkhost/internal/config"
	"github.com/inkhost/inkhost/internal/host"
	"github.com/inkhost/inkhost/internal/log"
	"github.com/inkhost/inkhost/internal/secrets"
)

// State represents the lifecycle state of an MCP server.
type State string

const (
	// StateDisconnected indicates no connection attempt is active.
	StateDisconnected State = "disconnected"
	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting State = "connecting"
	// StateConnected indicates the server is connected and dispatchable.
	StateConnected State = "connected"
	// StateRetrying indicates a reconnection is scheduled after backoff.
	StateRetrying State = "retrying"
	// StateDisabled indicates the server is excluded from dispatch until
	// an explicit manual re-enable.
	StateDisabled State = "disabled"
)

// Conn is the connection surface the executor dispatches against.
// *Client implements Conn; tests substitute fakes.
type Conn interface {
	ListTools(ctx context.Context) ([]ToolDefinition, error)
	CallTool(ctx context.Context, req ToolCallRequest) (*ToolCallResponse, error)
	Ping(ctx context.Context) error
	Close() error
}

// Dialer establishes a server connection. The default dialer builds a
// *Client from the entry's deployment configuration.
type Dialer func(ctx context.Context, serverID string, entry *config.ServerEntry, timeout time.Duration) (Conn, error)

// serverState tracks the runtime state of one managed server.
type serverState struct {
	// id is the server's unique identifier
	id string

	// entry is the server's configuration
	entry *config.ServerEntry

	// conn is the active connection, nil unless connected
	conn Conn

	// state is the current lifecycle state
	state State

	// connectedAt is the timestamp of the last successful connect
	connectedAt time.Time

	// lastError is the most recent error message
	lastError string

	// failures counts consecutive failures toward the auto-disable threshold
	failures int

	// attempts counts reconnection attempts toward the retry cap
	attempts int

	// nextRetryAt is when the next reconnection attempt is due
	nextRetryAt time.Time

	// toolCount is the size of the server's last reported tool list
	toolCount int

	// reconnectCh signals that the current connection should be dropped
	// and re-established
	reconnectCh chan struct{}

	// stopCh signals that the monitor should exit
	stopCh chan struct{}

	// mu protects all fields above
	mu sync.RWMutex
}

// Manager owns the set of configured MCP server connections. It runs one
// monitor goroutine per enabled server, handling connection, reconnection
// backoff, and the transition to disabled once failures exhaust the
// retry policy or cross the failure threshold.
type Manager struct {
	// servers tracks all managed servers by ID
	servers map[string]*serverState

	// policy computes reconnection backoff
	policy RetryPolicy

	// failureThreshold auto-disables a server on consecutive failures
	failureThreshold int

	// defaultTimeout is the per-call timeout when the entry has none
	defaultTimeout time.Duration

	// dial establishes connections
	dial Dialer

	// reporter receives lifecycle state changes
	reporter host.StatusReporter

	// notifier surfaces auto-disable events
	notifier host.NotificationHandler

	// onToolsChanged is invoked with the server's tool list after each
	// (re)connect (optional; used to refresh the discovery cache)
	onToolsChanged func(serverID string, tools []ToolDefinition)

	// onServerDown is invoked when a connected server drops (optional;
	// used to flag discovery snapshots stale)
	onServerDown func(serverID string)

	// logger is used for structured logging
	logger *slog.Logger

	// mu protects the servers map
	mu sync.RWMutex

	// ctx is the manager's lifecycle context
	ctx context.Context

	// cancel stops all monitors
	cancel context.CancelFunc

	// wg tracks active monitors
	wg sync.WaitGroup
}

// ManagerConfig configures the server manager.
type ManagerConfig struct {
	// Policy computes reconnection backoff (defaults to DefaultRetryPolicy).
	Policy RetryPolicy

	// FailureThreshold auto-disables a server after this many consecutive
	// failures (default: 3).
	FailureThreshold int

	// DefaultTimeout is the per-call timeout applied when a server entry
	// has none (default: 30s).
	DefaultTimeout time.Duration

	// Secrets resolves credential references for SSE deployments (optional).
	Secrets *secrets.Resolver

	// Dialer overrides connection establishment (optional; tests).
	Dialer Dialer

	// Reporter receives lifecycle state changes (optional).
	Reporter host.StatusReporter

	// Notifier surfaces auto-disable events (optional).
	Notifier host.NotificationHandler

	// OnToolsChanged receives the tool list after each (re)connect (optional).
	OnToolsChanged func(serverID string, tools []ToolDefinition)

	// OnServerDown is invoked when a connected server drops (optional).
	OnServerDown func(serverID string)

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// NewManager creates a new MCP server manager.
func NewManager(cfg ManagerConfig) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := cfg.Policy
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy()
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}

	timeout := cfg.DefaultTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	reporter := cfg.Reporter
	if reporter == nil {
		reporter = host.NopStatusReporter{}
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = host.NopNotificationHandler{}
	}

	dial := cfg.Dialer
	if dial == nil {
		resolver := cfg.Secrets
		dial = func(ctx context.Context, serverID string, entry *config.ServerEntry, timeout time.Duration) (Conn, error) {
			return NewClient(ctx, ClientConfig{
				ServerID: serverID,
				Entry:    entry,
				Timeout:  timeout,
				Secrets:  resolver,
			})
		}
	}

	return &Manager{
		servers:          make(map[string]*serverState),
		policy:           policy,
		failureThreshold: threshold,
		defaultTimeout:   timeout,
		dial:             dial,
		reporter:         reporter,
		notifier:         notifier,
		onToolsChanged:   cfg.OnToolsChanged,
		onServerDown:     cfg.OnServerDown,
		logger:           logger,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Add registers a server and starts its monitor if the entry is enabled.
func (m *Manager) Add(id string, entry *config.ServerEntry) error {
	if id == "" {
		return fmt.Errorf("server ID is required")
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("server %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.servers[id]; exists {
		return fmt.Errorf("server %s is already registered", id)
	}

	state := &serverState{
		id:          id,
		entry:       entry,
		state:       StateDisconnected,
		reconnectCh: make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
	if !entry.IsEnabled() {
		state.state = StateDisabled
		state.lastError = "disabled in configuration"
	}
	m.servers[id] = state

	if entry.IsEnabled() {
		m.wg.Add(1)
		go m.monitor(state)
	}

	m.logger.Info("mcp server registered",
		log.ServerKey, id,
		"deployment", entry.Deployment,
		"enabled", entry.IsEnabled(),
	)

	return nil
}

// Remove stops and unregisters a server.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	state, exists := m.servers[id]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("server not found: %s", id)
	}
	delete(m.servers, id)
	m.mu.Unlock()

	state.mu.Lock()
	if state.state != StateDisabled {
		close(state.stopCh)
	}
	if state.conn != nil {
		_ = state.conn.Close()
		state.conn = nil
	}
	state.mu.Unlock()

	m.logger.Info("mcp server removed", log.ServerKey, id)
	return nil
}

// Apply reconciles the managed set against a configuration snapshot:
// new servers are added, removed servers stopped, and changed entries
// restarted with their new configuration.
func (m *Manager) Apply(cfg *config.Config) {
	m.mu.RLock()
	current := make(map[string]bool, len(m.servers))
	for id := range m.servers {
		current[id] = true
	}
	m.mu.RUnlock()

	for id := range current {
		if _, keep := cfg.Servers[id]; !keep {
			if err := m.Remove(id); err != nil {
				m.logger.Warn("failed to remove server during reconfigure", log.ServerKey, id, log.Error(err))
			}
		}
	}

	for id, entry := range cfg.Servers {
		if current[id] {
			// Restart with the new entry; in-flight calls finish against
			// the old connection.
			if err := m.Remove(id); err != nil {
				m.logger.Warn("failed to stop server during reconfigure", log.ServerKey, id, log.Error(err))
			}
		}
		if err := m.Add(id, entry); err != nil {
			m.logger.Error("failed to add server during reconfigure", log.ServerKey, id, log.Error(err))
		}
	}
}

// monitor drives one server through the connection state machine until
// stopped or disabled.
func (m *Manager) monitor(state *serverState) {
	defer m.wg.Done()

	// Enable replaces the channels, so capture the generation this
	// monitor belongs to.
	state.mu.RLock()
	stopCh := state.stopCh
	reconnectCh := state.reconnectCh
	state.mu.RUnlock()

	for {
		state.mu.Lock()
		state.state = StateConnecting
		state.mu.Unlock()
		m.reporter.ReportServerStatus(state.id, string(StateConnecting))

		conn, tools, err := m.connect(state)
		if err != nil {
			if done := m.handleConnectFailure(state, stopCh, err); done {
				return
			}
			continue
		}

		state.mu.Lock()
		state.conn = conn
		state.state = StateConnected
		state.connectedAt = time.Now()
		state.lastError = ""
		state.failures = 0
		state.attempts = 0
		state.nextRetryAt = time.Time{}
		state.toolCount = len(tools)
		state.mu.Unlock()

		m.reporter.ReportServerStatus(state.id, string(StateConnected))
		m.logger.Info("mcp server connected", log.ServerKey, state.id, "tools", len(tools))

		if m.onToolsChanged != nil {
			m.onToolsChanged(state.id, tools)
		}

		select {
		case <-reconnectCh:
			m.logger.Info("reconnecting mcp server", log.ServerKey, state.id)
			m.dropConn(state)
			continue

		case <-stopCh:
			m.dropConn(state)
			m.markStopped(state, stopCh)
			return

		case <-m.ctx.Done():
			m.dropConn(state)
			m.markStopped(state, stopCh)
			return
		}
	}
}

// connect dials the server and fetches its tool list.
func (m *Manager) connect(state *serverState) (Conn, []ToolDefinition, error) {
	state.mu.RLock()
	entry := state.entry
	state.mu.RUnlock()

	timeout := m.defaultTimeout
	if entry.Timeout > 0 {
		timeout = time.Duration(entry.Timeout) * time.Second
	}

	ctx, cancel := context.WithTimeout(m.ctx, timeout)
	defer cancel()

	conn, err := m.dial(ctx, state.id, entry, timeout)
	if err != nil {
		return nil, nil, err
	}

	tools, err := conn.ListTools(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	return conn, tools, nil
}

// handleConnectFailure records a failed attempt and either schedules a
// retry or disables the server. Returns true when the monitor should exit.
func (m *Manager) handleConnectFailure(state *serverState, stopCh chan struct{}, err error) bool {
	state.mu.Lock()
	state.lastError = err.Error()
	state.attempts++
	attempts := state.attempts
	state.mu.Unlock()

	if !Transient(err) {
		m.logger.Error("mcp server failed with non-retryable error",
			log.ServerKey, state.id,
			log.Error(err),
		)
		m.disableLocked(state, attempts)
		return true
	}

	if m.policy.Exhausted(attempts) {
		m.logger.Error("mcp server exhausted reconnection attempts",
			log.ServerKey, state.id,
			"attempts", attempts,
		)
		m.disableLocked(state, attempts)
		return true
	}

	delay := m.policy.Delay(attempts)

	state.mu.Lock()
	state.state = StateRetrying
	state.nextRetryAt = time.Now().Add(delay)
	state.mu.Unlock()
	m.reporter.ReportServerStatus(state.id, string(StateRetrying))

	m.logger.Info("mcp server will retry after backoff",
		log.ServerKey, state.id,
		"backoff", delay,
		"attempt", attempts,
	)

	select {
	case <-time.After(delay):
		return false
	case <-stopCh:
		m.markStopped(state, stopCh)
		return true
	case <-m.ctx.Done():
		m.markStopped(state, stopCh)
		return true
	}
}

// markStopped records that the monitor exited. A disable, or a restart
// that already replaced this monitor's channels, keeps its state.
func (m *Manager) markStopped(state *serverState, stopCh chan struct{}) {
	state.mu.Lock()
	if state.stopCh == stopCh && state.state != StateDisabled {
		state.state = StateDisconnected
	}
	state.mu.Unlock()
}

// disableLocked transitions a server to disabled and notifies the host.
// Already disabled servers are left alone so racing failure reports
// cannot double-notify.
func (m *Manager) disableLocked(state *serverState, failures int) {
	state.mu.Lock()
	if state.state == StateDisabled {
		state.mu.Unlock()
		return
	}
	state.state = StateDisabled
	name := state.entry.Name
	if name == "" {
		name = state.id
	}
	state.mu.Unlock()

	m.reporter.ReportServerStatus(state.id, string(StateDisabled))
	m.notifier.ServerAutoDisabled(state.id, name, failures)
}

// dropConn closes and clears the server's connection, flagging discovery.
func (m *Manager) dropConn(state *serverState) {
	state.mu.Lock()
	if state.conn != nil {
		_ = state.conn.Close()
		state.conn = nil
	}
	state.mu.Unlock()

	if m.onServerDown != nil {
		m.onServerDown(state.id)
	}
}

// RecordFailure reports a connection-class failure observed during tool
// dispatch. Consecutive failures count toward the auto-disable threshold;
// below the threshold the server's connection is recycled. Reports against
// an already disabled server are ignored (idempotent).
func (m *Manager) RecordFailure(id string, err error) {
	m.mu.RLock()
	state, exists := m.servers[id]
	m.mu.RUnlock()
	if !exists {
		return
	}

	state.mu.Lock()
	if state.state == StateDisabled {
		state.mu.Unlock()
		return
	}
	state.failures++
	failures := state.failures
	state.lastError = err.Error()
	state.mu.Unlock()

	m.logger.Warn("mcp server failure recorded",
		log.ServerKey, id,
		"consecutive_failures", failures,
		log.Error(err),
	)

	if failures >= m.failureThreshold {
		// Stop the monitor before flipping state so it cannot race a
		// reconnect against the disable.
		state.mu.Lock()
		select {
		case <-state.stopCh:
		default:
			close(state.stopCh)
		}
		state.mu.Unlock()

		m.disableLocked(state, failures)
		return
	}

	select {
	case state.reconnectCh <- struct{}{}:
	default:
	}
}

// RecordSuccess clears a server's consecutive-failure count.
func (m *Manager) RecordSuccess(id string) {
	m.mu.RLock()
	state, exists := m.servers[id]
	m.mu.RUnlock()
	if !exists {
		return
	}

	state.mu.Lock()
	state.failures = 0
	state.mu.Unlock()
}

// Disable manually disables a server, stopping its monitor.
func (m *Manager) Disable(id string) error {
	m.mu.RLock()
	state, exists := m.servers[id]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("server not found: %s", id)
	}

	state.mu.Lock()
	if state.state == StateDisabled {
		state.mu.Unlock()
		return nil
	}
	select {
	case <-state.stopCh:
	default:
		close(state.stopCh)
	}
	if state.conn != nil {
		_ = state.conn.Close()
		state.conn = nil
	}
	state.state = StateDisabled
	state.mu.Unlock()

	m.reporter.ReportServerStatus(id, string(StateDisabled))
	m.logger.Info("mcp server disabled", log.ServerKey, id)
	return nil
}

// Enable re-enables a disabled server, resetting its failure state and
// restarting its monitor. Enabling a server that is not disabled is a no-op.
func (m *Manager) Enable(id string) error {
	m.mu.RLock()
	state, exists := m.servers[id]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("server not found: %s", id)
	}

	state.mu.Lock()
	if state.state != StateDisabled {
		state.mu.Unlock()
		return nil
	}
	state.state = StateDisconnected
	state.failures = 0
	state.attempts = 0
	state.lastError = ""
	state.nextRetryAt = time.Time{}
	state.stopCh = make(chan struct{})
	state.reconnectCh = make(chan struct{}, 1)
	state.mu.Unlock()

	m.wg.Add(1)
	go m.monitor(state)

	m.logger.Info("mcp server re-enabled", log.ServerKey, id)
	return nil
}

// Conn returns the dispatchable connection for a server.
func (m *Manager) Conn(id string) (Conn, error) {
	m.mu.RLock()
	state, exists := m.servers[id]
	m.mu.RUnlock()
	if !exists {
		return nil, &ServerNotAvailableError{ServerID: id, State: StateDisconnected, Reason: "not registered"}
	}

	state.mu.RLock()
	defer state.mu.RUnlock()

	if state.state != StateConnected || state.conn == nil {
		return nil, &ServerNotAvailableError{ServerID: id, State: state.state, Reason: state.lastError}
	}
	return state.conn, nil
}

// Entry returns the configuration entry for a server.
func (m *Manager) Entry(id string) (*config.ServerEntry, bool) {
	m.mu.RLock()
	state, exists := m.servers[id]
	m.mu.RUnlock()
	if !exists {
		return nil, false
	}

	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.entry, true
}

// ServerIDs returns the IDs of all registered servers.
func (m *Manager) ServerIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.servers))
	for id := range m.servers {
		ids = append(ids, id)
	}
	return ids
}

// Close shuts down the manager and all managed servers.
func (m *Manager) Close() error {
	m.cancel()

	m.mu.Lock()
	for id, state := range m.servers {
		state.mu.Lock()
		select {
		case <-state.stopCh:
		default:
			close(state.stopCh)
		}
		if state.conn != nil {
			_ = state.conn.Close()
			state.conn = nil
		}
		state.mu.Unlock()
		delete(m.servers, id)
	}
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}
