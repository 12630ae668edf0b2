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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkhost/inkhost/internal/config"
	"github.com/inkhost/inkhost/internal/host"
)

type fakeConn struct {
	tools  []ToolDefinition
	closed atomic.Bool
}

func (c *fakeConn) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	return c.tools, nil
}

func (c *fakeConn) CallTool(ctx context.Context, req ToolCallRequest) (*ToolCallResponse, error) {
	return &ToolCallResponse{Content: []ContentItem{{Type: "text", Text: "ok"}}}, nil
}

func (c *fakeConn) Ping(ctx context.Context) error { return nil }

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

type recordingNotifier struct {
	mu           sync.Mutex
	autoDisabled []string
	failures     []int
}

func (n *recordingNotifier) SessionLimitReached(ctx context.Context, path string, limit, current int) (host.Decision, error) {
	return host.DecisionCancel, nil
}

func (n *recordingNotifier) SessionReset(path string) {}

func (n *recordingNotifier) ServerAutoDisabled(id, name string, failures int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.autoDisabled = append(n.autoDisabled, id)
	n.failures = append(n.failures, failures)
}

func (n *recordingNotifier) disabledCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.autoDisabled)
}

func (n *recordingNotifier) lastFailureCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.failures) == 0 {
		return 0
	}
	return n.failures[len(n.failures)-1]
}

func waitForDisabledNotice(t *testing.T, n *recordingNotifier, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return n.disabledCount() == want
	}, 2*time.Second, 2*time.Millisecond)
}

func stdioEntry() *config.ServerEntry {
	return &config.ServerEntry{
		Name:       "Search",
		Deployment: config.DeploymentStdio,
		Stdio:      &config.StdioConfig{Command: "search-server"},
	}
}

func fastPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// countingDialer succeeds after failing the first failCount dials.
type countingDialer struct {
	mu        sync.Mutex
	dials     int
	failCount int
	failWith  error
	tools     []ToolDefinition
}

func (d *countingDialer) dial(ctx context.Context, serverID string, entry *config.ServerEntry, timeout time.Duration) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failCount {
		return nil, d.failWith
	}
	return &fakeConn{tools: d.tools}, nil
}

func (d *countingDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func newTestManager(t *testing.T, dialer *countingDialer, notifier *recordingNotifier) *Manager {
	t.Helper()
	m := NewManager(ManagerConfig{
		Policy:   fastPolicy(3),
		Dialer:   dialer.dial,
		Notifier: notifier,
	})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func waitForState(t *testing.T, m *Manager, id string, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		status, ok := m.Health(id)
		return ok && status.State == want
	}, 2*time.Second, 2*time.Millisecond, "server %s never reached state %s", id, want)
}

func TestManager_ConnectAndDispatch(t *testing.T) {
	dialer := &countingDialer{tools: []ToolDefinition{{Name: "web_search"}}}
	m := newTestManager(t, dialer, &recordingNotifier{})

	require.NoError(t, m.Add("search", stdioEntry()))
	waitForState(t, m, "search", StateConnected)

	conn, err := m.Conn("search")
	require.NoError(t, err)

	resp, err := conn.CallTool(context.Background(), ToolCallRequest{Name: "web_search"})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Text())

	status, ok := m.Health("search")
	require.True(t, ok)
	require.True(t, status.Connected)
	require.Equal(t, 1, status.ToolCount)
	require.Equal(t, "Search", status.Name)
}

func TestManager_ToolsChangedCallback(t *testing.T) {
	dialer := &countingDialer{tools: []ToolDefinition{{Name: "a"}, {Name: "b"}}}

	var mu sync.Mutex
	var gotTools []ToolDefinition
	m := NewManager(ManagerConfig{
		Policy: fastPolicy(3),
		Dialer: dialer.dial,
		OnToolsChanged: func(serverID string, tools []ToolDefinition) {
			mu.Lock()
			defer mu.Unlock()
			gotTools = tools
		},
	})
	defer m.Close()

	require.NoError(t, m.Add("search", stdioEntry()))
	waitForState(t, m, "search", StateConnected)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gotTools) == 2
	}, 2*time.Second, 2*time.Millisecond)
}

func TestManager_RetriesTransientFailuresThenConnects(t *testing.T) {
	dialer := &countingDialer{
		failCount: 2,
		failWith:  &ConnectionError{ServerID: "search", Transient: true, Cause: errors.New("refused")},
	}
	m := newTestManager(t, dialer, &recordingNotifier{})

	require.NoError(t, m.Add("search", stdioEntry()))
	waitForState(t, m, "search", StateConnected)

	require.Equal(t, 3, dialer.dialCount())

	status, _ := m.Health("search")
	require.Zero(t, status.RetryAttempts, "attempts reset after successful connect")
	require.Empty(t, status.LastError)
}

func TestManager_AutoDisableAfterExhaustedRetries(t *testing.T) {
	dialer := &countingDialer{
		failCount: 100,
		failWith:  &ConnectionError{ServerID: "search", Transient: true, Cause: errors.New("refused")},
	}
	notifier := &recordingNotifier{}
	m := NewManager(ManagerConfig{
		Policy:   fastPolicy(2),
		Dialer:   dialer.dial,
		Notifier: notifier,
	})
	defer m.Close()

	require.NoError(t, m.Add("search", stdioEntry()))
	waitForState(t, m, "search", StateDisabled)

	// One initial attempt plus two scheduled retries.
	require.Equal(t, 3, dialer.dialCount())
	waitForDisabledNotice(t, notifier, 1)

	_, err := m.Conn("search")
	var notAvail *ServerNotAvailableError
	require.ErrorAs(t, err, &notAvail)
	require.Equal(t, StateDisabled, notAvail.State)
}

func TestManager_NonTransientErrorDisablesImmediately(t *testing.T) {
	dialer := &countingDialer{
		failCount: 100,
		failWith:  errors.New("unknown deployment"),
	}
	notifier := &recordingNotifier{}
	m := newTestManager(t, dialer, notifier)

	require.NoError(t, m.Add("search", stdioEntry()))
	waitForState(t, m, "search", StateDisabled)

	require.Equal(t, 1, dialer.dialCount())
	waitForDisabledNotice(t, notifier, 1)
}

func TestManager_RecordFailureThresholdDisables(t *testing.T) {
	dialer := &countingDialer{}
	notifier := &recordingNotifier{}
	m := NewManager(ManagerConfig{
		Policy:           fastPolicy(3),
		FailureThreshold: 3,
		Dialer:           dialer.dial,
		Notifier:         notifier,
	})
	defer m.Close()

	require.NoError(t, m.Add("search", stdioEntry()))
	waitForState(t, m, "search", StateConnected)

	cause := &ConnectionError{ServerID: "search", Transient: true, Cause: errors.New("reset")}
	m.RecordFailure("search", cause)
	m.RecordFailure("search", cause)
	m.RecordFailure("search", cause)

	waitForState(t, m, "search", StateDisabled)
	waitForDisabledNotice(t, notifier, 1)
	require.Equal(t, 3, notifier.lastFailureCount())

	// Further reports against a disabled server are ignored.
	m.RecordFailure("search", cause)
	require.Equal(t, 1, notifier.disabledCount())
}

func TestManager_RecordFailureBelowThresholdReconnects(t *testing.T) {
	dialer := &countingDialer{}
	m := newTestManager(t, dialer, &recordingNotifier{})

	require.NoError(t, m.Add("search", stdioEntry()))
	waitForState(t, m, "search", StateConnected)

	m.RecordFailure("search", &ConnectionError{ServerID: "search", Transient: true, Cause: errors.New("reset")})

	require.Eventually(t, func() bool {
		return dialer.dialCount() == 2
	}, 2*time.Second, 2*time.Millisecond)
	waitForState(t, m, "search", StateConnected)
}

func TestManager_RecordSuccessResetsFailures(t *testing.T) {
	dialer := &countingDialer{}
	notifier := &recordingNotifier{}
	m := NewManager(ManagerConfig{
		Policy:           fastPolicy(3),
		FailureThreshold: 3,
		Dialer:           dialer.dial,
		Notifier:         notifier,
	})
	defer m.Close()

	require.NoError(t, m.Add("search", stdioEntry()))
	waitForState(t, m, "search", StateConnected)

	cause := &ConnectionError{ServerID: "search", Transient: true, Cause: errors.New("reset")}
	m.RecordFailure("search", cause)
	m.RecordFailure("search", cause)
	m.RecordSuccess("search")
	m.RecordFailure("search", cause)
	m.RecordFailure("search", cause)

	require.Equal(t, 0, notifier.disabledCount())
}

func TestManager_ManualDisableAndEnable(t *testing.T) {
	dialer := &countingDialer{}
	m := newTestManager(t, dialer, &recordingNotifier{})

	require.NoError(t, m.Add("search", stdioEntry()))
	waitForState(t, m, "search", StateConnected)

	require.NoError(t, m.Disable("search"))
	waitForState(t, m, "search", StateDisabled)

	_, err := m.Conn("search")
	require.Error(t, err)

	// Disable is idempotent.
	require.NoError(t, m.Disable("search"))

	require.NoError(t, m.Enable("search"))
	waitForState(t, m, "search", StateConnected)

	status, _ := m.Health("search")
	require.Zero(t, status.ConsecutiveFailures)
	require.Zero(t, status.RetryAttempts)

	// Enabling a server that is not disabled is a no-op.
	require.NoError(t, m.Enable("search"))
	waitForState(t, m, "search", StateConnected)
}

func TestManager_DisabledEntryStaysDown(t *testing.T) {
	dialer := &countingDialer{}
	m := newTestManager(t, dialer, &recordingNotifier{})

	disabled := false
	entry := stdioEntry()
	entry.Enabled = &disabled

	require.NoError(t, m.Add("search", entry))

	status, ok := m.Health("search")
	require.True(t, ok)
	require.Equal(t, StateDisabled, status.State)
	require.Zero(t, dialer.dialCount())
}

func TestManager_UnknownServer(t *testing.T) {
	m := newTestManager(t, &countingDialer{}, &recordingNotifier{})

	_, err := m.Conn("missing")
	var notAvail *ServerNotAvailableError
	require.ErrorAs(t, err, &notAvail)

	require.Error(t, m.Disable("missing"))
	require.Error(t, m.Enable("missing"))
	require.Error(t, m.Remove("missing"))

	_, ok := m.Health("missing")
	require.False(t, ok)
}

func TestManager_AddRejectsDuplicatesAndInvalidEntries(t *testing.T) {
	m := newTestManager(t, &countingDialer{}, &recordingNotifier{})

	require.NoError(t, m.Add("search", stdioEntry()))
	require.Error(t, m.Add("search", stdioEntry()))

	require.Error(t, m.Add("", stdioEntry()))
	require.Error(t, m.Add("bad", &config.ServerEntry{Deployment: "carrier-pigeon"}))
}

func TestManager_RemoveStopsServer(t *testing.T) {
	dialer := &countingDialer{}
	m := newTestManager(t, dialer, &recordingNotifier{})

	require.NoError(t, m.Add("search", stdioEntry()))
	waitForState(t, m, "search", StateConnected)

	require.NoError(t, m.Remove("search"))

	_, ok := m.Health("search")
	require.False(t, ok)
	require.NotContains(t, m.ServerIDs(), "search")
}

func TestManager_ServerDownCallback(t *testing.T) {
	dialer := &countingDialer{}

	var down atomic.Int32
	m := NewManager(ManagerConfig{
		Policy: fastPolicy(3),
		Dialer: dialer.dial,
		OnServerDown: func(serverID string) {
			down.Add(1)
		},
	})
	defer m.Close()

	require.NoError(t, m.Add("search", stdioEntry()))
	waitForState(t, m, "search", StateConnected)

	m.RecordFailure("search", &ConnectionError{ServerID: "search", Transient: true, Cause: errors.New("reset")})

	require.Eventually(t, func() bool {
		return down.Load() >= 1
	}, 2*time.Second, 2*time.Millisecond)
}

func TestManager_ApplyReconcilesServers(t *testing.T) {
	dialer := &countingDialer{}
	m := newTestManager(t, dialer, &recordingNotifier{})

	require.NoError(t, m.Add("old", stdioEntry()))
	waitForState(t, m, "old", StateConnected)

	cfg := config.Default()
	cfg.Servers = map[string]*config.ServerEntry{
		"search": stdioEntry(),
	}
	m.Apply(cfg)

	_, ok := m.Health("old")
	require.False(t, ok)
	waitForState(t, m, "search", StateConnected)
}
