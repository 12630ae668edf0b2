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

// Package metrics exposes execution and server lifecycle counters as
// Prometheus metrics. Reporter implements host.StatusReporter so it can
// be injected anywhere a status sink is expected.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/inkhost/inkhost/internal/host"
	"github.com/inkhost/inkhost/internal/mcp"
)

var _ host.StatusReporter = (*Reporter)(nil)

// Reporter records lifecycle and execution metrics.
type Reporter struct {
	// serverUp is 1 while a server is connected
	serverUp *prometheus.GaugeVec

	// stateChanges counts lifecycle transitions per server and state
	stateChanges *prometheus.CounterVec

	// activeExecutions is the global in-flight execution count
	activeExecutions prometheus.Gauge

	// sessionCount is the per-document session execution count
	sessionCount *prometheus.GaugeVec

	// errors counts reported errors per component
	errors *prometheus.CounterVec
}

// NewReporter creates a reporter registered against the given registry.
func NewReporter(reg prometheus.Registerer) *Reporter {
	factory := promauto.With(reg)

	return &Reporter{
		serverUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inkhost_mcp_server_up",
			Help: "Whether the MCP server is connected (1) or not (0).",
		}, []string{"server"}),
		stateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inkhost_mcp_server_state_changes_total",
			Help: "Number of MCP server lifecycle state transitions.",
		}, []string{"server", "state"}),
		activeExecutions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "inkhost_tool_executions_active",
			Help: "Number of tool executions currently in flight.",
		}),
		sessionCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inkhost_document_session_executions",
			Help: "Number of tool executions in the document's current session.",
		}, []string{"document"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inkhost_errors_total",
			Help: "Number of errors reported, by component.",
		}, []string{"component"}),
	}
}

// ReportServerStatus records a server lifecycle transition.
func (r *Reporter) ReportServerStatus(serverID, state string) {
	r.stateChanges.WithLabelValues(serverID, state).Inc()

	up := 0.0
	if state == string(mcp.StateConnected) {
		up = 1.0
	}
	r.serverUp.WithLabelValues(serverID).Set(up)
}

// ReportActiveExecutions records the global in-flight execution count.
func (r *Reporter) ReportActiveExecutions(count int) {
	r.activeExecutions.Set(float64(count))
}

// ReportSessionCount records a document's session execution count.
func (r *Reporter) ReportSessionCount(documentPath string, count int) {
	r.sessionCount.WithLabelValues(documentPath).Set(float64(count))
}

// ReportError counts an error against its originating component.
func (r *Reporter) ReportError(component string, err error) {
	r.errors.WithLabelValues(component).Inc()
}
