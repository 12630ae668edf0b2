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

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestReporter_ServerStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewReporter(reg)

	r.ReportServerStatus("search", "connecting")
	r.ReportServerStatus("search", "connected")

	require.Equal(t, 1.0, testutil.ToFloat64(r.serverUp.WithLabelValues("search")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.stateChanges.WithLabelValues("search", "connected")))

	r.ReportServerStatus("search", "disabled")
	require.Equal(t, 0.0, testutil.ToFloat64(r.serverUp.WithLabelValues("search")))
}

func TestReporter_ExecutionCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewReporter(reg)

	r.ReportActiveExecutions(2)
	require.Equal(t, 2.0, testutil.ToFloat64(r.activeExecutions))

	r.ReportSessionCount("notes/a.md", 7)
	require.Equal(t, 7.0, testutil.ToFloat64(r.sessionCount.WithLabelValues("notes/a.md")))
}

func TestReporter_Errors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewReporter(reg)

	r.ReportError("executor", errors.New("boom"))
	r.ReportError("executor", errors.New("boom again"))

	require.Equal(t, 2.0, testutil.ToFloat64(r.errors.WithLabelValues("executor")))
}
