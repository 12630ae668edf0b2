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

package shared

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkhost/inkhost/internal/host"
)

func TestConsoleNotifier_Continue(t *testing.T) {
	var out bytes.Buffer
	n := &ConsoleNotifier{In: strings.NewReader("y\n"), Out: &out}

	decision, err := n.SessionLimitReached(context.Background(), "a.md", 25, 25)
	require.NoError(t, err)
	require.Equal(t, host.DecisionContinue, decision)
	require.Contains(t, out.String(), "session limit reached")
}

func TestConsoleNotifier_DefaultsToCancel(t *testing.T) {
	for _, answer := range []string{"\n", "n\n", "nope\n", ""} {
		n := &ConsoleNotifier{In: strings.NewReader(answer), Out: &bytes.Buffer{}}

		decision, err := n.SessionLimitReached(context.Background(), "a.md", 25, 25)
		require.NoError(t, err)
		require.Equal(t, host.DecisionCancel, decision)
	}
}

func TestConsoleNotifier_ContextCancel(t *testing.T) {
	// A reader that never produces input.
	blocked, release := newBlockedReader()
	defer release()
	n := &ConsoleNotifier{In: blocked, Out: &bytes.Buffer{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decision, err := n.SessionLimitReached(ctx, "a.md", 25, 25)
	require.Error(t, err)
	require.Equal(t, host.DecisionCancel, decision)
}

// newBlockedReader returns a reader whose Read blocks until the test ends.
func newBlockedReader() (*blockedReader, func()) {
	ch := make(chan struct{})
	return &blockedReader{ch: ch}, func() { close(ch) }
}

type blockedReader struct{ ch chan struct{} }

func (r *blockedReader) Read(p []byte) (int, error) {
	<-r.ch
	return 0, io.EOF
}
