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
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/inkhost/inkhost/internal/host"
)

// ConsoleNotifier answers session-limit prompts interactively on the
// terminal and prints auto-disable notices.
type ConsoleNotifier struct {
	// In is the prompt input (stdin in production).
	In io.Reader

	// Out is the prompt output (stderr in production).
	Out io.Writer
}

var _ host.NotificationHandler = (*ConsoleNotifier)(nil)

// SessionLimitReached asks the user whether to continue past the
// session limit. Anything but an explicit yes cancels.
func (n *ConsoleNotifier) SessionLimitReached(ctx context.Context, documentPath string, limit, current int) (host.Decision, error) {
	fmt.Fprintf(n.Out, "%s\n", RenderWarn(fmt.Sprintf(
		"session limit reached for %s (%d/%d executions)", documentPath, current, limit)))
	fmt.Fprint(n.Out, "continue anyway? [y/N]: ")

	answerCh := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(n.In)
		line, _ := reader.ReadString('\n')
		answerCh <- line
	}()

	select {
	case line := <-answerCh:
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer == "y" || answer == "yes" {
			return host.DecisionContinue, nil
		}
		return host.DecisionCancel, nil
	case <-ctx.Done():
		return host.DecisionCancel, ctx.Err()
	}
}

// SessionReset prints a session reset notice.
func (n *ConsoleNotifier) SessionReset(documentPath string) {
	fmt.Fprintf(n.Out, "%s\n", RenderOK("session reset for "+documentPath))
}

// ServerAutoDisabled prints an auto-disable notice.
func (n *ConsoleNotifier) ServerAutoDisabled(serverID, name string, failures int) {
	fmt.Fprintf(n.Out, "%s\n", RenderError(fmt.Sprintf(
		"server %s disabled after %d consecutive failures", name, failures)))
}
