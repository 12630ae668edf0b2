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
	"math"
	"math/rand"
	"time"

	"github.com/inkhost/inkhost/internal/config"
)

// RetryPolicy computes reconnection backoff delays.
// Delays grow exponentially from InitialDelay by Multiplier per attempt,
// capped at MaxDelay, then scaled by a uniform jitter factor in
// [1-JitterFraction, 1+JitterFraction] when jitter is enabled. MaxDelay
// is a hard ceiling: a jittered delay is clamped back to it.
type RetryPolicy struct {
	// MaxAttempts caps reconnection attempts before disabling the server.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier.
	Multiplier float64

	// Jitter enables randomized backoff.
	Jitter bool

	// JitterFraction is the uniform jitter range around the computed delay.
	JitterFraction float64
}

// DefaultRetryPolicy returns the documented default policy:
// 5 attempts, 1s initial, 30s cap, 2x multiplier, jitter enabled.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		JitterFraction: 0.25,
	}
}

// RetryPolicyFromConfig builds a policy from the configuration surface.
func RetryPolicyFromConfig(cfg config.Retry) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialDelay:   time.Duration(cfg.InitialDelayMS) * time.Millisecond,
		MaxDelay:       time.Duration(cfg.MaxDelayMS) * time.Millisecond,
		Multiplier:     cfg.Multiplier,
		Jitter:         cfg.Jitter == nil || *cfg.Jitter,
		JitterFraction: cfg.JitterFraction,
	}
}

// Delay returns the backoff delay before retry attempt n (1-based).
// Without jitter the sequence is exactly
// InitialDelay, InitialDelay*Multiplier, InitialDelay*Multiplier^2, ...
// capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	backoff := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if backoff > float64(p.MaxDelay) {
		backoff = float64(p.MaxDelay)
	}

	if p.Jitter && p.JitterFraction > 0 {
		// Uniform in [1-f, 1+f], clamped so jitter never pushes a delay
		// past the cap.
		factor := 1 + (rand.Float64()*2-1)*p.JitterFraction
		backoff *= factor
		if backoff > float64(p.MaxDelay) {
			backoff = float64(p.MaxDelay)
		}
	}

	return time.Duration(backoff)
}

// Exhausted reports whether the failure count has used up the retry
// budget. The budget allows MaxAttempts scheduled retries; the failure
// after the last retry disables the server.
func (p RetryPolicy) Exhausted(failures int) bool {
	return failures > p.MaxAttempts
}
