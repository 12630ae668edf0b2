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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkhost/inkhost/internal/config"
)

func TestRetryPolicy_DelaySequenceWithoutJitter(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 1000 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	}

	require.Equal(t, 1000*time.Millisecond, policy.Delay(1))
	require.Equal(t, 2000*time.Millisecond, policy.Delay(2))
	require.Equal(t, 4000*time.Millisecond, policy.Delay(3))
	require.Equal(t, 8000*time.Millisecond, policy.Delay(4))
	require.Equal(t, 16000*time.Millisecond, policy.Delay(5))
}

func TestRetryPolicy_DelayCappedAtMax(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:  10,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	}

	require.Equal(t, 30*time.Second, policy.Delay(6))
	require.Equal(t, 30*time.Second, policy.Delay(9))
}

func TestRetryPolicy_JitterStaysInBounds(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    5,
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		JitterFraction: 0.25,
	}

	for i := 0; i < 100; i++ {
		delay := policy.Delay(2)
		require.GreaterOrEqual(t, delay, 1500*time.Millisecond)
		require.LessOrEqual(t, delay, 2500*time.Millisecond)
	}
}

func TestRetryPolicy_JitterNeverExceedsMaxDelay(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    10,
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		JitterFraction: 0.25,
	}

	// Attempt 8 sits at the cap before jitter; upward jitter must be
	// clamped back to MaxDelay.
	for i := 0; i < 100; i++ {
		delay := policy.Delay(8)
		require.GreaterOrEqual(t, delay, time.Duration(float64(policy.MaxDelay)*0.75))
		require.LessOrEqual(t, delay, policy.MaxDelay)
	}
}

func TestRetryPolicy_DelayClampsAttemptFloor(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.Jitter = false

	require.Equal(t, policy.InitialDelay, policy.Delay(0))
	require.Equal(t, policy.InitialDelay, policy.Delay(-3))
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3}

	require.False(t, policy.Exhausted(2))
	require.False(t, policy.Exhausted(3))
	require.True(t, policy.Exhausted(4))
}

func TestRetryPolicyFromConfig(t *testing.T) {
	off := false
	policy := RetryPolicyFromConfig(config.Retry{
		MaxAttempts:    3,
		InitialDelayMS: 500,
		MaxDelayMS:     10000,
		Multiplier:     3.0,
		Jitter:         &off,
		JitterFraction: 0.1,
	})

	require.Equal(t, 3, policy.MaxAttempts)
	require.Equal(t, 500*time.Millisecond, policy.InitialDelay)
	require.Equal(t, 10*time.Second, policy.MaxDelay)
	require.Equal(t, 3.0, policy.Multiplier)
	require.False(t, policy.Jitter)

	policy = RetryPolicyFromConfig(config.Retry{MaxAttempts: 1, Multiplier: 2.0})
	require.True(t, policy.Jitter, "jitter defaults on when unset")
}
