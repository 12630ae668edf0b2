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

package secrets

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testResolver(env map[string]string, keys map[string]string) *Resolver {
	return NewResolver(
		WithEnvLookup(func(name string) (string, bool) {
			v, ok := env[name]
			return v, ok
		}),
		WithKeyringLookup(func(service, user string) (string, error) {
			v, ok := keys[service+"/"+user]
			if !ok {
				return "", errors.New("secret not found in keyring")
			}
			return v, nil
		}),
	)
}

func TestResolve_Literal(t *testing.T) {
	r := testResolver(nil, nil)

	got, err := r.Resolve("plain-value")
	require.NoError(t, err)
	require.Equal(t, "plain-value", got)
}

func TestResolve_Env(t *testing.T) {
	r := testResolver(map[string]string{"MCP_TOKEN": "tok-123"}, nil)

	got, err := r.Resolve("${MCP_TOKEN}")
	require.NoError(t, err)
	require.Equal(t, "tok-123", got)
}

func TestResolve_EnvMissing(t *testing.T) {
	r := testResolver(nil, nil)

	_, err := r.Resolve("${MISSING_VAR}")
	require.ErrorContains(t, err, "MISSING_VAR is not set")
}

func TestResolve_EnvEmptyName(t *testing.T) {
	r := testResolver(nil, nil)

	_, err := r.Resolve("${}")
	require.ErrorContains(t, err, "empty environment variable")
}

func TestResolve_Keyring(t *testing.T) {
	r := testResolver(nil, map[string]string{"inkhost/search": "kr-secret"})

	got, err := r.Resolve("keyring:inkhost/search")
	require.NoError(t, err)
	require.Equal(t, "kr-secret", got)
}

func TestResolve_KeyringMalformed(t *testing.T) {
	r := testResolver(nil, nil)

	_, err := r.Resolve("keyring:no-slash")
	require.ErrorContains(t, err, "keyring:service/user")
}

func TestResolve_KeyringMissing(t *testing.T) {
	r := testResolver(nil, nil)

	_, err := r.Resolve("keyring:inkhost/missing")
	require.ErrorContains(t, err, "keyring lookup")
}

func TestResolveMap(t *testing.T) {
	r := testResolver(map[string]string{"MCP_TOKEN": "tok-123"}, nil)

	got, err := r.ResolveMap(map[string]string{
		"Authorization": "${MCP_TOKEN}",
		"X-Client":      "inkhost",
	})
	require.NoError(t, err)
	require.Equal(t, "tok-123", got["Authorization"])
	require.Equal(t, "inkhost", got["X-Client"])
}

func TestResolveMap_Empty(t *testing.T) {
	r := testResolver(nil, nil)

	got, err := r.ResolveMap(nil)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestResolveMap_PropagatesError(t *testing.T) {
	r := testResolver(nil, nil)

	_, err := r.ResolveMap(map[string]string{"Authorization": "${NOPE}"})
	require.ErrorContains(t, err, "header Authorization")
}
