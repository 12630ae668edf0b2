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

// Package secrets resolves credential references in server configuration.
// Two reference forms are supported so secrets never land in the config
// file itself:
//
//	${VAR}                 environment variable
//	keyring:service/user   OS keychain entry
//
// Anything else is treated as a literal value.
package secrets

import (
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// Resolver resolves secret references.
type Resolver struct {
	// getenv looks up environment variables (swapped in tests).
	getenv func(string) (string, bool)

	// keyringGet looks up keychain entries (swapped in tests).
	keyringGet func(service, user string) (string, error)
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithEnvLookup overrides environment variable lookup.
func WithEnvLookup(fn func(string) (string, bool)) Option {
	return func(r *Resolver) { r.getenv = fn }
}

// WithKeyringLookup overrides keychain lookup.
func WithKeyringLookup(fn func(service, user string) (string, error)) Option {
	return func(r *Resolver) { r.keyringGet = fn }
}

// NewResolver creates a resolver backed by the process environment and
// the OS keychain.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		getenv:     os.LookupEnv,
		keyringGet: keyring.Get,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves a single value, returning literals unchanged.
func (r *Resolver) Resolve(value string) (string, error) {
	switch {
	case strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}"):
		name := value[2 : len(value)-1]
		if name == "" {
			return "", fmt.Errorf("empty environment variable reference")
		}
		resolved, ok := r.getenv(name)
		if !ok {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return resolved, nil

	case strings.HasPrefix(value, "keyring:"):
		ref := strings.TrimPrefix(value, "keyring:")
		service, user, ok := strings.Cut(ref, "/")
		if !ok || service == "" || user == "" {
			return "", fmt.Errorf("keyring reference must be keyring:service/user, got %q", value)
		}
		resolved, err := r.keyringGet(service, user)
		if err != nil {
			return "", fmt.Errorf("keyring lookup %s/%s failed: %w", service, user, err)
		}
		return resolved, nil

	default:
		return value, nil
	}
}

// ResolveMap resolves every value of a string map, returning a new map.
// A nil or empty input yields nil.
func (r *Resolver) ResolveMap(values map[string]string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	resolved := make(map[string]string, len(values))
	for key, value := range values {
		v, err := r.Resolve(value)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", key, err)
		}
		resolved[key] = v
	}
	return resolved, nil
}
