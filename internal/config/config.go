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

// Package config defines the inkhost configuration surface: execution
// limits, retry policy, cache tuning, and the persisted MCP server
// entries. Configuration is stored as YAML, typically at
// ~/.config/inkhost/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerNameRegex validates MCP server identifiers.
// IDs must start with a letter and contain only letters, numbers, hyphens,
// and underscores. Maximum length is 64 characters.
var ServerNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

// Deployment identifies how an MCP server is run and reached.
type Deployment string

const (
	// DeploymentStdio spawns a local child process speaking MCP over stdio.
	DeploymentStdio Deployment = "stdio"
	// DeploymentDocker runs the server in a managed container, attached
	// over stdio via the docker CLI.
	DeploymentDocker Deployment = "docker"
	// DeploymentSSE connects to an external server over SSE/HTTP.
	DeploymentSSE Deployment = "sse"
)

// Config is the root configuration document.
type Config struct {
	// Limits bounds concurrent executions and per-document sessions.
	Limits Limits `yaml:"limits,omitempty"`

	// Retry configures reconnection backoff for server connections.
	Retry Retry `yaml:"retry,omitempty"`

	// Caches tunes the result and document caches.
	Caches Caches `yaml:"caches,omitempty"`

	// History configures the execution log.
	History History `yaml:"history,omitempty"`

	// Servers maps server ID to configuration.
	Servers map[string]*ServerEntry `yaml:"servers,omitempty"`
}

// Limits bounds admission control.
type Limits struct {
	// CallTimeout is the per-call timeout in seconds (default: 30).
	CallTimeout int `yaml:"call_timeout,omitempty"`

	// ConcurrentLimit caps process-wide in-flight executions (default: 3).
	ConcurrentLimit int `yaml:"concurrent_limit,omitempty"`

	// SessionLimit caps concurrent sessions per document (default: 25).
	SessionLimit int `yaml:"session_limit,omitempty"`

	// FailureThreshold is the consecutive-failure count that auto-disables
	// a server (default: 3).
	FailureThreshold int `yaml:"failure_threshold,omitempty"`
}

// Retry configures exponential backoff for server reconnection.
type Retry struct {
	// MaxAttempts caps reconnection attempts before the server is
	// disabled (default: 5).
	MaxAttempts int `yaml:"max_attempts,omitempty"`

	// InitialDelayMS is the delay before the first retry in milliseconds
	// (default: 1000).
	InitialDelayMS int `yaml:"initial_delay_ms,omitempty"`

	// MaxDelayMS caps the backoff delay in milliseconds (default: 30000).
	MaxDelayMS int `yaml:"max_delay_ms,omitempty"`

	// Multiplier is the exponential backoff multiplier (default: 2).
	Multiplier float64 `yaml:"multiplier,omitempty"`

	// Jitter enables randomized backoff (default: true).
	Jitter *bool `yaml:"jitter,omitempty"`

	// JitterFraction is the uniform jitter range around the computed
	// delay (default: 0.25, meaning [0.75x, 1.25x]).
	JitterFraction float64 `yaml:"jitter_fraction,omitempty"`
}

// Caches tunes the TTL caches.
type Caches struct {
	// ResultTTL is the result-cache time-to-live in seconds (default: 300).
	ResultTTL int `yaml:"result_ttl,omitempty"`

	// ResultMaxEntries caps the result cache (default: 256).
	ResultMaxEntries int `yaml:"result_max_entries,omitempty"`

	// DocumentMaxEntries caps the per-document tool cache (default: 128).
	DocumentMaxEntries int `yaml:"document_max_entries,omitempty"`
}

// History configures the execution log.
type History struct {
	// MaxEntries caps the in-memory execution history (default: 200).
	MaxEntries int `yaml:"max_entries,omitempty"`

	// Path is the SQLite database file for persistent history.
	// Empty disables persistence.
	Path string `yaml:"path,omitempty"`
}

// ServerEntry is a single persisted MCP server configuration.
// Exactly one deployment section must match the Deployment kind.
type ServerEntry struct {
	// Name is a human-readable display name. Defaults to the entry's ID.
	Name string `yaml:"name,omitempty"`

	// Enabled gates dispatch to this server (default: true).
	Enabled *bool `yaml:"enabled,omitempty"`

	// Deployment selects how the server is run (stdio, docker, sse).
	Deployment Deployment `yaml:"deployment"`

	// Stdio configures a child-process server (deployment: stdio).
	Stdio *StdioConfig `yaml:"stdio,omitempty"`

	// Docker configures a managed container server (deployment: docker).
	Docker *DockerConfig `yaml:"docker,omitempty"`

	// SSE configures an external SSE/HTTP server (deployment: sse).
	SSE *SSEConfig `yaml:"sse,omitempty"`

	// Timeout overrides the global per-call timeout, in seconds.
	Timeout int `yaml:"timeout,omitempty"`

	// RateLimit caps tool calls per second against this server.
	// 0 means unlimited.
	RateLimit float64 `yaml:"rate_limit,omitempty"`

	// RateBurst is the rate-limiter burst size (default: 1 when
	// RateLimit is set).
	RateBurst int `yaml:"rate_burst,omitempty"`

	// CacheableTools lists tools declared side-effect-free; their results
	// may be served from the result cache.
	CacheableTools []string `yaml:"cacheable_tools,omitempty"`
}

// StdioConfig configures a child-process MCP server.
type StdioConfig struct {
	// Command is the executable to run.
	Command string `yaml:"command"`

	// Args are command-line arguments.
	Args []string `yaml:"args,omitempty"`

	// Env are environment variables in KEY=VALUE format.
	Env []string `yaml:"env,omitempty"`
}

// DockerConfig configures a container-managed MCP server.
type DockerConfig struct {
	// Image is the container image to run.
	Image string `yaml:"image"`

	// Volumes are bind mounts in HOST:CONTAINER format.
	Volumes []string `yaml:"volumes,omitempty"`

	// Env are environment variables in KEY=VALUE format.
	Env []string `yaml:"env,omitempty"`

	// Network is the docker network name (default: none).
	Network string `yaml:"network,omitempty"`
}

// SSEConfig configures an external MCP server reached over SSE.
type SSEConfig struct {
	// URL is the server endpoint.
	URL string `yaml:"url"`

	// Headers are sent with every request. Values support ${ENV} and
	// keyring:service/user references, resolved at connect time.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Default returns a Config populated with all defaults and no servers.
func Default() *Config {
	cfg := &Config{Servers: map[string]*ServerEntry{}}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Limits.CallTimeout == 0 {
		c.Limits.CallTimeout = 30
	}
	if c.Limits.ConcurrentLimit == 0 {
		c.Limits.ConcurrentLimit = 3
	}
	if c.Limits.SessionLimit == 0 {
		c.Limits.SessionLimit = 25
	}
	if c.Limits.FailureThreshold == 0 {
		c.Limits.FailureThreshold = 3
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 5
	}
	if c.Retry.InitialDelayMS == 0 {
		c.Retry.InitialDelayMS = 1000
	}
	if c.Retry.MaxDelayMS == 0 {
		c.Retry.MaxDelayMS = 30000
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 2.0
	}
	if c.Retry.Jitter == nil {
		enabled := true
		c.Retry.Jitter = &enabled
	}
	if c.Retry.JitterFraction == 0 {
		c.Retry.JitterFraction = 0.25
	}
	if c.Caches.ResultTTL == 0 {
		c.Caches.ResultTTL = 300
	}
	if c.Caches.ResultMaxEntries == 0 {
		c.Caches.ResultMaxEntries = 256
	}
	if c.Caches.DocumentMaxEntries == 0 {
		c.Caches.DocumentMaxEntries = 128
	}
	if c.History.MaxEntries == 0 {
		c.History.MaxEntries = 200
	}
	if c.Servers == nil {
		c.Servers = map[string]*ServerEntry{}
	}
}

// CallTimeoutFor returns the effective per-call timeout for a server.
func (c *Config) CallTimeoutFor(entry *ServerEntry) time.Duration {
	if entry != nil && entry.Timeout > 0 {
		return time.Duration(entry.Timeout) * time.Second
	}
	return time.Duration(c.Limits.CallTimeout) * time.Second
}

// IsEnabled reports whether the entry is enabled (default: true).
func (e *ServerEntry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// IsCacheable reports whether the named tool is declared side-effect-free.
func (e *ServerEntry) IsCacheable(tool string) bool {
	for _, t := range e.CacheableTools {
		if t == tool {
			return true
		}
	}
	return false
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	if c.Limits.CallTimeout < 0 {
		return fmt.Errorf("limits.call_timeout must be non-negative, got %d", c.Limits.CallTimeout)
	}
	if c.Limits.ConcurrentLimit < 1 {
		return fmt.Errorf("limits.concurrent_limit must be at least 1, got %d", c.Limits.ConcurrentLimit)
	}
	if c.Limits.SessionLimit < 1 {
		return fmt.Errorf("limits.session_limit must be at least 1, got %d", c.Limits.SessionLimit)
	}
	if c.Limits.FailureThreshold < 1 {
		return fmt.Errorf("limits.failure_threshold must be at least 1, got %d", c.Limits.FailureThreshold)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.MaxDelayMS < c.Retry.InitialDelayMS {
		return fmt.Errorf("retry.max_delay_ms (%d) must be >= retry.initial_delay_ms (%d)",
			c.Retry.MaxDelayMS, c.Retry.InitialDelayMS)
	}
	if c.Retry.Multiplier < 1.0 {
		return fmt.Errorf("retry.multiplier must be >= 1.0, got %f", c.Retry.Multiplier)
	}
	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction >= 1 {
		return fmt.Errorf("retry.jitter_fraction must be in [0, 1), got %f", c.Retry.JitterFraction)
	}

	for id, entry := range c.Servers {
		if !ServerNameRegex.MatchString(id) {
			return fmt.Errorf("server %q: invalid ID (must match %s)", id, ServerNameRegex.String())
		}
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("server %q: %w", id, err)
		}
	}

	return nil
}

// Validate checks a single server entry. The deployment union must be
// internally consistent: the kind-specific section for the declared
// deployment is required, and the others must be absent.
func (e *ServerEntry) Validate() error {
	switch e.Deployment {
	case DeploymentStdio:
		if e.Stdio == nil {
			return fmt.Errorf("deployment is stdio but stdio section is missing")
		}
		if e.Docker != nil || e.SSE != nil {
			return fmt.Errorf("stdio deployment must not carry docker or sse sections")
		}
		if e.Stdio.Command == "" {
			return fmt.Errorf("stdio.command is required")
		}
	case DeploymentDocker:
		if e.Docker == nil {
			return fmt.Errorf("deployment is docker but docker section is missing")
		}
		if e.Stdio != nil || e.SSE != nil {
			return fmt.Errorf("docker deployment must not carry stdio or sse sections")
		}
		if e.Docker.Image == "" {
			return fmt.Errorf("docker.image is required")
		}
	case DeploymentSSE:
		if e.SSE == nil {
			return fmt.Errorf("deployment is sse but sse section is missing")
		}
		if e.Stdio != nil || e.Docker != nil {
			return fmt.Errorf("sse deployment must not carry stdio or docker sections")
		}
		if e.SSE.URL == "" {
			return fmt.Errorf("sse.url is required")
		}
	case "":
		return fmt.Errorf("deployment is required (stdio, docker, or sse)")
	default:
		return fmt.Errorf("unknown deployment %q (must be stdio, docker, or sse)", e.Deployment)
	}

	if e.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be non-negative, got %f", e.RateLimit)
	}

	return nil
}

// DefaultPath returns the default configuration file location,
// honoring XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "inkhost", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "inkhost", "config.yaml"), nil
}

// Load reads and validates the configuration at path. A missing file
// yields the default configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to path, creating parent directories
// as needed. The write is atomic: data lands in a temp file first.
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace config: %w", err)
	}

	return nil
}
