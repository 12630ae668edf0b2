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
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpproto "github.com/mark3labs/mcp-go/mcp"

	"github.com/inkhost/inkhost/internal/config"
	"github.com/inkhost/inkhost/internal/secrets"
)

// clientName identifies this host in the MCP initialize handshake.
const clientName = "inkhost"

// Client wraps a single MCP server connection.
type Client struct {
	// serverID is the unique identifier for this server
	serverID string

	// client is the underlying MCP protocol client
	client *client.Client

	// timeout is the default timeout for tool calls
	timeout time.Duration
}

// ClientConfig configures an MCP client connection.
type ClientConfig struct {
	// ServerID is the unique identifier for this server (required).
	ServerID string

	// Entry is the server's deployment configuration (required).
	Entry *config.ServerEntry

	// Timeout is the default timeout for tool calls (defaults to 30s).
	Timeout time.Duration

	// Secrets resolves ${ENV} and keyring references in SSE headers
	// (optional; defaults to environment-only resolution).
	Secrets *secrets.Resolver
}

// NewClient connects to an MCP server according to its deployment kind
// and completes the initialize handshake.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.ServerID == "" {
		return nil, fmt.Errorf("server ID is required")
	}
	if cfg.Entry == nil {
		return nil, fmt.Errorf("server entry is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	inner, err := newTransportClient(cfg)
	if err != nil {
		return nil, err
	}

	if err := inner.Start(ctx); err != nil {
		return nil, &ConnectionError{ServerID: cfg.ServerID, Transient: Transient(err), Cause: err}
	}

	c := &Client{
		serverID: cfg.ServerID,
		client:   inner,
		timeout:  timeout,
	}

	if err := c.initialize(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// newTransportClient builds the protocol client for the entry's
// deployment kind. Each kind of the union is handled exhaustively;
// config validation guarantees the matching section is present.
func newTransportClient(cfg ClientConfig) (*client.Client, error) {
	entry := cfg.Entry

	switch entry.Deployment {
	case config.DeploymentStdio:
		inner, err := client.NewStdioMCPClient(entry.Stdio.Command, entry.Stdio.Env, entry.Stdio.Args...)
		if err != nil {
			return nil, &ConnectionError{ServerID: cfg.ServerID, Transient: Transient(err), Cause: err}
		}
		return inner, nil

	case config.DeploymentDocker:
		if _, err := exec.LookPath("docker"); err != nil {
			return nil, &DockerError{
				ServerID: cfg.ServerID,
				Image:    entry.Docker.Image,
				Detail:   "docker binary not found in PATH",
				Cause:    err,
			}
		}
		inner, err := client.NewStdioMCPClient("docker", nil, dockerRunArgs(entry.Docker)...)
		if err != nil {
			return nil, &DockerError{
				ServerID: cfg.ServerID,
				Image:    entry.Docker.Image,
				Detail:   "failed to start container",
				Cause:    err,
			}
		}
		return inner, nil

	case config.DeploymentSSE:
		resolver := cfg.Secrets
		if resolver == nil {
			resolver = secrets.NewResolver()
		}
		headers, err := resolver.ResolveMap(entry.SSE.Headers)
		if err != nil {
			return nil, &ConnectionError{ServerID: cfg.ServerID, Transient: false, Cause: err}
		}

		var opts []transport.ClientOption
		if len(headers) > 0 {
			opts = append(opts, transport.WithHeaders(headers))
		}
		inner, err := client.NewSSEMCPClient(entry.SSE.URL, opts...)
		if err != nil {
			return nil, &ConnectionError{ServerID: cfg.ServerID, Transient: Transient(err), Cause: err}
		}
		return inner, nil

	default:
		return nil, &ConnectionError{
			ServerID:  cfg.ServerID,
			Transient: false,
			Cause:     fmt.Errorf("unknown deployment %q", entry.Deployment),
		}
	}
}

// dockerRunArgs builds the docker CLI argument list for a managed server.
// The container speaks MCP over its stdio, so it runs attached (-i) and
// is removed on exit.
func dockerRunArgs(d *config.DockerConfig) []string {
	args := []string{"run", "--rm", "-i"}
	if d.Network != "" {
		args = append(args, "--network", d.Network)
	}
	for _, vol := range d.Volumes {
		args = append(args, "-v", vol)
	}
	for _, env := range d.Env {
		args = append(args, "-e", env)
	}
	return append(args, d.Image)
}

// initialize sends the initialize request to the MCP server.
func (c *Client) initialize(ctx context.Context) error {
	initReq := mcpproto.InitializeRequest{
		Params: mcpproto.InitializeParams{
			ProtocolVersion: mcpproto.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcpproto.ClientCapabilities{},
			ClientInfo: mcpproto.Implementation{
				Name:    clientName,
				Version: "0.1.0",
			},
		},
	}

	if _, err := c.client.Initialize(ctx, initReq); err != nil {
		return &ConnectionError{ServerID: c.serverID, Transient: Transient(err), Cause: err}
	}

	return nil
}

// ListTools retrieves the list of available tools from the MCP server.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := c.client.ListTools(ctx, mcpproto.ListToolsRequest{})
	if err != nil {
		return nil, &ConnectionError{ServerID: c.serverID, Transient: Transient(err), Cause: err}
	}

	tools := make([]ToolDefinition, len(result.Tools))
	for i, tool := range result.Tools {
		def, err := toolDefinition(tool)
		if err != nil {
			return nil, err
		}
		tools[i] = def
	}

	return tools, nil
}

// toolDefinition converts a protocol tool into a ToolDefinition. Tools
// decoded from a server's tools/list response carry their schema in the
// structured InputSchema field, not RawInputSchema, so the structured
// form is marshaled back to JSON when the raw bytes are absent.
func toolDefinition(tool mcpproto.Tool) (ToolDefinition, error) {
	def := ToolDefinition{
		Name:        tool.Name,
		Description: tool.Description,
	}

	if len(tool.RawInputSchema) > 0 {
		def.InputSchema = tool.RawInputSchema
		return def, nil
	}

	toolBytes, err := tool.MarshalJSON()
	if err != nil {
		return ToolDefinition{}, fmt.Errorf("failed to marshal tool %s: %w", tool.Name, err)
	}
	var toolMap map[string]any
	if err := json.Unmarshal(toolBytes, &toolMap); err != nil {
		return ToolDefinition{}, fmt.Errorf("failed to unmarshal tool %s: %w", tool.Name, err)
	}
	if inputSchema, ok := toolMap["inputSchema"]; ok {
		schemaBytes, err := json.Marshal(inputSchema)
		if err != nil {
			return ToolDefinition{}, fmt.Errorf("failed to marshal input schema for %s: %w", tool.Name, err)
		}
		def.InputSchema = schemaBytes
	}

	return def, nil
}

// CallTool executes an MCP tool with the given arguments, bounded by the
// client's per-call timeout.
func (c *Client) CallTool(ctx context.Context, req ToolCallRequest) (*ToolCallResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	mcpReq := mcpproto.CallToolRequest{
		Params: mcpproto.CallToolParams{
			Name:      req.Name,
			Arguments: req.Arguments,
		},
	}

	result, err := c.client.CallTool(ctx, mcpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{ServerID: c.serverID, Tool: req.Name, Timeout: c.timeout}
		}
		return nil, fmt.Errorf("tool call failed: %w", err)
	}

	response := &ToolCallResponse{
		IsError: result.IsError,
		Content: make([]ContentItem, 0, len(result.Content)),
	}

	for _, content := range result.Content {
		if textContent, ok := mcpproto.AsTextContent(content); ok {
			response.Content = append(response.Content, ContentItem{
				Type: textContent.Type,
				Text: textContent.Text,
			})
			continue
		}
		if imageContent, ok := mcpproto.AsImageContent(content); ok {
			response.Content = append(response.Content, ContentItem{
				Type:     imageContent.Type,
				Data:     imageContent.Data,
				MimeType: imageContent.MIMEType,
			})
			continue
		}
		// Unknown content kinds pass through as opaque text.
		response.Content = append(response.Content, ContentItem{
			Type: "text",
			Text: fmt.Sprintf("%v", content),
		})
	}

	return response, nil
}

// Ping checks if the server is still responsive.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx); err != nil {
		return &ConnectionError{ServerID: c.serverID, Transient: Transient(err), Cause: err}
	}
	return nil
}

// ServerID returns the unique identifier for this server.
func (c *Client) ServerID() string {
	return c.serverID
}

// Close closes the connection to the MCP server and stops the process.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close MCP client: %w", err)
	}
	return nil
}
