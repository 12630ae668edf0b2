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

// Package cache holds the three in-memory caches around tool execution:
// the tool discovery snapshot that routes tool names to servers, the
// result cache that memoizes side-effect-free tool calls, and the
// per-document usage cache backing UI summaries.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/inkhost/inkhost/internal/mcp"
)

// ToolRoute is one entry of the discovery snapshot: a tool and the
// server that owns it. Stale routes come from servers that have dropped
// since the snapshot was taken; they are served flagged rather than
// withheld so callers can still build schemas and degrade gracefully.
type ToolRoute struct {
	// ServerID is the owning server
	ServerID string

	// Tool is the tool definition as last reported by the server
	Tool mcp.ToolDefinition

	// Stale indicates the owning server has disconnected since the
	// snapshot was refreshed
	Stale bool

	// RefreshedAt is when the owning server's tool list was last updated
	RefreshedAt time.Time
}

// serverSnapshot is one server's contribution to the discovery cache.
type serverSnapshot struct {
	// tools in reported order
	tools []mcp.ToolDefinition

	// byName indexes tools for lookup
	byName map[string]mcp.ToolDefinition

	// stale is set when the server disconnects
	stale bool

	// refreshedAt is when the tool list was last replaced
	refreshedAt time.Time
}

// Discovery maintains the tool name to owning server snapshot. It is
// refreshed by the server manager whenever a server (re)connects and
// flagged stale when one drops.
type Discovery struct {
	// servers maps server ID to its snapshot
	servers map[string]*serverSnapshot

	// mu protects servers
	mu sync.RWMutex
}

// NewDiscovery creates an empty discovery cache.
func NewDiscovery() *Discovery {
	return &Discovery{servers: make(map[string]*serverSnapshot)}
}

// Update replaces a server's tool list and clears its stale flag.
func (d *Discovery) Update(serverID string, tools []mcp.ToolDefinition) {
	byName := make(map[string]mcp.ToolDefinition, len(tools))
	for _, tool := range tools {
		byName[tool.Name] = tool
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.servers[serverID] = &serverSnapshot{
		tools:       tools,
		byName:      byName,
		refreshedAt: time.Now(),
	}
}

// MarkStale flags a server's snapshot as stale. The snapshot remains
// servable; unknown servers are ignored.
func (d *Discovery) MarkStale(serverID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if snap, ok := d.servers[serverID]; ok {
		snap.stale = true
	}
}

// Remove drops a server's snapshot entirely.
func (d *Discovery) Remove(serverID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.servers, serverID)
}

// Lookup resolves a tool name to its route. When several servers expose
// the same tool name, fresh snapshots win over stale ones; ties break by
// server ID for determinism.
func (d *Discovery) Lookup(toolName string) (ToolRoute, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var (
		best  ToolRoute
		found bool
	)
	ids := make([]string, 0, len(d.servers))
	for id := range d.servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		snap := d.servers[id]
		tool, ok := snap.byName[toolName]
		if !ok {
			continue
		}
		route := ToolRoute{
			ServerID:    id,
			Tool:        tool,
			Stale:       snap.stale,
			RefreshedAt: snap.refreshedAt,
		}
		if !found || (best.Stale && !route.Stale) {
			best = route
			found = true
		}
	}

	return best, found
}

// LookupOn resolves a tool name on a specific server.
func (d *Discovery) LookupOn(serverID, toolName string) (ToolRoute, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snap, ok := d.servers[serverID]
	if !ok {
		return ToolRoute{}, false
	}
	tool, ok := snap.byName[toolName]
	if !ok {
		return ToolRoute{}, false
	}
	return ToolRoute{
		ServerID:    serverID,
		Tool:        tool,
		Stale:       snap.stale,
		RefreshedAt: snap.refreshedAt,
	}, true
}

// ServerTools returns a server's tool list and staleness.
func (d *Discovery) ServerTools(serverID string) ([]mcp.ToolDefinition, bool, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snap, ok := d.servers[serverID]
	if !ok {
		return nil, false, false
	}
	tools := make([]mcp.ToolDefinition, len(snap.tools))
	copy(tools, snap.tools)
	return tools, snap.stale, true
}

// Routes returns the full snapshot, sorted by server ID then tool name.
// This is the list provider integrations use to build tool schemas.
func (d *Discovery) Routes() []ToolRoute {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.servers))
	for id := range d.servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var routes []ToolRoute
	for _, id := range ids {
		snap := d.servers[id]
		tools := make([]mcp.ToolDefinition, len(snap.tools))
		copy(tools, snap.tools)
		sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
		for _, tool := range tools {
			routes = append(routes, ToolRoute{
				ServerID:    id,
				Tool:        tool,
				Stale:       snap.stale,
				RefreshedAt: snap.refreshedAt,
			})
		}
	}
	return routes
}
