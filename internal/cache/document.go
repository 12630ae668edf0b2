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

package cache

import (
	"sort"
	"sync"
	"time"
)

// ToolUse summarizes one document's use of one tool.
type ToolUse struct {
	// ServerID is the server the tool was dispatched to
	ServerID string `json:"server_id"`

	// Tool is the tool name
	Tool string `json:"tool"`

	// Count is how many times the document invoked the tool
	Count int `json:"count"`

	// LastUsed is the most recent invocation time
	LastUsed time.Time `json:"last_used"`
}

// DocumentUsage is the cached per-document invocation summary.
type DocumentUsage struct {
	// Path is the document path
	Path string `json:"path"`

	// Uses lists the tools the document has invoked, sorted by server
	// then tool
	Uses []ToolUse `json:"uses"`

	// UpdatedAt is the last time any use was recorded
	UpdatedAt time.Time `json:"updated_at"`
}

// documentEntry is one document's tracked usage.
type documentEntry struct {
	// uses maps "serverID\x00tool" to usage counters
	uses map[string]*ToolUse

	// updatedAt is the last recording time, used for TTL expiry
	updatedAt time.Time
}

// Documents tracks which tools each document has invoked, for UI
// summaries. Entries expire after the TTL; at the entry cap the oldest
// tracked document is evicted first.
type Documents struct {
	// ttl is the entry time-to-live
	ttl time.Duration

	// maxEntries caps the number of tracked documents
	maxEntries int

	// entries maps document path to usage
	entries map[string]*documentEntry

	// order tracks insertion order for FIFO eviction
	order []string

	// now is the clock (swapped in tests)
	now func() time.Time

	// mu protects entries and order
	mu sync.Mutex
}

// NewDocuments creates a document usage cache.
func NewDocuments(ttl time.Duration, maxEntries int) *Documents {
	if maxEntries <= 0 {
		maxEntries = 128
	}
	return &Documents{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*documentEntry),
		now:        time.Now,
	}
}

// RecordUse notes that a document invoked a tool.
func (d *Documents) RecordUse(path, serverID, tool string) {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.entries[path]
	if !ok {
		for len(d.entries) >= d.maxEntries && len(d.order) > 0 {
			d.removeLocked(d.order[0])
		}
		entry = &documentEntry{uses: make(map[string]*ToolUse)}
		d.entries[path] = entry
		d.order = append(d.order, path)
	}

	key := serverID + keySep + tool
	use, ok := entry.uses[key]
	if !ok {
		use = &ToolUse{ServerID: serverID, Tool: tool}
		entry.uses[key] = use
	}
	use.Count++
	use.LastUsed = now
	entry.updatedAt = now
}

// Usage returns a document's invocation summary, or false when the
// document is untracked or its entry has expired.
func (d *Documents) Usage(path string) (DocumentUsage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.entries[path]
	if !ok {
		return DocumentUsage{}, false
	}
	if d.ttl > 0 && d.now().Sub(entry.updatedAt) >= d.ttl {
		d.removeLocked(path)
		return DocumentUsage{}, false
	}

	uses := make([]ToolUse, 0, len(entry.uses))
	for _, use := range entry.uses {
		uses = append(uses, *use)
	}
	sort.Slice(uses, func(i, j int) bool {
		if uses[i].ServerID != uses[j].ServerID {
			return uses[i].ServerID < uses[j].ServerID
		}
		return uses[i].Tool < uses[j].Tool
	})

	return DocumentUsage{Path: path, Uses: uses, UpdatedAt: entry.updatedAt}, true
}

// Invalidate drops a document's tracked usage.
func (d *Documents) Invalidate(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(path)
}

// InvalidateAll empties the cache.
func (d *Documents) InvalidateAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[string]*documentEntry)
	d.order = nil
}

// Len returns the number of tracked documents.
func (d *Documents) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *Documents) removeLocked(path string) {
	if _, ok := d.entries[path]; !ok {
		return
	}
	delete(d.entries, path)
	for i, p := range d.order {
		if p == path {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}
