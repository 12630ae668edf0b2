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
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/inkhost/inkhost/internal/mcp"
)

// keySep separates key segments; it cannot appear in server or tool names.
const keySep = "\x00"

// ResultKey identifies one memoized tool call. Arguments are normalized
// to canonical JSON (map keys sorted) so semantically equal argument
// sets produce the same key.
func ResultKey(serverID, tool string, args map[string]any) (string, error) {
	canonical, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("arguments are not serializable: %w", err)
	}
	return serverID + keySep + tool + keySep + string(canonical), nil
}

// resultEntry is one cached tool response.
type resultEntry struct {
	// response is the cached payload
	response *mcp.ToolCallResponse

	// storedAt is the insertion time, used for TTL expiry
	storedAt time.Time
}

// Result memoizes responses of side-effect-free tool calls. Entries
// expire after the TTL; once the cache is full the oldest inserted entry
// is evicted first. There is no LRU pressure beyond the entry cap.
type Result struct {
	// ttl is the entry time-to-live
	ttl time.Duration

	// maxEntries caps the cache size
	maxEntries int

	// entries maps result keys to cached responses
	entries map[string]resultEntry

	// order tracks insertion order for FIFO eviction
	order []string

	// now is the clock (swapped in tests)
	now func() time.Time

	// mu protects entries and order
	mu sync.Mutex
}

// NewResult creates a result cache with the given TTL and entry cap.
func NewResult(ttl time.Duration, maxEntries int) *Result {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Result{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]resultEntry),
		now:        time.Now,
	}
}

// Get returns the cached response for a key, or false when absent or
// expired. Expired entries are dropped on access.
func (r *Result) Get(key string) (*mcp.ToolCallResponse, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	if r.ttl > 0 && r.now().Sub(entry.storedAt) >= r.ttl {
		r.removeLocked(key)
		return nil, false
	}
	return entry.response, true
}

// Put stores a response. Re-putting an existing key refreshes its value
// and TTL without changing its eviction position.
func (r *Result) Put(key string, response *mcp.ToolCallResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		r.entries[key] = resultEntry{response: response, storedAt: r.now()}
		return
	}

	for len(r.entries) >= r.maxEntries && len(r.order) > 0 {
		r.removeLocked(r.order[0])
	}

	r.entries[key] = resultEntry{response: response, storedAt: r.now()}
	r.order = append(r.order, key)
}

// Invalidate drops a single entry.
func (r *Result) Invalidate(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(key)
}

// InvalidateServer drops every entry belonging to a server. Called on
// server reconfiguration and manual refresh.
func (r *Result) InvalidateServer(serverID string) {
	prefix := serverID + keySep

	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.entries {
		if strings.HasPrefix(key, prefix) {
			r.removeLocked(key)
		}
	}
}

// InvalidateAll empties the cache.
func (r *Result) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]resultEntry)
	r.order = nil
}

// Len returns the current entry count, including not-yet-collected
// expired entries.
func (r *Result) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Result) removeLocked(key string) {
	if _, ok := r.entries[key]; !ok {
		return
	}
	delete(r.entries, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
