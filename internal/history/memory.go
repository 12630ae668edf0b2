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

package history

import (
	"context"
	"sync"
)

// MemoryStore keeps execution records in memory. It is the default
// store when no history path is configured.
type MemoryStore struct {
	// maxEntries caps the number of retained records
	maxEntries int

	// records holds records in insertion order, oldest first
	records []Record

	// mu protects records
	mu sync.RWMutex
}

// NewMemoryStore creates a bounded in-memory history store.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return &MemoryStore{maxEntries: maxEntries}
}

// Append records an execution, evicting the oldest once at capacity.
func (s *MemoryStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	if overflow := len(s.records) - s.maxEntries; overflow > 0 {
		s.records = append(s.records[:0:0], s.records[overflow:]...)
	}
	return nil
}

// List returns the most recent records, newest first.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(limit, func(Record) bool { return true }), nil
}

// ListByDocument returns the most recent records for one document.
func (s *MemoryStore) ListByDocument(ctx context.Context, path string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(limit, func(rec Record) bool { return rec.DocumentPath == path }), nil
}

// Clear drops all records.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// collect walks records newest first, filtering and capping the result.
// Callers hold at least the read lock.
func (s *MemoryStore) collect(limit int, keep func(Record) bool) []Record {
	if limit <= 0 {
		limit = len(s.records)
	}

	out := make([]Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	return out
}
