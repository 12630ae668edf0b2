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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDocuments_RecordAndSummarize(t *testing.T) {
	d := NewDocuments(time.Minute, 10)

	d.RecordUse("notes/a.md", "search", "web_search")
	d.RecordUse("notes/a.md", "search", "web_search")
	d.RecordUse("notes/a.md", "files", "read_file")

	usage, ok := d.Usage("notes/a.md")
	require.True(t, ok)
	require.Equal(t, "notes/a.md", usage.Path)
	require.Len(t, usage.Uses, 2)

	// Sorted by server then tool.
	require.Equal(t, "files", usage.Uses[0].ServerID)
	require.Equal(t, 1, usage.Uses[0].Count)
	require.Equal(t, "search", usage.Uses[1].ServerID)
	require.Equal(t, 2, usage.Uses[1].Count)
}

func TestDocuments_UntrackedDocument(t *testing.T) {
	d := NewDocuments(time.Minute, 10)

	_, ok := d.Usage("notes/missing.md")
	require.False(t, ok)
}

func TestDocuments_TTLExpiry(t *testing.T) {
	d := NewDocuments(time.Minute, 10)
	now := time.Now()
	d.now = func() time.Time { return now }

	d.RecordUse("notes/a.md", "search", "web_search")

	now = now.Add(2 * time.Minute)
	_, ok := d.Usage("notes/a.md")
	require.False(t, ok)
	require.Zero(t, d.Len())
}

func TestDocuments_RecordRefreshesTTL(t *testing.T) {
	d := NewDocuments(time.Minute, 10)
	now := time.Now()
	d.now = func() time.Time { return now }

	d.RecordUse("notes/a.md", "search", "web_search")
	now = now.Add(50 * time.Second)
	d.RecordUse("notes/a.md", "search", "web_search")
	now = now.Add(50 * time.Second)

	_, ok := d.Usage("notes/a.md")
	require.True(t, ok)
}

func TestDocuments_FIFOEviction(t *testing.T) {
	d := NewDocuments(time.Minute, 2)

	d.RecordUse("a.md", "search", "web_search")
	d.RecordUse("b.md", "search", "web_search")
	d.RecordUse("c.md", "search", "web_search")

	_, ok := d.Usage("a.md")
	require.False(t, ok, "oldest tracked document evicted first")
	_, ok = d.Usage("b.md")
	require.True(t, ok)
	_, ok = d.Usage("c.md")
	require.True(t, ok)
}

func TestDocuments_Invalidate(t *testing.T) {
	d := NewDocuments(time.Minute, 10)
	d.RecordUse("a.md", "search", "web_search")
	d.RecordUse("b.md", "search", "web_search")

	d.Invalidate("a.md")
	_, ok := d.Usage("a.md")
	require.False(t, ok)

	d.InvalidateAll()
	require.Zero(t, d.Len())
}
