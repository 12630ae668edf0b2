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

package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArguments(t *testing.T) {
	args, err := parseArguments([]string{"query=go generics", "limit=5", "deep=true"})
	require.NoError(t, err)
	require.Equal(t, "go generics", args["query"])
	require.Equal(t, 5, args["limit"])
	require.Equal(t, true, args["deep"])
}

func TestParseArguments_Empty(t *testing.T) {
	args, err := parseArguments(nil)
	require.NoError(t, err)
	require.Nil(t, args)
}

func TestParseArguments_Malformed(t *testing.T) {
	_, err := parseArguments([]string{"no-equals"})
	require.ErrorContains(t, err, "not key=value")

	_, err = parseArguments([]string{"=value"})
	require.Error(t, err)
}

func TestParseArguments_EmptyValueStaysString(t *testing.T) {
	args, err := parseArguments([]string{"query="})
	require.NoError(t, err)
	require.Contains(t, args, "query")
}
