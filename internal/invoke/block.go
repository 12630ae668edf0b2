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

// Package invoke turns the YAML parameter blocks authored in documents
// into tool executions: parsing, dispatch through the executor, and
// optional jq post-filtering of results.
package invoke

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLParseError indicates a malformed parameter block.
type YAMLParseError struct {
	// Detail describes the parse failure.
	Detail string
	// Cause is the underlying decoder error, if any.
	Cause error
}

func (e *YAMLParseError) Error() string {
	return fmt.Sprintf("invalid tool block: %s", e.Detail)
}

func (e *YAMLParseError) Unwrap() error { return e.Cause }

// Invocation is one parsed tool block, consumed exactly once by the
// executor.
type Invocation struct {
	// ServerID addresses a specific server; empty routes by tool name.
	ServerID string `yaml:"server"`

	// Tool is the tool to execute (required).
	Tool string `yaml:"tool"`

	// Arguments is the tool's input payload.
	Arguments map[string]any `yaml:"args"`

	// Filter is an optional jq expression applied to the result.
	Filter string `yaml:"filter"`
}

// Parse decodes the body of a tool block. The body is YAML with a
// required "tool" key:
//
//	tool: web_search
//	server: search
//	args:
//	  query: how do goroutines work
//	filter: .results[0].title
func Parse(source string) (*Invocation, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &YAMLParseError{Detail: "block is empty"}
	}

	var inv Invocation
	decoder := yaml.NewDecoder(strings.NewReader(source))
	decoder.KnownFields(true)
	if err := decoder.Decode(&inv); err != nil {
		return nil, &YAMLParseError{Detail: err.Error(), Cause: err}
	}

	if inv.Tool == "" {
		return nil, &YAMLParseError{Detail: "tool is required"}
	}

	return &inv, nil
}
