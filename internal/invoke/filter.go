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

package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

const (
	// defaultFilterTimeout bounds jq expression execution.
	defaultFilterTimeout = 1 * time.Second

	// defaultMaxInputSize bounds the data fed to a filter (10MB).
	defaultMaxInputSize = 10 * 1024 * 1024
)

// Filter evaluates jq expressions against tool results with timeout and
// size limits.
type Filter struct {
	timeout      time.Duration
	maxInputSize int64
}

// NewFilter creates a filter executor. Zero values select the defaults.
func NewFilter(timeout time.Duration, maxInputSize int64) *Filter {
	if timeout == 0 {
		timeout = defaultFilterTimeout
	}
	if maxInputSize == 0 {
		maxInputSize = defaultMaxInputSize
	}
	return &Filter{timeout: timeout, maxInputSize: maxInputSize}
}

// Validate checks a jq expression by compiling it, catching syntax
// errors before any tool is dispatched.
func (f *Filter) Validate(expression string) error {
	if expression == "" {
		return nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return fmt.Errorf("invalid jq expression: %w", err)
	}
	if _, err := gojq.Compile(query); err != nil {
		return fmt.Errorf("jq compilation failed: %w", err)
	}
	return nil
}

// Apply runs a jq expression against the given data. An empty
// expression returns the data unchanged. A single result is returned
// directly; multiple results come back as an array.
func (f *Filter) Apply(ctx context.Context, expression string, data any) (any, error) {
	if expression == "" {
		return data, nil
	}

	if err := f.validateInputSize(data); err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}

	resultChan := make(chan any, 1)
	errorChan := make(chan error, 1)

	go func() {
		iter := code.Run(data)

		var results []any
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				errorChan <- err
				return
			}
			results = append(results, v)
		}

		switch len(results) {
		case 0:
			resultChan <- nil
		case 1:
			resultChan <- results[0]
		default:
			resultChan <- results
		}
	}()

	select {
	case result := <-resultChan:
		return result, nil
	case err := <-errorChan:
		return nil, err
	case <-execCtx.Done():
		return nil, fmt.Errorf("filter timeout after %v", f.timeout)
	}
}

// validateInputSize checks the data size by marshaling to JSON.
func (f *Filter) validateInputSize(data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal filter input: %w", err)
	}
	if int64(len(jsonData)) > f.maxInputSize {
		return fmt.Errorf("filter input (%d bytes) exceeds maximum (%d bytes)", len(jsonData), f.maxInputSize)
	}
	return nil
}
