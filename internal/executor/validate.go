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

package executor

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/inkhost/inkhost/internal/mcp"
)

// validateArguments checks a tool's arguments against its declared JSON
// Schema. A missing or unparseable schema skips validation rather than
// blocking dispatch; servers own their schemas and a broken one is not
// the caller's fault.
func validateArguments(tool string, schema json.RawMessage, args map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	var s jsonschema.Schema
	if err := json.Unmarshal(schema, &s); err != nil {
		return nil
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil
	}

	instance := any(args)
	if args == nil {
		instance = map[string]any{}
	}
	if err := resolved.Validate(instance); err != nil {
		return &mcp.ValidationError{Tool: tool, Detail: err.Error(), Cause: err}
	}
	return nil
}
