// Copyright 2025 Poiesic Systems
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


package tagging

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonschema"
	"github.com/poiesic/tagger/core"
)

const verdictSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "optimized_new_prompt": {
      "type": "string",
      "minLength": 1
    },
    "optimization_score": {
      "type": "number",
      "minimum": 0,
      "maximum": 100
    },
    "analysis_results": {
      "type": "object"
    }
  },
  "required": ["optimized_new_prompt", "optimization_score"]
}`

var (
	compiledVerdictSchema = mustCompileSchema(verdictSchema)
	fencedBlock           = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n(.*?)\r?\n?```")
)

func mustCompileSchema(src string) *jsonschema.Schema {
	schema, err := jsonschema.NewCompiler().Compile([]byte(src))
	if err != nil {
		panic(fmt.Sprintf("compile verdict schema: %v", err))
	}
	return schema
}

// verdictPayload mirrors the judge's JSON response.
// Optional analysis fields are decoded leniently.
type verdictPayload struct {
	RevisedTemplate string          `json:"optimized_new_prompt"`
	Score           float64         `json:"optimization_score"`
	Analysis        json.RawMessage `json:"analysis_results"`
	Directions      json.RawMessage `json:"improvement_direction"`
}

type analysisPayload struct {
	Strengths  json.RawMessage `json:"strengths"`
	Weaknesses json.RawMessage `json:"weaknesses"`
}

// ParseVerdict extracts a verdict from a raw judge response. The response may
// be bare JSON or wrapped in a fenced code block. Any defect that leaves the
// revised template or the score unknown yields ErrVerdictUnparseable.
func ParseVerdict(raw string) (core.Verdict, error) {
	body := extractJSON(raw)
	if body == "" {
		return core.Verdict{}, fmt.Errorf("%w: no JSON object in response", ErrVerdictUnparseable)
	}

	if !json.Valid([]byte(body)) {
		repaired := repairJSON(body)
		if !json.Valid([]byte(repaired)) {
			return core.Verdict{}, fmt.Errorf("%w: malformed JSON", ErrVerdictUnparseable)
		}
		body = repaired
	}

	result := compiledVerdictSchema.ValidateJSON([]byte(body))
	if !result.IsValid() {
		return core.Verdict{}, fmt.Errorf("%w: %v", ErrVerdictUnparseable, result.Errors)
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return core.Verdict{}, fmt.Errorf("%w: %w", ErrVerdictUnparseable, err)
	}

	verdict := core.Verdict{
		RevisedTemplate: payload.RevisedTemplate,
		Score:           payload.Score,
		Directions:      lenientStrings(payload.Directions),
	}
	if len(payload.Analysis) > 0 {
		var analysis analysisPayload
		if json.Unmarshal(payload.Analysis, &analysis) == nil {
			verdict.Strengths = lenientStrings(analysis.Strengths)
			verdict.Weaknesses = lenientStrings(analysis.Weaknesses)
		}
	}
	return verdict, nil
}

// extractJSON returns the fenced block contents if present, otherwise the
// span from the first '{' to the last '}'.
func extractJSON(raw string) string {
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return ""
	}
	return raw[start : end+1]
}

// lenientStrings accepts a JSON string or array of strings.
func lenientStrings(data json.RawMessage) []string {
	if len(data) == 0 {
		return nil
	}
	var list []string
	if json.Unmarshal(data, &list) == nil {
		return list
	}
	var single string
	if json.Unmarshal(data, &single) == nil && single != "" {
		return []string{single}
	}
	return nil
}
