package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const gradingSchemaURL = "gema://schemas/grading-response.json"

const gradingSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["score", "feedback"],
  "properties": {
    "score": {"type": "number"},
    "feedback": {"type": "string"}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func responseSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(gradingSchemaURL, strings.NewReader(gradingSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(gradingSchemaURL)
	})
	return compiledSchema, schemaErr
}

// ParseGradingResponse validates the model output against the grading schema and
// normalises the score to an integer within 0-100.
func ParseGradingResponse(content string) (GradingResult, error) {
	schema, err := responseSchema()
	if err != nil {
		return GradingResult{}, fmt.Errorf("compile grading schema: %w", err)
	}

	var document interface{}
	if err := json.Unmarshal([]byte(content), &document); err != nil {
		return GradingResult{}, fmt.Errorf("parse grading json: %w", err)
	}

	if err := schema.Validate(document); err != nil {
		return GradingResult{}, fmt.Errorf("grading response does not match schema: %w", err)
	}

	var payload struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return GradingResult{}, fmt.Errorf("decode grading json: %w", err)
	}

	return GradingResult{
		Score:    ClampScore(payload.Score),
		Feedback: strings.TrimSpace(payload.Feedback),
	}, nil
}

// ClampScore rounds a raw score and bounds it to 0-100.
func ClampScore(raw float64) int {
	if math.IsNaN(raw) {
		return 0
	}
	score := int(math.Round(raw))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
