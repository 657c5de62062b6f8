package scenario

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const wireSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["decisions"],
  "properties": {
    "id": {"type": ["integer", "string", "null"]},
    "title": {"type": ["string", "null"]},
    "description": {"type": ["string", "null"]},
    "avatar_url": {"type": ["string", "null"]},
    "background_url": {"type": ["string", "null"]},
    "max_attempts": {"type": ["integer", "string", "null"]},
    "decisions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "choices"],
        "properties": {
          "id": {"type": ["integer", "string"]},
          "decisionOrder": {"type": ["integer", "string", "null"]},
          "title": {"type": ["string", "null"]},
          "description": {"type": ["string", "null"]},
          "choices": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["id", "text"],
              "properties": {
                "id": {"type": ["integer", "string"]},
                "text": {"type": "string"},
                "branch_type": {"type": ["string", "null"]},
                "feedback": {"type": ["string", "null"]},
                "next_decision_id": {"type": ["integer", "string", "null"]},
                "points": {"type": ["integer", "null"]}
              }
            }
          }
        }
      }
    }
  }
}`

var loadWireSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(wireSchemaJSON))
})

// ValidateWire checks a raw backend scenario payload against the wire schema.
func ValidateWire(data []byte) error {
	schema, err := loadWireSchema()
	if err != nil {
		return fmt.Errorf("compile scenario schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate scenario: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid scenario payload: %s", strings.Join(msgs, "; "))
}
