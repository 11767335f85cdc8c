// Schema validation against contracts/*.schema.json. No JSON-Schema
// library appears anywhere in the retrieval pack, so this one piece is
// deliberately hand-written against the standard library rather than
// pulling in an out-of-pack dependency — see DESIGN.md.
package performance

import (
	"encoding/json"
	"fmt"
	"os"
)

// Schema is a JSON-Schema Draft-07 subset sufficient for this package's
// flat, single-level object schemas: type, required, properties, enum.
type Schema struct {
	Type       string                    `json:"type"`
	Required   []string                  `json:"required"`
	Properties map[string]SchemaProperty `json:"properties"`
}

// SchemaProperty describes one property's constraints.
type SchemaProperty struct {
	Type string   `json:"type"`
	Enum []string `json:"enum"`
}

// LoadSchema reads and parses a schema file from disk.
func LoadSchema(path string) (Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("reading schema %s: %w", path, err)
	}
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return Schema{}, fmt.Errorf("parsing schema %s: %w", path, err)
	}
	return s, nil
}

// Validate checks that data (a JSON object document) satisfies the
// schema's type, required-field, and per-property type/enum constraints.
func (s Schema) Validate(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("document is not a JSON object: %w", err)
	}

	for _, req := range s.Required {
		if _, ok := doc[req]; !ok {
			return fmt.Errorf("missing required field %q", req)
		}
	}

	for name, prop := range s.Properties {
		v, ok := doc[name]
		if !ok {
			continue
		}
		if err := validateType(name, v, prop.Type); err != nil {
			return err
		}
		if len(prop.Enum) > 0 {
			if err := validateEnum(name, v, prop.Enum); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateType(field string, v any, expected string) error {
	switch expected {
	case "string":
		if _, ok := v.(string); !ok {
			return fmt.Errorf("field %q must be a string", field)
		}
	case "integer":
		n, ok := v.(float64)
		if !ok || n != float64(int64(n)) {
			return fmt.Errorf("field %q must be an integer", field)
		}
	case "number":
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("field %q must be a number", field)
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("field %q must be a boolean", field)
		}
	case "object":
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("field %q must be an object", field)
		}
	case "array":
		if _, ok := v.([]any); !ok {
			return fmt.Errorf("field %q must be an array", field)
		}
	}
	return nil
}

func validateEnum(field string, v any, allowed []string) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("field %q must be a string to validate against an enum", field)
	}
	for _, a := range allowed {
		if s == a {
			return nil
		}
	}
	return fmt.Errorf("field %q value %q is not one of the allowed values", field, s)
}
