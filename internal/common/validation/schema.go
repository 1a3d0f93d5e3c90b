package validation

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// DefaultSubmissionSchema is used when no schema file is configured.
const DefaultSubmissionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["applicant_email", "business_name"],
  "properties": {
    "applicant_email": {"type": "string", "minLength": 1},
    "business_name": {"type": "string", "minLength": 1},
    "business_contact_number": {"type": "string"},
    "address": {"type": "string"},
    "business_license_id": {"type": "string"},
    "uploadedFiles": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["publicUrl"],
        "properties": {
          "fileId": {"type": "string"},
          "originalName": {"type": "string"},
          "publicUrl": {"type": "string"},
          "size": {"type": "number", "minimum": 0},
          "type": {"type": "string"}
        }
      }
    }
  },
  "patternProperties": {
    "^approver[0-9]+_email$": {"type": "string"}
  }
}`

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator checks loose JSON documents against a compiled schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles schemaJSON.
func NewValidator(schemaJSON string) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// LoadValidator compiles the schema file at path, or the default
// submission schema when path is empty.
func LoadValidator(path string) (*Validator, error) {
	if path == "" {
		return NewValidator(DefaultSubmissionSchema)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	return NewValidator(string(data))
}

// Validate returns every violation, sorted by field. An empty result means
// the document is valid.
func (v *Validator) Validate(doc map[string]interface{}) ([]ValidationError, error) {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate document: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	out := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		field := strings.TrimPrefix(strings.TrimPrefix(re.Context().String(), "(root)"), ".")
		if prop, ok := re.Details()["property"].(string); ok && re.Type() == "required" {
			if field == "" {
				field = prop
			} else {
				field = field + "." + prop
			}
		}
		out = append(out, ValidationError{
			Field:   field,
			Message: re.Description(),
			Code:    re.Type(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out, nil
}

// Messages flattens errors into "field: message" strings.
func Messages(errs []ValidationError) []string {
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}
