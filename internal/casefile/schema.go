package casefile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

const schemaID = "https://keyrunner.dev/schemas/case-v1.json"

// GenerateJSONSchema returns the JSON Schema (Draft 2020-12) of a case document.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.RequiredFromJSONSchemaTags = true

	s := r.Reflect(&Document{})
	s.ID = schemaID
	s.Title = "keyrunner test case"
	s.Description = "Schema for keyrunner case YAML documents"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// SchemaViolation is one schema validation failure.
type SchemaViolation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v SchemaViolation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// ValidateSchema validates a raw YAML (or JSON) case document against the
// generated schema. An empty result means the document conforms.
func ValidateSchema(raw []byte) ([]SchemaViolation, error) {
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return nil, err
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource(schemaID, schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile(schemaID)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	doc, err := yamlToJSONValue(raw)
	if err != nil {
		return []SchemaViolation{{Message: err.Error()}}, nil
	}

	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return []SchemaViolation{{Message: err.Error()}}, nil
		}
		var violations []SchemaViolation
		for _, cause := range flattenValidationErrors(ve) {
			violations = append(violations, SchemaViolation{
				Path:    strings.Join(cause.InstanceLocation, "/"),
				Message: fmt.Sprintf("%v", cause.ErrorKind),
			})
		}
		return violations, nil
	}
	return nil, nil
}

// yamlToJSONValue decodes YAML and round-trips it through JSON so the
// validator sees plain JSON types.
func yamlToJSONValue(raw []byte) (any, error) {
	var value any
	if err := yaml.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	data, err := json.Marshal(stringKeys(value))
	if err != nil {
		return nil, fmt.Errorf("convert document: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("convert document: %w", err)
	}
	return out, nil
}

func stringKeys(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = stringKeys(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = stringKeys(val)
		}
		return out
	default:
		return value
	}
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}
