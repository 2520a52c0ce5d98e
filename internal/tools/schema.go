package tools

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// Derive builds the input schema for a parameter list.
//
// Context parameters are skipped. Integers and floats map to "number", booleans to
// "boolean", lists to "array" and everything else to "string". A parameter with a
// default records it and stays out of "required"; required names keep declaration order.
// Derive never fails: an unknown type degrades to "string".
func Derive(params []Param) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(params)),
	}

	for _, p := range params {
		if p.Type == TypeContext {
			continue
		}

		prop := &jsonschema.Schema{Type: schemaType(p.Type)}
		if p.HasDefault {
			if raw, err := json.Marshal(p.Default); err == nil {
				prop.Default = raw
			}
		} else {
			schema.Required = append(schema.Required, p.Name)
		}
		if p.Description != "" {
			prop.Description = p.Description
		}

		schema.Properties[p.Name] = prop
	}

	return schema
}

func schemaType(t ParamType) string {
	switch t {
	case TypeInteger, TypeFloat:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeList:
		return "array"
	default:
		return "string"
	}
}
