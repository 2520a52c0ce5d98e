package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ParamType is the declared semantic type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeFloat   ParamType = "float"
	TypeBoolean ParamType = "boolean"
	TypeList    ParamType = "list"
	TypeObject  ParamType = "object"
	TypeAny     ParamType = "any"
	TypeContext ParamType = "context" // Injected by the dispatcher, never supplied by callers
)

// Param describes one declared handler parameter.
type Param struct {
	Name        string
	Type        ParamType
	HasDefault  bool
	Default     any
	Description string
}

// Handler implements a tool. Arguments arrive with defaults already applied.
type Handler func(ctx context.Context, args Arguments) (any, error)

// Tool is a registered operation with its derived input schema.
// A Tool must not be modified once it has been registered.
type Tool struct {
	Name        string             // Tool name, unique within a Registry
	Description string             // Description shown to protocol clients
	Params      []Param            // Declared parameters, in order
	InputSchema *jsonschema.Schema // Derived from Params by Build
	Handler     Handler            // Handler invoked by the Dispatcher
	Mutating    bool               // Writes to a collaborator
}

// Arguments is the named argument bundle passed to a Handler.
type Arguments map[string]any

// Has reports whether name was supplied with a non-null value.
func (a Arguments) Has(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

// String returns the named argument as a string. Non-string values are formatted.
func (a Arguments) String(name string) string {
	switch v := a[name].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Map returns the named argument as an object. A JSON-encoded object string is
// accepted as well, since object parameters are advertised to clients as strings.
func (a Arguments) Map(name string) (map[string]any, error) {
	switch v := a[name].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, invalidArgument(name, fmt.Errorf("expected a JSON object: %w", err))
		}
		return out, nil
	default:
		return nil, invalidArgument(name, fmt.Errorf("expected object, got %T", v))
	}
}
