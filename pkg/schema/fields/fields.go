/*
Package fields is a reference implementation of field-type validators and
a JSON-schema projection for the field shapes in pkg/schema. It is not
required by the core — pkg/schema.FieldSchema already validates its
built-in types on its own — but it demonstrates the Standard-Schema hook
a richer, application-specific validator library would plug in as
FieldSchema.Validate, and gives action-system adapters (pkg/action) a
concrete JSON-schema projection to advertise over HTTP/MCP.
*/
package fields

import (
	"strings"

	"github.com/epicenter-hq/core/pkg/errs"
	"github.com/epicenter-hq/core/pkg/schema"
)

// NonEmptyText returns a ValidateFunc accepting only strings that are not
// blank after trimming. Set as FieldSchema.Validate, it replaces the
// built-in text check.
func NonEmptyText(path string) schema.ValidateFunc {
	return func(value any) (any, []errs.Issue) {
		s, ok := value.(string)
		if !ok {
			return nil, []errs.Issue{{Path: path, Message: "expected string"}}
		}
		if strings.TrimSpace(s) == "" {
			return nil, []errs.Issue{{Path: path, Message: "must not be blank"}}
		}
		return s, nil
	}
}

// BoundedInteger returns a ValidateFunc rejecting integers outside [min, max].
func BoundedInteger(path string, min, max int) schema.ValidateFunc {
	return func(value any) (any, []errs.Issue) {
		n, ok := value.(int)
		if !ok {
			if f, ok2 := value.(float64); ok2 && f == float64(int(f)) {
				n = int(f)
			} else {
				return nil, []errs.Issue{{Path: path, Message: "expected integer"}}
			}
		}
		if n < min || n > max {
			return nil, []errs.Issue{{Path: path, Message: "out of range"}}
		}
		return n, nil
	}
}

// JSONSchema is a minimal JSON-schema projection of a FieldSchema, enough
// for an HTTP/MCP adapter to advertise an action's input shape.
type JSONSchema struct {
	Type     string            `json:"type"`
	Enum     []string          `json:"enum,omitempty"`
	Items    *JSONSchema       `json:"items,omitempty"`
	Nullable bool              `json:"nullable,omitempty"`
	Default  any               `json:"default,omitempty"`
}

// Project converts a FieldSchema into its JSON-schema shape.
func Project(f schema.FieldSchema) JSONSchema {
	js := JSONSchema{Nullable: f.Nullable, Default: f.Default}
	switch f.Type {
	case schema.FieldID, schema.FieldText, schema.FieldDate:
		js.Type = "string"
	case schema.FieldInteger:
		js.Type = "integer"
	case schema.FieldBoolean:
		js.Type = "boolean"
	case schema.FieldSelect, schema.FieldEnum:
		js.Type = "string"
		js.Enum = f.Options
	case schema.FieldArray:
		js.Type = "array"
		if f.Item != nil {
			item := Project(*f.Item)
			js.Items = &item
		}
	default:
		js.Type = "string"
	}
	return js
}
