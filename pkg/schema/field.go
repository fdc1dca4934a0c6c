/*
Package schema defines the typed field shapes and table/KV schema
containers the core validates rows and KV values against, plus the
versioning and migration-on-read machinery the table/KV helpers need.

Concrete field-type validation is intentionally minimal here: each
FieldSchema knows how to validate itself against the handful of built-in
built-in types (id, text, integer, boolean, date, select, enum, array)
names. A richer validator, or a JSON-schema projection for adapters, is
only a Standard-Schema-shaped hook away (FieldSchema.Validate) — concrete
implementations of that hook live in pkg/schema/fields as a reference,
not a requirement.
*/
package schema

import (
	"fmt"
	"time"

	"github.com/epicenter-hq/core/pkg/errs"
)

// FieldType enumerates the built-in field shapes.
type FieldType string

const (
	FieldID      FieldType = "id"
	FieldText    FieldType = "text"
	FieldInteger FieldType = "integer"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
	FieldSelect  FieldType = "select"
	FieldEnum    FieldType = "enum"
	FieldArray   FieldType = "array"
)

// ValidateFunc is the Standard-Schema-shaped validation hook: it returns
// either a parsed value, or a non-empty issue list. It is a plain
// synchronous call; there is no asynchronous form of the hook.
type ValidateFunc func(value any) (any, []errs.Issue)

// FieldSchema is a discriminated record carrying a field's type plus its
// per-type options.
type FieldSchema struct {
	Type FieldType

	// Nullable permits an explicit nil value regardless of Type.
	Nullable bool
	// Default is applied when a row/KV write omits this field entirely.
	Default any

	// Options lists the allowed values for FieldSelect/FieldEnum.
	Options []string

	// Item describes the element schema for FieldArray.
	Item *FieldSchema

	// RequireTimezone marks a FieldDate field as date-with-timezone. It is
	// carried through YAML export/import; the built-in date check does not
	// read it (RFC3339 strings always carry an offset, and time.Time
	// values are accepted as they are).
	RequireTimezone bool

	// Validate overrides the built-in validation for this field with a
	// caller-supplied Standard Schema hook. When nil, Parse dispatches on
	// Type using the built-in rules below.
	Validate ValidateFunc
}

// Parse validates value against the field schema. A nil value takes
// Default when Default is non-nil; otherwise a Nullable field accepts nil
// as is. When Validate is set it runs instead of the built-in rules.
func (f FieldSchema) Parse(path string, value any) (any, []errs.Issue) {
	if value == nil {
		if f.Default != nil {
			value = f.Default
		} else if f.Nullable {
			return nil, nil
		}
	}
	if f.Validate != nil {
		return f.Validate(value)
	}
	return f.parseBuiltin(path, value)
}

func (f FieldSchema) parseBuiltin(path string, value any) (any, []errs.Issue) {
	fail := func(msg string) (any, []errs.Issue) {
		return nil, []errs.Issue{{Path: path, Message: msg}}
	}

	switch f.Type {
	case FieldID, FieldText:
		s, ok := value.(string)
		if !ok {
			return fail(fmt.Sprintf("expected string, got %T", value))
		}
		if f.Type == FieldID && s == "" {
			return fail("id must not be empty")
		}
		return s, nil

	case FieldInteger:
		switch n := value.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n != float64(int(n)) {
				return fail(fmt.Sprintf("expected integer, got %v", n))
			}
			return int(n), nil
		default:
			return fail(fmt.Sprintf("expected integer, got %T", value))
		}

	case FieldBoolean:
		b, ok := value.(bool)
		if !ok {
			return fail(fmt.Sprintf("expected boolean, got %T", value))
		}
		return b, nil

	case FieldDate:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case string:
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return fail(fmt.Sprintf("expected RFC3339 date, got %q", v))
			}
			return t, nil
		default:
			return fail(fmt.Sprintf("expected date, got %T", value))
		}

	case FieldSelect:
		s, ok := value.(string)
		if !ok {
			return fail(fmt.Sprintf("expected string option, got %T", value))
		}
		for _, opt := range f.Options {
			if opt == s {
				return s, nil
			}
		}
		return fail(fmt.Sprintf("%q is not one of %v", s, f.Options))

	case FieldEnum:
		s, ok := value.(string)
		if !ok {
			return fail(fmt.Sprintf("expected enum value, got %T", value))
		}
		for _, opt := range f.Options {
			if opt == s {
				return s, nil
			}
		}
		return fail(fmt.Sprintf("%q is not a valid enum member of %v", s, f.Options))

	case FieldArray:
		items, ok := value.([]any)
		if !ok {
			return fail(fmt.Sprintf("expected array, got %T", value))
		}
		if f.Item == nil {
			return items, nil
		}
		out := make([]any, 0, len(items))
		var issues []errs.Issue
		for i, it := range items {
			parsed, itIssues := f.Item.Parse(fmt.Sprintf("%s[%d]", path, i), it)
			if len(itIssues) > 0 {
				issues = append(issues, itIssues...)
				continue
			}
			out = append(out, parsed)
		}
		if len(issues) > 0 {
			return nil, issues
		}
		return out, nil

	default:
		return fail(fmt.Sprintf("unknown field type %q", f.Type))
	}
}
