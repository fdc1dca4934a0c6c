package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FieldYAML is the human-editable, YAML-marshalable projection of a
// FieldSchema. It carries no Validate hook — custom validators are Go
// code, not data, and are attached after import by the caller that knows
// which ones apply.
type FieldYAML struct {
	Type            FieldType  `yaml:"type"`
	Nullable        bool       `yaml:"nullable,omitempty"`
	Default         any        `yaml:"default,omitempty"`
	Options         []string   `yaml:"options,omitempty"`
	Item            *FieldYAML `yaml:"item,omitempty"`
	RequireTimezone bool       `yaml:"require_timezone,omitempty"`
}

// ExportField projects a FieldSchema into its YAML-marshalable form.
func ExportField(f FieldSchema) FieldYAML {
	out := FieldYAML{
		Type:            f.Type,
		Nullable:        f.Nullable,
		Default:         f.Default,
		Options:         f.Options,
		RequireTimezone: f.RequireTimezone,
	}
	if f.Item != nil {
		item := ExportField(*f.Item)
		out.Item = &item
	}
	return out
}

// ImportField builds a FieldSchema from its YAML projection. The
// returned schema has no Validate hook; attach one by field name after
// import if the table/KV needs custom validation.
func ImportField(y FieldYAML) FieldSchema {
	out := FieldSchema{
		Type:            y.Type,
		Nullable:        y.Nullable,
		Default:         y.Default,
		Options:         y.Options,
		RequireTimezone: y.RequireTimezone,
	}
	if y.Item != nil {
		item := ImportField(*y.Item)
		out.Item = &item
	}
	return out
}

// TableDefYAML is TableDef's YAML projection.
type TableDefYAML struct {
	Name        string               `yaml:"name"`
	Icon        *string              `yaml:"icon,omitempty"`
	Description string               `yaml:"description,omitempty"`
	Version     int                  `yaml:"version"`
	Fields      map[string]FieldYAML `yaml:"fields"`
}

// ExportTableDef projects a TableDef into its YAML form.
func ExportTableDef(def TableDef) TableDefYAML {
	fields := make(map[string]FieldYAML, len(def.Fields))
	for name, f := range def.Fields {
		fields[name] = ExportField(f)
	}
	return TableDefYAML{
		Name:        def.Name,
		Icon:        def.Icon,
		Description: def.Description,
		Version:     def.Version,
		Fields:      fields,
	}
}

// ImportTableDef builds a TableDef from its YAML projection.
func ImportTableDef(y TableDefYAML) TableDef {
	fields := make(map[string]FieldSchema, len(y.Fields))
	for name, f := range y.Fields {
		fields[name] = ImportField(f)
	}
	return TableDef{
		Name:        y.Name,
		Icon:        y.Icon,
		Description: y.Description,
		Version:     y.Version,
		Fields:      fields,
	}
}

// MarshalTableDefYAML serializes def as YAML.
func MarshalTableDefYAML(def TableDef) ([]byte, error) {
	data, err := yaml.Marshal(ExportTableDef(def))
	if err != nil {
		return nil, fmt.Errorf("schema: marshal table %q: %w", def.Name, err)
	}
	return data, nil
}

// UnmarshalTableDefYAML parses a table definition previously written by
// MarshalTableDefYAML.
func UnmarshalTableDefYAML(data []byte) (TableDef, error) {
	var y TableDefYAML
	if err := yaml.Unmarshal(data, &y); err != nil {
		return TableDef{}, fmt.Errorf("schema: unmarshal table def: %w", err)
	}
	return ImportTableDef(y), nil
}

// KvDefYAML is KvDef's YAML projection.
type KvDefYAML struct {
	Name        string    `yaml:"name"`
	Icon        *string   `yaml:"icon,omitempty"`
	Description string    `yaml:"description,omitempty"`
	Version     int       `yaml:"version"`
	Field       FieldYAML `yaml:"field"`
}

// ExportKvDef projects a KvDef into its YAML form.
func ExportKvDef(def KvDef) KvDefYAML {
	return KvDefYAML{
		Name:        def.Name,
		Icon:        def.Icon,
		Description: def.Description,
		Version:     def.Version,
		Field:       ExportField(def.Field),
	}
}

// ImportKvDef builds a KvDef from its YAML projection.
func ImportKvDef(y KvDefYAML) KvDef {
	return KvDef{
		Name:        y.Name,
		Icon:        y.Icon,
		Description: y.Description,
		Version:     y.Version,
		Field:       ImportField(y.Field),
	}
}

// MarshalKvDefYAML serializes def as YAML.
func MarshalKvDefYAML(def KvDef) ([]byte, error) {
	data, err := yaml.Marshal(ExportKvDef(def))
	if err != nil {
		return nil, fmt.Errorf("schema: marshal kv %q: %w", def.Name, err)
	}
	return data, nil
}

// UnmarshalKvDefYAML parses a KV definition previously written by
// MarshalKvDefYAML.
func UnmarshalKvDefYAML(data []byte) (KvDef, error) {
	var y KvDefYAML
	if err := yaml.Unmarshal(data, &y); err != nil {
		return KvDef{}, fmt.Errorf("schema: unmarshal kv def: %w", err)
	}
	return ImportKvDef(y), nil
}
