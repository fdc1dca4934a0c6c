package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicenter-hq/core/pkg/errs"
)

func TestMarshalTableDefYAMLThenUnmarshalRoundTrips(t *testing.T) {
	icon := "check-square"
	def := TableDef{
		Name:        "tasks",
		Icon:        &icon,
		Description: "work items",
		Version:     2,
		Fields: map[string]FieldSchema{
			"id":    {Type: FieldID},
			"title": {Type: FieldText, Nullable: false},
			"done":  {Type: FieldBoolean, Default: false},
			"tags": {
				Type: FieldArray,
				Item: &FieldSchema{Type: FieldText},
			},
			"priority": {
				Type:    FieldSelect,
				Options: []string{"low", "medium", "high"},
				Default: "medium",
			},
		},
	}

	data, err := MarshalTableDefYAML(def)
	require.NoError(t, err)

	got, err := UnmarshalTableDefYAML(data)
	require.NoError(t, err)

	assert.Equal(t, def.Name, got.Name)
	assert.Equal(t, *def.Icon, *got.Icon)
	assert.Equal(t, def.Description, got.Description)
	assert.Equal(t, def.Version, got.Version)
	require.Len(t, got.Fields, len(def.Fields))
	assert.Equal(t, FieldBoolean, got.Fields["done"].Type)
	assert.Equal(t, false, got.Fields["done"].Default)
	require.NotNil(t, got.Fields["tags"].Item)
	assert.Equal(t, FieldText, got.Fields["tags"].Item.Type)
	assert.Equal(t, []string{"low", "medium", "high"}, got.Fields["priority"].Options)
}

func TestUnmarshalTableDefYAMLOmitsValidateHook(t *testing.T) {
	def := TableDef{
		Name:    "tasks",
		Version: 1,
		Fields: map[string]FieldSchema{
			"title": {Type: FieldText, Validate: func(v any) (any, []errs.Issue) { return v, nil }},
		},
	}
	data, err := MarshalTableDefYAML(def)
	require.NoError(t, err)

	got, err := UnmarshalTableDefYAML(data)
	require.NoError(t, err)
	assert.Nil(t, got.Fields["title"].Validate)
}

func TestMarshalKvDefYAMLThenUnmarshalRoundTrips(t *testing.T) {
	def := KvDef{
		Name:        "theme",
		Description: "UI theme preference",
		Version:     1,
		Field:       FieldSchema{Type: FieldEnum, Options: []string{"light", "dark"}, Default: "light"},
	}

	data, err := MarshalKvDefYAML(def)
	require.NoError(t, err)

	got, err := UnmarshalKvDefYAML(data)
	require.NoError(t, err)
	assert.Equal(t, def.Name, got.Name)
	assert.Equal(t, def.Field.Type, got.Field.Type)
	assert.Equal(t, def.Field.Options, got.Field.Options)
	assert.Equal(t, def.Field.Default, got.Field.Default)
}
