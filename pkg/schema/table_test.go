package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleTasksSchema() *TableSchema {
	return &TableSchema{
		Current: TableDef{
			Name:    "tasks",
			Version: 1,
			Fields: map[string]FieldSchema{
				"id":    {Type: FieldID},
				"title": {Type: FieldText},
			},
		},
	}
}

func TestParseRowValid(t *testing.T) {
	ts := simpleTasksSchema()
	value, issues, err := ts.ParseRow(map[string]any{"id": "1", "title": "Hello"})
	require.NoError(t, err)
	require.Empty(t, issues)
	assert.Equal(t, "1", value["id"])
	assert.Equal(t, "Hello", value["title"])
}

func TestParseRowInvalidPreservesRaw(t *testing.T) {
	ts := simpleTasksSchema()
	_, issues, err := ts.ParseRow(map[string]any{"id": "2", "title": 123})
	require.NoError(t, err)
	require.NotEmpty(t, issues)
}

func TestParseRowMigratesFromPriorVersion(t *testing.T) {
	ts := simpleTasksSchema()
	ts.Current.Version = 2
	ts.Current.Fields["done"] = FieldSchema{Type: FieldBoolean}
	ts.History = []VersionedFields{
		{
			Version: 1,
			Fields: map[string]FieldSchema{
				"id":    {Type: FieldID},
				"title": {Type: FieldText},
			},
			Migrate: func(raw map[string]any) (map[string]any, error) {
				raw["done"] = false
				return raw, nil
			},
		},
	}

	value, issues, err := ts.ParseRow(map[string]any{"id": "1", "title": "legacy row"})
	require.NoError(t, err)
	require.Empty(t, issues)
	assert.Equal(t, false, value["done"])
}

func TestParseRowNoMigratorStaysInvalid(t *testing.T) {
	ts := simpleTasksSchema()
	ts.Current.Version = 2
	ts.Current.Fields["done"] = FieldSchema{Type: FieldBoolean}
	ts.History = []VersionedFields{
		{
			Version: 1,
			Fields: map[string]FieldSchema{
				"id":    {Type: FieldID},
				"title": {Type: FieldText},
			},
			// no Migrate supplied
		},
	}

	_, _, err := ts.ParseRow(map[string]any{"id": "1", "title": "legacy row"})
	require.Error(t, err)
}

func TestDeepEqualForSchemaMerge(t *testing.T) {
	a := TableDef{Name: "t", Fields: map[string]FieldSchema{"id": {Type: FieldID}}}
	b := TableDef{Name: "t", Fields: map[string]FieldSchema{"id": {Type: FieldID}}}
	assert.True(t, DeepEqual(a, b))

	c := TableDef{Name: "t", Fields: map[string]FieldSchema{"id": {Type: FieldText}}}
	assert.False(t, DeepEqual(a, c))
}
