package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicenter-hq/core/pkg/schema"
)

func tasksSchema() Schema {
	return Schema{
		Tables: map[string]TableSpec{
			"tasks": {Def: schema.TableDef{
				Name:    "tasks",
				Version: 1,
				Fields: map[string]schema.FieldSchema{
					"id":    {Type: schema.FieldID},
					"title": {Type: schema.FieldText},
				},
			}},
		},
		KV: map[string]KvSpec{
			"theme": {Def: schema.KvDef{Name: "theme", Field: schema.FieldSchema{Type: schema.FieldText}}},
		},
	}
}

func TestDocIDDerivesFromWorkspaceAndEpoch(t *testing.T) {
	assert.Equal(t, "ws-1-3", DocID("ws-1", 3))
}

func TestOpenMergesSchemaAndBuildsHelpers(t *testing.T) {
	c, err := Open("ws-1", 0, "client-a", tasksSchema(), nil)
	require.NoError(t, err)

	tasks, ok := c.Table("tasks")
	require.True(t, ok)
	require.NoError(t, tasks.Set(map[string]any{"id": "1", "title": "write tests"}))

	got := tasks.Get("1")
	assert.Equal(t, "valid", string(got.Status))

	require.NoError(t, c.KV().Set("theme", "dark"))
	kvGot := c.KV().Get("theme")
	assert.Equal(t, "dark", kvGot.Value)
}

func TestOpenIsIdempotentAcrossReopens(t *testing.T) {
	sch := tasksSchema()
	_, err := Open("ws-1", 0, "client-a", sch, nil)
	require.NoError(t, err)
	// Reopening the same (workspace, epoch) with an identical schema
	// must not error, matching mergeSchema's idempotence guarantee.
	_, err = Open("ws-1", 0, "client-b", sch, nil)
	require.NoError(t, err)
}

func TestDestroyIsSafeWithNoProviders(t *testing.T) {
	c, err := Open("ws-1", 0, "client-a", tasksSchema(), nil)
	require.NoError(t, err)
	c.Destroy()
	c.Destroy()
}
