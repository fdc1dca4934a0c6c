package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/schema"
)

func tasksSchema() *schema.TableSchema {
	return &schema.TableSchema{
		Current: schema.TableDef{
			Name:    "tasks",
			Version: 1,
			Fields: map[string]schema.FieldSchema{
				"id":    {Type: schema.FieldID},
				"title": {Type: schema.FieldText},
				"done":  {Type: schema.FieldBoolean, Default: false},
			},
		},
	}
}

func newTestTable(t *testing.T) (*Table, *crdt.Doc) {
	t.Helper()
	doc := crdt.NewDoc("test-doc", "client-1")
	tablesRoot := doc.Map("tables")
	return New(doc, tablesRoot, "tasks", tasksSchema()), doc
}

func TestSetThenGetRoundTripsValidRow(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.Set(map[string]any{"id": "t1", "title": "write tests", "done": false}))

	got := tbl.Get("t1")
	require.Equal(t, StatusValid, got.Status)
	assert.Equal(t, "write tests", got.Row["title"])
	assert.Equal(t, false, got.Row["done"])
}

func TestSetRejectsRowWithoutID(t *testing.T) {
	tbl, _ := newTestTable(t)
	err := tbl.Set(map[string]any{"title": "no id"})
	require.Error(t, err)
}

func TestGetMissingRowIsNotFound(t *testing.T) {
	tbl, _ := newTestTable(t)
	got := tbl.Get("missing")
	assert.Equal(t, StatusNotFound, got.Status)
}

func TestGetInvalidRowPreservesRawFields(t *testing.T) {
	tbl, _ := newTestTable(t)
	// "done" as a string fails FieldBoolean, so the row is invalid, but
	// the raw fields (including the offending one) are preserved for
	// the caller to inspect or repair.
	require.NoError(t, tbl.Set(map[string]any{"id": "t1", "title": "bad", "done": "nope"}))

	got := tbl.Get("t1")
	assert.Equal(t, StatusInvalid, got.Status)
	assert.NotEmpty(t, got.Errors)
	assert.Equal(t, "nope", got.Row["done"])
}

func TestUpdateMergesPartialOntoExistingRow(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.Set(map[string]any{"id": "t1", "title": "draft", "done": false}))
	require.NoError(t, tbl.Update("t1", map[string]any{"done": true}))

	got := tbl.Get("t1")
	require.Equal(t, StatusValid, got.Status)
	assert.Equal(t, "draft", got.Row["title"])
	assert.Equal(t, true, got.Row["done"])
}

func TestUpdateOnMissingRowIsNoop(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.Update("missing", map[string]any{"title": "x"}))
	assert.False(t, tbl.Has("missing"))
}

func TestDeleteReportsWhetherRowExisted(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.Set(map[string]any{"id": "t1", "title": "x", "done": false}))

	assert.Equal(t, "deleted", tbl.Delete("t1").Status)
	assert.Equal(t, "not_found_locally", tbl.Delete("t1").Status)
}

func TestGetAllSeparatesValidFromInvalid(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.Set(map[string]any{"id": "t1", "title": "ok", "done": false}))
	require.NoError(t, tbl.Set(map[string]any{"id": "t2", "title": "bad", "done": "nope"}))

	valid := tbl.GetAllValid()
	invalid := tbl.GetAllInvalid()
	assert.Len(t, valid, 1)
	assert.Contains(t, valid, "t1")
	assert.Len(t, invalid, 1)
	assert.Contains(t, invalid, "t2")
}

func TestFilterAndFindOnlyConsiderValidRows(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.Set(map[string]any{"id": "t1", "title": "alpha", "done": true}))
	require.NoError(t, tbl.Set(map[string]any{"id": "t2", "title": "beta", "done": false}))

	done := tbl.Filter(func(r map[string]any) bool { return r["done"] == true })
	assert.Len(t, done, 1)
	assert.Contains(t, done, "t1")

	found, ok := tbl.Find(func(r map[string]any) bool { return r["title"] == "beta" })
	require.True(t, ok)
	assert.Equal(t, "t2", found["id"])
}

func TestBatchAppliesAllOpsInOneTransaction(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.Set(map[string]any{"id": "t1", "title": "keep-updating", "done": false}))

	err := tbl.Batch(func(tx *BatchTx) {
		tx.Set(map[string]any{"id": "t2", "title": "new", "done": false})
		tx.Update("t1", map[string]any{"done": true})
		tx.Delete("t2-nonexistent")
	})
	require.NoError(t, err)

	assert.Equal(t, true, tbl.Get("t1").Row["done"])
	assert.Equal(t, StatusValid, tbl.Get("t2").Status)
}

func TestClearRemovesEveryRow(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.Set(map[string]any{"id": "t1", "title": "a", "done": false}))
	require.NoError(t, tbl.Set(map[string]any{"id": "t2", "title": "b", "done": false}))

	require.NoError(t, tbl.Clear())
	assert.Equal(t, 0, tbl.Count())
}

func TestCountAndHas(t *testing.T) {
	tbl, _ := newTestTable(t)
	assert.Equal(t, 0, tbl.Count())
	require.NoError(t, tbl.Set(map[string]any{"id": "t1", "title": "a", "done": false}))
	assert.Equal(t, 1, tbl.Count())
	assert.True(t, tbl.Has("t1"))
	assert.False(t, tbl.Has("missing"))
}

func TestObserveFiresExactlyOncePerSetOnBrandNewRow(t *testing.T) {
	tbl, _ := newTestTable(t)

	var fireCount int
	var lastIDs map[string]bool
	unsub := tbl.Observe(func(rowIDs map[string]bool) {
		fireCount++
		lastIDs = rowIDs
	})
	defer unsub()

	// A Set on a brand-new row dirties both the table's root row map
	// (the new row id) and that row's own freshly created field map
	// (its fields) in the same transaction; Observe must still only
	// call back once for this one commit, not once per map dirtied.
	require.NoError(t, tbl.Set(map[string]any{"id": "t1", "title": "first", "done": false}))

	assert.Equal(t, 1, fireCount)
	assert.True(t, lastIDs["t1"])
}

func TestObserveCoalescesFieldEditOnExistingRow(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.Set(map[string]any{"id": "t1", "title": "first", "done": false}))

	var fireCount int
	var lastIDs map[string]bool
	unsub := tbl.Observe(func(rowIDs map[string]bool) {
		fireCount++
		lastIDs = rowIDs
	})
	defer unsub()

	require.NoError(t, tbl.Update("t1", map[string]any{"done": true}))

	assert.Equal(t, 1, fireCount)
	assert.True(t, lastIDs["t1"])
}

func TestObserveReportsEveryRowTouchedInABatch(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.Set(map[string]any{"id": "t1", "title": "first", "done": false}))

	var fireCount int
	var lastIDs map[string]bool
	unsub := tbl.Observe(func(rowIDs map[string]bool) {
		fireCount++
		lastIDs = rowIDs
	})
	defer unsub()

	err := tbl.Batch(func(tx *BatchTx) {
		tx.Set(map[string]any{"id": "t2", "title": "second", "done": false})
		tx.Update("t1", map[string]any{"done": true})
	})
	require.NoError(t, err)

	assert.Equal(t, 1, fireCount)
	assert.True(t, lastIDs["t1"])
	assert.True(t, lastIDs["t2"])
}

func TestObserveFiresOnDelete(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.Set(map[string]any{"id": "t1", "title": "first", "done": false}))

	var fireCount int
	var lastIDs map[string]bool
	unsub := tbl.Observe(func(rowIDs map[string]bool) {
		fireCount++
		lastIDs = rowIDs
	})
	defer unsub()

	tbl.Delete("t1")

	assert.Equal(t, 1, fireCount)
	assert.True(t, lastIDs["t1"])
}

func TestOnAddFiresOnlyForNewlyAddedValidRows(t *testing.T) {
	tbl, _ := newTestTable(t)

	var added []map[string]any
	tbl.OnAdd(func(row map[string]any, origin crdt.Origin) {
		added = append(added, row)
	})

	require.NoError(t, tbl.Set(map[string]any{"id": "t1", "title": "first", "done": false}))
	require.NoError(t, tbl.Update("t1", map[string]any{"done": true}))

	require.Len(t, added, 1)
	assert.Equal(t, "t1", added[0]["id"])
}
