package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapSetGetDelete(t *testing.T) {
	doc := NewDoc("d1", "client-a")
	m := doc.Map("kv")

	require.NoError(t, doc.Transact(nil, func(tx *Tx) error {
		tx.Map("kv").Set("theme", "dark")
		return nil
	}))

	v, ok := m.Get("theme")
	require.True(t, ok)
	assert.Equal(t, "dark", v)

	require.NoError(t, doc.Transact(nil, func(tx *Tx) error {
		tx.Map("kv").Delete("theme")
		return nil
	}))
	_, ok = m.Get("theme")
	assert.False(t, ok)
}

func TestTransactFiresObserverOncePerCommit(t *testing.T) {
	doc := NewDoc("d1", "client-a")
	m := doc.Map("tables")

	var events []MapEvent
	m.ObserveShallow(func(ev MapEvent) {
		events = append(events, ev)
	})

	err := doc.Transact(nil, func(tx *Tx) error {
		tables := tx.Map("tables")
		tables.Set("1", "row-1")
		tables.Set("2", "row-2")
		tables.Set("3", "row-3")
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 1, "one transaction touching one map must fire exactly one event")
	assert.Len(t, events[0].Added, 3)
	assert.Empty(t, events[0].Updated)
	assert.Empty(t, events[0].Deleted)
}

func TestNestedTransactCollapsesToOuter(t *testing.T) {
	doc := NewDoc("d1", "client-a")
	m := doc.Map("tables")

	var fired int
	m.ObserveShallow(func(MapEvent) { fired++ })

	err := doc.Transact(nil, func(tx *Tx) error {
		tx.Map("tables").Set("a", 1)
		return doc.Transact(nil, func(tx2 *Tx) error {
			tx2.Map("tables").Set("b", 2)
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestDeepObserverBubblesFromNestedMap(t *testing.T) {
	doc := NewDoc("d1", "client-a")
	root := doc.Map("definition")

	var fired int
	root.ObserveDeep(func() { fired++ })

	err := doc.Transact(nil, func(tx *Tx) error {
		tables := tx.Map("definition").SubMap("tables")
		tables.Set("users", "table-def")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestMutationOutsideTransactPanics(t *testing.T) {
	doc := NewDoc("d1", "client-a")
	m := doc.Map("kv")
	assert.Panics(t, func() {
		m.Set("x", 1)
	})
}

func TestDiscardOnError(t *testing.T) {
	doc := NewDoc("d1", "client-a")
	m := doc.Map("kv")
	var fired int
	m.ObserveShallow(func(MapEvent) { fired++ })

	err := doc.Transact(nil, func(tx *Tx) error {
		tx.Map("kv").Set("x", 1)
		return assertErr
	})
	require.Error(t, err)
	assert.Equal(t, 0, fired, "observers must not fire for a transaction whose fn returned an error")
	_, ok := m.Get("x")
	assert.True(t, ok, "the in-memory write itself is not rolled back; only commit notification is suppressed")
}

var assertErr = assertError("boom")

type assertError string

func (e assertError) Error() string { return string(e) }

func TestArrayPushDeleteObserve(t *testing.T) {
	doc := NewDoc("d1", "client-a")
	arr := doc.Array("lww")

	var events []ArrayEvent
	arr.Observe(func(ev ArrayEvent) { events = append(events, ev) })

	require.NoError(t, doc.Transact(nil, func(tx *Tx) error {
		doc.Array("lww").Push("one")
		doc.Array("lww").Push("two")
		return nil
	}))
	require.Len(t, events, 1)
	assert.Equal(t, []int{0, 1}, events[0].Inserted)
	assert.Equal(t, 2, arr.Len())

	require.NoError(t, doc.Transact(nil, func(tx *Tx) error {
		doc.Array("lww").DeleteAt(0)
		return nil
	}))
	assert.Equal(t, 1, arr.Len())
	v, _ := arr.Get(0)
	assert.Equal(t, "two", v)
}

func TestOnCommitFiresAfterMapObservers(t *testing.T) {
	doc := NewDoc("d1", "client-a")
	m := doc.Map("kv")

	var order []string
	m.ObserveShallow(func(MapEvent) { order = append(order, "map") })
	doc.OnCommit(func(Origin) { order = append(order, "commit") })

	require.NoError(t, doc.Transact(nil, func(tx *Tx) error {
		tx.Map("kv").Set("x", 1)
		return nil
	}))
	assert.Equal(t, []string{"map", "commit"}, order)
}

func TestOnCommitSkippedWhenNothingDirty(t *testing.T) {
	doc := NewDoc("d1", "client-a")
	fired := 0
	doc.OnCommit(func(Origin) { fired++ })

	require.NoError(t, doc.Transact(nil, func(tx *Tx) error { return nil }))
	assert.Equal(t, 0, fired)
}

func TestSnapshotAndRestoreRoundTrip(t *testing.T) {
	doc := NewDoc("d1", "client-a")
	require.NoError(t, doc.Transact(nil, func(tx *Tx) error {
		tables := tx.Map("tables").SubMap("tasks")
		tables.SubMap("1").Set("title", "write tests")
		tx.Map("kv").Set("theme", "dark")
		doc.Array("lww").Push("entry-1")
		return nil
	}))

	snap := doc.Snapshot()

	restored := NewDoc("d1", "client-b")
	require.NoError(t, restored.Restore(nil, snap))

	v, ok := restored.Map("tables").SubMap("tasks").SubMap("1").Get("title")
	require.True(t, ok)
	assert.Equal(t, "write tests", v)

	kv, ok := restored.Map("kv").Get("theme")
	require.True(t, ok)
	assert.Equal(t, "dark", kv)

	assert.Equal(t, 1, restored.Array("lww").Len())
}
