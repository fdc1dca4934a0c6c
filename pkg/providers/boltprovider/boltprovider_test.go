package boltprovider

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicenter-hq/core/pkg/crdt"
)

func waitSynced(t *testing.T, errCh <-chan error) {
	t.Helper()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("provider did not become ready in time")
	}
}

func TestAttachWithNoExistingSnapshotSyncsImmediately(t *testing.T) {
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	doc := crdt.NewDoc("ws-1-0", "client-a")
	lc, err := Attach(doc, db, Config{Bucket: "workspaces/ws-1/0/data"})
	require.NoError(t, err)
	waitSynced(t, lc.WhenSynced)
	lc.Destroy()
}

func TestSaveThenReattachRestoresState(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)

	doc := crdt.NewDoc("ws-1-0", "client-a")
	lc, err := Attach(doc, db, Config{Bucket: "workspaces/ws-1/0/data"})
	require.NoError(t, err)
	waitSynced(t, lc.WhenSynced)

	require.NoError(t, doc.Transact(nil, func(tx *crdt.Tx) error {
		tx.Map("kv").Set("theme", "dark")
		return nil
	}))
	lc.Destroy() // flushes synchronously on destroy

	require.NoError(t, db.Close())

	db2, err := Open(dir)
	require.NoError(t, err)
	defer db2.Close()

	doc2 := crdt.NewDoc("ws-1-0", "client-b")
	lc2, err := Attach(doc2, db2, Config{Bucket: "workspaces/ws-1/0/data"})
	require.NoError(t, err)
	waitSynced(t, lc2.WhenSynced)
	defer lc2.Destroy()

	v, ok := doc2.Map("kv").Get("theme")
	require.True(t, ok)
	assert.Equal(t, "dark", v)
}

func TestEmptyBucketNameFailsInit(t *testing.T) {
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	_, err = Attach(crdt.NewDoc("d", "c"), db, Config{})
	assert.Error(t, err)
}

func TestDebouncedCommitsKeepLatestValueInMemory(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	defer db.Close()

	doc := crdt.NewDoc("ws-1-0", "client-a")
	lc, err := Attach(doc, db, Config{Bucket: "b1", Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	waitSynced(t, lc.WhenSynced)
	defer lc.Destroy()

	for i := 0; i < 5; i++ {
		require.NoError(t, doc.Transact(nil, func(tx *crdt.Tx) error {
			tx.Map("kv").Set("counter", i)
			return nil
		}))
	}

	// The debounce window collapses the five commits into one write;
	// destroy's final flush below is what guarantees durability, so we
	// only assert the in-memory state here rather than racing the timer.
	v, ok := doc.Map("kv").Get("counter")
	require.True(t, ok)
	assert.Equal(t, 4, v)
}

func TestJSONMirrorWritesSnapshotFile(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	defer db.Close()

	doc := crdt.NewDoc("ws-1-0", "client-a")
	lc, err := Attach(doc, db, Config{DataDir: dir, Bucket: "b1", JSONMirror: true})
	require.NoError(t, err)
	waitSynced(t, lc.WhenSynced)

	require.NoError(t, doc.Transact(nil, func(tx *crdt.Tx) error {
		tx.Map("kv").Set("theme", "dark")
		return nil
	}))
	lc.Destroy()

	entries, err := os.ReadDir(dir + "/snapshots")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
