package lww

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicenter-hq/core/pkg/crdt"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) Now() int64 { return f.t }

func newTestStore(clock Clock) (*Store, *crdt.Doc) {
	doc := crdt.NewDoc("test-doc", "client-1")
	arr := doc.Array("lww")
	return New(doc, arr, clock), doc
}

func TestSetGetHasDelete(t *testing.T) {
	store, _ := newTestStore(&fakeClock{t: 100})
	require.NoError(t, store.Set("theme", "light"))

	v, ok := store.Get("theme")
	require.True(t, ok)
	assert.Equal(t, "light", v)
	assert.True(t, store.Has("theme"))

	assert.True(t, store.Delete("theme"))
	assert.False(t, store.Has("theme"))
}

func TestCompactionKeepsArraySizeToDistinctKeys(t *testing.T) {
	store, doc := newTestStore(&fakeClock{t: 100})
	require.NoError(t, store.Set("theme", "light"))
	require.NoError(t, store.Set("theme", "dark"))
	require.NoError(t, store.Set("theme", "solarized"))
	require.NoError(t, store.Set("lang", "en"))

	assert.Equal(t, 2, doc.Array("lww").Len())
	v, _ := store.Get("theme")
	assert.Equal(t, "solarized", v)
}

func TestHigherTimestampWinsAfterConcurrentWrites(t *testing.T) {
	doc := crdt.NewDoc("test-doc", "client-1")
	arr := doc.Array("lww")
	store := New(doc, arr, &fakeClock{t: 1})

	// Simulate two replicas' writes merged into one array: client A at
	// t=100, client B at t=200, in either arrival order.
	require.NoError(t, doc.Transact(nil, func(tx *crdt.Tx) error {
		arr.Push(Entry{Key: "theme", Value: "light", Ts: 100})
		arr.Push(Entry{Key: "theme", Value: "dark", Ts: 200})
		return nil
	}))

	v, ok := store.Get("theme")
	require.True(t, ok)
	assert.Equal(t, "dark", v)
	assert.Equal(t, 1, arr.Len(), "merging two replicas' writes for the same key compacts down to the winner")
}

func TestTieBreaksRightmost(t *testing.T) {
	doc := crdt.NewDoc("test-doc", "client-1")
	arr := doc.Array("lww")
	store := New(doc, arr, &fakeClock{t: 1})

	require.NoError(t, doc.Transact(nil, func(tx *crdt.Tx) error {
		arr.Push(Entry{Key: "theme", Value: "first", Ts: 100})
		arr.Push(Entry{Key: "theme", Value: "second", Ts: 100})
		return nil
	}))

	v, _ := store.Get("theme")
	assert.Equal(t, "second", v)
	assert.Equal(t, 1, arr.Len())
}

func TestMonotonicClockAcrossSameMillisecondWrites(t *testing.T) {
	clock := &fakeClock{t: 100}
	store, _ := newTestStore(clock)
	require.NoError(t, store.Set("a", 1))
	require.NoError(t, store.Set("b", 2)) // clock.Now() still reports 100

	assert.Greater(t, store.lastTs, int64(100))
}

func TestObserveCoalescesAddUpdateDelete(t *testing.T) {
	store, _ := newTestStore(&fakeClock{t: 100})

	var changes []Change
	unsub := store.Observe(func(cs []Change) { changes = append(changes, cs...) })
	defer unsub()

	require.NoError(t, store.Set("theme", "light"))
	require.NoError(t, store.Set("theme", "dark"))
	store.Delete("theme")

	require.Len(t, changes, 3)
	assert.Equal(t, Added, changes[0].Kind)
	assert.Equal(t, Updated, changes[1].Kind)
	assert.Equal(t, "light", changes[1].OldValue)
	assert.Equal(t, "dark", changes[1].NewValue)
	assert.Equal(t, Deleted, changes[2].Kind)
}
