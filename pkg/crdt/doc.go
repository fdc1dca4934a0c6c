/*
Package crdt is the thin abstraction over the CRDT library the rest of the
core is built on: documents, maps, arrays, and transactions tagged with an
origin. It does not implement network-level merge itself — that is a sync
Provider's job — but it gives every replica the same convergence guarantee
a real CRDT library would: concurrent writes to different keys never
clobber each other, and writes to the same key converge deterministically
(last transaction applied wins, which is exactly what every helper in this
module needs: Head's per-client proposal map, the LWW store's timestamp
ordering, and schema-merge's deep-equality check all resolve conflicts
above this layer, not inside it).

A Doc is single-writer, single-goroutine per the core's cooperative
scheduling model: all mutation happens inside a Transact
call, mirroring bbolt's db.Update(func(tx *bolt.Tx) error) shape that the
rest of this codebase already uses for on-disk storage.
*/
package crdt

import (
	"fmt"
	"sync"
)

// Origin tags a transaction's provenance. Local transactions use nil;
// remote transactions (applied by a sync provider) carry that provider's
// identity so observers can tell local writes from echoed remote ones.
type Origin any

// touched is implemented by Map and Array so Doc can collect exactly the
// structures dirtied during one transaction and commit them once.
type touched interface {
	commit(origin Origin)
	discard()
}

// Doc is one CRDT document: the Registry, a single workspace's Head, or a
// single (workspace, epoch)'s Data document are each one Doc.
type Doc struct {
	id       string
	clientID string

	mu      sync.Mutex
	txDepth int
	origin  Origin
	dirty   map[touched]struct{}

	// commitSeq counts finished top-level transactions, so a Map can tell
	// whether its deep observers already fired for the current one.
	commitSeq uint64

	topMu  sync.Mutex
	maps   map[string]*Map
	arrays map[string]*Array

	commitMu  sync.Mutex
	onCommits []func(Origin)
}

// NewDoc creates an empty document identified by id, owned by clientID
// (used as the default key for per-client CRDT state such as Head's
// epoch proposals).
func NewDoc(id, clientID string) *Doc {
	return &Doc{
		id:       id,
		clientID: clientID,
		maps:     make(map[string]*Map),
	}
}

// ID returns the document's identity, e.g. "registry", "{workspaceId}:head",
// or "{workspaceId}-{epoch}".
func (d *Doc) ID() string { return d.id }

// ClientID returns the local client identity writing to this document.
func (d *Doc) ClientID() string { return d.clientID }

// Map returns the named top-level map, creating it on first access. The
// same name always returns the same *Map instance for the life of the
// Doc, so definition/tables/kv each get one stable root map.
func (d *Doc) Map(name string) *Map {
	d.topMu.Lock()
	defer d.topMu.Unlock()
	m, ok := d.maps[name]
	if !ok {
		m = newMap(d, nil, name)
		d.maps[name] = m
	}
	return m
}

// Transact runs fn inside a single CRDT transaction. Every Map/Array
// mutated by fn fires its observers exactly once after fn returns,
// carrying origin. Nested Transact calls (fn itself calling Transact on
// the same Doc) collapse into the outermost transaction.
func (d *Doc) Transact(origin Origin, fn func(tx *Tx) error) error {
	d.mu.Lock()
	nested := d.txDepth > 0
	if !nested {
		d.origin = origin
		d.dirty = make(map[touched]struct{})
	}
	d.txDepth++
	d.mu.Unlock()

	err := fn(&Tx{doc: d})

	d.mu.Lock()
	d.txDepth--
	finishing := d.txDepth == 0
	var dirty map[touched]struct{}
	var txOrigin Origin
	if finishing {
		dirty = d.dirty
		txOrigin = d.origin
		d.dirty = nil
		d.commitSeq++
	}
	d.mu.Unlock()

	if !finishing {
		return err
	}
	if err != nil {
		for t := range dirty {
			t.discard()
		}
		return err
	}
	for t := range dirty {
		t.commit(txOrigin)
	}
	if len(dirty) > 0 {
		d.commitMu.Lock()
		cbs := append([]func(Origin){}, d.onCommits...)
		d.commitMu.Unlock()
		for _, cb := range cbs {
			if cb != nil {
				cb(txOrigin)
			}
		}
	}
	return nil
}

// OnCommit registers cb to run once after every successful top-level
// transaction that actually mutated something, after every Map/Array
// observer for that transaction has already fired. Persistence
// providers use this as their single save-on-write hook rather than
// subscribing to every individual map.
func (d *Doc) OnCommit(cb func(Origin)) (unsubscribe func()) {
	d.commitMu.Lock()
	defer d.commitMu.Unlock()
	d.onCommits = append(d.onCommits, cb)
	idx := len(d.onCommits) - 1
	return func() {
		d.commitMu.Lock()
		defer d.commitMu.Unlock()
		if idx < len(d.onCommits) {
			d.onCommits[idx] = nil
		}
	}
}

// markDirty records t as dirtied by the open transaction. Map/Array
// mutators call it, and it panics when no transaction is open: every
// mutation must happen inside Transact, exactly as every bbolt write must
// happen inside db.Update.
func (d *Doc) markDirty(t touched) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.txDepth == 0 {
		panic(fmt.Sprintf("crdt: mutation on doc %q outside of Transact", d.id))
	}
	d.dirty[t] = struct{}{}
}

// Snapshot serializes every top-level map and array (recursively, for
// nested maps) into plain Go values a persistence provider can encode.
func (d *Doc) Snapshot() map[string]any {
	d.topMu.Lock()
	maps := make(map[string]*Map, len(d.maps))
	for name, m := range d.maps {
		maps[name] = m
	}
	arrays := make(map[string]*Array, len(d.arrays))
	for name, a := range d.arrays {
		arrays[name] = a
	}
	d.topMu.Unlock()

	out := make(map[string]any, len(maps)+len(arrays))
	for name, m := range maps {
		out[name] = snapshotMap(m)
	}
	for name, a := range arrays {
		out[name] = a.Snapshot()
	}
	return out
}

func snapshotMap(m *Map) map[string]any {
	raw := m.Snapshot()
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if child, ok := v.(*Map); ok {
			out[k] = snapshotMap(child)
		} else {
			out[k] = v
		}
	}
	return out
}

// Restore replays a Snapshot's output back into the document inside a
// single transaction, recreating nested maps and array contents as
// needed. A persistence provider calls this once on load, before
// attaching its own OnCommit save hook.
func (d *Doc) Restore(origin Origin, data map[string]any) error {
	return d.Transact(origin, func(tx *Tx) error {
		for name, v := range data {
			switch val := v.(type) {
			case map[string]any:
				restoreMap(tx.Map(name), val)
			case []any:
				restoreArray(d.Array(name), val)
			}
		}
		return nil
	})
}

func restoreMap(m *Map, data map[string]any) {
	for k, v := range data {
		if child, ok := v.(map[string]any); ok {
			restoreMap(m.SubMap(k), child)
		} else {
			m.Set(k, v)
		}
	}
}

func restoreArray(a *Array, items []any) {
	for _, it := range items {
		a.Push(it)
	}
}

// Tx is the handle passed into a Transact callback. It exists so call
// sites read like bbolt transactions (tx.Map(...).Set(...)) even though
// Map/Array mutation methods work directly off the Doc-rooted instances;
// Tx.Map is sugar for doc.Map.
type Tx struct {
	doc *Doc
}

// Map returns the named top-level map of the transaction's document.
func (tx *Tx) Map(name string) *Map { return tx.doc.Map(name) }

// Doc returns the document this transaction is running against.
func (tx *Tx) Doc() *Doc { return tx.doc }
