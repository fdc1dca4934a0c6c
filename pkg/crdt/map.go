package crdt

import "sync"

// MapEvent describes the keys a single transaction added, updated, or
// deleted on one Map. A transaction that touches a Map fires exactly one
// MapEvent to its shallow observers, with the change set being the union
// of every Set/Delete call made during that transaction
// "Batch atomicity").
type MapEvent struct {
	Origin  Origin
	Added   map[string]bool
	Updated map[string]bool
	Deleted map[string]bool
}

// Empty reports whether the event carries no changes at all.
func (e MapEvent) Empty() bool {
	return len(e.Added) == 0 && len(e.Updated) == 0 && len(e.Deleted) == 0
}

// Map is a CRDT map from string keys to arbitrary values, including
// nested *Map values for tree-shaped documents (definition.tables.<name>
// is itself a Map nested under the top-level "definition" Map).
type Map struct {
	doc    *Doc
	parent *Map
	name   string

	mu   sync.RWMutex
	data map[string]any

	pending *MapEvent

	shallow []func(MapEvent)
	deep    []func()
	deepSeq uint64 // Doc.commitSeq of the last commit that fired deep observers here
}

func newMap(doc *Doc, parent *Map, name string) *Map {
	return &Map{doc: doc, parent: parent, name: name, data: make(map[string]any)}
}

// SubMap returns the nested Map stored at key, creating it if absent or
// if the existing value at key isn't a Map. Creation is itself a mutation
// (the key is now "added" to m) and so must happen inside a transaction,
// exactly like Set.
func (m *Map) SubMap(key string) *Map {
	m.mu.Lock()
	if existing, ok := m.data[key].(*Map); ok {
		m.mu.Unlock()
		return existing
	}
	_, existed := m.data[key]
	child := newMap(m.doc, m, m.name+"."+key)
	m.data[key] = child
	m.recordLocked(key, existed, false)
	m.mu.Unlock()
	m.doc.markDirty(m)
	return child
}

// Set writes key=value, overwriting any previous value. Must be called
// inside a Doc.Transact callback.
func (m *Map) Set(key string, value any) {
	m.mu.Lock()
	_, existed := m.data[key]
	m.data[key] = value
	m.recordLocked(key, existed, false)
	m.mu.Unlock()
	m.doc.markDirty(m)
}

// Get returns the value at key and whether it was present.
func (m *Map) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}

// Delete removes key if present. No-op (but still observed with an empty
// event, i.e. not observed at all) if key was already absent.
func (m *Map) Delete(key string) {
	m.mu.Lock()
	if _, existed := m.data[key]; existed {
		delete(m.data, key)
		m.recordLocked(key, false, true)
		m.mu.Unlock()
		m.doc.markDirty(m)
		return
	}
	m.mu.Unlock()
}

// Keys returns a snapshot of the map's current keys.
func (m *Map) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	return out
}

// Len returns the number of entries.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Snapshot returns a shallow copy of the map's entries.
func (m *Map) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// ObserveShallow registers cb to run once per commit that changed this
// map directly (not its nested sub-maps), with the change set of that
// commit. Returns an unsubscribe function.
func (m *Map) ObserveShallow(cb func(MapEvent)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shallow = append(m.shallow, cb)
	idx := len(m.shallow) - 1
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if idx < len(m.shallow) {
			m.shallow[idx] = nil
		}
	}
}

// ObserveDeep registers cb to run once per commit that changed this map or
// any map/array nested (transitively) under it. Used by the definition
// helper's whole-schema observer.
func (m *Map) ObserveDeep(cb func()) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deep = append(m.deep, cb)
	idx := len(m.deep) - 1
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if idx < len(m.deep) {
			m.deep[idx] = nil
		}
	}
}

func (m *Map) recordLocked(key string, existed, deleted bool) {
	if m.pending == nil {
		m.pending = &MapEvent{Added: map[string]bool{}, Updated: map[string]bool{}, Deleted: map[string]bool{}}
	}
	switch {
	case deleted:
		delete(m.pending.Added, key)
		delete(m.pending.Updated, key)
		m.pending.Deleted[key] = true
	case existed:
		if !m.pending.Added[key] {
			m.pending.Updated[key] = true
		}
	default:
		m.pending.Added[key] = true
	}
}

func (m *Map) commit(origin Origin) {
	m.mu.Lock()
	ev := m.pending
	m.pending = nil
	shallow := append([]func(MapEvent){}, m.shallow...)
	m.mu.Unlock()

	if ev == nil {
		return
	}
	ev.Origin = origin
	if !ev.Empty() {
		for _, cb := range shallow {
			safeCallMapEvent(cb, *ev)
		}
	}
	// Deep observers on this map and its ancestors fire at most once per
	// transaction, however many maps under them the transaction dirtied.
	m.doc.mu.Lock()
	seq := m.doc.commitSeq
	m.doc.mu.Unlock()
	for p := m; p != nil; p = p.parent {
		p.mu.Lock()
		fired := p.deepSeq == seq
		p.deepSeq = seq
		deepCBs := append([]func(){}, p.deep...)
		p.mu.Unlock()
		if fired {
			continue
		}
		for _, cb := range deepCBs {
			safeCallVoid(cb)
		}
	}
}

func (m *Map) discard() {
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
}

func safeCallMapEvent(cb func(MapEvent), ev MapEvent) {
	if cb == nil {
		return
	}
	defer recoverObserverPanic("map observer")
	cb(ev)
}

func safeCallVoid(cb func()) {
	if cb == nil {
		return
	}
	defer recoverObserverPanic("deep observer")
	cb()
}
