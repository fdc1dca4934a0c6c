package crdt

import "sync"

// ArrayEvent describes the positional inserts/deletes one transaction
// made to an Array.
type ArrayEvent struct {
	Origin   Origin
	Inserted []int
	Deleted  []int
}

// Empty reports whether the event carries no changes.
func (e ArrayEvent) Empty() bool { return len(e.Inserted) == 0 && len(e.Deleted) == 0 }

// Array is a CRDT append-only sequence. It backs the LWW key-value store
// which needs array semantics (not map semantics) because a
// sync provider may replicate it as a primitive ordered log.
type Array struct {
	doc  *Doc
	name string

	mu    sync.RWMutex
	items []any

	pendingIns []int
	pendingDel []int

	observers []func(ArrayEvent)
}

func newArray(doc *Doc, name string) *Array {
	return &Array{doc: doc, name: name}
}

// Array returns the named top-level array, creating it on first access.
func (d *Doc) Array(name string) *Array {
	d.topMu.Lock()
	defer d.topMu.Unlock()
	if d.arrays == nil {
		d.arrays = make(map[string]*Array)
	}
	a, ok := d.arrays[name]
	if !ok {
		a = newArray(d, name)
		d.arrays[name] = a
	}
	return a
}

// Push appends value to the end of the array and returns its index.
func (a *Array) Push(value any) int {
	a.mu.Lock()
	a.items = append(a.items, value)
	idx := len(a.items) - 1
	a.pendingIns = append(a.pendingIns, idx)
	a.mu.Unlock()
	a.doc.markDirty(a)
	return idx
}

// DeleteAt removes the item at idx, shifting later items left. Indices
// recorded in the pending event refer to pre-deletion positions.
func (a *Array) DeleteAt(idx int) {
	a.mu.Lock()
	if idx < 0 || idx >= len(a.items) {
		a.mu.Unlock()
		return
	}
	a.items = append(a.items[:idx], a.items[idx+1:]...)
	a.pendingDel = append(a.pendingDel, idx)
	a.mu.Unlock()
	a.doc.markDirty(a)
}

// Get returns the item at idx.
func (a *Array) Get(idx int) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if idx < 0 || idx >= len(a.items) {
		return nil, false
	}
	return a.items[idx], true
}

// Len returns the number of items currently in the array.
func (a *Array) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// Snapshot returns a copy of the array's current items, in order.
func (a *Array) Snapshot() []any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]any, len(a.items))
	copy(out, a.items)
	return out
}

// Observe registers cb to run once per commit that changed this array.
func (a *Array) Observe(cb func(ArrayEvent)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, cb)
	idx := len(a.observers) - 1
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if idx < len(a.observers) {
			a.observers[idx] = nil
		}
	}
}

func (a *Array) commit(origin Origin) {
	a.mu.Lock()
	ev := ArrayEvent{Origin: origin, Inserted: a.pendingIns, Deleted: a.pendingDel}
	a.pendingIns, a.pendingDel = nil, nil
	observers := append([]func(ArrayEvent){}, a.observers...)
	a.mu.Unlock()

	if ev.Empty() {
		return
	}
	for _, cb := range observers {
		if cb == nil {
			continue
		}
		func() {
			defer recoverObserverPanic("array observer")
			cb(ev)
		}()
	}
}

func (a *Array) discard() {
	a.mu.Lock()
	a.pendingIns, a.pendingDel = nil, nil
	a.mu.Unlock()
}
