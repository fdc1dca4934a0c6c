/*
Package table implements the schema-bound table helper:
a keyed view over a CRDT map of rows, with validate/migrate-on-read,
typed add/update/delete, batched transactions, and an observable change
stream that coalesces CRDT events into per-commit key-change sets.

Each row is stored as its own nested *crdt.Map under the table's root map
(rowId -> fieldName -> value), so Update can merge individual fields
under one transaction, and so the table's
shallow observer already gets "exactly the keys that changed" for free
from the CRDT layer: a row add/delete is a change on the table's root
map, and a field edit on an existing row is a change on that row's
nested map — both are coalesced into one Set<rowId> below.
*/
package table

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/errs"
	"github.com/epicenter-hq/core/pkg/log"
	"github.com/epicenter-hq/core/pkg/schema"
)

// GetStatus mirrors schema.ParseStatus for table reads; kept as a
// separate alias so callers don't need to import pkg/schema just to
// switch on a Table.Get result.
type GetStatus = schema.ParseStatus

const (
	StatusValid    = schema.StatusValid
	StatusInvalid  = schema.StatusInvalid
	StatusNotFound = schema.StatusNotFound
)

// GetResult is the three-way result of reading one row.
type GetResult struct {
	Status GetStatus
	ID     string
	Row    map[string]any
	Errors []errs.Issue
}

// DeleteResult reports whether a delete actually removed a row.
type DeleteResult struct {
	Status string // "deleted" | "not_found_locally"
}

// Event carries the origin of the transaction and the set of row IDs
// that changed during it.
type Event struct {
	Origin  crdt.Origin
	RowIDs  map[string]bool
}

// Table is the schema-bound facade over one table's CRDT row map.
type Table struct {
	doc    *crdt.Doc
	rows   *crdt.Map // this table's root map: rowId -> *crdt.Map(fields)
	name   string
	schema *schema.TableSchema
	logger zerolog.Logger

	onAdd    []func(row map[string]any, origin crdt.Origin)
	onUpdate []func(row map[string]any, origin crdt.Origin)
	onDelete []func(id string, origin crdt.Origin)
}

// New constructs a Table bound to tablesRoot.SubMap(name) for its rows
// and ts for validation. Callers normally obtain a Table through the
// Data document's definition-driven registry (pkg/workspace), not
// directly.
func New(doc *crdt.Doc, tablesRoot *crdt.Map, name string, ts *schema.TableSchema) *Table {
	t := &Table{
		doc:    doc,
		name:   name,
		schema: ts,
		logger: log.WithComponent("table").With().Str("table", name).Logger(),
	}
	// Reuse the table's row map if it already exists; otherwise create it
	// now, in its own transaction.
	if existing, ok := tablesRoot.Get(name); ok {
		if m, ok2 := existing.(*crdt.Map); ok2 {
			t.rows = m
		}
	}
	if t.rows == nil {
		_ = doc.Transact(nil, func(tx *crdt.Tx) error {
			t.rows = tablesRoot.SubMap(name)
			return nil
		})
	}
	return t
}

// Set writes row.id -> row's fields in a single transaction, replacing
// any prior value for that row wholesale.
func (t *Table) Set(row map[string]any) error {
	id, _ := row["id"].(string)
	if id == "" {
		return errs.SchemaValidationError(t.name, []errs.Issue{{Path: "id", Message: "row must have a non-empty id"}})
	}
	return t.doc.Transact(nil, func(tx *crdt.Tx) error {
		fieldMap := t.rows.SubMap(id)
		for _, existingKey := range fieldMap.Keys() {
			if _, stillPresent := row[existingKey]; !stillPresent {
				fieldMap.Delete(existingKey)
			}
		}
		for k, v := range row {
			fieldMap.Set(k, v)
		}
		return nil
	})
}

// Get reads one row, validating and migrating it against the table's
// schema.
func (t *Table) Get(id string) GetResult {
	raw, ok := t.rawRow(id)
	if !ok {
		return GetResult{Status: StatusNotFound, ID: id}
	}
	value, issues, migrationErr := t.schema.ParseRow(raw)
	if migrationErr != nil {
		t.logger.Warn().Err(migrationErr).Str("row_id", id).Msg("migration failed on read")
		return GetResult{Status: StatusInvalid, ID: id, Row: raw, Errors: []errs.Issue{{Path: "id", Message: migrationErr.Error()}}}
	}
	if len(issues) > 0 {
		return GetResult{Status: StatusInvalid, ID: id, Row: raw, Errors: issues}
	}
	return GetResult{Status: StatusValid, ID: id, Row: value}
}

func (t *Table) rawRow(id string) (map[string]any, bool) {
	v, ok := t.rows.Get(id)
	if !ok {
		return nil, false
	}
	fieldMap, ok := v.(*crdt.Map)
	if !ok {
		return nil, false
	}
	return fieldMap.Snapshot(), true
}

// GetAll returns every row, valid or not, keyed by ID.
func (t *Table) GetAll() map[string]GetResult {
	out := make(map[string]GetResult)
	for _, id := range t.rows.Keys() {
		out[id] = t.Get(id)
	}
	return out
}

// GetAllValid returns only rows that currently validate.
func (t *Table) GetAllValid() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for id, r := range t.GetAll() {
		if r.Status == StatusValid {
			out[id] = r.Row
		}
	}
	return out
}

// GetAllInvalid returns only rows that currently fail to validate.
func (t *Table) GetAllInvalid() map[string]GetResult {
	out := make(map[string]GetResult)
	for id, r := range t.GetAll() {
		if r.Status == StatusInvalid {
			out[id] = r
		}
	}
	return out
}

// Filter returns valid rows matching pred.
func (t *Table) Filter(pred func(map[string]any) bool) map[string]map[string]any {
	out := make(map[string]map[string]any)
	for id, row := range t.GetAllValid() {
		if pred(row) {
			out[id] = row
		}
	}
	return out
}

// Find returns the first valid row matching pred, if any.
func (t *Table) Find(pred func(map[string]any) bool) (map[string]any, bool) {
	for _, id := range t.rows.Keys() {
		r := t.Get(id)
		if r.Status == StatusValid && pred(r.Row) {
			return r.Row, true
		}
	}
	return nil, false
}

// Update merges partial onto the existing row under a single
// transaction. No-op if the row does not exist.
func (t *Table) Update(id string, partial map[string]any) error {
	return t.doc.Transact(nil, func(tx *crdt.Tx) error {
		v, ok := t.rows.Get(id)
		if !ok {
			return nil
		}
		fieldMap, ok := v.(*crdt.Map)
		if !ok {
			return nil
		}
		for k, val := range partial {
			fieldMap.Set(k, val)
		}
		return nil
	})
}

// Delete removes a row.
func (t *Table) Delete(id string) DeleteResult {
	existed := false
	_ = t.doc.Transact(nil, func(tx *crdt.Tx) error {
		if t.rows.Has(id) {
			existed = true
			t.rows.Delete(id)
		}
		return nil
	})
	if existed {
		return DeleteResult{Status: "deleted"}
	}
	return DeleteResult{Status: "not_found_locally"}
}

// BatchTx is the handle passed to Batch's callback.
type BatchTx struct {
	table *Table
	crdtTx *crdt.Tx
}

// Set writes a row within the batch.
func (b *BatchTx) Set(row map[string]any) {
	id, _ := row["id"].(string)
	fieldMap := b.table.rows.SubMap(id)
	for _, existingKey := range fieldMap.Keys() {
		if _, stillPresent := row[existingKey]; !stillPresent {
			fieldMap.Delete(existingKey)
		}
	}
	for k, v := range row {
		fieldMap.Set(k, v)
	}
}

// Update merges partial onto an existing row within the batch.
func (b *BatchTx) Update(id string, partial map[string]any) {
	v, ok := b.table.rows.Get(id)
	if !ok {
		return
	}
	fieldMap, ok := v.(*crdt.Map)
	if !ok {
		return
	}
	for k, val := range partial {
		fieldMap.Set(k, val)
	}
}

// Delete removes a row within the batch.
func (b *BatchTx) Delete(id string) {
	b.table.rows.Delete(id)
}

// Batch runs fn inside a single CRDT transaction; observers fire once
// for the whole batch.
func (t *Table) Batch(fn func(tx *BatchTx)) error {
	return t.doc.Transact(nil, func(tx *crdt.Tx) error {
		fn(&BatchTx{table: t, crdtTx: tx})
		return nil
	})
}

// Clear removes every row in one transaction.
func (t *Table) Clear() error {
	return t.Batch(func(tx *BatchTx) {
		for _, id := range t.rows.Keys() {
			tx.Delete(id)
		}
	})
}

// Count returns the number of rows currently stored (valid or not).
func (t *Table) Count() int { return t.rows.Len() }

// Has reports whether a row with id exists (regardless of validity).
func (t *Table) Has(id string) bool { return t.rows.Has(id) }

// Observe fires cb once per commit with the set of row IDs that changed,
// from either a top-level add/delete or a field edit on an existing row.
//
// A single Set on a brand-new row dirties both the table's root map (the
// row id being added) and that row's own field map (its fields being
// set) in the same transaction; since Doc.Transact commits dirtied
// maps in nondeterministic order, calling cb directly from each map's
// shallow observer could fire it twice for one commit. Instead every
// observer here only accumulates into a pending set, and the actual
// call to cb happens exactly once, from the document's OnCommit hook,
// which Doc.Transact guarantees runs only after every map dirtied by
// the transaction has already committed.
func (t *Table) Observe(cb func(rowIDs map[string]bool)) (unsubscribe func()) {
	var mu sync.Mutex
	pending := make(map[string]bool)

	unTop := t.rows.ObserveShallow(func(ev crdt.MapEvent) {
		mu.Lock()
		for id := range mergeKeys(ev.Added, ev.Updated, ev.Deleted) {
			pending[id] = true
		}
		mu.Unlock()
	})
	// Track field-level edits too: subscribe to the field map of every row
	// that exists now, and of each row added later, forwarding its id.
	unFields := make(map[string]func())
	for _, id := range t.rows.Keys() {
		v, _ := t.rows.Get(id)
		fieldMap, ok := v.(*crdt.Map)
		if !ok {
			continue
		}
		rowID := id
		unFields[id] = fieldMap.ObserveShallow(func(crdt.MapEvent) {
			mu.Lock()
			pending[rowID] = true
			mu.Unlock()
		})
	}
	unField := t.rows.ObserveShallow(func(ev crdt.MapEvent) {
		for id := range ev.Added {
			v, ok := t.rows.Get(id)
			if !ok {
				continue
			}
			fieldMap, ok := v.(*crdt.Map)
			if !ok {
				continue
			}
			rowID := id
			unsub := fieldMap.ObserveShallow(func(crdt.MapEvent) {
				mu.Lock()
				pending[rowID] = true
				mu.Unlock()
			})
			unFields[id] = unsub
		}
		for id := range ev.Deleted {
			if unsub, ok := unFields[id]; ok {
				unsub()
				delete(unFields, id)
			}
		}
	})
	unCommit := t.doc.OnCommit(func(crdt.Origin) {
		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		ids := pending
		pending = make(map[string]bool)
		mu.Unlock()
		cb(ids)
	})
	return func() {
		unTop()
		unField()
		unCommit()
		for _, unsub := range unFields {
			unsub()
		}
	}
}

// OnAdd registers cb to fire when a row is newly added, with the
// transaction's origin so callers can filter remote echoes.
func (t *Table) OnAdd(cb func(row map[string]any, origin crdt.Origin)) {
	t.onAdd = append(t.onAdd, cb)
	t.rows.ObserveShallow(func(ev crdt.MapEvent) {
		for id := range ev.Added {
			r := t.Get(id)
			if r.Status == StatusValid {
				cb(r.Row, ev.Origin)
			}
		}
	})
}

func mergeKeys(sets ...map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for _, s := range sets {
		for k := range s {
			out[k] = true
		}
	}
	return out
}
