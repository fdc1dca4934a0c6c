/*
Package definition implements the Definition helper: the
CRDT-stored schema (tables + KV settings) nested inside a Data document,
with typed sub-helpers for tables and KV, per-table field/metadata access,
and a deep observer for "anything under the schema changed".

Historical field versions and their migrators are supplied by application
code (pkg/workspace wires them in when constructing Table/KV helpers) —
only the *current* definition is CRDT state, matching the Data
entity shape (`TableDef = { name, icon, description, fields }`); a
migrator is behavior, not data, and has no CRDT representation.
*/
package definition

import (
	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/schema"
)

// TableChange is the add/delete verb for whole-table
// changes on Definition.Observe.
type TableChange string

const (
	TableAdded   TableChange = "add"
	TableDeleted TableChange = "delete"
)

// Definition is the CRDT-backed schema container for one Data document.
type Definition struct {
	doc       *crdt.Doc
	root      *crdt.Map
	tablesMap *crdt.Map
	kvMap     *crdt.Map
}

// New binds a Definition to doc's top-level "definition" map.
func New(doc *crdt.Doc) *Definition {
	root := doc.Map("definition")
	d := &Definition{doc: doc, root: root}
	_ = doc.Transact(nil, func(tx *crdt.Tx) error {
		d.tablesMap = root.SubMap("tables")
		d.kvMap = root.SubMap("kv")
		return nil
	})
	return d
}

// Tables returns the tables sub-helper.
func (d *Definition) Tables() *Tables { return &Tables{doc: d.doc, root: d.tablesMap} }

// KV returns the KV-definitions sub-helper.
func (d *Definition) KV() *KV { return &KV{doc: d.doc, root: d.kvMap} }

// Observe fires cb exactly once per commit that touched anything under
// the definition subtree (a deep observer). The caller
// re-reads via Tables()/KV() if it needs the new snapshot.
func (d *Definition) Observe(cb func()) (unsubscribe func()) {
	return d.root.ObserveDeep(cb)
}

// Merge bulk-applies partial table/KV definitions; see MergeSchema for
// the idempotent variant used at workspace-creation time.
func (d *Definition) Merge(tables map[string]schema.TableDef, kv map[string]schema.KvDef) error {
	return d.doc.Transact(nil, func(tx *crdt.Tx) error {
		tablesH := &Tables{doc: d.doc, root: d.tablesMap}
		kvH := &KV{doc: d.doc, root: d.kvMap}
		for _, def := range tables {
			tablesH.setLocked(def)
		}
		for name, def := range kv {
			kvH.setLocked(name, def)
		}
		return nil
	})
}

// MergeSchema: for each table/field and KV entry,
// an existing stored definition that's deep-equal to the code-defined one
// is a no-op; a differing one is overwritten. Safe to call repeatedly
// with identical arguments (idempotent schema merge, testable property
// §8.4).
func MergeSchema(d *Definition, tables map[string]schema.TableDef, kv map[string]schema.KvDef) error {
	return d.doc.Transact(nil, func(tx *crdt.Tx) error {
		tablesH := &Tables{doc: d.doc, root: d.tablesMap}
		kvH := &KV{doc: d.doc, root: d.kvMap}

		for name, def := range tables {
			existing, ok := tablesH.getLocked(name)
			if ok && schema.DeepEqual(existing, def) {
				continue
			}
			tablesH.setLocked(def)
		}
		for name, def := range kv {
			existing, ok := kvH.getLocked(name)
			if ok && schema.DeepEqual(existing, def) {
				continue
			}
			kvH.setLocked(name, def)
		}
		return nil
	})
}
