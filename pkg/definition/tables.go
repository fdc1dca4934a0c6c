package definition

import (
	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/errs"
	"github.com/epicenter-hq/core/pkg/schema"
)

// Tables is the table-definitions sub-helper of Definition:
// set/get/getAll/has/delete/keys over table name, plus a callable
// per-table accessor for fields and metadata.
//
// Each table's definition is stored as its own nested *crdt.Map under
// root (table name -> container map), with "name"/"icon"/"description"/
// "version" as direct keys and the fields themselves nested one level
// further under a "fields" sub-map, one key per field name. Writing each
// field under its own key (rather than the whole TableDef as one opaque
// value) is what lets two clients add different fields to the same
// table concurrently and have both survive a merge, instead of racing
// on one key under this module's last-write-wins Map.Set semantics.
type Tables struct {
	doc  *crdt.Doc
	root *crdt.Map
}

const (
	tableKeyName        = "name"
	tableKeyIcon        = "icon"
	tableKeyDescription = "description"
	tableKeyVersion     = "version"
	tableKeyFields      = "fields"
)

// Set stores def, replacing any prior definition in full: every field in
// def.Fields is written, and any previously stored field absent from
// def.Fields is removed.
func (t *Tables) Set(def schema.TableDef) error {
	if def.Name == "" {
		return errs.SchemaValidationError("definition.tables", []errs.Issue{{Path: "name", Message: "table name must not be empty"}})
	}
	return t.doc.Transact(nil, func(tx *crdt.Tx) error {
		t.setLocked(def)
		return nil
	})
}

// tableMapLocked returns the per-table container map for name, creating
// it if absent. Must run inside a transaction.
func (t *Tables) tableMapLocked(name string) *crdt.Map {
	return t.root.SubMap(name)
}

func (t *Tables) setLocked(def schema.TableDef) {
	existing, hadExisting := t.root.Get(def.Name)
	var tableMap *crdt.Map
	if hadExisting {
		tableMap, hadExisting = existing.(*crdt.Map)
	}
	if !hadExisting {
		tableMap = t.root.SubMap(def.Name)
	} else {
		// SubMap's reuse-without-mutation path wouldn't otherwise dirty
		// root on a whole-definition replace of an already-existing
		// table; re-Set the same container so Tables.Observe still sees
		// it as an "updated" table.
		t.root.Set(def.Name, tableMap)
	}

	tableMap.Set(tableKeyName, def.Name)
	if def.Icon != nil {
		tableMap.Set(tableKeyIcon, def.Icon)
	} else if tableMap.Has(tableKeyIcon) {
		tableMap.Delete(tableKeyIcon)
	}
	tableMap.Set(tableKeyDescription, def.Description)
	tableMap.Set(tableKeyVersion, def.Version)

	fieldsMap := tableMap.SubMap(tableKeyFields)
	for _, existingField := range fieldsMap.Keys() {
		if _, present := def.Fields[existingField]; !present {
			fieldsMap.Delete(existingField)
		}
	}
	for name, fs := range def.Fields {
		fieldsMap.Set(name, fs)
	}
}

// Get returns the stored definition for name, if any.
func (t *Tables) Get(name string) (schema.TableDef, bool) { return t.getLocked(name) }

func (t *Tables) getLocked(name string) (schema.TableDef, bool) {
	raw, ok := t.root.Get(name)
	if !ok {
		return schema.TableDef{}, false
	}
	tableMap, ok := raw.(*crdt.Map)
	if !ok {
		return schema.TableDef{}, false
	}
	return readTableDef(name, tableMap), true
}

func readTableDef(name string, tableMap *crdt.Map) schema.TableDef {
	def := schema.TableDef{Name: name, Fields: map[string]schema.FieldSchema{}}
	if v, ok := tableMap.Get(tableKeyIcon); ok {
		if icon, ok2 := v.(*string); ok2 {
			def.Icon = icon
		}
	}
	if v, ok := tableMap.Get(tableKeyDescription); ok {
		if s, ok2 := v.(string); ok2 {
			def.Description = s
		}
	}
	if v, ok := tableMap.Get(tableKeyVersion); ok {
		if n, ok2 := v.(int); ok2 {
			def.Version = n
		}
	}
	if v, ok := tableMap.Get(tableKeyFields); ok {
		if fieldsMap, ok2 := v.(*crdt.Map); ok2 {
			for _, fieldName := range fieldsMap.Keys() {
				if fv, ok3 := fieldsMap.Get(fieldName); ok3 {
					if fs, ok4 := fv.(schema.FieldSchema); ok4 {
						def.Fields[fieldName] = fs
					}
				}
			}
		}
	}
	return def
}

// GetAll returns every stored table definition keyed by name.
func (t *Tables) GetAll() map[string]schema.TableDef {
	out := make(map[string]schema.TableDef)
	for _, name := range t.root.Keys() {
		if def, ok := t.getLocked(name); ok {
			out[name] = def
		}
	}
	return out
}

// Has reports whether name has a stored definition.
func (t *Tables) Has(name string) bool { return t.root.Has(name) }

// Delete removes a table's definition. Deleting a definition does not
// touch the table's row data (Definition scopes to schema,
// not rows); callers that want to drop the data too go through the
// table helper's Clear separately.
func (t *Tables) Delete(name string) error {
	return t.doc.Transact(nil, func(tx *crdt.Tx) error {
		t.root.Delete(name)
		return nil
	})
}

// Keys returns every table name with a stored definition.
func (t *Tables) Keys() []string { return t.root.Keys() }

// Observe fires cb with the set of table names added, deleted, or
// whole-definition-replaced (via Set) in a commit. Field- or
// metadata-only edits made through a TableAccessor's Fields()/Metadata()
// sub-helpers are scoped one level deeper — see FieldsAccessor.Observe.
func (t *Tables) Observe(cb func(names map[string]bool)) (unsubscribe func()) {
	return t.root.ObserveShallow(func(ev crdt.MapEvent) {
		out := make(map[string]bool)
		for k := range ev.Added {
			out[k] = true
		}
		for k := range ev.Updated {
			out[k] = true
		}
		for k := range ev.Deleted {
			out[k] = true
		}
		if len(out) > 0 {
			cb(out)
		}
	})
}

// Table returns the callable per-table accessor for name, exposing the
// table's fields and display metadata as separate sub-helpers.
func (t *Tables) Table(name string) *TableAccessor { return &TableAccessor{tables: t, name: name} }

// TableAccessor scopes Tables to a single table name.
type TableAccessor struct {
	tables *Tables
	name   string
}

// Fields returns the field-level accessor for this table.
func (a *TableAccessor) Fields() *FieldsAccessor { return &FieldsAccessor{table: a} }

// Metadata returns the display-metadata accessor for this table.
func (a *TableAccessor) Metadata() *MetadataAccessor { return &MetadataAccessor{table: a} }

// FieldsAccessor exposes one table's field map.
type FieldsAccessor struct{ table *TableAccessor }

// Get returns the current schema for one field.
func (f *FieldsAccessor) Get(fieldName string) (schema.FieldSchema, bool) {
	def, ok := f.table.tables.getLocked(f.table.name)
	if !ok {
		return schema.FieldSchema{}, false
	}
	fs, ok := def.Fields[fieldName]
	return fs, ok
}

// GetAll returns every field's current schema.
func (f *FieldsAccessor) GetAll() map[string]schema.FieldSchema {
	def, ok := f.table.tables.getLocked(f.table.name)
	if !ok {
		return nil
	}
	out := make(map[string]schema.FieldSchema, len(def.Fields))
	for k, v := range def.Fields {
		out[k] = v
	}
	return out
}

// Has reports whether fieldName is part of the table's current fields.
func (f *FieldsAccessor) Has(fieldName string) bool {
	_, ok := f.Get(fieldName)
	return ok
}

// Keys returns the table's current field names.
func (f *FieldsAccessor) Keys() []string {
	def, ok := f.table.tables.getLocked(f.table.name)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(def.Fields))
	for k := range def.Fields {
		out = append(out, k)
	}
	return out
}

// Set adds or replaces one field's schema, under its own key in the
// table's fields sub-map, and bumps the table's version (the caller is
// responsible for pushing the prior field set into the TableSchema.History
// it constructs the Table helper with, so existing rows keep parsing via
// migration-on-read). Writing just this one field's key, rather than the
// whole definition, means a concurrent Set of a different field on
// another client merges instead of one clobbering the other.
func (f *FieldsAccessor) Set(fieldName string, fs schema.FieldSchema) error {
	tables := f.table.tables
	return tables.doc.Transact(nil, func(tx *crdt.Tx) error {
		tableMap := tables.tableMapLocked(f.table.name)
		if !tableMap.Has(tableKeyName) {
			tableMap.Set(tableKeyName, f.table.name)
		}
		bumpVersionLocked(tableMap)
		tableMap.SubMap(tableKeyFields).Set(fieldName, fs)
		return nil
	})
}

// Delete removes one field from the table's current definition.
func (f *FieldsAccessor) Delete(fieldName string) error {
	tables := f.table.tables
	return tables.doc.Transact(nil, func(tx *crdt.Tx) error {
		raw, ok := tables.root.Get(f.table.name)
		if !ok {
			return nil
		}
		tableMap, ok := raw.(*crdt.Map)
		if !ok {
			return nil
		}
		fieldsMap := tableMap.SubMap(tableKeyFields)
		if !fieldsMap.Has(fieldName) {
			return nil
		}
		fieldsMap.Delete(fieldName)
		bumpVersionLocked(tableMap)
		return nil
	})
}

func bumpVersionLocked(tableMap *crdt.Map) {
	version := 0
	if v, ok := tableMap.Get(tableKeyVersion); ok {
		if n, ok2 := v.(int); ok2 {
			version = n
		}
	}
	tableMap.Set(tableKeyVersion, version+1)
}

// Observe fires cb whenever this table's fields or metadata change,
// including field-by-field edits made through FieldsAccessor/
// MetadataAccessor (which Tables.Observe, scoped to whole-table add/
// delete/replace, does not see).
func (f *FieldsAccessor) Observe(cb func()) (unsubscribe func()) {
	tables := f.table.tables
	var tableMap *crdt.Map
	if raw, ok := tables.root.Get(f.table.name); ok {
		tableMap, _ = raw.(*crdt.Map)
	}
	if tableMap == nil {
		_ = tables.doc.Transact(nil, func(tx *crdt.Tx) error {
			tableMap = tables.tableMapLocked(f.table.name)
			return nil
		})
	}
	return tableMap.ObserveDeep(cb)
}

// MetadataAccessor exposes a table's display metadata (icon, description).
type MetadataAccessor struct{ table *TableAccessor }

// Get returns the table's current icon and description.
func (m *MetadataAccessor) Get() (icon *string, description string, ok bool) {
	def, found := m.table.tables.getLocked(m.table.name)
	if !found {
		return nil, "", false
	}
	return def.Icon, def.Description, true
}

// Set updates the table's display metadata without touching its fields.
func (m *MetadataAccessor) Set(icon *string, description string) error {
	tables := m.table.tables
	return tables.doc.Transact(nil, func(tx *crdt.Tx) error {
		tableMap := tables.tableMapLocked(m.table.name)
		if !tableMap.Has(tableKeyName) {
			tableMap.Set(tableKeyName, m.table.name)
		}
		if icon != nil {
			tableMap.Set(tableKeyIcon, icon)
		} else if tableMap.Has(tableKeyIcon) {
			tableMap.Delete(tableKeyIcon)
		}
		tableMap.Set(tableKeyDescription, description)
		return nil
	})
}

// Observe fires cb whenever this table's definition (metadata included)
// changes; metadata has no CRDT identity separate from the table's
// overall definition record.
func (m *MetadataAccessor) Observe(cb func()) (unsubscribe func()) {
	return m.table.Fields().Observe(cb)
}
