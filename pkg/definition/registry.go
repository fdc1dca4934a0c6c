package definition

import "github.com/epicenter-hq/core/pkg/schema"

// Registry adapts a Definition's CRDT-stored current definitions plus
// application-supplied version history into the *schema.TableSchema /
// *schema.KvSchema shapes pkg/table and pkg/kv validate against.
//
// History lives in code, not CRDT state (see the package doc), so it's
// registered once at workspace-construction time via WithTableHistory /
// WithKvHistory and combined here with whatever Definition currently
// holds for that name.
type Registry struct {
	def       *Definition
	tableHist map[string][]schema.VersionedFields
	kvHist    map[string][]schema.VersionedField
}

// NewRegistry wraps def with empty history; use WithTableHistory /
// WithKvHistory to register migrators before first use.
func NewRegistry(def *Definition) *Registry {
	return &Registry{
		def:       def,
		tableHist: make(map[string][]schema.VersionedFields),
		kvHist:    make(map[string][]schema.VersionedField),
	}
}

// WithTableHistory registers the migration chain for table.
func (r *Registry) WithTableHistory(table string, history []schema.VersionedFields) *Registry {
	r.tableHist[table] = history
	return r
}

// WithKvHistory registers the migration chain for a KV setting.
func (r *Registry) WithKvHistory(key string, history []schema.VersionedField) *Registry {
	r.kvHist[key] = history
	return r
}

// TableSchema returns the combined schema for table, or false if no
// definition has been stored for it yet.
func (r *Registry) TableSchema(table string) (*schema.TableSchema, bool) {
	def, ok := r.def.Tables().Get(table)
	if !ok {
		return nil, false
	}
	return &schema.TableSchema{Current: def, History: r.tableHist[table]}, true
}

// Get implements pkg/kv.Schemas: returns the combined KvSchema for key.
func (r *Registry) Get(key string) (*schema.KvSchema, bool) {
	def, ok := r.def.KV().Get(key)
	if !ok {
		return nil, false
	}
	return &schema.KvSchema{Current: def, History: r.kvHist[key]}, true
}
