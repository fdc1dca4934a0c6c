package definition

import (
	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/errs"
	"github.com/epicenter-hq/core/pkg/schema"
)

// KV is the KV-definitions sub-helper of Definition:
// set/get/getAll/has/delete/keys over setting name, mirroring Tables but
// flat since a KV definition carries exactly one field, not a field map.
type KV struct {
	doc  *crdt.Doc
	root *crdt.Map
}

// Set stores def under def.Name.
func (k *KV) Set(def schema.KvDef) error {
	if def.Name == "" {
		return errs.SchemaValidationError("definition.kv", []errs.Issue{{Path: "name", Message: "kv setting name must not be empty"}})
	}
	return k.doc.Transact(nil, func(tx *crdt.Tx) error {
		k.setLocked(def.Name, def)
		return nil
	})
}

func (k *KV) setLocked(name string, def schema.KvDef) {
	k.root.Set(name, def)
}

// Get returns the stored definition for name, if any.
func (k *KV) Get(name string) (schema.KvDef, bool) { return k.getLocked(name) }

func (k *KV) getLocked(name string) (schema.KvDef, bool) {
	v, ok := k.root.Get(name)
	if !ok {
		return schema.KvDef{}, false
	}
	def, ok := v.(schema.KvDef)
	return def, ok
}

// GetAll returns every stored KV definition keyed by name.
func (k *KV) GetAll() map[string]schema.KvDef {
	out := make(map[string]schema.KvDef)
	for _, name := range k.root.Keys() {
		if def, ok := k.getLocked(name); ok {
			out[name] = def
		}
	}
	return out
}

// Has reports whether name has a stored definition.
func (k *KV) Has(name string) bool { return k.root.Has(name) }

// Delete removes a KV setting's definition.
func (k *KV) Delete(name string) error {
	return k.doc.Transact(nil, func(tx *crdt.Tx) error {
		k.root.Delete(name)
		return nil
	})
}

// Keys returns every KV setting name with a stored definition.
func (k *KV) Keys() []string { return k.root.Keys() }

// Observe fires cb with the set of KV setting names whose definition
// changed in a commit.
func (k *KV) Observe(cb func(names map[string]bool)) (unsubscribe func()) {
	return k.root.ObserveShallow(func(ev crdt.MapEvent) {
		out := make(map[string]bool)
		for key := range ev.Added {
			out[key] = true
		}
		for key := range ev.Updated {
			out[key] = true
		}
		for key := range ev.Deleted {
			out[key] = true
		}
		if len(out) > 0 {
			cb(out)
		}
	})
}
