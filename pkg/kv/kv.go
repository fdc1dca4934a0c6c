/*
Package kv implements the schema-bound KV helper: typed
get/set/delete/batch over a shared CRDT map, validated against the
registered schema for each key, with the same three-way result shape as
the table helper's Get.
*/
package kv

import (
	"github.com/rs/zerolog"

	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/errs"
	"github.com/epicenter-hq/core/pkg/log"
	"github.com/epicenter-hq/core/pkg/schema"
)

// GetResult mirrors table.GetResult for a single KV value.
type GetResult struct {
	Status schema.ParseStatus
	Key    string
	Value  any
	Errors []errs.Issue
}

// DeleteResult reports whether a delete actually removed an entry.
type DeleteResult struct {
	Status string // "deleted" | "not_found_locally"
}

// Schemas maps a key name to its KvSchema. Set and Batch return
// UnknownKeyError for an unregistered name; Get reports it as an invalid
// result.
type Schemas interface {
	Get(key string) (*schema.KvSchema, bool)
}

// KV is the schema-bound facade over the document's shared kv map.
type KV struct {
	doc     *crdt.Doc
	entries *crdt.Map
	schemas Schemas
	logger  zerolog.Logger
}

// New constructs a KV bound to root (the document's top-level "kv" map)
// validated against schemas.
func New(doc *crdt.Doc, root *crdt.Map, schemas Schemas) *KV {
	return &KV{doc: doc, entries: root, schemas: schemas, logger: log.WithComponent("kv")}
}

// Set validates value against key's schema and writes it, throwing
// SchemaValidationError on failure and UnknownKeyError for an
// unregistered key.
func (k *KV) Set(key string, value any) error {
	ks, ok := k.schemas.Get(key)
	if !ok {
		return errs.UnknownKeyError("kv", key)
	}
	parsed, issues, migrationErr := ks.ParseValue(value)
	if migrationErr != nil {
		return migrationErr
	}
	if len(issues) > 0 {
		return errs.SchemaValidationError(key, issues)
	}
	return k.doc.Transact(nil, func(tx *crdt.Tx) error {
		k.entries.Set(key, parsed)
		return nil
	})
}

// Get reads and validates a key's current value.
func (k *KV) Get(key string) GetResult {
	ks, ok := k.schemas.Get(key)
	if !ok {
		return GetResult{Status: schema.StatusInvalid, Key: key, Errors: []errs.Issue{{Path: key, Message: "unknown key"}}}
	}
	raw, ok := k.entries.Get(key)
	if !ok {
		return GetResult{Status: schema.StatusNotFound, Key: key}
	}
	value, issues, migrationErr := ks.ParseValue(raw)
	if migrationErr != nil {
		return GetResult{Status: schema.StatusInvalid, Key: key, Value: raw, Errors: []errs.Issue{{Path: key, Message: migrationErr.Error()}}}
	}
	if len(issues) > 0 {
		return GetResult{Status: schema.StatusInvalid, Key: key, Value: raw, Errors: issues}
	}
	return GetResult{Status: schema.StatusValid, Key: key, Value: value}
}

// GetAll reads the current value of each key in keys.
func (k *KV) GetAll(keys []string) map[string]GetResult {
	out := make(map[string]GetResult, len(keys))
	for _, key := range keys {
		out[key] = k.Get(key)
	}
	return out
}

// Has reports whether key currently has a stored value.
func (k *KV) Has(key string) bool { return k.entries.Has(key) }

// Delete removes key's value.
func (k *KV) Delete(key string) DeleteResult {
	existed := false
	_ = k.doc.Transact(nil, func(tx *crdt.Tx) error {
		if k.entries.Has(key) {
			existed = true
			k.entries.Delete(key)
		}
		return nil
	})
	if existed {
		return DeleteResult{Status: "deleted"}
	}
	return DeleteResult{Status: "not_found_locally"}
}

// Keys returns the set of keys that currently hold a value.
func (k *KV) Keys() []string { return k.entries.Keys() }

// BatchOp is one operation queued by Batch.
type BatchOp struct {
	Key   string
	Value any
	Del   bool
}

// Batch validates and applies every op inside a single transaction; a
// validation failure on any op aborts the whole batch before any writes
// happen.
func (k *KV) Batch(ops []BatchOp) error {
	type resolved struct {
		key   string
		value any
		del   bool
	}
	resolvedOps := make([]resolved, 0, len(ops))
	for _, op := range ops {
		if op.Del {
			resolvedOps = append(resolvedOps, resolved{key: op.Key, del: true})
			continue
		}
		ks, ok := k.schemas.Get(op.Key)
		if !ok {
			return errs.UnknownKeyError("kv", op.Key)
		}
		parsed, issues, migrationErr := ks.ParseValue(op.Value)
		if migrationErr != nil {
			return migrationErr
		}
		if len(issues) > 0 {
			return errs.SchemaValidationError(op.Key, issues)
		}
		resolvedOps = append(resolvedOps, resolved{key: op.Key, value: parsed})
	}
	return k.doc.Transact(nil, func(tx *crdt.Tx) error {
		for _, op := range resolvedOps {
			if op.del {
				k.entries.Delete(op.key)
			} else {
				k.entries.Set(op.key, op.value)
			}
		}
		return nil
	})
}

// Observe fires cb once per commit with the set of keys that changed.
func (k *KV) Observe(cb func(keys map[string]bool)) (unsubscribe func()) {
	return k.entries.ObserveShallow(func(ev crdt.MapEvent) {
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
