/*
Package registry implements the Registry document: the
set of workspace IDs a user can access, CRDT-backed so it converges
across devices the same way every other document in this module does,
with a coalesced add/remove observer and a providers-then-document
teardown on Destroy.
*/
package registry

import (
	"github.com/rs/zerolog"

	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/lifecycle"
	"github.com/epicenter-hq/core/pkg/log"
)

// Change is the coalesced add/remove set one commit produced.
type Change struct {
	Added   []string
	Removed []string
}

// Empty reports whether the change carries nothing (suppressed rather
// than delivered to observers).
func (c Change) Empty() bool { return len(c.Added) == 0 && len(c.Removed) == 0 }

// Registry is the process-wide singleton listing accessible workspace
// IDs.
type Registry struct {
	doc        *crdt.Doc
	ids        *crdt.Map // workspaceId -> true
	lc         lifecycle.Lifecycle
	logger     zerolog.Logger
}

// New constructs a Registry over doc, attaching named providers
// (persistence, sync) whose combined WhenSynced/Destroy the Registry
// aggregates.
func New(doc *crdt.Doc, providers map[string]lifecycle.Lifecycle) *Registry {
	return &Registry{
		doc:    doc,
		ids:    doc.Map("registry"),
		lc:     lifecycle.Aggregate(providers),
		logger: log.WithComponent("registry"),
	}
}

// WhenSynced resolves once every attached provider's WhenSynced has
// resolved.
func (r *Registry) WhenSynced() <-chan error { return r.lc.WhenSynced }

// AddWorkspace adds id to the accessible set. A no-op if already present.
func (r *Registry) AddWorkspace(id string) error {
	return r.doc.Transact(nil, func(tx *crdt.Tx) error {
		r.ids.Set(id, true)
		return nil
	})
}

// RemoveWorkspace removes id from the accessible set. A no-op if absent.
func (r *Registry) RemoveWorkspace(id string) error {
	return r.doc.Transact(nil, func(tx *crdt.Tx) error {
		r.ids.Delete(id)
		return nil
	})
}

// HasWorkspace reports whether id is currently in the registry.
func (r *Registry) HasWorkspace(id string) bool { return r.ids.Has(id) }

// GetWorkspaceIDs returns every workspace ID currently registered.
func (r *Registry) GetWorkspaceIDs() []string { return r.ids.Keys() }

// Count returns the number of registered workspace IDs.
func (r *Registry) Count() int { return r.ids.Len() }

// Observe fires cb once per commit that added or removed workspace IDs,
// coalesced into one Change and suppressed entirely when empty.
func (r *Registry) Observe(cb func(Change)) (unsubscribe func()) {
	return r.ids.ObserveShallow(func(ev crdt.MapEvent) {
		change := Change{}
		for id := range ev.Added {
			change.Added = append(change.Added, id)
		}
		for id := range ev.Deleted {
			change.Removed = append(change.Removed, id)
		}
		if !change.Empty() {
			cb(change)
		}
	})
}

// Destroy settles every attached provider (best-effort, one failure does
// not block the others) before releasing the Registry itself. Safe to
// call more than once, per the provider's own idempotent Destroy
// contract.
func (r *Registry) Destroy() {
	r.lc.Destroy()
}
