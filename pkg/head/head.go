/*
Package head implements the Head document: a CRDT-safe
epoch counter. Each client writes its own proposed epoch under its own
key, and the effective epoch is the MAX of every client's proposal —
never a shared counter — so two clients that independently observe the
same max and both bump never cause an epoch to be skipped after their
writes converge.
*/
package head

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/log"
)

// Head is the per-workspace epoch document.
type Head struct {
	doc        *crdt.Doc
	proposals  *crdt.Map // clientId -> int
	logger     zerolog.Logger

	mu        sync.Mutex
	lastFired int
	hasFired  bool
}

// New constructs a Head over doc's "head" proposals map. The
// orchestrator creates one lazily, on first reference to a workspace.
func New(doc *crdt.Doc) *Head {
	return &Head{
		doc:       doc,
		proposals: doc.Map("head"),
		logger:    log.WithComponent("head"),
	}
}

// GetEpoch returns max(proposals), or 0 if no client has proposed yet.
func (h *Head) GetEpoch() int {
	max := 0
	for _, id := range h.proposals.Keys() {
		if v, ok := h.proposals.Get(id); ok {
			if n, ok := v.(int); ok && n > max {
				max = n
			}
		}
	}
	return max
}

// GetLocalEpoch returns this client's own proposal, 0 if absent.
func (h *Head) GetLocalEpoch() int {
	v, ok := h.proposals.Get(h.doc.ClientID())
	if !ok {
		return 0
	}
	n, _ := v.(int)
	return n
}

// BumpEpoch reads the current max and writes max+1 under the local
// client ID, returning the new effective epoch. Two clients racing from
// the same observed max both converge on max+1 after sync — no epoch is
// skipped.
func (h *Head) BumpEpoch() (int, error) {
	next := h.GetEpoch() + 1
	err := h.doc.Transact(nil, func(tx *crdt.Tx) error {
		h.proposals.Set(h.doc.ClientID(), next)
		return nil
	})
	return next, err
}

// GoToEpoch unconditionally sets the local proposal to n, including
// values less than the current effective epoch (time travel).
func (h *Head) GoToEpoch(n int) error {
	return h.doc.Transact(nil, func(tx *crdt.Tx) error {
		h.proposals.Set(h.doc.ClientID(), n)
		return nil
	})
}

// ForceSetEpoch is an alias for GoToEpoch reserved for recovery flows
// it carries no different semantics, only a different
// calling convention for operator tooling.
func (h *Head) ForceSetEpoch(n int) error { return h.GoToEpoch(n) }

// GetEpochProposals returns a copy of the per-client proposal map, for
// debugging/recovery tooling.
func (h *Head) GetEpochProposals() map[string]int {
	out := make(map[string]int)
	for _, id := range h.proposals.Keys() {
		if v, ok := h.proposals.Get(id); ok {
			if n, ok := v.(int); ok {
				out[id] = n
			}
		}
	}
	return out
}

// ObserveEpoch fires cb(newEpoch) whenever the effective epoch changes,
// suppressing callbacks when max(proposals) is unchanged despite inner
// map mutations (e.g. a client re-proposing its current epoch, or a
// lower proposal arriving from a client that isn't the max).
func (h *Head) ObserveEpoch(cb func(epoch int)) (unsubscribe func()) {
	h.mu.Lock()
	h.lastFired = h.GetEpoch()
	h.hasFired = true
	h.mu.Unlock()

	return h.proposals.ObserveShallow(func(crdt.MapEvent) {
		current := h.GetEpoch()
		h.mu.Lock()
		changed := !h.hasFired || current != h.lastFired
		h.lastFired = current
		h.hasFired = true
		h.mu.Unlock()
		if changed {
			cb(current)
		}
	})
}
