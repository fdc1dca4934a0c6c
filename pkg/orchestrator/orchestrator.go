/*
Package orchestrator implements the fluent chain from §4.6: it owns the
Registry singleton, lazily opens a Head per workspace ID on first
reference, and opens/reopens a Data client per (workspace, effective
epoch), reconciling the active client whenever the workspace's Head
reports a new epoch.

Call shape mirrors the fluent chain directly:

	client, err := orch.Head(workspaceID)
	c, err := orch.Client(workspaceID)

client.destroy() semantics (destroy providers, settle all, then the
document) live on workspace.Client itself; this package's job is only
deciding which Client is currently active for a workspace ID and
swapping it out when the epoch moves.
*/
package orchestrator

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/errs"
	"github.com/epicenter-hq/core/pkg/head"
	"github.com/epicenter-hq/core/pkg/lifecycle"
	"github.com/epicenter-hq/core/pkg/log"
	"github.com/epicenter-hq/core/pkg/registry"
	"github.com/epicenter-hq/core/pkg/workspace"
)

// DataProviderFactory builds the set of providers a Data document at
// (workspaceID, epoch) should attach, e.g. a persistence provider keyed
// by that epoch's on-disk path.
type DataProviderFactory func(workspaceID string, epoch int) map[string]lifecycle.Lifecycle

// Orchestrator composes the Registry, one Head per referenced workspace,
// and the currently-active Data client per workspace.
type Orchestrator struct {
	clientID string
	reg      *registry.Registry
	schema   workspace.Schema
	dataFor  DataProviderFactory
	logger   zerolog.Logger

	mu      sync.Mutex
	heads   map[string]*head.Head
	clients map[string]*workspace.Client
	unsubs  map[string]func()
}

// New constructs an Orchestrator. registryProviders are attached to the
// Registry document; dataFor builds the providers for each Data
// document as it's opened.
func New(clientID string, sch workspace.Schema, registryProviders map[string]lifecycle.Lifecycle, dataFor DataProviderFactory) *Orchestrator {
	regDoc := crdt.NewDoc("registry", clientID)
	return &Orchestrator{
		clientID: clientID,
		reg:      registry.New(regDoc, registryProviders),
		schema:   sch,
		dataFor:  dataFor,
		logger:   log.WithComponent("orchestrator"),
		heads:    make(map[string]*head.Head),
		clients:  make(map[string]*workspace.Client),
		unsubs:   make(map[string]func()),
	}
}

// Registry returns the singleton Registry document.
func (o *Orchestrator) Registry() *registry.Registry { return o.reg }

// Head returns the Head document for workspaceID, creating it lazily on
// first reference. It returns WorkspaceNotFoundError if workspaceID
// isn't present in the Registry.
func (o *Orchestrator) Head(workspaceID string) (*head.Head, error) {
	if !o.reg.HasWorkspace(workspaceID) {
		return nil, errs.WorkspaceNotFoundError(workspaceID, o.reg.GetWorkspaceIDs())
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if h, ok := o.heads[workspaceID]; ok {
		return h, nil
	}
	h := head.New(crdt.NewDoc(workspaceID+":head", o.clientID))
	o.heads[workspaceID] = h
	return h, nil
}

// Client opens (or returns the already-open) Data client for
// workspaceID at its Head's current effective epoch, attaching a
// reconciliation observer so a later epoch change swaps in a fresh
// client automatically.
func (o *Orchestrator) Client(workspaceID string) (*workspace.Client, error) {
	h, err := o.Head(workspaceID)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if c, ok := o.clients[workspaceID]; ok {
		o.mu.Unlock()
		return c, nil
	}
	o.mu.Unlock()

	c, err := o.openAt(workspaceID, h.GetEpoch())
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.clients[workspaceID] = c
	o.unsubs[workspaceID] = h.ObserveEpoch(func(epoch int) { o.reconcile(workspaceID, epoch) })
	o.mu.Unlock()
	return c, nil
}

// reconcile opens a fresh Data client at the new epoch and destroys the
// previous one, per the orphaned-writes contract: once the new client is
// visible, writes made through the old one remain in its document but
// are no longer reachable.
func (o *Orchestrator) reconcile(workspaceID string, epoch int) {
	next, err := o.openAt(workspaceID, epoch)
	if err != nil {
		o.logger.Error().Err(err).Str("workspace_id", workspaceID).Int("epoch", epoch).Msg("failed to open client at new epoch")
		return
	}

	o.mu.Lock()
	prev := o.clients[workspaceID]
	o.clients[workspaceID] = next
	o.mu.Unlock()

	if prev != nil {
		prev.Destroy()
	}
}

func (o *Orchestrator) openAt(workspaceID string, epoch int) (*workspace.Client, error) {
	var providers map[string]lifecycle.Lifecycle
	if o.dataFor != nil {
		providers = o.dataFor(workspaceID, epoch)
	}
	return workspace.Open(workspaceID, epoch, o.clientID, o.schema, providers)
}

// DestroyClient tears down the active client for workspaceID, if any,
// and stops reconciling epoch changes for it.
func (o *Orchestrator) DestroyClient(workspaceID string) {
	o.mu.Lock()
	c := o.clients[workspaceID]
	delete(o.clients, workspaceID)
	unsub := o.unsubs[workspaceID]
	delete(o.unsubs, workspaceID)
	o.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if c != nil {
		c.Destroy()
	}
}

// Destroy tears down every active client and the Registry itself.
func (o *Orchestrator) Destroy() {
	o.mu.Lock()
	ids := make([]string, 0, len(o.clients))
	for id := range o.clients {
		ids = append(ids, id)
	}
	o.mu.Unlock()
	for _, id := range ids {
		o.DestroyClient(id)
	}
	o.reg.Destroy()
}
