/*
Package fixture is the test harness the rest of the module's higher-level
tests build on: a ready-to-use Orchestrator wired to an in-memory registry
and a seeded workspace schema, plus a small polling Waiter for assertions
that depend on an async provider's WhenSynced or an epoch reconciliation
landing.

There is no multi-process cluster to stand up here — everything in this
module runs single-process, so a fixture is just constructing the object
graph a real embedding application would construct, with sensible test
defaults.
*/
package fixture

import (
	"context"
	"fmt"
	"time"

	"github.com/epicenter-hq/core/pkg/lifecycle"
	"github.com/epicenter-hq/core/pkg/orchestrator"
	"github.com/epicenter-hq/core/pkg/schema"
	"github.com/epicenter-hq/core/pkg/workspace"
)

// TestingT is the subset of *testing.T the fixture needs, so non-test
// callers (benchmarks, example code) can supply their own.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Cleanup(func())
}

// TasksSchema returns a minimal single-table workspace schema ("tasks":
// id, title, done) used by default across fixture-based tests.
func TasksSchema() workspace.Schema {
	return workspace.Schema{
		Tables: map[string]workspace.TableSpec{
			"tasks": {Def: schema.TableDef{
				Name: "tasks",
				Fields: map[string]schema.FieldSchema{
					"id":    {Type: schema.FieldID},
					"title": {Type: schema.FieldText},
					"done":  {Type: schema.FieldBoolean, Default: false},
				},
			}},
		},
		KV: map[string]workspace.KvSpec{
			"settings": {Def: schema.KvDef{Name: "settings", Field: schema.FieldSchema{Type: schema.FieldText}}},
		},
	}
}

// Env bundles an Orchestrator with the defaults fixture tests need.
type Env struct {
	Orchestrator *orchestrator.Orchestrator
	ClientID     string
}

// New constructs an Env with TasksSchema and no registered providers,
// registering t.Cleanup to tear the orchestrator down.
func New(t TestingT) *Env {
	return NewWithSchema(t, TasksSchema())
}

// NewWithSchema is New with a caller-supplied schema.
func NewWithSchema(t TestingT, sch workspace.Schema) *Env {
	t.Helper()
	clientID := "test-client"
	o := orchestrator.New(clientID, sch, nil, nil)
	t.Cleanup(o.Destroy)
	return &Env{Orchestrator: o, ClientID: clientID}
}

// Seed registers a workspace in the registry and opens its client at
// epoch 0, failing the test on any error.
func (e *Env) Seed(t TestingT, workspaceID string) *workspace.Client {
	t.Helper()
	if err := e.Orchestrator.Registry().AddWorkspace(workspaceID); err != nil {
		t.Fatalf("fixture: add workspace %q: %v", workspaceID, err)
	}
	c, err := e.Orchestrator.Client(workspaceID)
	if err != nil {
		t.Fatalf("fixture: open client for %q: %v", workspaceID, err)
	}
	return c
}

// Waiter polls a condition until it becomes true or a timeout elapses,
// for assertions that depend on an async callback (a provider's
// WhenSynced, an epoch reconciliation) rather than a synchronous call.
type Waiter struct {
	timeout  time.Duration
	interval time.Duration
}

// NewWaiter constructs a Waiter with an explicit timeout/poll interval.
func NewWaiter(timeout, interval time.Duration) *Waiter {
	return &Waiter{timeout: timeout, interval: interval}
}

// DefaultWaiter returns a Waiter with test-friendly defaults (2s timeout,
// 10ms poll interval) — short because everything under test runs
// in-process with no network latency to absorb.
func DefaultWaiter() *Waiter {
	return NewWaiter(2*time.Second, 10*time.Millisecond)
}

// WaitFor blocks until condition returns true, ctx is done, or the
// waiter's timeout elapses, returning an error describing description in
// the timeout case.
func (w *Waiter) WaitFor(ctx context.Context, condition func() bool, description string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if condition() {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for: %s (timeout: %v)", description, w.timeout)
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}

// WaitSynced blocks until lc.WhenSynced resolves or the waiter's timeout
// elapses.
func (w *Waiter) WaitSynced(lc lifecycle.Lifecycle) error {
	select {
	case err := <-lc.WhenSynced:
		return err
	case <-time.After(w.timeout):
		return fmt.Errorf("timeout waiting for lifecycle to sync (timeout: %v)", w.timeout)
	}
}
