/*
Package workspace implements the Data document: the
per-(workspace, epoch) document composing the schema (Definition
helper), table helpers, and the KV helper into a single client facade,
merging a code-defined schema into the CRDT on construction.

The document's ID is `${workspaceId}-${epoch}` so each epoch
is a distinct CRDT identity — reopening the same workspace at a new
epoch after a Head bump is, from this package's perspective, simply
constructing a fresh Client with a different epoch argument.
*/
package workspace

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/definition"
	"github.com/epicenter-hq/core/pkg/kv"
	"github.com/epicenter-hq/core/pkg/lifecycle"
	"github.com/epicenter-hq/core/pkg/log"
	"github.com/epicenter-hq/core/pkg/schema"
	"github.com/epicenter-hq/core/pkg/table"
)

// TableSpec is one table's code-defined current fields plus the
// migration history needed to parse rows written at prior versions.
type TableSpec struct {
	Def     schema.TableDef
	History []schema.VersionedFields
}

// KvSpec is one KV setting's code-defined current field plus its
// migration history.
type KvSpec struct {
	Def     schema.KvDef
	History []schema.VersionedField
}

// Schema is the full code-defined schema a workspace Client is opened
// with; Open merges it into the document's Definition on construction
// on construction.
type Schema struct {
	Tables map[string]TableSpec
	KV     map[string]KvSpec
}

// DocID derives the CRDT identity for (workspaceID, epoch).
func DocID(workspaceID string, epoch int) string {
	return fmt.Sprintf("%s-%d", workspaceID, epoch)
}

// Client is the facade application code interacts with: the merged
// schema, one Table per registered table name, and the shared KV store.
type Client struct {
	doc        *crdt.Doc
	definition *definition.Definition
	registry   *definition.Registry
	tables     map[string]*table.Table
	kv         *kv.KV
	lc         lifecycle.Lifecycle
	logger     zerolog.Logger
}

// Open constructs (or reattaches to) the Data document for
// (workspaceID, epoch), merges sch into its Definition, and builds a
// Table per sch.Tables entry plus the shared KV helper. providers are
// aggregated into the Client's Lifecycle.
func Open(workspaceID string, epoch int, clientID string, sch Schema, providers map[string]lifecycle.Lifecycle) (*Client, error) {
	doc := crdt.NewDoc(DocID(workspaceID, epoch), clientID)
	def := definition.New(doc)
	reg := definition.NewRegistry(def)

	tableDefs := make(map[string]schema.TableDef, len(sch.Tables))
	for name, spec := range sch.Tables {
		tableDefs[name] = spec.Def
		reg.WithTableHistory(name, spec.History)
	}
	kvDefs := make(map[string]schema.KvDef, len(sch.KV))
	for name, spec := range sch.KV {
		kvDefs[name] = spec.Def
		reg.WithKvHistory(name, spec.History)
	}
	if err := definition.MergeSchema(def, tableDefs, kvDefs); err != nil {
		return nil, err
	}

	tablesRoot := doc.Map("tables")
	tables := make(map[string]*table.Table, len(sch.Tables))
	for name := range sch.Tables {
		ts, ok := reg.TableSchema(name)
		if !ok {
			continue
		}
		tables[name] = table.New(doc, tablesRoot, name, ts)
	}

	kvHelper := kv.New(doc, doc.Map("kv"), reg)

	return &Client{
		doc:        doc,
		definition: def,
		registry:   reg,
		tables:     tables,
		kv:         kvHelper,
		lc:         lifecycle.Aggregate(providers),
		logger:     log.WithComponent("workspace").With().Str("doc_id", doc.ID()).Logger(),
	}, nil
}

// Doc returns the underlying CRDT document.
func (c *Client) Doc() *crdt.Doc { return c.doc }

// Definition returns the schema sub-helper.
func (c *Client) Definition() *definition.Definition { return c.definition }

// Table returns the named table helper, if it was registered in the
// Schema this Client was opened with.
func (c *Client) Table(name string) (*table.Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// KV returns the shared KV helper.
func (c *Client) KV() *kv.KV { return c.kv }

// WhenSynced resolves once every attached provider's WhenSynced has
// resolved.
func (c *Client) WhenSynced() <-chan error { return c.lc.WhenSynced }

// Destroy tears down every attached provider (settle all) then releases
// the document. Writes made through a destroyed client's
// old Doc are not lost, only orphaned: they remain in that Doc but are
// invisible through any later Client opened at a new epoch.
func (c *Client) Destroy() {
	c.lc.Destroy()
}
