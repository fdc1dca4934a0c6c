/*
Package boltprovider is the default filesystem persistence Provider: it
attaches a CRDT document to a bbolt database, loading whatever snapshot
already exists on attach and saving a fresh one on every commit
(debounced), plus an optional human-readable JSON mirror alongside it.

One bucket per document kind keeps every document's state isolated in
the same on-disk file: "registry", "workspaces/{id}/head", and
"workspaces/{id}/{epoch}/data" are each their own bucket, the same way a
multi-tenant embedded store namespaces buckets per entity rather than
per database file.
*/
package boltprovider

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/errs"
	"github.com/epicenter-hq/core/pkg/lifecycle"
	"github.com/epicenter-hq/core/pkg/log"
	"github.com/epicenter-hq/core/pkg/lww"
	"github.com/epicenter-hq/core/pkg/schema"
)

const snapshotKey = "snapshot"

func init() {
	// Snapshots are map[string]any trees holding a mix of concrete
	// value types behind interface{}; gob needs every one of them
	// registered up front to encode/decode them. This covers both plain
	// row/KV values and the domain types the schema and LWW helpers
	// store inside a Doc's nested maps: each field under a
	// definition.tables entry is a schema.FieldSchema (its icon a
	// *string), a definition.kv entry is a
	// schema.KvDef whose Field is a schema.FieldSchema, and every LWW
	// array slot is an lww.Entry. FieldSchema's Validate hook is a
	// func value, which gob silently drops when nested in a struct
	// rather than erroring, so it doesn't need registering itself.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register("")
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(true)
	gob.Register(new(string))
	gob.Register(time.Time{})
	gob.Register(schema.TableDef{})
	gob.Register(schema.KvDef{})
	gob.Register(schema.FieldSchema{})
	gob.Register(lww.Entry{})
}

// Config controls how a Provider persists one document.
type Config struct {
	// DataDir is the directory holding the bbolt database file and,
	// when JSONMirror is set, the snapshots/ directory of readable
	// mirrors.
	DataDir string
	// Bucket names the bbolt bucket this document's state lives in
	// (e.g. "registry", "workspaces/ws-1/head").
	Bucket string
	// Debounce coalesces rapid successive commits into one save; zero
	// disables debouncing and saves synchronously on every commit.
	Debounce time.Duration
	// JSONMirror additionally writes a human-readable snapshot under
	// DataDir/snapshots/{ulid}.snap on every debounced save.
	JSONMirror bool
}

// Provider persists one Doc to a bbolt database file shared across every
// document kind in a workspace's data directory.
type Provider struct {
	db     *bolt.DB
	cfg    Config
	doc    *crdt.Doc
	logger zerolog.Logger

	mu        sync.Mutex
	timer     *time.Timer
	unsub     func()
	destroyed bool
}

// Attach uses db (a database from Open, at DataDir/state.bolt), restores
// doc from cfg.Bucket if a snapshot already exists, and wires a
// save-on-commit hook. The returned Lifecycle's WhenSynced resolves once
// the initial load (or confirmation there was nothing to load) completes.
func Attach(doc *crdt.Doc, db *bolt.DB, cfg Config) (lifecycle.Lifecycle, error) {
	if cfg.Bucket == "" {
		return lifecycle.Lifecycle{}, errs.ProviderInitError("boltprovider", fmt.Errorf("empty bucket name for doc %q", doc.ID()))
	}
	p := &Provider{
		db:     db,
		cfg:    cfg,
		doc:    doc,
		logger: log.WithComponent("boltprovider").With().Str("bucket", cfg.Bucket).Logger(),
	}

	lc, resolve := lifecycle.Pending(p.destroy)
	go func() {
		err := p.load()
		if err == nil {
			p.unsub = doc.OnCommit(func(crdt.Origin) { p.scheduleSave() })
		} else {
			err = errs.ProviderInitError("boltprovider", err)
		}
		resolve(err)
	}()
	return lc, nil
}

// Open creates (or opens) the shared bbolt database file for a data
// directory. Callers typically open one *bolt.DB per process and Attach
// many documents to it, one bucket each.
func Open(dataDir string) (*bolt.DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("boltprovider: create data dir: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dataDir, "state.bolt"), 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltprovider: open bbolt db: %w", err)
	}
	return db, nil
}

func (p *Provider) load() error {
	var raw []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(p.cfg.Bucket))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(snapshotKey))
		if v != nil {
			raw = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("boltprovider: read bucket %q: %w", p.cfg.Bucket, err)
	}
	if raw == nil {
		return nil
	}
	var snap map[string]any
	if err := gobDecode(raw, &snap); err != nil {
		return fmt.Errorf("boltprovider: decode snapshot for %q: %w", p.cfg.Bucket, err)
	}
	if err := p.doc.Restore(remoteOrigin{}, snap); err != nil {
		return fmt.Errorf("boltprovider: restore snapshot for %q: %w", p.cfg.Bucket, err)
	}
	return nil
}

// remoteOrigin tags provider-driven restores so observers can tell a
// load-from-disk apart from a local write.
type remoteOrigin struct{}

func (p *Provider) scheduleSave() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	if p.cfg.Debounce <= 0 {
		p.save()
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.cfg.Debounce, p.save)
}

func (p *Provider) save() {
	snap := p.doc.Snapshot()
	raw, err := gobEncode(snap)
	if err != nil {
		p.logger.Error().Err(err).Msg("encode snapshot failed")
		return
	}
	err = p.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(p.cfg.Bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(snapshotKey), raw)
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("write snapshot failed")
		return
	}
	if p.cfg.JSONMirror {
		p.writeJSONMirror(snap)
	}
}

func (p *Provider) writeJSONMirror(snap map[string]any) {
	dir := filepath.Join(p.cfg.DataDir, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.logger.Warn().Err(err).Msg("create snapshots dir failed")
		return
	}
	name := ulid.Make().String() + ".snap"
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		p.logger.Warn().Err(err).Msg("marshal json mirror failed")
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
		p.logger.Warn().Err(err).Msg("write json mirror failed")
	}
}

func (p *Provider) destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	if p.timer != nil {
		p.timer.Stop()
	}
	unsub := p.unsub
	p.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	// Flush one last time so a destroy during a pending debounce window
	// never drops the latest write.
	p.save()
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
