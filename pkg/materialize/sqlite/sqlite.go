/*
Package sqlite is a thin, optional read-only materializer: it mirrors a
table.Table's valid rows into a SQL table and builds its read queries
with goqu's expression builder against the mirrored rows, rather than
hand-concatenating SQL strings.

It is not part of the core's required surface — a workspace's tables and
KV store are fully usable without it — but gives the action system (or
any other reporting/query surface) something concrete to query when an
embedding application wants SQL-shaped reads over CRDT-backed data.
This package never imports a driver itself: callers open their own
*sql.DB (e.g. with mattn/go-sqlite3 or modernc.org/sqlite) and pass it
in, so the concrete driver choice stays with the embedding application.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"

	"github.com/epicenter-hq/core/pkg/log"
	"github.com/epicenter-hq/core/pkg/schema"
	"github.com/epicenter-hq/core/pkg/table"
)

// Materializer mirrors one table.Table's valid rows into a SQL table
// named after it, keeping the mirror current via the table's Observe
// hook.
type Materializer struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
	name    string
	fields  map[string]schema.FieldSchema
}

// New creates a Materializer for tableName against db, using fields to
// derive the mirrored SQL table's columns. Call EnsureTable before Sync.
func New(db *sql.DB, tableName string, fields map[string]schema.FieldSchema) *Materializer {
	return &Materializer{
		db:      db,
		dialect: goqu.Dialect("sqlite3"),
		name:    tableName,
		fields:  fields,
	}
}

// EnsureTable creates the mirrored SQL table if it doesn't already exist,
// with one column per field plus an "id" primary key.
func (m *Materializer) EnsureTable(ctx context.Context) error {
	cols := []string{`"id" TEXT PRIMARY KEY`}
	for name, f := range m.fields {
		if name == "id" {
			continue
		}
		cols = append(cols, fmt.Sprintf("%q %s", name, sqlType(f.Type)))
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (%s)`, m.name, joinColumns(cols))
	_, err := m.db.ExecContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("materialize %q: create table: %w", m.name, err)
	}
	return nil
}

func joinColumns(cols []string) string {
	out := cols[0]
	for _, c := range cols[1:] {
		out += ", " + c
	}
	return out
}

func sqlType(t schema.FieldType) string {
	switch t {
	case schema.FieldInteger:
		return "INTEGER"
	case schema.FieldBoolean:
		return "INTEGER"
	case schema.FieldDate:
		return "TEXT"
	default:
		// text, id, select, enum, array (JSON-encoded) all mirror as TEXT
		return "TEXT"
	}
}

// Sync replaces the mirrored table's contents with t's currently valid
// rows (GetAllValid — invalid and not-found rows have nothing coherent to
// mirror).
func (m *Materializer) Sync(ctx context.Context, t *table.Table) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("materialize %q: begin: %w", m.name, err)
	}
	defer tx.Rollback()

	del, _, err := m.dialect.Delete(m.name).ToSQL()
	if err != nil {
		return fmt.Errorf("materialize %q: build delete: %w", m.name, err)
	}
	if _, err := tx.ExecContext(ctx, del); err != nil {
		return fmt.Errorf("materialize %q: clear: %w", m.name, err)
	}

	for id, row := range t.GetAllValid() {
		record := goqu.Record{}
		for name := range m.fields {
			if name == "id" {
				record["id"] = id
				continue
			}
			record[name] = encodeValue(row[name])
		}
		insertSQL, _, err := m.dialect.Insert(m.name).Rows(record).ToSQL()
		if err != nil {
			return fmt.Errorf("materialize %q: build insert for %q: %w", m.name, id, err)
		}
		if _, err := tx.ExecContext(ctx, insertSQL); err != nil {
			return fmt.Errorf("materialize %q: insert %q: %w", m.name, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("materialize %q: commit: %w", m.name, err)
	}
	return nil
}

func encodeValue(v any) any {
	switch v.(type) {
	case string, int, int64, float64, bool, nil:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// Watch subscribes to t's Observe hook and re-runs Sync on every change,
// logging (not returning) any Sync error so one bad write doesn't tear
// the subscription down. The returned unsubscribe stops watching.
func (m *Materializer) Watch(ctx context.Context, t *table.Table) (unsubscribe func()) {
	logger := log.WithComponent("materialize.sqlite")
	return t.Observe(func(map[string]bool) {
		if err := m.Sync(ctx, t); err != nil {
			logger.Error().Err(err).Str("table", m.name).Msg("resync failed")
		}
	})
}

// Select starts a goqu SelectDataset against the mirrored table, for
// callers to add Where/Order/Limit before executing with database/sql.
func (m *Materializer) Select(cols ...any) *goqu.SelectDataset {
	ds := m.dialect.From(m.name)
	if len(cols) > 0 {
		return ds.Select(cols...)
	}
	return ds.Select(goqu.Star())
}
