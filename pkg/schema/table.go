package schema

import (
	"fmt"
	"reflect"

	"github.com/epicenter-hq/core/pkg/errs"
)

// TableDef is the current schema definition for one table: its fields
// plus display metadata. It is stored CRDT-side and is the
// current member of a TableSchema's version history.
type TableDef struct {
	Name        string
	Icon        *string
	Description string
	Version     int
	Fields      map[string]FieldSchema
}

// KvDef is the current schema definition for one KV setting.
type KvDef struct {
	Name        string
	Icon        *string
	Description string
	Version     int
	Field       FieldSchema
}

// Migrator upgrades a raw row/value one schema version forward. It must
// be synchronous and must either return a value that parses against the
// next version's fields, or an error — returning a non-conforming value
// is itself a MigrationError.
type Migrator func(raw map[string]any) (map[string]any, error)

// VersionedFields is one historical (non-current) version of a table's
// field set, paired with the migrator that upgrades a row written at that
// version to the next one.
type VersionedFields struct {
	Version  int
	Fields   map[string]FieldSchema
	Migrate  Migrator
}

// TableSchema binds a table's current definition to its version history,
// supporting migration-on-read.
type TableSchema struct {
	Current TableDef
	History []VersionedFields // oldest first; need not include Current.Version
}

// ParseStatus mirrors the three-way row read result: valid, invalid, or not found.
type ParseStatus string

const (
	StatusValid    ParseStatus = "valid"
	StatusInvalid  ParseStatus = "invalid"
	StatusNotFound ParseStatus = "not_found"
)

// ParseRow validates raw against the current field set first; on failure
// it walks History newest-to-oldest looking for a version whose fields
// raw satisfies, then chains that version's Migrate (and every
// subsequent version's Migrate) forward to Current. If no version
// matches, it returns raw's issues against Current. If a link in the
// migration chain is missing or fails, or the migrated row does not parse
// against Current, it returns a MigrationError. ParseRow never returns
// raw itself; table.Get reports either case as invalid with raw preserved
// (spec: round-trip schema evolution property).
func (ts *TableSchema) ParseRow(raw map[string]any) (value map[string]any, issues []errs.Issue, migrationErr error) {
	if v, iss := ts.parseAgainst(ts.Current.Fields, raw); len(iss) == 0 {
		return v, nil, nil
	} else {
		issues = iss
	}

	for i := len(ts.History) - 1; i >= 0; i-- {
		hv := ts.History[i]
		candidate, histIssues := ts.parseAgainst(hv.Fields, raw)
		if len(histIssues) > 0 {
			continue
		}
		migrated, err := ts.migrateForward(candidate, i)
		if err != nil {
			return nil, nil, err
		}
		finalValue, finalIssues := ts.parseAgainst(ts.Current.Fields, migrated)
		if len(finalIssues) > 0 {
			return nil, nil, errs.MigrationError(ts.Current.Name, hv.Version, fmt.Errorf("migrated row does not match the current schema: %v", finalIssues))
		}
		return finalValue, nil, nil
	}

	return nil, issues, nil
}

// migrateForward chains History[i].Migrate, History[i+1].Migrate, ...
// up through Current, starting from a row already known to parse at
// History[i]'s version.
func (ts *TableSchema) migrateForward(value map[string]any, fromIdx int) (map[string]any, error) {
	cur := value
	for i := fromIdx; i < len(ts.History); i++ {
		if ts.History[i].Migrate == nil {
			return nil, errs.MigrationError(ts.Current.Name, ts.History[i].Version, nil)
		}
		next, err := ts.History[i].Migrate(cur)
		if err != nil {
			return nil, errs.MigrationError(ts.Current.Name, ts.History[i].Version, err)
		}
		cur = next
	}
	return cur, nil
}

func (ts *TableSchema) parseAgainst(fields map[string]FieldSchema, raw map[string]any) (map[string]any, []errs.Issue) {
	out := make(map[string]any, len(fields))
	var issues []errs.Issue
	for name, f := range fields {
		v, fieldIssues := f.Parse(name, raw[name])
		if len(fieldIssues) > 0 {
			issues = append(issues, fieldIssues...)
			continue
		}
		out[name] = v
	}
	return out, issues
}

// KvSchema is the KV-store analogue of TableSchema: a single field's
// current definition plus its version history.
type KvSchema struct {
	Current KvDef
	History []VersionedField
}

// VersionedField is one historical version of a KV entry's field,
// paired with the migrator to the next version.
type VersionedField struct {
	Version int
	Field   FieldSchema
	Migrate func(raw any) (any, error)
}

// ParseValue mirrors TableSchema.ParseRow for a single KV value.
func (ks *KvSchema) ParseValue(raw any) (value any, issues []errs.Issue, migrationErr error) {
	if v, iss := ks.Current.Field.Parse(ks.Current.Name, raw); len(iss) == 0 {
		return v, nil, nil
	} else {
		issues = iss
	}

	for i := len(ks.History) - 1; i >= 0; i-- {
		hv := ks.History[i]
		candidate, histIssues := hv.Field.Parse(ks.Current.Name, raw)
		if len(histIssues) > 0 {
			continue
		}
		cur := candidate
		for j := i; j < len(ks.History); j++ {
			if ks.History[j].Migrate == nil {
				return nil, nil, errs.MigrationError(ks.Current.Name, ks.History[j].Version, nil)
			}
			next, err := ks.History[j].Migrate(cur)
			if err != nil {
				return nil, nil, errs.MigrationError(ks.Current.Name, ks.History[j].Version, err)
			}
			cur = next
		}
		finalValue, finalIssues := ks.Current.Field.Parse(ks.Current.Name, cur)
		if len(finalIssues) > 0 {
			return nil, nil, errs.MigrationError(ks.Current.Name, hv.Version, fmt.Errorf("migrated value does not match the current schema: %v", finalIssues))
		}
		return finalValue, nil, nil
	}

	return nil, issues, nil
}

// DeepEqual reports whether two table/KV definitions are equal, used by
// mergeSchema to make workspace creation idempotent: an
// identical definition already stored is a no-op rather than a write.
func DeepEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
