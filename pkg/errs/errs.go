/*
Package errs defines the core's error taxonomy.

Every failure the core raises carries a Kind (a stable, machine-readable
tag), a human message, and an optional Context of identifier fields for
adapters to render without parsing the message string. Kinds are not Go
types to switch on with errors.As when a caller only has the interface;
Kind() is exported for that purpose.
*/
package errs

import "fmt"

// Kind tags the category of a core error.
type Kind string

const (
	KindSchemaValidation  Kind = "schema_validation"
	KindUnknownKey        Kind = "unknown_key"
	KindWorkspaceNotFound Kind = "workspace_not_found"
	KindMigration         Kind = "migration"
	KindProviderInit      Kind = "provider_init"
	KindLifecycle         Kind = "lifecycle"
)

// Error is the concrete type behind every error this module returns.
type Error struct {
	kind    Kind
	message string
	context map[string]any
}

func (e *Error) Error() string {
	if len(e.context) == 0 {
		return e.message
	}
	return fmt.Sprintf("%s %v", e.message, e.context)
}

// Kind returns the error's machine-readable category.
func (e *Error) Kind() Kind { return e.kind }

// Context returns the identifier fields attached to the error (never nil).
func (e *Error) Context() map[string]any {
	if e.context == nil {
		return map[string]any{}
	}
	return e.context
}

func newErr(kind Kind, message string, ctx map[string]any) *Error {
	return &Error{kind: kind, message: message, context: ctx}
}

// Issue describes a single schema validation failure on one field.
type Issue struct {
	Path    string
	Message string
}

// SchemaValidationError is returned when a write fails schema validation.
func SchemaValidationError(tableOrKey string, issues []Issue) *Error {
	return newErr(KindSchemaValidation, fmt.Sprintf("validation failed for %q", tableOrKey), map[string]any{
		"name":   tableOrKey,
		"issues": issues,
	})
}

// UnknownKeyError is returned when a table/KV helper is asked to operate on
// a name that isn't registered in the document's definition.
func UnknownKeyError(kind string, name string) *Error {
	return newErr(KindUnknownKey, fmt.Sprintf("unknown %s %q", kind, name), map[string]any{
		"kind": kind,
		"name": name,
	})
}

// WorkspaceNotFoundError is returned by the orchestrator when a workspace ID
// isn't present in the registry.
func WorkspaceNotFoundError(workspaceID string, available []string) *Error {
	return newErr(KindWorkspaceNotFound, fmt.Sprintf("workspace %q is not in the registry", workspaceID), map[string]any{
		"workspace_id": workspaceID,
		"available":    available,
	})
}

// MigrationError is returned when a migrator throws or returns a value that
// doesn't parse against the current schema version.
func MigrationError(name string, fromVersion int, cause error) *Error {
	ctx := map[string]any{"name": name, "from_version": fromVersion}
	msg := fmt.Sprintf("migration of %q from version %d failed", name, fromVersion)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return newErr(KindMigration, msg, ctx)
}

// ProviderInitError wraps a provider whose whenSynced rejected.
func ProviderInitError(providerName string, cause error) *Error {
	msg := fmt.Sprintf("provider %q failed to become ready", providerName)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return newErr(KindProviderInit, msg, map[string]any{"provider": providerName})
}

// LifecycleError is returned for operations attempted on a destroyed
// document or helper.
func LifecycleError(docID string) *Error {
	return newErr(KindLifecycle, fmt.Sprintf("document %q has been destroyed", docID), map[string]any{
		"doc_id": docID,
	})
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if as, ok := err.(*Error); ok {
			e = as
			break
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	if e == nil {
		return false
	}
	return e.kind == kind
}
