/*
Package action implements the action system: typed
query/mutation handles (not a transport), organized into a walkable
tree. Adapters (REST, CLI, MCP) walk the tree and bind each leaf to
their own wire format; this package owns none of that.

An action's input schema is a single pkg/schema.FieldSchema (the same
Standard-Schema-shaped hook the table/KV helpers validate against), with
a JSON-schema projection via pkg/schema/fields for adapters that need to
advertise the shape without importing Go types.
*/
package action

import (
	"context"
	"fmt"

	"github.com/epicenter-hq/core/pkg/errs"
	"github.com/epicenter-hq/core/pkg/schema"
	"github.com/epicenter-hq/core/pkg/schema/fields"
)

// Kind discriminates a query (read-only) from a mutation (write).
type Kind string

const (
	Query    Kind = "query"
	Mutation Kind = "mutation"
)

// Handler is the synchronous function an Action invokes; ctx carries
// cancellation the way every blocking operation in this module accepts
// one. Returning a *errs.Error is how a handler signals a typed failure
// (UnknownKeyError, SchemaValidationError, ...); any other error is
// passed through unwrapped.
type Handler func(ctx context.Context, input any) (output any, err error)

// Action is one typed, transport-agnostic operation.
type Action struct {
	Kind        Kind
	Name        string
	Description string
	Input       *schema.FieldSchema // nil for a no-input action
	Handler     Handler
}

// NewQuery constructs a read-only Action.
func NewQuery(name, description string, input *schema.FieldSchema, handler Handler) *Action {
	return &Action{Kind: Query, Name: name, Description: description, Input: input, Handler: handler}
}

// NewMutation constructs a write Action.
func NewMutation(name, description string, input *schema.FieldSchema, handler Handler) *Action {
	return &Action{Kind: Mutation, Name: name, Description: description, Input: input, Handler: handler}
}

// Invoke validates input (if the action declares one) then calls the
// handler.
func (a *Action) Invoke(ctx context.Context, input any) (any, error) {
	if a.Input != nil {
		parsed, issues := a.Input.Parse(a.Name, input)
		if len(issues) > 0 {
			return nil, errs.SchemaValidationError(a.Name, issues)
		}
		input = parsed
	}
	return a.Handler(ctx, input)
}

// JSONSchema projects the action's input into the same JSON-schema
// shape pkg/schema/fields gives table/KV fields, for adapters that need
// to advertise it without depending on Go types.
func (a *Action) JSONSchema() *fields.JSONSchema {
	if a.Input == nil {
		return nil
	}
	js := fields.Project(*a.Input)
	return &js
}

// Tree is a nested record of actions and sub-trees; leaves are *Action,
// branches are Tree. An action tree is a nested record whose leaves are
// actions.
type Tree map[string]any

// Leaf pairs a walked action with the dotted path it was found at.
type Leaf struct {
	Path   string
	Action *Action
}

// Walk yields (action, path) for every leaf in the tree, depth-first, in
// a deterministic order so adapters produce stable output (e.g. a CLI
// help listing) across runs.
func Walk(tree Tree) []Leaf {
	var out []Leaf
	walk(tree, "", &out)
	return out
}

func walk(tree Tree, prefix string, out *[]Leaf) {
	keys := sortedKeys(tree)
	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch v := tree[k].(type) {
		case *Action:
			*out = append(*out, Leaf{Path: path, Action: v})
		case Tree:
			walk(v, path, out)
		default:
			panic(fmt.Sprintf("action: tree entry %q is neither *Action nor Tree (got %T)", path, v))
		}
	}
}

func sortedKeys(tree Tree) []string {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	// Simple insertion sort: action trees are small (tens of entries),
	// not worth pulling in sort.Strings for.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
