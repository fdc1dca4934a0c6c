package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicenter-hq/core/pkg/errs"
	"github.com/epicenter-hq/core/pkg/schema"
)

func textInput() *schema.FieldSchema {
	return &schema.FieldSchema{Type: schema.FieldText}
}

func TestInvokeValidatesInputBeforeCallingHandler(t *testing.T) {
	var called bool
	a := NewMutation("tasks.rename", "rename a task", textInput(), func(ctx context.Context, input any) (any, error) {
		called = true
		return input, nil
	})

	out, err := a.Invoke(context.Background(), "new title")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "new title", out)
}

func TestInvokeRejectsInvalidInputWithoutCallingHandler(t *testing.T) {
	var called bool
	a := NewMutation("tasks.rename", "rename a task", textInput(), func(ctx context.Context, input any) (any, error) {
		called = true
		return nil, nil
	})

	_, err := a.Invoke(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindSchemaValidation))
	assert.False(t, called, "handler must not run when input fails validation")
}

func TestInvokeSkipsValidationForNoInputAction(t *testing.T) {
	a := NewQuery("tasks.count", "count tasks", nil, func(ctx context.Context, input any) (any, error) {
		return 3, nil
	})
	out, err := a.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, out)
}

func TestJSONSchemaIsNilWithoutInput(t *testing.T) {
	a := NewQuery("tasks.count", "", nil, nil)
	assert.Nil(t, a.JSONSchema())
}

func TestJSONSchemaProjectsDeclaredInput(t *testing.T) {
	a := NewMutation("tasks.rename", "", textInput(), nil)
	js := a.JSONSchema()
	require.NotNil(t, js)
}

func TestWalkVisitsEveryLeafInDeterministicOrder(t *testing.T) {
	count := NewQuery("count", "", nil, nil)
	rename := NewMutation("rename", "", nil, nil)
	remove := NewMutation("remove", "", nil, nil)

	tree := Tree{
		"tasks": Tree{
			"rename": rename,
			"count":  count,
		},
		"kv": Tree{
			"remove": remove,
		},
	}

	leaves := Walk(tree)
	require.Len(t, leaves, 3)

	var paths []string
	for _, l := range leaves {
		paths = append(paths, l.Path)
	}
	assert.Equal(t, []string{"kv.remove", "tasks.count", "tasks.rename"}, paths)
}

func TestWalkPanicsOnMalformedTreeEntry(t *testing.T) {
	tree := Tree{"bad": 123}
	assert.Panics(t, func() { Walk(tree) })
}
