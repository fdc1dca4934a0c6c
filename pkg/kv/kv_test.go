package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/schema"
)

type staticSchemas map[string]*schema.KvSchema

func (s staticSchemas) Get(key string) (*schema.KvSchema, bool) {
	ks, ok := s[key]
	return ks, ok
}

func themeSchemas() staticSchemas {
	return staticSchemas{
		"theme": {Current: schema.KvDef{
			Name:  "theme",
			Field: schema.FieldSchema{Type: schema.FieldEnum, Options: []string{"light", "dark"}, Default: "light"},
		}},
	}
}

func newKV() *KV {
	doc := crdt.NewDoc("ws-1-0", "client-a")
	return New(doc, doc.Map("kv"), themeSchemas())
}

func TestSetThenGetRoundTripsValidValue(t *testing.T) {
	k := newKV()
	require.NoError(t, k.Set("theme", "dark"))

	res := k.Get("theme")
	assert.Equal(t, schema.StatusValid, res.Status)
	assert.Equal(t, "dark", res.Value)
}

func TestGetUnregisteredKeyIsInvalid(t *testing.T) {
	k := newKV()
	res := k.Get("nope")
	assert.Equal(t, schema.StatusInvalid, res.Status)
	require.NotEmpty(t, res.Errors)
}

func TestSetUnregisteredKeyReturnsUnknownKeyError(t *testing.T) {
	k := newKV()
	err := k.Set("nope", "x")
	require.Error(t, err)
}

func TestSetInvalidValueReturnsSchemaValidationError(t *testing.T) {
	k := newKV()
	err := k.Set("theme", "purple")
	require.Error(t, err)
}

func TestGetMissingKeyIsNotFound(t *testing.T) {
	k := newKV()
	res := k.Get("theme")
	assert.Equal(t, schema.StatusNotFound, res.Status)
}

func TestDeleteReportsWhetherSomethingExisted(t *testing.T) {
	k := newKV()
	require.NoError(t, k.Set("theme", "dark"))

	assert.Equal(t, "deleted", k.Delete("theme").Status)
	assert.Equal(t, "not_found_locally", k.Delete("theme").Status)
}

func TestBatchAppliesAllOpsAtomically(t *testing.T) {
	k := newKV()
	err := k.Batch([]BatchOp{{Key: "theme", Value: "dark"}})
	require.NoError(t, err)
	assert.Equal(t, "dark", k.Get("theme").Value)
}

func TestBatchAbortsEntirelyOnValidationFailure(t *testing.T) {
	k := newKV()
	err := k.Batch([]BatchOp{
		{Key: "theme", Value: "dark"},
		{Key: "theme", Value: "not-a-color"},
	})
	require.Error(t, err)
	assert.Equal(t, schema.StatusNotFound, k.Get("theme").Status)
}

func TestObserveFiresWithChangedKeys(t *testing.T) {
	k := newKV()
	var seen map[string]bool
	unsub := k.Observe(func(keys map[string]bool) { seen = keys })
	defer unsub()

	require.NoError(t, k.Set("theme", "dark"))
	assert.True(t, seen["theme"])
}
