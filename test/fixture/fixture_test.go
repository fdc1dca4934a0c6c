package fixture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedOpensClientAtEpochZero(t *testing.T) {
	env := New(t)
	c := env.Seed(t, "ws-1")
	assert.Equal(t, "ws-1-0", c.Doc().ID())
}

func TestWaiterWaitForSucceedsOnceConditionTrue(t *testing.T) {
	w := DefaultWaiter()
	n := 0
	err := w.WaitFor(context.Background(), func() bool {
		n++
		return n >= 3
	}, "n reaches 3")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 3)
}

func TestWaiterWaitForTimesOut(t *testing.T) {
	w := NewWaiter(20_000_000, 5_000_000) // 20ms timeout, 5ms interval (time.Duration is int64 ns)
	err := w.WaitFor(context.Background(), func() bool { return false }, "never true")
	assert.Error(t, err)
}

func TestNewWithSchemaUsesProvidedSchema(t *testing.T) {
	sch := TasksSchema()
	env := NewWithSchema(t, sch)
	c := env.Seed(t, "ws-1")
	tbl, ok := c.Table("tasks")
	require.True(t, ok)
	assert.NotNil(t, tbl)
}
