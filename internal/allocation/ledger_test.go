package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerCapacity(t *testing.T) {
	l := NewLedger(2, []string{"a", "b"})

	assert.True(t, l.Available("a"))
	assert.Equal(t, 1, l.Commit("a"))
	assert.Equal(t, 2, l.Commit("a"))
	assert.False(t, l.Available("a"))
	assert.True(t, l.Available("b"))
	assert.Equal(t, 1, l.AtCapacity())
	assert.Equal(t, map[string]int{"a": 2, "b": 0}, l.Snapshot())
}

func TestLedgerUnlimited(t *testing.T) {
	l := NewLedger(0, nil)
	for i := 0; i < 100; i++ {
		l.Commit("a")
	}
	assert.True(t, l.Available("a"))
	assert.Equal(t, 100, l.Count("a"))
	assert.Zero(t, l.AtCapacity())
}

func TestNilLedger(t *testing.T) {
	var l *Ledger
	assert.True(t, l.Available("a"))
	assert.Zero(t, l.Commit("a"))
	assert.Empty(t, l.Snapshot())
}
