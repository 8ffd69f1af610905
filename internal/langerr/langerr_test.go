package langerr

import (
	"testing"

	"ape/internal/token"
	"github.com/stretchr/testify/require"
)

func TestErrorRendersLocation(t *testing.T) {
	e := New(Runtime, "undefined variable x", token.Position{File: "main.ape", Line: 3, Column: 5})
	require.Contains(t, e.Error(), "RuntimeError: undefined variable x")
	require.Contains(t, e.Error(), "main.ape:3:5")
}

func TestErrorWithTraceback(t *testing.T) {
	e := New(Runtime, "boom", token.Position{File: "a.ape", Line: 1, Column: 1}).
		WithTraceback([]Frame{{Function: "helper", Pos: token.Position{File: "a.ape", Line: 5, Column: 2}}})
	require.Contains(t, e.Error(), "at helper (a.ape:5:2)")
}

func TestListDropsPastCapacity(t *testing.T) {
	l := &List{Capacity: 2}
	l.Addf(Parsing, token.Position{}, "err %d", 1)
	l.Addf(Parsing, token.Position{}, "err %d", 2)
	l.Addf(Parsing, token.Position{}, "err %d", 3)

	require.Equal(t, 2, l.Len())
	require.Equal(t, 1, l.Dropped())
	require.True(t, l.HasErrors())
	require.Contains(t, l.Error(), "1 further diagnostic(s) dropped")
}

func TestListDefaultCapacity(t *testing.T) {
	l := NewList()
	require.Equal(t, DefaultCapacity, l.Capacity)
	require.False(t, l.HasErrors())
}
