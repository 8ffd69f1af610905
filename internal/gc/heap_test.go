package gc

import (
	"testing"

	"ape/internal/object"
	"github.com/stretchr/testify/require"
)

func TestHeapAllocAndFree(t *testing.T) {
	h := NewHeap()
	v := h.NewString("hello")
	require.Equal(t, "hello", v.String().String())
	require.Equal(t, 1, h.Count())

	h.Free(v.Obj)
	require.True(t, v.Obj.PoolFree)
	require.Equal(t, 0, h.Count())
}

func TestHeapPoolReuse(t *testing.T) {
	h := NewHeap()
	v1 := h.NewArray(nil)
	o1 := v1.Obj
	h.Free(o1)

	v2 := h.NewArray([]object.Value{object.Number(1)})
	require.Same(t, o1, v2.Obj, "pooled object should be reused rather than freshly allocated")
	require.False(t, v2.Obj.PoolFree)
}

func TestCollectSweepsUnreachable(t *testing.T) {
	h := NewHeap()
	kept := h.NewString("kept")
	_ = h.NewString("garbage")

	freed := Collect(h, Roots{Globals: []object.Value{kept}})

	require.Equal(t, 1, freed)
	require.Equal(t, 1, h.Count())
	require.False(t, kept.Obj.Marked, "mark bit must be cleared after the sweep")
}

func TestCollectFollowsNestedReferences(t *testing.T) {
	h := NewHeap()
	inner := h.NewString("nested")
	outer := h.NewArray([]object.Value{inner})
	_ = h.NewString("garbage")

	freed := Collect(h, Roots{Stack: []object.Value{outer}})

	require.Equal(t, 1, freed)
	require.False(t, inner.Obj.PoolFree, "array elements reachable from a root must survive")
}
