// Package gc implements Ape's tracing heap: allocation of object.Object
// records, a per-kind free-list pool to cut allocator churn, and a
// mark-sweep collector run by the VM between instruction dispatches.
package gc

import "ape/internal/object"

// DefaultThreshold is the object count at which Heap.NeedsCollect reports
// a collection due, doubling after each sweep that keeps the heap above
// half this size (a classic generational-free ratio, not size-doubling
// without bound).
const DefaultThreshold = 4096

// Heap owns every live (and pooled-but-free) object.Object record and
// decides when a collection is due.
type Heap struct {
	objects   []*object.Object
	pools     *pools
	threshold int
	allocated int // objects allocated since the last collection
}

func NewHeap() *Heap {
	return &Heap{
		pools:     newPools(),
		threshold: DefaultThreshold,
	}
}

// Alloc returns a zeroed Object of kind k, preferring a pooled record
// over a fresh allocation.
func (h *Heap) Alloc(k object.ObjKind) *object.Object {
	if o := h.pools.take(k); o != nil {
		o.PoolFree = false
		o.Marked = false
		return o
	}
	o := &object.Object{Kind: k}
	h.objects = append(h.objects, o)
	h.allocated++
	return o
}

// NewString allocates a string object from s.
func (h *Heap) NewString(s string) object.Value {
	o := h.Alloc(object.OString)
	o.Str = object.NewString(s)
	return object.FromObject(object.KString, o)
}

// NewArray allocates an array object with the given initial elements.
func (h *Heap) NewArray(elems []object.Value) object.Value {
	o := h.Alloc(object.OArray)
	o.Arr = &object.ArrayData{Elements: elems}
	return object.FromObject(object.KArray, o)
}

// NewMap allocates an empty ordered map object.
func (h *Heap) NewMap() object.Value {
	o := h.Alloc(object.OMap)
	o.Map = object.NewMap()
	return object.FromObject(object.KMap, o)
}

// NewFunction allocates a script-function object.
func (h *Heap) NewFunction(fn *object.FunctionData) object.Value {
	o := h.Alloc(object.OFunction)
	o.Fn = fn
	return object.FromObject(object.KFunction, o)
}

// NewNative allocates a native-function object.
func (h *Heap) NewNative(n *object.NativeData) object.Value {
	o := h.Alloc(object.ONative)
	o.Native = n
	return object.FromObject(object.KNativeFunction, o)
}

// NewError allocates an Error object.
func (h *Heap) NewError(message string, traceback []object.TraceEntry) object.Value {
	o := h.Alloc(object.OError)
	o.Err = &object.ErrorData{Message: message, Traceback: traceback}
	return object.FromObject(object.KError, o)
}

// NewExternal allocates an opaque host-value wrapper.
func (h *Heap) NewExternal(ext *object.ExternalData) object.Value {
	o := h.Alloc(object.OExternal)
	o.Ext = ext
	return object.FromObject(object.KExternal, o)
}

// Count returns the number of live (non-pooled-free) objects on the heap.
func (h *Heap) Count() int {
	n := 0
	for _, o := range h.objects {
		if !o.PoolFree {
			n++
		}
	}
	return n
}

// Len reports the total number of object slots the heap has ever allocated.
func (h *Heap) Len() int { return len(h.objects) }

// NeedsCollect reports whether enough allocation pressure has built up
// since the last sweep to warrant a collection pass.
func (h *Heap) NeedsCollect() bool { return h.allocated >= h.threshold }

// ResetPressure clears the allocation counter after a collection runs,
// growing the threshold if the sweep reclaimed fewer than half the heap
// (so a heap under genuine pressure doesn't thrash on every call).
func (h *Heap) ResetPressure(liveAfter int) {
	h.allocated = 0
	if liveAfter*2 > h.threshold {
		h.threshold *= 2
	}
}

// All returns every object slot the heap has allocated, live or pooled.
// Used by the collector to run its sweep phase.
func (h *Heap) All() []*object.Object { return h.objects }

// Free returns o to its kind's pool for reuse and clears its payload
// references so the collector doesn't keep dead data reachable.
func (h *Heap) Free(o *object.Object) {
	o.Marked = false
	o.PoolFree = true
	switch o.Kind {
	case object.OString:
		o.Str = nil
	case object.OArray:
		o.Arr = nil
	case object.OMap:
		o.Map = nil
	case object.OFunction:
		o.Fn = nil
	case object.ONative:
		o.Native = nil
	case object.OError:
		o.Err = nil
	case object.OExternal:
		o.Ext = nil
	}
	h.pools.give(o)
}
