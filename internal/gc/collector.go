package gc

import "ape/internal/object"

// Roots is the set of root value slices the VM exposes to a collection
// pass: module globals, the evaluation stack, the this-stack, each live
// frame's function value, the overload-key cache and the last popped
// value (kept alive so `recover` and REPL echoing can still observe
// it). A live frame's function value transitively roots its own
// materialized constant-pool string cache (object.FunctionData.ConstCache),
// so the constant pool needs no separate root slice.
type Roots struct {
	Globals      []object.Value
	Stack        []object.Value
	ThisStack    []object.Value
	FrameFuncs   []object.Value
	OverloadKeys []object.Value
	LastPopped   object.Value
}

// Collect runs one mark-sweep pass: mark every object value reachable
// from roots, then sweep the heap, returning pooled/freed objects whose
// mark bit is still clear. Unreachable sub-objects nested inside a live
// array/map/function are followed transitively via markValue.
func Collect(h *Heap, roots Roots) (freed int) {
	for _, v := range roots.Globals {
		markValue(v)
	}
	for _, v := range roots.Stack {
		markValue(v)
	}
	for _, v := range roots.ThisStack {
		markValue(v)
	}
	for _, v := range roots.FrameFuncs {
		markValue(v)
	}
	for _, v := range roots.OverloadKeys {
		markValue(v)
	}
	markValue(roots.LastPopped)

	live := 0
	for _, o := range h.All() {
		if o.PoolFree {
			continue
		}
		if o.Marked {
			o.Marked = false // reset for next cycle
			live++
			continue
		}
		h.Free(o)
		freed++
	}
	h.ResetPressure(live)
	return freed
}

// markValue marks v's backing Object (if any) and recurses into
// composite payloads so nested values stay reachable.
func markValue(v object.Value) {
	o := v.Obj
	if o == nil || o.Marked {
		return
	}
	o.Marked = true
	switch o.Kind {
	case object.OArray:
		if o.Arr != nil {
			for _, e := range o.Arr.Elements {
				markValue(e)
			}
		}
	case object.OMap:
		if o.Map != nil {
			for _, k := range o.Map.Keys() {
				markValue(k)
			}
			for _, val := range o.Map.Values() {
				markValue(val)
			}
		}
	case object.OFunction:
		if o.Fn != nil {
			for _, f := range o.Fn.Free {
				markValue(f)
			}
			for _, cv := range o.Fn.ConstCache {
				markValue(cv)
			}
		}
	case object.OError:
		// traceback entries carry no Values
	}
}
