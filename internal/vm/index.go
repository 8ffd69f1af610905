package vm

import (
	"ape/internal/object"
	"ape/internal/token"
)

// execGetIndex implements OpGetIndex: array/string index reads
// negative-wrap,
// map reads are a plain key lookup returning Null when absent.
func (vm *VM) execGetIndex(pos token.Position) error {
	index := vm.pop()
	recv := vm.pop()
	switch recv.Kind {
	case object.KArray:
		arr := recv.Array()
		if index.Kind != object.KNumber {
			return vm.runtimeError(pos, "array index must be a number, got %s", index.TypeName())
		}
		i, ok := arrayIndex(index, len(arr.Elements))
		if !ok {
			return vm.push(object.Null)
		}
		return vm.push(arr.Elements[i])
	case object.KString:
		s := recv.String()
		if index.Kind != object.KNumber {
			return vm.runtimeError(pos, "string index must be a number, got %s", index.TypeName())
		}
		i, ok := arrayIndex(index, s.Len())
		if !ok {
			return vm.push(object.Null)
		}
		return vm.push(vm.heap.NewString(string(s.Bytes[i])))
	case object.KMap:
		m := recv.Map()
		if !object.Hashable(index) {
			return vm.runtimeError(pos, "value of type %s is not a valid map key", index.TypeName())
		}
		v, ok := m.Get(index)
		if !ok {
			return vm.push(object.Null)
		}
		return vm.push(v)
	default:
		return vm.runtimeError(pos, "type %s does not support indexing", recv.TypeName())
	}
}

// execSetIndex implements OpSetIndex: pops index, recv and the value to
// store (in that order, matching internal/compiler/assign.go's emission
// order) and leaves nothing behind — the assignment expression's own
// value is whatever the compiler duplicated onto the stack beforehand.
func (vm *VM) execSetIndex(pos token.Position) error {
	index := vm.pop()
	recv := vm.pop()
	value := vm.pop()
	switch recv.Kind {
	case object.KArray:
		arr := recv.Array()
		i, ok := arrayIndex(index, len(arr.Elements))
		if !ok {
			return vm.runtimeError(pos, "array index out of range")
		}
		arr.Elements[i] = value
		return nil
	case object.KMap:
		m := recv.Map()
		if !object.Hashable(index) {
			return vm.runtimeError(pos, "value of type %s is not a valid map key", index.TypeName())
		}
		m.Set(index, value)
		return nil
	default:
		return vm.runtimeError(pos, "type %s does not support index assignment", recv.TypeName())
	}
}

// execGetValueAt implements OpGetValueAt, the foreach loop's positional
// accessor: arrays and strings yield the element/byte at idx directly,
// maps yield a two-element [key, value] pair array.
func (vm *VM) execGetValueAt(pos token.Position) error {
	idxVal := vm.pop()
	recv := vm.pop()
	idx := int(idxVal.Num)
	switch recv.Kind {
	case object.KArray:
		arr := recv.Array()
		if idx < 0 || idx >= len(arr.Elements) {
			return vm.runtimeError(pos, "array index out of range")
		}
		return vm.push(arr.Elements[idx])
	case object.KString:
		s := recv.String()
		if idx < 0 || idx >= s.Len() {
			return vm.runtimeError(pos, "string index out of range")
		}
		return vm.push(vm.heap.NewString(string(s.Bytes[idx])))
	case object.KMap:
		m := recv.Map()
		k, v, ok := m.At(idx)
		if !ok {
			return vm.runtimeError(pos, "map index out of range")
		}
		pair := vm.heap.NewArray([]object.Value{k, v})
		return vm.push(pair)
	default:
		return vm.runtimeError(pos, "type %s does not support iteration", recv.TypeName())
	}
}

// execLen implements OpLen over arrays, strings and maps.
func (vm *VM) execLen(pos token.Position) error {
	v := vm.pop()
	switch v.Kind {
	case object.KArray:
		return vm.push(object.Number(float64(len(v.Array().Elements))))
	case object.KString:
		return vm.push(object.Number(float64(v.String().Len())))
	case object.KMap:
		return vm.push(object.Number(float64(v.Map().Len())))
	default:
		return vm.runtimeError(pos, "type %s has no length", v.TypeName())
	}
}

// arrayIndex resolves a (possibly negative) index Value against length
// n, wrapping negative indices from the end.
func arrayIndex(v object.Value, n int) (int, bool) {
	if v.Kind != object.KNumber {
		return 0, false
	}
	i := int(v.Num)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

// execMapEnd implements OpMapEnd: pops count key/value pairs off the
// evaluation stack (pushed in key0,val0,key1,val1... order) into the map
// sitting on top of the this-stack (rooted there since OpMapStart, so
// a GC pass triggered mid-construction can't reclaim it), then moves the
// finished map from the this-stack onto the evaluation stack.
func (vm *VM) execMapEnd(count int, pos token.Position) error {
	pairs := make([]object.Value, 2*count)
	for i := 2*count - 1; i >= 0; i-- {
		pairs[i] = vm.pop()
	}
	mapVal := vm.popThis()
	m := mapVal.Map()
	for i := 0; i < count; i++ {
		key := pairs[2*i]
		val := pairs[2*i+1]
		if !object.Hashable(key) {
			return vm.runtimeError(pos, "value of type %s is not a valid map key", key.TypeName())
		}
		m.Set(key, val)
	}
	return vm.push(mapVal)
}
