package vm

import (
	"strings"

	"ape/internal/bytecode"
	"ape/internal/format"
	"ape/internal/object"
	"ape/internal/token"
)

// numeric coerces v to a float64: Null coerces to 0, Bool to 0/1, and
// reports whether v is coercible at all (only Null/Bool/Number are).
func numeric(v object.Value) (float64, bool) {
	switch v.Kind {
	case object.KNumber:
		return v.Num, true
	case object.KNull:
		return 0, true
	case object.KBool:
		return v.Num, true
	default:
		return 0, false
	}
}

// binaryOverload looks for a callable at op's overload key on either
// operand (a is checked first, then b), calling it with (a, b) if
// found.
func (vm *VM) binaryOverload(op bytecode.Op, a, b object.Value, pos token.Position) (object.Value, bool, error) {
	key, ok := vm.overloadKeys[op]
	if !ok {
		return object.Null, false, nil
	}
	for _, operand := range [2]object.Value{a, b} {
		m := operand.Map()
		if m == nil {
			continue
		}
		callee, found := m.Get(key)
		if !found || !callee.IsCallable() {
			continue
		}
		result, err := vm.invoke(callee, []object.Value{a, b}, pos)
		return result, true, err
	}
	return object.Null, false, nil
}

func (vm *VM) unaryOverload(op bytecode.Op, a object.Value, pos token.Position) (object.Value, bool, error) {
	key, ok := vm.overloadKeys[op]
	if !ok {
		return object.Null, false, nil
	}
	m := a.Map()
	if m == nil {
		return object.Null, false, nil
	}
	callee, found := m.Get(key)
	if !found || !callee.IsCallable() {
		return object.Null, false, nil
	}
	result, err := vm.invoke(callee, []object.Value{a}, pos)
	return result, true, err
}

func (vm *VM) execAdd(pos token.Position) error {
	b := vm.pop()
	a := vm.pop()

	if a.Kind == object.KArray {
		arr := a.Array()
		arr.Elements = append(arr.Elements, b)
		return vm.push(a)
	}
	if a.Kind == object.KString || b.Kind == object.KString {
		left := stringOf(a)
		right := stringOf(b)
		return vm.push(vm.heap.NewString(left + right))
	}
	if an, aok := numeric(a); aok {
		if bn, bok := numeric(b); bok {
			return vm.push(object.Number(an + bn))
		}
	}
	if v, handled, err := vm.binaryOverload(bytecode.OpAdd, a, b, pos); handled {
		if err != nil {
			return err
		}
		return vm.push(v)
	}
	return vm.runtimeError(pos, "type mismatch: %s + %s", a.TypeName(), b.TypeName())
}

func stringOf(v object.Value) string {
	if v.Kind == object.KString {
		s := v.String()
		if s == nil {
			return ""
		}
		return s.String()
	}
	return format.String(v)
}

// numericBinary implements Sub/Mul/Div/Mod/bitwise/shift: operands
// must be numeric (after Null/Bool coercion) or the VM falls back to
// operator-overload resolution before reporting a type error.
func (vm *VM) numericBinary(op bytecode.Op, pos token.Position, apply func(a, b float64) (float64, error)) error {
	b := vm.pop()
	a := vm.pop()
	an, aok := numeric(a)
	bn, bok := numeric(b)
	if aok && bok {
		r, err := apply(an, bn)
		if err != nil {
			return vm.runtimeError(pos, "%s", err.Error())
		}
		return vm.push(object.Number(r))
	}
	if v, handled, err := vm.binaryOverload(op, a, b, pos); handled {
		if err != nil {
			return err
		}
		return vm.push(v)
	}
	return vm.runtimeError(pos, "type mismatch: %s %s %s", a.TypeName(), op, b.TypeName())
}

func truncInt(f float64) int64 { return int64(f) }

func (vm *VM) execMinus(pos token.Position) error {
	a := vm.pop()
	if n, ok := numeric(a); ok {
		return vm.push(object.Number(-n))
	}
	if v, handled, err := vm.unaryOverload(bytecode.OpMinus, a, pos); handled {
		if err != nil {
			return err
		}
		return vm.push(v)
	}
	return vm.runtimeError(pos, "type mismatch: -%s", a.TypeName())
}

func (vm *VM) execNot(pos token.Position) error {
	a := vm.pop()
	if a.Kind == object.KMap {
		if v, handled, err := vm.unaryOverload(bytecode.OpNot, a, pos); handled {
			if err != nil {
				return err
			}
			return vm.push(v)
		}
	}
	return vm.push(object.Bool(!a.Truthy()))
}

// comparePlain implements the ordered-comparison half of the
// compare/consume protocol: a signed number whose sign GreaterThan/
// GreaterEqual then consume. Numbers compare by subtraction, strings
// by byte-wise ordering with a length tiebreak, bools as 0/1.
func (vm *VM) comparePlain(pos token.Position) error {
	b := vm.pop()
	a := vm.pop()
	if a.Kind == object.KNumber && b.Kind == object.KNumber {
		return vm.push(object.Number(a.Num - b.Num))
	}
	if a.Kind == object.KBool && b.Kind == object.KBool {
		return vm.push(object.Number(a.Num - b.Num))
	}
	if a.Kind == object.KString && b.Kind == object.KString {
		as, bs := a.String(), b.String()
		c := strings.Compare(as.String(), bs.String())
		return vm.push(object.Number(float64(c)))
	}
	if v, handled, err := vm.binaryOverload(bytecode.OpComparePlain, a, b, pos); handled {
		if err != nil {
			return err
		}
		return vm.push(v)
	}
	return vm.runtimeError(pos, "cannot order-compare %s and %s", a.TypeName(), b.TypeName())
}

// compareEq implements the equality-only half: 0 for equal, 1
// otherwise, never erroring on a type mismatch.
func (vm *VM) compareEq(pos token.Position) error {
	b := vm.pop()
	a := vm.pop()
	if a.Kind == object.KMap {
		if v, handled, err := vm.binaryOverload(bytecode.OpCompareEq, a, b, pos); handled {
			if err != nil {
				return err
			}
			return vm.push(v)
		}
	}
	if object.Equal(a, b) {
		return vm.push(object.Number(0))
	}
	return vm.push(object.Number(1))
}
