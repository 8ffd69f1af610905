package vm

import (
	"errors"
	"math"
	"time"

	"ape/internal/bytecode"
	"ape/internal/langerr"
	"ape/internal/object"
	"ape/internal/token"
)

// isTimeout reports whether err is a Timeout diagnostic, which recover()
// must never catch.
func isTimeout(err error) bool {
	le, ok := err.(*langerr.Error)
	return ok && le.Kind == langerr.Timeout
}

func (f *Frame) readU8() byte {
	b := f.fnVal.Compiled.Bytecode[f.ip]
	f.ip++
	return b
}

func (f *Frame) readU16() uint16 {
	v := f.fnVal.Compiled.ReadUint16(f.ip)
	f.ip += 2
	return v
}

func (f *Frame) readU64() uint64 {
	v := f.fnVal.Compiled.ReadUint64(f.ip)
	f.ip += 8
	return v
}

// constantAt materializes fn's idx'th constant-pool entry into a heap
// Value, caching the result in fn.ConstCache so a string constant read
// repeatedly (e.g. inside a loop) is only allocated once per closure
// instance.
func (vm *VM) constantAt(fn *object.FunctionData, idx int) object.Value {
	if idx < len(fn.ConstCache) {
		if cached := fn.ConstCache[idx]; !(cached.Kind == object.KNull && cached.Obj == nil) {
			return cached
		}
	} else {
		grown := make([]object.Value, len(fn.Compiled.Constants))
		copy(grown, fn.ConstCache)
		fn.ConstCache = grown
	}

	var v object.Value
	switch c := fn.Compiled.Constants[idx].(type) {
	case string:
		v = vm.heap.NewString(c)
	default:
		v = object.Null
	}
	fn.ConstCache[idx] = v
	return v
}

// run drives the top-level program to completion (Run's entry point);
// nested calls from operator-overload resolution go through runLoop via
// invoke instead.
func (vm *VM) run() error {
	_, err := vm.runLoop(0)
	return err
}

// runLoop dispatches instructions until the frame stack unwinds back to
// targetDepth: 0 means "run the whole program" (Run's synthetic main
// frame has basePointer 0 and is handled specially in execReturn), any
// other depth means "run until the frame invoke() just pushed, and
// anything it calls, returns" so overload dispatch can recurse into the
// same loop the top level uses.
func (vm *VM) runLoop(targetDepth int) (object.Value, error) {
	for vm.framesIndex > targetDepth {
		if err := vm.step(); err != nil {
			if !isTimeout(err) && vm.tryRecover() {
				continue
			}
			return object.Null, err
		}
	}
	if targetDepth == 0 {
		return vm.lastPopped, nil
	}
	return vm.pop(), nil
}

func (vm *VM) step() error {
	vm.instructionCount++
	if vm.instructionCount%instructionsPerTimeoutCheck == 0 && !vm.deadline.IsZero() && time.Now().After(vm.deadline) {
		e := langerr.New(langerr.Timeout, "execution exceeded the configured time limit", vm.currentFrame().fnVal.Compiled.PositionAt(vm.currentFrame().ip))
		vm.Errors.Add(e)
		return e
	}
	vm.maybeCollect()

	frame := vm.currentFrame()
	code := frame.fnVal.Compiled.Bytecode
	if frame.ip >= len(code) {
		return vm.execReturn(object.Null)
	}

	pos := frame.fnVal.Compiled.PositionAt(frame.ip)
	op := bytecode.Op(code[frame.ip])
	frame.ip++

	switch op {
	case bytecode.OpConstant:
		idx := frame.readU16()
		return vm.push(vm.constantAt(frame.fnVal, int(idx)))
	case bytecode.OpPop:
		vm.pop()
		return nil
	case bytecode.OpDup:
		return vm.push(vm.top())
	case bytecode.OpTrue:
		return vm.push(object.Bool(true))
	case bytecode.OpFalse:
		return vm.push(object.Bool(false))
	case bytecode.OpNull:
		return vm.push(object.Null)
	case bytecode.OpNumber:
		bits := frame.readU64()
		return vm.push(object.Number(math.Float64frombits(bits)))

	case bytecode.OpArray:
		count := int(frame.readU16())
		elems := make([]object.Value, count)
		for i := count - 1; i >= 0; i-- {
			elems[i] = vm.pop()
		}
		return vm.push(vm.heap.NewArray(elems))
	case bytecode.OpMapStart:
		frame.readU16() // reserved count; MapData grows on demand
		vm.pushThis(vm.heap.NewMap())
		return nil
	case bytecode.OpMapEnd:
		count := int(frame.readU16())
		return vm.execMapEnd(count, pos)

	case bytecode.OpAdd:
		return vm.execAdd(pos)
	case bytecode.OpSub:
		return vm.numericBinary(op, pos, func(a, b float64) (float64, error) { return a - b, nil })
	case bytecode.OpMul:
		return vm.numericBinary(op, pos, func(a, b float64) (float64, error) { return a * b, nil })
	case bytecode.OpDiv:
		return vm.numericBinary(op, pos, func(a, b float64) (float64, error) {
			if b == 0 {
				switch {
				case a == 0:
					return math.NaN(), nil
				case a > 0:
					return math.Inf(1), nil
				default:
					return math.Inf(-1), nil
				}
			}
			return a / b, nil
		})
	case bytecode.OpMod:
		return vm.numericBinary(op, pos, func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, errModByZero
			}
			// mod truncates both operands to integers first, not fmod: 5.5 % 2 == 1.
			ai, bi := truncInt(a), truncInt(b)
			if bi == 0 {
				return 0, errModByZero
			}
			return float64(ai % bi), nil
		})
	case bytecode.OpBitOr:
		return vm.numericBinary(op, pos, func(a, b float64) (float64, error) { return float64(truncInt(a) | truncInt(b)), nil })
	case bytecode.OpBitXor:
		return vm.numericBinary(op, pos, func(a, b float64) (float64, error) { return float64(truncInt(a) ^ truncInt(b)), nil })
	case bytecode.OpBitAnd:
		return vm.numericBinary(op, pos, func(a, b float64) (float64, error) { return float64(truncInt(a) & truncInt(b)), nil })
	case bytecode.OpLShift:
		return vm.numericBinary(op, pos, func(a, b float64) (float64, error) { return float64(truncInt(a) << uint64(truncInt(b)&63)), nil })
	case bytecode.OpRShift:
		return vm.numericBinary(op, pos, func(a, b float64) (float64, error) { return float64(truncInt(a) >> uint64(truncInt(b)&63)), nil })
	case bytecode.OpMinus:
		return vm.execMinus(pos)
	case bytecode.OpNot:
		return vm.execNot(pos)

	case bytecode.OpComparePlain:
		return vm.comparePlain(pos)
	case bytecode.OpCompareEq:
		return vm.compareEq(pos)
	case bytecode.OpEqual:
		n := vm.pop()
		return vm.push(object.Bool(n.Num == 0))
	case bytecode.OpNotEqual:
		n := vm.pop()
		return vm.push(object.Bool(n.Num != 0))
	case bytecode.OpGreaterThan:
		n := vm.pop()
		return vm.push(object.Bool(n.Num > 0))
	case bytecode.OpGreaterEqual:
		n := vm.pop()
		return vm.push(object.Bool(n.Num >= 0))

	case bytecode.OpJump:
		target := frame.readU16()
		frame.ip = int(target)
		return nil
	case bytecode.OpJumpIfFalse:
		target := frame.readU16()
		if !vm.pop().Truthy() {
			frame.ip = int(target)
		}
		return nil
	case bytecode.OpJumpIfTrue:
		target := frame.readU16()
		if vm.pop().Truthy() {
			frame.ip = int(target)
		}
		return nil

	case bytecode.OpDefineModuleGlobal, bytecode.OpSetModuleGlobal:
		idx := frame.readU16()
		vm.SetModuleGlobal(int(idx), vm.pop())
		return nil
	case bytecode.OpGetModuleGlobal:
		idx := frame.readU16()
		return vm.push(vm.GetModuleGlobal(int(idx)))
	case bytecode.OpGetContextGlobal:
		idx := frame.readU16()
		return vm.push(vm.GetContextGlobal(int(idx)))

	case bytecode.OpDefineLocal, bytecode.OpSetLocal:
		slot := frame.readU8()
		vm.stack[frame.basePointer+int(slot)] = vm.pop()
		return nil
	case bytecode.OpGetLocal:
		slot := frame.readU8()
		return vm.push(vm.stack[frame.basePointer+int(slot)])

	case bytecode.OpGetFree:
		slot := frame.readU8()
		return vm.push(frame.fnVal.Free[slot])
	case bytecode.OpSetFree:
		slot := frame.readU8()
		frame.fnVal.Free[slot] = vm.pop()
		return nil

	case bytecode.OpCurrentFunction:
		return vm.push(frame.fn)
	case bytecode.OpGetThis:
		return vm.push(vm.topThis())

	case bytecode.OpGetIndex:
		return vm.execGetIndex(pos)
	case bytecode.OpSetIndex:
		return vm.execSetIndex(pos)
	case bytecode.OpGetValueAt:
		return vm.execGetValueAt(pos)
	case bytecode.OpLen:
		return vm.execLen(pos)

	case bytecode.OpCall:
		argc := int(frame.readU8())
		callee := vm.stack[vm.sp-argc-1]
		return vm.call(callee, argc, pos)

	case bytecode.OpReturnValue:
		return vm.execReturn(vm.pop())
	case bytecode.OpReturnNothing:
		return vm.execReturn(object.Null)

	case bytecode.OpFunction:
		return vm.execFunction(frame, pos)

	case bytecode.OpSetRecover:
		target := frame.readU16()
		if target == recoverDisableOperand {
			frame.recoverIP = -1
		} else {
			frame.recoverIP = int(target)
		}
		return nil

	default:
		return vm.runtimeError(pos, "unknown opcode %s", op)
	}
}

// errModByZero is wrapped into a runtime error by numericBinary; modulo
// by zero is a hard error rather than division's non-finite result.
var errModByZero = errors.New("modulo by zero")

// execReturn implements both ReturnValue and ReturnNothing: pop the
// current frame, and either end the whole program (the synthetic main
// frame, basePointer 0, uniquely identifiable since every real call's
// base sits at least one slot above its callee) or splice retVal back
// in place of the callee+args the caller pushed.
func (vm *VM) execReturn(retVal object.Value) error {
	frame := vm.popFrame()
	if frame.basePointer == 0 {
		vm.sp = 0
		return nil
	}
	vm.sp = frame.basePointer - 1
	return vm.push(retVal)
}

// execFunction implements OpFunction: build a brand-new FunctionData per
// closure instantiation (never reuse the constant-pool template
// directly) so each closure gets its own independent Free slice —
// without this, every closure created from one literal would alias the
// same captured variables the moment more than one instance existed.
func (vm *VM) execFunction(frame *Frame, pos token.Position) error {
	constIx := frame.readU16()
	nfree := int(frame.readU8())

	free := make([]object.Value, nfree)
	for i := nfree - 1; i >= 0; i-- {
		free[i] = vm.pop()
	}

	tmplRaw := frame.fnVal.Compiled.Constants[constIx]
	tmpl, ok := tmplRaw.(*object.FunctionData)
	if !ok {
		return vm.runtimeError(pos, "constant %d is not a function template", constIx)
	}
	instance := &object.FunctionData{
		Name:      tmpl.Name,
		Compiled:  tmpl.Compiled,
		NumLocals: tmpl.NumLocals,
		NumParams: tmpl.NumParams,
		Free:      free,
		OwnsData:  tmpl.OwnsData,
	}
	return vm.push(vm.heap.NewFunction(instance))
}
