package vm

import (
	"ape/internal/langerr"
	"ape/internal/object"
	"ape/internal/token"
)

// GoFunc is a host- or builtin-registered native function: it receives
// the VM (so it can allocate heap values or recurse into script
// callbacks), its bound user data, and the already-popped argument
// slice, and returns either a result Value or a Go error.
type GoFunc func(vm *VM, userData interface{}, args []object.Value) (object.Value, error)

// call dispatches a Call instruction's callee: a script function pushes
// a new Frame and lets the dispatch loop continue (no Go-level
// recursion); a native function runs synchronously in Go and leaves its
// result on the evaluation stack in the callee's place.
func (vm *VM) call(callee object.Value, argc int, pos token.Position) error {
	switch callee.Kind {
	case object.KFunction:
		return vm.callScript(callee, argc, pos)
	case object.KNativeFunction:
		return vm.callNative(callee, argc, pos)
	default:
		return vm.runtimeError(pos, "value of type %s is not callable", callee.TypeName())
	}
}

func (vm *VM) callScript(callee object.Value, argc int, pos token.Position) error {
	fn := callee.Function()
	if fn == nil {
		return vm.runtimeError(pos, "call to an invalid function value")
	}
	if argc != fn.NumParams {
		return vm.runtimeError(pos, "wrong number of arguments: want=%d got=%d", fn.NumParams, argc)
	}
	base := vm.sp - argc
	frame := &Frame{fn: callee, fnVal: fn, basePointer: base, recoverIP: -1}
	need := base + fn.NumLocals
	for vm.sp < need {
		if err := vm.push(object.Null); err != nil {
			return err
		}
	}
	vm.sp = need
	return vm.pushFrame(frame)
}

func (vm *VM) callNative(callee object.Value, argc int, pos token.Position) error {
	nd := callee.Native()
	if nd == nil {
		return vm.runtimeError(pos, "call to an invalid native function")
	}
	base := vm.sp - argc
	args := make([]object.Value, argc)
	copy(args, vm.stack[base:vm.sp])
	vm.sp = base - 1 // also reclaims the callee slot compileCall pushed

	fn, ok := nd.Fn.(GoFunc)
	if !ok {
		return vm.runtimeError(pos, "native function %q is not bound", nd.Name)
	}

	result, err := fn(vm, nd.UserData, args)
	if err != nil {
		return vm.wrapNativeError(nd.Name, err, pos)
	}
	if result.Kind == object.KError && nd.Name != "error" {
		vm.stampErrorTraceback(result, pos)
	}
	return vm.push(result)
}

// wrapNativeError turns a native's returned Go error into the raised
// langerr.Error, adding it to the VM's error list. The "crash" callee is
// the script's deliberate panic-equivalent and is not re-stamped with an
// interpreter-added position/traceback, preserving whatever it set.
func (vm *VM) wrapNativeError(name string, err error, callPos token.Position) error {
	if name == "crash" {
		e := langerr.New(langerr.User, err.Error(), token.Position{})
		vm.Errors.Add(e)
		return e
	}
	e := langerr.New(langerr.Runtime, err.Error(), callPos).WithTraceback(vm.traceback())
	vm.Errors.Add(e)
	return e
}

// stampErrorTraceback annotates an Error value flowing back from a
// native as ordinary data (not a raise) with the call site, unless it
// already carries one.
func (vm *VM) stampErrorTraceback(v object.Value, pos token.Position) {
	ed := v.Err()
	if ed == nil || len(ed.Traceback) > 0 {
		return
	}
	entries := make([]object.TraceEntry, 0, vm.framesIndex+1)
	entries = append(entries, object.TraceEntry{File: pos.File, Line: pos.Line, Column: pos.Column})
	for i := vm.framesIndex - 1; i >= 0; i-- {
		f := vm.frames[i]
		name := "<anonymous>"
		if f.fnVal != nil && f.fnVal.Name != "" {
			name = f.fnVal.Name
		}
		p := f.fnVal.Compiled.PositionAt(f.ip)
		entries = append(entries, object.TraceEntry{Function: name, File: p.File, Line: p.Line, Column: p.Column})
	}
	ed.Traceback = entries
}

// invoke runs callee(args) to completion from outside the normal
// dispatch loop (used by operator-overload resolution) and returns its
// result as an ordinary Go call would. A script callee gets a real
// nested frame and a sub-loop that returns once that frame (and
// anything it calls) unwinds; a native callee runs directly.
func (vm *VM) invoke(callee object.Value, args []object.Value, pos token.Position) (object.Value, error) {
	if callee.Kind == object.KNativeFunction {
		base := vm.sp
		if err := vm.push(callee); err != nil {
			return object.Null, err
		}
		for _, a := range args {
			if err := vm.push(a); err != nil {
				return object.Null, err
			}
		}
		if err := vm.callNative(callee, len(args), pos); err != nil {
			return object.Null, err
		}
		result := vm.pop()
		vm.sp = base
		return result, nil
	}
	if callee.Kind != object.KFunction {
		return object.Null, vm.runtimeError(pos, "value of type %s is not callable", callee.TypeName())
	}
	if err := vm.push(callee); err != nil {
		return object.Null, err
	}
	for _, a := range args {
		if err := vm.push(a); err != nil {
			return object.Null, err
		}
	}
	if err := vm.callScript(callee, len(args), pos); err != nil {
		return object.Null, err
	}
	targetDepth := vm.framesIndex - 1
	return vm.runLoop(targetDepth)
}
