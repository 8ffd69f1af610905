package vm

import "ape/internal/langerr"

// tryRecover implements the try/recover mechanism: scan frames from the
// one that raised outward (innermost to outermost)
// for the nearest armed-and-not-already-recovering recover point. If
// found, frames above it are discarded, a fresh Error value wrapping
// the last raised diagnostic is pushed for the handler to bind, and
// the error list is cleared so the host sees a clean execute() result.
func (vm *VM) tryRecover() bool {
	for i := vm.framesIndex - 1; i >= 0; i-- {
		f := vm.frames[i]
		if f.recoverIP < 0 || f.isRecovering {
			continue
		}

		vm.framesIndex = i + 1
		vm.sp = f.basePointer + f.fnVal.NumLocals

		message := "ERROR: unknown error"
		if items := vm.Errors.Items(); len(items) > 0 {
			message = "ERROR: " + items[len(items)-1].Message
		}
		errVal := vm.heap.NewError(message, nil)
		vm.push(errVal)

		f.ip = f.recoverIP
		f.isRecovering = true
		vm.Errors = langerr.NewList()
		return true
	}
	return false
}
