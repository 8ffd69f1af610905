package compiler

import (
	"ape/internal/bytecode"
	"ape/internal/symbol"
	"ape/internal/token"
)

// loadSymbol emits the read instruction for sym's storage kind.
func (c *Compiler) loadSymbol(sym symbol.Symbol, pos token.Position) {
	switch sym.Kind {
	case symbol.ModuleGlobal:
		c.emitU16(bytecode.OpGetModuleGlobal, uint16(sym.Index), pos)
	case symbol.ContextGlobal:
		c.emitU16(bytecode.OpGetContextGlobal, uint16(sym.Index), pos)
	case symbol.Local:
		c.emitU8(bytecode.OpGetLocal, byte(sym.Index), pos)
	case symbol.Free:
		c.emitU8(bytecode.OpGetFree, byte(sym.Index), pos)
	case symbol.Function:
		c.emit(bytecode.OpCurrentFunction, pos)
	case symbol.This:
		c.emit(bytecode.OpGetThis, pos)
	default:
		c.errorf(pos, "compiler: unhandled symbol kind %v for %q", sym.Kind, sym.Name)
		c.emit(bytecode.OpNull, pos)
	}
}

// storeSymbol emits the write instruction for sym's storage kind,
// consuming the value already on top of the stack. define is true the
// first time a module-global or local is written (its `var`/`const`
// declaration) and selects Define* over Set*.
func (c *Compiler) storeSymbol(sym symbol.Symbol, define bool, pos token.Position) {
	switch sym.Kind {
	case symbol.ModuleGlobal:
		if define {
			c.emitU16(bytecode.OpDefineModuleGlobal, uint16(sym.Index), pos)
		} else {
			c.emitU16(bytecode.OpSetModuleGlobal, uint16(sym.Index), pos)
		}
	case symbol.Local:
		if define {
			c.emitU8(bytecode.OpDefineLocal, byte(sym.Index), pos)
		} else {
			c.emitU8(bytecode.OpSetLocal, byte(sym.Index), pos)
		}
	case symbol.Free:
		c.emitU8(bytecode.OpSetFree, byte(sym.Index), pos)
	default:
		c.errorf(pos, "%q is not assignable", sym.Name)
	}
}
