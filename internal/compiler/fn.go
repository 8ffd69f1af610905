package compiler

import (
	"ape/internal/ast"
	"ape/internal/bytecode"
	"ape/internal/object"
	"ape/internal/symbol"
)

// compileFnLit compiles a function literal in a fresh compilation scope
// (its own bytecode/constant pool) over a fresh symbol table nested
// under the current one, then emits the free-variable loads and the
// OpFunction instruction that builds the closure in the enclosing scope.
// declName lets `var f = function(){}` register f as the function's own
// name for recursive self-reference even though the literal itself is
// anonymous; an explicit `function name(){}` literal's own Name wins.
func (c *Compiler) compileFnLit(n *ast.FnLit, declName string) {
	pos := n.Pos()
	name := n.Name
	if name == "" {
		name = declName
	}

	outer := c.current()
	nested := symbol.NewEnclosedTable(outer.symtab)
	c.pushScope(nested, outer.dir, outer.file)

	if name != "" {
		nested.DefineFunctionName(name)
	}
	nested.DefineThis()
	if len(n.Params) > 255 {
		c.errorf(pos, "function %q has too many parameters (%d, max 255)", name, len(n.Params))
	}
	for _, p := range n.Params {
		if _, err := nested.Define(p, true); err != nil {
			c.errorf(pos, "%s", err.Error())
		}
	}

	for _, s := range n.Body.Stmts {
		c.compileStmt(s)
	}
	c.emit(bytecode.OpReturnNothing, n.Body.Pos())

	fs := c.popScope()

	fnData := &object.FunctionData{
		Name:      name,
		Compiled:  fs.result,
		NumLocals: nested.NumLocals(),
		NumParams: len(n.Params),
		OwnsData:  true,
	}
	constIx := c.addFunctionConstant(fnData)

	for _, free := range nested.FreeSymbols {
		c.loadSymbol(free, pos)
	}
	c.emit(bytecode.OpFunction, pos)
	c.current().result.WriteUint16(uint16(constIx), pos)
	c.current().result.WriteByte(byte(len(nested.FreeSymbols)), pos)
}
