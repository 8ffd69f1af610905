package compiler

import (
	"strings"

	"ape/internal/ast"
	"ape/internal/bytecode"
	"ape/internal/object"
	"ape/internal/parser"
	"ape/internal/symbol"
)

// compileImport resolves and (if not already compiled) compiles the
// imported file and emits a call that runs its top-level code at the
// import site, then copies its exported module-global symbols into
// the current file's table under `alias::name` qualified bindings:
// canonical path resolution, cycle detection via an in-progress file
// stack, compile-once caching, and qualified symbol import rather than
// a wholesale namespace merge.
func (c *Compiler) compileImport(n *ast.ImportStmt) {
	pos := n.Pos()
	fs := c.current()

	if fs.symtab.Outer != nil {
		c.errorf(pos, "import is only legal in module-global scope")
		return
	}
	if fs.loadedModules[n.Path] {
		c.errorf(pos, "module %q already imported in this file", n.Path)
		return
	}
	if c.resolver == nil {
		c.errorf(pos, "import %q: no module resolver configured", n.Path)
		return
	}

	canonical, source, err := c.resolver.Resolve(fs.dir, n.Path)
	if err != nil {
		c.errorf(pos, "import %q: %s", n.Path, err.Error())
		return
	}
	fs.loadedModules[n.Path] = true

	for _, inProgress := range c.fileStack {
		if inProgress == canonical {
			c.errorf(pos, "import cycle detected: %s", canonical)
			return
		}
	}

	mod, known := c.modules[canonical]
	if !known || !mod.compiled {
		p := parser.New(source, canonical, false)
		stmts := p.ParseProgram()
		if p.Errors.HasErrors() {
			for _, e := range p.Errors.Items() {
				c.Errors.Add(e)
			}
			return
		}
		dir := c.resolver.Dir(canonical)
		modResult, modLocals, cerr := c.CompileProgram(stmts, dir, canonical)
		if cerr != nil {
			return
		}
		mod = c.modules[canonical]

		constIx := c.addFunctionConstant(&object.FunctionData{Name: canonical, Compiled: modResult, NumLocals: modLocals})
		c.emit(bytecode.OpFunction, pos)
		c.current().result.WriteUint16(uint16(constIx), pos)
		c.current().result.WriteByte(0, pos)
		c.emitU8(bytecode.OpCall, 0, pos)
		c.emit(bytecode.OpPop, pos)
	}

	alias := moduleAlias(n.Path)
	for name, sym := range mod.exports {
		qualified := alias + "::" + name
		imported := symbol.Symbol{Name: qualified, Kind: symbol.ModuleGlobal, Index: sym.Index, Assignable: false}
		fs.symtab.DefineImported(qualified, imported)
	}
}

// moduleAlias derives the `modname` half of a `modname::sym` reference
// from an import path: its final path segment with any extension
// stripped, e.g. "lib/shapes.ape" -> "shapes".
func moduleAlias(importPath string) string {
	p := importPath
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	if i := strings.LastIndexByte(p, '.'); i > 0 {
		p = p[:i]
	}
	return p
}
