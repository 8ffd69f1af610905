// Package ape embeds Ape, a small dynamically-typed scripting language,
// as a library: compile source to bytecode, execute it against a host
// Context, and exchange Values with the running script through native
// functions and globals.
package ape

import (
	"ape/internal/langerr"
	"ape/internal/object"
	"ape/internal/parser"
)

// Compile parses and compiles source (attributed to file for error
// positions and relative imports) into a CompilationResult ready for
// Execute.
func (c *Context) Compile(source, file string) (*CompilationResult, error) {
	p := parser.New(source, file, c.cfg.ReplMode)
	stmts := p.ParseProgram()
	if p.Errors.HasErrors() {
		return nil, p.Errors
	}

	// Each Compile call's own diagnostics shouldn't be polluted by a
	// previous one's leftovers; the module-global offset and import
	// cache on c.comp, by contrast, persist across calls on purpose so
	// a REPL's later chunks can see earlier ones' globals.
	c.comp.Errors = langerr.NewList()

	dir := ""
	if file != "" {
		dir = c.resolver.Dir(file)
	}
	result, numLocals, err := c.comp.CompileProgram(stmts, dir, file)
	if err != nil {
		return nil, err
	}

	fn := &object.FunctionData{
		Name:      "<main>",
		Compiled:  result,
		NumLocals: numLocals,
		NumParams: 0,
		OwnsData:  false,
	}
	return &CompilationResult{fn: fn}, nil
}

// CompileFile reads path through the Context's FileIO and compiles it.
func (c *Context) CompileFile(path string) (*CompilationResult, error) {
	src, err := c.cfg.FileIO.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return c.Compile(src, path)
}

// Execute runs a previously compiled program and returns its final
// expression value (the last statement's value, REPL-echo style) or the
// first runtime error raised.
func (c *Context) Execute(r *CompilationResult) (Value, error) {
	c.machine.GrowModuleGlobals(c.comp.NumModuleGlobals())
	c.machine.GrowContextGlobals(c.contextGlobals.Len())
	c.machine.Reset()
	return c.machine.Run(r.fn)
}

// ExecuteSource is Compile followed by Execute in one call, for the
// common one-shot scripting case.
func (c *Context) ExecuteSource(source string) (Value, error) {
	r, err := c.Compile(source, "")
	if err != nil {
		return object.Null, err
	}
	return c.Execute(r)
}
