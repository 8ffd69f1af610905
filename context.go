package ape

import (
	"path/filepath"
	"time"

	"ape/internal/compiler"
	"ape/internal/gc"
	"ape/internal/object"
	"ape/internal/symbol"
	"ape/internal/vm"
	"ape/internal/writer"
)

// Value is Ape's tagged runtime value, re-exported from internal/object
// so embedders never need to (and, being outside this module, cannot)
// import an internal package directly.
type Value = object.Value

// Value kinds and constructors, re-exported for native functions that
// inspect their arguments or build plain (non-heap) results.
const (
	KNull, KBool, KNumber, KString = object.KNull, object.KBool, object.KNumber, object.KString
	KArray, KMap, KError           = object.KArray, object.KMap, object.KError
)

var (
	Null   = object.Null
	Number = object.Number
	Bool   = object.Bool
)

// NativeFunc is the signature a host- or builtins-registered function
// implements: it receives its owning Context (for allocating heap
// values and reading configuration), its bound user data, and the
// already-evaluated argument slice, and returns either a result Value
// or a Go error to raise as a script-level exception.
type NativeFunc func(ctx *Context, userData interface{}, args []Value) (Value, error)

// Context bundles everything one independent script execution needs:
// one heap, one context-global namespace, one compiler and one VM.
// Non-reentrant and single-threaded — a Context
// belongs to exactly one goroutine at a time.
type Context struct {
	cfg Config

	heap           *gc.Heap
	contextGlobals *symbol.ContextStore
	comp           *compiler.Compiler
	machine        *vm.VM
	stdout         *writer.Writer
	resolver       *fileResolver
}

// CompilationResult is a compiled program ready to run, returned by
// Compile/CompileFile and consumed by Execute. It can be run more than
// once against the same Context.
type CompilationResult struct {
	fn *object.FunctionData
}

// NewContext builds a Context from cfg, registering no natives beyond
// what internal/builtins adds when a host opts in (see
// builtins.RegisterCore etc.).
func NewContext(cfg Config) *Context {
	if cfg.FileIO == nil {
		cfg.FileIO = osFileIO{}
	}

	var out *writer.Writer
	if cfg.Stdio != nil {
		out = writer.NewSink(cfg.Stdio)
	} else {
		out = writer.New()
	}

	contextGlobals := symbol.NewContextStore()
	resolver := &fileResolver{io: cfg.FileIO}
	comp := compiler.New(contextGlobals, resolver)
	heap := gc.NewHeap()
	machine := vm.New(heap, 0, 0, out, cfg.MaxExecutionTime)

	return &Context{
		cfg:            cfg,
		heap:           heap,
		contextGlobals: contextGlobals,
		comp:           comp,
		machine:        machine,
		stdout:         out,
		resolver:       resolver,
	}
}

// Close closes the Context's writer sink if it implements io.Closer.
// Nothing else about the Context changes.
func (c *Context) Close() {
	c.stdout.Close()
}

// Output returns whatever script output accumulated in the in-memory
// buffer; empty if Config.Stdio routed output to a host sink instead.
func (c *Context) Output() string { return c.stdout.String() }

// WriteString writes s to the Context's configured output sink, for use
// by native functions like println/print.
func (c *Context) WriteString(s string) { c.stdout.WriteString(s) }

// NewString allocates a heap string, for use by native functions
// building their return Value.
func (c *Context) NewString(s string) Value { return c.heap.NewString(s) }

// NewArray allocates a heap array over elems.
func (c *Context) NewArray(elems []Value) Value { return c.heap.NewArray(elems) }

// NewMap allocates an empty heap map.
func (c *Context) NewMap() Value { return c.heap.NewMap() }

// NewError allocates a script-level Error value carrying message.
func (c *Context) NewError(message string) Value { return c.heap.NewError(message, nil) }

// NewExternal wraps an opaque host value so script code can pass it
// around (e.g. a *sql.DB or *sql.Rows handle) without the VM ever
// inspecting its contents.
func (c *Context) NewExternal(ext *object.ExternalData) Value { return c.heap.NewExternal(ext) }

// WriteFile writes data to path through the Context's configured FileIO,
// for use by a host's own File.write-style native. The core module
// registers no such native itself (§1: file builtin tables are an
// external collaborator's responsibility) — this only exposes the hook.
func (c *Context) WriteFile(path string, data []byte) (int, error) {
	return c.cfg.FileIO.WriteFile(path, data)
}

// MaxExecutionTime reports the configured per-Execute time limit.
func (c *Context) MaxExecutionTime() time.Duration { return c.cfg.MaxExecutionTime }

// SetGlobal binds name as a context global visible to every script this
// Context compiles from now on (existing compiled programs are
// unaffected if they predate the binding and never reference name).
func (c *Context) SetGlobal(name string, v Value) {
	idx := c.contextGlobals.Define(name)
	c.machine.GrowContextGlobals(idx + 1)
	c.machine.SetContextGlobal(idx, v)
}

// GetGlobal reads back a previously bound context global.
func (c *Context) GetGlobal(name string) (Value, bool) {
	idx, ok := c.contextGlobals.Lookup(name)
	if !ok {
		return object.Null, false
	}
	return c.machine.GetContextGlobal(idx), true
}

// RegisterNative binds name to fn as a context global, callable from
// any script this Context compiles.
func (c *Context) RegisterNative(name string, fn NativeFunc, userData interface{}) {
	c.SetGlobal(name, c.wrapNative(name, fn, userData))
}

// RegisterNamespace binds name to a map of natives, so script code
// calls them as name.fn(...) — the same protocol a host would use to
// register its own domain namespace.
func (c *Context) RegisterNamespace(name string, fns map[string]NativeFunc) {
	ns := c.heap.NewMap()
	m := ns.Map()
	for fname, fn := range fns {
		m.Set(c.heap.NewString(fname), c.wrapNative(name+"."+fname, fn, nil))
	}
	c.SetGlobal(name, ns)
}

func (c *Context) wrapNative(name string, fn NativeFunc, userData interface{}) Value {
	goFn := vm.GoFunc(func(_ *vm.VM, ud interface{}, args []object.Value) (object.Value, error) {
		return fn(c, ud, args)
	})
	return c.heap.NewNative(&object.NativeData{Name: name, Fn: goFn, UserData: userData})
}

// fileResolver implements compiler.ImportResolver over a FileIO,
// resolving relative import paths against the importing file's
// directory.
type fileResolver struct {
	io FileIO
}

func (r *fileResolver) Resolve(fromDir, path string) (string, string, error) {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(fromDir, path)
	}
	full = filepath.Clean(full)
	if filepath.Ext(full) == "" {
		full += ".ape"
	}
	src, err := r.io.ReadFile(full)
	if err != nil {
		return "", "", err
	}
	return full, src, nil
}

func (r *fileResolver) Dir(canonicalPath string) string { return filepath.Dir(canonicalPath) }
