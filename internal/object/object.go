package object

import "ape/internal/bytecode"

// ObjKind tags which payload an Object record carries.
type ObjKind byte

const (
	OString ObjKind = iota
	OArray
	OMap
	OFunction
	ONative
	OError
	OExternal
)

// Object is one heap record: a kind tag, mark bit, pool-free bit, plus
// one kind-specific payload. Every kind's payload lives behind its own
// pointer field; the collector and pool treat Object uniformly via Kind,
// Marked and PoolFree without needing an interface payload.
type Object struct {
	Kind     ObjKind
	Marked   bool
	PoolFree bool

	Str    *StringData
	Arr    *ArrayData
	Map    *MapData
	Fn     *FunctionData
	Native *NativeData
	Err    *ErrorData
	Ext    *ExternalData
}

// StringData holds a string's bytes and lazily-computed djb2 hash.
type StringData struct {
	Bytes []byte
	Hash  uint32 // 0 means "not yet computed"
}

func NewString(s string) *StringData { return &StringData{Bytes: []byte(s)} }

func (s *StringData) String() string { return string(s.Bytes) }

func (s *StringData) Len() int { return len(s.Bytes) }

// HashOf returns the djb2 hash of the string's current bytes, computing
// and caching it on first use. djb2's zero result is remapped to 1 so
// that 0 unambiguously means "uncomputed".
func (s *StringData) HashOf() uint32 {
	if s.Hash != 0 {
		return s.Hash
	}
	var h uint32 = 5381
	for _, b := range s.Bytes {
		h = ((h << 5) + h) + uint32(b)
	}
	if h == 0 {
		h = 1
	}
	s.Hash = h
	return h
}

// ArrayData is an ordered sequence of Values; owns its element storage.
type ArrayData struct {
	Elements []Value
}

// FunctionData is a compiled script function: name, a reference to its
// compiled bytecode, arity/local counts, and its captured free values.
// OwnsData is false only for the synthetic "main" function the VM builds
// from a borrowed CompilationResult.
type FunctionData struct {
	Name      string
	Compiled  *bytecode.CompilationResult
	NumLocals int
	NumParams int
	Free      []Value
	OwnsData  bool

	// ConstCache lazily mirrors Compiled.Constants, one materialized heap
	// Value per compile-time constant, populated on first use by the VM
	// so a string/function-literal constant only gets heap-allocated
	// once no matter how many times the bytecode that reads it runs.
	ConstCache []Value
}

// NativeData is a host-registered native function. Fn is stored as
// interface{} and type-asserted by the VM package to its concrete
// GoFunc type, avoiding an object<->vm import cycle while still letting
// natives close over whatever state they need.
type NativeData struct {
	Name     string
	Fn       interface{}
	UserData interface{}
}

// ErrorData is a language-level Error value: a message plus an optional,
// lazily-built traceback.
type ErrorData struct {
	Message   string
	Traceback []TraceEntry
}

// TraceEntry is one frame of a captured traceback.
type TraceEntry struct {
	Function string
	File     string
	Line     int
	Column   int
}

// ExternalData wraps an opaque host pointer with destructor/copy hooks.
type ExternalData struct {
	Ptr     interface{}
	Destroy func(interface{})
	Copy    func(interface{}) interface{}
}
