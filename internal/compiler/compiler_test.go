package compiler

import (
	"testing"

	"ape/internal/bytecode"
	"ape/internal/object"
	"ape/internal/parser"
	"ape/internal/symbol"

	"github.com/stretchr/testify/require"
)

func compileSource(t *testing.T, source string) (*bytecode.CompilationResult, *Compiler) {
	t.Helper()
	p := parser.New(source, "test", false)
	stmts := p.ParseProgram()
	require.False(t, p.Errors.HasErrors(), "parse errors: %v", p.Errors.Items())

	c := New(symbol.NewContextStore(), nil)
	result, _, err := c.CompileProgram(stmts, "", "test")
	require.NoError(t, err)
	require.NotNil(t, result)
	return result, c
}

// decodeOps walks a CompilationResult and returns the sequence of opcodes
// it contains, skipping operand bytes.
func decodeOps(r *bytecode.CompilationResult) []bytecode.Op {
	var ops []bytecode.Op
	ip := 0
	for ip < len(r.Bytecode) {
		op := bytecode.Op(r.Bytecode[ip])
		ops = append(ops, op)
		ip += 1 + bytecode.OperandWidth(op)
	}
	return ops
}

func TestPositionsParallelBytecode(t *testing.T) {
	result, _ := compileSource(t, `var x = 1 + 2 * 3;`)
	require.Equal(t, len(result.Bytecode), len(result.Positions))
}

func TestStringLiteralsDedup(t *testing.T) {
	result, _ := compileSource(t, `var a = "hi"; var b = "hi";`)
	var seen string
	count := 0
	for _, constant := range result.Constants {
		if s, ok := constant.(string); ok && s == "hi" {
			seen = s
			count++
		}
	}
	require.Equal(t, "hi", seen)
	require.Equal(t, 1, count, "the same string literal should dedup to one constant pool slot")
}

func TestComparisonUsesCompareConsumeProtocol(t *testing.T) {
	result, _ := compileSource(t, `var x = 1 < 2;`)
	ops := decodeOps(result)
	require.Contains(t, ops, bytecode.OpComparePlain)
	require.Contains(t, ops, bytecode.OpGreaterThan)

	result2, _ := compileSource(t, `var y = 1 == 2;`)
	ops2 := decodeOps(result2)
	require.Contains(t, ops2, bytecode.OpCompareEq)
	require.Contains(t, ops2, bytecode.OpEqual)
}

func TestIfElseJumpsStayInBounds(t *testing.T) {
	result, _ := compileSource(t, `
		var x = 1;
		if (x == 1) { x = 2; } else if (x == 2) { x = 3; } else { x = 4; }
	`)
	for ip := 0; ip < len(result.Bytecode); {
		op := bytecode.Op(result.Bytecode[ip])
		width := bytecode.OperandWidth(op)
		if op == bytecode.OpJump || op == bytecode.OpJumpIfFalse || op == bytecode.OpJumpIfTrue {
			target := result.ReadUint16(ip + 1)
			require.LessOrEqual(t, int(target), len(result.Bytecode))
		}
		ip += 1 + width
	}
}

func TestWhileLoopBreakContinueCompiles(t *testing.T) {
	result, c := compileSource(t, `
		var i = 0;
		while (i < 10) {
			i = i + 1;
			if (i == 5) { continue; }
			if (i == 8) { break; }
		}
	`)
	require.False(t, c.Errors.HasErrors())
	ops := decodeOps(result)
	require.Contains(t, ops, bytecode.OpJump)
}

func TestBreakOutsideLoopIsCompileError(t *testing.T) {
	p := parser.New(`break;`, "test", false)
	stmts := p.ParseProgram()
	require.False(t, p.Errors.HasErrors())
	c := New(symbol.NewContextStore(), nil)
	_, _, err := c.CompileProgram(stmts, "", "test")
	require.Error(t, err)
}

func TestFunctionLiteralEmitsOpFunction(t *testing.T) {
	result, _ := compileSource(t, `var add = function(a, b) { return a + b; };`)
	ops := decodeOps(result)
	require.Contains(t, ops, bytecode.OpFunction)

	found := false
	for _, constant := range result.Constants {
		if fn, ok := constant.(*object.FunctionData); ok {
			require.Equal(t, 2, fn.NumParams)
			found = true
		}
	}
	require.True(t, found, "function literal should add an *object.FunctionData constant")
}

func TestClosureCapturesFreeVariable(t *testing.T) {
	result, c := compileSource(t, `
		var counter = function() {
			var n = 0;
			return function() {
				n = n + 1;
				return n;
			};
		};
	`)
	require.False(t, c.Errors.HasErrors())
	ops := decodeOps(result)
	require.Contains(t, ops, bytecode.OpFunction)
}

func TestForeachLowersToIndexLoop(t *testing.T) {
	result, c := compileSource(t, `
		var items = [1, 2, 3];
		for item in items { var x = item; }
	`)
	require.False(t, c.Errors.HasErrors())
	ops := decodeOps(result)
	require.Contains(t, ops, bytecode.OpGetValueAt)
	require.Contains(t, ops, bytecode.OpLen)
}

func TestRecoverStmtCompiles(t *testing.T) {
	result, c := compileSource(t, `
		recover (err) {
			var msg = err;
		}
	`)
	require.False(t, c.Errors.HasErrors())
	ops := decodeOps(result)
	require.Contains(t, ops, bytecode.OpSetRecover)
}

func TestImportOutsideModuleScopeIsError(t *testing.T) {
	p := parser.New(`
		var f = function() {
			import "math";
		};
	`, "test", false)
	stmts := p.ParseProgram()
	require.False(t, p.Errors.HasErrors())
	c := New(symbol.NewContextStore(), nil)
	_, _, err := c.CompileProgram(stmts, "", "test")
	require.Error(t, err)
}

func TestMapLiteralBareAndStringKeysShareSlots(t *testing.T) {
	result, c := compileSource(t, `var m = {a: 1, "a": 2};`)
	require.False(t, c.Errors.HasErrors())
	ops := decodeOps(result)
	require.Contains(t, ops, bytecode.OpMapStart)
	require.Contains(t, ops, bytecode.OpMapEnd)

	count := 0
	for _, constant := range result.Constants {
		if s, ok := constant.(string); ok && s == "a" {
			count++
		}
	}
	require.Equal(t, 1, count, "the bare key a and the string key \"a\" should share one constant pool slot")
}
