package vm

import (
	"testing"

	"ape/internal/compiler"
	"ape/internal/gc"
	"ape/internal/object"
	"ape/internal/parser"
	"ape/internal/symbol"
	"ape/internal/writer"

	"github.com/stretchr/testify/require"
)

func runSource(t *testing.T, source string) (object.Value, *VM, error) {
	t.Helper()
	p := parser.New(source, "test", false)
	stmts := p.ParseProgram()
	require.False(t, p.Errors.HasErrors(), "parse errors: %v", p.Errors.Items())

	c := compiler.New(symbol.NewContextStore(), nil)
	result, numLocals, err := c.CompileProgram(stmts, "", "test")
	require.NoError(t, err)

	heap := gc.NewHeap()
	machine := New(heap, c.NumModuleGlobals(), 0, writer.New(), 0)
	fn := &object.FunctionData{Name: "<main>", Compiled: result, NumLocals: numLocals}
	v, runErr := machine.Run(fn)
	return v, machine, runErr
}

func TestFrameBalanceAfterCompletedCall(t *testing.T) {
	_, machine, err := runSource(t, `function add(a,b){ return a+b } var x = add(1,2);`)
	require.NoError(t, err)
	require.Equal(t, 0, machine.framesIndex, "frame stack should be empty once the top-level program returns")
	require.Equal(t, object.Number(3), machine.GetModuleGlobal(1))
}

func TestStackBalanceAfterExpressionStatement(t *testing.T) {
	_, machine, err := runSource(t, `1 + 2;`)
	require.NoError(t, err)
	require.Equal(t, object.Number(3), machine.LastPopped())
}

func TestClosureCapturesSharedUpvalue(t *testing.T) {
	source := `
	function mk(){ var n=0; return function(){ n = n + 1; return n } }
	var c = mk();
	var a = c();
	var b = c();
	`
	_, machine, err := runSource(t, source)
	require.NoError(t, err)
	require.Equal(t, object.Number(1), machine.GetModuleGlobal(2))
	require.Equal(t, object.Number(2), machine.GetModuleGlobal(3))
}

func TestGCPreservesReachableArrayIdentityAndContent(t *testing.T) {
	source := `
	var a = [1,2,3];
	var b = a;
	`
	p := parser.New(source, "test", false)
	stmts := p.ParseProgram()
	require.False(t, p.Errors.HasErrors())

	c := compiler.New(symbol.NewContextStore(), nil)
	result, numLocals, err := c.CompileProgram(stmts, "", "test")
	require.NoError(t, err)

	heap := gc.NewHeap()
	machine := New(heap, c.NumModuleGlobals(), 0, writer.New(), 0)
	fn := &object.FunctionData{Name: "<main>", Compiled: result, NumLocals: numLocals}
	_, err = machine.Run(fn)
	require.NoError(t, err)

	aVal := machine.GetModuleGlobal(0)
	require.Equal(t, object.KArray, aVal.Kind)
	obj := aVal.Obj

	gc.Collect(heap, machine.roots())

	bVal := machine.GetModuleGlobal(1)
	require.Same(t, obj, bVal.Obj, "a live array's identity must survive a collection")
	require.Equal(t, 3, len(bVal.Array().Elements))
}

func TestDivisionByZeroYieldsNonFiniteNotError(t *testing.T) {
	v, _, err := runSource(t, `1/0;`)
	require.NoError(t, err)
	require.True(t, v.Num > 1e300 || v.Num < -1e300, "expected a non-finite result, got %v", v.Num)
}

func TestModByZeroRaisesRuntimeError(t *testing.T) {
	_, _, err := runSource(t, `1 % 0;`)
	require.Error(t, err)
}

func TestOutOfRangeArrayReadYieldsNullNotError(t *testing.T) {
	v, _, err := runSource(t, `var a = [1,2,3]; a[99];`)
	require.NoError(t, err)
	require.Equal(t, object.Null, v)
}

func TestOutOfRangeArrayWriteIsRuntimeError(t *testing.T) {
	_, _, err := runSource(t, `var a = [1,2,3]; a[99] = 1;`)
	require.Error(t, err)
}

func TestNegativeArrayIndexWrapsFromEnd(t *testing.T) {
	v, _, err := runSource(t, `var a = [1,2,3]; a[-1];`)
	require.NoError(t, err)
	require.Equal(t, object.Number(3), v)
}
