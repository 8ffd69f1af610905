package ape_test

import (
	"bytes"
	"fmt"
	"testing"

	"ape"
	"ape/internal/builtins"

	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) (*ape.Context, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	ctx := ape.NewContext(ape.Config{Stdio: &out})
	builtins.RegisterCore(ctx)
	return ctx, &out
}

func run(t *testing.T, source string) string {
	t.Helper()
	ctx, out := newTestContext(t)
	defer ctx.Close()
	_, err := ctx.ExecuteSource(source)
	require.NoError(t, err)
	return out.String()
}

func TestArithmeticAndPrecedence(t *testing.T) {
	require.Equal(t, "7\n", run(t, `println(1 + 2 * 3)`))
}

func TestClosuresShareUpvalueByReference(t *testing.T) {
	source := `function mk(){ var n=0; return function(){ n = n + 1; return n } } var c = mk(); println(c()); println(c()); println(c())`
	require.Equal(t, "1\n2\n3\n", run(t, source))
}

func TestMapLiteralBareKeyAndIndexLookup(t *testing.T) {
	require.Equal(t, "3\n", run(t, `var m = { a: 1, "b": 2 }; println(m.a + m["b"])`))
}

func TestRecoverCatchesCrash(t *testing.T) {
	source := `function f(){ recover(e){ return "caught:" + tostring(e) } crash("boom") } println(f())`
	out := run(t, source)
	require.Contains(t, out, "boom")
	require.Contains(t, out, "caught:")
}

func TestTemplateStringSplice(t *testing.T) {
	require.Equal(t, "n*n = 16\n", run(t, "var n = 4; println(`n*n = ${ n*n }`)"))
}

// memFileIO serves import sources from an in-memory map, keyed by the
// canonical path ape.fileResolver joins against the importing file's
// directory.
type memFileIO struct {
	files map[string]string
}

func (m *memFileIO) ReadFile(path string) (string, error) {
	src, ok := m.files[path]
	if !ok {
		return "", fmt.Errorf("no such file: %s", path)
	}
	return src, nil
}

func (m *memFileIO) WriteFile(path string, data []byte) (int, error) {
	if m.files == nil {
		m.files = make(map[string]string)
	}
	m.files[path] = string(data)
	return len(data), nil
}

func TestImportAcrossFiles(t *testing.T) {
	files := &memFileIO{files: map[string]string{
		"lib.ape":  `var hello = function(name){ return "hi " + name }`,
		"main.ape": `import "lib"; println(lib::hello("world"))`,
	}}
	var out bytes.Buffer
	ctx := ape.NewContext(ape.Config{Stdio: &out, FileIO: files})
	defer ctx.Close()
	builtins.RegisterCore(ctx)

	result, err := ctx.CompileFile("main.ape")
	require.NoError(t, err)
	_, err = ctx.Execute(result)
	require.NoError(t, err)
	require.Equal(t, "hi world\n", out.String())
}

func TestWriteFileGoesThroughConfiguredFileIO(t *testing.T) {
	files := &memFileIO{files: map[string]string{}}
	ctx := ape.NewContext(ape.Config{FileIO: files})
	defer ctx.Close()

	n, err := ctx.WriteFile("out.txt", []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", files.files["out.txt"])
}

func TestImportTwiceInSameFileIsCompileError(t *testing.T) {
	files := &memFileIO{files: map[string]string{
		"lib.ape":  `var hello = function(name){ return "hi " + name }`,
		"main.ape": `import "lib"; import "lib"; println(lib::hello("world"))`,
	}}
	ctx := ape.NewContext(ape.Config{FileIO: files})
	defer ctx.Close()
	builtins.RegisterCore(ctx)

	_, err := ctx.CompileFile("main.ape")
	require.Error(t, err)
}

func TestNegativeArrayIndexReadsFromEnd(t *testing.T) {
	require.Equal(t, "3\n", run(t, `var a = [1,2,3]; println(a[-1])`))
}

func TestOutOfRangeArrayReadYieldsNull(t *testing.T) {
	require.Equal(t, "null\n", run(t, `var a = [1,2,3]; println(a[10])`))
}

func TestDivisionByZeroIsNonFinite(t *testing.T) {
	require.Equal(t, "true\n", run(t, `var x = 1/0; println(x > 100000000 || x < -100000000 || x != x)`))
}

func TestModTruncatesOperandsBeforeRemainder(t *testing.T) {
	require.Equal(t, "1\n", run(t, `println(5.5 % 2)`))
}

func TestModByZeroIsRuntimeError(t *testing.T) {
	ctx, _ := newTestContext(t)
	defer ctx.Close()
	_, err := ctx.ExecuteSource(`var x = 1 % 0;`)
	require.Error(t, err)
}

func TestRangeStepZeroIsRuntimeError(t *testing.T) {
	ctx, _ := newTestContext(t)
	defer ctx.Close()
	_, err := ctx.ExecuteSource(`range(0, 10, 0);`)
	require.Error(t, err)
}

func TestDeepCopyIsIdentityDistinctAndIndependent(t *testing.T) {
	source := `
	var a = { inner: [1,2,3] };
	var b = deep_copy(a);
	b.inner[0] = 99;
	println(a.inner[0]); println(b.inner[0]);
	`
	require.Equal(t, "1\n99\n", run(t, source))
}

func TestSliceWithSingleIndexPastStartReturnsEmptyString(t *testing.T) {
	require.Equal(t, "\n", run(t, `println(slice("hi", -10))`))
}

func TestSliceTwoArgFormRunsToEnd(t *testing.T) {
	require.Equal(t, "llo\n", run(t, `println(slice("hello", 2))`))
}

func TestOperatorOverloadAddDispatchesToMapMethod(t *testing.T) {
	source := `
	var vec = { x: 1, y: 2, __operator_add__: function(a, b){ return a.x + b.x } };
	var other = { x: 10, y: 20 };
	println(vec + other);
	`
	require.Equal(t, "11\n", run(t, source))
}

func TestReverseIsInvolutionForArraysAndStrings(t *testing.T) {
	source := `
	var a = [1,2,3];
	println(reverse(reverse(a))[0]);
	println(reverse(reverse("abc")));
	`
	require.Equal(t, "1\nabc\n", run(t, source))
}

func TestSetGlobalVisibleToScript(t *testing.T) {
	ctx, out := newTestContext(t)
	defer ctx.Close()
	ctx.SetGlobal("greeting", ctx.NewString("hello from host"))

	result, err := ctx.Compile(`println(greeting)`, "")
	require.NoError(t, err)
	_, err = ctx.Execute(result)
	require.NoError(t, err)
	require.Equal(t, "hello from host\n", out.String())
}

func TestRegisterNamespaceDotAccess(t *testing.T) {
	ctx, out := newTestContext(t)
	defer ctx.Close()
	ctx.RegisterNamespace("mathx", map[string]ape.NativeFunc{
		"double": func(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
			return ape.Number(args[0].Num * 2), nil
		},
	})

	_, err := ctx.ExecuteSource(`println(mathx.double(21))`)
	require.NoError(t, err)
	require.Equal(t, "42\n", out.String())
}
