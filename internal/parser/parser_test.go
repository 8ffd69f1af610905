package parser

import (
	"testing"

	"ape/internal/ast"

	"github.com/stretchr/testify/require"
)

// parseString parses a whole program and returns its statements plus a
// flag reporting whether the parser accumulated any errors.
func parseString(input string) ([]ast.Stmt, *Parser) {
	p := New(input, "test", false)
	stmts := p.ParseProgram()
	return stmts, p
}

func assertParseSuccess(t *testing.T, input, description string) []ast.Stmt {
	t.Helper()
	stmts, p := parseString(input)
	require.False(t, p.Errors.HasErrors(), "%s: unexpected parse errors: %v", description, p.Errors.Items())
	require.NotNil(t, stmts, description)
	return stmts
}

func assertParseError(t *testing.T, input, description string) {
	t.Helper()
	_, p := parseString(input)
	require.True(t, p.Errors.HasErrors(), "%s: expected parse errors but got none", description)
}

func TestVariableDeclarations(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"var with value", `var x = 1;`, true},
		{"const with value", `const y = "hi";`, true},
		{"var missing name", `var = 1;`, false},
		{"var missing assign", `var x 1;`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldPass {
				assertParseSuccess(t, tt.input, tt.name)
			} else {
				assertParseError(t, tt.input, tt.name)
			}
		})
	}
}

func TestPrecedenceClimbing(t *testing.T) {
	stmts := assertParseSuccess(t, `1 + 2 * 3;`, "arithmetic precedence")
	require.Len(t, stmts, 1)
	exprStmt, ok := stmts[0].(*ast.ExprStmt)
	require.True(t, ok)
	infix, ok := exprStmt.X.(*ast.Infix)
	require.True(t, ok)
	require.Equal(t, "+", infix.Op)
	_, rightIsMul := infix.Right.(*ast.Infix)
	require.True(t, rightIsMul, "multiplication should bind tighter than addition")
}

func TestTernaryExpression(t *testing.T) {
	stmts := assertParseSuccess(t, `var x = a ? b : c;`, "ternary")
	def := stmts[0].(*ast.DefineStmt)
	_, ok := def.Value.(*ast.Ternary)
	require.True(t, ok)
}

func TestCompoundAssignmentDesugars(t *testing.T) {
	stmts := assertParseSuccess(t, `x += 1;`, "compound assign")
	exprStmt := stmts[0].(*ast.ExprStmt)
	assign, ok := exprStmt.X.(*ast.Assign)
	require.True(t, ok)
	require.False(t, assign.IsPostfix)
	infix, ok := assign.Src.(*ast.Infix)
	require.True(t, ok)
	require.Equal(t, "+", infix.Op)
}

func TestPostfixIncrementYieldsPreValue(t *testing.T) {
	stmts := assertParseSuccess(t, `x++;`, "postfix increment")
	exprStmt := stmts[0].(*ast.ExprStmt)
	assign, ok := exprStmt.X.(*ast.Assign)
	require.True(t, ok)
	require.True(t, assign.IsPostfix)
}

func TestPrefixIncrementDesugarsToAssign(t *testing.T) {
	stmts := assertParseSuccess(t, `++x;`, "prefix increment")
	exprStmt := stmts[0].(*ast.ExprStmt)
	assign, ok := exprStmt.X.(*ast.Assign)
	require.True(t, ok)
	require.False(t, assign.IsPostfix)
}

func TestDotSugarsToIndex(t *testing.T) {
	stmts := assertParseSuccess(t, `a.b;`, "dot sugar")
	exprStmt := stmts[0].(*ast.ExprStmt)
	idx, ok := exprStmt.X.(*ast.Index)
	require.True(t, ok)
	key, ok := idx.Index.(*ast.StringLit)
	require.True(t, ok)
	require.Equal(t, "b", key.Value)
}

func TestTemplateStringLowersToTostringCalls(t *testing.T) {
	stmts := assertParseSuccess(t, "`hi ${name}!`;", "template string")
	exprStmt := stmts[0].(*ast.ExprStmt)
	tpl, ok := exprStmt.X.(*ast.TemplateString)
	require.True(t, ok)
	require.Len(t, tpl.Parts, 3)
	_, isString := tpl.Parts[0].(*ast.StringLit)
	require.True(t, isString)
	call, ok := tpl.Parts[1].(*ast.Call)
	require.True(t, ok)
	fnIdent, ok := call.Fn.(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, "tostring", fnIdent.Name)
}

func TestClassicForLoop(t *testing.T) {
	stmts := assertParseSuccess(t, `for (var i = 0; i < 10; i += 1) { println(i); }`, "classic for")
	forStmt, ok := stmts[0].(*ast.ForStmt)
	require.True(t, ok)
	require.NotNil(t, forStmt.Init)
	require.NotNil(t, forStmt.Test)
	require.NotNil(t, forStmt.Update)
}

func TestForEachLoop(t *testing.T) {
	stmts := assertParseSuccess(t, `for item in items { println(item); }`, "for-each")
	fe, ok := stmts[0].(*ast.ForeachStmt)
	require.True(t, ok)
	require.Equal(t, "item", fe.IterName)
}

func TestIfElseIfElseChain(t *testing.T) {
	stmts := assertParseSuccess(t, `
		if a { x(); } else if b { y(); } else { z(); }
	`, "if/else-if/else")
	ifStmt, ok := stmts[0].(*ast.IfStmt)
	require.True(t, ok)
	require.Len(t, ifStmt.Cases, 3)
	require.Nil(t, ifStmt.Cases[2].Cond)
}

func TestFunctionDeclAndCall(t *testing.T) {
	stmts := assertParseSuccess(t, `
		function add(a, b) { return a + b; }
		add(1, 2);
	`, "function decl and call")
	require.Len(t, stmts, 2)
	def, ok := stmts[0].(*ast.DefineStmt)
	require.True(t, ok)
	fn, ok := def.Value.(*ast.FnLit)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, fn.Params)
}

func TestArrayAndMapLiterals(t *testing.T) {
	stmts := assertParseSuccess(t, `var m = {a: 1, "b": 2}; var arr = [1, 2, 3,];`, "array/map literal")
	mapDef := stmts[0].(*ast.DefineStmt)
	mapLit, ok := mapDef.Value.(*ast.MapLit)
	require.True(t, ok)
	require.Len(t, mapLit.Pairs, 2)

	arrDef := stmts[1].(*ast.DefineStmt)
	arrLit, ok := arrDef.Value.(*ast.ArrayLit)
	require.True(t, ok)
	require.Len(t, arrLit.Elements, 3)
}

func TestImportStmt(t *testing.T) {
	stmts := assertParseSuccess(t, `import "math";`, "import")
	imp, ok := stmts[0].(*ast.ImportStmt)
	require.True(t, ok)
	require.Equal(t, "math", imp.Path)
}

func TestQualifiedIdentifier(t *testing.T) {
	stmts := assertParseSuccess(t, `math::pi;`, "qualified identifier")
	exprStmt := stmts[0].(*ast.ExprStmt)
	ident, ok := exprStmt.X.(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, "math::pi", ident.Name)
}

func TestRecoverStmt(t *testing.T) {
	stmts := assertParseSuccess(t, `recover (err) { println(err); }`, "recover")
	rec, ok := stmts[0].(*ast.RecoverStmt)
	require.True(t, ok)
	require.Equal(t, "err", rec.ErrName)
}

func TestReplModeBareBraceIsMapLiteral(t *testing.T) {
	p := New(`{a: 1}`, "repl", true)
	stmts := p.ParseProgram()
	require.False(t, p.Errors.HasErrors())
	require.Len(t, stmts, 1)
	exprStmt, ok := stmts[0].(*ast.ExprStmt)
	require.True(t, ok)
	_, isMap := exprStmt.X.(*ast.MapLit)
	require.True(t, isMap)
}

func TestNonReplModeBareBraceIsBlock(t *testing.T) {
	p := New(`{ var x = 1; }`, "file", false)
	stmts := p.ParseProgram()
	require.False(t, p.Errors.HasErrors())
	require.Len(t, stmts, 1)
	_, isBlock := stmts[0].(*ast.BlockStmt)
	require.True(t, isBlock)
}

func TestMissingPrefixParseFnProducesError(t *testing.T) {
	assertParseError(t, `)`, "stray closing paren")
}
