package compiler

import (
	"math"

	"ape/internal/ast"
	"ape/internal/bytecode"
	"ape/internal/token"
)

// compileExpr emits code that leaves exactly one value on the evaluation
// stack.
func (c *Compiler) compileExpr(e ast.Expr) {
	pos := e.Pos()
	switch n := e.(type) {
	case *ast.NumberLit:
		c.emitNumber(n.Value, pos)
	case *ast.BoolLit:
		if n.Value {
			c.emit(bytecode.OpTrue, pos)
		} else {
			c.emit(bytecode.OpFalse, pos)
		}
	case *ast.NullLit:
		c.emit(bytecode.OpNull, pos)
	case *ast.StringLit:
		ix := c.internString(n.Value)
		c.emitU16(bytecode.OpConstant, uint16(ix), pos)
	case *ast.Ident:
		c.compileIdent(n)
	case *ast.ArrayLit:
		for _, el := range n.Elements {
			c.compileExpr(el)
		}
		c.emitU16(bytecode.OpArray, uint16(len(n.Elements)), pos)
	case *ast.MapLit:
		c.compileMapLit(n)
	case *ast.FnLit:
		c.compileFnLit(n, "")
	case *ast.Prefix:
		c.compilePrefix(n)
	case *ast.Infix:
		c.compileInfix(n)
	case *ast.Logical:
		c.compileLogical(n)
	case *ast.Ternary:
		c.compileTernary(n)
	case *ast.Call:
		c.compileCall(n)
	case *ast.Index:
		c.compileExpr(n.Recv)
		c.compileExpr(n.Index)
		c.emit(bytecode.OpGetIndex, pos)
	case *ast.Assign:
		c.compileAssign(n)
	case *ast.TemplateString:
		c.compileTemplateString(n)
	default:
		c.errorf(pos, "compiler: unhandled expression node %T", e)
		c.emit(bytecode.OpNull, pos)
	}
}

// emitNumber inlines a numeric literal as OpNumber's u64 IEEE-754 bit
// pattern operand; numbers never need a constant-pool slot.
func (c *Compiler) emitNumber(v float64, pos token.Position) {
	c.emit(bytecode.OpNumber, pos)
	c.current().result.WriteUint64(math.Float64bits(v), pos)
}

func (c *Compiler) compileIdent(n *ast.Ident) {
	pos := n.Pos()
	sym, ok := c.current().symtab.Resolve(n.Name)
	if !ok {
		c.errorf(pos, "undefined identifier %q", n.Name)
		c.emit(bytecode.OpNull, pos)
		return
	}
	c.loadSymbol(sym, pos)
}

func (c *Compiler) compileMapLit(n *ast.MapLit) {
	pos := n.Pos()
	c.emitU16(bytecode.OpMapStart, uint16(len(n.Pairs)), pos)
	for _, pair := range n.Pairs {
		if ident, ok := pair.Key.(*ast.Ident); ok {
			ix := c.internString(ident.Name)
			c.emitU16(bytecode.OpConstant, uint16(ix), pair.Key.Pos())
		} else {
			c.compileExpr(pair.Key)
		}
		c.compileExpr(pair.Value)
	}
	c.emitU16(bytecode.OpMapEnd, uint16(len(n.Pairs)), pos)
}

func (c *Compiler) compilePrefix(n *ast.Prefix) {
	c.compileExpr(n.Right)
	switch n.Op {
	case "-":
		c.emit(bytecode.OpMinus, n.Pos())
	case "!":
		c.emit(bytecode.OpNot, n.Pos())
	default:
		c.errorf(n.Pos(), "unknown prefix operator %q", n.Op)
	}
}

func (c *Compiler) compileInfix(n *ast.Infix) {
	pos := n.Pos()
	switch n.Op {
	case "<":
		c.compileExpr(n.Right)
		c.compileExpr(n.Left)
		c.emit(bytecode.OpComparePlain, pos)
		c.emit(bytecode.OpGreaterThan, pos)
		return
	case "<=":
		c.compileExpr(n.Right)
		c.compileExpr(n.Left)
		c.emit(bytecode.OpComparePlain, pos)
		c.emit(bytecode.OpGreaterEqual, pos)
		return
	case ">":
		c.compileExpr(n.Left)
		c.compileExpr(n.Right)
		c.emit(bytecode.OpComparePlain, pos)
		c.emit(bytecode.OpGreaterThan, pos)
		return
	case ">=":
		c.compileExpr(n.Left)
		c.compileExpr(n.Right)
		c.emit(bytecode.OpComparePlain, pos)
		c.emit(bytecode.OpGreaterEqual, pos)
		return
	case "==":
		c.compileExpr(n.Left)
		c.compileExpr(n.Right)
		c.emit(bytecode.OpCompareEq, pos)
		c.emit(bytecode.OpEqual, pos)
		return
	case "!=":
		c.compileExpr(n.Left)
		c.compileExpr(n.Right)
		c.emit(bytecode.OpCompareEq, pos)
		c.emit(bytecode.OpNotEqual, pos)
		return
	}

	c.compileExpr(n.Left)
	c.compileExpr(n.Right)
	switch n.Op {
	case "+":
		c.emit(bytecode.OpAdd, pos)
	case "-":
		c.emit(bytecode.OpSub, pos)
	case "*":
		c.emit(bytecode.OpMul, pos)
	case "/":
		c.emit(bytecode.OpDiv, pos)
	case "%":
		c.emit(bytecode.OpMod, pos)
	case "|":
		c.emit(bytecode.OpBitOr, pos)
	case "^":
		c.emit(bytecode.OpBitXor, pos)
	case "&":
		c.emit(bytecode.OpBitAnd, pos)
	case "<<":
		c.emit(bytecode.OpLShift, pos)
	case ">>":
		c.emit(bytecode.OpRShift, pos)
	default:
		c.errorf(pos, "unknown infix operator %q", n.Op)
	}
}

// compileLogical lowers && and || to short-circuiting jumps: the
// left-hand value is left on the stack (and the right never evaluated)
// when it alone already determines the result.
func (c *Compiler) compileLogical(n *ast.Logical) {
	pos := n.Pos()
	c.compileExpr(n.Left)
	c.emit(bytecode.OpDup, pos)
	var shortCircuit int
	if n.Op == "&&" {
		shortCircuit = c.emitU16(bytecode.OpJumpIfFalse, 0, pos)
	} else {
		shortCircuit = c.emitU16(bytecode.OpJumpIfTrue, 0, pos)
	}
	c.emit(bytecode.OpPop, pos)
	c.compileExpr(n.Right)
	end := c.current().result.Len()
	c.current().result.PatchUint16(shortCircuit+1, uint16(end))
}

func (c *Compiler) compileTernary(n *ast.Ternary) {
	pos := n.Pos()
	c.compileExpr(n.Cond)
	elseJump := c.emitU16(bytecode.OpJumpIfFalse, 0, pos)
	c.compileExpr(n.Then)
	endJump := c.emitU16(bytecode.OpJump, 0, pos)
	elseIP := c.current().result.Len()
	c.current().result.PatchUint16(elseJump+1, uint16(elseIP))
	c.compileExpr(n.Else)
	endIP := c.current().result.Len()
	c.current().result.PatchUint16(endJump+1, uint16(endIP))
}

func (c *Compiler) compileCall(n *ast.Call) {
	pos := n.Pos()
	if len(n.Args) > 255 {
		c.errorf(pos, "call has too many arguments (%d, max 255)", len(n.Args))
	}
	c.compileExpr(n.Fn)
	for _, a := range n.Args {
		c.compileExpr(a)
	}
	c.emitU8(bytecode.OpCall, byte(len(n.Args)), pos)
}

// compileTemplateString folds a template's parts (string literals plus
// tostring(expr) calls the parser already wrapped splices in) together
// with left-associative `+`, the same operator ordinary string
// concatenation uses.
func (c *Compiler) compileTemplateString(n *ast.TemplateString) {
	pos := n.Pos()
	if len(n.Parts) == 0 {
		ix := c.internString("")
		c.emitU16(bytecode.OpConstant, uint16(ix), pos)
		return
	}
	c.compileExpr(n.Parts[0])
	for _, part := range n.Parts[1:] {
		c.compileExpr(part)
		c.emit(bytecode.OpAdd, part.Pos())
	}
}
