package compiler

import (
	"ape/internal/ast"
	"ape/internal/bytecode"
	"ape/internal/token"
)

// compileAssign emits an assignment expression. An assignment's own value
// is always the newly stored value — except IsPostfix (`x++`/`x--`),
// whose value is the pre-increment one — achieved uniformly by pushing
// whichever value the expression must yield first, then the value that
// gets consumed by the store, so the store's pop always leaves the
// right one behind.
func (c *Compiler) compileAssign(n *ast.Assign) {
	pos := n.Pos()
	if n.IsPostfix {
		c.compileExpr(n.Dst)
	}
	c.compileExpr(n.Src)
	if !n.IsPostfix {
		c.emit(bytecode.OpDup, pos)
	}
	c.storeInto(n.Dst, pos)
}

// storeInto consumes the value on top of the stack into dst (plus, for
// an Index target, the receiver/index operands it compiles itself).
func (c *Compiler) storeInto(dst ast.Expr, pos token.Position) {
	switch d := dst.(type) {
	case *ast.Ident:
		sym, ok := c.current().symtab.Resolve(d.Name)
		if !ok {
			c.errorf(pos, "undefined identifier %q", d.Name)
			c.emit(bytecode.OpPop, pos)
			return
		}
		if !sym.Assignable {
			c.errorf(pos, "%q is not assignable", d.Name)
			c.emit(bytecode.OpPop, pos)
			return
		}
		c.storeSymbol(sym, false, pos)
	case *ast.Index:
		c.compileExpr(d.Recv)
		c.compileExpr(d.Index)
		c.emit(bytecode.OpSetIndex, pos)
	default:
		c.errorf(pos, "invalid assignment target")
		c.emit(bytecode.OpPop, pos)
	}
}
