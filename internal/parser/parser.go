// Package parser implements Ape's Pratt expression parser and statement
// grammar: match/check/consume/advance/peek helpers over a token stream,
// with prefix and infix parse functions keyed by token type so binary
// operators, ternary, postfix ++/--, and assignment-as-expression all
// share one dispatch table.
package parser

import (
	"fmt"

	"ape/internal/ast"
	"ape/internal/langerr"
	"ape/internal/lexer"
	"ape/internal/token"
)

// Precedence ladder, low to high.
const (
	Lowest int = iota
	PAssign
	PTernary
	PLogicalOr
	PLogicalAnd
	PBitOr
	PBitXor
	PBitAnd
	PEquals
	PLessGreater
	PShift
	PSum
	PProduct
	PPrefix
	PIncDec
	PPostfix
	PHighest
)

var precedences = map[token.Type]int{
	token.ASSIGN: PAssign, token.PLUS_ASSIGN: PAssign, token.MINUS_ASSIGN: PAssign,
	token.ASTERISK_ASSIGN: PAssign, token.SLASH_ASSIGN: PAssign, token.PERCENT_ASSIGN: PAssign,
	token.AMP_ASSIGN: PAssign, token.PIPE_ASSIGN: PAssign, token.CARET_ASSIGN: PAssign,
	token.LSHIFT_ASSIGN: PAssign, token.RSHIFT_ASSIGN: PAssign,

	token.QUESTION: PTernary,

	token.OR:  PLogicalOr,
	token.AND: PLogicalAnd,

	token.PIPE:  PBitOr,
	token.CARET: PBitXor,
	token.AMP:   PBitAnd,

	token.EQ: PEquals, token.NOT_EQ: PEquals,
	token.LT: PLessGreater, token.GT: PLessGreater, token.LE: PLessGreater, token.GE: PLessGreater,

	token.LSHIFT: PShift, token.RSHIFT: PShift,

	token.PLUS: PSum, token.MINUS: PSum,
	token.ASTERISK: PProduct, token.SLASH: PProduct, token.PERCENT: PProduct,

	token.INCREMENT: PPostfix, token.DECREMENT: PPostfix,

	token.LPAREN: PHighest, token.LBRACKET: PHighest, token.DOT: PHighest,
}

type (
	prefixParseFn func() ast.Expr
	infixParseFn  func(ast.Expr) ast.Expr
)

// Parser is a two-token-lookahead Pratt parser over a streaming Lexer.
// curToken/peekToken hold that lookahead at the parser level, since the
// Lexer itself keeps no token buffer (its PreviousToken rewinds by
// restoring a saved scan state and re-scanning).
type Parser struct {
	l *lexer.Lexer

	curToken  token.Token
	peekToken token.Token

	Errors *langerr.List

	replMode  bool
	exprDepth int // nesting depth of parenthesized/bracketed expression contexts

	prefixFns map[token.Type]prefixParseFn
	infixFns  map[token.Type]infixParseFn
}

// New creates a Parser over source. replMode, when true, makes a
// top-level '{' parse as a map-literal expression statement rather than
// a block.
func New(source, file string, replMode bool) *Parser {
	p := &Parser{l: lexer.New(source, file), Errors: langerr.NewList(), replMode: replMode}
	p.prefixFns = map[token.Type]prefixParseFn{
		token.IDENT:           p.parseIdent,
		token.NUMBER:          p.parseNumber,
		token.STRING:          p.parseString,
		token.TEMPLATE_STRING: p.parseTemplateString,
		token.TRUE:            p.parseBool,
		token.FALSE:           p.parseBool,
		token.NULL:            p.parseNull,
		token.BANG:            p.parsePrefix,
		token.MINUS:           p.parsePrefix,
		token.INCREMENT:       p.parsePrefixIncDec,
		token.DECREMENT:       p.parsePrefixIncDec,
		token.LPAREN:          p.parseGroupedExpr,
		token.LBRACKET:        p.parseArrayLit,
		token.LBRACE:          p.parseMapLit,
		token.FUNCTION:        p.parseFnLit,
	}
	p.infixFns = map[token.Type]infixParseFn{
		token.PLUS: p.parseInfix, token.MINUS: p.parseInfix,
		token.ASTERISK: p.parseInfix, token.SLASH: p.parseInfix, token.PERCENT: p.parseInfix,
		token.PIPE: p.parseInfix, token.CARET: p.parseInfix, token.AMP: p.parseInfix,
		token.LSHIFT: p.parseInfix, token.RSHIFT: p.parseInfix,
		token.EQ: p.parseInfix, token.NOT_EQ: p.parseInfix,
		token.LT: p.parseInfix, token.GT: p.parseInfix, token.LE: p.parseInfix, token.GE: p.parseInfix,
		token.AND: p.parseLogical, token.OR: p.parseLogical,
		token.QUESTION:  p.parseTernary,
		token.LPAREN:    p.parseCall,
		token.LBRACKET:  p.parseIndex,
		token.DOT:       p.parseDot,
		token.INCREMENT: p.parsePostfixIncDec, token.DECREMENT: p.parsePostfixIncDec,
		token.ASSIGN: p.parseAssign, token.PLUS_ASSIGN: p.parseAssign, token.MINUS_ASSIGN: p.parseAssign,
		token.ASTERISK_ASSIGN: p.parseAssign, token.SLASH_ASSIGN: p.parseAssign, token.PERCENT_ASSIGN: p.parseAssign,
		token.AMP_ASSIGN: p.parseAssign, token.PIPE_ASSIGN: p.parseAssign, token.CARET_ASSIGN: p.parseAssign,
		token.LSHIFT_ASSIGN: p.parseAssign, token.RSHIFT_ASSIGN: p.parseAssign,
	}
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curIs(t token.Type) bool  { return p.curToken.Type == t }
func (p *Parser) peekIs(t token.Type) bool { return p.peekToken.Type == t }

func (p *Parser) expect(t token.Type) bool {
	if p.peekIs(t) {
		p.next()
		return true
	}
	p.errorf("expected next token to be %s, got %s", t, p.peekToken.Type)
	return false
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.Errors.Add(langerr.New(langerr.Parsing, fmt.Sprintf(format, args...), p.curToken.Pos))
}

func (p *Parser) precedence(t token.Type) int {
	if pr, ok := precedences[t]; ok {
		return pr
	}
	return Lowest
}

// ParseProgram parses every statement up to EOF. On any parse error the
// partial program is discarded and an empty statement list is returned
//.
func (p *Parser) ParseProgram() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.curIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		p.next()
	}
	if p.Errors.HasErrors() {
		return nil
	}
	return stmts
}

func (p *Parser) parseStatement() ast.Stmt {
	switch p.curToken.Type {
	case token.VAR:
		return p.parseDefineStmt(true)
	case token.CONST:
		return p.parseDefineStmt(false)
	case token.FUNCTION:
		if p.peekIs(token.IDENT) {
			return p.parseFunctionDeclStmt()
		}
		return p.parseExprStmt()
	case token.IF:
		return p.parseIfStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.BREAK:
		stmt := ast.NewBreakStmt(p.curToken.Pos)
		p.skipSemicolon()
		return stmt
	case token.CONTINUE:
		stmt := ast.NewContinueStmt(p.curToken.Pos)
		p.skipSemicolon()
		return stmt
	case token.RETURN:
		return p.parseReturnStmt()
	case token.IMPORT:
		return p.parseImportStmt()
	case token.RECOVER:
		return p.parseRecoverStmt()
	case token.LBRACE:
		if p.replMode && p.exprDepth == 0 {
			return p.parseExprStmt()
		}
		return p.parseBlockStmtBody()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseDefineStmt(assignable bool) ast.Stmt {
	pos := p.curToken.Pos
	if !p.expect(token.IDENT) {
		return nil
	}
	name := p.curToken.Literal
	if !p.expect(token.ASSIGN) {
		return nil
	}
	p.next()
	value := p.parseExpression(Lowest)
	p.skipSemicolon()
	return ast.NewDefineStmt(pos, name, value, assignable)
}

func (p *Parser) parseFunctionDeclStmt() ast.Stmt {
	pos := p.curToken.Pos
	name := p.peekToken.Literal // parseFnLitFrom itself moves from 'function' onto the name
	fn := p.parseFnLitFrom(pos, name)
	return ast.NewDefineStmt(pos, name, fn, false)
}

func (p *Parser) parseIfStmt() ast.Stmt {
	pos := p.curToken.Pos
	var cases []ast.IfCase
	for {
		p.next() // consume 'if'/'else'
		cond := p.parseExpression(Lowest)
		if !p.expect(token.LBRACE) {
			return nil
		}
		body := p.parseBlockStmtBody()
		cases = append(cases, ast.IfCase{Cond: cond, Body: body})
		if p.peekIs(token.ELSE) {
			p.next()
			if p.peekIs(token.IF) {
				p.next()
				continue
			}
			if !p.expect(token.LBRACE) {
				return nil
			}
			elseBody := p.parseBlockStmtBody()
			cases = append(cases, ast.IfCase{Cond: nil, Body: elseBody})
			break
		}
		break
	}
	return ast.NewIfStmt(pos, cases)
}

func (p *Parser) parseWhileStmt() ast.Stmt {
	pos := p.curToken.Pos
	p.next()
	cond := p.parseExpression(Lowest)
	if !p.expect(token.LBRACE) {
		return nil
	}
	body := p.parseBlockStmtBody()
	return ast.NewWhileStmt(pos, cond, body)
}

// parseForStmt chooses classic three-clause or for-each by peeking past
// an identifier for the 'in' keyword. Since the lexer has
// no multi-token rewind, the lookahead re-lexes from a saved lexer state.
func (p *Parser) parseForStmt() ast.Stmt {
	if p.peekIs(token.IDENT) {
		savedLexer := *p.l
		savedCur, savedPeek := p.curToken, p.peekToken
		p.next() // identifier
		isForEach := p.peekIs(token.IN)
		*p.l = savedLexer
		p.curToken, p.peekToken = savedCur, savedPeek
		if isForEach {
			return p.parseForEachStmt()
		}
	}
	return p.parseClassicForStmt()
}

func (p *Parser) parseForEachStmt() ast.Stmt {
	pos := p.curToken.Pos
	p.next() // consume 'for'
	name := p.curToken.Literal
	p.next() // consume ident
	p.next() // consume 'in'
	source := p.parseExpression(Lowest)
	if !p.expect(token.LBRACE) {
		return nil
	}
	body := p.parseBlockStmtBody()
	return ast.NewForeachStmt(pos, name, source, body)
}

func (p *Parser) parseClassicForStmt() ast.Stmt {
	pos := p.curToken.Pos
	if !p.expect(token.LPAREN) {
		return nil
	}
	var init ast.Stmt
	p.next()
	if !p.curIs(token.SEMICOLON) {
		switch p.curToken.Type {
		case token.VAR:
			init = p.parseDefineStmt(true)
		case token.CONST:
			init = p.parseDefineStmt(false)
		default:
			init = p.parseExprStmt()
		}
	}
	if !p.curIs(token.SEMICOLON) {
		p.errorf("expected ';' after for-loop initializer, got %s", p.curToken.Type)
	}
	p.next()
	var test ast.Expr
	if !p.curIs(token.SEMICOLON) {
		test = p.parseExpression(Lowest)
		p.next()
	}
	if !p.curIs(token.SEMICOLON) {
		p.errorf("expected ';' after for-loop condition, got %s", p.curToken.Type)
	}
	p.next()
	var update ast.Expr
	if !p.curIs(token.RPAREN) {
		update = p.parseExpression(Lowest)
		p.next()
	}
	if !p.curIs(token.RPAREN) {
		p.errorf("expected ')' after for-loop clauses, got %s", p.curToken.Type)
	}
	if !p.expect(token.LBRACE) {
		return nil
	}
	body := p.parseBlockStmtBody()
	return ast.NewForStmt(pos, init, test, update, body)
}

func (p *Parser) parseReturnStmt() ast.Stmt {
	pos := p.curToken.Pos
	if p.peekIs(token.RBRACE) || p.peekIs(token.SEMICOLON) {
		p.skipSemicolon()
		return ast.NewReturnStmt(pos, nil)
	}
	p.next()
	value := p.parseExpression(Lowest)
	p.skipSemicolon()
	return ast.NewReturnStmt(pos, value)
}

// parseImportStmt is only legal in module-global scope; that restriction
// is enforced by the compiler, which sees every ImportStmt's nesting.
func (p *Parser) parseImportStmt() ast.Stmt {
	pos := p.curToken.Pos
	if !p.expect(token.STRING) {
		return nil
	}
	path := p.curToken.Literal
	p.skipSemicolon()
	return ast.NewImportStmt(pos, path)
}

func (p *Parser) parseRecoverStmt() ast.Stmt {
	pos := p.curToken.Pos
	if !p.expect(token.LPAREN) {
		return nil
	}
	if !p.expect(token.IDENT) {
		return nil
	}
	errName := p.curToken.Literal
	if !p.expect(token.RPAREN) {
		return nil
	}
	if !p.expect(token.LBRACE) {
		return nil
	}
	body := p.parseBlockStmtBody()
	return ast.NewRecoverStmt(pos, errName, body)
}

func (p *Parser) parseBlockStmtBody() *ast.BlockStmt {
	pos := p.curToken.Pos
	p.next() // consume '{'
	var stmts []ast.Stmt
	for !p.curIs(token.RBRACE) && !p.curIs(token.EOF) {
		s := p.parseStatement()
		if s != nil {
			stmts = append(stmts, s)
		}
		p.next()
	}
	return ast.NewBlockStmt(pos, stmts)
}

func (p *Parser) parseExprStmt() ast.Stmt {
	pos := p.curToken.Pos
	x := p.parseExpression(Lowest)
	p.skipSemicolon()
	return ast.NewExprStmt(pos, x)
}

func (p *Parser) skipSemicolon() {
	if p.peekIs(token.SEMICOLON) {
		p.next()
	}
}

// ---- Expressions ----

func (p *Parser) parseExpression(prec int) ast.Expr {
	prefix, ok := p.prefixFns[p.curToken.Type]
	if !ok {
		p.errorf("no prefix parse function for %s found", p.curToken.Type)
		return nil
	}
	left := prefix()

	for !p.peekIs(token.SEMICOLON) && prec < p.precedence(p.peekToken.Type) {
		infix, ok := p.infixFns[p.peekToken.Type]
		if !ok {
			return left
		}
		p.next()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdent() ast.Expr {
	pos := p.curToken.Pos
	name := p.curToken.Literal
	for p.peekIs(token.DOUBLE_COLON) {
		p.next() // consume '::'
		if !p.expect(token.IDENT) {
			break
		}
		name = name + "::" + p.curToken.Literal
	}
	return ast.NewIdent(pos, name)
}

func (p *Parser) parseNumber() ast.Expr {
	pos := p.curToken.Pos
	v, err := lexer.ParseNumber(p.curToken.Literal)
	if err != nil {
		p.errorf("invalid number literal %q", p.curToken.Literal)
		return nil
	}
	return ast.NewNumberLit(pos, v)
}

func (p *Parser) parseBool() ast.Expr {
	return ast.NewBoolLit(p.curToken.Pos, p.curIs(token.TRUE))
}

func (p *Parser) parseString() ast.Expr {
	return ast.NewStringLit(p.curToken.Pos, p.curToken.Literal)
}

func (p *Parser) parseNull() ast.Expr {
	return ast.NewNullLit(p.curToken.Pos)
}

// parseTemplateString lowers `A${e}B` into a concatenation of string
// parts and wrapped tostring(expr) calls, resuming the lexer after each
// splice via ContinueTemplateString.
func (p *Parser) parseTemplateString() ast.Expr {
	pos := p.curToken.Pos
	var parts []ast.Expr
	for {
		seg := p.curToken.Literal
		closed := p.l.TemplateClosed()
		if seg != "" || closed {
			parts = append(parts, ast.NewStringLit(p.curToken.Pos, seg))
		}
		if closed {
			break
		}
		p.next() // move onto the first token of the splice expression
		expr := p.parseExpression(Lowest)
		parts = append(parts, ast.Wrap("tostring", expr))
		// The '}' is checked as lookahead rather than consumed: consuming
		// it would lex the bytes after it as an ordinary token before the
		// lexer is told to resume the template.
		if !p.peekIs(token.RBRACE) {
			p.errorf("expected next token to be %s, got %s", token.RBRACE, p.peekToken.Type)
			break
		}
		p.l.ContinueTemplateString()
		p.next() // onto the '}'; the lookahead is now the next template segment
		p.next() // fetch the next template segment into curToken
	}
	return ast.NewTemplateString(pos, parts)
}

func (p *Parser) parsePrefix() ast.Expr {
	pos := p.curToken.Pos
	op := p.curToken.Literal
	p.next()
	right := p.parseExpression(PPrefix)
	return ast.NewPrefix(pos, op, right)
}

// parsePrefixIncDec rewrites `++x`/`--x` to `x = x + 1`/`x = x - 1`
//.
func (p *Parser) parsePrefixIncDec() ast.Expr {
	pos := p.curToken.Pos
	op := "+"
	if p.curIs(token.DECREMENT) {
		op = "-"
	}
	p.next()
	dst := p.parseExpression(PIncDec)
	one := ast.NewNumberLit(pos, 1)
	src := ast.NewInfix(pos, op, ast.Copy(dst), one)
	return ast.NewAssign(pos, dst, src, false)
}

// parsePostfixIncDec marks IsPostfix so the compiler pushes the operand's
// current value before the store instead of duplicating the new one,
// yielding the pre-increment value as the expression result.
func (p *Parser) parsePostfixIncDec(left ast.Expr) ast.Expr {
	pos := p.curToken.Pos
	op := "+"
	if p.curIs(token.DECREMENT) {
		op = "-"
	}
	one := ast.NewNumberLit(pos, 1)
	src := ast.NewInfix(pos, op, ast.Copy(left), one)
	return ast.NewAssign(pos, left, src, true)
}

func (p *Parser) parseGroupedExpr() ast.Expr {
	p.exprDepth++
	p.next()
	expr := p.parseExpression(Lowest)
	p.expect(token.RPAREN)
	p.exprDepth--
	return expr
}

func (p *Parser) parseArrayLit() ast.Expr {
	pos := p.curToken.Pos
	p.exprDepth++
	defer func() { p.exprDepth-- }()
	elements := p.parseExprList(token.RBRACKET, true)
	return ast.NewArrayLit(pos, elements)
}

// parseExprList parses a comma-separated expression list up to end,
// optionally permitting a trailing comma.
func (p *Parser) parseExprList(end token.Type, allowTrailingComma bool) []ast.Expr {
	var list []ast.Expr
	if p.peekIs(end) {
		p.next()
		return list
	}
	p.next()
	list = append(list, p.parseExpression(Lowest))
	for p.peekIs(token.COMMA) {
		p.next()
		if allowTrailingComma && p.peekIs(end) {
			break
		}
		p.next()
		list = append(list, p.parseExpression(Lowest))
	}
	p.expect(end)
	return list
}

// parseMapLit accepts bare-identifier keys (implicit stringify) and
// string/number/bool literal keys; any other key form is a parse error
//.
func (p *Parser) parseMapLit() ast.Expr {
	pos := p.curToken.Pos
	p.exprDepth++
	defer func() { p.exprDepth-- }()
	var pairs []ast.MapPair
	for !p.peekIs(token.RBRACE) {
		p.next()
		var key ast.Expr
		switch p.curToken.Type {
		case token.IDENT, token.STRING:
			key = ast.NewStringLit(p.curToken.Pos, p.curToken.Literal)
		case token.NUMBER:
			key = p.parseNumber()
		case token.TRUE, token.FALSE:
			key = p.parseBool()
		default:
			p.errorf("invalid map key %s", p.curToken.Type)
			return nil
		}
		if !p.expect(token.COLON) {
			return nil
		}
		p.next()
		val := p.parseExpression(Lowest)
		pairs = append(pairs, ast.MapPair{Key: key, Value: val})
		if p.peekIs(token.COMMA) {
			p.next()
		} else {
			break
		}
	}
	if !p.expect(token.RBRACE) {
		return nil
	}
	return ast.NewMapLit(pos, pairs)
}

func (p *Parser) parseFnLit() ast.Expr {
	return p.parseFnLitFrom(p.curToken.Pos, "")
}

func (p *Parser) parseFnLitFrom(pos token.Position, name string) ast.Expr {
	if name != "" {
		p.next() // move from 'function' onto the name we already consumed
	}
	if !p.expect(token.LPAREN) {
		return nil
	}
	var params []string
	if !p.peekIs(token.RPAREN) {
		p.next()
		params = append(params, p.curToken.Literal)
		for p.peekIs(token.COMMA) {
			p.next()
			p.next()
			params = append(params, p.curToken.Literal)
		}
	}
	if !p.expect(token.RPAREN) {
		return nil
	}
	if !p.expect(token.LBRACE) {
		return nil
	}
	body := p.parseBlockStmtBody()
	return ast.NewFnLit(pos, name, params, body)
}

func (p *Parser) parseInfix(left ast.Expr) ast.Expr {
	pos := p.curToken.Pos
	op := p.curToken.Literal
	prec := p.precedence(p.curToken.Type)
	p.next()
	right := p.parseExpression(prec)
	return ast.NewInfix(pos, op, left, right)
}

func (p *Parser) parseLogical(left ast.Expr) ast.Expr {
	pos := p.curToken.Pos
	op := p.curToken.Literal
	prec := p.precedence(p.curToken.Type)
	p.next()
	right := p.parseExpression(prec)
	return ast.NewLogical(pos, op, left, right)
}

func (p *Parser) parseTernary(cond ast.Expr) ast.Expr {
	pos := p.curToken.Pos
	p.next()
	then := p.parseExpression(PTernary)
	if !p.expect(token.COLON) {
		return nil
	}
	p.next()
	els := p.parseExpression(PTernary)
	return ast.NewTernary(pos, cond, then, els)
}

func (p *Parser) parseCall(fn ast.Expr) ast.Expr {
	pos := p.curToken.Pos
	p.exprDepth++
	args := p.parseExprList(token.RPAREN, false)
	p.exprDepth--
	return ast.NewCall(pos, fn, args)
}

func (p *Parser) parseIndex(recv ast.Expr) ast.Expr {
	pos := p.curToken.Pos
	p.exprDepth++
	p.next()
	idx := p.parseExpression(Lowest)
	p.expect(token.RBRACKET)
	p.exprDepth--
	return ast.NewIndex(pos, recv, idx)
}

// parseDot compiles `a.b` to `a["b"]`.
func (p *Parser) parseDot(recv ast.Expr) ast.Expr {
	pos := p.curToken.Pos
	if !p.expect(token.IDENT) {
		return nil
	}
	key := ast.NewStringLit(pos, p.curToken.Literal)
	return ast.NewIndex(pos, recv, key)
}

// parseAssign decomposes compound assignment operators into
// `dst = dst <op> src` by copying the left-hand AST.
func (p *Parser) parseAssign(left ast.Expr) ast.Expr {
	pos := p.curToken.Pos
	op := compoundOp(p.curToken.Type)
	p.next()
	rhs := p.parseExpression(PAssign - 1)
	if op == "" {
		return ast.NewAssign(pos, left, rhs, false)
	}
	src := ast.NewInfix(pos, op, ast.Copy(left), rhs)
	return ast.NewAssign(pos, left, src, false)
}

func compoundOp(t token.Type) string {
	switch t {
	case token.PLUS_ASSIGN:
		return "+"
	case token.MINUS_ASSIGN:
		return "-"
	case token.ASTERISK_ASSIGN:
		return "*"
	case token.SLASH_ASSIGN:
		return "/"
	case token.PERCENT_ASSIGN:
		return "%"
	case token.AMP_ASSIGN:
		return "&"
	case token.PIPE_ASSIGN:
		return "|"
	case token.CARET_ASSIGN:
		return "^"
	case token.LSHIFT_ASSIGN:
		return "<<"
	case token.RSHIFT_ASSIGN:
		return ">>"
	default:
		return ""
	}
}
