// Package parser implements a Pratt-driven recursive-descent front end: it
// consumes a token stream and simultaneously performs name resolution and
// type checking, producing a typed AST rooted at a Program node.
package parser

import (
	"fmt"

	"wizardc.dev/wizardc/pkg/ast"
	"wizardc.dev/wizardc/pkg/diagnostic"
	"wizardc.dev/wizardc/pkg/lexer"
	"wizardc.dev/wizardc/pkg/scope"
	"wizardc.dev/wizardc/pkg/token"
	"wizardc.dev/wizardc/pkg/types"
)

// Precedence levels, low to high. Kept alongside the handler tables so
// adding an operator is a single edit.
const (
	precNone = iota
	precAssign
	precComparison
	precBit
	precFactor
	precTerm
	precPrefix
)

type prefixFn func() (*ast.Expr, error)
type infixFn func(left *ast.Expr) (*ast.Expr, error)

// Parser holds the token lookahead, the live scope stack, and the
// per-function frame accumulator. It owns the prefix/infix dispatch tables
// used by the expression parser.
type Parser struct {
	lex *lexer.Lexer
	src string

	// toks is every token seen so far; cur indexes the current token within
	// it. advance() pulls a fresh token from the lexer only when cur has run
	// off the end of the buffer, which is what lets back() rewind a single
	// step without re-lexing.
	toks []token.Token
	cur  int
	tok  token.Token
	prev token.Token

	scope      *scope.Table
	frameAccum int64

	stringCounter int
	strings       []*ast.Expr

	prec   map[token.Kind]int
	prefix map[token.Kind]prefixFn
	infix  map[token.Kind]infixFn
}

// New primes the token lookahead and returns a Parser ready to Parse, or
// the lexical error that prevented priming it.
func New(src string) (*Parser, error) {
	p := &Parser{lex: lexer.New(src), src: src, scope: scope.New()}
	p.initTables()
	first, err := p.lex.Next()
	if err != nil {
		return nil, err
	}
	p.toks = []token.Token{first}
	p.tok = first
	return p, nil
}

// Parse drives the full front end and returns a Program node, or the first
// compile error encountered.
func (p *Parser) Parse() (*ast.Stmt, error) {
	var stmts []*ast.Stmt
	for !p.check(token.Eof) {
		if ok, err := p.consume(token.Semicolon); err != nil {
			return nil, err
		} else if ok {
			continue
		}

		s, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return &ast.Stmt{Kind: ast.Program, Stmts: stmts, Strings: p.strings}, nil
}

func (p *Parser) initTables() {
	p.prec = map[token.Kind]int{
		token.Assign: precAssign,
		token.Lt:     precComparison,
		token.Le:     precComparison,
		token.Gt:     precComparison,
		token.Ge:     precComparison,
		token.Eq:     precComparison,
		token.Neq:    precComparison,
		token.Addr:   precBit,
		token.Plus:   precFactor,
		token.Minus:  precFactor,
		token.Star:   precTerm,
		token.Slash:  precTerm,
	}
	p.prefix = map[token.Kind]prefixFn{
		token.Num:       p.parseNumLit,
		token.String:    p.parseStrLit,
		token.Ident:     p.parseIdentPrefix,
		token.Minus:     p.parseUnaryMinus,
		token.Star:      p.parseUnaryDeref,
		token.Addr:      p.parseUnaryAddr,
		token.OpenParen: p.parseGroup,
	}
	p.infix = map[token.Kind]infixFn{
		token.Plus:  p.parseBinary,
		token.Minus: p.parseBinary,
		token.Star:  p.parseBinary,
		token.Slash: p.parseBinary,
		token.Lt:    p.parseBinary,
		token.Le:    p.parseBinary,
		token.Gt:    p.parseBinary,
		token.Ge:    p.parseBinary,
		token.Eq:    p.parseBinary,
		token.Neq:   p.parseBinary,
		token.Assign: p.parseBinary,
		token.Addr:  p.parseBinary,
	}
}

// ---------------------------------------------------------------------
// Token buffer helpers

func (p *Parser) advance() error {
	p.prev = p.tok
	if p.cur+1 < len(p.toks) {
		// Already buffered from before a back(), e.g. re-entering the
		// identifier we rewound past while disambiguating a top-level
		// declaration. No need to touch the lexer.
		p.cur++
		p.tok = p.toks[p.cur]
		return nil
	}
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.toks = append(p.toks, tok)
	p.cur++
	p.tok = tok
	return nil
}

// back rewinds the token cursor by exactly one step, re-exposing the token
// just consumed as the current token. Used only to peek past an identifier
// when disambiguating a function definition from a global variable
// declaration at the top level.
func (p *Parser) back() {
	if p.cur == 0 {
		panic("parser: back() with no consumed token")
	}
	p.cur--
	p.tok = p.toks[p.cur]
	if p.cur > 0 {
		p.prev = p.toks[p.cur-1]
	} else {
		p.prev = token.Token{}
	}
}

func (p *Parser) check(k token.Kind) bool { return p.tok.Kind == k }

// consume advances past the current token if it matches k.
func (p *Parser) consume(k token.Kind) (bool, error) {
	if !p.check(k) {
		return false, nil
	}
	return true, p.advance()
}

// expect consumes the current token if it matches k, otherwise raises a
// diagnostic without consuming anything.
func (p *Parser) expect(k token.Kind, msg string) error {
	if !p.check(k) {
		return p.errAt(p.tok, msg)
	}
	return p.advance()
}

func (p *Parser) errAt(tok token.Token, format string, args ...any) error {
	return diagnostic.At(p.src, tok.Offset, tok.Span(), format, args...)
}

func (p *Parser) wrapErrAt(tok token.Token, err error) error {
	return diagnostic.At(p.src, tok.Offset, tok.Span(), "%s", err.Error())
}

// ---------------------------------------------------------------------
// Expression parsing — Pratt table

func (p *Parser) parseExpr(minPrec int) (*ast.Expr, error) {
	prefix, ok := p.prefix[p.tok.Kind]
	if !ok {
		return nil, p.errAt(p.tok, "expected an expression, found %s", p.tok.Kind)
	}
	left, err := prefix()
	if err != nil {
		return nil, err
	}

	for {
		prec, ok := p.prec[p.tok.Kind]
		if !ok || prec <= minPrec {
			return left, nil
		}
		infix, ok := p.infix[p.tok.Kind]
		if !ok {
			return left, nil
		}
		left, err = infix(left)
		if err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseNumLit() (*ast.Expr, error) {
	tok := p.tok
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &ast.Expr{Kind: ast.NumLit, Type: types.Int, Tok: tok, IntValue: tok.Value}, nil
}

func (p *Parser) parseStrLit() (*ast.Expr, error) {
	tok := p.tok
	if err := p.advance(); err != nil {
		return nil, err
	}
	id := p.stringCounter
	p.stringCounter++

	payload := tok.Lexeme
	if len(payload) >= 2 {
		payload = payload[1 : len(payload)-1] // strip the surrounding quotes
	}

	lit := &ast.Expr{Kind: ast.StrLit, Type: types.NewPointer(types.Char), Tok: tok, StrValue: payload, LabelID: id}
	p.strings = append(p.strings, lit)
	return lit, nil
}

func (p *Parser) parseIdentPrefix() (*ast.Expr, error) {
	tok := p.tok
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.check(token.OpenParen) {
		return p.parseCall(tok)
	}

	sym, ok := p.scope.Resolve(tok.Lexeme)
	if !ok {
		return nil, p.errAt(tok, "undeclared variable '%s'", tok.Lexeme)
	}
	if p.check(token.OpenSquare) {
		return p.parseArrayIndex(tok, sym)
	}
	return &ast.Expr{Kind: ast.Ident, Type: sym.Type, Tok: tok, Symbol: sym}, nil
}

func (p *Parser) parseCall(tok token.Token) (*ast.Expr, error) {
	sym, ok := p.scope.Resolve(tok.Lexeme)
	if !ok || sym.Kind != scope.FuncSymbol {
		return nil, p.errAt(tok, "call to undeclared function '%s'", tok.Lexeme)
	}
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}

	var args []*ast.Expr
	if !p.check(token.CloseParen) {
		for {
			arg, err := p.parseExpr(precAssign)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if ok, err := p.consume(token.Comma); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
	}
	if err := p.expect(token.CloseParen, "expected ')' after call arguments"); err != nil {
		return nil, err
	}

	funcType := sym.Type
	if len(args) != len(funcType.Params) {
		return nil, p.errAt(tok, "call to '%s' expects %d argument(s), got %d", tok.Lexeme, len(funcType.Params), len(args))
	}
	for i, a := range args {
		if err := types.CheckEqual(funcType.Params[i], a.Type); err != nil {
			return nil, p.wrapErrAt(a.Tok, fmt.Errorf("argument %d to '%s': %w", i+1, tok.Lexeme, err))
		}
	}

	return &ast.Expr{Kind: ast.Call, Type: funcType.Base, Tok: tok, Callee: tok.Lexeme, Args: args, Symbol: sym}, nil
}

func (p *Parser) parseArrayIndex(tok token.Token, sym *scope.Symbol) (*ast.Expr, error) {
	if err := p.advance(); err != nil { // consume '['
		return nil, err
	}
	idx, err := p.parseExpr(precNone)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.CloseSquare, "expected ']' after array index"); err != nil {
		return nil, err
	}

	// Indexing lowers to "array base address + index*elem_size", so the
	// symbol's own storage must hold the elements, not a pointer to them:
	// restricted to array-typed symbols. Index a pointer through *(p + i)
	// instead.
	if !sym.Type.IsArray() {
		return nil, p.errAt(tok, "'%s' is not an array", tok.Lexeme)
	}
	elem := sym.Type.Base
	return &ast.Expr{Kind: ast.ArrayIndex, Type: elem, Tok: tok, Symbol: sym, Index: idx}, nil
}

func (p *Parser) parseUnaryMinus() (*ast.Expr, error) {
	tok := p.tok
	if err := p.advance(); err != nil {
		return nil, err
	}
	operand, err := p.parseExpr(precPrefix)
	if err != nil {
		return nil, err
	}
	if !operand.Type.Decay().IsInteger() {
		return nil, p.errAt(tok, "unary '-' requires an integer operand")
	}
	return &ast.Expr{Kind: ast.Unary, Op: ast.Neg, Type: types.Int, Tok: tok, Operand: operand}, nil
}

func (p *Parser) parseUnaryDeref() (*ast.Expr, error) {
	tok := p.tok
	if err := p.advance(); err != nil {
		return nil, err
	}
	operand, err := p.parseExpr(precPrefix)
	if err != nil {
		return nil, err
	}
	base := operand.Type.Decay()
	if !base.IsPointer() {
		return nil, p.errAt(tok, "unary '*' requires a pointer or array operand")
	}
	return &ast.Expr{Kind: ast.Unary, Op: ast.Deref, Type: base.Base, Tok: tok, Operand: operand}, nil
}

func (p *Parser) parseUnaryAddr() (*ast.Expr, error) {
	tok := p.tok
	if err := p.advance(); err != nil {
		return nil, err
	}
	operand, err := p.parseExpr(precPrefix)
	if err != nil {
		return nil, err
	}
	switch operand.Kind {
	case ast.Ident, ast.ArrayIndex:
		// Type is already the element type for ArrayIndex, so wrapping it in
		// a pointer here naturally yields pointer-to-element. A whole array
		// operand likewise yields a pointer to its element type.
		pointee := operand.Type
		if pointee.IsArray() {
			pointee = pointee.Base
		}
		return &ast.Expr{Kind: ast.Unary, Op: ast.Addr, Type: types.NewPointer(pointee), Tok: tok, Operand: operand}, nil
	default:
		return nil, p.errAt(tok, "'&' requires an lvalue operand")
	}
}

func (p *Parser) parseGroup() (*ast.Expr, error) {
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}
	expr, err := p.parseExpr(precNone)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.CloseParen, "expected ')' to close grouped expression"); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) parseBinary(left *ast.Expr) (*ast.Expr, error) {
	opTok := p.tok
	prec := p.prec[opTok.Kind]
	if err := p.advance(); err != nil {
		return nil, err
	}

	if opTok.Kind == token.Assign {
		rhs, err := p.parseExpr(prec - 1) // right-associative
		if err != nil {
			return nil, err
		}
		switch left.Kind {
		case ast.Ident, ast.ArrayIndex:
		case ast.Unary:
			if left.Op != ast.Deref {
				return nil, p.errAt(opTok, "left side of assignment must be an lvalue")
			}
		default:
			return nil, p.errAt(opTok, "left side of assignment must be an lvalue")
		}
		if err := types.CheckEqual(left.Type, rhs.Type); err != nil {
			return nil, p.wrapErrAt(opTok, err)
		}
		return &ast.Expr{Kind: ast.Binary, BinOp: token.Assign, Type: left.Type, Tok: opTok, LHS: left, RHS: rhs}, nil
	}

	rhs, err := p.parseExpr(prec)
	if err != nil {
		return nil, err
	}

	op := opTok.Kind
	if op == token.Addr {
		op = token.BitAnd // '&' is lexed as Addr; in infix position it's bitwise-and
	}

	result, err := types.CheckBinary(op, left.Type, rhs.Type)
	if err != nil {
		return nil, p.wrapErrAt(opTok, err)
	}

	lhs, rhsNode := left, rhs
	if result.ScaleLHS != 0 {
		lhs = scaleNode(lhs, result.ScaleLHS, opTok)
	}
	if result.ScaleRHS != 0 {
		rhsNode = scaleNode(rhsNode, result.ScaleRHS, opTok)
	}

	node := &ast.Expr{Kind: ast.Binary, BinOp: op, Type: result.Type, Tok: opTok, LHS: lhs, RHS: rhsNode}
	if result.Divide != 0 {
		node = &ast.Expr{
			Kind: ast.Binary, BinOp: token.Slash, Type: types.Int, Tok: opTok,
			LHS: node, RHS: &ast.Expr{Kind: ast.NumLit, Type: types.Int, Tok: opTok, IntValue: result.Divide},
		}
	}
	return node, nil
}

func scaleNode(operand *ast.Expr, size int64, tok token.Token) *ast.Expr {
	return &ast.Expr{
		Kind: ast.Binary, BinOp: token.Star, Type: types.Int, Tok: tok,
		LHS: operand, RHS: &ast.Expr{Kind: ast.NumLit, Type: types.Int, Tok: tok, IntValue: size},
	}
}

// ---------------------------------------------------------------------
// Types, declarators

// parseTypeSpecifier consumes a base type keyword ('int' or 'char').
func (p *Parser) parseTypeSpecifier() (*types.Type, error) {
	switch p.tok.Kind {
	case token.Int:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return types.Int, nil
	case token.Char:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return types.Char, nil
	default:
		return nil, p.errAt(p.tok, "expected a type specifier ('int' or 'char'), found %s", p.tok.Kind)
	}
}

// consumeStars eats a run of leading '*' declarator prefixes and reports
// how many were found.
func (p *Parser) consumeStars() (int, error) {
	n := 0
	for p.check(token.Star) {
		n++
		if err := p.advance(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func applyPointers(base *types.Type, stars int) *types.Type {
	for i := 0; i < stars; i++ {
		base = types.NewPointer(base)
	}
	return base
}

// parseArraySuffix turns typ into an array type if a '[ num ]' suffix
// follows; the length must be a literal integer.
func (p *Parser) parseArraySuffix(typ *types.Type) (*types.Type, error) {
	if !p.check(token.OpenSquare) {
		return typ, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if !p.check(token.Num) {
		return nil, p.errAt(p.tok, "expected an array length")
	}
	length := p.tok.Value
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(token.CloseSquare, "expected ']' after array length"); err != nil {
		return nil, err
	}
	return types.NewArray(typ, length), nil
}

// parseDeclaratorTail parses a declarator's own '*' run, name, and optional
// array suffix on top of base. For the first declarator of a top-level
// variable list, parseTopLevel has already consumed its '*' run (folded into
// base) and rewound to the identifier, so only the name and suffix remain.
func (p *Parser) parseDeclaratorTail(base *types.Type) (token.Token, *types.Type, error) {
	stars, err := p.consumeStars()
	if err != nil {
		return token.Token{}, nil, err
	}
	typ := applyPointers(base, stars)
	if !p.check(token.Ident) {
		return token.Token{}, nil, p.errAt(p.tok, "expected a variable name")
	}
	nameTok := p.tok
	if err := p.advance(); err != nil {
		return token.Token{}, nil, err
	}
	typ, err = p.parseArraySuffix(typ)
	if err != nil {
		return token.Token{}, nil, err
	}
	return nameTok, typ, nil
}

func symbolKind(typ *types.Type) scope.SymbolKind {
	if typ.IsArray() {
		return scope.ArraySymbol
	}
	return scope.VarSymbol
}

// registerLocal reserves frame-offset storage for a local declarator and
// inserts it into the innermost open scope.
func (p *Parser) registerLocal(nameTok token.Token, typ *types.Type) (*scope.Symbol, error) {
	p.frameAccum += typ.Size()
	sym := &scope.Symbol{
		Name: nameTok.Lexeme, Tok: nameTok, Type: typ,
		Storage: scope.Local, Offset: -p.frameAccum, Kind: symbolKind(typ),
	}
	if err := p.scope.Declare(sym); err != nil {
		return nil, p.wrapErrAt(nameTok, err)
	}
	return sym, nil
}

func (p *Parser) registerGlobal(nameTok token.Token, typ *types.Type) (*scope.Symbol, error) {
	sym := &scope.Symbol{Name: nameTok.Lexeme, Tok: nameTok, Type: typ, Storage: scope.Global, Kind: symbolKind(typ)}
	if err := p.scope.Declare(sym); err != nil {
		return nil, p.wrapErrAt(nameTok, err)
	}
	return sym, nil
}

// ---------------------------------------------------------------------
// Top level

func (p *Parser) parseTopLevel() (*ast.Stmt, error) {
	base, err := p.parseTypeSpecifier()
	if err != nil {
		return nil, err
	}
	stars, err := p.consumeStars()
	if err != nil {
		return nil, err
	}
	typ := applyPointers(base, stars)

	if !p.check(token.Ident) {
		return nil, p.errAt(p.tok, "expected an identifier, found %s", p.tok.Kind)
	}
	nameTok := p.tok
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.check(token.OpenParen) {
		return p.parseFuncDef(typ, nameTok)
	}
	// Not a function definition after all: rewind past the identifier we
	// just consumed to disambiguate, and let the declarator grammar shared
	// with every other comma-separated declarator read it again.
	p.back()
	return p.parseGlobalVarDef(typ)
}

func (p *Parser) parseGlobalVarDef(typ *types.Type) (*ast.Stmt, error) {
	// typ carries the first declarator's '*' run; every later declarator
	// reads its own on top of the bare type specifier.
	specifier := typ
	for specifier.IsPointer() {
		specifier = specifier.Base
	}
	var decls []*ast.Expr
	for {
		nameTok, declType, err := p.parseDeclaratorTail(typ)
		if err != nil {
			return nil, err
		}
		sym, err := p.registerGlobal(nameTok, declType)
		if err != nil {
			return nil, err
		}
		decls = append(decls, &ast.Expr{Kind: ast.Ident, Type: declType, Tok: nameTok, Symbol: sym})
		typ = specifier

		if ok, err := p.consume(token.Comma); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if err := p.expect(token.Semicolon, "expected ';' after variable declaration"); err != nil {
		return nil, err
	}
	return &ast.Stmt{Kind: ast.VarDef, Decls: decls, IsGlobal: true}, nil
}

func (p *Parser) parseFuncDef(retType *types.Type, nameTok token.Token) (*ast.Stmt, error) {
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}

	p.scope.PushBlock()
	p.frameAccum = 0

	var params []*scope.Symbol
	var paramTypes []*types.Type
	if !p.check(token.CloseParen) {
		for {
			pbase, err := p.parseTypeSpecifier()
			if err != nil {
				return nil, err
			}
			pstars, err := p.consumeStars()
			if err != nil {
				return nil, err
			}
			ptype := applyPointers(pbase, pstars)
			if !p.check(token.Ident) {
				return nil, p.errAt(p.tok, "expected a parameter name")
			}
			pnameTok := p.tok
			if err := p.advance(); err != nil {
				return nil, err
			}
			sym, err := p.registerLocal(pnameTok, ptype)
			if err != nil {
				return nil, err
			}
			params = append(params, sym)
			paramTypes = append(paramTypes, ptype)

			ok, err := p.consume(token.Comma)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
		}
	}
	if len(params) > 6 {
		return nil, p.errAt(nameTok, "function '%s' accepts at most 6 parameters", nameTok.Lexeme)
	}
	if err := p.expect(token.CloseParen, "expected ')' after parameter list"); err != nil {
		return nil, err
	}

	funcType := types.NewFunc(retType, paramTypes)
	funcSym := &scope.Symbol{Name: nameTok.Lexeme, Tok: nameTok, Type: funcType, Storage: scope.Global, Kind: scope.FuncSymbol}
	if err := p.scope.DeclareGlobal(funcSym); err != nil {
		return nil, p.wrapErrAt(nameTok, err)
	}

	if !p.check(token.OpenBrace) {
		return nil, p.errAt(p.tok, "expected '{' to begin function body (forward declarations are not supported)")
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	frameSize := alignUp16(p.frameAccum)
	p.scope.PopBlock()
	p.frameAccum = 0

	return &ast.Stmt{Kind: ast.FuncDef, Name: nameTok.Lexeme, Params: params, Body: body, FrameSize: frameSize}, nil
}

func alignUp16(n int64) int64 { return (n + 15) / 16 * 16 }

// ---------------------------------------------------------------------
// Statements

func (p *Parser) parseBlock() (*ast.Stmt, error) {
	if err := p.expect(token.OpenBrace, "expected '{'"); err != nil {
		return nil, err
	}
	p.scope.PushBlock()

	var stmts []*ast.Stmt
	for !p.check(token.CloseBrace) && !p.check(token.Eof) {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if err := p.expect(token.CloseBrace, "expected '}' to close block"); err != nil {
		return nil, err
	}

	p.scope.PopBlock()
	return &ast.Stmt{Kind: ast.Block, Stmts: stmts}, nil
}

func (p *Parser) parseStmt() (*ast.Stmt, error) {
	switch p.tok.Kind {
	case token.OpenBrace:
		return p.parseBlock()
	case token.If:
		return p.parseIf()
	case token.While:
		return p.parseWhile()
	case token.For:
		return p.parseFor()
	case token.Return:
		return p.parseReturn()
	case token.Int, token.Char:
		return p.parseLocalVarDefStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseCondition() (*ast.Expr, error) {
	cond, err := p.parseExpr(precNone)
	if err != nil {
		return nil, err
	}
	decayed := cond.Type.Decay()
	if !decayed.IsInteger() && !decayed.IsPointer() {
		return nil, p.errAt(cond.Tok, "condition must be an integer or pointer expression")
	}
	return cond, nil
}

func (p *Parser) parseIf() (*ast.Stmt, error) {
	if err := p.advance(); err != nil { // 'if'
		return nil, err
	}
	if err := p.expect(token.OpenParen, "expected '(' after 'if'"); err != nil {
		return nil, err
	}
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.CloseParen, "expected ')' after condition"); err != nil {
		return nil, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}

	var elseStmt *ast.Stmt
	if ok, err := p.consume(token.Else); err != nil {
		return nil, err
	} else if ok {
		elseStmt, err = p.parseStmt()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Stmt{Kind: ast.If, Cond: cond, Then: then, Else: elseStmt}, nil
}

func (p *Parser) parseWhile() (*ast.Stmt, error) {
	if err := p.advance(); err != nil { // 'while'
		return nil, err
	}
	if err := p.expect(token.OpenParen, "expected '(' after 'while'"); err != nil {
		return nil, err
	}
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.CloseParen, "expected ')' after condition"); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &ast.Stmt{Kind: ast.While, Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (*ast.Stmt, error) {
	if err := p.advance(); err != nil { // 'for'
		return nil, err
	}
	if err := p.expect(token.OpenParen, "expected '(' after 'for'"); err != nil {
		return nil, err
	}

	p.scope.PushBlock()

	var init *ast.Stmt
	if ok, err := p.consume(token.Semicolon); err != nil {
		p.scope.PopBlock()
		return nil, err
	} else if !ok {
		var err error
		switch p.tok.Kind {
		case token.Int, token.Char:
			init, err = p.parseLocalVarDefStmt()
		default:
			expr, exprErr := p.parseExpr(precNone)
			if exprErr != nil {
				err = exprErr
			} else if err = p.expect(token.Semicolon, "expected ';' after for-init"); err == nil {
				init = &ast.Stmt{Kind: ast.ExprStmt, Expression: expr}
			}
		}
		if err != nil {
			p.scope.PopBlock()
			return nil, err
		}
	}

	var cond *ast.Expr
	if !p.check(token.Semicolon) {
		c, err := p.parseCondition()
		if err != nil {
			p.scope.PopBlock()
			return nil, err
		}
		cond = c
	}
	if err := p.expect(token.Semicolon, "expected ';' after for-condition"); err != nil {
		p.scope.PopBlock()
		return nil, err
	}

	var inc *ast.Expr
	if !p.check(token.CloseParen) {
		e, err := p.parseExpr(precNone)
		if err != nil {
			p.scope.PopBlock()
			return nil, err
		}
		inc = e
	}
	if err := p.expect(token.CloseParen, "expected ')' after for-clauses"); err != nil {
		p.scope.PopBlock()
		return nil, err
	}

	body, err := p.parseStmt()
	if err != nil {
		p.scope.PopBlock()
		return nil, err
	}
	p.scope.PopBlock()

	return &ast.Stmt{Kind: ast.For, Init: init, Cond: cond, Inc: inc, Body: body}, nil
}

func (p *Parser) parseReturn() (*ast.Stmt, error) {
	if err := p.advance(); err != nil { // 'return'
		return nil, err
	}
	expr, err := p.parseExpr(precNone)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.Semicolon, "expected ';' after return value"); err != nil {
		return nil, err
	}
	return &ast.Stmt{Kind: ast.Return, Expression: expr}, nil
}

func (p *Parser) parseExprStmt() (*ast.Stmt, error) {
	expr, err := p.parseExpr(precNone)
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.Semicolon, "expected ';' after expression"); err != nil {
		return nil, err
	}
	return &ast.Stmt{Kind: ast.ExprStmt, Expression: expr}, nil
}

// ---------------------------------------------------------------------
// Local declarations

func (p *Parser) parseLocalVarDefStmt() (*ast.Stmt, error) {
	base, err := p.parseTypeSpecifier()
	if err != nil {
		return nil, err
	}
	return p.parseLocalVarDef(base)
}

func (p *Parser) parseLocalVarDef(base *types.Type) (*ast.Stmt, error) {
	var decls []*ast.Expr
	for {
		nameTok, typ, err := p.parseDeclaratorTail(base)
		if err != nil {
			return nil, err
		}
		sym, err := p.registerLocal(nameTok, typ)
		if err != nil {
			return nil, err
		}
		declExpr := &ast.Expr{Kind: ast.Ident, Type: typ, Tok: nameTok, Symbol: sym}

		if ok, err := p.consume(token.Assign); err != nil {
			return nil, err
		} else if ok {
			if typ.IsArray() {
				def, err := p.parseArrayInitializer(declExpr, typ)
				if err != nil {
					return nil, err
				}
				decls = append(decls, def)
			} else {
				assignTok := p.prev
				init, err := p.parseExpr(precAssign)
				if err != nil {
					return nil, err
				}
				if err := types.CheckEqual(typ, init.Type); err != nil {
					return nil, p.wrapErrAt(assignTok, fmt.Errorf("initializer for '%s': %w", nameTok.Lexeme, err))
				}
				decls = append(decls, &ast.Expr{Kind: ast.Binary, BinOp: token.Assign, Type: typ, Tok: assignTok, LHS: declExpr, RHS: init})
			}
		} else {
			decls = append(decls, declExpr)
		}

		if ok, err := p.consume(token.Comma); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if err := p.expect(token.Semicolon, "expected ';' after variable declaration"); err != nil {
		return nil, err
	}
	return &ast.Stmt{Kind: ast.VarDef, Decls: decls, IsGlobal: false}, nil
}

func (p *Parser) parseArrayInitializer(declExpr *ast.Expr, arrType *types.Type) (*ast.Expr, error) {
	if err := p.expect(token.OpenBrace, "expected '{' to begin array initializer"); err != nil {
		return nil, err
	}

	var elems []*ast.Expr
	if !p.check(token.CloseBrace) {
		for {
			e, err := p.parseExpr(precAssign)
			if err != nil {
				return nil, err
			}
			if err := types.CheckEqual(arrType.Base, e.Type); err != nil {
				return nil, p.wrapErrAt(e.Tok, fmt.Errorf("array initializer element %d: %w", len(elems)+1, err))
			}
			elems = append(elems, e)

			if ok, err := p.consume(token.Comma); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
	}
	if err := p.expect(token.CloseBrace, "expected '}' to close array initializer"); err != nil {
		return nil, err
	}
	if int64(len(elems)) > arrType.Len {
		return nil, p.errAt(declExpr.Tok, "too many initializers for array '%s' of length %d", declExpr.Tok.Lexeme, arrType.Len)
	}

	return &ast.Expr{Kind: ast.ArrayDef, Type: arrType, Tok: declExpr.Tok, Symbol: declExpr.Symbol, Elems: elems}, nil
}
