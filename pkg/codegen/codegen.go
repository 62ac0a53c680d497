// Package codegen walks the typed AST produced by the parser and writes
// AT&T-syntax x86-64 assembly for System V AMD64. It is a single-pass
// visitor: no intermediate representation, no register allocator. Every
// expression leaves its result in %rax; intermediates spill to the process
// stack via push/pop.
package codegen

import (
	"fmt"
	"io"
	"strings"

	"wizardc.dev/wizardc/pkg/ast"
	"wizardc.dev/wizardc/pkg/scope"
	"wizardc.dev/wizardc/pkg/token"
	"wizardc.dev/wizardc/pkg/types"
)

var argRegs = [6]string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"}

// setCC maps a comparison operator to the x86 SETcc mnemonic suffix that
// realizes it, looked up once rather than re-dispatched with a chain of ifs.
var setCC = map[token.Kind]string{
	token.Lt:  "l",
	token.Le:  "le",
	token.Gt:  "g",
	token.Ge:  "ge",
	token.Eq:  "e",
	token.Neq: "ne",
}

// Emitter owns the two pieces of state the emission pass is allowed to
// mutate: a monotone label counter, unique per compilation, and the name of
// the function currently being walked, used to form its return label.
type Emitter struct {
	out      io.Writer
	labels   int
	funcName string
}

func New(out io.Writer) *Emitter {
	return &Emitter{out: out}
}

// Emit walks a Program node and writes the whole translation unit: every
// top-level statement in source order, followed by the anonymous globals
// contributed by string literals encountered anywhere in the source.
func (e *Emitter) Emit(prog *ast.Stmt) error {
	if prog.Kind != ast.Program {
		panic(fmt.Sprintf("codegen: Emit called with non-Program root, kind %d", prog.Kind))
	}
	for _, s := range prog.Stmts {
		if err := e.emitStmt(s); err != nil {
			return err
		}
	}
	for _, lit := range prog.Strings {
		if err := e.emitStringGlobal(lit); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) nextLabel() int {
	l := e.labels
	e.labels++
	return l
}

func (e *Emitter) printf(format string, args ...any) error {
	if _, err := fmt.Fprintf(e.out, format, args...); err != nil {
		return fmt.Errorf("codegen: write failed: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------
// Statements

func (e *Emitter) emitStmt(s *ast.Stmt) error {
	switch s.Kind {
	case ast.ExprStmt:
		return e.emitExpr(s.Expression)
	case ast.Block:
		for _, inner := range s.Stmts {
			if err := e.emitStmt(inner); err != nil {
				return err
			}
		}
		return nil
	case ast.If:
		return e.emitIf(s)
	case ast.While:
		return e.emitWhile(s)
	case ast.For:
		return e.emitFor(s)
	case ast.Return:
		return e.emitReturn(s)
	case ast.VarDef:
		return e.emitVarDef(s)
	case ast.FuncDef:
		return e.emitFuncDef(s)
	default:
		panic(fmt.Sprintf("codegen: unexpected statement kind %d", s.Kind))
	}
}

func (e *Emitter) emitIf(s *ast.Stmt) error {
	if err := e.emitExpr(s.Cond); err != nil {
		return err
	}
	if err := e.printf("  cmp $0, %%rax\n"); err != nil {
		return err
	}
	l := e.nextLabel()

	if s.Else == nil {
		if err := e.printf("  je .L.end.%d\n", l); err != nil {
			return err
		}
		if err := e.emitStmt(s.Then); err != nil {
			return err
		}
		return e.printf(".L.end.%d:\n", l)
	}

	if err := e.printf("  je .L.else.%d\n", l); err != nil {
		return err
	}
	if err := e.emitStmt(s.Then); err != nil {
		return err
	}
	if err := e.printf("  jmp .L.end.%d\n.L.else.%d:\n", l, l); err != nil {
		return err
	}
	if err := e.emitStmt(s.Else); err != nil {
		return err
	}
	return e.printf(".L.end.%d:\n", l)
}

func (e *Emitter) emitWhile(s *ast.Stmt) error {
	l := e.nextLabel()
	if err := e.printf(".while.%d:\n", l); err != nil {
		return err
	}
	if err := e.emitExpr(s.Cond); err != nil {
		return err
	}
	if err := e.printf("  cmp $0, %%rax\n  je .while.end.%d\n", l); err != nil {
		return err
	}
	if err := e.emitStmt(s.Body); err != nil {
		return err
	}
	return e.printf("  jmp .while.%d\n.while.end.%d:\n", l, l)
}

func (e *Emitter) emitFor(s *ast.Stmt) error {
	if s.Init != nil {
		if err := e.emitStmt(s.Init); err != nil {
			return err
		}
	}
	l := e.nextLabel()
	if err := e.printf(".for.%d:\n", l); err != nil {
		return err
	}
	if s.Cond != nil {
		if err := e.emitExpr(s.Cond); err != nil {
			return err
		}
		if err := e.printf("  cmp $0, %%rax\n  je .for.end.%d\n", l); err != nil {
			return err
		}
	}
	if err := e.emitStmt(s.Body); err != nil {
		return err
	}
	if s.Inc != nil {
		if err := e.emitExpr(s.Inc); err != nil {
			return err
		}
	}
	return e.printf("  jmp .for.%d\n.for.end.%d:\n", l, l)
}

func (e *Emitter) emitReturn(s *ast.Stmt) error {
	if err := e.emitExpr(s.Expression); err != nil {
		return err
	}
	return e.printf("  jmp .L.%s.ret\n", e.funcName)
}

func (e *Emitter) emitVarDef(s *ast.Stmt) error {
	if s.IsGlobal {
		for _, d := range s.Decls {
			sym := d.Symbol
			if err := e.printf("  .globl %s\n  .data\n%s:\n  .zero %d\n", sym.Name, sym.Name, sym.Type.Size()); err != nil {
				return err
			}
		}
		return nil
	}

	for _, d := range s.Decls {
		switch d.Kind {
		case ast.Ident:
			// No initializer; the frame slot is reserved but left
			// uninitialized, same as any other local.
		case ast.Binary:
			if err := e.emitExpr(d); err != nil {
				return err
			}
		case ast.ArrayDef:
			if err := e.emitArrayDef(d); err != nil {
				return err
			}
		default:
			panic(fmt.Sprintf("codegen: unexpected local declarator kind %d", d.Kind))
		}
	}
	return nil
}

func (e *Emitter) emitArrayDef(d *ast.Expr) error {
	sym := d.Symbol
	elemType := sym.Type.Base
	elemSize := elemType.Size()
	offset := sym.Offset
	for _, init := range d.Elems {
		if err := e.emitExpr(init); err != nil {
			return err
		}
		if elemSize == 1 {
			if err := e.printf("  mov %%al, %d(%%rbp)\n", offset); err != nil {
				return err
			}
		} else {
			if err := e.printf("  mov %%rax, %d(%%rbp)\n", offset); err != nil {
				return err
			}
		}
		offset += elemSize
	}
	return nil
}

func (e *Emitter) emitFuncDef(s *ast.Stmt) error {
	prevFunc := e.funcName
	e.funcName = s.Name

	if err := e.printf("  .globl %s\n  .text\n%s:\n", s.Name, s.Name); err != nil {
		return err
	}
	if err := e.printf("  push %%rbp\n  mov %%rsp, %%rbp\n  sub $%d, %%rsp\n", s.FrameSize); err != nil {
		return err
	}
	for i, param := range s.Params {
		if err := e.printf("  mov %s, %d(%%rbp)\n", argRegs[i], param.Offset); err != nil {
			return err
		}
	}
	if err := e.emitStmt(s.Body); err != nil {
		return err
	}
	if err := e.printf(".L.%s.ret:\n  mov %%rbp, %%rsp\n  pop %%rbp\n  ret\n", s.Name); err != nil {
		return err
	}

	e.funcName = prevFunc
	return nil
}

// ---------------------------------------------------------------------
// Expressions

func (e *Emitter) emitExpr(expr *ast.Expr) error {
	switch expr.Kind {
	case ast.NumLit:
		return e.printf("  mov $%d, %%rax\n", expr.IntValue)
	case ast.StrLit:
		return e.genAddr(expr)
	case ast.Ident:
		if expr.Type.IsArray() {
			// Arrays never load: the expression evaluates to its base address.
			return e.genAddr(expr)
		}
		if err := e.genAddr(expr); err != nil {
			return err
		}
		return e.emitLoad(expr.Type)
	case ast.ArrayIndex:
		if err := e.genAddr(expr); err != nil {
			return err
		}
		if expr.Type.IsArray() {
			return nil
		}
		return e.emitLoad(expr.Type)
	case ast.Unary:
		return e.emitUnary(expr)
	case ast.Binary:
		return e.emitBinary(expr)
	case ast.Call:
		return e.emitCall(expr)
	default:
		panic(fmt.Sprintf("codegen: unexpected expression kind %d", expr.Kind))
	}
}

// genAddr emits the address of an lvalue into %rax.
func (e *Emitter) genAddr(expr *ast.Expr) error {
	switch expr.Kind {
	case ast.Ident:
		return e.genSymbolAddr(expr.Symbol)
	case ast.StrLit:
		return e.printf("  lea .str.%d(%%rip), %%rax\n", expr.LabelID)
	case ast.ArrayIndex:
		elemSize := expr.Type.Size()
		if err := e.printf("  mov $%d, %%rax\n  push %%rax\n", elemSize); err != nil {
			return err
		}
		if err := e.emitExpr(expr.Index); err != nil {
			return err
		}
		if err := e.printf("  pop %%rdi\n  imul %%rdi, %%rax\n  push %%rax\n"); err != nil {
			return err
		}
		if err := e.genSymbolAddr(expr.Symbol); err != nil {
			return err
		}
		return e.printf("  pop %%rdi\n  add %%rdi, %%rax\n")
	case ast.Unary:
		if expr.Op != ast.Deref {
			panic("codegen: genAddr on a non-lvalue unary expression")
		}
		// The operand's value IS the address being dereferenced.
		return e.emitExpr(expr.Operand)
	default:
		panic(fmt.Sprintf("codegen: cannot take the address of expression kind %d", expr.Kind))
	}
}

func (e *Emitter) genSymbolAddr(sym *scope.Symbol) error {
	if sym.Storage == scope.Global {
		return e.printf("  lea %s(%%rip), %%rax\n", sym.Name)
	}
	return e.printf("  lea %d(%%rbp), %%rax\n", sym.Offset)
}

func (e *Emitter) emitLoad(t *types.Type) error {
	if t.Size() == 1 {
		return e.printf("  movsbq (%%rax), %%rax\n")
	}
	return e.printf("  mov (%%rax), %%rax\n")
}

func (e *Emitter) emitStore(t *types.Type) error {
	if err := e.printf("  pop %%rdi\n"); err != nil {
		return err
	}
	if t.Size() == 1 {
		return e.printf("  mov %%al, (%%rdi)\n")
	}
	return e.printf("  mov %%rax, (%%rdi)\n")
}

func (e *Emitter) emitUnary(expr *ast.Expr) error {
	switch expr.Op {
	case ast.Addr:
		return e.genAddr(expr.Operand)
	case ast.Deref:
		if err := e.emitExpr(expr.Operand); err != nil {
			return err
		}
		return e.emitLoad(expr.Type)
	case ast.Neg:
		if err := e.emitExpr(expr.Operand); err != nil {
			return err
		}
		return e.printf("  neg %%rax\n")
	default:
		panic(fmt.Sprintf("codegen: unexpected unary op %d", expr.Op))
	}
}

func (e *Emitter) emitBinary(expr *ast.Expr) error {
	if expr.BinOp == token.Assign {
		if err := e.genAddr(expr.LHS); err != nil {
			return err
		}
		if err := e.printf("  push %%rax\n"); err != nil {
			return err
		}
		if err := e.emitExpr(expr.RHS); err != nil {
			return err
		}
		return e.emitStore(expr.LHS.Type)
	}

	if err := e.emitExpr(expr.RHS); err != nil {
		return err
	}
	if err := e.printf("  push %%rax\n"); err != nil {
		return err
	}
	if err := e.emitExpr(expr.LHS); err != nil {
		return err
	}
	if err := e.printf("  pop %%rdi\n"); err != nil {
		return err
	}

	switch expr.BinOp {
	case token.Plus:
		return e.printf("  add %%rdi, %%rax\n")
	case token.Minus:
		return e.printf("  sub %%rdi, %%rax\n")
	case token.Star:
		return e.printf("  imul %%rdi, %%rax\n")
	case token.Slash:
		return e.printf("  cqo\n  idiv %%rdi\n")
	case token.BitAnd:
		return e.printf("  and %%rdi, %%rax\n")
	case token.Lt, token.Le, token.Gt, token.Ge, token.Eq, token.Neq:
		suffix := setCC[expr.BinOp]
		return e.printf("  cmp %%rdi, %%rax\n  set%s %%al\n  movzb %%al, %%rax\n", suffix)
	default:
		panic(fmt.Sprintf("codegen: unexpected binary op %v", expr.BinOp))
	}
}

func (e *Emitter) emitCall(expr *ast.Expr) error {
	for _, arg := range expr.Args {
		if err := e.emitExpr(arg); err != nil {
			return err
		}
		if err := e.printf("  push %%rax\n"); err != nil {
			return err
		}
	}
	for i := len(expr.Args) - 1; i >= 0; i-- {
		if err := e.printf("  pop %s\n", argRegs[i]); err != nil {
			return err
		}
	}
	return e.printf("  call %s\n", expr.Callee)
}

func (e *Emitter) emitStringGlobal(lit *ast.Expr) error {
	return e.printf("  .globl .str.%d\n  .data\n.str.%d:\n  .string \"%s\"\n", lit.LabelID, lit.LabelID, escapeString(lit.StrValue))
}

func escapeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
