package parser_test

import (
	"strings"
	"testing"

	"wizardc.dev/wizardc/pkg/ast"
	"wizardc.dev/wizardc/pkg/parser"
)

func mustParse(t *testing.T, src string) *ast.Stmt {
	t.Helper()
	p, err := parser.New(src)
	if err != nil {
		t.Fatalf("unexpected lex error: %v", err)
	}
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return prog
}

func mustFailParse(t *testing.T, src string) error {
	t.Helper()
	p, err := parser.New(src)
	if err != nil {
		return err
	}
	_, err = p.Parse()
	if err == nil {
		t.Fatalf("expected a parse/type error for %q, got none", src)
	}
	return err
}

func TestFuncDefAndReturn(t *testing.T) {
	prog := mustParse(t, "int main() { return 1 + 2 * 3; }")
	if len(prog.Stmts) != 1 {
		t.Fatalf("expected 1 top-level statement, got %d", len(prog.Stmts))
	}
	fn := prog.Stmts[0]
	if fn.Kind != ast.FuncDef || fn.Name != "main" {
		t.Fatalf("expected FuncDef 'main', got kind=%v name=%q", fn.Kind, fn.Name)
	}
	if len(fn.Body.Stmts) != 1 || fn.Body.Stmts[0].Kind != ast.Return {
		t.Fatalf("expected a single return statement in the body")
	}
}

func TestGlobalAndLocalVarDecl(t *testing.T) {
	prog := mustParse(t, `
int counter;
int main() {
	int x = 1;
	int a[3] = {1, 2, 3};
	return x + a[0];
}`)
	if len(prog.Stmts) != 2 {
		t.Fatalf("expected 2 top-level statements, got %d", len(prog.Stmts))
	}
	global := prog.Stmts[0]
	if global.Kind != ast.VarDef || !global.IsGlobal {
		t.Fatalf("expected a global VarDef, got kind=%v global=%v", global.Kind, global.IsGlobal)
	}

	fn := prog.Stmts[1]
	body := fn.Body.Stmts
	if len(body) != 3 {
		t.Fatalf("expected 3 statements in main's body, got %d", len(body))
	}
	if body[0].Kind != ast.VarDef || body[0].IsGlobal {
		t.Fatalf("expected a local VarDef for 'x'")
	}
	if body[1].Decls[0].Kind != ast.ArrayDef {
		t.Fatalf("expected an ArrayDef declarator for 'a', got %v", body[1].Decls[0].Kind)
	}
}

func TestFunctionParametersUpToSix(t *testing.T) {
	mustParse(t, "int add6(int a, int b, int c, int d, int e, int f) { return a+b+c+d+e+f; }")

	err := mustFailParse(t, "int add7(int a, int b, int c, int d, int e, int f, int g) { return a; }")
	if !strings.Contains(err.Error(), "at most 6 parameters") {
		t.Errorf("expected a 'too many parameters' error, got: %v", err)
	}
}

func TestForbidsForwardDeclarations(t *testing.T) {
	err := mustFailParse(t, "int foo();")
	if !strings.Contains(err.Error(), "forward declarations are not supported") {
		t.Errorf("expected a forward-declaration error, got: %v", err)
	}
}

func TestIfWhileFor(t *testing.T) {
	prog := mustParse(t, `
int main() {
	int i;
	if (i < 10) { i = i + 1; } else { i = 0; }
	while (i < 10) { i = i + 1; }
	for (i = 0; i < 10; i = i + 1) { i = i; }
	for (;;) { return 0; }
	return i;
}`)
	body := prog.Stmts[0].Body.Stmts
	if body[1].Kind != ast.If || body[1].Else == nil {
		t.Fatalf("expected an If statement with an else branch")
	}
	if body[2].Kind != ast.While {
		t.Fatalf("expected a While statement")
	}
	forStmt := body[3]
	if forStmt.Kind != ast.For || forStmt.Init == nil || forStmt.Cond == nil || forStmt.Inc == nil {
		t.Fatalf("expected a fully-populated For statement")
	}
	bareFor := body[4]
	if bareFor.Kind != ast.For || bareFor.Init != nil || bareFor.Cond != nil || bareFor.Inc != nil {
		t.Fatalf("expected a bare 'for(;;)' with every clause nil")
	}
}

func TestPointersAndAddrOf(t *testing.T) {
	prog := mustParse(t, `
int main() {
	int x;
	int *p;
	p = &x;
	*p = 5;
	return *p;
}`)
	body := prog.Stmts[0].Body.Stmts
	assignP := body[2].Expression
	if assignP.BinOp.String() != "'='" {
		t.Fatalf("expected an assignment expression statement")
	}
	if assignP.RHS.Kind != ast.Unary || assignP.RHS.Op != ast.Addr {
		t.Fatalf("expected rhs of 'p = &x' to be a Unary Addr node")
	}
}

func TestPointerArithmeticScaling(t *testing.T) {
	prog := mustParse(t, `
int main() {
	int *p;
	int x;
	p = &x;
	p = p + 1;
	return 0;
}`)
	body := prog.Stmts[0].Body.Stmts
	add := body[3].Expression.RHS // p + 1
	if add.BinOp.String() != "'+'" {
		t.Fatalf("expected a '+' binary node")
	}
	// The integer operand should have been rewritten into an explicit
	// "1 * 8" scaling multiply.
	if add.RHS.Kind != ast.Binary || add.RHS.BinOp.String() != "'*'" {
		t.Fatalf("expected the integer side of pointer+int to be rewritten as a scaling multiply")
	}
}

func TestUndeclaredVariableIsAnError(t *testing.T) {
	err := mustFailParse(t, "int main() { return y; }")
	if !strings.Contains(err.Error(), "undeclared variable") {
		t.Errorf("expected an undeclared-variable error, got: %v", err)
	}
}

func TestRedefinitionInSameScopeIsAnError(t *testing.T) {
	err := mustFailParse(t, "int main() { int x; int x; return x; }")
	if !strings.Contains(err.Error(), "redefine") {
		t.Errorf("expected a redefinition error, got: %v", err)
	}
}

func TestAssignmentTypeMismatchIsAnError(t *testing.T) {
	err := mustFailParse(t, "int main() { int *p; int x; p = x; return 0; }")
	if !strings.Contains(err.Error(), "assignment") {
		t.Errorf("expected an assignment-mismatch error, got: %v", err)
	}
}

func TestArrayIndexRequiresAnArray(t *testing.T) {
	err := mustFailParse(t, "int main() { int *p; return p[0]; }")
	if !strings.Contains(err.Error(), "is not an array") {
		t.Errorf("expected an array-index error for a pointer operand, got: %v", err)
	}
}

func TestCallArgumentCountMismatch(t *testing.T) {
	src := `
int add(int a, int b) { return a + b; }
int main() { return add(1); }`
	err := mustFailParse(t, src)
	if !strings.Contains(err.Error(), "expects 2 argument") {
		t.Errorf("expected an argument-count error, got: %v", err)
	}
}

func TestNegativeScenarios(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{`int main(){return y;}`, "undeclared"},
		{`int main(){int x; int x; return 0;}`, "redefine"},
		{`int main(){int *p; int x; p=x; return 0;}`, "assignment"},
	}
	for _, c := range cases {
		err := mustFailParse(t, c.src)
		if !strings.Contains(err.Error(), c.want) {
			t.Errorf("%q: error %q does not mention %q", c.src, err.Error(), c.want)
		}
	}
}

func TestStringLiteralBecomesGlobal(t *testing.T) {
	prog := mustParse(t, `int main() { return *"hi"; }`)
	if len(prog.Strings) != 1 {
		t.Fatalf("expected 1 collected string literal, got %d", len(prog.Strings))
	}
	if prog.Strings[0].StrValue != "hi" {
		t.Errorf("string payload = %q, want %q", prog.Strings[0].StrValue, "hi")
	}
}
