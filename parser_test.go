package main

import "testing"

func parseProgram(t *testing.T, src string) *CProgram {
	t.Helper()
	in := NewInterner()
	toks, err := NewLexer(src, in).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	prog, err := NewParser(toks, in).ParseProgram()
	if err != nil {
		t.Fatalf("ParseProgram failed: %v", err)
	}
	return prog
}

func mainReturnExp(t *testing.T, prog *CProgram) CExp {
	t.Helper()
	fn, ok := prog.Declarations[len(prog.Declarations)-1].(*CFunDecl)
	if !ok || fn.Body == nil {
		t.Fatal("last declaration is not a function definition")
	}
	for _, item := range fn.Body.Items {
		if s, ok := item.(CBlockS); ok {
			if ret, ok := s.Stmt.(*CReturn); ok {
				return ret.Exp
			}
		}
	}
	t.Fatal("no return statement found")
	return nil
}

func TestParsePrecedenceMulOverAdd(t *testing.T) {
	prog := parseProgram(t, "int main(void) { return 2 + 3 * 4; }")
	add, ok := mainReturnExp(t, prog).(*CBinary)
	if !ok || add.Op != BinAdd {
		t.Fatalf("top of tree is not +: %T", mainReturnExp(t, prog))
	}
	mul, ok := add.Right.(*CBinary)
	if !ok || mul.Op != BinMul {
		t.Fatalf("right of + is not *: %T", add.Right)
	}
}

func TestParsePrecedenceShiftBelowAdditive(t *testing.T) {
	prog := parseProgram(t, "int main(void) { return 1 << 2 + 3; }")
	shl, ok := mainReturnExp(t, prog).(*CBinary)
	if !ok || shl.Op != BinShl {
		t.Fatalf("top of tree is not <<: got %T", mainReturnExp(t, prog))
	}
	if add, ok := shl.Right.(*CBinary); !ok || add.Op != BinAdd {
		t.Fatalf("right of << is not +")
	}
}

func TestParseAssignmentRightAssociative(t *testing.T) {
	prog := parseProgram(t, "int main(void) { int a; int b; a = b = 1; return a; }")
	fn := prog.Declarations[0].(*CFunDecl)
	var assign *CAssignment
	for _, item := range fn.Body.Items {
		if s, ok := item.(CBlockS); ok {
			if es, ok := s.Stmt.(*CExpressionStmt); ok {
				assign = es.Exp.(*CAssignment)
			}
		}
	}
	if assign == nil {
		t.Fatal("no assignment statement found")
	}
	if _, ok := assign.Right.(*CAssignment); !ok {
		t.Fatalf("a = b = 1 did not nest to the right: %T", assign.Right)
	}
}

func TestParseTernaryRightAssociative(t *testing.T) {
	prog := parseProgram(t, "int main(void) { return 1 ? 2 : 3 ? 4 : 5; }")
	outer, ok := mainReturnExp(t, prog).(*CConditional)
	if !ok {
		t.Fatal("top of tree is not a conditional")
	}
	if _, ok := outer.Else.(*CConditional); !ok {
		t.Fatalf("else branch did not nest: %T", outer.Else)
	}
}

func TestParseSizeofForms(t *testing.T) {
	prog := parseProgram(t, "int main(void) { return sizeof(long) + sizeof 1; }")
	add := mainReturnExp(t, prog).(*CBinary)
	if _, ok := add.Left.(*CSizeOfType); !ok {
		t.Errorf("sizeof(long) parsed as %T", add.Left)
	}
	if _, ok := add.Right.(*CSizeOfExp); !ok {
		t.Errorf("sizeof 1 parsed as %T", add.Right)
	}
}

func TestParseStructDeclaration(t *testing.T) {
	prog := parseProgram(t, "struct S { char c; int i; }; int main(void) { return 0; }")
	sd, ok := prog.Declarations[0].(*CStructDecl)
	if !ok {
		t.Fatalf("first declaration is %T, want struct", prog.Declarations[0])
	}
	if len(sd.Members) != 2 {
		t.Fatalf("got %d members, want 2", len(sd.Members))
	}
}

func TestParseMultidimensionalArray(t *testing.T) {
	prog := parseProgram(t, "int main(void) { int a[2][3]; return 0; }")
	fn := prog.Declarations[0].(*CFunDecl)
	d := fn.Body.Items[0].(CBlockD).Decl.(*CVarDecl)
	if d.VarType.Kind != TyArray || d.VarType.ArraySize != 2 {
		t.Fatalf("outer array wrong: %+v", d.VarType)
	}
	if d.VarType.Elem.Kind != TyArray || d.VarType.Elem.ArraySize != 3 {
		t.Fatalf("inner array wrong: %+v", d.VarType.Elem)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"int main(void) { return 2 }",         // missing semicolon
		"int main(void) { return; } }",        // stray brace
		"int main(void) { int x = {}; return 0; }", // empty compound initializer
		"int main(void) { return 99999999999999999999; }", // out of range
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			in := NewInterner()
			toks, err := NewLexer(src, in).Tokenize()
			if err != nil {
				return // lexer already rejected, fine
			}
			if _, err := NewParser(toks, in).ParseProgram(); err == nil {
				t.Errorf("expected parse error for %q", src)
			}
		})
	}
}
