package main

import (
	"errors"
	"testing"
)

// analyze runs lex/parse/sema over src, returning the analyzer (for table
// inspection) or the error.
func analyze(t *testing.T, src string) (*Sema, *CProgram, error) {
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
	sema := NewSema(in, NewNameGen())
	return sema, prog, sema.AnalyzeProgram(prog)
}

func semaKindOf(t *testing.T, err error) SemanticErrorKind {
	t.Helper()
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("error is not a CompileError: %v", err)
	}
	if ce.Kind != ErrSemantic {
		t.Fatalf("error kind is %v, want semantic", ce.Kind)
	}
	return ce.SemaKind
}

func TestStructLayout(t *testing.T) {
	sema, _, err := analyze(t, `
struct S { char c; int i; long l; };
int main(void) { struct S s; return sizeof(s); }`)
	if err != nil {
		t.Fatalf("AnalyzeProgram failed: %v", err)
	}
	tag, ok := sema.in.Lookup("S")
	if !ok {
		t.Fatal("tag S never interned")
	}
	td := sema.structs[tag]
	if td == nil {
		t.Fatal("no typedef entry for S")
	}
	if td.Size != 16 || td.Alignment != 8 {
		t.Errorf("S layout: size=%d align=%d, want 16/8", td.Size, td.Alignment)
	}
	c, _ := sema.in.Lookup("c")
	i, _ := sema.in.Lookup("i")
	l, _ := sema.in.Lookup("l")
	if td.Members[c].Offset != 0 || td.Members[i].Offset != 4 || td.Members[l].Offset != 8 {
		t.Errorf("offsets: c=%d i=%d l=%d, want 0/4/8",
			td.Members[c].Offset, td.Members[i].Offset, td.Members[l].Offset)
	}
	if td.Size%int64(td.Alignment) != 0 {
		t.Error("size is not a multiple of alignment")
	}
	offs := td.MemberOffsets()
	for i := 1; i < len(offs); i++ {
		if offs[i] <= offs[i-1] {
			t.Errorf("member offsets not strictly increasing: %v", offs)
		}
	}
}

func TestUnionLayout(t *testing.T) {
	sema, _, err := analyze(t, `
union U { char c; int i; double d; };
int main(void) { union U u; return sizeof(u); }`)
	if err != nil {
		t.Fatalf("AnalyzeProgram failed: %v", err)
	}
	tag, _ := sema.in.Lookup("U")
	td := sema.structs[tag]
	if td.Size != 8 || td.Alignment != 8 {
		t.Errorf("U layout: size=%d align=%d, want 8/8", td.Size, td.Alignment)
	}
	for _, name := range td.MemberNames {
		if td.Members[name].Offset != 0 {
			t.Errorf("union member %q offset %d, want 0", sema.in.Text(name), td.Members[name].Offset)
		}
	}
}

func TestDuplicateMemberRejected(t *testing.T) {
	_, _, err := analyze(t, "struct S { int a; int a; }; int main(void) { return 0; }")
	if err == nil {
		t.Fatal("expected duplicate-member error")
	}
	if k := semaKindOf(t, err); k != SemaDuplicateMember {
		t.Errorf("got kind %d, want duplicate-member", k)
	}
}

func TestDuplicateCaseRejected(t *testing.T) {
	_, _, err := analyze(t, `
int main(void) {
    switch (1) { case 1: return 1; case 1: return 2; }
    return 0;
}`)
	if err == nil {
		t.Fatal("expected duplicate-case error")
	}
	if k := semaKindOf(t, err); k != SemaDuplicateCase {
		t.Errorf("got kind %d, want duplicate-case", k)
	}
}

func TestDuplicateCaseAfterTruncationRejected(t *testing.T) {
	// -1 and 4294967295 are the same value once truncated to the unsigned
	// switch's bucket type; the duplicate check must compare post-truncation
	_, _, err := analyze(t, `
int main(void) {
    unsigned int u = 0u;
    switch (u) { case -1: return 1; case 4294967295u: return 2; }
    return 0;
}`)
	if err == nil {
		t.Fatal("expected duplicate-case error for values colliding after truncation")
	}
	if k := semaKindOf(t, err); k != SemaDuplicateCase {
		t.Errorf("got kind %d, want duplicate-case", k)
	}
}

func TestNegatedCaseLabelAccepted(t *testing.T) {
	_, _, err := analyze(t, `
int main(void) {
    int x = -1;
    switch (x) { case -1: return 1; case 1: return 2; }
    return 0;
}`)
	if err != nil {
		t.Fatalf("negated case label rejected: %v", err)
	}
}

func TestCaseValuesCastToSwitchType(t *testing.T) {
	// 1 and 256+1 collide once truncated to the char-promoted int bucket?
	// No: switch type is int, so they stay distinct.
	_, _, err := analyze(t, `
int main(void) {
    switch (1) { case 1: return 1; case 257: return 2; }
    return 0;
}`)
	if err != nil {
		t.Fatalf("distinct int cases rejected: %v", err)
	}
}

func TestBreakOutsideLoopRejected(t *testing.T) {
	_, _, err := analyze(t, "int main(void) { break; return 0; }")
	if err == nil {
		t.Fatal("expected out-of-loop error")
	}
	if k := semaKindOf(t, err); k != SemaOutOfLoop {
		t.Errorf("got kind %d, want out-of-loop", k)
	}
}

func TestContinueBindsOnlyToLoops(t *testing.T) {
	// continue inside a switch inside a loop binds to the loop, not the switch
	_, _, err := analyze(t, `
int main(void) {
    int i;
    for (i = 0; i < 3; i = i + 1) {
        switch (i) { case 1: continue; }
    }
    return i;
}`)
	if err != nil {
		t.Fatalf("continue-in-switch-in-loop rejected: %v", err)
	}
}

func TestGotoUndefinedTargetRejected(t *testing.T) {
	_, _, err := analyze(t, "int main(void) { goto nowhere; return 0; }")
	if err == nil {
		t.Fatal("expected undefined-goto-target error")
	}
	if k := semaKindOf(t, err); k != SemaUndefGotoTarget {
		t.Errorf("got kind %d, want undef-goto-target", k)
	}
}

func TestGotoResolvedAcrossBlocks(t *testing.T) {
	_, _, err := analyze(t, `
int main(void) {
    goto done;
    { done: return 1; }
}`)
	if err != nil {
		t.Fatalf("forward goto across block rejected: %v", err)
	}
}

func TestIllegalCastRejected(t *testing.T) {
	_, _, err := analyze(t, `
int main(void) { int *p = 0; long *q = p; return 0; }`)
	if err == nil {
		t.Fatal("expected illegal-cast error for int* -> long*")
	}
	if k := semaKindOf(t, err); k != SemaInvalidCast {
		t.Errorf("got kind %d, want invalid-cast", k)
	}
}

func TestVoidPointerConvertsImplicitly(t *testing.T) {
	_, _, err := analyze(t, `
int main(void) { int x; void *v = &x; int *p = v; return 0; }`)
	if err != nil {
		t.Fatalf("void* conversion rejected: %v", err)
	}
}

func TestCommonTypePromotion(t *testing.T) {
	sema, prog, err := analyze(t, "int main(void) { char c = 1; long l = 2; return c + l; }")
	if err != nil {
		t.Fatalf("AnalyzeProgram failed: %v", err)
	}
	_ = sema
	exp := mainReturnExp(t, prog)
	if exp.Type().Kind != TyLong {
		t.Errorf("char + long has type %v, want long", exp.Type().Kind)
	}
}

func TestUnsignedWinsTie(t *testing.T) {
	_, prog, err := analyze(t, "int main(void) { unsigned int u = 1; int i = 2; return (int)(u + i); }")
	if err != nil {
		t.Fatalf("AnalyzeProgram failed: %v", err)
	}
	cast := mainReturnExp(t, prog).(*CCast)
	if cast.Exp.Type().Kind != TyUInt {
		t.Errorf("uint + int has type %v, want unsigned int", cast.Exp.Type().Kind)
	}
}

func TestArrayDecays(t *testing.T) {
	_, prog, err := analyze(t, "int main(void) { int a[3]; int *p = a; return p == a; }")
	if err != nil {
		t.Fatalf("array decay rejected: %v", err)
	}
	_ = prog
}

func TestAddrOfNonLValueRejected(t *testing.T) {
	_, _, err := analyze(t, "int main(void) { return (long)&3; }")
	if err == nil {
		t.Fatal("expected error for &3")
	}
}

func TestSizeofIncompleteRejected(t *testing.T) {
	_, _, err := analyze(t, "struct S; int main(void) { return sizeof(struct S); }")
	if err == nil {
		t.Fatal("expected incomplete-type error")
	}
	if k := semaKindOf(t, err); k != SemaIncompleteType {
		t.Errorf("got kind %d, want incomplete-type", k)
	}
}

func TestStaticInitElaboration(t *testing.T) {
	sema, _, err := analyze(t, `
static int arr[5] = {1, 2};
int main(void) { return arr[0]; }`)
	if err != nil {
		t.Fatalf("AnalyzeProgram failed: %v", err)
	}
	id, _ := sema.in.Lookup("arr")
	sym := sema.front[id]
	sa := sym.Attrs.(StaticAttr)
	if sa.Init.Kind != IVInitial {
		t.Fatal("arr has no elaborated initializer")
	}
	inits := sa.Init.Inits
	if len(inits) != 3 {
		t.Fatalf("got %d static inits, want 3 (two values + merged zero run): %v", len(inits), inits)
	}
	if z, ok := inits[2].(ZeroInit); !ok || z.Bytes != 12 {
		t.Errorf("tail is %v, want ZeroInit{12}", inits[2])
	}
}

func TestStaticPointerInitMustBeConstant(t *testing.T) {
	_, _, err := analyze(t, `
int x;
static int *p = &x + 1;
int main(void) { return 0; }`)
	if err == nil {
		t.Fatal("expected static-ptr-init error")
	}
}
