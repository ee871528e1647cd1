package main

import (
	"strings"
	"testing"
)

// The end-to-end scenarios: each source must compile clean, and the text
// must be concrete (no pseudo names, no abstract operands ever reach the
// printer, which would panic).
func TestCompileScenarios(t *testing.T) {
	scenarios := []struct {
		name string
		src  string
	}{
		{"constant-fold-free arithmetic", "int main(void) { return 2 + 3 * 4; }"},
		{"compound assignment", "int main(void) { int a = 5; a += 3; return a; }"},
		{"array indexing", "int main(void) { int a[3] = {1,2,3}; return a[2]; }"},
		{"struct sizeof and member", "struct S { char c; int i; }; int main(void) { struct S s = {0,7}; return sizeof(s) + s.i; }"},
		{"double through a call", "double f(double x) { return x * 2.0; } int main(void) { return (int)f(3.5); }"},
		{"recursion", "int fact(int n){ if (n<=1) return 1; return n*fact(n-1);} int main(void){ return fact(5);}"},
		{"double to unsigned long", "unsigned long g(double d) { return (unsigned long)d; } int main(void) { return (int)(g(9223372036854775808.0) >> 60); }"},
		{"switch dispatch", `int classify(int x) {
			switch (x) { case 0: return 10; case 1: return 20; default: return 30; }
		}
		int main(void) { return classify(1); }`},
		{"goto", "int main(void) { int i = 0; again: i = i + 1; if (i < 3) goto again; return i; }"},
		{"pointers and increment", "int main(void) { int a[2] = {1, 2}; int *p = a; p++; return *p; }"},
		{"string literal", "int main(void) { char *s = \"x\"; return s[0]; }"},
		{"unsigned comparison", "int main(void) { unsigned int u = 4294967295u; return u > 0; }"},
		{"char promotion", "int main(void) { char c = 100; char d = 100; return (c + d) > 150; }"},
		{"struct by value", `struct P { long x; long y; };
		long sum(struct P p) { return p.x + p.y; }
		int main(void) { struct P p = {3, 4}; return (int)sum(p); }`},
		{"struct returned in registers", `struct P { int a; int b; };
		struct P make(void) { struct P p = {1, 2}; return p; }
		int main(void) { return make().b; }`},
		{"big struct returned in memory", `struct Big { long a; long b; long c; };
		struct Big make(void) { struct Big b = {1, 2, 3}; return b; }
		int main(void) { struct Big b = make(); return (int)b.c; }`},
		{"do while", "int main(void) { int i = 0; do { i = i + 1; } while (i < 5); return i; }"},
		{"nested loops with break and continue", `int main(void) {
			int s = 0; int i; int j;
			for (i = 0; i < 3; i = i + 1) {
				for (j = 0; j < 3; j = j + 1) {
					if (j == 1) continue;
					if (j == 2) break;
					s = s + 1;
				}
			}
			return s;
		}`},
	}
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			p := NewPipeline(PlatformELF)
			p.SetFormat(false)
			asm, err := p.Compile(sc.src)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if !strings.Contains(asm, "main:") {
				t.Fatalf("no main emitted:\n%s", asm)
			}
			if strings.Contains(asm, "var.") && !strings.Contains(asm, ".Lvar.") {
				t.Errorf("pseudo temporary leaked into text:\n%s", asm)
			}
		})
	}
}

func TestCompileErrorsKeepKind(t *testing.T) {
	cases := []struct {
		src  string
		kind CompileErrorKind
	}{
		{"int main(void) { return $; }", ErrLex},
		{"int main(void) { return 2 }", ErrParse},
		{"int main(void) { return x; }", ErrSemantic},
	}
	for _, c := range cases {
		p := NewPipeline(PlatformELF)
		_, err := p.Compile(c.src)
		if err == nil {
			t.Errorf("%q: expected error", c.src)
			continue
		}
		ce, ok := err.(*CompileError)
		if !ok {
			t.Errorf("%q: error is %T, not CompileError", c.src, err)
			continue
		}
		if ce.Kind != c.kind {
			t.Errorf("%q: got kind %v, want %v", c.src, ce.Kind, c.kind)
		}
	}
}

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		kind CompileErrorKind
		code int
	}{
		{ErrArgument, 2},
		{ErrIO, 3},
		{ErrLex, 4},
		{ErrParse, 5},
		{ErrSemantic, 6},
		{ErrInternal, 7},
	}
	for _, c := range cases {
		if got := exitCode(&CompileError{Kind: c.kind}); got != c.code {
			t.Errorf("kind %v: got exit code %d, want %d", c.kind, got, c.code)
		}
	}
}

func TestFormatPassKeepsContent(t *testing.T) {
	src := "int main(void) { return 42; }"
	raw := NewPipeline(PlatformELF)
	raw.SetFormat(false)
	plain, err := raw.Compile(src)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	fmtd := NewPipeline(PlatformELF)
	formatted, err := fmtd.Compile(src)
	if err != nil {
		t.Fatalf("formatted Compile failed: %v", err)
	}
	for _, needle := range []string{"main:", "$42", "ret"} {
		if !strings.Contains(plain, needle) || !strings.Contains(formatted, needle) {
			t.Errorf("%q lost in output", needle)
		}
	}
}
