package main

import (
	"strings"
	"testing"
)

func emitSource(t *testing.T, platform Platform, src string) string {
	t.Helper()
	p := NewPipeline(platform)
	p.SetFormat(false)
	asm, err := p.Compile(src)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return asm
}

func TestEmitMinimalProgram(t *testing.T) {
	asm := emitSource(t, PlatformELF, "int main(void) { return 0; }")
	for _, want := range []string{
		"\t.globl main",
		"\t.text",
		"main:",
		"\tpushq %rbp",
		"\tmovq %rsp, %rbp",
		"\tmovl $0, %eax",
		"\tmovq %rbp, %rsp",
		"\tpopq %rbp",
		"\tret",
		"\t.section .note.GNU-stack,\"\",@progbits",
	} {
		if !strings.Contains(asm, want) {
			t.Errorf("missing %q in:\n%s", want, asm)
		}
	}
}

func TestEmitPLTForUndefinedExtern(t *testing.T) {
	src := "int putchar(int c); int main(void) { return putchar(65); }"
	asm := emitSource(t, PlatformELF, src)
	if !strings.Contains(asm, "\tcall putchar@PLT\n") {
		t.Errorf("undefined extern call lacks @PLT:\n%s", asm)
	}
}

func TestEmitNoPLTForDefinedFunction(t *testing.T) {
	src := "int f(void) { return 1; } int main(void) { return f(); }"
	asm := emitSource(t, PlatformELF, src)
	if strings.Contains(asm, "@PLT") {
		t.Errorf("call to locally defined function got @PLT:\n%s", asm)
	}
}

func TestEmitDarwinVariant(t *testing.T) {
	src := "int putchar(int c); int main(void) { return putchar(65); }"
	asm := emitSource(t, PlatformDarwin, src)
	if !strings.Contains(asm, "_main:") {
		t.Errorf("Darwin symbols not underscore-prefixed:\n%s", asm)
	}
	if !strings.Contains(asm, "\tcall _putchar\n") {
		t.Errorf("Darwin call not underscore-prefixed:\n%s", asm)
	}
	if strings.Contains(asm, "@PLT") {
		t.Errorf("@PLT emitted on Darwin:\n%s", asm)
	}
	if strings.Contains(asm, ".note.GNU-stack") {
		t.Errorf("ELF trailer emitted on Darwin:\n%s", asm)
	}
}

func TestEmitStaticData(t *testing.T) {
	asm := emitSource(t, PlatformELF, "int x = 5; int main(void) { return x; }")
	for _, want := range []string{
		"\t.globl x",
		"\t.data",
		"\t.balign 4",
		"x:",
		"\t.long 5",
		"x(%rip)",
	} {
		if !strings.Contains(asm, want) {
			t.Errorf("missing %q in:\n%s", want, asm)
		}
	}
}

func TestEmitZeroInitGoesToBss(t *testing.T) {
	asm := emitSource(t, PlatformELF, "int x; int main(void) { return x; }")
	if !strings.Contains(asm, "\t.bss\n") {
		t.Errorf("tentative definition not placed in .bss:\n%s", asm)
	}
	if !strings.Contains(asm, "\t.zero 4\n") {
		t.Errorf(".bss entry not zero-sized correctly:\n%s", asm)
	}
}

func TestEmitDoubleConstantPooled(t *testing.T) {
	asm := emitSource(t, PlatformELF, "double d(void) { return 1.5; } int main(void) { return (int)d(); }")
	if !strings.Contains(asm, "\t.section .rodata\n") {
		t.Errorf("no .rodata section:\n%s", asm)
	}
	if !strings.Contains(asm, ".Ldouble.0:") {
		t.Errorf("double constant label missing:\n%s", asm)
	}
	// bit pattern of 1.5
	if !strings.Contains(asm, "\t.quad 4609434218613702656\n") {
		t.Errorf("1.5 payload missing:\n%s", asm)
	}
	if !strings.Contains(asm, ".Ldouble.0(%rip)") {
		t.Errorf("rip-relative constant reference missing:\n%s", asm)
	}
}

func TestEmitNegZeroSixteenAligned(t *testing.T) {
	asm := emitSource(t, PlatformELF, "double neg(double x) { return -x; } int main(void) { return 0; }")
	idx := strings.Index(asm, "\t.quad 9223372036854775808\n")
	if idx < 0 {
		t.Fatalf("-0.0 constant missing:\n%s", asm)
	}
	head := asm[:idx]
	align := strings.LastIndex(head, "\t.balign 16\n")
	if align < 0 {
		t.Errorf("-0.0 constant not 16-byte aligned:\n%s", asm)
	}
	if !strings.Contains(asm, "xorpd") {
		t.Errorf("double negation does not use xorpd:\n%s", asm)
	}
}

func TestEmitStringLiteral(t *testing.T) {
	asm := emitSource(t, PlatformELF, `
int puts(char *s);
int main(void) { return puts("hi\n"); }`)
	if !strings.Contains(asm, "\t.asciz \"hi\\n\"\n") {
		t.Errorf("string constant missing or badly escaped:\n%s", asm)
	}
	if !strings.Contains(asm, ".Lstring.0") {
		t.Errorf("string label missing:\n%s", asm)
	}
}

func TestEmitSectionOrder(t *testing.T) {
	asm := emitSource(t, PlatformELF, `
double half = 0.5;
int counter;
double get(void) { return half + 1.5; }
int main(void) { return counter; }`)
	rodata := strings.Index(asm, ".rodata")
	data := strings.Index(asm, "\t.data\n")
	text := strings.Index(asm, "\t.text\n")
	if rodata < 0 || data < 0 || text < 0 {
		t.Fatalf("expected all three sections:\n%s", asm)
	}
	if !(rodata < data && data < text) {
		t.Errorf("section order wrong: rodata=%d data=%d text=%d", rodata, data, text)
	}
}

func TestEmitLocalLabelsPrefixed(t *testing.T) {
	asm := emitSource(t, PlatformELF, `
int main(void) {
    int i; int s = 0;
    for (i = 0; i < 3; i = i + 1) { s = s + i; }
    return s;
}`)
	if !strings.Contains(asm, "\tjmp .L") {
		t.Errorf("jump targets not .L-prefixed:\n%s", asm)
	}
	if strings.Contains(asm, "\tjmp for_start") {
		t.Errorf("raw label leaked into jump:\n%s", asm)
	}
}

func TestEmitDeterministic(t *testing.T) {
	src := `
struct S { int a; double b; };
static struct S s = {1, 2.5};
double get(struct S x) { return x.b; }
int main(void) { return (int)get(s) + s.a; }`
	first := emitSource(t, PlatformELF, src)
	second := emitSource(t, PlatformELF, src)
	if first != second {
		t.Error("two compilations of the same source differ")
	}
}
