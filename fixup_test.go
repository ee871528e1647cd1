package main

import "testing"

// compileToAsm runs every pass up to and including fix-up, returning the
// concrete assembly IR.
func compileToAsm(t *testing.T, src string) (*AsmProgram, *Pipeline) {
	t.Helper()
	p := NewPipeline(PlatformELF)
	prog, sema, err := p.Frontend(src)
	if err != nil {
		t.Fatalf("Frontend failed: %v", err)
	}
	lw := NewLowerer(p.in, p.names, sema.front, sema.structs, sema.strings, sema.doubles)
	tac, err := lw.LowerProgram(prog)
	if err != nil {
		t.Fatalf("LowerProgram failed: %v", err)
	}
	back := BuildBackendSymbolTable(sema.front, lw.TempTypes, p.in, sema.structs, sema.strings, sema.doubles)
	PopulateFunRegMasks(sema.front, sema.structs)
	sel := NewSelector(p.in, p.names, sema.front, back, sema.structs, sema.strings, sema.doubles)
	asm := sel.SelectProgram(tac)
	NewFixup(p.in, back).FixProgram(asm)
	return asm, p
}

const fixupTestSource = `
double scale(double x) { return x * 2.0; }
struct P { long x; long y; };
long sum(struct P p) { return p.x + p.y; }
unsigned long trunc_test(double d) { return (unsigned long)d; }
int main(void) {
    struct P p = {1, 2};
    long big = 4294967296l;
    int arr[3] = {1, 2, 3};
    return (int)sum(p) + (int)scale(3.0) + (int)(big >> 32) + arr[2];
}`

func forEachInstr(prog *AsmProgram, visit func(fnName InternedID, instr AsmInstruction)) {
	for _, tl := range prog.TopLevels {
		if fn, ok := tl.(*AsmFunction); ok {
			for _, instr := range fn.Instructions {
				visit(fn.Name, instr)
			}
		}
	}
}

func isAbstract(op AsmOperand) bool {
	switch op.(type) {
	case AsmPseudo, AsmPseudoMem:
		return true
	default:
		return false
	}
}

func operandsOf(instr AsmInstruction) []AsmOperand {
	switch i := instr.(type) {
	case *AsmMov:
		return []AsmOperand{i.Src, i.Dst}
	case *AsmMovsx:
		return []AsmOperand{i.Src, i.Dst}
	case *AsmMovzx:
		return []AsmOperand{i.Src, i.Dst}
	case *AsmLea:
		return []AsmOperand{i.Src, i.Dst}
	case *AsmCvttsd2si:
		return []AsmOperand{i.Src, i.Dst}
	case *AsmCvtsi2sd:
		return []AsmOperand{i.Src, i.Dst}
	case *AsmUnary:
		return []AsmOperand{i.Operand}
	case *AsmBinary:
		return []AsmOperand{i.Src, i.Dst}
	case *AsmCmp:
		return []AsmOperand{i.Src1, i.Src2}
	case *AsmIdiv:
		return []AsmOperand{i.Operand}
	case *AsmDiv:
		return []AsmOperand{i.Operand}
	case *AsmSetCC:
		return []AsmOperand{i.Operand}
	case *AsmPush:
		return []AsmOperand{i.Operand}
	case *AsmXorSign:
		return []AsmOperand{i.Dst}
	default:
		return nil
	}
}

func TestFixupEliminatesPseudos(t *testing.T) {
	asm, p := compileToAsm(t, fixupTestSource)
	forEachInstr(asm, func(fn InternedID, instr AsmInstruction) {
		for _, op := range operandsOf(instr) {
			if isAbstract(op) {
				t.Errorf("%s: pseudo operand survived fix-up in %T", p.in.Text(fn), instr)
			}
		}
	})
}

func TestFixupNoMemToMem(t *testing.T) {
	asm, p := compileToAsm(t, fixupTestSource)
	forEachInstr(asm, func(fn InternedID, instr AsmInstruction) {
		switch i := instr.(type) {
		case *AsmMov:
			if isMem(i.Src) && isMem(i.Dst) {
				t.Errorf("%s: mov with two memory operands", p.in.Text(fn))
			}
		case *AsmCmp:
			if isMem(i.Src1) && isMem(i.Src2) {
				t.Errorf("%s: cmp with two memory operands", p.in.Text(fn))
			}
		case *AsmBinary:
			switch i.Op {
			case AsmAdd, AsmSub, AsmAnd, AsmOr, AsmXor:
				if i.Type.Kind != ATDouble && isMem(i.Src) && isMem(i.Dst) {
					t.Errorf("%s: binary op with two memory operands", p.in.Text(fn))
				}
			}
		}
	})
}

func TestFixupCmpAndImulConstraints(t *testing.T) {
	asm, p := compileToAsm(t, fixupTestSource)
	forEachInstr(asm, func(fn InternedID, instr AsmInstruction) {
		switch i := instr.(type) {
		case *AsmCmp:
			if _, ok := i.Src2.(AsmImm); ok {
				t.Errorf("%s: cmp with immediate destination operand", p.in.Text(fn))
			}
		case *AsmBinary:
			if i.Op == AsmMulInt && isMem(i.Dst) {
				t.Errorf("%s: imul with memory destination", p.in.Text(fn))
			}
		}
	})
}

func TestFixupQuadImmediatesOnlyInRegisterMov(t *testing.T) {
	asm, p := compileToAsm(t, fixupTestSource)
	forEachInstr(asm, func(fn InternedID, instr AsmInstruction) {
		for _, op := range operandsOf(instr) {
			imm, ok := op.(AsmImm)
			if !ok || !imm.IsQuad {
				continue
			}
			mov, isMov := instr.(*AsmMov)
			if !isMov || !isReg(mov.Dst) {
				t.Errorf("%s: quadword immediate outside mov-to-register: %T", p.in.Text(fn), instr)
			}
		}
	})
}

func TestFixupFrameAligned(t *testing.T) {
	asm, p := compileToAsm(t, fixupTestSource)
	for _, tl := range asm.TopLevels {
		fn, ok := tl.(*AsmFunction)
		if !ok {
			continue
		}
		// instruction 0/1 are the push/mov prologue; a sub of the frame, if
		// present, is instruction 2 when no callee-saved registers are used
		if len(fn.Instructions) < 2 {
			t.Fatalf("%s: truncated prologue", p.in.Text(fn.Name))
		}
		if _, ok := fn.Instructions[0].(*AsmPush); !ok {
			t.Errorf("%s: prologue does not start with push", p.in.Text(fn.Name))
		}
		if sub, ok := fn.Instructions[2].(*AsmBinary); ok && sub.Op == AsmSub {
			if imm, ok := sub.Src.(AsmImm); ok {
				if imm.Value%16 != 0 {
					t.Errorf("%s: frame %d not 16-byte aligned", p.in.Text(fn.Name), imm.Value)
				}
			}
		}
	}
}

func TestFixupStaticBecomesData(t *testing.T) {
	asm, p := compileToAsm(t, `
static long counter = 7;
int main(void) { counter = counter + 1; return (int)counter; }`)
	sawData := false
	forEachInstr(asm, func(fn InternedID, instr AsmInstruction) {
		for _, op := range operandsOf(instr) {
			if d, ok := op.(AsmData); ok && d.Label == "counter" {
				sawData = true
			}
		}
	})
	_ = p
	if !sawData {
		t.Error("static variable access did not become a Data operand")
	}
}

func TestFixupEpilogueBeforeEveryRet(t *testing.T) {
	asm, p := compileToAsm(t, `
int f(int x) { if (x) return 1; return 2; }
int main(void) { return f(0); }`)
	for _, tl := range asm.TopLevels {
		fn, ok := tl.(*AsmFunction)
		if !ok {
			continue
		}
		for idx, instr := range fn.Instructions {
			if _, ok := instr.(*AsmRet); !ok {
				continue
			}
			if idx < 2 {
				t.Fatalf("%s: ret with no room for an epilogue", p.in.Text(fn.Name))
			}
			if _, ok := fn.Instructions[idx-1].(*AsmPop); !ok {
				t.Errorf("%s: ret not preceded by pop %%rbp", p.in.Text(fn.Name))
			}
			mov, ok := fn.Instructions[idx-2].(*AsmMov)
			if !ok {
				t.Errorf("%s: ret not preceded by mov %%rbp, %%rsp", p.in.Text(fn.Name))
			} else if r, ok := mov.Src.(AsmReg); !ok || r.Reg != RegBP {
				t.Errorf("%s: epilogue mov source is not %%rbp", p.in.Text(fn.Name))
			}
		}
	}
}
