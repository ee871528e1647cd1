package main

import "testing"

// selectInstrs runs every pass up to and including instruction selection
// (no fix-up), returning the named function's symbolic instructions so
// tests can inspect the selected sequence before pseudos are resolved.
func selectInstrs(t *testing.T, src, fnName string) ([]AsmInstruction, *Pipeline) {
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
	id, ok := p.in.Lookup(fnName)
	if !ok {
		t.Fatalf("function %q never interned", fnName)
	}
	for _, tl := range asm.TopLevels {
		if fn, ok := tl.(*AsmFunction); ok && fn.Name == id {
			return fn.Instructions, p
		}
	}
	t.Fatalf("no function %q selected", fnName)
	return nil, nil
}

func TestDoubleCondJumpNaNBypass(t *testing.T) {
	cases := []struct {
		name string
		src  string
		cc   CondCode // the flag-driven jump the parity bypass guards
		// true: the parity jump shares the guarded jump's target (a NaN
		// condition takes the branch); false: it skips past it (a NaN
		// condition falls through)
		sameTarget bool
	}{
		{
			"jump if zero skips on NaN",
			"int main(void) { double d = 0.0; if (d) return 1; return 0; }",
			CCEqual, false,
		},
		{
			"jump if not zero branches on NaN",
			"int main(void) { double d = 2.0; do { d = d - 1.0; } while (d); return 0; }",
			CCNotEqual, true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			instrs, _ := selectInstrs(t, c.src, "main")
			for i, instr := range instrs {
				jp, ok := instr.(*AsmJmpCC)
				if !ok || jp.CC != CCParity {
					continue
				}
				if i+1 >= len(instrs) {
					t.Fatal("parity jump is the last instruction")
				}
				guarded, ok := instrs[i+1].(*AsmJmpCC)
				if !ok || guarded.CC != c.cc {
					t.Fatalf("parity jump not followed by the guarded conditional jump: %T", instrs[i+1])
				}
				if (jp.Target == guarded.Target) != c.sameTarget {
					t.Errorf("parity target == guarded target is %v, want %v",
						jp.Target == guarded.Target, c.sameTarget)
				}
				if !c.sameTarget {
					lbl, ok := instrs[i+2].(*AsmLabel)
					if !ok || lbl.Name != jp.Target {
						t.Error("no skip label terminating the NaN bypass")
					}
				}
				return
			}
			t.Fatal("no parity-flag bypass emitted for a double condition")
		})
	}
}

func TestDoubleRelationalNaNFalse(t *testing.T) {
	instrs, _ := selectInstrs(t,
		"int main(void) { double a = 1.0; double b = 2.0; return a < b; }", "main")
	sawParityJump, sawSetBelow := false, false
	for _, instr := range instrs {
		switch i := instr.(type) {
		case *AsmJmpCC:
			if i.CC == CCParity {
				sawParityJump = true
			}
		case *AsmSetCC:
			if i.CC == CCBelow {
				sawSetBelow = true
			}
		}
	}
	if !sawSetBelow {
		t.Error("double < did not select setb")
	}
	if !sawParityJump {
		t.Error("double comparison has no parity skip; NaN would not read as false")
	}
}

func TestDoubleNotEqualCountsNaNAsTrue(t *testing.T) {
	instrs, _ := selectInstrs(t,
		"int main(void) { double a = 1.0; double b = 2.0; return a != b; }", "main")
	sawSetNE, sawSetParity, sawOr := false, false, false
	for _, instr := range instrs {
		switch i := instr.(type) {
		case *AsmSetCC:
			if i.CC == CCNotEqual {
				sawSetNE = true
			}
			if i.CC == CCParity {
				sawSetParity = true
			}
		case *AsmBinary:
			if i.Op == AsmOr && i.Type.Kind == ATByte {
				sawOr = true
			}
		}
	}
	if !sawSetNE || !sawSetParity || !sawOr {
		t.Errorf("double != must OR the parity byte into the setne result: setne=%v setp=%v or=%v",
			sawSetNE, sawSetParity, sawOr)
	}
}

func TestLogicalNotDoubleNaNIsTruthy(t *testing.T) {
	// !NaN is 0: the selected sequence must skip the sete on a parity hit,
	// leaving the zero written up front.
	instrs, _ := selectInstrs(t,
		"int main(void) { double d = 0.0; return !d; }", "main")
	for i, instr := range instrs {
		jp, ok := instr.(*AsmJmpCC)
		if !ok || jp.CC != CCParity {
			continue
		}
		if set, ok := instrs[i+1].(*AsmSetCC); !ok || set.CC != CCEqual {
			t.Fatalf("parity jump does not guard the sete: %T", instrs[i+1])
		}
		if lbl, ok := instrs[i+2].(*AsmLabel); !ok || lbl.Name != jp.Target {
			t.Fatal("parity jump does not land just past the sete")
		}
		return
	}
	t.Fatal("no parity skip selected for logical not on a double")
}

func TestIntArgumentRegisterOrder(t *testing.T) {
	instrs, _ := selectInstrs(t,
		"int f(int a, int b, int c) { return a + b + c; } int main(void) { return f(1, 2, 3); }", "f")
	want := []RegId{RegDI, RegSI, RegDX}
	var got []RegId
	for _, instr := range instrs {
		if mov, ok := instr.(*AsmMov); ok {
			if r, ok := mov.Src.(AsmReg); ok && len(got) < len(want) {
				got = append(got, r.Reg)
			}
		}
	}
	if len(got) != len(want) {
		t.Fatalf("got %d parameter moves, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("parameter %d arrives in reg %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDoubleToULongUsesPivot(t *testing.T) {
	instrs, _ := selectInstrs(t,
		"unsigned long g(double d) { return (unsigned long)d; } int main(void) { return 0; }", "g")
	sawPivotCmp, sawAEJump, converts := false, false, 0
	for _, instr := range instrs {
		switch i := instr.(type) {
		case *AsmCmp:
			if i.Type.Kind == ATDouble {
				if _, ok := i.Src1.(AsmData); ok {
					sawPivotCmp = true
				}
			}
		case *AsmJmpCC:
			if i.CC == CCAboveEqual {
				sawAEJump = true
			}
		case *AsmCvttsd2si:
			converts++
		}
	}
	if !sawPivotCmp || !sawAEJump {
		t.Errorf("no 2^63 pivot comparison/branch selected: cmp=%v jae=%v", sawPivotCmp, sawAEJump)
	}
	if converts != 2 {
		t.Errorf("got %d cvttsd2si, want 2 (in-range and out-of-range paths)", converts)
	}
}

func TestReturnDoubleInXMM0(t *testing.T) {
	instrs, _ := selectInstrs(t,
		"double f(void) { return 1.0; } int main(void) { return 0; }", "f")
	for i, instr := range instrs {
		if mov, ok := instr.(*AsmMov); ok && mov.Type.Kind == ATDouble {
			if r, ok := mov.Dst.(AsmReg); ok && r.Reg == RegXMM0 {
				if _, ok := instrs[i+1].(*AsmRet); ok {
					return
				}
			}
		}
	}
	reg := "xmm0"
	t.Fatal("double return value never moved into %" + reg + " before ret")
}
