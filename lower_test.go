package main

import "testing"

func lowerMain(t *testing.T, src string) (*TacProgram, *TacFunction, *Pipeline) {
	t.Helper()
	p := NewPipeline(PlatformELF)
	tac, _, err := p.Lower(src)
	if err != nil {
		t.Fatalf("Lower failed: %v", err)
	}
	mainID, _ := p.in.Lookup("main")
	for _, tl := range tac.TopLevels {
		if fn, ok := tl.(*TacFunction); ok && fn.Name == mainID {
			return tac, fn, p
		}
	}
	t.Fatal("no main function in TAC")
	return nil, nil, nil
}

func TestShortCircuitAnd(t *testing.T) {
	_, fn, _ := lowerMain(t, `
int g;
int main(void) { return g && (g = 5); }`)

	jumpIdx, storeIdx := -1, -1
	for i, instr := range fn.Body {
		if _, ok := instr.(*TacJumpIfZero); ok && jumpIdx < 0 {
			jumpIdx = i
		}
		if c, ok := instr.(*TacCopy); ok {
			if k, ok := c.Src.(TacConstant); ok && k.IntVal == 5 {
				storeIdx = i
			}
		}
	}
	if jumpIdx < 0 {
		t.Fatal("no JumpIfZero lowered for &&")
	}
	if storeIdx < 0 {
		t.Fatal("right operand side effect never lowered")
	}
	if storeIdx < jumpIdx {
		t.Errorf("side effect at %d precedes the short-circuit jump at %d", storeIdx, jumpIdx)
	}
}

func TestShortCircuitOr(t *testing.T) {
	_, fn, _ := lowerMain(t, `
int g;
int main(void) { return g || (g = 7); }`)
	jumpIdx, storeIdx := -1, -1
	for i, instr := range fn.Body {
		if _, ok := instr.(*TacJumpIfNotZero); ok && jumpIdx < 0 {
			jumpIdx = i
		}
		if c, ok := instr.(*TacCopy); ok {
			if k, ok := c.Src.(TacConstant); ok && k.IntVal == 7 {
				storeIdx = i
			}
		}
	}
	if jumpIdx < 0 || storeIdx < 0 || storeIdx < jumpIdx {
		t.Errorf("|| lowering out of order: jump=%d store=%d", jumpIdx, storeIdx)
	}
}

func TestSwitchDispatch(t *testing.T) {
	_, fn, p := lowerMain(t, `
int main(void) {
    switch (2) {
    case 1: return 10;
    case 2: return 20;
    }
    return 0;
}`)
	// every case lowers to a comparison + conditional jump, then a fallthrough
	// jump to the synthetic break label (no default here)
	condJumps := 0
	labels := make(map[string]bool)
	for _, instr := range fn.Body {
		switch i := instr.(type) {
		case *TacJumpIfNotZero:
			condJumps++
		case *TacLabel:
			labels[p.in.Text(i.Name)] = true
		}
	}
	if condJumps < 2 {
		t.Errorf("got %d dispatch jumps, want 2", condJumps)
	}
	if !labels["case.0"] || !labels["case.1"] {
		t.Errorf("case labels missing: %v", labels)
	}
	if !labels["switch.0.break"] {
		t.Errorf("break label missing: %v", labels)
	}
}

func TestSwitchCaseValueTruncatedToBucket(t *testing.T) {
	// under an unsigned switch, case -1 dispatches on the truncated value
	_, fn, _ := lowerMain(t, `
int main(void) {
    unsigned int u = 1u;
    switch (u) { case -1: return 1; }
    return 0;
}`)
	found := false
	for _, instr := range fn.Body {
		if b, ok := instr.(*TacBinary); ok && b.Op == BinEqual {
			if k, ok := b.Src2.(TacConstant); ok && k.IntVal == 4294967295 {
				found = true
			}
		}
	}
	if !found {
		t.Error("case -1 did not dispatch on the bucket-truncated constant 4294967295")
	}
}

func TestSwitchWithDefaultJumpsToDefault(t *testing.T) {
	_, fn, p := lowerMain(t, `
int main(void) {
    switch (9) { case 1: return 1; default: return 42; }
}`)
	sawDefaultJump := false
	for _, instr := range fn.Body {
		if j, ok := instr.(*TacJump); ok && p.in.Text(j.Target) == "default.0" {
			sawDefaultJump = true
		}
	}
	if !sawDefaultJump {
		t.Error("no unconditional jump to the default label")
	}
}

func TestPostfixIncrementYieldsOldValue(t *testing.T) {
	_, fn, _ := lowerMain(t, "int main(void) { int a = 1; return a++; }")
	// the returned value must be the temporary holding the old value, not
	// the variable itself
	var retVal TacValue
	var incDst TacValue
	for _, instr := range fn.Body {
		switch i := instr.(type) {
		case *TacReturn:
			if retVal == nil {
				retVal = i.Val
			}
		case *TacBinary:
			if i.Op == BinAdd {
				incDst = i.Dst
			}
		}
	}
	rv, ok := retVal.(TacVariable)
	if !ok {
		t.Fatalf("return value is %T, want a temporary", retVal)
	}
	if incDst == nil {
		t.Fatal("no increment lowered")
	}
	if rv.Name == incDst.(TacVariable).Name {
		t.Error("return value aliases the incremented temporary; old value lost")
	}
}

func TestCompoundAssignExpansion(t *testing.T) {
	_, fn, _ := lowerMain(t, "int main(void) { int a = 5; a += 3; return a; }")
	found := false
	for _, instr := range fn.Body {
		if b, ok := instr.(*TacBinary); ok && b.Op == BinAdd {
			if k, ok := b.Src2.(TacConstant); ok && k.IntVal == 3 {
				found = true
			}
		}
	}
	if !found {
		t.Error("a += 3 did not lower to an add of 3")
	}
}

func TestArraySubscriptUsesAddPtr(t *testing.T) {
	_, fn, _ := lowerMain(t, "int main(void) { int a[3]; int i = 2; return a[i]; }")
	foundAddPtr := false
	for _, instr := range fn.Body {
		if ap, ok := instr.(*TacAddPtr); ok && ap.Scale == 4 {
			foundAddPtr = true
		}
	}
	if !foundAddPtr {
		t.Error("a[i] did not lower to AddPtr with the element stride")
	}
}

func TestGotoLabelsQualifiedPerFunction(t *testing.T) {
	p := NewPipeline(PlatformELF)
	tac, _, err := p.Lower(`
int f(void) { goto out; out: return 1; }
int main(void) { goto out; out: return 2; }`)
	if err != nil {
		t.Fatalf("Lower failed: %v", err)
	}
	labels := make(map[string]int)
	for _, tl := range tac.TopLevels {
		fn, ok := tl.(*TacFunction)
		if !ok {
			continue
		}
		for _, instr := range fn.Body {
			if l, ok := instr.(*TacLabel); ok {
				labels[p.in.Text(l.Name)]++
			}
		}
	}
	for name, count := range labels {
		if count > 1 {
			t.Errorf("label %q emitted %d times across functions", name, count)
		}
	}
}

func TestStringLiteralPooled(t *testing.T) {
	p := NewPipeline(PlatformELF)
	tac, lw, err := p.Lower(`
int puts(char *s);
int main(void) { puts("hi"); puts("hi"); return 0; }`)
	if err != nil {
		t.Fatalf("Lower failed: %v", err)
	}
	if n := len(lw.strings.Entries()); n != 1 {
		t.Errorf("identical literals pooled %d times, want 1", n)
	}
	constants := 0
	for _, tl := range tac.TopLevels {
		if _, ok := tl.(*TacStaticConstant); ok {
			constants++
		}
	}
	if constants != 1 {
		t.Errorf("got %d static constants, want 1", constants)
	}
}
