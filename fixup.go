package main

// fixup.go: stack legalization. Phase A rewrites every Pseudo/PseudoMem
// into a %rbp-relative Memory slot or a Data reference;
// Phase B rewrites each instruction whose operand combination x86 cannot
// encode, staging through the reserved scratch registers (R10/R11 integer,
// XMM14/XMM15 double). The pass finishes by framing the stack and wrapping
// the body in the prologue/epilogue. Panic-free on valid input: an
// unhandled operand shape here is a compiler bug, not a user error.

type Fixup struct {
	in   *Interner
	back BackendSymbolTable

	slots      map[InternedID]int64 // name -> positive offset below %rbp
	stackBytes int64
}

func NewFixup(in *Interner, back BackendSymbolTable) *Fixup {
	return &Fixup{in: in, back: back}
}

func (f *Fixup) FixProgram(prog *AsmProgram) {
	for _, tl := range prog.TopLevels {
		if fn, ok := tl.(*AsmFunction); ok {
			f.fixFunction(fn)
		}
	}
}

var calleeSavedRegs = []RegId{RegBX, RegR12, RegR13, RegR14, RegR15}

func (f *Fixup) fixFunction(fn *AsmFunction) {
	f.slots = make(map[InternedID]int64)
	f.stackBytes = 0

	mask := uint16(0)
	var body []AsmInstruction
	for _, instr := range fn.Instructions {
		resolved := f.resolveInstr(instr)
		mask |= calleeSavedIn(resolved)
		body = append(body, legalize(resolved)...)
	}
	fn.CalleeSavedMask = mask
	fn.StackBytes = f.stackBytes
	if bf, ok := f.back[fn.Name].(BackendFun); ok {
		for _, r := range calleeSavedRegs {
			if mask&(1<<uint(r)) != 0 {
				bf.CalleeSavedRegs = append(bf.CalleeSavedRegs, r)
			}
		}
		f.back[fn.Name] = bf
	}

	var saved []RegId
	for _, r := range calleeSavedRegs {
		if mask&(1<<uint(r)) != 0 {
			saved = append(saved, r)
		}
	}
	savedBytes := int64(len(saved)) * 8
	frame := alignUpTo(f.stackBytes+savedBytes, 16) - savedBytes

	prologue := []AsmInstruction{
		&AsmPush{Operand: AsmReg{Reg: RegBP}},
		&AsmMov{Type: AsmQuad, Src: AsmReg{Reg: RegSP}, Dst: AsmReg{Reg: RegBP}},
	}
	for _, r := range saved {
		prologue = append(prologue, &AsmPush{Operand: AsmReg{Reg: r}})
	}
	if frame > 0 {
		prologue = append(prologue, &AsmBinary{Op: AsmSub, Type: AsmQuad, Src: NewAsmImm(frame), Dst: AsmReg{Reg: RegSP}})
	}

	out := prologue
	for _, instr := range body {
		if _, ok := instr.(*AsmRet); ok {
			for i := len(saved) - 1; i >= 0; i-- {
				out = append(out, &AsmPop{Reg: saved[i]})
			}
			out = append(out,
				&AsmMov{Type: AsmQuad, Src: AsmReg{Reg: RegBP}, Dst: AsmReg{Reg: RegSP}},
				&AsmPop{Reg: RegBP},
				&AsmRet{})
			continue
		}
		out = append(out, instr)
	}
	fn.Instructions = out
}

// Phase A -- pseudo replacement.

func (f *Fixup) resolveName(name InternedID, extra int64) AsmOperand {
	if bo, ok := f.back[name].(BackendObj); ok && bo.IsStatic {
		return AsmData{Label: f.in.Text(name), Offset: extra}
	}
	if slot, ok := f.slots[name]; ok {
		return AsmMemory{Offset: -slot + extra, Base: RegBP}
	}
	at := AsmQuad
	if bo, ok := f.back[name].(BackendObj); ok {
		at = bo.Asm
	}
	f.stackBytes += at.SizeOf()
	f.stackBytes = alignUpTo(f.stackBytes, at.AlignOf())
	f.slots[name] = f.stackBytes
	return AsmMemory{Offset: -f.stackBytes + extra, Base: RegBP}
}

func (f *Fixup) resolve(op AsmOperand) AsmOperand {
	switch o := op.(type) {
	case AsmPseudo:
		return f.resolveName(o.Name, 0)
	case AsmPseudoMem:
		return f.resolveName(o.Name, o.Offset)
	default:
		return op
	}
}

func (f *Fixup) resolveInstr(instr AsmInstruction) AsmInstruction {
	switch i := instr.(type) {
	case *AsmMov:
		return &AsmMov{Type: i.Type, Src: f.resolve(i.Src), Dst: f.resolve(i.Dst)}
	case *AsmMovsx:
		return &AsmMovsx{SrcType: i.SrcType, DstType: i.DstType, Src: f.resolve(i.Src), Dst: f.resolve(i.Dst)}
	case *AsmMovzx:
		return &AsmMovzx{SrcType: i.SrcType, DstType: i.DstType, Src: f.resolve(i.Src), Dst: f.resolve(i.Dst)}
	case *AsmLea:
		return &AsmLea{Src: f.resolve(i.Src), Dst: f.resolve(i.Dst)}
	case *AsmCvttsd2si:
		return &AsmCvttsd2si{DstType: i.DstType, Src: f.resolve(i.Src), Dst: f.resolve(i.Dst)}
	case *AsmCvtsi2sd:
		return &AsmCvtsi2sd{SrcType: i.SrcType, Src: f.resolve(i.Src), Dst: f.resolve(i.Dst)}
	case *AsmUnary:
		return &AsmUnary{Op: i.Op, Type: i.Type, Operand: f.resolve(i.Operand)}
	case *AsmBinary:
		return &AsmBinary{Op: i.Op, Type: i.Type, Src: f.resolve(i.Src), Dst: f.resolve(i.Dst)}
	case *AsmCmp:
		return &AsmCmp{Type: i.Type, Src1: f.resolve(i.Src1), Src2: f.resolve(i.Src2)}
	case *AsmIdiv:
		return &AsmIdiv{Type: i.Type, Operand: f.resolve(i.Operand)}
	case *AsmDiv:
		return &AsmDiv{Type: i.Type, Operand: f.resolve(i.Operand)}
	case *AsmSetCC:
		return &AsmSetCC{CC: i.CC, Operand: f.resolve(i.Operand)}
	case *AsmPush:
		return &AsmPush{Operand: f.resolve(i.Operand)}
	case *AsmXorSign:
		return &AsmXorSign{Dst: f.resolve(i.Dst), MaskLabel: i.MaskLabel}
	default:
		return instr
	}
}

// Phase B -- instruction legalization.

func isMem(op AsmOperand) bool {
	switch op.(type) {
	case AsmMemory, AsmData, AsmIndexed:
		return true
	default:
		return false
	}
}

func isReg(op AsmOperand) bool {
	_, ok := op.(AsmReg)
	return ok
}

func quadImm(op AsmOperand) (AsmImm, bool) {
	imm, ok := op.(AsmImm)
	return imm, ok && imm.IsQuad
}

func calleeSavedIn(instr AsmInstruction) uint16 {
	mask := uint16(0)
	touch := func(op AsmOperand) {
		if r, ok := op.(AsmReg); ok {
			for _, cs := range calleeSavedRegs {
				if r.Reg == cs {
					mask |= 1 << uint(cs)
				}
			}
		}
	}
	switch i := instr.(type) {
	case *AsmMov:
		touch(i.Src)
		touch(i.Dst)
	case *AsmMovsx:
		touch(i.Src)
		touch(i.Dst)
	case *AsmMovzx:
		touch(i.Src)
		touch(i.Dst)
	case *AsmLea:
		touch(i.Src)
		touch(i.Dst)
	case *AsmUnary:
		touch(i.Operand)
	case *AsmBinary:
		touch(i.Src)
		touch(i.Dst)
	case *AsmCmp:
		touch(i.Src1)
		touch(i.Src2)
	case *AsmIdiv:
		touch(i.Operand)
	case *AsmDiv:
		touch(i.Operand)
	case *AsmPush:
		touch(i.Operand)
	}
	return mask
}

func legalize(instr AsmInstruction) []AsmInstruction {
	switch i := instr.(type) {
	case *AsmMov:
		return fixMov(i)
	case *AsmMovsx:
		return fixMovsx(i)
	case *AsmMovzx:
		return fixMovzx(i)
	case *AsmCmp:
		return fixCmp(i)
	case *AsmBinary:
		return fixBinary(i)
	case *AsmLea:
		return fixLea(i)
	case *AsmCvttsd2si:
		return fixCvttsd2si(i)
	case *AsmCvtsi2sd:
		return fixCvtsi2sd(i)
	case *AsmIdiv:
		if imm, ok := i.Operand.(AsmImm); ok {
			return []AsmInstruction{
				&AsmMov{Type: i.Type, Src: imm, Dst: AsmReg{Reg: RegR10}},
				&AsmIdiv{Type: i.Type, Operand: AsmReg{Reg: RegR10}},
			}
		}
		return []AsmInstruction{i}
	case *AsmDiv:
		if imm, ok := i.Operand.(AsmImm); ok {
			return []AsmInstruction{
				&AsmMov{Type: i.Type, Src: imm, Dst: AsmReg{Reg: RegR10}},
				&AsmDiv{Type: i.Type, Operand: AsmReg{Reg: RegR10}},
			}
		}
		return []AsmInstruction{i}
	case *AsmPush:
		return fixPush(i)
	case *AsmXorSign:
		if isReg(i.Dst) {
			return []AsmInstruction{i}
		}
		return []AsmInstruction{
			&AsmMov{Type: AsmDouble, Src: i.Dst, Dst: AsmReg{Reg: RegXMM15}},
			&AsmXorSign{Dst: AsmReg{Reg: RegXMM15}, MaskLabel: i.MaskLabel},
			&AsmMov{Type: AsmDouble, Src: AsmReg{Reg: RegXMM15}, Dst: i.Dst},
		}
	default:
		return []AsmInstruction{instr}
	}
}

func fixMov(i *AsmMov) []AsmInstruction {
	if i.Type.Kind == ATDouble {
		if isMem(i.Src) && isMem(i.Dst) {
			return []AsmInstruction{
				&AsmMov{Type: AsmDouble, Src: i.Src, Dst: AsmReg{Reg: RegXMM14}},
				&AsmMov{Type: AsmDouble, Src: AsmReg{Reg: RegXMM14}, Dst: i.Dst},
			}
		}
		return []AsmInstruction{i}
	}
	if imm, ok := quadImm(i.Src); ok {
		switch {
		case i.Type.Kind != ATQuadWord && isReg(i.Dst):
			// promote: movq materializes the full pattern, the narrower
			// consumer reads the low bytes it cares about.
			return []AsmInstruction{&AsmMov{Type: AsmQuad, Src: imm, Dst: i.Dst}}
		case i.Type.Kind == ATLongWord:
			return fixMov(&AsmMov{Type: AsmLong, Src: NewAsmImm(int64(int32(imm.Value))), Dst: i.Dst})
		case i.Type.Kind == ATByte:
			return fixMov(&AsmMov{Type: AsmByte, Src: NewAsmImm(int64(int8(imm.Value))), Dst: i.Dst})
		case isMem(i.Dst):
			return []AsmInstruction{
				&AsmMov{Type: AsmQuad, Src: imm, Dst: AsmReg{Reg: RegR10}},
				&AsmMov{Type: AsmQuad, Src: AsmReg{Reg: RegR10}, Dst: i.Dst},
			}
		}
	}
	if isMem(i.Src) && isMem(i.Dst) {
		return []AsmInstruction{
			&AsmMov{Type: i.Type, Src: i.Src, Dst: AsmReg{Reg: RegR10}},
			&AsmMov{Type: i.Type, Src: AsmReg{Reg: RegR10}, Dst: i.Dst},
		}
	}
	return []AsmInstruction{i}
}

func fixMovsx(i *AsmMovsx) []AsmInstruction {
	var out []AsmInstruction
	src, dst := i.Src, i.Dst
	if _, ok := src.(AsmImm); ok {
		out = append(out, &AsmMov{Type: i.SrcType, Src: src, Dst: AsmReg{Reg: RegR10}})
		src = AsmReg{Reg: RegR10}
	}
	if isMem(dst) {
		out = append(out, &AsmMovsx{SrcType: i.SrcType, DstType: i.DstType, Src: src, Dst: AsmReg{Reg: RegR11}})
		out = append(out, &AsmMov{Type: i.DstType, Src: AsmReg{Reg: RegR11}, Dst: dst})
		return out
	}
	return append(out, &AsmMovsx{SrcType: i.SrcType, DstType: i.DstType, Src: src, Dst: dst})
}

func fixMovzx(i *AsmMovzx) []AsmInstruction {
	if i.SrcType.Kind == ATLongWord {
		// x86 auto-zero-extends a 4-byte register write; a plain longword mov
		// into the destination's 4-byte alias is the whole operation.
		if isReg(i.Dst) {
			return fixMov(&AsmMov{Type: AsmLong, Src: i.Src, Dst: i.Dst})
		}
		return []AsmInstruction{
			&AsmMov{Type: AsmLong, Src: i.Src, Dst: AsmReg{Reg: RegR11}},
			&AsmMov{Type: AsmQuad, Src: AsmReg{Reg: RegR11}, Dst: i.Dst},
		}
	}
	var out []AsmInstruction
	src, dst := i.Src, i.Dst
	if _, ok := src.(AsmImm); ok {
		out = append(out, &AsmMov{Type: i.SrcType, Src: src, Dst: AsmReg{Reg: RegR10}})
		src = AsmReg{Reg: RegR10}
	}
	if isMem(dst) {
		out = append(out, &AsmMovzx{SrcType: i.SrcType, DstType: i.DstType, Src: src, Dst: AsmReg{Reg: RegR11}})
		out = append(out, &AsmMov{Type: i.DstType, Src: AsmReg{Reg: RegR11}, Dst: dst})
		return out
	}
	return append(out, &AsmMovzx{SrcType: i.SrcType, DstType: i.DstType, Src: src, Dst: dst})
}

func fixCmp(i *AsmCmp) []AsmInstruction {
	if i.Type.Kind == ATDouble {
		// comisd requires a register destination operand.
		if !isReg(i.Src2) {
			return []AsmInstruction{
				&AsmMov{Type: AsmDouble, Src: i.Src2, Dst: AsmReg{Reg: RegXMM15}},
				&AsmCmp{Type: AsmDouble, Src1: i.Src1, Src2: AsmReg{Reg: RegXMM15}},
			}
		}
		return []AsmInstruction{i}
	}
	var out []AsmInstruction
	src1, src2 := i.Src1, i.Src2
	if imm, ok := quadImm(src1); ok {
		out = append(out, &AsmMov{Type: AsmQuad, Src: imm, Dst: AsmReg{Reg: RegR10}})
		src1 = AsmReg{Reg: RegR10}
	}
	if isMem(src1) && isMem(src2) {
		out = append(out, &AsmMov{Type: i.Type, Src: src1, Dst: AsmReg{Reg: RegR10}})
		src1 = AsmReg{Reg: RegR10}
	}
	if _, ok := src2.(AsmImm); ok {
		out = append(out, &AsmMov{Type: i.Type, Src: src2, Dst: AsmReg{Reg: RegR11}})
		src2 = AsmReg{Reg: RegR11}
	}
	return append(out, &AsmCmp{Type: i.Type, Src1: src1, Src2: src2})
}

func fixBinary(i *AsmBinary) []AsmInstruction {
	if i.Type.Kind == ATDouble {
		// every SSE arithmetic op writes a register.
		if !isReg(i.Dst) {
			return []AsmInstruction{
				&AsmMov{Type: AsmDouble, Src: i.Dst, Dst: AsmReg{Reg: RegXMM15}},
				&AsmBinary{Op: i.Op, Type: AsmDouble, Src: i.Src, Dst: AsmReg{Reg: RegXMM15}},
				&AsmMov{Type: AsmDouble, Src: AsmReg{Reg: RegXMM15}, Dst: i.Dst},
			}
		}
		return []AsmInstruction{i}
	}
	switch i.Op {
	case AsmMulInt:
		var out []AsmInstruction
		src := i.Src
		if imm, ok := quadImm(src); ok {
			out = append(out, &AsmMov{Type: AsmQuad, Src: imm, Dst: AsmReg{Reg: RegR10}})
			src = AsmReg{Reg: RegR10}
		}
		if isMem(i.Dst) {
			out = append(out, &AsmMov{Type: i.Type, Src: i.Dst, Dst: AsmReg{Reg: RegR11}})
			out = append(out, &AsmBinary{Op: AsmMulInt, Type: i.Type, Src: src, Dst: AsmReg{Reg: RegR11}})
			out = append(out, &AsmMov{Type: i.Type, Src: AsmReg{Reg: RegR11}, Dst: i.Dst})
			return out
		}
		return append(out, &AsmBinary{Op: AsmMulInt, Type: i.Type, Src: src, Dst: i.Dst})
	case AsmShl, AsmShr, AsmSar:
		// the count is an immediate or already staged in %cl by selection.
		return []AsmInstruction{i}
	default:
		var out []AsmInstruction
		src := i.Src
		if imm, ok := quadImm(src); ok {
			out = append(out, &AsmMov{Type: AsmQuad, Src: imm, Dst: AsmReg{Reg: RegR10}})
			src = AsmReg{Reg: RegR10}
		}
		if isMem(src) && isMem(i.Dst) {
			out = append(out, &AsmMov{Type: i.Type, Src: src, Dst: AsmReg{Reg: RegR10}})
			src = AsmReg{Reg: RegR10}
		}
		return append(out, &AsmBinary{Op: i.Op, Type: i.Type, Src: src, Dst: i.Dst})
	}
}

func fixLea(i *AsmLea) []AsmInstruction {
	if isMem(i.Dst) {
		return []AsmInstruction{
			&AsmLea{Src: i.Src, Dst: AsmReg{Reg: RegR11}},
			&AsmMov{Type: AsmQuad, Src: AsmReg{Reg: RegR11}, Dst: i.Dst},
		}
	}
	return []AsmInstruction{i}
}

func fixCvttsd2si(i *AsmCvttsd2si) []AsmInstruction {
	if isMem(i.Dst) {
		return []AsmInstruction{
			&AsmCvttsd2si{DstType: i.DstType, Src: i.Src, Dst: AsmReg{Reg: RegR11}},
			&AsmMov{Type: i.DstType, Src: AsmReg{Reg: RegR11}, Dst: i.Dst},
		}
	}
	return []AsmInstruction{i}
}

func fixCvtsi2sd(i *AsmCvtsi2sd) []AsmInstruction {
	var out []AsmInstruction
	src := i.Src
	if _, ok := src.(AsmImm); ok {
		out = append(out, &AsmMov{Type: i.SrcType, Src: src, Dst: AsmReg{Reg: RegR10}})
		src = AsmReg{Reg: RegR10}
	}
	if isMem(i.Dst) {
		out = append(out, &AsmCvtsi2sd{SrcType: i.SrcType, Src: src, Dst: AsmReg{Reg: RegXMM15}})
		out = append(out, &AsmMov{Type: AsmDouble, Src: AsmReg{Reg: RegXMM15}, Dst: i.Dst})
		return out
	}
	return append(out, &AsmCvtsi2sd{SrcType: i.SrcType, Src: src, Dst: i.Dst})
}

func fixPush(i *AsmPush) []AsmInstruction {
	if r, ok := i.Operand.(AsmReg); ok && isXMM(r.Reg) {
		return []AsmInstruction{
			&AsmBinary{Op: AsmSub, Type: AsmQuad, Src: NewAsmImm(8), Dst: AsmReg{Reg: RegSP}},
			&AsmMov{Type: AsmDouble, Src: r, Dst: AsmMemory{Offset: 0, Base: RegSP}},
		}
	}
	if imm, ok := quadImm(i.Operand); ok {
		return []AsmInstruction{
			&AsmMov{Type: AsmQuad, Src: imm, Dst: AsmReg{Reg: RegR10}},
			&AsmPush{Operand: AsmReg{Reg: RegR10}},
		}
	}
	return []AsmInstruction{i}
}
