package main

// select_convert.go: width/sign conversions and the int<->double family,
// including the 2^63 out-of-range dance for unsigned 64-bit values that
// SSE2 cannot convert directly.

// upperBoundDouble is 2^63 as a double, the pivot of both unsigned-quad
// conversion sequences.
const upperBoundDouble = 9223372036854775808.0

func (sel *Selector) selectSignExtend(instr TacSignExtend) {
	sel.emit(&AsmMovsx{
		SrcType: sel.asmType(instr.Src), DstType: sel.asmType(instr.Dst),
		Src: sel.operand(instr.Src), Dst: sel.operand(instr.Dst),
	})
}

func (sel *Selector) selectZeroExtend(instr TacZeroExtend) {
	sel.emit(&AsmMovzx{
		SrcType: sel.asmType(instr.Src), DstType: sel.asmType(instr.Dst),
		Src: sel.operand(instr.Src), Dst: sel.operand(instr.Dst),
	})
}

// selectTruncate: a mov at the destination width; immediate sources are
// masked at compile time so no over-wide immediate survives selection.
func (sel *Selector) selectTruncate(instr TacTruncate) {
	dstType := sel.asmType(instr.Dst)
	src := sel.operand(instr.Src)
	if imm, ok := src.(AsmImm); ok {
		switch dstType.Kind {
		case ATLongWord:
			src = NewAsmImm(int64(int32(imm.Value)))
		case ATByte:
			src = NewAsmImm(int64(int8(imm.Value)))
		}
	}
	sel.emit(&AsmMov{Type: dstType, Src: src, Dst: sel.operand(instr.Dst)})
}

func (sel *Selector) selectDoubleToInt(instr TacDoubleToInt) {
	dstType := sel.asmType(instr.Dst)
	if dstType.Kind == ATByte {
		// no byte-width cvttsd2si exists: truncate to %eax, mov the low byte out.
		sel.emit(&AsmCvttsd2si{DstType: AsmLong, Src: sel.operand(instr.Src), Dst: AsmReg{Reg: RegAX}})
		sel.emit(&AsmMov{Type: AsmByte, Src: AsmReg{Reg: RegAX}, Dst: sel.operand(instr.Dst)})
		return
	}
	sel.emit(&AsmCvttsd2si{DstType: dstType, Src: sel.operand(instr.Src), Dst: sel.operand(instr.Dst)})
}

func (sel *Selector) selectDoubleToUInt(instr TacDoubleToUInt) {
	switch sel.asmType(instr.Dst).Kind {
	case ATByte:
		sel.emit(&AsmCvttsd2si{DstType: AsmLong, Src: sel.operand(instr.Src), Dst: AsmReg{Reg: RegAX}})
		sel.emit(&AsmMov{Type: AsmByte, Src: AsmReg{Reg: RegAX}, Dst: sel.operand(instr.Dst)})
	case ATLongWord:
		// a u32 always fits a signed 64-bit truncation; take the low longword.
		sel.emit(&AsmCvttsd2si{DstType: AsmQuad, Src: sel.operand(instr.Src), Dst: AsmReg{Reg: RegAX}})
		sel.emit(&AsmMov{Type: AsmLong, Src: AsmReg{Reg: RegAX}, Dst: sel.operand(instr.Dst)})
	default:
		sel.selectDoubleToULong(instr)
	}
}

// selectDoubleToULong: values < 2^63 convert directly; larger ones have
// 2^63 subtracted in the double domain, convert, and get 2^63 added back as
// an integer.
func (sel *Selector) selectDoubleToULong(instr TacDoubleToUInt) {
	upper := AsmData{Label: sel.doubleLabel(upperBoundDouble)}
	outOfRange := sel.in.Intern(sel.names.Next("d2u_oor"))
	end := sel.in.Intern(sel.names.Next("d2u_end"))
	src, dst := sel.operand(instr.Src), sel.operand(instr.Dst)

	sel.emit(&AsmCmp{Type: AsmDouble, Src1: upper, Src2: src})
	sel.emit(&AsmJmpCC{CC: CCAboveEqual, Target: outOfRange})
	sel.emit(&AsmCvttsd2si{DstType: AsmQuad, Src: src, Dst: dst})
	sel.emit(&AsmJmp{Target: end})
	sel.emit(&AsmLabel{Name: outOfRange})
	sel.emit(&AsmMov{Type: AsmDouble, Src: src, Dst: AsmReg{Reg: RegXMM14}})
	sel.emit(&AsmBinary{Op: AsmSub, Type: AsmDouble, Src: upper, Dst: AsmReg{Reg: RegXMM14}})
	sel.emit(&AsmCvttsd2si{DstType: AsmQuad, Src: AsmReg{Reg: RegXMM14}, Dst: dst})
	sel.emit(&AsmMov{Type: AsmQuad, Src: NewAsmImm(-9223372036854775808), Dst: AsmReg{Reg: RegR11}})
	sel.emit(&AsmBinary{Op: AsmAdd, Type: AsmQuad, Src: AsmReg{Reg: RegR11}, Dst: dst})
	sel.emit(&AsmLabel{Name: end})
}

func (sel *Selector) selectIntToDouble(instr TacIntToDouble) {
	srcType := sel.asmType(instr.Src)
	if srcType.Kind == ATByte {
		// no byte-width cvtsi2sd: widen through a longword register first.
		sel.emit(&AsmMovsx{SrcType: AsmByte, DstType: AsmLong, Src: sel.operand(instr.Src), Dst: AsmReg{Reg: RegR10}})
		sel.emit(&AsmCvtsi2sd{SrcType: AsmLong, Src: AsmReg{Reg: RegR10}, Dst: sel.operand(instr.Dst)})
		return
	}
	sel.emit(&AsmCvtsi2sd{SrcType: srcType, Src: sel.operand(instr.Src), Dst: sel.operand(instr.Dst)})
}

func (sel *Selector) selectUIntToDouble(instr TacUIntToDouble) {
	switch sel.asmType(instr.Src).Kind {
	case ATByte:
		sel.emit(&AsmMovzx{SrcType: AsmByte, DstType: AsmLong, Src: sel.operand(instr.Src), Dst: AsmReg{Reg: RegR10}})
		sel.emit(&AsmCvtsi2sd{SrcType: AsmLong, Src: AsmReg{Reg: RegR10}, Dst: sel.operand(instr.Dst)})
	case ATLongWord:
		// movl's auto-zero-extension gives the full unsigned u32 value in R10.
		sel.emit(&AsmMovzx{SrcType: AsmLong, DstType: AsmQuad, Src: sel.operand(instr.Src), Dst: AsmReg{Reg: RegR10}})
		sel.emit(&AsmCvtsi2sd{SrcType: AsmQuad, Src: AsmReg{Reg: RegR10}, Dst: sel.operand(instr.Dst)})
	default:
		sel.selectULongToDouble(instr)
	}
}

// selectULongToDouble: a u64 with the top bit clear converts directly. With
// the top bit set, halve it with round-to-odd (shift right one, OR back the
// low bit), convert, and double the result.
func (sel *Selector) selectULongToDouble(instr TacUIntToDouble) {
	outOfRange := sel.in.Intern(sel.names.Next("u2d_oor"))
	end := sel.in.Intern(sel.names.Next("u2d_end"))
	src, dst := sel.operand(instr.Src), sel.operand(instr.Dst)

	sel.emit(&AsmCmp{Type: AsmQuad, Src1: NewAsmImm(0), Src2: src})
	sel.emit(&AsmJmpCC{CC: CCLess, Target: outOfRange})
	sel.emit(&AsmCvtsi2sd{SrcType: AsmQuad, Src: src, Dst: dst})
	sel.emit(&AsmJmp{Target: end})
	sel.emit(&AsmLabel{Name: outOfRange})
	sel.emit(&AsmMov{Type: AsmQuad, Src: src, Dst: AsmReg{Reg: RegR10}})
	sel.emit(&AsmMov{Type: AsmQuad, Src: AsmReg{Reg: RegR10}, Dst: AsmReg{Reg: RegR11}})
	sel.emit(&AsmBinary{Op: AsmShr, Type: AsmQuad, Src: NewAsmImm(1), Dst: AsmReg{Reg: RegR11}})
	sel.emit(&AsmBinary{Op: AsmAnd, Type: AsmQuad, Src: NewAsmImm(1), Dst: AsmReg{Reg: RegR10}})
	sel.emit(&AsmBinary{Op: AsmOr, Type: AsmQuad, Src: AsmReg{Reg: RegR10}, Dst: AsmReg{Reg: RegR11}})
	sel.emit(&AsmCvtsi2sd{SrcType: AsmQuad, Src: AsmReg{Reg: RegR11}, Dst: dst})
	sel.emit(&AsmBinary{Op: AsmAdd, Type: AsmDouble, Src: dst, Dst: dst})
	sel.emit(&AsmLabel{Name: end})
}
