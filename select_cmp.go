package main

// select_cmp.go: comparisons, logical Not, and the Jump/JumpIfZero/
// JumpIfNotZero family. Double comparisons use comisd, whose parity flag
// signals an unordered (NaN) result; a NaN comparison must read as false
// for everything except
// BinNotEqual, so NotEqual-on-double treats P as an extra "true" source
// while every other double comparison treats P as automatically false.

func condCodeFor(op BinaryOp, isDouble, signed bool) CondCode {
	switch op {
	case BinEqual:
		return CCEqual
	case BinNotEqual:
		return CCNotEqual
	case BinLess:
		if isDouble || !signed {
			return CCBelow
		}
		return CCLess
	case BinLessEqual:
		if isDouble || !signed {
			return CCBelowEqual
		}
		return CCLessEqual
	case BinGreater:
		if isDouble || !signed {
			return CCAbove
		}
		return CCGreater
	case BinGreaterEqual:
		if isDouble || !signed {
			return CCAboveEqual
		}
		return CCGreaterEqual
	default:
		panic(internalError("condCodeFor", "not a relational op"))
	}
}

func (sel *Selector) selectRelational(instr TacBinary) {
	cmpType := sel.asmType(instr.Src1)
	isDouble := cmpType.Kind == ATDouble
	signed := sel.isSigned(instr.Src1)
	cc := condCodeFor(instr.Op, isDouble, signed)

	sel.emit(&AsmCmp{Type: cmpType, Src1: sel.operand(instr.Src2), Src2: sel.operand(instr.Src1)})

	if isDouble && instr.Op == BinNotEqual {
		// unordered (NaN) counts as "not equal": sete into a byte, then OR in
		// the parity flag via a second setnp, giving true if either fired.
		dst := sel.operand(instr.Dst)
		sel.emit(&AsmSetCC{CC: CCNotEqual, Operand: dst})
		scratch := AsmReg{Reg: RegR11}
		sel.emit(&AsmSetCC{CC: CCParity, Operand: scratch})
		sel.emit(&AsmBinary{Op: AsmOr, Type: AsmByte, Src: scratch, Dst: dst})
		sel.emit(&AsmMovzx{SrcType: AsmByte, DstType: sel.asmType(instr.Dst), Src: dst, Dst: dst})
		return
	}
	if isDouble {
		// every other double comparison is false on NaN; clear the byte first
		// so a parity hit (unordered) leaves the result at zero.
		dst := sel.operand(instr.Dst)
		sel.emit(&AsmMov{Type: sel.asmType(instr.Dst), Src: NewAsmImm(0), Dst: dst})
		sel.emit(&AsmJmpCC{CC: CCParity, Target: sel.parityOkLabel()})
		sel.emit(&AsmSetCC{CC: cc, Operand: dst})
		sel.emit(&AsmMovzx{SrcType: AsmByte, DstType: sel.asmType(instr.Dst), Src: dst, Dst: dst})
		sel.emit(&AsmLabel{Name: sel.parityLabelName})
		return
	}
	dst := sel.operand(instr.Dst)
	sel.emit(&AsmSetCC{CC: cc, Operand: dst})
	sel.emit(&AsmMovzx{SrcType: AsmByte, DstType: sel.asmType(instr.Dst), Src: dst, Dst: dst})
}

// parityOkLabel mints a fresh skip-target for the NaN-is-false double
// comparison sequence and remembers it for the following AsmLabel emit.
func (sel *Selector) parityOkLabel() InternedID {
	sel.parityLabelName = sel.in.Intern(sel.names.Next("nan_false"))
	return sel.parityLabelName
}

func (sel *Selector) selectLogicalNot(instr TacUnary) {
	srcType := sel.asmType(instr.Src)
	dst := sel.operand(instr.Dst)
	if srcType.Kind == ATDouble {
		// zero %xmm0 and compare; a parity hit (NaN operand) means the source
		// is truthy, so the skip leaves dst at the zero written up front.
		sel.emit(&AsmBinary{Op: AsmXor, Type: AsmDouble, Src: AsmReg{Reg: RegXMM0}, Dst: AsmReg{Reg: RegXMM0}})
		sel.emit(&AsmCmp{Type: AsmDouble, Src1: sel.operand(instr.Src), Src2: AsmReg{Reg: RegXMM0}})
		sel.emit(&AsmMov{Type: sel.asmType(instr.Dst), Src: NewAsmImm(0), Dst: dst})
		sel.emit(&AsmJmpCC{CC: CCParity, Target: sel.parityOkLabel()})
		sel.emit(&AsmSetCC{CC: CCEqual, Operand: dst})
		sel.emit(&AsmLabel{Name: sel.parityLabelName})
		return
	}
	sel.emit(&AsmCmp{Type: srcType, Src1: NewAsmImm(0), Src2: sel.operand(instr.Src)})
	sel.emit(&AsmMov{Type: sel.asmType(instr.Dst), Src: NewAsmImm(0), Dst: dst})
	sel.emit(&AsmSetCC{CC: CCEqual, Operand: dst})
}
