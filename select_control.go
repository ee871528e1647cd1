package main

// select_control.go: the per-instruction dispatch plus jumps and labels.
// Conditional jumps on a double zero %xmm0 and compare instead of using an
// immediate, with a parity-flag bypass so a NaN condition reads as truthy.

func (sel *Selector) selectInstr(instr TacInstruction) {
	switch i := instr.(type) {
	case *TacReturn:
		sel.selectReturn(i)
	case *TacSignExtend:
		sel.selectSignExtend(*i)
	case *TacZeroExtend:
		sel.selectZeroExtend(*i)
	case *TacTruncate:
		sel.selectTruncate(*i)
	case *TacDoubleToInt:
		sel.selectDoubleToInt(*i)
	case *TacDoubleToUInt:
		sel.selectDoubleToUInt(*i)
	case *TacIntToDouble:
		sel.selectIntToDouble(*i)
	case *TacUIntToDouble:
		sel.selectUIntToDouble(*i)
	case *TacUnary:
		sel.selectUnary(*i)
	case *TacBinary:
		sel.selectBinary(*i)
	case *TacCopy:
		sel.selectCopy(*i)
	case *TacMemCopy:
		sel.selectMemCopy(*i)
	case *TacGetAddress:
		sel.selectGetAddress(*i)
	case *TacLoad:
		sel.selectLoad(*i)
	case *TacStore:
		sel.selectStore(*i)
	case *TacAddPtr:
		sel.selectAddPtr(*i)
	case *TacCopyToOffset:
		sel.selectCopyToOffset(*i)
	case *TacCopyFromOffset:
		sel.selectCopyFromOffset(*i)
	case *TacJump:
		sel.emit(&AsmJmp{Target: i.Target})
	case *TacJumpIfZero:
		sel.selectCondJump(i.Cond, i.Target, CCEqual)
	case *TacJumpIfNotZero:
		sel.selectCondJump(i.Cond, i.Target, CCNotEqual)
	case *TacLabel:
		sel.emit(&AsmLabel{Name: i.Name})
	case *TacFunCall:
		sel.selectFunCall(*i)
	default:
		panic(internalError("selectInstr", "unknown TAC instruction"))
	}
}

func (sel *Selector) selectCondJump(cond TacValue, target InternedID, cc CondCode) {
	if sel.asmType(cond).Kind == ATDouble {
		sel.emit(&AsmBinary{Op: AsmXor, Type: AsmDouble, Src: AsmReg{Reg: RegXMM0}, Dst: AsmReg{Reg: RegXMM0}})
		sel.emit(&AsmCmp{Type: AsmDouble, Src1: sel.operand(cond), Src2: AsmReg{Reg: RegXMM0}})
		// comisd raises the parity flag on a NaN operand, and a NaN
		// condition is truthy: JumpIfNotZero must take the branch, and
		// JumpIfZero must skip past its je before ZF can be trusted.
		if cc == CCEqual {
			skip := sel.in.Intern(sel.names.Next("nan_nonzero"))
			sel.emit(&AsmJmpCC{CC: CCParity, Target: skip})
			sel.emit(&AsmJmpCC{CC: CCEqual, Target: target})
			sel.emit(&AsmLabel{Name: skip})
		} else {
			sel.emit(&AsmJmpCC{CC: CCParity, Target: target})
			sel.emit(&AsmJmpCC{CC: CCNotEqual, Target: target})
		}
		return
	}
	sel.emit(&AsmCmp{Type: sel.asmType(cond), Src1: NewAsmImm(0), Src2: sel.operand(cond)})
	sel.emit(&AsmJmpCC{CC: cc, Target: target})
}
