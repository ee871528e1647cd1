package main

// select_struct.go: aggregate (struct/array) instruction selection --
// chunked byte copies, address-based load/store, and the struct cases of
// Copy/GetAddress/Load/Store/AddPtr/CopyToOffset/CopyFromOffset.

// offsetOperand adds extra to a base operand's own offset, used to walk a
// chunked copy across consecutive eightbyte/longword/byte pieces.
func offsetOperand(op AsmOperand, extra int64) AsmOperand {
	switch o := op.(type) {
	case AsmPseudoMem:
		return AsmPseudoMem{Name: o.Name, Offset: o.Offset + extra}
	case AsmMemory:
		return AsmMemory{Offset: o.Offset + extra, Base: o.Base}
	case AsmData:
		return AsmData{Label: o.Label, Offset: o.Offset + extra}
	default:
		panic(internalError("offsetOperand", "unsupported base operand for chunked copy"))
	}
}

// chunkedCopy walks size in 8/4/1-byte pieces between two directly
// addressable bases.
func (sel *Selector) chunkedCopy(dst, src AsmOperand, size int64) {
	var off int64
	for size-off >= 8 {
		sel.emit(&AsmMov{Type: AsmQuad, Src: offsetOperand(src, off), Dst: offsetOperand(dst, off)})
		off += 8
	}
	for size-off >= 4 {
		sel.emit(&AsmMov{Type: AsmLong, Src: offsetOperand(src, off), Dst: offsetOperand(dst, off)})
		off += 4
	}
	for size-off >= 1 {
		sel.emit(&AsmMov{Type: AsmByte, Src: offsetOperand(src, off), Dst: offsetOperand(dst, off)})
		off++
	}
}

// chunkedCopyThroughPointer copies size bytes from a directly addressable
// srcBase into *dstPtrOperand, staging the pointer value through %r10 once
// and indexing off it for every chunk.
func (sel *Selector) chunkedCopyThroughPointer(srcBase, dstPtrOperand AsmOperand, size int64) {
	sel.emit(&AsmMov{Type: AsmQuad, Src: dstPtrOperand, Dst: AsmReg{Reg: RegR10}})
	var off int64
	for size-off >= 8 {
		sel.emit(&AsmMov{Type: AsmQuad, Src: offsetOperand(srcBase, off), Dst: AsmMemory{Offset: off, Base: RegR10}})
		off += 8
	}
	for size-off >= 4 {
		sel.emit(&AsmMov{Type: AsmLong, Src: offsetOperand(srcBase, off), Dst: AsmMemory{Offset: off, Base: RegR10}})
		off += 4
	}
	for size-off >= 1 {
		sel.emit(&AsmMov{Type: AsmByte, Src: offsetOperand(srcBase, off), Dst: AsmMemory{Offset: off, Base: RegR10}})
		off++
	}
}

// chunkedLoadThroughPointer is chunkedCopyThroughPointer's mirror: copies
// size bytes from *srcPtrOperand into a directly addressable dstBase.
func (sel *Selector) chunkedLoadThroughPointer(srcPtrOperand, dstBase AsmOperand, size int64) {
	sel.emit(&AsmMov{Type: AsmQuad, Src: srcPtrOperand, Dst: AsmReg{Reg: RegR10}})
	var off int64
	for size-off >= 8 {
		sel.emit(&AsmMov{Type: AsmQuad, Src: AsmMemory{Offset: off, Base: RegR10}, Dst: offsetOperand(dstBase, off)})
		off += 8
	}
	for size-off >= 4 {
		sel.emit(&AsmMov{Type: AsmLong, Src: AsmMemory{Offset: off, Base: RegR10}, Dst: offsetOperand(dstBase, off)})
		off += 4
	}
	for size-off >= 1 {
		sel.emit(&AsmMov{Type: AsmByte, Src: AsmMemory{Offset: off, Base: RegR10}, Dst: offsetOperand(dstBase, off)})
		off++
	}
}

// chunkedCopyPtrToPtr is TacMemCopy's direct translation: neither endpoint is
// a bare named object, both are addresses, so both are staged into scratch
// registers (%r11 source, %r10 destination) and every chunk round-trips
// through %eax/%al/%rax as an ordinary value register.
func (sel *Selector) chunkedCopyPtrToPtr(srcPtrOperand, dstPtrOperand AsmOperand, size int64) {
	sel.emit(&AsmMov{Type: AsmQuad, Src: srcPtrOperand, Dst: AsmReg{Reg: RegR11}})
	sel.emit(&AsmMov{Type: AsmQuad, Src: dstPtrOperand, Dst: AsmReg{Reg: RegR10}})
	var off int64
	for size-off >= 8 {
		sel.emit(&AsmMov{Type: AsmQuad, Src: AsmMemory{Offset: off, Base: RegR11}, Dst: AsmReg{Reg: RegAX}})
		sel.emit(&AsmMov{Type: AsmQuad, Src: AsmReg{Reg: RegAX}, Dst: AsmMemory{Offset: off, Base: RegR10}})
		off += 8
	}
	for size-off >= 4 {
		sel.emit(&AsmMov{Type: AsmLong, Src: AsmMemory{Offset: off, Base: RegR11}, Dst: AsmReg{Reg: RegAX}})
		sel.emit(&AsmMov{Type: AsmLong, Src: AsmReg{Reg: RegAX}, Dst: AsmMemory{Offset: off, Base: RegR10}})
		off += 4
	}
	for size-off >= 1 {
		sel.emit(&AsmMov{Type: AsmByte, Src: AsmMemory{Offset: off, Base: RegR11}, Dst: AsmReg{Reg: RegAX}})
		sel.emit(&AsmMov{Type: AsmByte, Src: AsmReg{Reg: RegAX}, Dst: AsmMemory{Offset: off, Base: RegR10}})
		off++
	}
}

func (sel *Selector) selectCopy(instr TacCopy) {
	if isAggregate(sel.valueType(instr.Dst)) {
		size := SizeOfType(sel.valueType(instr.Dst), sel.structs)
		sel.chunkedCopy(sel.operand(instr.Dst), sel.operand(instr.Src), size)
		return
	}
	sel.emit(&AsmMov{Type: sel.asmType(instr.Dst), Src: sel.operand(instr.Src), Dst: sel.operand(instr.Dst)})
}

func (sel *Selector) selectMemCopy(instr TacMemCopy) {
	sel.chunkedCopyPtrToPtr(sel.operand(instr.SrcPtr), sel.operand(instr.DstPtr), instr.Size)
}

func (sel *Selector) selectGetAddress(instr TacGetAddress) {
	sel.emit(&AsmLea{Src: sel.operand(instr.Src), Dst: sel.operand(instr.Dst)})
}

func (sel *Selector) selectLoad(instr TacLoad) {
	dstT := sel.valueType(instr.Dst)
	ptr := sel.operand(instr.SrcPtr)
	if dstT.Kind == TyStructure {
		sel.chunkedLoadThroughPointer(ptr, sel.operand(instr.Dst), SizeOfType(dstT, sel.structs))
		return
	}
	sel.emit(&AsmMov{Type: AsmQuad, Src: ptr, Dst: AsmReg{Reg: RegR10}})
	sel.emit(&AsmMov{Type: sel.asmType(instr.Dst), Src: AsmMemory{Offset: 0, Base: RegR10}, Dst: sel.operand(instr.Dst)})
}

func (sel *Selector) selectStore(instr TacStore) {
	srcT := sel.valueType(instr.Src)
	ptr := sel.operand(instr.DstPtr)
	if srcT.Kind == TyStructure {
		sel.chunkedCopyThroughPointer(sel.operand(instr.Src), ptr, SizeOfType(srcT, sel.structs))
		return
	}
	sel.emit(&AsmMov{Type: AsmQuad, Src: ptr, Dst: AsmReg{Reg: RegR10}})
	sel.emit(&AsmMov{Type: sel.asmType(instr.Src), Src: sel.operand(instr.Src), Dst: AsmMemory{Offset: 0, Base: RegR10}})
}

// selectAddPtr implements `lea` over either a constant or variable index.
// A constant index folds into the displacement; a variable one uses an
// indexed address, with an imul first when the scale has no encoding.
func (sel *Selector) selectAddPtr(instr TacAddPtr) {
	ptrOp := sel.operand(instr.Ptr)
	if c, ok := instr.Idx.(TacConstant); ok {
		off := c.IntVal * instr.Scale
		sel.emit(&AsmMov{Type: AsmQuad, Src: ptrOp, Dst: AsmReg{Reg: RegR10}})
		sel.emit(&AsmLea{Src: AsmMemory{Offset: off, Base: RegR10}, Dst: sel.operand(instr.Dst)})
		return
	}
	sel.emit(&AsmMov{Type: AsmQuad, Src: ptrOp, Dst: AsmReg{Reg: RegR10}})
	idxOp := sel.operand(instr.Idx)
	sel.emit(&AsmMov{Type: AsmQuad, Src: idxOp, Dst: AsmReg{Reg: RegR11}})
	switch instr.Scale {
	case 1, 2, 4, 8:
		sel.emit(&AsmLea{Src: AsmIndexed{Base: RegR10, Index: RegR11, Scale: instr.Scale}, Dst: sel.operand(instr.Dst)})
	default:
		sel.emit(&AsmBinary{Op: AsmMulInt, Type: AsmQuad, Src: NewAsmImm(instr.Scale), Dst: AsmReg{Reg: RegR11}})
		sel.emit(&AsmLea{Src: AsmIndexed{Base: RegR10, Index: RegR11, Scale: 1}, Dst: sel.operand(instr.Dst)})
	}
}

func (sel *Selector) selectCopyToOffset(instr TacCopyToOffset) {
	dst := AsmPseudoMem{Name: instr.Dst, Offset: instr.Offset}
	if sel.valueType(instr.Src).Kind == TyStructure {
		sel.chunkedCopy(dst, sel.operand(instr.Src), SizeOfType(sel.valueType(instr.Src), sel.structs))
		return
	}
	sel.emit(&AsmMov{Type: sel.asmType(instr.Src), Src: sel.operand(instr.Src), Dst: dst})
}

func (sel *Selector) selectCopyFromOffset(instr TacCopyFromOffset) {
	src := AsmPseudoMem{Name: instr.Src, Offset: instr.Offset}
	if sel.valueType(instr.Dst).Kind == TyStructure {
		sel.chunkedCopy(sel.operand(instr.Dst), src, SizeOfType(sel.valueType(instr.Dst), sel.structs))
		return
	}
	sel.emit(&AsmMov{Type: sel.asmType(instr.Dst), Src: src, Dst: sel.operand(instr.Dst)})
}
