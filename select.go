package main

import "math"

// select.go: TAC -> symbolic assembly instruction selection. Every
// TacVariable becomes a Pseudo/PseudoMem; fixup.go is the only later
// pass that resolves those into concrete stack/data operands.
//
// Discipline: a physical register never holds a value that must survive
// past the single TAC instruction currently being lowered. Argument/return
// registers are read or written at the edges of a call/return and
// immediately copied to/from a Pseudo; R10/R11/XMM14/XMM15 are reserved as
// scratch for fixup.go's Phase B and are also safe to use transiently here
// for struct chunk-copy addressing, since at this stage no TAC value has
// been assigned a register home yet.
type Selector struct {
	in      *Interner
	names   *NameGen
	front   FrontSymbolTable
	back    BackendSymbolTable
	structs StructTypedefTable
	abi     *AbiCache
	strings *StringPool
	doubles *DoubleConstPool

	instrs          []AsmInstruction
	curRetPtr       InternedID // valid iff the current function returns a MEMORY-class struct
	parityLabelName InternedID // most recent NaN-skip label minted by parityOkLabel
}

func NewSelector(in *Interner, names *NameGen, front FrontSymbolTable, back BackendSymbolTable, structs StructTypedefTable, strings *StringPool, doubles *DoubleConstPool) *Selector {
	return &Selector{
		in: in, names: names, front: front, back: back, structs: structs,
		abi: NewAbiCache(structs), strings: strings, doubles: doubles,
	}
}

func (sel *Selector) emit(i AsmInstruction) { sel.instrs = append(sel.instrs, i) }

func (sel *Selector) SelectProgram(tac *TacProgram) *AsmProgram {
	var tls []AsmTopLevel
	for _, tl := range tac.TopLevels {
		switch t := tl.(type) {
		case *TacFunction:
			tls = append(tls, sel.selectFunction(t))
		case *TacStaticVariable:
			tls = append(tls, &AsmStaticVariable{Name: t.Name, Global: t.Global, Align: ToAssemblyType(t.Type, sel.structs).AlignOf(), Inits: t.Inits})
		case *TacStaticConstant:
			// re-derived comprehensively below from the live (still-growing)
			// string/double pools, so TAC-level entries are not re-emitted here.
		}
	}
	for _, e := range sel.strings.Entries() {
		align := int64(1)
		if len(e.Value) >= 16 {
			align = 16
		}
		tls = append(tls, &AsmStaticConstant{Name: e.Label, Align: align,
			Init: StringInit{Literal: noIntern, IsNullTerminated: e.IsNullTerminated, Bytes: e.Value}})
	}
	for _, bits := range sel.doubles.Entries() {
		align := int64(8)
		if bits == negZeroBits {
			align = 16
		}
		label := sel.doubles.byBits[bits]
		tls = append(tls, &AsmStaticConstant{Name: label, Align: align, Init: DoubleInit{Label: label}})
	}
	return &AsmProgram{TopLevels: tls}
}

var negZeroBits = math.Float64bits(math.Copysign(0, -1))

// doubleLabel registers (or finds) the pooled label for a double constant
// encountered directly as a TacConstant operand, keyed by the value's
// 64-bit binary pattern.
func (sel *Selector) doubleLabel(v float64) string {
	return sel.doubles.Label(math.Float64bits(v))
}

func (sel *Selector) negZeroLabel() string { return sel.doubles.Label(negZeroBits) }

func (sel *Selector) asmType(v TacValue) AssemblyType {
	switch x := v.(type) {
	case TacConstant:
		if x.Kind == TacConstDoubleKind {
			return AsmDouble
		}
		return ToAssemblyType(x.Type, sel.structs)
	case TacVariable:
		if bo, ok := sel.back[x.Name].(BackendObj); ok {
			return bo.Asm
		}
		return ToAssemblyType(x.Type, sel.structs)
	default:
		panic(internalError("asmType", "nil TacValue"))
	}
}

func (sel *Selector) valueType(v TacValue) *Type {
	switch x := v.(type) {
	case TacConstant:
		return x.Type
	case TacVariable:
		return x.Type
	default:
		panic(internalError("valueType", "nil TacValue"))
	}
}

func (sel *Selector) isSigned(v TacValue) bool { return IsSigned(sel.valueType(v)) }

// operand lowers a TacValue into its asm operand form: an
// aggregate-typed variable becomes PseudoMem, a scalar
// becomes Pseudo, and a double constant is hoisted into the rodata pool.
func (sel *Selector) operand(v TacValue) AsmOperand {
	switch x := v.(type) {
	case TacConstant:
		if x.Kind == TacConstDoubleKind {
			return AsmData{Label: sel.doubleLabel(x.DblVal)}
		}
		return NewAsmImm(x.IntVal)
	case TacVariable:
		if sel.asmType(x).Kind == ATByteArray {
			return AsmPseudoMem{Name: x.Name}
		}
		return AsmPseudo{Name: x.Name}
	default:
		panic(internalError("operand", "nil TacValue"))
	}
}

func isMemoryClassReturn(abi *AbiCache, t *Type) bool {
	if t.Kind != TyStructure {
		return false
	}
	return hasMemoryClass(abi.Classify(t.Tag))
}

func (sel *Selector) selectFunction(fn *TacFunction) *AsmFunction {
	sel.instrs = nil
	retType := sel.front[fn.Name].Type.Ret

	intRegs := append([]RegId{}, IntArgRegs...)
	sseRegs := append([]RegId{}, SSEArgRegs...)
	var stackOffset int64 = 16

	if isMemoryClassReturn(sel.abi, retType) {
		intRegs = intRegs[1:]
		sel.curRetPtr = sel.in.Intern(sel.names.Next("ret_ptr"))
		sel.emit(&AsmMov{Type: AsmQuad, Src: AsmReg{Reg: RegDI}, Dst: AsmPseudo{Name: sel.curRetPtr}})
	}

	for _, p := range fn.Params {
		t := sel.front[p].Type
		switch {
		case t.Kind == TyStructure:
			classes := sel.abi.Classify(t.Tag)
			if hasMemoryClass(classes) || !structFitsInRegs(classes, len(intRegs), len(sseRegs)) {
				sel.copyParamStructFromStack(p, t, &stackOffset)
			} else {
				sel.copyParamStructFromRegs(p, t, classes, &intRegs, &sseRegs)
			}
		case t.Kind == TyDouble:
			if len(sseRegs) > 0 {
				reg := sseRegs[0]
				sseRegs = sseRegs[1:]
				sel.emit(&AsmMov{Type: AsmDouble, Src: AsmReg{Reg: reg}, Dst: AsmPseudo{Name: p}})
			} else {
				sel.emit(&AsmMov{Type: AsmDouble, Src: AsmMemory{Offset: stackOffset, Base: RegBP}, Dst: AsmPseudo{Name: p}})
				stackOffset += 8
			}
		default:
			at := ToAssemblyType(t, sel.structs)
			if len(intRegs) > 0 {
				reg := intRegs[0]
				intRegs = intRegs[1:]
				sel.emit(&AsmMov{Type: at, Src: AsmReg{Reg: reg}, Dst: AsmPseudo{Name: p}})
			} else {
				sel.emit(&AsmMov{Type: at, Src: AsmMemory{Offset: stackOffset, Base: RegBP}, Dst: AsmPseudo{Name: p}})
				stackOffset += 8
			}
		}
	}

	for _, instr := range fn.Body {
		sel.selectInstr(instr)
	}
	return &AsmFunction{Name: fn.Name, Global: fn.Global, Instructions: sel.instrs}
}

func (sel *Selector) copyParamStructFromRegs(name InternedID, t *Type, classes []EightbyteClass, intRegs, sseRegs *[]RegId) {
	size := SizeOfType(t, sel.structs)
	for i, cl := range classes {
		off := int64(i) * 8
		switch cl {
		case ClassInteger:
			reg := (*intRegs)[0]
			*intRegs = (*intRegs)[1:]
			sel.unpackEightbyte(reg, AsmPseudoMem{Name: name, Offset: off}, size-off)
		case ClassSSE:
			reg := (*sseRegs)[0]
			*sseRegs = (*sseRegs)[1:]
			sel.emit(&AsmMov{Type: AsmDouble, Src: AsmReg{Reg: reg}, Dst: AsmPseudoMem{Name: name, Offset: off}})
		}
	}
}

// packEightbyte loads `count` (1..8) bytes starting at base into reg. A full
// eightbyte is one quad mov; a partial one is assembled high-byte-first with
// shifts so no byte past the object is ever read.
func (sel *Selector) packEightbyte(base AsmOperand, reg RegId, count int64) {
	if count >= 8 {
		sel.emit(&AsmMov{Type: AsmQuad, Src: base, Dst: AsmReg{Reg: reg}})
		return
	}
	for i := count - 1; i >= 0; i-- {
		sel.emit(&AsmMov{Type: AsmByte, Src: offsetOperand(base, i), Dst: AsmReg{Reg: reg}})
		if i > 0 {
			sel.emit(&AsmBinary{Op: AsmShl, Type: AsmQuad, Src: NewAsmImm(8), Dst: AsmReg{Reg: reg}})
		}
	}
}

// unpackEightbyte is packEightbyte's mirror: stores min(count, 8) bytes of
// reg at base, low byte first, shifting the register right as it goes.
func (sel *Selector) unpackEightbyte(reg RegId, base AsmOperand, count int64) {
	if count >= 8 {
		sel.emit(&AsmMov{Type: AsmQuad, Src: AsmReg{Reg: reg}, Dst: base})
		return
	}
	for i := int64(0); i < count; i++ {
		sel.emit(&AsmMov{Type: AsmByte, Src: AsmReg{Reg: reg}, Dst: offsetOperand(base, i)})
		if i < count-1 {
			sel.emit(&AsmBinary{Op: AsmShr, Type: AsmQuad, Src: NewAsmImm(8), Dst: AsmReg{Reg: reg}})
		}
	}
}

func (sel *Selector) copyParamStructFromStack(name InternedID, t *Type, stackOffset *int64) {
	size := SizeOfType(t, sel.structs)
	sel.chunkedCopy(AsmMemory{Offset: *stackOffset, Base: RegBP}, AsmPseudoMem{Name: name}, size)
	*stackOffset += alignUpTo(size, 8)
}

func (sel *Selector) selectReturn(instr *TacReturn) {
	if instr.Val == nil {
		sel.emit(&AsmRet{})
		return
	}
	t := sel.valueType(instr.Val)
	switch {
	case t.Kind == TyStructure:
		classes := sel.abi.Classify(t.Tag)
		if hasMemoryClass(classes) {
			src := sel.operand(instr.Val)
			sel.chunkedCopyThroughPointer(src, AsmPseudo{Name: sel.curRetPtr}, SizeOfType(t, sel.structs))
			sel.emit(&AsmMov{Type: AsmQuad, Src: AsmPseudo{Name: sel.curRetPtr}, Dst: AsmReg{Reg: RegAX}})
		} else {
			sel.returnStructInRegs(instr.Val, classes)
		}
	case t.Kind == TyDouble:
		sel.emit(&AsmMov{Type: AsmDouble, Src: sel.operand(instr.Val), Dst: AsmReg{Reg: RegXMM0}})
	default:
		sel.emit(&AsmMov{Type: sel.asmType(instr.Val), Src: sel.operand(instr.Val), Dst: AsmReg{Reg: RegAX}})
	}
	sel.emit(&AsmRet{})
}

func (sel *Selector) returnStructInRegs(v TacValue, classes []EightbyteClass) {
	src := sel.operand(v)
	size := SizeOfType(sel.valueType(v), sel.structs)
	intIdx, sseIdx := 0, 0
	for i, off := range eightbyteOffsets(classes) {
		switch classes[i] {
		case ClassInteger:
			sel.packEightbyte(offsetOperand(src, off), IntRetRegs[intIdx], size-off)
			intIdx++
		case ClassSSE:
			sel.emit(&AsmMov{Type: AsmDouble, Src: offsetOperand(src, off), Dst: AsmReg{Reg: SSERetRegs[sseIdx]}})
			sseIdx++
		}
	}
}

// structFitsInRegs: a register-class struct still spills to the stack when
// the remaining integer/SSE argument registers cannot hold every eightbyte
// together.
func structFitsInRegs(classes []EightbyteClass, intLeft, sseLeft int) bool {
	needInt, needSSE := 0, 0
	for _, cl := range classes {
		if cl == ClassInteger {
			needInt++
		} else {
			needSSE++
		}
	}
	return needInt <= intLeft && needSSE <= sseLeft
}
