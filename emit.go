package main

import (
	"fmt"
	"strconv"
	"strings"
)

// emit.go: streams the fixed-up assembly IR as GNU Assembler text.
// Purely a pretty printer: every semantic decision was made by the
// earlier passes. Platform conditionals cover the two supported targets,
// System-V ELF (default) and Darwin.

type Platform int

const (
	PlatformELF Platform = iota
	PlatformDarwin
)

func (p Platform) IsELF() bool    { return p == PlatformELF }
func (p Platform) IsDarwin() bool { return p == PlatformDarwin }

type Emitter struct {
	platform Platform
	in       *Interner
	doubles  *DoubleConstPool

	constLabels map[string]bool // pooled "string.NNN"/"double.NNN" labels
	b           strings.Builder
}

func NewEmitter(platform Platform, in *Interner, doubles *DoubleConstPool) *Emitter {
	return &Emitter{platform: platform, in: in, doubles: doubles, constLabels: make(map[string]bool)}
}

func (e *Emitter) writef(format string, args ...any) {
	fmt.Fprintf(&e.b, format, args...)
}

// symbol renders an externally visible identifier: Darwin prefixes an
// underscore, ELF does not.
func (e *Emitter) symbol(name string) string {
	if e.platform.IsDarwin() {
		return "_" + name
	}
	return name
}

// local renders a function-internal or constant label: ".L" on ELF, "L" on
// Darwin.
func (e *Emitter) local(name string) string {
	if e.platform.IsDarwin() {
		return "L" + name
	}
	return ".L" + name
}

// EmitProgram renders prog with static constants first, then static
// variables, then functions.
func (e *Emitter) EmitProgram(prog *AsmProgram) string {
	for _, tl := range prog.TopLevels {
		if c, ok := tl.(*AsmStaticConstant); ok {
			e.constLabels[c.Name] = true
		}
	}
	for _, tl := range prog.TopLevels {
		if c, ok := tl.(*AsmStaticConstant); ok {
			e.emitStaticConstant(c)
		}
	}
	for _, tl := range prog.TopLevels {
		if v, ok := tl.(*AsmStaticVariable); ok {
			e.emitStaticVariable(v)
		}
	}
	for _, tl := range prog.TopLevels {
		if fn, ok := tl.(*AsmFunction); ok {
			e.emitFunction(fn)
		}
	}
	if e.platform.IsELF() {
		e.writef("\t.section .note.GNU-stack,\"\",@progbits\n")
	}
	return e.b.String()
}

func (e *Emitter) emitStaticConstant(c *AsmStaticConstant) {
	if e.platform.IsDarwin() {
		switch {
		case isStringInit(c.Init):
			e.writef("\t.cstring\n")
		case c.Align == 16:
			e.writef("\t.literal16\n")
		default:
			e.writef("\t.literal8\n")
		}
	} else {
		e.writef("\t.section .rodata\n")
	}
	e.writef("\t.balign %d\n", c.Align)
	e.writef("%s:\n", e.local(c.Name))
	e.emitInit(c.Init)
	if e.platform.IsDarwin() && c.Align == 16 && !isStringInit(c.Init) {
		// .literal16 entries pad to their full sixteen bytes.
		e.writef("\t.quad 0\n")
	}
}

func isStringInit(init StaticInit) bool {
	_, ok := init.(StringInit)
	return ok
}

func (e *Emitter) emitStaticVariable(v *AsmStaticVariable) {
	name := e.symbol(e.in.Text(v.Name))
	if v.Global {
		e.writef("\t.globl %s\n", name)
	}
	if len(v.Inits) == 1 {
		if z, ok := v.Inits[0].(ZeroInit); ok {
			e.writef("\t.bss\n")
			e.writef("\t.balign %d\n", v.Align)
			e.writef("%s:\n", name)
			e.writef("\t.zero %d\n", z.Bytes)
			return
		}
	}
	e.writef("\t.data\n")
	e.writef("\t.balign %d\n", v.Align)
	e.writef("%s:\n", name)
	for _, init := range v.Inits {
		e.emitInit(init)
	}
}

func (e *Emitter) emitInit(init StaticInit) {
	switch i := init.(type) {
	case CharInit:
		e.writef("\t.byte %d\n", i.Value)
	case UCharInit:
		e.writef("\t.byte %d\n", i.Value)
	case IntInit:
		e.writef("\t.long %d\n", i.Value)
	case UIntInit:
		e.writef("\t.long %d\n", i.Value)
	case LongInit:
		e.writef("\t.quad %d\n", i.Value)
	case ULongInit:
		e.writef("\t.quad %d\n", i.Value)
	case DoubleInit:
		e.writef("\t.quad %d\n", e.doubles.Bits(i.Label))
	case ZeroInit:
		e.writef("\t.zero %d\n", i.Bytes)
	case StringInit:
		if i.IsNullTerminated {
			e.writef("\t.asciz \"%s\"\n", escapeString(i.Bytes))
		} else {
			e.writef("\t.ascii \"%s\"\n", escapeString(i.Bytes))
		}
	case PointerInit:
		e.writef("\t.quad %s\n", e.dataLabel(i.Label))
	default:
		panic(internalError("emitInit", "unknown static init"))
	}
}

func escapeString(bytes []byte) string {
	var sb strings.Builder
	for _, c := range bytes {
		switch {
		case c == '"':
			sb.WriteString("\\\"")
		case c == '\\':
			sb.WriteString("\\\\")
		case c == '\n':
			sb.WriteString("\\n")
		case c >= 32 && c < 127:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "\\%03o", c)
		}
	}
	return sb.String()
}

// dataLabel picks the right spelling for a Data reference: pooled constants
// print with the local-label prefix, source symbols with the platform
// symbol prefix.
func (e *Emitter) dataLabel(label string) string {
	if e.constLabels[label] {
		return e.local(label)
	}
	return e.symbol(label)
}

func (e *Emitter) emitFunction(fn *AsmFunction) {
	name := e.symbol(e.in.Text(fn.Name))
	if fn.Global {
		e.writef("\t.globl %s\n", name)
	}
	e.writef("\t.text\n")
	e.writef("%s:\n", name)
	for _, instr := range fn.Instructions {
		e.emitInstr(instr)
	}
}

// suffix gives the AT&T mnemonic size suffix for an assembly type.
func suffix(t AssemblyType) string {
	switch t.Kind {
	case ATByte:
		return "b"
	case ATLongWord:
		return "l"
	case ATQuadWord:
		return "q"
	case ATDouble:
		return "sd"
	default:
		panic(internalError("suffix", "no mnemonic suffix for byte arrays"))
	}
}

var reg8Names = [...]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}
var reg4Names = [...]string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi",
	"r8d", "r9d", "r10d", "r11d", "r12d", "r13d", "r14d", "r15d"}
var reg1Names = [...]string{"al", "cl", "dl", "bl", "spl", "bpl", "sil", "dil",
	"r8b", "r9b", "r10b", "r11b", "r12b", "r13b", "r14b", "r15b"}

func regName(r RegId, t AssemblyType) string {
	if isXMM(r) {
		return "%xmm" + strconv.Itoa(int(r-RegXMM0))
	}
	switch t.Kind {
	case ATByte:
		return "%" + reg1Names[r]
	case ATLongWord:
		return "%" + reg4Names[r]
	default:
		return "%" + reg8Names[r]
	}
}

func (e *Emitter) operand(op AsmOperand, t AssemblyType) string {
	switch o := op.(type) {
	case AsmImm:
		if o.IsNeg {
			return "$" + strconv.FormatInt(o.Value, 10)
		}
		return "$" + strconv.FormatUint(uint64(o.Value), 10)
	case AsmReg:
		return regName(o.Reg, t)
	case AsmMemory:
		if o.Offset == 0 {
			return "(%" + reg8Names[o.Base] + ")"
		}
		return strconv.FormatInt(o.Offset, 10) + "(%" + reg8Names[o.Base] + ")"
	case AsmData:
		s := e.dataLabel(o.Label)
		if o.Offset != 0 {
			s += "+" + strconv.FormatInt(o.Offset, 10)
		}
		return s + "(%rip)"
	case AsmIndexed:
		return fmt.Sprintf("(%%%s,%%%s,%d)", reg8Names[o.Base], reg8Names[o.Index], o.Scale)
	default:
		panic(internalError("Emitter.operand", "abstract operand survived fix-up"))
	}
}

func condSuffix(cc CondCode) string {
	switch cc {
	case CCEqual:
		return "e"
	case CCNotEqual:
		return "ne"
	case CCLess:
		return "l"
	case CCLessEqual:
		return "le"
	case CCGreater:
		return "g"
	case CCGreaterEqual:
		return "ge"
	case CCBelow:
		return "b"
	case CCBelowEqual:
		return "be"
	case CCAbove:
		return "a"
	case CCAboveEqual:
		return "ae"
	case CCParity:
		return "p"
	default:
		panic(internalError("condSuffix", "unknown condition code"))
	}
}

func binaryMnemonic(op BinaryAsmOp, t AssemblyType) string {
	if t.Kind == ATDouble {
		switch op {
		case AsmAdd:
			return "addsd"
		case AsmSub:
			return "subsd"
		case AsmMulSSE:
			return "mulsd"
		case AsmDivSSE:
			return "divsd"
		case AsmXor:
			return "xorpd"
		default:
			panic(internalError("binaryMnemonic", "op has no SSE form"))
		}
	}
	switch op {
	case AsmAdd:
		return "add" + suffix(t)
	case AsmSub:
		return "sub" + suffix(t)
	case AsmMulInt:
		return "imul" + suffix(t)
	case AsmAnd:
		return "and" + suffix(t)
	case AsmOr:
		return "or" + suffix(t)
	case AsmXor:
		return "xor" + suffix(t)
	case AsmShl:
		return "shl" + suffix(t)
	case AsmShr:
		return "shr" + suffix(t)
	case AsmSar:
		return "sar" + suffix(t)
	default:
		panic(internalError("binaryMnemonic", "op has no integer form"))
	}
}

func movsxMnemonic(src, dst AssemblyType) string {
	switch {
	case src.Kind == ATByte && dst.Kind == ATLongWord:
		return "movsbl"
	case src.Kind == ATByte && dst.Kind == ATQuadWord:
		return "movsbq"
	case src.Kind == ATLongWord && dst.Kind == ATQuadWord:
		return "movslq"
	default:
		panic(internalError("movsxMnemonic", "unsupported width pair"))
	}
}

func movzxMnemonic(src, dst AssemblyType) string {
	switch {
	case src.Kind == ATByte && dst.Kind == ATLongWord:
		return "movzbl"
	case src.Kind == ATByte && dst.Kind == ATQuadWord:
		return "movzbq"
	default:
		panic(internalError("movzxMnemonic", "unsupported width pair"))
	}
}

func (e *Emitter) emitInstr(instr AsmInstruction) {
	switch i := instr.(type) {
	case *AsmMov:
		e.writef("\tmov%s %s, %s\n", suffix(i.Type), e.operand(i.Src, i.Type), e.operand(i.Dst, i.Type))
	case *AsmMovsx:
		e.writef("\t%s %s, %s\n", movsxMnemonic(i.SrcType, i.DstType), e.operand(i.Src, i.SrcType), e.operand(i.Dst, i.DstType))
	case *AsmMovzx:
		e.writef("\t%s %s, %s\n", movzxMnemonic(i.SrcType, i.DstType), e.operand(i.Src, i.SrcType), e.operand(i.Dst, i.DstType))
	case *AsmLea:
		e.writef("\tleaq %s, %s\n", e.operand(i.Src, AsmQuad), e.operand(i.Dst, AsmQuad))
	case *AsmCvttsd2si:
		e.writef("\tcvttsd2si%s %s, %s\n", suffix(i.DstType), e.operand(i.Src, AsmDouble), e.operand(i.Dst, i.DstType))
	case *AsmCvtsi2sd:
		e.writef("\tcvtsi2sd%s %s, %s\n", suffix(i.SrcType), e.operand(i.Src, i.SrcType), e.operand(i.Dst, AsmDouble))
	case *AsmUnary:
		mnem := "not"
		if i.Op == AsmNeg {
			mnem = "neg"
		}
		e.writef("\t%s%s %s\n", mnem, suffix(i.Type), e.operand(i.Operand, i.Type))
	case *AsmBinary:
		srcType := i.Type
		if i.Op == AsmShl || i.Op == AsmShr || i.Op == AsmSar {
			// a register shift count is always %cl
			srcType = AsmByte
		}
		e.writef("\t%s %s, %s\n", binaryMnemonic(i.Op, i.Type), e.operand(i.Src, srcType), e.operand(i.Dst, i.Type))
	case *AsmCmp:
		if i.Type.Kind == ATDouble {
			e.writef("\tcomisd %s, %s\n", e.operand(i.Src1, AsmDouble), e.operand(i.Src2, AsmDouble))
		} else {
			e.writef("\tcmp%s %s, %s\n", suffix(i.Type), e.operand(i.Src1, i.Type), e.operand(i.Src2, i.Type))
		}
	case *AsmIdiv:
		e.writef("\tidiv%s %s\n", suffix(i.Type), e.operand(i.Operand, i.Type))
	case *AsmDiv:
		e.writef("\tdiv%s %s\n", suffix(i.Type), e.operand(i.Operand, i.Type))
	case *AsmCdq:
		e.writef("\tcdq\n")
	case *AsmCqo:
		e.writef("\tcqo\n")
	case *AsmJmp:
		e.writef("\tjmp %s\n", e.local(e.in.Text(i.Target)))
	case *AsmJmpCC:
		e.writef("\tj%s %s\n", condSuffix(i.CC), e.local(e.in.Text(i.Target)))
	case *AsmSetCC:
		e.writef("\tset%s %s\n", condSuffix(i.CC), e.operand(i.Operand, AsmByte))
	case *AsmLabel:
		e.writef("%s:\n", e.local(e.in.Text(i.Name)))
	case *AsmCall:
		target := e.symbol(e.in.Text(i.Name))
		if e.platform.IsELF() && !i.Internal {
			target += "@PLT"
		}
		e.writef("\tcall %s\n", target)
	case *AsmPush:
		e.writef("\tpushq %s\n", e.operand(i.Operand, AsmQuad))
	case *AsmPop:
		e.writef("\tpopq %s\n", regName(i.Reg, AsmQuad))
	case *AsmRet:
		e.writef("\tret\n")
	case *AsmXorSign:
		e.writef("\txorpd %s(%%rip), %s\n", e.dataLabel(i.MaskLabel), e.operand(i.Dst, AsmDouble))
	default:
		panic(internalError("emitInstr", "unknown assembly instruction"))
	}
}
