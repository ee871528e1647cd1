package main

// tac.go: the three-address intermediate representation. TAC nodes live
// from lowering until instruction selection begins; they are owned
// uniquely by their containing TacFunction/TacProgram.

type TacValue interface{ tacValueNode() }

type TacConstKind int

const (
	TacConstIntKind TacConstKind = iota
	TacConstDoubleKind
)

// TacConstant wraps a literal value; its front Type drives the eventual
// AsmImm/AsmData classification in instruction selection.
type TacConstant struct {
	Kind    TacConstKind
	Type    *Type
	IntVal  int64
	DblVal  float64
}

// TacVariable names a front-end temporary or source variable. Its Type
// (tracked via the backend symbol table by name) tells instruction
// selection whether it becomes a scalar Pseudo or an aggregate PseudoMem.
type TacVariable struct {
	Name InternedID
	Type *Type
}

func (TacConstant) tacValueNode() {}
func (TacVariable) tacValueNode() {}

func constInt(v int64, t *Type) TacConstant {
	return TacConstant{Kind: TacConstIntKind, Type: t, IntVal: v}
}

func constDouble(v float64) TacConstant {
	return TacConstant{Kind: TacConstDoubleKind, Type: TypeDouble, DblVal: v}
}

// TacInstruction is the tagged variant of every three-address op.
type TacInstruction interface{ tacInstNode() }

type TacReturn struct{ Val TacValue } // nil Val => `return;` in a void function

type TacSignExtend struct{ Src, Dst TacValue }
type TacZeroExtend struct{ Src, Dst TacValue }
type TacTruncate struct{ Src, Dst TacValue }
type TacDoubleToInt struct{ Src, Dst TacValue }
type TacDoubleToUInt struct{ Src, Dst TacValue }
type TacIntToDouble struct{ Src, Dst TacValue }
type TacUIntToDouble struct{ Src, Dst TacValue }

type TacUnary struct {
	Op       UnaryOp
	Src, Dst TacValue
}

type TacBinary struct {
	Op         BinaryOp
	Src1, Src2 TacValue
	Dst        TacValue
}

type TacCopy struct{ Src, Dst TacValue }

// TacMemCopy is the address-based generalization of TacCopy used for
// aggregate sub-objects reached through pointer arithmetic (nested struct
// members, array-of-struct elements) rather than a bare named variable.
// Instruction selection chunks it the same way it chunks TacCopy.
type TacMemCopy struct {
	SrcPtr, DstPtr TacValue
	Size           int64
}

type TacGetAddress struct{ Src, Dst TacValue }
type TacLoad struct{ SrcPtr, Dst TacValue }
type TacStore struct{ Src, DstPtr TacValue }

// TacAddPtr models `lea` over either a constant or variable index; Scale is
// meaningless (treated as 1) when Idx is a constant, since the lowering
// pass folds constant_offset = index*scale before emitting.
type TacAddPtr struct {
	Ptr, Idx TacValue
	Scale    int64
	Dst      TacValue
}

type TacCopyToOffset struct {
	Src    TacValue
	Dst    InternedID
	Offset int64
}

type TacCopyFromOffset struct {
	Src    InternedID
	Offset int64
	Dst    TacValue
}

type TacJump struct{ Target InternedID }
type TacJumpIfZero struct {
	Cond   TacValue
	Target InternedID
}
type TacJumpIfNotZero struct {
	Cond   TacValue
	Target InternedID
}
type TacLabel struct{ Name InternedID }

type TacFunCall struct {
	Name InternedID
	Args []TacValue
	Dst  TacValue // nil for a void call
}

func (TacReturn) tacInstNode()         {}
func (TacSignExtend) tacInstNode()     {}
func (TacZeroExtend) tacInstNode()     {}
func (TacTruncate) tacInstNode()       {}
func (TacDoubleToInt) tacInstNode()    {}
func (TacDoubleToUInt) tacInstNode()   {}
func (TacIntToDouble) tacInstNode()    {}
func (TacUIntToDouble) tacInstNode()   {}
func (TacUnary) tacInstNode()          {}
func (TacBinary) tacInstNode()         {}
func (TacCopy) tacInstNode()           {}
func (TacMemCopy) tacInstNode()        {}
func (TacGetAddress) tacInstNode()     {}
func (TacLoad) tacInstNode()           {}
func (TacStore) tacInstNode()          {}
func (TacAddPtr) tacInstNode()         {}
func (TacCopyToOffset) tacInstNode()   {}
func (TacCopyFromOffset) tacInstNode() {}
func (TacJump) tacInstNode()           {}
func (TacJumpIfZero) tacInstNode()     {}
func (TacJumpIfNotZero) tacInstNode()  {}
func (TacLabel) tacInstNode()          {}
func (TacFunCall) tacInstNode()        {}

// TacTopLevel: functions, static variables, static constants.
type TacTopLevel interface{ tacTopLevelNode() }

type TacFunction struct {
	Name   InternedID
	Global bool
	Params []InternedID
	Body   []TacInstruction
}

type TacStaticVariable struct {
	Name   InternedID
	Global bool
	Type   *Type
	Inits  []StaticInit
}

// TacStaticConstant's Name is a plain string (not an InternedID): it always
// names a synthetic "string.NNN"/"double.NNN" label, never a source
// identifier, matching DoubleInit/PointerInit's string-typed Label fields.
type TacStaticConstant struct {
	Name string
	Type *Type
	Init StaticInit
}

func (*TacFunction) tacTopLevelNode()        {}
func (*TacStaticVariable) tacTopLevelNode()  {}
func (*TacStaticConstant) tacTopLevelNode()  {}

type TacProgram struct {
	TopLevels []TacTopLevel
}
