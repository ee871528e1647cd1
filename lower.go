package main

import "sort"

// lower.go: AST->TAC lowering. Flattens expressions into three-address
// instructions, preserving evaluation order and
// short-circuit semantics, and expands declarations/initializers into
// explicit stores.
type Lowerer struct {
	in      *Interner
	names   *NameGen
	front   FrontSymbolTable
	structs StructTypedefTable
	strings *StringPool
	doubles *DoubleConstPool

	// TempTypes records the front Type of every synthetic name this pass
	// mints (temporaries, string/double constant refs), so the backend
	// symbol table can classify them without re-walking the AST.
	TempTypes map[InternedID]*Type

	instrs []TacInstruction
	curFn  InternedID
}

func NewLowerer(in *Interner, names *NameGen, front FrontSymbolTable, structs StructTypedefTable, strings *StringPool, doubles *DoubleConstPool) *Lowerer {
	return &Lowerer{
		in: in, names: names, front: front, structs: structs,
		strings: strings, doubles: doubles,
		TempTypes: make(map[InternedID]*Type),
	}
}

func (lw *Lowerer) emit(instr TacInstruction) { lw.instrs = append(lw.instrs, instr) }

func (lw *Lowerer) label(prefix string) InternedID { return lw.in.Intern(lw.names.Next(prefix)) }

func (lw *Lowerer) newTemp(t *Type) TacVariable {
	name := lw.label("var")
	lw.TempTypes[name] = t
	return TacVariable{Name: name, Type: t}
}

func (lw *Lowerer) continueLabel(base InternedID) InternedID {
	return lw.in.Intern(lw.in.Text(base) + ".continue")
}

func (lw *Lowerer) breakLabel(base InternedID) InternedID {
	return lw.in.Intern(lw.in.Text(base) + ".break")
}

// gotoLabel qualifies a source goto label with the enclosing function name,
// since source labels are only unique per function while assembly labels
// share one namespace.
func (lw *Lowerer) gotoLabel(name InternedID) InternedID {
	return lw.in.Intern(lw.in.Text(name) + "." + lw.in.Text(lw.curFn))
}

// LowerProgram runs the whole pass: function bodies, then static
// variables/constants gathered from the (by-then-closed) front symbol
// table and string/double pools.
func (lw *Lowerer) LowerProgram(prog *CProgram) (*TacProgram, error) {
	var tls []TacTopLevel
	for _, decl := range prog.Declarations {
		fd, ok := decl.(*CFunDecl)
		if !ok || fd.Body == nil {
			continue
		}
		fn, err := lw.lowerFunction(fd)
		if err != nil {
			return nil, err
		}
		tls = append(tls, fn)
	}
	staticIDs := make([]InternedID, 0, len(lw.front))
	for id, sym := range lw.front {
		if _, ok := sym.Attrs.(StaticAttr); ok {
			staticIDs = append(staticIDs, id)
		}
	}
	sort.Slice(staticIDs, func(i, j int) bool {
		return lw.in.Text(staticIDs[i]) < lw.in.Text(staticIDs[j])
	})
	for _, id := range staticIDs {
		sym := lw.front[id]
		sa := sym.Attrs.(StaticAttr)
		switch sa.Init.Kind {
		case IVTentative:
			tls = append(tls, &TacStaticVariable{Name: id, Global: sa.Global, Type: sym.Type,
				Inits: []StaticInit{ZeroInit{Bytes: SizeOfType(sym.Type, lw.structs)}}})
		case IVInitial:
			tls = append(tls, &TacStaticVariable{Name: id, Global: sa.Global, Type: sym.Type, Inits: sa.Init.Inits})
		}
	}
	for _, e := range lw.strings.Entries() {
		tls = append(tls, &TacStaticConstant{
			Name: e.Label,
			Type: NewArray(TypeChar, int64(len(e.Value))+boolToInt64(e.IsNullTerminated)),
			Init: StringInit{Literal: noIntern, IsNullTerminated: e.IsNullTerminated, Bytes: e.Value},
		})
	}
	for _, bits := range lw.doubles.Entries() {
		tls = append(tls, &TacStaticConstant{Name: lw.doubles.byBits[bits], Type: TypeDouble, Init: DoubleInit{Label: lw.doubles.byBits[bits]}})
	}
	return &TacProgram{TopLevels: tls}, nil
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (lw *Lowerer) lowerFunction(d *CFunDecl) (*TacFunction, error) {
	lw.instrs = nil
	lw.curFn = d.Name
	for _, p := range d.Params {
		lw.TempTypes[p] = lw.front[p].Type
	}
	if err := lw.lowerBlock(d.Body); err != nil {
		return nil, err
	}
	lw.emit(&TacReturn{Val: defaultReturnVal(d.FunType.Ret)})
	fa := lw.front[d.Name].Attrs.(FunAttr)
	return &TacFunction{Name: d.Name, Global: fa.Global, Params: d.Params, Body: lw.instrs}, nil
}

// defaultReturnVal backs the implicit return appended to every function
// body. Void and aggregate returns get a bare `ret`: falling off the end
// of a struct-returning function leaves the return registers unspecified.
func defaultReturnVal(ret *Type) TacValue {
	switch ret.Kind {
	case TyVoid, TyStructure:
		return nil
	case TyDouble:
		return constDouble(0)
	default:
		return constInt(0, ret)
	}
}

func (lw *Lowerer) lowerBlock(b *CBlock) error {
	for _, item := range b.Items {
		if err := lw.lowerBlockItem(item); err != nil {
			return err
		}
	}
	return nil
}

func (lw *Lowerer) lowerBlockItem(item CBlockItem) error {
	switch it := item.(type) {
	case CBlockS:
		return lw.lowerStmt(it.Stmt)
	case CBlockD:
		return lw.lowerLocalDecl(it.Decl)
	default:
		panic(internalError("lowerBlockItem", "unknown block item"))
	}
}

func (lw *Lowerer) lowerLocalDecl(decl CDeclaration) error {
	switch d := decl.(type) {
	case *CVarDecl:
		return lw.lowerLocalVarDecl(d)
	case *CFunDecl, *CStructDecl:
		return nil
	default:
		panic(internalError("lowerLocalDecl", "unknown declaration kind"))
	}
}

func (lw *Lowerer) lowerLocalVarDecl(d *CVarDecl) error {
	if d.IsExtern || d.IsStatic {
		return nil // no runtime code: extern refs an existing symbol, static is emitted from the symbol table
	}
	lw.TempTypes[d.Name] = d.VarType
	if d.Init != nil {
		lw.lowerInitializer(addr{direct: true, varName: d.Name, t: d.VarType}, d.Init)
	}
	return nil
}

func (lw *Lowerer) lowerStmt(stmt CStatement) error {
	switch st := stmt.(type) {
	case *CReturn:
		if st.Exp == nil {
			lw.emit(&TacReturn{})
			return nil
		}
		v := lw.lowerExp(st.Exp)
		lw.emit(&TacReturn{Val: v})
		return nil
	case *CExpressionStmt:
		lw.lowerExp(st.Exp)
		return nil
	case *CIf:
		return lw.lowerIf(st)
	case *CCompound:
		return lw.lowerBlock(st.Block)
	case *CBreak:
		lw.emit(&TacJump{Target: lw.breakLabel(st.TargetLabel)})
		return nil
	case *CContinue:
		lw.emit(&TacJump{Target: lw.continueLabel(st.TargetLabel)})
		return nil
	case *CWhile:
		return lw.lowerWhile(st)
	case *CDoWhile:
		return lw.lowerDoWhile(st)
	case *CFor:
		return lw.lowerFor(st)
	case *CSwitch:
		return lw.lowerSwitch(st)
	case *CCase:
		lw.emit(&TacLabel{Name: st.Label})
		return lw.lowerStmt(st.Body)
	case *CDefault:
		lw.emit(&TacLabel{Name: st.Label})
		return lw.lowerStmt(st.Body)
	case *CLabel:
		lw.emit(&TacLabel{Name: lw.gotoLabel(st.Name)})
		return lw.lowerStmt(st.Body)
	case *CGoto:
		lw.emit(&TacJump{Target: lw.gotoLabel(st.Target)})
		return nil
	case *CNullStmt:
		return nil
	default:
		panic(internalError("lowerStmt", "unknown statement kind"))
	}
}

func (lw *Lowerer) lowerIf(st *CIf) error {
	cond := lw.lowerExp(st.Cond)
	if st.Else == nil {
		end := lw.label("if_end")
		lw.emit(&TacJumpIfZero{Cond: cond, Target: end})
		if err := lw.lowerStmt(st.Then); err != nil {
			return err
		}
		lw.emit(&TacLabel{Name: end})
		return nil
	}
	elseL := lw.label("if_else")
	end := lw.label("if_end")
	lw.emit(&TacJumpIfZero{Cond: cond, Target: elseL})
	if err := lw.lowerStmt(st.Then); err != nil {
		return err
	}
	lw.emit(&TacJump{Target: end})
	lw.emit(&TacLabel{Name: elseL})
	if err := lw.lowerStmt(st.Else); err != nil {
		return err
	}
	lw.emit(&TacLabel{Name: end})
	return nil
}

func (lw *Lowerer) lowerWhile(st *CWhile) error {
	contL := lw.continueLabel(st.Label)
	breakL := lw.breakLabel(st.Label)
	lw.emit(&TacLabel{Name: contL})
	cond := lw.lowerExp(st.Cond)
	lw.emit(&TacJumpIfZero{Cond: cond, Target: breakL})
	if err := lw.lowerStmt(st.Body); err != nil {
		return err
	}
	lw.emit(&TacJump{Target: contL})
	lw.emit(&TacLabel{Name: breakL})
	return nil
}

func (lw *Lowerer) lowerDoWhile(st *CDoWhile) error {
	start := lw.label("do_while_start")
	contL := lw.continueLabel(st.Label)
	breakL := lw.breakLabel(st.Label)
	lw.emit(&TacLabel{Name: start})
	if err := lw.lowerStmt(st.Body); err != nil {
		return err
	}
	lw.emit(&TacLabel{Name: contL})
	cond := lw.lowerExp(st.Cond)
	lw.emit(&TacJumpIfNotZero{Cond: cond, Target: start})
	lw.emit(&TacLabel{Name: breakL})
	return nil
}

func (lw *Lowerer) lowerFor(st *CFor) error {
	switch init := st.Init.(type) {
	case CInitDecl:
		lw.TempTypes[init.Decl.Name] = init.Decl.VarType
		if init.Decl.Init != nil {
			lw.lowerInitializer(addr{direct: true, varName: init.Decl.Name, t: init.Decl.VarType}, init.Decl.Init)
		}
	case CInitExp:
		if init.Exp != nil {
			lw.lowerExp(init.Exp)
		}
	}
	start := lw.label("for_start")
	contL := lw.continueLabel(st.Label)
	breakL := lw.breakLabel(st.Label)
	lw.emit(&TacLabel{Name: start})
	if st.Cond != nil {
		cond := lw.lowerExp(st.Cond)
		lw.emit(&TacJumpIfZero{Cond: cond, Target: breakL})
	}
	if err := lw.lowerStmt(st.Body); err != nil {
		return err
	}
	lw.emit(&TacLabel{Name: contL})
	if st.Post != nil {
		lw.lowerExp(st.Post)
	}
	lw.emit(&TacJump{Target: start})
	lw.emit(&TacLabel{Name: breakL})
	return nil
}

func (lw *Lowerer) lowerSwitch(st *CSwitch) error {
	v := lw.lowerExp(st.Cond)
	for _, c := range st.CaseLabels {
		match := lw.newTemp(TypeInt)
		lw.emit(&TacBinary{Op: BinEqual, Src1: v, Src2: constInt(c.Value, st.Cond.Type()), Dst: match})
		lw.emit(&TacJumpIfNotZero{Cond: match, Target: c.Label})
	}
	breakL := lw.breakLabel(st.Label)
	if st.HasDefault {
		lw.emit(&TacJump{Target: st.DefaultLabel})
	} else {
		lw.emit(&TacJump{Target: breakL})
	}
	if err := lw.lowerStmt(st.Body); err != nil {
		return err
	}
	lw.emit(&TacLabel{Name: breakL})
	return nil
}

// addr models an lvalue's location: either a named variable plus a
// constant byte offset ("direct"), or an address-bearing TacValue plus a
// constant byte offset. The direct form lowers to CopyToOffset/
// CopyFromOffset, the indirect one to address arithmetic.
type addr struct {
	direct  bool
	varName InternedID
	ptr     TacValue
	offset  int64
	t       *Type
}

func isAggregate(t *Type) bool { return t.Kind == TyArray || t.Kind == TyStructure }

func (lw *Lowerer) lowerLValueAddr(e CExp) addr {
	switch n := e.(type) {
	case *CVar:
		return addr{direct: true, varName: n.Name, t: n.Type()}
	case *CString:
		label := lw.strings.Intern(n.Value, true)
		id := lw.in.Intern(label)
		lw.TempTypes[id] = n.Type()
		return addr{direct: true, varName: id, t: n.Type()}
	case *CDereference:
		ptrVal := lw.lowerExp(n.Exp)
		return addr{direct: false, ptr: ptrVal, t: n.Type()}
	case *CSubscript:
		return lw.lowerSubscriptAddr(n)
	case *CDot:
		base := lw.lowerLValueAddr(n.Struct)
		m := lw.structs[base.t.Tag].Members[n.Member]
		return addr{direct: base.direct, varName: base.varName, ptr: base.ptr, offset: base.offset + m.Offset, t: m.Type}
	case *CArrow:
		ptrVal := lw.lowerExp(n.Ptr)
		m := lw.structs[n.Ptr.Type().Referent.Tag].Members[n.Member]
		return addr{direct: false, ptr: ptrVal, offset: m.Offset, t: m.Type}
	default:
		panic(internalError("lowerLValueAddr", "not an lvalue expression"))
	}
}

func (lw *Lowerer) lowerSubscriptAddr(n *CSubscript) addr {
	ptrVal := lw.lowerExp(n.Ptr)
	elemType := n.Ptr.Type().Referent
	stride := SizeOfType(elemType, lw.structs)
	if idxConst, ok := n.Idx.(*CConstInt); ok {
		return addr{direct: false, ptr: ptrVal, offset: idxConst.Value * stride, t: elemType}
	}
	idxVal := lw.lowerExp(n.Idx)
	tmp := lw.newTemp(NewPointer(elemType))
	lw.emit(&TacAddPtr{Ptr: ptrVal, Idx: idxVal, Scale: stride, Dst: tmp})
	return addr{direct: false, ptr: tmp, t: elemType}
}

// materializeAddress forces a (direct var, offset) or (ptr, offset) pair
// into a concrete address value, emitting GetAddress/AddPtr as needed.
func (lw *Lowerer) materializeAddress(a addr) TacValue {
	base := a.ptr
	if a.direct {
		tmp := lw.newTemp(NewPointer(a.t))
		lw.emit(&TacGetAddress{Src: TacVariable{Name: a.varName, Type: a.t}, Dst: tmp})
		base = tmp
	}
	if a.offset == 0 {
		return base
	}
	tmp := lw.newTemp(NewPointer(a.t))
	lw.emit(&TacAddPtr{Ptr: base, Idx: constInt(a.offset, TypeLong), Scale: 1, Dst: tmp})
	return tmp
}

func (lw *Lowerer) loadAddr(a addr) TacValue {
	if isAggregate(a.t) {
		if a.direct && a.offset == 0 {
			return TacVariable{Name: a.varName, Type: a.t}
		}
		tmp := lw.newTemp(a.t)
		lw.copyInto(addr{direct: true, varName: tmp.Name, t: a.t}, a)
		return tmp
	}
	if a.direct {
		if a.offset == 0 {
			return TacVariable{Name: a.varName, Type: a.t}
		}
		tmp := lw.newTemp(a.t)
		lw.emit(&TacCopyFromOffset{Src: a.varName, Offset: a.offset, Dst: tmp})
		return tmp
	}
	addrVal := a.ptr
	if a.offset != 0 {
		tmp := lw.newTemp(NewPointer(a.t))
		lw.emit(&TacAddPtr{Ptr: a.ptr, Idx: constInt(a.offset, TypeLong), Scale: 1, Dst: tmp})
		addrVal = tmp
	}
	tmp := lw.newTemp(a.t)
	lw.emit(&TacLoad{SrcPtr: addrVal, Dst: tmp})
	return tmp
}

func (lw *Lowerer) storeAddr(a addr, val TacValue) {
	if isAggregate(a.t) {
		v := val.(TacVariable)
		lw.copyInto(a, addr{direct: true, varName: v.Name, t: a.t})
		return
	}
	if a.direct {
		if a.offset == 0 {
			lw.emit(&TacCopy{Src: val, Dst: TacVariable{Name: a.varName, Type: a.t}})
			return
		}
		lw.emit(&TacCopyToOffset{Src: val, Dst: a.varName, Offset: a.offset})
		return
	}
	addrVal := a.ptr
	if a.offset != 0 {
		tmp := lw.newTemp(NewPointer(a.t))
		lw.emit(&TacAddPtr{Ptr: a.ptr, Idx: constInt(a.offset, TypeLong), Scale: 1, Dst: tmp})
		addrVal = tmp
	}
	lw.emit(&TacStore{Src: val, DstPtr: addrVal})
}

func (lw *Lowerer) copyInto(dst, src addr) {
	if dst.direct && dst.offset == 0 && src.direct && src.offset == 0 {
		lw.emit(&TacCopy{Src: TacVariable{Name: src.varName, Type: src.t}, Dst: TacVariable{Name: dst.varName, Type: dst.t}})
		return
	}
	dstAddr := lw.materializeAddress(dst)
	srcAddr := lw.materializeAddress(src)
	lw.emit(&TacMemCopy{SrcPtr: srcAddr, DstPtr: dstAddr, Size: SizeOfType(dst.t, lw.structs)})
}

func (lw *Lowerer) lowerExp(e CExp) TacValue {
	switch n := e.(type) {
	case *CConstInt:
		return constInt(n.Value, n.Type())
	case *CConstDouble:
		return constDouble(n.Value)
	case *CString:
		a := lw.lowerLValueAddr(n)
		return lw.materializeAddress(addr{direct: true, varName: a.varName, t: a.t})
	case *CVar:
		return lw.loadAddr(addr{direct: true, varName: n.Name, t: n.Type()})
	case *CCast:
		src := lw.lowerExp(n.Exp)
		return lw.convert(src, n.Exp.Type(), n.Target)
	case *CUnary:
		return lw.lowerUnary(n)
	case *CBinary:
		return lw.lowerBinary(n)
	case *CAssignment:
		a := lw.lowerLValueAddr(n.Left)
		val := lw.lowerExp(n.Right)
		lw.storeAddr(a, val)
		return val
	case *CCompoundAssignment:
		return lw.lowerCompoundAssignment(n)
	case *CConditional:
		return lw.lowerConditional(n)
	case *CFunctionCall:
		return lw.lowerCall(n)
	case *CDereference:
		a := lw.lowerLValueAddr(n.Exp)
		return lw.loadAddr(a)
	case *CAddrOf:
		a := lw.lowerLValueAddr(n.Exp)
		return lw.materializeAddress(a)
	case *CSubscript:
		a := lw.lowerSubscriptAddr(n)
		return lw.loadAddr(a)
	case *CSizeOfExp:
		return constInt(SizeOfType(n.Exp.Type(), lw.structs), TypeULong)
	case *CSizeOfType:
		return constInt(SizeOfType(n.TargetType, lw.structs), TypeULong)
	case *CDot:
		if !IsLValue(n.Struct) {
			// member of an rvalue aggregate (e.g. a call result): the base
			// already lives in a temporary, read the member out of it
			base := lw.lowerExp(n.Struct).(TacVariable)
			m := lw.structs[n.Struct.Type().Tag].Members[n.Member]
			return lw.loadAddr(addr{direct: true, varName: base.Name, offset: m.Offset, t: m.Type})
		}
		a := lw.lowerLValueAddr(n)
		return lw.loadAddr(a)
	case *CArrow:
		a := lw.lowerLValueAddr(n)
		return lw.loadAddr(a)
	case *CPostfix:
		a := lw.lowerLValueAddr(n.Exp)
		old := lw.newTemp(a.t)
		lw.emit(&TacCopy{Src: lw.loadAddr(a), Dst: old})
		lw.storeAddr(a, lw.applyIncrDecr(a.t, old, n.Op))
		return old
	case *CPrefix:
		a := lw.lowerLValueAddr(n.Exp)
		old := lw.loadAddr(a)
		nv := lw.applyIncrDecr(a.t, old, n.Op)
		lw.storeAddr(a, nv)
		return nv
	default:
		panic(internalError("lowerExp", "unknown expression kind"))
	}
}

func (lw *Lowerer) applyIncrDecr(t *Type, v TacValue, op IncrDecrOp) TacValue {
	tmp := lw.newTemp(t)
	if t.Kind == TyPointer {
		stride := SizeOfType(t.Referent, lw.structs)
		idx := constInt(1, TypeLong)
		if op == OpDecr {
			idx = constInt(-1, TypeLong)
		}
		lw.emit(&TacAddPtr{Ptr: v, Idx: idx, Scale: stride, Dst: tmp})
		return tmp
	}
	one := TacValue(constInt(1, t))
	if t.Kind == TyDouble {
		one = constDouble(1)
	}
	op2 := BinAdd
	if op == OpDecr {
		op2 = BinSub
	}
	lw.emit(&TacBinary{Op: op2, Src1: v, Src2: one, Dst: tmp})
	return tmp
}

func (lw *Lowerer) lowerUnary(n *CUnary) TacValue {
	src := lw.lowerExp(n.Exp)
	tmp := lw.newTemp(n.ExpType)
	lw.emit(&TacUnary{Op: n.Op, Src: src, Dst: tmp})
	return tmp
}

func (lw *Lowerer) lowerBinary(n *CBinary) TacValue {
	switch n.Op {
	case BinAndAnd:
		return lw.lowerAndAnd(n)
	case BinOrOr:
		return lw.lowerOrOr(n)
	}
	left := lw.lowerExp(n.Left)
	right := lw.lowerExp(n.Right)
	switch {
	case IsPointer(n.Left.Type()) && n.Op == BinAdd:
		stride := SizeOfType(n.Left.Type().Referent, lw.structs)
		tmp := lw.newTemp(n.ExpType)
		lw.emit(&TacAddPtr{Ptr: left, Idx: right, Scale: stride, Dst: tmp})
		return tmp
	case IsPointer(n.Right.Type()) && n.Op == BinAdd:
		stride := SizeOfType(n.Right.Type().Referent, lw.structs)
		tmp := lw.newTemp(n.ExpType)
		lw.emit(&TacAddPtr{Ptr: right, Idx: left, Scale: stride, Dst: tmp})
		return tmp
	case IsPointer(n.Left.Type()) && n.Op == BinSub && IsInteger(n.Right.Type()):
		stride := SizeOfType(n.Left.Type().Referent, lw.structs)
		negIdx := lw.newTemp(TypeLong)
		lw.emit(&TacUnary{Op: UnaryNegate, Src: right, Dst: negIdx})
		tmp := lw.newTemp(n.ExpType)
		lw.emit(&TacAddPtr{Ptr: left, Idx: negIdx, Scale: stride, Dst: tmp})
		return tmp
	case IsPointer(n.Left.Type()) && IsPointer(n.Right.Type()) && n.Op == BinSub:
		stride := SizeOfType(n.Left.Type().Referent, lw.structs)
		diff := lw.newTemp(TypeLong)
		lw.emit(&TacBinary{Op: BinSub, Src1: left, Src2: right, Dst: diff})
		if stride <= 1 {
			return diff
		}
		res := lw.newTemp(TypeLong)
		lw.emit(&TacBinary{Op: BinDiv, Src1: diff, Src2: constInt(stride, TypeLong), Dst: res})
		return res
	default:
		tmp := lw.newTemp(n.ExpType)
		lw.emit(&TacBinary{Op: n.Op, Src1: left, Src2: right, Dst: tmp})
		return tmp
	}
}

func (lw *Lowerer) lowerAndAnd(n *CBinary) TacValue {
	result := lw.newTemp(TypeInt)
	falseL := lw.label("and_false")
	endL := lw.label("and_true")
	left := lw.lowerExp(n.Left)
	lw.emit(&TacJumpIfZero{Cond: left, Target: falseL})
	right := lw.lowerExp(n.Right)
	lw.emit(&TacJumpIfZero{Cond: right, Target: falseL})
	lw.emit(&TacCopy{Src: constInt(1, TypeInt), Dst: result})
	lw.emit(&TacJump{Target: endL})
	lw.emit(&TacLabel{Name: falseL})
	lw.emit(&TacCopy{Src: constInt(0, TypeInt), Dst: result})
	lw.emit(&TacLabel{Name: endL})
	return result
}

func (lw *Lowerer) lowerOrOr(n *CBinary) TacValue {
	result := lw.newTemp(TypeInt)
	trueL := lw.label("or_true")
	endL := lw.label("or_false")
	left := lw.lowerExp(n.Left)
	lw.emit(&TacJumpIfNotZero{Cond: left, Target: trueL})
	right := lw.lowerExp(n.Right)
	lw.emit(&TacJumpIfNotZero{Cond: right, Target: trueL})
	lw.emit(&TacCopy{Src: constInt(0, TypeInt), Dst: result})
	lw.emit(&TacJump{Target: endL})
	lw.emit(&TacLabel{Name: trueL})
	lw.emit(&TacCopy{Src: constInt(1, TypeInt), Dst: result})
	lw.emit(&TacLabel{Name: endL})
	return result
}

func (lw *Lowerer) lowerCompoundAssignment(n *CCompoundAssignment) TacValue {
	a := lw.lowerLValueAddr(n.Left)
	cur := lw.loadAddr(a)
	rhs := lw.lowerExp(n.Right)
	var result TacValue
	if n.CommonType == nil {
		idx := rhs
		if n.Op == BinSub {
			negTmp := lw.newTemp(TypeLong)
			lw.emit(&TacUnary{Op: UnaryNegate, Src: rhs, Dst: negTmp})
			idx = negTmp
		}
		stride := SizeOfType(a.t.Referent, lw.structs)
		tmp := lw.newTemp(a.t)
		lw.emit(&TacAddPtr{Ptr: cur, Idx: idx, Scale: stride, Dst: tmp})
		result = tmp
	} else {
		lc := lw.convert(cur, a.t, n.CommonType)
		rc := lw.convert(rhs, n.Right.Type(), n.CommonType)
		tmp := lw.newTemp(n.CommonType)
		lw.emit(&TacBinary{Op: n.Op, Src1: lc, Src2: rc, Dst: tmp})
		result = lw.convert(tmp, n.CommonType, a.t)
	}
	lw.storeAddr(a, result)
	return result
}

func (lw *Lowerer) lowerConditional(n *CConditional) TacValue {
	elseL := lw.label("ternary_else")
	endL := lw.label("ternary_false")
	result := lw.newTemp(n.ExpType)
	cond := lw.lowerExp(n.Cond)
	lw.emit(&TacJumpIfZero{Cond: cond, Target: elseL})
	thenVal := lw.lowerExp(n.Then)
	lw.emit(&TacCopy{Src: thenVal, Dst: result})
	lw.emit(&TacJump{Target: endL})
	lw.emit(&TacLabel{Name: elseL})
	elseVal := lw.lowerExp(n.Else)
	lw.emit(&TacCopy{Src: elseVal, Dst: result})
	lw.emit(&TacLabel{Name: endL})
	return result
}

func (lw *Lowerer) lowerCall(n *CFunctionCall) TacValue {
	args := make([]TacValue, len(n.Args))
	for i, a := range n.Args {
		args[i] = lw.lowerExp(a)
	}
	if n.ExpType.Kind == TyVoid {
		lw.emit(&TacFunCall{Name: n.Name, Args: args})
		return nil
	}
	dst := lw.newTemp(n.ExpType)
	lw.emit(&TacFunCall{Name: n.Name, Args: args, Dst: dst})
	return dst
}

// convert realizes an implicit or explicit cast at the TAC level, picking
// the narrow opcode instruction selection dispatches on (sign/zero extend,
// truncate, the four float<->int conversions, or a same-width Copy for a
// bit-identical reinterpretation like int<->unsigned int).
func (lw *Lowerer) convert(src TacValue, from, to *Type) TacValue {
	if TypesEqual(from, to) {
		return src
	}
	if to.Kind == TyVoid {
		// a cast to void evaluates the operand for effect and drops the value
		return nil
	}
	if to.Kind == TyDouble {
		tmp := lw.newTemp(to)
		if isUnsignedRank(from) || from.Kind == TyPointer {
			lw.emit(&TacUIntToDouble{Src: src, Dst: tmp})
		} else {
			lw.emit(&TacIntToDouble{Src: src, Dst: tmp})
		}
		return tmp
	}
	if from.Kind == TyDouble {
		tmp := lw.newTemp(to)
		if isUnsignedRank(to) || to.Kind == TyPointer {
			lw.emit(&TacDoubleToUInt{Src: src, Dst: tmp})
		} else {
			lw.emit(&TacDoubleToInt{Src: src, Dst: tmp})
		}
		return tmp
	}
	fromSize, toSize := SizeOfType(from, lw.structs), SizeOfType(to, lw.structs)
	tmp := lw.newTemp(to)
	switch {
	case toSize == fromSize:
		lw.emit(&TacCopy{Src: src, Dst: tmp})
	case toSize > fromSize:
		if isUnsignedRank(from) {
			lw.emit(&TacZeroExtend{Src: src, Dst: tmp})
		} else {
			lw.emit(&TacSignExtend{Src: src, Dst: tmp})
		}
	default:
		lw.emit(&TacTruncate{Src: src, Dst: tmp})
	}
	return tmp
}

// lowerInitializer expands a (possibly nested) initializer tree into
// explicit stores/zero-fills at target; static storage instead folds
// through elaborateStaticInitializer.
func (lw *Lowerer) lowerInitializer(target addr, init CInitializer) {
	switch n := init.(type) {
	case *CSingleInit:
		if str, ok := n.Exp.(*CString); ok && target.t.Kind == TyArray && target.t.Elem.Kind == TyChar {
			lw.lowerStringIntoArray(target, str.Value)
			return
		}
		val := lw.lowerExp(n.Exp)
		lw.storeAddr(target, val)
	case *CCompoundInit:
		switch target.t.Kind {
		case TyArray:
			elemSize := SizeOfType(target.t.Elem, lw.structs)
			for i, e := range n.Elems {
				lw.lowerInitializer(lw.offsetAddr(target, int64(i)*elemSize, target.t.Elem), e)
			}
			for i := int64(len(n.Elems)); i < target.t.ArraySize; i++ {
				lw.zeroFill(lw.offsetAddr(target, i*elemSize, target.t.Elem))
			}
		case TyStructure:
			td := lw.structs[target.t.Tag]
			for i, e := range n.Elems {
				m := td.Members[td.MemberNames[i]]
				lw.lowerInitializer(lw.offsetAddr(target, m.Offset, m.Type), e)
				if target.t.IsUnion {
					break
				}
			}
			if !target.t.IsUnion {
				for i := len(n.Elems); i < len(td.MemberNames); i++ {
					m := td.Members[td.MemberNames[i]]
					lw.zeroFill(lw.offsetAddr(target, m.Offset, m.Type))
				}
			}
		default:
			panic(internalError("lowerInitializer", "brace initializer on scalar target"))
		}
	default:
		panic(internalError("lowerInitializer", "unknown initializer kind"))
	}
}

func (lw *Lowerer) offsetAddr(base addr, extra int64, t *Type) addr {
	return addr{direct: base.direct, varName: base.varName, ptr: base.ptr, offset: base.offset + extra, t: t}
}

func (lw *Lowerer) lowerStringIntoArray(target addr, bytes []byte) {
	for i, b := range bytes {
		lw.storeAddr(lw.offsetAddr(target, int64(i), TypeChar), constInt(int64(int8(b)), TypeChar))
	}
	remaining := target.t.ArraySize - int64(len(bytes))
	for i := int64(0); i < remaining; i++ {
		lw.storeAddr(lw.offsetAddr(target, int64(len(bytes))+i, TypeChar), constInt(0, TypeChar))
	}
}

func (lw *Lowerer) zeroFill(a addr) {
	switch {
	case a.t.Kind == TyDouble:
		lw.storeAddr(a, constDouble(0))
	case a.t.Kind == TyArray:
		elemSize := SizeOfType(a.t.Elem, lw.structs)
		for i := int64(0); i < a.t.ArraySize; i++ {
			lw.zeroFill(lw.offsetAddr(a, i*elemSize, a.t.Elem))
		}
	case a.t.Kind == TyStructure:
		td := lw.structs[a.t.Tag]
		for _, name := range td.MemberNames {
			m := td.Members[name]
			lw.zeroFill(lw.offsetAddr(a, m.Offset, m.Type))
			if a.t.IsUnion {
				break
			}
		}
	default:
		lw.storeAddr(a, constInt(0, a.t))
	}
}
