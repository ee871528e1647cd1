package main

// backend_symtab.go: front->back symbol table conversion. Runs once, after
// lowering and before instruction selection, and is read-only from then on.

type BackendSymbol interface{ backendSymNode() }

type BackendObj struct {
	IsStatic bool
	IsConst  bool
	Asm      AssemblyType
}

type BackendFun struct {
	IsDefined       bool
	CalleeSavedRegs []RegId // populated by the fix-up pass as registers are touched
}

func (BackendObj) backendSymNode() {}
func (BackendFun) backendSymNode() {}

type BackendSymbolTable map[InternedID]BackendSymbol

// BuildBackendSymbolTable converts every front symbol plus every synthetic
// name the lowering pass minted (temporaries, string/double pool labels)
// into its backend counterpart.
func BuildBackendSymbolTable(front FrontSymbolTable, temps map[InternedID]*Type, in *Interner, structs StructTypedefTable, strings *StringPool, doubles *DoubleConstPool) BackendSymbolTable {
	bt := make(BackendSymbolTable, len(front)+len(temps))

	constLabels := make(map[string]bool)
	for _, e := range strings.Entries() {
		constLabels[e.Label] = true
	}
	for _, bits := range doubles.Entries() {
		constLabels[doubles.byBits[bits]] = true
	}

	for id, sym := range front {
		switch a := sym.Attrs.(type) {
		case FunAttr:
			bt[id] = BackendFun{IsDefined: a.Defined}
		case StaticAttr:
			bt[id] = BackendObj{IsStatic: true, Asm: ToAssemblyType(sym.Type, structs)}
		case ConstantAttr:
			bt[id] = BackendObj{IsStatic: true, IsConst: true, Asm: ToAssemblyType(sym.Type, structs)}
		case LocalAttr:
			bt[id] = BackendObj{Asm: ToAssemblyType(sym.Type, structs)}
		}
	}
	for id, t := range temps {
		if _, exists := bt[id]; exists {
			continue
		}
		isConst := constLabels[in.Text(id)]
		bt[id] = BackendObj{IsStatic: isConst, IsConst: isConst, Asm: ToAssemblyType(t, structs)}
	}
	return bt
}

// PopulateFunRegMasks fills every FunType's parameter/return register masks
// by replaying the
// System-V assignment over the declared parameter and return types.
func PopulateFunRegMasks(front FrontSymbolTable, structs StructTypedefTable) {
	abi := NewAbiCache(structs)
	for _, sym := range front {
		t := sym.Type
		if t == nil || t.Kind != TyFunType || t.ParamRegMask != unsetRegMask {
			continue
		}
		t.ParamRegMask, t.RetRegMask = funRegMasks(t, abi, structs)
	}
}

func funRegMasks(t *Type, abi *AbiCache, structs StructTypedefTable) (uint32, uint32) {
	var paramMask, retMask uint32
	intLeft, sseLeft := len(IntArgRegs), len(SSEArgRegs)
	takeInt := func() {
		paramMask |= 1 << uint(IntArgRegs[len(IntArgRegs)-intLeft])
		intLeft--
	}
	takeSSE := func() {
		paramMask |= 1 << uint(SSEArgRegs[len(SSEArgRegs)-sseLeft])
		sseLeft--
	}

	switch {
	case t.Ret.Kind == TyVoid:
	case t.Ret.Kind == TyDouble:
		retMask |= 1 << uint(RegXMM0)
	case t.Ret.Kind == TyStructure:
		classes := abi.Classify(t.Ret.Tag)
		if hasMemoryClass(classes) {
			takeInt() // hidden destination pointer in %rdi
			retMask |= 1 << uint(RegAX)
		} else {
			intIdx, sseIdx := 0, 0
			for _, cl := range classes {
				if cl == ClassInteger {
					retMask |= 1 << uint(IntRetRegs[intIdx])
					intIdx++
				} else {
					retMask |= 1 << uint(SSERetRegs[sseIdx])
					sseIdx++
				}
			}
		}
	default:
		retMask |= 1 << uint(RegAX)
	}

	for _, pt := range t.Params {
		switch {
		case pt.Kind == TyStructure:
			classes := abi.Classify(pt.Tag)
			if hasMemoryClass(classes) || !structFitsInRegs(classes, intLeft, sseLeft) {
				continue
			}
			for _, cl := range classes {
				if cl == ClassInteger {
					takeInt()
				} else {
					takeSSE()
				}
			}
		case pt.Kind == TyDouble:
			if sseLeft > 0 {
				takeSSE()
			}
		default:
			if intLeft > 0 {
				takeInt()
			}
		}
	}
	return paramMask, retMask
}
