package main

// layout.go: free-standing size/alignment helpers shared by the semantic
// analyzer, TAC lowering, and ABI classification, so later passes don't
// need a live *Sema to answer "how big is this type".

func alignUpTo(n, align int64) int64 { return alignUp(n, align) }

func SizeOfType(t *Type, structs StructTypedefTable) int64 {
	switch t.Kind {
	case TyChar, TySChar, TyUChar:
		return 1
	case TyInt, TyUInt:
		return 4
	case TyLong, TyULong, TyPointer:
		return 8
	case TyDouble:
		return 8
	case TyArray:
		return SizeOfType(t.Elem, structs) * t.ArraySize
	case TyStructure:
		return structs[t.Tag].Size
	default:
		panic(internalError("SizeOfType", "type has no size"))
	}
}

func AlignOfType(t *Type, structs StructTypedefTable) int64 {
	switch t.Kind {
	case TyArray:
		return AlignOfType(t.Elem, structs)
	case TyStructure:
		return int64(structs[t.Tag].Alignment)
	default:
		return SizeOfType(t, structs)
	}
}
