package main

// AssemblyType is the back-end type variant. Scalars map
// deterministically from the front Type; arrays/structures carry their
// computed (size, alignment) as ByteArray.
type AsmTypeKind int

const (
	ATByte AsmTypeKind = iota
	ATLongWord
	ATQuadWord
	ATDouble
	ATByteArray
)

type AssemblyType struct {
	Kind      AsmTypeKind
	Size      int64 // ByteArray only; scalars have a fixed size below
	Alignment int64 // ByteArray only
}

func (a AssemblyType) SizeOf() int64 {
	switch a.Kind {
	case ATByte:
		return 1
	case ATLongWord:
		return 4
	case ATQuadWord, ATDouble:
		return 8
	case ATByteArray:
		return a.Size
	default:
		panic(internalError("AssemblyType.SizeOf", "unknown kind"))
	}
}

func (a AssemblyType) AlignOf() int64 {
	switch a.Kind {
	case ATByte:
		return 1
	case ATLongWord:
		return 4
	case ATQuadWord, ATDouble:
		return 8
	case ATByteArray:
		return a.Alignment
	default:
		panic(internalError("AssemblyType.AlignOf", "unknown kind"))
	}
}

var (
	AsmByte   = AssemblyType{Kind: ATByte}
	AsmLong   = AssemblyType{Kind: ATLongWord}
	AsmQuad   = AssemblyType{Kind: ATQuadWord}
	AsmDouble = AssemblyType{Kind: ATDouble}
)

// NewByteArray forces 16-byte alignment whenever the total size reaches 16
// bytes or more. That rule applies to arrays only; struct/union objects keep
// the alignment their layout computed, however large they are.
func NewByteArray(size, alignment int64) AssemblyType {
	if size >= 16 && alignment < 16 {
		alignment = 16
	}
	return AssemblyType{Kind: ATByteArray, Size: size, Alignment: alignment}
}

// ToAssemblyType maps a scalar/array/struct front Type to its AssemblyType.
// Struct/union sizing requires the typedef table because
// layout isn't recoverable from the Type alone.
func ToAssemblyType(t *Type, structs StructTypedefTable) AssemblyType {
	switch t.Kind {
	case TyChar, TySChar, TyUChar:
		return AsmByte
	case TyInt, TyUInt:
		return AsmLong
	case TyLong, TyULong, TyPointer:
		return AsmQuad
	case TyDouble:
		return AsmDouble
	case TyArray:
		elemAsm := ToAssemblyType(t.Elem, structs)
		return NewByteArray(elemAsm.SizeOf()*t.ArraySize, elemAsm.AlignOf())
	case TyStructure:
		td := structs[t.Tag]
		return AssemblyType{Kind: ATByteArray, Size: td.Size, Alignment: int64(td.Alignment)}
	default:
		panic(internalError("ToAssemblyType", "type has no assembly representation"))
	}
}
