package main

import "math"

// sema_init.go: initializer elaboration. Static-storage initializers
// fold into a flat []StaticInit (merging adjacent zero runs);
// automatic-storage initializers stay as a type-checked CInitializer tree,
// expanded into TAC stores during lowering.

// foldIntConstant evaluates a compile-time-constant integer expression,
// narrowing through CCast/CUnary exactly as the runtime value would.
func foldIntConstant(e CExp) (int64, bool) {
	switch n := e.(type) {
	case *CConstInt:
		return n.Value, true
	case *CConstDouble:
		return int64(n.Value), true
	case *CCast:
		v, ok := foldIntConstant(n.Exp)
		if !ok {
			if d, ok2 := foldDoubleConstant(n.Exp); ok2 {
				v, ok = int64(d), true
			}
		}
		if !ok {
			return 0, false
		}
		return narrowInt(v, n.Target), true
	case *CUnary:
		v, ok := foldIntConstant(n.Exp)
		if !ok {
			return 0, false
		}
		switch n.Op {
		case UnaryNegate:
			return -v, true
		case UnaryComplement:
			return ^v, true
		default:
			return 0, false
		}
	default:
		return 0, false
	}
}

func foldDoubleConstant(e CExp) (float64, bool) {
	switch n := e.(type) {
	case *CConstDouble:
		return n.Value, true
	case *CConstInt:
		return float64(n.Value), true
	case *CCast:
		if n.Target.Kind == TyDouble {
			if v, ok := foldIntConstant(n.Exp); ok {
				return float64(v), true
			}
			return foldDoubleConstant(n.Exp)
		}
		return 0, false
	case *CUnary:
		if n.Op != UnaryNegate {
			return 0, false
		}
		v, ok := foldDoubleConstant(n.Exp)
		return -v, ok
	default:
		return 0, false
	}
}

// narrowInt truncates/extends a folded constant to fit t, matching the
// machine representation the backend will actually produce.
func narrowInt(v int64, t *Type) int64 {
	switch t.Kind {
	case TyChar, TySChar:
		return int64(int8(v))
	case TyUChar:
		return int64(uint8(v))
	case TyInt:
		return int64(int32(v))
	case TyUInt:
		return int64(uint32(v))
	default:
		return v
	}
}

func scalarStaticInit(v int64, t *Type) StaticInit {
	switch t.Kind {
	case TyChar, TySChar:
		return CharInit{Value: int8(v)}
	case TyUChar:
		return UCharInit{Value: uint8(v)}
	case TyInt:
		return IntInit{Value: int32(v)}
	case TyUInt:
		return UIntInit{Value: uint32(v)}
	case TyLong:
		return LongInit{Value: v}
	case TyULong, TyPointer:
		return ULongInit{Value: uint64(v)}
	default:
		panic(internalError("scalarStaticInit", "non-scalar target"))
	}
}

// mergeZero appends zero-fill to list, coalescing adjacent runs into a
// single ZeroInit.
func mergeZero(list []StaticInit, n int64) []StaticInit {
	if n <= 0 {
		return list
	}
	if len(list) > 0 {
		if z, ok := list[len(list)-1].(ZeroInit); ok {
			list[len(list)-1] = ZeroInit{Bytes: z.Bytes + n}
			return list
		}
	}
	return append(list, ZeroInit{Bytes: n})
}

func (s *Sema) elaborateStaticInitializer(init CInitializer, t *Type, line int) ([]StaticInit, error) {
	switch t.Kind {
	case TyArray:
		return s.elaborateStaticArray(init, t, line)
	case TyStructure:
		return s.elaborateStaticStruct(init, t, line)
	default:
		single, ok := init.(*CSingleInit)
		if !ok {
			return nil, newSemaError(SemaStructInitOverflow, line, "scalar initializer expected")
		}
		return s.elaborateStaticScalar(single.Exp, t, line)
	}
}

func (s *Sema) elaborateStaticScalar(exp CExp, t *Type, line int) ([]StaticInit, error) {
	typed, err := s.checkExp(exp)
	if err != nil {
		return nil, err
	}
	if IsPointer(t) {
		if str, ok := typed.(*CString); ok && t.Referent.Kind == TyChar {
			label := s.strings.Intern(str.Value, true)
			return []StaticInit{PointerInit{Label: label}}, nil
		}
		if isNullPointerConstant(typed) {
			return []StaticInit{ZeroInit{Bytes: 8}}, nil
		}
		return nil, newSemaError(SemaStaticPtrInitNotConstant, line, "static pointer initializer must be a null constant or string literal")
	}
	if t.Kind == TyDouble {
		v, ok := foldDoubleConstant(typed)
		if !ok {
			return nil, newSemaError(SemaInvalidCast, line, "static initializer is not a compile-time constant")
		}
		label := s.doubles.Label(math.Float64bits(v))
		return []StaticInit{DoubleInit{Label: label}}, nil
	}
	v, ok := foldIntConstant(typed)
	if !ok {
		return nil, newSemaError(SemaInvalidCast, line, "static initializer is not a compile-time constant")
	}
	return []StaticInit{scalarStaticInit(narrowInt(v, t), t)}, nil
}

func (s *Sema) elaborateStaticArray(init CInitializer, t *Type, line int) ([]StaticInit, error) {
	elemAsm := s.typeSize(t.Elem)

	if single, ok := init.(*CSingleInit); ok {
		str, isStr := single.Exp.(*CString)
		if isStr && t.Elem.Kind == TyChar {
			if int64(len(str.Value)) > t.ArraySize {
				return nil, newSemaError(SemaStructInitOverflow, line, "string initializer too long for array")
			}
			var list []StaticInit
			nullTerminated := int64(len(str.Value)) < t.ArraySize
			list = append(list, StringInit{Literal: noIntern, IsNullTerminated: nullTerminated, Bytes: str.Value})
			remaining := t.ArraySize - int64(len(str.Value))
			if nullTerminated {
				remaining--
			}
			list = mergeZero(list, remaining)
			return list, nil
		}
		return nil, newSemaError(SemaStructInitOverflow, line, "array initializer must be a brace list or string literal")
	}

	compound, ok := init.(*CCompoundInit)
	if !ok {
		return nil, newSemaError(SemaStructInitOverflow, line, "array initializer must be a brace list")
	}
	if int64(len(compound.Elems)) > t.ArraySize {
		return nil, newSemaError(SemaStructInitOverflow, line, "too many elements in array initializer")
	}
	var list []StaticInit
	for _, elemInit := range compound.Elems {
		elemList, err := s.elaborateStaticInitializer(elemInit, t.Elem, line)
		if err != nil {
			return nil, err
		}
		list = append(list, elemList...)
	}
	remaining := t.ArraySize - int64(len(compound.Elems))
	list = mergeZero(list, remaining*elemAsm)
	return list, nil
}

func (s *Sema) elaborateStaticStruct(init CInitializer, t *Type, line int) ([]StaticInit, error) {
	td := s.structs[t.Tag]
	compound, ok := init.(*CCompoundInit)
	if !ok {
		return nil, newSemaError(SemaStructInitOverflow, line, "struct initializer must be a brace list")
	}
	if len(compound.Elems) > len(td.MemberNames) {
		return nil, newSemaError(SemaStructInitOverflow, line, "too many initializers for struct")
	}
	var list []StaticInit
	var coveredEnd int64
	for i, elemInit := range compound.Elems {
		name := td.MemberNames[i]
		member := td.Members[name]
		if member.Offset > coveredEnd {
			list = mergeZero(list, member.Offset-coveredEnd)
		}
		elemList, err := s.elaborateStaticInitializer(elemInit, member.Type, line)
		if err != nil {
			return nil, err
		}
		list = append(list, elemList...)
		coveredEnd = member.Offset + s.typeSize(member.Type)
		if t.IsUnion {
			break
		}
	}
	if coveredEnd < td.Size {
		list = mergeZero(list, td.Size-coveredEnd)
	}
	return list, nil
}

// checkLocalInitializer type-checks (and implicitly casts) an automatic
// declaration's initializer tree without flattening it: the lowering pass
// expands each leaf into a TAC store, zero-filling uncovered bytes itself.
func (s *Sema) checkLocalInitializer(init CInitializer, t *Type) error {
	switch n := init.(type) {
	case *CSingleInit:
		typed, err := s.checkExp(n.Exp)
		if err != nil {
			return err
		}
		if t.Kind == TyArray && t.Elem.Kind == TyChar {
			if str, ok := typed.(*CString); ok {
				if int64(len(str.Value)) > t.ArraySize {
					return newSemaError(SemaStructInitOverflow, n.Line, "string initializer too long for array")
				}
				n.Exp, n.ExpType = str, t
				return nil
			}
		}
		typed = decay(typed)
		cast, err := s.convertByAssignment(typed, t, n.Line)
		if err != nil {
			return err
		}
		n.Exp, n.ExpType = cast, t
		return nil
	case *CCompoundInit:
		n.ExpType = t
		switch t.Kind {
		case TyArray:
			if int64(len(n.Elems)) > t.ArraySize {
				return newSemaError(SemaStructInitOverflow, n.Line, "too many elements in array initializer")
			}
			for _, e := range n.Elems {
				if err := s.checkLocalInitializer(e, t.Elem); err != nil {
					return err
				}
			}
			return nil
		case TyStructure:
			td := s.structs[t.Tag]
			if len(n.Elems) > len(td.MemberNames) {
				return newSemaError(SemaStructInitOverflow, n.Line, "too many initializers for struct")
			}
			for i, e := range n.Elems {
				if err := s.checkLocalInitializer(e, td.Members[td.MemberNames[i]].Type); err != nil {
					return err
				}
				if t.IsUnion {
					break
				}
			}
			return nil
		default:
			return newSemaError(SemaStructInitOverflow, n.Line, "brace initializer on scalar type")
		}
	default:
		panic(internalError("checkLocalInitializer", "unknown initializer kind"))
	}
}
