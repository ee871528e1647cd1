package main

// sema_decl.go: top-level/local declaration handling -- function and
// variable declarations (with redeclaration-conflict checks), and struct
// layout computation.

func (s *Sema) checkTopLevelDecl(decl CDeclaration) error {
	switch d := decl.(type) {
	case *CStructDecl:
		return s.checkStructDecl(d)
	case *CFunDecl:
		return s.checkFunDecl(d, true)
	case *CVarDecl:
		return s.checkFileScopeVarDecl(d)
	default:
		panic(internalError("checkTopLevelDecl", "unknown declaration kind"))
	}
}

func (s *Sema) checkStructDecl(d *CStructDecl) error {
	s.structTags[d.Tag] = true
	if d.Members == nil {
		if _, laidOut := s.structs[d.Tag]; !laidOut {
			s.incomplete[d.Tag] = true
		}
		return nil
	}
	td := &StructTypedef{Members: make(map[InternedID]StructMember)}
	var offset int64
	var maxAlign int64 = 1
	seen := make(map[InternedID]bool)
	for _, m := range d.Members {
		if seen[m.Name] {
			return newSemaError(SemaDuplicateMember, m.Line, "duplicate member %q", s.in.Text(m.Name))
		}
		seen[m.Name] = true
		if !s.typeIsComplete(m.Type) {
			return newSemaError(SemaIncompleteType, m.Line, "member %q has incomplete type", s.in.Text(m.Name))
		}
		msize := s.typeSize(m.Type)
		malign := s.typeAlign(m.Type)
		if malign > maxAlign {
			maxAlign = malign
		}
		var moff int64
		if d.IsUnion {
			moff = 0
		} else {
			offset = alignUp(offset, malign)
			moff = offset
			offset += msize
		}
		td.MemberNames = append(td.MemberNames, m.Name)
		td.Members[m.Name] = StructMember{Offset: moff, Type: m.Type}
		if d.IsUnion && msize > offset {
			offset = msize
		}
	}
	td.Alignment = int32(maxAlign)
	td.Size = alignUp(offset, maxAlign)
	s.structs[d.Tag] = td
	delete(s.incomplete, d.Tag)
	return nil
}

func alignUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// typeIsComplete reports whether t can be used as a member/variable type:
// any structure tag must already have a computed layout.
func (s *Sema) typeIsComplete(t *Type) bool {
	switch t.Kind {
	case TyVoid:
		return false
	case TyStructure:
		_, ok := s.structs[t.Tag]
		return ok
	case TyArray:
		return s.typeIsComplete(t.Elem)
	default:
		return true
	}
}

func (s *Sema) typeSize(t *Type) int64  { return SizeOfType(t, s.structs) }
func (s *Sema) typeAlign(t *Type) int64 { return AlignOfType(t, s.structs) }

// checkFunDecl handles both a prototype and a defining declaration:
// entered with its source name, and every redeclaration must agree in
// type and linkage.
func (s *Sema) checkFunDecl(d *CFunDecl, fileScope bool) error {
	global := !d.IsStatic
	if existing, ok := s.front[d.Name]; ok {
		if !TypesEqual(existing.Type, d.FunType) {
			return newSemaError(SemaRedeclConflict, d.Line, "conflicting types for %q", s.in.Text(d.Name))
		}
		fa, ok := existing.Attrs.(FunAttr)
		if !ok {
			return newSemaError(SemaRedeclConflict, d.Line, "%q redeclared as different kind of symbol", s.in.Text(d.Name))
		}
		if fa.Defined && d.Body != nil {
			return newSemaError(SemaRedeclConflict, d.Line, "redefinition of %q", s.in.Text(d.Name))
		}
		global = fa.Global && global
		d.FunType = existing.Type
	}
	s.front[d.Name] = &Symbol{Type: d.FunType, Attrs: FunAttr{Defined: d.Body != nil || funDefined(s.front[d.Name]), Global: global}}
	// functions keep their source name in every scope; calls resolve
	// through the same scope stack as variables
	s.declareInScope(d.Name, d.Name)

	s.pushScope()
	defer s.popScope()
	for i, pname := range d.Params {
		if !s.typeIsComplete(d.FunType.Params[i]) && d.FunType.Params[i].Kind != TyArray {
			return newSemaError(SemaIncompleteType, d.Line, "parameter %q has incomplete type", s.in.Text(pname))
		}
		resolved := s.in.Intern(s.names.Next(s.in.Text(pname)))
		s.declareInScope(pname, resolved)
		d.Params[i] = resolved
		s.front[resolved] = &Symbol{Type: paramDecay(d.FunType.Params[i]), Attrs: LocalAttr{}}
	}

	if d.Body != nil {
		prevRet := s.curFunRetType
		s.curFunRetType = d.FunType.Ret
		s.declaredLabels = make(map[InternedID]bool)
		s.gotoRefs = nil
		if err := s.checkBlock(d.Body); err != nil {
			return err
		}
		for _, g := range s.gotoRefs {
			if !s.declaredLabels[g.target] {
				return newSemaError(SemaUndefGotoTarget, g.line, "undefined goto target %q", s.in.Text(g.target))
			}
		}
		s.curFunRetType = prevRet
	}
	return nil
}

func funDefined(sym *Symbol) bool {
	if sym == nil {
		return false
	}
	fa, ok := sym.Attrs.(FunAttr)
	return ok && fa.Defined
}

// paramDecay applies "array-typed r-values decay to a pointer" for
// parameters of array type, matching how C treats `int a[]` parameters.
func paramDecay(t *Type) *Type {
	if t.Kind == TyArray {
		return NewPointer(t.Elem)
	}
	return t
}

func (s *Sema) checkFileScopeVarDecl(d *CVarDecl) error {
	if !s.typeIsComplete(d.VarType) {
		return newSemaError(SemaIncompleteType, d.Line, "variable %q has incomplete type", s.in.Text(d.Name))
	}
	iv := IVTentative
	var inits []StaticInit
	hasInit := d.Init != nil
	if d.IsExtern && !hasInit {
		iv = IVNoInitializer
	}
	global := !d.IsStatic

	if existing, ok := s.front[d.Name]; ok {
		if !TypesEqual(existing.Type, d.VarType) {
			return newSemaError(SemaRedeclConflict, d.Line, "conflicting types for %q", s.in.Text(d.Name))
		}
		if sa, ok := existing.Attrs.(StaticAttr); ok {
			global = sa.Global && global
			if sa.Init.Kind == IVInitial {
				iv = IVInitial
				inits = sa.Init.Inits
			} else if sa.Init.Kind == IVTentative && !hasInit {
				iv = IVTentative
			}
		}
	}

	if hasInit {
		elaborated, err := s.elaborateStaticInitializer(d.Init, d.VarType, d.Line)
		if err != nil {
			return err
		}
		iv = IVInitial
		inits = elaborated
	}

	s.front[d.Name] = &Symbol{Type: d.VarType, Attrs: StaticAttr{Global: global, Init: InitialValue{Kind: iv, Inits: inits}}}
	s.declareInScope(d.Name, d.Name)
	return nil
}
