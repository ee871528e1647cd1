package main

// sema_stmt.go: statement checking, block/scope handling, loop and switch
// labeling, goto/label bookkeeping.

func (s *Sema) checkBlock(b *CBlock) error {
	s.pushScope()
	defer s.popScope()
	for _, item := range b.Items {
		if err := s.checkBlockItem(item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sema) checkBlockItem(item CBlockItem) error {
	switch it := item.(type) {
	case CBlockS:
		return s.checkStmt(it.Stmt)
	case CBlockD:
		return s.checkLocalDecl(it.Decl)
	default:
		panic(internalError("checkBlockItem", "unknown block item"))
	}
}

func (s *Sema) checkLocalDecl(decl CDeclaration) error {
	switch d := decl.(type) {
	case *CStructDecl:
		return s.checkStructDecl(d)
	case *CFunDecl:
		if d.Body != nil {
			return newSemaError(SemaRedeclConflict, d.Line, "nested function definition")
		}
		return s.checkFunDecl(d, false)
	case *CVarDecl:
		return s.checkLocalVarDecl(d)
	default:
		panic(internalError("checkLocalDecl", "unknown declaration kind"))
	}
}

// checkLocalVarDecl implements alpha-renaming: a block-scope variable is
// renamed unless it is
// `extern`, in which case it resolves to (and shares attrs with) the
// nearest enclosing declaration of the same source name.
func (s *Sema) checkLocalVarDecl(d *CVarDecl) error {
	if d.IsExtern {
		if d.Init != nil {
			return newSemaError(SemaRedeclConflict, d.Line, "extern declaration of %q has an initializer", s.in.Text(d.Name))
		}
		// an extern declaration always resolves to the file-scope symbol of
		// the same source name, however deep the block that repeats it
		resolved := d.Name
		if existing, ok := s.front[resolved]; ok {
			if !TypesEqual(existing.Type, d.VarType) {
				return newSemaError(SemaRedeclConflict, d.Line, "conflicting types for %q", s.in.Text(d.Name))
			}
		} else {
			s.front[resolved] = &Symbol{Type: d.VarType, Attrs: StaticAttr{Global: true, Init: InitialValue{Kind: IVNoInitializer}}}
		}
		s.declareInScope(d.Name, resolved)
		if _, seen := s.externScope[d.Name]; !seen {
			s.externScope[d.Name] = len(s.scopes)
		}
		d.Name = resolved
		return nil
	}

	if !s.typeIsComplete(d.VarType) {
		return newSemaError(SemaIncompleteType, d.Line, "variable %q has incomplete type", s.in.Text(d.Name))
	}

	if d.IsStatic {
		resolved := s.in.Intern(s.names.Next(s.in.Text(d.Name)))
		iv := IVNoInitializer
		var inits []StaticInit
		if d.Init != nil {
			elaborated, err := s.elaborateStaticInitializer(d.Init, d.VarType, d.Line)
			if err != nil {
				return err
			}
			iv = IVInitial
			inits = elaborated
		} else {
			iv = IVTentative
		}
		s.front[resolved] = &Symbol{Type: d.VarType, Attrs: StaticAttr{Global: false, Init: InitialValue{Kind: iv, Inits: inits}}}
		s.declareInScope(d.Name, resolved)
		d.Name = resolved
		return nil
	}

	if _, redeclared := s.currentScope()[d.Name]; redeclared {
		return newSemaError(SemaRedeclConflict, d.Line, "redeclaration of %q in the same scope", s.in.Text(d.Name))
	}
	resolved := s.in.Intern(s.names.Next(s.in.Text(d.Name)))
	s.declareInScope(d.Name, resolved)
	s.front[resolved] = &Symbol{Type: d.VarType, Attrs: LocalAttr{}}
	if d.Init != nil {
		if err := s.checkLocalInitializer(d.Init, d.VarType); err != nil {
			return err
		}
	}
	d.Name = resolved
	return nil
}

func (s *Sema) checkStmt(stmt CStatement) error {
	switch st := stmt.(type) {
	case *CReturn:
		return s.checkReturn(st)
	case *CExpressionStmt:
		_, err := s.checkExp(st.Exp)
		return err
	case *CIf:
		return s.checkIf(st)
	case *CCompound:
		return s.checkBlock(st.Block)
	case *CBreak:
		return s.checkBreak(st)
	case *CContinue:
		return s.checkContinue(st)
	case *CWhile:
		return s.checkWhile(st)
	case *CDoWhile:
		return s.checkDoWhile(st)
	case *CFor:
		return s.checkFor(st)
	case *CSwitch:
		return s.checkSwitch(st)
	case *CCase:
		return s.checkCase(st)
	case *CDefault:
		return s.checkDefault(st)
	case *CLabel:
		return s.checkLabel(st)
	case *CGoto:
		s.gotoRefs = append(s.gotoRefs, gotoRef{target: st.Target, line: st.Line})
		return nil
	case *CNullStmt:
		return nil
	default:
		panic(internalError("checkStmt", "unknown statement kind"))
	}
}

func (s *Sema) checkReturn(st *CReturn) error {
	if st.Exp == nil {
		if s.curFunRetType.Kind != TyVoid {
			return newSemaError(SemaReturnValueInVoid, st.Line, "missing return value in non-void function")
		}
		return nil
	}
	if s.curFunRetType.Kind == TyVoid {
		return newSemaError(SemaReturnValueInVoid, st.Line, "return with a value in a void function")
	}
	typed, err := s.checkExp(st.Exp)
	if err != nil {
		return err
	}
	cast, err := s.convertByAssignment(typed, s.curFunRetType, st.Line)
	if err != nil {
		return err
	}
	st.Exp = cast
	return nil
}

func (s *Sema) checkIf(st *CIf) error {
	cond, err := s.checkExp(st.Cond)
	if err != nil {
		return err
	}
	st.Cond = cond
	if err := s.checkStmt(st.Then); err != nil {
		return err
	}
	if st.Else != nil {
		return s.checkStmt(st.Else)
	}
	return nil
}

func (s *Sema) checkBreak(st *CBreak) error {
	if len(s.breakLabels) == 0 {
		return newSemaError(SemaOutOfLoop, st.Line, "break statement not within a loop or switch")
	}
	st.TargetLabel = s.breakLabels[len(s.breakLabels)-1]
	return nil
}

func (s *Sema) checkContinue(st *CContinue) error {
	if len(s.continueLabels) == 0 {
		return newSemaError(SemaOutOfLoop, st.Line, "continue statement not within a loop")
	}
	st.TargetLabel = s.continueLabels[len(s.continueLabels)-1]
	return nil
}

func (s *Sema) pushLoop(label InternedID) {
	s.breakLabels = append(s.breakLabels, label)
	s.continueLabels = append(s.continueLabels, label)
}

func (s *Sema) popLoop() {
	s.breakLabels = s.breakLabels[:len(s.breakLabels)-1]
	s.continueLabels = s.continueLabels[:len(s.continueLabels)-1]
}

func (s *Sema) checkWhile(st *CWhile) error {
	cond, err := s.checkExp(st.Cond)
	if err != nil {
		return err
	}
	st.Cond = cond
	st.Label = s.in.Intern(s.names.Next("while"))
	s.pushLoop(st.Label)
	defer s.popLoop()
	return s.checkStmt(st.Body)
}

func (s *Sema) checkDoWhile(st *CDoWhile) error {
	st.Label = s.in.Intern(s.names.Next("do_while"))
	s.pushLoop(st.Label)
	defer s.popLoop()
	if err := s.checkStmt(st.Body); err != nil {
		return err
	}
	cond, err := s.checkExp(st.Cond)
	if err != nil {
		return err
	}
	st.Cond = cond
	return nil
}

func (s *Sema) checkFor(st *CFor) error {
	s.pushScope()
	defer s.popScope()
	switch init := st.Init.(type) {
	case CInitDecl:
		if init.Decl.IsStatic || init.Decl.IsExtern {
			return newSemaError(SemaRedeclConflict, init.Decl.Line, "for-loop init declaration cannot be static or extern")
		}
		if err := s.checkLocalVarDecl(init.Decl); err != nil {
			return err
		}
	case CInitExp:
		if init.Exp != nil {
			typed, err := s.checkExp(init.Exp)
			if err != nil {
				return err
			}
			st.Init = CInitExp{Exp: typed}
		}
	}
	if st.Cond != nil {
		cond, err := s.checkExp(st.Cond)
		if err != nil {
			return err
		}
		st.Cond = cond
	}
	if st.Post != nil {
		post, err := s.checkExp(st.Post)
		if err != nil {
			return err
		}
		st.Post = post
	}
	st.Label = s.in.Intern(s.names.Next("for"))
	s.pushLoop(st.Label)
	defer s.popLoop()
	return s.checkStmt(st.Body)
}

// switchIntType picks the bucket type duplicate-case detection compares
// under: char/int -> int, long -> long, uint -> uint, ulong -> ulong.
func switchIntType(t *Type) *Type {
	switch t.Kind {
	case TyChar, TySChar, TyUChar, TyInt:
		return TypeInt
	case TyLong:
		return TypeLong
	case TyUInt:
		return TypeUInt
	case TyULong:
		return TypeULong
	default:
		return TypeInt
	}
}

func (s *Sema) checkSwitch(st *CSwitch) error {
	cond, err := s.checkExp(st.Cond)
	if err != nil {
		return err
	}
	if !IsInteger(cond.Type()) {
		return newSemaError(SemaInvalidOperand, st.Line, "switch controlling expression must have integer type")
	}
	// the controlling expression is compared in its promoted bucket type, so
	// case dispatch never happens at char width
	st.Cond = s.castTo(cond, switchIntType(cond.Type()))
	st.Label = s.in.Intern(s.names.Next("switch"))
	s.breakLabels = append(s.breakLabels, st.Label)
	defer func() { s.breakLabels = s.breakLabels[:len(s.breakLabels)-1] }()
	s.switchStack = append(s.switchStack, st)
	defer func() { s.switchStack = s.switchStack[:len(s.switchStack)-1] }()
	return s.checkStmt(st.Body)
}

func (s *Sema) checkCase(st *CCase) error {
	if len(s.switchStack) == 0 {
		return newSemaError(SemaOutOfSwitch, st.Line, "case label not within a switch statement")
	}
	sw := s.switchStack[len(s.switchStack)-1]
	st.SwitchRef = sw

	lit, err := s.checkExp(st.Value)
	if err != nil {
		return err
	}
	v, ok := foldIntConstant(lit)
	if !ok || !IsInteger(lit.Type()) {
		return newSemaError(SemaInvalidOperand, st.Line, "case label is not an integer constant expression")
	}
	// the case constant is truncated to the switch's bucket type before the
	// duplicate comparison, and the truncated value is what dispatch
	// compares (so e.g. case -1 and case 4294967295 collide under an
	// unsigned switch)
	target := switchIntType(sw.Cond.Type())
	v = narrowInt(v, target)
	st.Value = &CConstInt{expBase: expBase{ExpType: target, Line: st.Line}, Value: v, ValueType: target}

	for _, seen := range sw.CaseLabels {
		if seen.Value == v {
			return newSemaError(SemaDuplicateCase, st.Line, "duplicate case value %d", v)
		}
	}
	st.Label = s.in.Intern(s.names.Next("case"))
	sw.CaseLabels = append(sw.CaseLabels, SwitchCase{Value: v, Label: st.Label})
	return s.checkStmt(st.Body)
}

func (s *Sema) checkDefault(st *CDefault) error {
	if len(s.switchStack) == 0 {
		return newSemaError(SemaOutOfSwitch, st.Line, "default label not within a switch statement")
	}
	sw := s.switchStack[len(s.switchStack)-1]
	if sw.HasDefault {
		return newSemaError(SemaDuplicateCase, st.Line, "multiple default labels in one switch")
	}
	sw.HasDefault = true
	st.SwitchRef = sw
	st.Label = s.in.Intern(s.names.Next("default"))
	sw.DefaultLabel = st.Label
	return s.checkStmt(st.Body)
}

func (s *Sema) checkLabel(st *CLabel) error {
	if s.declaredLabels[st.Name] {
		return newSemaError(SemaDuplicateLabel, st.Line, "label %q redefined", s.in.Text(st.Name))
	}
	s.declaredLabels[st.Name] = true
	return s.checkStmt(st.Body)
}
