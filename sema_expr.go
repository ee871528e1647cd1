package main

// sema_expr.go: expression type checking and implicit-cast insertion.
// checkExp returns the (possibly rewrapped) expression with ExpType
// populated on every node it touches.

func wrapCast(target *Type, e CExp) CExp {
	return &CCast{expBase: expBase{ExpType: target, Line: e.SrcLine()}, Target: target, Exp: e}
}

// decay implements "array-typed r-values decay to &arr[0]" by wrapping in
// an explicit address-of node rather than inventing a new AST variant.
func decay(e CExp) CExp {
	if e.Type() != nil && e.Type().Kind == TyArray {
		return &CAddrOf{expBase: expBase{ExpType: NewPointer(e.Type().Elem), Line: e.SrcLine()}, Exp: e}
	}
	return e
}

func isNullPointerConstant(e CExp) bool {
	ci, ok := e.(*CConstInt)
	return ok && ci.Value == 0 && IsInteger(ci.Type())
}

func (s *Sema) checkExp(e CExp) (CExp, error) {
	switch n := e.(type) {
	case *CConstInt:
		if n.ExpType == nil {
			n.ExpType = n.ValueType
		}
		return n, nil
	case *CConstDouble:
		n.ExpType = TypeDouble
		return n, nil
	case *CString:
		n.ExpType = NewArray(TypeChar, int64(len(n.Value)+1))
		return n, nil
	case *CVar:
		return s.checkVar(n)
	case *CCast:
		return s.checkCast(n)
	case *CUnary:
		return s.checkUnary(n)
	case *CBinary:
		return s.checkBinary(n)
	case *CAssignment:
		return s.checkAssignment(n)
	case *CCompoundAssignment:
		return s.checkCompoundAssignment(n)
	case *CConditional:
		return s.checkConditional(n)
	case *CFunctionCall:
		return s.checkCall(n)
	case *CDereference:
		return s.checkDereference(n)
	case *CAddrOf:
		return s.checkAddrOf(n)
	case *CSubscript:
		return s.checkSubscript(n)
	case *CSizeOfExp:
		return s.checkSizeOfExp(n)
	case *CSizeOfType:
		if !s.typeIsComplete(n.TargetType) {
			return nil, newSemaError(SemaIncompleteType, n.Line, "sizeof applied to incomplete type")
		}
		n.ExpType = TypeULong
		return n, nil
	case *CDot:
		return s.checkDot(n)
	case *CArrow:
		return s.checkArrow(n)
	case *CPostfix:
		return s.checkPostfixIncrDecr(n)
	case *CPrefix:
		return s.checkPrefixIncrDecr(n)
	default:
		panic(internalError("checkExp", "unknown expression kind"))
	}
}

func (s *Sema) checkVar(n *CVar) (CExp, error) {
	resolved, ok := s.resolveVar(n.Name)
	if !ok {
		return nil, newSemaError(SemaUndeclared, n.Line, "use of undeclared identifier %q", s.in.Text(n.Name))
	}
	n.Name = resolved
	sym, ok := s.front[resolved]
	if !ok {
		return nil, newSemaError(SemaUndeclared, n.Line, "use of undeclared identifier %q", s.in.Text(n.Name))
	}
	n.ExpType = sym.Type
	return n, nil
}

// checkCast handles an explicit (T)e cast: any scalar-to-scalar cast is
// permitted; non-scalar targets other than void are rejected.
func (s *Sema) checkCast(n *CCast) (CExp, error) {
	inner, err := s.checkExp(n.Exp)
	if err != nil {
		return nil, err
	}
	inner = decay(inner)
	n.Exp = inner
	if n.Target.Kind != TyVoid {
		if !IsScalar(n.Target) {
			return nil, newSemaError(SemaInvalidCast, n.Line, "cast to non-scalar type")
		}
		if !IsScalar(inner.Type()) {
			return nil, newSemaError(SemaInvalidCast, n.Line, "cast of non-scalar expression")
		}
	}
	n.ExpType = n.Target
	return n, nil
}

func (s *Sema) checkUnary(n *CUnary) (CExp, error) {
	inner, err := s.checkExp(n.Exp)
	if err != nil {
		return nil, err
	}
	inner = decay(inner)
	switch n.Op {
	case UnaryNegate, UnaryComplement:
		if !IsArithmetic(inner.Type()) {
			return nil, newSemaError(SemaInvalidOperand, n.Line, "operand of unary %v must be arithmetic", n.Op)
		}
		if n.Op == UnaryComplement && inner.Type().Kind == TyDouble {
			return nil, newSemaError(SemaInvalidOperand, n.Line, "bitwise complement of double")
		}
		promoted := PromoteChar(inner.Type())
		if !TypesEqual(promoted, inner.Type()) {
			inner = wrapCast(promoted, inner)
		}
		n.Exp = inner
		n.ExpType = promoted
	case UnaryNot:
		if !IsScalar(inner.Type()) {
			return nil, newSemaError(SemaInvalidOperand, n.Line, "operand of ! must be scalar")
		}
		n.Exp = inner
		n.ExpType = TypeInt
	}
	return n, nil
}

func (s *Sema) checkBinary(n *CBinary) (CExp, error) {
	left, err := s.checkExp(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := s.checkExp(n.Right)
	if err != nil {
		return nil, err
	}
	left, right = decay(left), decay(right)

	switch n.Op {
	case BinAndAnd, BinOrOr:
		if !IsScalar(left.Type()) || !IsScalar(right.Type()) {
			return nil, newSemaError(SemaInvalidOperand, n.Line, "operands of logical operator must be scalar")
		}
		n.Left, n.Right = left, right
		n.ExpType = TypeInt
		return n, nil
	case BinEqual, BinNotEqual:
		if IsPointer(left.Type()) || IsPointer(right.Type()) {
			n.Left, n.Right, err = s.unifyPointerOperands(left, right, n.Line)
			if err != nil {
				return nil, err
			}
			n.ExpType = TypeInt
			return n, nil
		}
		fallthrough
	case BinLess, BinLessEqual, BinGreater, BinGreaterEqual:
		if !IsArithmetic(left.Type()) || !IsArithmetic(right.Type()) {
			return nil, newSemaError(SemaInvalidOperand, n.Line, "relational operands must be arithmetic")
		}
		common := CommonArithType(left.Type(), right.Type())
		n.Left, n.Right = s.castTo(left, common), s.castTo(right, common)
		n.ExpType = TypeInt
		return n, nil
	case BinShl, BinShr:
		if !IsInteger(left.Type()) || !IsInteger(right.Type()) {
			return nil, newSemaError(SemaInvalidOperand, n.Line, "shift operands must be integer")
		}
		lp := PromoteChar(left.Type())
		n.Left = s.castTo(left, lp)
		n.Right = s.castTo(right, PromoteChar(right.Type()))
		n.ExpType = lp
		return n, nil
	case BinAdd, BinSub:
		return s.checkAdditive(n, left, right)
	default: // Mul, Div, Mod, bitwise and/or/xor
		if !IsArithmetic(left.Type()) || !IsArithmetic(right.Type()) {
			return nil, newSemaError(SemaInvalidOperand, n.Line, "operands must be arithmetic")
		}
		if n.Op == BinMod && (left.Type().Kind == TyDouble || right.Type().Kind == TyDouble) {
			return nil, newSemaError(SemaInvalidOperand, n.Line, "operands of %% must not be double")
		}
		if (n.Op == BinAnd || n.Op == BinOr || n.Op == BinXor) && (left.Type().Kind == TyDouble || right.Type().Kind == TyDouble) {
			return nil, newSemaError(SemaInvalidOperand, n.Line, "operands of bitwise operator must not be double")
		}
		common := CommonArithType(left.Type(), right.Type())
		n.Left, n.Right = s.castTo(left, common), s.castTo(right, common)
		n.ExpType = common
		return n, nil
	}
}

func (s *Sema) checkAdditive(n *CBinary, left, right CExp) (CExp, error) {
	lp, rp := left.Type(), right.Type()
	switch {
	case IsArithmetic(lp) && IsArithmetic(rp):
		common := CommonArithType(lp, rp)
		n.Left, n.Right = s.castTo(left, common), s.castTo(right, common)
		n.ExpType = common
		return n, nil
	case IsPointer(lp) && IsInteger(rp) && n.Op == BinAdd:
		n.Left, n.Right = left, s.castTo(right, TypeLong)
		n.ExpType = lp
		return n, nil
	case IsInteger(lp) && IsPointer(rp) && n.Op == BinAdd:
		n.Left, n.Right = s.castTo(left, TypeLong), right
		n.ExpType = rp
		return n, nil
	case IsPointer(lp) && IsInteger(rp) && n.Op == BinSub:
		n.Left, n.Right = left, s.castTo(right, TypeLong)
		n.ExpType = lp
		return n, nil
	case IsPointer(lp) && IsPointer(rp) && n.Op == BinSub && TypesEqual(lp, rp):
		n.Left, n.Right = left, right
		n.ExpType = TypeLong
		return n, nil
	default:
		return nil, newSemaError(SemaInvalidOperand, n.Line, "invalid operands to additive operator")
	}
}

// unifyPointerOperands applies the "null-pointer-constant on one side, or
// void*<->other pointer" compatibility rule to ==/!=.
func (s *Sema) unifyPointerOperands(left, right CExp, line int) (CExp, CExp, error) {
	lp, rp := left.Type(), right.Type()
	switch {
	case TypesEqual(lp, rp):
		return left, right, nil
	case IsPointer(lp) && isNullPointerConstant(right):
		return left, wrapCast(lp, right), nil
	case IsPointer(rp) && isNullPointerConstant(left):
		return wrapCast(rp, left), right, nil
	case IsPointer(lp) && IsPointer(rp) && (lp.Referent.Kind == TyVoid || rp.Referent.Kind == TyVoid):
		common := lp
		if lp.Referent.Kind != TyVoid {
			common = rp
		}
		return wrapCast(common, left), wrapCast(common, right), nil
	default:
		return nil, nil, newSemaError(SemaInvalidCast, line, "incompatible pointer operand types")
	}
}

func (s *Sema) castTo(e CExp, target *Type) CExp {
	if TypesEqual(e.Type(), target) {
		return e
	}
	return wrapCast(target, e)
}

func (s *Sema) checkAssignment(n *CAssignment) (CExp, error) {
	left, err := s.checkExp(n.Left)
	if err != nil {
		return nil, err
	}
	if !IsLValue(left) {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "assignment target is not an lvalue")
	}
	right, err := s.checkExp(n.Right)
	if err != nil {
		return nil, err
	}
	right = decay(right)
	cast, err := s.convertByAssignment(right, left.Type(), n.Line)
	if err != nil {
		return nil, err
	}
	n.Left, n.Right = left, cast
	n.ExpType = left.Type()
	return n, nil
}

func (s *Sema) checkCompoundAssignment(n *CCompoundAssignment) (CExp, error) {
	left, err := s.checkExp(n.Left)
	if err != nil {
		return nil, err
	}
	if !IsLValue(left) {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "compound-assignment target is not an lvalue")
	}
	right, err := s.checkExp(n.Right)
	if err != nil {
		return nil, err
	}
	right = decay(right)
	if IsPointer(left.Type()) {
		if !IsInteger(right.Type()) || (n.Op != BinAdd && n.Op != BinSub) {
			return nil, newSemaError(SemaInvalidOperand, n.Line, "invalid pointer compound assignment")
		}
		n.Left, n.Right, n.CommonType = left, s.castTo(right, TypeLong), nil
		n.ExpType = left.Type()
		return n, nil
	}
	if !IsArithmetic(left.Type()) || !IsArithmetic(right.Type()) {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "compound-assignment operands must be arithmetic")
	}
	n.CommonType = CommonArithType(left.Type(), right.Type())
	n.Left, n.Right = left, right
	n.ExpType = left.Type()
	return n, nil
}

func (s *Sema) checkConditional(n *CConditional) (CExp, error) {
	cond, err := s.checkExp(n.Cond)
	if err != nil {
		return nil, err
	}
	cond = decay(cond)
	if !IsScalar(cond.Type()) {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "ternary condition must be scalar")
	}
	then, err := s.checkExp(n.Then)
	if err != nil {
		return nil, err
	}
	els, err := s.checkExp(n.Else)
	if err != nil {
		return nil, err
	}
	then, els = decay(then), decay(els)

	var result *Type
	switch {
	case IsArithmetic(then.Type()) && IsArithmetic(els.Type()):
		result = CommonArithType(then.Type(), els.Type())
		then, els = s.castTo(then, result), s.castTo(els, result)
	case TypesEqual(then.Type(), els.Type()):
		result = then.Type()
	case IsPointer(then.Type()) && isNullPointerConstant(els):
		result = then.Type()
		els = wrapCast(result, els)
	case IsPointer(els.Type()) && isNullPointerConstant(then):
		result = els.Type()
		then = wrapCast(result, then)
	default:
		return nil, newSemaError(SemaInvalidCast, n.Line, "incompatible ternary branch types")
	}
	n.Cond, n.Then, n.Else = cond, then, els
	n.ExpType = result
	return n, nil
}

func (s *Sema) checkCall(n *CFunctionCall) (CExp, error) {
	resolved, ok := s.resolveVar(n.Name)
	if !ok {
		return nil, newSemaError(SemaUndeclared, n.Line, "call to undeclared function %q", s.in.Text(n.Name))
	}
	sym, ok := s.front[resolved]
	if !ok || sym.Type.Kind != TyFunType {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "%q is not a function", s.in.Text(n.Name))
	}
	n.Name = resolved
	ft := sym.Type
	if len(n.Args) != len(ft.Params) {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "wrong number of arguments to %q", s.in.Text(n.Name))
	}
	for i, arg := range n.Args {
		typed, err := s.checkExp(arg)
		if err != nil {
			return nil, err
		}
		typed = decay(typed)
		cast, err := s.convertByAssignment(typed, ft.Params[i], n.Line)
		if err != nil {
			return nil, err
		}
		n.Args[i] = cast
	}
	n.ExpType = ft.Ret
	return n, nil
}

func (s *Sema) checkDereference(n *CDereference) (CExp, error) {
	inner, err := s.checkExp(n.Exp)
	if err != nil {
		return nil, err
	}
	inner = decay(inner)
	if !IsPointer(inner.Type()) {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "cannot dereference a non-pointer")
	}
	n.Exp = inner
	n.ExpType = inner.Type().Referent
	return n, nil
}

func (s *Sema) checkAddrOf(n *CAddrOf) (CExp, error) {
	inner, err := s.checkExp(n.Exp)
	if err != nil {
		return nil, err
	}
	if !IsLValue(inner) {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "operand of & must be an lvalue")
	}
	n.Exp = inner
	n.ExpType = NewPointer(inner.Type())
	return n, nil
}

func (s *Sema) checkSubscript(n *CSubscript) (CExp, error) {
	ptr, err := s.checkExp(n.Ptr)
	if err != nil {
		return nil, err
	}
	idx, err := s.checkExp(n.Idx)
	if err != nil {
		return nil, err
	}
	ptr, idx = decay(ptr), decay(idx)
	// C permits either operand to be the pointer (a[i] == i[a]).
	if IsPointer(idx.Type()) && IsInteger(ptr.Type()) {
		ptr, idx = idx, ptr
	}
	if !IsPointer(ptr.Type()) || !IsInteger(idx.Type()) {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "subscript operands must be pointer and integer")
	}
	n.Ptr, n.Idx = ptr, s.castTo(idx, TypeLong)
	n.ExpType = ptr.Type().Referent
	return n, nil
}

func (s *Sema) checkSizeOfExp(n *CSizeOfExp) (CExp, error) {
	inner, err := s.checkExp(n.Exp)
	if err != nil {
		return nil, err
	}
	if !s.typeIsComplete(inner.Type()) {
		return nil, newSemaError(SemaIncompleteType, n.Line, "sizeof applied to incomplete type")
	}
	n.Exp = inner
	n.ExpType = TypeULong
	return n, nil
}

func (s *Sema) checkDot(n *CDot) (CExp, error) {
	base, err := s.checkExp(n.Struct)
	if err != nil {
		return nil, err
	}
	if base.Type().Kind != TyStructure {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "member access on non-struct type")
	}
	td, ok := s.structs[base.Type().Tag]
	if !ok {
		return nil, newSemaError(SemaIncompleteType, n.Line, "incomplete struct type")
	}
	m, ok := td.Members[n.Member]
	if !ok {
		return nil, newSemaError(SemaUndeclared, n.Line, "no member %q", s.in.Text(n.Member))
	}
	n.Struct = base
	n.ExpType = m.Type
	return n, nil
}

func (s *Sema) checkArrow(n *CArrow) (CExp, error) {
	ptr, err := s.checkExp(n.Ptr)
	if err != nil {
		return nil, err
	}
	ptr = decay(ptr)
	if !IsPointer(ptr.Type()) || ptr.Type().Referent.Kind != TyStructure {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "-> applied to non-struct-pointer")
	}
	td, ok := s.structs[ptr.Type().Referent.Tag]
	if !ok {
		return nil, newSemaError(SemaIncompleteType, n.Line, "incomplete struct type")
	}
	m, ok := td.Members[n.Member]
	if !ok {
		return nil, newSemaError(SemaUndeclared, n.Line, "no member %q", s.in.Text(n.Member))
	}
	n.Ptr = ptr
	n.ExpType = m.Type
	return n, nil
}

func (s *Sema) checkPostfixIncrDecr(n *CPostfix) (CExp, error) {
	inner, err := s.checkExp(n.Exp)
	if err != nil {
		return nil, err
	}
	if !IsLValue(inner) {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "operand of ++/-- must be an lvalue")
	}
	if !IsArithmetic(inner.Type()) && !IsPointer(inner.Type()) {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "operand of ++/-- must be arithmetic or pointer")
	}
	n.Exp = inner
	n.ExpType = inner.Type()
	return n, nil
}

func (s *Sema) checkPrefixIncrDecr(n *CPrefix) (CExp, error) {
	inner, err := s.checkExp(n.Exp)
	if err != nil {
		return nil, err
	}
	if !IsLValue(inner) {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "operand of ++/-- must be an lvalue")
	}
	if !IsArithmetic(inner.Type()) && !IsPointer(inner.Type()) {
		return nil, newSemaError(SemaInvalidOperand, n.Line, "operand of ++/-- must be arithmetic or pointer")
	}
	n.Exp = inner
	n.ExpType = inner.Type()
	return n, nil
}

// convertByAssignment implements the assignment-like-context rule:
// both arithmetic, or null-pointer-constant<->pointer, or void*<->pointer
// convert implicitly; anything else is an illegal-cast error.
func (s *Sema) convertByAssignment(src CExp, target *Type, line int) (CExp, error) {
	if TypesEqual(src.Type(), target) {
		return src, nil
	}
	switch {
	case IsArithmetic(src.Type()) && IsArithmetic(target):
		return wrapCast(target, src), nil
	case IsPointer(target) && isNullPointerConstant(src):
		return wrapCast(target, src), nil
	case IsPointer(target) && IsPointer(src.Type()) && (target.Referent.Kind == TyVoid || src.Type().Referent.Kind == TyVoid):
		return wrapCast(target, src), nil
	default:
		return nil, newSemaError(SemaInvalidCast, line, "cannot convert value for assignment/initialization")
	}
}
