package main

import (
	"fmt"
	"strings"
)

// dump.go: debug renderers behind the emit-ast / emit-tac subcommands.
// Output is for humans poking at the pipeline, not a stable interchange
// format.

type dumper struct {
	in *Interner
	b  strings.Builder
}

func (d *dumper) writef(depth int, format string, args ...any) {
	d.b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&d.b, format, args...)
	d.b.WriteByte('\n')
}

func (d *dumper) name(id InternedID) string {
	if id == noIntern {
		return "<anon>"
	}
	return d.in.Text(id)
}

func typeString(t *Type, in *Interner) string {
	if t == nil {
		return "?"
	}
	switch t.Kind {
	case TyChar:
		return "char"
	case TySChar:
		return "signed char"
	case TyUChar:
		return "unsigned char"
	case TyInt:
		return "int"
	case TyUInt:
		return "unsigned int"
	case TyLong:
		return "long"
	case TyULong:
		return "unsigned long"
	case TyDouble:
		return "double"
	case TyVoid:
		return "void"
	case TyPointer:
		return typeString(t.Referent, in) + "*"
	case TyArray:
		return fmt.Sprintf("%s[%d]", typeString(t.Elem, in), t.ArraySize)
	case TyFunType:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = typeString(p, in)
		}
		return fmt.Sprintf("%s(%s)", typeString(t.Ret, in), strings.Join(params, ", "))
	case TyStructure:
		kw := "struct"
		if t.IsUnion {
			kw = "union"
		}
		return kw + " " + in.Text(t.Tag)
	default:
		return "?"
	}
}

// DumpAst renders the (possibly analyzed) C AST as an indented tree.
func DumpAst(prog *CProgram, in *Interner) string {
	d := &dumper{in: in}
	for _, decl := range prog.Declarations {
		d.decl(0, decl)
	}
	return d.b.String()
}

func (d *dumper) decl(depth int, decl CDeclaration) {
	switch n := decl.(type) {
	case *CFunDecl:
		d.writef(depth, "FunDecl %s : %s", d.name(n.Name), typeString(n.FunType, d.in))
		if n.Body != nil {
			d.block(depth+1, n.Body)
		}
	case *CVarDecl:
		d.writef(depth, "VarDecl %s : %s", d.name(n.Name), typeString(n.VarType, d.in))
		if n.Init != nil {
			d.init(depth+1, n.Init)
		}
	case *CStructDecl:
		kw := "struct"
		if n.IsUnion {
			kw = "union"
		}
		d.writef(depth, "StructDecl %s %s", kw, d.name(n.Tag))
		for _, m := range n.Members {
			d.writef(depth+1, "%s : %s", d.name(m.Name), typeString(m.Type, d.in))
		}
	}
}

func (d *dumper) init(depth int, init CInitializer) {
	switch n := init.(type) {
	case *CSingleInit:
		d.exp(depth, n.Exp)
	case *CCompoundInit:
		d.writef(depth, "Compound")
		for _, e := range n.Elems {
			d.init(depth+1, e)
		}
	}
}

func (d *dumper) block(depth int, b *CBlock) {
	for _, item := range b.Items {
		switch n := item.(type) {
		case CBlockS:
			d.stmt(depth, n.Stmt)
		case CBlockD:
			d.decl(depth, n.Decl)
		}
	}
}

func (d *dumper) stmt(depth int, stmt CStatement) {
	switch n := stmt.(type) {
	case *CReturn:
		d.writef(depth, "Return")
		if n.Exp != nil {
			d.exp(depth+1, n.Exp)
		}
	case *CExpressionStmt:
		d.writef(depth, "ExpressionStmt")
		d.exp(depth+1, n.Exp)
	case *CIf:
		d.writef(depth, "If")
		d.exp(depth+1, n.Cond)
		d.stmt(depth+1, n.Then)
		if n.Else != nil {
			d.writef(depth, "Else")
			d.stmt(depth+1, n.Else)
		}
	case *CCompound:
		d.writef(depth, "Block")
		d.block(depth+1, n.Block)
	case *CBreak:
		d.writef(depth, "Break -> %s", d.name(n.TargetLabel))
	case *CContinue:
		d.writef(depth, "Continue -> %s", d.name(n.TargetLabel))
	case *CWhile:
		d.writef(depth, "While [%s]", d.name(n.Label))
		d.exp(depth+1, n.Cond)
		d.stmt(depth+1, n.Body)
	case *CDoWhile:
		d.writef(depth, "DoWhile [%s]", d.name(n.Label))
		d.stmt(depth+1, n.Body)
		d.exp(depth+1, n.Cond)
	case *CFor:
		d.writef(depth, "For [%s]", d.name(n.Label))
		switch init := n.Init.(type) {
		case CInitDecl:
			d.decl(depth+1, init.Decl)
		case CInitExp:
			if init.Exp != nil {
				d.exp(depth+1, init.Exp)
			}
		}
		if n.Cond != nil {
			d.exp(depth+1, n.Cond)
		}
		if n.Post != nil {
			d.exp(depth+1, n.Post)
		}
		d.stmt(depth+1, n.Body)
	case *CSwitch:
		d.writef(depth, "Switch [%s]", d.name(n.Label))
		d.exp(depth+1, n.Cond)
		d.stmt(depth+1, n.Body)
	case *CCase:
		d.writef(depth, "Case [%s]", d.name(n.Label))
		d.exp(depth+1, n.Value)
		d.stmt(depth+1, n.Body)
	case *CDefault:
		d.writef(depth, "Default [%s]", d.name(n.Label))
		d.stmt(depth+1, n.Body)
	case *CLabel:
		d.writef(depth, "Label %s", d.name(n.Name))
		d.stmt(depth+1, n.Body)
	case *CGoto:
		d.writef(depth, "Goto %s", d.name(n.Target))
	case *CNullStmt:
		d.writef(depth, "Null")
	}
}

func (d *dumper) exp(depth int, exp CExp) {
	t := ""
	if exp.Type() != nil {
		t = " : " + typeString(exp.Type(), d.in)
	}
	switch n := exp.(type) {
	case *CConstInt:
		d.writef(depth, "Const %d%s", n.Value, t)
	case *CConstDouble:
		d.writef(depth, "Const %g%s", n.Value, t)
	case *CString:
		d.writef(depth, "String %q%s", string(n.Value), t)
	case *CVar:
		d.writef(depth, "Var %s%s", d.name(n.Name), t)
	case *CCast:
		d.writef(depth, "Cast -> %s", typeString(n.Target, d.in))
		d.exp(depth+1, n.Exp)
	case *CUnary:
		d.writef(depth, "Unary %d%s", n.Op, t)
		d.exp(depth+1, n.Exp)
	case *CBinary:
		d.writef(depth, "Binary %d%s", n.Op, t)
		d.exp(depth+1, n.Left)
		d.exp(depth+1, n.Right)
	case *CAssignment:
		d.writef(depth, "Assign%s", t)
		d.exp(depth+1, n.Left)
		d.exp(depth+1, n.Right)
	case *CCompoundAssignment:
		d.writef(depth, "CompoundAssign %d%s", n.Op, t)
		d.exp(depth+1, n.Left)
		d.exp(depth+1, n.Right)
	case *CConditional:
		d.writef(depth, "Conditional%s", t)
		d.exp(depth+1, n.Cond)
		d.exp(depth+1, n.Then)
		d.exp(depth+1, n.Else)
	case *CFunctionCall:
		d.writef(depth, "Call %s%s", d.name(n.Name), t)
		for _, a := range n.Args {
			d.exp(depth+1, a)
		}
	case *CDereference:
		d.writef(depth, "Deref%s", t)
		d.exp(depth+1, n.Exp)
	case *CAddrOf:
		d.writef(depth, "AddrOf%s", t)
		d.exp(depth+1, n.Exp)
	case *CSubscript:
		d.writef(depth, "Subscript%s", t)
		d.exp(depth+1, n.Ptr)
		d.exp(depth+1, n.Idx)
	case *CSizeOfExp:
		d.writef(depth, "SizeOfExp%s", t)
		d.exp(depth+1, n.Exp)
	case *CSizeOfType:
		d.writef(depth, "SizeOfType %s%s", typeString(n.TargetType, d.in), t)
	case *CDot:
		d.writef(depth, "Dot .%s%s", d.name(n.Member), t)
		d.exp(depth+1, n.Struct)
	case *CArrow:
		d.writef(depth, "Arrow ->%s%s", d.name(n.Member), t)
		d.exp(depth+1, n.Ptr)
	case *CPostfix:
		d.writef(depth, "Postfix %d%s", n.Op, t)
		d.exp(depth+1, n.Exp)
	case *CPrefix:
		d.writef(depth, "Prefix %d%s", n.Op, t)
		d.exp(depth+1, n.Exp)
	}
}

// DumpTac renders a TAC program one instruction per line.
func DumpTac(prog *TacProgram, in *Interner) string {
	d := &dumper{in: in}
	for _, tl := range prog.TopLevels {
		switch t := tl.(type) {
		case *TacFunction:
			params := make([]string, len(t.Params))
			for i, p := range t.Params {
				params[i] = d.name(p)
			}
			d.writef(0, "function %s(%s) global=%v", d.name(t.Name), strings.Join(params, ", "), t.Global)
			for _, instr := range t.Body {
				d.writef(1, "%s", d.tacInstr(instr))
			}
		case *TacStaticVariable:
			d.writef(0, "static %s global=%v %v", d.name(t.Name), t.Global, t.Inits)
		case *TacStaticConstant:
			d.writef(0, "const %s %v", t.Name, t.Init)
		}
	}
	return d.b.String()
}

func (d *dumper) val(v TacValue) string {
	switch x := v.(type) {
	case TacConstant:
		if x.Kind == TacConstDoubleKind {
			return fmt.Sprintf("%g", x.DblVal)
		}
		return fmt.Sprintf("%d", x.IntVal)
	case TacVariable:
		return d.name(x.Name)
	default:
		return "<nil>"
	}
}

func (d *dumper) tacInstr(instr TacInstruction) string {
	switch i := instr.(type) {
	case *TacReturn:
		if i.Val == nil {
			return "return"
		}
		return "return " + d.val(i.Val)
	case *TacSignExtend:
		return fmt.Sprintf("%s = sign_extend %s", d.val(i.Dst), d.val(i.Src))
	case *TacZeroExtend:
		return fmt.Sprintf("%s = zero_extend %s", d.val(i.Dst), d.val(i.Src))
	case *TacTruncate:
		return fmt.Sprintf("%s = truncate %s", d.val(i.Dst), d.val(i.Src))
	case *TacDoubleToInt:
		return fmt.Sprintf("%s = double_to_int %s", d.val(i.Dst), d.val(i.Src))
	case *TacDoubleToUInt:
		return fmt.Sprintf("%s = double_to_uint %s", d.val(i.Dst), d.val(i.Src))
	case *TacIntToDouble:
		return fmt.Sprintf("%s = int_to_double %s", d.val(i.Dst), d.val(i.Src))
	case *TacUIntToDouble:
		return fmt.Sprintf("%s = uint_to_double %s", d.val(i.Dst), d.val(i.Src))
	case *TacUnary:
		return fmt.Sprintf("%s = unary.%d %s", d.val(i.Dst), i.Op, d.val(i.Src))
	case *TacBinary:
		return fmt.Sprintf("%s = binary.%d %s, %s", d.val(i.Dst), i.Op, d.val(i.Src1), d.val(i.Src2))
	case *TacCopy:
		return fmt.Sprintf("%s = %s", d.val(i.Dst), d.val(i.Src))
	case *TacMemCopy:
		return fmt.Sprintf("memcpy *%s = *%s, %d", d.val(i.DstPtr), d.val(i.SrcPtr), i.Size)
	case *TacGetAddress:
		return fmt.Sprintf("%s = &%s", d.val(i.Dst), d.val(i.Src))
	case *TacLoad:
		return fmt.Sprintf("%s = *%s", d.val(i.Dst), d.val(i.SrcPtr))
	case *TacStore:
		return fmt.Sprintf("*%s = %s", d.val(i.DstPtr), d.val(i.Src))
	case *TacAddPtr:
		return fmt.Sprintf("%s = add_ptr %s, %s * %d", d.val(i.Dst), d.val(i.Ptr), d.val(i.Idx), i.Scale)
	case *TacCopyToOffset:
		return fmt.Sprintf("%s[%d] = %s", d.name(i.Dst), i.Offset, d.val(i.Src))
	case *TacCopyFromOffset:
		return fmt.Sprintf("%s = %s[%d]", d.val(i.Dst), d.name(i.Src), i.Offset)
	case *TacJump:
		return "jump " + d.name(i.Target)
	case *TacJumpIfZero:
		return fmt.Sprintf("jump_if_zero %s, %s", d.val(i.Cond), d.name(i.Target))
	case *TacJumpIfNotZero:
		return fmt.Sprintf("jump_if_not_zero %s, %s", d.val(i.Cond), d.name(i.Target))
	case *TacLabel:
		return d.name(i.Name) + ":"
	case *TacFunCall:
		args := make([]string, len(i.Args))
		for n, a := range i.Args {
			args[n] = d.val(a)
		}
		call := fmt.Sprintf("call %s(%s)", d.name(i.Name), strings.Join(args, ", "))
		if i.Dst != nil {
			return d.val(i.Dst) + " = " + call
		}
		return call
	default:
		return "<unknown>"
	}
}
