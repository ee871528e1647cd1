package main

import "strconv"

// Parser: recursive-descent over the token stream, precedence climbing for
// expressions. Builds the source-faithful C AST of ast.go; no typing
// happens here -- that's sema's job.
type Parser struct {
	toks       []Token
	pos        int
	in         *Interner
	structTags map[InternedID]bool // identifiers seen after `struct`/`union`, for cast/sizeof disambiguation
}

func NewParser(toks []Token, in *Interner) *Parser {
	return &Parser{toks: toks, in: in, structTags: make(map[InternedID]bool)}
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) peekAt(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}
func (p *Parser) advance() Token { t := p.toks[p.pos]; if p.pos < len(p.toks)-1 { p.pos++ }; return t }

func (p *Parser) expect(k TokenKind, what string) (Token, error) {
	if p.cur().Kind != k {
		return Token{}, newParseError(p.cur().Line, "expected %s, found %q", what, p.cur().Text)
	}
	return p.advance(), nil
}

func (p *Parser) check(k TokenKind) bool { return p.cur().Kind == k }

// ParseProgram parses the full translation unit.
func (p *Parser) ParseProgram() (*CProgram, error) {
	prog := &CProgram{Line: 1}
	for !p.check(TokEOF) {
		decl, err := p.parseTopLevelDeclaration()
		if err != nil {
			return nil, err
		}
		prog.Declarations = append(prog.Declarations, decl)
	}
	return prog, nil
}

// --- declaration specifiers -------------------------------------------------

type declSpecs struct {
	base     *Type
	isStatic bool
	isExtern bool
}

// parseDeclSpecs consumes storage-class and type-specifier keywords, not
// yet the declarator. Returns the base type (before pointers/arrays are
// applied by the declarator).
func (p *Parser) parseDeclSpecs() (declSpecs, error) {
	var specs declSpecs
	var sawSigned, sawUnsigned, sawChar, sawInt, sawLong, sawDouble, sawVoid bool
	var structType *Type

	for {
		switch p.cur().Kind {
		case TokStatic:
			specs.isStatic = true
			p.advance()
		case TokExtern:
			specs.isExtern = true
			p.advance()
		case TokSigned:
			sawSigned = true
			p.advance()
		case TokUnsigned:
			sawUnsigned = true
			p.advance()
		case TokChar:
			sawChar = true
			p.advance()
		case TokInt:
			sawInt = true
			p.advance()
		case TokLong:
			sawLong = true
			p.advance()
		case TokDouble:
			sawDouble = true
			p.advance()
		case TokVoid:
			sawVoid = true
			p.advance()
		case TokStruct, TokUnion:
			isUnion := p.cur().Kind == TokUnion
			p.advance()
			nameTok, err := p.expect(TokIdentifier, "struct/union tag")
			if err != nil {
				return specs, err
			}
			p.structTags[nameTok.IText] = true
			structType = NewStructure(nameTok.IText, isUnion)
		default:
			goto done
		}
	}
done:
	switch {
	case structType != nil:
		specs.base = structType
	case sawVoid:
		specs.base = TypeVoid
	case sawDouble:
		specs.base = TypeDouble
	case sawChar:
		switch {
		case sawUnsigned:
			specs.base = TypeUChar
		case sawSigned:
			specs.base = TypeSChar
		default:
			specs.base = TypeChar
		}
	case sawLong:
		if sawUnsigned {
			specs.base = TypeULong
		} else {
			specs.base = TypeLong
		}
	case sawInt || sawSigned || sawUnsigned:
		if sawUnsigned {
			specs.base = TypeUInt
		} else {
			specs.base = TypeInt
		}
	default:
		return specs, newParseError(p.cur().Line, "expected a type specifier, found %q", p.cur().Text)
	}
	return specs, nil
}

// looksLikeTypeStart reports whether the token at offset n begins a type
// (used to disambiguate a cast/sizeof-type from a parenthesized expression).
func (p *Parser) looksLikeTypeStart(n int) bool {
	switch p.peekAt(n).Kind {
	case TokChar, TokInt, TokLong, TokDouble, TokSigned, TokUnsigned, TokVoid, TokStruct, TokUnion:
		return true
	}
	return false
}

// --- declarators -------------------------------------------------------------
// declarator grammar: ("*")* direct-declarator, direct-declarator being
// IDENT | "(" declarator ")", optionally followed by "[" const-exp "]"
// (repeatable) or "(" param-list ")" for functions.

type declarator struct {
	name   InternedID
	build  func(base *Type) *Type // wraps base according to pointers/arrays/params, innermost first
	isFunc bool
	params []paramDecl
}

type paramDecl struct {
	name InternedID
	typ  *Type
}

func (p *Parser) parseDeclarator() (declarator, error) {
	nstars := 0
	for p.check(TokStar) {
		nstars++
		p.advance()
	}
	d, err := p.parseDirectDeclarator()
	if err != nil {
		return declarator{}, err
	}
	if nstars > 0 {
		inner := d.build
		for i := 0; i < nstars; i++ {
			prev := inner
			inner = func(base *Type) *Type { return prev(NewPointer(base)) }
		}
		d.build = inner
	}
	return d, nil
}

func (p *Parser) parseDirectDeclarator() (declarator, error) {
	var d declarator
	switch {
	case p.check(TokIdentifier):
		tok := p.advance()
		d.name = tok.IText
		d.build = func(base *Type) *Type { return base }
	case p.check(TokLParen):
		p.advance()
		inner, err := p.parseDeclarator()
		if err != nil {
			return d, err
		}
		if _, err := p.expect(TokRParen, ")"); err != nil {
			return d, err
		}
		d = inner
	default:
		return d, newParseError(p.cur().Line, "expected declarator, found %q", p.cur().Text)
	}

	for {
		switch {
		case p.check(TokLBracket):
			p.advance()
			sizeTok, err := p.expect(TokConstant, "array size constant")
			if err != nil {
				return d, err
			}
			size, _ := strconv.ParseInt(sizeTok.Text, 0, 64)
			if _, err := p.expect(TokRBracket, "]"); err != nil {
				return d, err
			}
			prev := d.build
			d.build = func(base *Type) *Type { return prev(NewArray(base, size)) }
		case p.check(TokLParen):
			p.advance()
			params, err := p.parseParamList()
			if err != nil {
				return d, err
			}
			if _, err := p.expect(TokRParen, ")"); err != nil {
				return d, err
			}
			d.isFunc = true
			d.params = params
		default:
			return d, nil
		}
	}
}

func (p *Parser) parseParamList() ([]paramDecl, error) {
	var params []paramDecl
	if p.check(TokVoid) && p.peekAt(1).Kind == TokRParen {
		p.advance()
		return nil, nil
	}
	if p.check(TokRParen) {
		return nil, nil
	}
	for {
		specs, err := p.parseDeclSpecs()
		if err != nil {
			return nil, err
		}
		pd, err := p.parseDeclarator()
		if err != nil {
			return nil, err
		}
		if pd.isFunc {
			return nil, newParseError(p.cur().Line, "function type not allowed as parameter")
		}
		params = append(params, paramDecl{name: pd.name, typ: pd.build(specs.base)})
		if p.check(TokComma) {
			p.advance()
			continue
		}
		break
	}
	return params, nil
}

// parseAbstractType parses a type name with no declarator name, used by
// sizeof(type) and casts: declSpecs ("*")* ("[" const-exp "]")*
func (p *Parser) parseAbstractType() (*Type, error) {
	specs, err := p.parseDeclSpecs()
	if err != nil {
		return nil, err
	}
	t := specs.base
	for p.check(TokStar) {
		p.advance()
		t = NewPointer(t)
	}
	for p.check(TokLBracket) {
		p.advance()
		sizeTok, err := p.expect(TokConstant, "array size constant")
		if err != nil {
			return nil, err
		}
		size, _ := strconv.ParseInt(sizeTok.Text, 0, 64)
		if _, err := p.expect(TokRBracket, "]"); err != nil {
			return nil, err
		}
		t = NewArray(t, size)
	}
	return t, nil
}

// --- top-level declarations --------------------------------------------------

func (p *Parser) parseTopLevelDeclaration() (CDeclaration, error) {
	line := p.cur().Line
	if p.check(TokStruct) || p.check(TokUnion) {
		if p.peekAt(2).Kind == TokLBrace || (p.peekAt(1).Kind == TokIdentifier && p.peekAt(2).Kind == TokSemi) {
			decl, err := p.parseStructDecl()
			if err != nil {
				return nil, err
			}
			if p.check(TokSemi) {
				p.advance()
				return decl, nil
			}
			// `struct S { ... } name;` form is not in the supported subset; fall through as error.
			return nil, newParseError(p.cur().Line, "expected ';' after struct/union declaration")
		}
	}
	specs, err := p.parseDeclSpecs()
	if err != nil {
		return nil, err
	}
	d, err := p.parseDeclarator()
	if err != nil {
		return nil, err
	}
	full := d.build(specs.base)
	if d.isFunc {
		return p.finishFunDecl(specs, d, full, line)
	}
	return p.finishVarDecl(specs, d, full, line)
}

func (p *Parser) parseStructDecl() (*CStructDecl, error) {
	line := p.cur().Line
	isUnion := p.cur().Kind == TokUnion
	p.advance()
	nameTok, err := p.expect(TokIdentifier, "struct/union tag")
	if err != nil {
		return nil, err
	}
	p.structTags[nameTok.IText] = true
	decl := &CStructDecl{Tag: nameTok.IText, IsUnion: isUnion, Line: line}
	if p.check(TokSemi) {
		return decl, nil // forward declaration
	}
	if _, err := p.expect(TokLBrace, "{"); err != nil {
		return nil, err
	}
	for !p.check(TokRBrace) {
		mline := p.cur().Line
		mspecs, err := p.parseDeclSpecs()
		if err != nil {
			return nil, err
		}
		md, err := p.parseDeclarator()
		if err != nil {
			return nil, err
		}
		if md.isFunc {
			return nil, newParseError(mline, "member cannot have function type")
		}
		decl.Members = append(decl.Members, CMemberDecl{Name: md.name, Type: md.build(mspecs.base), Line: mline})
		if _, err := p.expect(TokSemi, ";"); err != nil {
			return nil, err
		}
	}
	p.advance() // }
	return decl, nil
}

func (p *Parser) finishFunDecl(specs declSpecs, d declarator, full *Type, line int) (CDeclaration, error) {
	paramNames := make([]InternedID, len(d.params))
	paramTypes := make([]*Type, len(d.params))
	for i, pd := range d.params {
		paramNames[i] = pd.name
		paramTypes[i] = pd.typ
	}
	funType := NewFunType(paramTypes, full)
	fd := &CFunDecl{Name: d.name, Params: paramNames, FunType: funType, IsStatic: specs.isStatic, IsExtern: specs.isExtern, Line: line}
	switch {
	case p.check(TokLBrace):
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		fd.Body = body
	case p.check(TokSemi):
		p.advance()
	default:
		return nil, newParseError(p.cur().Line, "expected '{' or ';' after function declarator, found %q", p.cur().Text)
	}
	return fd, nil
}

func (p *Parser) finishVarDecl(specs declSpecs, d declarator, full *Type, line int) (CDeclaration, error) {
	vd := &CVarDecl{Name: d.name, VarType: full, IsStatic: specs.isStatic, IsExtern: specs.isExtern, Line: line}
	if p.check(TokAssign) {
		p.advance()
		init, err := p.parseInitializer()
		if err != nil {
			return nil, err
		}
		vd.Init = init
	}
	if _, err := p.expect(TokSemi, ";"); err != nil {
		return nil, err
	}
	return vd, nil
}

func (p *Parser) parseInitializer() (CInitializer, error) {
	line := p.cur().Line
	if p.check(TokLBrace) {
		p.advance()
		if p.check(TokRBrace) {
			return nil, newParseError(line, "empty compound initializer")
		}
		var elems []CInitializer
		for {
			e, err := p.parseInitializer()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.check(TokComma) {
				p.advance()
				if p.check(TokRBrace) {
					break
				}
				continue
			}
			break
		}
		if _, err := p.expect(TokRBrace, "}"); err != nil {
			return nil, err
		}
		return &CCompoundInit{Elems: elems, Line: line}, nil
	}
	exp, err := p.parseExpression(1)
	if err != nil {
		return nil, err
	}
	return &CSingleInit{Exp: exp, Line: line}, nil
}

// --- statements ---------------------------------------------------------------

func (p *Parser) parseBlock() (*CBlock, error) {
	line := p.cur().Line
	if _, err := p.expect(TokLBrace, "{"); err != nil {
		return nil, err
	}
	blk := &CBlock{Line: line}
	for !p.check(TokRBrace) {
		item, err := p.parseBlockItem()
		if err != nil {
			return nil, err
		}
		blk.Items = append(blk.Items, item)
	}
	p.advance() // }
	return blk, nil
}

func (p *Parser) parseBlockItem() (CBlockItem, error) {
	if p.startsDeclaration() {
		decl, err := p.parseLocalDeclaration()
		if err != nil {
			return nil, err
		}
		return CBlockD{Decl: decl}, nil
	}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return CBlockS{Stmt: stmt}, nil
}

func (p *Parser) startsDeclaration() bool {
	switch p.cur().Kind {
	case TokChar, TokInt, TokLong, TokDouble, TokSigned, TokUnsigned, TokVoid, TokStruct, TokUnion, TokStatic, TokExtern:
		return true
	}
	return false
}

func (p *Parser) parseLocalDeclaration() (CDeclaration, error) {
	line := p.cur().Line
	if p.check(TokStruct) || p.check(TokUnion) {
		if p.peekAt(2).Kind == TokLBrace || (p.peekAt(1).Kind == TokIdentifier && p.peekAt(2).Kind == TokSemi) {
			decl, err := p.parseStructDecl()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokSemi, ";"); err != nil {
				return nil, err
			}
			return decl, nil
		}
	}
	specs, err := p.parseDeclSpecs()
	if err != nil {
		return nil, err
	}
	d, err := p.parseDeclarator()
	if err != nil {
		return nil, err
	}
	full := d.build(specs.base)
	if d.isFunc {
		return p.finishFunDecl(specs, d, full, line) // local prototype, `Body` stays nil
	}
	return p.finishVarDecl(specs, d, full, line)
}

func (p *Parser) parseStatement() (CStatement, error) {
	line := p.cur().Line
	switch p.cur().Kind {
	case TokSemi:
		p.advance()
		return &CNullStmt{Line: line}, nil
	case TokReturn:
		p.advance()
		if p.check(TokSemi) {
			p.advance()
			return &CReturn{Line: line}, nil
		}
		exp, err := p.parseExpression(1)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokSemi, ";"); err != nil {
			return nil, err
		}
		return &CReturn{Exp: exp, Line: line}, nil
	case TokIf:
		return p.parseIf()
	case TokLBrace:
		blk, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &CCompound{Block: blk, Line: line}, nil
	case TokBreak:
		p.advance()
		if _, err := p.expect(TokSemi, ";"); err != nil {
			return nil, err
		}
		return &CBreak{Line: line}, nil
	case TokContinue:
		p.advance()
		if _, err := p.expect(TokSemi, ";"); err != nil {
			return nil, err
		}
		return &CContinue{Line: line}, nil
	case TokWhile:
		return p.parseWhile()
	case TokDo:
		return p.parseDoWhile()
	case TokFor:
		return p.parseFor()
	case TokSwitch:
		return p.parseSwitch()
	case TokCase:
		return p.parseCase()
	case TokDefault:
		return p.parseDefault()
	case TokGoto:
		p.advance()
		tgt, err := p.expect(TokIdentifier, "label name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokSemi, ";"); err != nil {
			return nil, err
		}
		return &CGoto{Target: tgt.IText, Line: line}, nil
	case TokIdentifier:
		if p.peekAt(1).Kind == TokColon {
			name := p.advance()
			p.advance() // :
			body, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			return &CLabel{Name: name.IText, Body: body, Line: line}, nil
		}
	}
	exp, err := p.parseExpression(1)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokSemi, ";"); err != nil {
		return nil, err
	}
	return &CExpressionStmt{Exp: exp, Line: line}, nil
}

func (p *Parser) parseIf() (CStatement, error) {
	line := p.cur().Line
	p.advance()
	if _, err := p.expect(TokLParen, "("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(1)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	stmt := &CIf{Cond: cond, Then: then, Line: line}
	if p.check(TokElse) {
		p.advance()
		els, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmt.Else = els
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (CStatement, error) {
	line := p.cur().Line
	p.advance()
	if _, err := p.expect(TokLParen, "("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(1)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &CWhile{Cond: cond, Body: body, Line: line}, nil
}

func (p *Parser) parseDoWhile() (CStatement, error) {
	line := p.cur().Line
	p.advance()
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokWhile, "while"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen, "("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(1)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokSemi, ";"); err != nil {
		return nil, err
	}
	return &CDoWhile{Body: body, Cond: cond, Line: line}, nil
}

func (p *Parser) parseFor() (CStatement, error) {
	line := p.cur().Line
	p.advance()
	if _, err := p.expect(TokLParen, "("); err != nil {
		return nil, err
	}
	var init CForInit
	if p.startsDeclaration() {
		decl, err := p.parseLocalDeclaration() // consumes trailing ';'
		if err != nil {
			return nil, err
		}
		vd, ok := decl.(*CVarDecl)
		if !ok {
			return nil, newParseError(line, "for-init declaration must be a variable")
		}
		init = CInitDecl{Decl: vd}
	} else if p.check(TokSemi) {
		p.advance()
		init = CInitExp{}
	} else {
		exp, err := p.parseExpression(1)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokSemi, ";"); err != nil {
			return nil, err
		}
		init = CInitExp{Exp: exp}
	}

	var cond CExp
	if !p.check(TokSemi) {
		var err error
		cond, err = p.parseExpression(1)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokSemi, ";"); err != nil {
		return nil, err
	}

	var post CExp
	if !p.check(TokRParen) {
		var err error
		post, err = p.parseExpression(1)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &CFor{Init: init, Cond: cond, Post: post, Body: body, Line: line}, nil
}

func (p *Parser) parseSwitch() (CStatement, error) {
	line := p.cur().Line
	p.advance()
	if _, err := p.expect(TokLParen, "("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(1)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &CSwitch{Cond: cond, Body: body, Line: line}, nil
}

func (p *Parser) parseCase() (CStatement, error) {
	line := p.cur().Line
	p.advance()
	val, err := p.parseExpression(1)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokColon, ":"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &CCase{Value: val, Body: body, Line: line}, nil
}

func (p *Parser) parseDefault() (CStatement, error) {
	line := p.cur().Line
	p.advance()
	if _, err := p.expect(TokColon, ":"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &CDefault{Body: body, Line: line}, nil
}

// --- expressions: precedence climbing ----------------------------------------

func binaryPrecedence(k TokenKind) (int, BinaryOp, bool) {
	switch k {
	case TokStar:
		return 50, BinMul, true
	case TokSlash:
		return 50, BinDiv, true
	case TokPercent:
		return 50, BinMod, true
	case TokPlus:
		return 45, BinAdd, true
	case TokMinus:
		return 45, BinSub, true
	case TokShl:
		return 40, BinShl, true
	case TokShr:
		return 40, BinShr, true
	case TokLt:
		return 35, BinLess, true
	case TokGt:
		return 35, BinGreater, true
	case TokLe:
		return 35, BinLessEqual, true
	case TokGe:
		return 35, BinGreaterEqual, true
	case TokEq:
		return 30, BinEqual, true
	case TokNe:
		return 30, BinNotEqual, true
	case TokAmp:
		return 25, BinAnd, true
	case TokCaret:
		return 20, BinXor, true
	case TokPipe:
		return 15, BinOr, true
	case TokAndAnd:
		return 10, BinAndAnd, true
	case TokOrOr:
		return 5, BinOrOr, true
	default:
		return 0, 0, false
	}
}

var compoundAssignOps = map[TokenKind]BinaryOp{
	TokPlusAssign:    BinAdd,
	TokMinusAssign:   BinSub,
	TokStarAssign:    BinMul,
	TokSlashAssign:   BinDiv,
	TokPercentAssign: BinMod,
	TokAmpAssign:     BinAnd,
	TokPipeAssign:    BinOr,
	TokCaretAssign:   BinXor,
	TokShlAssign:     BinShl,
	TokShrAssign:     BinShr,
}

// parseExpression implements precedence climbing: ternary (prec 3) and
// assignment (prec 1) bind right-associatively; everything else left.
func (p *Parser) parseExpression(minPrec int) (CExp, error) {
	left, err := p.parseUnaryChain()
	if err != nil {
		return nil, err
	}
	for {
		line := p.cur().Line
		if op, ok := compoundAssignOps[p.cur().Kind]; ok && minPrec <= 1 {
			p.advance()
			right, err := p.parseExpression(1)
			if err != nil {
				return nil, err
			}
			left = &CCompoundAssignment{Op: op, Left: left, Right: right, expBase: expBase{Line: line}}
			continue
		}
		if p.check(TokAssign) && minPrec <= 1 {
			p.advance()
			right, err := p.parseExpression(1)
			if err != nil {
				return nil, err
			}
			left = &CAssignment{Left: left, Right: right, expBase: expBase{Line: line}}
			continue
		}
		if p.check(TokQuestion) && minPrec <= 3 {
			p.advance()
			then, err := p.parseExpression(1)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokColon, ":"); err != nil {
				return nil, err
			}
			els, err := p.parseExpression(3)
			if err != nil {
				return nil, err
			}
			left = &CConditional{Cond: left, Then: then, Else: els, expBase: expBase{Line: line}}
			continue
		}
		prec, op, ok := binaryPrecedence(p.cur().Kind)
		if !ok || prec < minPrec {
			return left, nil
		}
		p.advance()
		right, err := p.parseExpression(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &CBinary{Op: op, Left: left, Right: right, expBase: expBase{Line: line}}
	}
}

func (p *Parser) parseUnaryChain() (CExp, error) {
	line := p.cur().Line
	switch p.cur().Kind {
	case TokMinus:
		p.advance()
		e, err := p.parseUnaryChain()
		if err != nil {
			return nil, err
		}
		return &CUnary{Op: UnaryNegate, Exp: e, expBase: expBase{Line: line}}, nil
	case TokTilde:
		p.advance()
		e, err := p.parseUnaryChain()
		if err != nil {
			return nil, err
		}
		return &CUnary{Op: UnaryComplement, Exp: e, expBase: expBase{Line: line}}, nil
	case TokBang:
		p.advance()
		e, err := p.parseUnaryChain()
		if err != nil {
			return nil, err
		}
		return &CUnary{Op: UnaryNot, Exp: e, expBase: expBase{Line: line}}, nil
	case TokStar:
		p.advance()
		e, err := p.parseUnaryChain()
		if err != nil {
			return nil, err
		}
		return &CDereference{Exp: e, expBase: expBase{Line: line}}, nil
	case TokAmp:
		p.advance()
		e, err := p.parseUnaryChain()
		if err != nil {
			return nil, err
		}
		return &CAddrOf{Exp: e, expBase: expBase{Line: line}}, nil
	case TokIncr:
		p.advance()
		e, err := p.parseUnaryChain()
		if err != nil {
			return nil, err
		}
		return &CPrefix{Op: OpIncr, Exp: e, expBase: expBase{Line: line}}, nil
	case TokDecr:
		p.advance()
		e, err := p.parseUnaryChain()
		if err != nil {
			return nil, err
		}
		return &CPrefix{Op: OpDecr, Exp: e, expBase: expBase{Line: line}}, nil
	case TokSizeof:
		return p.parseSizeof()
	case TokLParen:
		if p.looksLikeTypeStart(1) {
			p.advance()
			t, err := p.parseAbstractType()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokRParen, ")"); err != nil {
				return nil, err
			}
			e, err := p.parseUnaryChain()
			if err != nil {
				return nil, err
			}
			return &CCast{Target: t, Exp: e, expBase: expBase{Line: line}}, nil
		}
	}
	return p.parsePostfix()
}

func (p *Parser) parseSizeof() (CExp, error) {
	line := p.cur().Line
	p.advance()
	if p.check(TokLParen) && p.looksLikeTypeStart(1) {
		p.advance()
		t, err := p.parseAbstractType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, ")"); err != nil {
			return nil, err
		}
		return &CSizeOfType{TargetType: t, expBase: expBase{Line: line}}, nil
	}
	e, err := p.parseUnaryChain()
	if err != nil {
		return nil, err
	}
	return &CSizeOfExp{Exp: e, expBase: expBase{Line: line}}, nil
}

func (p *Parser) parsePostfix() (CExp, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		line := p.cur().Line
		switch p.cur().Kind {
		case TokLBracket:
			p.advance()
			idx, err := p.parseExpression(1)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokRBracket, "]"); err != nil {
				return nil, err
			}
			e = &CSubscript{Ptr: e, Idx: idx, expBase: expBase{Line: line}}
		case TokDot:
			p.advance()
			m, err := p.expect(TokIdentifier, "member name")
			if err != nil {
				return nil, err
			}
			e = &CDot{Struct: e, Member: m.IText, expBase: expBase{Line: line}}
		case TokArrow:
			p.advance()
			m, err := p.expect(TokIdentifier, "member name")
			if err != nil {
				return nil, err
			}
			e = &CArrow{Ptr: e, Member: m.IText, expBase: expBase{Line: line}}
		case TokIncr:
			p.advance()
			e = &CPostfix{Op: OpIncr, Exp: e, expBase: expBase{Line: line}}
		case TokDecr:
			p.advance()
			e = &CPostfix{Op: OpDecr, Exp: e, expBase: expBase{Line: line}}
		default:
			return e, nil
		}
	}
}

func (p *Parser) parsePrimary() (CExp, error) {
	tok := p.cur()
	switch tok.Kind {
	case TokConstant:
		p.advance()
		v, err := strconv.ParseInt(tok.Text, 0, 64)
		if err != nil {
			return nil, newParseError(tok.Line, "constant %q out of range for int", tok.Text)
		}
		if v > 1<<31-1 || v < -(1<<31) {
			return nil, newParseError(tok.Line, "constant %q out of range for int", tok.Text)
		}
		return &CConstInt{Value: v, ValueType: TypeInt, expBase: expBase{Line: tok.Line}}, nil
	case TokLongConstant:
		p.advance()
		v, err := strconv.ParseInt(tok.Text, 0, 64)
		if err != nil {
			return nil, newParseError(tok.Line, "constant %q out of range for long", tok.Text)
		}
		return &CConstInt{Value: v, ValueType: TypeLong, expBase: expBase{Line: tok.Line}}, nil
	case TokUnsignedConstant:
		p.advance()
		v, err := strconv.ParseUint(tok.Text, 0, 64)
		if err != nil || v > 1<<32-1 {
			return nil, newParseError(tok.Line, "constant %q out of range for unsigned int", tok.Text)
		}
		return &CConstInt{Value: int64(v), ValueType: TypeUInt, expBase: expBase{Line: tok.Line}}, nil
	case TokUnsignedLongConstant:
		p.advance()
		v, err := strconv.ParseUint(tok.Text, 0, 64)
		if err != nil {
			return nil, newParseError(tok.Line, "constant %q out of range for unsigned long", tok.Text)
		}
		return &CConstInt{Value: int64(v), ValueType: TypeULong, expBase: expBase{Line: tok.Line}}, nil
	case TokFloatConstant:
		p.advance()
		v, _ := strconv.ParseFloat(tok.Text, 64)
		return &CConstDouble{Value: v, expBase: expBase{Line: tok.Line}}, nil
	case TokCharConstant:
		p.advance()
		return &CConstInt{Value: int64(tok.Text[0]), ValueType: TypeInt, expBase: expBase{Line: tok.Line}}, nil
	case TokStringLiteral:
		p.advance()
		return &CString{Value: []byte(tok.Text), expBase: expBase{Line: tok.Line}}, nil
	case TokIdentifier:
		p.advance()
		if p.check(TokLParen) {
			p.advance()
			var args []CExp
			if !p.check(TokRParen) {
				for {
					a, err := p.parseExpression(1)
					if err != nil {
						return nil, err
					}
					args = append(args, a)
					if p.check(TokComma) {
						p.advance()
						continue
					}
					break
				}
			}
			if _, err := p.expect(TokRParen, ")"); err != nil {
				return nil, err
			}
			return &CFunctionCall{Name: tok.IText, Args: args, expBase: expBase{Line: tok.Line}}, nil
		}
		return &CVar{Name: tok.IText, expBase: expBase{Line: tok.Line}}, nil
	case TokLParen:
		p.advance()
		e, err := p.parseExpression(1)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, ")"); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, newParseError(tok.Line, "unexpected token %q in expression", tok.Text)
	}
}
