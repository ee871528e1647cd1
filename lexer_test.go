package main

import "testing"

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := NewLexer(src, NewInterner()).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	return toks
}

func TestLexKindSequence(t *testing.T) {
	toks := lexAll(t, "int main(void) { return 42; }")
	want := []TokenKind{
		TokInt, TokIdentifier, TokLParen, TokVoid, TokRParen, TokLBrace,
		TokReturn, TokConstant, TokSemi, TokRBrace, TokEOF,
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: got kind %d (%q), want %d", i, toks[i].Kind, toks[i].Text, k)
		}
	}
}

func TestLexIntegerSuffixes(t *testing.T) {
	cases := []struct {
		src  string
		kind TokenKind
	}{
		{"42", TokConstant},
		{"42l", TokLongConstant},
		{"42L", TokLongConstant},
		{"42u", TokUnsignedConstant},
		{"42U", TokUnsignedConstant},
		{"42ul", TokUnsignedLongConstant},
		{"42lu", TokUnsignedLongConstant},
		{"42UL", TokUnsignedLongConstant},
		{"2.5", TokFloatConstant},
		{"1e3", TokFloatConstant},
		{".5", TokFloatConstant},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			toks := lexAll(t, c.src)
			if toks[0].Kind != c.kind {
				t.Errorf("%q: got kind %d, want %d", c.src, toks[0].Kind, c.kind)
			}
		})
	}
}

func TestLexCommentsAndDirectivesDiscarded(t *testing.T) {
	src := "#include <stdio.h>\n// line comment\n/* block\ncomment */ int x;"
	toks := lexAll(t, src)
	if toks[0].Kind != TokInt {
		t.Fatalf("first token after comments/directives: got %q", toks[0].Text)
	}
}

func TestLexLineNumbers(t *testing.T) {
	toks := lexAll(t, "int\n\nx\n;")
	if toks[1].Kind != TokIdentifier || toks[1].Line != 3 {
		t.Errorf("identifier line: got %d, want 3", toks[1].Line)
	}
	if toks[2].Line != 4 {
		t.Errorf("semicolon line: got %d, want 4", toks[2].Line)
	}
}

func TestLexOperators(t *testing.T) {
	toks := lexAll(t, "a += b << 2; c && d->e++;")
	kinds := []TokenKind{}
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	want := []TokenKind{
		TokIdentifier, TokPlusAssign, TokIdentifier, TokShl, TokConstant, TokSemi,
		TokIdentifier, TokAndAnd, TokIdentifier, TokArrow, TokIdentifier, TokIncr, TokSemi,
		TokEOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: got %d, want %d", i, kinds[i], want[i])
		}
	}
}

func TestLexUnterminatedString(t *testing.T) {
	_, err := NewLexer("\"abc", NewInterner()).Tokenize()
	if err == nil {
		t.Fatal("expected error for unterminated string literal")
	}
}

func TestLexCharConstant(t *testing.T) {
	toks := lexAll(t, "'a' '\\n'")
	if toks[0].Kind != TokCharConstant || toks[1].Kind != TokCharConstant {
		t.Fatalf("char constants not recognized: %v %v", toks[0].Kind, toks[1].Kind)
	}
}
