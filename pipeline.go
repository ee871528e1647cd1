package main

import (
	"bytes"

	"github.com/klauspost/asmfmt"
)

// Pipeline owns the process-wide contexts (interner, name generator,
// symbol tables, constant pools) and threads them explicitly through every
// pass. Single-threaded: each pass runs to completion before the next
// begins.
type Pipeline struct {
	platform Platform
	format   bool // run the emitted text through asmfmt

	in    *Interner
	names *NameGen
}

func NewPipeline(platform Platform) *Pipeline {
	return &Pipeline{platform: platform, format: true, in: NewInterner(), names: NewNameGen()}
}

// SetFormat toggles the asmfmt column-alignment pass over the final text.
func (p *Pipeline) SetFormat(on bool) { p.format = on }

// Frontend runs lex, parse, and semantic analysis, returning the typed,
// resolved AST and the analyzer that owns the symbol tables.
func (p *Pipeline) Frontend(src string) (*CProgram, *Sema, error) {
	toks, err := NewLexer(src, p.in).Tokenize()
	if err != nil {
		return nil, nil, err
	}
	prog, err := NewParser(toks, p.in).ParseProgram()
	if err != nil {
		return nil, nil, err
	}
	sema := NewSema(p.in, p.names)
	if err := sema.AnalyzeProgram(prog); err != nil {
		return nil, nil, err
	}
	return prog, sema, nil
}

// Lower runs the frontend plus AST->TAC lowering.
func (p *Pipeline) Lower(src string) (*TacProgram, *Lowerer, error) {
	prog, sema, err := p.Frontend(src)
	if err != nil {
		return nil, nil, err
	}
	lw := NewLowerer(p.in, p.names, sema.front, sema.structs, sema.strings, sema.doubles)
	tac, err := lw.LowerProgram(prog)
	if err != nil {
		return nil, nil, err
	}
	return tac, lw, nil
}

// Compile runs the whole pipeline and returns the GAS text.
func (p *Pipeline) Compile(src string) (string, error) {
	prog, sema, err := p.Frontend(src)
	if err != nil {
		return "", err
	}
	lw := NewLowerer(p.in, p.names, sema.front, sema.structs, sema.strings, sema.doubles)
	tac, err := lw.LowerProgram(prog)
	if err != nil {
		return "", err
	}

	back := BuildBackendSymbolTable(sema.front, lw.TempTypes, p.in, sema.structs, sema.strings, sema.doubles)
	PopulateFunRegMasks(sema.front, sema.structs)

	sel := NewSelector(p.in, p.names, sema.front, back, sema.structs, sema.strings, sema.doubles)
	asm := sel.SelectProgram(tac)

	NewFixup(p.in, back).FixProgram(asm)

	text := NewEmitter(p.platform, p.in, sema.doubles).EmitProgram(asm)
	if p.format {
		formatted, err := asmfmt.Format(bytes.NewBufferString(text))
		if err != nil {
			// formatting is cosmetic; fall back to the raw text
			return text, nil
		}
		return string(formatted), nil
	}
	return text, nil
}
