package main

import "github.com/samber/lo"

// SymbolAttrs: the four front-symbol attribute variants.
type SymbolAttrs interface{ symAttrNode() }

type FunAttr struct {
	Defined bool
	Global  bool
}

type StaticAttr struct {
	Global bool
	Init   InitialValue
}

type ConstantAttr struct {
	Init StaticInit
}

type LocalAttr struct{}

func (FunAttr) symAttrNode()      {}
func (StaticAttr) symAttrNode()   {}
func (ConstantAttr) symAttrNode() {}
func (LocalAttr) symAttrNode()    {}

type Symbol struct {
	Type  *Type
	Attrs SymbolAttrs
}

// FrontSymbolTable maps an interned identifier to its Symbol. Written
// during semantic analysis, read-only afterward.
type FrontSymbolTable map[InternedID]*Symbol

// StructMember is one entry of a StructTypedef.
type StructMember struct {
	Offset int64
	Type   *Type
}

type StructTypedef struct {
	Alignment   int32
	Size        int64
	MemberNames []InternedID // declaration order
	Members     map[InternedID]StructMember
}

type StructTypedefTable map[InternedID]*StructTypedef

// MemberOffsets returns the offsets of td's members in declaration order,
// used by struct-copy chunking and ABI classification.
func (td *StructTypedef) MemberOffsets() []int64 {
	return lo.Map(td.MemberNames, func(name InternedID, _ int) int64 {
		return td.Members[name].Offset
	})
}

// StringPoolEntry is one anonymous string constant, deduplicated by content
// at the call site that allocates it.
type StringPoolEntry struct {
	Label            string
	Value            []byte
	IsNullTerminated bool
}

// StringPool accumulates anonymous `string.NNN` constants created for
// char* initializers and string-literal expressions.
type StringPool struct {
	entries []StringPoolEntry
	byValue map[string]string // value -> label, first-writer-wins dedup
	names   *NameGen
}

func NewStringPool(names *NameGen) *StringPool {
	return &StringPool{byValue: make(map[string]string), names: names}
}

func (p *StringPool) Intern(value []byte, nullTerminated bool) string {
	key := string(value)
	if nullTerminated {
		key += "\x00$nt"
	}
	if label, ok := p.byValue[key]; ok {
		return label
	}
	label := p.names.Next("string")
	p.entries = append(p.entries, StringPoolEntry{Label: label, Value: value, IsNullTerminated: nullTerminated})
	p.byValue[key] = label
	return label
}

func (p *StringPool) Entries() []StringPoolEntry { return p.entries }

// DoubleConstPool deduplicates anonymous double constants by their 64-bit
// binary pattern: the label format `double.NNN` stays stable across runs
// because dedup keys off content, not insertion order alone.
type DoubleConstPool struct {
	byBits  map[uint64]string
	byLabel map[string]uint64
	names   *NameGen
	order   []uint64
}

func NewDoubleConstPool(names *NameGen) *DoubleConstPool {
	return &DoubleConstPool{byBits: make(map[uint64]string), byLabel: make(map[string]uint64), names: names}
}

func (p *DoubleConstPool) Label(bits uint64) string {
	if label, ok := p.byBits[bits]; ok {
		return label
	}
	label := p.names.Next("double")
	p.byBits[bits] = label
	p.byLabel[label] = bits
	p.order = append(p.order, bits)
	return label
}

// Bits recovers the 64-bit pattern a pooled label was minted for; the
// emitter renders it as the constant's .quad payload.
func (p *DoubleConstPool) Bits(label string) uint64 { return p.byLabel[label] }

func (p *DoubleConstPool) Entries() []uint64 { return p.order }
