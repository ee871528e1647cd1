package main

import "github.com/samber/lo"

// abi.go: System-V AMD64 eightbyte classification, memoized per struct tag.

type EightbyteClass int

const (
	ClassInteger EightbyteClass = iota
	ClassSSE
	ClassMemory
)

func ceilDiv(n, d int64) int64 { return (n + d - 1) / d }

// AbiCache memoizes ClassifyStruct results per struct tag. A tag's class
// vector depends only on the struct's transitive member types, never on
// call context, so it is content-stable across a whole compilation.
type AbiCache struct {
	structs StructTypedefTable
	classes map[InternedID][]EightbyteClass
}

func NewAbiCache(structs StructTypedefTable) *AbiCache {
	return &AbiCache{structs: structs, classes: make(map[InternedID][]EightbyteClass)}
}

// Classify returns tag's per-eightbyte class vector: structs/unions over
// 16 bytes are all-MEMORY; size<=16 chunks are SSE unless some overlapping
// scalar leaf is not a double, in which case that chunk becomes INTEGER
// (this single rule also implements the union "max-conservative across
// members" requirement, since every member -- union or not -- is walked
// and can only push a chunk from SSE toward INTEGER, never back).
func (c *AbiCache) Classify(tag InternedID) []EightbyteClass {
	if cached, ok := c.classes[tag]; ok {
		return cached
	}
	td := c.structs[tag]
	n := ceilDiv(td.Size, 8)
	classes := make([]EightbyteClass, n)

	if td.Size > 16 {
		for i := range classes {
			classes[i] = ClassMemory
		}
		c.classes[tag] = classes
		return classes
	}

	for i := range classes {
		classes[i] = ClassSSE
	}
	var walkType func(t *Type, base int64)
	walkType = func(t *Type, base int64) {
		switch t.Kind {
		case TyStructure:
			walkMembers(c.structs[t.Tag], base, walkType)
		case TyArray:
			esz := SizeOfType(t.Elem, c.structs)
			for i := int64(0); i < t.ArraySize; i++ {
				walkType(t.Elem, base+i*esz)
			}
		default:
			idx := base / 8
			if idx < int64(len(classes)) && t.Kind != TyDouble {
				classes[idx] = ClassInteger
			}
		}
	}
	walkMembers(td, 0, walkType)
	c.classes[tag] = classes
	return classes
}

// walkMembers visits every member of td (every member, union or not, so a
// union's overlapping members can only push a shared chunk from SSE toward
// INTEGER, matching the "max-conservative across members" rule).
func walkMembers(td *StructTypedef, base int64, walkType func(*Type, int64)) {
	for _, name := range td.MemberNames {
		m := td.Members[name]
		walkType(m.Type, base+m.Offset)
	}
}

// eightbyteOffsets returns the byte offsets {0} or {0, 8} a size<=16 struct
// occupies, matching len(classes).
func eightbyteOffsets(classes []EightbyteClass) []int64 {
	return lo.Map(classes, func(_ EightbyteClass, i int) int64 { return int64(i) * 8 })
}

// isAllSSE / isAllInteger / hasMemoryClass are small readability helpers
// used by select_struct.go when deciding how to pass/return an aggregate.
func hasMemoryClass(classes []EightbyteClass) bool {
	for _, cl := range classes {
		if cl == ClassMemory {
			return true
		}
	}
	return false
}
