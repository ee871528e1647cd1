package main

import "strconv"

// Identifier interner: an append-only injective map from source strings to
// compact opaque ids.
//
// Single-threaded, process-lifetime: created at pipeline entry, read-shared
// afterward. No entry is ever rewritten once inserted.

type InternedID int32

const noIntern InternedID = -1

type Interner struct {
	ids  map[string]InternedID
	strs []string
}

func NewInterner() *Interner {
	return &Interner{ids: make(map[string]InternedID, 256)}
}

// Intern returns the id for s, assigning a fresh one on first sight.
func (in *Interner) Intern(s string) InternedID {
	if id, ok := in.ids[s]; ok {
		return id
	}
	id := InternedID(len(in.strs))
	in.strs = append(in.strs, s)
	in.ids[s] = id
	return id
}

// Lookup returns the already-interned id for s without creating one.
func (in *Interner) Lookup(s string) (InternedID, bool) {
	id, ok := in.ids[s]
	return id, ok
}

// Text returns the original string for an id. Panics on an id this interner
// never produced -- an internal-error condition, never user-triggerable.
func (in *Interner) Text(id InternedID) string {
	if int(id) < 0 || int(id) >= len(in.strs) {
		panic(internalError("Interner.Text", "out-of-range interned id"))
	}
	return in.strs[id]
}

// Fresh mints a never-before-seen name from a prefix and a monotonic
// counter, used for alpha-renamed locals, temporaries, and synthetic
// labels (e.g. "a.3", "var.12", "string.4").
type NameGen struct {
	counters map[string]int
}

func NewNameGen() *NameGen {
	return &NameGen{counters: make(map[string]int)}
}

func (g *NameGen) Next(prefix string) string {
	n := g.counters[prefix]
	g.counters[prefix] = n + 1
	return prefix + "." + strconv.Itoa(n)
}
