// Package shader names precompiled shader permutations and loads their
// bytecode.
package shader

import (
	"maps"
	"slices"
	"strings"
)

// hashSeed is the FNV offset basis the offline permutation tooling starts
// from.
const hashSeed uint64 = 2166136261

// hashPrime is the 32-bit FNV prime.
const hashPrime uint64 = 16777619

// Defines is a set of preprocessor defines. Iteration for hashing and
// printing is always in key order.
type Defines map[string]string

// Clone returns an independent copy.
func (d Defines) Clone() Defines {
	return maps.Clone(d)
}

// Merge returns a copy of d with every define in other added, other
// winning on conflicts.
func (d Defines) Merge(other Defines) Defines {
	out := d.Clone()
	if out == nil {
		out = make(Defines, len(other))
	}
	maps.Copy(out, other)
	return out
}

// Has reports whether name is defined.
func (d Defines) Has(name string) bool {
	_, ok := d[name]
	return ok
}

// Keys returns the define names in sorted order.
func (d Defines) Keys() []string {
	return slices.Sorted(maps.Keys(d))
}

// Hash returns the 32-bit permutation key. Every name and value is folded
// byte by byte in key order, matching the names of precompiled files.
func (d Defines) Hash() uint32 {
	h := hashSeed
	fold := func(s string) {
		for i := 0; i < len(s); i++ {
			// Bytes are folded as signed chars.
			h = (h * hashPrime) ^ uint64(int64(int8(s[i])))
		}
	}
	for _, k := range d.Keys() {
		fold(k)
		fold(d[k])
	}
	return uint32(h)
}

// String renders the defines as #define lines, one per key.
func (d Defines) String() string {
	var b strings.Builder
	for _, k := range d.Keys() {
		b.WriteString("#define ")
		b.WriteString(k)
		b.WriteByte(' ')
		b.WriteString(d[k])
		b.WriteByte('\n')
	}
	return b.String()
}
