package resources

import "fmt"

type tableKey struct {
	pass     string
	material int
}

type table struct {
	first int
	size  int
}

// MaterialTable returns the first pile slot of the n descriptors pass keeps
// for material. The slots are allocated on the first request and handed
// back unchanged afterwards, so a pass rebuilt many times does not grow the
// append-only pile. Callers rewrite the textures on every build.
func (b *Binder) MaterialTable(pass string, material, n int) (int, error) {
	key := tableKey{pass, material}
	if t, ok := b.tables[key]; ok && t.size >= n {
		return t.first, nil
	}
	first, err := b.pile.Allocate(n)
	if err != nil {
		return 0, fmt.Errorf("%s material %d: %w", pass, material, err)
	}
	b.tables[key] = table{first: first, size: n}
	return first, nil
}
