package record

import (
	"fmt"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
)

// ringBase keeps ring addresses clear of buffer addresses.
const ringBase gpu.Address = 1 << 62

// ConstantAlignment is the alignment of every ring allocation.
const ConstantAlignment = 256

// Ring is a constant ring that remembers the bytes of every allocation made
// in the current frame.
type Ring struct {
	Frame  int
	offset int
	allocs map[gpu.Address][]byte
}

// NewRing returns an empty ring.
func NewRing() *Ring {
	return &Ring{allocs: make(map[gpu.Address][]byte)}
}

// Allocate implements gpu.ConstantRing.
func (r *Ring) Allocate(data []byte) gpu.Address {
	addr := ringBase + gpu.Address(r.Frame)<<40 + gpu.Address(r.offset)
	r.allocs[addr] = append([]byte(nil), data...)
	r.offset += (max(len(data), 1) + ConstantAlignment - 1) / ConstantAlignment * ConstantAlignment
	return addr
}

// BeginFrame implements gpu.ConstantRing.
func (r *Ring) BeginFrame() {
	r.Frame++
	r.offset = 0
	clear(r.allocs)
}

// Lookup returns the bytes written at addr during the current frame.
func (r *Ring) Lookup(addr gpu.Address) ([]byte, bool) {
	b, ok := r.allocs[addr]
	return b, ok
}

// Allocations returns the number of allocations made this frame.
func (r *Ring) Allocations() int {
	return len(r.allocs)
}

// handleBase keeps descriptor handles non-zero.
const handleBase gpu.DescriptorHandle = 1 << 20

// Pile is an append-only descriptor table.
type Pile struct {
	Slots []gpu.Texture
	used  int
}

// NewPile returns a pile with room for capacity descriptors.
func NewPile(capacity int) *Pile {
	return &Pile{Slots: make([]gpu.Texture, capacity)}
}

// Allocate implements gpu.DescriptorPile.
func (p *Pile) Allocate(n int) (int, error) {
	if n < 0 || p.used+n > len(p.Slots) {
		return 0, fmt.Errorf("descriptor pile full: %d used, %d requested, capacity %d", p.used, n, len(p.Slots))
	}
	first := p.used
	p.used += n
	return first, nil
}

// Len implements gpu.DescriptorPile.
func (p *Pile) Len() int { return p.used }

// Capacity implements gpu.DescriptorPile.
func (p *Pile) Capacity() int { return len(p.Slots) }

// SetTexture implements gpu.DescriptorPile.
func (p *Pile) SetTexture(slot int, tex gpu.Texture) error {
	if slot < 0 || slot >= p.used {
		return fmt.Errorf("descriptor slot %d not allocated", slot)
	}
	p.Slots[slot] = tex
	return nil
}

// Handle implements gpu.DescriptorPile.
func (p *Pile) Handle(slot int) gpu.DescriptorHandle {
	return handleBase + gpu.DescriptorHandle(slot)
}

// SlotOf converts a handle back to its slot.
func (p *Pile) SlotOf(h gpu.DescriptorHandle) int {
	return int(h - handleBase)
}
