package glbackend

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/logger"
)

// ringAllocator splits a buffer into one region per frame in flight and
// bump-allocates aligned blocks inside the current region.
type ringAllocator struct {
	align  int
	region int
	frames int
	frame  int
	offset int
}

func (r *ringAllocator) alloc(n int) (int, bool) {
	size := (max(n, 1) + r.align - 1) / r.align * r.align
	if r.offset+size > r.region {
		return 0, false
	}
	at := r.frame*r.region + r.offset
	r.offset += size
	return at, true
}

func (r *ringAllocator) begin() {
	r.frame = (r.frame + 1) % r.frames
	r.offset = 0
}

// Ring is a uniform buffer shared by all constant allocations.
type Ring struct {
	id       uint32
	alloc    ringAllocator
	overflow bool
}

// CreateRing creates a ring with regionSize bytes for each of frames
// frames.
func (d *Device) CreateRing(regionSize, frames int) (*Ring, error) {
	if regionSize <= 0 || frames <= 0 {
		return nil, fmt.Errorf("%w: ring of %d x %d bytes", gpu.ErrUnsupported, frames, regionSize)
	}
	var align int32
	gl.GetIntegerv(gl.UNIFORM_BUFFER_OFFSET_ALIGNMENT, &align)
	r := &Ring{alloc: ringAllocator{align: max(int(align), 16), region: regionSize, frames: frames}}
	gl.GenBuffers(1, &r.id)
	gl.BindBuffer(gl.UNIFORM_BUFFER, r.id)
	gl.BufferData(gl.UNIFORM_BUFFER, regionSize*frames, nil, gl.STREAM_DRAW)
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
	if err := glError("create constant ring"); err != nil {
		gl.DeleteBuffers(1, &r.id)
		return nil, err
	}
	d.buffers[r.id] = &Buffer{name: "constant ring", id: r.id, size: regionSize * frames}
	return r, nil
}

// Allocate implements gpu.ConstantRing. A full region yields the null
// address.
func (r *Ring) Allocate(data []byte) gpu.Address {
	at, ok := r.alloc.alloc(len(data))
	if !ok {
		if !r.overflow {
			logger.Error("constant ring region full", zap.Int("region", r.alloc.region))
			r.overflow = true
		}
		return 0
	}
	if len(data) > 0 {
		gl.BindBuffer(gl.UNIFORM_BUFFER, r.id)
		gl.BufferSubData(gl.UNIFORM_BUFFER, at, len(data), gl.Ptr(data))
		gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
	}
	return encodeAddress(r.id, at)
}

// BeginFrame implements gpu.ConstantRing.
func (r *Ring) BeginFrame() {
	r.alloc.begin()
	r.overflow = false
}

// Pile is a descriptor table of texture names.
type Pile struct {
	id    int
	slots []*Texture
	used  int
}

// Allocate implements gpu.DescriptorPile.
func (p *Pile) Allocate(n int) (int, error) {
	if n < 0 || p.used+n > len(p.slots) {
		return 0, fmt.Errorf("descriptor pile full: %d used, %d requested, capacity %d", p.used, n, len(p.slots))
	}
	first := p.used
	p.used += n
	return first, nil
}

// Len implements gpu.DescriptorPile.
func (p *Pile) Len() int { return p.used }

// Capacity implements gpu.DescriptorPile.
func (p *Pile) Capacity() int { return len(p.slots) }

// SetTexture implements gpu.DescriptorPile.
func (p *Pile) SetTexture(slot int, tex gpu.Texture) error {
	if slot < 0 || slot >= p.used {
		return fmt.Errorf("descriptor slot %d not allocated", slot)
	}
	t, ok := tex.(*Texture)
	if !ok {
		return fmt.Errorf("%w: foreign texture %T", gpu.ErrUnsupported, tex)
	}
	p.slots[slot] = t
	return nil
}

// Handle implements gpu.DescriptorPile.
func (p *Pile) Handle(slot int) gpu.DescriptorHandle {
	return encodeHandle(p.id, slot)
}
