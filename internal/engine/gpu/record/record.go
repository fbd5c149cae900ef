// Package record is a headless gpu backend. It keeps every created object
// and recorded command in memory so tools and tests can inspect them.
package record

import (
	"fmt"
	"image"
	"sync"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
)

// Buffer is a CPU-side buffer with a unique address range.
type Buffer struct {
	Name  string
	Usage gpu.BufferUsage
	Data  []byte
	addr  gpu.Address
}

// Address implements gpu.Buffer.
func (b *Buffer) Address() gpu.Address { return b.addr }

// Size implements gpu.Buffer.
func (b *Buffer) Size() int { return len(b.Data) }

// Texture keeps the uploaded mip chain.
type Texture struct {
	Name   string
	Mips   []*image.RGBA
	format gpu.Format
	w, h   int
}

// Width implements gpu.Texture.
func (t *Texture) Width() int { return t.w }

// Height implements gpu.Texture.
func (t *Texture) Height() int { return t.h }

// Format implements gpu.Texture.
func (t *Texture) Format() gpu.Format { return t.format }

// RootSignature wraps its description.
type RootSignature struct{ desc gpu.RootSignatureDesc }

// Desc implements gpu.RootSignature.
func (r *RootSignature) Desc() gpu.RootSignatureDesc { return r.desc }

// Pipeline wraps its description.
type Pipeline struct{ desc gpu.PipelineDesc }

// Desc implements gpu.Pipeline.
func (p *Pipeline) Desc() gpu.PipelineDesc { return p.desc }

// addressSpacing separates buffers so addresses never overlap.
const addressSpacing = 1 << 32

// Device creates in-memory objects.
type Device struct {
	mu             sync.Mutex
	Buffers        []*Buffer
	Textures       []*Texture
	RootSignatures []*RootSignature
	Pipelines      []*Pipeline
}

// NewDevice returns an empty recording device.
func NewDevice() *Device {
	return &Device{}
}

// CreateBuffer implements gpu.Device.
func (d *Device) CreateBuffer(name string, size int, usage gpu.BufferUsage) (gpu.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer %q of size %d", gpu.ErrUnsupported, name, size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b := &Buffer{
		Name:  name,
		Usage: usage,
		Data:  make([]byte, size),
		addr:  gpu.Address(len(d.Buffers)+1) * addressSpacing,
	}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

// CreateTexture implements gpu.Device.
func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if len(desc.Mips) == 0 {
		return nil, fmt.Errorf("%w: texture %q without data", gpu.ErrUnsupported, desc.Name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b := desc.Mips[0].Bounds()
	t := &Texture{Name: desc.Name, format: desc.Format, w: b.Dx(), h: b.Dy()}
	d.Textures = append(d.Textures, t)
	return t, nil
}

// CreateRootSignature implements gpu.Device.
func (d *Device) CreateRootSignature(desc gpu.RootSignatureDesc) (gpu.RootSignature, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rs := &RootSignature{desc: desc}
	d.RootSignatures = append(d.RootSignatures, rs)
	return rs, nil
}

// CreatePipeline implements gpu.Device.
func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	if desc.RootSignature == nil {
		return nil, fmt.Errorf("%w: pipeline %q without root signature", gpu.ErrUnsupported, desc.Name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &Pipeline{desc: desc}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

// CreateDescriptorPile implements gpu.Device.
func (d *Device) CreateDescriptorPile(capacity int) (gpu.DescriptorPile, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: descriptor pile of capacity %d", gpu.ErrUnsupported, capacity)
	}
	return NewPile(capacity), nil
}

// Upload queues copies and applies them on Flush.
type Upload struct {
	buffers  []bufferCopy
	textures []textureCopy
	Flushes  int
}

type bufferCopy struct {
	dst    gpu.Buffer
	offset int
	src    []byte
}

type textureCopy struct {
	dst  gpu.Texture
	mips []*image.RGBA
}

// UploadBuffer implements gpu.UploadBatch.
func (u *Upload) UploadBuffer(dst gpu.Buffer, offset int, src []byte) {
	u.buffers = append(u.buffers, bufferCopy{dst, offset, src})
}

// UploadTexture implements gpu.UploadBatch.
func (u *Upload) UploadTexture(dst gpu.Texture, mips []*image.RGBA) {
	u.textures = append(u.textures, textureCopy{dst, mips})
}

// Pending returns the number of queued copies.
func (u *Upload) Pending() int {
	return len(u.buffers) + len(u.textures)
}

// Flush implements gpu.UploadBatch.
func (u *Upload) Flush() error {
	for _, c := range u.buffers {
		b, ok := c.dst.(*Buffer)
		if !ok {
			return fmt.Errorf("%w: foreign buffer %T", gpu.ErrUnsupported, c.dst)
		}
		if c.offset+len(c.src) > len(b.Data) {
			return fmt.Errorf("upload of %d bytes at %d overflows buffer %q (%d bytes)", len(c.src), c.offset, b.Name, len(b.Data))
		}
		copy(b.Data[c.offset:], c.src)
	}
	for _, c := range u.textures {
		t, ok := c.dst.(*Texture)
		if !ok {
			return fmt.Errorf("%w: foreign texture %T", gpu.ErrUnsupported, c.dst)
		}
		t.Mips = c.mips
	}
	u.buffers = u.buffers[:0]
	u.textures = u.textures[:0]
	u.Flushes++
	return nil
}
