// Package glbackend implements the gpu contracts on OpenGL 4.1 core. It
// must be used from the goroutine that owns the GL context.
//
// OpenGL has no GPU virtual addresses, so buffer addresses pack the GL
// object name in the high 32 bits and a byte offset in the low bits.
// Pipeline "bytecode" is GLSL source: vertex attributes use the location of
// their input layout entry, constant buffer b<N> is the uniform block named
// cb<N> and texture register t<N> is the sampler uniform t<N> on unit N.
package glbackend

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/logger"
)

// maxUniformBlock is the smallest GL_MAX_UNIFORM_BLOCK_SIZE a conforming
// implementation offers.
const maxUniformBlock = 16 << 10

// Buffer is a GL buffer object.
type Buffer struct {
	name string
	id   uint32
	size int
}

// Address implements gpu.Buffer.
func (b *Buffer) Address() gpu.Address { return encodeAddress(b.id, 0) }

// Size implements gpu.Buffer.
func (b *Buffer) Size() int { return b.size }

// ID returns the GL buffer name.
func (b *Buffer) ID() uint32 { return b.id }

// Texture is a GL 2D texture.
type Texture struct {
	id     uint32
	w, h   int
	format gpu.Format
}

// Width implements gpu.Texture.
func (t *Texture) Width() int { return t.w }

// Height implements gpu.Texture.
func (t *Texture) Height() int { return t.h }

// Format implements gpu.Texture.
func (t *Texture) Format() gpu.Format { return t.format }

// ID returns the GL texture name.
func (t *Texture) ID() uint32 { return t.id }

// RootSignature keeps its description and one sampler object per static
// sampler.
type RootSignature struct {
	desc     gpu.RootSignatureDesc
	samplers map[int]uint32
}

// Desc implements gpu.RootSignature.
func (r *RootSignature) Desc() gpu.RootSignatureDesc { return r.desc }

// Pipeline is a linked program plus the fixed-function state to apply with
// it.
type Pipeline struct {
	desc    gpu.PipelineDesc
	program uint32
}

// Desc implements gpu.Pipeline.
func (p *Pipeline) Desc() gpu.PipelineDesc { return p.desc }

// Device creates GL objects. Only one exists per context.
type Device struct {
	buffers map[uint32]*Buffer
	piles   []*Pile
}

// NewDevice wraps the current GL context. gl.Init must have been called.
func NewDevice() *Device {
	logger.Info("OpenGL device",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)
	return &Device{buffers: make(map[uint32]*Buffer)}
}

// CreateBuffer implements gpu.Device.
func (d *Device) CreateBuffer(name string, size int, usage gpu.BufferUsage) (gpu.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer %q of size %d", gpu.ErrUnsupported, name, size)
	}
	b := &Buffer{name: name, size: size}
	gl.GenBuffers(1, &b.id)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, b.id)
	gl.BufferData(gl.COPY_WRITE_BUFFER, size, nil, gl.STATIC_DRAW)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	if err := glError("create buffer " + name); err != nil {
		gl.DeleteBuffers(1, &b.id)
		return nil, err
	}
	d.buffers[b.id] = b
	return b, nil
}

// CreateTexture implements gpu.Device. Storage for every mip is allocated
// now and filled by the upload batch.
func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if len(desc.Mips) == 0 {
		return nil, fmt.Errorf("%w: texture %q without data", gpu.ErrUnsupported, desc.Name)
	}
	tf, ok := textureFormats[desc.Format]
	if !ok {
		return nil, fmt.Errorf("%w: texture format %d", gpu.ErrUnsupported, desc.Format)
	}
	b := desc.Mips[0].Bounds()
	t := &Texture{w: b.Dx(), h: b.Dy(), format: desc.Format}
	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	for level, mip := range desc.Mips {
		mb := mip.Bounds()
		gl.TexImage2D(gl.TEXTURE_2D, int32(level), tf.internal, int32(mb.Dx()), int32(mb.Dy()), 0, tf.format, tf.xtype, nil)
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, int32(len(desc.Mips)-1))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if err := glError("create texture " + desc.Name); err != nil {
		gl.DeleteTextures(1, &t.id)
		return nil, err
	}
	return t, nil
}

// CreateDepthTexture returns a depth texture usable both as a render target
// and, through a comparison sampler, as a shadow map.
func (d *Device) CreateDepthTexture(width, height int) (*Texture, error) {
	t := &Texture{w: width, h: height, format: gpu.FormatD32Float}
	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.DEPTH_COMPONENT32F, int32(width), int32(height), 0, gl.DEPTH_COMPONENT, gl.FLOAT, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if err := glError("create depth texture"); err != nil {
		gl.DeleteTextures(1, &t.id)
		return nil, err
	}
	return t, nil
}

// CreateRootSignature implements gpu.Device.
func (d *Device) CreateRootSignature(desc gpu.RootSignatureDesc) (gpu.RootSignature, error) {
	rs := &RootSignature{desc: desc, samplers: make(map[int]uint32, len(desc.Samplers))}
	for _, s := range desc.Samplers {
		var id uint32
		gl.GenSamplers(1, &id)
		configureSampler(id, s)
		rs.samplers[s.Register] = id
	}
	if err := glError("create root signature " + desc.Name); err != nil {
		return nil, err
	}
	return rs, nil
}

// textureMaxAnisotropy is GL_TEXTURE_MAX_ANISOTROPY, core only since 4.6.
const textureMaxAnisotropy = 0x84FE

func configureSampler(id uint32, s gpu.SamplerDesc) {
	wrap := int32(gl.REPEAT)
	switch s.Address {
	case gpu.AddressClamp:
		wrap = gl.CLAMP_TO_EDGE
	case gpu.AddressBorder:
		wrap = gl.CLAMP_TO_BORDER
	}
	gl.SamplerParameteri(id, gl.TEXTURE_WRAP_S, wrap)
	gl.SamplerParameteri(id, gl.TEXTURE_WRAP_T, wrap)

	switch s.Filter {
	case gpu.FilterMinMagLinearMipPoint:
		gl.SamplerParameteri(id, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_NEAREST)
		gl.SamplerParameteri(id, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	case gpu.FilterComparisonLinear:
		gl.SamplerParameteri(id, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		gl.SamplerParameteri(id, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
		gl.SamplerParameteri(id, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
		gl.SamplerParameteri(id, gl.TEXTURE_COMPARE_FUNC, int32(compareFunc(s.Compare)))
	default:
		gl.SamplerParameteri(id, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
		gl.SamplerParameteri(id, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	}
	if s.Filter == gpu.FilterAnisotropic && s.MaxAnisotropy > 1 {
		gl.SamplerParameterf(id, textureMaxAnisotropy, float32(s.MaxAnisotropy))
	}
}

// CreatePipeline implements gpu.Device. VS and PS hold GLSL source.
func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	rs, ok := desc.RootSignature.(*RootSignature)
	if !ok {
		return nil, fmt.Errorf("%w: pipeline %q needs a GL root signature", gpu.ErrUnsupported, desc.Name)
	}
	for _, e := range desc.InputLayout {
		if _, ok := vertexFormats[e.Format]; !ok {
			return nil, fmt.Errorf("%w: %s%d vertex format %d", gpu.ErrUnsupported, e.Semantic, e.SemanticIndex, e.Format)
		}
	}
	program, err := linkProgram(desc.VS, desc.PS)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", desc.Name, err)
	}
	bindRegisters(program, rs.desc)
	return &Pipeline{desc: desc, program: program}, nil
}

// CreateDescriptorPile implements gpu.Device.
func (d *Device) CreateDescriptorPile(capacity int) (gpu.DescriptorPile, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: descriptor pile of capacity %d", gpu.ErrUnsupported, capacity)
	}
	p := &Pile{id: len(d.piles) + 1, slots: make([]*Texture, capacity)}
	d.piles = append(d.piles, p)
	return p, nil
}

// pile resolves a handle to its pile and slot.
func (d *Device) pile(h gpu.DescriptorHandle) (*Pile, int, bool) {
	id, slot := decodeHandle(h)
	if id < 1 || id > len(d.piles) {
		return nil, 0, false
	}
	return d.piles[id-1], slot, true
}

// Upload applies buffer and texture copies with glBufferSubData and
// glTexSubImage2D on Flush.
type Upload struct {
	buffers  []bufferCopy
	textures []textureCopy
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

// Flush implements gpu.UploadBatch.
func (u *Upload) Flush() error {
	for _, c := range u.buffers {
		b, ok := c.dst.(*Buffer)
		if !ok {
			return fmt.Errorf("%w: foreign buffer %T", gpu.ErrUnsupported, c.dst)
		}
		if c.offset+len(c.src) > b.size {
			return fmt.Errorf("upload of %d bytes at %d overflows buffer %q (%d bytes)", len(c.src), c.offset, b.name, b.size)
		}
		if len(c.src) == 0 {
			continue
		}
		gl.BindBuffer(gl.COPY_WRITE_BUFFER, b.id)
		gl.BufferSubData(gl.COPY_WRITE_BUFFER, c.offset, len(c.src), gl.Ptr(c.src))
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)

	for _, c := range u.textures {
		t, ok := c.dst.(*Texture)
		if !ok {
			return fmt.Errorf("%w: foreign texture %T", gpu.ErrUnsupported, c.dst)
		}
		gl.BindTexture(gl.TEXTURE_2D, t.id)
		for level, mip := range c.mips {
			b := mip.Bounds()
			if b.Empty() {
				continue
			}
			gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(mip.Stride/4))
			gl.TexSubImage2D(gl.TEXTURE_2D, int32(level), 0, 0, int32(b.Dx()), int32(b.Dy()),
				gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(mip.Pix))
		}
	}
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	u.buffers = u.buffers[:0]
	u.textures = u.textures[:0]
	return glError("upload")
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("%s: GL error 0x%x", op, code)
	}
	return nil
}
