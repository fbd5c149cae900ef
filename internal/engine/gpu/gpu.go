// Package gpu defines the command-list level contracts the scene renderer
// records against. Backends implement them for a real API (OpenGL) or for
// headless recording.
package gpu

import (
	"encoding/binary"
	"errors"
	"image"
)

// ErrUnsupported is returned by a backend for a request it cannot honor.
var ErrUnsupported = errors.New("gpu: unsupported request")

// Address is a GPU-visible location of constant or buffer data. Zero is the
// null address.
type Address uint64

// DescriptorHandle is the GPU handle of the first descriptor of a table.
// Zero is the null handle.
type DescriptorHandle uint64

// Buffer is a static GPU buffer.
type Buffer interface {
	Address() Address
	Size() int
}

// Texture is a sampled 2D texture.
type Texture interface {
	Width() int
	Height() int
	Format() Format
}

// BufferUsage hints how a static buffer is bound.
type BufferUsage int

// Buffer usages.
const (
	UsageVertex BufferUsage = iota
	UsageIndex
)

// TextureDesc describes a texture and its full mip chain.
type TextureDesc struct {
	Name   string
	Format Format
	Mips   []*image.RGBA
}

// Device creates the GPU objects passes and the resource binder need.
type Device interface {
	CreateBuffer(name string, size int, usage BufferUsage) (Buffer, error)
	CreateTexture(desc TextureDesc) (Texture, error)
	CreateRootSignature(desc RootSignatureDesc) (RootSignature, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	CreateDescriptorPile(capacity int) (DescriptorPile, error)
}

// UploadBatch collects CPU data destined for GPU objects and copies it in
// one go on Flush.
type UploadBatch interface {
	UploadBuffer(dst Buffer, offset int, src []byte)
	UploadTexture(dst Texture, mips []*image.RGBA)
	Flush() error
}

// ConstantRing hands out per-frame constant memory. Allocations stay valid
// until the ring wraps back to the frame that made them.
type ConstantRing interface {
	Allocate(data []byte) Address
	BeginFrame()
}

// DescriptorPile is an append-only table of shader resource views.
type DescriptorPile interface {
	Allocate(n int) (first int, err error)
	Len() int
	Capacity() int
	SetTexture(slot int, tex Texture) error
	Handle(slot int) DescriptorHandle
}

// IndexBufferView binds part of a buffer as indices.
type IndexBufferView struct {
	Address Address
	Size    int
	Format  Format
}

// VertexBufferView binds part of a buffer as one vertex stream.
type VertexBufferView struct {
	Address Address
	Size    int
	Stride  int
}

// CommandList records draw state and draws.
type CommandList interface {
	SetDescriptorPile(pile DescriptorPile)
	SetIndexBuffer(view IndexBufferView)
	SetVertexBuffers(first int, views []VertexBufferView)
	SetRootSignature(rs RootSignature)
	SetRootConstantBuffer(index int, addr Address)
	SetRootDescriptorTable(index int, handle DescriptorHandle)
	SetPipeline(p Pipeline)
	DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance int)
}

// Bytes encodes a fixed-size constant struct in little-endian GPU layout.
// It panics on types that are not fixed size.
func Bytes(v any) []byte {
	b, err := binary.Append(nil, binary.LittleEndian, v)
	if err != nil {
		panic("gpu: constant is not fixed size: " + err.Error())
	}
	return b
}
