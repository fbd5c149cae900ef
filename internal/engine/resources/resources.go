// Package resources owns the GPU copies of a glTF file: static vertex and
// index buffers, textures, the descriptor pile and the per-frame constant
// allocations shared by every pass.
package resources

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/engine/scene"
	"github.com/Faultbox/gltf-frame/internal/logger"
)

// Errors returned while creating geometry.
var (
	ErrMissingAttribute  = errors.New("primitive lacks required attribute")
	ErrUnsupportedIndex  = errors.New("unsupported index component type")
	ErrUnsupportedLayout = errors.New("attribute has no vertex format")
)

// DefaultDescriptorCapacity is the minimum size of the descriptor pile.
const DefaultDescriptorCapacity = 512

// MaxMaterialTextures bounds the descriptors one material table can take,
// shadow map included.
const MaxMaterialTextures = 10

// passesPerMaterial is how many passes allocate a table per material.
const passesPerMaterial = 3

// Options configure a Binder.
type Options struct {
	// DescriptorCapacity is the minimum pile size. Zero means
	// DefaultDescriptorCapacity.
	DescriptorCapacity int
	// ReservedSlots are kept free for the application (shadow atlas, UI).
	ReservedSlots int
}

// Binder bridges a scene.File and a gpu.Device.
type Binder struct {
	device gpu.Device
	file   *scene.File
	upload gpu.UploadBatch
	ring   gpu.ConstantRing
	pile   gpu.DescriptorPile

	configs   []TextureConfig
	imageBase int
	images    []gpu.Texture

	vertexBuffers map[int]gpu.Buffer
	indexBuffers  map[int]indexBuffer
	sequential    map[int]indexBuffer

	perFrame gpu.Address
	skinning map[int]gpu.Address
	tables   map[tableKey]table
}

type indexBuffer struct {
	buffer gpu.Buffer
	format gpu.Format
	count  int
}

// New discovers textures, creates static buffers for every primitive
// accessor and sizes the descriptor pile. Buffer contents are flushed
// through upload before New returns.
func New(device gpu.Device, file *scene.File, upload gpu.UploadBatch, ring gpu.ConstantRing, opts Options) (*Binder, error) {
	if opts.DescriptorCapacity <= 0 {
		opts.DescriptorCapacity = DefaultDescriptorCapacity
	}

	b := &Binder{
		device:        device,
		file:          file,
		upload:        upload,
		ring:          ring,
		configs:       FindTextures(file),
		images:        make([]gpu.Texture, len(file.Images)),
		vertexBuffers: make(map[int]gpu.Buffer),
		indexBuffers:  make(map[int]indexBuffer),
		sequential:    make(map[int]indexBuffer),
		skinning:      make(map[int]gpu.Address),
		tables:        make(map[tableKey]table),
	}

	capacity := len(file.Images) + opts.ReservedSlots + passesPerMaterial*MaxMaterialTextures*max(len(file.Materials), 1)
	capacity = max(capacity, opts.DescriptorCapacity)
	pile, err := device.CreateDescriptorPile(capacity)
	if err != nil {
		return nil, fmt.Errorf("creating descriptor pile: %w", err)
	}
	b.pile = pile

	if opts.ReservedSlots > 0 {
		if _, err := pile.Allocate(opts.ReservedSlots); err != nil {
			return nil, fmt.Errorf("reserving descriptors: %w", err)
		}
	}
	if b.imageBase, err = pile.Allocate(len(file.Images)); err != nil {
		return nil, fmt.Errorf("allocating image descriptors: %w", err)
	}

	for mi := range file.Meshes {
		for pi := range file.Meshes[mi].Primitives {
			if err := b.createPrimitiveBuffers(&file.Meshes[mi].Primitives[pi]); err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
		}
	}
	if err := upload.Flush(); err != nil {
		return nil, fmt.Errorf("uploading geometry: %w", err)
	}

	logger.Debug("GPU resources created",
		zap.Int("vertexBuffers", len(b.vertexBuffers)),
		zap.Int("indexBuffers", len(b.indexBuffers)+len(b.sequential)),
		zap.Int("descriptors", pile.Capacity()))
	return b, nil
}

// File returns the scene the binder serves.
func (b *Binder) File() *scene.File { return b.file }

// Pile returns the shared descriptor pile.
func (b *Binder) Pile() gpu.DescriptorPile { return b.pile }

// Ring returns the per-frame constant ring.
func (b *Binder) Ring() gpu.ConstantRing { return b.ring }

// TextureConfigs returns the sRGB and cutoff choice per image.
func (b *Binder) TextureConfigs() []TextureConfig { return b.configs }

// SetPerFrameConstants copies the file's per-frame block into the ring.
// Call it once per frame after scene.File.SetPerFrameData.
func (b *Binder) SetPerFrameConstants() {
	b.perFrame = b.ring.Allocate(gpu.Bytes(*b.file.PerFrame()))
}

// PerFrameConstants returns the address written by SetPerFrameConstants.
func (b *Binder) PerFrameConstants() gpu.Address { return b.perFrame }

// SetSkinningMatricesForSkeletons copies every skin's joint matrices from
// the current snapshot into the ring.
func (b *Binder) SetSkinningMatricesForSkeletons() {
	clear(b.skinning)
	for skin, mats := range b.file.Current().Skins {
		if len(mats) == 0 {
			continue
		}
		b.skinning[skin] = b.ring.Allocate(gpu.Bytes(mats))
	}
}

// SkinningMatricesBuffer returns the joint matrices of skin for this frame,
// or 0 if none were uploaded.
func (b *Binder) SkinningMatricesBuffer(skin int) gpu.Address {
	return b.skinning[skin]
}
