package resources

import (
	"encoding/binary"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/Faultbox/gltf-frame/internal/engine/gpu"
	"github.com/Faultbox/gltf-frame/internal/engine/scene"
	"github.com/Faultbox/gltf-frame/internal/engine/shader"
	"github.com/Faultbox/gltf-frame/pkg/accessor"
)

// Geometry is everything a draw needs from one primitive.
type Geometry struct {
	Index      gpu.IndexBufferView
	IndexCount int
	Vertex     []gpu.VertexBufferView
	Layout     []gpu.InputElement
	// Defines holds HAS_<ATTRIBUTE>=1 for every bound stream.
	Defines shader.Defines
}

// CreateGeometry binds the index buffer and one vertex stream per required
// attribute of prim, in the order given.
func (b *Binder) CreateGeometry(prim *scene.Primitive, required []string) (Geometry, error) {
	ib, err := b.indexBufferFor(prim)
	if err != nil {
		return Geometry{}, err
	}

	g := Geometry{
		Index:      gpu.IndexBufferView{Address: ib.buffer.Address(), Size: ib.buffer.Size(), Format: ib.format},
		IndexCount: ib.count,
		Vertex:     make([]gpu.VertexBufferView, 0, len(required)),
		Layout:     make([]gpu.InputElement, 0, len(required)),
		Defines:    make(shader.Defines, len(required)),
	}

	for slot, name := range required {
		idx, ok := prim.Attributes[name]
		if !ok {
			return Geometry{}, fmt.Errorf("%w: %s", ErrMissingAttribute, name)
		}
		acc, _ := b.file.Accessor(idx)
		format := FormatFor(acc.Dimension, acc.ComponentType, acc.Normalized)
		if format == gpu.FormatUnknown {
			return Geometry{}, fmt.Errorf("%w: %s is %d x %s", ErrUnsupportedLayout, name, acc.Dimension, acc.ComponentType)
		}
		vb, err := b.vertexBufferFor(idx)
		if err != nil {
			return Geometry{}, fmt.Errorf("attribute %s: %w", name, err)
		}

		semantic, index := SplitAttribute(name)
		g.Vertex = append(g.Vertex, gpu.VertexBufferView{Address: vb.Address(), Size: vb.Size(), Stride: acc.ElementSize()})
		g.Layout = append(g.Layout, gpu.InputElement{Semantic: semantic, SemanticIndex: index, Format: format, Slot: slot})
		g.Defines["HAS_"+name] = "1"
	}
	return g, nil
}

func (b *Binder) createPrimitiveBuffers(prim *scene.Primitive) error {
	if _, err := b.indexBufferFor(prim); err != nil {
		return err
	}
	for _, name := range sortedAttributes(prim) {
		if _, err := b.vertexBufferFor(prim.Attributes[name]); err != nil {
			return fmt.Errorf("attribute %s: %w", name, err)
		}
	}
	return nil
}

func (b *Binder) vertexBufferFor(idx int) (gpu.Buffer, error) {
	if buf, ok := b.vertexBuffers[idx]; ok {
		return buf, nil
	}
	acc, ok := b.file.Accessor(idx)
	if !ok || acc.Count == 0 {
		return nil, fmt.Errorf("accessor %d: %w", idx, accessor.ErrEmpty)
	}
	data := acc.Bytes()
	buf, err := b.device.CreateBuffer(fmt.Sprintf("vertex accessor %d", idx), len(data), gpu.UsageVertex)
	if err != nil {
		return nil, err
	}
	b.upload.UploadBuffer(buf, 0, data)
	b.vertexBuffers[idx] = buf
	return buf, nil
}

// indexBufferFor returns the index buffer of prim. Non-indexed primitives
// get a shared 0..n-1 sequence sized to their POSITION stream.
func (b *Binder) indexBufferFor(prim *scene.Primitive) (indexBuffer, error) {
	if prim.Indices < 0 {
		return b.sequentialIndices(prim)
	}
	if ib, ok := b.indexBuffers[prim.Indices]; ok {
		return ib, nil
	}

	acc, ok := b.file.Accessor(prim.Indices)
	if !ok || acc.Count == 0 {
		return indexBuffer{}, fmt.Errorf("index accessor %d: %w", prim.Indices, accessor.ErrEmpty)
	}

	var (
		data   []byte
		format gpu.Format
	)
	switch acc.ComponentType {
	case accessor.UnsignedInt:
		data, format = acc.Bytes(), gpu.FormatR32Uint
	case accessor.UnsignedShort:
		data, format = acc.Bytes(), gpu.FormatR16Uint
	case accessor.UnsignedByte:
		data, format = widenIndices(acc), gpu.FormatR16Uint
	default:
		return indexBuffer{}, fmt.Errorf("%w: %s", ErrUnsupportedIndex, acc.ComponentType)
	}

	ib, err := b.createIndexBuffer(fmt.Sprintf("index accessor %d", prim.Indices), data, format, acc.Count)
	if err != nil {
		return indexBuffer{}, err
	}
	b.indexBuffers[prim.Indices] = ib
	return ib, nil
}

func (b *Binder) sequentialIndices(prim *scene.Primitive) (indexBuffer, error) {
	pos, ok := prim.Attributes["POSITION"]
	if !ok {
		return indexBuffer{}, fmt.Errorf("%w: POSITION", ErrMissingAttribute)
	}
	if ib, ok := b.sequential[pos]; ok {
		return ib, nil
	}
	acc, ok := b.file.Accessor(pos)
	if !ok || acc.Count == 0 {
		return indexBuffer{}, fmt.Errorf("position accessor %d: %w", pos, accessor.ErrEmpty)
	}

	var (
		data   []byte
		format gpu.Format
	)
	if acc.Count <= 1<<16 {
		format = gpu.FormatR16Uint
		data = make([]byte, 0, acc.Count*2)
		for i := range acc.Count {
			data = binary.LittleEndian.AppendUint16(data, uint16(i))
		}
	} else {
		format = gpu.FormatR32Uint
		data = make([]byte, 0, acc.Count*4)
		for i := range acc.Count {
			data = binary.LittleEndian.AppendUint32(data, uint32(i))
		}
	}

	ib, err := b.createIndexBuffer(fmt.Sprintf("sequence for accessor %d", pos), data, format, acc.Count)
	if err != nil {
		return indexBuffer{}, err
	}
	b.sequential[pos] = ib
	return ib, nil
}

func (b *Binder) createIndexBuffer(name string, data []byte, format gpu.Format, count int) (indexBuffer, error) {
	buf, err := b.device.CreateBuffer(name, len(data), gpu.UsageIndex)
	if err != nil {
		return indexBuffer{}, err
	}
	b.upload.UploadBuffer(buf, 0, data)
	return indexBuffer{buffer: buf, format: format, count: count}, nil
}

// widenIndices converts 8-bit indices to 16-bit; GPUs have no byte index
// format.
func widenIndices(acc accessor.Accessor) []byte {
	out := make([]byte, 0, acc.Count*2)
	for i := range acc.Count {
		out = binary.LittleEndian.AppendUint16(out, uint16(acc.Get(i)[0]))
	}
	return out
}

// FormatFor returns the vertex format of an accessor with dimension
// components of type ct. Three-component 8 and 16-bit data has no vertex
// format and yields gpu.FormatUnknown.
func FormatFor(dimension int, ct accessor.ComponentType, normalized bool) gpu.Format {
	if ct == accessor.Float {
		normalized = false
	}
	return vertexFormats[formatKey{dimension, ct, normalized}]
}

type formatKey struct {
	dim  int
	ct   accessor.ComponentType
	norm bool
}

var vertexFormats = map[formatKey]gpu.Format{
	{1, accessor.Byte, false}:          gpu.FormatR8Sint,
	{1, accessor.UnsignedByte, false}:  gpu.FormatR8Uint,
	{1, accessor.Short, false}:         gpu.FormatR16Sint,
	{1, accessor.UnsignedShort, false}: gpu.FormatR16Uint,
	{1, accessor.UnsignedInt, false}:   gpu.FormatR32Uint,
	{1, accessor.Float, false}:         gpu.FormatR32Float,
	{1, accessor.Byte, true}:           gpu.FormatR8Snorm,
	{1, accessor.UnsignedByte, true}:   gpu.FormatR8Unorm,
	{1, accessor.Short, true}:          gpu.FormatR16Snorm,
	{1, accessor.UnsignedShort, true}:  gpu.FormatR16Unorm,

	{2, accessor.Byte, false}:          gpu.FormatR8G8Sint,
	{2, accessor.UnsignedByte, false}:  gpu.FormatR8G8Uint,
	{2, accessor.Short, false}:         gpu.FormatR16G16Sint,
	{2, accessor.UnsignedShort, false}: gpu.FormatR16G16Uint,
	{2, accessor.UnsignedInt, false}:   gpu.FormatR32G32Uint,
	{2, accessor.Float, false}:         gpu.FormatR32G32Float,
	{2, accessor.Byte, true}:           gpu.FormatR8G8Snorm,
	{2, accessor.UnsignedByte, true}:   gpu.FormatR8G8Unorm,
	{2, accessor.Short, true}:          gpu.FormatR16G16Snorm,
	{2, accessor.UnsignedShort, true}:  gpu.FormatR16G16Unorm,

	{3, accessor.UnsignedInt, false}: gpu.FormatR32G32B32Uint,
	{3, accessor.Float, false}:       gpu.FormatR32G32B32Float,

	{4, accessor.Byte, false}:          gpu.FormatR8G8B8A8Sint,
	{4, accessor.UnsignedByte, false}:  gpu.FormatR8G8B8A8Uint,
	{4, accessor.Short, false}:         gpu.FormatR16G16B16A16Sint,
	{4, accessor.UnsignedShort, false}: gpu.FormatR16G16B16A16Uint,
	{4, accessor.UnsignedInt, false}:   gpu.FormatR32G32B32A32Uint,
	{4, accessor.Float, false}:         gpu.FormatR32G32B32A32Float,
	{4, accessor.Byte, true}:           gpu.FormatR8G8B8A8Snorm,
	{4, accessor.UnsignedByte, true}:   gpu.FormatR8G8B8A8Unorm,
	{4, accessor.Short, true}:          gpu.FormatR16G16B16A16Snorm,
	{4, accessor.UnsignedShort, true}:  gpu.FormatR16G16B16A16Unorm,
}

// SplitAttribute splits a glTF attribute name into its semantic and index:
// "TEXCOORD_1" becomes ("TEXCOORD", 1), "POSITION" stays ("POSITION", 0).
func SplitAttribute(name string) (string, int) {
	i := len(name)
	for i > 0 && unicode.IsDigit(rune(name[i-1])) {
		i--
	}
	if i == len(name) {
		return name, 0
	}
	index, err := strconv.Atoi(name[i:])
	if err != nil {
		return name, 0
	}
	return strings.TrimSuffix(name[:i], "_"), index
}

// sortedAttributes fixes buffer creation order so addresses are stable
// across runs.
func sortedAttributes(prim *scene.Primitive) []string {
	return slices.Sorted(maps.Keys(prim.Attributes))
}
