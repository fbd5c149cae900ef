package loader

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/gltf-frame/internal/engine/scene"
	"github.com/Faultbox/gltf-frame/pkg/accessor"
)

// builder packs float and index data into one buffer with a view per
// accessor.
type builder struct {
	doc *gltf.Document
	buf bytes.Buffer
}

func newBuilder() *builder {
	return &builder{doc: &gltf.Document{Asset: gltf.Asset{Version: "2.0"}}}
}

func (b *builder) view(data any) int {
	offset := b.buf.Len()
	_ = binary.Write(&b.buf, binary.LittleEndian, data)
	b.doc.BufferViews = append(b.doc.BufferViews, &gltf.BufferView{
		Buffer:     0,
		ByteOffset: offset,
		ByteLength: b.buf.Len() - offset,
	})
	return len(b.doc.BufferViews) - 1
}

func (b *builder) floats(typ gltf.AccessorType, count int, vals ...float32) int {
	b.doc.Accessors = append(b.doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(b.view(vals)),
		ComponentType: gltf.ComponentFloat,
		Count:         count,
		Type:          typ,
	})
	return len(b.doc.Accessors) - 1
}

func (b *builder) indices(vals ...uint16) int {
	b.doc.Accessors = append(b.doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(b.view(vals)),
		ComponentType: gltf.ComponentUshort,
		Count:         len(vals),
		Type:          gltf.AccessorScalar,
	})
	return len(b.doc.Accessors) - 1
}

func (b *builder) build() *gltf.Document {
	data := b.buf.Bytes()
	b.doc.Buffers = []*gltf.Buffer{{ByteLength: len(data), Data: data}}
	return b.doc
}

func ext(t *testing.T, v any) gltf.Extensions {
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return gltf.Extensions{LightsExtension: json.RawMessage(raw)}
}

func triangle(b *builder) int {
	pos := b.floats(gltf.AccessorVec3, 3, -1, 0, 0, 1, 0, 0, 0, 4, -2)
	idx := b.indices(0, 1, 2)
	b.doc.Meshes = append(b.doc.Meshes, &gltf.Mesh{
		Name: "tri",
		Primitives: []*gltf.Primitive{{
			Attributes: map[string]int{"POSITION": pos},
			Indices:    gltf.Index(idx),
		}},
	})
	return len(b.doc.Meshes) - 1
}

func TestFromDocumentNodes(t *testing.T) {
	b := newBuilder()
	mesh := triangle(b)
	b.doc.Nodes = []*gltf.Node{
		{Name: "root", Children: []int{1}, Translation: [3]float64{1, 2, 3}, Rotation: [4]float64{0, 0, 0, 1}, Scale: [3]float64{1, 1, 1}},
		{Name: "child", Mesh: gltf.Index(mesh), Rotation: [4]float64{0, 0, 0, 1}, Scale: [3]float64{2, 2, 2}},
	}

	file, err := FromDocument(b.build())
	require.NoError(t, err)

	require.Len(t, file.Nodes, 2)
	assert.Equal(t, "root", file.Nodes[0].Name)
	assert.Equal(t, []int{1}, file.Nodes[0].Children)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, file.Nodes[0].Transform.Translation)
	assert.Equal(t, mesh, file.Nodes[1].Mesh)
	assert.Equal(t, scene.None, file.Nodes[1].Skin)
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, file.Nodes[1].Transform.Scale)

	// No scenes: parentless nodes become the roots of a default scene.
	require.Len(t, file.Scenes, 1)
	assert.Equal(t, []int{0}, file.Scenes[0].Nodes)

	require.NoError(t, file.TransformScene(0, mgl32.Ident4()))
	world := file.Current().World[1]
	assert.Equal(t, mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 2, 2)), world)

	prim := file.Meshes[mesh].Primitives[0]
	assert.Equal(t, scene.None, prim.Material)
	assert.Equal(t, mgl32.Vec3{0, 2, -1}, prim.Center)
	assert.Equal(t, mgl32.Vec3{1, 2, 1}, prim.Extent)
}

func TestFromDocumentBoundsFromMinMax(t *testing.T) {
	b := newBuilder()
	triangle(b)
	b.doc.Accessors[0].Min = []float64{-10, -10, -10}
	b.doc.Accessors[0].Max = []float64{10, 20, 10}

	file, err := FromDocument(b.build())
	require.NoError(t, err)
	prim := file.Meshes[0].Primitives[0]
	assert.Equal(t, mgl32.Vec3{0, 5, 0}, prim.Center)
	assert.Equal(t, mgl32.Vec3{10, 15, 10}, prim.Extent)
	assert.Equal(t, float32(20), file.Accessors[0].Max[1])
}

func TestFromDocumentMatrix(t *testing.T) {
	b := newBuilder()
	m := mgl32.Translate3D(4, 5, 6).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(90))).Mul4(mgl32.Scale3D(3, 3, 3))
	var matrix [16]float64
	for i, v := range m {
		matrix[i] = float64(v)
	}
	b.doc.Nodes = []*gltf.Node{{Matrix: matrix}}

	file, err := FromDocument(b.build())
	require.NoError(t, err)
	tr := file.Nodes[0].Transform
	assert.Equal(t, mgl32.Vec3{4, 5, 6}, tr.Translation)
	assert.InDelta(t, 3, tr.Scale[0], 1e-5)
	assert.InDelta(t, 3, tr.Scale[2], 1e-5)
	assert.True(t, tr.Matrix().ApproxEqualThreshold(m, 1e-4))
}

func TestFromDocumentRejectsBadInput(t *testing.T) {
	b := newBuilder()
	b.doc.Asset.Version = "1.0"
	_, err := FromDocument(b.build())
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	b = newBuilder()
	b.doc.Asset.Version = "two"
	_, err = FromDocument(b.build())
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	b = newBuilder()
	b.doc.Nodes = []*gltf.Node{{Children: []int{2}}, {Children: []int{2}}, {}}
	_, err = FromDocument(b.build())
	assert.ErrorIs(t, err, ErrMalformed)

	b = newBuilder()
	b.doc.Nodes = []*gltf.Node{{Children: []int{5}}}
	_, err = FromDocument(b.build())
	assert.ErrorIs(t, err, ErrMalformed)

	b = newBuilder()
	b.doc.Meshes = []*gltf.Mesh{{Primitives: []*gltf.Primitive{{Attributes: map[string]int{}}}}}
	_, err = FromDocument(b.build())
	assert.ErrorIs(t, err, ErrMalformed)

	b = newBuilder()
	acc := b.floats(gltf.AccessorVec3, 1, 0, 0, 0)
	b.doc.Accessors[acc].Count = 100
	_, err = FromDocument(b.build())
	assert.ErrorIs(t, err, accessor.ErrOutOfBounds)
}

func TestFromDocumentRejectsCycles(t *testing.T) {
	tests := map[string][]*gltf.Node{
		"two nodes": {{Children: []int{1}}, {Children: []int{0}}},
		"three":     {{Children: []int{1}}, {Children: []int{2}}, {Children: []int{0}}},
		"detached":  {{}, {Children: []int{2}}, {Children: []int{1}}},
	}
	for name, nodes := range tests {
		t.Run(name, func(t *testing.T) {
			b := newBuilder()
			b.doc.Nodes = nodes
			b.doc.Scenes = []*gltf.Scene{{Nodes: []int{0}}}
			_, err := FromDocument(b.build())
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestFromDocumentSparseAccessor(t *testing.T) {
	b := newBuilder()
	base := b.floats(gltf.AccessorVec3, 3, 1, 1, 1, 2, 2, 2, 3, 3, 3)
	idx := b.view([]uint16{2, 0})
	vals := b.view([]float32{30, 31, 32, 10, 11, 12})
	b.doc.Accessors[base].Sparse = &gltf.Sparse{
		Count:   2,
		Indices: gltf.SparseIndices{BufferView: idx, ComponentType: gltf.ComponentUshort},
		Values:  gltf.SparseValues{BufferView: vals},
	}
	doc := b.build()
	before := append([]byte(nil), doc.Buffers[0].Data...)

	file, err := FromDocument(doc)
	require.NoError(t, err)
	acc := file.Accessors[base]
	assert.Equal(t, mgl32.Vec3{10, 11, 12}, acc.Vec3(0))
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, acc.Vec3(1))
	assert.Equal(t, mgl32.Vec3{30, 31, 32}, acc.Vec3(2))
	assert.Equal(t, before, doc.Buffers[0].Data, "base view is left untouched")
}

func TestFromDocumentSparseWithoutView(t *testing.T) {
	b := newBuilder()
	idx := b.view([]uint8{1})
	vals := b.view([]float32{7})
	b.doc.Accessors = []*gltf.Accessor{{
		ComponentType: gltf.ComponentFloat,
		Count:         3,
		Type:          gltf.AccessorScalar,
		Sparse: &gltf.Sparse{
			Count:   1,
			Indices: gltf.SparseIndices{BufferView: idx, ComponentType: gltf.ComponentUbyte},
			Values:  gltf.SparseValues{BufferView: vals},
		},
	}}

	file, err := FromDocument(b.build())
	require.NoError(t, err)
	acc := file.Accessors[0]
	assert.Equal(t, []float32{0, 7, 0}, []float32{acc.Float(0, 0), acc.Float(1, 0), acc.Float(2, 0)})
}

func TestFromDocumentRejectsBadSparse(t *testing.T) {
	tests := map[string]func(b *builder) *gltf.Sparse{
		"index past count": func(b *builder) *gltf.Sparse {
			return &gltf.Sparse{
				Count:   1,
				Indices: gltf.SparseIndices{BufferView: b.view([]uint16{9}), ComponentType: gltf.ComponentUshort},
				Values:  gltf.SparseValues{BufferView: b.view([]float32{5})},
			}
		},
		"float indices": func(b *builder) *gltf.Sparse {
			return &gltf.Sparse{
				Count:   1,
				Indices: gltf.SparseIndices{BufferView: b.view([]float32{0}), ComponentType: gltf.ComponentFloat},
				Values:  gltf.SparseValues{BufferView: b.view([]float32{5})},
			}
		},
		"missing view": func(b *builder) *gltf.Sparse {
			return &gltf.Sparse{
				Count:   1,
				Indices: gltf.SparseIndices{BufferView: 40, ComponentType: gltf.ComponentUshort},
				Values:  gltf.SparseValues{BufferView: b.view([]float32{5})},
			}
		},
		"more entries than elements": func(b *builder) *gltf.Sparse {
			return &gltf.Sparse{
				Count:   4,
				Indices: gltf.SparseIndices{BufferView: b.view([]uint16{0, 1, 0, 1}), ComponentType: gltf.ComponentUshort},
				Values:  gltf.SparseValues{BufferView: b.view([]float32{5, 6, 7, 8})},
			}
		},
	}
	for name, sparse := range tests {
		t.Run(name, func(t *testing.T) {
			b := newBuilder()
			acc := b.floats(gltf.AccessorScalar, 2, 1, 2)
			b.doc.Accessors[acc].Sparse = sparse(b)
			_, err := FromDocument(b.build())
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestFromDocumentMaterials(t *testing.T) {
	b := newBuilder()
	b.doc.Textures = []*gltf.Texture{{Source: gltf.Index(0)}, {}}
	b.doc.Images = []*gltf.Image{{Name: "albedo", URI: "albedo.png"}}
	b.doc.Materials = []*gltf.Material{
		{
			Name:           "leaf",
			AlphaMode:      gltf.AlphaMask,
			AlphaCutoff:    gltf.Float(0.3),
			DoubleSided:    true,
			EmissiveFactor: [3]float64{1, 0.5, 0},
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorFactor:  &[4]float64{1, 0, 0, 1},
				MetallicFactor:   gltf.Float(0.25),
				BaseColorTexture: &gltf.TextureInfo{Index: 0, TexCoord: 1},
			},
			NormalTexture: &gltf.NormalTexture{Index: gltf.Index(1)},
		},
		{Name: "plain", AlphaMode: gltf.AlphaBlend},
	}

	file, err := FromDocument(b.build())
	require.NoError(t, err)
	require.Len(t, file.Materials, 2)

	leaf := file.Materials[0]
	assert.Equal(t, scene.AlphaMask, leaf.AlphaMode)
	assert.InDelta(t, 0.3, leaf.AlphaCutoff, 1e-6)
	assert.True(t, leaf.DoubleSided)
	assert.True(t, leaf.MetallicRoughness)
	assert.Equal(t, mgl32.Vec3{1, 0.5, 0}, leaf.EmissiveFactor)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, leaf.BaseColorFactor)
	assert.Equal(t, float32(0.25), leaf.MetallicFactor)
	assert.Equal(t, float32(1), leaf.RoughnessFactor)
	assert.Equal(t, scene.TextureRef{Index: 0, TexCoord: 1}, leaf.BaseColorTexture)
	assert.Equal(t, scene.TextureRef{Index: 1}, leaf.NormalTexture)
	assert.Equal(t, scene.NoTexture, leaf.OcclusionTexture)

	plain := file.Materials[1]
	assert.Equal(t, scene.AlphaBlend, plain.AlphaMode)
	assert.False(t, plain.MetallicRoughness)
	assert.Equal(t, float32(0.5), plain.AlphaCutoff)

	assert.Equal(t, []scene.Texture{{Source: 0}, {Source: scene.None}}, file.Textures)
	assert.Equal(t, []scene.Image{{Name: "albedo", URI: "albedo.png"}}, file.Images)
}

func TestFromDocumentEmbeddedImage(t *testing.T) {
	b := newBuilder()
	view := b.view([]byte{0x89, 'P', 'N', 'G'})
	b.doc.Images = []*gltf.Image{{MimeType: "image/png", BufferView: gltf.Index(view)}}

	file, err := FromDocument(b.build())
	require.NoError(t, err)
	require.Len(t, file.Images, 1)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, file.Images[0].Data)
	assert.Equal(t, "image/png", file.Images[0].MimeType)
	assert.Empty(t, file.Images[0].URI)
}

func TestFromDocumentCameras(t *testing.T) {
	b := newBuilder()
	b.doc.Cameras = []*gltf.Camera{
		{Name: "main", Perspective: &gltf.Perspective{Yfov: 0.8, Znear: 0.5, Zfar: gltf.Float(50)}},
		{Name: "infinite", Perspective: &gltf.Perspective{Yfov: 1, Znear: 0.01}},
	}
	b.doc.Nodes = []*gltf.Node{{}, {Camera: gltf.Index(0)}}

	file, err := FromDocument(b.build())
	require.NoError(t, err)
	assert.Equal(t, scene.Camera{Name: "main", YFov: 0.8, ZNear: 0.5, ZFar: 50, Node: 1}, file.Cameras[0])
	assert.Equal(t, scene.Camera{Name: "infinite", YFov: 1, ZNear: 0.01, ZFar: scene.DefaultZFar, Node: scene.None}, file.Cameras[1])
}

func TestFromDocumentSkins(t *testing.T) {
	b := newBuilder()
	ibm := mgl32.Translate3D(0, -1, 0)
	acc := b.floats(gltf.AccessorMat4, 1, ibm[:]...)
	b.doc.Nodes = []*gltf.Node{{Children: []int{1}}, {Name: "bone"}, {Name: "bone2"}}
	b.doc.Skins = []*gltf.Skin{
		{Name: "rig", InverseBindMatrices: gltf.Index(acc), Joints: []int{1}},
		{Name: "bare", Skeleton: gltf.Index(0), Joints: []int{1, 2}},
	}

	file, err := FromDocument(b.build())
	require.NoError(t, err)
	require.Len(t, file.Skins, 2)

	rig := file.Skins[0]
	assert.Equal(t, []int{1}, rig.Joints)
	assert.Equal(t, scene.None, rig.Skeleton)
	assert.Equal(t, ibm, rig.InverseBindMatrices.Mat4(0))
	assert.True(t, file.Nodes[1].IsJoint)
	assert.True(t, file.Nodes[2].IsJoint)
	assert.False(t, file.Nodes[0].IsJoint)

	bare := file.Skins[1]
	assert.Equal(t, 0, bare.Skeleton)
	require.Equal(t, 2, bare.InverseBindMatrices.Count)
	assert.Equal(t, mgl32.Ident4(), bare.InverseBindMatrices.Mat4(1))
}

func TestFromDocumentAnimations(t *testing.T) {
	b := newBuilder()
	times := b.floats(gltf.AccessorScalar, 3, 0, 1, 2.5)
	moves := b.floats(gltf.AccessorVec3, 3, 0, 0, 0, 1, 0, 0, 2, 0, 0)
	spins := b.floats(gltf.AccessorVec4, 3, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1)
	b.doc.Nodes = []*gltf.Node{{Name: "mover"}}
	b.doc.Animations = []*gltf.Animation{{
		Name: "walk",
		Samplers: []*gltf.AnimationSampler{
			{Input: times, Output: moves},
			{Input: times, Output: spins, Interpolation: gltf.InterpolationCubicSpline},
		},
		Channels: []*gltf.AnimationChannel{
			{Sampler: 0, Target: gltf.AnimationChannelTarget{Node: gltf.Index(0), Path: gltf.TRSTranslation}},
			{Sampler: 1, Target: gltf.AnimationChannelTarget{Node: gltf.Index(0), Path: gltf.TRSRotation}},
		},
	}}

	file, err := FromDocument(b.build())
	require.NoError(t, err)
	require.Len(t, file.Animations, 1)

	anim := file.Animations[0]
	assert.Equal(t, "walk", anim.Name)
	assert.Equal(t, float32(2.5), anim.Duration)
	ch := anim.Channels[0]
	require.NotNil(t, ch)
	require.NotNil(t, ch.Translation)
	assert.Nil(t, ch.Rotation)
	assert.Equal(t, mgl32.Vec3{0.5, 0, 0}, ch.Translation.Vec3(0.5))

	require.NoError(t, file.SetAnimationTime(0, 1))
	require.NoError(t, file.TransformScene(0, mgl32.Ident4()))
	assert.Equal(t, mgl32.Translate3D(1, 0, 0), file.Current().World[0])
}

func TestFromDocumentLights(t *testing.T) {
	b := newBuilder()
	b.doc.Extensions = ext(t, map[string]any{
		"lights": []map[string]any{
			{"type": "spot", "name": "lamp", "color": []float32{1, 0, 0}, "intensity": 3,
				"spot": map[string]any{"innerConeAngle": 0.1}},
			{"type": "directional"},
		},
	})
	b.doc.Nodes = []*gltf.Node{
		{},
		{Extensions: ext(t, map[string]any{"light": 1})},
		{Extensions: ext(t, map[string]any{"light": 0})},
	}

	file, err := FromDocument(b.build())
	require.NoError(t, err)
	require.Len(t, file.Lights, 2)

	lamp := file.Lights[0]
	assert.Equal(t, scene.LightSpot, lamp.Type)
	assert.Equal(t, "lamp", lamp.Name)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, lamp.Color)
	assert.Equal(t, float32(3), lamp.Intensity)
	assert.Equal(t, float32(scene.DefaultRange), lamp.Range)
	assert.Equal(t, float32(0.1), lamp.InnerCone)
	assert.Equal(t, float32(math.Pi/4), lamp.OuterCone)

	sun := file.Lights[1]
	assert.Equal(t, scene.LightDirectional, sun.Type)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, sun.Color)

	assert.Equal(t, []scene.LightInstance{{Light: 1, Node: 1}, {Light: 0, Node: 2}}, file.LightInstances)
}

func TestFromDocumentBadLight(t *testing.T) {
	b := newBuilder()
	b.doc.Extensions = ext(t, map[string]any{"lights": []map[string]any{{"type": "area"}}})
	_, err := FromDocument(b.build())
	assert.ErrorIs(t, err, ErrMalformed)

	b = newBuilder()
	b.doc.Nodes = []*gltf.Node{{Extensions: ext(t, map[string]any{"light": 0})}}
	_, err = FromDocument(b.build())
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/does-not-exist.gltf")
	assert.Error(t, err)
}
